package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewConfig(t *testing.T) {
	tcases := []struct {
		name          string
		serverAddr    string
		origins       []string
		sweepInterval time.Duration
		roomIdleAge   time.Duration
		err           bool
	}{
		{
			name:          "valid config",
			serverAddr:    "localhost:8000",
			origins:       []string{"http://localhost:3000"},
			sweepInterval: DefaultSweepInterval,
			roomIdleAge:   DefaultRoomIdleAge,
			err:           false,
		},
		{
			name:          "empty server address",
			serverAddr:    "",
			sweepInterval: DefaultSweepInterval,
			roomIdleAge:   DefaultRoomIdleAge,
			err:           true,
		},
		{
			name:          "zero sweep interval",
			serverAddr:    "localhost:8000",
			sweepInterval: 0,
			roomIdleAge:   DefaultRoomIdleAge,
			err:           true,
		},
		{
			name:          "negative room idle age",
			serverAddr:    "localhost:8000",
			sweepInterval: DefaultSweepInterval,
			roomIdleAge:   -time.Hour,
			err:           true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := NewConfig(tc.serverAddr, tc.origins, tc.sweepInterval, tc.roomIdleAge)
			if tc.err {
				assert.Error(t, err, "expected error")
				assert.Nil(t, cfg, "expected nil config")
				return
			}

			assert.NoError(t, err, "expected no error")
			assert.Equal(t, tc.serverAddr, cfg.ServerAddr)
			assert.Equal(t, tc.origins, cfg.AllowedOrigins)
			assert.Equal(t, tc.sweepInterval, cfg.SweepInterval)
			assert.Equal(t, tc.roomIdleAge, cfg.RoomIdleAge)
		})
	}
}
