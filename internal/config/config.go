package config

import (
	"fmt"
	"time"
)

const (
	DefaultSweepInterval = time.Hour
	DefaultRoomIdleAge   = 24 * time.Hour
)

type Config struct {
	ServerAddr     string
	AllowedOrigins []string
	// SweepInterval is how often the lifecycle sweep runs; RoomIdleAge
	// is how long a dynamic room must be empty and untouched before the
	// sweep removes it.
	SweepInterval time.Duration
	RoomIdleAge   time.Duration
}

func NewConfig(serverAddr string, allowedOrigins []string, sweepInterval, roomIdleAge time.Duration) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if sweepInterval <= 0 {
		return nil, fmt.Errorf("sweep interval must be positive")
	}
	if roomIdleAge <= 0 {
		return nil, fmt.Errorf("room idle age must be positive")
	}

	return &Config{
		ServerAddr:     serverAddr,
		AllowedOrigins: allowedOrigins,
		SweepInterval:  sweepInterval,
		RoomIdleAge:    roomIdleAge,
	}, nil
}
