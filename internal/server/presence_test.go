package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatterbox/internal/types"
)

func TestPresenceRegistry_Register(t *testing.T) {
	pr := NewPresenceRegistry()

	p := pr.Register("c1", "alice", 2, "general")
	assert.Equal(t, "c1", p.Id, "expected connection id as identity")
	assert.Equal(t, "alice", p.Username)
	assert.Equal(t, "general", p.Room, "expected default room assigned")
	assert.Equal(t, types.StatusOnline, p.Status, "expected online on register")
	assert.Equal(t, 2, p.AvatarIndex)
	assert.Equal(t, 1, pr.Len())

	got, ok := pr.Get("c1")
	require.True(t, ok, "expected presence retrievable")
	assert.Equal(t, p, got)
}

func TestPresenceRegistry_ReRegisterKeepsRoom(t *testing.T) {
	pr := NewPresenceRegistry()
	pr.Register("c1", "alice", 0, "general")
	pr.SetRoom("c1", "gaming")
	pr.SetStatus("c1", types.StatusIdle)

	p := pr.Register("c1", "alice2", 3, "general")
	assert.Equal(t, "gaming", p.Room, "expected re-register to keep current room")
	assert.Equal(t, "alice2", p.Username, "expected username updated")
	assert.Equal(t, 3, p.AvatarIndex, "expected avatar updated")
	assert.Equal(t, types.StatusOnline, p.Status, "expected status reset to online")
	assert.Equal(t, 1, pr.Len(), "expected no duplicate record")
}

func TestPresenceRegistry_MutatorsOnGoneConnection(t *testing.T) {
	pr := NewPresenceRegistry()

	assert.False(t, pr.SetStatus("gone", types.StatusIdle), "expected not-found on status")
	assert.False(t, pr.SetAvatar("gone", 1), "expected not-found on avatar")
	assert.False(t, pr.SetRoom("gone", "gaming"), "expected not-found on room")

	_, ok := pr.Get("gone")
	assert.False(t, ok, "expected lookup to report not-found")
}

func TestPresenceRegistry_Remove(t *testing.T) {
	pr := NewPresenceRegistry()
	pr.Register("c1", "alice", 0, "general")

	pr.Remove("c1")
	_, ok := pr.Get("c1")
	assert.False(t, ok, "expected record gone after remove")
	assert.Equal(t, 0, pr.Len())

	// removing twice is harmless
	pr.Remove("c1")
}

func TestPresenceRegistry_Roster(t *testing.T) {
	pr := NewPresenceRegistry()
	pr.Register("c1", "carol", 1, "general")
	pr.Register("c2", "alice", 2, "general")
	pr.SetStatus("c2", types.StatusIdle)

	roster := pr.Roster([]string{"c1", "c2", "gone"})
	require.Len(t, roster, 2, "expected gone connection skipped")
	assert.Equal(t, "alice", roster[0].Username, "expected roster sorted by username")
	assert.Equal(t, types.StatusIdle, roster[0].Status)
	assert.Equal(t, "carol", roster[1].Username)
	assert.Equal(t, 1, roster[1].AvatarIndex)
}
