package server

import (
	"sort"
	"sync"

	"github.com/samber/lo"

	"chatterbox/internal/types"
)

// Presence is the live record of a connected user: who they are, which
// room they are in, and their status. Identity is the connection id
// assigned at upgrade time.
type Presence struct {
	Id          string
	Username    string
	Room        string
	Status      types.Status
	AvatarIndex int
}

// PresenceRegistry maps connection ids to presence records. All
// mutators on a gone connection report not-found; callers treat that
// as a silent no-op, which guards against use-after-disconnect races.
type PresenceRegistry struct {
	mu    sync.RWMutex
	conns map[string]*Presence
}

func NewPresenceRegistry() *PresenceRegistry {
	return &PresenceRegistry{conns: make(map[string]*Presence)}
}

// Register creates or replaces the presence record for a connection.
// Re-registering the same connection is safe and keeps its current
// room.
func (pr *PresenceRegistry) Register(connId, username string, avatarIndex int, room string) Presence {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	if existing, ok := pr.conns[connId]; ok {
		existing.Username = username
		existing.AvatarIndex = avatarIndex
		existing.Status = types.StatusOnline
		return *existing
	}

	p := &Presence{
		Id:          connId,
		Username:    username,
		Room:        room,
		Status:      types.StatusOnline,
		AvatarIndex: avatarIndex,
	}
	pr.conns[connId] = p
	return *p
}

func (pr *PresenceRegistry) Get(connId string) (Presence, bool) {
	pr.mu.RLock()
	defer pr.mu.RUnlock()

	p, ok := pr.conns[connId]
	if !ok {
		return Presence{}, false
	}
	return *p, true
}

func (pr *PresenceRegistry) SetStatus(connId string, status types.Status) bool {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	p, ok := pr.conns[connId]
	if !ok {
		return false
	}
	p.Status = status
	return true
}

func (pr *PresenceRegistry) SetAvatar(connId string, avatarIndex int) bool {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	p, ok := pr.conns[connId]
	if !ok {
		return false
	}
	p.AvatarIndex = avatarIndex
	return true
}

func (pr *PresenceRegistry) SetRoom(connId, room string) bool {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	p, ok := pr.conns[connId]
	if !ok {
		return false
	}
	p.Room = room
	return true
}

func (pr *PresenceRegistry) Remove(connId string) {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	delete(pr.conns, connId)
}

func (pr *PresenceRegistry) Len() int {
	pr.mu.RLock()
	defer pr.mu.RUnlock()
	return len(pr.conns)
}

// Roster builds the update-users view for a member set. Connections
// which disconnected since the member set was snapshotted are skipped.
func (pr *PresenceRegistry) Roster(connIds []string) []types.User {
	pr.mu.RLock()
	defer pr.mu.RUnlock()

	users := lo.FilterMap(connIds, func(id string, _ int) (types.User, bool) {
		p, ok := pr.conns[id]
		if !ok {
			return types.User{}, false
		}
		return types.User{
			Id:          p.Id,
			Username:    p.Username,
			Status:      p.Status,
			AvatarIndex: p.AvatarIndex,
		}, true
	})

	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users
}
