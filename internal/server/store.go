package server

import (
	"time"

	"github.com/google/uuid"

	"chatterbox/internal/types"
)

const replyTombstoneText = "Message not available"

// messageLog is the ordered append log of a single room. It is
// confined to the owning room's goroutine, so it needs no locking.
type messageLog struct {
	room string
	msgs []*types.Message
}

func newMessageLog(room string) *messageLog {
	return &messageLog{room: room}
}

// Append creates a message from a validated payload and adds it to the
// log. The room name is fixed at send time.
func (l *messageLog) Append(author Presence, p *SendMessagePayload) *types.Message {
	msg := &types.Message{
		Id:          uuid.NewString(),
		Username:    author.Username,
		Room:        l.room,
		Kind:        p.Kind(),
		Timestamp:   Now(),
		Reactions:   make(map[string]*types.Reaction),
		ReplyTo:     p.ReplyTo,
		AvatarIndex: author.AvatarIndex,
	}

	switch msg.Kind {
	case types.KindFile:
		msg.File = &types.FileInfo{Name: p.Name, Size: p.Size, Url: p.Url}
	default:
		msg.Message = p.Message
	}

	l.msgs = append(l.msgs, msg)
	return msg
}

// SystemNotice appends a system message, e.g. the room-created notice
// every room starts with.
func (l *messageLog) SystemNotice(text string) *types.Message {
	msg := &types.Message{
		Id:        uuid.NewString(),
		Username:  "System",
		Room:      l.room,
		Kind:      types.KindText,
		Message:   text,
		Timestamp: Now(),
		Reactions: make(map[string]*types.Reaction),
		IsSystem:  true,
	}
	l.msgs = append(l.msgs, msg)
	return msg
}

func (l *messageLog) Get(id string) *types.Message {
	for _, m := range l.msgs {
		if m.Id == id {
			return m
		}
	}
	return nil
}

// Edit updates a message body in place. Only the author may edit, and
// only text messages have an editable body; anything else is a no-op.
func (l *messageLog) Edit(id, author, newMessage string) bool {
	m := l.Get(id)
	if m == nil || m.Username != author || m.IsSystem || m.Kind != types.KindText {
		return false
	}

	m.Message = newMessage
	m.Edited = true
	return true
}

// Delete removes a message. Only the author may delete.
func (l *messageLog) Delete(id, author string) bool {
	for i, m := range l.msgs {
		if m.Id == id {
			if m.Username != author || m.IsSystem {
				return false
			}
			l.msgs = append(l.msgs[:i], l.msgs[i+1:]...)
			return true
		}
	}
	return false
}

// History returns a deep-copied snapshot of the ordered log. The
// caller may marshal it from another goroutine while the room keeps
// editing bodies and reaction maps.
func (l *messageLog) History() []*types.Message {
	out := make([]*types.Message, len(l.msgs))
	for i, m := range l.msgs {
		out[i] = m.Clone()
	}
	return out
}

// Last returns the most recent entry, or nil on an empty log.
func (l *messageLog) Last() *types.Message {
	if len(l.msgs) == 0 {
		return nil
	}
	return l.msgs[len(l.msgs)-1]
}

func (l *messageLog) Len() int {
	return len(l.msgs)
}

// ResolveReply follows a replyTo reference, returning a deep copy of
// the referent. The reference is weak: if the referent was deleted (or
// never existed in this room), a tombstone placeholder is returned
// instead.
func (l *messageLog) ResolveReply(id string) *types.Message {
	if m := l.Get(id); m != nil {
		return m.Clone()
	}

	return &types.Message{
		Id:        id,
		Username:  "System",
		Room:      l.room,
		Kind:      types.KindText,
		Message:   replyTombstoneText,
		Timestamp: time.Time{},
		Reactions: make(map[string]*types.Reaction),
		IsSystem:  true,
	}
}
