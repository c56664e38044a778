package types

import (
	"slices"
	"time"
)

type Status string

const (
	StatusOnline Status = "online"
	StatusIdle   Status = "idle"
)

// User is the roster view of a connected user, as delivered in
// update-users payloads.
type User struct {
	Id          string `json:"id"`
	Username    string `json:"username"`
	Status      Status `json:"status"`
	AvatarIndex int    `json:"avatarIndex"`
}

type MessageKind string

const (
	KindText MessageKind = "text"
	KindFile MessageKind = "file"
)

// Reaction is the aggregate view of a single emoji on a message.
// Count always equals len(Users); zero-count entries are deleted
// rather than kept.
type Reaction struct {
	Count int      `json:"count"`
	Users []string `json:"users"`
}

// FileInfo is the metadata of a file message. The bytes are never
// uploaded; Url is a client-synthesized blob reference.
type FileInfo struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Url  string `json:"url"`
}

// Message is a single entry in a room's log. Room is the room name at
// send time; a message does not follow its author across rooms.
// ReplyTo is a weak reference and may dangle once the referent is
// deleted.
type Message struct {
	Id          string               `json:"id"`
	Username    string               `json:"username"`
	Room        string               `json:"room"`
	Kind        MessageKind          `json:"type"`
	Message     string               `json:"message,omitempty"`
	File        *FileInfo            `json:"file,omitempty"`
	Timestamp   time.Time            `json:"timestamp"`
	Edited      bool                 `json:"edited"`
	ReplyTo     string               `json:"replyTo,omitempty"`
	Reactions   map[string]*Reaction `json:"reactions"`
	AvatarIndex int                  `json:"avatarIndex,omitempty"`
	IsSystem    bool                 `json:"isSystem,omitempty"`
}

// Clone returns a deep copy safe to hand to another goroutine. The
// live message stays confined to its room goroutine; everything that
// leaves the room is a clone.
func (m *Message) Clone() *Message {
	out := *m
	if m.File != nil {
		f := *m.File
		out.File = &f
	}
	out.Reactions = CloneReactions(m.Reactions)
	return &out
}

// CloneReactions deep-copies a reaction map, including the user sets.
func CloneReactions(reactions map[string]*Reaction) map[string]*Reaction {
	out := make(map[string]*Reaction, len(reactions))
	for emoji, r := range reactions {
		out[emoji] = &Reaction{Count: r.Count, Users: slices.Clone(r.Users)}
	}
	return out
}
