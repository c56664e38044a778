package server

import (
	"slices"

	"chatterbox/internal/types"
)

const (
	reactionAdd    = "add"
	reactionRemove = "remove"
)

// applyReaction mutates a message's reaction map under the
// single-reaction-per-user rule: adding an emoji first clears any
// other reaction the user holds on the message. Entries that drop to
// zero are deleted, never kept. Reports whether the map changed.
// Like the rest of a room's state, the map is only ever touched from
// the room goroutine.
func applyReaction(msg *types.Message, username, emoji, action string) bool {
	switch action {
	case reactionAdd:
		stripUserReaction(msg, username)

		r, ok := msg.Reactions[emoji]
		if !ok {
			r = &types.Reaction{}
			msg.Reactions[emoji] = r
		}
		r.Users = append(r.Users, username)
		r.Count++
		return true
	case reactionRemove:
		return stripUserEmoji(msg, username, emoji)
	}

	return false
}

// stripUserReaction removes the user from every emoji on the message.
func stripUserReaction(msg *types.Message, username string) {
	for emoji := range msg.Reactions {
		stripUserEmoji(msg, username, emoji)
	}
}

func stripUserEmoji(msg *types.Message, username, emoji string) bool {
	r, ok := msg.Reactions[emoji]
	if !ok {
		return false
	}

	i := slices.Index(r.Users, username)
	if i < 0 {
		return false
	}

	r.Users = slices.Delete(r.Users, i, i+1)
	r.Count--
	if r.Count == 0 {
		delete(msg.Reactions, emoji)
	}
	return true
}
