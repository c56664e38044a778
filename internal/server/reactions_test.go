package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatterbox/internal/types"
)

func newReactionMessage() *types.Message {
	return &types.Message{
		Id:        "msg-1",
		Username:  "alice",
		Room:      "general",
		Kind:      types.KindText,
		Message:   "hi",
		Reactions: make(map[string]*types.Reaction),
	}
}

// assertReactionInvariants checks that every emoji entry keeps
// count == len(users) and count >= 1, and that no user appears under
// more than one emoji.
func assertReactionInvariants(t *testing.T, msg *types.Message) {
	t.Helper()

	seen := make(map[string]string)
	for emoji, r := range msg.Reactions {
		assert.Equalf(t, len(r.Users), r.Count, "expected count == |users| for %q", emoji)
		assert.GreaterOrEqualf(t, r.Count, 1, "expected no zero-count entry for %q", emoji)
		for _, u := range r.Users {
			prev, dup := seen[u]
			assert.Falsef(t, dup, "user %q reacted with both %q and %q", u, prev, emoji)
			seen[u] = emoji
		}
	}
}

func TestApplyReaction_Add(t *testing.T) {
	msg := newReactionMessage()

	changed := applyReaction(msg, "bob", "👍", reactionAdd)
	assert.True(t, changed, "expected add to change the map")
	require.Contains(t, msg.Reactions, "👍")
	assert.Equal(t, 1, msg.Reactions["👍"].Count, "expected count 1")
	assert.Equal(t, []string{"bob"}, msg.Reactions["👍"].Users, "expected bob in user set")
	assertReactionInvariants(t, msg)
}

func TestApplyReaction_SingleReactionPerUser(t *testing.T) {
	msg := newReactionMessage()

	applyReaction(msg, "bob", "👍", reactionAdd)
	applyReaction(msg, "bob", "❤️", reactionAdd)

	assert.NotContains(t, msg.Reactions, "👍", "expected prior reaction removed")
	require.Contains(t, msg.Reactions, "❤️")
	assert.Equal(t, 1, msg.Reactions["❤️"].Count, "expected count 1")
	assert.Equal(t, []string{"bob"}, msg.Reactions["❤️"].Users, "expected only bob")
	assertReactionInvariants(t, msg)
}

func TestApplyReaction_SharedEmoji(t *testing.T) {
	msg := newReactionMessage()

	applyReaction(msg, "bob", "👍", reactionAdd)
	applyReaction(msg, "carol", "👍", reactionAdd)

	require.Contains(t, msg.Reactions, "👍")
	assert.Equal(t, 2, msg.Reactions["👍"].Count, "expected both users counted")
	assertReactionInvariants(t, msg)

	// carol switching emoji only removes carol
	applyReaction(msg, "carol", "😂", reactionAdd)
	assert.Equal(t, 1, msg.Reactions["👍"].Count, "expected bob's reaction retained")
	assert.Equal(t, []string{"bob"}, msg.Reactions["👍"].Users)
	assertReactionInvariants(t, msg)
}

func TestApplyReaction_Remove(t *testing.T) {
	t.Run("removes existing reaction", func(t *testing.T) {
		msg := newReactionMessage()
		applyReaction(msg, "bob", "👍", reactionAdd)

		changed := applyReaction(msg, "bob", "👍", reactionRemove)
		assert.True(t, changed, "expected remove to change the map")
		assert.NotContains(t, msg.Reactions, "👍", "expected zero-count entry deleted")
	})

	t.Run("remove of absent emoji is a no-op", func(t *testing.T) {
		msg := newReactionMessage()
		changed := applyReaction(msg, "bob", "👍", reactionRemove)
		assert.False(t, changed, "expected no change")
	})

	t.Run("remove by non-reacting user is a no-op", func(t *testing.T) {
		msg := newReactionMessage()
		applyReaction(msg, "bob", "👍", reactionAdd)

		changed := applyReaction(msg, "carol", "👍", reactionRemove)
		assert.False(t, changed, "expected no change")
		assert.Equal(t, 1, msg.Reactions["👍"].Count, "expected bob's reaction retained")
	})

	t.Run("unknown action is a no-op", func(t *testing.T) {
		msg := newReactionMessage()
		assert.False(t, applyReaction(msg, "bob", "👍", "toggle"), "expected unknown action ignored")
	})
}

func TestApplyReaction_ToggleSequences(t *testing.T) {
	msg := newReactionMessage()
	users := []string{"alice", "bob", "carol"}
	emojis := []string{"👍", "❤️", "😂"}

	for i := 0; i < 30; i++ {
		u := users[i%len(users)]
		e := emojis[(i/2)%len(emojis)]
		if i%5 == 0 {
			applyReaction(msg, u, e, reactionRemove)
		} else {
			applyReaction(msg, u, e, reactionAdd)
		}
		assertReactionInvariants(t, msg)
	}
}
