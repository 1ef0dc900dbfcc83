package server

import (
	"testing"
	"time"

	"github.com/npezzotti/go-watchparty/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestMessageConstructors(t *testing.T) {
	t.Run("joined_room", func(t *testing.T) {
		state := types.RoomState{Code: "ABC123"}
		msg := newJoinedRoom(state)
		assert.Equal(t, EventJoinedRoom, msg.Event, "expected joined_room event")
		assert.Equal(t, state, msg.Data.(JoinedRoom).RoomState, "expected room state payload")
	})

	t.Run("user_joined", func(t *testing.T) {
		m := types.Member{Id: "conn-1", Username: "alice"}
		msg := newUserJoined(m)
		assert.Equal(t, EventUserJoined, msg.Event, "expected user_joined event")
		assert.Equal(t, m, msg.Data.(types.Member), "expected member payload")
	})

	t.Run("receive_message", func(t *testing.T) {
		msg := newChatMessage("alice", "hello", "#f00")
		assert.Equal(t, EventReceiveMessage, msg.Event, "expected receive_message event")

		chat := msg.Data.(ChatMessage)
		assert.Equal(t, "alice", chat.Username, "expected username")
		assert.Equal(t, "hello", chat.Text, "expected text")
		assert.Equal(t, "#f00", chat.Color, "expected color")
		assert.WithinDuration(t, Now(), chat.Timestamp, time.Second, "expected server-assigned timestamp")
	})

	t.Run("system message", func(t *testing.T) {
		msg := newSystemMessage("alice joined the party")
		chat := msg.Data.(ChatMessage)
		assert.Equal(t, systemUsername, chat.Username, "expected system username")
		assert.Equal(t, systemColor, chat.Color, "expected system color")
		assert.Equal(t, "alice joined the party", chat.Text, "expected notice text")
	})

	t.Run("update_video", func(t *testing.T) {
		msg := newUpdateVideo("dQw4w9WgXcQ")
		assert.Equal(t, EventUpdateVideo, msg.Event, "expected update_video event")
		assert.Equal(t, "dQw4w9WgXcQ", msg.Data.(UpdateVideo).VideoId, "expected video id payload")
	})

	t.Run("sync_action", func(t *testing.T) {
		msg := newSyncBroadcast("play", 42.5)
		assert.Equal(t, EventSyncAction, msg.Event, "expected sync_action event")

		sb := msg.Data.(SyncBroadcast)
		assert.Equal(t, "play", sb.Type, "expected action type")
		assert.Equal(t, 42.5, sb.Time, "expected position")
		assert.WithinDuration(t, Now(), sb.Timestamp, time.Second, "expected server timestamp")
	})

	t.Run("user_left", func(t *testing.T) {
		msg := newUserLeft("conn-1")
		assert.Equal(t, EventUserLeft, msg.Event, "expected user_left event")
		assert.Equal(t, "conn-1", msg.Data.(UserLeft).Id, "expected connection id payload")
	})

	t.Run("error", func(t *testing.T) {
		msg := newErrorMessage("room not found")
		assert.Equal(t, EventError, msg.Event, "expected error event")
		assert.Equal(t, "room not found", msg.Data.(ErrorMessage).Message, "expected error message payload")
	})
}

func Test_canonicalRoomCode(t *testing.T) {
	tcases := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "lowercase",
			input:    "abc123",
			expected: "ABC123",
		},
		{
			name:     "surrounding whitespace",
			input:    "  abc123  ",
			expected: "ABC123",
		},
		{
			name:     "already canonical",
			input:    "ABC123",
			expected: "ABC123",
		},
		{
			name:     "whitespace only",
			input:    "   ",
			expected: "",
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, canonicalRoomCode(tc.input), "expected canonical room code for %q", tc.input)
		})
	}
}

func Test_truncateRunes(t *testing.T) {
	tcases := []struct {
		name     string
		input    string
		max      int
		expected string
	}{
		{
			name:     "shorter than max",
			input:    "alice",
			max:      15,
			expected: "alice",
		},
		{
			name:     "exactly max",
			input:    "123456789012345",
			max:      15,
			expected: "123456789012345",
		},
		{
			name:     "longer than max",
			input:    "a-very-long-username-indeed",
			max:      15,
			expected: "a-very-long-use",
		},
		{
			name:     "multibyte runes counted as single units",
			input:    "héllo wörld fünf",
			max:      15,
			expected: "héllo wörld fün",
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, truncateRunes(tc.input, tc.max), "expected truncated string for %q", tc.input)
		})
	}
}
