package server

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/npezzotti/go-watchparty/internal/types"
)

// Inbound event names.
const (
	EventJoinRoom    = "join_room"
	EventSendMessage = "send_message"
	EventChangeVideo = "change_video"
	EventSyncAction  = "sync_action"
)

// Outbound event names. EventSyncAction is used in both directions.
const (
	EventJoinedRoom     = "joined_room"
	EventUserJoined     = "user_joined"
	EventReceiveMessage = "receive_message"
	EventUpdateVideo    = "update_video"
	EventUserLeft       = "user_left"
	EventError          = "error"
)

const (
	maxUsernameLen = 15
	maxChatTextLen = 500
)

const (
	systemUsername = "System"
	systemColor    = "#888"
)

// ClientMessage is the envelope for every inbound event. The payload
// is decoded per event by the handler that owns it.
type ClientMessage struct {
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data,omitempty"`
	client *Client
}

type JoinRoom struct {
	Room     string `json:"room"`
	Username string `json:"username"`
	Color    string `json:"color"`
}

type SendMessage struct {
	Room     string `json:"room"`
	Username string `json:"username"`
	Text     string `json:"text"`
	Color    string `json:"color"`
}

type ChangeVideo struct {
	Room    string `json:"room"`
	VideoId string `json:"video_id"`
}

type SyncAction struct {
	Room string  `json:"room"`
	Type string  `json:"type"`
	Time float64 `json:"time"`
}

// ServerMessage is the envelope for every outbound event.
type ServerMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type JoinedRoom struct {
	RoomState types.RoomState `json:"room_state"`
}

type ChatMessage struct {
	Username  string    `json:"username"`
	Text      string    `json:"text"`
	Color     string    `json:"color"`
	Timestamp time.Time `json:"timestamp"`
}

type UpdateVideo struct {
	VideoId string `json:"video_id"`
}

type SyncBroadcast struct {
	Type      string    `json:"type"`
	Time      float64   `json:"time"`
	Timestamp time.Time `json:"timestamp"`
}

type UserLeft struct {
	Id string `json:"id"`
}

type ErrorMessage struct {
	Message string `json:"message"`
}

func newJoinedRoom(state types.RoomState) *ServerMessage {
	return &ServerMessage{
		Event: EventJoinedRoom,
		Data:  JoinedRoom{RoomState: state},
	}
}

func newUserJoined(m types.Member) *ServerMessage {
	return &ServerMessage{
		Event: EventUserJoined,
		Data:  m,
	}
}

func newChatMessage(username, text, color string) *ServerMessage {
	return &ServerMessage{
		Event: EventReceiveMessage,
		Data: ChatMessage{
			Username:  username,
			Text:      text,
			Color:     color,
			Timestamp: Now(),
		},
	}
}

func newSystemMessage(text string) *ServerMessage {
	return newChatMessage(systemUsername, text, systemColor)
}

func newUpdateVideo(videoId string) *ServerMessage {
	return &ServerMessage{
		Event: EventUpdateVideo,
		Data:  UpdateVideo{VideoId: videoId},
	}
}

func newSyncBroadcast(actionType string, position float64) *ServerMessage {
	return &ServerMessage{
		Event: EventSyncAction,
		Data: SyncBroadcast{
			Type:      actionType,
			Time:      position,
			Timestamp: Now(),
		},
	}
}

func newUserLeft(connectionId string) *ServerMessage {
	return &ServerMessage{
		Event: EventUserLeft,
		Data:  UserLeft{Id: connectionId},
	}
}

func newErrorMessage(message string) *ServerMessage {
	return &ServerMessage{
		Event: EventError,
		Data:  ErrorMessage{Message: message},
	}
}

// canonicalRoomCode normalizes a user-supplied room code. Room codes
// are case-insensitive on the wire and uppercase in the store.
func canonicalRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// truncateRunes caps s at max code points.
func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}

	return string(runes[:max])
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
