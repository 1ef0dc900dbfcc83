package types

import (
	"time"
)

type Member struct {
	Id       string    `json:"id"`
	Username string    `json:"username"`
	Color    string    `json:"color"`
	JoinedAt time.Time `json:"joined_at,omitempty"`
}

type VideoState struct {
	Playing    bool      `json:"playing"`
	Time       float64   `json:"time"`
	LastUpdate time.Time `json:"last_update,omitempty"`
}

// RoomState is the full snapshot of a room sent to a joining connection.
type RoomState struct {
	Code         string     `json:"code"`
	CurrentVideo string     `json:"current_video,omitempty"`
	VideoState   VideoState `json:"video_state"`
	Users        []Member   `json:"users"`
	CreatedAt    time.Time  `json:"created_at,omitempty"`
}
