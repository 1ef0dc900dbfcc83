// Package store holds the in-memory room table and the connection
// session index. All state lives for the lifetime of the process.
package store

import (
	"errors"
	"sync"
	"time"

	"github.com/npezzotti/go-watchparty/internal/types"
)

var ErrRoomNotFound = errors.New("room not found")

// Sync action types carried by sync_action events.
const (
	ActionPlay  = "play"
	ActionPause = "pause"
	ActionSeek  = "seek"
)

type room struct {
	code         string
	currentVideo string
	videoState   types.VideoState
	members      []types.Member
	createdAt    time.Time
}

func (r *room) snapshot() types.RoomState {
	members := make([]types.Member, len(r.members))
	copy(members, r.members)

	return types.RoomState{
		Code:         r.code,
		CurrentVideo: r.currentVideo,
		VideoState:   r.videoState,
		Users:        members,
		CreatedAt:    r.createdAt,
	}
}

// RoomStore is the authoritative table of rooms keyed by room code.
// The relay event loop is the only writer, but the HTTP status
// handlers and the reaper read concurrently, so every access goes
// through the mutex.
type RoomStore struct {
	mu    sync.Mutex
	rooms map[string]*room
}

func NewRoomStore() *RoomStore {
	return &RoomStore{
		rooms: make(map[string]*room),
	}
}

// GetOrCreate returns a snapshot of the room with the given code,
// creating it with default state if it does not exist. The second
// return value reports whether the room was created by this call.
func (s *RoomStore) GetOrCreate(code string) (types.RoomState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[code]
	if !ok {
		r = &room{
			code:      code,
			createdAt: time.Now().UTC(),
		}
		s.rooms[code] = r
	}

	return r.snapshot(), !ok
}

// Get returns a snapshot of the room with the given code.
func (s *RoomStore) Get(code string) (types.RoomState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[code]
	if !ok {
		return types.RoomState{}, false
	}

	return r.snapshot(), true
}

// SetVideo sets the room's current video and resets the playback state
// to playing from the start.
func (s *RoomStore) SetVideo(code, videoId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[code]
	if !ok {
		return ErrRoomNotFound
	}

	r.currentVideo = videoId
	r.videoState = types.VideoState{
		Playing:    true,
		Time:       0,
		LastUpdate: time.Now().UTC(),
	}

	return nil
}

// ApplySync records a playback action. Playing is derived solely from
// whether the action is a play: a seek while paused stays paused. Last
// writer wins, the server never reconciles positions.
func (s *RoomStore) ApplySync(code, action string, position float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[code]
	if !ok {
		return ErrRoomNotFound
	}

	r.videoState = types.VideoState{
		Playing:    action == ActionPlay,
		Time:       position,
		LastUpdate: time.Now().UTC(),
	}

	return nil
}

// AddMember appends a member to the room's member list and returns the
// updated room snapshot, which includes the new member.
func (s *RoomStore) AddMember(code string, m types.Member) (types.RoomState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[code]
	if !ok {
		return types.RoomState{}, ErrRoomNotFound
	}

	r.members = append(r.members, m)
	return r.snapshot(), nil
}

// RemoveMember removes the member owned by connectionId from the room
// and returns it.
func (s *RoomStore) RemoveMember(code, connectionId string) (types.Member, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[code]
	if !ok {
		return types.Member{}, false
	}

	for i, m := range r.members {
		if m.Id == connectionId {
			r.members = append(r.members[:i], r.members[i+1:]...)
			return m, true
		}
	}

	return types.Member{}, false
}

// DeleteIfEmpty removes the room iff it has no members.
func (s *RoomStore) DeleteIfEmpty(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[code]
	if !ok || len(r.members) > 0 {
		return false
	}

	delete(s.rooms, code)
	return true
}

// Count returns the number of rooms currently in the store.
func (s *RoomStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.rooms)
}

// ReapEmpty deletes every room with no members whose age exceeds
// retention and returns the deleted room codes. Safe to call at any
// time, an empty sweep is a no-op.
func (s *RoomStore) ReapEmpty(retention time.Duration) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().Add(-retention)

	var reaped []string
	for code, r := range s.rooms {
		if len(r.members) == 0 && r.createdAt.Before(cutoff) {
			delete(s.rooms, code)
			reaped = append(reaped, code)
		}
	}

	return reaped
}
