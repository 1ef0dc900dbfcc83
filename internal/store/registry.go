package store

import (
	"sync"

	"github.com/npezzotti/go-watchparty/internal/types"
)

// Session records which room a connection joined and the member it
// owns there.
type Session struct {
	RoomCode string
	Member   types.Member
}

// SessionRegistry is the reverse index from connection id to session.
// It exists so disconnect handling is a single lookup instead of a
// scan of every room. It is derived state: the RoomStore member lists
// are authoritative.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]Session),
	}
}

// Bind associates a connection with the room and member it joined,
// replacing any previous binding.
func (r *SessionRegistry) Bind(connectionId, roomCode string, m types.Member) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[connectionId] = Session{RoomCode: roomCode, Member: m}
}

// Unbind removes and returns the session for connectionId.
func (r *SessionRegistry) Unbind(connectionId string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[connectionId]
	if ok {
		delete(r.sessions, connectionId)
	}

	return s, ok
}

// Lookup returns the session for connectionId without removing it.
func (r *SessionRegistry) Lookup(connectionId string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[connectionId]
	return s, ok
}

// Count returns the number of bound sessions.
func (r *SessionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}
