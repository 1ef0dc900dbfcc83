package store

import (
	"testing"

	"github.com/npezzotti/go-watchparty/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestSessionRegistry(t *testing.T) {
	r := NewSessionRegistry()
	member := types.Member{Id: "conn-1", Username: "alice", Color: "#f00"}

	_, ok := r.Lookup("conn-1")
	assert.False(t, ok, "expected no session before bind")

	r.Bind("conn-1", "ABC123", member)
	assert.Equal(t, 1, r.Count(), "expected one bound session")

	s, ok := r.Lookup("conn-1")
	assert.True(t, ok, "expected session after bind")
	assert.Equal(t, "ABC123", s.RoomCode, "expected room code to match")
	assert.Equal(t, member, s.Member, "expected member snapshot to match")

	// Rebinding replaces the previous session.
	r.Bind("conn-1", "XYZ789", member)
	s, ok = r.Lookup("conn-1")
	assert.True(t, ok, "expected session after rebind")
	assert.Equal(t, "XYZ789", s.RoomCode, "expected rebind to replace the room code")
	assert.Equal(t, 1, r.Count(), "expected rebind to not add a session")

	s, ok = r.Unbind("conn-1")
	assert.True(t, ok, "expected unbind to return the session")
	assert.Equal(t, "XYZ789", s.RoomCode, "expected unbound session room code to match")
	assert.Equal(t, 0, r.Count(), "expected registry to be empty after unbind")

	_, ok = r.Unbind("conn-1")
	assert.False(t, ok, "expected unbind of unknown connection to report not found")
}

// Every member in a room's member list must have exactly one registry
// entry and vice versa. The store is authoritative, the registry is a
// derived index.
func TestSessionRegistry_ConsistencyWithStore(t *testing.T) {
	s := NewRoomStore()
	r := NewSessionRegistry()

	s.GetOrCreate("ABC123")
	members := []types.Member{
		{Id: "conn-1", Username: "alice"},
		{Id: "conn-2", Username: "bob"},
	}
	for _, m := range members {
		_, err := s.AddMember("ABC123", m)
		assert.NoError(t, err)
		r.Bind(m.Id, "ABC123", m)
	}

	state, ok := s.Get("ABC123")
	assert.True(t, ok, "expected room to exist")
	assert.Equal(t, len(state.Users), r.Count(), "expected one registry entry per member")

	for _, m := range state.Users {
		sess, ok := r.Lookup(m.Id)
		assert.Truef(t, ok, "expected registry entry for member %q", m.Id)
		assert.Equal(t, "ABC123", sess.RoomCode, "expected registry to point at the member's room")
		assert.Equal(t, m, sess.Member, "expected registry member snapshot to match the store")
	}

	removed, ok := s.RemoveMember("ABC123", "conn-1")
	assert.True(t, ok, "expected member to be removed from store")
	sess, ok := r.Unbind(removed.Id)
	assert.True(t, ok, "expected member to be unbound from registry")
	assert.Equal(t, removed, sess.Member, "expected store and registry to agree on the removed member")

	state, _ = s.Get("ABC123")
	assert.Equal(t, len(state.Users), r.Count(), "expected counts to stay consistent after removal")
}
