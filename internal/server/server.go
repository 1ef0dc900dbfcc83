package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/npezzotti/go-watchparty/internal/stats"
	"github.com/npezzotti/go-watchparty/internal/store"
	"github.com/npezzotti/go-watchparty/internal/types"
	"github.com/npezzotti/go-watchparty/internal/videoid"
)

const statusLogInterval = 5 * time.Minute

// Metric names registered with the stats provider.
const (
	MetricActiveRooms       = "NumActiveRooms"
	MetricActiveConnections = "NumActiveConnections"
	MetricMessagesRelayed   = "NumMessagesRelayed"
	MetricRoomsReaped       = "NumRoomsReaped"
)

// PartyServer is the relay's event dispatcher. A single Run goroutine
// handles every inbound event to completion before the next, which is
// what makes the read-modify-write sequences on the store safe.
type PartyServer struct {
	log            *log.Logger
	store          *store.RoomStore
	sessions       *store.SessionRegistry
	stats          stats.StatsProvider
	clients        map[string]*Client
	clientsLock    sync.Mutex
	eventChan      chan *ClientMessage
	registerChan   chan *Client
	deRegisterChan chan *Client
	reapInterval   time.Duration
	roomRetention  time.Duration
	stop           chan struct{}
	done           chan struct{}
}

func NewPartyServer(logger *log.Logger, rs *store.RoomStore, sr *store.SessionRegistry,
	su stats.StatsProvider, reapInterval, roomRetention time.Duration) (*PartyServer, error) {
	if reapInterval <= 0 {
		return nil, fmt.Errorf("reap interval must be positive")
	}

	ps := &PartyServer{
		log:            logger,
		store:          rs,
		sessions:       sr,
		stats:          su,
		clients:        make(map[string]*Client),
		eventChan:      make(chan *ClientMessage, 256),
		registerChan:   make(chan *Client),
		deRegisterChan: make(chan *Client, 256),
		reapInterval:   reapInterval,
		roomRetention:  roomRetention,
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}

	ps.stats.RegisterMetric(MetricActiveRooms)
	ps.stats.RegisterMetric(MetricActiveConnections)
	ps.stats.RegisterMetric(MetricMessagesRelayed)
	ps.stats.RegisterMetric(MetricRoomsReaped)

	return ps, nil
}

func (ps *PartyServer) Run() {
	reapTicker := time.NewTicker(ps.reapInterval)
	statusTicker := time.NewTicker(statusLogInterval)
	defer func() {
		reapTicker.Stop()
		statusTicker.Stop()
	}()

	for {
		select {
		case msg := <-ps.eventChan:
			ps.dispatch(msg)
		case client := <-ps.registerChan:
			ps.log.Printf("adding connection %q", client.id)
			ps.addClient(client)
		case client := <-ps.deRegisterChan:
			ps.log.Printf("removing connection %q", client.id)
			ps.handleDisconnect(client)
			ps.removeClient(client)
		case <-reapTicker.C:
			ps.reap()
		case <-statusTicker.C:
			ps.log.Printf("status: %d rooms, %d connections", ps.store.Count(), ps.NumClients())
		case <-ps.stop:
			close(ps.done)
			return
		}
	}
}

// RegisterClient hands a freshly upgraded connection to the event
// loop.
func (ps *PartyServer) RegisterClient(c *Client) {
	ps.registerChan <- c
}

// Shutdown stops all client pumps and the run loop, bounded by ctx.
func (ps *PartyServer) Shutdown(ctx context.Context) error {
	ps.log.Println("received shutdown signal")

	ps.clientsLock.Lock()
	for _, c := range ps.clients {
		c.stopClient()
	}
	ps.clientsLock.Unlock()

	close(ps.stop)

	select {
	case <-ps.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NumClients returns the number of live connections.
func (ps *PartyServer) NumClients() int {
	ps.clientsLock.Lock()
	defer ps.clientsLock.Unlock()
	return len(ps.clients)
}

func (ps *PartyServer) addClient(c *Client) {
	ps.clientsLock.Lock()
	defer ps.clientsLock.Unlock()
	ps.clients[c.id] = c
	ps.stats.Incr(MetricActiveConnections)
}

func (ps *PartyServer) removeClient(c *Client) {
	ps.clientsLock.Lock()
	defer ps.clientsLock.Unlock()
	if _, ok := ps.clients[c.id]; ok {
		delete(ps.clients, c.id)
		ps.stats.Decr(MetricActiveConnections)
	}
}

func (ps *PartyServer) getClient(id string) (*Client, bool) {
	ps.clientsLock.Lock()
	defer ps.clientsLock.Unlock()
	c, ok := ps.clients[id]
	return c, ok
}

// dispatch routes one inbound event. A panic in a handler must not
// take down the loop or touch other connections, so it is caught here
// and surfaced to the originating connection only.
func (ps *PartyServer) dispatch(msg *ClientMessage) {
	defer func() {
		if r := recover(); r != nil {
			ps.log.Printf("panic handling %q from %q: %v", msg.Event, msg.client.id, r)
			msg.client.queueMessage(newErrorMessage("internal server error"))
		}
	}()

	switch msg.Event {
	case EventJoinRoom:
		ps.handleJoinRoom(msg)
	case EventSendMessage:
		ps.handleSendMessage(msg)
	case EventChangeVideo:
		ps.handleChangeVideo(msg)
	case EventSyncAction:
		ps.handleSyncAction(msg)
	default:
		ps.log.Printf("unknown event %q from %q", msg.Event, msg.client.id)
		msg.client.queueMessage(newErrorMessage("unknown event"))
	}
}

func (ps *PartyServer) handleJoinRoom(msg *ClientMessage) {
	var p JoinRoom
	if err := json.Unmarshal(msg.Data, &p); err != nil {
		ps.log.Println("join_room: bad payload:", err)
		msg.client.queueMessage(newErrorMessage("invalid join_room payload"))
		return
	}

	code := canonicalRoomCode(p.Room)
	if code == "" {
		msg.client.queueMessage(newErrorMessage("room code cannot be empty"))
		return
	}

	// A connection belongs to at most one room. A second join is an
	// implicit leave of the old room.
	if sess, ok := ps.sessions.Lookup(msg.client.id); ok {
		ps.log.Printf("connection %q rejoining from %q to %q", msg.client.id, sess.RoomCode, code)
		ps.leaveRoom(msg.client.id)
	}

	_, created := ps.store.GetOrCreate(code)
	if created {
		ps.log.Printf("created room %q", code)
		ps.stats.Incr(MetricActiveRooms)
	}

	member := types.Member{
		Id:       msg.client.id,
		Username: truncateRunes(p.Username, maxUsernameLen),
		Color:    p.Color,
		JoinedAt: Now(),
	}

	state, err := ps.store.AddMember(code, member)
	if err != nil {
		ps.log.Printf("join_room: add member to %q: %v", code, err)
		msg.client.queueMessage(newErrorMessage("room not found"))
		return
	}

	ps.sessions.Bind(msg.client.id, code, member)

	// Snapshot to the joiner, then the presence broadcast to everyone
	// else and a system notice to the whole room, joiner included.
	msg.client.queueMessage(newJoinedRoom(state))
	ps.broadcast(code, newUserJoined(member), msg.client.id)
	ps.broadcast(code, newSystemMessage(member.Username+" joined the party"), "")

	ps.log.Printf("%q joined room %q", member.Username, code)
}

func (ps *PartyServer) handleSendMessage(msg *ClientMessage) {
	var p SendMessage
	if err := json.Unmarshal(msg.Data, &p); err != nil {
		ps.log.Println("send_message: bad payload:", err)
		msg.client.queueMessage(newErrorMessage("invalid send_message payload"))
		return
	}

	text := strings.TrimSpace(p.Text)
	if text == "" {
		// Whitespace-only chat is dropped without an error.
		return
	}

	code := canonicalRoomCode(p.Room)
	m := newChatMessage(
		truncateRunes(p.Username, maxUsernameLen),
		truncateRunes(text, maxChatTextLen),
		p.Color,
	)

	ps.broadcast(code, m, "")
	ps.stats.Incr(MetricMessagesRelayed)
}

func (ps *PartyServer) handleChangeVideo(msg *ClientMessage) {
	var p ChangeVideo
	if err := json.Unmarshal(msg.Data, &p); err != nil {
		ps.log.Println("change_video: bad payload:", err)
		msg.client.queueMessage(newErrorMessage("invalid change_video payload"))
		return
	}

	code := canonicalRoomCode(p.Room)
	if _, ok := ps.store.Get(code); !ok {
		msg.client.queueMessage(newErrorMessage("room not found"))
		return
	}

	resolved, err := videoid.Resolve(p.VideoId)
	if err != nil || !videoid.Valid(resolved) {
		msg.client.queueMessage(newErrorMessage("invalid video reference"))
		return
	}

	if err := ps.store.SetVideo(code, resolved); err != nil {
		ps.log.Printf("change_video: set video in %q: %v", code, err)
		msg.client.queueMessage(newErrorMessage("room not found"))
		return
	}

	ps.log.Printf("room %q video changed to %q", code, resolved)
	ps.broadcast(code, newUpdateVideo(resolved), "")
	ps.broadcast(code, newSystemMessage("Now playing a new video"), "")
}

func (ps *PartyServer) handleSyncAction(msg *ClientMessage) {
	var p SyncAction
	if err := json.Unmarshal(msg.Data, &p); err != nil {
		ps.log.Println("sync_action: bad payload:", err)
		msg.client.queueMessage(newErrorMessage("invalid sync_action payload"))
		return
	}

	code := canonicalRoomCode(p.Room)
	if _, ok := ps.store.Get(code); !ok {
		// Unknown room is a silent no-op for sync events.
		return
	}

	switch p.Type {
	case store.ActionPlay, store.ActionPause, store.ActionSeek:
	default:
		msg.client.queueMessage(newErrorMessage("invalid sync action type"))
		return
	}

	if err := ps.store.ApplySync(code, p.Type, p.Time); err != nil {
		ps.log.Printf("sync_action: apply to %q: %v", code, err)
		return
	}

	// Never echoed to the sender, its own player would jump.
	ps.broadcast(code, newSyncBroadcast(p.Type, p.Time), msg.client.id)
}

// handleDisconnect closes out a connection's membership. A connection
// that never joined is a benign no-op.
func (ps *PartyServer) handleDisconnect(c *Client) {
	if _, ok := ps.sessions.Lookup(c.id); !ok {
		return
	}

	ps.leaveRoom(c.id)
}

// leaveRoom removes the member owned by connectionId from its room,
// notifies the remaining members and deletes the room if it is now
// empty.
func (ps *PartyServer) leaveRoom(connectionId string) {
	sess, ok := ps.sessions.Lookup(connectionId)
	if !ok {
		return
	}

	member, ok := ps.store.RemoveMember(sess.RoomCode, connectionId)
	if !ok {
		// The store is authoritative over the registry.
		ps.log.Printf("no member %q in room %q, dropping stale session", connectionId, sess.RoomCode)
		ps.sessions.Unbind(connectionId)
		return
	}

	ps.broadcast(sess.RoomCode, newUserLeft(connectionId), connectionId)
	ps.broadcast(sess.RoomCode, newSystemMessage(member.Username+" left the party"), "")

	if ps.store.DeleteIfEmpty(sess.RoomCode) {
		ps.log.Printf("deleted empty room %q", sess.RoomCode)
		ps.stats.Decr(MetricActiveRooms)
	}

	ps.sessions.Unbind(connectionId)
	ps.log.Printf("%q left room %q", member.Username, sess.RoomCode)
}

// broadcast queues msg to every member of the room, optionally
// skipping one connection. Delivery is fire and forget: a full send
// channel drops the message for that connection.
func (ps *PartyServer) broadcast(code string, msg *ServerMessage, skipConnectionId string) {
	state, ok := ps.store.Get(code)
	if !ok {
		return
	}

	for _, member := range state.Users {
		if member.Id == skipConnectionId {
			continue
		}

		if c, ok := ps.getClient(member.Id); ok {
			c.queueMessage(msg)
		}
	}
}

// reap deletes empty rooms older than the retention threshold. It is
// a safety net: the disconnect path already deletes empty rooms
// immediately.
func (ps *PartyServer) reap() {
	reaped := ps.store.ReapEmpty(ps.roomRetention)
	for _, code := range reaped {
		ps.log.Printf("reaped stale room %q", code)
		ps.stats.Decr(MetricActiveRooms)
		ps.stats.Incr(MetricRoomsReaped)
	}
}
