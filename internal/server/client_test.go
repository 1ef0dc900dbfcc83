package server

import (
	"testing"
	"time"

	"github.com/npezzotti/go-watchparty/internal/stats"
	"github.com/npezzotti/go-watchparty/internal/testutil"
	"github.com/stretchr/testify/assert"
)

func Test_queueMessage(t *testing.T) {
	t.Run("successful queue", func(t *testing.T) {
		c := &Client{
			send: make(chan *ServerMessage, 1),
			log:  testutil.TestLogger(t),
		}

		res := c.queueMessage(&ServerMessage{})
		assert.True(t, res, "expected queueMessage to return true when channel is not full")

		select {
		case msg := <-c.send:
			assert.NotNil(t, msg, "expected a message to be sent to the client")
		default:
			t.Error("expected a message to be sent to the client, but none was sent")
		}
	})
	t.Run("channel full", func(t *testing.T) {
		c := &Client{
			send: make(chan *ServerMessage, 1),
			log:  testutil.TestLogger(t),
		}

		c.send <- &ServerMessage{} // Pre-fill the send channel to simulate a full channel
		res := c.queueMessage(&ServerMessage{})
		assert.False(t, res, "expected queueMessage to return false when channel is full")
	})
}

func Test_serializeMessage(t *testing.T) {
	message := newChatMessage("alice", "hello", "#f00")
	ts := message.Data.(ChatMessage).Timestamp.Format(time.RFC3339Nano)

	expected := `{"event":"receive_message","data":{"username":"alice","text":"hello","color":"#f00","timestamp":"` +
		ts + `"}}`

	bytes, err := serializeMessage(message)
	assert.NoError(t, err, "expected no error during serialization")
	assert.Equal(t, expected, string(bytes), "expected serialized message to match the expected format")
}

func Test_stopClient(t *testing.T) {
	c := &Client{
		stop: make(chan struct{}),
	}

	c.stopClient()

	select {
	case <-c.stop:
		// Channel is closed as expected
	default:
		t.Error("expected stop channel to be closed")
	}

	// A second stop must not panic.
	c.stopClient()
}

func Test_cleanup(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)

	ps := newTestPartyServer(t, su)
	c := newTestClient(t, "conn-1", ps)

	c.cleanup()

	select {
	case got := <-ps.deRegisterChan:
		assert.Equal(t, c, got, "expected client to be handed to the deregister channel")
	default:
		t.Error("expected client to be queued for deregistration")
	}

	select {
	case <-c.stop:
		// stopped as expected
	default:
		t.Error("expected stop channel to be closed after cleanup")
	}
}
