package websocket

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(hub *Hub, buffer int) *Client {
	cfg := DefaultClientConfig()
	cfg.BufferSize = buffer
	return NewClient(hub, nil, "", cfg)
}

func drain(c *Client) [][]byte {
	var out [][]byte
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return out
			}
			out = append(out, msg)
		default:
			return out
		}
	}
}

func TestHub_BroadcastOnlyToContestSubscribers(t *testing.T) {
	hub := NewHub()
	a := newTestClient(hub, 4)
	b := newTestClient(hub, 4)
	idle := newTestClient(hub, 4)
	hub.Register(a)
	hub.Register(b)
	hub.Register(idle)
	hub.Subscribe(a, 1)
	hub.Subscribe(b, 2)

	delivered := hub.BroadcastToContest(1, []byte(`{"type":"round:completed"}`))

	assert.Equal(t, 1, delivered)
	assert.Len(t, drain(a), 1)
	assert.Empty(t, drain(b))
	assert.Empty(t, drain(idle))
	assert.Equal(t, 3, hub.ClientCount())
	assert.Equal(t, 1, hub.ViewerCount(1))
}

func TestHub_SubscribeSwitchesContest(t *testing.T) {
	hub := NewHub()
	c := newTestClient(hub, 4)
	hub.Register(c)

	hub.Subscribe(c, 1)
	hub.Subscribe(c, 2)

	assert.Equal(t, uint(2), c.ContestID())
	assert.Equal(t, 0, hub.ViewerCount(1))
	assert.Equal(t, 1, hub.ViewerCount(2))

	hub.Unsubscribe(c)
	assert.Equal(t, uint(0), c.ContestID())
	assert.Equal(t, 0, hub.ViewerCount(2))
}

func TestHub_SubscribeBeforeRegister(t *testing.T) {
	hub := NewHub()
	c := newTestClient(hub, 4)

	hub.Subscribe(c, 7)
	assert.Equal(t, 0, hub.ViewerCount(7))

	hub.Register(c)
	assert.Equal(t, 1, hub.ViewerCount(7))
}

func TestHub_UnregisterClosesSendOnce(t *testing.T) {
	hub := NewHub()
	c := newTestClient(hub, 4)
	hub.Register(c)
	hub.Subscribe(c, 3)

	hub.Unregister(c)
	hub.Unregister(c)

	_, ok := <-c.send
	assert.False(t, ok)
	assert.False(t, c.Send([]byte("late")))
	assert.Equal(t, 0, hub.ClientCount())
	assert.Equal(t, 0, hub.ViewerCount(3))
}

func TestHub_SlowClientIsDropped(t *testing.T) {
	hub := NewHub()
	slow := newTestClient(hub, 1)
	hub.Register(slow)
	hub.Subscribe(slow, 1)

	assert.Equal(t, 1, hub.BroadcastToContest(1, []byte("1")))
	for i := 0; i < maxBufferWarnings; i++ {
		assert.Equal(t, 0, hub.BroadcastToContest(1, []byte("x")))
	}

	assert.Equal(t, 0, hub.ClientCount())
	msgs := drain(slow)
	require.Len(t, msgs, 1)
	assert.Equal(t, "1", string(msgs[0]))
}

func TestHub_SendJSON(t *testing.T) {
	hub := NewHub()
	c := newTestClient(hub, 1)
	hub.Register(c)

	require.NoError(t, hub.SendJSON(c, Event{Type: SERVER_HEARTBEAT, ContestID: 5}))
	assert.Error(t, hub.SendJSON(c, Event{Type: SERVER_HEARTBEAT}))

	var got Event
	require.NoError(t, json.Unmarshal(<-c.send, &got))
	assert.Equal(t, SERVER_HEARTBEAT, got.Type)
	assert.Equal(t, uint(5), got.ContestID)
}

func TestHub_Close(t *testing.T) {
	hub := NewHub()
	c := newTestClient(hub, 1)
	hub.Register(c)
	hub.Subscribe(c, 1)

	hub.Close()

	_, ok := <-c.send
	assert.False(t, ok)
	assert.Equal(t, 0, hub.ClientCount())
	assert.Equal(t, 0, hub.BroadcastToContest(1, []byte("x")))
}
