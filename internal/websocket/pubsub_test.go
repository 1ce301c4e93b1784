package websocket

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/contest-api/internal/config"
)

// memoryPubSub доставляет каждое сообщение всем подписчикам канала
type memoryPubSub struct {
	mu   sync.Mutex
	subs map[string][]chan []byte
}

func newMemoryPubSub() *memoryPubSub {
	return &memoryPubSub{subs: make(map[string][]chan []byte)}
}

func (p *memoryPubSub) Publish(ctx context.Context, channel string, message []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range p.subs[channel] {
		ch <- message
	}
	return nil
}

func (p *memoryPubSub) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, 16)
	p.mu.Lock()
	p.subs[channel] = append(p.subs[channel], ch)
	p.mu.Unlock()
	return ch, nil
}

func (p *memoryPubSub) Close() error { return nil }

type delivery struct {
	contestID uint
	payload   string
}

func collector() (func(uint, []byte) int, <-chan delivery) {
	out := make(chan delivery, 16)
	return func(id uint, payload []byte) int {
		out <- delivery{contestID: id, payload: string(payload)}
		return 1
	}, out
}

func TestClusterHub_DeliversToOtherInstancesOnly(t *testing.T) {
	bus := newMemoryPubSub()
	deliverA, gotA := collector()
	deliverB, gotB := collector()

	a := NewClusterHub(config.ClusterConfig{Enabled: true, InstanceID: "a"}, bus, deliverA)
	b := NewClusterHub(config.ClusterConfig{Enabled: true, InstanceID: "b"}, bus, deliverB)
	require.NoError(t, a.Start())
	require.NoError(t, b.Start())
	defer a.Stop()
	defer b.Stop()

	require.NoError(t, a.Publish(3, []byte(`{"type":"contest:completed"}`)))

	select {
	case d := <-gotB:
		assert.Equal(t, uint(3), d.contestID)
		assert.JSONEq(t, `{"type":"contest:completed"}`, d.payload)
	case <-time.After(time.Second):
		t.Fatal("instance b did not receive the event")
	}

	select {
	case d := <-gotA:
		t.Fatalf("instance a received its own event: %+v", d)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestClusterHub_DisabledIsNoop(t *testing.T) {
	bus := newMemoryPubSub()
	deliver, _ := collector()
	ch := NewClusterHub(config.ClusterConfig{Enabled: false}, bus, deliver)

	require.NoError(t, ch.Start())
	require.NoError(t, ch.Publish(1, []byte(`{}`)))
	ch.Stop()

	assert.NotEmpty(t, ch.InstanceID())
	assert.Empty(t, bus.subs)
}

func TestManager_NotifyRoundPublishesToCluster(t *testing.T) {
	bus := newMemoryPubSub()
	remoteHub := NewHub()
	remoteViewer := newTestClient(remoteHub, 4)
	remoteHub.Register(remoteViewer)
	remoteHub.Subscribe(remoteViewer, 8)

	local := NewClusterHub(config.ClusterConfig{Enabled: true, InstanceID: "local"}, bus, NewHub().BroadcastToContest)
	remote := NewClusterHub(config.ClusterConfig{Enabled: true, InstanceID: "remote"}, bus, remoteHub.BroadcastToContest)
	require.NoError(t, local.Start())
	require.NoError(t, remote.Start())
	defer local.Stop()
	defer remote.Stop()

	m := NewManager(NewHub(), local)
	m.NotifyRound(8, ROUND_COMPLETED, map[string]int{"round": 2})

	assert.Eventually(t, func() bool {
		return len(remoteViewer.send) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestNoOpPubSub_SubscribeClosesWithContext(t *testing.T) {
	p := &NoOpPubSub{}
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := p.Subscribe(ctx, "any")
	require.NoError(t, err)

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}
}
