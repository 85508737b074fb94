package progress

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SkelleTu/UltraPix/internal/domain"
)

type fakeConn struct {
	mu       sync.Mutex
	messages [][]byte
	closed   bool
	closes   int
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.New("use of closed connection")
	}
	f.messages = append(f.messages, append([]byte(nil), data...))
	return nil
}

func (f *fakeConn) SetWriteDeadline(t time.Time) error {
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.closes++
	return nil
}

func (f *fakeConn) received() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.messages...)
}

// breakPeer simulates the remote end going away without the hub noticing.
func (f *fakeConn) breakPeer() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func TestHubDeliversToRemainingSubscriberAfterPeerCloses(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	notifier := NewNotifier(hub, zerolog.Nop())
	a, b := &fakeConn{}, &fakeConn{}
	hub.Subscribe(a)
	hub.Subscribe(b)

	a.breakPeer()
	notifier.PublishProgress(context.Background(), domain.ProgressEvent{JobID: "job-1", Stage: domain.StageGenerating, Progress: 50})

	require.Eventually(t, func() bool { return len(b.received()) == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 5*time.Millisecond, "broken subscriber is removed")
	assert.Empty(t, a.received())

	notifier.PublishCompletion(context.Background(), domain.CompletionEvent{JobID: "job-1", VideoRef: "v", ThumbnailRef: "t"})
	require.Eventually(t, func() bool { return len(b.received()) == 2 }, time.Second, 5*time.Millisecond)

	var env Envelope
	require.NoError(t, json.Unmarshal(b.received()[1], &env))
	assert.Equal(t, TypeCompleted, env.Type)
	assert.JSONEq(t, `{"jobId":"job-1","videoRef":"v","thumbnailRef":"t"}`, string(env.Data))
}

// stalledConn accepts no writes until it is closed, like a peer that stopped
// reading with a full TCP window.
type stalledConn struct {
	release chan struct{}
	once    sync.Once
}

func newStalledConn() *stalledConn {
	return &stalledConn{release: make(chan struct{})}
}

func (s *stalledConn) WriteMessage(messageType int, data []byte) error {
	<-s.release
	return errors.New("use of closed connection")
}

func (s *stalledConn) SetWriteDeadline(t time.Time) error { return nil }

func (s *stalledConn) Close() error {
	s.once.Do(func() { close(s.release) })
	return nil
}

func TestHubStalledSubscriberDoesNotDelayOthers(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	for i := 0; i < 3; i++ {
		hub.Subscribe(newStalledConn())
	}
	healthy := &fakeConn{}
	hub.Subscribe(healthy)

	start := time.Now()
	require.NoError(t, hub.Broadcast(context.Background(), []byte(`{"type":"progress"}`)))
	assert.Less(t, time.Since(start), 100*time.Millisecond, "broadcast must not wait on writers")

	require.Eventually(t, func() bool { return len(healthy.received()) == 1 }, 500*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, 4, hub.Count())
}

func TestHubDropsSubscriberWithFullQueue(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	hub.queueSize = 2
	stuck := newStalledConn()
	hub.Subscribe(stuck)

	// at most one envelope sits in the blocked write, two fill the queue
	for i := 0; i < hub.queueSize+2; i++ {
		require.NoError(t, hub.Broadcast(context.Background(), []byte(`{}`)))
	}

	require.Eventually(t, func() bool { return hub.Count() == 0 }, time.Second, 5*time.Millisecond)
	select {
	case <-stuck.release:
	default:
		t.Fatalf("stalled connection was not closed")
	}
}

func TestHubBroadcastIgnoresCancelledContext(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	a, b := &fakeConn{}, &fakeConn{}
	hub.Subscribe(a)
	hub.Subscribe(b)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, hub.Broadcast(ctx, []byte(`{}`)))

	require.Eventually(t, func() bool {
		return len(a.received()) == 1 && len(b.received()) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestHubRemoveIsIdempotent(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	conn := &fakeConn{}
	id := hub.Subscribe(conn)

	hub.Remove(id)
	hub.Remove(id)
	hub.Remove("unknown")

	assert.Equal(t, 0, hub.Count())
	assert.Equal(t, 1, conn.closes)
	assert.NoError(t, hub.Broadcast(context.Background(), []byte(`{}`)))
}

func TestHubBroadcastWithoutSubscribers(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	notifier := NewNotifier(hub, zerolog.Nop())
	notifier.PublishError(context.Background(), domain.FailureEvent{JobID: "job-1", Error: "boom"})
	assert.Equal(t, 0, hub.Count())
}

func TestHubServesWebsocketSubscribers(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := WebsocketDialer{}.Dial(ctx, url)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	payload, err := Encode(TypeError, domain.FailureEvent{JobID: "job-9", Error: "provider down"})
	require.NoError(t, err)
	require.NoError(t, hub.Broadcast(ctx, payload))

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"error","data":{"jobId":"job-9","error":"provider down"}}`, string(data))

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}
