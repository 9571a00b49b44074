package websocket

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/anjiri1684/tutor_booking/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []Envelope
	fail   bool
	closed bool
}

func (c *fakeConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("broken pipe")
	}
	c.frames = append(c.frames, v.(Envelope))
	return nil
}

func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

var errWriteTimeout = errors.New("i/o timeout")

// stalledConn never completes a write: like a socket whose peer stopped
// reading, a write only returns once the write deadline passes.
type stalledConn struct {
	mu       sync.Mutex
	deadline time.Time
	closed   bool
	release  chan struct{}
}

func newStalledConn() *stalledConn { return &stalledConn{release: make(chan struct{})} }

func (c *stalledConn) SetWriteDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deadline = t
	return nil
}

func (c *stalledConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	deadline := c.deadline
	c.mu.Unlock()
	if deadline.IsZero() {
		<-c.release
		return errWriteTimeout
	}
	select {
	case <-time.After(time.Until(deadline)):
	case <-c.release:
	}
	return errWriteTimeout
}

func (c *stalledConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *stalledConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type fakePresence struct {
	touched, cleared []uuid.UUID
}

func (p *fakePresence) Touch(ctx context.Context, id uuid.UUID) error {
	p.touched = append(p.touched, id)
	return nil
}

func (p *fakePresence) Clear(ctx context.Context, id uuid.UUID) error {
	p.cleared = append(p.cleared, id)
	return nil
}

func TestHubOccupancyFollowsConnections(t *testing.T) {
	hub := NewHub(logger.Nop())
	presence := &fakePresence{}
	hub.SetPresence(presence)
	ctx := context.Background()
	user := uuid.New()

	occupied, err := hub.Occupied(ctx, user)
	require.NoError(t, err)
	assert.False(t, occupied)

	tab1 := &Client{UserID: user, Conn: &fakeConn{}}
	tab2 := &Client{UserID: user, Conn: &fakeConn{}}
	hub.Register(tab1)
	hub.Register(tab2)
	occupied, _ = hub.Occupied(ctx, user)
	assert.True(t, occupied)
	assert.Equal(t, []uuid.UUID{user}, presence.touched)

	hub.Unregister(tab1)
	occupied, _ = hub.Occupied(ctx, user)
	assert.True(t, occupied)
	assert.Empty(t, presence.cleared)

	hub.Unregister(tab2)
	occupied, _ = hub.Occupied(ctx, user)
	assert.False(t, occupied)
	assert.Equal(t, []uuid.UUID{user}, presence.cleared)
}

func TestHubPushWritesEnvelopeToEveryConnection(t *testing.T) {
	hub := NewHub(logger.Nop())
	user := uuid.New()
	a, b := &fakeConn{}, &fakeConn{}
	hub.Register(&Client{UserID: user, Conn: a})
	hub.Register(&Client{UserID: user, Conn: b})

	require.NoError(t, hub.Push(context.Background(), user, "direct_message", map[string]string{"content": "hi"}))
	for _, c := range []*fakeConn{a, b} {
		require.Len(t, c.frames, 1)
		assert.Equal(t, "direct_message", c.frames[0].Event)
	}

	err := hub.Push(context.Background(), uuid.New(), "direct_message", nil)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestHubDropsBrokenConnections(t *testing.T) {
	hub := NewHub(logger.Nop())
	user := uuid.New()
	broken := &fakeConn{fail: true}
	hub.Register(&Client{UserID: user, Conn: broken})

	err := hub.Push(context.Background(), user, "appointment_message", nil)
	require.Error(t, err)
	assert.True(t, broken.closed)

	occupied, _ := hub.Occupied(context.Background(), user)
	assert.False(t, occupied)
}

func TestHubRespectsCancelledContext(t *testing.T) {
	hub := NewHub(logger.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := hub.Occupied(ctx, uuid.New())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHubPushGivesUpAtDeadline(t *testing.T) {
	hub := NewHub(logger.Nop())
	user := uuid.New()
	stalled := newStalledConn()
	defer close(stalled.release)
	hub.Register(NewClient(user, stalled))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- hub.Push(ctx, user, "direct_message", "hi") }()

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("push did not return after its deadline")
	}
	assert.True(t, stalled.isClosed())
	occupied, _ := hub.Occupied(context.Background(), user)
	assert.False(t, occupied)
}

func TestHubQueuedWriterHonoursItsOwnDeadline(t *testing.T) {
	hub := NewHub(logger.Nop())
	user := uuid.New()
	stalled := newStalledConn()
	defer close(stalled.release)
	client := NewClient(user, stalled)
	hub.Register(client)

	slow, cancelSlow := context.WithTimeout(context.Background(), time.Second)
	defer cancelSlow()
	go func() { _ = hub.Push(slow, user, "direct_message", "first") }()
	time.Sleep(20 * time.Millisecond)

	fast, cancelFast := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancelFast()
	start := time.Now()
	err := hub.Push(fast, user, "direct_message", "second")

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}
