package websocket

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/anjiri1684/tutor_booking/logger"
	"github.com/google/uuid"
)

// ErrNotConnected is returned by Push when the user has no live socket on
// this instance.
var ErrNotConnected = errors.New("user has no realtime connection")

// maxWriteWait caps a single frame write when the caller has no deadline.
const maxWriteWait = 5 * time.Second

// Conn is the part of a websocket connection the hub needs.
type Conn interface {
	WriteJSON(v interface{}) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type Client struct {
	UserID uuid.UUID
	Conn   Conn

	slotOnce sync.Once
	slot     chan struct{}
}

func NewClient(userID uuid.UUID, conn Conn) *Client {
	return &Client{UserID: userID, Conn: conn}
}

// write sends one frame. Writers to the same connection are serialised; a
// writer gives up when ctx ends while it waits or writes.
func (c *Client) write(ctx context.Context, frame Envelope) error {
	c.slotOnce.Do(func() { c.slot = make(chan struct{}, 1) })
	select {
	case c.slot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-c.slot }()

	deadline := time.Now().Add(maxWriteWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.Conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.Conn.WriteJSON(frame)
}

// Envelope is the frame written to clients.
type Envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Presence is told when a user gains their first or loses their last local
// connection, and periodically for every connected user.
type Presence interface {
	Touch(ctx context.Context, userID uuid.UUID) error
	Clear(ctx context.Context, userID uuid.UUID) error
}

// Hub tracks the websocket connections of this instance, keyed by user. A
// user may hold several connections (tabs, devices).
type Hub struct {
	log *logger.Logger

	mu       sync.RWMutex
	clients  map[uuid.UUID][]*Client
	presence Presence
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		log:     log.With("service", "RealtimeHub"),
		clients: make(map[uuid.UUID][]*Client),
	}
}

func (h *Hub) SetPresence(p Presence) {
	h.mu.Lock()
	h.presence = p
	h.mu.Unlock()
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	first := len(h.clients[c.UserID]) == 0
	h.clients[c.UserID] = append(h.clients[c.UserID], c)
	p := h.presence
	h.mu.Unlock()

	h.log.Debug("client registered", "user_id", c.UserID)
	if first && p != nil {
		if err := p.Touch(context.Background(), c.UserID); err != nil {
			h.log.Warn("presence touch failed", "user_id", c.UserID, "error", err)
		}
	}
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	last := h.remove(c)
	p := h.presence
	h.mu.Unlock()

	h.log.Debug("client unregistered", "user_id", c.UserID)
	if last && p != nil {
		if err := p.Clear(context.Background(), c.UserID); err != nil {
			h.log.Warn("presence clear failed", "user_id", c.UserID, "error", err)
		}
	}
}

// remove drops c and reports whether it was the user's last connection.
// Callers hold h.mu.
func (h *Hub) remove(c *Client) bool {
	conns := h.clients[c.UserID]
	for i, existing := range conns {
		if existing == c {
			conns = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(conns) == 0 {
		delete(h.clients, c.UserID)
		return true
	}
	h.clients[c.UserID] = conns
	return false
}

func (h *Hub) Occupied(ctx context.Context, userID uuid.UUID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0, nil
}

// Push writes the event to every connection of userID. Each write is bounded
// by ctx's deadline. Connections that fail are closed and dropped. Push
// fails if nothing was delivered.
func (h *Hub) Push(ctx context.Context, userID uuid.UUID, event string, payload interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.RLock()
	conns := append([]*Client(nil), h.clients[userID]...)
	h.mu.RUnlock()
	if len(conns) == 0 {
		return ErrNotConnected
	}

	frame := Envelope{Event: event, Data: payload}
	delivered := 0
	var lastErr error
	for _, c := range conns {
		err := c.write(ctx, frame)
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			// Still waiting behind another writer; the connection is fine.
			lastErr = err
			continue
		}
		if err != nil {
			h.log.Warn("realtime write failed", "user_id", userID, "event", event, "error", err)
			_ = c.Conn.Close()
			h.Unregister(c)
			lastErr = err
			continue
		}
		delivered++
	}
	if delivered == 0 {
		return lastErr
	}
	return nil
}

func (h *Hub) ConnectedUsers() []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]uuid.UUID, 0, len(h.clients))
	for id := range h.clients {
		out = append(out, id)
	}
	return out
}

// Run refreshes presence for connected users every interval until ctx ends.
func (h *Hub) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.mu.RLock()
			p := h.presence
			h.mu.RUnlock()
			if p == nil {
				continue
			}
			for _, id := range h.ConnectedUsers() {
				if err := p.Touch(ctx, id); err != nil {
					h.log.Warn("presence refresh failed", "user_id", id, "error", err)
				}
			}
		}
	}
}
