package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/anjiri1684/tutor_booking/logger"
	"github.com/google/uuid"
)

const (
	presenceTTL = 90 * time.Second
	ackTimeout  = 2 * time.Second
)

// ErrNoAck is returned when the instance owning a socket did not confirm a
// routed push in time.
var ErrNoAck = errors.New("realtime push not acknowledged")

// routedPush travels to the instance holding the recipient's socket.
type routedPush struct {
	ID     string          `json:"id"`
	Origin string          `json:"origin"`
	UserID uuid.UUID       `json:"userId"`
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data"`
}

// pushAck answers a routedPush on the origin's ack channel.
type pushAck struct {
	ID        string `json:"id"`
	Delivered bool   `json:"delivered"`
}

// ClusterChannel makes occupancy and pushes work across instances. Each
// instance records its own presence per user; a push for a user held
// elsewhere is sent to the owning instance and only counts once that
// instance acknowledges a local delivery.
type ClusterChannel struct {
	hub      *Hub
	bus      Backplane
	channel  string
	instance string
	ackWait  time.Duration
	log      *logger.Logger

	mu      sync.Mutex
	pending map[string]chan pushAck
}

func NewClusterChannel(hub *Hub, bus Backplane, channel string, log *logger.Logger) *ClusterChannel {
	c := &ClusterChannel{
		hub:      hub,
		bus:      bus,
		channel:  channel,
		instance: uuid.NewString(),
		ackWait:  ackTimeout,
		log:      log.With("service", "RealtimeCluster"),
		pending:  make(map[string]chan pushAck),
	}
	c.log = c.log.With("instance", c.instance)
	hub.SetPresence(c)
	return c
}

func (c *ClusterChannel) pushChannel(instance string) string {
	return c.channel + ":push:" + instance
}

func (c *ClusterChannel) ackChannel(instance string) string {
	return c.channel + ":ack:" + instance
}

func (c *ClusterChannel) Touch(ctx context.Context, userID uuid.UUID) error {
	return c.bus.AddPresence(ctx, userID, c.instance, presenceTTL)
}

func (c *ClusterChannel) Clear(ctx context.Context, userID uuid.UUID) error {
	return c.bus.RemovePresence(ctx, userID, c.instance)
}

func (c *ClusterChannel) Occupied(ctx context.Context, userID uuid.UUID) (bool, error) {
	if local, err := c.hub.Occupied(ctx, userID); err != nil || local {
		return local, err
	}
	owners, err := c.remoteOwners(ctx, userID)
	if err != nil {
		return false, err
	}
	return len(owners) > 0, nil
}

func (c *ClusterChannel) remoteOwners(ctx context.Context, userID uuid.UUID) ([]string, error) {
	instances, err := c.bus.Instances(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("presence lookup: %w", err)
	}
	owners := instances[:0]
	for _, id := range instances {
		if id != c.instance {
			owners = append(owners, id)
		}
	}
	return owners, nil
}

// Push delivers locally when the user has a socket here, otherwise routes to
// each owning instance until one confirms delivery.
func (c *ClusterChannel) Push(ctx context.Context, userID uuid.UUID, event string, payload interface{}) error {
	err := c.hub.Push(ctx, userID, event, payload)
	if !errors.Is(err, ErrNotConnected) {
		return err
	}

	owners, err := c.remoteOwners(ctx, userID)
	if err != nil {
		return err
	}
	if len(owners) == 0 {
		return ErrNotConnected
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	lastErr := ErrNotConnected
	for _, owner := range owners {
		delivered, err := c.route(ctx, owner, routedPush{
			ID:     uuid.NewString(),
			Origin: c.instance,
			UserID: userID,
			Event:  event,
			Data:   data,
		})
		if delivered {
			return nil
		}
		if err != nil {
			c.log.Warn("routed push failed", "user_id", userID, "owner", owner, "error", err)
			lastErr = err
		}
	}
	return lastErr
}

func (c *ClusterChannel) route(ctx context.Context, owner string, msg routedPush) (bool, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return false, err
	}
	ack := make(chan pushAck, 1)
	c.mu.Lock()
	c.pending[msg.ID] = ack
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, msg.ID)
		c.mu.Unlock()
	}()

	receivers, err := c.bus.Publish(ctx, c.pushChannel(owner), raw)
	if err != nil {
		return false, fmt.Errorf("realtime publish: %w", err)
	}
	if receivers == 0 {
		// The owner is gone but its presence entry has not expired yet.
		if err := c.bus.RemovePresence(ctx, msg.UserID, owner); err != nil {
			c.log.Warn("stale presence cleanup failed", "user_id", msg.UserID, "owner", owner, "error", err)
		}
		return false, nil
	}

	timer := time.NewTimer(c.ackWait)
	defer timer.Stop()
	select {
	case a := <-ack:
		return a.Delivered, nil
	case <-timer.C:
		return false, ErrNoAck
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// StartForwarder subscribes to this instance's push and ack channels and
// serves them until ctx ends.
func (c *ClusterChannel) StartForwarder(ctx context.Context) error {
	msgs, sub, err := c.bus.Subscribe(ctx, c.pushChannel(c.instance), c.ackChannel(c.instance))
	if err != nil {
		return err
	}

	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				if strings.HasPrefix(m.Channel, c.channel+":ack:") {
					c.acknowledge(m.Payload)
					continue
				}
				go c.forward(ctx, m.Payload)
			}
		}
	}()
	return nil
}

func (c *ClusterChannel) acknowledge(payload string) {
	var a pushAck
	if err := json.Unmarshal([]byte(payload), &a); err != nil {
		c.log.Warn("bad realtime ack", "error", err)
		return
	}
	c.mu.Lock()
	ch, ok := c.pending[a.ID]
	c.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- a:
	default:
	}
}

func (c *ClusterChannel) forward(ctx context.Context, payload string) {
	var msg routedPush
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		c.log.Warn("bad realtime payload", "error", err)
		return
	}
	pushCtx, cancel := context.WithTimeout(ctx, c.ackWait)
	defer cancel()
	err := c.hub.Push(pushCtx, msg.UserID, msg.Event, msg.Data)
	if err != nil && !errors.Is(err, ErrNotConnected) {
		c.log.Warn("forwarded push failed", "user_id", msg.UserID, "error", err)
	}

	raw, err := json.Marshal(pushAck{ID: msg.ID, Delivered: err == nil})
	if err != nil {
		return
	}
	if _, err := c.bus.Publish(ctx, c.ackChannel(msg.Origin), raw); err != nil {
		c.log.Warn("realtime ack failed", "origin", msg.Origin, "error", err)
	}
}
