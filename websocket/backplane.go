package websocket

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// BusMessage is one message received from a backplane channel.
type BusMessage struct {
	Channel string
	Payload string
}

// Backplane is the shared state and messaging instances coordinate through.
// Presence is tracked per (user, instance) so one instance losing a user
// does not hide the user's sockets on another.
type Backplane interface {
	AddPresence(ctx context.Context, userID uuid.UUID, instance string, ttl time.Duration) error
	RemovePresence(ctx context.Context, userID uuid.UUID, instance string) error
	// Instances lists the instances holding a live presence entry for userID.
	Instances(ctx context.Context, userID uuid.UUID) ([]string, error)
	// Publish returns the number of subscribers that received payload.
	Publish(ctx context.Context, channel string, payload []byte) (int64, error)
	Subscribe(ctx context.Context, channels ...string) (<-chan BusMessage, io.Closer, error)
}

// RedisBackplane keeps presence in one sorted set per user (member instance
// id, score expiry in unix ms) and routes messages over pub/sub.
type RedisBackplane struct {
	rdb *goredis.Client
}

func NewRedisBackplane(rdb *goredis.Client) *RedisBackplane {
	return &RedisBackplane{rdb: rdb}
}

func presenceKey(userID uuid.UUID) string { return "presence:" + userID.String() }

func (b *RedisBackplane) AddPresence(ctx context.Context, userID uuid.UUID, instance string, ttl time.Duration) error {
	key := presenceKey(userID)
	expires := time.Now().Add(ttl).UnixMilli()
	_, err := b.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.ZAdd(ctx, key, goredis.Z{Score: float64(expires), Member: instance})
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	return err
}

func (b *RedisBackplane) RemovePresence(ctx context.Context, userID uuid.UUID, instance string) error {
	return b.rdb.ZRem(ctx, presenceKey(userID), instance).Err()
}

func (b *RedisBackplane) Instances(ctx context.Context, userID uuid.UUID) ([]string, error) {
	key := presenceKey(userID)
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	if err := b.rdb.ZRemRangeByScore(ctx, key, "-inf", now).Err(); err != nil {
		return nil, err
	}
	return b.rdb.ZRangeByScore(ctx, key, &goredis.ZRangeBy{Min: "(" + now, Max: "+inf"}).Result()
}

func (b *RedisBackplane) Publish(ctx context.Context, channel string, payload []byte) (int64, error) {
	return b.rdb.Publish(ctx, channel, payload).Result()
}

func (b *RedisBackplane) Subscribe(ctx context.Context, channels ...string) (<-chan BusMessage, io.Closer, error) {
	sub := b.rdb.Subscribe(ctx, channels...)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("redis subscribe: %w", err)
	}
	out := make(chan BusMessage)
	go func() {
		defer close(out)
		for m := range sub.Channel() {
			select {
			case out <- BusMessage{Channel: m.Channel, Payload: m.Payload}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, sub, nil
}

// NewRedisClient connects to redis and verifies the connection.
func NewRedisClient(addr, password string, db int) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}
