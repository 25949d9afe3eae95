package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"treebio-api/internal/logging"
)

// RedisBackend publishes events through Redis pub/sub so that every server
// instance relays them to its own websocket clients.
type RedisBackend struct {
	rdb    *redis.Client
	hub    *Hub
	logger *slog.Logger

	readyOnce sync.Once
	ready     chan struct{}
	relaying  atomic.Bool

	minBackoff time.Duration
	maxBackoff time.Duration
}

// NewRedisClient builds a client from a redis:// URL.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func NewRedisBackend(rdb *redis.Client, hub *Hub) *RedisBackend {
	return &RedisBackend{
		rdb:    rdb,
		hub:    hub,
		logger: logging.Sub("redis-relay"),
		ready:  make(chan struct{}),

		minBackoff: 250 * time.Millisecond,
		maxBackoff: 10 * time.Second,
	}
}

// Trigger implements Backend.
func (b *RedisBackend) Trigger(ctx context.Context, channel string, evt Event) error {
	data, err := msgpack.Marshal(&evt)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := b.rdb.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Ready is closed once Relay holds its pattern subscription.
func (b *RedisBackend) Ready() <-chan struct{} {
	return b.ready
}

// Healthy reports whether the relay currently holds its subscription, i.e.
// whether events reach this instance's sockets.
func (b *RedisBackend) Healthy() bool {
	return b.relaying.Load()
}

// Run keeps Relay going until ctx ends, resubscribing with exponential
// backoff whenever it stops.
func (b *RedisBackend) Run(ctx context.Context) {
	backoff := b.minBackoff
	for {
		start := time.Now()
		err := b.Relay(ctx)
		if ctx.Err() != nil {
			return
		}
		if time.Since(start) > b.maxBackoff {
			backoff = b.minBackoff
		}
		b.logger.Error("relay stopped, retrying", "in", backoff, "err", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, b.maxBackoff)
	}
}

// Relay forwards every event seen on Redis into the local hub until ctx ends.
func (b *RedisBackend) Relay(ctx context.Context) error {
	pubsub := b.rdb.PSubscribe(ctx, userChannelPrefix+"*", publicChannelPrefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redis psubscribe: %w", err)
	}
	b.relaying.Store(true)
	defer b.relaying.Store(false)
	b.readyOnce.Do(func() { close(b.ready) })
	b.logger.Info("relay subscribed")

	msgs := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("redis subscription closed")
			}
			b.forward(msg.Channel, []byte(msg.Payload))
		}
	}
}

func (b *RedisBackend) forward(channel string, data []byte) {
	var evt Event
	if err := msgpack.Unmarshal(data, &evt); err != nil {
		b.logger.Warn("dropping undecodable event", "channel", channel, "err", err)
		return
	}
	frame, err := EncodeEventFrame(channel, evt)
	if err != nil {
		b.logger.Warn("dropping event", "channel", channel, "err", err)
		return
	}
	n := b.hub.Broadcast(channel, frame)
	b.logger.Debug("relayed", "channel", channel, "kind", evt.Kind, "clients", n)
}
