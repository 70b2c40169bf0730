package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// envelope is the cross-instance wire format: the topic travels with the
// event so all instances share a single Redis channel.
type envelope struct {
	Topic string `json:"topic"`
	Event Event  `json:"event"`
}

// Redis is the distributed Bus. Publishes go to a Redis pub/sub channel;
// a pump goroutine relays inbound messages into a local InProcess bus, so
// subscription semantics (buffering, drop-oldest, cancellation) are
// identical to the single-instance bus.
type Redis struct {
	rdb     *redis.Client
	channel string
	local   *InProcess
	logger  *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRedis connects to Redis, verifies the connection with a ping, and
// starts the relay pump.
func NewRedis(addr string, db int, channel string, bufSize int, logger *slog.Logger) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Redis{
		rdb:     rdb,
		channel: channel,
		local:   NewInProcess(bufSize),
		logger:  logger.With("component", "bus.redis"),
		cancel:  cancel,
	}

	psub := rdb.Subscribe(ctx, channel)
	b.wg.Add(1)
	go b.pump(ctx, psub)
	return b, nil
}

func (b *Redis) pump(ctx context.Context, psub *redis.PubSub) {
	defer b.wg.Done()
	defer func() { _ = psub.Close() }()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-psub.Channel():
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.logger.Warn("discarding malformed bus message", "err", err)
				continue
			}
			_ = b.local.Publish(ctx, env.Topic, env.Event)
		}
	}
}

// Publish relays the event through Redis. Local subscribers receive it via
// the pump like any other instance, which keeps cross-instance ordering
// consistent with local ordering.
func (b *Redis) Publish(ctx context.Context, topic string, ev Event) error {
	data, err := json.Marshal(envelope{Topic: topic, Event: ev})
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, data).Err()
}

// Subscribe registers a local subscription for topic.
func (b *Redis) Subscribe(topic string) (*Subscription, error) {
	return b.local.Subscribe(topic)
}

// Dropped returns the total events lost to full subscriber buffers on this
// instance.
func (b *Redis) Dropped() uint64 { return b.local.Dropped() }

// Close stops the pump, cancels local subscriptions and closes the client.
func (b *Redis) Close() error {
	b.cancel()
	b.wg.Wait()
	_ = b.local.Close()
	return b.rdb.Close()
}
