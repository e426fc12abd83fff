package realtime

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
)

// DeliverFunc receives every frame published to any room.
type DeliverFunc func(room string, payload []byte)

// Bus carries frames between server instances so a broadcast reaches
// sockets held by any node.
type Bus interface {
	Publish(ctx context.Context, room string, payload []byte) error
	// Subscribe starts delivering frames to fn and returns immediately.
	Subscribe(ctx context.Context, fn DeliverFunc) error
	Close() error
}

// LocalBus delivers in-process. Suitable for a single instance and tests.
type LocalBus struct {
	mu      sync.RWMutex
	deliver DeliverFunc
}

func NewLocalBus() *LocalBus {
	return &LocalBus{}
}

func (b *LocalBus) Publish(_ context.Context, room string, payload []byte) error {
	b.mu.RLock()
	fn := b.deliver
	b.mu.RUnlock()
	if fn != nil {
		fn(room, payload)
	}
	return nil
}

func (b *LocalBus) Subscribe(_ context.Context, fn DeliverFunc) error {
	b.mu.Lock()
	b.deliver = fn
	b.mu.Unlock()
	return nil
}

func (b *LocalBus) Close() error { return nil }

const redisChannelPrefix = "rt:room:"

// RedisBus fans frames out over Redis pub/sub.
type RedisBus struct {
	client *redis.Client
	once   sync.Once
}

func NewRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{client: client}
}

func (b *RedisBus) Publish(ctx context.Context, room string, payload []byte) error {
	return b.client.Publish(ctx, redisChannelPrefix+room, payload).Err()
}

// Subscribe starts a single pattern listener that reconnects with backoff
// until ctx is done.
func (b *RedisBus) Subscribe(ctx context.Context, fn DeliverFunc) error {
	if b.client == nil {
		return errors.New("realtime: redis client not initialized")
	}
	b.once.Do(func() {
		go b.listen(ctx, fn)
	})
	return nil
}

func (b *RedisBus) listen(ctx context.Context, fn DeliverFunc) {
	backoff := time.Second
	for ctx.Err() == nil {
		func() {
			pubsub := b.client.PSubscribe(ctx, redisChannelPrefix+"*")
			defer pubsub.Close()
			slog.Info("realtime redis subscriber started", "pattern", redisChannelPrefix+"*")

			for {
				msg, err := pubsub.ReceiveMessage(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					slog.Warn("realtime redis subscriber error", "error", err, "retry_in", backoff)
					time.Sleep(backoff)
					backoff = min(backoff*2, 30*time.Second)
					return
				}
				backoff = time.Second
				fn(strings.TrimPrefix(msg.Channel, redisChannelPrefix), []byte(msg.Payload))
			}
		}()
	}
}

// Close is a no-op; the Redis client is owned by the caller.
func (b *RedisBus) Close() error { return nil }

const natsSubjectPrefix = "trailhub.rt."

// NATSBus fans frames out over core NATS subjects.
type NATSBus struct {
	conn *nats.Conn
	mu   sync.Mutex
	sub  *nats.Subscription
}

func NewNATSBus(conn *nats.Conn) *NATSBus {
	return &NATSBus{conn: conn}
}

func (b *NATSBus) Publish(_ context.Context, room string, payload []byte) error {
	return b.conn.Publish(natsSubjectPrefix+room, payload)
}

func (b *NATSBus) Subscribe(_ context.Context, fn DeliverFunc) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sub != nil {
		return nil
	}
	sub, err := b.conn.Subscribe(natsSubjectPrefix+">", func(msg *nats.Msg) {
		fn(strings.TrimPrefix(msg.Subject, natsSubjectPrefix), msg.Data)
	})
	if err != nil {
		return err
	}
	b.sub = sub
	return nil
}

func (b *NATSBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sub == nil {
		return nil
	}
	err := b.sub.Unsubscribe()
	b.sub = nil
	return err
}
