package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// DefaultChannelPrefix prefixes the per-owner Redis channel names.
const DefaultChannelPrefix = "taskdeck:tasks:"

// Redis is a Notifier backed by Redis pub/sub, so that several processes
// sharing one database see each other's writes.
type Redis struct {
	client *redis.Client
	prefix string

	mu     sync.Mutex
	subs   map[*redis.PubSub]struct{}
	closed bool
}

// NewRedis creates a notifier on client.
func NewRedis(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return &Redis{
		client: client,
		prefix: prefix,
		subs:   make(map[*redis.PubSub]struct{}),
	}
}

// Dial connects to addr and verifies the connection.
func Dial(ctx context.Context, addr string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return NewRedis(client, ""), nil
}

func (r *Redis) channel(ownerID string) string {
	return r.prefix + ownerID
}

// Publish implements Notifier.
func (r *Redis) Publish(ctx context.Context, ownerID string) error {
	if err := r.client.Publish(ctx, r.channel(ownerID), "changed").Err(); err != nil {
		return fmt.Errorf("publish change for %s: %w", ownerID, err)
	}
	return nil
}

// Subscribe implements Notifier.
func (r *Redis) Subscribe(ctx context.Context, ownerID string) (<-chan struct{}, func(), error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, nil, ErrClosed
	}
	r.mu.Unlock()

	ps := r.client.Subscribe(ctx, r.channel(ownerID))
	// wait for the subscription confirmation so no publish is missed
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, nil, fmt.Errorf("subscribe to changes for %s: %w", ownerID, err)
	}

	r.mu.Lock()
	r.subs[ps] = struct{}{}
	r.mu.Unlock()

	out := make(chan struct{}, 1)
	msgs := ps.Channel()
	go func() {
		defer close(out)
		for range msgs {
			signal(out)
		}
	}()

	var once sync.Once
	return out, func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subs, ps)
			r.mu.Unlock()
			ps.Close()
		})
	}, nil
}

// Close closes all subscriptions and the client.
func (r *Redis) Close() error {
	r.mu.Lock()
	r.closed = true
	subs := r.subs
	r.subs = make(map[*redis.PubSub]struct{})
	r.mu.Unlock()

	var errs []error
	for ps := range subs {
		errs = append(errs, ps.Close())
	}
	errs = append(errs, r.client.Close())
	return errors.Join(errs...)
}
