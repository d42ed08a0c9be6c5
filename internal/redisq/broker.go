// Package redisq adapts Redis lists and pub/sub to the guard ports and the
// worker queues.
package redisq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces the bookkeeping keys and rate channels.
const DefaultKeyPrefix = "swarmguard"

// Broker stores queues as Redis lists. Declared queues are tracked in a set
// because Redis deletes a list once it is empty.
type Broker struct {
	rdb    *redis.Client
	prefix string
}

// Option configures a Broker, Publisher or Subscriber.
type Option func(*options)

type options struct {
	prefix string
}

// WithKeyPrefix overrides DefaultKeyPrefix.
func WithKeyPrefix(prefix string) Option {
	return func(o *options) {
		if p := strings.Trim(prefix, ":."); p != "" {
			o.prefix = p
		}
	}
}

func applyOptions(opts []Option) options {
	o := options{prefix: DefaultKeyPrefix}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewBroker wraps a Redis client.
func NewBroker(rdb *redis.Client, opts ...Option) *Broker {
	o := applyOptions(opts)
	return &Broker{rdb: rdb, prefix: o.prefix}
}

func (b *Broker) declaredKey() string {
	return b.prefix + ":queues"
}

// Declare registers queue so that Depth reports it even while empty.
func (b *Broker) Declare(ctx context.Context, queue string) error {
	if err := b.rdb.SAdd(ctx, b.declaredKey(), queue).Err(); err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	return nil
}

// Depth returns the list length of queue. An undeclared queue reports ok=false.
func (b *Broker) Depth(ctx context.Context, queue string) (int64, bool, error) {
	pipe := b.rdb.Pipeline()
	declared := pipe.SIsMember(ctx, b.declaredKey(), queue)
	length := pipe.LLen(ctx, queue)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, false, fmt.Errorf("queue depth %s: %w", queue, err)
	}
	if !declared.Val() {
		return 0, false, nil
	}
	return length.Val(), true, nil
}

// Push appends a message to queue.
func (b *Broker) Push(ctx context.Context, queue string, payload []byte) error {
	if err := b.rdb.LPush(ctx, queue, payload).Err(); err != nil {
		return fmt.Errorf("push %s: %w", queue, err)
	}
	return nil
}

// Pop removes the oldest message of queue, waiting up to timeout. It returns
// ok=false when the wait expires.
func (b *Broker) Pop(ctx context.Context, queue string, timeout time.Duration) ([]byte, bool, error) {
	res, err := b.rdb.BRPop(ctx, timeout, queue).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("pop %s: %w", queue, err)
	}
	// BRPOP replies with the key followed by the value.
	if len(res) != 2 {
		return nil, false, fmt.Errorf("pop %s: unexpected reply of %d elements", queue, len(res))
	}
	return []byte(res[1]), true, nil
}
