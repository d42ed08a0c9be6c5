// Package worker implements the swarm roles that move synthetic traffic
// between queues under the control of a rate limiter.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role names.
const (
	RoleGenerator = "generator"
	RoleModerator = "moderator"
	RoleProcessor = "processor"
)

// DefaultPopTimeout bounds each blocking pop so cancellation is noticed.
const DefaultPopTimeout = time.Second

// Queue moves opaque payloads; redisq.Broker and mongoq.Broker satisfy it.
type Queue interface {
	Push(ctx context.Context, queue string, payload []byte) error
	Pop(ctx context.Context, queue string, timeout time.Duration) ([]byte, bool, error)
}

// Message is the synthetic unit of work.
type Message struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Hops      int       `json:"hops"`
}

// NewMessage returns a message with a fresh id.
func NewMessage(at time.Time) Message {
	return Message{ID: uuid.NewString(), CreatedAt: at.UTC()}
}

func encode(m Message) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return data, nil
}

func decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	return m, nil
}

// stopped reports whether err only signals that ctx ended.
func stopped(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}
