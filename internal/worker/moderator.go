package worker

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"swarmguard/pkg/ratelimiter"
)

// Moderator forwards messages from in to out, paced by a blocking limiter.
type Moderator struct {
	queue   Queue
	in, out string
	limiter *ratelimiter.Limiter
	logger  *zap.Logger

	forwarded atomic.Int64
}

// NewModerator creates a moderator between in and out.
func NewModerator(queue Queue, in, out string, limiter *ratelimiter.Limiter, logger *zap.Logger) *Moderator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Moderator{
		queue:   queue,
		in:      in,
		out:     out,
		limiter: limiter,
		logger:  logger.With(zap.String("role", RoleModerator), zap.String("in", in), zap.String("out", out)),
	}
}

// Forwarded returns the number of messages moved.
func (m *Moderator) Forwarded() int64 {
	return m.forwarded.Load()
}

// Run forwards until ctx ends.
func (m *Moderator) Run(ctx context.Context) error {
	for ctx.Err() == nil {
		if err := m.forward(ctx); err != nil {
			if stopped(ctx, err) {
				return nil
			}
			m.logger.Warn("forward failed", zap.Error(err))
		}
	}
	return nil
}

func (m *Moderator) forward(ctx context.Context) error {
	payload, ok, err := m.queue.Pop(ctx, m.in, DefaultPopTimeout)
	if err != nil || !ok {
		return err
	}
	msg, err := decode(payload)
	if err != nil {
		return err
	}
	if err := m.limiter.Await(ctx); err != nil {
		return err
	}
	msg.Hops++
	out, err := encode(msg)
	if err != nil {
		return err
	}
	if err := m.queue.Push(ctx, m.out, out); err != nil {
		return err
	}
	m.forwarded.Add(1)
	return nil
}
