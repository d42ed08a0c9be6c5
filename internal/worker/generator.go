package worker

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"swarmguard/pkg/ratelimiter"
)

// Generator pushes the planned quota of new messages every tick.
type Generator struct {
	queue   Queue
	out     string
	limiter *ratelimiter.Limiter
	tick    time.Duration
	logger  *zap.Logger
	now     func() time.Time

	emitted atomic.Int64
}

// NewGenerator creates a generator writing to out. The limiter's planner
// must use the same tick length.
func NewGenerator(queue Queue, out string, limiter *ratelimiter.Limiter, tick time.Duration, logger *zap.Logger) *Generator {
	if tick <= 0 {
		tick = ratelimiter.DefaultTick
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		queue:   queue,
		out:     out,
		limiter: limiter,
		tick:    tick,
		logger:  logger.With(zap.String("role", RoleGenerator), zap.String("out", out)),
		now:     time.Now,
	}
}

// Emitted returns the number of messages pushed.
func (g *Generator) Emitted() int64 {
	return g.emitted.Load()
}

// Run plans and emits until ctx ends.
func (g *Generator) Run(ctx context.Context) error {
	ticker := time.NewTicker(g.tick)
	defer ticker.Stop()
	for {
		if err := g.emit(ctx); err != nil {
			if stopped(ctx, err) {
				return nil
			}
			g.logger.Warn("emit failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// emit pushes one tick's quota.
func (g *Generator) emit(ctx context.Context) error {
	now := g.now()
	quota := g.limiter.PlanInvocations(now)
	for i := 0; i < quota; i++ {
		payload, err := encode(NewMessage(now))
		if err != nil {
			return err
		}
		if err := g.queue.Push(ctx, g.out, payload); err != nil {
			return err
		}
		g.emitted.Add(1)
	}
	return nil
}
