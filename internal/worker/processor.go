package worker

import (
	"context"
	"math"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Processor consumes messages from in at a fixed drain rate.
type Processor struct {
	queue   Queue
	in      string
	limiter *rate.Limiter
	logger  *zap.Logger

	processed atomic.Int64
}

// NewProcessor creates a processor draining in at ratePerSec. A non-positive
// rate drains as fast as messages arrive.
func NewProcessor(queue Queue, in string, ratePerSec float64, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		queue:   queue,
		in:      in,
		limiter: rate.NewLimiter(drainLimit(ratePerSec), 1),
		logger:  logger.With(zap.String("role", RoleProcessor), zap.String("in", in)),
	}
}

func drainLimit(ratePerSec float64) rate.Limit {
	if ratePerSec <= 0 || math.IsNaN(ratePerSec) || math.IsInf(ratePerSec, 0) {
		return rate.Inf
	}
	return rate.Limit(ratePerSec)
}

// SetRate changes the drain rate.
func (p *Processor) SetRate(ratePerSec float64) {
	p.limiter.SetLimit(drainLimit(ratePerSec))
}

// Processed returns the number of messages consumed.
func (p *Processor) Processed() int64 {
	return p.processed.Load()
}

// Run drains until ctx ends.
func (p *Processor) Run(ctx context.Context) error {
	for ctx.Err() == nil {
		if err := p.consume(ctx); err != nil {
			if stopped(ctx, err) {
				return nil
			}
			p.logger.Warn("consume failed", zap.Error(err))
		}
	}
	return nil
}

func (p *Processor) consume(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		// The next token lies beyond the deadline.
		<-ctx.Done()
		return ctx.Err()
	}
	payload, ok, err := p.queue.Pop(ctx, p.in, DefaultPopTimeout)
	if err != nil || !ok {
		return err
	}
	if _, err := decode(payload); err != nil {
		return err
	}
	p.processed.Add(1)
	return nil
}
