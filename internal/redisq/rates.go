package redisq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateUpdate is the payload of a rate publication.
type RateUpdate struct {
	Swarm      string    `json:"swarm"`
	Role       string    `json:"role"`
	RatePerSec float64   `json:"ratePerSec"`
	At         time.Time `json:"at"`
}

// Channel returns the pub/sub channel carrying rates for role.
func Channel(prefix, swarm, role string) string {
	return prefix + "." + swarm + ".rate." + role
}

// Publisher sends rate updates over Redis pub/sub.
type Publisher struct {
	rdb    *redis.Client
	swarm  string
	prefix string
	now    func() time.Time
}

// NewPublisher creates a publisher for swarm.
func NewPublisher(rdb *redis.Client, swarm string, opts ...Option) *Publisher {
	o := applyOptions(opts)
	return &Publisher{rdb: rdb, swarm: swarm, prefix: o.prefix, now: time.Now}
}

// Publish announces a new rate for role. Delivery is best effort.
func (p *Publisher) Publish(ctx context.Context, role string, ratePerSec float64) error {
	payload, err := json.Marshal(RateUpdate{
		Swarm:      p.swarm,
		Role:       role,
		RatePerSec: ratePerSec,
		At:         p.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode rate update: %w", err)
	}
	if err := p.rdb.Publish(ctx, Channel(p.prefix, p.swarm, role), payload).Err(); err != nil {
		return fmt.Errorf("publish rate for %s: %w", role, err)
	}
	return nil
}

// RateSink applies received rates; ratelimiter.Limiter satisfies it.
type RateSink interface {
	SetRate(ratePerSec float64)
}

// Subscriber applies rate updates for one role to a sink.
type Subscriber struct {
	rdb     *redis.Client
	channel string
	sink    RateSink
	logger  *zap.Logger
	ready   chan struct{}
}

// NewSubscriber creates a subscriber for role in swarm.
func NewSubscriber(rdb *redis.Client, swarm, role string, sink RateSink, logger *zap.Logger, opts ...Option) *Subscriber {
	o := applyOptions(opts)
	if logger == nil {
		logger = zap.NewNop()
	}
	channel := Channel(o.prefix, swarm, role)
	return &Subscriber{
		rdb:     rdb,
		channel: channel,
		sink:    sink,
		logger:  logger.With(zap.String("channel", channel)),
		ready:   make(chan struct{}),
	}
}

// Ready is closed once the subscription is confirmed.
func (s *Subscriber) Ready() <-chan struct{} {
	return s.ready
}

// Run applies updates until ctx is cancelled.
func (s *Subscriber) Run(ctx context.Context) error {
	ps := s.rdb.Subscribe(ctx, s.channel)
	defer func() { _ = ps.Close() }()
	if _, err := ps.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", s.channel, err)
	}
	close(s.ready)

	messages := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			s.apply(msg.Payload)
		}
	}
}

func (s *Subscriber) apply(payload string) {
	var update RateUpdate
	if err := json.Unmarshal([]byte(payload), &update); err != nil {
		s.logger.Warn("discard malformed rate update", zap.Error(err))
		return
	}
	s.sink.SetRate(update.RatePerSec)
	s.logger.Debug("rate applied", zap.Float64("rate", update.RatePerSec))
}
