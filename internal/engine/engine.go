// Package engine composes buffer guards and forwards lifecycle calls to them.
package engine

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"swarmguard/internal/guard"
)

// ErrUnknownQueue is returned when a queue name or alias matches no guard.
var ErrUnknownQueue = errors.New("unknown guarded queue")

// Deps are the collaborators shared by every guard of a swarm.
type Deps struct {
	Swarm     string
	Stats     guard.QueueStats
	Publisher guard.RatePublisher
	Observers []guard.Observer
	Logger    *zap.Logger
	Meter     metric.Meter
}

// Engine owns a fixed set of independently scheduled guards.
type Engine struct {
	guards []*guard.Guard
	logger *zap.Logger
}

// New builds one guard per settings entry. Guards are created stopped.
func New(deps Deps, settings ...guard.Settings) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	observer := fanOut(deps.Observers)
	guards := make([]*guard.Guard, 0, len(settings))
	for _, s := range settings {
		guards = append(guards, guard.New(guard.Config{
			Swarm:     deps.Swarm,
			Settings:  s,
			Stats:     deps.Stats,
			Publisher: deps.Publisher,
			Observer:  observer,
			Logger:    logger,
			Meter:     deps.Meter,
		}))
	}
	return &Engine{
		guards: guards,
		logger: logger.With(zap.String("swarm", deps.Swarm)),
	}
}

// IsEmpty reports whether no guards are configured.
func (e *Engine) IsEmpty() bool {
	return len(e.guards) == 0
}

// Guards returns the composed guards in configuration order.
func (e *Engine) Guards() []*guard.Guard {
	return append([]*guard.Guard(nil), e.guards...)
}

// Start starts every guard. If one fails to start, the guards already
// started are stopped again and the error is returned.
func (e *Engine) Start() error {
	for i, g := range e.guards {
		if err := g.Start(); err != nil {
			for _, started := range e.guards[:i] {
				started.Stop()
			}
			return fmt.Errorf("start guard %s: %w", g.Settings().Label(), err)
		}
	}
	if len(e.guards) > 0 {
		e.logger.Info("guard engine started", zap.Int("guards", len(e.guards)))
	}
	return nil
}

// Stop stops every guard concurrently and waits for all of them.
func (e *Engine) Stop() {
	var wg sync.WaitGroup
	for _, g := range e.guards {
		wg.Add(1)
		go func(g *guard.Guard) {
			defer wg.Done()
			g.Stop()
		}(g)
	}
	wg.Wait()
}

// Pause pauses every guard.
func (e *Engine) Pause() {
	for _, g := range e.guards {
		g.Pause()
	}
}

// Resume resumes every guard.
func (e *Engine) Resume() {
	for _, g := range e.guards {
		g.Resume()
	}
}

// Anticipate announces expected demand at for the guard of queue, matched by
// alias or physical name.
func (e *Engine) Anticipate(queue string, at time.Time) error {
	g, ok := e.lookup(queue)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownQueue, queue)
	}
	g.Anticipate(at)
	return nil
}

// Snapshots returns the latest snapshot of every guard.
func (e *Engine) Snapshots() []guard.Snapshot {
	out := make([]guard.Snapshot, 0, len(e.guards))
	for _, g := range e.guards {
		out = append(out, g.Snapshot())
	}
	return out
}

func (e *Engine) lookup(queue string) (*guard.Guard, bool) {
	queue = strings.TrimSpace(queue)
	for _, g := range e.guards {
		s := g.Settings()
		if s.QueueAlias == queue || s.Queue == queue {
			return g, true
		}
	}
	return nil, false
}

// fanOut combines observers; nil entries are skipped.
func fanOut(observers []guard.Observer) guard.Observer {
	var live []guard.Observer
	for _, o := range observers {
		if o != nil {
			live = append(live, o)
		}
	}
	switch len(live) {
	case 0:
		return nil
	case 1:
		return live[0]
	}
	return guard.ObserverFunc(func(snap guard.Snapshot) {
		for _, o := range live {
			o.OnTick(snap)
		}
	})
}
