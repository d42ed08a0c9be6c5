package guard

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
)

// instrumentationName is the meter name used for guard gauges.
const instrumentationName = "swarmguard/internal/guard"

// Config wires a guard to its settings and collaborators.
type Config struct {
	Swarm     string
	Settings  Settings
	Stats     QueueStats
	Publisher RatePublisher
	Observer  Observer
	Logger    *zap.Logger
	Meter     metric.Meter
}

// timingConfig overrides guard timing for tests.
type timingConfig struct {
	now       func() time.Time
	newTicker func(d time.Duration) (<-chan time.Time, func())
}

// defaultTimingConfig returns the production timing defaults.
func defaultTimingConfig() timingConfig {
	return timingConfig{now: time.Now, newTicker: realTicker}
}

// realTicker wraps time.NewTicker.
func realTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Guard runs the feedback loop of one queue on its own goroutine.
type Guard struct {
	swarm     string
	settings  Settings
	stats     QueueStats
	publisher RatePublisher
	observer  Observer
	logger    *zap.Logger
	meter     metric.Meter
	now       func() time.Time
	newTicker func(d time.Duration) (<-chan time.Time, func())

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	gauges *gauges

	paused     atomic.Bool
	anticipate atomic.Int64
	snapshot   atomic.Pointer[Snapshot]
}

// New creates a stopped guard. Settings are normalized.
func New(cfg Config) *Guard {
	return newGuard(cfg, defaultTimingConfig())
}

// newGuard builds a Guard with custom timing, primarily for tests.
func newGuard(cfg Config, tc timingConfig) *Guard {
	if tc.now == nil {
		tc.now = time.Now
	}
	if tc.newTicker == nil {
		tc.newTicker = realTicker
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	meter := cfg.Meter
	if meter == nil {
		meter = noop.NewMeterProvider().Meter(instrumentationName)
	}
	settings := cfg.Settings.Normalize()
	g := &Guard{
		swarm:     cfg.Swarm,
		settings:  settings,
		stats:     cfg.Stats,
		publisher: cfg.Publisher,
		observer:  cfg.Observer,
		meter:     meter,
		now:       tc.now,
		newTicker: tc.newTicker,
		logger: logger.With(
			zap.String("swarm", cfg.Swarm),
			zap.String("queue", settings.Label()),
			zap.String("role", settings.TargetRole),
		),
	}
	g.snapshot.Store(&Snapshot{})
	return g
}

// Settings returns the normalized settings.
func (g *Guard) Settings() Settings {
	return g.settings
}

// Start resets the guard state and begins ticking: once immediately, then
// every sample period. Starting a running guard is a no-op.
func (g *Guard) Start() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancel != nil {
		return nil
	}

	gauges, err := registerGauges(g.meter, g.swarm, g.settings.Label(), g.Snapshot)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	start := g.now()
	st := newState(g.settings, start)
	g.snapshot.Store(g.snapshotOf(st, start))

	g.gauges = gauges
	g.cancel = cancel
	g.done = make(chan struct{})
	go g.run(ctx, st, g.done)
	g.logger.Info("buffer guard started",
		zap.Duration("sample_period", g.settings.SamplePeriod),
		zap.Float64("initial_rate", g.settings.InitialRate))
	return nil
}

// Stop cancels ticking, waits for an in-flight tick to finish and discards
// the state. Stopping a stopped guard is a no-op.
func (g *Guard) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancel == nil {
		return
	}
	g.cancel()
	<-g.done
	if err := g.gauges.close(); err != nil {
		g.logger.Warn("unregister guard gauges", zap.Error(err))
	}
	g.cancel = nil
	g.done = nil
	g.gauges = nil

	snap := g.Snapshot()
	snap.Mode = ModeDisabled
	snap.At = g.now()
	g.snapshot.Store(&snap)
	g.logger.Info("buffer guard stopped")
}

// Pause makes subsequent ticks report Disabled without discarding state.
func (g *Guard) Pause() {
	if !g.paused.Swap(true) {
		g.logger.Info("buffer guard paused")
	}
}

// Resume re-enables control, continuing the existing moving average.
func (g *Guard) Resume() {
	if g.paused.Swap(false) {
		g.logger.Info("buffer guard resumed")
	}
}

// Paused reports whether the guard is paused.
func (g *Guard) Paused() bool {
	return g.paused.Load()
}

// Running reports whether the guard is started.
func (g *Guard) Running() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cancel != nil
}

// Anticipate sets the time a demand increase is expected; the prefill lift
// applies during the lookahead before it. It has no effect when prefill is
// disabled.
func (g *Guard) Anticipate(at time.Time) {
	g.anticipate.Store(at.UnixNano())
}

// Snapshot returns the latest tick snapshot.
func (g *Guard) Snapshot() Snapshot {
	return *g.snapshot.Load()
}

// run ticks until ctx is cancelled.
func (g *Guard) run(ctx context.Context, st *State, done chan struct{}) {
	defer close(done)
	ticks, stop := g.newTicker(g.settings.SamplePeriod)
	defer stop()

	g.tick(ctx, st)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
			g.tick(ctx, st)
		}
	}
}
