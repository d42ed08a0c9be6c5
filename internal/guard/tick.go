package guard

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// tick runs one control step. Failures never escape: the next tick is the retry.
func (g *Guard) tick(ctx context.Context, st *State) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Warn("buffer guard tick failed", zap.String("panic", fmt.Sprint(r)))
		}
	}()

	now := g.now()
	if at := g.anticipate.Load(); at != 0 && g.settings.Prefill.Enabled {
		st.PrefillEnd = time.Unix(0, at)
	}
	if g.paused.Load() {
		g.disable(st, now)
		return
	}
	depth, ok, err := g.depth(ctx, g.settings.Queue)
	if err != nil {
		g.logger.Debug("queue depth unavailable", zap.Error(err))
		g.disable(st, now)
		return
	}
	if !ok {
		g.logger.Debug("queue not provisioned")
		g.disable(st, now)
		return
	}

	d := step(g.settings, st, now, depth, g.observeDownstream(ctx))
	g.transition(st, d.mode)

	published := false
	if shouldPublish(st.CurrentRate, d.rate) {
		published = g.publish(ctx, st, d)
	}

	snap := g.snapshotOf(st, now)
	snap.Depth = depth
	snap.Candidate = d.rate
	snap.Published = published
	g.record(snap)
}

// depth queries the stats port; a missing port means the queue is unobservable.
func (g *Guard) depth(ctx context.Context, queue string) (int64, bool, error) {
	if g.stats == nil {
		return 0, false, nil
	}
	return g.stats.Depth(ctx, queue)
}

// observeDownstream reads the downstream queue depth when backpressure is configured.
func (g *Guard) observeDownstream(ctx context.Context) downstreamReading {
	queue := g.settings.Backpressure.DownstreamQueue
	if queue == "" {
		return downstreamReading{}
	}
	depth, ok, err := g.depth(ctx, queue)
	if err != nil {
		g.logger.Debug("downstream depth unavailable", zap.String("downstream", queue), zap.Error(err))
		return downstreamReading{}
	}
	if !ok {
		return downstreamReading{}
	}
	return downstreamReading{depth: depth, observed: true}
}

// publish sends the new rate and records it as applied on success.
func (g *Guard) publish(ctx context.Context, st *State, d decision) bool {
	if g.publisher == nil {
		return false
	}
	if err := g.publisher.Publish(ctx, g.settings.TargetRole, d.rate); err != nil {
		g.logger.Warn("publish rate failed", zap.Float64("rate", d.rate), zap.Error(err))
		return false
	}
	g.logger.Debug("rate published",
		zap.Float64("from", st.CurrentRate),
		zap.Float64("to", d.rate),
		zap.Float64("average_depth", d.average),
		zap.Float64("effective_target", d.targetDepth))
	st.CurrentRate = d.rate
	return true
}

// disable records a tick without control, holding the last applied rate.
func (g *Guard) disable(st *State, now time.Time) {
	g.transition(st, ModeDisabled)
	g.record(g.snapshotOf(st, now))
}

// transition records a mode change.
func (g *Guard) transition(st *State, mode Mode) {
	if st.Mode == mode {
		return
	}
	g.logger.Info("buffer guard mode changed",
		zap.Stringer("from", st.Mode),
		zap.Stringer("to", mode))
	st.Mode = mode
}

// snapshotOf builds a snapshot from the current state.
func (g *Guard) snapshotOf(st *State, now time.Time) *Snapshot {
	return &Snapshot{
		Swarm:        g.swarm,
		Queue:        g.settings.Queue,
		Alias:        g.settings.QueueAlias,
		Role:         g.settings.TargetRole,
		Mode:         st.Mode,
		Depth:        st.LastDepth,
		AverageDepth: st.AverageDepth(),
		TargetDepth:  float64(g.settings.TargetDepth),
		AppliedRate:  st.CurrentRate,
		Candidate:    st.CurrentRate,
		Backpressure: st.Backpressure,
		At:           now,
	}
}

// record stores the snapshot and notifies the observer.
func (g *Guard) record(snap *Snapshot) {
	g.snapshot.Store(snap)
	if g.observer != nil {
		g.observer.OnTick(*snap)
	}
}
