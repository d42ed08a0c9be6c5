package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"swarmguard/internal/guard"
)

// DefaultBuffer is the number of snapshots queued ahead of the writer.
const DefaultBuffer = 256

// BeginRun registers a new run of swarm and returns its id.
func BeginRun(ctx context.Context, db *sql.DB, swarm string, at time.Time) (string, error) {
	if db == nil {
		return "", errors.New("history: db is nil")
	}
	id := uuid.NewString()
	if _, err := db.ExecContext(ctx,
		`INSERT INTO runs (run_id, swarm, started_at) VALUES (?, ?, ?)`,
		id, swarm, at.UTC(),
	); err != nil {
		return "", fmt.Errorf("begin run: %w", err)
	}
	return id, nil
}

// Recorder persists guard snapshots. OnTick never blocks the guard: when the
// buffer is full the snapshot is dropped and counted.
type Recorder struct {
	db     *sql.DB
	runID  string
	logger *zap.Logger

	mu      sync.RWMutex
	closed  bool
	pending chan guard.Snapshot
	done    chan struct{}
	dropped atomic.Int64
}

// NewRecorder starts a writer for runID.
func NewRecorder(db *sql.DB, runID string, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Recorder{
		db:      db,
		runID:   runID,
		logger:  logger.With(zap.String("run_id", runID)),
		pending: make(chan guard.Snapshot, DefaultBuffer),
		done:    make(chan struct{}),
	}
	go r.write()
	return r
}

// OnTick implements guard.Observer.
func (r *Recorder) OnTick(snap guard.Snapshot) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.pending <- snap:
	default:
		r.dropped.Add(1)
	}
}

// Dropped returns the number of snapshots discarded on a full buffer.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Close flushes queued snapshots and stops the writer.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.pending)
	r.mu.Unlock()
	<-r.done
	if n := r.dropped.Load(); n > 0 {
		r.logger.Warn("history dropped snapshots", zap.Int64("dropped", n))
	}
}

func (r *Recorder) write() {
	defer close(r.done)
	for snap := range r.pending {
		if err := r.insert(context.Background(), snap); err != nil {
			r.logger.Warn("record guard tick failed", zap.String("queue", snap.Queue), zap.Error(err))
		}
	}
}

func (r *Recorder) insert(ctx context.Context, s guard.Snapshot) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO guard_ticks (
			run_id, swarm, queue, alias, role, mode, mode_code, depth, average_depth,
			target_depth, applied_rate, candidate_rate, backpressure, published, at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.runID, s.Swarm, s.Queue, s.Alias, s.Role, s.Mode.String(), s.Mode.Code(),
		s.Depth, s.AverageDepth, s.TargetDepth, s.AppliedRate, s.Candidate,
		s.Backpressure, s.Published, s.At.UTC(),
	)
	return err
}
