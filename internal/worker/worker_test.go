package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"swarmguard/internal/testutil"
	"swarmguard/pkg/ratelimiter"
)

// memQueue is an in-process Queue.
type memQueue struct {
	mu     sync.Mutex
	queues map[string][][]byte
}

func newMemQueue() *memQueue {
	return &memQueue{queues: map[string][][]byte{}}
}

func (q *memQueue) Push(_ context.Context, queue string, payload []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queues[queue] = append(q.queues[queue], payload)
	return nil
}

func (q *memQueue) Pop(ctx context.Context, queue string, timeout time.Duration) ([]byte, bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		q.mu.Lock()
		items := q.queues[queue]
		if len(items) > 0 {
			q.queues[queue] = items[1:]
			q.mu.Unlock()
			return items[0], true, nil
		}
		q.mu.Unlock()
		if time.Now().After(deadline) {
			return nil, false, nil
		}
		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

func (q *memQueue) depth(queue string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queues[queue])
}

// TestGeneratorEmitsPlannedQuota verifies fractional carry across ticks.
func TestGeneratorEmitsPlannedQuota(t *testing.T) {
	q := newMemQueue()
	limiter := ratelimiter.NewWithTick(ratelimiter.NewConstant(25), 100*time.Millisecond)
	g := NewGenerator(q, "work", limiter, 100*time.Millisecond, nil)
	ctx := testutil.Context(t, 0)
	for i := 0; i < 4; i++ {
		if err := g.emit(ctx); err != nil {
			t.Fatalf("emit: %v", err)
		}
	}
	if g.Emitted() != 10 || q.depth("work") != 10 {
		t.Fatalf("expected 10 messages, got %d (depth %d)", g.Emitted(), q.depth("work"))
	}

	limiter.SetEnabled(false)
	if err := g.emit(ctx); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if g.Emitted() != 10 {
		t.Fatalf("expected disabled planner to emit nothing")
	}
}

// TestModeratorForwardsMessages verifies forwarding and hop accounting.
func TestModeratorForwardsMessages(t *testing.T) {
	q := newMemQueue()
	ctx, cancel := context.WithCancel(testutil.Context(t, 0))
	for i := 0; i < 5; i++ {
		payload, _ := encode(NewMessage(time.Now()))
		_ = q.Push(ctx, "work", payload)
	}
	m := NewModerator(q, "work", "final", ratelimiter.New(ratelimiter.PassThrough{}), nil)
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	testutil.Eventually(t, 2*time.Second, 5*time.Millisecond, func() bool {
		return m.Forwarded() == 5
	}, "moderator did not forward all messages")
	cancel()
	runWithTimeout(t, 2*time.Second, func() {
		if err := <-done; err != nil {
			t.Errorf("run: %v", err)
		}
	})

	payload, ok, _ := q.Pop(context.Background(), "final", 0)
	if !ok {
		t.Fatalf("expected forwarded message")
	}
	msg, err := decode(payload)
	if err != nil || msg.Hops != 1 || msg.ID == "" {
		t.Fatalf("unexpected forwarded message %+v (%v)", msg, err)
	}
}

// TestModeratorPacesForwarding verifies the constant rate bounds throughput.
func TestModeratorPacesForwarding(t *testing.T) {
	q := newMemQueue()
	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()
	for i := 0; i < 50; i++ {
		payload, _ := encode(NewMessage(time.Now()))
		_ = q.Push(ctx, "work", payload)
	}
	m := NewModerator(q, "work", "final", ratelimiter.New(ratelimiter.NewConstant(20)), nil)
	runWithTimeout(t, 2*time.Second, func() { _ = m.Run(ctx) })
	if got := m.Forwarded(); got < 3 || got > 7 {
		t.Fatalf("expected about 5 forwards in 250ms at 20/s, got %d", got)
	}
}

// TestProcessorDrains verifies messages are consumed and malformed ones skipped.
func TestProcessorDrains(t *testing.T) {
	q := newMemQueue()
	ctx, cancel := context.WithCancel(testutil.Context(t, 0))
	defer cancel()
	_ = q.Push(ctx, "final", []byte("garbage"))
	for i := 0; i < 3; i++ {
		payload, _ := encode(NewMessage(time.Now()))
		_ = q.Push(ctx, "final", payload)
	}
	p := NewProcessor(q, "final", 0, nil)
	p.SetRate(1000)
	go func() { _ = p.Run(ctx) }()
	testutil.Eventually(t, 2*time.Second, 5*time.Millisecond, func() bool {
		return p.Processed() == 3 && q.depth("final") == 0
	}, "processor did not drain the queue")
}

// runWithTimeout fails the test if fn does not complete within timeout.
func runWithTimeout(t *testing.T, timeout time.Duration, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	select {
	case <-time.After(timeout):
		t.Fatalf("test timed out")
	case <-done:
	}
}
