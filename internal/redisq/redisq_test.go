package redisq

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"swarmguard/internal/testutil"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

// TestDepthTracksDeclaredQueues verifies undeclared queues are unobservable.
func TestDepthTracksDeclaredQueues(t *testing.T) {
	_, rdb := newClient(t)
	b := NewBroker(rdb)
	ctx := testutil.Context(t, 0)

	if _, ok, err := b.Depth(ctx, "ph.demo.work"); err != nil || ok {
		t.Fatalf("expected undeclared queue, got ok=%v err=%v", ok, err)
	}
	if err := b.Declare(ctx, "ph.demo.work"); err != nil {
		t.Fatalf("declare: %v", err)
	}
	depth, ok, err := b.Depth(ctx, "ph.demo.work")
	if err != nil || !ok || depth != 0 {
		t.Fatalf("expected empty declared queue, got %d ok=%v err=%v", depth, ok, err)
	}
	for i := 0; i < 3; i++ {
		if err := b.Push(ctx, "ph.demo.work", []byte{byte(i)}); err != nil {
			t.Fatalf("push: %v", err)
		}
	}
	if depth, _, _ := b.Depth(ctx, "ph.demo.work"); depth != 3 {
		t.Fatalf("expected depth 3, got %d", depth)
	}
}

// TestPopIsFIFO verifies messages leave in push order.
func TestPopIsFIFO(t *testing.T) {
	_, rdb := newClient(t)
	b := NewBroker(rdb)
	ctx := testutil.Context(t, 0)
	for _, m := range []string{"a", "b"} {
		if err := b.Push(ctx, "q", []byte(m)); err != nil {
			t.Fatalf("push: %v", err)
		}
	}
	for _, want := range []string{"a", "b"} {
		got, ok, err := b.Pop(ctx, "q", time.Second)
		if err != nil || !ok || string(got) != want {
			t.Fatalf("expected %q, got %q ok=%v err=%v", want, got, ok, err)
		}
	}
	if _, ok, err := b.Pop(ctx, "q", time.Second); err != nil || ok {
		t.Fatalf("expected timeout on empty queue, got ok=%v err=%v", ok, err)
	}
}

// TestDepthReportsBrokerErrors verifies connection failures surface as errors.
func TestDepthReportsBrokerErrors(t *testing.T) {
	mr, rdb := newClient(t)
	b := NewBroker(rdb, WithKeyPrefix("lab:"))
	mr.Close()
	if _, ok, err := b.Depth(context.Background(), "q"); err == nil || ok {
		t.Fatalf("expected error from closed broker, got ok=%v err=%v", ok, err)
	}
}

type sink struct {
	mu    sync.Mutex
	rates []float64
}

func (s *sink) SetRate(rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rates = append(s.rates, rate)
}

func (s *sink) last() (float64, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.rates) == 0 {
		return 0, 0
	}
	return s.rates[len(s.rates)-1], len(s.rates)
}

// TestPublishReachesSubscriber verifies the rate control plane end to end.
func TestPublishReachesSubscriber(t *testing.T) {
	_, rdb := newClient(t)
	target := &sink{}
	sub := NewSubscriber(rdb, "demo", "generator", target, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sub.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	select {
	case <-sub.Ready():
	case <-time.After(2 * time.Second):
		t.Fatalf("subscription not confirmed")
	}

	pub := NewPublisher(rdb, "demo")
	if err := pub.Publish(ctx, "moderator", 7); err != nil {
		t.Fatalf("publish other role: %v", err)
	}
	if err := pub.Publish(ctx, "generator", 42.5); err != nil {
		t.Fatalf("publish: %v", err)
	}
	testutil.Eventually(t, 2*time.Second, 5*time.Millisecond, func() bool {
		rate, n := target.last()
		return n == 1 && rate == 42.5
	}, "subscriber did not apply the published rate")
}

// TestSubscriberSkipsMalformedPayloads verifies bad messages are discarded.
func TestSubscriberSkipsMalformedPayloads(t *testing.T) {
	_, rdb := newClient(t)
	target := &sink{}
	sub := NewSubscriber(rdb, "demo", "processor", target, nil)
	sub.apply("{not json")
	if _, n := target.last(); n != 0 {
		t.Fatalf("expected malformed update to be ignored")
	}
	payload, _ := json.Marshal(RateUpdate{Role: "processor", RatePerSec: 3})
	sub.apply(string(payload))
	if rate, _ := target.last(); rate != 3 {
		t.Fatalf("expected rate 3, got %v", rate)
	}
}

// TestChannelName verifies the rate channel convention.
func TestChannelName(t *testing.T) {
	if got := Channel(DefaultKeyPrefix, "demo", "generator"); got != "swarmguard.demo.rate.generator" {
		t.Fatalf("unexpected channel %q", got)
	}
}
