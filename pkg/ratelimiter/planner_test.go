package ratelimiter

import (
	"math"
	"sync"
	"testing"
	"time"
)

// TestPlanInvocationsCarriesFraction verifies a 2.5/s rate yields 2,3,2,3.
func TestPlanInvocationsCarriesFraction(t *testing.T) {
	planner := NewQuotaPlanner(2.5, time.Second)
	now := time.Unix(0, 0)
	wantQuota := []int{2, 3, 2, 3}
	wantCarry := []float64{0.5, 0, 0.5, 0}
	for i := range wantQuota {
		got := planner.PlanInvocations(now.Add(time.Duration(i) * time.Second))
		if got != wantQuota[i] {
			t.Fatalf("tick %d: quota %d, want %d", i, got, wantQuota[i])
		}
		if carry := planner.CarryOver(); math.Abs(carry-wantCarry[i]) > 1e-9 {
			t.Fatalf("tick %d: carry %v, want %v", i, carry, wantCarry[i])
		}
	}
}

// TestPlanInvocationsConvergesToRate verifies long-run totals match the rate.
func TestPlanInvocationsConvergesToRate(t *testing.T) {
	planner := NewQuotaPlanner(0.3, time.Second)
	now := time.Unix(0, 0)
	total := 0
	for i := 0; i < 1000; i++ {
		q := planner.PlanInvocations(now.Add(time.Duration(i) * time.Second))
		if q < 0 || q > 1 {
			t.Fatalf("tick %d: unexpected quota %d", i, q)
		}
		total += q
	}
	if total < 299 || total > 300 {
		t.Fatalf("expected ~300 invocations, got %d", total)
	}
}

// TestPlanInvocationsUsesTickLength verifies the quota scales with the tick.
func TestPlanInvocationsUsesTickLength(t *testing.T) {
	planner := NewQuotaPlanner(10, 100*time.Millisecond)
	if got := planner.PlanInvocations(time.Unix(0, 0)); got != 1 {
		t.Fatalf("expected 1 invocation per 100ms tick, got %d", got)
	}
}

// TestPlanInvocationsDisabledResetsCarry verifies disabling returns zero and drops carry.
func TestPlanInvocationsDisabledResetsCarry(t *testing.T) {
	planner := NewQuotaPlanner(2.5, time.Second)
	now := time.Unix(0, 0)
	planner.PlanInvocations(now)
	if planner.CarryOver() == 0 {
		t.Fatalf("expected carry after first tick")
	}
	planner.SetEnabled(false)
	if got := planner.PlanInvocations(now.Add(time.Second)); got != 0 {
		t.Fatalf("expected zero quota while disabled, got %d", got)
	}
	if planner.CarryOver() != 0 {
		t.Fatalf("expected carry reset while disabled")
	}
	planner.SetEnabled(true)
	if got := planner.PlanInvocations(now.Add(2 * time.Second)); got != 2 {
		t.Fatalf("expected no catch-up burst after re-enable, got %d", got)
	}
}

// TestPlanInvocationsInvalidRateIsZero verifies negative and non-finite rates plan nothing.
func TestPlanInvocationsInvalidRateIsZero(t *testing.T) {
	for _, rate := range []float64{-3, math.NaN(), math.Inf(1)} {
		planner := NewQuotaPlanner(rate, time.Second)
		if got := planner.PlanInvocations(time.Unix(0, 0)); got != 0 {
			t.Fatalf("rate %v: expected zero quota, got %d", rate, got)
		}
	}
}

// TestPlanInvocationsReadsLatestRate verifies rate overrides apply on the next tick.
func TestPlanInvocationsReadsLatestRate(t *testing.T) {
	planner := NewQuotaPlanner(1, time.Second)
	now := time.Unix(0, 0)
	if got := planner.PlanInvocations(now); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
	planner.SetRate(5)
	if got := planner.PlanInvocations(now.Add(time.Second)); got != 5 {
		t.Fatalf("expected 5 after override, got %d", got)
	}
}

// TestPlanInvocationsSineMode verifies the planner follows a sine mode.
func TestPlanInvocationsSineMode(t *testing.T) {
	planner := NewQuotaPlanner(0, time.Second)
	planner.SetMode(NewSine(10, 30, 4*time.Second, 0))
	start := time.Unix(100, 0)
	if got := planner.PlanInvocations(start); got != 20 {
		t.Fatalf("expected center quota 20, got %d", got)
	}
	if got := planner.PlanInvocations(start.Add(time.Second)); got != 30 {
		t.Fatalf("expected peak quota 30, got %d", got)
	}
}

// TestPlannerConcurrentAccess exercises concurrent planning and toggling.
func TestPlannerConcurrentAccess(t *testing.T) {
	runWithTimeout(t, 2*time.Second, func() {
		planner := NewQuotaPlanner(3.3, time.Second)
		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				for j := 0; j < 200; j++ {
					if i%2 == 0 {
						planner.SetEnabled(j%3 != 0)
						planner.SetRate(float64(j % 7))
						continue
					}
					planner.PlanInvocations(time.Unix(int64(j), 0))
				}
			}(i)
		}
		wg.Wait()
		if carry := planner.CarryOver(); carry < 0 || carry >= 1 {
			t.Errorf("carry out of range: %v", carry)
		}
	})
}
