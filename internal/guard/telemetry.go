package guard

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricAverageDepth = "swarmguard.guard.depth.average"
	metricTargetDepth  = "swarmguard.guard.depth.target"
	metricAppliedRate  = "swarmguard.guard.rate.applied"
	metricMode         = "swarmguard.guard.mode"
)

// gauges holds the observable instruments of one running guard.
type gauges struct {
	registration metric.Registration
}

// registerGauges creates the four guard gauges and a callback reading the
// latest snapshot from load.
func registerGauges(meter metric.Meter, swarm, queue string, load func() Snapshot) (*gauges, error) {
	avg, err := meter.Float64ObservableGauge(metricAverageDepth,
		metric.WithDescription("Moving-average depth of the guarded queue."),
		metric.WithUnit("{message}"))
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricAverageDepth, err)
	}
	target, err := meter.Float64ObservableGauge(metricTargetDepth,
		metric.WithDescription("Configured target depth of the guarded queue."),
		metric.WithUnit("{message}"))
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricTargetDepth, err)
	}
	rate, err := meter.Float64ObservableGauge(metricAppliedRate,
		metric.WithDescription("Rate last applied to the producing role."),
		metric.WithUnit("{message}/s"))
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricAppliedRate, err)
	}
	mode, err := meter.Int64ObservableGauge(metricMode,
		metric.WithDescription("Guard mode: 0=disabled 1=steady 2=prefill 3=filling 4=draining 5=backpressure."))
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricMode, err)
	}

	attrs := metric.WithAttributes(
		attribute.String("swarm", swarm),
		attribute.String("queue", queue),
	)
	reg, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		snap := load()
		o.ObserveFloat64(avg, snap.AverageDepth, attrs)
		o.ObserveFloat64(target, snap.TargetDepth, attrs)
		o.ObserveFloat64(rate, snap.AppliedRate, attrs)
		o.ObserveInt64(mode, snap.Mode.Code(), attrs)
		return nil
	}, avg, target, rate, mode)
	if err != nil {
		return nil, fmt.Errorf("register guard gauges: %w", err)
	}
	return &gauges{registration: reg}, nil
}

// close unregisters the gauge callback.
func (g *gauges) close() error {
	if g == nil || g.registration == nil {
		return nil
	}
	return g.registration.Unregister()
}
