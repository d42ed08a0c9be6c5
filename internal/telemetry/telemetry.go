// Package telemetry configures the OpenTelemetry meter provider of a process.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	stdoutmetric "go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// DefaultInterval is the export period of the periodic reader.
const DefaultInterval = 15 * time.Second

// Config selects the metric exporter.
type Config struct {
	// Exporter is "none" or "stdout".
	Exporter    string
	Interval    time.Duration
	ServiceName string
	InstanceID  string
	// Writer receives stdout exports; nil means os.Stdout.
	Writer io.Writer
}

// Shutdown flushes and stops the provider.
type Shutdown func(context.Context) error

// Setup installs a global meter provider and returns it with its shutdown.
func Setup(ctx context.Context, cfg Config) (metric.MeterProvider, Shutdown, error) {
	switch strings.TrimSpace(cfg.Exporter) {
	case "", "none":
		provider := noop.NewMeterProvider()
		return provider, func(context.Context) error { return nil }, nil
	case "stdout":
	default:
		return nil, nil, fmt.Errorf("unsupported metrics exporter %q", cfg.Exporter)
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	writer := cfg.Writer
	if writer == nil {
		writer = os.Stdout
	}
	exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(writer), stdoutmetric.WithPrettyPrint())
	if err != nil {
		return nil, nil, fmt.Errorf("create stdout metric exporter: %w", err)
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceInstanceID(cfg.InstanceID),
	))
	if err != nil {
		return nil, nil, fmt.Errorf("create resource: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)
	otel.SetMeterProvider(provider)
	return provider, provider.Shutdown, nil
}
