package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/skillsenselab/loaderkit/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// ServiceName is the name of the service.
	ServiceName string
	// ServiceVersion is the version of the service.
	ServiceVersion string
	// Environment is the deployment environment (dev, staging, prod).
	Environment string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	// Insecure allows insecure connections (for development).
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the OpenTelemetry meter provider.
// Returns a MeterProvider that should be shut down on application exit.
func InitMeter(ctx context.Context, config *MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metrics holds OpenTelemetry metric instruments for component lifecycle
// observability.
type Metrics struct {
	loadTotal    metric.Int64Counter
	loadDuration metric.Float64Histogram
	loadActive   metric.Int64UpDownCounter
	unloadTotal  metric.Int64Counter
	errorTotal   metric.Int64Counter
}

// NewMetrics creates metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	loadTotal, err := meter.Int64Counter("component.load.total",
		metric.WithDescription("Total number of component loads"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating component.load.total counter: %w", err)
	}

	loadDuration, err := meter.Float64Histogram("component.load.duration",
		metric.WithDescription("Duration of component loads in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating component.load.duration histogram: %w", err)
	}

	loadActive, err := meter.Int64UpDownCounter("component.load.active",
		metric.WithDescription("Number of component loads currently in flight"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating component.load.active gauge: %w", err)
	}

	unloadTotal, err := meter.Int64Counter("component.unload.total",
		metric.WithDescription("Total number of component unloads"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating component.unload.total counter: %w", err)
	}

	errorTotal, err := meter.Int64Counter("component.error.total",
		metric.WithDescription("Total component load failures by error code"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating component.error.total counter: %w", err)
	}

	return &Metrics{
		loadTotal:    loadTotal,
		loadDuration: loadDuration,
		loadActive:   loadActive,
		unloadTotal:  unloadTotal,
		errorTotal:   errorTotal,
	}, nil
}

// RecordLoadStart increments the in-flight load count.
func (m *Metrics) RecordLoadStart(ctx context.Context, component string) {
	m.loadActive.Add(ctx, 1, metric.WithAttributes(
		attribute.String("component", component),
	))
}

// RecordLoadEnd decrements in-flight loads and records the completed load.
func (m *Metrics) RecordLoadEnd(ctx context.Context, component, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("component", component),
		attribute.String("status", status),
	)
	m.loadActive.Add(ctx, -1, metric.WithAttributes(
		attribute.String("component", component),
	))
	m.loadTotal.Add(ctx, 1, attrs)
	m.loadDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("component", component),
	))
}

// RecordUnload records a component unload.
func (m *Metrics) RecordUnload(ctx context.Context, component string) {
	m.unloadTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("component", component),
	))
}

// RecordError records a load failure by error code and component.
func (m *Metrics) RecordError(ctx context.Context, code, component string) {
	m.errorTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("code", code),
		attribute.String("component", component),
	))
}
