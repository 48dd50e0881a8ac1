package observability

import (
	"context"
	"fmt"
	"time"
)

// Config is the telemetry section of a service's configuration file. It
// feeds both the tracer and the meter provider.
type Config struct {
	// Enabled turns OTLP export on. When false, Setup is a no-op and the
	// collector falls back to log-only observation.
	Enabled bool `yaml:"enabled" mapstructure:"enabled" json:"enabled"`
	// Endpoint is the OTLP HTTP endpoint host:port.
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint" json:"endpoint"`
	// Insecure allows plain HTTP connections (for development).
	Insecure bool `yaml:"insecure" mapstructure:"insecure" json:"insecure"`
	// Interval is the metric export interval.
	Interval time.Duration `yaml:"interval" mapstructure:"interval" json:"interval"`
	// SampleRate is the trace sampling rate (0.0 to 1.0).
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate" json:"sample_rate"`
}

// ApplyDefaults applies default values to the telemetry settings.
func (c *Config) ApplyDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4318"
	}
	if c.Interval <= 0 {
		c.Interval = 15 * time.Second
	}
	if c.SampleRate <= 0 {
		c.SampleRate = 1.0
	}
}

// Validate checks the telemetry settings for invalid values.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Endpoint == "" {
		return fmt.Errorf("observability.endpoint must be set when enabled")
	}
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return fmt.Errorf("observability.sample_rate must be between 0 and 1 (got: %g)", c.SampleRate)
	}
	return nil
}

// Setup initializes the tracer and meter providers against the configured
// OTLP endpoint and builds the component lifecycle instruments. It returns
// the instruments and a shutdown function that flushes both providers. A
// disabled config yields nil instruments and a no-op shutdown.
func Setup(ctx context.Context, cfg Config, serviceName, serviceVersion, environment string) (*Metrics, func(context.Context) error, error) {
	if !cfg.Enabled {
		return nil, func(context.Context) error { return nil }, nil
	}

	tcfg := TracerConfig{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Environment:    environment,
		Endpoint:       cfg.Endpoint,
		Insecure:       cfg.Insecure,
		SampleRate:     cfg.SampleRate,
	}
	tp, err := InitTracer(ctx, tcfg)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing tracer: %w", err)
	}

	mcfg := MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Environment:    environment,
		Endpoint:       cfg.Endpoint,
		Insecure:       cfg.Insecure,
		Interval:       cfg.Interval,
	}
	mp, err := InitMeter(ctx, &mcfg)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, nil, fmt.Errorf("initializing meter: %w", err)
	}

	metrics, err := NewMetrics(mp.Meter(defaultTracerName))
	if err != nil {
		_ = mp.Shutdown(ctx)
		_ = tp.Shutdown(ctx)
		return nil, nil, err
	}

	shutdown := func(ctx context.Context) error {
		merr := mp.Shutdown(ctx)
		terr := tp.Shutdown(ctx)
		if merr != nil {
			return merr
		}
		return terr
	}
	return metrics, shutdown, nil
}
