package bootstrap

import (
	"time"

	"github.com/skillsenselab/loaderkit/logger"
	"github.com/skillsenselab/loaderkit/registry"
)

// Option configures the App during creation. Options are non-generic so they
// can be used with any config type.
type Option func(*appOptions)

// appOptions collects all option values before applying to App.
type appOptions struct {
	logger          *logger.Logger
	registry        *registry.Registry
	gracefulTimeout *time.Duration
}

// resolveOptions applies all options and returns the collected values.
func resolveOptions(opts []Option) *appOptions {
	o := &appOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets a custom logger for the application. If not set, the
// logger is initialized from the config's Logging section.
func WithLogger(l *logger.Logger) Option {
	return func(o *appOptions) {
		o.logger = l
	}
}

// WithRegistry sets a custom component registry, e.g. one shared with tests.
func WithRegistry(r *registry.Registry) Option {
	return func(o *appOptions) {
		o.registry = r
	}
}

// WithGracefulTimeout sets the maximum duration for graceful shutdown.
func WithGracefulTimeout(d time.Duration) Option {
	return func(o *appOptions) {
		o.gracefulTimeout = &d
	}
}
