package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/skillsenselab/loaderkit/logger"
	"github.com/skillsenselab/loaderkit/registry"
)

// App ties a component registry, a bootstrap profile, and lifecycle hooks
// into a runnable application. The type parameter C is the config type; any
// struct embedding config.ServiceConfig satisfies Config.
//
// Example:
//
//	app, err := bootstrap.NewApp(&myConfig)
//	app.Registry.Register("csrf", newCSRFGuard, registry.Required())
//	app.Run(context.Background())
type App[C Config] struct {
	Name     string
	Version  string
	Cfg      C
	Registry *registry.Registry
	Profile  Profile
	Level    Level
	Mode     registry.Mode
	Logger   *logger.Logger
	Summary  *Summary

	gracefulTimeout time.Duration

	onStart []Hook
	onReady []Hook
	onStop  []Hook
}

// NewApp creates a new application instance from a typed config. It applies
// defaults, validates the config, and initializes the logger and registry.
func NewApp[C Config](cfg C, opts ...Option) (*App[C], error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	base := cfg.GetServiceConfig()

	level, err := ParseLevel(base.Loader.Level)
	if err != nil {
		return nil, err
	}

	app := &App[C]{
		Name:    base.Name,
		Version: base.Version,
		Cfg:     cfg,
		Level:   level,
		Mode:    registry.Mode(base.Loader.Mode),
		Profile: Profile{
			StandardExtras: base.Loader.StandardComponents,
		},
		gracefulTimeout: 15 * time.Second,
	}

	o := resolveOptions(opts)
	if o.gracefulTimeout != nil {
		app.gracefulTimeout = *o.gracefulTimeout
	}

	if o.logger != nil {
		app.Logger = o.logger
	} else {
		logger.Init(base.Logging)
		app.Logger = logger.GetGlobalLogger()
	}

	if o.registry != nil {
		app.Registry = o.registry
	} else {
		app.Registry = registry.New(
			registry.WithDefaultTimeout(base.Loader.DefaultTimeout),
			registry.WithLogger(app.Logger.WithComponent("registry")),
		)
	}

	app.Summary = NewSummary(base.Name, base.Version)
	return app, nil
}

// Run executes the full application lifecycle: load the bootstrap profile,
// run hooks, block until a shutdown signal, then shut down gracefully.
func (a *App[C]) Run(ctx context.Context) error {
	if err := a.startup(ctx); err != nil {
		return err
	}

	a.Logger.Info("Application ready, waiting for shutdown signal")
	a.WaitForSignal(ctx)

	return a.stop()
}

// startup performs the initialization sequence.
func (a *App[C]) startup(ctx context.Context) error {
	start := time.Now()

	a.Logger.Info("Starting application", map[string]interface{}{
		"name":            a.Name,
		"version":         a.Version,
		"mode":            string(a.Mode),
		logger.FieldLevel: string(a.Level),
	})

	if err := a.Registry.Initialize(ctx, a.Mode); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	// Deferred mode skips profile loading entirely; components come up on
	// first request instead.
	if a.Mode == registry.ModeImmediate {
		if err := a.Profile.LoadAtLevel(ctx, a.Registry, a.Level); err != nil {
			return fmt.Errorf("profile load failed: %w", err)
		}
	}

	if err := runHooks(ctx, a.onStart); err != nil {
		return fmt.Errorf("onStart hook failed: %w", err)
	}
	if err := runHooks(ctx, a.onReady); err != nil {
		return fmt.Errorf("onReady hook failed: %w", err)
	}

	a.Summary.SetStartupDuration(time.Since(start))
	a.Summary.Display(a.Registry)

	return nil
}

// WaitForSignal blocks until an OS interrupt/term signal or context
// cancellation.
func (a *App[C]) WaitForSignal(ctx context.Context) os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		a.Logger.Info("Received shutdown signal, starting graceful shutdown", map[string]interface{}{
			"signal": sig.String(),
		})
		return sig
	case <-ctx.Done():
		a.Logger.Info("Context canceled, shutting down")
		return nil
	}
}

// Shutdown performs graceful shutdown. Use when managing your own lifecycle.
func (a *App[C]) Shutdown(ctx context.Context) error {
	return a.stop()
}

// stop runs shutdown hooks and unloads every optional loaded component.
// Required components keep their instances until the process exits.
func (a *App[C]) stop() error {
	a.Logger.Info("Shutting down application", map[string]interface{}{
		"timeout": a.gracefulTimeout.String(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), a.gracefulTimeout)
	defer cancel()

	var shutdownErr error
	if err := runHooks(ctx, a.onStop); err != nil {
		a.Logger.Error("OnStop hook error", map[string]interface{}{
			logger.FieldError: err.Error(),
		})
		shutdownErr = err
	}

	a.unloadOptional()

	a.Logger.Info("Application shutdown complete")
	return shutdownErr
}

// unloadOptional unloads optional loaded components in reverse registration
// order. Multiple passes release dependency chains: a component refused in one pass
// because of a loaded dependent may succeed once that dependent is gone.
func (a *App[C]) unloadOptional() {
	for {
		progress := false
		snaps := a.Registry.Snapshots()
		for i := len(snaps) - 1; i >= 0; i-- {
			snap := snaps[i]
			if snap.Required || snap.Status != registry.StatusLoaded {
				continue
			}
			if ok, err := a.Registry.Unload(snap.Name); err == nil && ok {
				progress = true
			}
		}
		if !progress {
			return
		}
	}
}
