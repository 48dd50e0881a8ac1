// Command loaderd is a demo daemon for the component loader. It loads its
// configuration, registers the builtin security components, exposes the
// diagnostics API as a required component, and runs until signalled.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/skillsenselab/loaderkit/bootstrap"
	"github.com/skillsenselab/loaderkit/builtin"
	"github.com/skillsenselab/loaderkit/config"
	"github.com/skillsenselab/loaderkit/logger"
	"github.com/skillsenselab/loaderkit/observability"
	"github.com/skillsenselab/loaderkit/registry"
	"github.com/skillsenselab/loaderkit/server"
	"github.com/skillsenselab/loaderkit/version"
)

const serviceName = "loaderd"

// daemonConfig extends the base service configuration with the daemon's own
// sections. The embedded ServiceConfig satisfies bootstrap.Config.
type daemonConfig struct {
	config.ServiceConfig `mapstructure:",squash"`

	Server        server.Config        `yaml:"server" mapstructure:"server"`
	Builtin       builtin.Config       `yaml:"builtin" mapstructure:"builtin"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`
}

func (c *daemonConfig) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	if c.Version == "" {
		c.Version = version.Short()
	}
	c.Server.ApplyDefaults()
	c.Observability.ApplyDefaults()
	if c.Builtin.TokenGuard.Secret == "" && c.Environment == "development" {
		c.Builtin.TokenGuard.Secret = "loaderd-dev-secret-not-for-prod"
	}
}

func (c *daemonConfig) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("config.server: %w", err)
	}
	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("config.observability: %w", err)
	}
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "loaderd:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := &daemonConfig{}
	cfg.Name = serviceName
	if err := config.LoadConfig(serviceName, cfg); err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger.Init(cfg.Logging)
	log := logger.New(&cfg.Logging, cfg.Name)

	app, err := bootstrap.NewApp(cfg, bootstrap.WithLogger(log))
	if err != nil {
		return err
	}

	metrics, otelShutdown, err := observability.Setup(
		context.Background(), cfg.Observability, cfg.Name, cfg.Version, cfg.Environment)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	app.OnStop(otelShutdown)

	builtin.RegisterAll(app.Registry, cfg.Builtin)
	registerDiagnostics(app, cfg, log)

	collector := observability.NewCollector(metrics, log)
	app.Registry.Notify(collector.Handle)

	return app.Run(context.Background())
}

// registerDiagnostics registers the HTTP diagnostics server as a required
// component so every profile level starts it, and stops it on shutdown.
func registerDiagnostics(app *bootstrap.App[*daemonConfig], cfg *daemonConfig, log *logger.Logger) {
	if !cfg.Server.Enabled {
		return
	}

	app.Registry.Register("diagnostics-api", func(ctx context.Context) (any, error) {
		srv := server.New(cfg.Server, log)
		srv.ApplyMiddleware()

		api := server.NewAPI(app.Registry, log)
		api.RegisterRoutes(srv.GinEngine())

		if err := srv.Start(ctx); err != nil {
			return nil, err
		}
		return srv, nil
	}, registry.WithPriority(50), registry.Required())

	app.OnStop(func(ctx context.Context) error {
		instance, ok := app.Registry.Get("diagnostics-api")
		if !ok {
			return nil
		}
		srv, ok := instance.(*server.Server)
		if !ok {
			return nil
		}
		return srv.Stop(ctx)
	})
}
