package config

import (
	"fmt"
	"slices"
	"time"

	"github.com/skillsenselab/loaderkit/logger"
	"github.com/skillsenselab/loaderkit/validation"
)

// ServiceConfig contains the configuration every loader-based service needs.
// Projects extend it by embedding it in their own config structs; the
// promoted methods satisfy bootstrap.Config automatically.
type ServiceConfig struct {
	Name        string         `yaml:"name" mapstructure:"name" json:"name" validate:"required"`
	Environment string         `yaml:"environment" mapstructure:"environment" json:"environment" validate:"oneof=development staging production"`
	Version     string         `yaml:"version" mapstructure:"version" json:"version"`
	Debug       bool           `yaml:"debug" mapstructure:"debug" json:"debug"`
	Logging     logger.Config  `yaml:"logging" mapstructure:"logging" json:"logging"`
	Loader      LoaderSettings `yaml:"loader" mapstructure:"loader" json:"loader"`
}

// LoaderSettings configures the component registry and bootstrap profile.
type LoaderSettings struct {
	// Mode selects deferred or immediate loading of required components.
	Mode string `yaml:"mode" mapstructure:"mode" json:"mode" validate:"oneof=deferred immediate"`
	// Level is the bootstrap profile: minimum, standard, or maximum.
	Level string `yaml:"level" mapstructure:"level" json:"level" validate:"oneof=minimum standard maximum"`
	// DefaultTimeout bounds a single component load.
	DefaultTimeout time.Duration `yaml:"default_timeout" mapstructure:"default_timeout" json:"default_timeout"`
	// StandardComponents are the optional components included at the
	// standard level, beyond the required set. Names without a matching
	// registration are ignored at selection time.
	StandardComponents []string `yaml:"standard_components" mapstructure:"standard_components" json:"standard_components"`
}

// DefaultStandardComponents is the StandardComponents fallback: the builtin
// rate limiting and threat monitoring components. The required ones among
// them load at every level anyway, so an unconfigured standard profile still
// brings up monitoring instead of degrading to the minimum set.
var DefaultStandardComponents = []string{"rate-limiter", "threat-monitor"}

// ApplyDefaults applies default values to loader settings.
func (s *LoaderSettings) ApplyDefaults() {
	if s.Mode == "" {
		s.Mode = "immediate"
	}
	if s.Level == "" {
		s.Level = "standard"
	}
	if s.DefaultTimeout <= 0 {
		s.DefaultTimeout = 30 * time.Second
	}
	if len(s.StandardComponents) == 0 {
		s.StandardComponents = slices.Clone(DefaultStandardComponents)
	}
}

// GetServiceConfig returns the base ServiceConfig. When embedded in a larger
// config struct this method is promoted, so the embedding struct satisfies
// the bootstrap Config interface.
func (c *ServiceConfig) GetServiceConfig() *ServiceConfig {
	return c
}

// ApplyDefaults applies default values to the base configuration. Embedding
// structs override this and call it first.
func (c *ServiceConfig) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Environment == "development" {
		c.Debug = true
	}
	c.Logging.ApplyDefaults()
	c.Loader.ApplyDefaults()
}

// Validate validates the base configuration fields. Embedding structs
// override this and call it first.
func (c *ServiceConfig) Validate() error {
	if err := validation.Validate(c); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("config.logging: %w", err)
	}
	return nil
}
