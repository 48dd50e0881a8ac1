package builtin

import (
	"context"

	"github.com/skillsenselab/loaderkit/registry"
)

// Component names used by RegisterAll.
const (
	ComponentTokenGuard    = "token-guard"
	ComponentRateLimiter   = "rate-limiter"
	ComponentThreatMonitor = "threat-monitor"
	ComponentAuditChain    = "audit-chain"
)

// Config bundles configuration for the builtin component set.
type Config struct {
	TokenGuard    TokenGuardConfig    `yaml:"token_guard" mapstructure:"token_guard"`
	RateLimiter   RateLimiterConfig   `yaml:"rate_limiter" mapstructure:"rate_limiter"`
	ThreatMonitor ThreatMonitorConfig `yaml:"threat_monitor" mapstructure:"threat_monitor"`
}

// RegisterAll registers the builtin security components with their priorities
// and dependency graph. The token guard and rate limiter are required; the
// threat monitor rides on the rate limiter, and the audit chain rides on the
// threat monitor.
func RegisterAll(reg *registry.Registry, cfg Config) {
	reg.Register(ComponentTokenGuard, func(ctx context.Context) (any, error) {
		return NewTokenGuard(cfg.TokenGuard)
	}, registry.WithPriority(10), registry.Required())

	reg.Register(ComponentRateLimiter, func(ctx context.Context) (any, error) {
		limiterCfg := cfg.RateLimiter
		if limiterCfg.Name == "" {
			limiterCfg.Name = ComponentRateLimiter
		}
		return NewRateLimiter(limiterCfg), nil
	}, registry.WithPriority(20), registry.Required())

	reg.Register(ComponentThreatMonitor, func(ctx context.Context) (any, error) {
		return NewThreatMonitor(cfg.ThreatMonitor), nil
	}, registry.WithPriority(30), registry.WithDependencies(ComponentRateLimiter))

	reg.Register(ComponentAuditChain, func(ctx context.Context) (any, error) {
		return NewAuditChain(), nil
	}, registry.WithPriority(40), registry.WithDependencies(ComponentThreatMonitor))
}

// TokenGuardFrom fetches the loaded token guard from the registry.
func TokenGuardFrom(reg *registry.Registry) (*TokenGuard, bool) {
	instance, ok := reg.Get(ComponentTokenGuard)
	if !ok {
		return nil, false
	}
	guard, ok := instance.(*TokenGuard)
	return guard, ok
}

// RateLimiterFrom fetches the loaded rate limiter from the registry.
func RateLimiterFrom(reg *registry.Registry) (*RateLimiter, bool) {
	instance, ok := reg.Get(ComponentRateLimiter)
	if !ok {
		return nil, false
	}
	limiter, ok := instance.(*RateLimiter)
	return limiter, ok
}

// ThreatMonitorFrom fetches the loaded threat monitor from the registry.
func ThreatMonitorFrom(reg *registry.Registry) (*ThreatMonitor, bool) {
	instance, ok := reg.Get(ComponentThreatMonitor)
	if !ok {
		return nil, false
	}
	monitor, ok := instance.(*ThreatMonitor)
	return monitor, ok
}

// AuditChainFrom fetches the loaded audit chain from the registry.
func AuditChainFrom(reg *registry.Registry) (*AuditChain, bool) {
	instance, ok := reg.Get(ComponentAuditChain)
	if !ok {
		return nil, false
	}
	chain, ok := instance.(*AuditChain)
	return chain, ok
}
