package registry

import (
	"context"
	"slices"
	"time"
)

// Status is the lifecycle state of a registered component.
type Status string

const (
	StatusPending  Status = "pending"
	StatusLoading  Status = "loading"
	StatusLoaded   Status = "loaded"
	StatusError    Status = "error"
	StatusUnloaded Status = "unloaded"
)

// Factory constructs a component instance. The context carries the load
// deadline; factories that respect it can stop early on timeout, but the
// registry does not depend on that.
type Factory func(ctx context.Context) (any, error)

// DefaultPriority is assigned to components registered without an explicit
// priority. Lower values load earlier during bootstrap.
const DefaultPriority = 100

// record is the registry's book-keeping for one component. It is owned
// exclusively by the Registry and mutated only under its lock.
type record struct {
	name     string
	factory  Factory
	deps     []string
	priority int
	required bool
	seq      int // registration order, breaks priority ties

	status    Status
	instance  any
	lastErr   error
	loadTime  time.Duration // duration of the most recent successful load
	hasLoaded bool          // ever completed a load, for average stats
}

// snapshotLocked copies the record for handing outside the lock.
func (rec *record) snapshotLocked() Snapshot {
	return Snapshot{
		Name:         rec.name,
		Status:       rec.status,
		Dependencies: slices.Clone(rec.deps),
		Priority:     rec.priority,
		Required:     rec.required,
		LoadTime:     rec.loadTime,
		Err:          rec.lastErr,
	}
}

// Snapshot is an immutable copy of a component record, handed to event
// handlers and diagnostics consumers.
type Snapshot struct {
	Name         string        `json:"name"`
	Status       Status        `json:"status"`
	Dependencies []string      `json:"dependencies,omitempty"`
	Priority     int           `json:"priority"`
	Required     bool          `json:"required"`
	LoadTime     time.Duration `json:"load_time,omitempty"`
	Err          error         `json:"-"`
}

// Option configures a component at registration time.
type Option func(*record)

// WithDependencies declares the components that must be loaded before this
// one. Dependencies are resolved in declaration order. They may name
// components that are not yet registered; validation happens at load time.
func WithDependencies(names ...string) Option {
	return func(rec *record) {
		rec.deps = append(rec.deps, names...)
	}
}

// WithPriority sets the bootstrap priority. Lower values load earlier among
// required components; ties are broken by registration order.
func WithPriority(p int) Option {
	return func(rec *record) {
		rec.priority = p
	}
}

// Required marks the component as mandatory: it must load successfully
// during bootstrap and can never be unloaded.
func Required() Option {
	return func(rec *record) {
		rec.required = true
	}
}

// LoadOption configures a single Load call.
type LoadOption func(*loadOptions)

type loadOptions struct {
	force   bool
	timeout time.Duration
}

// Force reloads the component even when it is already loaded.
func Force() LoadOption {
	return func(o *loadOptions) {
		o.force = true
	}
}

// WithTimeout overrides the registry's default load timeout for this call.
func WithTimeout(d time.Duration) LoadOption {
	return func(o *loadOptions) {
		o.timeout = d
	}
}
