package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/skillsenselab/loaderkit/errors"
	"github.com/skillsenselab/loaderkit/logger"
)

// Mode selects how Initialize treats required components.
type Mode string

const (
	// ModeDeferred marks the registry initialized without loading anything;
	// components load on first request.
	ModeDeferred Mode = "deferred"
	// ModeImmediate loads all required components during Initialize, and
	// required components registered afterwards load in the background.
	ModeImmediate Mode = "immediate"
)

// DefaultLoadTimeout bounds a single factory invocation unless overridden
// per registry or per call.
const DefaultLoadTimeout = 30 * time.Second

// Registry owns the component records and the in-flight load table. Create
// one per process (or per test) with New; there is no package-level instance.
type Registry struct {
	mu       sync.Mutex
	records  map[string]*record
	inflight map[string]*flight
	handlers []Handler
	seq      int

	initialized bool
	mode        Mode

	defaultTimeout time.Duration
	log            *logger.Logger
}

// RegistryOption configures a Registry at construction time.
type RegistryOption func(*Registry)

// WithDefaultTimeout sets the default per-load timeout.
func WithDefaultTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		r.defaultTimeout = d
	}
}

// WithLogger sets the logger used for lifecycle logging.
func WithLogger(l *logger.Logger) RegistryOption {
	return func(r *Registry) {
		r.log = l
	}
}

// New creates an empty component registry.
func New(opts ...RegistryOption) *Registry {
	r := &Registry{
		records:        make(map[string]*record),
		inflight:       make(map[string]*flight),
		defaultTimeout: DefaultLoadTimeout,
		log:            logger.GetGlobalLogger().WithComponent("registry"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a component under a unique name. Registering an existing
// name is a warn-level no-op, never an error. After Initialize(ModeImmediate)
// a required component starts loading in the background immediately; a
// failure there is logged, not surfaced to the registrar.
func (r *Registry) Register(name string, factory Factory, opts ...Option) {
	r.mu.Lock()
	if _, exists := r.records[name]; exists {
		r.mu.Unlock()
		r.log.Warn("Component already registered, ignoring", map[string]interface{}{
			logger.FieldComponent: name,
		})
		return
	}

	rec := &record{
		name:     name,
		factory:  factory,
		priority: DefaultPriority,
		status:   StatusPending,
		seq:      r.seq,
	}
	r.seq++
	for _, opt := range opts {
		opt(rec)
	}
	r.records[name] = rec

	loadNow := r.initialized && r.mode == ModeImmediate && rec.required
	snap := rec.snapshotLocked()
	r.mu.Unlock()

	r.log.Debug("Component registered", map[string]interface{}{
		logger.FieldComponent: name,
		logger.FieldPriority:  snap.Priority,
		"required":            snap.Required,
		"dependencies":        snap.Dependencies,
	})
	r.emit(EventRegistered, snap, nil)

	if loadNow {
		go func() {
			if _, err := r.Load(context.Background(), name); err != nil {
				r.log.Error("Background load of required component failed", map[string]interface{}{
					logger.FieldComponent: name,
					logger.FieldError:     err.Error(),
				})
			}
		}()
	}
}

// Initialize marks the registry ready. In ModeImmediate it also loads every
// required component in priority order, fail-fast. Calling it again is a
// no-op.
func (r *Registry) Initialize(ctx context.Context, mode Mode) error {
	r.mu.Lock()
	if r.initialized {
		r.mu.Unlock()
		return nil
	}
	r.initialized = true
	r.mode = mode
	r.mu.Unlock()

	r.log.Info("Registry initialized", map[string]interface{}{"mode": string(mode)})

	if mode == ModeImmediate {
		return r.LoadRequired(ctx)
	}
	return nil
}

// Get returns the loaded instance for name. It never triggers a load; the
// second return is false when the component is unknown or not loaded.
func (r *Registry) Get(name string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[name]
	if !ok || rec.status != StatusLoaded {
		return nil, false
	}
	return rec.instance, true
}

// IsLoaded reports whether name is currently loaded.
func (r *Registry) IsLoaded(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[name]
	return ok && rec.status == StatusLoaded
}

// StatusOf returns the component's current status; false when unknown.
func (r *Registry) StatusOf(name string) (Status, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[name]
	if !ok {
		return "", false
	}
	return rec.status, true
}

// Snapshots returns a copy of every record, in registration order.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	recs := make([]*record, 0, len(r.records))
	for _, rec := range r.records {
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq < recs[j].seq })

	out := make([]Snapshot, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.snapshotLocked())
	}
	return out
}

// Snapshot returns a copy of one record; false when unknown.
func (r *Registry) Snapshot(name string) (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[name]
	if !ok {
		return Snapshot{}, false
	}
	return rec.snapshotLocked(), true
}

// Dependents returns every currently loaded component whose dependency list
// names the given component. Used by Unload and exposed for diagnostics.
func (r *Registry) Dependents(name string) []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dependentsLocked(name)
}

func (r *Registry) dependentsLocked(name string) []Snapshot {
	var out []Snapshot
	for _, rec := range r.records {
		if rec.status != StatusLoaded {
			continue
		}
		for _, dep := range rec.deps {
			if dep == name {
				out = append(out, rec.snapshotLocked())
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Unload drops the instance of an optional, loaded component. It refuses,
// returning false with no error, when the component is required, not
// loaded, or still depended on by another loaded component. The record stays
// registered and can be loaded again later. The error is non-nil only for an
// unknown name.
func (r *Registry) Unload(name string) (bool, error) {
	r.mu.Lock()
	rec, ok := r.records[name]
	if !ok {
		r.mu.Unlock()
		return false, errors.UnknownComponent(name)
	}
	if rec.required {
		r.mu.Unlock()
		r.log.Warn("Refusing to unload required component", map[string]interface{}{
			logger.FieldComponent: name,
		})
		return false, nil
	}
	if rec.status != StatusLoaded {
		r.mu.Unlock()
		return false, nil
	}
	if deps := r.dependentsLocked(name); len(deps) > 0 {
		names := make([]string, len(deps))
		for i, d := range deps {
			names[i] = d.Name
		}
		r.mu.Unlock()
		r.log.Warn("Refusing to unload component with loaded dependents", map[string]interface{}{
			logger.FieldComponent: name,
			"dependents":          names,
		})
		return false, nil
	}

	rec.status = StatusUnloaded
	rec.instance = nil
	snap := rec.snapshotLocked()
	r.mu.Unlock()

	r.log.Info("Component unloaded", map[string]interface{}{
		logger.FieldComponent: name,
	})
	r.emit(EventUnloaded, snap, nil)
	return true, nil
}

// LoadRequired loads every required component sequentially in ascending
// priority order (ties broken by registration order). The first failure
// aborts the remaining batch.
func (r *Registry) LoadRequired(ctx context.Context) error {
	names := r.requiredNames()

	r.log.Info("Loading required components", map[string]interface{}{
		"count": len(names),
	})

	for _, name := range names {
		if _, err := r.Load(ctx, name); err != nil {
			r.log.Error("Required component failed, aborting bootstrap", map[string]interface{}{
				logger.FieldComponent: name,
				logger.FieldError:     err.Error(),
			})
			return err
		}
	}

	r.log.Info("All required components loaded")
	return nil
}

// requiredNames returns required component names sorted for bootstrap.
func (r *Registry) requiredNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	recs := make([]*record, 0, len(r.records))
	for _, rec := range r.records {
		if rec.required {
			recs = append(recs, rec)
		}
	}
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].priority != recs[j].priority {
			return recs[i].priority < recs[j].priority
		}
		return recs[i].seq < recs[j].seq
	})

	names := make([]string, len(recs))
	for i, rec := range recs {
		names[i] = rec.name
	}
	return names
}
