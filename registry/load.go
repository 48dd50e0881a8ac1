package registry

import (
	"context"
	"slices"
	"time"

	"github.com/skillsenselab/loaderkit/errors"
	"github.com/skillsenselab/loaderkit/logger"
)

// flight is one in-progress load. Callers arriving while it is open wait on
// done and share the single outcome; the factory runs exactly once per
// attempt.
type flight struct {
	done     chan struct{}
	instance any
	err      error
}

type factoryResult struct {
	instance any
	err      error
}

// Load returns the component's instance, constructing it first if needed.
// Dependencies are resolved recursively in declaration order, one at a time,
// before the component's own factory runs. Concurrent calls for the same
// name share a single in-flight load. A loaded component is returned from
// cache unless Force is given.
func (r *Registry) Load(ctx context.Context, name string, opts ...LoadOption) (any, error) {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.timeout <= 0 {
		o.timeout = r.defaultTimeout
	}
	return r.load(ctx, name, o, nil)
}

// load is the recursive worker. path holds the names currently being
// resolved above this call, used for cycle detection.
func (r *Registry) load(ctx context.Context, name string, o loadOptions, path []string) (any, error) {
	r.mu.Lock()
	rec, ok := r.records[name]
	if !ok {
		r.mu.Unlock()
		err := errors.UnknownComponent(name)
		r.log.Error("Load of unknown component", map[string]interface{}{
			logger.FieldComponent: name,
		})
		return nil, err
	}

	if slices.Contains(path, name) {
		r.mu.Unlock()
		cycle := append(slices.Clone(path), name)
		err := errors.DependencyCycle(cycle)
		r.log.Error("Dependency cycle detected", map[string]interface{}{
			logger.FieldComponent: name,
			"path":                cycle,
		})
		return nil, err
	}

	if rec.status == StatusLoaded && !o.force {
		instance := rec.instance
		r.mu.Unlock()
		return instance, nil
	}

	// Singleflight: join an open load for this name instead of starting
	// another. A flight whose declared dependency chain leads back to one of
	// the names above this call is itself about to wait on us; joining it
	// would deadlock both sides, so that counts as a cycle too.
	if fl, inFlight := r.inflight[name]; inFlight {
		if len(path) > 0 && r.reachesLocked(name, path) {
			r.mu.Unlock()
			cycle := append(slices.Clone(path), name)
			err := errors.DependencyCycle(cycle)
			r.log.Error("Dependency cycle detected", map[string]interface{}{
				logger.FieldComponent: name,
				"path":                cycle,
			})
			return nil, err
		}
		r.mu.Unlock()
		select {
		case <-fl.done:
			return fl.instance, fl.err
		case <-ctx.Done():
			return nil, errors.LoaderFailure(name, ctx.Err())
		}
	}

	fl := &flight{done: make(chan struct{})}
	r.inflight[name] = fl
	deps := slices.Clone(rec.deps)
	r.mu.Unlock()

	instance, err := r.runLoad(ctx, rec, deps, o, append(path, name))

	r.mu.Lock()
	fl.instance, fl.err = instance, err
	delete(r.inflight, name)
	r.mu.Unlock()
	close(fl.done)

	return instance, err
}

// reachesLocked reports whether any declared dependency chain starting at
// name leads to one of the targets. Caller holds r.mu.
func (r *Registry) reachesLocked(name string, targets []string) bool {
	seen := make(map[string]bool)
	stack := []string{name}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[n] {
			continue
		}
		seen[n] = true
		rec, ok := r.records[n]
		if !ok {
			continue
		}
		for _, dep := range rec.deps {
			if slices.Contains(targets, dep) {
				return true
			}
			stack = append(stack, dep)
		}
	}
	return false
}

// runLoad resolves dependencies, then races the factory against the timeout.
func (r *Registry) runLoad(ctx context.Context, rec *record, deps []string, o loadOptions, path []string) (any, error) {
	// Dependencies resolve strictly in declaration order, one at a time. A
	// failure here propagates without this component's factory ever running
	// and leaves its status untouched.
	for _, dep := range deps {
		r.mu.Lock()
		drec, known := r.records[dep]
		depLoaded := known && drec.status == StatusLoaded
		r.mu.Unlock()

		if !known {
			err := errors.UnknownDependency(rec.name, dep)
			r.log.Error("Unknown dependency", map[string]interface{}{
				logger.FieldComponent: rec.name,
				"dependency":          dep,
			})
			return nil, err
		}
		if depLoaded {
			continue
		}
		if _, err := r.load(ctx, dep, loadOptions{timeout: r.defaultTimeout}, path); err != nil {
			r.log.Error("Dependency failed to load", map[string]interface{}{
				logger.FieldComponent: rec.name,
				"dependency":          dep,
				logger.FieldError:     err.Error(),
			})
			return nil, err
		}
	}

	r.mu.Lock()
	rec.status = StatusLoading
	rec.lastErr = nil
	snap := rec.snapshotLocked()
	r.mu.Unlock()

	r.log.Debug("Loading component", map[string]interface{}{
		logger.FieldComponent: rec.name,
		"timeout":             o.timeout.String(),
	})
	r.emit(EventLoading, snap, nil)

	start := time.Now()
	instance, err := r.invokeFactory(ctx, rec, o.timeout)
	elapsed := time.Since(start)

	if err != nil {
		r.mu.Lock()
		rec.status = StatusError
		rec.lastErr = err
		rec.instance = nil
		snap = rec.snapshotLocked()
		r.mu.Unlock()

		r.log.Error("Component load failed", map[string]interface{}{
			logger.FieldComponent: rec.name,
			logger.FieldStatus:    string(StatusError),
			logger.FieldError:     err.Error(),
		})
		r.emit(EventError, snap, err)
		return nil, err
	}

	r.mu.Lock()
	rec.status = StatusLoaded
	rec.instance = instance
	rec.lastErr = nil
	rec.loadTime = elapsed
	rec.hasLoaded = true
	snap = rec.snapshotLocked()
	r.mu.Unlock()

	r.log.Info("Component loaded", map[string]interface{}{
		logger.FieldComponent: rec.name,
		logger.FieldDuration:  elapsed.Milliseconds(),
	})
	r.emit(EventLoaded, snap, nil)
	return instance, nil
}

// invokeFactory races the factory against the load timeout. The loser of the
// race is not awaited: a factory that settles after the timeout has its
// result discarded and never overwrites the recorded error. The factory
// context is cancelled on timeout so cooperative factories can stop early.
func (r *Registry) invokeFactory(ctx context.Context, rec *record, timeout time.Duration) (any, error) {
	fctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resCh := make(chan factoryResult, 1)
	go func() {
		instance, err := rec.factory(fctx)
		resCh <- factoryResult{instance: instance, err: err}
	}()

	select {
	case res := <-resCh:
		if res.err != nil {
			return nil, errors.LoaderFailure(rec.name, res.err)
		}
		return res.instance, nil
	case <-fctx.Done():
		if ctx.Err() != nil {
			return nil, errors.LoaderFailure(rec.name, ctx.Err())
		}
		return nil, errors.LoadTimeout(rec.name, timeout)
	}
}
