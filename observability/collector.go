package observability

import (
	"context"
	"sync"
	"time"

	"github.com/skillsenselab/loaderkit/errors"
	"github.com/skillsenselab/loaderkit/logger"
	"github.com/skillsenselab/loaderkit/registry"
)

// Collector translates registry lifecycle events into metrics and structured
// logs. Attach it with reg.Notify(collector.Handle).
type Collector struct {
	metrics *Metrics
	log     *logger.Logger

	mu     sync.Mutex
	starts map[string]time.Time
}

// NewCollector creates a collector recording to the given instruments. A nil
// metrics disables metric recording; events are still logged.
func NewCollector(metrics *Metrics, log *logger.Logger) *Collector {
	if log == nil {
		log = logger.GetGlobalLogger().WithComponent("observability")
	}
	return &Collector{
		metrics: metrics,
		log:     log,
		starts:  make(map[string]time.Time),
	}
}

// Handle is a registry.Handler. It runs synchronously on the loading
// goroutine, so it only records instruments and logs.
func (c *Collector) Handle(ev registry.Event) {
	ctx := context.Background()

	switch ev.Kind {
	case registry.EventRegistered:
		c.log.Debug("component registered", logger.Fields(
			logger.FieldComponent, ev.Name,
			logger.FieldPriority, ev.Record.Priority,
			"required", ev.Record.Required,
		))

	case registry.EventLoading:
		c.mu.Lock()
		c.starts[ev.Name] = ev.Time
		c.mu.Unlock()
		if c.metrics != nil {
			c.metrics.RecordLoadStart(ctx, ev.Name)
		}
		c.log.Debug("component loading", logger.Fields(
			logger.FieldComponent, ev.Name,
		))

	case registry.EventLoaded:
		if c.metrics != nil {
			c.metrics.RecordLoadEnd(ctx, ev.Name, string(ev.Record.Status), c.elapsed(ev))
		}
		c.log.Info("component loaded", logger.Fields(
			logger.FieldComponent, ev.Name,
			logger.FieldDuration, ev.Record.LoadTime.String(),
		))

	case registry.EventError:
		if c.metrics != nil {
			c.metrics.RecordLoadEnd(ctx, ev.Name, string(ev.Record.Status), c.elapsed(ev))
			c.metrics.RecordError(ctx, string(errors.CodeOf(ev.Err)), ev.Name)
		}
		c.log.Error("component load failed", logger.Fields(
			logger.FieldComponent, ev.Name,
			logger.FieldError, ev.Err.Error(),
		))

	case registry.EventUnloaded:
		if c.metrics != nil {
			c.metrics.RecordUnload(ctx, ev.Name)
		}
		c.log.Info("component unloaded", logger.Fields(
			logger.FieldComponent, ev.Name,
		))
	}
}

// elapsed computes load duration from the matching loading event.
func (c *Collector) elapsed(ev registry.Event) time.Duration {
	c.mu.Lock()
	start, ok := c.starts[ev.Name]
	delete(c.starts, ev.Name)
	c.mu.Unlock()

	if ev.Record.LoadTime > 0 {
		return ev.Record.LoadTime
	}
	if !ok {
		return 0
	}
	return ev.Time.Sub(start)
}
