package bootstrap

import (
	"context"
	"fmt"
	"sort"

	"github.com/skillsenselab/loaderkit/logger"
	"github.com/skillsenselab/loaderkit/registry"
)

// Level names a bootstrap profile: how much of the registered component set
// to bring up at startup.
type Level string

const (
	// LevelMinimum loads exactly the required set.
	LevelMinimum Level = "minimum"
	// LevelStandard loads the required set plus an enumerated list of
	// optional components.
	LevelStandard Level = "standard"
	// LevelMaximum loads every registered component.
	LevelMaximum Level = "maximum"
)

// ParseLevel converts a config string into a Level.
func ParseLevel(s string) (Level, error) {
	switch Level(s) {
	case LevelMinimum, LevelStandard, LevelMaximum:
		return Level(s), nil
	default:
		return "", fmt.Errorf("unknown bootstrap level %q (want minimum, standard, or maximum)", s)
	}
}

// Profile selects which components a bootstrap level covers.
type Profile struct {
	// StandardExtras are the optional component names included at
	// LevelStandard on top of the required set.
	StandardExtras []string
}

// Components returns the component names the level covers, sorted ascending
// by priority with ties broken by registration order. Pure selection: it
// never loads anything.
func (p Profile) Components(reg *registry.Registry, level Level) []string {
	snaps := reg.Snapshots() // already in registration order

	extras := make(map[string]bool, len(p.StandardExtras))
	for _, name := range p.StandardExtras {
		extras[name] = true
	}

	var selected []registry.Snapshot
	for _, snap := range snaps {
		switch {
		case snap.Required:
			selected = append(selected, snap)
		case level == LevelMaximum:
			selected = append(selected, snap)
		case level == LevelStandard && extras[snap.Name]:
			selected = append(selected, snap)
		}
	}

	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].Priority < selected[j].Priority
	})

	names := make([]string, len(selected))
	for i, snap := range selected {
		names[i] = snap.Name
	}
	return names
}

// LoadAtLevel loads the level's components sequentially in priority order.
// A required component failure aborts the batch and propagates; an optional
// failure is logged and the batch continues.
func (p Profile) LoadAtLevel(ctx context.Context, reg *registry.Registry, level Level) error {
	log := logger.WithComponent("bootstrap")
	names := p.Components(reg, level)

	log.Info("Loading bootstrap profile", map[string]interface{}{
		logger.FieldLevel: string(level),
		"count":           len(names),
	})

	for _, name := range names {
		_, err := reg.Load(ctx, name)
		if err == nil {
			continue
		}

		snap, _ := reg.Snapshot(name)
		if snap.Required {
			return fmt.Errorf("required component %s: %w", name, err)
		}
		log.Warn("Optional component failed to load, continuing", map[string]interface{}{
			logger.FieldComponent: name,
			logger.FieldError:     err.Error(),
		})
	}
	return nil
}
