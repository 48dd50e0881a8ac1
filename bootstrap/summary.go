package bootstrap

import (
	"fmt"
	"time"

	"github.com/skillsenselab/loaderkit/registry"
)

// Summary tracks and displays the application bootstrap process.
type Summary struct {
	serviceName     string
	version         string
	startupDuration time.Duration
}

// NewSummary creates a new bootstrap summary tracker.
func NewSummary(serviceName, version string) *Summary {
	return &Summary{
		serviceName: serviceName,
		version:     version,
	}
}

// SetStartupDuration records the total startup time.
func (s *Summary) SetStartupDuration(d time.Duration) {
	s.startupDuration = d
}

// Display prints the bootstrap summary from the registry's live state.
func (s *Summary) Display(reg *registry.Registry) {
	fmt.Printf("\n🚀 %s v%s started in %.2fs\n\n", s.serviceName, s.version, s.startupDuration.Seconds())

	snaps := reg.Snapshots()
	if len(snaps) == 0 {
		fmt.Printf("   └── No components registered\n\n")
		return
	}

	fmt.Printf("📦 Components\n")
	for i, snap := range snaps {
		prefix := "├──"
		if i == len(snaps)-1 {
			prefix = "└──"
		}
		marker := ""
		if snap.Required {
			marker = " *"
		}
		detail := string(snap.Status)
		if snap.Status == registry.StatusLoaded && snap.LoadTime > 0 {
			detail = fmt.Sprintf("%s in %dms", detail, snap.LoadTime.Milliseconds())
		}
		fmt.Printf("   %s %s %s%s (%s)\n", prefix, statusIcon(snap.Status), snap.Name, marker, detail)
	}

	stats := reg.Stats()
	if stats.Error == 0 {
		fmt.Printf("\n✅ %d/%d components loaded (avg %.1fms)\n\n",
			stats.Loaded, stats.Total, stats.AvgLoadTimeMS())
	} else {
		fmt.Printf("\n⚠️  %d/%d components loaded, %d failed\n\n",
			stats.Loaded, stats.Total, stats.Error)
	}
}

func statusIcon(status registry.Status) string {
	switch status {
	case registry.StatusLoaded:
		return "✅"
	case registry.StatusPending:
		return "⚡"
	case registry.StatusLoading:
		return "⏳"
	case registry.StatusUnloaded:
		return "⏸️"
	case registry.StatusError:
		return "❌"
	default:
		return "❓"
	}
}
