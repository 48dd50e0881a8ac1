package registry

import "time"

// Stats summarizes the registry for observability consumers: how many
// records sit in each status and the average duration of successful loads
// across components that have ever completed one.
type Stats struct {
	Total       int           `json:"total"`
	Pending     int           `json:"pending"`
	Loading     int           `json:"loading"`
	Loaded      int           `json:"loaded"`
	Error       int           `json:"error"`
	Unloaded    int           `json:"unloaded"`
	AvgLoadTime time.Duration `json:"-"`
}

// AvgLoadTimeMS returns the average load time in milliseconds for JSON
// consumers.
func (s Stats) AvgLoadTimeMS() float64 {
	return float64(s.AvgLoadTime) / float64(time.Millisecond)
}

// Stats computes the current load statistics.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	var s Stats
	var totalLoad time.Duration
	var loadedEver int

	for _, rec := range r.records {
		s.Total++
		switch rec.status {
		case StatusPending:
			s.Pending++
		case StatusLoading:
			s.Loading++
		case StatusLoaded:
			s.Loaded++
		case StatusError:
			s.Error++
		case StatusUnloaded:
			s.Unloaded++
		}
		if rec.hasLoaded {
			loadedEver++
			totalLoad += rec.loadTime
		}
	}

	if loadedEver > 0 {
		s.AvgLoadTime = totalLoad / time.Duration(loadedEver)
	}
	return s
}
