package builtin

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// ThreatMonitorConfig configures per-source strike tracking.
type ThreatMonitorConfig struct {
	// StrikeTTL is how long a strike counts against a source.
	StrikeTTL time.Duration `yaml:"strike_ttl" mapstructure:"strike_ttl"`
	// CleanupInterval is how often expired strikes are purged.
	CleanupInterval time.Duration `yaml:"cleanup_interval" mapstructure:"cleanup_interval"`
	// BlockThreshold is the strike count at which a source is blocked.
	BlockThreshold int `yaml:"block_threshold" mapstructure:"block_threshold"`
}

// ApplyDefaults sets sensible default values for unset fields.
func (c *ThreatMonitorConfig) ApplyDefaults() {
	if c.StrikeTTL == 0 {
		c.StrikeTTL = 10 * time.Minute
	}
	if c.CleanupInterval == 0 {
		c.CleanupInterval = 30 * time.Minute
	}
	if c.BlockThreshold == 0 {
		c.BlockThreshold = 5
	}
}

// ThreatMonitor tracks misbehaving sources. Each reported strike counts
// against the source until its TTL expires; sources at or over the block
// threshold are considered blocked.
type ThreatMonitor struct {
	cfg     ThreatMonitorConfig
	strikes *gocache.Cache
}

// NewThreatMonitor creates a threat monitor with TTL-expiring strikes.
func NewThreatMonitor(cfg ThreatMonitorConfig) *ThreatMonitor {
	cfg.ApplyDefaults()
	return &ThreatMonitor{
		cfg:     cfg,
		strikes: gocache.New(cfg.StrikeTTL, cfg.CleanupInterval),
	}
}

// ReportStrike records one strike against the source and returns the new
// count. The TTL resets on each strike.
func (m *ThreatMonitor) ReportStrike(source string) int {
	count := m.Strikes(source) + 1
	m.strikes.Set(source, count, m.cfg.StrikeTTL)
	return count
}

// Strikes returns the current strike count for the source.
func (m *ThreatMonitor) Strikes(source string) int {
	value, found := m.strikes.Get(source)
	if !found {
		return 0
	}
	count, ok := value.(int)
	if !ok {
		return 0
	}
	return count
}

// IsBlocked reports whether the source has reached the block threshold.
func (m *ThreatMonitor) IsBlocked(source string) bool {
	return m.Strikes(source) >= m.cfg.BlockThreshold
}

// Clear forgets all strikes for the source.
func (m *ThreatMonitor) Clear(source string) {
	m.strikes.Delete(source)
}

// Sources returns the number of sources currently being tracked.
func (m *ThreatMonitor) Sources() int {
	return m.strikes.ItemCount()
}
