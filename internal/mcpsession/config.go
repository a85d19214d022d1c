package mcpsession

import "github.com/bc-dunia/mcpgo/internal/config"

// Config configures memory limits and expiry for MemoryStore and
// Manager, mirroring the teacher's TelemetryStoreConfig /
// DefaultTelemetryStoreConfig idiom. Its defaults are sourced from
// internal/config's shared buffer/TTL constants rather than repeating
// the literals here.
type Config struct {
	// MaxSessions caps concurrently live sessions. 0 = unlimited.
	MaxSessions int
	// MaxEventsPerSession bounds each session's event journal; oldest
	// events are dropped once exceeded. 0 = unlimited.
	MaxEventsPerSession int
	// SessionTTLSeconds is the last_activity age after which a session
	// is eligible for expiry by the sweep manager.
	SessionTTLSeconds int
	// SweepIntervalSeconds is how often Manager runs the expiry sweep.
	SweepIntervalSeconds int
}

// DefaultConfig returns sensible defaults: 10k sessions, a 10k-event
// journal per session, a 15 minute TTL, swept every minute.
func DefaultConfig() *Config {
	return &Config{
		MaxSessions:          10000,
		MaxEventsPerSession:  config.DefaultEventBufferSize,
		SessionTTLSeconds:    config.DefaultSessionTTLMs / 1000,
		SweepIntervalSeconds: 60,
	}
}

func (c *Config) withDefaults() *Config {
	if c == nil {
		return DefaultConfig()
	}
	cp := *c
	if cp.SessionTTLSeconds <= 0 {
		cp.SessionTTLSeconds = config.DefaultSessionTTLMs / 1000
	}
	if cp.SweepIntervalSeconds <= 0 {
		cp.SweepIntervalSeconds = 60
	}
	return &cp
}
