package streamtransport

import "time"

// DefaultPath is the single endpoint path the transport multiplexes
// POST/GET/DELETE/OPTIONS over, per §4.4.
const DefaultPath = "/mcp"

// HTTP headers defined by §4.4.
const (
	HeaderSessionID       = "Mcp-Session-Id"
	HeaderProtocolVersion = "MCP-Protocol-Version"
	HeaderLastEventID     = "Last-Event-ID"
	HeaderResumeLossy     = "mcp-resume-lossy"
)

// CORSConfig configures the transport's CORS preflight handling. A
// wildcard origin disables credentials, per §4.4.
type CORSConfig struct {
	AllowedOrigins   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

// Config carries the transport's resource limits and CORS policy,
// mirroring the http.Server{ReadTimeout, WriteTimeout, IdleTimeout,
// ReadHeaderTimeout} knobs the teacher sets explicitly in
// internal/controlplane/api/server.go's Start().
type Config struct {
	Path string

	// MaxRequestBodyBytes bounds a POST body; exceeding it yields 413.
	MaxRequestBodyBytes int64
	// RequestTimeout bounds how long a single POST's dispatch may run.
	RequestTimeout time.Duration
	// HeartbeatInterval is how often an idle GET stream sends a
	// heartbeat frame to keep intermediaries from closing the
	// connection.
	HeartbeatInterval time.Duration
	// SessionPollInterval is how often an open GET stream re-checks
	// whether its session has been terminated out from under it.
	SessionPollInterval time.Duration

	CORS CORSConfig
}

// DefaultConfig returns the spec's stated defaults: 1MiB bodies, a 30s
// request timeout, 15s heartbeats.
func DefaultConfig() *Config {
	return &Config{
		Path:                DefaultPath,
		MaxRequestBodyBytes: 1 << 20,
		RequestTimeout:      30 * time.Second,
		HeartbeatInterval:   15 * time.Second,
		SessionPollInterval: 5 * time.Second,
	}
}

func (c *Config) withDefaults() *Config {
	if c == nil {
		return DefaultConfig()
	}
	cp := *c
	if cp.Path == "" {
		cp.Path = DefaultPath
	}
	if cp.MaxRequestBodyBytes <= 0 {
		cp.MaxRequestBodyBytes = 1 << 20
	}
	if cp.RequestTimeout <= 0 {
		cp.RequestTimeout = 30 * time.Second
	}
	if cp.HeartbeatInterval <= 0 {
		cp.HeartbeatInterval = 15 * time.Second
	}
	if cp.SessionPollInterval <= 0 {
		cp.SessionPollInterval = 5 * time.Second
	}
	return &cp
}
