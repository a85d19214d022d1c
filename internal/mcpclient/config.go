// Package mcpclient is the client-side mirror of the streamable HTTP
// transport: it drives a single MCP session through
// Uninitialized -> Initializing -> Active, speaks the same POST
// JSON-RPC / GET SSE subscribe / DELETE terminate shapes the server
// side (internal/streamtransport) implements, and is grounded directly
// on the teacher's internal/transport/streamable_http.go
// (StreamableHTTPConnection).
package mcpclient

import (
	"crypto/tls"
	"crypto/x509"
	"net"
	"net/url"
	"strings"
	"time"
)

// TimeoutConfig holds the connect/request/stream-stall timeouts a
// Connection enforces, mirroring the teacher's TimeoutConfig.
type TimeoutConfig struct {
	ConnectTimeout     time.Duration
	RequestTimeout     time.Duration
	StreamStallTimeout time.Duration
}

// DefaultTimeoutConfig returns the teacher's own defaults.
func DefaultTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{
		ConnectTimeout:     5 * time.Second,
		RequestTimeout:     30 * time.Second,
		StreamStallTimeout: 15 * time.Second,
	}
}

// RedirectPolicy controls whether and where the underlying http.Client
// follows redirects, mirroring the teacher's RedirectPolicyConfig.
type RedirectPolicy struct {
	// Mode is "deny" (default), "same_origin", or "allowlist_only".
	Mode         string
	MaxRedirects int
	Allowlist    []string
}

// Config configures a Connection.
type Config struct {
	// Endpoint is the server's single streamable HTTP endpoint, e.g.
	// "http://localhost:8080/mcp".
	Endpoint string

	// Headers are sent on every request (e.g. Authorization).
	Headers map[string]string

	Timeouts TimeoutConfig

	TLSSkipVerify bool
	CABundle      []byte

	// AllowPrivateNetworks lists CIDR ranges exempted from the
	// connection's SSRF-hardened dialer.
	AllowPrivateNetworks []string

	RedirectPolicy *RedirectPolicy
}

func (c *Config) withDefaults() *Config {
	cp := *c
	if cp.Timeouts.ConnectTimeout <= 0 {
		cp.Timeouts.ConnectTimeout = DefaultTimeoutConfig().ConnectTimeout
	}
	if cp.Timeouts.RequestTimeout <= 0 {
		cp.Timeouts.RequestTimeout = DefaultTimeoutConfig().RequestTimeout
	}
	if cp.Timeouts.StreamStallTimeout <= 0 {
		cp.Timeouts.StreamStallTimeout = DefaultTimeoutConfig().StreamStallTimeout
	}
	return &cp
}

// safeDialer restricts outbound dials away from loopback, link-local,
// and RFC1918 ranges unless explicitly allowlisted, mirroring the
// teacher's internal/transport/streamable_http.go safeDialer verbatim
// (this is SSRF hardening the client mirror must not drop).
type safeDialer struct {
	dialer               *net.Dialer
	allowPrivateNetworks []string
	blockedIPv4Ranges    []*net.IPNet
	blockedIPv6Ranges    []*net.IPNet
}

func newSafeDialer(timeout time.Duration, allowPrivateNetworks []string) *safeDialer {
	d := &safeDialer{
		dialer:               &net.Dialer{Timeout: timeout},
		allowPrivateNetworks: allowPrivateNetworks,
	}

	for _, cidr := range []string{
		"127.0.0.0/8",
		"169.254.0.0/16",
		"169.254.169.254/32",
		"192.0.0.0/24",
		"0.0.0.0/8",
	} {
		if _, ipnet, err := net.ParseCIDR(cidr); err == nil {
			d.blockedIPv4Ranges = append(d.blockedIPv4Ranges, ipnet)
		}
	}
	for _, cidr := range []string{
		"::1/128",
		"::/128",
		"fc00::/7",
		"fe80::/10",
		"ff00::/8",
		"::ffff:0:0/96",
	} {
		if _, ipnet, err := net.ParseCIDR(cidr); err == nil {
			d.blockedIPv6Ranges = append(d.blockedIPv6Ranges, ipnet)
		}
	}
	return d
}

func (d *safeDialer) isPrivateNetworkAllowed(ip net.IP) bool {
	for _, cidrStr := range d.allowPrivateNetworks {
		if _, cidr, err := net.ParseCIDR(cidrStr); err == nil && cidr.Contains(ip) {
			return true
		}
	}
	return false
}

func (d *safeDialer) isIPBlocked(ip net.IP) bool {
	if d.isPrivateNetworkAllowed(ip) {
		return false
	}
	if ip4 := ip.To4(); ip4 != nil {
		for _, blocked := range d.blockedIPv4Ranges {
			if blocked.Contains(ip4) {
				return true
			}
		}
		for _, cidr := range []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"} {
			if _, ipnet, _ := net.ParseCIDR(cidr); ipnet.Contains(ip4) {
				return true
			}
		}
		return false
	}
	for _, blocked := range d.blockedIPv6Ranges {
		if blocked.Contains(ip) {
			return true
		}
	}
	return false
}

func buildTLSConfig(cfg *Config) *tls.Config {
	if !cfg.TLSSkipVerify && len(cfg.CABundle) == 0 {
		return nil
	}
	tlsConfig := &tls.Config{InsecureSkipVerify: cfg.TLSSkipVerify}
	if len(cfg.CABundle) > 0 {
		pool := x509.NewCertPool()
		if pool.AppendCertsFromPEM(cfg.CABundle) {
			tlsConfig.RootCAs = pool
		}
	}
	return tlsConfig
}

func parseHostname(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u == nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
