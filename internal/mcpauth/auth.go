// Package mcpauth provides optional bearer-JWT authentication for the
// streamable HTTP transport, generalizing the teacher's internal/auth
// package (Config/Role/User/contextKey shape) from mcpdrill's
// control-plane API to this module's single /mcp endpoint.
package mcpauth

import "context"

// Role is a coarse-grained permission tier attached to an authenticated
// session, mirroring the teacher's auth.Role string-enum idiom.
type Role string

const (
	// RoleAdmin may call any MCP method, including destructive tool calls.
	RoleAdmin Role = "admin"
	// RoleOperator may call tools/resources/prompts but not admin-only ones.
	RoleOperator Role = "operator"
	// RoleViewer may only list/read, never call tools.
	RoleViewer Role = "viewer"
)

// Config holds bearer-JWT authentication configuration. A zero Config
// (Enabled false) disables authentication entirely, matching the
// teacher's AuthModeNone default.
type Config struct {
	// Enabled turns on bearer-JWT enforcement ahead of the /mcp endpoint.
	Enabled bool `json:"enabled"`
	// Secret is the HMAC signing key for HS256 tokens.
	Secret []byte `json:"-"`
	// Issuer, if non-empty, is the required "iss" claim value.
	Issuer string `json:"issuer,omitempty"`
	// SkipPaths are paths exempt from authentication in addition to
	// /healthz, which is always exempt.
	SkipPaths []string `json:"skip_paths,omitempty"`
}

// DefaultConfig returns a Config with authentication disabled.
func DefaultConfig() *Config {
	return &Config{Enabled: false, SkipPaths: []string{"/healthz"}}
}

// User is the identity attached to the request context once a bearer
// token has been validated.
type User struct {
	// ID is the JWT "sub" claim.
	ID string
	// Roles are the user's "roles" claim, defaulting to RoleViewer when absent.
	Roles []Role
}

// HasRole reports whether u holds role, or is an admin (admins satisfy
// every role check).
func (u *User) HasRole(role Role) bool {
	if u == nil {
		return false
	}
	for _, r := range u.Roles {
		if r == role || r == RoleAdmin {
			return true
		}
	}
	return false
}

type contextKey struct{ name string }

var userContextKey = &contextKey{"user"}

// SetUserInContext stores user in ctx.
func SetUserInContext(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// GetUserFromContext retrieves the authenticated user stored by the
// middleware, or nil if the request was unauthenticated.
func GetUserFromContext(ctx context.Context) *User {
	user, _ := ctx.Value(userContextKey).(*User)
	return user
}
