package mcpauth

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Middleware enforces bearer-JWT authentication ahead of the /mcp
// endpoint, grounded on the teacher's auth.Middleware (same
// skip-path/config/authenticator builder shape, same writeError JSON
// body), generalized to this module's single Authenticator.
type Middleware struct {
	config        *Config
	authenticator Authenticator
	skipPaths     map[string]bool
}

// NewMiddleware builds a Middleware from cfg. /healthz is always
// exempt regardless of cfg.SkipPaths.
func NewMiddleware(cfg *Config, authenticator Authenticator) *Middleware {
	skip := map[string]bool{"/healthz": true}
	for _, p := range cfg.SkipPaths {
		skip[p] = true
	}
	return &Middleware{config: cfg, authenticator: authenticator, skipPaths: skip}
}

// Handler wraps next with bearer-JWT enforcement. When cfg.Enabled is
// false, every request passes through unauthenticated.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.config.Enabled || m.shouldSkip(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		if m.authenticator == nil {
			m.writeError(w, &AuthError{StatusCode: http.StatusInternalServerError, ErrorCode: "AUTH_MISCONFIGURED", Message: "authentication is enabled but misconfigured"})
			return
		}

		user, err := m.authenticator.Authenticate(r)
		if err != nil {
			m.writeError(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(SetUserInContext(r.Context(), user)))
	})
}

// RequireRole returns middleware rejecting requests whose authenticated
// user lacks role (admins always pass). A no-op when auth is disabled.
func (m *Middleware) RequireRole(role Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !m.config.Enabled {
				next.ServeHTTP(w, r)
				return
			}
			user := GetUserFromContext(r.Context())
			if user == nil {
				m.writeError(w, ErrMissingCredentials)
				return
			}
			if !user.HasRole(role) {
				m.writeError(w, ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m *Middleware) shouldSkip(path string) bool {
	if m.skipPaths[path] {
		return true
	}
	for skip := range m.skipPaths {
		if strings.HasPrefix(path, skip) && (len(path) == len(skip) || path[len(skip)] == '/') {
			return true
		}
	}
	return false
}

func (m *Middleware) writeError(w http.ResponseWriter, err error) {
	authErr, ok := err.(*AuthError)
	if !ok {
		authErr = &AuthError{StatusCode: http.StatusInternalServerError, ErrorCode: "INTERNAL_ERROR", Message: "internal authentication error"}
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer`)
	w.WriteHeader(authErr.StatusCode)
	json.NewEncoder(w).Encode(map[string]any{
		"error_code":    authErr.ErrorCode,
		"error_message": authErr.Message,
	})
}
