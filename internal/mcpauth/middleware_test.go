package mcpauth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubAuthenticator struct {
	user *User
	err  error
}

func (s *stubAuthenticator) Authenticate(r *http.Request) (*User, error) {
	return s.user, s.err
}

func TestMiddlewarePassesThroughWhenDisabled(t *testing.T) {
	mw := NewMiddleware(&Config{Enabled: false}, &stubAuthenticator{err: ErrMissingCredentials})
	called := false
	h := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", nil))

	if !called {
		t.Fatal("expected next handler to run when auth disabled")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestMiddlewareSkipsHealthz(t *testing.T) {
	mw := NewMiddleware(&Config{Enabled: true}, &stubAuthenticator{err: ErrMissingCredentials})
	called := false
	h := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if !called {
		t.Fatal("expected /healthz to bypass authentication")
	}
}

func TestMiddlewareRejectsMissingCredentials(t *testing.T) {
	mw := NewMiddleware(&Config{Enabled: true}, &stubAuthenticator{err: ErrMissingCredentials})
	h := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler should not run")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestMiddlewareAcceptsValidUser(t *testing.T) {
	user := &User{ID: "user-1", Roles: []Role{RoleOperator}}
	mw := NewMiddleware(&Config{Enabled: true}, &stubAuthenticator{user: user})

	var gotUser *User
	h := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = GetUserFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if gotUser == nil || gotUser.ID != "user-1" {
		t.Errorf("expected authenticated user in context, got %v", gotUser)
	}
}

func TestMiddlewareRequireRoleRejectsInsufficientRole(t *testing.T) {
	user := &User{ID: "user-1", Roles: []Role{RoleViewer}}
	mw := NewMiddleware(&Config{Enabled: true}, &stubAuthenticator{user: user})

	chain := mw.Handler(mw.RequireRole(RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("admin-only handler should not run for a viewer")
	})))

	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", nil))

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
}

func TestMiddlewareRequireRoleAllowsAdmin(t *testing.T) {
	user := &User{ID: "user-1", Roles: []Role{RoleAdmin}}
	mw := NewMiddleware(&Config{Enabled: true}, &stubAuthenticator{user: user})

	called := false
	chain := mw.Handler(mw.RequireRole(RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})))

	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", nil))

	if !called || rec.Code != http.StatusOK {
		t.Errorf("expected admin to pass RequireRole, got called=%v code=%d", called, rec.Code)
	}
}
