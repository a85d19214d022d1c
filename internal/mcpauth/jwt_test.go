package mcpauth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, secret []byte, claims jwtClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestUserHasRole(t *testing.T) {
	tests := []struct {
		name     string
		user     *User
		role     Role
		expected bool
	}{
		{"nil user", nil, RoleAdmin, false},
		{"admin has admin", &User{Roles: []Role{RoleAdmin}}, RoleAdmin, true},
		{"admin has operator", &User{Roles: []Role{RoleAdmin}}, RoleOperator, true},
		{"operator no admin", &User{Roles: []Role{RoleOperator}}, RoleAdmin, false},
		{"viewer has viewer", &User{Roles: []Role{RoleViewer}}, RoleViewer, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.user.HasRole(tt.role); got != tt.expected {
				t.Errorf("HasRole(%v) = %v, want %v", tt.role, got, tt.expected)
			}
		})
	}
}

func TestJWTAuthenticateSuccess(t *testing.T) {
	secret := []byte("top-secret")
	auth := NewJWTAuthenticator(&Config{Secret: secret, Issuer: "mcpgo"})

	claims := jwtClaims{
		Roles: []string{"operator"},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "mcpgo",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := signToken(t, secret, claims)

	r := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	user, err := auth.Authenticate(r)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if user.ID != "user-1" {
		t.Errorf("expected subject user-1, got %q", user.ID)
	}
	if !user.HasRole(RoleOperator) {
		t.Error("expected operator role")
	}
}

func TestJWTAuthenticateMissingToken(t *testing.T) {
	auth := NewJWTAuthenticator(&Config{Secret: []byte("secret")})
	r := httptest.NewRequest(http.MethodPost, "/mcp", nil)

	_, err := auth.Authenticate(r)
	if err != ErrMissingCredentials {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
}

func TestJWTAuthenticateWrongSecret(t *testing.T) {
	auth := NewJWTAuthenticator(&Config{Secret: []byte("correct-secret")})

	claims := jwtClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"}}
	token := signToken(t, []byte("wrong-secret"), claims)

	r := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	_, err := auth.Authenticate(r)
	if err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestJWTAuthenticateExpiredToken(t *testing.T) {
	secret := []byte("top-secret")
	auth := NewJWTAuthenticator(&Config{Secret: secret})

	claims := jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	token := signToken(t, secret, claims)

	r := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	_, err := auth.Authenticate(r)
	if err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials for expired token, got %v", err)
	}
}

func TestJWTAuthenticateWrongIssuer(t *testing.T) {
	secret := []byte("top-secret")
	auth := NewJWTAuthenticator(&Config{Secret: secret, Issuer: "mcpgo"})

	claims := jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: "user-1",
			Issuer:  "someone-else",
		},
	}
	token := signToken(t, secret, claims)

	r := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	_, err := auth.Authenticate(r)
	if err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials for wrong issuer, got %v", err)
	}
}

func TestJWTAuthenticateDefaultsToViewerRole(t *testing.T) {
	secret := []byte("top-secret")
	auth := NewJWTAuthenticator(&Config{Secret: secret})

	claims := jwtClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"}}
	token := signToken(t, secret, claims)

	r := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	user, err := auth.Authenticate(r)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if !user.HasRole(RoleViewer) || len(user.Roles) != 1 {
		t.Errorf("expected default viewer-only role, got %v", user.Roles)
	}
}
