package mcpauth

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Authenticator validates credentials carried on an HTTP request and
// returns the identity they name, mirroring the teacher's
// auth.Authenticator interface.
type Authenticator interface {
	Authenticate(r *http.Request) (*User, error)
}

// AuthError is a structured authentication/authorization failure,
// carrying enough detail to render an RFC 6750-ish error body.
type AuthError struct {
	StatusCode int
	ErrorCode  string
	Message    string
}

func (e *AuthError) Error() string { return e.Message }

var (
	ErrMissingCredentials = &AuthError{StatusCode: http.StatusUnauthorized, ErrorCode: "MISSING_CREDENTIALS", Message: "missing bearer token"}
	ErrInvalidCredentials = &AuthError{StatusCode: http.StatusUnauthorized, ErrorCode: "INVALID_CREDENTIALS", Message: "invalid or expired bearer token"}
	ErrForbidden          = &AuthError{StatusCode: http.StatusForbidden, ErrorCode: "INSUFFICIENT_PERMISSIONS", Message: "insufficient permissions for this operation"}
)

// jwtClaims is the registered-claims-plus-roles shape this module signs
// and verifies, replacing the teacher's hand-rolled header/claims/
// signature split (jwtHeader/jwtClaims + manual base64/hmac plumbing in
// internal/auth/jwt.go) with github.com/golang-jwt/jwt/v5's parser.
type jwtClaims struct {
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// JWTAuthenticator validates HS256 bearer tokens against a shared
// secret, generalizing the teacher's JWTAuthenticator to use a real JWT
// library instead of reimplementing header/claims/signature parsing by
// hand.
type JWTAuthenticator struct {
	secret []byte
	issuer string
}

// NewJWTAuthenticator builds a JWTAuthenticator from cfg.
func NewJWTAuthenticator(cfg *Config) *JWTAuthenticator {
	return &JWTAuthenticator{secret: cfg.Secret, issuer: cfg.Issuer}
}

// Authenticate extracts and validates the bearer token from r's
// Authorization header.
func (a *JWTAuthenticator) Authenticate(r *http.Request) (*User, error) {
	raw := extractBearerToken(r)
	if raw == "" {
		return nil, ErrMissingCredentials
	}
	if len(a.secret) == 0 {
		return nil, &AuthError{StatusCode: http.StatusInternalServerError, ErrorCode: "JWT_SECRET_REQUIRED", Message: "JWT secret is not configured"}
	}

	claims := &jwtClaims{}
	parserOpts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(a.issuer))
	}

	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, parserOpts...)
	if err != nil || !token.Valid {
		return nil, ErrInvalidCredentials
	}

	roles := make([]Role, 0, len(claims.Roles))
	for _, r := range claims.Roles {
		roles = append(roles, Role(r))
	}
	if len(roles) == 0 {
		roles = []Role{RoleViewer}
	}

	return &User{ID: claims.Subject, Roles: roles}, nil
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimPrefix(auth, prefix)
}
