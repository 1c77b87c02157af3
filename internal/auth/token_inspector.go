package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformedToken indicates the stored token is not a parseable JWT.
var ErrMalformedToken = errors.New("auth: malformed token")

// TokenInspectorConfig configures the local token inspector.
type TokenInspectorConfig struct {
	Clock func() time.Time
}

// TokenInspector reads claims out of the stored bearer token without
// verifying its signature. The client has no signing key; verification
// is the backend's job. Inspection only serves the local pre-check
// that skips network traffic for a token that is already expired.
type TokenInspector struct {
	clock func() time.Time
}

// TokenInfo is the subset of claims the client cares about.
type TokenInfo struct {
	Subject   string
	ExpiresAt time.Time
}

// NewTokenInspector constructs a TokenInspector with sane defaults.
func NewTokenInspector(cfg TokenInspectorConfig) *TokenInspector {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &TokenInspector{clock: clock}
}

// Inspect parses the token's registered claims without signature
// verification. A zero ExpiresAt means the token carries no expiry.
func (i *TokenInspector) Inspect(tokenString string) (TokenInfo, error) {
	claims := &jwt.RegisteredClaims{}
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return TokenInfo{}, ErrMalformedToken
	}

	info := TokenInfo{Subject: claims.Subject}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info, nil
}

// Expired reports whether the token is known to be past its expiry.
// Opaque tokens and tokens without an exp claim report false: the
// backend remains the authority for those.
func (i *TokenInspector) Expired(tokenString string) bool {
	info, err := i.Inspect(tokenString)
	if err != nil {
		return false
	}
	if info.ExpiresAt.IsZero() {
		return false
	}
	return !i.clock().UTC().Before(info.ExpiresAt)
}
