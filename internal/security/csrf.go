package security

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

// ErrCSRFMismatch is returned when a state-changing request presents a
// missing or wrong CSRF token. Distinct from authentication failures: the
// session itself is still valid.
var ErrCSRFMismatch = errors.New("CSRF token missing or mismatched")

// CSRFGuard validates the per-session anti-forgery token on state-changing
// requests. Safe methods (GET, HEAD, OPTIONS) are exempt.
type CSRFGuard struct {
	header     string
	authScheme string
}

// NewCSRFGuard creates a guard reading tokens from the given header, with an
// Authorization-scheme alternate (e.g. "Authorization: CSRF <token>").
func NewCSRFGuard(header, authScheme string) *CSRFGuard {
	if header == "" {
		header = "X-CSRF-Token"
	}
	if authScheme == "" {
		authScheme = "CSRF"
	}
	return &CSRFGuard{header: header, authScheme: authScheme}
}

// Header returns the CSRF header name, used to echo the token on responses.
func (g *CSRFGuard) Header() string {
	return g.header
}

// Exempt reports whether the method is a safe method not requiring a token.
func (g *CSRFGuard) Exempt(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// TokenFromRequest extracts the presented CSRF token: the dedicated header
// first, then the Authorization-scheme alternate.
func (g *CSRFGuard) TokenFromRequest(r *http.Request) string {
	if tok := r.Header.Get(g.header); tok != "" {
		return tok
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], g.authScheme) {
			return parts[1]
		}
	}
	return ""
}

// Check validates the presented token against the session's token with a
// constant-time comparison.
func (g *CSRFGuard) Check(sess *Session, presented string) error {
	if presented == "" || sess.CSRFToken == "" {
		return ErrCSRFMismatch
	}
	if subtle.ConstantTimeCompare([]byte(sess.CSRFToken), []byte(presented)) != 1 {
		return ErrCSRFMismatch
	}
	return nil
}
