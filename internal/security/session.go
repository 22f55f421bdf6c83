package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/peerpoints/peerpoints/internal/rbac"
)

// Session is the server-side authenticated context bound to a signed
// client-held token. Exactly one canonical session exists per SessionID in
// the active registry. A session is never "repaired": any security violation
// destroys it and forces re-authentication.
type Session struct {
	UserID      string            `json:"userId"`
	Email       string            `json:"email"`
	Name        string            `json:"name"`
	Role        string            `json:"role"`
	RoleID      string            `json:"roleId"`
	Permissions []rbac.Permission `json:"permissions"`
	SessionID   string            `json:"sessionId"`
	CSRFToken   string            `json:"csrfToken"`
	IPAddress   string            `json:"ipAddress"`
	UserAgent   string            `json:"userAgent"`
	CreatedAt   time.Time         `json:"createdAt"`
	LastActivity time.Time        `json:"lastActivity"`
	ExpiresAt   time.Time         `json:"expiresAt"`
	LoginMethod string            `json:"loginMethod"`
}

// Expired reports whether the session lifetime has elapsed.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// RequestMeta is the origin context of an incoming request. The validator
// deliberately takes this plain value object instead of an *http.Request so
// the binding logic stays portable across transports.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// EventType identifies a security event.
type EventType string

const (
	EventSessionCreated     EventType = "SESSION_CREATED"
	EventSessionValidated   EventType = "SESSION_VALIDATED"
	EventSessionInvalidated EventType = "SESSION_INVALIDATED"
	EventSessionExpired     EventType = "SESSION_EXPIRED"
	EventIPMismatch         EventType = "IP_MISMATCH"
	EventUserAgentMismatch  EventType = "USER_AGENT_MISMATCH"
	EventCSRFMismatch       EventType = "CSRF_TOKEN_MISMATCH"
	EventSuspiciousActivity EventType = "SUSPICIOUS_ACTIVITY"
	EventConcurrentSession  EventType = "CONCURRENT_SESSION"
)

// Severity grades a security event. High and critical events feed the
// suspicious-IP detector.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Event is an append-only audit record of an authentication or authorization
// relevant occurrence.
type Event struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	UserID    string            `json:"userId,omitempty"`
	SessionID string            `json:"sessionId,omitempty"`
	IPAddress string            `json:"ipAddress"`
	UserAgent string            `json:"userAgent,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Severity  Severity          `json:"severity"`
	Details   map[string]string `json:"details,omitempty"`
}

// randomToken returns an unguessable URL-safe random string. Used for
// session IDs and CSRF tokens.
func randomToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
