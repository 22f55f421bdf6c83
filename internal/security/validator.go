package security

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/peerpoints/peerpoints/internal/config"
	"github.com/peerpoints/peerpoints/internal/logger"
	"github.com/peerpoints/peerpoints/internal/rbac"
	"github.com/peerpoints/peerpoints/internal/token"
)

// Validation failures. All of them force the caller back through full
// re-authentication; none are retried or auto-recovered.
var (
	ErrSessionExpired    = errors.New("session expired")
	ErrIPMismatch        = errors.New("session IP address mismatch")
	ErrUserAgentMismatch = errors.New("session user agent mismatch")
	ErrSuspiciousIP      = errors.New("request from suspicious IP")
)

// browserPattern extracts the browser family and major version from a
// user-agent string, e.g. "Chrome/123". Order matters: Edge and Opera embed
// a Chrome segment, so they are matched first.
var browserPattern = regexp.MustCompile(`(Edg|Edge|OPR|Opera|Chrome|CriOS|Firefox|FxiOS|Safari|MSIE|Trident)[/ ](\d+)`)

// NewSessionParams carries the authenticated identity a new session is
// created for.
type NewSessionParams struct {
	UserID      string
	Email       string
	Name        string
	Role        string
	RoleID      string
	Permissions []rbac.Permission
	LoginMethod string
}

// Stats is a point-in-time snapshot of the validator's registries.
type Stats struct {
	ActiveSessions int `json:"activeSessions"`
	Events         int `json:"events"`
	SuspiciousIPs  int `json:"suspiciousIps"`
}

// Validator owns the session registry and enforces the per-request security
// context: token integrity, expiry, origin binding and suspicious-IP
// gating. Sessions move CREATED -> VALIDATED (loop) -> one of
// {EXPIRED, INVALIDATED, SECURITY_VIOLATION}; there is no repair path.
type Validator struct {
	cfg      config.SessionConfig
	codec    *token.Codec
	store    SessionStore
	events   *EventLog
	suspects *SuspiciousIPRegistry
	log      *logger.Logger
}

// NewValidator creates a Validator over the given store.
func NewValidator(cfg config.SessionConfig, codec *token.Codec, store SessionStore, log *logger.Logger) *Validator {
	return &Validator{
		cfg:      cfg,
		codec:    codec,
		store:    store,
		events:   NewEventLog(cfg.MaxEvents, cfg.EventRetention),
		suspects: NewSuspiciousIPRegistry(),
		log:      log.WithComponent("security"),
	}
}

// CreateSession registers a new session for an authenticated user, capturing
// the request origin, and returns the session plus its signed token.
func (v *Validator) CreateSession(ctx context.Context, params NewSessionParams, meta RequestMeta) (*Session, string, error) {
	sessionID, err := randomToken()
	if err != nil {
		return nil, "", err
	}
	csrfToken, err := randomToken()
	if err != nil {
		return nil, "", err
	}

	now := time.Now()
	sess := &Session{
		UserID:       params.UserID,
		Email:        params.Email,
		Name:         params.Name,
		Role:         params.Role,
		RoleID:       params.RoleID,
		Permissions:  params.Permissions,
		SessionID:    sessionID,
		CSRFToken:    csrfToken,
		IPAddress:    meta.IP,
		UserAgent:    meta.UserAgent,
		CreatedAt:    now,
		LastActivity: now,
		ExpiresAt:    now.Add(v.cfg.TTL),
		LoginMethod:  params.LoginMethod,
	}

	// Informational: the user already holds another live session.
	if existing, err := v.store.ByUser(ctx, params.UserID); err == nil && len(existing) > 0 {
		v.record(Event{
			Type:      EventConcurrentSession,
			UserID:    params.UserID,
			SessionID: sessionID,
			IPAddress: meta.IP,
			UserAgent: meta.UserAgent,
			Severity:  SeverityLow,
			Details:   map[string]string{"existing_sessions": strconv.Itoa(len(existing))},
		})
	}

	if err := v.store.Put(ctx, sess); err != nil {
		return nil, "", err
	}

	signed, err := v.codec.Sign(token.Claims{
		Email:       sess.Email,
		Name:        sess.Name,
		Role:        sess.Role,
		RoleID:      sess.RoleID,
		SessionID:   sess.SessionID,
		LoginMethod: sess.LoginMethod,
	}, now, sess.ExpiresAt)
	if err != nil {
		v.store.Delete(ctx, sessionID)
		return nil, "", err
	}

	v.record(Event{
		Type:      EventSessionCreated,
		UserID:    sess.UserID,
		SessionID: sess.SessionID,
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
		Severity:  SeverityLow,
		Details:   map[string]string{"login_method": sess.LoginMethod},
	})

	return sess, signed, nil
}

// Validate checks a bearer token against the registry and the request's
// origin context. On success it extends lastActivity and returns the
// session. Every failure is fail-closed; a mismatch destroys the session
// rather than repairing it.
func (v *Validator) Validate(ctx context.Context, tokenString string, meta RequestMeta) (*Session, error) {
	claims, err := v.codec.Verify(tokenString)
	if err != nil {
		return nil, token.ErrInvalidToken
	}

	sess, err := v.store.Get(ctx, claims.SessionID)
	if err != nil {
		// Logged out or evicted; the token alone proves nothing.
		return nil, token.ErrInvalidToken
	}

	now := time.Now()

	if sess.Expired(now) {
		v.record(Event{
			Type:      EventSessionExpired,
			UserID:    sess.UserID,
			SessionID: sess.SessionID,
			IPAddress: meta.IP,
			UserAgent: meta.UserAgent,
			Severity:  SeverityLow,
		})
		v.store.Delete(ctx, sess.SessionID)
		return nil, ErrSessionExpired
	}

	if !v.matchIP(sess.IPAddress, meta.IP) {
		v.record(Event{
			Type:      EventIPMismatch,
			UserID:    sess.UserID,
			SessionID: sess.SessionID,
			IPAddress: meta.IP,
			UserAgent: meta.UserAgent,
			Severity:  SeverityHigh,
			Details:   map[string]string{"session_ip": sess.IPAddress},
		})
		v.store.Delete(ctx, sess.SessionID)
		return nil, ErrIPMismatch
	}

	if !v.matchUserAgent(sess.UserAgent, meta.UserAgent) {
		v.record(Event{
			Type:      EventUserAgentMismatch,
			UserID:    sess.UserID,
			SessionID: sess.SessionID,
			IPAddress: meta.IP,
			UserAgent: meta.UserAgent,
			Severity:  SeverityMedium,
			Details:   map[string]string{"session_ua": sess.UserAgent},
		})
		v.store.Delete(ctx, sess.SessionID)
		return nil, ErrUserAgentMismatch
	}

	// Flagged IPs fail closed regardless of how well everything else
	// matched.
	if v.suspects.IsSuspicious(meta.IP, now) {
		v.record(Event{
			Type:      EventSuspiciousActivity,
			UserID:    sess.UserID,
			SessionID: sess.SessionID,
			IPAddress: meta.IP,
			UserAgent: meta.UserAgent,
			Severity:  SeverityCritical,
		})
		v.store.Delete(ctx, sess.SessionID)
		return nil, ErrSuspiciousIP
	}

	sess.LastActivity = now
	if err := v.store.Put(ctx, sess); err != nil {
		return nil, err
	}

	v.record(Event{
		Type:      EventSessionValidated,
		UserID:    sess.UserID,
		SessionID: sess.SessionID,
		IPAddress: meta.IP,
		Severity:  SeverityLow,
	})

	return sess, nil
}

// Invalidate removes a session from the registry, logging the reason.
func (v *Validator) Invalidate(ctx context.Context, sessionID, reason string) error {
	sess, err := v.store.Get(ctx, sessionID)
	if err != nil {
		return err
	}

	if err := v.store.Delete(ctx, sessionID); err != nil {
		return err
	}

	v.record(Event{
		Type:      EventSessionInvalidated,
		UserID:    sess.UserID,
		SessionID: sessionID,
		IPAddress: sess.IPAddress,
		Severity:  SeverityLow,
		Details:   map[string]string{"reason": reason},
	})
	return nil
}

// InvalidateUserSessions removes every session belonging to a user
// ("log out everywhere"). Returns the number of sessions removed.
func (v *Validator) InvalidateUserSessions(ctx context.Context, userID, reason string) (int, error) {
	sessions, err := v.store.ByUser(ctx, userID)
	if err != nil {
		return 0, err
	}

	for _, sess := range sessions {
		if err := v.store.Delete(ctx, sess.SessionID); err != nil {
			return 0, err
		}
		v.record(Event{
			Type:      EventSessionInvalidated,
			UserID:    userID,
			SessionID: sess.SessionID,
			IPAddress: sess.IPAddress,
			Severity:  SeverityLow,
			Details:   map[string]string{"reason": reason},
		})
	}
	return len(sessions), nil
}

// UserSessions lists a user's live sessions.
func (v *Validator) UserSessions(ctx context.Context, userID string) ([]*Session, error) {
	return v.store.ByUser(ctx, userID)
}

// RecordEvent appends an external security event (e.g. a CSRF mismatch
// detected by the request gate) to the audit log.
func (v *Validator) RecordEvent(ev Event) {
	v.record(ev)
}

// Events exposes the bounded audit log, newest first.
func (v *Validator) Events(limit int) []Event {
	return v.events.Events(limit)
}

// Stats returns registry sizes for the admin security endpoint.
func (v *Validator) Stats(ctx context.Context) Stats {
	n, _ := v.store.Len(ctx)
	return Stats{
		ActiveSessions: n,
		Events:         v.events.Len(),
		SuspiciousIPs:  v.suspects.Len(),
	}
}

// record appends the event to the audit log, mirrors it to the structured
// log, and feeds the suspicious-IP detector on high/critical severity.
func (v *Validator) record(ev Event) {
	ev = v.events.Record(ev)
	v.log.SecurityEvent(string(ev.Type), string(ev.Severity), ev.UserID, ev.SessionID, ev.IPAddress, ev.Details)

	if ev.Severity == SeverityHigh || ev.Severity == SeverityCritical {
		v.suspects.NoteSevere(ev.IPAddress, ev.Timestamp)
	}
}

// matchIP compares the session's bound IP with the request IP. Exact
// matches and loopback aliases always pass; in "subnet24" mode two IPv4
// addresses in the same /24 also pass, tolerating NATs and carriers that
// rotate the last octet. Anything else is a hard mismatch.
func (v *Validator) matchIP(sessionIP, requestIP string) bool {
	if sessionIP == requestIP {
		return true
	}
	if isLoopback(sessionIP) && isLoopback(requestIP) {
		return true
	}
	if v.cfg.IPTolerance != "subnet24" {
		return false
	}

	sessOctets := strings.Split(sessionIP, ".")
	reqOctets := strings.Split(requestIP, ".")
	if len(sessOctets) != 4 || len(reqOctets) != 4 {
		return false
	}
	return sessOctets[0] == reqOctets[0] &&
		sessOctets[1] == reqOctets[1] &&
		sessOctets[2] == reqOctets[2]
}

// matchUserAgent compares the session's bound user-agent with the request's.
// In "major_version" mode agents from the same browser family at the same
// major version pass, tolerating minor-version auto-updates.
func (v *Validator) matchUserAgent(sessionUA, requestUA string) bool {
	if sessionUA == requestUA {
		return true
	}
	if v.cfg.UATolerance != "major_version" {
		return false
	}

	sessMatch := browserPattern.FindStringSubmatch(sessionUA)
	reqMatch := browserPattern.FindStringSubmatch(requestUA)
	if sessMatch == nil || reqMatch == nil {
		return false
	}
	return sessMatch[1] == reqMatch[1] && sessMatch[2] == reqMatch[2]
}

func isLoopback(ip string) bool {
	switch ip {
	case "127.0.0.1", "::1", "localhost", "::ffff:127.0.0.1":
		return true
	}
	return false
}
