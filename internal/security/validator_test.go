package security

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/peerpoints/peerpoints/internal/config"
	"github.com/peerpoints/peerpoints/internal/logger"
	"github.com/peerpoints/peerpoints/internal/rbac"
	"github.com/peerpoints/peerpoints/internal/token"
)

const (
	chromeUA    = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.6312.86 Safari/537.36"
	chromeUA2   = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.6312.122 Safari/537.36"
	chromeOldUA = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.6261.94 Safari/537.36"
	firefoxUA   = "Mozilla/5.0 (X11; Linux x86_64; rv:124.0) Gecko/20100101 Firefox/124.0"
)

func testConfig() config.SessionConfig {
	return config.SessionConfig{
		Secret:           "test-secret",
		TTL:              time.Hour,
		Issuer:           "peerpoints",
		IPTolerance:      "subnet24",
		UATolerance:      "major_version",
		MaxEvents:        1000,
		EventRetention:   time.Hour,
		MaxSessions:      100,
		MaxSuspiciousIPs: 100,
		IdleEviction:     time.Hour,
	}
}

func newTestValidator(t *testing.T, cfg config.SessionConfig) *Validator {
	t.Helper()
	codec, err := token.NewCodec(cfg.Secret, cfg.Issuer)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return NewValidator(cfg, codec, NewMemorySessionStore(), logger.Nop())
}

func testParams() NewSessionParams {
	return NewSessionParams{
		UserID:      "user-1",
		Email:       "alice@example.com",
		Name:        "Alice",
		Role:        "User",
		RoleID:      rbac.RoleUser,
		Permissions: []rbac.Permission{rbac.PermViewDashboard},
		LoginMethod: "password",
	}
}

func TestCreateAndValidateSession(t *testing.T) {
	v := newTestValidator(t, testConfig())
	ctx := context.Background()
	meta := RequestMeta{IP: "203.0.113.10", UserAgent: chromeUA}

	sess, signed, err := v.CreateSession(ctx, testParams(), meta)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if sess.SessionID == "" || sess.CSRFToken == "" {
		t.Fatal("session ID and CSRF token must be populated")
	}
	if sess.IPAddress != meta.IP || sess.UserAgent != meta.UserAgent {
		t.Error("session must capture the request origin")
	}

	before := sess.LastActivity
	time.Sleep(5 * time.Millisecond)

	got, err := v.Validate(ctx, signed, meta)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got.SessionID != sess.SessionID {
		t.Errorf("SessionID = %q, want %q", got.SessionID, sess.SessionID)
	}
	if !got.LastActivity.After(before) {
		t.Error("Validate must advance lastActivity")
	}
}

func TestValidateUnknownSession(t *testing.T) {
	v := newTestValidator(t, testConfig())
	ctx := context.Background()
	meta := RequestMeta{IP: "203.0.113.10", UserAgent: chromeUA}

	_, signed, err := v.CreateSession(ctx, testParams(), meta)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	// Log out; the still-valid token must now be rejected.
	sessions, _ := v.UserSessions(ctx, "user-1")
	if err := v.Invalidate(ctx, sessions[0].SessionID, "logout"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}

	if _, err := v.Validate(ctx, signed, meta); !errors.Is(err, token.ErrInvalidToken) {
		t.Fatalf("Validate after logout = %v, want ErrInvalidToken", err)
	}
}

func TestValidateIPSubnetTolerance(t *testing.T) {
	v := newTestValidator(t, testConfig())
	ctx := context.Background()
	login := RequestMeta{IP: "203.0.113.10", UserAgent: chromeUA}

	_, signed, err := v.CreateSession(ctx, testParams(), login)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	// Same /24: allowed.
	if _, err := v.Validate(ctx, signed, RequestMeta{IP: "203.0.113.77", UserAgent: chromeUA}); err != nil {
		t.Fatalf("Validate same /24 = %v, want nil", err)
	}

	// Different /24: session destroyed.
	if _, err := v.Validate(ctx, signed, RequestMeta{IP: "203.0.114.10", UserAgent: chromeUA}); !errors.Is(err, ErrIPMismatch) {
		t.Fatalf("Validate other subnet = %v, want ErrIPMismatch", err)
	}

	// A mismatch is fatal: even the original IP is rejected afterwards.
	if _, err := v.Validate(ctx, signed, login); !errors.Is(err, token.ErrInvalidToken) {
		t.Fatalf("Validate after mismatch = %v, want ErrInvalidToken", err)
	}
}

func TestValidateIPExactMode(t *testing.T) {
	cfg := testConfig()
	cfg.IPTolerance = "exact"
	v := newTestValidator(t, cfg)
	ctx := context.Background()

	_, signed, err := v.CreateSession(ctx, testParams(), RequestMeta{IP: "203.0.113.10", UserAgent: chromeUA})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	if _, err := v.Validate(ctx, signed, RequestMeta{IP: "203.0.113.77", UserAgent: chromeUA}); !errors.Is(err, ErrIPMismatch) {
		t.Fatalf("Validate same /24 in exact mode = %v, want ErrIPMismatch", err)
	}
}

func TestValidateLoopbackAliases(t *testing.T) {
	v := newTestValidator(t, testConfig())
	ctx := context.Background()

	_, signed, err := v.CreateSession(ctx, testParams(), RequestMeta{IP: "127.0.0.1", UserAgent: chromeUA})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	if _, err := v.Validate(ctx, signed, RequestMeta{IP: "::1", UserAgent: chromeUA}); err != nil {
		t.Fatalf("Validate loopback alias = %v, want nil", err)
	}
}

func TestValidateUserAgentMajorVersion(t *testing.T) {
	v := newTestValidator(t, testConfig())
	ctx := context.Background()
	ip := "203.0.113.10"

	_, signed, err := v.CreateSession(ctx, testParams(), RequestMeta{IP: ip, UserAgent: chromeUA})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	// Minor version bump within the same major: allowed.
	if _, err := v.Validate(ctx, signed, RequestMeta{IP: ip, UserAgent: chromeUA2}); err != nil {
		t.Fatalf("Validate same major version = %v, want nil", err)
	}

	// Different major version: rejected, session destroyed.
	if _, err := v.Validate(ctx, signed, RequestMeta{IP: ip, UserAgent: chromeOldUA}); !errors.Is(err, ErrUserAgentMismatch) {
		t.Fatalf("Validate older major = %v, want ErrUserAgentMismatch", err)
	}
}

func TestValidateUserAgentFamilyChange(t *testing.T) {
	v := newTestValidator(t, testConfig())
	ctx := context.Background()
	ip := "203.0.113.10"

	_, signed, err := v.CreateSession(ctx, testParams(), RequestMeta{IP: ip, UserAgent: chromeUA})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	if _, err := v.Validate(ctx, signed, RequestMeta{IP: ip, UserAgent: firefoxUA}); !errors.Is(err, ErrUserAgentMismatch) {
		t.Fatalf("Validate different browser = %v, want ErrUserAgentMismatch", err)
	}
}

func TestValidateExpiredSession(t *testing.T) {
	cfg := testConfig()
	cfg.TTL = -time.Minute // already expired at creation
	v := newTestValidator(t, cfg)
	ctx := context.Background()
	meta := RequestMeta{IP: "203.0.113.10", UserAgent: chromeUA}

	// The token itself would be expired too with a negative TTL, so sign a
	// fresh one against the stored (expired) session instead.
	sess, _, err := v.CreateSession(ctx, testParams(), meta)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	codec, _ := token.NewCodec(cfg.Secret, cfg.Issuer)
	now := time.Now()
	signed, err := codec.Sign(token.Claims{SessionID: sess.SessionID}, now, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	if _, err := v.Validate(ctx, signed, meta); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("Validate expired = %v, want ErrSessionExpired", err)
	}

	// Expired sessions are removed, not retried.
	if _, err := v.Validate(ctx, signed, meta); !errors.Is(err, token.ErrInvalidToken) {
		t.Fatalf("Validate after expiry cleanup = %v, want ErrInvalidToken", err)
	}
}

func TestSuspiciousIPFlagging(t *testing.T) {
	v := newTestValidator(t, testConfig())
	ctx := context.Background()
	attackerIP := "198.51.100.7"

	// Three high-severity events from the same IP within the window flag it.
	for i := 0; i < 3; i++ {
		v.RecordEvent(Event{
			Type:      EventCSRFMismatch,
			IPAddress: attackerIP,
			Severity:  SeverityHigh,
		})
	}

	meta := RequestMeta{IP: attackerIP, UserAgent: chromeUA}
	_, signed, err := v.CreateSession(ctx, testParams(), meta)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	if _, err := v.Validate(ctx, signed, meta); !errors.Is(err, ErrSuspiciousIP) {
		t.Fatalf("Validate from flagged IP = %v, want ErrSuspiciousIP", err)
	}

	stats := v.Stats(ctx)
	if stats.SuspiciousIPs != 1 {
		t.Errorf("SuspiciousIPs = %d, want 1", stats.SuspiciousIPs)
	}
}

func TestTwoSevereEventsDoNotFlag(t *testing.T) {
	v := newTestValidator(t, testConfig())
	ctx := context.Background()
	ip := "198.51.100.8"

	for i := 0; i < 2; i++ {
		v.RecordEvent(Event{Type: EventCSRFMismatch, IPAddress: ip, Severity: SeverityHigh})
	}

	meta := RequestMeta{IP: ip, UserAgent: chromeUA}
	_, signed, err := v.CreateSession(ctx, testParams(), meta)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := v.Validate(ctx, signed, meta); err != nil {
		t.Fatalf("Validate below threshold = %v, want nil", err)
	}
}

func TestInvalidateUserSessions(t *testing.T) {
	v := newTestValidator(t, testConfig())
	ctx := context.Background()
	meta := RequestMeta{IP: "203.0.113.10", UserAgent: chromeUA}

	for i := 0; i < 3; i++ {
		if _, _, err := v.CreateSession(ctx, testParams(), meta); err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
	}

	count, err := v.InvalidateUserSessions(ctx, "user-1", "logout_all")
	if err != nil {
		t.Fatalf("InvalidateUserSessions: %v", err)
	}
	if count != 3 {
		t.Errorf("invalidated = %d, want 3", count)
	}

	remaining, _ := v.UserSessions(ctx, "user-1")
	if len(remaining) != 0 {
		t.Errorf("remaining sessions = %d, want 0", len(remaining))
	}
}

func TestConcurrentSessionEvent(t *testing.T) {
	v := newTestValidator(t, testConfig())
	ctx := context.Background()
	meta := RequestMeta{IP: "203.0.113.10", UserAgent: chromeUA}

	if _, _, err := v.CreateSession(ctx, testParams(), meta); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, _, err := v.CreateSession(ctx, testParams(), meta); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	found := false
	for _, ev := range v.Events(0) {
		if ev.Type == EventConcurrentSession {
			found = true
			if ev.Severity != SeverityLow {
				t.Errorf("concurrent session severity = %s, want low", ev.Severity)
			}
		}
	}
	if !found {
		t.Error("expected a CONCURRENT_SESSION event for the second login")
	}
}

func TestEventsNewestFirst(t *testing.T) {
	v := newTestValidator(t, testConfig())
	ctx := context.Background()
	meta := RequestMeta{IP: "203.0.113.10", UserAgent: chromeUA}

	_, signed, err := v.CreateSession(ctx, testParams(), meta)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := v.Validate(ctx, signed, meta); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	events := v.Events(1)
	if len(events) != 1 {
		t.Fatalf("Events(1) returned %d events", len(events))
	}
	if events[0].Type != EventSessionValidated {
		t.Errorf("newest event = %s, want SESSION_VALIDATED", events[0].Type)
	}
}
