package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/peerpoints/peerpoints/internal/config"
	"github.com/peerpoints/peerpoints/internal/logger"
	"github.com/peerpoints/peerpoints/internal/rbac"
	"github.com/peerpoints/peerpoints/internal/security"
	"github.com/peerpoints/peerpoints/internal/token"
)

const testUA = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.6312.86 Safari/537.36"

type fixture struct {
	mw        *Middleware
	validator *security.Validator
	cfg       *config.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := &config.Config{}
	cfg.Cookie.Name = "session"
	cfg.Security.Session = config.SessionConfig{
		Secret:         "test-secret",
		TTL:            time.Hour,
		Issuer:         "peerpoints",
		IPTolerance:    "subnet24",
		UATolerance:    "major_version",
		MaxEvents:      100,
		EventRetention: time.Hour,
	}
	cfg.Security.CSRF = config.CSRFConfig{Header: "X-CSRF-Token", AuthScheme: "CSRF"}
	cfg.Security.RateLimiting.Enabled = true

	codec, err := token.NewCodec(cfg.Security.Session.Secret, cfg.Security.Session.Issuer)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}

	validator := security.NewValidator(cfg.Security.Session, codec, security.NewMemorySessionStore(), logger.Nop())
	csrf := security.NewCSRFGuard(cfg.Security.CSRF.Header, cfg.Security.CSRF.AuthScheme)
	limiter := security.NewLimiter(security.NewMemoryRateLimitStore(), true)

	return &fixture{
		mw:        New(validator, csrf, limiter, logger.Nop(), cfg),
		validator: validator,
		cfg:       cfg,
	}
}

// login creates a session bound to ip/testUA and returns it with its token.
func (f *fixture) login(t *testing.T, roleID string, ip string) (*security.Session, string) {
	t.Helper()
	roles := rbac.NewManager()
	sess, signed, err := f.validator.CreateSession(t.Context(), security.NewSessionParams{
		UserID:      "user-1",
		Email:       "alice@example.com",
		Role:        roleID,
		RoleID:      roleID,
		Permissions: roles.RolePermissions(roleID),
		LoginMethod: "password",
	}, security.RequestMeta{IP: ip, UserAgent: testUA})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return sess, signed
}

func authedRequest(method, target, tokenValue, ip string) *http.Request {
	r := httptest.NewRequest(method, target, nil)
	r.RemoteAddr = ip + ":54321"
	r.Header.Set("User-Agent", testUA)
	r.AddCookie(&http.Cookie{Name: "session", Value: tokenValue})
	return r
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) (string, map[string]interface{}) {
	t.Helper()
	var body struct {
		Error struct {
			Code    string                 `json:"code"`
			Details map[string]interface{} `json:"details"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding rejection body: %v", err)
	}
	return body.Error.Code, body.Error.Details
}

func TestAuthGateCookieAndBearer(t *testing.T) {
	f := newFixture(t)
	_, signed := f.login(t, rbac.RoleUser, "203.0.113.10")
	h := f.mw.Protect(Route{}, okHandler())

	// Cookie transport.
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest(http.MethodGet, "/x", signed, "203.0.113.10"))
	if rec.Code != http.StatusOK {
		t.Fatalf("cookie auth status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("X-CSRF-Token") == "" {
		t.Error("authenticated responses must echo the CSRF token")
	}

	// Bearer transport.
	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	r.RemoteAddr = "203.0.113.10:54321"
	r.Header.Set("User-Agent", testUA)
	r.Header.Set("Authorization", "Bearer "+signed)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	if rec.Code != http.StatusOK {
		t.Fatalf("bearer auth status = %d, want 200", rec.Code)
	}
}

func TestAuthGateMissingToken(t *testing.T) {
	f := newFixture(t)
	h := f.mw.Protect(Route{}, okHandler())

	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAuthGateStolenTokenOtherNetwork(t *testing.T) {
	f := newFixture(t)
	_, signed := f.login(t, rbac.RoleUser, "203.0.113.10")
	h := f.mw.Protect(Route{}, okHandler())

	// Replay from a different /24: rejected with a generic 401, and the
	// session is destroyed so the legitimate origin is locked out too.
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest(http.MethodGet, "/x", signed, "198.51.100.99"))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("replay status = %d, want 401", rec.Code)
	}
	code, _ := decodeErrorCode(t, rec)
	if code != "unauthorized" {
		t.Errorf("code = %q, want the generic unauthorized", code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest(http.MethodGet, "/x", signed, "203.0.113.10"))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("original origin after replay = %d, want 401", rec.Code)
	}
}

func TestCSRFGateRejectsMissingToken(t *testing.T) {
	f := newFixture(t)
	sess, signed := f.login(t, rbac.RoleUser, "203.0.113.10")
	h := f.mw.Protect(Route{CSRF: true}, okHandler())

	// POST without a CSRF token: 403, session stays alive.
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest(http.MethodPost, "/x", signed, "203.0.113.10"))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("missing CSRF status = %d, want 403", rec.Code)
	}
	code, _ := decodeErrorCode(t, rec)
	if code != "csrf_mismatch" {
		t.Errorf("code = %q, want csrf_mismatch", code)
	}

	// GET is exempt.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest(http.MethodGet, "/x", signed, "203.0.113.10"))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET with CSRF route = %d, want 200", rec.Code)
	}

	// POST with the right token passes.
	r := authedRequest(http.MethodPost, "/x", signed, "203.0.113.10")
	r.Header.Set("X-CSRF-Token", sess.CSRFToken)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST with CSRF token = %d, want 200", rec.Code)
	}

	// The Authorization-scheme alternate works too.
	r = authedRequest(http.MethodPost, "/x", signed, "203.0.113.10")
	r.Header.Set("Authorization", "CSRF "+sess.CSRFToken)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST with CSRF auth scheme = %d, want 200", rec.Code)
	}
}

func TestPermissionGateDetails(t *testing.T) {
	f := newFixture(t)
	_, signed := f.login(t, rbac.RoleUser, "203.0.113.10")
	h := f.mw.Protect(Route{AllOf: []rbac.Permission{rbac.PermRemoveUser}}, okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest(http.MethodGet, "/x", signed, "203.0.113.10"))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	code, details := decodeErrorCode(t, rec)
	if code != "insufficient_permissions" {
		t.Errorf("code = %q, want insufficient_permissions", code)
	}
	if details["required"] == nil || details["held"] == nil {
		t.Error("rejection must enumerate required and held permissions")
	}
}

func TestPermissionGateAnyOf(t *testing.T) {
	f := newFixture(t)
	_, signed := f.login(t, rbac.RoleViewer, "203.0.113.10")

	// Viewer holds VIEW_ROLES, so any-of(VIEW_ROLES, MANAGE_ROLES) passes.
	h := f.mw.Protect(Route{AnyOf: []rbac.Permission{rbac.PermViewRoles, rbac.PermManageRoles}}, okHandler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest(http.MethodGet, "/x", signed, "203.0.113.10"))
	if rec.Code != http.StatusOK {
		t.Fatalf("any-of with one held = %d, want 200", rec.Code)
	}
}

func TestRoleGate(t *testing.T) {
	f := newFixture(t)
	_, signed := f.login(t, rbac.RoleUser, "203.0.113.10")
	h := f.mw.Protect(Route{Roles: []string{rbac.RoleAdministrator}}, okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest(http.MethodGet, "/x", signed, "203.0.113.10"))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	code, details := decodeErrorCode(t, rec)
	if code != "forbidden" {
		t.Errorf("code = %q, want forbidden", code)
	}
	if details["role"] != rbac.RoleUser {
		t.Errorf("details.role = %v, want user", details["role"])
	}
}

func TestRateLimitSkipSuccessful(t *testing.T) {
	f := newFixture(t)

	// Simulated login endpoint: fails unless the magic header is present.
	endpoint := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Correct-Password") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	h := f.mw.Protect(Route{
		Public:    true,
		RateLimit: &RateLimit{Limit: 3, Window: time.Minute, SkipSuccessful: true},
	}, endpoint)

	send := func(success bool) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/login", nil)
		r.RemoteAddr = "203.0.113.10:54321"
		if success {
			r.Header.Set("X-Correct-Password", "1")
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec
	}

	// Successful attempts do not consume quota.
	for i := 0; i < 5; i++ {
		if rec := send(true); rec.Code != http.StatusOK {
			t.Fatalf("successful attempt %d = %d, want 200", i+1, rec.Code)
		}
	}

	// Three failures exhaust the limit; the fourth is throttled.
	for i := 0; i < 3; i++ {
		if rec := send(false); rec.Code != http.StatusUnauthorized {
			t.Fatalf("failed attempt %d = %d, want 401", i+1, rec.Code)
		}
	}
	rec := send(false)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("attempt after exhaustion = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("429 must carry Retry-After")
	}
	if rec.Header().Get("X-RateLimit-Limit") != "3" {
		t.Errorf("X-RateLimit-Limit = %q, want 3", rec.Header().Get("X-RateLimit-Limit"))
	}
}

func TestRateLimitPerIP(t *testing.T) {
	f := newFixture(t)
	h := f.mw.Protect(Route{
		Public:    true,
		RateLimit: &RateLimit{Limit: 2, Window: time.Minute},
	}, okHandler())

	send := func(ip string) int {
		r := httptest.NewRequest(http.MethodGet, "/x", nil)
		r.RemoteAddr = ip + ":54321"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec.Code
	}

	send("203.0.113.10")
	send("203.0.113.10")
	if code := send("203.0.113.10"); code != http.StatusTooManyRequests {
		t.Fatalf("third request = %d, want 429", code)
	}
	if code := send("198.51.100.5"); code != http.StatusOK {
		t.Fatalf("other client = %d, want 200", code)
	}
}

func TestCSRFMismatchFeedsSuspiciousIPDetector(t *testing.T) {
	f := newFixture(t)
	_, signed := f.login(t, rbac.RoleUser, "203.0.113.10")
	h := f.mw.Protect(Route{CSRF: true}, okHandler())

	// Repeated CSRF failures are high-severity events; the third flags the
	// IP, and the auth gate then rejects even a well-formed request.
	for i := 0; i < 3; i++ {
		r := authedRequest(http.MethodPost, "/x", signed, "203.0.113.10")
		r.Header.Set("X-CSRF-Token", "wrong-token")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("CSRF failure %d = %d, want 403", i+1, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest(http.MethodGet, "/x", signed, "203.0.113.10"))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("request from flagged IP = %d, want 401", rec.Code)
	}
}
