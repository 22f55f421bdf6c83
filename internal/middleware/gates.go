package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/peerpoints/peerpoints/internal/rbac"
	"github.com/peerpoints/peerpoints/internal/security"
)

// RateLimit configures the rate-limit gate for a route.
type RateLimit struct {
	Limit  int
	Window time.Duration
	// SkipSuccessful un-counts requests that complete below 400, so only
	// repeated failures (brute force) consume quota.
	SkipSuccessful bool
}

// Route declares the protection requirements of an endpoint. The gates run
// in a fixed order — rate limit, authentication, CSRF, role, permission —
// and the first failure terminates the request.
type Route struct {
	// Public skips the authentication gate (and everything after it that
	// needs a session).
	Public bool
	// CSRF requires a valid anti-forgery token on state-changing methods.
	CSRF bool
	// Roles is an allow-list of role IDs; empty means any role.
	Roles []string
	// AnyOf passes when at least one listed permission is held.
	AnyOf []rbac.Permission
	// AllOf passes only when every listed permission is held.
	AllOf []rbac.Permission
	// RateLimit gates the route by client IP when set.
	RateLimit *RateLimit
}

// rejection is a terminal gate outcome.
type rejection struct {
	status  int
	code    string
	message string
	details map[string]interface{}
}

// gate evaluates one protection stage. A nil result continues the pipeline;
// a non-nil result terminates the request. Gates after the auth gate
// receive the validated session.
type gate func(w http.ResponseWriter, r *http.Request, sess *security.Session) *rejection

// Protect composes the route's gates into a single dispatcher in front of
// the business handler. The evaluation order is fixed and every rejection
// path still passes through the outer security-header wrapper.
func (m *Middleware) Protect(route Route, next http.Handler) http.Handler {
	gates := m.buildGates(route)
	if route.RateLimit != nil && route.RateLimit.SkipSuccessful {
		next = m.Forgiveness(next)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var sess *security.Session

		for _, g := range gates {
			if rej := g(w, r, sess); rej != nil {
				m.writeRejection(w, r, rej)
				return
			}
			// The auth gate attaches the session for later gates.
			if sess == nil {
				sess = sessionOf(r)
			}
		}

		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) buildGates(route Route) []gate {
	var gates []gate

	if route.RateLimit != nil {
		gates = append(gates, m.rateLimitGate(*route.RateLimit))
	}
	if !route.Public {
		gates = append(gates, m.authGate())
		if route.CSRF {
			gates = append(gates, m.csrfGate())
		}
		if len(route.Roles) > 0 {
			gates = append(gates, m.roleGate(route.Roles))
		}
		if len(route.AnyOf) > 0 || len(route.AllOf) > 0 {
			gates = append(gates, m.permissionGate(route.AnyOf, route.AllOf))
		}
	}

	return gates
}

// authGate extracts the session token (cookie first, then bearer header)
// and validates it against the registry and the request origin. All
// failures map to a generic 401: the caller never learns which check
// tripped.
func (m *Middleware) authGate() gate {
	return func(w http.ResponseWriter, r *http.Request, _ *security.Session) *rejection {
		tokenString := ""
		if cookie, err := r.Cookie(m.cfg.Cookie.Name); err == nil && cookie.Value != "" {
			tokenString = cookie.Value
		}
		if tokenString == "" {
			authHeader := r.Header.Get("Authorization")
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
				tokenString = parts[1]
			}
		}

		if tokenString == "" {
			return &rejection{status: http.StatusUnauthorized, code: "unauthorized", message: "Authentication required"}
		}

		sess, err := m.validator.Validate(r.Context(), tokenString, RequestMeta(r))
		if err != nil {
			m.log.Debug().Err(err).Msg("session validation failed")
			return &rejection{status: http.StatusUnauthorized, code: "unauthorized", message: "Session is invalid or expired"}
		}

		// Echo the CSRF token so clients can reuse it on the next
		// state-changing call.
		w.Header().Set(m.csrf.Header(), sess.CSRFToken)

		*r = *r.WithContext(context.WithValue(r.Context(), SessionKey, sess))
		return nil
	}
}

func (m *Middleware) csrfGate() gate {
	return func(w http.ResponseWriter, r *http.Request, sess *security.Session) *rejection {
		if m.csrf.Exempt(r.Method) {
			return nil
		}

		presented := m.csrf.TokenFromRequest(r)
		if err := m.csrf.Check(sess, presented); err != nil {
			m.validator.RecordEvent(security.Event{
				Type:      security.EventCSRFMismatch,
				UserID:    sess.UserID,
				SessionID: sess.SessionID,
				IPAddress: ClientIP(r),
				UserAgent: r.Header.Get("User-Agent"),
				Severity:  security.SeverityHigh,
				Details:   map[string]string{"path": r.URL.Path},
			})
			return &rejection{status: http.StatusForbidden, code: "csrf_mismatch", message: "CSRF token missing or invalid"}
		}
		return nil
	}
}

func (m *Middleware) roleGate(allowed []string) gate {
	return func(_ http.ResponseWriter, _ *http.Request, sess *security.Session) *rejection {
		for _, roleID := range allowed {
			if sess.RoleID == roleID {
				return nil
			}
		}
		return &rejection{
			status:  http.StatusForbidden,
			code:    "forbidden",
			message: "Role not permitted for this resource",
			details: map[string]interface{}{"role": sess.RoleID, "allowedRoles": allowed},
		}
	}
}

// permissionGate checks any-of / all-of permission requirements. The
// rejection body enumerates required vs held permissions: non-sensitive,
// and it saves an authenticated caller a support round-trip.
func (m *Middleware) permissionGate(anyOf, allOf []rbac.Permission) gate {
	return func(_ http.ResponseWriter, _ *http.Request, sess *security.Session) *rejection {
		ok := true
		required := allOf
		if len(allOf) > 0 {
			ok = rbac.HasAllPermissions(sess.Permissions, allOf)
		}
		if ok && len(anyOf) > 0 {
			ok = rbac.HasAnyPermission(sess.Permissions, anyOf)
			if !ok {
				required = anyOf
			}
		}
		if ok {
			return nil
		}

		return &rejection{
			status:  http.StatusForbidden,
			code:    "insufficient_permissions",
			message: "Missing required permissions",
			details: map[string]interface{}{
				"required": required,
				"held":     sess.Permissions,
			},
		}
	}
}

func (m *Middleware) rateLimitGate(cfg RateLimit) gate {
	return func(w http.ResponseWriter, r *http.Request, _ *security.Session) *rejection {
		key := r.URL.Path + ":" + ClientIP(r)

		result, err := m.limiter.Check(r.Context(), key, cfg.Limit, cfg.Window)
		if err != nil {
			// Fail open: a broken counter store must not take the
			// API down.
			m.log.Error().Err(err).Msg("rate limit check failed")
			return nil
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetTime.Unix(), 10))

		if !result.Allowed {
			retryAfter := int(time.Until(result.ResetTime).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			return &rejection{status: http.StatusTooManyRequests, code: "rate_limit_exceeded", message: "Too many requests. Please try again later."}
		}

		if cfg.SkipSuccessful {
			// Un-count the request after the handler reports success.
			*r = *r.WithContext(context.WithValue(r.Context(), forgiveKey, key))
		}
		return nil
	}
}

const forgiveKey contextKey = "ratelimit_forgive"

// Forgiveness wraps a handler so that responses below 400 un-count against
// the route's skip-successful rate limit.
func (m *Middleware) Forgiveness(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, ok := r.Context().Value(forgiveKey).(string)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		wrapped := newResponseWriter(w)
		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode < 400 {
			m.limiter.Forgive(r.Context(), key)
		}
	})
}

func sessionOf(r *http.Request) *security.Session {
	return SessionFromContext(r.Context())
}

func (m *Middleware) writeRejection(w http.ResponseWriter, r *http.Request, rej *rejection) {
	body := map[string]interface{}{
		"error": map[string]interface{}{
			"code":    rej.code,
			"message": rej.message,
		},
	}
	if rej.details != nil {
		body["error"].(map[string]interface{})["details"] = rej.details
	}
	if reqID := GetRequestID(r.Context()); reqID != "" {
		body["error"].(map[string]interface{})["request_id"] = reqID
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rej.status)
	json.NewEncoder(w).Encode(body)
}
