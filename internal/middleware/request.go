package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/peerpoints/peerpoints/internal/security"
)

type contextKey string

const (
	// RequestIDKey holds the per-request ID.
	RequestIDKey contextKey = "request_id"
	// SessionKey holds the validated *security.Session.
	SessionKey contextKey = "session"
)

// RequestID adds a unique request ID to each request
func (m *Middleware) RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Check for existing request ID in header
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		// Add to context and response header
		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// SessionFromContext retrieves the validated session attached by the auth
// gate. Nil for unauthenticated requests.
func SessionFromContext(ctx context.Context) *security.Session {
	if sess, ok := ctx.Value(SessionKey).(*security.Session); ok {
		return sess
	}
	return nil
}

// ClientIP extracts the client IP: the first X-Forwarded-For hop, then
// X-Real-IP, then the connection's remote address, then a sentinel.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if i := strings.IndexByte(forwarded, ','); i >= 0 {
			forwarded = forwarded[:i]
		}
		return strings.TrimSpace(forwarded)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}

// RequestMeta builds the origin value object the validator consumes.
func RequestMeta(r *http.Request) security.RequestMeta {
	return security.RequestMeta{
		IP:        ClientIP(r),
		UserAgent: r.Header.Get("User-Agent"),
	}
}
