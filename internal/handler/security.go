package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/peerpoints/peerpoints/internal/middleware"
	"github.com/peerpoints/peerpoints/internal/security"
)

// SecurityEvents returns the recent security event log, newest first.
func (h *Handler) SecurityEvents(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": h.validator.Events(limit),
	})
}

// SecurityStats returns registry sizes.
func (h *Handler) SecurityStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.validator.Stats(r.Context()))
}

type sessionInfo struct {
	SessionID    string    `json:"sessionId"`
	IPAddress    string    `json:"ipAddress"`
	UserAgent    string    `json:"userAgent"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
	ExpiresAt    time.Time `json:"expiresAt"`
	Current      bool      `json:"current"`
}

// ListSessions returns the caller's own live sessions.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())

	sessions, err := h.validator.UserSessions(r.Context(), sess.UserID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	out := make([]sessionInfo, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, sessionInfo{
			SessionID:    s.SessionID,
			IPAddress:    s.IPAddress,
			UserAgent:    s.UserAgent,
			CreatedAt:    s.CreatedAt,
			LastActivity: s.LastActivity,
			ExpiresAt:    s.ExpiresAt,
			Current:      s.SessionID == sess.SessionID,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": out})
}

// RevokeSession invalidates one of the caller's own sessions.
func (h *Handler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())
	targetID := r.PathValue("id")

	// Only the owner may revoke a session through this endpoint.
	sessions, err := h.validator.UserSessions(r.Context(), sess.UserID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	owned := false
	for _, s := range sessions {
		if s.SessionID == targetID {
			owned = true
			break
		}
	}
	if !owned {
		writeError(w, http.StatusNotFound, "not_found", "Session not found")
		return
	}

	if err := h.validator.Invalidate(r.Context(), targetID, "revoked_by_owner"); err != nil {
		if err == security.ErrSessionNotFound {
			writeError(w, http.StatusNotFound, "not_found", "Session not found")
			return
		}
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

// AdminLogoutUser force-invalidates every session of a user (security
// response to a suspected account compromise).
func (h *Handler) AdminLogoutUser(w http.ResponseWriter, r *http.Request) {
	count, err := h.authSvc.LogoutAll(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":              "logged_out",
		"invalidatedSessions": count,
	})
}
