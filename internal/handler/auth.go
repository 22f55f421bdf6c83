package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/peerpoints/peerpoints/internal/middleware"
	"github.com/peerpoints/peerpoints/internal/security"
)

// --- Cookie helpers ---

func (h *Handler) sameSite() http.SameSite {
	switch strings.ToLower(h.cfg.Cookie.SameSite) {
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteStrictMode
	}
}

// setSessionCookie writes the HTTP-only session cookie with a lifetime
// matching the session expiry.
func (h *Handler) setSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.Cookie.Name,
		Value:    token,
		Path:     "/",
		Domain:   h.cfg.Cookie.Domain,
		Expires:  expiresAt,
		MaxAge:   int(time.Until(expiresAt).Seconds()),
		HttpOnly: true,
		Secure:   h.cfg.Cookie.Secure,
		SameSite: h.sameSite(),
	})
}

// clearSessionCookie expires the session cookie immediately.
func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.Cookie.Name,
		Value:    "",
		Path:     "/",
		Domain:   h.cfg.Cookie.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.Cookie.Secure,
		SameSite: h.sameSite(),
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	UserID      string    `json:"userId"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	Role        string    `json:"role"`
	RoleID      string    `json:"roleId"`
	Permissions []string  `json:"permissions"`
	CSRFToken   string    `json:"csrfToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

func toSessionResponse(sess *security.Session) sessionResponse {
	perms := make([]string, len(sess.Permissions))
	for i, p := range sess.Permissions {
		perms[i] = string(p)
	}
	return sessionResponse{
		UserID:      sess.UserID,
		Email:       sess.Email,
		Name:        sess.Name,
		Role:        sess.Role,
		RoleID:      sess.RoleID,
		Permissions: perms,
		CSRFToken:   sess.CSRFToken,
		ExpiresAt:   sess.ExpiresAt,
	}
}

// Login authenticates with email and password and sets the session cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "Email and password are required")
		return
	}

	sess, token, err := h.authSvc.Login(r.Context(), req.Email, req.Password, middleware.RequestMeta(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.setSessionCookie(w, token, sess.ExpiresAt)
	w.Header().Set(h.cfg.Security.CSRF.Header, sess.CSRFToken)
	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

// Logout invalidates the current session and clears the cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())

	if err := h.authSvc.Logout(r.Context(), sess.SessionID); err != nil {
		h.log.Debug().Err(err).Msg("logout: session already gone")
	}

	h.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// LogoutAll invalidates every session of the current user.
func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())

	count, err := h.authSvc.LogoutAll(r.Context(), sess.UserID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":              "logged_out",
		"invalidatedSessions": count,
	})
}

// Me returns the authenticated caller's session context.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())
	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

// CSRFToken returns the current anti-forgery token for the session.
func (h *Handler) CSRFToken(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"csrfToken": sess.CSRFToken})
}
