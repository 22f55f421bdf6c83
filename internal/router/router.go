package router

import (
	"net/http"
	"time"

	"github.com/peerpoints/peerpoints/internal/handler"
	"github.com/peerpoints/peerpoints/internal/middleware"
	"github.com/peerpoints/peerpoints/internal/rbac"
)

// New creates and configures the HTTP router. Each route declares its
// protection requirements up front; the middleware runs them in a fixed
// order so the cheapest checks reject first.
func New(h *handler.Handler, mw *middleware.Middleware) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoints (no auth required)
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ready", h.Ready)

	mux.HandleFunc("GET /api/v1/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message":"PeerPoints API v1","version":"0.1.0"}`))
	})

	route := func(pattern string, cfg middleware.Route, fn http.HandlerFunc) {
		mux.Handle(pattern, mw.Protect(cfg, fn))
	}

	// Login is public; only failed attempts count against the limit so a
	// shared office IP is not starved by normal traffic.
	route("POST /api/v1/auth/login", middleware.Route{
		Public:    true,
		RateLimit: &middleware.RateLimit{Limit: 3, Window: 15 * time.Minute, SkipSuccessful: true},
	}, h.Login)

	// Session lifecycle. Logout is deliberately CSRF-exempt: forcing a
	// victim out of their session is not a useful attack, and a stale CSRF
	// token must never trap a user in a session they want to end.
	route("POST /api/v1/auth/logout", middleware.Route{}, h.Logout)
	route("POST /api/v1/auth/logout/all", middleware.Route{}, h.LogoutAll)
	route("GET /api/v1/auth/me", middleware.Route{}, h.Me)
	route("GET /api/v1/auth/csrf", middleware.Route{}, h.CSRFToken)

	// Own sessions
	route("GET /api/v1/sessions", middleware.Route{}, h.ListSessions)
	route("POST /api/v1/sessions/{id}/revoke", middleware.Route{CSRF: true}, h.RevokeSession)

	// User management
	route("GET /api/v1/users", middleware.Route{
		AnyOf: []rbac.Permission{rbac.PermViewUsers},
	}, h.ListUsers)
	route("GET /api/v1/users/{id}", middleware.Route{
		AnyOf: []rbac.Permission{rbac.PermViewUsers},
	}, h.GetUser)
	route("POST /api/v1/users", middleware.Route{
		CSRF:      true,
		AllOf:     []rbac.Permission{rbac.PermCreateUser},
		RateLimit: &middleware.RateLimit{Limit: 30, Window: time.Minute},
	}, h.CreateUser)
	route("PATCH /api/v1/users/{id}", middleware.Route{
		CSRF:  true,
		AllOf: []rbac.Permission{rbac.PermEditUser},
	}, h.UpdateUser)
	route("DELETE /api/v1/users/{id}", middleware.Route{
		CSRF:  true,
		AllOf: []rbac.Permission{rbac.PermRemoveUser},
	}, h.DeleteUser)

	// Roles and the permission catalog
	route("GET /api/v1/roles", middleware.Route{
		AnyOf: []rbac.Permission{rbac.PermViewRoles, rbac.PermManageRoles},
	}, h.ListRoles)
	route("GET /api/v1/roles/{id}", middleware.Route{
		AnyOf: []rbac.Permission{rbac.PermViewRoles, rbac.PermManageRoles},
	}, h.GetRole)
	route("POST /api/v1/roles", middleware.Route{
		CSRF:  true,
		AllOf: []rbac.Permission{rbac.PermManageRoles},
	}, h.CreateRole)
	route("PATCH /api/v1/roles/{id}", middleware.Route{
		CSRF:  true,
		AllOf: []rbac.Permission{rbac.PermManageRoles},
	}, h.UpdateRole)
	route("DELETE /api/v1/roles/{id}", middleware.Route{
		CSRF:  true,
		AllOf: []rbac.Permission{rbac.PermManageRoles},
	}, h.DeleteRole)
	route("GET /api/v1/permissions", middleware.Route{
		AnyOf: []rbac.Permission{rbac.PermViewRoles, rbac.PermManageRoles},
	}, h.ListPermissions)

	// Recognition and rewards
	route("POST /api/v1/recognitions", middleware.Route{
		CSRF:      true,
		AllOf:     []rbac.Permission{rbac.PermGiveRecognition},
		RateLimit: &middleware.RateLimit{Limit: 60, Window: time.Minute},
	}, h.GiveRecognition)
	route("GET /api/v1/recognitions", middleware.Route{
		AnyOf: []rbac.Permission{rbac.PermViewDashboard},
	}, h.RecentRecognitions)
	route("GET /api/v1/rewards", middleware.Route{
		AnyOf: []rbac.Permission{rbac.PermViewDashboard, rbac.PermRedeemRewards},
	}, h.ListRewards)
	route("POST /api/v1/rewards/{id}/redeem", middleware.Route{
		CSRF:  true,
		AllOf: []rbac.Permission{rbac.PermRedeemRewards},
	}, h.RedeemReward)

	// Admin security surface
	route("GET /api/v1/admin/security/events", middleware.Route{
		AllOf: []rbac.Permission{rbac.PermViewReports},
	}, h.SecurityEvents)
	route("GET /api/v1/admin/security/stats", middleware.Route{
		AllOf: []rbac.Permission{rbac.PermViewReports},
	}, h.SecurityStats)
	route("POST /api/v1/admin/users/{id}/logout-all", middleware.Route{
		CSRF:  true,
		AllOf: []rbac.Permission{rbac.PermManageSettings},
	}, h.AdminLogoutUser)

	// Outer chain: recovery wraps everything, request IDs before logging so
	// every access log line carries one.
	var root http.Handler = mux
	root = mw.SecurityHeaders(root)
	root = mw.Logger(root)
	root = mw.RequestID(root)
	root = mw.Recover(root)
	return root
}
