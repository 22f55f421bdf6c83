package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/peerpoints/peerpoints/internal/config"
	"github.com/peerpoints/peerpoints/internal/logger"
	"github.com/peerpoints/peerpoints/internal/rbac"
	"github.com/peerpoints/peerpoints/internal/security"
	"github.com/peerpoints/peerpoints/internal/token"
)

func newRoleFixture(t *testing.T) (*Handler, *rbac.Manager) {
	t.Helper()

	cfg := &config.Config{}
	cfg.Cookie.Name = "session"
	cfg.Security.Session = config.SessionConfig{
		Secret: "test-secret",
		TTL:    time.Hour,
		Issuer: "peerpoints",
	}
	cfg.Security.CSRF = config.CSRFConfig{Header: "X-CSRF-Token"}

	codec, err := token.NewCodec(cfg.Security.Session.Secret, cfg.Security.Session.Issuer)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	validator := security.NewValidator(cfg.Security.Session, codec, security.NewMemorySessionStore(), logger.Nop())
	roles := rbac.NewManager()

	h := New(nil, nil, logger.Nop(), cfg, nil, nil, nil, roles, validator)
	return h, roles
}

func TestListRoles(t *testing.T) {
	h, _ := newRoleFixture(t)

	rec := httptest.NewRecorder()
	h.ListRoles(rec, httptest.NewRequest(http.MethodGet, "/api/v1/roles", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Roles []*rbac.Role `json:"roles"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Roles) != 4 {
		t.Errorf("got %d roles, want the 4 system roles", len(body.Roles))
	}
}

func TestCreateRoleEndpoint(t *testing.T) {
	h, roles := newRoleFixture(t)

	payload := `{"name":"Auditor","description":"Audit access","permissions":["VIEW_USERS","VIEW_REPORTS"]}`
	rec := httptest.NewRecorder()
	h.CreateRole(rec, httptest.NewRequest(http.MethodPost, "/api/v1/roles", strings.NewReader(payload)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var created rbac.Role
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, err := roles.Role(created.ID); err != nil {
		t.Errorf("created role not resolvable: %v", err)
	}

	// Unknown permission: 400.
	payload = `{"name":"Bad","permissions":["NOT_A_PERMISSION"]}`
	rec = httptest.NewRecorder()
	h.CreateRole(rec, httptest.NewRequest(http.MethodPost, "/api/v1/roles", strings.NewReader(payload)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown permission status = %d, want 400", rec.Code)
	}

	// Duplicate name: 409.
	payload = `{"name":"auditor"}`
	rec = httptest.NewRecorder()
	h.CreateRole(rec, httptest.NewRequest(http.MethodPost, "/api/v1/roles", strings.NewReader(payload)))
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate name status = %d, want 409", rec.Code)
	}
}

func TestDeleteSystemRoleEndpoint(t *testing.T) {
	h, _ := newRoleFixture(t)

	r := httptest.NewRequest(http.MethodDelete, "/api/v1/roles/user", nil)
	r.SetPathValue("id", rbac.RoleUser)
	rec := httptest.NewRecorder()
	h.DeleteRole(rec, r)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("deleting a system role = %d, want 403", rec.Code)
	}
}

func TestListPermissionsGrouped(t *testing.T) {
	h, _ := newRoleFixture(t)

	rec := httptest.NewRecorder()
	h.ListPermissions(rec, httptest.NewRequest(http.MethodGet, "/api/v1/permissions", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Permissions map[string][]struct {
			ID             string `json:"id"`
			SystemCritical bool   `json:"isSystemCritical"`
		} `json:"permissions"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}

	total := 0
	criticals := 0
	for _, perms := range body.Permissions {
		total += len(perms)
		for _, p := range perms {
			if p.SystemCritical {
				criticals++
			}
		}
	}
	if total != len(rbac.All()) {
		t.Errorf("catalog lists %d permissions, want %d", total, len(rbac.All()))
	}
	if criticals != 3 {
		t.Errorf("catalog flags %d system-critical permissions, want 3", criticals)
	}
}
