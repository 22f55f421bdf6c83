package rbac

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role errors returned by Manager operations.
var (
	ErrRoleNotFound       = errors.New("role not found")
	ErrDuplicateRoleName  = errors.New("role name already in use")
	ErrUnknownPermission  = errors.New("unknown permission")
	ErrSystemRole         = errors.New("system roles cannot be modified or deleted")
	ErrCriticalPermission = errors.New("system-critical permissions cannot be removed from the Administrator role")
)

// Well-known system role IDs, seeded at startup.
const (
	RoleUser          = "user"
	RoleAdministrator = "administrator"
	RoleUserManager   = "user-manager"
	RoleViewer        = "viewer"
)

// Role maps a named role to a set of permissions. System roles are seeded at
// startup and cannot be deleted; custom roles are managed at runtime.
type Role struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Permissions []Permission `json:"permissions"`
	IsSystem    bool         `json:"isSystemRole"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

func (r *Role) clone() *Role {
	cp := *r
	cp.Permissions = make([]Permission, len(r.Permissions))
	copy(cp.Permissions, r.Permissions)
	return &cp
}

// Manager holds the role table. Safe for concurrent use.
type Manager struct {
	mu    sync.RWMutex
	roles map[string]*Role
	// order preserves a stable listing: system roles first, then customs
	// in creation order.
	order []string
}

// NewManager creates a Manager with the four system roles seeded.
func NewManager() *Manager {
	m := &Manager{roles: make(map[string]*Role)}

	now := time.Now()
	seed := []*Role{
		{
			ID:          RoleUser,
			Name:        "User",
			Description: "Standard employee account",
			Permissions: []Permission{
				PermViewDashboard, PermGiveRecognition, PermRedeemRewards,
			},
		},
		{
			ID:          RoleAdministrator,
			Name:        "Administrator",
			Description: "Full system access",
			Permissions: All(),
		},
		{
			ID:          RoleUserManager,
			Name:        "User Manager",
			Description: "Manages user accounts and role assignment",
			Permissions: []Permission{
				PermViewUsers, PermCreateUser, PermEditUser, PermRemoveUser,
				PermViewRoles, PermAssignRoles, PermViewDashboard,
			},
		},
		{
			ID:          RoleViewer,
			Name:        "Viewer",
			Description: "Read-only access",
			Permissions: []Permission{
				PermViewUsers, PermViewRoles, PermViewDashboard, PermViewReports,
			},
		},
	}

	for _, r := range seed {
		r.IsSystem = true
		r.CreatedAt = now
		r.UpdatedAt = now
		m.roles[r.ID] = r
		m.order = append(m.order, r.ID)
	}

	return m
}

// Roles returns all roles in a stable order.
func (m *Manager) Roles() []*Role {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Role, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.roles[id].clone())
	}
	return out
}

// Role returns the role with the given ID.
func (m *Manager) Role(id string) (*Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.roles[id]
	if !ok {
		return nil, ErrRoleNotFound
	}
	return r.clone(), nil
}

// RolePermissions resolves a role ID to its effective permission set.
// Unknown roles resolve to an empty set, never an error: callers must treat
// empty as "no access".
func (m *Manager) RolePermissions(id string) []Permission {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.roles[id]
	if !ok {
		return nil
	}
	out := make([]Permission, len(r.Permissions))
	copy(out, r.Permissions)
	return out
}

// CreateRole adds a custom role. Names are unique case-insensitively and
// permissions are validated against the catalog.
func (m *Manager) CreateRole(name, description string, perms []Permission) (*Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("role name cannot be empty")
	}
	if err := validatePermissions(perms); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.nameTaken(name, "") {
		return nil, ErrDuplicateRoleName
	}

	now := time.Now()
	r := &Role{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
		Permissions: dedupe(perms),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.roles[r.ID] = r
	m.order = append(m.order, r.ID)

	return r.clone(), nil
}

// UpdateRole modifies a role. Nil fields are left unchanged. System roles
// accept permission updates only (name and description are immutable), and
// the Administrator role refuses any update that would strip a
// system-critical permission: such an attempt is a caller error, rejected
// outright rather than silently corrected.
func (m *Manager) UpdateRole(id string, name, description *string, perms []Permission) (*Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.roles[id]
	if !ok {
		return nil, ErrRoleNotFound
	}

	if r.IsSystem && (name != nil || description != nil) {
		return nil, ErrSystemRole
	}

	if perms != nil {
		if err := validatePermissions(perms); err != nil {
			return nil, err
		}
		if r.ID == RoleAdministrator {
			for _, crit := range SystemCriticalPermissions() {
				if !HasPermission(perms, crit) {
					return nil, ErrCriticalPermission
				}
			}
		}
	}

	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return nil, errors.New("role name cannot be empty")
		}
		if m.nameTaken(trimmed, id) {
			return nil, ErrDuplicateRoleName
		}
		r.Name = trimmed
	}
	if description != nil {
		r.Description = *description
	}
	if perms != nil {
		r.Permissions = dedupe(perms)
	}
	r.UpdatedAt = time.Now()

	return r.clone(), nil
}

// DeleteRole removes a custom role. System roles are refused.
func (m *Manager) DeleteRole(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.roles[id]
	if !ok {
		return ErrRoleNotFound
	}
	if r.IsSystem {
		return ErrSystemRole
	}

	delete(m.roles, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// CanAssignRole reports whether a principal holding assignerPerms may assign
// the target role. Any assignment needs ASSIGN_ROLES; assigning the
// Administrator role additionally needs MANAGE_ROLES, so a mere role-assigner
// cannot escalate to admin.
func (m *Manager) CanAssignRole(assignerPerms []Permission, targetRoleID string) bool {
	if !HasPermission(assignerPerms, PermAssignRoles) {
		return false
	}
	if targetRoleID == RoleAdministrator {
		return HasPermission(assignerPerms, PermManageRoles)
	}
	return true
}

// nameTaken reports whether name collides with a different role. Caller must
// hold the lock.
func (m *Manager) nameTaken(name, excludeID string) bool {
	for id, r := range m.roles {
		if id != excludeID && strings.EqualFold(r.Name, name) {
			return true
		}
	}
	return false
}

func validatePermissions(perms []Permission) error {
	for _, p := range perms {
		if !p.Valid() {
			return ErrUnknownPermission
		}
	}
	return nil
}

func dedupe(perms []Permission) []Permission {
	seen := make(map[Permission]struct{}, len(perms))
	out := make([]Permission, 0, len(perms))
	for _, p := range perms {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
