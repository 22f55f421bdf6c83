package rbac

// Permission is an atomic, enumerable capability. The set of permissions is
// closed: values are defined here once and never created at runtime. Callers
// must go through Valid before trusting a permission that crossed an API
// boundary as a string.
type Permission string

const (
	PermViewUsers  Permission = "VIEW_USERS"
	PermCreateUser Permission = "CREATE_USER"
	PermEditUser   Permission = "EDIT_USER"
	PermRemoveUser Permission = "REMOVE_USER"

	PermViewRoles   Permission = "VIEW_ROLES"
	PermManageRoles Permission = "MANAGE_ROLES"
	PermAssignRoles Permission = "ASSIGN_ROLES"

	PermViewDashboard   Permission = "VIEW_DASHBOARD"
	PermGiveRecognition Permission = "GIVE_RECOGNITION"
	PermRedeemRewards   Permission = "REDEEM_REWARDS"
	PermManageRewards   Permission = "MANAGE_REWARDS"

	PermViewReports    Permission = "VIEW_REPORTS"
	PermManageSettings Permission = "MANAGE_SETTINGS"
)

// Metadata describes a permission for display and catalog purposes.
// SystemCritical permissions can never be removed from the Administrator role.
type Metadata struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	Category       string `json:"category"`
	SystemCritical bool   `json:"isSystemCritical"`
}

// Permission categories
const (
	CategoryUsers       = "users"
	CategoryRoles       = "roles"
	CategoryRecognition = "recognition"
	CategoryReporting   = "reporting"
	CategorySystem      = "system"
)

var catalog = map[Permission]Metadata{
	PermViewUsers:  {Name: "View Users", Description: "List and view user profiles", Category: CategoryUsers},
	PermCreateUser: {Name: "Create User", Description: "Create new user accounts", Category: CategoryUsers},
	PermEditUser:   {Name: "Edit User", Description: "Update user accounts", Category: CategoryUsers},
	PermRemoveUser: {Name: "Remove User", Description: "Deactivate user accounts", Category: CategoryUsers},

	PermViewRoles:   {Name: "View Roles", Description: "View roles and the permission catalog", Category: CategoryRoles},
	PermManageRoles: {Name: "Manage Roles", Description: "Create, update and delete custom roles", Category: CategoryRoles, SystemCritical: true},
	PermAssignRoles: {Name: "Assign Roles", Description: "Assign roles to users", Category: CategoryRoles, SystemCritical: true},

	PermViewDashboard:   {Name: "View Dashboard", Description: "View the recognition dashboard", Category: CategoryRecognition},
	PermGiveRecognition: {Name: "Give Recognition", Description: "Give coins to peers", Category: CategoryRecognition},
	PermRedeemRewards:   {Name: "Redeem Rewards", Description: "Redeem points for catalog rewards", Category: CategoryRecognition},
	PermManageRewards:   {Name: "Manage Rewards", Description: "Manage the reward catalog", Category: CategoryRecognition},

	PermViewReports:    {Name: "View Reports", Description: "View security and usage reports", Category: CategoryReporting},
	PermManageSettings: {Name: "Manage Settings", Description: "Change system-wide settings", Category: CategorySystem, SystemCritical: true},
}

// all is the canonical ordering used by All and the catalog endpoint.
var all = []Permission{
	PermViewUsers, PermCreateUser, PermEditUser, PermRemoveUser,
	PermViewRoles, PermManageRoles, PermAssignRoles,
	PermViewDashboard, PermGiveRecognition, PermRedeemRewards, PermManageRewards,
	PermViewReports, PermManageSettings,
}

// All returns every defined permission in a stable order.
func All() []Permission {
	out := make([]Permission, len(all))
	copy(out, all)
	return out
}

// Valid reports whether p is a defined permission.
func (p Permission) Valid() bool {
	_, ok := catalog[p]
	return ok
}

// Meta returns the metadata for p. Zero value for unknown permissions.
func (p Permission) Meta() Metadata {
	return catalog[p]
}

// SystemCritical reports whether p is flagged system-critical.
func (p Permission) SystemCritical() bool {
	return catalog[p].SystemCritical
}

// ByCategory groups all permissions by their catalog category.
func ByCategory() map[string][]Permission {
	out := make(map[string][]Permission)
	for _, p := range all {
		cat := catalog[p].Category
		out[cat] = append(out[cat], p)
	}
	return out
}

// SystemCriticalPermissions returns every permission flagged system-critical.
func SystemCriticalPermissions() []Permission {
	var out []Permission
	for _, p := range all {
		if catalog[p].SystemCritical {
			out = append(out, p)
		}
	}
	return out
}

// HasPermission reports whether required is a member of held.
func HasPermission(held []Permission, required Permission) bool {
	for _, p := range held {
		if p == required {
			return true
		}
	}
	return false
}

// HasAnyPermission reports whether at least one of required is held.
// An empty required list grants access.
func HasAnyPermission(held []Permission, required []Permission) bool {
	if len(required) == 0 {
		return true
	}
	for _, r := range required {
		if HasPermission(held, r) {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether every required permission is held.
func HasAllPermissions(held []Permission, required []Permission) bool {
	for _, r := range required {
		if !HasPermission(held, r) {
			return false
		}
	}
	return true
}
