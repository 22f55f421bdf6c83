package rbac

import "testing"

func TestPermissionValid(t *testing.T) {
	for _, p := range All() {
		if !p.Valid() {
			t.Errorf("%s should be valid", p)
		}
	}
	if Permission("DO_EVERYTHING").Valid() {
		t.Error("unknown permission should not be valid")
	}
	if Permission("").Valid() {
		t.Error("empty permission should not be valid")
	}
}

func TestSystemCriticalPermissions(t *testing.T) {
	want := map[Permission]bool{
		PermManageRoles:    true,
		PermAssignRoles:    true,
		PermManageSettings: true,
	}

	crits := SystemCriticalPermissions()
	if len(crits) != len(want) {
		t.Fatalf("got %d system-critical permissions, want %d", len(crits), len(want))
	}
	for _, p := range crits {
		if !want[p] {
			t.Errorf("%s flagged critical unexpectedly", p)
		}
	}
	if PermViewUsers.SystemCritical() {
		t.Error("VIEW_USERS must not be system-critical")
	}
}

func TestHasPermission(t *testing.T) {
	held := []Permission{PermViewUsers, PermEditUser}

	if !HasPermission(held, PermViewUsers) {
		t.Error("HasPermission should find a held permission")
	}
	if HasPermission(held, PermManageRoles) {
		t.Error("HasPermission should reject a missing permission")
	}
	if HasPermission(nil, PermViewUsers) {
		t.Error("empty held set grants nothing")
	}
}

func TestHasAnyPermission(t *testing.T) {
	held := []Permission{PermViewUsers}

	if !HasAnyPermission(held, []Permission{PermManageRoles, PermViewUsers}) {
		t.Error("one match should satisfy any-of")
	}
	if HasAnyPermission(held, []Permission{PermManageRoles, PermAssignRoles}) {
		t.Error("no match should fail any-of")
	}
	// Empty requirement means unrestricted.
	if !HasAnyPermission(nil, nil) {
		t.Error("empty any-of requirement must pass")
	}
}

func TestHasAllPermissions(t *testing.T) {
	held := []Permission{PermViewUsers, PermEditUser, PermRemoveUser}

	if !HasAllPermissions(held, []Permission{PermViewUsers, PermEditUser}) {
		t.Error("subset should satisfy all-of")
	}
	if HasAllPermissions(held, []Permission{PermViewUsers, PermManageRoles}) {
		t.Error("partial match should fail all-of")
	}
	if !HasAllPermissions(held, nil) {
		t.Error("empty all-of requirement must pass")
	}
}

func TestByCategoryCoversEverything(t *testing.T) {
	total := 0
	for _, perms := range ByCategory() {
		total += len(perms)
	}
	if total != len(All()) {
		t.Errorf("ByCategory covers %d permissions, want %d", total, len(All()))
	}
}
