package mqhandler

import (
	"testing"

	"projectflow/pkg/rbac"
)

// reviewerRoles must track exactly the roles that hold review permissions,
// superadmin included.
func TestReviewerRolesMatchReviewPermissions(t *testing.T) {
	all := []rbac.Role{rbac.RoleFreelancer, rbac.RoleAdmin, rbac.RoleSuperAdmin}
	for _, role := range all {
		want := rbac.HasPermission(role, rbac.PermissionReviewUpdate) &&
			rbac.HasPermission(role, rbac.PermissionApproveMilestone)
		got := false
		for _, r := range reviewerRoles {
			if r == role {
				got = true
			}
		}
		if got != want {
			t.Errorf("role %s: in reviewerRoles = %v, holds review permissions = %v", role, got, want)
		}
	}
}
