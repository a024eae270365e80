package rbac

import (
	"errors"
	"testing"
)

func TestHasPermission(t *testing.T) {
	tests := []struct {
		role       Role
		permission string
		want       bool
	}{
		{RoleFreelancer, PermissionSubmitUpdate, true},
		{RoleFreelancer, PermissionAdvanceProgress, true},
		{RoleFreelancer, PermissionRequestRelease, true},
		{RoleFreelancer, PermissionReviewUpdate, false},
		{RoleFreelancer, PermissionApproveMilestone, false},
		{RoleFreelancer, PermissionManageProject, false},
		{RoleAdmin, PermissionReviewUpdate, true},
		{RoleAdmin, PermissionApproveMilestone, true},
		{RoleAdmin, PermissionManageProject, true},
		{RoleAdmin, PermissionSubmitUpdate, false},
		{RoleSuperAdmin, PermissionReviewUpdate, true},
		{RoleSuperAdmin, PermissionApproveMilestone, true},
		{Role("unknown"), PermissionSubmitUpdate, false},
	}

	for _, tt := range tests {
		if got := HasPermission(tt.role, tt.permission); got != tt.want {
			t.Errorf("HasPermission(%q, %q) = %v, want %v", tt.role, tt.permission, got, tt.want)
		}
	}
}

func TestCheckPermission(t *testing.T) {
	if err := CheckPermission(RoleAdmin, PermissionApproveMilestone); err != nil {
		t.Fatalf("expected admin to approve milestones, got %v", err)
	}

	err := CheckPermission(RoleFreelancer, PermissionApproveMilestone)
	var denied *PermissionDeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("expected PermissionDeniedError, got %v", err)
	}
	if denied.Role != RoleFreelancer || denied.Permission != PermissionApproveMilestone {
		t.Fatalf("unexpected error detail: %+v", denied)
	}
}

func TestParseRole(t *testing.T) {
	for _, valid := range []string{"freelancer", "admin", "superadmin"} {
		if _, ok := ParseRole(valid); !ok {
			t.Errorf("ParseRole(%q) should succeed", valid)
		}
	}
	for _, invalid := range []string{"", "Admin", "root", "user"} {
		if _, ok := ParseRole(invalid); ok {
			t.Errorf("ParseRole(%q) should fail", invalid)
		}
	}
}
