package rbac

// Role 表示调用方的角色，由调用边界解析后显式传入
type Role string

const (
	RoleFreelancer Role = "freelancer"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

// 权限常量
const (
	// 项目管理权限
	PermissionManageProject = "project:manage"

	// 日报权限
	PermissionSubmitUpdate = "update:submit"
	PermissionReviewUpdate = "update:review"

	// 里程碑权限
	PermissionAdvanceProgress  = "milestone:advance"
	PermissionRequestRelease   = "milestone:release"
	PermissionApproveMilestone = "milestone:approve"
)

// 角色权限映射
var rolePermissions = map[Role][]string{
	RoleFreelancer: {
		PermissionSubmitUpdate,
		PermissionAdvanceProgress,
		PermissionRequestRelease,
	},
	RoleAdmin: {
		PermissionManageProject,
		PermissionReviewUpdate,
		PermissionApproveMilestone,
	},
	RoleSuperAdmin: {
		PermissionManageProject,
		PermissionReviewUpdate,
		PermissionApproveMilestone,
	},
}

// ParseRole validates a role string coming from a token or request.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleFreelancer, RoleAdmin, RoleSuperAdmin:
		return Role(s), true
	default:
		return "", false
	}
}

// HasPermission 检查角色是否有指定权限
func HasPermission(role Role, permission string) bool {
	permissions, ok := rolePermissions[role]
	if !ok {
		return false
	}

	for _, p := range permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// CheckPermission 检查角色是否有指定权限（返回错误而不是布尔值，便于处理）
func CheckPermission(role Role, permission string) error {
	if !HasPermission(role, permission) {
		return &PermissionDeniedError{
			Role:       role,
			Permission: permission,
		}
	}
	return nil
}

// PermissionDeniedError 表示权限不足的错误
type PermissionDeniedError struct {
	Role       Role
	Permission string
}

func (e *PermissionDeniedError) Error() string {
	return "insufficient permissions"
}
