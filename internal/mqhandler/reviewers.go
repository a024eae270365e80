package mqhandler

import (
	"context"

	"projectflow/internal/model"
	"projectflow/internal/repository"
	"projectflow/pkg/rbac"
)

// 审核人角色：admin 和 superadmin 都持有审核权限
var reviewerRoles = []rbac.Role{rbac.RoleAdmin, rbac.RoleSuperAdmin}

// listReviewers 返回所有审核人，通知 fan-out 用
func listReviewers(ctx context.Context, users *repository.UserRepository) ([]model.User, error) {
	var out []model.User
	for _, role := range reviewerRoles {
		batch, err := users.ListByRole(ctx, role)
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}
