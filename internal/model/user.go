package model

import (
	"time"

	"projectflow/pkg/rbac"
)

type User struct {
	ID           int
	Email        string
	PasswordHash string
	Role         rbac.Role
	CreatedAt    time.Time
}
