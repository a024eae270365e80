package service

import (
	"context"
	"errors"
	"time"

	"projectflow/internal/model"
	"projectflow/internal/repository"
	"projectflow/internal/util"
	"projectflow/internal/workflow"
	"projectflow/pkg/rbac"
)

var ErrEmailTaken = errors.New("email already exists")
var ErrInvalidCredentials = errors.New("invalid email or password")

type AuthService struct {
	userRepo  *repository.UserRepository
	jwtSecret string
}

func NewAuthService(userRepo *repository.UserRepository, jwtSecret string) *AuthService {
	return &AuthService{
		userRepo:  userRepo,
		jwtSecret: jwtSecret,
	}
}

// Register creates a new user. Unknown role strings are rejected;
// self-registration never grants more than freelancer.
func (s *AuthService) Register(ctx context.Context, email, password, roleStr string) (*model.User, error) {
	role, ok := rbac.ParseRole(roleStr)
	if !ok || role == rbac.RoleSuperAdmin {
		role = rbac.RoleFreelancer
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, workflow.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := util.HashPassword(password)
	if err != nil {
		return nil, err
	}

	u := &model.User{
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    time.Now(),
	}

	if err := s.userRepo.CreateUser(ctx, u); err != nil {
		return nil, err
	}

	return u, nil
}

// Login checks user credentials and returns JWT.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	u, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return "", ErrInvalidCredentials
	}

	if !util.CheckPassword(password, u.PasswordHash) {
		return "", ErrInvalidCredentials
	}

	token, err := util.GenerateJWT(u.ID, u.Role, s.jwtSecret)
	if err != nil {
		return "", err
	}

	return token, nil
}
