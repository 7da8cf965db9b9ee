package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nkiryanov/refarch/internal/apperrors"
	"github.com/nkiryanov/refarch/internal/logger"
	"github.com/nkiryanov/refarch/internal/models"
	"github.com/nkiryanov/refarch/internal/repository"
	"github.com/nkiryanov/refarch/internal/service/auth"
)

// Default administrator created on empty database
const (
	AdminUsername = "admin"
	AdminEmail    = "admin@example.com"
	AdminPassword = "admin"
)

type UserService struct {
	hasher   auth.PasswordHasher
	userRepo repository.UserRepo
	logger   logger.Logger
}

func NewService(hasher auth.PasswordHasher, userRepo repository.UserRepo, l logger.Logger) *UserService {
	if hasher == nil {
		hasher = auth.BcryptHasher{}
	}

	return &UserService{
		hasher:   hasher,
		userRepo: userRepo,
		logger:   l,
	}
}

// CreateUser hashes password and stores user with roles
func (s *UserService) CreateUser(ctx context.Context, u models.User, password string) (models.User, error) {
	if password == "" {
		return models.User{}, errors.New("password must not be empty")
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return models.User{}, fmt.Errorf("can't use this as password, Err: %w", err)
	}
	u.HashedPassword = hash

	user, err := s.userRepo.CreateUser(ctx, u)
	if err != nil {
		return user, fmt.Errorf("can't create user. Err: %w", err)
	}

	return user, nil
}

func (s *UserService) GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error) {
	return s.userRepo.GetUserByID(ctx, userID)
}

// EnsureAdmin creates default administrator when there are no users at all
// Reports whether user was created
func (s *UserService) EnsureAdmin(ctx context.Context) (bool, error) {
	count, err := s.userRepo.CountUsers(ctx)
	if err != nil {
		return false, fmt.Errorf("can't count users. Err: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	_, err = s.CreateUser(ctx, models.User{
		Username:    AdminUsername,
		Email:       AdminEmail,
		FirstName:   "Admin",
		LastName:    "User",
		Title:       "System Administrator",
		Affiliation: "RefArch CMS",
		Roles:       []models.Role{models.RoleAdmin, models.RoleUser},
	}, AdminPassword)

	// Other instance could create admin concurrently
	if errors.Is(err, apperrors.ErrUserAlreadyExists) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	s.logger.Warn("Default admin user created, change its password", "email", AdminEmail)
	return true, nil
}
