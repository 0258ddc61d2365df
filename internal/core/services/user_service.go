package services

import (
	"context"
	"errors"

	"proaluno-library/internal/adapters/persistence/models"
	"proaluno-library/internal/adapters/persistence/repositories"
	"proaluno-library/internal/core/domain"
	"proaluno-library/internal/pkg/pagination"
	"proaluno-library/internal/pkg/password"

	"gorm.io/gorm"
)

// User service errors
var (
	ErrEmailAlreadyExists  = errors.New("email already exists")
	ErrOldPasswordWrong    = errors.New("old password is incorrect")
	ErrCannotChangeOwnRole = errors.New("cannot change your own role")
)

// UserService handles user management business logic
type UserService struct {
	userRepo repositories.UserRepository
}

// NewUserService creates a new user service
func NewUserService(userRepo repositories.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

// ListUsersInput represents list users input
type ListUsersInput struct {
	Page  int
	Limit int
}

// ListUsersOutput represents list users output
type ListUsersOutput struct {
	Users      []*models.UserResponse `json:"users"`
	Total      int64                  `json:"total"`
	Page       int                    `json:"page"`
	Limit      int                    `json:"limit"`
	TotalPages int                    `json:"total_pages"`
}

// UpdateUserByAdminInput represents update user input (for admin)
type UpdateUserByAdminInput struct {
	Email    *string `json:"email"`
	Role     *string `json:"role"`
	IsActive *bool   `json:"is_active"`
}

// UpdateProfileInput represents update profile input (for self)
type UpdateProfileInput struct {
	Email *string `json:"email"`
}

// ChangePasswordInput represents change password input
type ChangePasswordInput struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// ListUsers lists all users with pagination
func (s *UserService) ListUsers(ctx context.Context, input *ListUsersInput) (*ListUsersOutput, error) {
	page, limit := pagination.Clamp(input.Page, input.Limit)

	users, total, err := s.userRepo.List(ctx, (page-1)*limit, limit)
	if err != nil {
		return nil, err
	}

	userResponses := make([]*models.UserResponse, len(users))
	for i, user := range users {
		userResponses[i] = user.ToResponse()
	}

	return &ListUsersOutput{
		Users:      userResponses,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: pagination.Pages(total, limit),
	}, nil
}

// GetUserByID gets a user by ID
func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.UserResponse, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return user.ToResponse(), nil
}

// UpdateUserByAdmin updates a user by admin
func (s *UserService) UpdateUserByAdmin(ctx context.Context, id uint, adminID uint, input *UpdateUserByAdminInput) (*models.UserResponse, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}

	// Prevent admin from changing own role
	if id == adminID && input.Role != nil {
		return nil, ErrCannotChangeOwnRole
	}

	if input.Email != nil && *input.Email != user.Email {
		exists, _ := s.userRepo.ExistsByEmail(ctx, *input.Email)
		if exists {
			return nil, ErrEmailAlreadyExists
		}
		user.Email = *input.Email
	}

	if input.Role != nil {
		if *input.Role != string(domain.RoleUser) && *input.Role != string(domain.RoleAdmin) {
			return nil, domain.ErrInvalidInput
		}
		user.Role = *input.Role
	}

	if input.IsActive != nil {
		user.IsActive = *input.IsActive
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	return user.ToResponse(), nil
}

// GetProfile gets own profile
func (s *UserService) GetProfile(ctx context.Context, userID uint) (*models.UserResponse, error) {
	return s.GetUserByID(ctx, userID)
}

// UpdateProfile updates own profile
func (s *UserService) UpdateProfile(ctx context.Context, userID uint, input *UpdateProfileInput) (*models.UserResponse, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}

	if input.Email != nil && *input.Email != user.Email {
		exists, _ := s.userRepo.ExistsByEmail(ctx, *input.Email)
		if exists {
			return nil, ErrEmailAlreadyExists
		}
		user.Email = *input.Email
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	return user.ToResponse(), nil
}

// ChangePassword changes user's password
func (s *UserService) ChangePassword(ctx context.Context, userID uint, input *ChangePasswordInput) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return domain.ErrUserNotFound
	}

	// Verify old password
	if !password.Verify(input.OldPassword, user.Password) {
		return ErrOldPasswordWrong
	}

	if len(input.NewPassword) < 8 {
		return errors.New("new password must be at least 8 characters")
	}

	hashedPassword, err := password.Hash(input.NewPassword)
	if err != nil {
		return err
	}

	user.Password = hashedPassword
	return s.userRepo.Update(ctx, user)
}
