package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/peerpoints/peerpoints/internal/auth"
	"github.com/peerpoints/peerpoints/internal/logger"
	"github.com/peerpoints/peerpoints/internal/model"
	"github.com/peerpoints/peerpoints/internal/rbac"
	"github.com/peerpoints/peerpoints/internal/security"
)

// User management errors.
var (
	// ErrValidation wraps request-shape problems the caller can fix.
	ErrValidation = errors.New("validation failed")

	ErrSelfDeletion         = errors.New("users cannot delete their own account")
	ErrLastAdministrator    = errors.New("cannot remove the last active administrator")
	ErrRoleAssignmentDenied = errors.New("insufficient permissions to assign this role")
	ErrInvalidRole          = errors.New("unknown role")
)

// defaultMonthlyCoins is the give-away allowance a new account starts with.
const defaultMonthlyCoins = 100

// UserService implements user CRUD with the domain's protection rules:
// self-deletion is refused, the last active administrator cannot be removed,
// and role assignment goes through the two-tier RBAC check.
type UserService struct {
	users     UserStore
	roles     *rbac.Manager
	validator *security.Validator
	hasher    *auth.Hasher
	log       *logger.Logger
}

// NewUserService creates a new UserService
func NewUserService(users UserStore, roles *rbac.Manager, validator *security.Validator, hasher *auth.Hasher, log *logger.Logger) *UserService {
	return &UserService{
		users:     users,
		roles:     roles,
		validator: validator,
		hasher:    hasher,
		log:       log.WithComponent("users"),
	}
}

// List returns all users.
func (s *UserService) List(ctx context.Context) ([]*model.User, error) {
	return s.users.List(ctx)
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*model.User, error) {
	return s.users.GetByID(ctx, id)
}

// CreateUserParams carries the fields for account creation.
type CreateUserParams struct {
	Email    string
	Name     string
	Password string
	RoleID   string
}

// Create adds a new user account.
func (s *UserService) Create(ctx context.Context, actor *security.Session, params CreateUserParams) (*model.User, error) {
	email := strings.TrimSpace(strings.ToLower(params.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: invalid email address", ErrValidation)
	}
	if strings.TrimSpace(params.Name) == "" {
		return nil, fmt.Errorf("%w: name cannot be empty", ErrValidation)
	}
	if err := s.hasher.ValidatePassword(params.Password); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	roleID := params.RoleID
	if roleID == "" {
		roleID = rbac.RoleUser
	}
	if _, err := s.roles.Role(roleID); err != nil {
		return nil, ErrInvalidRole
	}
	if !s.roles.CanAssignRole(actor.Permissions, roleID) {
		return nil, ErrRoleAssignmentDenied
	}

	hash, err := s.hasher.Hash(params.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         strings.TrimSpace(params.Name),
		PasswordHash: hash,
		RoleID:       roleID,
		Status:       model.UserStatusActive,
		Coins:        defaultMonthlyCoins,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.log.Info().Str("user_id", user.ID).Str("actor", actor.UserID).Msg("user created")
	return user, nil
}

// UpdateUserParams carries optional field updates; nil means unchanged.
type UpdateUserParams struct {
	Name   *string
	Email  *string
	RoleID *string
	Status *model.UserStatus
}

// Update modifies a user. Changing the role enforces the two-tier
// assignment rule against the acting session's permissions.
func (s *UserService) Update(ctx context.Context, actor *security.Session, id string, params UpdateUserParams) (*model.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if params.RoleID != nil && *params.RoleID != user.RoleID {
		if _, err := s.roles.Role(*params.RoleID); err != nil {
			return nil, ErrInvalidRole
		}
		if !s.roles.CanAssignRole(actor.Permissions, *params.RoleID) {
			return nil, ErrRoleAssignmentDenied
		}
		// Demoting the last active administrator strands the system the
		// same way deleting them would.
		if user.RoleID == rbac.RoleAdministrator && *params.RoleID != rbac.RoleAdministrator {
			if err := s.ensureNotLastAdmin(ctx); err != nil {
				return nil, err
			}
		}
		user.RoleID = *params.RoleID
	}

	if params.Name != nil {
		if strings.TrimSpace(*params.Name) == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", ErrValidation)
		}
		user.Name = strings.TrimSpace(*params.Name)
	}
	if params.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*params.Email))
		if email == "" || !strings.Contains(email, "@") {
			return nil, fmt.Errorf("%w: invalid email address", ErrValidation)
		}
		user.Email = email
	}
	if params.Status != nil {
		if user.RoleID == rbac.RoleAdministrator && *params.Status != model.UserStatusActive {
			if err := s.ensureNotLastAdmin(ctx); err != nil {
				return nil, err
			}
		}
		user.Status = *params.Status
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	// Role or status changes must not survive in already-issued sessions.
	if params.RoleID != nil || params.Status != nil {
		if _, err := s.validator.InvalidateUserSessions(ctx, user.ID, "account_updated"); err != nil {
			s.log.Error().Err(err).Str("user_id", user.ID).Msg("failed to invalidate sessions after update")
		}
	}

	return user, nil
}

// Delete soft-deletes a user. Self-deletion is refused, as is deleting the
// last remaining active administrator; both are domain errors even when the
// caller holds REMOVE_USER.
func (s *UserService) Delete(ctx context.Context, actor *security.Session, id string) error {
	if actor.UserID == id {
		return ErrSelfDeletion
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if user.RoleID == rbac.RoleAdministrator {
		if err := s.ensureNotLastAdmin(ctx); err != nil {
			return err
		}
	}

	if err := s.users.SoftDelete(ctx, id); err != nil {
		return err
	}

	if _, err := s.validator.InvalidateUserSessions(ctx, id, "account_deleted"); err != nil {
		s.log.Error().Err(err).Str("user_id", id).Msg("failed to invalidate sessions after delete")
	}

	s.log.Info().Str("user_id", id).Str("actor", actor.UserID).Msg("user deleted")
	return nil
}

func (s *UserService) ensureNotLastAdmin(ctx context.Context) error {
	count, err := s.users.CountActiveByRole(ctx, rbac.RoleAdministrator)
	if err != nil {
		return err
	}
	if count <= 1 {
		return ErrLastAdministrator
	}
	return nil
}
