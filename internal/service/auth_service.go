package service

import (
	"context"
	"errors"

	"github.com/peerpoints/peerpoints/internal/auth"
	"github.com/peerpoints/peerpoints/internal/logger"
	"github.com/peerpoints/peerpoints/internal/model"
	"github.com/peerpoints/peerpoints/internal/rbac"
	"github.com/peerpoints/peerpoints/internal/repository"
	"github.com/peerpoints/peerpoints/internal/security"
)

// ErrInvalidCredentials is the single failure surfaced for any login
// problem. Callers never learn whether the account exists, is disabled, or
// the password was wrong.
var ErrInvalidCredentials = errors.New("invalid email or password")

// UserStore is the persistence contract the services depend on. Implemented
// by repository.UserRepository; faked in tests.
type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context) ([]*model.User, error)
	Update(ctx context.Context, user *model.User) error
	SoftDelete(ctx context.Context, id string) error
	CountActiveByRole(ctx context.Context, roleID string) (int, error)
}

// AuthService handles login and logout flows.
type AuthService struct {
	users     UserStore
	roles     *rbac.Manager
	validator *security.Validator
	hasher    *auth.Hasher
	log       *logger.Logger
}

// NewAuthService creates a new AuthService
func NewAuthService(users UserStore, roles *rbac.Manager, validator *security.Validator, hasher *auth.Hasher, log *logger.Logger) *AuthService {
	return &AuthService{
		users:     users,
		roles:     roles,
		validator: validator,
		hasher:    hasher,
		log:       log.WithComponent("auth"),
	}
}

// Login authenticates a user and creates a session bound to the request
// origin. Returns the session and its signed token.
func (s *AuthService) Login(ctx context.Context, email, password string, meta security.RequestMeta) (*security.Session, string, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Burn a hash anyway so response timing does not reveal
			// whether the account exists.
			s.hasher.Verify(password, dummyHash)
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}

	if !user.IsActive() {
		return nil, "", ErrInvalidCredentials
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil || !ok {
		s.log.Debug().Str("user_id", user.ID).Msg("password verification failed")
		return nil, "", ErrInvalidCredentials
	}

	role, err := s.roles.Role(user.RoleID)
	if err != nil {
		// A user pointing at a vanished role authenticates with no
		// permissions rather than failing login.
		role = &rbac.Role{ID: user.RoleID}
	}

	sess, signed, err := s.validator.CreateSession(ctx, security.NewSessionParams{
		UserID:      user.ID,
		Email:       user.Email,
		Name:        user.Name,
		Role:        role.Name,
		RoleID:      role.ID,
		Permissions: role.Permissions,
		LoginMethod: "password",
	}, meta)
	if err != nil {
		return nil, "", err
	}

	return sess, signed, nil
}

// Logout invalidates a single session.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	return s.validator.Invalidate(ctx, sessionID, "logout")
}

// LogoutAll invalidates every session of a user ("log out everywhere").
func (s *AuthService) LogoutAll(ctx context.Context, userID string) (int, error) {
	return s.validator.InvalidateUserSessions(ctx, userID, "logout_all")
}

// dummyHash is a valid Argon2id hash of a random throwaway value, used to
// equalize timing when the account does not exist.
const dummyHash = "$argon2id$v=19$m=65536,t=3,p=4$AAAAAAAAAAAAAAAAAAAAAA$a1lksbZ8nN9rMstYdKLk1GWLqhOwvlkQY8rGMspAjGU"
