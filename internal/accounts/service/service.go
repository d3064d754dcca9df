package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	accountsdb "ms-passes/internal/accounts/db"
	"ms-passes/internal/logger"
	"ms-passes/internal/models"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidUser        = errors.New("invalid user")
)

type UserDBLayer interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	DeleteUser(ctx context.Context, id int64) error
}

type UserService struct {
	DB     UserDBLayer
	Logger *logger.Logger
	// Cost is the bcrypt cost; zero means bcrypt.DefaultCost.
	Cost int
}

func NewUserService(db UserDBLayer, log *logger.Logger) *UserService {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &UserService{DB: db, Logger: log}
}

func (s *UserService) hash(password string) (string, error) {
	cost := s.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// CreateUser stores a new user with a bcrypt hash of the password.
func (s *UserService) CreateUser(ctx context.Context, username, password string, role models.Role) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrInvalidUser)
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidUser, role)
	}

	hashed, err := s.hash(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{Username: username, PasswordHash: hashed, Role: role}
	if err := s.DB.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.Logger.Info("ACCOUNTS", fmt.Sprintf("Created %s user %s", role, username))
	return user, nil
}

// Authenticate returns the user when the password matches. Unknown users and
// wrong passwords give the same ErrInvalidCredentials.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.DB.GetUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, accountsdb.ErrNotFound) {
		s.Logger.LogSecurity("LOGIN_FAILED", fmt.Sprintf("unknown user %s", username))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.Logger.LogSecurity("LOGIN_FAILED", fmt.Sprintf("wrong password for %s", username))
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (s *UserService) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return s.DB.GetUserByID(ctx, id)
}

// UserExists reports whether the account behind a session is still present.
func (s *UserService) UserExists(ctx context.Context, id int64) (bool, error) {
	_, err := s.DB.GetUserByID(ctx, id)
	if errors.Is(err, accountsdb.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up user %d: %w", id, err)
	}
	return true, nil
}

func (s *UserService) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.DB.ListUsers(ctx)
}

func (s *UserService) DeleteUser(ctx context.Context, id int64) error {
	if err := s.DB.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.Logger.Info("ACCOUNTS", fmt.Sprintf("Deleted user %d", id))
	return nil
}

// EnsureDefaultAdmin creates the bootstrap admin account unless a user with that name already exists.
func (s *UserService) EnsureDefaultAdmin(ctx context.Context, username, password string) error {
	_, err := s.DB.GetUserByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, accountsdb.ErrNotFound) {
		return fmt.Errorf("failed to look up default admin: %w", err)
	}

	_, err = s.CreateUser(ctx, username, password, models.RoleAdmin)
	if errors.Is(err, accountsdb.ErrDuplicateUsername) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create default admin: %w", err)
	}
	s.Logger.LogSecurity("DEFAULT_ADMIN", fmt.Sprintf("created default admin %s, change its password", username))
	return nil
}
