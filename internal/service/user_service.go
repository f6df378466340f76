package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"rocket-rental/internal/domain"
	"rocket-rental/internal/repository"
)

var (
	// ErrInvalidCredentials indicates that provided login credentials are incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserAlreadyExists is returned when creating a user with a taken username or email.
	ErrUserAlreadyExists = errors.New("user already exists")
	// ErrUnauthenticated is returned when the caller cannot be resolved to a stored user.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrUserNotFound is returned when a requested profile does not exist.
	ErrUserNotFound = errors.New("user not found")
)

// NewUser is the input for creating an account outside the profile workflow.
type NewUser struct {
	Username string
	Name     string
	Email    string
	Password string
	Contact  *domain.ContactInfo
	HostBio  *string
	// RenterBio attaches a Renter capability when set.
	RenterBio *string
}

// UserService describes account operations and doubles as the credential verifier.
type UserService interface {
	Create(ctx context.Context, input NewUser) (*domain.User, error)
	Authenticate(ctx context.Context, username, password string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	VerifyPassword(ctx context.Context, userID int64, plaintext string) (bool, error)
	SetImageKey(ctx context.Context, userID int64, key string) error
}

type userService struct {
	users repository.UserRepository
}

func NewUserService(users repository.UserRepository) UserService {
	return &userService{users: users}
}

func (s *userService) Create(ctx context.Context, input NewUser) (*domain.User, error) {
	username := strings.TrimSpace(input.Username)
	email := normalizeEmail(input.Email)

	if len(username) < 3 {
		return nil, errors.New("username must be at least 3 characters")
	}
	if email == "" {
		return nil, errors.New("email is required")
	}

	user := &domain.User{
		Username: username,
		Name:     strings.TrimSpace(input.Name),
		Email:    email,
		Contact:  input.Contact,
	}
	if input.Password != "" {
		hash, err := HashPassword(input.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}
	if input.HostBio != nil {
		user.Host = &domain.Host{Bio: *input.HostBio}
	}
	if input.RenterBio != nil {
		user.Renter = &domain.Renter{Bio: *input.RenterBio}
	}

	if _, err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUsernameTaken) {
			return nil, ErrUserAlreadyExists
		}
		return nil, err
	}

	return sanitizeUser(user), nil
}

func (s *userService) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.HasPassword() {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return sanitizeUser(user), nil
}

func (s *userService) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return sanitizeUser(user), nil
}

func (s *userService) VerifyPassword(ctx context.Context, userID int64, plaintext string) (bool, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if !user.HasPassword() {
		return false, nil
	}
	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(plaintext))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("compare password hash: %w", err)
	}
}

func (s *userService) SetImageKey(ctx context.Context, userID int64, key string) error {
	return s.users.SetImageKey(ctx, userID, key)
}

// HashPassword derives the stored credential for a plaintext password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	clean := *user
	clean.PasswordHash = ""
	return &clean
}
