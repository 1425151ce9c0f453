package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"exam-editor/internal/domain"
	"exam-editor/internal/repository"
)

var (
	// ErrInvalidCredentials indicates that provided login credentials are incorrect.
	// Unknown emails and wrong passwords both yield it.
	ErrInvalidCredentials = errors.New("incorrect email or password")
	// ErrInvalidSecretCode indicates the admin registration code is incorrect.
	ErrInvalidSecretCode = errors.New("invalid admin secret code")
	// ErrUserAlreadyExists is returned when attempting to register with an existing email.
	ErrUserAlreadyExists = errors.New("user already exists")
	// ErrMissingFields is returned when a registration lacks email, password or secret code.
	ErrMissingFields = errors.New("missing required fields")
)

// RegisterInput carries a registration request. SecretCode is only consulted
// for admin registrations.
type RegisterInput struct {
	Email      string
	Password   string
	Role       domain.Role
	SecretCode string
}

// UserService describes user lifecycle operations.
type UserService interface {
	Register(ctx context.Context, in RegisterInput) (*domain.User, error)
	// Provision creates an account for an operator, without the admin code gate.
	Provision(ctx context.Context, email, password string, role domain.Role) (*domain.User, error)
	Authenticate(ctx context.Context, email, password string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

type userService struct {
	users       repository.UserRepository
	adminSecret string
	cost        int
}

// NewUserService builds the credential strategy. An empty adminSecret disables
// admin self-registration; cost <= 0 selects bcrypt.DefaultCost.
func NewUserService(users repository.UserRepository, adminSecret string, cost int) UserService {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &userService{
		users:       users,
		adminSecret: strings.TrimSpace(adminSecret),
		cost:        cost,
	}
}

func (s *userService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	if strings.TrimSpace(in.Email) == "" || in.Password == "" {
		return nil, ErrMissingFields
	}

	role := domain.ResolveRole(string(in.Role))
	if role == domain.RoleAdmin {
		if in.SecretCode == "" || s.adminSecret == "" {
			return nil, ErrInvalidSecretCode
		}
		if subtle.ConstantTimeCompare([]byte(in.SecretCode), []byte(s.adminSecret)) != 1 {
			return nil, ErrInvalidSecretCode
		}
	}

	return s.create(ctx, in.Email, in.Password, role)
}

func (s *userService) Provision(ctx context.Context, email, password string, role domain.Role) (*domain.User, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, ErrMissingFields
	}
	return s.create(ctx, email, password, domain.ResolveRole(string(role)))
}

func (s *userService) create(ctx context.Context, email, password string, role domain.Role) (*domain.User, error) {
	existing, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil && existing != nil:
		return nil, ErrUserAlreadyExists
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	}
	if _, err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUserAlreadyExists
		}
		return nil, err
	}

	return sanitizeUser(user), nil
}

func (s *userService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return sanitizeUser(user), nil
}

func (s *userService) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return sanitizeUser(user), nil
}

func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	return &domain.User{
		ID:        user.ID,
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}
