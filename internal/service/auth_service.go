package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"exam-editor/internal/auth"
	"exam-editor/internal/domain"
	"exam-editor/internal/repository"
)

// ErrUnauthenticated is returned when no credential resolves to a principal.
var ErrUnauthenticated = errors.New("not authenticated")

// TokenIssuer mints and verifies bearer tokens.
type TokenIssuer interface {
	Issue(user domain.User) (string, time.Time, error)
	Parse(token string) (*auth.Claims, error)
}

// LoginResult is a fully established login: a session and a bearer token.
type LoginResult struct {
	User      *domain.User
	Session   *domain.Session
	Token     string
	ExpiresAt time.Time
}

// RegistrationResult reports the two registration steps separately. The user
// always exists when a result is returned; LoginErr is set when the automatic
// login that follows account creation failed, in which case Session and Token
// are empty.
type RegistrationResult struct {
	LoginResult
	LoginErr error
}

// LoggedIn reports whether the automatic login after account creation succeeded.
func (r RegistrationResult) LoggedIn() bool {
	return r.LoginErr == nil && r.Session != nil
}

// AuthService orchestrates the credential strategy, sessions and tokens.
type AuthService struct {
	users    UserService
	sessions SessionService
	tokens   TokenIssuer
	logger   logrus.FieldLogger
}

func NewAuthService(users UserService, sessions SessionService, tokens TokenIssuer, logger logrus.FieldLogger) *AuthService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &AuthService{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		logger:   logger,
	}
}

// Register creates the account, then logs it in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*RegistrationResult, error) {
	user, err := s.users.Register(ctx, in)
	if err != nil {
		return nil, err
	}

	result := &RegistrationResult{LoginResult: LoginResult{User: user}}
	login, err := s.establish(ctx, *user)
	if err != nil {
		result.LoginErr = err
		return result, nil
	}
	result.LoginResult = *login
	return result, nil
}

// Login verifies credentials and establishes a session and token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.users.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.establish(ctx, *user)
}

// Logout ends the server-side session. Bearer tokens stay valid until expiry.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if err := s.sessions.Terminate(ctx, sessionID); err != nil {
		return fmt.Errorf("terminate session: %w", err)
	}
	return nil
}

func (s *AuthService) establish(ctx context.Context, user domain.User) (*LoginResult, error) {
	session, err := s.sessions.Establish(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("establish session: %w", err)
	}

	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		if termErr := s.sessions.Terminate(ctx, session.ID); termErr != nil {
			s.logger.WithError(termErr).WithField("user_id", user.ID).Warn("drop session after token failure")
		}
		return nil, fmt.Errorf("issue token: %w", err)
	}

	return &LoginResult{
		User:      &user,
		Session:   session,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

// PrincipalFromSession resolves the principal behind a session cookie.
func (s *AuthService) PrincipalFromSession(ctx context.Context, sessionID string) (*domain.Principal, error) {
	session, user, err := s.sessions.Resolve(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	return &domain.Principal{
		UserID:    user.ID,
		Email:     user.Email,
		Role:      user.Role,
		Source:    domain.SourceSession,
		SessionID: session.ID,
	}, nil
}

// PrincipalFromToken resolves the principal behind a bearer token. The user is
// reloaded so a token for a removed account stops resolving.
func (s *AuthService) PrincipalFromToken(ctx context.Context, token string) (*domain.Principal, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	user, err := s.users.GetByID(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	return &domain.Principal{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		Source: domain.SourceToken,
	}, nil
}

// CurrentUser loads the user behind a principal.
func (s *AuthService) CurrentUser(ctx context.Context, p *domain.Principal) (*domain.User, error) {
	if p == nil {
		return nil, ErrUnauthenticated
	}
	user, err := s.users.GetByID(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	return user, nil
}
