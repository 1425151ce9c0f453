package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"exam-editor/internal/auth"
	"exam-editor/internal/domain"
)

type failingSessions struct {
	SessionService
	err error
}

func (f failingSessions) Establish(context.Context, domain.User) (*domain.Session, error) {
	return nil, f.err
}

type failingIssuer struct{}

func (failingIssuer) Issue(domain.User) (string, time.Time, error) {
	return "", time.Time{}, errors.New("signer unavailable")
}

func (failingIssuer) Parse(string) (*auth.Claims, error) {
	return nil, errors.New("signer unavailable")
}

func TestAuthRegisterLogsIn(t *testing.T) {
	svc := newTestAuthService(t, newStores(t), nil)

	result, err := svc.Register(context.Background(), RegisterInput{Email: "s@x", Password: "p1"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !result.LoggedIn() {
		t.Fatalf("expected a logged-in result, got %+v", result)
	}
	if result.Token == "" || result.Session == nil || result.Session.UserID != result.User.ID {
		t.Fatalf("incomplete result %+v", result)
	}
	if ttl := time.Until(result.ExpiresAt); ttl < 23*time.Hour || ttl > 25*time.Hour {
		t.Fatalf("token expiry %s from now", ttl)
	}
}

func TestAuthRegisterPartialWhenLoginFails(t *testing.T) {
	s := newStores(t)
	sessions := failingSessions{err: errors.New("session store down")}
	svc := newTestAuthService(t, s, sessions)

	result, err := svc.Register(context.Background(), RegisterInput{Email: "s@x", Password: "p1"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if result.LoggedIn() || result.LoginErr == nil {
		t.Fatalf("expected partial result, got %+v", result)
	}
	if result.User == nil || result.User.Email != "s@x" || result.Token != "" {
		t.Fatalf("unexpected partial result %+v", result)
	}
	if _, err := s.users.GetByEmail(context.Background(), "s@x"); err != nil {
		t.Fatalf("user should persist after a failed auto-login: %v", err)
	}
}

func TestAuthLoginDropsSessionWhenTokenFails(t *testing.T) {
	s := newStores(t)
	users := newTestUserService(t, s)
	sessions := NewSessionService(s.sessions, users, time.Hour, nil)
	svc := NewAuthService(users, sessions, failingIssuer{}, nil)
	ctx := context.Background()
	registerUser(t, users, "s@x")

	if _, err := svc.Login(ctx, "s@x", "p1"); err == nil {
		t.Fatal("expected login to fail")
	}
	n, err := s.sessions.DeleteExpired(ctx, time.Now().Add(48*time.Hour))
	if err != nil {
		t.Fatalf("DeleteExpired: %v", err)
	}
	if n != 0 {
		t.Fatalf("%d orphan sessions left after token failure", n)
	}
}

func TestAuthLoginAndPrincipals(t *testing.T) {
	svc := newTestAuthService(t, newStores(t), nil)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Email: "a@x", Password: "p1", Role: domain.RoleAdmin, SecretCode: testAdminCode}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	login, err := svc.Login(ctx, "a@x", "p1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	fromSession, err := svc.PrincipalFromSession(ctx, login.Session.ID)
	if err != nil {
		t.Fatalf("PrincipalFromSession: %v", err)
	}
	fromToken, err := svc.PrincipalFromToken(ctx, login.Token)
	if err != nil {
		t.Fatalf("PrincipalFromToken: %v", err)
	}
	if fromSession.UserID != fromToken.UserID || !fromSession.IsAdmin() || !fromToken.IsAdmin() {
		t.Fatalf("principals disagree: %+v vs %+v", fromSession, fromToken)
	}
	if fromSession.Source != domain.SourceSession || fromToken.Source != domain.SourceToken {
		t.Fatalf("unexpected sources %q and %q", fromSession.Source, fromToken.Source)
	}

	user, err := svc.CurrentUser(ctx, fromToken)
	if err != nil || user.Email != "a@x" {
		t.Fatalf("CurrentUser: %+v, %v", user, err)
	}

	if err := svc.Logout(ctx, login.Session.ID); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := svc.PrincipalFromSession(ctx, login.Session.ID); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated after logout, got %v", err)
	}
	// bearer tokens are stateless and outlive the session
	if _, err := svc.PrincipalFromToken(ctx, login.Token); err != nil {
		t.Fatalf("token rejected after logout: %v", err)
	}
}

func TestAuthLoginRejectsBadCredentials(t *testing.T) {
	svc := newTestAuthService(t, newStores(t), nil)

	if _, err := svc.Login(context.Background(), "nobody@x", "p1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthPrincipalFromBadToken(t *testing.T) {
	svc := newTestAuthService(t, newStores(t), nil)

	if _, err := svc.PrincipalFromToken(context.Background(), "not-a-jwt"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if _, err := svc.CurrentUser(context.Background(), nil); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for nil principal, got %v", err)
	}
}
