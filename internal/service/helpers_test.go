package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"golang.org/x/crypto/bcrypt"

	"exam-editor/internal/auth"
	"exam-editor/internal/repository"
	"exam-editor/internal/repository/sqlite"
)

const testAdminCode = "S3CRET"

type stores struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
}

func newStores(t *testing.T) stores {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "exam.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	users := sqlite.NewUserRepository(db)
	if err := users.Init(ctx); err != nil {
		t.Fatalf("init users: %v", err)
	}
	sessions := sqlite.NewSessionRepository(db)
	if err := sessions.Init(ctx); err != nil {
		t.Fatalf("init sessions: %v", err)
	}
	return stores{users: users, sessions: sessions}
}

func newTestUserService(t *testing.T, s stores) UserService {
	t.Helper()
	return NewUserService(s.users, testAdminCode, bcrypt.MinCost)
}

func newTestAuthService(t *testing.T, s stores, sessions SessionService) *AuthService {
	t.Helper()
	users := newTestUserService(t, s)
	if sessions == nil {
		sessions = NewSessionService(s.sessions, users, 0, nil)
	}
	logger, _ := test.NewNullLogger()
	return NewAuthService(users, sessions, newTestIssuer(t), logger)
}

func newTestIssuer(t *testing.T) *auth.Issuer {
	t.Helper()
	issuer, err := auth.NewIssuer("test-jwt-secret", "exam-editor", 0)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	return issuer
}
