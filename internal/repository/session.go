package repository

import (
	"context"
	"time"

	"exam-editor/internal/domain"
)

// SessionRepository persists server-side login sessions.
// Get returns ErrNotFound for both missing and expired sessions.
type SessionRepository interface {
	Init(ctx context.Context) error
	Save(ctx context.Context, session *domain.Session) error
	Get(ctx context.Context, id string) (*domain.Session, error)
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
