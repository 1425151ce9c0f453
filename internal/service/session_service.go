package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"exam-editor/internal/domain"
	"exam-editor/internal/repository"
)

// DefaultSessionTTL bounds a cookie session.
const DefaultSessionTTL = 24 * time.Hour

// ErrSessionNotFound is returned when a session id is unknown, expired, or
// points at a user that no longer exists.
var ErrSessionNotFound = errors.New("session not found")

// SessionService manages server-side login sessions.
type SessionService interface {
	Establish(ctx context.Context, user domain.User) (*domain.Session, error)
	Resolve(ctx context.Context, id string) (*domain.Session, *domain.User, error)
	Terminate(ctx context.Context, id string) error
	RunSweeper(ctx context.Context, interval time.Duration)
}

type sessionService struct {
	sessions repository.SessionRepository
	users    UserService
	ttl      time.Duration
	logger   logrus.FieldLogger
	now      func() time.Time
}

func NewSessionService(sessions repository.SessionRepository, users UserService, ttl time.Duration, logger logrus.FieldLogger) SessionService {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &sessionService{
		sessions: sessions,
		users:    users,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *sessionService) Establish(ctx context.Context, user domain.User) (*domain.Session, error) {
	id, err := newSessionID()
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}

	now := s.now().UTC()
	session := &domain.Session{
		ID:        id,
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *sessionService) Resolve(ctx context.Context, id string) (*domain.Session, *domain.User, error) {
	if id == "" {
		return nil, nil, ErrSessionNotFound
	}

	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrSessionNotFound
		}
		return nil, nil, err
	}
	if session.Expired(s.now()) {
		return nil, nil, ErrSessionNotFound
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrSessionNotFound
		}
		return nil, nil, err
	}
	return session, user, nil
}

func (s *sessionService) Terminate(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return s.sessions.Delete(ctx, id)
}

// RunSweeper deletes expired sessions every interval until ctx is done.
func (s *sessionService) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.sessions.DeleteExpired(ctx, s.now())
			if err != nil {
				s.logger.WithError(err).Warn("sweep expired sessions")
				continue
			}
			if n > 0 {
				s.logger.WithField("removed", n).Debug("swept expired sessions")
			}
		}
	}
}

func newSessionID() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
