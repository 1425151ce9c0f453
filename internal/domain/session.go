package domain

import "time"

// Session maps an opaque cookie identifier to a signed-in user.
type Session struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// CredentialSource tells which credential authenticated a request.
type CredentialSource string

const (
	SourceSession CredentialSource = "session"
	SourceToken   CredentialSource = "token"
)

// Principal is the authenticated identity attached to a request, regardless
// of whether it came from the session cookie or a bearer token.
type Principal struct {
	UserID    int64
	Email     string
	Role      Role
	Source    CredentialSource
	SessionID string
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}
