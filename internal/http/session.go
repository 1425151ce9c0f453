package http

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
	"time"
)

const defaultCookieName = "exam.sid"

// sessionCookie signs session ids so a forged cookie never reaches the store.
type sessionCookie struct {
	name   string
	secret []byte
	ttl    time.Duration
	secure bool
}

func newSessionCookie(name, secret string, ttl time.Duration, secure bool) sessionCookie {
	if name == "" {
		name = defaultCookieName
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return sessionCookie{
		name:   name,
		secret: []byte(secret),
		ttl:    ttl,
		secure: secure,
	}
}

func (s sessionCookie) sign(id string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(id))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (s sessionCookie) encode(id string) string {
	return id + "." + s.sign(id)
}

// read returns the session id from a verified cookie.
func (s sessionCookie) read(r *http.Request) (string, bool) {
	c, err := r.Cookie(s.name)
	if err != nil || c.Value == "" {
		return "", false
	}
	idx := strings.LastIndexByte(c.Value, '.')
	if idx <= 0 || idx == len(c.Value)-1 {
		return "", false
	}
	id, sig := c.Value[:idx], c.Value[idx+1:]
	if !hmac.Equal([]byte(sig), []byte(s.sign(id))) {
		return "", false
	}
	return id, true
}

func (s sessionCookie) set(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.name,
		Value:    s.encode(id),
		Path:     "/",
		MaxAge:   int(s.ttl / time.Second),
		Expires:  time.Now().Add(s.ttl),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s sessionCookie) clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
