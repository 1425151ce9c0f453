package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"exam-editor/internal/auth"
	"exam-editor/internal/domain"
	"exam-editor/internal/service"
)

const principalKey = "principal"

// authenticate resolves the request principal from the session cookie, then
// from a bearer token. Missing or invalid credentials leave the request
// anonymous; store failures abort with 500.
func (h *Handler) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		if id, ok := h.cookies.read(c.Request); ok {
			p, err := h.auth.PrincipalFromSession(ctx, id)
			switch {
			case err == nil:
				c.Set(principalKey, p)
				c.Next()
				return
			case !errors.Is(err, service.ErrUnauthenticated):
				h.internalError(c, "resolve session", err)
				c.Abort()
				return
			}
		}

		if token, ok := auth.BearerToken(c.GetHeader("Authorization")); ok {
			p, err := h.auth.PrincipalFromToken(ctx, token)
			switch {
			case err == nil:
				c.Set(principalKey, p)
			case !errors.Is(err, service.ErrUnauthenticated):
				h.internalError(c, "resolve token", err)
				c.Abort()
				return
			}
		}

		c.Next()
	}
}

func principalFrom(c *gin.Context) (*domain.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*domain.Principal)
	return p, ok && p != nil
}

func requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := principalFrom(c); !ok {
			writeMessage(c, http.StatusUnauthorized, "Not authenticated")
			c.Abort()
			return
		}
		c.Next()
	}
}

func requireRole(role domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := principalFrom(c)
		if !ok {
			writeMessage(c, http.StatusUnauthorized, "Not authenticated")
			c.Abort()
			return
		}
		if p.Role != role {
			writeMessage(c, http.StatusForbidden, "Forbidden")
			c.Abort()
			return
		}
		c.Next()
	}
}
