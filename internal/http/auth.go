package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"exam-editor/internal/domain"
	"exam-editor/internal/service"
)

type registerRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	Role       string `json:"role"`
	SecretCode string `json:"secretCode"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	User  domain.UserView `json:"user"`
	Token string          `json:"token,omitempty"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.metrics.auth("register", outcomeRejected)
		writeMessage(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	h.completeRegistration(c, "register", service.RegisterInput{
		Email:      req.Email,
		Password:   req.Password,
		Role:       domain.ResolveRole(req.Role),
		SecretCode: req.SecretCode,
	})
}

func (h *Handler) registerAdmin(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.metrics.auth("admin_register", outcomeRejected)
		writeMessage(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" || req.SecretCode == "" {
		h.metrics.auth("admin_register", outcomeRejected)
		writeMessage(c, http.StatusBadRequest, "Missing required fields")
		return
	}

	h.completeRegistration(c, "admin_register", service.RegisterInput{
		Email:      req.Email,
		Password:   req.Password,
		Role:       domain.RoleAdmin,
		SecretCode: req.SecretCode,
	})
}

// completeRegistration runs the create-then-login protocol. A failed login
// step still answers 201 with the user and no token.
func (h *Handler) completeRegistration(c *gin.Context, op string, in service.RegisterInput) {
	result, err := h.auth.Register(c.Request.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingFields):
			writeMessage(c, http.StatusBadRequest, "Missing required fields")
		case errors.Is(err, service.ErrInvalidSecretCode):
			writeMessage(c, http.StatusUnauthorized, "Invalid admin secret code")
		case errors.Is(err, service.ErrUserAlreadyExists):
			writeMessage(c, http.StatusConflict, "User already exists")
		default:
			h.metrics.auth(op, outcomeError)
			h.internalError(c, op, err)
			return
		}
		h.metrics.auth(op, outcomeRejected)
		return
	}

	if !result.LoggedIn() {
		h.logger.WithError(result.LoginErr).WithField("user_id", result.User.ID).Warn("auto-login after registration failed")
		h.metrics.auth(op, outcomePartial)
		c.JSON(http.StatusCreated, authResponse{User: result.User.View()})
		return
	}

	h.cookies.set(c.Writer, result.Session.ID)
	h.metrics.auth(op, outcomeSuccess)
	c.JSON(http.StatusCreated, authResponse{
		User:  result.User.View(),
		Token: result.Token,
	})
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.metrics.auth("login", outcomeRejected)
		writeMessage(c, http.StatusUnauthorized, "Incorrect email or password")
		return
	}

	result, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			h.metrics.auth("login", outcomeRejected)
			writeMessage(c, http.StatusUnauthorized, "Incorrect email or password")
			return
		}
		h.metrics.auth("login", outcomeError)
		h.internalError(c, "login", err)
		return
	}

	h.cookies.set(c.Writer, result.Session.ID)
	h.metrics.auth("login", outcomeSuccess)
	c.JSON(http.StatusOK, authResponse{
		User:  result.User.View(),
		Token: result.Token,
	})
}

// logout ends the cookie session behind the request. A bearer-only principal has
// no session to end; the cookie is cleared either way.
func (h *Handler) logout(c *gin.Context) {
	var sessionID string
	if p, ok := principalFrom(c); ok && p.Source == domain.SourceSession {
		sessionID = p.SessionID
	}
	if err := h.auth.Logout(c.Request.Context(), sessionID); err != nil {
		h.metrics.auth("logout", outcomeError)
		h.internalError(c, "logout", err)
		return
	}

	h.cookies.clear(c.Writer)
	h.metrics.auth("logout", outcomeSuccess)
	writeMessage(c, http.StatusOK, "Logged out successfully")
}

func (h *Handler) currentUser(c *gin.Context) {
	p, ok := principalFrom(c)
	if !ok {
		writeMessage(c, http.StatusUnauthorized, "Not authenticated")
		return
	}

	user, err := h.auth.CurrentUser(c.Request.Context(), p)
	if err != nil {
		if errors.Is(err, service.ErrUnauthenticated) {
			writeMessage(c, http.StatusUnauthorized, "Not authenticated")
			return
		}
		h.internalError(c, "current user", err)
		return
	}
	c.JSON(http.StatusOK, user.View())
}
