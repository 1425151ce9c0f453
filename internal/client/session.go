package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"sync"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"exam-editor/internal/domain"
)

const (
	AdminDashboard   = "/admin/dashboard"
	StudentDashboard = "/student/dashboard"
	LoginPage        = "/login"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return e.Message
}

type LoginData struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterData struct {
	Email      string
	Password   string
	Role       domain.Role
	SecretCode string
}

// State is a snapshot of the client's view of authentication.
type State struct {
	User      *domain.UserView
	Token     string
	IsLoading bool
	Err       error
}

type Options struct {
	BaseURL    string
	Tokens     TokenStore
	Navigator  Navigator
	Notifier   Notifier
	Logger     logrus.FieldLogger
	HTTPClient *http.Client
}

type authPayload struct {
	User  domain.UserView `json:"user"`
	Token string          `json:"token"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// AuthSession holds the current user and token of one client and exposes the
// login, register and logout operations. Views receive it explicitly.
type AuthSession struct {
	http     *resty.Client
	tokens   TokenStore
	nav      Navigator
	notifier Notifier
	logger   logrus.FieldLogger

	mu      sync.Mutex
	token   string
	user    *domain.UserView
	loading bool
	err     error
}

// New builds a session and reads the persisted token synchronously. No request
// is made until Start.
func New(opts Options) (*AuthSession, error) {
	if opts.Tokens == nil {
		opts.Tokens = NewMemoryTokenStore("")
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Notifier == nil {
		opts.Notifier = LogNotifier{Logger: opts.Logger}
	}
	if opts.Navigator == nil {
		opts.Navigator = NavigatorFunc(func(string) {})
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	if hc.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("cookie jar: %w", err)
		}
		hc.Jar = jar
	}

	token, err := opts.Tokens.Get()
	if err != nil {
		return nil, fmt.Errorf("read persisted token: %w", err)
	}

	rc := resty.NewWithClient(hc).
		SetBaseURL(opts.BaseURL).
		SetHeader("Accept", "application/json").
		SetLogger(opts.Logger).
		SetRetryCount(0)

	return &AuthSession{
		http:     rc,
		tokens:   opts.Tokens,
		nav:      opts.Navigator,
		notifier: opts.Notifier,
		logger:   opts.Logger,
		token:    token,
	}, nil
}

// State returns a snapshot of the current auth state.
func (s *AuthSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	var user *domain.UserView
	if s.user != nil {
		u := *s.user
		user = &u
	}
	return State{
		User:      user,
		Token:     s.token,
		IsLoading: s.loading,
		Err:       s.err,
	}
}

// Start runs the initial user query when a token is persisted.
func (s *AuthSession) Start(ctx context.Context) error {
	s.mu.Lock()
	token := s.token
	s.mu.Unlock()

	if token == "" {
		return nil
	}
	return s.refreshUser(ctx)
}

// SetToken persists a token. Going from no token to a token re-fetches the
// current user once; clearing the token drops the cached user.
func (s *AuthSession) SetToken(ctx context.Context, token string) error {
	if token == "" {
		if err := s.tokens.Delete(); err != nil {
			return fmt.Errorf("delete token: %w", err)
		}
	} else if err := s.tokens.Set(token); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}

	s.mu.Lock()
	prev := s.token
	s.token = token
	if token == "" {
		s.user = nil
	}
	s.mu.Unlock()

	if prev == "" && token != "" {
		return s.refreshUser(ctx)
	}
	return nil
}

// refreshUser queries /api/user. Failures are recorded, never retried.
func (s *AuthSession) refreshUser(ctx context.Context) error {
	s.mu.Lock()
	token := s.token
	s.loading = true
	s.mu.Unlock()

	var user domain.UserView
	err := s.do(ctx, http.MethodGet, "/api/user", token, nil, &user)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.user = nil
		s.err = err
		return err
	}
	s.user = &user
	s.err = nil
	return nil
}

// Login signs in with email and password and lands on the role's dashboard.
func (s *AuthSession) Login(ctx context.Context, creds LoginData) error {
	var payload authPayload
	if err := s.do(ctx, http.MethodPost, "/api/login", s.currentToken(), creds, &payload); err != nil {
		s.fail("Login failed", err)
		return err
	}
	return s.authenticated(payload, "Logged in successfully")
}

// Register sends admins to the admin endpoint with their secret code and
// everyone else to the student endpoint without it.
func (s *AuthSession) Register(ctx context.Context, data RegisterData) error {
	var (
		path string
		body map[string]string
	)
	if data.Role == domain.RoleAdmin {
		path = "/api/admin/register"
		body = map[string]string{
			"email":      data.Email,
			"password":   data.Password,
			"secretCode": data.SecretCode,
		}
	} else {
		path = "/api/register"
		body = map[string]string{
			"email":    data.Email,
			"password": data.Password,
			"role":     string(domain.RoleStudent),
		}
	}

	var payload authPayload
	if err := s.do(ctx, http.MethodPost, path, s.currentToken(), body, &payload); err != nil {
		s.fail("Registration failed", err)
		return err
	}
	return s.authenticated(payload, "Account created successfully")
}

// Logout ends the server session, forgets the token and returns to the login page.
func (s *AuthSession) Logout(ctx context.Context) error {
	if err := s.do(ctx, http.MethodPost, "/api/logout", s.currentToken(), nil, nil); err != nil {
		s.fail("Logout failed", err)
		return err
	}

	if err := s.tokens.Delete(); err != nil {
		s.logger.WithError(err).Warn("delete persisted token")
	}
	s.mu.Lock()
	s.token = ""
	s.user = nil
	s.err = nil
	s.mu.Unlock()

	s.nav.Navigate(LoginPage)
	s.notifier.Notify(Notification{Title: "Logged out successfully", Variant: VariantDefault})
	return nil
}

func (s *AuthSession) authenticated(payload authPayload, title string) error {
	// a tokenless registration drops any earlier token so user and token stay paired
	if payload.Token != "" {
		if err := s.tokens.Set(payload.Token); err != nil {
			s.logger.WithError(err).Warn("persist token")
		}
	} else if err := s.tokens.Delete(); err != nil {
		s.logger.WithError(err).Warn("delete persisted token")
	}

	user := payload.User
	s.mu.Lock()
	s.token = payload.Token
	s.user = &user
	s.err = nil
	s.mu.Unlock()

	s.nav.Navigate(DashboardFor(user.Role))
	s.notifier.Notify(Notification{
		Title:       title,
		Description: fmt.Sprintf("Welcome, %s!", user.Email),
		Variant:     VariantDefault,
	})
	return nil
}

func (s *AuthSession) fail(title string, err error) {
	s.notifier.Notify(Notification{
		Title:       title,
		Description: err.Error(),
		Variant:     VariantDestructive,
	})
}

func (s *AuthSession) currentToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *AuthSession) do(ctx context.Context, method, path, token string, body, result any) error {
	var apiErr errorPayload
	req := s.http.R().SetContext(ctx).SetError(&apiErr)
	if token != "" {
		req.SetAuthToken(token)
	}
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		return &APIError{StatusCode: resp.StatusCode(), Message: apiErr.Message}
	}
	return nil
}

// DashboardFor is the landing page for a role.
func DashboardFor(role domain.Role) string {
	if role == domain.RoleAdmin {
		return AdminDashboard
	}
	return StudentDashboard
}

// IsUnauthorized reports whether err is a 401 from the server.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}
