package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"exam-editor/internal/domain"
)

type fakeAPI struct {
	userFetches atomic.Int32

	mu       sync.Mutex
	lastBody map[string]string
	lastPath string
	// omitToken answers registrations without a token
	omitToken bool
	failLogin bool
	// userStarted and userRelease hold /api/user open when set
	userStarted chan struct{}
	userRelease chan struct{}
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/user", func(w http.ResponseWriter, r *http.Request) {
		f.userFetches.Add(1)
		if f.userStarted != nil {
			close(f.userStarted)
			<-f.userRelease
		}
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Not authenticated"})
			return
		}
		writeJSON(w, http.StatusOK, domain.UserView{ID: 1, Email: "s@x", Role: domain.RoleStudent})
	})
	mux.HandleFunc("/api/login", func(w http.ResponseWriter, r *http.Request) {
		body := f.record(r)
		if f.failLogin {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Incorrect email or password"})
			return
		}
		role := domain.RoleStudent
		if body["email"] == "admin@x" {
			role = domain.RoleAdmin
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"user":  domain.UserView{ID: 2, Email: body["email"], Role: role},
			"token": "tok-login",
		})
	})
	register := func(role domain.Role) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			body := f.record(r)
			resp := map[string]any{"user": domain.UserView{ID: 3, Email: body["email"], Role: role}}
			if !f.omitToken {
				resp["token"] = "tok-register"
			}
			writeJSON(w, http.StatusCreated, resp)
		}
	}
	mux.HandleFunc("/api/register", register(domain.RoleStudent))
	mux.HandleFunc("/api/admin/register", register(domain.RoleAdmin))
	mux.HandleFunc("/api/logout", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
	})
	return mux
}

func (f *fakeAPI) record(r *http.Request) map[string]string {
	body := map[string]string{}
	_ = json.NewDecoder(r.Body).Decode(&body)
	f.mu.Lock()
	f.lastBody = body
	f.lastPath = r.URL.Path
	f.mu.Unlock()
	return body
}

func (f *fakeAPI) last() (string, map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastPath, f.lastBody
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type recorder struct {
	mu            sync.Mutex
	paths         []string
	notifications []Notification
}

func (r *recorder) Navigate(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
}

func (r *recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, n)
}

func (r *recorder) lastPath() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.paths) == 0 {
		return ""
	}
	return r.paths[len(r.paths)-1]
}

func (r *recorder) lastNotification() Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notifications) == 0 {
		return Notification{}
	}
	return r.notifications[len(r.notifications)-1]
}

func newTestSession(t *testing.T, api *fakeAPI, tokens TokenStore) (*AuthSession, *recorder) {
	t.Helper()
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)

	logger, _ := test.NewNullLogger()
	rec := &recorder{}
	s, err := New(Options{
		BaseURL:   srv.URL,
		Tokens:    tokens,
		Navigator: rec,
		Notifier:  rec,
		Logger:    logger,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, rec
}

func TestStartWithoutTokenDoesNotFetch(t *testing.T) {
	api := &fakeAPI{}
	s, _ := newTestSession(t, api, NewMemoryTokenStore(""))

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if n := api.userFetches.Load(); n != 0 {
		t.Fatalf("expected no user fetch, got %d", n)
	}
	if st := s.State(); st.User != nil || st.IsLoading {
		t.Fatalf("unexpected state %+v", st)
	}
}

func TestSetTokenFetchesUserOnce(t *testing.T) {
	api := &fakeAPI{}
	s, _ := newTestSession(t, api, NewMemoryTokenStore(""))
	ctx := context.Background()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.SetToken(ctx, "tok-1"); err != nil {
		t.Fatalf("SetToken: %v", err)
	}
	if n := api.userFetches.Load(); n != 1 {
		t.Fatalf("expected exactly one user fetch, got %d", n)
	}
	st := s.State()
	if st.User == nil || st.User.Email != "s@x" {
		t.Fatalf("expected cached user, got %+v", st.User)
	}
	if st.IsLoading {
		t.Fatal("loading flag left set")
	}

	// same token again is not a transition
	if err := s.SetToken(ctx, "tok-1"); err != nil {
		t.Fatalf("SetToken: %v", err)
	}
	if n := api.userFetches.Load(); n != 1 {
		t.Fatalf("expected no extra fetch, got %d", n)
	}
}

func TestStartWithPersistedToken(t *testing.T) {
	api := &fakeAPI{}
	s, _ := newTestSession(t, api, NewMemoryTokenStore("tok-1"))

	if got := s.State().Token; got != "tok-1" {
		t.Fatalf("token not read at construction: %q", got)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if n := api.userFetches.Load(); n != 1 {
		t.Fatalf("expected one fetch, got %d", n)
	}
}

func TestStartWithRejectedTokenRecordsError(t *testing.T) {
	api := &fakeAPI{}
	s, _ := newTestSession(t, api, NewMemoryTokenStore("stale"))

	err := s.Start(context.Background())
	if !IsUnauthorized(err) {
		t.Fatalf("expected 401, got %v", err)
	}
	st := s.State()
	if st.User != nil || st.Err == nil {
		t.Fatalf("unexpected state %+v", st)
	}
	if n := api.userFetches.Load(); n != 1 {
		t.Fatalf("failed fetch must not be retried, got %d", n)
	}
}

func TestLoginNavigatesByRole(t *testing.T) {
	cases := []struct {
		email string
		want  string
	}{
		{"student@x", StudentDashboard},
		{"admin@x", AdminDashboard},
	}
	for _, tc := range cases {
		t.Run(tc.email, func(t *testing.T) {
			api := &fakeAPI{}
			tokens := NewMemoryTokenStore("")
			s, rec := newTestSession(t, api, tokens)

			if err := s.Login(context.Background(), LoginData{Email: tc.email, Password: "p1"}); err != nil {
				t.Fatalf("Login: %v", err)
			}
			if got := rec.lastPath(); got != tc.want {
				t.Fatalf("navigated to %q, want %q", got, tc.want)
			}
			if tok, _ := tokens.Get(); tok != "tok-login" {
				t.Fatalf("token not persisted: %q", tok)
			}
			n := rec.lastNotification()
			if n.Variant != VariantDefault || n.Description != "Welcome, "+tc.email+"!" {
				t.Fatalf("unexpected notification %+v", n)
			}
			if st := s.State(); st.User == nil || st.User.Email != tc.email {
				t.Fatalf("user not cached: %+v", st.User)
			}
		})
	}
}

func TestLoginFailureNotifiesDestructive(t *testing.T) {
	api := &fakeAPI{failLogin: true}
	tokens := NewMemoryTokenStore("")
	s, rec := newTestSession(t, api, tokens)

	err := s.Login(context.Background(), LoginData{Email: "a@x", Password: "bad"})
	if !IsUnauthorized(err) {
		t.Fatalf("expected 401, got %v", err)
	}
	n := rec.lastNotification()
	if n.Variant != VariantDestructive || n.Description != "Incorrect email or password" {
		t.Fatalf("unexpected notification %+v", n)
	}
	if rec.lastPath() != "" {
		t.Fatal("failed login must not navigate")
	}
	if tok, _ := tokens.Get(); tok != "" {
		t.Fatalf("token persisted on failure: %q", tok)
	}
}

func TestRegisterRoutesByRole(t *testing.T) {
	t.Run("student", func(t *testing.T) {
		api := &fakeAPI{}
		s, rec := newTestSession(t, api, NewMemoryTokenStore(""))

		err := s.Register(context.Background(), RegisterData{Email: "s@x", Password: "p1", Role: domain.RoleStudent, SecretCode: "ignored"})
		if err != nil {
			t.Fatalf("Register: %v", err)
		}
		path, body := api.last()
		if path != "/api/register" {
			t.Fatalf("posted to %q", path)
		}
		if _, ok := body["secretCode"]; ok {
			t.Fatal("student registration must not send a secret code")
		}
		if body["role"] != "student" {
			t.Fatalf("role = %q", body["role"])
		}
		if rec.lastPath() != StudentDashboard {
			t.Fatalf("navigated to %q", rec.lastPath())
		}
	})

	t.Run("admin", func(t *testing.T) {
		api := &fakeAPI{}
		s, rec := newTestSession(t, api, NewMemoryTokenStore(""))

		err := s.Register(context.Background(), RegisterData{Email: "a@x", Password: "p1", Role: domain.RoleAdmin, SecretCode: "S3CRET"})
		if err != nil {
			t.Fatalf("Register: %v", err)
		}
		path, body := api.last()
		if path != "/api/admin/register" {
			t.Fatalf("posted to %q", path)
		}
		if body["secretCode"] != "S3CRET" {
			t.Fatalf("secretCode = %q", body["secretCode"])
		}
		if rec.lastPath() != AdminDashboard {
			t.Fatalf("navigated to %q", rec.lastPath())
		}
	})
}

func TestRegisterWithoutTokenDropsEarlierToken(t *testing.T) {
	api := &fakeAPI{omitToken: true}
	tokens := NewMemoryTokenStore("tok-1")
	s, _ := newTestSession(t, api, tokens)
	ctx := context.Background()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if st := s.State(); st.User == nil || st.User.ID != 1 {
		t.Fatalf("expected user 1 before registering, got %+v", st.User)
	}

	if err := s.Register(ctx, RegisterData{Email: "new@x", Password: "p1"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if tok, _ := tokens.Get(); tok != "" {
		t.Fatalf("persisted token %q belongs to the previous user", tok)
	}
	st := s.State()
	if st.User == nil || st.User.ID != 3 || st.User.Email != "new@x" {
		t.Fatalf("registered user not cached: %+v", st.User)
	}
	if st.Token != "" {
		t.Fatalf("state token %q belongs to the previous user", st.Token)
	}
}

func TestLoadingWhileUserFetchInFlight(t *testing.T) {
	api := &fakeAPI{userStarted: make(chan struct{}), userRelease: make(chan struct{})}
	s, _ := newTestSession(t, api, NewMemoryTokenStore("tok-1"))

	done := make(chan error, 1)
	go func() { done <- s.Start(context.Background()) }()

	select {
	case <-api.userStarted:
	case <-time.After(2 * time.Second):
		close(api.userRelease)
		t.Fatal("user fetch never reached the server")
	}

	st := s.State()
	if !st.IsLoading || st.User != nil {
		close(api.userRelease)
		t.Fatalf("expected loading with no user, got %+v", st)
	}

	close(api.userRelease)
	if err := <-done; err != nil {
		t.Fatalf("Start: %v", err)
	}
	st = s.State()
	if st.IsLoading || st.User == nil || st.User.ID != 1 {
		t.Fatalf("expected cached user after fetch, got %+v", st)
	}
}

func TestLogoutClearsState(t *testing.T) {
	api := &fakeAPI{}
	tokens := NewMemoryTokenStore("")
	s, rec := newTestSession(t, api, tokens)
	ctx := context.Background()

	if err := s.Login(ctx, LoginData{Email: "s@x", Password: "p1"}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := s.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if tok, _ := tokens.Get(); tok != "" {
		t.Fatalf("token left behind: %q", tok)
	}
	if st := s.State(); st.User != nil || st.Token != "" {
		t.Fatalf("state not cleared: %+v", st)
	}
	if rec.lastPath() != LoginPage {
		t.Fatalf("navigated to %q", rec.lastPath())
	}
	if rec.lastNotification().Title != "Logged out successfully" {
		t.Fatalf("unexpected notification %+v", rec.lastNotification())
	}
}

func TestFileTokenStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "auth.json")
	store := NewFileTokenStore(path)

	if tok, err := store.Get(); err != nil || tok != "" {
		t.Fatalf("empty store: %q, %v", tok, err)
	}
	if err := store.Set("abc"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	reopened := NewFileTokenStore(path)
	if tok, err := reopened.Get(); err != nil || tok != "abc" {
		t.Fatalf("reopened: %q, %v", tok, err)
	}
	if err := reopened.Delete(); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if tok, _ := store.Get(); tok != "" {
		t.Fatalf("token survived delete: %q", tok)
	}
}

func TestLogNotifierFallsBackToTitle(t *testing.T) {
	logger, hook := test.NewNullLogger()
	LogNotifier{Logger: logger}.Notify(Notification{Title: "Login failed", Variant: VariantDestructive})

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatal("nothing logged")
	}
	if entry.Level != logrus.WarnLevel && entry.Level != logrus.ErrorLevel {
		t.Fatalf("destructive notification logged at %s", entry.Level)
	}
	if entry.Message != "Login failed" {
		t.Fatalf("message = %q", entry.Message)
	}
}
