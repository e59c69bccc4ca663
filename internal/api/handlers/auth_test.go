package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MacJediWizard/aurospan/internal/api/middleware"
	"github.com/MacJediWizard/aurospan/internal/auth"
	"github.com/MacJediWizard/aurospan/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const testAuthorizeURL = "https://discord.test/oauth2/authorize?client_id=abc"

type fakeURLProvider struct{}

func (fakeURLProvider) AuthorizationURL() string { return testAuthorizeURL }

type fakePipeline struct {
	result *auth.Authenticated
	err    error
	code   string
	calls  int
}

func (f *fakePipeline) Run(_ context.Context, code string) (*auth.Authenticated, error) {
	f.calls++
	f.code = code
	return f.result, f.err
}

type loginCounter struct {
	results []string
}

func (l *loginCounter) RecordLogin(result string) {
	l.results = append(l.results, result)
}

func newTestSessionStore(t *testing.T) *auth.SessionStore {
	t.Helper()
	store, err := auth.NewSessionStore(auth.DefaultSessionConfig([]byte("0123456789abcdef0123456789abcdef"), false), zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to create session store: %v", err)
	}
	return store
}

func setupAuthTestRouter(t *testing.T, pipeline LoginRunner) (*gin.Engine, *auth.SessionStore, *loginCounter) {
	t.Helper()
	sessions := newTestSessionStore(t)
	recorder := &loginCounter{}

	r := newTestEngine(t)
	r.Use(middleware.SessionMiddleware(sessions))
	h := NewAuthHandler(fakeURLProvider{}, pipeline, sessions, zerolog.Nop())
	h.SetRecorder(recorder)
	h.RegisterPublicRoutes(r)
	return r, sessions, recorder
}

func TestLogin_RedirectsToProvider(t *testing.T) {
	r, _, _ := setupAuthTestRouter(t, &fakePipeline{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/login", nil))

	if w.Code != http.StatusTemporaryRedirect {
		t.Fatalf("expected status 307, got %d", w.Code)
	}
	if got := w.Header().Get("Location"); got != testAuthorizeURL {
		t.Errorf("expected redirect to provider, got %q", got)
	}
	if len(w.Result().Cookies()) != 0 {
		t.Error("expected login to store nothing")
	}
}

func TestCallback_MissingCode(t *testing.T) {
	pipeline := &fakePipeline{}
	r, _, recorder := setupAuthTestRouter(t, pipeline)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/discord/callback?error=access_denied", nil))

	if w.Code != http.StatusTemporaryRedirect || w.Header().Get("Location") != "/login" {
		t.Fatalf("expected redirect to /login, got %d %q", w.Code, w.Header().Get("Location"))
	}
	if pipeline.calls != 0 {
		t.Error("expected no provider calls without a code")
	}
	if len(recorder.results) != 1 || recorder.results[0] != metrics.LoginMissingCode {
		t.Errorf("unexpected recorded results %v", recorder.results)
	}
}

func TestCallback_PipelineFailure(t *testing.T) {
	kinds := []error{
		auth.ErrTokenExchangeFailed,
		auth.ErrProfileFetchFailed,
		fmt.Errorf("guild member lookup: %w", &auth.AuthError{Kind: auth.RoleFetchFailed, Err: errors.New("404")}),
		context.DeadlineExceeded,
	}

	for _, pipelineErr := range kinds {
		t.Run(pipelineErr.Error(), func(t *testing.T) {
			r, _, recorder := setupAuthTestRouter(t, &fakePipeline{err: pipelineErr})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/discord/callback?code=abc", nil))

			if w.Code != http.StatusTemporaryRedirect || w.Header().Get("Location") != "/login" {
				t.Fatalf("expected redirect to /login, got %d %q", w.Code, w.Header().Get("Location"))
			}
			if len(w.Result().Cookies()) != 0 {
				t.Error("expected no session mutation on failure")
			}
			if len(recorder.results) != 1 || recorder.results[0] != metrics.LoginProviderError {
				t.Errorf("unexpected recorded results %v", recorder.results)
			}
		})
	}
}

func TestCallback_Success(t *testing.T) {
	pipeline := &fakePipeline{result: &auth.Authenticated{
		User:        auth.SessionUser{ID: "1001", Username: "captain", Roles: []string{"r1"}},
		AccessToken: "tok",
	}}
	r, sessions, recorder := setupAuthTestRouter(t, pipeline)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/discord/callback?code=good-code", nil))

	if w.Code != http.StatusTemporaryRedirect || w.Header().Get("Location") != "/admin" {
		t.Fatalf("expected redirect to /admin, got %d %q", w.Code, w.Header().Get("Location"))
	}
	if pipeline.code != "good-code" {
		t.Errorf("expected code to be passed through, got %q", pipeline.code)
	}
	if len(recorder.results) != 1 || recorder.results[0] != metrics.LoginSuccess {
		t.Errorf("unexpected recorded results %v", recorder.results)
	}

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	for _, cookie := range w.Result().Cookies() {
		req.AddCookie(cookie)
	}
	authenticated, ok := sessions.Load(req).(*auth.Authenticated)
	if !ok {
		t.Fatal("expected an authenticated session")
	}
	if authenticated.User.ID != "1001" || authenticated.AccessToken != "tok" {
		t.Errorf("unexpected session %+v", authenticated)
	}
}

func TestLogout_ClearsSession(t *testing.T) {
	pipeline := &fakePipeline{result: &auth.Authenticated{User: auth.SessionUser{ID: "1001", Username: "captain"}}}
	r, sessions, _ := setupAuthTestRouter(t, pipeline)

	login := httptest.NewRecorder()
	r.ServeHTTP(login, httptest.NewRequest(http.MethodGet, "/auth/discord/callback?code=x", nil))

	req := httptest.NewRequest(http.MethodGet, "/logout", nil)
	for _, cookie := range login.Result().Cookies() {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusTemporaryRedirect || w.Header().Get("Location") != "/" {
		t.Fatalf("expected redirect to /, got %d %q", w.Code, w.Header().Get("Location"))
	}

	cookies := w.Result().Cookies()
	if len(cookies) == 0 || cookies[0].MaxAge >= 0 {
		t.Fatalf("expected an expired session cookie, got %v", cookies)
	}

	after := httptest.NewRequest(http.MethodGet, "/admin", nil)
	after.AddCookie(cookies[0])
	if _, ok := sessions.Load(after).(auth.Anonymous); !ok {
		t.Error("expected anonymous session after logout")
	}
}

func TestFailureKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{err: auth.ErrTokenExchangeFailed, want: string(auth.TokenExchangeFailed)},
		{err: fmt.Errorf("wrapped: %w", auth.ErrRoleFetchFailed), want: string(auth.RoleFetchFailed)},
		{err: context.DeadlineExceeded, want: "timeout"},
		{err: errors.New("other"), want: "unknown"},
	}
	for _, tt := range tests {
		if got := failureKind(tt.err); got != tt.want {
			t.Errorf("failureKind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
