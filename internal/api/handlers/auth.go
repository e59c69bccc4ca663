package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/MacJediWizard/aurospan/internal/api/middleware"
	"github.com/MacJediWizard/aurospan/internal/auth"
	"github.com/MacJediWizard/aurospan/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// AuthorizationURLProvider builds the provider consent URL.
type AuthorizationURLProvider interface {
	AuthorizationURL() string
}

// LoginRunner turns an authorization code into an authenticated session.
type LoginRunner interface {
	Run(ctx context.Context, code string) (*auth.Authenticated, error)
}

// LoginRecorder records login outcomes.
type LoginRecorder interface {
	RecordLogin(result string)
}

// AuthHandler handles authentication-related HTTP endpoints.
type AuthHandler struct {
	provider AuthorizationURLProvider
	pipeline LoginRunner
	sessions *auth.SessionStore
	recorder LoginRecorder
	logger   zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(provider AuthorizationURLProvider, pipeline LoginRunner, sessions *auth.SessionStore, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		provider: provider,
		pipeline: pipeline,
		sessions: sessions,
		logger:   logger.With().Str("component", "auth_handler").Logger(),
	}
}

// SetRecorder sets the login outcome recorder.
func (h *AuthHandler) SetRecorder(r LoginRecorder) {
	h.recorder = r
}

// RegisterPublicRoutes registers the login flow routes.
func (h *AuthHandler) RegisterPublicRoutes(r gin.IRoutes) {
	r.GET("/login", h.Login)
	r.GET("/auth/discord/callback", h.Callback)
	r.GET("/logout", h.Logout)
}

// Login sends the visitor to the Discord consent screen. Nothing is stored.
// GET /login
func (h *AuthHandler) Login(c *gin.Context) {
	c.Redirect(http.StatusTemporaryRedirect, h.provider.AuthorizationURL())
}

// Callback completes the login started by Login. Every failure sends the
// visitor back to /login without touching the session.
// GET /auth/discord/callback
func (h *AuthHandler) Callback(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		h.logger.Warn().
			Str("provider_error", c.Query("error")).
			Msg("callback without authorization code")
		h.record(metrics.LoginMissingCode)
		c.Redirect(http.StatusTemporaryRedirect, "/login")
		return
	}

	authenticated, err := h.pipeline.Run(c.Request.Context(), code)
	if err != nil {
		h.logger.Warn().
			Err(err).
			Str("kind", failureKind(err)).
			Msg("login failed")
		h.record(metrics.LoginProviderError)
		c.Redirect(http.StatusTemporaryRedirect, "/login")
		return
	}

	if err := h.sessions.Establish(c.Request, c.Writer, authenticated); err != nil {
		h.logger.Error().Err(err).Str("user_id", authenticated.User.ID).Msg("failed to save session")
		h.record(metrics.LoginSessionError)
		renderError(c, http.StatusInternalServerError, "Your session could not be saved. Please try again.")
		return
	}

	h.logger.Info().
		Str("user_id", authenticated.User.ID).
		Str("username", authenticated.User.Username).
		Int("roles", len(authenticated.User.Roles)).
		Msg("user logged in")
	h.record(metrics.LoginSuccess)

	c.Redirect(http.StatusTemporaryRedirect, "/admin")
}

// Logout clears the session entirely.
// GET /logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if user, err := auth.RequireLogin(middleware.GetSession(c)); err == nil {
		h.logger.Info().Str("user_id", user.ID).Msg("user logging out")
	}

	if err := h.sessions.Clear(c.Request, c.Writer); err != nil {
		h.logger.Error().Err(err).Msg("failed to clear session")
		renderError(c, http.StatusInternalServerError, "Logout failed.")
		return
	}
	c.Redirect(http.StatusTemporaryRedirect, "/")
}

func (h *AuthHandler) record(result string) {
	if h.recorder != nil {
		h.recorder.RecordLogin(result)
	}
}

// failureKind names the failed login step for logs.
func failureKind(err error) string {
	var authErr *auth.AuthError
	if errors.As(err, &authErr) {
		return string(authErr.Kind)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "unknown"
}
