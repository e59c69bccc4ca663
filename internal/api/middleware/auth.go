// Package middleware provides HTTP middleware for the permit office.
package middleware

import (
	"errors"
	"net/http"

	"github.com/MacJediWizard/aurospan/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// ContextKey is the type for context keys used by this package.
type ContextKey string

const (
	// SessionContextKey is the context key for the loaded session.
	SessionContextKey ContextKey = "session"
	// UserContextKey is the context key for the user admitted by a guard.
	UserContextKey ContextKey = "user"
)

// LoginPath is where unauthenticated visitors of login-only pages are sent.
const LoginPath = "/login"

// SessionMiddleware loads the session cookie into the Gin context. Invalid
// cookies load as an anonymous session.
func SessionMiddleware(sessions *auth.SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(string(SessionContextKey), sessions.Load(c.Request))
		c.Next()
	}
}

// GetSession returns the session loaded by SessionMiddleware, or Anonymous.
func GetSession(c *gin.Context) auth.Session {
	v, exists := c.Get(string(SessionContextKey))
	if !exists {
		return auth.Anonymous{}
	}
	s, ok := v.(auth.Session)
	if !ok || s == nil {
		return auth.Anonymous{}
	}
	return s
}

// GetUser retrieves the user admitted by LoginRequired or AdminRequired.
// Returns nil if no guard admitted the request.
func GetUser(c *gin.Context) *auth.SessionUser {
	v, exists := c.Get(string(UserContextKey))
	if !exists {
		return nil
	}
	user, ok := v.(*auth.SessionUser)
	if !ok {
		return nil
	}
	return user
}

// LoginRequired admits any authenticated session and sends everyone else to
// the login page with a 303.
func LoginRequired(logger zerolog.Logger) gin.HandlerFunc {
	log := logger.With().Str("component", "auth_middleware").Logger()

	return func(c *gin.Context) {
		user, err := auth.RequireLogin(GetSession(c))
		if err != nil {
			log.Debug().Str("path", c.Request.URL.Path).Msg("unauthenticated request")
			c.Redirect(http.StatusSeeOther, LoginPath)
			c.Abort()
			return
		}

		c.Set(string(UserContextKey), user)
		c.Next()
	}
}

// AdminRequired admits sessions holding an allowed guild role. Anonymous
// sessions get 401 and authenticated sessions without a role get 403.
func AdminRequired(allow auth.RoleAllowList, logger zerolog.Logger) gin.HandlerFunc {
	log := logger.With().Str("component", "auth_middleware").Logger()

	return func(c *gin.Context) {
		user, err := allow.RequireAdminRole(GetSession(c))
		switch {
		case err == nil:
		case errors.Is(err, auth.ErrInsufficientPermissions):
			log.Warn().
				Str("path", c.Request.URL.Path).
				Msg("admin route denied: no allowed role")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
			return
		default:
			log.Debug().Str("path", c.Request.URL.Path).Msg("unauthenticated admin request")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}

		log.Debug().
			Str("user_id", user.ID).
			Str("path", c.Request.URL.Path).
			Msg("admin request admitted")

		c.Set(string(UserContextKey), user)
		c.Next()
	}
}
