package handlers

import (
	"testing"

	"github.com/MacJediWizard/aurospan/internal/api/middleware"
	"github.com/MacJediWizard/aurospan/internal/auth"
	"github.com/MacJediWizard/aurospan/internal/web"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestEngine returns an engine with the page templates loaded.
func newTestEngine(t *testing.T) *gin.Engine {
	t.Helper()
	tmpl, err := web.Templates()
	if err != nil {
		t.Fatalf("failed to parse templates: %v", err)
	}
	r := gin.New()
	r.SetHTMLTemplate(tmpl)
	return r
}

// withUser stands in for the auth guards.
func withUser(user *auth.SessionUser) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(string(middleware.UserContextKey), user)
		c.Next()
	}
}

func testUser() *auth.SessionUser {
	return &auth.SessionUser{
		ID:       "1001",
		Username: "captain",
		Avatar:   "a1b2",
		Roles:    []string{"role-admin"},
	}
}
