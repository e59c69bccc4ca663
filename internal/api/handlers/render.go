// Package handlers provides HTTP handlers for the permit office.
package handlers

import (
	"net/http"

	"github.com/MacJediWizard/aurospan/internal/api/middleware"
	"github.com/MacJediWizard/aurospan/internal/auth"
	"github.com/gin-gonic/gin"
)

// pageData adds the page title and the signed-in user, if any, to template data.
func pageData(c *gin.Context, title string, data gin.H) gin.H {
	if data == nil {
		data = gin.H{}
	}
	data["Title"] = title
	if user := middleware.GetUser(c); user != nil {
		data["User"] = user
	} else if user, err := auth.RequireLogin(middleware.GetSession(c)); err == nil {
		data["User"] = user
	}
	return data
}

// NotFound renders the 404 page for unmatched routes.
func NotFound(c *gin.Context) {
	renderError(c, http.StatusNotFound, "Page not found")
}

// renderError renders the error page with the given status.
func renderError(c *gin.Context, status int, message string) {
	c.HTML(status, "error.html", pageData(c, http.StatusText(status), gin.H{
		"Status":  status,
		"Message": message,
	}))
}
