package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// cspJSON is a strict Content-Security-Policy for JSON and plain-text responses.
const cspJSON = "default-src 'none'; frame-ancestors 'none'"

// cspPages is the Content-Security-Policy for rendered pages. Pages load only
// the embedded stylesheet and images served by this origin, plus Discord
// avatars on the admin pages.
const cspPages = "default-src 'self'; style-src 'self'; img-src 'self' data: https://cdn.discordapp.com; form-action 'self'; frame-ancestors 'none'"

// SecurityHeaders returns a middleware that sets security-related HTTP response headers.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Permissions-Policy", "geolocation=(), microphone=(), camera=()")

		// HSTS - only with TLS
		if c.Request.TLS != nil {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		if isMachineRoute(c.Request.URL.Path) {
			c.Header("Content-Security-Policy", cspJSON)
		} else {
			c.Header("Content-Security-Policy", cspPages)
		}

		c.Next()
	}
}

// isMachineRoute returns true for paths that never serve HTML.
func isMachineRoute(path string) bool {
	return path == "/health" ||
		strings.HasPrefix(path, "/health/") ||
		path == "/metrics" ||
		strings.HasPrefix(path, "/admin/server/")
}
