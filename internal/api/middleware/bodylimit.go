package middleware

import (
	"math"
	"net/http"

	"github.com/gin-gonic/gin"
)

// multipartOverhead is allowance for form fields and part headers on top of
// the attachment bytes.
const multipartOverhead = 1 << 20

// BodyLimitMiddleware returns a Gin middleware that limits the size of request bodies.
// Reads past maxBytes fail, and handlers that surface the failure respond 413.
func BodyLimitMiddleware(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

// SubmissionBodyLimit sizes the body limit for a permit submission carrying
// up to maxFiles attachments of maxFileBytes each. The result saturates at
// math.MaxInt64 instead of overflowing.
func SubmissionBodyLimit(maxFileBytes int64, maxFiles int) int64 {
	if maxFileBytes <= 0 || maxFiles <= 0 {
		return multipartOverhead
	}
	if maxFileBytes > (math.MaxInt64-multipartOverhead)/int64(maxFiles) {
		return math.MaxInt64
	}
	return maxFileBytes*int64(maxFiles) + multipartOverhead
}
