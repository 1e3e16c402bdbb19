package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/julo/lendcore/internal/http/response"
)

// RequestBodyLimit rejects bodies that declare a size above maxBytes and caps
// the rest while they are read. A non-positive limit disables the check.
func RequestBodyLimit(maxBytes int64) gin.HandlerFunc {
	if maxBytes <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			response.Abort(c, http.StatusRequestEntityTooLarge, "payload_too_large")
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
