package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/julo/lendcore/internal/http/response"
)

func RequireRole(allowed ...string) gin.HandlerFunc {
	allowedSet := map[string]struct{}{}
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *gin.Context) {
		role := c.GetString("user_role")
		if role == "" {
			response.Abort(c, http.StatusForbidden, "forbidden")
			return
		}
		if _, found := allowedSet[role]; !found {
			response.Abort(c, http.StatusForbidden, "forbidden")
			return
		}
		c.Next()
	}
}
