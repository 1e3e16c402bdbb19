package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/julo/lendcore/internal/auth"
	"github.com/julo/lendcore/internal/http/response"
)

type SessionValidator interface {
	ValidateSession(ctx context.Context, sessionID string) error
}

// RequireAuth accepts the access token from the Authorization header or the
// access cookie. The session behind the token must still be live.
func RequireAuth(jwt *auth.JWTManager, sessions SessionValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			if cookie, err := c.Request.Cookie(auth.AccessCookieName); err == nil {
				token = cookie.Value
			}
		}
		if token == "" {
			response.Abort(c, http.StatusUnauthorized, "unauthorized")
			return
		}

		claims, err := jwt.Parse(token, auth.TokenAccess)
		if err != nil {
			response.Abort(c, http.StatusUnauthorized, "unauthorized")
			return
		}
		if sessions != nil {
			if err := sessions.ValidateSession(c.Request.Context(), claims.SessionID); err != nil {
				response.Abort(c, http.StatusUnauthorized, "session_expired")
				return
			}
		}

		c.Set("user_id", claims.UserID)
		c.Set("user_role", claims.Role)
		c.Set("session_id", claims.SessionID)
		c.Next()
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
