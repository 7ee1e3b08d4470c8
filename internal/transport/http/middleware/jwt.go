package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"sam-assistant/internal/pkg/jwtutil"
	"sam-assistant/internal/transport/http/response"
)

const (
	ContextOperatorIDKey   = "operator_id"
	ContextOperatorNameKey = "operator_name"
)

// AuthJWT admits requests that carry a valid operator bearer token.
func AuthJWT(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader == "" {
			response.Abort(c, http.StatusUnauthorized, "missing authorization header")
			return
		}

		const prefix = "Bearer "
		if !strings.HasPrefix(authHeader, prefix) {
			response.Abort(c, http.StatusUnauthorized, "invalid authorization scheme")
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, prefix))
		claims, err := jwtutil.ParseToken(secret, token)
		if err != nil {
			response.Abort(c, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		c.Set(ContextOperatorIDKey, claims.UserID)
		c.Set(ContextOperatorNameKey, claims.Username)
		c.Next()
	}
}

// OperatorID returns the id stored by AuthJWT.
func OperatorID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(ContextOperatorIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok && id != 0
}
