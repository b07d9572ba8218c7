package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jengzang/geo-dashboard/internal/auth"
	"github.com/jengzang/geo-dashboard/internal/logger"
	"github.com/jengzang/geo-dashboard/pkg/response"
)

// ClaimsKey is the gin context key of verified token claims.
const ClaimsKey = "auth.claims"

// RequireRole accepts requests bearing an HS256 token with role. secret is
// read per request; an empty secret disables the check.
func RequireRole(secret func() string, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := secret()
		if key == "" {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			response.Unauthorized(c, "missing bearer token")
			return
		}

		claims, err := auth.ParseToken(key, tokenString)
		if err != nil {
			logger.FromContext(c.Request.Context()).Warn("Rejected token", zap.Error(err))
			response.Unauthorized(c, "invalid token")
			return
		}
		if claims.Role != role {
			response.Forbidden(c, "insufficient role")
			return
		}

		c.Set(ClaimsKey, claims)
		c.Next()
	}
}
