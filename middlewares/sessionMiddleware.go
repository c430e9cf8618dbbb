package middlewares

import (
	"net/http"
	"strings"

	"bitbucket.org/mmdatafocus/contacts_backend/config"
	"bitbucket.org/mmdatafocus/contacts_backend/utils"
	"github.com/gin-gonic/gin"
)

func bearerToken(c *gin.Context) string {
	auth := c.Request.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return c.Request.Header.Get("token")
}

// SessionMiddleware resolves the caller from the request token. Tokens are
// JWTs but must also still be present in the redis session set, so a
// password change or logout revokes them before expiry.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.Next()
			return
		}

		parsed, err := utils.JwtValidate(token)
		if err != nil || !parsed.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		claims, ok := parsed.Claims.(*utils.JwtCustomClaim)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		username, exists, err := config.GetRedisValue("Token:" + token)
		if err != nil || !exists || username != claims.Username {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx := utils.SetTokenInContext(c.Request.Context(), token)
		ctx = utils.SetUsernameInContext(ctx, claims.Username)
		ctx = utils.SetUserIdInContext(ctx, claims.ID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireUser rejects requests that reached a protected route without a
// resolved session.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, ok := utils.GetUserIdFromContext(c.Request.Context())
		if !ok || userId == 0 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		c.Next()
	}
}
