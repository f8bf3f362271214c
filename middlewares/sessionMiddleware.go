package middlewares

import (
	"net/http"
	"strings"

	"github.com/campuslab/lostfound_backend/config"
	"github.com/campuslab/lostfound_backend/utils"
	"github.com/gin-gonic/gin"
)

func extractToken(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return strings.TrimSpace(auth)
	}
	return strings.TrimSpace(c.GetHeader("token"))
}

// SessionMiddleware resolves the caller's identity from the request token.
// The Redis session entry written at login is the fast path; when Redis is
// down or the entry expired, the JWT itself still authenticates the caller.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		ctx = utils.SetTokenInContext(ctx, token)

		username, found, err := config.GetRedisValue("Token:" + token)
		if err == nil && found && username != "" {
			ctx = utils.SetUsernameInContext(ctx, username)
		}

		if parsed, err := utils.JwtValidate(token); err == nil && parsed.Valid {
			if claim, ok := parsed.Claims.(*utils.JwtCustomClaim); ok {
				ctx = utils.SetUsernameInContext(ctx, claim.Username)
				ctx = utils.SetUserIdInContext(ctx, claim.ID)
			}
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireSession rejects requests that did not authenticate.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := utils.GetUsernameFromContext(c.Request.Context()); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"kind": utils.KindUnauthorized, "message": "authentication required"},
			})
			return
		}
		c.Next()
	}
}
