package middlewares

import (
	"net/http"

	"bitbucket.org/mmdatafocus/stockverify_backend/config"
	"bitbucket.org/mmdatafocus/stockverify_backend/utils"
	"github.com/gin-gonic/gin"
)

// SessionMiddleware resolves the session token against Redis and loads the
// username and the operator's warehouse into the request context. Requests
// without a token pass through; route handlers decide whether to require one.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Request.Header.Get("token")
		if token == "" {
			c.Next()
			return
		}
		username, exists, err := config.GetRedisValue("Token:" + token)
		if err != nil || !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx := utils.SetTokenInContext(c.Request.Context(), token)
		ctx = utils.SetUsernameInContext(ctx, username)
		if wh := c.GetHeader("warehouse"); wh != "" {
			ctx = utils.SetWarehouseInContext(ctx, wh)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
