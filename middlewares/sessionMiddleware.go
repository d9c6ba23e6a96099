package middlewares

import (
	"context"
	"net/http"

	"bitbucket.org/pushfeedback/feedback_backend/utils"
	"github.com/gin-gonic/gin"
)

// SessionMiddleware validates the chat-gateway service token. Every API
// route except healthz requires it; the gateway is the only caller.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Request.Header.Get("token")
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		parsed, err := utils.JwtValidate(token)
		if err != nil || !parsed.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx := context.WithValue(c.Request.Context(), utils.ContextKeyToken, token)
		if claims, ok := parsed.Claims.(*utils.JwtCustomClaim); ok {
			ctx = utils.SetChatIdInContext(ctx, claims.ChatId)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
