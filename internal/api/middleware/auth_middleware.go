package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"jobgenie/internal/auth"
)

// 上下文键，handler 通过它们读取当前用户。
const (
	UserIDKey    = "userID"
	UserEmailKey = "userEmail"
)

// TokenValidator 校验访问令牌，*auth.AuthService 满足该接口。
type TokenValidator interface {
	ValidateToken(token string) (*auth.TokenClaims, error)
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
}

// BearerToken 从 Authorization 头取出令牌，格式不对时返回空串。
func BearerToken(c *gin.Context) string {
	parts := strings.Fields(c.GetHeader("Authorization"))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// AuthMiddleware 校验访问令牌并将 userID 注入上下文。
func AuthMiddleware(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		rawToken := BearerToken(c)
		if rawToken == "" {
			abortUnauthorized(c)
			return
		}

		claims, err := validator.ValidateToken(rawToken)
		if err != nil || claims.TokenType != auth.TokenTypeAccess || claims.UserID == 0 {
			abortUnauthorized(c)
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(UserEmailKey, claims.Email)
		c.Next()
	}
}
