// Package middleware gin 中间件
package middleware

import (
	"net/http"

	"github.com/blues/trustfunds/internal/auth"
	"github.com/gin-gonic/gin"
)

const (
	// CookieName 会话令牌所在的 cookie
	CookieName = "token"
	// ContextUserID gin.Context 中保存当前用户ID的键
	ContextUserID = "userId"
)

// TokenValidator 校验会话令牌
type TokenValidator interface {
	ValidateToken(token string) (auth.Claims, bool)
}

// Session 校验 cookie 中的令牌，失败时一律返回 401
func Session(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(CookieName)
		if err != nil || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
			return
		}

		claims, ok := validator.ValidateToken(token)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid token"})
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Next()
	}
}

// UserID 获取当前登录用户ID，未登录时返回空字符串
func UserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}
