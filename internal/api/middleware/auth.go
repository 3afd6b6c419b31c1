package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AhmedAbubaker98/GitInsight/internal/pkg/jwt"
	"github.com/AhmedAbubaker98/GitInsight/internal/pkg/response"
)

const (
	UserIDKey = "userID"

	bearerPrefix = "Bearer "
)

// bearerToken 从 Authorization 头提取 Bearer token
func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", false
	}
	return header[len(bearerPrefix):], true
}

// Auth 强制认证，历史记录等接口必须知道用户身份
func Auth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			response.AuthError(c, "请提供认证信息")
			c.Abort()
			return
		}

		claims, err := jwt.ParseToken(token, jwtSecret)
		if err != nil {
			response.AuthError(c, "认证失败或已过期")
			c.Abort()
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Next()
	}
}

// OptionalAuth 可选认证。游客也能提交分析和轮询状态，带合法 token
// 的请求额外获得历史记录关联；无效 token 按游客处理而不是拒绝。
func OptionalAuth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c); ok {
			if claims, err := jwt.ParseToken(token, jwtSecret); err == nil {
				c.Set(UserIDKey, claims.UserID)
			}
		}
		c.Next()
	}
}

// GetUserID 从上下文获取用户 ID
func GetUserID(c *gin.Context) (int64, bool) {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return 0, false
	}
	id, ok := userID.(int64)
	return id, ok
}
