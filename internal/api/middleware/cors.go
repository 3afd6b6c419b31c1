package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AhmedAbubaker98/GitInsight/config"
)

// 前端只用到这几个方法和头，配置留空时作为默认值
var (
	defaultAllowedMethods = []string{"GET", "POST", "OPTIONS"}
	defaultAllowedHeaders = []string{"Content-Type", "Authorization"}
)

// CORS 跨域中间件。Origin 必须精确命中白名单；状态轮询调用频繁，
// 预检结果让浏览器缓存一天。
func CORS(cfg config.CORSConfig) gin.HandlerFunc {
	methods := cfg.AllowedMethods
	if len(methods) == 0 {
		methods = defaultAllowedMethods
	}
	headers := cfg.AllowedHeaders
	if len(headers) == 0 {
		headers = defaultAllowedHeaders
	}

	// 白名单查表和头部拼接在启动时做完，请求路径上不再重复
	allowedOrigins := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		allowedOrigins[origin] = true
	}
	allowMethods := strings.Join(methods, ", ")
	allowHeaders := strings.Join(headers, ", ")

	return func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); allowedOrigins[origin] {
			c.Header("Access-Control-Allow-Origin", origin)
		}

		c.Header("Access-Control-Allow-Methods", allowMethods)
		c.Header("Access-Control-Allow-Headers", allowHeaders)
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
