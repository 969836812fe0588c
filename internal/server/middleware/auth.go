package middleware

import (
	"crypto/subtle"

	"knotstats/internal/shared/response"
	"knotstats/internal/shared/utils"

	"github.com/gin-gonic/gin"
)

// 认证域
const authRealm = "knotstats"

// BasicAuth 可选的HTTP基本认证中间件
// passwordHash 为空时不做认证，直接放行
func BasicAuth(username, passwordHash string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if passwordHash == "" {
			c.Next()
			return
		}

		user, password, ok := c.Request.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(user), []byte(username)) != 1 ||
			!utils.CheckPassword(password, passwordHash) {
			c.Header("WWW-Authenticate", `Basic realm="`+authRealm+`", charset="UTF-8"`)
			response.Unauthorized(c, "需要认证才能修改hosts文件")
			c.Abort()
			return
		}

		c.Set("username", user)
		c.Next()
	}
}
