package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const passwordChangeRequiredMessage = "password change required"

// RequirePasswordChangeCompletedMiddleware 阻止未完成改密的管理员访问业务接口。
// 仅依赖会话令牌内的 must_change_password 声明，避免每次请求都查库。
// 需挂在 AdminSessionMiddleware 之后；check、logout、change-password 不挂此中间件。
func RequirePasswordChangeCompletedMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if p, ok := PrincipalFromContext(c); ok && p.MustChangePassword {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":              passwordChangeRequiredMessage,
				"mustChangePassword": true,
			})
			return
		}
		c.Next()
	}
}
