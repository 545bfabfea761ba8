package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"jobBoard/internal/auth"
)

const principalKey = "adminPrincipal"

// SessionParser 解析会话令牌。
type SessionParser interface {
	ParseSession(token string) (*auth.Principal, error)
}

// RevocationChecker 判断会话是否已注销。
type RevocationChecker interface {
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
}

// AdminSessionMiddleware 要求请求携带有效的管理员会话。
// 令牌优先取 Cookie，其次取 Authorization: Bearer。
func AdminSessionMiddleware(sessions SessionParser, revocations RevocationChecker, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := SessionToken(c, cookieName)
		if raw == "" {
			abortUnauthorized(c)
			return
		}

		principal, err := sessions.ParseSession(raw)
		if err != nil || !principal.IsStaff {
			abortUnauthorized(c)
			return
		}

		revoked, err := revocations.IsRevoked(c.Request.Context(), principal.SessionID)
		if err != nil {
			LoggerFromContext(c).Error("session revocation lookup failed", "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if revoked {
			abortUnauthorized(c)
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

// SessionToken 从 Cookie 或 Authorization 头中取出会话令牌。
func SessionToken(c *gin.Context, cookieName string) string {
	if token, err := c.Cookie(cookieName); err == nil && strings.TrimSpace(token) != "" {
		return strings.TrimSpace(token)
	}
	parts := strings.Fields(c.GetHeader("Authorization"))
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1]
	}
	return ""
}

// PrincipalFromContext 返回当前请求的管理员身份。
func PrincipalFromContext(c *gin.Context) (*auth.Principal, bool) {
	value, ok := c.Get(principalKey)
	if !ok {
		return nil, false
	}
	p, ok := value.(*auth.Principal)
	return p, ok && p != nil
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "authenticated": false})
}
