package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"jobBoard/internal/api/middleware"
	"jobBoard/internal/auth"
	"jobBoard/internal/database"
	"jobBoard/internal/errcode"
)

const invalidCredentialsMessage = "Invalid credentials or not authorized"

// LoginPolicy 描述登录限流与锁定参数。
type LoginPolicy struct {
	RateLimitPerHour  int
	LockThreshold     int
	LockTTL           time.Duration
	MinPasswordLength int
}

// AuthHandler 处理管理员登录、退出、会话检查与改密。
type AuthHandler struct {
	db           *gorm.DB
	authService  *auth.AuthService
	revocations  *auth.RevocationList
	redis        redis.UniversalClient
	policy       LoginPolicy
	cookieName   string
	cookieDomain string
}

// NewAuthHandler 构造认证处理器。
func NewAuthHandler(db *gorm.DB, authService *auth.AuthService, revocations *auth.RevocationList, redisClient redis.UniversalClient, policy LoginPolicy, cookieName, cookieDomain string) *AuthHandler {
	if policy.RateLimitPerHour <= 0 {
		policy.RateLimitPerHour = 10
	}
	if policy.LockThreshold <= 0 {
		policy.LockThreshold = 5
	}
	if policy.LockTTL <= 0 {
		policy.LockTTL = 15 * time.Minute
	}
	if policy.MinPasswordLength <= 0 {
		policy.MinPasswordLength = 8
	}
	return &AuthHandler{
		db:           db,
		authService:  authService,
		revocations:  revocations,
		redis:        redisClient,
		policy:       policy,
		cookieName:   cookieName,
		cookieDomain: cookieDomain,
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login 校验口令与 staff 身份，成功后写入会话 Cookie。
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errcode.Invalid(errcode.ReasonMalformed, "Invalid request body"))
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	var missing []string
	if req.Username == "" {
		missing = append(missing, "username")
	}
	if req.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		respondError(c, errcode.MissingFields(missing...))
		return
	}

	ctx := c.Request.Context()
	username := strings.ToLower(req.Username)
	logger := middleware.LoggerFromContext(c).With(slog.String("username", username))

	// 速率限制：每 IP+用户名 每小时 N 次
	rateKey := "rate:login:" + c.ClientIP() + ":" + username + ":" + time.Now().UTC().Format("2006010215")
	count, err := incrWithTTL(ctx, h.redis, rateKey, time.Hour)
	if err != nil {
		logger.Warn("login rate counter unavailable", slog.Any("error", err))
		count = 0
	}
	if count > int64(h.policy.RateLimitPerHour) {
		Error(c, http.StatusTooManyRequests, "Too many login attempts, try again later")
		return
	}

	// 锁定检查
	if ttl, _ := h.redis.TTL(ctx, loginLockKey(username)).Result(); ttl > 0 {
		Error(c, http.StatusTooManyRequests, "Account temporarily locked")
		return
	}

	var user database.AdminUser
	if err := h.db.WithContext(ctx).Where("LOWER(username) = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Info("login failed: user not found")
			h.incrementLoginFail(ctx, username)
			Error(c, http.StatusUnauthorized, invalidCredentialsMessage)
			return
		}
		respondError(c, fmt.Errorf("login lookup: %w", err))
		return
	}

	if !auth.CheckPasswordHash(req.Password, user.PasswordHash) || !user.IsStaff {
		logger.Info("login failed: bad password or not staff", slog.Uint64("user_id", uint64(user.ID)))
		h.incrementLoginFail(ctx, username)
		Error(c, http.StatusUnauthorized, invalidCredentialsMessage)
		return
	}

	// 登录成功：清理失败计数
	_ = h.redis.Del(ctx, loginFailKey(username)).Err()

	if err := h.issueSession(c, &user); err != nil {
		respondError(c, err)
		return
	}
	logger.Info("admin logged in", slog.Uint64("user_id", uint64(user.ID)))
	c.JSON(http.StatusOK, gin.H{
		"success":            true,
		"message":            "Login successful",
		"username":           user.Username,
		"mustChangePassword": user.MustChangePassword,
	})
}

// Logout 注销当前会话并清除 Cookie。
func (h *AuthHandler) Logout(c *gin.Context) {
	principal, ok := middleware.PrincipalFromContext(c)
	if !ok {
		Unauthorized(c)
		return
	}
	if err := h.revocations.Revoke(c.Request.Context(), principal.SessionID, principal.ExpiresAt); err != nil {
		respondError(c, fmt.Errorf("revoke session: %w", err))
		return
	}
	h.clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out"})
}

// Check 返回当前会话信息；未登录时由中间件返回 401。
func (h *AuthHandler) Check(c *gin.Context) {
	principal, ok := middleware.PrincipalFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"authenticated": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"authenticated":      true,
		"username":           principal.Username,
		"mustChangePassword": principal.MustChangePassword,
	})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

// ChangePassword 校验当前密码并更新为新密码，随后轮换会话。
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	principal, ok := middleware.PrincipalFromContext(c)
	if !ok {
		Unauthorized(c)
		return
	}

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errcode.Invalid(errcode.ReasonMalformed, "Invalid request body"))
		return
	}
	var missing []string
	if req.CurrentPassword == "" {
		missing = append(missing, "currentPassword")
	}
	if req.NewPassword == "" {
		missing = append(missing, "newPassword")
	}
	if len(missing) > 0 {
		respondError(c, errcode.MissingFields(missing...))
		return
	}
	if req.ConfirmPassword != "" && req.ConfirmPassword != req.NewPassword {
		respondError(c, errcode.Invalid(errcode.ReasonMalformed, "Password confirmation does not match", "confirmPassword"))
		return
	}
	if len(req.NewPassword) < h.policy.MinPasswordLength {
		respondError(c, errcode.Invalid(errcode.ReasonWeakPassword,
			fmt.Sprintf("New password must be at least %d characters", h.policy.MinPasswordLength), "newPassword"))
		return
	}
	if req.NewPassword == req.CurrentPassword {
		respondError(c, errcode.Invalid(errcode.ReasonWeakPassword, "New password must be different from current password", "newPassword"))
		return
	}

	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c).With(slog.Uint64("user_id", uint64(principal.UserID)))

	var user database.AdminUser
	if err := h.db.WithContext(ctx).First(&user, principal.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			Unauthorized(c)
			return
		}
		respondError(c, fmt.Errorf("change password lookup: %w", err))
		return
	}
	if !auth.CheckPasswordHash(req.CurrentPassword, user.PasswordHash) {
		logger.Info("change password: current password mismatch")
		respondError(c, errcode.Invalid(errcode.ReasonMalformed, "Current password is incorrect", "currentPassword"))
		return
	}

	hashed, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.db.WithContext(ctx).Model(&user).Updates(map[string]any{
		"password_hash":        hashed,
		"must_change_password": false,
	}).Error; err != nil {
		respondError(c, fmt.Errorf("change password update: %w", err))
		return
	}
	user.MustChangePassword = false

	if err := h.revocations.Revoke(ctx, principal.SessionID, principal.ExpiresAt); err != nil {
		respondError(c, fmt.Errorf("revoke session: %w", err))
		return
	}
	if err := h.issueSession(c, &user); err != nil {
		respondError(c, err)
		return
	}

	logger.Info("admin password changed")
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Password changed successfully"})
}

func (h *AuthHandler) issueSession(c *gin.Context, user *database.AdminUser) error {
	token, principal, err := h.authService.IssueSession(user.ID, user.Username, user.IsStaff, user.MustChangePassword)
	if err != nil {
		return fmt.Errorf("issue session: %w", err)
	}
	maxAge := int(time.Until(principal.ExpiresAt).Seconds())
	if maxAge <= 0 {
		maxAge = int(h.authService.SessionTTL().Seconds())
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     h.cookieName,
		Value:    token,
		MaxAge:   maxAge,
		Path:     "/",
		Secure:   isHTTPSRequest(c),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Domain:   strings.TrimSpace(h.cookieDomain),
		Expires:  principal.ExpiresAt,
	})
	return nil
}

func (h *AuthHandler) clearSessionCookie(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     h.cookieName,
		Value:    "",
		MaxAge:   -1,
		Path:     "/",
		Secure:   isHTTPSRequest(c),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Domain:   strings.TrimSpace(h.cookieDomain),
	})
}

func (h *AuthHandler) incrementLoginFail(ctx context.Context, username string) {
	count, err := incrWithTTL(ctx, h.redis, loginFailKey(username), h.policy.LockTTL)
	if err != nil {
		return
	}
	if count >= int64(h.policy.LockThreshold) {
		_ = h.redis.Set(ctx, loginLockKey(username), "1", h.policy.LockTTL).Err()
	}
}

func loginLockKey(username string) string { return "lock:login:" + username }
func loginFailKey(username string) string { return "lock:login:fail:" + username }

func isHTTPSRequest(c *gin.Context) bool {
	if c.Request == nil {
		return false
	}
	if c.Request.TLS != nil {
		return true
	}
	return strings.EqualFold(c.Request.Header.Get("X-Forwarded-Proto"), "https")
}
