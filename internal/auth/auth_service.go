package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Principal 表示已认证的管理员身份，由会话令牌解析得到。
type Principal struct {
	UserID             uint
	Username           string
	IsStaff            bool
	MustChangePassword bool
	SessionID          string
	ExpiresAt          time.Time
}

// SessionClaims 是会话 JWT 中的业务字段。
type SessionClaims struct {
	UserID             uint   `json:"user_id"`
	Username           string `json:"username"`
	IsStaff            bool   `json:"is_staff"`
	MustChangePassword bool   `json:"must_change_password"`
	jwt.RegisteredClaims
}

// AuthService 负责签发与校验管理员会话令牌。
type AuthService struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	sessionTTL time.Duration
	now        func() time.Time
}

// NewAuthService 解析 PEM 密钥并构造服务实例。
func NewAuthService(privateKeyPEM, publicKeyPEM []byte, sessionTTL time.Duration) (*AuthService, error) {
	if len(privateKeyPEM) == 0 {
		return nil, errors.New("private key pem is required")
	}
	if len(publicKeyPEM) == 0 {
		return nil, errors.New("public key pem is required")
	}
	if sessionTTL <= 0 {
		return nil, errors.New("session ttl must be positive")
	}

	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse rsa private key: %w", err)
	}
	publicKey, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse rsa public key: %w", err)
	}

	return &AuthService{
		privateKey: privateKey,
		publicKey:  publicKey,
		sessionTTL: sessionTTL,
		now:        time.Now,
	}, nil
}

// IssueSession 为管理员创建新的会话令牌，返回令牌与对应的 Principal。
func (s *AuthService) IssueSession(userID uint, username string, isStaff, mustChangePassword bool) (string, Principal, error) {
	now := s.now()
	expiresAt := now.Add(s.sessionTTL)
	sessionID := uuid.NewString()

	claims := SessionClaims{
		UserID:             userID,
		Username:           username,
		IsStaff:            isStaff,
		MustChangePassword: mustChangePassword,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			ID:        sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(s.privateKey)
	if err != nil {
		return "", Principal{}, fmt.Errorf("sign token: %w", err)
	}

	return signed, principalFromClaims(&claims), nil
}

// ParseSession 解析并验证会话令牌。
func (s *AuthService) ParseSession(tokenString string) (*Principal, error) {
	if tokenString == "" {
		return nil, errors.New("token string is empty")
	}

	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodRS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return s.publicKey, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.ID == "" {
		return nil, errors.New("token missing session id")
	}

	p := principalFromClaims(claims)
	return &p, nil
}

// SessionTTL 暴露会话有效期。
func (s *AuthService) SessionTTL() time.Duration {
	return s.sessionTTL
}

func principalFromClaims(claims *SessionClaims) Principal {
	p := Principal{
		UserID:             claims.UserID,
		Username:           claims.Username,
		IsStaff:            claims.IsStaff,
		MustChangePassword: claims.MustChangePassword,
		SessionID:          claims.ID,
	}
	if claims.ExpiresAt != nil {
		p.ExpiresAt = claims.ExpiresAt.Time
	}
	return p
}
