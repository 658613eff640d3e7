// Package auth 密码哈希与会话令牌
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Claims 会话令牌内容
type Claims struct {
	UserID string `json:"id"`
	jwt.RegisteredClaims
}

// Credentials 密码与令牌服务
type Credentials struct {
	secret []byte
	ttl    time.Duration
	cost   int
}

// NewCredentials 创建凭证服务，cost 非法时使用 bcrypt 默认值
func NewCredentials(secret string, ttl time.Duration, cost int) (*Credentials, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Credentials{secret: []byte(secret), ttl: ttl, cost: cost}, nil
}

// TTL 令牌有效期
func (c *Credentials) TTL() time.Duration {
	return c.ttl
}

// Hash 生成密码哈希，每次调用使用新的盐
func (c *Credentials) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), c.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Verify 校验密码
func (c *Credentials) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// IssueToken 签发令牌，使用默认有效期
func (c *Credentials) IssueToken(userID string) (string, error) {
	return c.IssueTokenWithTTL(userID, c.ttl)
}

// IssueTokenWithTTL 签发指定有效期的令牌
func (c *Credentials) IssueTokenWithTTL(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})

	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken 校验令牌，任何异常都返回 false
func (c *Credentials) ValidateToken(tokenString string) (Claims, bool) {
	claims := Claims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid || claims.UserID == "" {
		return Claims{}, false
	}
	return claims, true
}
