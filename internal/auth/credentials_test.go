package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestCredentials(t *testing.T) *Credentials {
	t.Helper()
	c, err := NewCredentials("test-secret", time.Hour, bcrypt.MinCost)
	require.NoError(t, err)
	return c
}

func TestNewCredentials_RequiresSecret(t *testing.T) {
	_, err := NewCredentials("", time.Hour, 10)
	assert.Error(t, err)
}

func TestHashAndVerify(t *testing.T) {
	c := newTestCredentials(t)

	h1, err := c.Hash("password1")
	require.NoError(t, err)
	h2, err := c.Hash("password1")
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2, "salt must differ per call")
	assert.True(t, c.Verify("password1", h1))
	assert.True(t, c.Verify("password1", h2))
	assert.False(t, c.Verify("password2", h1))
	assert.False(t, c.Verify("password1", "not-a-hash"))
}

func TestValidateToken(t *testing.T) {
	c := newTestCredentials(t)

	token, err := c.IssueToken("user-1")
	require.NoError(t, err)

	claims, ok := c.ValidateToken(token)
	require.True(t, ok)
	assert.Equal(t, "user-1", claims.UserID)
	require.NotNil(t, claims.IssuedAt)
}

func TestValidateToken_ZeroTTLRejected(t *testing.T) {
	c := newTestCredentials(t)

	token, err := c.IssueTokenWithTTL("user-1", 0)
	require.NoError(t, err)

	_, ok := c.ValidateToken(token)
	assert.False(t, ok)
}

func TestValidateToken_TamperedSignature(t *testing.T) {
	c := newTestCredentials(t)

	token, err := c.IssueToken("user-1")
	require.NoError(t, err)

	// 修改签名段的第一个字符
	idx := strings.LastIndex(token, ".") + 1
	flipped := byte('A')
	if token[idx] == 'A' {
		flipped = 'B'
	}
	tampered := token[:idx] + string(flipped) + token[idx+1:]

	_, ok := c.ValidateToken(tampered)
	assert.False(t, ok)
}

func TestValidateToken_Rejects(t *testing.T) {
	c := newTestCredentials(t)
	other, err := NewCredentials("other-secret", time.Hour, bcrypt.MinCost)
	require.NoError(t, err)

	foreign, err := other.IssueToken("user-1")
	require.NoError(t, err)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: "user-1"}).
		SignedString([]byte("test-secret"))
	require.NoError(t, err)

	wrongAlg, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		UserID:           "user-1",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	noUser, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"malformed", "not.a.token"},
		{"foreign secret", foreign},
		{"missing exp", noExp},
		{"wrong alg", wrongAlg},
		{"missing user", noUser},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := c.ValidateToken(tt.token)
			assert.False(t, ok)
		})
	}
}
