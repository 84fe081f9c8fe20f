package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTManager_RoundTrip(t *testing.T) {
	m := NewJWTManager("secret", "storyloom")

	token, err := m.GenerateToken("u1", "writer", TokenTypeAccess, time.Hour)
	require.NoError(t, err)

	claims, err := m.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "writer", claims.Role)
	assert.Equal(t, TokenTypeAccess, claims.Type)
}

func TestJWTManager_Rejects(t *testing.T) {
	m := NewJWTManager("secret", "storyloom")

	expired, err := m.GenerateToken("u1", "", TokenTypeAccess, -2*time.Minute)
	require.NoError(t, err)
	_, err = m.ParseToken(expired)
	assert.ErrorIs(t, err, ErrExpiredToken)

	otherIssuer, err := NewJWTManager("secret", "elsewhere").GenerateToken("u1", "", TokenTypeAccess, time.Hour)
	require.NoError(t, err)
	_, err = m.ParseToken(otherIssuer)
	assert.ErrorIs(t, err, ErrInvalidToken)

	wrongKey, err := NewJWTManager("other", "storyloom").GenerateToken("u1", "", TokenTypeAccess, time.Hour)
	require.NoError(t, err)
	_, err = m.ParseToken(wrongKey)
	assert.ErrorIs(t, err, ErrInvalidToken)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:           "u1",
		Type:             TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "storyloom"},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = m.ParseToken(noExp)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTManager_SubjectFallback(t *testing.T) {
	m := NewJWTManager("secret", "")

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Type: TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u-sub",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	claims, err := m.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-sub", claims.UserID)
}
