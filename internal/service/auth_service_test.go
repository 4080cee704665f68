package service

import (
	"testing"
	"time"

	"github.com/stemsi/exstem-delivery/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthService_RoundTrip(t *testing.T) {
	svc := NewAuthService(&config.Config{JWTSecret: "secret", JWTExpiry: time.Hour})

	token, err := svc.GenerateToken(TokenTypeAdmin, "admin-1", []string{"attempts:review"})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin-1", claims.Subject)
	assert.Equal(t, TokenTypeAdmin, claims.TokenType)
	assert.True(t, claims.HasPermission("attempts:review"))
	assert.False(t, claims.HasPermission("templates:refresh"))
}

func TestAuthService_Rejects(t *testing.T) {
	svc := NewAuthService(&config.Config{JWTSecret: "secret", JWTExpiry: time.Hour})
	other := NewAuthService(&config.Config{JWTSecret: "other", JWTExpiry: time.Hour})

	token, err := other.GenerateToken(TokenTypeStudent, "student-1", nil)
	require.NoError(t, err)
	_, err = svc.ValidateToken(token)
	assert.Error(t, err)

	_, err = svc.GenerateToken(TokenTypeStudent, "", nil)
	assert.Error(t, err)

	expired := NewAuthService(&config.Config{JWTSecret: "secret", JWTExpiry: -time.Minute})
	token, err = expired.GenerateToken(TokenTypeStudent, "student-1", nil)
	require.NoError(t, err)
	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}
