package jwttoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateToken(t *testing.T) {
	svc := NewService("test-secret", "fidotel", "fidotel-admin")

	token, err := svc.GenerateToken("ops@example.com", RoleAdmin, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", claims.Subject)
	assert.Equal(t, RoleAdmin, claims.Role)
}

func TestValidateTokenRejectsWrongKey(t *testing.T) {
	svc := NewService("test-secret", "fidotel", "fidotel-admin")
	other := NewService("other-secret", "fidotel", "fidotel-admin")

	token, err := svc.GenerateToken("ops@example.com", RoleAdmin, time.Hour)
	require.NoError(t, err)

	_, err = other.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	svc := NewService("test-secret", "fidotel", "fidotel-admin")

	token, err := svc.GenerateToken("ops@example.com", RoleAdmin, -time.Minute)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsWrongAudience(t *testing.T) {
	svc := NewService("test-secret", "fidotel", "fidotel-admin")
	other := NewService("test-secret", "fidotel", "another-service")

	token, err := other.GenerateToken("ops@example.com", RoleAdmin, time.Hour)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc := NewService("test-secret", "fidotel", "fidotel-admin")

	_, err := svc.ValidateToken("not-a-token")
	assert.Error(t, err)
}
