package auth_test

import (
	"testing"
	"time"

	"github.com/academvault/discussions/pkg/auth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTManager_RoundTrip(t *testing.T) {
	m := auth.NewJWTManager("secret", "academvault", time.Hour)
	id := uuid.New()

	token, err := m.GenerateToken(id, "user2")
	require.NoError(t, err)

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, id, claims.UserID)
	assert.Equal(t, "user2", claims.Name)
}

func TestJWTManager_Rejects(t *testing.T) {
	m := auth.NewJWTManager("secret", "academvault", time.Hour)
	id := uuid.New()

	otherSecret, err := auth.NewJWTManager("other", "academvault", time.Hour).GenerateToken(id, "x")
	require.NoError(t, err)
	otherIssuer, err := auth.NewJWTManager("secret", "someone-else", time.Hour).GenerateToken(id, "x")
	require.NoError(t, err)
	expired, err := auth.NewJWTManager("secret", "academvault", -time.Minute).GenerateToken(id, "x")
	require.NoError(t, err)

	for name, token := range map[string]string{
		"wrong secret": otherSecret,
		"wrong issuer": otherIssuer,
		"expired":      expired,
		"garbage":      "not-a-token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := m.ValidateToken(token)
			assert.Error(t, err)
		})
	}
}
