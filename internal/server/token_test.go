package server

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestIssueToken(t *testing.T) {
	t.Parallel()

	raw, err := IssueToken("secret", "game-server", time.Hour)
	require.NoError(t, err)

	parsed, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(*jwt.Token) (any, error) {
		return []byte("secret"), nil
	})
	require.NoError(t, err)
	require.True(t, parsed.Valid)

	claims := parsed.Claims.(*jwt.RegisteredClaims)
	require.Equal(t, "game-server", claims.Subject)
	require.NotEmpty(t, claims.ID)
	require.NotNil(t, claims.ExpiresAt)
	require.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestIssueTokenNoExpiry(t *testing.T) {
	t.Parallel()

	raw, err := IssueToken("secret", "ops", 0)
	require.NoError(t, err)

	parsed, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(*jwt.Token) (any, error) {
		return []byte("secret"), nil
	})
	require.NoError(t, err)
	claims := parsed.Claims.(*jwt.RegisteredClaims)
	require.Nil(t, claims.ExpiresAt)
}

func TestIssueTokenRequiresSecret(t *testing.T) {
	t.Parallel()

	_, err := IssueToken("", "game-server", time.Hour)
	require.Error(t, err)
}

func TestIssueTokenWrongKeyRejected(t *testing.T) {
	t.Parallel()

	raw, err := IssueToken("secret", "game-server", time.Hour)
	require.NoError(t, err)

	_, err = jwt.Parse(raw, func(*jwt.Token) (any, error) {
		return []byte("other"), nil
	})
	require.Error(t, err)
}
