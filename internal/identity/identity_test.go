package identity

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "veridata/pkg/domain"
	dErrors "veridata/pkg/domain-errors"
)

const signingKey = "test-signing-key"

func signToken(t *testing.T, key string, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return token
}

func TestCurrentUser(t *testing.T) {
	provider := NewProvider(signingKey)
	userID := uuid.New()

	t.Run("resolves user_id claim", func(t *testing.T) {
		token := signToken(t, signingKey, Claims{UserID: userID.String()})
		resolved, err := provider.CurrentUser(token)
		require.NoError(t, err)
		assert.Equal(t, id.UserID(userID), resolved)
	})

	t.Run("falls back to subject", func(t *testing.T) {
		token := signToken(t, signingKey, Claims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: userID.String()},
		})
		resolved, err := provider.CurrentUser(token)
		require.NoError(t, err)
		assert.Equal(t, id.UserID(userID), resolved)
	})

	t.Run("rejects a token signed with another key", func(t *testing.T) {
		token := signToken(t, "wrong-key", Claims{UserID: userID.String()})
		_, err := provider.CurrentUser(token)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeAuthorizationDenied))
	})

	t.Run("rejects an expired token", func(t *testing.T) {
		token := signToken(t, signingKey, Claims{
			UserID: userID.String(),
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			},
		})
		_, err := provider.CurrentUser(token)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeAuthorizationDenied))
	})

	t.Run("rejects a token with no usable identity", func(t *testing.T) {
		token := signToken(t, signingKey, Claims{})
		_, err := provider.CurrentUser(token)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeAuthorizationDenied))
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := provider.CurrentUser("not-a-token")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeAuthorizationDenied))
	})
}
