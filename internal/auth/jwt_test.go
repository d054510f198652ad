package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTManager_GenerateAndValidate(t *testing.T) {
	mgr := NewJWTManager("admin-secret-32-chars-long!!!!!!", 15*time.Minute)

	t.Run("generate and validate access token", func(t *testing.T) {
		token, err := mgr.Generate()
		require.NoError(t, err)
		assert.NotEmpty(t, token.AccessToken)
		assert.Equal(t, int64(900), token.ExpiresIn)

		claims, err := mgr.ValidateAccessToken(token.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "admin", claims.Subject)
	})

	t.Run("invalid token fails validation", func(t *testing.T) {
		_, err := mgr.ValidateAccessToken("invalid-token")
		assert.Error(t, err)
	})

	t.Run("token signed with other secret fails", func(t *testing.T) {
		other := NewJWTManager("another-secret-32-chars-long!!!!", 15*time.Minute)
		token, err := other.Generate()
		require.NoError(t, err)

		_, err = mgr.ValidateAccessToken(token.AccessToken)
		assert.Error(t, err)
	})

	t.Run("expired token fails", func(t *testing.T) {
		shortMgr := NewJWTManager("admin-secret-32-chars-long!!!!!!", -1*time.Second)
		token, err := shortMgr.Generate()
		require.NoError(t, err)

		_, err = shortMgr.ValidateAccessToken(token.AccessToken)
		assert.Error(t, err)
	})
}
