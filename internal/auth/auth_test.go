package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-backend/internal/metadata"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	user := &metadata.UserContext{
		ID: "7", Email: "ana@library.test",
		Roles: []string{"cataloger"}, Permissions: []string{"catalog.store", "enum.index"},
	}

	token, err := GenerateAccessToken(user, "secret")
	require.NoError(t, err)

	claims, err := ParseAccessToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, user, claims.UserContext())
	assert.WithinDuration(t, time.Now().Add(AccessTokenTTL), claims.ExpiresAt.Time, 5*time.Second)
}

func TestParseAccessToken_Rejects(t *testing.T) {
	user := &metadata.UserContext{ID: "1", Roles: []string{"admin"}}
	token, err := GenerateAccessToken(user, "secret")
	require.NoError(t, err)

	_, err = ParseAccessToken(token, "other-secret")
	assert.Error(t, err, "wrong secret")

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	signed, err := expired.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = ParseAccessToken(signed, "secret")
	assert.Error(t, err, "expired token")

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ParseAccessToken(unsigned, "secret")
	assert.Error(t, err, "alg none")
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("changeme")
	require.NoError(t, err)
	assert.NotEqual(t, "changeme", hash)
	assert.True(t, CheckPassword("changeme", hash))
	assert.False(t, CheckPassword("changeme!", hash))
}

func TestGenerateRefreshToken_Unique(t *testing.T) {
	a, b := GenerateRefreshToken(), GenerateRefreshToken()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}
