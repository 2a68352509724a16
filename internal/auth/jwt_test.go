package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret-that-is-long-enough-for-hs256"

func TestParseToken(t *testing.T) {
	token, err := GenerateToken(42, secret, time.Hour)
	require.NoError(t, err)

	uid, err := ParseToken(token, secret)
	require.NoError(t, err)
	assert.Equal(t, 42, uid)
}

func TestParseToken_Rejects(t *testing.T) {
	expired, err := GenerateToken(42, secret, -time.Minute)
	require.NoError(t, err)

	wrongSecret, err := GenerateToken(42, "another-secret", time.Hour)
	require.NoError(t, err)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": 42}).SignedString([]byte(secret))
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"user_id": 42,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	noUser, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	tests := map[string]string{
		"expired":      expired,
		"wrong secret": wrongSecret,
		"no expiry":    noExp,
		"hs512":        hs512,
		"no user id":   noUser,
		"garbage":      "not.a.jwt",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseToken(token, secret)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestTokenFromRequest(t *testing.T) {
	t.Run("bearer header", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer abc")
		token, err := TokenFromRequest(r, false)
		require.NoError(t, err)
		assert.Equal(t, "abc", token)
	})

	t.Run("malformed header", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Basic abc")
		_, err := TokenFromRequest(r, false)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("cookie", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: CookieName, Value: "from-cookie"})
		token, err := TokenFromRequest(r, false)
		require.NoError(t, err)
		assert.Equal(t, "from-cookie", token)
	})

	t.Run("query only when allowed", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/ws?token=q", nil)
		_, err := TokenFromRequest(r, false)
		assert.ErrorIs(t, err, ErrMissingToken)

		token, err := TokenFromRequest(r, true)
		require.NoError(t, err)
		assert.Equal(t, "q", token)
	})
}
