// Package auth validates the dashboard's session tokens. Tokens are issued
// by the external auth backend as HS256 JWTs carrying a numeric user_id.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CookieName is the cookie the dashboard stores its token in
const CookieName = "auth_token"

var (
	// ErrMissingToken is returned when a request carries no token.
	ErrMissingToken = errors.New("missing authentication token")

	// ErrInvalidToken is returned for malformed, expired or unsigned tokens.
	ErrInvalidToken = errors.New("invalid token")
)

// ParseToken validates tokenString and returns its user id
func ParseToken(tokenString, secret string) (int, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, ErrInvalidToken
	}
	uid, ok := claims["user_id"].(float64)
	if !ok || uid <= 0 {
		return 0, fmt.Errorf("%w: user_id claim missing", ErrInvalidToken)
	}
	return int(uid), nil
}

// TokenFromRequest extracts a token from the Authorization header, the
// auth cookie or, when allowQuery is set, the token query parameter.
func TokenFromRequest(r *http.Request, allowQuery bool) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			return "", fmt.Errorf("%w: invalid authorization header format", ErrInvalidToken)
		}
		return strings.TrimSpace(token), nil
	}
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value, nil
	}
	if allowQuery {
		if token := r.URL.Query().Get("token"); token != "" {
			return token, nil
		}
	}
	return "", ErrMissingToken
}

// GenerateToken signs a token for userID valid for ttl
func GenerateToken(userID int, secret string, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(ttl).Unix(),
	})
	return token.SignedString([]byte(secret))
}
