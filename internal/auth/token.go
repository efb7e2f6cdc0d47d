// Package auth issues and verifies the signed tokens that establish a
// per-connection identity for the HTTP API and the websocket notifier.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"trustlabel/internal/queue"
)

// Identity is the authenticated principal attached to a request or connection.
type Identity struct {
	UserID string
	Role   queue.Role
}

// ErrInvalidToken indicates a missing, malformed, expired, or forged token.
var ErrInvalidToken = errors.New("invalid authentication token")

const defaultTokenTTL = 24 * time.Hour

type claims struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Sign mints a token for the given identity using the shared HMAC secret.
func Sign(secret string, identity Identity, ttl time.Duration) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("auth secret is empty")
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UserID: identity.UserID,
		Role:   string(identity.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses a token and returns the identity it carries. Unknown roles
// fall back to consumer.
func Verify(secret, tokenString string) (Identity, error) {
	if strings.TrimSpace(tokenString) == "" {
		return Identity{}, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	var parsed claims
	_, err := jwt.ParseWithClaims(tokenString, &parsed, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if strings.TrimSpace(parsed.UserID) == "" {
		return Identity{}, fmt.Errorf("%w: missing user id", ErrInvalidToken)
	}

	role, ok := queue.ParseRole(parsed.Role)
	if !ok {
		role = queue.RoleConsumer
	}
	return Identity{UserID: parsed.UserID, Role: role}, nil
}

// FromAuthorizationHeader extracts the bearer token from an Authorization header.
func FromAuthorizationHeader(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return token, token != ""
}
