package auth

import (
	"fmt"
	"time"

	"chat-relay/errors"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "chat-relay"

// Claims defines the structure of the data stored inside the handshake token.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// TokenVerifier signs and checks HS256 tokens with a shared secret.
// A verifier without secret is disabled and lets every handshake through.
type TokenVerifier struct {
	secret []byte
}

func NewTokenVerifier(secret string) TokenVerifier {
	return TokenVerifier{secret: []byte(secret)}
}

func (v TokenVerifier) Enabled() bool {
	return len(v.secret) > 0
}

// GenerateToken creates a signed token for userID, mostly used by tools and tests.
func (v TokenVerifier) GenerateToken(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// Verify parses the token and returns the user id it carries.
func (v TokenVerifier) Verify(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil {
		return "", fmt.Errorf("%w: %w", errors.ErrUnauthorized, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return "", fmt.Errorf("%w: %w", errors.ErrUnauthorized, jwt.ErrTokenInvalidClaims)
	}
	return claims.UserID, nil
}
