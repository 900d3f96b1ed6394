package http

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// IssueOperatorToken signs a token accepted by AuthMiddleware
func IssueOperatorToken(secret []byte, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Audience:  jwt.ClaimStrings{OperatorAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign operator token: %w", err)
	}
	return signed, nil
}
