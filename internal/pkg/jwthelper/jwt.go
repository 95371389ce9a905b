package jwthelper

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	issuer   = "jobshadow-api"
	tokenTTL = 12 * time.Hour
)

var (
	ErrInvalidToken      = errors.New("invalid token")
	ErrUserAgentMismatch = errors.New("token was issued to another user agent")
)

type CustomClaims struct {
	jwt.RegisteredClaims
	UserID    uint   `json:"user_id"`
	UserAgent string `json:"user_agent"`
}

// GenerateToken signs an HS512 token bound to the caller's user agent.
func GenerateToken(key []byte, userID uint, userAgent string) (string, error) {
	now := time.Now()
	claims := CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.FormatUint(uint64(userID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
		UserID:    userID,
		UserAgent: userAgent,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("token.SignedString -> %w", err)
	}

	return signed, nil
}

func ParseToken(key []byte, tokenStr, userAgent string) (*CustomClaims, error) {
	claims := &CustomClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}), jwt.WithIssuer(issuer))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.UserAgent != userAgent {
		return nil, ErrUserAgentMismatch
	}

	return claims, nil
}
