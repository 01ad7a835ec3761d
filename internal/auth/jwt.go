package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"jackdaw/internal/support"
)

const tokenLifetime = 24 * time.Hour

var ErrInvalidToken = errors.New("auth: invalid token")

func jwtSecret() ([]byte, error) {
	secret := support.GetEnv("JWT_SECRET", "")
	if secret == "" {
		return nil, errors.New("auth: JWT_SECRET is not set")
	}
	return []byte(secret), nil
}

// GenerateJWT issues an HS256 token carrying the subject and role claims,
// valid for 24 hours.
func GenerateJWT(subject, role string) (string, error) {
	secret, err := jwtSecret()
	if err != nil {
		return "", err
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"iat":  now.Unix(),
		"exp":  now.Add(tokenLifetime).Unix(),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return token, nil
}

// ValidateJWT checks the signature and expiry and returns the claims.
func ValidateJWT(tokenString string) (jwt.MapClaims, error) {
	secret, err := jwtSecret()
	if err != nil {
		return nil, err
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
