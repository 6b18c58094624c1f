// Package auth issues and parses the HS256 tokens used by the stateless
// session backend.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/formauth/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the standard registered claims plus the display name shown
// on the dashboard.
type Claims struct {
	jwt.RegisteredClaims
	DisplayName string `json:"name"`
}

// GenerateToken signs a token for displayName that expires after validity.
// tokenID becomes the jti claim.
func GenerateToken(tokenID, displayName string, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		DisplayName: displayName,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// GetDisplayNameFromToken validates tokenString and returns its display name.
// Expired tokens yield common.ErrTokenExpired, anything else that fails
// validation yields common.ErrInvalidToken.
func GetDisplayNameFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", common.ErrInvalidToken
	}

	if !token.Valid || claims.DisplayName == "" {
		return "", common.ErrInvalidToken
	}

	return claims.DisplayName, nil
}
