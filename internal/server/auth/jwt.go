// Package auth signs and checks the server signature attached to capability
// token responses, so a business backend can confirm a token was handed out
// by this service for a given user, app and room.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/rtcauth/internal/common"
)

// Issuer is the JWT "iss" claim of every server signature.
const Issuer = "rtcauth"

// Claims binds a capability token response to its user, app and room.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
	AppID  string `json:"app_id"`
	Room   string `json:"room"`
}

// SignResponse returns an HS256 JWT over userID, appID and room issued at
// issuedAt and valid for ttl.
func SignResponse(userID, appID, room string, issuedAt time.Time, ttl time.Duration, secretKey []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
		UserID: userID,
		AppID:  appID,
		Room:   room,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseSignature verifies tokenString with secretKey and returns its claims.
// Expired signatures yield common.ErrTokenExpired; anything else that fails
// verification is common.ErrInvalidToken.
func ParseSignature(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
