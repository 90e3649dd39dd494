// Package auth issues and verifies the HS256 session tokens handed out at
// registration and login.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/taskkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the registered claims plus the owning user's id.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
}

// TokenIssuer signs and parses session tokens with a shared secret.
type TokenIssuer struct {
	secret   []byte
	issuer   string
	validity time.Duration
	now      func() time.Time
}

func NewTokenIssuer(secret []byte, issuer string, validity time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: secret, issuer: issuer, validity: validity, now: time.Now}
}

// Validity is the lifetime given to new tokens.
func (i *TokenIssuer) Validity() time.Duration { return i.validity }

// GenerateToken returns a signed token for userID that expires after the
// issuer's validity period.
func (i *TokenIssuer) GenerateToken(userID string) (string, error) {
	now := i.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.validity)),
		},
		UserID: userID,
	})

	s, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return s, nil
}

// UserIDFromToken verifies tokenString and returns the user id it carries.
// Expired tokens yield common.ErrTokenExpired; every other failure yields
// common.ErrInvalidToken.
func (i *TokenIssuer) UserIDFromToken(tokenString string) (string, error) {
	claims := &Claims{}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	}, opts...)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", common.ErrTokenExpired
	case err != nil, !token.Valid, claims.UserID == "":
		return "", common.ErrInvalidToken
	}

	return claims.UserID, nil
}
