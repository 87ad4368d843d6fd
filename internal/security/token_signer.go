package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Claims struct {
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenSigner mints the opaque single-purpose tokens handed to users. The
// string is an HS256 JWT so forged or truncated values are rejected without
// a storage lookup; the stored record stays authoritative. The payload is
// readable by anyone holding the link, so it carries ids only.
type TokenSigner struct {
	issuer string
	secret []byte
}

func NewTokenSigner(issuer, secret string) *TokenSigner {
	return &TokenSigner{issuer: issuer, secret: []byte(secret)}
}

func (m *TokenSigner) Sign(userID, tokenType string, issuedAt, expiresAt time.Time) (string, error) {
	if tokenType == "" {
		return "", errors.New("token type is required")
	}
	claims := Claims{
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Parse checks signature, issuer, expiry at now and the token type.
func (m *TokenSigner) Parse(raw, tokenType string, now time.Time) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return nil, err
	}
	if !tok.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.TokenType != tokenType {
		return nil, fmt.Errorf("unexpected token type: %s", claims.TokenType)
	}
	return claims, nil
}
