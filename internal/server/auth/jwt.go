// Package auth implements the identity core of Hipnode: credential
// verification for wallet proofs and password credentials, session token
// issuance and validation, and the cookie transport binding.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hipnode/hipnode/internal/common"
)

// Claims binds the session to its subject address and the issuing domain.
type Claims struct {
	jwt.RegisteredClaims
	Address string
}

// SessionIssuer mints and validates session tokens. The signing secret is a
// server-held credential, never shared with clients. There is no server-side
// revocation list: tokens are trusted until natural expiry.
type SessionIssuer struct {
	secret   []byte
	domain   string
	validity time.Duration
}

func NewSessionIssuer(secret []byte, domain string, validity time.Duration) *SessionIssuer {
	return &SessionIssuer{secret: secret, domain: domain, validity: validity}
}

// Issue signs a token with the address as subject, bound to the configured
// domain, valid from now until now+validity.
func (i *SessionIssuer) Issue(address string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.domain,
			Subject:   address,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.validity)),
		},
		Address: address,
	})

	tokenString, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}

	return tokenString, nil
}

// Validate checks signature, expiry and domain binding and returns the
// subject address. Every failure mode collapses to common.ErrSessionInvalid;
// callers must treat all of them as "not logged in".
func (i *SessionIssuer) Validate(tokenString string) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return i.secret, nil
	}, jwt.WithIssuer(i.domain))
	if err != nil || !token.Valid {
		return "", common.ErrSessionInvalid
	}

	if claims.Address == "" || claims.Address != claims.Subject {
		return "", common.ErrSessionInvalid
	}

	return claims.Address, nil
}
