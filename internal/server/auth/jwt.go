// Package auth holds the credential primitives of the chirp server: argon2id
// password hashing, the password policy, HS256 access tokens and opaque
// refresh secrets.
package auth

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dmitrijs2005/chirp/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims are the access-token claims. Subject carries the account id.
type Claims struct {
	jwt.RegisteredClaims
	Name  string `json:"name"`
	Email string `json:"email"`
}

// AccountClaims is the identity embedded into a new access token.
type AccountClaims struct {
	ID       string
	Username string
	Email    string
}

// VerifyOptions controls optional checks in Signer.Verify.
type VerifyOptions struct {
	CheckExpiry bool
}

// Signer issues and verifies HS256 access tokens bound to one issuer and
// audience.
type Signer struct {
	secret   []byte
	issuer   string
	audience string
	parser   *jwt.Parser
	now      func() time.Time
}

// NewSigner returns a Signer for the given HMAC secret. An empty secret is
// rejected.
func NewSigner(secret []byte, issuer, audience string) (*Signer, error) {
	if len(secret) == 0 {
		return nil, errors.New("jwt secret is empty")
	}
	return &Signer{
		secret:   slices.Clone(secret),
		issuer:   issuer,
		audience: audience,
		parser:   jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation()),
		now:      time.Now,
	}, nil
}

// SetClock replaces the time source. Intended for tests.
func (s *Signer) SetClock(now func() time.Time) {
	s.now = now
}

// Issue signs a token for the account valid for ttl. The returned expiry is
// the exp claim (second precision, UTC).
func (s *Signer) Issue(account AccountClaims, ttl time.Duration) (string, time.Time, error) {
	now := s.now()
	exp := jwt.NewNumericDate(now.Add(ttl))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID,
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: exp,
		},
		Name:  account.Username,
		Email: account.Email,
	})

	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return tokenString, exp.Time.UTC(), nil
}

// Verify checks the signature, the algorithm, the issuer and the audience of
// tokenString, and its expiry when opts.CheckExpiry is set. Every failure
// wraps common.ErrInvalidToken.
func (s *Signer) Verify(tokenString string, opts VerifyOptions) (*Claims, error) {
	claims := &Claims{}
	_, err := s.parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, common.ErrInvalidSignature
	}

	if claims.Issuer != s.issuer {
		return nil, common.ErrInvalidIssuer
	}
	if !slices.Contains(claims.Audience, s.audience) {
		return nil, common.ErrInvalidAudience
	}
	if opts.CheckExpiry {
		if claims.ExpiresAt == nil || !s.now().Before(claims.ExpiresAt.Time) {
			return nil, common.ErrTokenExpired
		}
	}
	return claims, nil
}
