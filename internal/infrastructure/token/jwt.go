// Package token signs and verifies HS256 JWT bearer tokens.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/99minutos/identity-service/internal/core/domain"
)

var ErrInvalidToken = errors.New("invalid token")

type jwtClaims struct {
	Role string           `json:"role"`
	Type domain.TokenType `json:"typ,omitempty"`
	jwt.RegisteredClaims
}

// Signer implements ports.TokenSigner with HMAC-SHA256.
type Signer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewSigner returns a Signer. The secret must not be empty.
func NewSigner(secret, issuer string) (*Signer, error) {
	if secret == "" {
		return nil, errors.New("token: empty signing secret")
	}
	return &Signer{secret: []byte(secret), issuer: issuer, now: time.Now}, nil
}

// Sign issues a token expiring at now+ttl. A zero or negative ttl yields an already expired token.
func (s *Signer) Sign(claims domain.Claims, ttl time.Duration) (string, error) {
	now := s.now()
	c := jwtClaims{
		Role: claims.Role,
		Type: claims.Type,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   claims.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *Signer) Verify(token string) bool {
	_, err := s.parse(token)
	return err == nil
}

func (s *Signer) Decode(token string) (*domain.Claims, error) {
	c, err := s.parse(token)
	if err != nil {
		return nil, err
	}

	claims := &domain.Claims{
		Subject: c.Subject,
		Role:    c.Role,
		Type:    c.Type,
	}
	if c.IssuedAt != nil {
		claims.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		claims.ExpiresAt = c.ExpiresAt.Time
	}
	return claims, nil
}

// parse is the single verification path: signature, algorithm, expiry and issuer.
func (s *Signer) parse(token string) (*jwtClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	claims := &jwtClaims{}
	tkn, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !tkn.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
