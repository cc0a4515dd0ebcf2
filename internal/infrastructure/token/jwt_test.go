package token

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/99minutos/identity-service/internal/core/domain"
)

func newTestSigner(t *testing.T) *Signer {
	t.Helper()
	s, err := NewSigner("test-secret", "identity-service")
	require.NoError(t, err)
	return s
}

func TestSigner_RoundTrip(t *testing.T) {
	s := newTestSigner(t)

	tok, err := s.Sign(domain.Claims{Subject: "user-1", Role: domain.RoleAdmin, Type: domain.TokenAccess}, time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, tok)

	assert.True(t, s.Verify(tok))

	claims, err := s.Decode(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, domain.RoleAdmin, claims.Role)
	assert.Equal(t, domain.TokenAccess, claims.Type)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, 2*time.Second)
}

func TestSigner_ExpiredTTL(t *testing.T) {
	s := newTestSigner(t)

	for _, ttl := range []time.Duration{0, -time.Minute} {
		tok, err := s.Sign(domain.Claims{Subject: "user-1", Role: domain.RoleUser}, ttl)
		require.NoError(t, err)
		assert.False(t, s.Verify(tok), "ttl %v must produce an invalid token", ttl)

		_, err = s.Decode(tok)
		assert.True(t, errors.Is(err, ErrInvalidToken))
	}
}

func TestSigner_ExpiresWithClock(t *testing.T) {
	s := newTestSigner(t)
	base := time.Now()
	s.now = func() time.Time { return base }

	tok, err := s.Sign(domain.Claims{Subject: "user-1", Role: domain.RoleUser}, time.Minute)
	require.NoError(t, err)
	assert.True(t, s.Verify(tok))

	s.now = func() time.Time { return base.Add(2 * time.Minute) }
	assert.False(t, s.Verify(tok))
}

func TestSigner_RejectsTamperedAndForeignTokens(t *testing.T) {
	s := newTestSigner(t)
	tok, _ := s.Sign(domain.Claims{Subject: "user-1", Role: domain.RoleUser}, time.Hour)

	other, _ := NewSigner("other-secret", "identity-service")
	assert.False(t, other.Verify(tok), "different secret")

	parts := strings.Split(tok, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]
	assert.False(t, s.Verify(tampered), "tampered payload")

	assert.False(t, s.Verify("not-a-token"))
	assert.False(t, s.Verify(""))
}

func TestSigner_RejectsAlgNone(t *testing.T) {
	s := newTestSigner(t)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "user-1",
		"iss": "identity-service",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	tok, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	assert.False(t, s.Verify(tok))
}

func TestSigner_TokensAreUnique(t *testing.T) {
	s := newTestSigner(t)
	claims := domain.Claims{Subject: "user-1", Role: domain.RoleUser}

	a, _ := s.Sign(claims, time.Hour)
	b, _ := s.Sign(claims, time.Hour)
	assert.NotEqual(t, a, b)
}

func TestNewSigner_EmptySecret(t *testing.T) {
	_, err := NewSigner("", "")
	assert.Error(t, err)
}
