package ports

import (
	"time"

	"github.com/99minutos/identity-service/internal/core/domain"
)

// PasswordHasher hashes and verifies passwords.
// Verify returns (false, nil) on mismatch and an error only when the stored hash is malformed.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
}

// TokenSigner issues and checks signed bearer tokens.
type TokenSigner interface {
	Sign(claims domain.Claims, ttl time.Duration) (string, error)
	// Verify fails closed: any invalid, expired or malformed token returns false.
	Verify(token string) bool
	// Decode returns the claims of a token after re-checking its signature and expiry.
	Decode(token string) (*domain.Claims, error)
}
