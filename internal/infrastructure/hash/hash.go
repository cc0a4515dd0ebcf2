// Package hash provides the password hashing variants used for stored credentials.
package hash

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/99minutos/identity-service/internal/core/ports"
)

const (
	AlgorithmArgon2ID = "argon2id"
	AlgorithmBcrypt   = "bcrypt"
)

// New returns the hasher for algorithm. An empty name selects argon2id.
func New(algorithm string) (ports.PasswordHasher, error) {
	switch strings.ToLower(strings.TrimSpace(algorithm)) {
	case "", AlgorithmArgon2ID:
		return NewArgon2(DefaultArgon2Params)
	case AlgorithmBcrypt:
		return NewBcrypt(bcrypt.DefaultCost), nil
	default:
		return nil, fmt.Errorf("hash: unsupported algorithm %q", algorithm)
	}
}
