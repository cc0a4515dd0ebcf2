package ports

import (
	"context"

	"github.com/99minutos/identity-service/internal/core/domain"
)

type AuthService interface {
	// ValidateCredentials returns true or domain.ErrInvalidCredentials, never false with a nil error.
	ValidateCredentials(ctx context.Context, email, password string) (bool, error)
	Authenticate(ctx context.Context, email, password string) (*domain.User, error)
	VerifyToken(token string) bool
	DecodeToken(token string) (*domain.Claims, error)
	GenerateTokens(subjectID, role string) (*domain.TokenPair, error)
}
