package ports

import (
	"context"

	"github.com/99minutos/identity-service/internal/core/domain"
)

// RegisterUserInput is the raw sign-up payload.
type RegisterUserInput struct {
	Username string
	Email    string
	Password string
	ClientIP string
}

// LoginInput is the raw sign-in payload.
type LoginInput struct {
	Email    string
	Password string
	ClientIP string
}

type RegisterUserUseCase interface {
	Execute(ctx context.Context, input RegisterUserInput) (*domain.User, error)
}

type LoginUseCase interface {
	Execute(ctx context.Context, input LoginInput) (*domain.TokenPair, error)
}
