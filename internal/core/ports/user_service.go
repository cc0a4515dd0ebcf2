package ports

import (
	"context"

	"github.com/99minutos/identity-service/internal/core/domain"
)

// CreateUserInput carries the fields needed to create an account.
type CreateUserInput struct {
	Username string
	Email    string
	Password string
	Role     string // empty = domain.RoleUser
}

// UpdateUserInput holds optional field changes; nil fields are left untouched.
type UpdateUserInput struct {
	Username *string
	Email    *string
	Role     *string
}

type UserService interface {
	Create(ctx context.Context, input CreateUserInput) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	List(ctx context.Context, limit, offset int) ([]*domain.User, error)
	Count(ctx context.Context) (int64, error)
	Update(ctx context.Context, id string, input UpdateUserInput) (*domain.User, error)
	UpdatePassword(ctx context.Context, id, newPassword string) (*domain.User, error)
	Delete(ctx context.Context, id string) error
}
