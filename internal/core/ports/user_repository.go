package ports

import (
	"context"

	"github.com/99minutos/identity-service/internal/core/domain"
)

// ListUsersParams carries pagination for FindAll. Both values are already clamped by the service.
type ListUsersParams struct {
	Limit  int
	Offset int
}

// UserRepository defines persistence operations for users.
// Lookups of a missing user return domain.ErrUserNotFound; a duplicate email returns domain.ErrUserExists.
type UserRepository interface {
	Save(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	// FindAll returns a page of users ordered by created_at, newest first.
	FindAll(ctx context.Context, params ListUsersParams) ([]*domain.User, error)
	Count(ctx context.Context) (int64, error)
	Update(ctx context.Context, user *domain.User) (*domain.User, error)
	Delete(ctx context.Context, id string) error
}
