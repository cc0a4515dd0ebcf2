package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
	"github.com/99minutos/identity-service/internal/infrastructure/config"
)

// bootstrapAdmin creates the configured administrator once. An existing
// account with that email is left untouched.
func bootstrapAdmin(ctx context.Context, users ports.UserService, admin config.AdminConfig, log zerolog.Logger) error {
	if admin.Email == "" {
		return nil
	}

	_, err := users.Create(ctx, ports.CreateUserInput{
		Username: "admin",
		Email:    admin.Email,
		Password: admin.Password,
		Role:     domain.RoleAdmin,
	})
	switch {
	case err == nil:
		log.Info().Str("email", admin.Email).Msg("bootstrap admin created")
		return nil
	case errors.Is(err, domain.ErrUserExists):
		log.Debug().Str("email", admin.Email).Msg("bootstrap admin already present")
		return nil
	default:
		return fmt.Errorf("bootstrap admin: %w", err)
	}
}
