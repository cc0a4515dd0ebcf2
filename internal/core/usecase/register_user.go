// Package usecase orchestrates the sign-up and sign-in flows on top of the
// user and auth services.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
	"github.com/99minutos/identity-service/internal/pkg/metrics"
	"github.com/99minutos/identity-service/internal/pkg/validation"
)

type registerForm struct {
	Username string `json:"username" validate:"required,min=3,max=255"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=255"`
}

// RegisterUser creates a new account with the default role.
type RegisterUser struct {
	users     ports.UserService
	validator *validation.Validator
	audit     ports.AuditRecorder
	log       zerolog.Logger
}

var _ ports.RegisterUserUseCase = (*RegisterUser)(nil)

func NewRegisterUser(users ports.UserService, v *validation.Validator, audit ports.AuditRecorder, log zerolog.Logger) *RegisterUser {
	if audit == nil {
		audit = nopRecorder{}
	}
	return &RegisterUser{users: users, validator: v, audit: audit, log: log}
}

// Execute normalises and validates the input, rejects a taken email and
// creates the account. Errors outside the domain taxonomy are wrapped as
// domain.ErrInternal.
func (uc *RegisterUser) Execute(ctx context.Context, input ports.RegisterUserInput) (*domain.User, error) {
	form := registerForm{
		Username: normalize(input.Username),
		Email:    normalize(input.Email),
		Password: input.Password,
	}
	if err := uc.validator.Struct(form); err != nil {
		return nil, err
	}

	_, err := uc.users.FindByEmail(ctx, form.Email)
	switch {
	case err == nil:
		return nil, domain.ErrUserExists
	case !errors.Is(err, domain.ErrUserNotFound):
		return nil, uc.internal(err)
	}

	user, err := uc.users.Create(ctx, ports.CreateUserInput{
		Username: form.Username,
		Email:    form.Email,
		Password: form.Password,
		Role:     domain.RoleUser,
	})
	if err != nil {
		return nil, uc.internal(err)
	}

	metrics.UsersRegisteredTotal.Inc()
	uc.audit.Record(domain.AuditEvent{
		Type:    domain.AuditUserRegistered,
		UserID:  user.ID,
		Email:   user.Email,
		IP:      input.ClientIP,
		Success: true,
	})
	return user, nil
}

// internal passes domain errors through and wraps everything else.
func (uc *RegisterUser) internal(err error) error {
	if domain.IsKnown(err) {
		return err
	}
	uc.log.Error().Err(err).Msg("register user failed")
	return fmt.Errorf("%w: %w", domain.ErrInternal, err)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

type nopRecorder struct{}

func (nopRecorder) Record(domain.AuditEvent) {}
