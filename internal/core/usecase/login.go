package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
	"github.com/99minutos/identity-service/internal/pkg/metrics"
	"github.com/99minutos/identity-service/internal/pkg/validation"
)

type loginForm struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login exchanges credentials for an access/refresh token pair.
type Login struct {
	auth      ports.AuthService
	validator *validation.Validator
	audit     ports.AuditRecorder
	log       zerolog.Logger
}

var _ ports.LoginUseCase = (*Login)(nil)

func NewLogin(auth ports.AuthService, v *validation.Validator, audit ports.AuditRecorder, log zerolog.Logger) *Login {
	if audit == nil {
		audit = nopRecorder{}
	}
	return &Login{auth: auth, validator: v, audit: audit, log: log}
}

func (uc *Login) Execute(ctx context.Context, input ports.LoginInput) (*domain.TokenPair, error) {
	form := loginForm{Email: normalize(input.Email), Password: input.Password}
	if err := uc.validator.Struct(form); err != nil {
		return nil, err
	}

	user, err := uc.auth.Authenticate(ctx, form.Email, form.Password)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("failure").Inc()
		if errors.Is(err, domain.ErrInvalidCredentials) {
			uc.audit.Record(domain.AuditEvent{Type: domain.AuditLoginFailed, Email: form.Email, IP: input.ClientIP})
			return nil, err
		}
		return nil, uc.internal(err)
	}

	pair, err := uc.auth.GenerateTokens(user.ID, user.Role)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("failure").Inc()
		return nil, uc.internal(err)
	}

	metrics.LoginsTotal.WithLabelValues("success").Inc()
	uc.audit.Record(domain.AuditEvent{
		Type:    domain.AuditLoginSucceeded,
		UserID:  user.ID,
		Email:   user.Email,
		IP:      input.ClientIP,
		Success: true,
	})
	return pair, nil
}

func (uc *Login) internal(err error) error {
	if domain.IsKnown(err) {
		return err
	}
	uc.log.Error().Err(err).Msg("login failed")
	return fmt.Errorf("%w: %w", domain.ErrInternal, err)
}
