package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
	"github.com/99minutos/identity-service/internal/pkg/metrics"
)

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// AuthService checks credentials and issues tokens.
type AuthService struct {
	users      ports.UserService
	hasher     ports.PasswordHasher
	signer     ports.TokenSigner
	accessTTL  time.Duration
	refreshTTL time.Duration
	log        zerolog.Logger

	dummyOnce sync.Once
	dummyHash string
}

var _ ports.AuthService = (*AuthService)(nil)

func NewAuthService(
	users ports.UserService,
	hasher ports.PasswordHasher,
	signer ports.TokenSigner,
	accessTTL, refreshTTL time.Duration,
	log zerolog.Logger,
) *AuthService {
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	return &AuthService{
		users:      users,
		hasher:     hasher,
		signer:     signer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		log:        log,
	}
}

func (s *AuthService) ValidateCredentials(ctx context.Context, email, password string) (bool, error) {
	if _, err := s.Authenticate(ctx, email, password); err != nil {
		return false, err
	}
	return true, nil
}

// Authenticate returns the account for a matching email and password.
// Unknown email and wrong password both yield domain.ErrInvalidCredentials.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			// Spend the same hashing work as a real check.
			_, _ = s.verify(password, s.dummy())
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	ok, err := s.verify(password, user.PasswordHash)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("stored password hash is malformed")
		return nil, domain.ErrInvalidCredentials
	}
	if !ok {
		return nil, domain.ErrInvalidCredentials
	}
	return user, nil
}

func (s *AuthService) VerifyToken(token string) bool {
	return s.signer.Verify(token)
}

func (s *AuthService) DecodeToken(token string) (*domain.Claims, error) {
	claims, err := s.signer.Decode(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
	}
	return claims, nil
}

func (s *AuthService) GenerateTokens(subjectID, role string) (*domain.TokenPair, error) {
	access, err := s.signer.Sign(domain.Claims{Subject: subjectID, Role: role, Type: domain.TokenAccess}, s.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := s.signer.Sign(domain.Claims{Subject: subjectID, Role: role, Type: domain.TokenRefresh}, s.refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}
	return &domain.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *AuthService) verify(password, hash string) (bool, error) {
	start := time.Now()
	defer func() {
		metrics.PasswordHashDuration.WithLabelValues("verify").Observe(time.Since(start).Seconds())
	}()
	return s.hasher.Verify(password, hash)
}

func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash("timing-equaliser")
		if err != nil {
			s.log.Warn().Err(err).Msg("could not prepare dummy hash")
		}
		s.dummyHash = h
	})
	return s.dummyHash
}
