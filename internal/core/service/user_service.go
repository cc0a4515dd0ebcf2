package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
	"github.com/99minutos/identity-service/internal/pkg/metrics"
)

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 100

	minUsernameLen = 3
	maxUsernameLen = 255
)

// UserService implements account management on top of a UserRepository.
type UserService struct {
	repo   ports.UserRepository
	hasher ports.PasswordHasher
	audit  ports.AuditRecorder
	log    zerolog.Logger
	now    func() time.Time
}

var _ ports.UserService = (*UserService)(nil)

// NewUserService wires the service. audit may be nil.
func NewUserService(repo ports.UserRepository, hasher ports.PasswordHasher, audit ports.AuditRecorder, log zerolog.Logger) *UserService {
	if audit == nil {
		audit = nopRecorder{}
	}
	return &UserService{
		repo:   repo,
		hasher: hasher,
		audit:  audit,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *UserService) Create(ctx context.Context, input ports.CreateUserInput) (*domain.User, error) {
	role := input.Role
	if role == "" {
		role = domain.RoleUser
	}
	if !domain.IsValidRole(role) {
		return nil, invalidRole()
	}

	hash, err := s.hash(input.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &domain.User{
		ID:           uuid.NewString(),
		Username:     normalize(input.Username),
		Email:        normalize(input.Email),
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	return s.repo.Save(ctx, user)
}

func (s *UserService) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.repo.FindByEmail(ctx, normalize(email))
}

func (s *UserService) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return s.repo.FindByID(ctx, id)
}

// List clamps limit to [1, MaxPageLimit], using DefaultPageLimit when unset.
func (s *UserService) List(ctx context.Context, limit, offset int) ([]*domain.User, error) {
	limit, offset = ClampPage(limit, offset)
	return s.repo.FindAll(ctx, ports.ListUsersParams{Limit: limit, Offset: offset})
}

func (s *UserService) Count(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}

func (s *UserService) Update(ctx context.Context, id string, input ports.UpdateUserInput) (*domain.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Username != nil {
		username := normalize(*input.Username)
		if n := utf8.RuneCountInString(username); n < minUsernameLen || n > maxUsernameLen {
			return nil, domain.NewValidationError(domain.FieldViolation{
				Field:   "username",
				Message: fmt.Sprintf("username must be between %d and %d characters", minUsernameLen, maxUsernameLen),
			})
		}
		user.Username = username
	}
	if input.Email != nil {
		email := normalize(*input.Email)
		if email != user.Email {
			if err := s.ensureEmailFree(ctx, email); err != nil {
				return nil, err
			}
			user.Email = email
		}
	}
	if input.Role != nil {
		if !domain.IsValidRole(*input.Role) {
			return nil, invalidRole()
		}
		user.Role = *input.Role
	}
	user.UpdatedAt = s.touch(user.CreatedAt)

	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		return nil, err
	}
	s.audit.Record(domain.AuditEvent{Type: domain.AuditUserUpdated, UserID: updated.ID, Email: updated.Email, Success: true})
	return updated, nil
}

func (s *UserService) UpdatePassword(ctx context.Context, id, newPassword string) (*domain.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	hash, err := s.hash(newPassword)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = hash
	user.UpdatedAt = s.touch(user.CreatedAt)

	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		return nil, err
	}
	s.audit.Record(domain.AuditEvent{Type: domain.AuditPasswordChanged, UserID: updated.ID, Email: updated.Email, Success: true})
	return updated, nil
}

func (s *UserService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.audit.Record(domain.AuditEvent{Type: domain.AuditUserDeleted, UserID: id, Success: true})
	return nil
}

func (s *UserService) ensureEmailFree(ctx context.Context, email string) error {
	_, err := s.repo.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return domain.ErrUserExists
	case errors.Is(err, domain.ErrUserNotFound):
		return nil
	default:
		return err
	}
}

func (s *UserService) hash(password string) (string, error) {
	start := time.Now()
	hash, err := s.hasher.Hash(password)
	metrics.PasswordHashDuration.WithLabelValues("hash").Observe(time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

// touch returns the current time, never earlier than createdAt.
func (s *UserService) touch(createdAt time.Time) time.Time {
	now := s.now()
	if now.Before(createdAt) {
		return createdAt
	}
	return now
}

// ClampPage applies the listing defaults and bounds.
func ClampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func invalidRole() error {
	return domain.NewValidationError(domain.FieldViolation{
		Field:   "role",
		Message: "role must be one of: " + strings.Join(domain.Roles, ", "),
	})
}

type nopRecorder struct{}

func (nopRecorder) Record(domain.AuditEvent) {}
