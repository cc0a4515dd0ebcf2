package postgres

import (
	"context"
	"fmt"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
)

// AuditRepository implements ports.AuditRepository on PostgreSQL.
type AuditRepository struct {
	db DBTX
}

var _ ports.AuditRepository = (*AuditRepository)(nil)

func NewAuditRepository(db DBTX) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) InsertEvent(ctx context.Context, event *domain.AuditEvent) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO audit_events (type, user_id, email, ip, success, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		string(event.Type), nullable(event.UserID), nullable(event.Email), nullable(event.IP),
		event.Success, event.OccurredAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
