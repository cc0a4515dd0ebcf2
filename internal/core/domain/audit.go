package domain

import "time"

// AuditEventType names a security-relevant account event.
type AuditEventType string

const (
	AuditUserRegistered  AuditEventType = "user.registered"
	AuditLoginSucceeded  AuditEventType = "auth.login.succeeded"
	AuditLoginFailed     AuditEventType = "auth.login.failed"
	AuditPasswordChanged AuditEventType = "user.password_changed"
	AuditUserUpdated     AuditEventType = "user.updated"
	AuditUserDeleted     AuditEventType = "user.deleted"
)

// AuditEvent is an append-only record of an account event.
type AuditEvent struct {
	Type       AuditEventType
	UserID     string
	Email      string
	IP         string
	Success    bool
	OccurredAt time.Time
}

// Key returns the value audit events are sharded by, so events for one account stay ordered.
func (e AuditEvent) Key() string {
	if e.UserID != "" {
		return e.UserID
	}
	return e.Email
}
