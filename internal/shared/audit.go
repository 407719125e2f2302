package shared

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SystemActor is recorded when a change carries no self-asserted actor.
const SystemActor = "system"

// AuditLog is one row of audit_logs.
type AuditLog struct {
	Actor    string
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

// Validate checks the fields every audit row needs.
func (l AuditLog) Validate() error {
	if l.Action == "" || l.Entity == "" || l.EntityID == "" {
		return fmt.Errorf("%w: audit log requires action, entity and entity id", ErrValidation)
	}
	return nil
}

// AuditLogger writes audit rows. It accepts a pool or an open transaction.
type AuditLogger struct {
	db  Execer
	now func() time.Time
}

// NewAuditLogger returns an AuditLogger writing through db.
func NewAuditLogger(db Execer) *AuditLogger {
	return &AuditLogger{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Record persists the log entry.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil || l.db == nil {
		return errors.New("audit logger not initialised")
	}
	if err := log.Validate(); err != nil {
		return err
	}
	if log.Actor == "" {
		log.Actor = SystemActor
	}
	if log.At.IsZero() {
		log.At = l.now()
	}
	var meta []byte
	if len(log.Meta) > 0 {
		var err error
		if meta, err = json.Marshal(log.Meta); err != nil {
			return fmt.Errorf("audit meta: %w", err)
		}
	}
	_, err := l.db.Exec(ctx, `INSERT INTO audit_logs (actor, action, entity, entity_id, meta, occurred_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		log.Actor, log.Action, log.Entity, log.EntityID, meta, log.At)
	return err
}
