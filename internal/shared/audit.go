package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/lokapos/lokapos/internal/platform/db"
)

// AuditLog represents a record stored in audit_logs.
type AuditLog struct {
	Actor    string
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

// AuditLogger writes records into the current tenant's audit_logs.
type AuditLogger struct {
	source db.Source
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(source db.Source) *AuditLogger {
	return &AuditLogger{source: source}
}

// Record persists the log entry. The actor falls back to the one bound
// to the context when the caller leaves it empty.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil {
		return errors.New("audit logger not initialised")
	}
	if log.Action == "" || log.Entity == "" {
		return errors.New("audit log requires action/entity")
	}
	if log.Actor == "" {
		log.Actor = ActorFromContext(ctx)
	}
	metaJSON, err := json.Marshal(log.Meta)
	if err != nil {
		return err
	}
	var at any
	if !log.At.IsZero() {
		at = log.At
	}
	_, err = l.source.Pool(ctx).Exec(ctx, `INSERT INTO audit_logs (actor, action, entity, entity_id, meta, occurred_at) VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))`, log.Actor, log.Action, log.Entity, log.EntityID, metaJSON, at)
	return err
}
