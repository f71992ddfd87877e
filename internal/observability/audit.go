package observability

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Audit event names emitted by the session subsystem.
const (
	EventSessionCreated       = "session_created"
	EventSessionValidated     = "session_validated"
	EventSessionExpired       = "session_expired"
	EventSessionHijackAttempt = "session_hijack_attempt"
	EventSessionDeleted       = "session_deleted"
	EventSessionSweep         = "session_sweep"
	EventLoginSuccess         = "login_success"
	EventLogout               = "logout"
)

// Audit severities. Hijack attempts are the only high-severity events the
// session subsystem produces.
const (
	SeverityInfo = "info"
	SeverityHigh = "high"
)

// AuditLogger emits structured security events to the shared slog sink.
// Callers must pass partial identifiers only: hashed prefixes and session ID
// prefixes, never raw IPs or full session IDs.
type AuditLogger struct {
	logger *slog.Logger
}

func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{logger: logger}
}

func (a *AuditLogger) Emit(ctx context.Context, event, severity string, attrs ...any) {
	base := []any{
		"event", event,
		"severity", severity,
		"event_id", uuid.NewString(),
	}
	base = append(base, attrs...)
	if severity == SeverityHigh {
		a.logger.WarnContext(ctx, "audit", base...)
		return
	}
	a.logger.InfoContext(ctx, "audit", base...)
}
