package api

import (
	"log/slog"
	"net/http"
	"time"
)

// AuditEvent identifies the type of security-relevant action being logged.
type AuditEvent string

const (
	AuditAuthFailure          AuditEvent = "auth_failure"
	AuditCertificateStored    AuditEvent = "certificate_stored"
	AuditCertificateGenerated AuditEvent = "certificate_generated"
	AuditCertificateDeleted   AuditEvent = "certificate_deleted"
	AuditPasswordFailure      AuditEvent = "certificate_password_failure"
	AuditPasswordRateLimited  AuditEvent = "certificate_password_rate_limited"
	AuditDocumentUploaded     AuditEvent = "document_uploaded"
	AuditDocumentDeleted      AuditEvent = "document_deleted"
	AuditRequestCreated       AuditEvent = "request_created"
	AuditRequestSigned        AuditEvent = "request_signed"
	AuditRequestRejected      AuditEvent = "request_rejected"
	AuditMultiPartyCreated    AuditEvent = "multiparty_created"
	AuditMultiPartyCancelled  AuditEvent = "multiparty_cancelled"
)

// auditLogger wraps slog.Logger for structured security audit logging.
type auditLogger struct {
	logger  *slog.Logger
	metrics *metricsCollector
}

func newAuditLogger(logger *slog.Logger) *auditLogger {
	return &auditLogger{
		logger: logger.With("component", "audit"),
	}
}

// log writes a structured audit log entry.
func (al *auditLogger) log(event AuditEvent, r *http.Request, attrs ...slog.Attr) {
	baseAttrs := []slog.Attr{
		slog.String("event", string(event)),
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}
	baseAttrs = append(baseAttrs, attrs...)
	al.logger.LogAttrs(r.Context(), slog.LevelInfo, "audit", baseAttrs...)
	if al.metrics != nil {
		al.metrics.recordEvent(event)
	}
}

// logEvent is a convenience for events performed by an authenticated user.
func (al *auditLogger) logEvent(event AuditEvent, r *http.Request, userID string, extra ...slog.Attr) {
	attrs := []slog.Attr{
		slog.String("user_id", userID),
	}
	attrs = append(attrs, extra...)
	al.log(event, r, attrs...)
}

// logFailure logs a failed authentication or password attempt.
func (al *auditLogger) logFailure(event AuditEvent, r *http.Request, reason string, extra ...slog.Attr) {
	attrs := []slog.Attr{
		slog.String("reason", reason),
	}
	attrs = append(attrs, extra...)
	al.log(event, r, attrs...)
}
