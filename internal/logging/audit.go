package logging

import (
	"context"

	"github.com/you/kycstore/domain"
	"go.uber.org/zap"
)

// AuditLogger implements domain.AuditLogger on top of zap
type AuditLogger struct {
	logger *zap.Logger
}

// NewAuditLogger creates an audit logger writing under the "audit" name
func NewAuditLogger(logger *zap.Logger) *AuditLogger {
	return &AuditLogger{logger: logger.Named("audit")}
}

// LogEvent implements domain.AuditLogger
func (a *AuditLogger) LogEvent(_ context.Context, event *domain.AuditEvent) {
	if event == nil {
		return
	}
	fields := []zap.Field{
		zap.String("event_type", string(event.EventType)),
		zap.String("client_id", event.ClientID),
		zap.Bool("success", event.Success),
		zap.Time("timestamp", event.Timestamp),
	}
	if event.UserID != "" {
		fields = append(fields, zap.String("user_id", event.UserID))
	}
	if event.Email != "" {
		fields = append(fields, zap.String("email", event.Email))
	}
	if event.Phone != "" {
		fields = append(fields, zap.String("phone", event.Phone))
	}
	if len(event.Metadata) > 0 {
		fields = append(fields, zap.Any("metadata", event.Metadata))
	}
	if event.ErrorMsg != "" {
		fields = append(fields, zap.String("error", event.ErrorMsg))
	}

	if event.Success {
		a.logger.Info("audit", fields...)
		return
	}
	a.logger.Warn("audit", fields...)
}

var _ domain.AuditLogger = (*AuditLogger)(nil)
