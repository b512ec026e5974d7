package logging

import (
	"context"
	"log/slog"

	"pixora/internal/services"
)

// Standard attribute keys.
const (
	FieldComponent = "component"
	FieldStage     = "stage"
	FieldRequestID = "request_id"
	FieldSessionID = "session_id"
	// FieldEventType classifies a log line for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step an operator should take.
	FieldErrorHint = "error_hint"
	// FieldImpact states what the user loses when a warning fires.
	FieldImpact   = "impact"
	FieldArtifact = "artifact"
)

// ContextFields returns the stage and request id carried by ctx.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var fields []slog.Attr
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRequestID, rid))
	}
	return fields
}

// WithContext returns logger extended with ContextFields(ctx).
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return slog.New(logger.Handler().WithAttrs(fields))
}

// WithSessionID stamps every record from logger with the daemon session id.
func WithSessionID(logger *slog.Logger, sessionID string) *slog.Logger {
	if logger == nil || sessionID == "" {
		return logger
	}
	return slog.New(logger.Handler().WithAttrs([]slog.Attr{slog.String(FieldSessionID, sessionID)}))
}
