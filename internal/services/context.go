package services

import "context"

// trace is the per-request identity carried through a context. Both fields
// live in one value so each helper adds a single context layer.
type trace struct {
	requestID string
	stage     string
}

type traceKey struct{}

func traceFrom(ctx context.Context) trace {
	if ctx == nil {
		return trace{}
	}
	t, _ := ctx.Value(traceKey{}).(trace)
	return t
}

// WithRequestID returns ctx tagged with a request correlation id. A blank id
// leaves ctx untouched.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	t := traceFrom(ctx)
	t.requestID = id
	return context.WithValue(ctx, traceKey{}, t)
}

// RequestIDFromContext reports the correlation id set by WithRequestID.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id := traceFrom(ctx).requestID
	return id, id != ""
}

// WithStage returns ctx tagged with the pipeline stage now running.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	t := traceFrom(ctx)
	t.stage = stage
	return context.WithValue(ctx, traceKey{}, t)
}

// StageFromContext reports the stage set by WithStage.
func StageFromContext(ctx context.Context) (string, bool) {
	stage := traceFrom(ctx).stage
	return stage, stage != ""
}
