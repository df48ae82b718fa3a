package services

import "context"

type contextKey string

const (
	jobIDKey     contextKey = "job_id"
	stageKey     contextKey = "stage"
	requestIDKey contextKey = "request_id"
)

func withValue(ctx context.Context, key contextKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func valueFrom(ctx context.Context, key contextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	return v, ok && v != ""
}

// WithJobID tags ctx with a render or caption job id. Blank ids are ignored.
func WithJobID(ctx context.Context, id string) context.Context {
	return withValue(ctx, jobIDKey, id)
}

func JobIDFromContext(ctx context.Context) (string, bool) {
	return valueFrom(ctx, jobIDKey)
}

// WithStage tags ctx with the pipeline stage currently running.
func WithStage(ctx context.Context, stage string) context.Context {
	return withValue(ctx, stageKey, stage)
}

func StageFromContext(ctx context.Context) (string, bool) {
	return valueFrom(ctx, stageKey)
}

// WithRequestID tags ctx with the HTTP request correlation id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withValue(ctx, requestIDKey, id)
}

func RequestIDFromContext(ctx context.Context) (string, bool) {
	return valueFrom(ctx, requestIDKey)
}
