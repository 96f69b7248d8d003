package services

import "context"

type contextKey int

const (
	jobIDKey contextKey = iota
	stageKey
	channelKey
	requestIDKey
)

func withString(ctx context.Context, key contextKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringFrom(ctx context.Context, key contextKey) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(key).(string)
	return v, ok && v != ""
}

// WithJobID annotates ctx with the pipeline job id.
func WithJobID(ctx context.Context, id int64) context.Context {
	if id <= 0 {
		return ctx
	}
	return context.WithValue(ctx, jobIDKey, id)
}

// JobIDFromContext returns the job id stamped by WithJobID.
func JobIDFromContext(ctx context.Context) (int64, bool) {
	if ctx == nil {
		return 0, false
	}
	id, ok := ctx.Value(jobIDKey).(int64)
	return id, ok
}

// WithStage annotates ctx with the stage name (script, assets, render).
func WithStage(ctx context.Context, stage string) context.Context {
	return withString(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, stageKey)
}

// WithChannel annotates ctx with the channel slug the job belongs to.
func WithChannel(ctx context.Context, slug string) context.Context {
	return withString(ctx, channelKey, slug)
}

// ChannelFromContext returns the channel slug if present.
func ChannelFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, channelKey)
}

// WithRequestID annotates ctx with a correlation id (API request or worker
// dispatch).
func WithRequestID(ctx context.Context, id string) context.Context {
	return withString(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the correlation id if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, requestIDKey)
}
