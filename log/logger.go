package log

import "context"

// Logger is the structured logging contract used by the server binary.
// Library packages log through the global zerolog logger directly; this
// interface exists so the binary can carry request-scoped fields and
// trace correlation without leaking a concrete logging backend.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...map[string]interface{})
	Info(ctx context.Context, msg string, fields ...map[string]interface{})
	Warn(ctx context.Context, msg string, fields ...map[string]interface{})
	Error(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	Fatal(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	// With returns a derived logger carrying the given fields.
	With(fields map[string]interface{}) Logger
}
