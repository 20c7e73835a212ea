package ports

import "context"

// Logger is the structured logging port used by every service. Args are
// alternating key/value pairs, slog style.
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)
}
