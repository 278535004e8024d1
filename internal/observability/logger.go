// Package observability builds the process logger and per-update log context.
package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

const (
	// LogFieldRequestID identifies everything logged while handling one update or job run.
	LogFieldRequestID = "request_id"
	LogFieldUpdateID  = "update_id"
	LogFieldChatID    = "chat_id"
	LogFieldMessageID = "message_id"
	LogFieldTag       = "tag"
	LogFieldMedia     = "media"
	LogFieldJob       = "cron_job"
)

// NewLogger creates a logger writing to w. format is "text" or "json".
func NewLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("unknown log format %q", format)
}

// ForUpdate returns a logger tagged with a fresh request id and the update's identifiers.
func ForUpdate(logger *slog.Logger, updateID, chatID, messageID int64) *slog.Logger {
	return logger.With(
		slog.String(LogFieldRequestID, NewRequestID()),
		slog.Int64(LogFieldUpdateID, updateID),
		slog.Int64(LogFieldChatID, chatID),
		slog.Int64(LogFieldMessageID, messageID),
	)
}

// ForJob returns a logger tagged with a fresh request id and the cron job id.
func ForJob(logger *slog.Logger, jobID int64) *slog.Logger {
	return logger.With(
		slog.String(LogFieldRequestID, NewRequestID()),
		slog.Int64(LogFieldJob, jobID),
	)
}

// NewRequestID generates a unique request id.
func NewRequestID() string {
	return uuid.New().String()
}

type ctxKey struct{}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the logger stored in ctx, or slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
