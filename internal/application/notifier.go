package application

import (
	"context"
	"log/slog"
)

// Notifier delivers user-facing messages (transcripts, device errors) to the
// presentation layer.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

type NoopNotifier struct{}

func (n *NoopNotifier) Notify(_ context.Context, _ string) error {
	return nil
}

// LogNotifier writes messages to the structured log.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n *LogNotifier) Notify(_ context.Context, message string) error {
	n.Logger.Info("notification", "message", message)
	return nil
}
