package notify

import (
	"context"
	"log/slog"
)

// LogSink writes events to the structured log. Used until a real
// delivery channel is configured, and in tests.
type LogSink struct {
	Logger *slog.Logger
}

func (s *LogSink) Deliver(_ context.Context, ev Event) error {
	s.Logger.Info("event",
		"target_user", ev.TargetUser, "kind", ev.Kind, "payload", ev.Payload)
	return nil
}
