package utils

import (
	"context"
	"log/slog"

	copilot "github.com/github/copilot-sdk/go"
)

// StreamEventLogger returns a copilot event handler that logs every event at
// debug level, tagged with the model that produced it. Deltas are logged by
// size only.
func StreamEventLogger(modelID string) copilot.SessionEventHandler {
	return func(event copilot.SessionEvent) {
		if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
			return
		}

		attrs := []any{
			"type", event.Type,
			"model", modelID,
		}

		if event.Data.DeltaContent != nil {
			attrs = append(attrs, "deltaBytes", len(*event.Data.DeltaContent))
		}
		attrs = addIf(attrs, "content", event.Data.Content)
		attrs = addIf(attrs, "message", event.Data.Message)

		slog.Debug("Stream event received", attrs...)
	}
}

func addIf[T any](attrs []any, name string, v *T) []any {
	if v != nil {
		attrs = append(attrs, name)
		attrs = append(attrs, *v)
	}

	return attrs
}
