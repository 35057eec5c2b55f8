package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes trace events to an slog.Logger at Debug level.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a SlogAdapter.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		Device(event.DeviceID),
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}
	if event.PeerID != "" {
		attrs = append(attrs, slog.String(KeyPeerID, event.PeerID))
	}
	if event.TimerID != "" {
		attrs = append(attrs, slog.String(KeyTimerID, event.TimerID))
	}

	switch {
	case event.Frame != nil:
		attrs = append(attrs,
			slog.Int("frame_size", event.Frame.Size),
			slog.Bool("durable", event.Frame.Durable),
		)
		if event.Frame.Truncated {
			attrs = append(attrs, slog.Bool("truncated", true))
		}
	case event.Message != nil:
		attrs = append(attrs,
			MsgType(event.Message.Type),
			slog.String("outcome", event.Message.Outcome.String()),
		)
		if event.Message.Stream != "" {
			attrs = append(attrs, slog.String("stream", event.Message.Stream))
		}
		if event.Message.Kind != "" {
			attrs = append(attrs, slog.String("kind", event.Message.Kind))
		}
		if event.Message.Timers > 0 {
			attrs = append(attrs, slog.Int("timers", event.Message.Timers))
		}
		if event.Message.Entries > 0 {
			attrs = append(attrs, slog.Int("entries", event.Message.Entries))
		}
		if event.Message.Remaining != nil {
			attrs = append(attrs, slog.Int("remaining", *event.Message.Remaining))
		}
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("entity", event.StateChange.Entity.String()),
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String(KeyError, event.Error.Message),
			slog.String("error_context", event.Error.Context),
		)
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "protocol", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
