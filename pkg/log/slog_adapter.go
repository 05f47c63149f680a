package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes core events to an slog.Logger at Debug level.
// Useful during development to see sleep and join activity in the console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("boot_id", event.BootID),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}

	if event.DeviceID != "" {
		attrs = append(attrs, slog.String("device_id", event.DeviceID))
	}

	switch {
	case event.Sleep != nil:
		attrs = append(attrs,
			slog.String("mode", event.Sleep.Mode),
			slog.String("wakeup", event.Sleep.Wakeup),
			slog.Duration("duration", event.Sleep.Duration),
			slog.Bool("long", event.Sleep.Long),
		)
	case event.Wake != nil:
		attrs = append(attrs,
			slog.Uint64("ticks", uint64(event.Wake.Ticks)),
			slog.Duration("elapsed", event.Wake.Elapsed),
			slog.Uint64("remainder_ticks", uint64(event.Wake.RemainderTicks)),
		)
		if event.Wake.ClockSource != "" {
			attrs = append(attrs, slog.String("clock", event.Wake.ClockSource))
		}
	case event.FrameCounter != nil:
		attrs = append(attrs,
			slog.String("action", event.FrameCounter.Action),
			slog.Uint64("frame_counter", uint64(event.FrameCounter.Value)),
			slog.Bool("valid", event.FrameCounter.Valid),
		)
	case event.Timer != nil:
		attrs = append(attrs,
			slog.String("timer", event.Timer.Kind),
			slog.String("action", event.Timer.Action),
		)
		if event.Timer.Delay > 0 {
			attrs = append(attrs, slog.Duration("delay", event.Timer.Delay))
		}
		if event.Timer.Attempt > 0 {
			attrs = append(attrs, slog.Uint64("attempt", uint64(event.Timer.Attempt)))
		}
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
			slog.String("error_context", event.Error.Context),
		)
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "event", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
