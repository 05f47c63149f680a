// Package commands implements the thsensor-log CLI commands.
package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/thsensor/thsensor-go/pkg/log"
)

// ViewFilter specifies criteria for filtering events in the view command.
type ViewFilter struct {
	Layer    *log.Layer
	Category *log.Category
	BootID   string
}

func (f ViewFilter) logFilter() log.Filter {
	return log.Filter{BootID: f.BootID, Layer: f.Layer, Category: f.Category}
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [boot:id] LAYER Type
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	fmt.Fprintf(w, "%s [boot:%s] %s %s\n", ts, shortenID(event.BootID), event.Layer.String(), typeLabel(event))

	switch {
	case event.Sleep != nil:
		formatSleepDetails(w, event.Sleep)
	case event.Wake != nil:
		formatWakeDetails(w, event.Wake)
	case event.FrameCounter != nil:
		fc := event.FrameCounter
		fmt.Fprintf(w, "  %s: %d (valid=%t)\n", fc.Action, fc.Value, fc.Valid)
	case event.Timer != nil:
		formatTimerDetails(w, event.Timer)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w)
}

func typeLabel(event log.Event) string {
	switch {
	case event.Sleep != nil:
		return "Sleep"
	case event.Wake != nil:
		return "Wake"
	case event.FrameCounter != nil:
		return "FrameCounter"
	case event.Timer != nil:
		return "Timer"
	case event.StateChange != nil:
		return "State"
	case event.Error != nil:
		return "Error"
	default:
		return "Unknown"
	}
}

// shortenID returns the first 8 characters of a boot ID.
func shortenID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatSleepDetails(w io.Writer, s *log.SleepEvent) {
	kind := "short"
	if s.Long {
		kind = "long"
	}
	fmt.Fprintf(w, "  Mode: %s  Wakeup: %s  (%s)\n", s.Mode, s.Wakeup, kind)
	if s.Duration > 0 {
		fmt.Fprintf(w, "  Duration: %s\n", formatDuration(s.Duration))
	}
}

func formatWakeDetails(w io.Writer, e *log.WakeEvent) {
	fmt.Fprintf(w, "  Elapsed: %s (%d ticks", formatDuration(e.Elapsed), e.Ticks)
	if e.ClockSource != "" {
		fmt.Fprintf(w, ", %s", e.ClockSource)
	}
	fmt.Fprintln(w, ")")
	if e.RemainderTicks > 0 {
		fmt.Fprintf(w, "  Remainder: %d sys ticks\n", e.RemainderTicks)
	}
}

func formatTimerDetails(w io.Writer, e *log.TimerEvent) {
	fmt.Fprintf(w, "  %s %s", e.Kind, e.Action)
	if e.Delay > 0 {
		fmt.Fprintf(w, " in %s", formatDuration(e.Delay))
	}
	fmt.Fprintf(w, "  attempts=%d\n", e.Attempt)
}

// formatStateChangeDetails writes state change details.
func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

// formatErrorDetails writes error details.
func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Layer: %s\n", err.Layer.String())
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%.3fms", float64(d.Microseconds())/1000)
	}
	if d < time.Minute {
		return fmt.Sprintf("%.3fs", d.Seconds())
	}
	return d.Round(time.Millisecond).String()
}

// ParseLayerFlag parses a layer string from command-line flag (case-insensitive).
func ParseLayerFlag(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "power":
		return log.LayerPower, nil
	case "timer":
		return log.LayerTimer, nil
	case "commissioning":
		return log.LayerCommissioning, nil
	default:
		return 0, fmt.Errorf("invalid layer: %s (must be power, timer, or commissioning)", s)
	}
}

// ParseCategoryFlag parses a category string from command-line flag (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "sleep":
		return log.CategorySleep, nil
	case "wake":
		return log.CategoryWake, nil
	case "state":
		return log.CategoryState, nil
	case "timer":
		return log.CategoryTimer, nil
	case "persist":
		return log.CategoryPersist, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be sleep, wake, state, timer, persist, or error)", s)
	}
}

// RunView executes the view command.
func RunView(path string, filter ViewFilter, output io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter.logFilter())
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(output, event)
	}
	return nil
}
