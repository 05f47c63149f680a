package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/thsensor/thsensor-go/pkg/log"
)

// RunExport exports the log file to the specified format.
func RunExport(path, format, output string) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	switch format {
	case "jsonl":
		return exportJSONL(reader, w)
	case "csv":
		return exportCSV(reader, w)
	default:
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}
}

func exportJSONL(reader *log.Reader, w io.Writer) error {
	encoder := json.NewEncoder(w)
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := encoder.Encode(event); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
	}
	return nil
}

func exportCSV(reader *log.Reader, w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"timestamp", "boot_id", "device_id", "layer", "category", "type", "detail", "duration_ms"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		var detail, durationMs string
		switch {
		case event.Sleep != nil:
			detail = event.Sleep.Mode + " " + event.Sleep.Wakeup
			durationMs = strconv.FormatInt(event.Sleep.Duration.Milliseconds(), 10)
		case event.Wake != nil:
			detail = event.Wake.ClockSource
			durationMs = strconv.FormatInt(event.Wake.Elapsed.Milliseconds(), 10)
		case event.FrameCounter != nil:
			detail = fmt.Sprintf("%s %d", event.FrameCounter.Action, event.FrameCounter.Value)
		case event.Timer != nil:
			detail = event.Timer.Kind + " " + event.Timer.Action
			if event.Timer.Delay > 0 {
				durationMs = strconv.FormatInt(event.Timer.Delay.Milliseconds(), 10)
			}
		case event.StateChange != nil:
			detail = event.StateChange.OldState + "->" + event.StateChange.NewState
		case event.Error != nil:
			detail = event.Error.Message
		}

		row := []string{
			event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z"),
			event.BootID,
			event.DeviceID,
			event.Layer.String(),
			event.Category.String(),
			typeLabel(event),
			detail,
			durationMs,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	return nil
}
