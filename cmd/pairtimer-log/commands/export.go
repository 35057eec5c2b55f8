package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/pairtimer/pairtimer-go/pkg/log"
)

// RunExport exports the events matching filter in the given format. An
// empty output writes to stdout.
func RunExport(path string, filter log.Filter, format, output string) error {
	reader, err := log.NewFilteredReader(path, filter)
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
	for event, err := range reader.Events() {
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := encoder.Encode(event); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
	}
	return nil
}

var csvHeader = []string{
	"timestamp", "device_id", "peer_id", "direction", "layer", "category",
	"timer_id", "type", "stream", "kind", "outcome", "remaining",
}

func exportCSV(reader *log.Reader, w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for event, err := range reader.Events() {
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		var stream, kind, outcome, remaining string
		if m := event.Message; m != nil {
			stream, kind, outcome = m.Stream, m.Kind, m.Outcome.String()
			if m.Remaining != nil {
				remaining = strconv.Itoa(*m.Remaining)
			}
		}
		row := []string{
			event.Timestamp.UTC().Format(timestampFormat),
			event.DeviceID,
			event.PeerID,
			event.Direction.String(),
			event.Layer.String(),
			event.Category.String(),
			event.TimerID,
			typeLabel(event),
			stream,
			kind,
			outcome,
			remaining,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	return cw.Error()
}
