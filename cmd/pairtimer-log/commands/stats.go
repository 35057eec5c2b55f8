package commands

import (
	"cmp"
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/pairtimer/pairtimer-go/pkg/log"
)

// Stats holds aggregate statistics about a trace file.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	Messages          map[string]*MessageStats
	Timers            map[string]int
	Reachability      int
	Errors            int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// MessageStats counts the outcomes of one message type.
type MessageStats struct {
	Total    int
	Outcomes map[log.Outcome]int
}

// Collect reads every event matching filter and aggregates it.
func Collect(path string, filter log.Filter) (*Stats, error) {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		Messages:          make(map[string]*MessageStats),
		Timers:            make(map[string]int),
	}

	for event, err := range reader.Events() {
		if err != nil {
			return nil, fmt.Errorf("failed to read event: %w", err)
		}

		stats.TotalEvents++
		stats.EventsByLayer[event.Layer]++
		stats.EventsByCategory[event.Category]++
		stats.EventsByDirection[event.Direction]++

		if stats.TimeRange.Start.IsZero() || event.Timestamp.Before(stats.TimeRange.Start) {
			stats.TimeRange.Start = event.Timestamp
		}
		if event.Timestamp.After(stats.TimeRange.End) {
			stats.TimeRange.End = event.Timestamp
		}

		if event.TimerID != "" {
			stats.Timers[event.TimerID]++
		}
		if m := event.Message; m != nil {
			ms, ok := stats.Messages[m.Type]
			if !ok {
				ms = &MessageStats{Outcomes: make(map[log.Outcome]int)}
				stats.Messages[m.Type] = ms
			}
			ms.Total++
			ms.Outcomes[m.Outcome]++
		}
		if sc := event.StateChange; sc != nil && sc.Entity == log.StateEntityReachability {
			stats.Reachability++
		}
		if event.Error != nil {
			stats.Errors++
		}
	}
	return stats, nil
}

// RunStats analyzes the trace file and prints statistics.
func RunStats(path string, filter log.Filter, w io.Writer) error {
	stats, err := Collect(path, filter)
	if err != nil {
		return err
	}
	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Pairtimer Protocol Log Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Layer:")
	for _, layer := range []log.Layer{log.LayerTransport, log.LayerWire, log.LayerService} {
		if count := stats.EventsByLayer[layer]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", layer.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryMessage, log.CategoryState, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Direction:")
	for _, dir := range []log.Direction{log.DirectionIn, log.DirectionOut, log.DirectionLocal} {
		if count := stats.EventsByDirection[dir]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", dir.String()+":", count)
		}
	}

	if len(stats.Messages) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Messages:")
		for _, typ := range slices.Sorted(maps.Keys(stats.Messages)) {
			ms := stats.Messages[typ]
			fmt.Fprintf(w, "  %-20s %d", typ+":", ms.Total)
			outcomes := slices.SortedFunc(maps.Keys(ms.Outcomes), func(a, b log.Outcome) int { return cmp.Compare(a, b) })
			for _, o := range outcomes {
				fmt.Fprintf(w, " %s=%d", o, ms.Outcomes[o])
			}
			fmt.Fprintln(w)
		}
	}

	if len(stats.Timers) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Timers: %d\n", len(stats.Timers))
		ids := slices.SortedFunc(maps.Keys(stats.Timers), func(a, b string) int {
			return cmp.Or(cmp.Compare(stats.Timers[b], stats.Timers[a]), cmp.Compare(a, b))
		})
		for _, id := range ids {
			fmt.Fprintf(w, "  [%s] %d events\n", shortID(id), stats.Timers[id])
		}
	}

	if stats.Reachability > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Reachability changes: %d\n", stats.Reachability)
	}
	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
