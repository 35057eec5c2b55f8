package commands

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pairtimer/pairtimer-go/pkg/log"
)

const (
	phoneID = "phone-1111"
	watchID = "watch-2222"
	teaID   = "6f1c2a3b-0000-4000-8000-000000000001"
	eggID   = "9a8b7c6d-0000-4000-8000-000000000002"
)

func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test"+log.FileExt)

	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("failed to close logger: %v", err)
	}
	return path
}

func intPtr(v int) *int { return &v }

func sampleEvents() []log.Event {
	ts := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return []log.Event{
		{
			Timestamp: ts, DeviceID: phoneID, PeerID: watchID,
			Direction: log.DirectionOut, Layer: log.LayerTransport, Category: log.CategoryMessage,
			Frame: &log.FrameEvent{Size: 42, Data: []byte{0xa1, 0x02}, Durable: true},
		},
		{
			Timestamp: ts.Add(time.Second), DeviceID: phoneID, PeerID: watchID, TimerID: teaID,
			Direction: log.DirectionOut, Layer: log.LayerWire, Category: log.CategoryMessage,
			Message: &log.MessageEvent{Type: "runtime_action", Stream: "runtime/" + teaID, Kind: "started", Outcome: log.OutcomeSent, Remaining: intPtr(180)},
		},
		{
			Timestamp: ts.Add(2 * time.Second), DeviceID: phoneID, PeerID: watchID, TimerID: eggID,
			Direction: log.DirectionIn, Layer: log.LayerWire, Category: log.CategoryMessage,
			Message: &log.MessageEvent{Type: "timer_change", Kind: "updated", Outcome: log.OutcomeDiscarded},
		},
		{
			Timestamp: ts.Add(3 * time.Second), DeviceID: phoneID, PeerID: watchID,
			Direction: log.DirectionLocal, Layer: log.LayerService, Category: log.CategoryState,
			StateChange: &log.StateChangeEvent{Entity: log.StateEntityReachability, OldState: "unreachable", NewState: "reachable"},
		},
		{
			Timestamp: ts.Add(time.Minute), DeviceID: phoneID, TimerID: teaID,
			Direction: log.DirectionLocal, Layer: log.LayerService, Category: log.CategoryError,
			Error: &log.ErrorEventData{Layer: log.LayerService, Message: "disk full", Context: "checkpoint"},
		},
	}
}

func TestFormatEvents(t *testing.T) {
	events := sampleEvents()

	tests := []struct {
		name  string
		event log.Event
		want  []string
	}{
		{"frame", events[0], []string{"2026-03-01T09:00:00.000000Z", "[phone-11]", "OUT", "TRANSPORT Frame", "42 bytes (context)", "a102"}},
		{"message", events[1], []string{"WIRE runtime_action", "Timer: " + teaID, "Outcome: SENT", "Stream: runtime/", "Kind: started", "Remaining: 180s"}},
		{"state", events[3], []string{"LOCAL", "SERVICE State", "REACHABILITY", "unreachable -> reachable"}},
		{"error", events[4], []string{"Error", "Message: disk full", "Context: checkpoint"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			formatEvent(&buf, tt.event)
			out := buf.String()
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("expected %q in output:\n%s", want, out)
				}
			}
		})
	}
}

func TestRunViewFilters(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	layer := log.LayerWire
	var buf bytes.Buffer
	if err := RunView(path, log.Filter{Layer: &layer}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}
	out := buf.String()
	if got := strings.Count(out, " WIRE "); got != 2 {
		t.Errorf("expected 2 wire events, got %d:\n%s", got, out)
	}
	if strings.Contains(out, "TRANSPORT") {
		t.Errorf("transport event not filtered:\n%s", out)
	}

	buf.Reset()
	if err := RunView(path, log.Filter{TimerID: eggID}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}
	if got := strings.Count(buf.String(), "Timer: "); got != 1 {
		t.Errorf("expected 1 event for egg timer, got %d", got)
	}
}

func TestRunViewMissingFile(t *testing.T) {
	err := RunView(filepath.Join(t.TempDir(), "missing.ptlog"), log.Filter{}, &bytes.Buffer{})
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestParseFlags(t *testing.T) {
	if l, err := ParseLayer("Wire"); err != nil || l != log.LayerWire {
		t.Errorf("ParseLayer(Wire) = %v, %v", l, err)
	}
	if d, err := ParseDirection("local"); err != nil || d != log.DirectionLocal {
		t.Errorf("ParseDirection(local) = %v, %v", d, err)
	}
	if c, err := ParseCategory("STATE"); err != nil || c != log.CategoryState {
		t.Errorf("ParseCategory(STATE) = %v, %v", c, err)
	}
	if _, err := ParseLayer("bogus"); err == nil {
		t.Error("expected error for invalid layer")
	}
	if _, err := ParseDirection("sideways"); err == nil {
		t.Error("expected error for invalid direction")
	}
	if _, err := ParseCategory("control"); err == nil {
		t.Error("expected error for invalid category")
	}
}

func TestExportJSONL(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	out := filepath.Join(t.TempDir(), "out.jsonl")

	if err := RunExport(path, log.Filter{MessageType: "runtime_action"}, "jsonl", out); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	var event log.Event
	if err := json.Unmarshal([]byte(lines[0]), &event); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if event.TimerID != teaID || event.Message == nil || event.Message.Kind != "started" {
		t.Errorf("unexpected event: %+v", event)
	}
}

func TestExportCSV(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	out := filepath.Join(t.TempDir(), "out.csv")

	if err := RunExport(path, log.Filter{}, "csv", out); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}
	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	if len(rows) != 6 {
		t.Fatalf("expected header + 5 rows, got %d", len(rows))
	}
	if strings.Join(rows[0], ",") != strings.Join(csvHeader, ",") {
		t.Errorf("unexpected header: %v", rows[0])
	}
	runtime := rows[2]
	if runtime[6] != teaID || runtime[7] != "runtime_action" || runtime[10] != "SENT" || runtime[11] != "180" {
		t.Errorf("unexpected runtime row: %v", runtime)
	}
}

func TestExportUnknownFormat(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	err := RunExport(path, log.Filter{}, "xml", filepath.Join(t.TempDir(), "out"))
	if err == nil || !strings.Contains(err.Error(), "unknown format") {
		t.Errorf("expected unknown format error, got %v", err)
	}
}

func TestCollectStats(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	stats, err := Collect(path, log.Filter{})
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if stats.TotalEvents != 5 {
		t.Errorf("TotalEvents = %d, want 5", stats.TotalEvents)
	}
	if stats.EventsByLayer[log.LayerWire] != 2 {
		t.Errorf("wire events = %d, want 2", stats.EventsByLayer[log.LayerWire])
	}
	if stats.EventsByDirection[log.DirectionLocal] != 2 {
		t.Errorf("local events = %d, want 2", stats.EventsByDirection[log.DirectionLocal])
	}
	if ms := stats.Messages["timer_change"]; ms == nil || ms.Outcomes[log.OutcomeDiscarded] != 1 {
		t.Errorf("timer_change stats = %+v", ms)
	}
	if stats.Timers[teaID] != 2 || stats.Timers[eggID] != 1 {
		t.Errorf("timer counts = %v", stats.Timers)
	}
	if stats.Reachability != 1 || stats.Errors != 1 {
		t.Errorf("reachability = %d, errors = %d", stats.Reachability, stats.Errors)
	}
	if got := stats.TimeRange.End.Sub(stats.TimeRange.Start); got != time.Minute {
		t.Errorf("time range = %s, want 1m", got)
	}
}

func TestRunStatsOutput(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	var buf bytes.Buffer
	if err := RunStats(path, log.Filter{}, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"Total Events: 5",
		"TRANSPORT:",
		"runtime_action:",
		"SENT=1",
		"DISCARDED=1",
		"Timers: 2",
		"[6f1c2a3b] 2 events",
		"Reachability changes: 1",
		"Errors: 1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestRunStatsEmptyFile(t *testing.T) {
	path := createTestLogFile(t, nil)

	var buf bytes.Buffer
	if err := RunStats(path, log.Filter{}, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Total Events: 0") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}
