// Command pairtimer-log views and analyzes pairtimer protocol trace files.
//
// Trace files are written by pairtimer when run with --protocol-log.
//
// Usage:
//
//	pairtimer-log <command> [flags] <file.ptlog>
//
// Examples:
//
//	# View all events
//	pairtimer-log view phone.ptlog
//
//	# View only wire-layer events for one timer
//	pairtimer-log view --layer wire --timer 6f1c2a3b-... phone.ptlog
//
//	# Export outgoing runtime messages to CSV
//	pairtimer-log export --format csv --direction out --type runtime_action phone.ptlog
//
//	# Show statistics
//	pairtimer-log stats phone.ptlog
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kong"

	"github.com/pairtimer/pairtimer-go/cmd/pairtimer-log/commands"
	"github.com/pairtimer/pairtimer-go/pkg/log"
)

// FilterFlags select events. Empty flags match everything.
type FilterFlags struct {
	Device    string    `help:"Only events logged by this device id"`
	Peer      string    `help:"Only events involving this peer id"`
	Timer     string    `help:"Only events for this timer id"`
	Type      string    `help:"Only messages of this type (timer_change, runtime_action, ...)"`
	Layer     string    `help:"Filter by layer (transport, wire, service)"`
	Direction string    `help:"Filter by direction (in, out, local)"`
	Category  string    `help:"Filter by category (message, state, error)"`
	Since     time.Time `help:"Only events at or after this RFC 3339 time" format:"2006-01-02T15:04:05Z07:00"`
	Until     time.Time `help:"Only events before this RFC 3339 time" format:"2006-01-02T15:04:05Z07:00"`
}

// Filter converts the flags into a log.Filter.
func (f *FilterFlags) Filter() (log.Filter, error) {
	filter := log.Filter{
		DeviceID:    f.Device,
		PeerID:      f.Peer,
		TimerID:     f.Timer,
		MessageType: f.Type,
	}
	if f.Layer != "" {
		l, err := commands.ParseLayer(f.Layer)
		if err != nil {
			return filter, err
		}
		filter.Layer = &l
	}
	if f.Direction != "" {
		d, err := commands.ParseDirection(f.Direction)
		if err != nil {
			return filter, err
		}
		filter.Direction = &d
	}
	if f.Category != "" {
		c, err := commands.ParseCategory(f.Category)
		if err != nil {
			return filter, err
		}
		filter.Category = &c
	}
	if !f.Since.IsZero() {
		filter.TimeStart = &f.Since
	}
	if !f.Until.IsZero() {
		filter.TimeEnd = &f.Until
	}
	return filter, nil
}

// ViewCmd prints events in human-readable form.
type ViewCmd struct {
	FilterFlags
	Path string `arg:"" help:"Trace file" type:"existingfile"`
}

// Run executes the command.
func (c *ViewCmd) Run() error {
	filter, err := c.Filter()
	if err != nil {
		return err
	}
	return commands.RunView(c.Path, filter, os.Stdout)
}

// ExportCmd writes events as JSON lines or CSV.
type ExportCmd struct {
	FilterFlags
	Format string `help:"Output format" enum:"jsonl,csv" default:"jsonl"`
	Output string `short:"o" help:"Output file (default: stdout)" type:"path"`
	Path   string `arg:"" help:"Trace file" type:"existingfile"`
}

// Run executes the command.
func (c *ExportCmd) Run() error {
	filter, err := c.Filter()
	if err != nil {
		return err
	}
	return commands.RunExport(c.Path, filter, c.Format, c.Output)
}

// StatsCmd prints aggregate statistics.
type StatsCmd struct {
	FilterFlags
	Path string `arg:"" help:"Trace file" type:"existingfile"`
}

// Run executes the command.
func (c *StatsCmd) Run() error {
	filter, err := c.Filter()
	if err != nil {
		return err
	}
	return commands.RunStats(c.Path, filter, os.Stdout)
}

// CLI is the command line.
type CLI struct {
	View   ViewCmd   `cmd:"" help:"View a trace file in human-readable format"`
	Export ExportCmd `cmd:"" help:"Export a trace file to JSON lines or CSV"`
	Stats  StatsCmd  `cmd:"" help:"Show statistics about a trace file"`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("pairtimer-log"),
		kong.Description("Pairtimer protocol log analyzer."),
		kong.UsageOnError(),
	)
	if err := kctx.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
