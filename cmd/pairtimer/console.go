package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/google/uuid"

	"github.com/pairtimer/pairtimer-go/pkg/catalog"
	"github.com/pairtimer/pairtimer-go/pkg/countdown"
	plog "github.com/pairtimer/pairtimer-go/pkg/log"
	"github.com/pairtimer/pairtimer-go/pkg/model"
	"github.com/pairtimer/pairtimer-go/pkg/service"
)

// Console is the interactive command line of a running device.
type Console struct {
	svc *service.DeviceService
	rl  *readline.Instance
}

// NewConsole creates the console. Attach must be called before Run.
func NewConsole() (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "pairtimer> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Console{rl: rl}, nil
}

// Stdout returns a writer that coordinates with the prompt.
func (c *Console) Stdout() io.Writer { return c.rl.Stdout() }

// Stderr returns a writer that coordinates with the prompt.
func (c *Console) Stderr() io.Writer { return c.rl.Stderr() }

// Attach binds the console to a started service.
func (c *Console) Attach(svc *service.DeviceService) {
	c.svc = svc
	svc.OnEvent(c.handleEvent)
}

// Run reads commands until quit, EOF or ctx is done.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		var cmdErr error
		switch cmd {
		case "help", "?":
			c.printHelp()
		case "list", "ls":
			cmdErr = c.cmdList(ctx)
		case "show":
			cmdErr = c.cmdShow(ctx, args)
		case "create", "new":
			cmdErr = c.cmdCreate(ctx, args)
		case "rename":
			cmdErr = c.cmdRename(ctx, args)
		case "duration":
			cmdErr = c.cmdDuration(ctx, args)
		case "delete", "rm":
			cmdErr = c.cmdDelete(ctx, args)
		case "start", "pause", "resume", "reset":
			cmdErr = c.cmdRuntime(ctx, cmd, args)
		case "add":
			cmdErr = c.cmdAddItem(ctx, args)
		case "toggle":
			cmdErr = c.cmdToggleItem(ctx, args)
		case "remove":
			cmdErr = c.cmdRemoveItem(ctx, args)
		case "notes":
			cmdErr = c.cmdNotes(ctx, args)
		case "status", "s":
			cmdErr = c.cmdStatus(ctx)
		case "sync":
			cmdErr = c.svc.RequestResync(ctx)
		case "bg":
			cmdErr = c.svc.Background(ctx)
		case "quit", "exit", "q":
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return
		default:
			fmt.Fprintf(c.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
		if cmdErr != nil {
			fmt.Fprintf(c.rl.Stdout(), "Error: %v\n", cmdErr)
		}
	}
}

func (c *Console) printHelp() {
	fmt.Fprint(c.rl.Stdout(), `
Commands:
  list                         List timers
  show <timer>                 Show a timer with its checklist
  create <seconds> <name...>   Create a timer
  rename <timer> <name...>     Rename a timer
  duration <timer> <seconds>   Change a timer's duration
  delete <timer>               Delete a timer
  start|pause|resume|reset <timer>
  add <timer> <text...>        Add a checklist item
  toggle <timer> <item#>       Toggle a checklist item
  remove <timer> <item#>       Remove a checklist item
  notes <timer> <text...>      Replace a timer's notes
  status                       Show device status
  sync                         Request a full sync from the peer
  bg                           Checkpoint every countdown
  quit                         Exit

A <timer> is its list number, an id prefix or its name.
`)
}

// resolve finds a timer by list number, id prefix or exact name.
func (c *Console) resolve(ref string) (*model.Timer, error) {
	timers := c.svc.Timers()
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(timers) {
			return nil, fmt.Errorf("no timer #%d", n)
		}
		return timers[n-1], nil
	}
	var match *model.Timer
	for _, t := range timers {
		if strings.EqualFold(t.Name, ref) {
			return t, nil
		}
		if strings.HasPrefix(t.ID.String(), strings.ToLower(ref)) {
			if match != nil {
				return nil, fmt.Errorf("%q is ambiguous", ref)
			}
			match = t
		}
	}
	if match == nil {
		return nil, fmt.Errorf("no timer %q", ref)
	}
	return match, nil
}

func resolveItem(t *model.Timer, ref string) (uuid.UUID, error) {
	n, err := strconv.Atoi(ref)
	if err != nil || n < 1 || n > len(t.Items) {
		return uuid.Nil, fmt.Errorf("no item %q on %s", ref, t.Name)
	}
	return t.Items[n-1].ID, nil
}

func need(args []string, n int, usage string) error {
	if len(args) < n {
		return fmt.Errorf("usage: %s", usage)
	}
	return nil
}

func (c *Console) cmdList(ctx context.Context) error {
	timers := c.svc.Timers()
	if len(timers) == 0 {
		fmt.Fprintln(c.rl.Stdout(), "No timers.")
		return nil
	}
	w := c.rl.Stdout()
	fmt.Fprintf(w, "%-3s %-10s %-24s %-9s %s\n", "#", "ID", "NAME", "STATE", "REMAINING")
	for i, t := range timers {
		rt, err := c.svc.Runtime(ctx, t.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%-3d %-10s %-24s %-9s %s\n",
			i+1, t.ID.String()[:8], t.Name, rt.State, clock(rt.Remaining))
	}
	return nil
}

func (c *Console) cmdShow(ctx context.Context, args []string) error {
	if err := need(args, 1, "show <timer>"); err != nil {
		return err
	}
	t, err := c.resolve(args[0])
	if err != nil {
		return err
	}
	rt, err := c.svc.Runtime(ctx, t.ID)
	if err != nil {
		return err
	}
	w := c.rl.Stdout()
	fmt.Fprintf(w, "%s (%s)\n", t.Name, t.ID)
	fmt.Fprintf(w, "  Duration:  %s\n", clock(t.DurationSeconds))
	fmt.Fprintf(w, "  State:     %s, %s left\n", rt.State, clock(rt.Remaining))
	fmt.Fprintf(w, "  Updated:   %s\n", t.UpdatedAt.Local().Format(time.DateTime))
	if t.Notes != "" {
		fmt.Fprintf(w, "  Notes:     %s\n", t.Notes)
	}
	for i, it := range t.Items {
		mark := " "
		if it.Completed {
			mark = "x"
		}
		fmt.Fprintf(w, "  %2d. [%s] %s\n", i+1, mark, it.Text)
	}
	return nil
}

func (c *Console) cmdCreate(ctx context.Context, args []string) error {
	if err := need(args, 2, "create <seconds> <name...>"); err != nil {
		return err
	}
	secs, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid duration %q", args[0])
	}
	t, err := c.svc.CreateTimer(ctx, catalog.NewTimer{
		Name:            strings.Join(args[1:], " "),
		DurationSeconds: secs,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.rl.Stdout(), "Created %s (%s)\n", t.Name, t.ID.String()[:8])
	return nil
}

func (c *Console) cmdRename(ctx context.Context, args []string) error {
	if err := need(args, 2, "rename <timer> <name...>"); err != nil {
		return err
	}
	t, err := c.resolve(args[0])
	if err != nil {
		return err
	}
	name := strings.Join(args[1:], " ")
	_, err = c.svc.UpdateTimer(ctx, t.ID, catalog.TimerPatch{Name: &name})
	return err
}

func (c *Console) cmdDuration(ctx context.Context, args []string) error {
	if err := need(args, 2, "duration <timer> <seconds>"); err != nil {
		return err
	}
	t, err := c.resolve(args[0])
	if err != nil {
		return err
	}
	secs, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid duration %q", args[1])
	}
	_, err = c.svc.UpdateTimer(ctx, t.ID, catalog.TimerPatch{DurationSeconds: &secs})
	return err
}

func (c *Console) cmdDelete(ctx context.Context, args []string) error {
	if err := need(args, 1, "delete <timer>"); err != nil {
		return err
	}
	t, err := c.resolve(args[0])
	if err != nil {
		return err
	}
	return c.svc.DeleteTimer(ctx, t.ID)
}

func (c *Console) cmdRuntime(ctx context.Context, cmd string, args []string) error {
	if err := need(args, 1, cmd+" <timer>"); err != nil {
		return err
	}
	t, err := c.resolve(args[0])
	if err != nil {
		return err
	}
	var tr countdown.Transition
	switch cmd {
	case "start":
		tr, err = c.svc.StartTimer(ctx, t.ID)
	case "pause":
		tr, err = c.svc.PauseTimer(ctx, t.ID)
	case "resume":
		tr, err = c.svc.ResumeTimer(ctx, t.ID)
	case "reset":
		tr, err = c.svc.ResetTimer(ctx, t.ID)
	}
	if err != nil {
		return err
	}
	if tr.IsNoop() {
		fmt.Fprintf(c.rl.Stdout(), "%s is %s, nothing to %s\n", t.Name, tr.From, cmd)
	}
	return nil
}

func (c *Console) cmdAddItem(ctx context.Context, args []string) error {
	if err := need(args, 2, "add <timer> <text...>"); err != nil {
		return err
	}
	t, err := c.resolve(args[0])
	if err != nil {
		return err
	}
	_, err = c.svc.AddItem(ctx, t.ID, strings.Join(args[1:], " "))
	return err
}

func (c *Console) cmdToggleItem(ctx context.Context, args []string) error {
	if err := need(args, 2, "toggle <timer> <item#>"); err != nil {
		return err
	}
	t, err := c.resolve(args[0])
	if err != nil {
		return err
	}
	itemID, err := resolveItem(t, args[1])
	if err != nil {
		return err
	}
	_, err = c.svc.ToggleItem(ctx, t.ID, itemID)
	return err
}

func (c *Console) cmdRemoveItem(ctx context.Context, args []string) error {
	if err := need(args, 2, "remove <timer> <item#>"); err != nil {
		return err
	}
	t, err := c.resolve(args[0])
	if err != nil {
		return err
	}
	itemID, err := resolveItem(t, args[1])
	if err != nil {
		return err
	}
	return c.svc.RemoveItem(ctx, t.ID, itemID)
}

func (c *Console) cmdNotes(ctx context.Context, args []string) error {
	if err := need(args, 1, "notes <timer> <text...>"); err != nil {
		return err
	}
	t, err := c.resolve(args[0])
	if err != nil {
		return err
	}
	_, err = c.svc.UpdateNotes(ctx, t.ID, strings.Join(args[1:], " "))
	return err
}

func (c *Console) cmdStatus(ctx context.Context) error {
	st, err := c.svc.Status(ctx)
	if err != nil {
		return err
	}
	w := c.rl.Stdout()
	fmt.Fprintf(w, "Device:   %s\n", st.DeviceID)
	fmt.Fprintf(w, "Peer:     %s (reachable: %v)\n", st.PeerID, st.Reachable)
	fmt.Fprintf(w, "Service:  %s\n", st.State)
	fmt.Fprintf(w, "Timers:   %d (%d live countdowns)\n", st.Timers, st.LiveEngines)
	if st.Running != uuid.Nil {
		name := st.Running.String()[:8]
		if t, ok := c.svc.Timer(st.Running); ok {
			name = t.Name
		}
		fmt.Fprintf(w, "Running:  %s\n", name)
	}
	fmt.Fprintf(w, "Pending:  %d streams\n", st.PendingStreams)
	return nil
}

// handleEvent prints events worth interrupting the prompt for. Ticks are
// skipped.
func (c *Console) handleEvent(event service.Event) {
	w := c.rl.Stdout()
	switch event.Type {
	case service.EventTimerCompleted:
		fmt.Fprintf(w, "[EVENT] %s finished\n", c.name(event.TimerID))
	case service.EventAlert:
		fmt.Fprintf(w, "[ALERT] %s: %s\n", event.Alert.Title, event.Alert.Body)
	case service.EventRuntimeChanged:
		if event.Change.Transition.Action == countdown.ActionTick {
			return
		}
		fmt.Fprintf(w, "[EVENT] %s %s (%s, %s left)\n",
			c.name(event.TimerID), event.Change.Transition.Action,
			event.Change.Origin, clock(event.Change.Transition.Remaining))
	case service.EventReachabilityChanged:
		if event.Reachable {
			fmt.Fprintln(w, "[EVENT] Peer reachable")
		} else {
			fmt.Fprintln(w, "[EVENT] Peer unreachable")
		}
	case service.EventFullSync:
		fmt.Fprintln(w, "[EVENT] Full sync applied")
	case service.EventTimerDeleted:
		fmt.Fprintf(w, "[EVENT] Timer %s deleted\n", event.TimerID.String()[:8])
	case service.EventSaveFailed:
		fmt.Fprintf(w, "[EVENT] Couldn't save %s: %v\n", c.name(event.TimerID), event.Error)
	}
}

func (c *Console) name(id uuid.UUID) string {
	if t, ok := c.svc.Timer(id); ok {
		return t.Name
	}
	return id.String()[:8]
}

// logEvent returns the headless event handler.
func logEvent(logger *slog.Logger) service.EventHandler {
	return func(event service.Event) {
		switch event.Type {
		case service.EventRuntimeChanged:
			if event.Change.Transition.Action == countdown.ActionTick {
				return
			}
			logger.Info("countdown changed",
				plog.TimerID(event.TimerID),
				slog.String("action", event.Change.Transition.Action.String()),
				slog.String("origin", event.Change.Origin.String()),
				slog.Int("remaining", event.Change.Transition.Remaining))
		case service.EventTimerChanged, service.EventTimerDeleted, service.EventTimerCompleted, service.EventFullSync:
			logger.Info("event", slog.String("type", event.Type.String()), plog.TimerID(event.TimerID))
		case service.EventAlert:
			logger.Info("alert", slog.String("title", event.Alert.Title), slog.String("body", event.Alert.Body))
		case service.EventReachabilityChanged:
			logger.Info("peer reachability changed", slog.Bool("reachable", event.Reachable))
		case service.EventSaveFailed:
			logger.Error("save failed", plog.TimerID(event.TimerID), plog.Err(event.Error))
		}
	}
}

// clock formats seconds as m:ss or h:mm:ss.
func clock(secs int) string {
	d := time.Duration(secs) * time.Second
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := secs % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
