package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/ntcore/internal/config"
	"github.com/roach88/ntcore/internal/engine"
	"github.com/roach88/ntcore/internal/nt"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Config string
}

// ServeEvent is one line of serve output in JSON mode.
type ServeEvent struct {
	Category string `json:"category"` // status, entry, connection, log
	Event    string `json:"event"`
	Name     string `json:"name,omitempty"`
	Type     string `json:"type,omitempty"`
	Value    any    `json:"value,omitempty"`
	Level    string `json:"level,omitempty"`
	Message  string `json:"message,omitempty"`
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run an instance from a config file",
		Long: `Create an instance, apply a config file (YAML or CUE) and print every
entry change, connection change and engine log message until interrupted.

On SIGINT or SIGTERM a server saves its persistent entries to
server.persist_file before exiting.

Exit codes:
  0 - Clean shutdown
  1 - Persistent entries could not be saved
  2 - Command error (bad config, server could not start)

Examples:
  ntctl serve --config robot.yaml
  ntctl serve --config dashboard.cue --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "config file (.yaml, .yml or .cue) (required)")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func runServe(ctx context.Context, opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid config", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := &eventPrinter{f: opts.formatter(cmd)}

	inst := opts.openInstance(cmd)
	defer inst.Close()

	// Listeners go first so entries loaded by Apply are reported.
	if _, err := inst.AddEntryListener("", serveEntryFlags, p.entry); err != nil {
		return WrapExitError(ExitCommandError, "failed to add entry listener", err)
	}
	if _, err := inst.AddConnectionListener(true, p.connection); err != nil {
		return WrapExitError(ExitCommandError, "failed to add connection listener", err)
	}
	if _, err := inst.AddLogger(cfg.Level(), engine.LogCritical, p.log); err != nil {
		return WrapExitError(ExitCommandError, "failed to add logger", err)
	}

	if err := cfg.Apply(ctx, inst); err != nil {
		return WrapExitError(ExitCommandError, "failed to apply config", err)
	}
	p.status("started", cfg.Mode, inst.NetworkMode().String())

	<-ctx.Done()

	if cfg.Mode == config.ModeServer {
		if err := inst.SavePersistent(context.WithoutCancel(ctx), cfg.Server.PersistFile); err != nil {
			return WrapExitError(ExitFailure, "failed to save persistent entries", err)
		}
		p.status("saved", cfg.Mode, cfg.Server.PersistFile)
	}
	p.status("stopped", cfg.Mode, "")
	return nil
}

const serveEntryFlags = nt.NotifyImmediate | nt.NotifyLocal | nt.NotifyNew |
	nt.NotifyUpdate | nt.NotifyDelete | nt.NotifyFlagsChanged

// eventPrinter writes listener callbacks to the command output. Callbacks
// of different categories run on different goroutines.
type eventPrinter struct {
	f *OutputFormatter
}

func (p *eventPrinter) status(event, mode, detail string) {
	if p.f.IsJSON() {
		_ = p.f.Event(ServeEvent{Category: "status", Event: event, Name: mode, Message: detail})
		return
	}
	c := p.f.colors()
	if detail == "" {
		p.f.Printf("%s %s\n", c.Pass(event), mode)
		return
	}
	p.f.Printf("%s %s (%s)\n", c.Pass(event), mode, detail)
}

func (p *eventPrinter) entry(ev nt.EntryEvent) {
	name := entryEventName(ev.Flags)
	if p.f.IsJSON() {
		out := ServeEvent{Category: "entry", Event: name, Name: ev.Name}
		if name != "delete" {
			out.Type = ev.Value.Kind().String()
			out.Value = ev.Value.ObjectValue()
		}
		_ = p.f.Event(out)
		return
	}
	c := p.f.colors()
	if name == "delete" {
		p.f.Printf("entry %s %s\n", name, c.Name(ev.Name))
		return
	}
	p.f.Printf("entry %s %s %s %s\n", name, c.Name(ev.Name), c.Kind(ev.Value.Kind()), displayValue(ev.Value.ObjectValue()))
}

func (p *eventPrinter) connection(ev nt.ConnectionEvent) {
	event := "disconnected"
	if ev.Connected {
		event = "connected"
	}
	addr := fmt.Sprintf("%s:%d", ev.Conn.RemoteIP, ev.Conn.RemotePort)
	if p.f.IsJSON() {
		_ = p.f.Event(ServeEvent{Category: "connection", Event: event, Name: ev.Conn.RemoteID, Message: addr})
		return
	}
	p.f.Printf("connection %s %s %s\n", event, p.f.colors().Name(ev.Conn.RemoteID), addr)
}

func (p *eventPrinter) log(msg nt.LogMessage) {
	if p.f.IsJSON() {
		_ = p.f.Event(ServeEvent{Category: "log", Event: "message", Level: msg.Level.String(), Message: msg.Message})
		return
	}
	c := p.f.colors()
	level := msg.Level.String()
	if msg.Level >= engine.LogWarning {
		level = c.Warning(level)
	}
	p.f.Printf("log %s %s:%d %s\n", level, msg.Filename, msg.Line, msg.Message)
}

// entryEventName names the change an entry notification reports.
func entryEventName(flags nt.NotifyFlags) string {
	switch {
	case flags&nt.NotifyDelete != 0:
		return "delete"
	case flags&nt.NotifyNew != 0:
		return "new"
	case flags&nt.NotifyFlagsChanged != 0 && flags&nt.NotifyUpdate == 0:
		return "flags"
	default:
		return "update"
	}
}
