// Package shell provides a line-oriented interface to a floodlight panel.
package shell

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/rmrobinson/floodlight/services/ui/panel"
)

// Panel is the subset of the panel controller the shell drives.
type Panel interface {
	IncrementBrightness()
	DecrementBrightness()
	SetNightVision(bool)
	SetDuskTillDawn(bool)
	SetFlashing(bool)
	Snapshot() panel.Snapshot
}

// Shell reads commands from the terminal and applies them to a panel.
type Shell struct {
	rl *readline.Instance
}

// New creates a shell attached to the terminal.
func New() (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "floodlight> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	return &Shell{
		rl: rl,
	}, nil
}

// Stdout returns a writer that properly coordinates with the readline input.
func (s *Shell) Stdout() io.Writer {
	return s.rl.Stdout()
}

// Stderr returns a writer that properly coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (s *Shell) Stderr() io.Writer {
	return s.rl.Stderr()
}

// Run starts the interactive command loop. It returns when the user quits or the context is cancelled.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc, p Panel) {
	defer s.rl.Close()

	out := s.rl.Stdout()
	printHelp(out)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		} else if err != nil {
			fmt.Fprintln(out, "Exiting...")
			cancel()
			return
		}

		if quit := Execute(out, p, line); quit {
			fmt.Fprintln(out, "Exiting...")
			cancel()
			return
		}
	}
}

// Execute runs a single command line against the panel, writing any output to out.
// It returns true if the command asks to quit.
func Execute(out io.Writer, p Panel, line string) bool {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) < 1 {
		return false
	}

	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		printHelp(out)
	case "status", "s":
		PrintSnapshot(out, p.Snapshot())
	case "+", "up", "brighter":
		if !p.Snapshot().CanIncrement() {
			fmt.Fprintln(out, "Brightness can't be raised right now")
			return false
		}
		p.IncrementBrightness()
	case "-", "down", "dimmer":
		if !p.Snapshot().CanDecrement() {
			fmt.Fprintln(out, "Brightness can't be lowered right now")
			return false
		}
		p.DecrementBrightness()
	case "nightvision", "nv":
		toggle(out, cmd, args, p.Snapshot().State.NightVision, p.SetNightVision)
	case "dusk", "dusktilldawn":
		toggle(out, cmd, args, p.Snapshot().State.DuskTillDawn, p.SetDuskTillDawn)
	case "flashing", "flash":
		toggle(out, cmd, args, p.Snapshot().State.Flashing, p.SetFlashing)
	case "quit", "exit", "q":
		return true
	default:
		fmt.Fprintf(out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

func toggle(out io.Writer, cmd string, args []string, current bool, set func(bool)) {
	if len(args) < 1 {
		set(!current)
		return
	}

	switch strings.ToLower(args[0]) {
	case "on", "true", "yes", "1":
		set(true)
	case "off", "false", "no", "0":
		set(false)
	default:
		fmt.Fprintf(out, "Usage: %s [on|off]\n", cmd)
	}
}

// PrintSnapshot writes a human readable rendition of the snapshot.
func PrintSnapshot(out io.Writer, snap panel.Snapshot) {
	switch snap.Phase {
	case panel.PhaseInitial:
		fmt.Fprintln(out, "Not loaded")
		return
	case panel.PhaseLoading:
		fmt.Fprintln(out, "Loading...")
		return
	case panel.PhaseFailed:
		fmt.Fprintf(out, "State unavailable: %v\n", snap.Err)
	}

	s := snap.State
	fmt.Fprintf(out, "Brightness: %3d%%  Time left: %dh\n", s.Brightness, s.TimeLeft)
	fmt.Fprintf(out, "Night vision: %s  Dusk till dawn: %s  Flashing: %s\n",
		onOff(s.NightVision), onOff(s.DuskTillDawn), onOff(s.Flashing))
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, `
Floodlight Commands:
  status                 - Show the current state
  + | up                 - Raise brightness one step
  - | down               - Lower brightness one step
  nightvision [on|off]   - Set (or toggle) night vision
  dusk [on|off]          - Set (or toggle) dusk till dawn
  flashing [on|off]      - Set (or toggle) flashing
  help                   - Show this help
  quit                   - Exit`)
}
