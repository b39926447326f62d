package console

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/hgdb-sim/hgdb/breakpoint"
	"github.com/hgdb-sim/hgdb/console/commands"
	"github.com/hgdb-sim/hgdb/console/types"
	"github.com/hgdb-sim/hgdb/session"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

// Options configures the console front-end.
type Options struct {
	// Workspace is searched when listing relative source files.
	Workspace string

	// PathMap rewrites server paths for local disk access.
	PathMap session.PathMap

	// HistoryPath is the command history file; empty disables history.
	HistoryPath string
	HistorySize int
}

// Console is the line-oriented front-end over one session.
type Console struct {
	sess *session.Session
	bps  *breakpoint.Manager
	opts Options
	log  *logrus.Entry

	out      io.Writer
	byName   map[string]types.Command
	commands []types.Command
	history  *history

	exiting atomic.Bool
}

var _ types.Console = (*Console)(nil)

func New(sess *session.Session, bps *breakpoint.Manager, opts Options) *Console {
	c := &Console{
		sess:   sess,
		bps:    bps,
		opts:   opts,
		log:    logrus.WithField("component", "console"),
		out:    io.Discard,
		byName: make(map[string]types.Command),
	}
	if opts.HistoryPath != "" {
		c.history = newHistory(opts.HistoryPath, opts.HistorySize)
	}

	for _, cmd := range []types.Command{
		commands.NewBreakCmd(c),
		commands.NewWatchCmd(c),
		commands.NewDeleteCmd(c),
		commands.NewClearCmd(c),
		commands.NewContinueCmd(c),
		commands.NewNextCmd(c),
		commands.NewStepBackCmd(c),
		commands.NewReverseContinueCmd(c),
		commands.NewJumpCmd(c),
		commands.NewPrintCmd(c),
		commands.NewSetCmd(c),
		commands.NewListCmd(c),
		commands.NewInfoCmd(c),
		commands.NewThreadCmd(c),
		commands.NewConditionCmd(c),
		commands.NewHelpCmd(c),
		commands.NewQuitCmd(c),
	} {
		c.register(cmd)
	}
	return c
}

func (c *Console) register(cmd types.Command) {
	info := cmd.Info()
	c.commands = append(c.commands, cmd)
	c.byName[info.Name] = cmd
	for _, alias := range info.Aliases {
		c.byName[alias] = cmd
	}
}

// Session implements types.Console.
func (c *Console) Session() *session.Session { return c.sess }

func (c *Console) Breakpoints() *breakpoint.Manager { return c.bps }

func (c *Console) Workspace() string { return c.opts.Workspace }

func (c *Console) LocalPath(path string) string { return c.opts.PathMap.ToLocal(path) }

func (c *Console) ResolveFile(name string) string {
	if full, ok := c.sess.Files().Resolve(name); ok {
		return full
	}
	return name
}

func (c *Console) Printf(format string, a ...any) {
	fmt.Fprintf(c.out, format, a...)
}

func (c *Console) Commands() []types.Command {
	return append([]types.Command(nil), c.commands...)
}

func (c *Console) Exit() {
	c.exiting.Store(true)
}

// Dispatch parses and executes one input line. Flow commands block
// until the next break event and reprint the stop location.
func (c *Console) Dispatch(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	cmd, ok := c.byName[fields[0]]
	if !ok {
		return fmt.Errorf("unknown command %q, try help", fields[0])
	}

	gen := c.sess.Generation()
	if err := cmd.Exec(ctx, fields[1:]); err != nil {
		return err
	}

	if cmd.Info().AwaitsStop {
		if err := c.sess.WaitForGeneration(ctx, gen+1); err != nil {
			return err
		}
		c.printLocation()
	}
	return nil
}

func (c *Console) printLocation() {
	loc := c.sess.Location()
	if !loc.Valid {
		return
	}
	c.Printf("stopped at %s:%d (time %d)\n", c.sess.Files().Display(loc.Filename), loc.Line, loc.Time)
	for _, iid := range c.sess.Instances() {
		c.Printf("  [%d]: %s\n", iid, c.sess.InstanceName(iid))
	}
}

type readWriter struct {
	io.Reader
	io.Writer
}

// Run drives the interactive loop until q, EOF, or session end.
func (c *Console) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	c.out = out

	ended := make(chan struct{})
	c.sess.OnEnd(func(err error) {
		if err != nil {
			c.Printf("%v\n", err)
		}
		c.Exit()
		close(ended)
	})

	t := term.NewTerminal(readWriter{in, out}, "(hgdb) ")
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		for {
			l, err := t.ReadLine()
			if err != nil {
				if err != io.EOF {
					readErr <- err
				}
				return
			}
			select {
			case lines <- l:
			case <-ended:
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return context.Cause(ctx)
		case <-ended:
			return nil
		case err := <-readErr:
			return err
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if strings.TrimSpace(line) != "" && c.history != nil {
				c.history.append(line)
			}
			if err := c.Dispatch(ctx, line); err != nil {
				c.Printf("%v\n", err)
			}
			if c.exiting.Load() {
				c.sess.Close()
				return nil
			}
		}
	}
}
