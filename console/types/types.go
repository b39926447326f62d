package types

import (
	"context"

	"github.com/hgdb-sim/hgdb/breakpoint"
	"github.com/hgdb-sim/hgdb/session"
)

// CommandInfo describes one console command.
type CommandInfo struct {
	// Name is what the user types.
	Name string

	// Aliases are alternate spellings.
	Aliases []string

	// HelpMessage is the one-line summary printed by help.
	HelpMessage string

	// HelpMessageLong is the detailed usage text.
	HelpMessageLong string

	// AwaitsStop marks flow commands: after a successful dispatch the
	// console blocks until the next break event before prompting.
	AwaitsStop bool
}

// Command is one console command.
type Command interface {
	Info() CommandInfo
	Exec(ctx context.Context, args []string) error
}

// Console is the surface commands operate on.
type Console interface {
	// Session is the connection to the simulator runtime.
	Session() *session.Session

	// Breakpoints is the breakpoint table.
	Breakpoints() *breakpoint.Manager

	// ResolveFile expands a user-typed filename through the server's
	// file list, falling back to the literal name.
	ResolveFile(name string) string

	// LocalPath rewrites a server-side path for local disk access.
	LocalPath(path string) string

	// Workspace is the directory searched for relative source files.
	Workspace() string

	// Printf writes to the console output.
	Printf(format string, a ...any)

	// Commands lists every registered command, for help.
	Commands() []Command

	// Exit asks the console loop to terminate.
	Exit()
}
