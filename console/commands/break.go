package commands

import (
	"context"

	"github.com/hgdb-sim/hgdb/console/types"
	"github.com/pkg/errors"
)

type BreakCmd struct {
	c types.Console
}

func NewBreakCmd(c types.Console) types.Command {
	return &BreakCmd{c}
}

func (cm *BreakCmd) Info() types.CommandInfo {
	return types.CommandInfo{
		Name:        "b",
		HelpMessage: "sets a breakpoint",
		HelpMessageLong: `
Usage:
  b FILE:LINE[:COL]

FILE may be a bare basename when it is unambiguous in the design.
`,
	}
}

func (cm *BreakCmd) Exec(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("b: specify a location")
	}
	loc, err := parseLocator(args[0])
	if err != nil {
		return err
	}
	if loc.Line == 0 {
		return errors.New("b: specify a line number")
	}

	filename := cm.c.ResolveFile(loc.File)
	records, err := cm.c.Breakpoints().Verify(ctx, filename, loc.Line, loc.Column)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return errors.Errorf("no breakpoint possible at %s:%d", filename, loc.Line)
	}

	for _, r := range records {
		if err := cm.c.Breakpoints().SetByID(ctx, r.ID, ""); err != nil {
			return err
		}
		cm.c.Printf("breakpoint %d at %s:%d:%d\n", r.ID, r.Filename, r.Line, r.Column)
	}
	return nil
}
