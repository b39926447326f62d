package commands

import (
	"context"
	"strconv"

	"github.com/hgdb-sim/hgdb/console/types"
	"github.com/pkg/errors"
)

type ClearCmd struct {
	c types.Console
}

func NewClearCmd(c types.Console) types.Command {
	return &ClearCmd{c}
}

func (cm *ClearCmd) Info() types.CommandInfo {
	return types.CommandInfo{
		Name:        "clear",
		HelpMessage: "clears breakpoints in a file",
		HelpMessageLong: `
Usage:
  clear FILE[:LINE[:COL]]

With a line, only the matching breakpoints are removed; otherwise the
whole file is cleared.
`,
	}
}

func (cm *ClearCmd) Exec(ctx context.Context, args []string) error {
	if len(args) == 0 {
		cm.c.Printf("not implemented\n")
		return nil
	}

	loc, err := parseLocator(args[0])
	if err != nil {
		return err
	}
	filename := cm.c.ResolveFile(loc.File)

	if loc.Line == 0 {
		return cm.c.Breakpoints().ClearByFile(filename)
	}

	removed := 0
	for _, r := range cm.c.Breakpoints().ListNormal() {
		if r.Filename != filename || r.Line != loc.Line {
			continue
		}
		if loc.Column > 0 && r.Column != loc.Column {
			continue
		}
		if err := cm.c.Breakpoints().RemoveByID(ctx, r.ID); err != nil {
			return err
		}
		removed++
	}
	if removed == 0 {
		return errors.Errorf("no breakpoint at %s:%d", filename, loc.Line)
	}
	return nil
}

type DeleteCmd struct {
	c types.Console
}

func NewDeleteCmd(c types.Console) types.Command {
	return &DeleteCmd{c}
}

func (cm *DeleteCmd) Info() types.CommandInfo {
	return types.CommandInfo{
		Name:        "d",
		Aliases:     []string{"delete"},
		HelpMessage: "deletes a breakpoint by id",
		HelpMessageLong: `
Usage:
  d ID
`,
	}
}

func (cm *DeleteCmd) Exec(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("d: specify a breakpoint id")
	}
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return errors.Errorf("d: invalid breakpoint id %q", args[0])
	}
	return cm.c.Breakpoints().RemoveByID(ctx, id)
}
