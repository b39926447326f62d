package commands

import (
	"context"
	"strings"

	"github.com/hgdb-sim/hgdb/console/types"
	"github.com/pkg/errors"
)

type WatchCmd struct {
	c types.Console
}

func NewWatchCmd(c types.Console) types.Command {
	return &WatchCmd{c}
}

func (cm *WatchCmd) Info() types.CommandInfo {
	return types.CommandInfo{
		Name:        "w",
		HelpMessage: "sets a watchpoint on a variable",
		HelpMessageLong: `
Usage:
  w VAR [--cond EXPR]

The watchpoint is tied to the breakpoint the current instance is
stopped on.
`,
	}
}

func (cm *WatchCmd) Exec(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("w: specify a variable")
	}
	varName := args[0]

	var cond string
	for i := 1; i < len(args); i++ {
		if args[i] == "--cond" && i+1 < len(args) {
			cond = strings.Join(args[i+1:], " ")
			break
		}
	}

	iid, ok := cm.c.Session().CurrentInstance()
	if !ok {
		return errors.New("w: no current instance, stop at a breakpoint first")
	}

	if !cm.c.Breakpoints().ValidateData(ctx, iid, varName) {
		return errors.Errorf("w: cannot watch %s", varName)
	}
	if err := cm.c.Breakpoints().AddData(ctx, iid, varName, cond); err != nil {
		return err
	}
	cm.c.Printf("watchpoint set on %s\n", varName)
	return nil
}
