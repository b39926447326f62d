package commands

import (
	"context"
	"strconv"
	"strings"

	"github.com/hgdb-sim/hgdb/console/types"
	"github.com/pkg/errors"
)

type ThreadCmd struct {
	c types.Console
}

func NewThreadCmd(c types.Console) types.Command {
	return &ThreadCmd{c}
}

func (cm *ThreadCmd) Info() types.CommandInfo {
	return types.CommandInfo{
		Name:        "thread",
		HelpMessage: "switches the current instance",
		HelpMessageLong: `
Usage:
  thread INSTANCE_ID
`,
	}
}

func (cm *ThreadCmd) Exec(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("thread: specify an instance id")
	}
	iid, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return errors.Errorf("thread: invalid instance id %q", args[0])
	}
	if !cm.c.Session().SelectInstance(iid) {
		return errors.Errorf("thread: instance %d is not part of the current break", iid)
	}
	cm.c.Printf("current instance is now [%d]: %s\n", iid, cm.c.Session().InstanceName(iid))
	return nil
}

type ConditionCmd struct {
	c types.Console
}

func NewConditionCmd(c types.Console) types.Command {
	return &ConditionCmd{c}
}

func (cm *ConditionCmd) Info() types.CommandInfo {
	return types.CommandInfo{
		Name:        "condition",
		HelpMessage: "attaches a condition to a breakpoint",
		HelpMessageLong: `
Usage:
  condition BP_ID EXPR
`,
	}
}

func (cm *ConditionCmd) Exec(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errors.New("condition: specify a breakpoint id and an expression")
	}
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return errors.Errorf("condition: invalid breakpoint id %q", args[0])
	}
	return cm.c.Breakpoints().Condition(ctx, id, strings.Join(args[1:], " "))
}
