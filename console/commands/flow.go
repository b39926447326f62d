package commands

import (
	"context"
	"strconv"

	"github.com/hgdb-sim/hgdb/console/types"
	"github.com/pkg/errors"
)

// The flow commands only differ in the request they issue; after
// dispatch the console waits for the next break event.

type ContinueCmd struct {
	c types.Console
}

func NewContinueCmd(c types.Console) types.Command {
	return &ContinueCmd{c}
}

func (cm *ContinueCmd) Info() types.CommandInfo {
	return types.CommandInfo{
		Name:        "c",
		HelpMessage: "continues execution",
		AwaitsStop:  true,
	}
}

func (cm *ContinueCmd) Exec(ctx context.Context, args []string) error {
	return cm.c.Session().Continue(ctx)
}

type NextCmd struct {
	c types.Console
}

func NewNextCmd(c types.Console) types.Command {
	return &NextCmd{c}
}

func (cm *NextCmd) Info() types.CommandInfo {
	return types.CommandInfo{
		Name:        "n",
		HelpMessage: "steps over to the next statement",
		AwaitsStop:  true,
	}
}

func (cm *NextCmd) Exec(ctx context.Context, args []string) error {
	return cm.c.Session().StepOver(ctx)
}

type StepBackCmd struct {
	c types.Console
}

func NewStepBackCmd(c types.Console) types.Command {
	return &StepBackCmd{c}
}

func (cm *StepBackCmd) Info() types.CommandInfo {
	return types.CommandInfo{
		Name:        "step-back",
		HelpMessage: "steps back to the previous statement",
		AwaitsStop:  true,
	}
}

func (cm *StepBackCmd) Exec(ctx context.Context, args []string) error {
	return cm.c.Session().StepBack(ctx)
}

type ReverseContinueCmd struct {
	c types.Console
}

func NewReverseContinueCmd(c types.Console) types.Command {
	return &ReverseContinueCmd{c}
}

func (cm *ReverseContinueCmd) Info() types.CommandInfo {
	return types.CommandInfo{
		Name:        "rc",
		HelpMessage: "continues execution backwards",
		AwaitsStop:  true,
	}
}

func (cm *ReverseContinueCmd) Exec(ctx context.Context, args []string) error {
	return cm.c.Session().ReverseContinue(ctx)
}

type JumpCmd struct {
	c types.Console
}

func NewJumpCmd(c types.Console) types.Command {
	return &JumpCmd{c}
}

func (cm *JumpCmd) Info() types.CommandInfo {
	return types.CommandInfo{
		Name:        "go",
		HelpMessage: "jumps to a simulation time (replay mode only)",
		HelpMessageLong: `
Usage:
  go TIME
`,
		AwaitsStop: true,
	}
}

func (cm *JumpCmd) Exec(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("go: specify a time")
	}
	t, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return errors.Errorf("go: invalid time %q", args[0])
	}
	return cm.c.Session().Jump(ctx, t)
}
