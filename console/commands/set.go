package commands

import (
	"context"
	"strconv"
	"strings"

	"github.com/hgdb-sim/hgdb/console/types"
	"github.com/hgdb-sim/hgdb/session"
	"github.com/pkg/errors"
)

type SetCmd struct {
	c types.Console
}

func NewSetCmd(c types.Console) types.Command {
	return &SetCmd{c}
}

func (cm *SetCmd) Info() types.CommandInfo {
	return types.CommandInfo{
		Name:        "set",
		HelpMessage: "overrides a variable with an integer value",
		HelpMessageLong: `
Usage:
  set VAR=VALUE

VALUE must be an integer. The override lasts until the next break.
`,
	}
}

func (cm *SetCmd) Exec(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("set: specify VAR=VALUE")
	}

	name, valueStr, ok := strings.Cut(strings.Join(args, ""), "=")
	if !ok || name == "" {
		return errors.New("set: specify VAR=VALUE")
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return errors.Errorf("set: %q is not an integer", valueStr)
	}

	sess := cm.c.Session()
	bpID, ns, ok := sess.CurrentBreakpointID()
	if !ok {
		return errors.New("set: no breakpoint scope to set in")
	}

	nsCopy := ns
	return sess.SetValue(ctx, name, value, session.SetTarget{
		BreakpointID: &bpID,
		NamespaceID:  &nsCopy,
	})
}
