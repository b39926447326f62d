package commands

import (
	"context"
	"strconv"
	"strings"

	"github.com/hgdb-sim/hgdb/console/types"
	"github.com/pkg/errors"
)

type PrintCmd struct {
	c types.Console
}

func NewPrintCmd(c types.Console) types.Command {
	return &PrintCmd{c}
}

func (cm *PrintCmd) Info() types.CommandInfo {
	return types.CommandInfo{
		Name:        "p",
		HelpMessage: "prints a variable or evaluates an expression",
		HelpMessageLong: `
Usage:
  p EXPR

Plain variable names resolve against the cached break context; anything
else is evaluated by the simulator. The pseudo-values breakpoint-id and
namespace-id print the current scope's identifiers.
`,
	}
}

func (cm *PrintCmd) Exec(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("p: specify an expression")
	}
	expr := strings.Join(args, " ")
	sess := cm.c.Session()

	switch expr {
	case "breakpoint-id":
		bpID, _, ok := sess.CurrentBreakpointID()
		if !ok {
			return errors.New("p: not stopped at a breakpoint")
		}
		cm.c.Printf("%d\n", bpID)
		return nil
	case "namespace-id":
		_, ns, ok := sess.CurrentBreakpointID()
		if !ok {
			return errors.New("p: not stopped at a breakpoint")
		}
		cm.c.Printf("%d\n", ns)
		return nil
	}

	// A set override makes the cache stale for this name until the
	// next break.
	if !sess.WasSet(expr) {
		if v, ok := cm.lookupCached(expr); ok {
			cm.c.Printf("%s\n", v)
			return nil
		}
	}

	bpID, ns, ok := sess.CurrentBreakpointID()
	if !ok {
		return errors.New("p: not stopped at a breakpoint")
	}
	nsCopy := ns
	result, err := sess.Evaluate(ctx, expr, strconv.FormatUint(bpID, 10), &nsCopy)
	if err != nil {
		return err
	}
	cm.c.Printf("%s\n", result)
	return nil
}

func (cm *PrintCmd) lookupCached(expr string) (string, bool) {
	sess := cm.c.Session()
	iid, ok := sess.CurrentInstance()
	if !ok {
		return "", false
	}
	scopes := sess.Scopes(iid)
	if len(scopes) == 0 {
		return "", false
	}
	sc := scopes[len(scopes)-1]

	node, ok := sc.LocalTree().Lookup(expr)
	if !ok || !node.IsLeaf() {
		return "", false
	}
	switch v := node.Value().(type) {
	case int64:
		return strconv.FormatInt(v, 10), true
	case string:
		return v, true
	}
	return "", false
}
