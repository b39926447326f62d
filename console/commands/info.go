package commands

import (
	"context"
	"strconv"

	"github.com/hgdb-sim/hgdb/console/types"
	"github.com/pkg/errors"
)

type InfoCmd struct {
	c types.Console
}

func NewInfoCmd(c types.Console) types.Command {
	return &InfoCmd{c}
}

func (cm *InfoCmd) Info() types.CommandInfo {
	return types.CommandInfo{
		Name:        "info",
		HelpMessage: "shows breakpoints, watchpoints, threads or time",
		HelpMessageLong: `
Usage:
  info breakpoint
  info watchpoint
  info threads
  info time
`,
	}
}

func (cm *InfoCmd) Exec(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("info: specify breakpoint, watchpoint, threads or time")
	}

	sess := cm.c.Session()
	switch args[0] {
	case "breakpoint", "breakpoints":
		records := cm.c.Breakpoints().ListNormal()
		if len(records) == 0 {
			cm.c.Printf("no breakpoints\n")
			return nil
		}
		for _, r := range records {
			line := strconv.Itoa(r.Line)
			cm.c.Printf("%d: %s:%s:%d", r.ID, sess.Files().Display(r.Filename), line, r.Column)
			if r.Condition != "" {
				cm.c.Printf(" if %s", r.Condition)
			}
			cm.c.Printf("\n")
		}
	case "watchpoint", "watchpoints":
		data := cm.c.Breakpoints().ListData()
		if len(data) == 0 {
			cm.c.Printf("no watchpoints\n")
			return nil
		}
		for _, d := range data {
			cm.c.Printf("%s on instance %d", d.VarName, d.InstanceID)
			if d.Condition != "" {
				cm.c.Printf(" if %s", d.Condition)
			}
			cm.c.Printf("\n")
		}
	case "threads":
		ids := sess.Instances()
		if len(ids) == 0 {
			cm.c.Printf("no instances stopped\n")
			return nil
		}
		cur, _ := sess.CurrentInstance()
		for _, iid := range ids {
			marker := " "
			if iid == cur {
				marker = "*"
			}
			cm.c.Printf("%s [%d]: %s\n", marker, iid, sess.InstanceName(iid))
		}
	case "time":
		loc := sess.Location()
		if !loc.Valid {
			cm.c.Printf("no break context\n")
			return nil
		}
		cm.c.Printf("%d\n", loc.Time)
	default:
		return errors.Errorf("info: unknown topic %q", args[0])
	}
	return nil
}
