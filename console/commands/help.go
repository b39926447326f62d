package commands

import (
	"context"
	"sort"

	"github.com/hgdb-sim/hgdb/console/types"
)

type HelpCmd struct {
	c types.Console
}

func NewHelpCmd(c types.Console) types.Command {
	return &HelpCmd{c}
}

func (cm *HelpCmd) Info() types.CommandInfo {
	return types.CommandInfo{
		Name:        "help",
		HelpMessage: "shows this message",
	}
}

func (cm *HelpCmd) Exec(ctx context.Context, args []string) error {
	cmds := cm.c.Commands()

	if len(args) > 0 {
		for _, c := range cmds {
			if c.Info().Name == args[0] {
				long := c.Info().HelpMessageLong
				if long == "" {
					long = "\n" + c.Info().HelpMessage + "\n"
				}
				cm.c.Printf("%s", long)
				return nil
			}
		}
		cm.c.Printf("unknown command %q\n", args[0])
		return nil
	}

	sort.Slice(cmds, func(i, j int) bool {
		return cmds[i].Info().Name < cmds[j].Info().Name
	})
	cm.c.Printf("Available commands are:\n")
	for _, c := range cmds {
		cm.c.Printf("  %-10s %s\n", c.Info().Name, c.Info().HelpMessage)
	}
	return nil
}

type QuitCmd struct {
	c types.Console
}

func NewQuitCmd(c types.Console) types.Command {
	return &QuitCmd{c}
}

func (cm *QuitCmd) Info() types.CommandInfo {
	return types.CommandInfo{
		Name:        "q",
		HelpMessage: "quits the debugger",
	}
}

func (cm *QuitCmd) Exec(ctx context.Context, args []string) error {
	cm.c.Exit()
	return nil
}
