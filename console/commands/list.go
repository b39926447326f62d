package commands

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hgdb-sim/hgdb/console/types"
	"github.com/pkg/errors"
)

const defaultListContext = 5

type ListCmd struct {
	c types.Console
}

func NewListCmd(c types.Console) types.Command {
	return &ListCmd{c}
}

func (cm *ListCmd) Info() types.CommandInfo {
	return types.CommandInfo{
		Name:        "l",
		HelpMessage: "lists source around the current break",
		HelpMessageLong: `
Usage:
  l [FILE[:LINE]] [-n COUNT]

Without arguments the listing centers on the current break location.
`,
	}
}

func (cm *ListCmd) Exec(ctx context.Context, args []string) error {
	count := defaultListContext
	var locArg string
	for i := 0; i < len(args); i++ {
		if args[i] == "-n" && i+1 < len(args) {
			n, err := strconv.Atoi(args[i+1])
			if err != nil || n <= 0 {
				return errors.Errorf("l: invalid count %q", args[i+1])
			}
			count = n
			i++
			continue
		}
		locArg = args[i]
	}

	filename, line, err := cm.target(locArg)
	if err != nil {
		return err
	}

	local := cm.c.LocalPath(filename)
	if !filepath.IsAbs(local) {
		if found, ok := cm.findInWorkspace(local); ok {
			local = found
		}
	}

	dt, err := os.ReadFile(local)
	if err != nil {
		return errors.Wrapf(err, "l: cannot read %s", local)
	}

	lines := strings.Split(string(dt), "\n")
	lo := max(1, line-count)
	hi := min(len(lines), line+count)
	for i := lo; i <= hi; i++ {
		marker := "  "
		if i == line {
			marker = "->"
		}
		cm.c.Printf("%s %4d  %s\n", marker, i, lines[i-1])
	}
	return nil
}

func (cm *ListCmd) target(locArg string) (string, int, error) {
	if locArg == "" {
		loc := cm.c.Session().Location()
		if !loc.Valid {
			return "", 0, errors.New("l: no break context, specify a location")
		}
		return loc.Filename, loc.Line, nil
	}

	loc, err := parseLocator(locArg)
	if err != nil {
		return "", 0, err
	}
	line := loc.Line
	if line == 0 {
		line = 1
	}
	return cm.c.ResolveFile(loc.File), line, nil
}

// findInWorkspace walks the configured workspace for the first file
// matching the relative name.
func (cm *ListCmd) findInWorkspace(name string) (string, bool) {
	ws := cm.c.Workspace()
	if ws == "" {
		return "", false
	}

	var found string
	filepath.WalkDir(ws, func(path string, d fs.DirEntry, err error) error {
		if err != nil || found != "" {
			return filepath.SkipAll
		}
		if !d.IsDir() && (filepath.Base(path) == name || strings.HasSuffix(path, "/"+name)) {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	return found, found != ""
}
