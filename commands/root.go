package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hgdb-sim/hgdb/breakpoint"
	"github.com/hgdb-sim/hgdb/console"
	"github.com/hgdb-sim/hgdb/session"
	"github.com/hgdb-sim/hgdb/util/confutil"
	"github.com/hgdb-sim/hgdb/version"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const historyFilename = ".hgdb"

type rootOptions struct {
	noDBConnection bool
	workspace      string
	mapping        string
	debug          bool
}

func NewRootCmd(name string) *cobra.Command {
	var opts rootOptions
	cmd := &cobra.Command{
		Use:   name + " HOSTNAME DB",
		Short: "Debugger console for hardware simulations",
		Long: `Connects to a running hardware simulation and provides a
source-level debugging console over its symbol table.

HOSTNAME may start with :PORT, which is shorthand for localhost:PORT.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.debug {
				logrus.SetLevel(logrus.DebugLevel)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsole(cmd, args[0], args[1], opts)
		},
	}

	flags := cmd.PersistentFlags()
	flags.BoolVar(&opts.debug, "debug", false, "enable debug logging")

	cmd.Flags().BoolVar(&opts.noDBConnection, "no-db-connection", false, "skip loading the symbol table on the server")
	cmd.Flags().StringVar(&opts.workspace, "dir", "", "workspace directory for source listings")
	cmd.Flags().StringVar(&opts.mapping, "map", "", "remote-to-local source mapping as REMOTE:LOCAL")

	cmd.AddCommand(
		dapCmd(),
		versionCmd(),
	)
	return cmd
}

func runConsole(cmd *cobra.Command, hostname, db string, opts rootOptions) error {
	cfg, err := confutil.LoadDefault()
	if err != nil {
		return err
	}

	addr := expandHostname(hostname, cfg.RuntimePort)
	pathMap, mapping, err := parseMapping(opts.mapping, cfg.PathMapping)
	if err != nil {
		return err
	}

	sess := session.New(addr, "repl")
	if err := sess.Start(cmd.Context()); err != nil {
		return err
	}
	defer sess.Close()

	if !opts.noDBConnection {
		if err := sess.Handshake(cmd.Context(), db, mapping); err != nil {
			return err
		}
	}

	workspace := opts.workspace
	if workspace == "" {
		workspace = cfg.Workspace
	}

	c := console.New(sess, breakpoint.NewManager(sess), console.Options{
		Workspace:   workspace,
		PathMap:     pathMap,
		HistoryPath: historyPath(),
		HistorySize: cfg.HistorySize,
	})
	return c.Run(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
}

// expandHostname turns :PORT into localhost:PORT and appends the
// default port when none was given.
func expandHostname(hostname string, defaultPort int) string {
	if strings.HasPrefix(hostname, ":") {
		return "localhost" + hostname
	}
	if !strings.Contains(hostname, ":") {
		return fmt.Sprintf("%s:%d", hostname, defaultPort)
	}
	return hostname
}

func parseMapping(flag string, fromConfig map[string]string) (session.PathMap, map[string]string, error) {
	if flag == "" {
		for remote, local := range fromConfig {
			return session.PathMap{Remote: remote, Local: local}, map[string]string{remote: local}, nil
		}
		return session.PathMap{}, nil, nil
	}

	remote, local, ok := strings.Cut(flag, ":")
	if !ok || remote == "" || local == "" {
		return session.PathMap{}, nil, errors.Errorf("invalid mapping %q, expected REMOTE:LOCAL", flag)
	}
	return session.PathMap{Remote: remote, Local: local}, map[string]string{remote: local}, nil
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, historyFilename)
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", version.Package, version.Version, version.Revision)
		},
	}
}
