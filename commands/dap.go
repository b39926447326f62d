package commands

import (
	"fmt"
	"net"
	"os"

	"github.com/hgdb-sim/hgdb/dap"
	"github.com/spf13/cobra"
)

type dapOptions struct {
	port  int
	stdio bool
}

func dapCmd() *cobra.Command {
	var opts dapOptions
	cmd := &cobra.Command{
		Use:   "dap",
		Short: "Start a Debug Adapter Protocol server",
		Long: `Serves the Debug Adapter Protocol for IDE integration. By default
a TCP port is opened (0 picks an ephemeral one, printed on stdout);
--stdio serves a single session over stdin/stdout instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.stdio {
				return dap.ServeStdio(cmd.Context(), os.Stdin, os.Stdout)
			}
			return dap.ListenAndServe(cmd.Context(), fmt.Sprintf(":%d", opts.port), func(addr net.Addr) {
				fmt.Fprintf(cmd.OutOrStdout(), "DAP server listening at: %s\n", addr)
			})
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&opts.port, "port", 0, "TCP port to listen on (0 = ephemeral)")
	flags.BoolVar(&opts.stdio, "stdio", false, "serve a single session on stdin/stdout")
	return cmd
}
