package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/hgdb-sim/hgdb/commands"
	"github.com/hgdb-sim/hgdb/util/logutil"
	"github.com/sirupsen/logrus"
)

func init() {
	// The DAP server speaks protocol frames on stdout; everything we
	// log goes to stderr, minus the frame dumps unless asked for.
	logrus.SetOutput(os.Stderr)
	logrus.AddHook(logutil.NewFilter([]logrus.Level{
		logrus.DebugLevel,
	}, "use of closed network connection"))
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rootCmd := commands.NewRootCmd(filepath.Base(os.Args[0]))
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}
