package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/sevasetu/internal/logger"
	"github.com/MrSnakeDoc/sevasetu/internal/version"
)

// errCheckFailed makes the process exit 1 after a report was printed.
var errCheckFailed = errors.New("checks failed")

type cli struct {
	verbose bool
	log     logger.Logger
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		if !errors.Is(err, errCheckFailed) {
			fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "sevactl",
		Short:         "Maintenance tool for the SevaSetu supplier directory and portal database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := "warn"
			if c.verbose {
				level = "debug"
			}
			c.log = logger.New(level, true)
		},
	}
	root.PersistentFlags().BoolVar(&c.verbose, "verbose", false, "verbose logging")

	root.AddCommand(
		c.suppliersCmd(),
		c.dbCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print build information",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintln(cmd.OutOrStdout(), version.String("sevactl"))
			},
		},
	)
	return root
}

// logger returns the configured logger, or a no-op one when a command runs
// without the root pre-run (tests).
func (c *cli) logger() logger.Logger {
	if c.log == nil {
		return logger.Nop()
	}
	return c.log
}
