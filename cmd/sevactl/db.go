package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/sevasetu/internal/logger"
	"github.com/MrSnakeDoc/sevasetu/internal/portaldb"
	"github.com/MrSnakeDoc/sevasetu/internal/utils"
)

type dbFlags struct {
	dsn string
	yes bool
}

func (c *cli) dbCmd() *cobra.Command {
	var flags dbFlags
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Reset or purge the portal database",
	}
	cmd.PersistentFlags().StringVar(&flags.dsn, "dsn", "sevasetu.db", "SQLite database file or DSN")
	cmd.PersistentFlags().BoolVar(&flags.yes, "yes", false, "do not ask for confirmation")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "reset",
			Short: "Drop every portal table and recreate them empty",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return c.runReset(cmd, flags)
			},
		},
		&cobra.Command{
			Use:   "purge-users",
			Short: "Delete all users, credentials, documents and applications",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return c.runPurge(cmd, flags)
			},
		},
	)
	return cmd
}

func (c *cli) runReset(cmd *cobra.Command, flags dbFlags) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "🗑️  RESETTING DATABASE...")
	fmt.Fprintln(out, "⚠️  WARNING: This will delete ALL user data, credentials, and applications!")

	if !flags.yes && !confirm(cmd.InOrStdin(), out, "Are you sure? Type 'YES' to continue: ") {
		fmt.Fprintln(out, "❌ Operation cancelled")
		return nil
	}

	db, err := portaldb.Open(cmd.Context(), flags.dsn)
	if err != nil {
		return err
	}
	defer utils.MustClose(db, c.logger(), "portal database")

	if err := db.Reset(cmd.Context()); err != nil {
		return err
	}
	c.logger().Info("database reset", logger.String("dsn", flags.dsn), logger.Int("tables", len(portaldb.Tables)))
	fmt.Fprintln(out, "✅ DATABASE RESET COMPLETE! Tables recreated empty.")
	return nil
}

func (c *cli) runPurge(cmd *cobra.Command, flags dbFlags) error {
	out := cmd.OutOrStdout()
	db, err := portaldb.Open(cmd.Context(), flags.dsn)
	if err != nil {
		return err
	}
	defer utils.MustClose(db, c.logger(), "portal database")

	counts, err := db.Counts(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "📊 Current data:")
	printCounts(out, counts)

	if !flags.yes && !confirm(cmd.InOrStdin(), out, "Type 'YES' to delete all: ") {
		fmt.Fprintln(out, "❌ Operation cancelled")
		return nil
	}

	deleted, err := db.PurgeUsers(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "✅ ALL USER DATA DELETED:")
	printCounts(out, deleted)
	return nil
}

func printCounts(out io.Writer, c portaldb.Counts) {
	fmt.Fprintf(out, "   Users:        %d\n", c.Users)
	fmt.Fprintf(out, "   Documents:    %d\n", c.Documents)
	fmt.Fprintf(out, "   Applications: %d\n", c.Applications)
	fmt.Fprintf(out, "   Accounts:     %d\n", c.Accounts)
}

// confirm asks prompt and reports whether the answer is exactly YES.
func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprint(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	return strings.TrimSpace(line) == "YES"
}
