// Package commands implements the spindex operator CLI. It works against
// the SQLite database directly, so it is usable whether or not the daemon
// is running.
package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/spindex/spindex/internal/db"
	"github.com/spindex/spindex/internal/moderation"
	"github.com/spindex/spindex/internal/store"
)

var (
	// dbPath overrides the default database location.
	dbPath string

	// outputFormat controls output rendering (text, json).
	outputFormat string

	// moderatorID identifies the operator for moderation actions.
	moderatorID string
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "spindex",
	Short: "Spindex moderation queue CLI",
	Long: `Operator tooling for the spindex moderation queue.

List and inspect community submissions, approve or reject them, and
annotate them with moderator notes, directly against the database.`,

	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&dbPath, "db", "",
		"Path to SQLite database (default: ~/.spindex/spindex.db)",
	)
	rootCmd.PersistentFlags().StringVar(
		&outputFormat, "format", "text",
		"Output format: text, json",
	)

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(approveCmd)
	rootCmd.AddCommand(rejectCmd)
	rootCmd.AddCommand(noteCmd)
	rootCmd.AddCommand(statsCmd)
}

// openStorage opens the database and wraps it in the submission store.
// The caller owns the returned Close.
func openStorage() (*store.SqliteStore, error) {
	path := dbPath
	if path == "" {
		var err error
		path, err = db.DefaultDBPath()
		if err != nil {
			return nil, err
		}
	}

	database, err := db.NewSqliteStore(&db.SqliteConfig{
		DatabaseFileName: path,
	}, slog.Default())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return store.NewSqliteStore(database.DB), nil
}

// newEngine builds a moderation engine over the given storage. CLI
// moderation skips chat notifications; the audit trail still records the
// action.
func newEngine(storage *store.SqliteStore) *moderation.Engine {
	return moderation.NewEngine(moderation.EngineConfig{
		Store:  storage,
		Audit:  storage,
		Policy: moderation.DefaultApprovalPolicy(),
		Logger: slog.Default(),
	})
}
