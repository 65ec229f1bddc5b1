package main

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/eve-o-provit/backend/internal/sde"
)

func newLoadCmd() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Validate a catalogue database and build its query indexes",
		Long: `load opens an already-exported SDE SQLite file and runs the migration
that creates the indexes the query path relies on. It does not parse or
import raw SDE data — that pipeline is out of this repo's scope.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				return fmt.Errorf("--db is required")
			}
			db, err := sqlx.Open("sqlite3", dbPath)
			if err != nil {
				return fmt.Errorf("open %s: %w", dbPath, err)
			}
			defer db.Close()

			ctx := context.Background()
			if err := sde.Migrate(ctx, db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			if err := sde.EnsureIndexes(ctx, db); err != nil {
				return fmt.Errorf("ensure indexes: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "catalogue %s is ready\n", dbPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "path to the catalogue SQLite file")
	cmd.Flags().String("sde-dir", "", "unused placeholder for the upstream SDE export directory (parsing is out of scope)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}
