// Package main is the entry point for dogma-cli, a thin CLI over
// internal/sde and internal/scenario: it validates/indexes a catalogue
// database, and resolves a single attribute against a scenario fit
// without going through the HTTP API.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "dogma-cli",
		Short: "Load and query a dogma attribute-engine catalogue",
		Long: `dogma-cli operates on a catalogue SQLite file exported by the SDE
pipeline this repo does not itself implement (see internal/sde).

Available commands:
  load    - validate a catalogue file and build its query indexes
  query   - resolve one attribute for a scenario TOML fit
  version - print the CLI version`,
	}

	rootCmd.AddCommand(newLoadCmd())
	rootCmd.AddCommand(newQueryCmd())
	rootCmd.AddCommand(newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the dogma-cli version",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version)
			return err
		},
	}
}
