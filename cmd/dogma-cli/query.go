package main

import (
	"context"
	"fmt"
	"strconv"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/eve-o-provit/backend/internal/scenario"
	"github.com/Sternrassler/eve-o-provit/backend/internal/sde"
)

func newQueryCmd() *cobra.Command {
	var (
		dbPath       string
		scenarioPath string
		location     string
		attrID       uint16
		key          int
		typeID       uint32
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Resolve one attribute for a scenario fit",
		Long: `query builds a dogma.Context from a scenario TOML fit over a catalogue
database, then prints the resolved value of one attribute at the given
location — exercising the exact same internal/dogma path the HTTP API
does.

Locations: char, ship, module, charge, drone, implant. The module,
charge, and implant locations read --key (the handle returned when the
item was fitted); the drone location reads --type-id.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			cat, err := sde.Open(ctx, dbPath)
			if err != nil {
				return fmt.Errorf("open catalogue %s: %w", dbPath, err)
			}
			defer cat.Close()

			fit, err := scenario.Load(scenarioPath)
			if err != nil {
				return err
			}
			dctx, err := fit.Build(cat)
			if err != nil {
				return fmt.Errorf("build fit: %w", err)
			}
			defer dctx.FreeContext()

			var value float64
			switch location {
			case "char":
				value, err = dctx.GetCharAttribute(attrID)
			case "ship":
				value, err = dctx.GetShipAttribute(attrID)
			case "module":
				value, err = dctx.GetModuleAttribute(key, attrID)
			case "charge":
				value, err = dctx.GetChargeAttribute(key, attrID)
			case "drone":
				value, err = dctx.GetDroneAttribute(typeID, attrID)
			case "implant":
				value, err = dctx.GetImplantAttribute(key, attrID)
			default:
				return fmt.Errorf("unknown location %q", location)
			}
			if err != nil {
				return fmt.Errorf("resolve attribute: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), strconv.FormatFloat(value, 'g', -1, 64))
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "path to the catalogue SQLite file")
	cmd.Flags().StringVar(&scenarioPath, "scenario", "", "path to a scenario TOML fit")
	cmd.Flags().StringVar(&location, "location", "ship", "char, ship, module, charge, drone, or implant")
	cmd.Flags().Uint16Var(&attrID, "attr", 0, "attribute id to resolve")
	cmd.Flags().IntVar(&key, "key", 0, "fitted-item handle, for module/charge/implant locations")
	cmd.Flags().Uint32Var(&typeID, "type-id", 0, "drone type id, for the drone location")
	_ = cmd.MarkFlagRequired("db")
	_ = cmd.MarkFlagRequired("scenario")
	_ = cmd.MarkFlagRequired("attr")

	return cmd
}
