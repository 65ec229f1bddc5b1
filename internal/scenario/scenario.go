// Package scenario loads a TOML description of a fit — ship, modules,
// charges, drones, implants and skill overrides — and builds a live
// dogma.Context from it. Used by cmd/dogma-cli's query subcommand and
// by tests that want a fit expressed as data instead of a sequence of
// Context calls.
package scenario

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/Sternrassler/eve-o-provit/backend/internal/dogma"
)

// Module is one fitted module, optionally loaded with a charge.
type Module struct {
	TypeID uint32 `toml:"type_id"`
	State  string `toml:"state"` // offline, online, active, overloaded
	Charge uint32 `toml:"charge,omitempty"`
}

// Drone is one drone type fielded in some quantity.
type Drone struct {
	TypeID   uint32 `toml:"type_id"`
	Quantity int    `toml:"quantity"`
}

// Skills overrides skill levels: Default applies to every skill without
// an explicit entry in Levels. A zero Default leaves the context's own
// default level in place.
type Skills struct {
	Default int           `toml:"default"`
	Levels  map[string]int `toml:"levels"`
}

// Fit is the full scenario document.
type Fit struct {
	Ship     uint32   `toml:"ship"`
	Modules  []Module `toml:"modules"`
	Drones   []Drone  `toml:"drones"`
	Implants []uint32 `toml:"implants"`
	Skills   Skills   `toml:"skills"`
}

// Load reads and parses a scenario TOML file.
func Load(path string) (*Fit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scenario: read %s: %w", path, err)
	}
	var fit Fit
	if err := toml.Unmarshal(data, &fit); err != nil {
		return nil, fmt.Errorf("scenario: parse %s: %w", path, err)
	}
	return &fit, nil
}

func parseState(s string) (dogma.State, error) {
	switch s {
	case "", "offline":
		return dogma.Offline, nil
	case "online":
		return dogma.Online, nil
	case "active":
		return dogma.Active, nil
	case "overloaded":
		return dogma.Overloaded, nil
	default:
		return 0, fmt.Errorf("scenario: unknown module state %q", s)
	}
}

// Build creates a new dogma.Context over cat and applies the fit to it:
// skill overrides, ship, implants, modules (with charges), and drones,
// in that order. The caller owns the returned context and must call
// FreeContext when done with it.
func (f *Fit) Build(cat dogma.Catalogue) (*dogma.Context, error) {
	ctx := dogma.NewContext(cat)

	if f.Skills.Default != 0 {
		ctx.SetDefaultSkillLevel(f.Skills.Default)
	}
	for skillID, level := range f.Skills.Levels {
		id, err := parseTypeID(skillID)
		if err != nil {
			ctx.FreeContext()
			return nil, fmt.Errorf("scenario: skill level key %q: %w", skillID, err)
		}
		ctx.SetSkillLevel(id, level)
	}

	if f.Ship != 0 {
		ctx.SetShip(f.Ship)
	}

	for _, implantTypeID := range f.Implants {
		ctx.AddImplant(implantTypeID)
	}

	for _, m := range f.Modules {
		state, err := parseState(m.State)
		if err != nil {
			ctx.FreeContext()
			return nil, err
		}
		key := ctx.AddModule(m.TypeID)
		if err := ctx.SetModuleState(key, state); err != nil {
			ctx.FreeContext()
			return nil, fmt.Errorf("scenario: set module state for type %d: %w", m.TypeID, err)
		}
		if m.Charge != 0 {
			if err := ctx.AddCharge(key, m.Charge); err != nil {
				ctx.FreeContext()
				return nil, fmt.Errorf("scenario: add charge for module type %d: %w", m.TypeID, err)
			}
		}
	}

	for _, d := range f.Drones {
		ctx.AddDrone(d.TypeID, d.Quantity)
	}

	return ctx, nil
}

func parseTypeID(s string) (uint32, error) {
	var id uint32
	if _, err := fmt.Sscanf(s, "%d", &id); err != nil {
		return 0, err
	}
	return id, nil
}
