package sde

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schemaDDL is the six-table catalogue dataset internal/sde reads:
// types, the attribute values each type carries, the effects attached to
// a type, and the attribute/effect/expression definitions themselves.
// Produced by the SDE-builder project's export step; internal/sde never
// parses the SDE itself.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS types (
	type_id INTEGER PRIMARY KEY, group_id INTEGER, category_id INTEGER,
	name TEXT
);
CREATE TABLE IF NOT EXISTS type_attributes (
	type_id INTEGER, attribute_id INTEGER, value REAL,
	PRIMARY KEY (type_id, attribute_id)
);
CREATE TABLE IF NOT EXISTS type_effects (
	type_id INTEGER, effect_id INTEGER, PRIMARY KEY (type_id, effect_id)
);
CREATE TABLE IF NOT EXISTS attributes (
	attribute_id INTEGER PRIMARY KEY, default_value REAL,
	stackable INTEGER, high_is_good INTEGER
);
CREATE TABLE IF NOT EXISTS effects (
	effect_id INTEGER PRIMARY KEY, category INTEGER,
	pre_expression_id INTEGER, post_expression_id INTEGER,
	is_offensive INTEGER, is_assistance INTEGER, duration_attribute_id INTEGER
);
CREATE TABLE IF NOT EXISTS expressions (
	expression_id INTEGER PRIMARY KEY, opcode INTEGER,
	arg1_id INTEGER, arg2_id INTEGER, value_int INTEGER, value_float REAL
);
`

var indexDDL = []string{
	`CREATE INDEX IF NOT EXISTS idx_type_attributes_type ON type_attributes(type_id)`,
	`CREATE INDEX IF NOT EXISTS idx_type_effects_type ON type_effects(type_id)`,
	`CREATE INDEX IF NOT EXISTS idx_type_effects_effect ON type_effects(effect_id)`,
	`CREATE INDEX IF NOT EXISTS idx_types_category ON types(category_id)`,
}

// Migrate creates the catalogue tables if they don't already exist. A
// production catalogue file is exported with them present; tests and
// cmd/dogma-cli's load subcommand use this to build one from scratch.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("sde: migrate schema: %w", err)
	}
	return nil
}

// EnsureIndexes creates the indexes the query path relies on. Safe to
// call repeatedly; this is what cmd/dogma-cli's load subcommand runs
// over an already-exported SDE file before it is served.
func EnsureIndexes(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range indexDDL {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sde: create index: %w", err)
		}
	}
	return nil
}
