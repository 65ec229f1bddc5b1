// Package sde implements dogma.Catalogue over a read-only SQLite
// export of the EVE static data, as produced by the SDE-builder project.
package sde

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Sternrassler/eve-o-provit/backend/internal/dogma"
)

// Catalogue implements dogma.Catalogue by querying the six-table
// dataset described in schema.go. Every lookup is a prepared statement
// over a connection opened read-only; nothing here ever writes.
type Catalogue struct {
	db *sqlx.DB
}

var _ dogma.Catalogue = (*Catalogue)(nil)

// retryConfig mirrors internal/services' ESI exponential backoff shape,
// adapted here to absorb transient "database is locked" errors from a
// concurrently refreshing SDE build rather than HTTP 429s.
type retryConfig struct {
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

func defaultRetryConfig() retryConfig {
	return retryConfig{maxRetries: 4, initialBackoff: 250 * time.Millisecond, maxBackoff: 2 * time.Second}
}

func isLockedErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "locked")
}

func retryPing(ctx context.Context, db *sqlx.DB, cfg retryConfig) error {
	backoff := cfg.initialBackoff
	var lastErr error
	for attempt := 0; attempt <= cfg.maxRetries; attempt++ {
		lastErr = db.PingContext(ctx)
		if lastErr == nil {
			return nil
		}
		if !isLockedErr(lastErr) {
			return fmt.Errorf("sde: ping: %w", lastErr)
		}
		if attempt == cfg.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
			if backoff > cfg.maxBackoff {
				backoff = cfg.maxBackoff
			}
		}
	}
	return fmt.Errorf("sde: ping failed after %d retries: %w", cfg.maxRetries, lastErr)
}

// Open opens the catalogue file at path read-only (mode=ro, matching
// pkg/evedb's own Open) and verifies connectivity, retrying a locked
// database with exponential backoff.
func Open(ctx context.Context, path string) (*Catalogue, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro", path)
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sde: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)

	if err := retryPing(ctx, db, defaultRetryConfig()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Catalogue{db: db}, nil
}

// Close releases the underlying connection pool.
func (c *Catalogue) Close() error {
	return c.db.Close()
}

type typeRow struct {
	TypeID     uint32 `db:"type_id"`
	GroupID    uint32 `db:"group_id"`
	CategoryID uint32 `db:"category_id"`
	Name       string `db:"name"`
}

type attributeValueRow struct {
	AttributeID uint16  `db:"attribute_id"`
	Value       float64 `db:"value"`
}

func (c *Catalogue) typeAttributes(typeID uint32) (map[uint16]float64, error) {
	var rows []attributeValueRow
	err := c.db.Select(&rows, `SELECT attribute_id, value FROM type_attributes WHERE type_id = ?`, typeID)
	if err != nil {
		return nil, fmt.Errorf("sde: type attributes %d: %w", typeID, err)
	}
	out := make(map[uint16]float64, len(rows))
	for _, r := range rows {
		out[r.AttributeID] = r.Value
	}
	return out, nil
}

// LookupType returns the catalogue row for a type id, joined against its
// own attribute values.
func (c *Catalogue) LookupType(typeID uint32) (dogma.Type, error) {
	var row typeRow
	err := c.db.Get(&row, `SELECT type_id, group_id, category_id, name FROM types WHERE type_id = ?`, typeID)
	if errors.Is(err, sql.ErrNoRows) {
		return dogma.Type{}, dogma.ErrNotFound
	}
	if err != nil {
		return dogma.Type{}, fmt.Errorf("sde: lookup type %d: %w", typeID, err)
	}

	attrs, err := c.typeAttributes(typeID)
	if err != nil {
		return dogma.Type{}, err
	}

	return dogma.Type{ID: row.TypeID, GroupID: row.GroupID, CategoryID: row.CategoryID, Name: row.Name, Attributes: attrs}, nil
}

// IterTypes walks every type row, resolving each one's attributes along
// the way. Called once at context creation to inject skills.
func (c *Catalogue) IterTypes(fn func(dogma.Type) bool) {
	rows, err := c.db.Queryx(`SELECT type_id, group_id, category_id, name FROM types`)
	if err != nil {
		return
	}
	defer rows.Close()

	for rows.Next() {
		var row typeRow
		if err := rows.StructScan(&row); err != nil {
			continue
		}
		attrs, err := c.typeAttributes(row.TypeID)
		if err != nil {
			continue
		}
		if !fn(dogma.Type{ID: row.TypeID, GroupID: row.GroupID, CategoryID: row.CategoryID, Name: row.Name, Attributes: attrs}) {
			return
		}
	}
}

type attributeMetaRow struct {
	AttributeID  uint16  `db:"attribute_id"`
	DefaultValue float64 `db:"default_value"`
	Stackable    bool    `db:"stackable"`
	HighIsGood   bool    `db:"high_is_good"`
}

// LookupAttributeMeta returns the metadata for an attribute id.
func (c *Catalogue) LookupAttributeMeta(attributeID uint16) (dogma.AttributeMeta, error) {
	var row attributeMetaRow
	err := c.db.Get(&row, `SELECT attribute_id, default_value, stackable, high_is_good FROM attributes WHERE attribute_id = ?`, attributeID)
	if errors.Is(err, sql.ErrNoRows) {
		return dogma.AttributeMeta{}, dogma.ErrNotFound
	}
	if err != nil {
		return dogma.AttributeMeta{}, fmt.Errorf("sde: lookup attribute %d: %w", attributeID, err)
	}
	return dogma.AttributeMeta{ID: row.AttributeID, Default: row.DefaultValue, Stackable: row.Stackable, HighIsGood: row.HighIsGood}, nil
}

type effectRefRow struct {
	EffectID uint32 `db:"effect_id"`
	Category int    `db:"category"`
}

// EffectsOf returns the ids and categories of every effect attached to a
// type, joining type_effects against effects for the category.
func (c *Catalogue) EffectsOf(typeID uint32) []dogma.EffectRef {
	var rows []effectRefRow
	err := c.db.Select(&rows, `
		SELECT te.effect_id AS effect_id, e.category AS category
		FROM type_effects te
		JOIN effects e ON e.effect_id = te.effect_id
		WHERE te.type_id = ?`, typeID)
	if err != nil {
		return nil
	}
	refs := make([]dogma.EffectRef, len(rows))
	for i, r := range rows {
		refs[i] = dogma.EffectRef{EffectID: r.EffectID, Category: dogma.EffectCategory(r.Category)}
	}
	return refs
}

type effectRow struct {
	EffectID            uint32 `db:"effect_id"`
	Category            int    `db:"category"`
	PreExpressionID     int64  `db:"pre_expression_id"`
	PostExpressionID    int64  `db:"post_expression_id"`
	IsOffensive         bool   `db:"is_offensive"`
	IsAssistance        bool   `db:"is_assistance"`
	DurationAttributeID int64  `db:"duration_attribute_id"`
}

// LookupEffect returns the full effect record for an effect id.
func (c *Catalogue) LookupEffect(effectID uint32) (dogma.Effect, error) {
	var row effectRow
	err := c.db.Get(&row, `
		SELECT effect_id, category, pre_expression_id, post_expression_id,
		       is_offensive, is_assistance, duration_attribute_id
		FROM effects WHERE effect_id = ?`, effectID)
	if errors.Is(err, sql.ErrNoRows) {
		return dogma.Effect{}, dogma.ErrNotFound
	}
	if err != nil {
		return dogma.Effect{}, fmt.Errorf("sde: lookup effect %d: %w", effectID, err)
	}
	return dogma.Effect{
		ID:                  row.EffectID,
		Category:            dogma.EffectCategory(row.Category),
		PreExpressionID:     row.PreExpressionID,
		PostExpressionID:    row.PostExpressionID,
		IsOffensive:         row.IsOffensive,
		IsAssistance:        row.IsAssistance,
		DurationAttributeID: row.DurationAttributeID,
	}, nil
}

type expressionRow struct {
	ExpressionID int64   `db:"expression_id"`
	Opcode       int     `db:"opcode"`
	Arg1ID       int64   `db:"arg1_id"`
	Arg2ID       int64   `db:"arg2_id"`
	ValueInt     int64   `db:"value_int"`
	ValueFloat   float64 `db:"value_float"`
}

// LookupExpression returns an expression tree node by id.
func (c *Catalogue) LookupExpression(expressionID int64) (dogma.Expression, error) {
	var row expressionRow
	err := c.db.Get(&row, `
		SELECT expression_id, opcode, arg1_id, arg2_id, value_int, value_float
		FROM expressions WHERE expression_id = ?`, expressionID)
	if errors.Is(err, sql.ErrNoRows) {
		return dogma.Expression{}, dogma.ErrNotFound
	}
	if err != nil {
		return dogma.Expression{}, fmt.Errorf("sde: lookup expression %d: %w", expressionID, err)
	}
	return dogma.Expression{
		ID:         row.ExpressionID,
		Opcode:     dogma.Opcode(row.Opcode),
		Arg1:       row.Arg1ID,
		Arg2:       row.Arg2ID,
		ValueInt:   row.ValueInt,
		ValueFloat: row.ValueFloat,
	}, nil
}
