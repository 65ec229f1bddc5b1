// Package dogma implements the EVE Online "Dogma" attribute evaluation
// engine: a hierarchical world of environments (character, ship, modules,
// charges, drones, implants) whose attributes are shaped by a catalogue of
// effects that install modifiers on state transitions.
//
// The package has no I/O and no concurrency of its own. A Catalogue is
// supplied by the caller (see internal/sde for a SQLite-backed one) and a
// Context is single-owner: callers are responsible for not sharing one
// across goroutines without their own synchronization.
package dogma
