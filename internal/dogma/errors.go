package dogma

import "errors"

// ErrNotFound is returned whenever a requested entity — a type, an
// attribute on an entity, or a key in a container — is absent. It is the
// only error the public surface of this package ever returns; anything
// else encountered while resolving an attribute is swallowed per the
// failure policy described in the package's design notes.
var ErrNotFound = errors.New("dogma: not found")
