// Package apipool is the only place in this repository where a
// dogma.Context is shared across goroutines: a mutex-protected registry
// HTTP handlers check a context out of and back into by id. The pool's
// lock provides that safety, not the engine itself — once a context is
// returned by Get, the caller owns it exclusively for the rest of the
// request.
package apipool

import (
	"sync"

	"github.com/google/uuid"

	"github.com/Sternrassler/eve-o-provit/backend/internal/dogma"
	"github.com/Sternrassler/eve-o-provit/backend/internal/metrics"
)

// ErrNotFound is returned by Get and Delete for an id with no
// corresponding entry.
var ErrNotFound = dogma.ErrNotFound

// Pool is a mutex-protected map from context id to live *dogma.Context.
type Pool struct {
	mu   sync.RWMutex
	ctxs map[uuid.UUID]*dogma.Context
}

// New returns an empty pool.
func New() *Pool {
	return &Pool{ctxs: make(map[uuid.UUID]*dogma.Context)}
}

// Create registers ctx under a freshly generated id and returns it.
func (p *Pool) Create(ctx *dogma.Context) uuid.UUID {
	id := uuid.New()
	p.mu.Lock()
	p.ctxs[id] = ctx
	metrics.ContextsLive.Set(float64(len(p.ctxs)))
	p.mu.Unlock()
	return id
}

// Get returns the context registered under id.
func (p *Pool) Get(id uuid.UUID) (*dogma.Context, error) {
	p.mu.RLock()
	ctx, ok := p.ctxs[id]
	p.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return ctx, nil
}

// Delete frees the context registered under id and removes it from the
// pool. Returns ErrNotFound if id is not registered.
func (p *Pool) Delete(id uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	ctx, ok := p.ctxs[id]
	if !ok {
		return ErrNotFound
	}
	ctx.FreeContext()
	delete(p.ctxs, id)
	metrics.ContextsLive.Set(float64(len(p.ctxs)))
	return nil
}

// Len reports how many contexts are currently registered. The
// live-context gauge is set directly by Create and Delete, not from Len.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.ctxs)
}
