// Package cataloguecache decorates a dogma.Catalogue with a Redis
// read-through cache, so a fleet of API replicas shares one warm cache
// instead of each querying SQLite per lookup.
package cataloguecache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Sternrassler/eve-o-provit/backend/internal/dogma"
	"github.com/Sternrassler/eve-o-provit/backend/internal/metrics"
)

// ttl is long because a catalogue, once built, is immutable — there is
// no invalidation path, only expiry as a backstop against a stale Redis
// instance surviving a catalogue rebuild under the same key prefix.
const ttl = 24 * time.Hour

// Catalogue wraps an inner dogma.Catalogue, checking Redis before
// delegating to it and caching what it finds.
type Catalogue struct {
	inner dogma.Catalogue
	redis *redis.Client
	ctx   context.Context
}

var _ dogma.Catalogue = (*Catalogue)(nil)

// New wraps inner with a Redis read-through cache. ctx bounds every
// Redis round-trip the wrapper makes; a cache error or timeout falls
// back to inner rather than failing the lookup.
func New(ctx context.Context, inner dogma.Catalogue, redisClient *redis.Client) *Catalogue {
	return &Catalogue{inner: inner, redis: redisClient, ctx: ctx}
}

func cacheGet[T any](c *Catalogue, kind, key string) (T, bool) {
	var zero T
	data, err := c.redis.Get(c.ctx, key).Bytes()
	if err != nil {
		metrics.CatalogueCacheMissesTotal.WithLabelValues(kind).Inc()
		return zero, false
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		metrics.CatalogueCacheMissesTotal.WithLabelValues(kind).Inc()
		return zero, false
	}
	metrics.CatalogueCacheHitsTotal.WithLabelValues(kind).Inc()
	return v, true
}

func cacheSet(c *Catalogue, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	// Best-effort: a failed Set just means the next lookup misses too.
	c.redis.Set(c.ctx, key, data, ttl)
}

// LookupType checks Redis, falling back to and populating from inner on
// a miss. ErrNotFound results are not cached — a type never existing is
// cheap to re-check and caching it would need a separate negative-cache
// TTL policy this package doesn't need yet.
func (c *Catalogue) LookupType(typeID uint32) (dogma.Type, error) {
	key := fmt.Sprintf("dogma:type:%d", typeID)
	if v, ok := cacheGet[dogma.Type](c, "type", key); ok {
		return v, nil
	}
	t, err := c.inner.LookupType(typeID)
	if err != nil {
		return dogma.Type{}, err
	}
	cacheSet(c, key, t)
	return t, nil
}

// IterTypes is not worth caching — it is only ever called once, at
// context creation, to inject skills — so it passes straight through.
func (c *Catalogue) IterTypes(fn func(dogma.Type) bool) {
	c.inner.IterTypes(fn)
}

func (c *Catalogue) LookupAttributeMeta(attributeID uint16) (dogma.AttributeMeta, error) {
	key := fmt.Sprintf("dogma:attr:%d", attributeID)
	if v, ok := cacheGet[dogma.AttributeMeta](c, "attr", key); ok {
		return v, nil
	}
	m, err := c.inner.LookupAttributeMeta(attributeID)
	if err != nil {
		return dogma.AttributeMeta{}, err
	}
	cacheSet(c, key, m)
	return m, nil
}

func (c *Catalogue) EffectsOf(typeID uint32) []dogma.EffectRef {
	key := fmt.Sprintf("dogma:effectrefs:%d", typeID)
	if v, ok := cacheGet[[]dogma.EffectRef](c, "effectrefs", key); ok {
		return v
	}
	refs := c.inner.EffectsOf(typeID)
	cacheSet(c, key, refs)
	return refs
}

func (c *Catalogue) LookupEffect(effectID uint32) (dogma.Effect, error) {
	key := fmt.Sprintf("dogma:effect:%d", effectID)
	if v, ok := cacheGet[dogma.Effect](c, "effect", key); ok {
		return v, nil
	}
	e, err := c.inner.LookupEffect(effectID)
	if err != nil {
		return dogma.Effect{}, err
	}
	cacheSet(c, key, e)
	return e, nil
}

func (c *Catalogue) LookupExpression(expressionID int64) (dogma.Expression, error) {
	key := fmt.Sprintf("dogma:expr:%d", expressionID)
	if v, ok := cacheGet[dogma.Expression](c, "expr", key); ok {
		return v, nil
	}
	e, err := c.inner.LookupExpression(expressionID)
	if err != nil {
		return dogma.Expression{}, err
	}
	cacheSet(c, key, e)
	return e, nil
}
