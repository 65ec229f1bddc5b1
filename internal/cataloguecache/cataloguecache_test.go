package cataloguecache_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/eve-o-provit/backend/internal/cataloguecache"
	"github.com/Sternrassler/eve-o-provit/backend/internal/dogma"
)

// countingCatalogue is a fixed, minimal dogma.Catalogue that counts how
// many times each lookup actually reaches it, so tests can assert a
// second identical lookup was served from Redis instead.
type countingCatalogue struct {
	typeCalls int
	attrCalls int
}

func (c *countingCatalogue) LookupType(typeID uint32) (dogma.Type, error) {
	c.typeCalls++
	if typeID != 645 {
		return dogma.Type{}, dogma.ErrNotFound
	}
	return dogma.Type{ID: 645, GroupID: 0, CategoryID: 6, Name: "Dominix", Attributes: map[uint16]float64{}}, nil
}

func (c *countingCatalogue) IterTypes(fn func(dogma.Type) bool) {}

func (c *countingCatalogue) LookupAttributeMeta(attributeID uint16) (dogma.AttributeMeta, error) {
	c.attrCalls++
	if attributeID != 54 {
		return dogma.AttributeMeta{}, dogma.ErrNotFound
	}
	return dogma.AttributeMeta{ID: 54, Default: 0, Stackable: false, HighIsGood: true}, nil
}

func (c *countingCatalogue) EffectsOf(typeID uint32) []dogma.EffectRef { return nil }

func (c *countingCatalogue) LookupEffect(effectID uint32) (dogma.Effect, error) {
	return dogma.Effect{}, dogma.ErrNotFound
}

func (c *countingCatalogue) LookupExpression(expressionID int64) (dogma.Expression, error) {
	return dogma.Expression{}, dogma.ErrNotFound
}

func newTestCache(t *testing.T, inner *countingCatalogue) *cataloguecache.Catalogue {
	t.Helper()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { client.Close() })
	return cataloguecache.New(context.Background(), inner, client)
}

func TestLookupTypeCachesAfterFirstMiss(t *testing.T) {
	inner := &countingCatalogue{}
	cache := newTestCache(t, inner)

	t1, err := cache.LookupType(645)
	require.NoError(t, err)
	assert.Equal(t, "Dominix", t1.Name)
	assert.Equal(t, 1, inner.typeCalls)

	t2, err := cache.LookupType(645)
	require.NoError(t, err)
	assert.Equal(t, "Dominix", t2.Name)
	assert.Equal(t, 1, inner.typeCalls, "second lookup must be served from the cache, not the inner catalogue")
}

func TestLookupAttributeMetaCachesAfterFirstMiss(t *testing.T) {
	inner := &countingCatalogue{}
	cache := newTestCache(t, inner)

	m1, err := cache.LookupAttributeMeta(54)
	require.NoError(t, err)
	assert.True(t, m1.HighIsGood)
	assert.Equal(t, 1, inner.attrCalls)

	_, err = cache.LookupAttributeMeta(54)
	require.NoError(t, err)
	assert.Equal(t, 1, inner.attrCalls, "second lookup must be served from the cache")
}

func TestLookupTypeMissIsNotCached(t *testing.T) {
	inner := &countingCatalogue{}
	cache := newTestCache(t, inner)

	_, err := cache.LookupType(999)
	assert.ErrorIs(t, err, dogma.ErrNotFound)
	assert.Equal(t, 1, inner.typeCalls)

	_, err = cache.LookupType(999)
	assert.ErrorIs(t, err, dogma.ErrNotFound)
	assert.Equal(t, 2, inner.typeCalls, "a miss is not cached, so it reaches the inner catalogue every time")
}
