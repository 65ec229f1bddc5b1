package apipool_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/eve-o-provit/backend/internal/apipool"
	"github.com/Sternrassler/eve-o-provit/backend/internal/dogma"
)

type emptyCatalogue struct{}

func (emptyCatalogue) LookupType(uint32) (dogma.Type, error)       { return dogma.Type{}, dogma.ErrNotFound }
func (emptyCatalogue) IterTypes(func(dogma.Type) bool)             {}
func (emptyCatalogue) LookupAttributeMeta(uint16) (dogma.AttributeMeta, error) {
	return dogma.AttributeMeta{}, dogma.ErrNotFound
}
func (emptyCatalogue) EffectsOf(uint32) []dogma.EffectRef { return nil }
func (emptyCatalogue) LookupEffect(uint32) (dogma.Effect, error) {
	return dogma.Effect{}, dogma.ErrNotFound
}
func (emptyCatalogue) LookupExpression(int64) (dogma.Expression, error) {
	return dogma.Expression{}, dogma.ErrNotFound
}

func TestCreateGetDelete(t *testing.T) {
	p := apipool.New()
	id := p.Create(dogma.NewContext(emptyCatalogue{}))
	assert.Equal(t, 1, p.Len())

	got, err := p.Get(id)
	require.NoError(t, err)
	require.NotNil(t, got)

	require.NoError(t, p.Delete(id))
	assert.Equal(t, 0, p.Len())

	_, err = p.Get(id)
	assert.ErrorIs(t, err, apipool.ErrNotFound)
}

func TestGetUnknownID(t *testing.T) {
	p := apipool.New()
	_, err := p.Get(uuid.New())
	assert.ErrorIs(t, err, apipool.ErrNotFound)
}

func TestDeleteUnknownID(t *testing.T) {
	p := apipool.New()
	err := p.Delete(uuid.New())
	assert.ErrorIs(t, err, apipool.ErrNotFound)
}
