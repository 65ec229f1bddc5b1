package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/eve-o-provit/backend/internal/apipool"
	"github.com/Sternrassler/eve-o-provit/backend/internal/dogma"
	"github.com/Sternrassler/eve-o-provit/backend/internal/handlers"
	"github.com/Sternrassler/eve-o-provit/backend/pkg/logger"
)

const (
	testShipID uint32 = 645
	testModTypeID uint32 = 2048
	testAttrID    uint16 = 54
)

// fixtureCatalogue is a minimal dogma.Catalogue with one ship type, one
// module type, and one attribute, enough to exercise the HTTP surface
// end to end without a SQLite file.
type fixtureCatalogue struct {
	types map[uint32]dogma.Type
	attrs map[uint16]dogma.AttributeMeta
}

func newFixtureCatalogue() *fixtureCatalogue {
	return &fixtureCatalogue{
		types: map[uint32]dogma.Type{
			testShipID: {ID: testShipID, CategoryID: 6, Name: "Dominix"},
			testModTypeID: {
				ID: testModTypeID, CategoryID: 7, Name: "Test Module",
				Attributes: map[uint16]float64{testAttrID: 100},
			},
		},
		attrs: map[uint16]dogma.AttributeMeta{
			testAttrID: {ID: testAttrID, Default: 0, Stackable: false, HighIsGood: true},
		},
	}
}

func (c *fixtureCatalogue) LookupType(id uint32) (dogma.Type, error) {
	t, ok := c.types[id]
	if !ok {
		return dogma.Type{}, dogma.ErrNotFound
	}
	return t, nil
}
func (c *fixtureCatalogue) IterTypes(fn func(dogma.Type) bool) {
	for _, t := range c.types {
		if !fn(t) {
			return
		}
	}
}
func (c *fixtureCatalogue) LookupAttributeMeta(id uint16) (dogma.AttributeMeta, error) {
	m, ok := c.attrs[id]
	if !ok {
		return dogma.AttributeMeta{}, dogma.ErrNotFound
	}
	return m, nil
}
func (c *fixtureCatalogue) EffectsOf(typeID uint32) []dogma.EffectRef { return nil }
func (c *fixtureCatalogue) LookupEffect(id uint32) (dogma.Effect, error) {
	return dogma.Effect{}, dogma.ErrNotFound
}
func (c *fixtureCatalogue) LookupExpression(id int64) (dogma.Expression, error) {
	return dogma.Expression{}, dogma.ErrNotFound
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	pool := apipool.New()
	h := handlers.New(pool, newFixtureCatalogue(), logger.NewNoop(), nil, nil)
	app := fiber.New()
	h.RegisterRoutes(app)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestCreateContextAndSetShip(t *testing.T) {
	app := newTestApp(t)

	resp := doJSON(t, app, http.MethodPost, "/api/v1/contexts/", nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct{ ID string `json:"id"` }
	decodeBody(t, resp, &created)
	require.NotEmpty(t, created.ID)

	resp = doJSON(t, app, http.MethodPost, "/api/v1/contexts/"+created.ID+"/ship", map[string]any{"type_id": testShipID})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestAddModuleAndReadAttribute(t *testing.T) {
	app := newTestApp(t)

	resp := doJSON(t, app, http.MethodPost, "/api/v1/contexts/", nil)
	var created struct{ ID string `json:"id"` }
	decodeBody(t, resp, &created)

	resp = doJSON(t, app, http.MethodPost, "/api/v1/contexts/"+created.ID+"/modules", map[string]any{"type_id": testModTypeID})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	var added struct{ Key int `json:"key"` }
	decodeBody(t, resp, &added)

	resp = doJSON(t, app, http.MethodGet, "/api/v1/contexts/"+created.ID+"/attributes/module/"+strconv.Itoa(added.Key)+"/"+strconv.Itoa(int(testAttrID)), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var got struct{ Value float64 `json:"value"` }
	decodeBody(t, resp, &got)
	assert.Equal(t, 100.0, got.Value)
}

func TestUnknownContextIsNotFound(t *testing.T) {
	app := newTestApp(t)
	resp := doJSON(t, app, http.MethodPost, "/api/v1/contexts/00000000-0000-0000-0000-000000000000/ship", map[string]any{"type_id": testShipID})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteContextThenGetAttributeIsNotFound(t *testing.T) {
	app := newTestApp(t)
	resp := doJSON(t, app, http.MethodPost, "/api/v1/contexts/", nil)
	var created struct{ ID string `json:"id"` }
	decodeBody(t, resp, &created)

	resp = doJSON(t, app, http.MethodDelete, "/api/v1/contexts/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/api/v1/contexts/"+created.ID+"/attributes/ship/54", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
