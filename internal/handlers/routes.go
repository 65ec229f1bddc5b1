package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/Sternrassler/eve-o-provit/backend/internal/metrics"
)

// RegisterRoutes wires every route of the contexts API, plus /healthz,
// onto app. Prometheus exposition is mounted separately by cmd/api, which
// wraps promhttp's http.Handler with Fiber's adaptor.
func (h *Handler) RegisterRoutes(app *fiber.App) {
	app.Use(h.recoverAndCount)

	app.Get("/healthz", h.Health)

	contexts := app.Group("/api/v1/contexts")
	contexts.Post("/", h.CreateContext)
	contexts.Delete("/:id", h.DeleteContext)

	contexts.Post("/:id/ship", h.SetShip)

	contexts.Post("/:id/modules", h.AddModule)
	contexts.Delete("/:id/modules/:key", h.RemoveModule)
	contexts.Put("/:id/modules/:key/state", h.SetModuleState)
	contexts.Post("/:id/modules/:key/charge", h.AddCharge)
	contexts.Delete("/:id/modules/:key/charge", h.RemoveCharge)

	contexts.Post("/:id/drones", h.AddDrone)
	contexts.Delete("/:id/drones/:type_id", h.RemoveDrone)

	contexts.Post("/:id/implants", h.AddImplant)
	contexts.Delete("/:id/implants/:key", h.RemoveImplant)

	contexts.Put("/:id/skills/default", h.SetDefaultSkillLevel)
	contexts.Put("/:id/skills/:type_id", h.SetSkillLevel)
	contexts.Post("/:id/skills/reset", h.ResetSkillLevels)
	contexts.Post("/:id/skills/import", h.ImportSkills)

	contexts.Get("/:id/attributes/char/:attr_id", h.GetCharAttribute)
	contexts.Get("/:id/attributes/ship/:attr_id", h.GetShipAttribute)
	contexts.Get("/:id/attributes/module/:key/:attr_id", h.GetModuleAttribute)
	contexts.Get("/:id/attributes/charge/:key/:attr_id", h.GetChargeAttribute)
	contexts.Get("/:id/attributes/drone/:type_id/:attr_id", h.GetDroneAttribute)
	contexts.Get("/:id/attributes/implant/:key/:attr_id", h.GetImplantAttribute)
}

// recoverAndCount recovers any panic raised while handling a request and
// turns it into a 500 instead of taking down the process. internal/dogma
// itself does not panic on a double charge or a missing modifier (AddCharge
// replaces, modifier removal is permissive), so this is a backstop only.
// It also records the route/status pair for every request.
func (h *Handler) recoverAndCount(c *fiber.Ctx) (err error) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("panic recovered in handler", "route", c.Route().Path, "panic", r)
			err = c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
		}
		status := c.Response().StatusCode()
		metrics.HTTPRequestsTotal.WithLabelValues(c.Route().Path, strconv.Itoa(status)).Inc()
	}()
	return c.Next()
}
