// Package handlers provides HTTP request handlers mapping the
// dogma.Context programmatic surface onto REST routes under
// /api/v1/contexts.
package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Sternrassler/eve-o-provit/backend/internal/apipool"
	"github.com/Sternrassler/eve-o-provit/backend/internal/audit"
	"github.com/Sternrassler/eve-o-provit/backend/internal/dogma"
	"github.com/Sternrassler/eve-o-provit/backend/internal/metrics"
	"github.com/Sternrassler/eve-o-provit/backend/internal/skillimport"
	"github.com/Sternrassler/eve-o-provit/backend/pkg/logger"
)

// Handler holds the dependencies every route needs: the catalogue-backed
// context pool, and optional audit/skill-import integrations that
// degrade gracefully when not configured.
type Handler struct {
	pool   *apipool.Pool
	cat    dogma.Catalogue
	log    *logger.Logger
	audit  *audit.Log        // nil if Postgres is not configured
	skills *skillimport.Importer // nil if ESI is not configured
}

// New creates a Handler. audit and skills may be nil.
func New(pool *apipool.Pool, cat dogma.Catalogue, log *logger.Logger, auditLog *audit.Log, skills *skillimport.Importer) *Handler {
	return &Handler{pool: pool, cat: cat, log: log, audit: auditLog, skills: skills}
}

func (h *Handler) recordAudit(c *fiber.Ctx, id string, operation, detail string) {
	if h.audit == nil {
		return
	}
	cid, err := parseUUID(id)
	if err != nil {
		return
	}
	h.audit.Record(c.Context(), cid, operation, detail)
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

func notFound(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
}

func internalError(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}

var errInvalidContextID = errors.New("invalid context id")

// mapErr turns an engine/pool error into the right HTTP response.
func mapErr(c *fiber.Ctx, err error) error {
	if errors.Is(err, errInvalidContextID) {
		return badRequest(c, err.Error())
	}
	if errors.Is(err, dogma.ErrNotFound) || errors.Is(err, apipool.ErrNotFound) {
		return notFound(c, err)
	}
	return internalError(c, err)
}

func (h *Handler) contextByID(c *fiber.Ctx) (*dogma.Context, string, error) {
	id := c.Params("id")
	cid, err := parseUUID(id)
	if err != nil {
		return nil, id, errInvalidContextID
	}
	ctx, err := h.pool.Get(cid)
	return ctx, id, err
}

// Health reports whether the handler is ready to serve requests.
func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "service": "dogma-api"})
}

// --- contexts ---

// CreateContext handles POST /api/v1/contexts.
func (h *Handler) CreateContext(c *fiber.Ctx) error {
	ctx := dogma.NewContext(h.cat)
	id := h.pool.Create(ctx)
	metrics.MutatorCallsTotal.WithLabelValues("create_context").Inc()
	h.recordAudit(c, id.String(), "create_context", "")
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id.String()})
}

// DeleteContext handles DELETE /api/v1/contexts/:id.
func (h *Handler) DeleteContext(c *fiber.Ctx) error {
	id := c.Params("id")
	cid, err := parseUUID(id)
	if err != nil {
		return badRequest(c, "invalid context id")
	}
	if err := h.pool.Delete(cid); err != nil {
		return mapErr(c, err)
	}
	metrics.MutatorCallsTotal.WithLabelValues("free_context").Inc()
	h.recordAudit(c, id, "free_context", "")
	return c.SendStatus(fiber.StatusNoContent)
}

// --- ship ---

type shipRequest struct {
	TypeID uint32 `json:"type_id"`
}

// SetShip handles POST /api/v1/contexts/:id/ship.
func (h *Handler) SetShip(c *fiber.Ctx) error {
	ctx, id, err := h.contextByID(c)
	if err != nil {
		return mapErr(c, err)
	}
	var req shipRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx.SetShip(req.TypeID)
	metrics.MutatorCallsTotal.WithLabelValues("set_ship").Inc()
	h.recordAudit(c, id, "set_ship", req.shipDetail())
	return c.SendStatus(fiber.StatusNoContent)
}

func (r shipRequest) shipDetail() string {
	return "type_id=" + itoa(int64(r.TypeID))
}

// --- modules ---

type moduleRequest struct {
	TypeID uint32 `json:"type_id"`
}

// AddModule handles POST /api/v1/contexts/:id/modules.
func (h *Handler) AddModule(c *fiber.Ctx) error {
	ctx, id, err := h.contextByID(c)
	if err != nil {
		return mapErr(c, err)
	}
	var req moduleRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	key := ctx.AddModule(req.TypeID)
	metrics.MutatorCallsTotal.WithLabelValues("add_module").Inc()
	h.recordAudit(c, id, "add_module", "type_id="+itoa(int64(req.TypeID)))
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"key": key})
}

// RemoveModule handles DELETE /api/v1/contexts/:id/modules/:key.
func (h *Handler) RemoveModule(c *fiber.Ctx) error {
	ctx, id, err := h.contextByID(c)
	if err != nil {
		return mapErr(c, err)
	}
	key, err := c.ParamsInt("key")
	if err != nil {
		return badRequest(c, "invalid key")
	}
	if err := ctx.RemoveModule(key); err != nil {
		return mapErr(c, err)
	}
	metrics.MutatorCallsTotal.WithLabelValues("remove_module").Inc()
	h.recordAudit(c, id, "remove_module", "key="+itoa(int64(key)))
	return c.SendStatus(fiber.StatusNoContent)
}

type moduleStateRequest struct {
	State string `json:"state"`
}

var stateNames = map[string]dogma.State{
	"offline":    dogma.Offline,
	"online":     dogma.Online,
	"active":     dogma.Active,
	"overloaded": dogma.Overloaded,
}

// SetModuleState handles PUT /api/v1/contexts/:id/modules/:key/state.
func (h *Handler) SetModuleState(c *fiber.Ctx) error {
	ctx, id, err := h.contextByID(c)
	if err != nil {
		return mapErr(c, err)
	}
	key, err := c.ParamsInt("key")
	if err != nil {
		return badRequest(c, "invalid key")
	}
	var req moduleStateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	state, ok := stateNames[req.State]
	if !ok {
		return badRequest(c, "unknown module state")
	}
	if err := ctx.SetModuleState(key, state); err != nil {
		return mapErr(c, err)
	}
	metrics.MutatorCallsTotal.WithLabelValues("set_module_state").Inc()
	h.recordAudit(c, id, "set_module_state", req.State)
	return c.SendStatus(fiber.StatusNoContent)
}

// AddCharge handles POST /api/v1/contexts/:id/modules/:key/charge.
func (h *Handler) AddCharge(c *fiber.Ctx) error {
	ctx, id, err := h.contextByID(c)
	if err != nil {
		return mapErr(c, err)
	}
	key, err := c.ParamsInt("key")
	if err != nil {
		return badRequest(c, "invalid key")
	}
	var req moduleRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if err := ctx.AddCharge(key, req.TypeID); err != nil {
		return mapErr(c, err)
	}
	metrics.MutatorCallsTotal.WithLabelValues("add_charge").Inc()
	h.recordAudit(c, id, "add_charge", "type_id="+itoa(int64(req.TypeID)))
	return c.SendStatus(fiber.StatusNoContent)
}

// RemoveCharge handles DELETE /api/v1/contexts/:id/modules/:key/charge.
func (h *Handler) RemoveCharge(c *fiber.Ctx) error {
	ctx, id, err := h.contextByID(c)
	if err != nil {
		return mapErr(c, err)
	}
	key, err := c.ParamsInt("key")
	if err != nil {
		return badRequest(c, "invalid key")
	}
	if err := ctx.RemoveCharge(key); err != nil {
		return mapErr(c, err)
	}
	metrics.MutatorCallsTotal.WithLabelValues("remove_charge").Inc()
	h.recordAudit(c, id, "remove_charge", "")
	return c.SendStatus(fiber.StatusNoContent)
}

// --- drones ---

type droneRequest struct {
	TypeID   uint32 `json:"type_id"`
	Quantity int    `json:"quantity"`
}

// AddDrone handles POST /api/v1/contexts/:id/drones.
func (h *Handler) AddDrone(c *fiber.Ctx) error {
	ctx, id, err := h.contextByID(c)
	if err != nil {
		return mapErr(c, err)
	}
	var req droneRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx.AddDrone(req.TypeID, req.Quantity)
	metrics.MutatorCallsTotal.WithLabelValues("add_drone").Inc()
	h.recordAudit(c, id, "add_drone", "type_id="+itoa(int64(req.TypeID)))
	return c.SendStatus(fiber.StatusNoContent)
}

// RemoveDrone handles DELETE /api/v1/contexts/:id/drones/:type_id, with
// an optional ?n=N for a partial removal.
func (h *Handler) RemoveDrone(c *fiber.Ctx) error {
	ctx, id, err := h.contextByID(c)
	if err != nil {
		return mapErr(c, err)
	}
	typeID, err := c.ParamsInt("type_id")
	if err != nil {
		return badRequest(c, "invalid type_id")
	}
	n := c.QueryInt("n", 0)
	if n > 0 {
		if err := ctx.RemoveDronePartial(uint32(typeID), n); err != nil {
			return mapErr(c, err)
		}
		metrics.MutatorCallsTotal.WithLabelValues("remove_drone_partial").Inc()
		h.recordAudit(c, id, "remove_drone_partial", "n="+itoa(int64(n)))
		return c.SendStatus(fiber.StatusNoContent)
	}
	if err := ctx.RemoveDrone(uint32(typeID)); err != nil {
		return mapErr(c, err)
	}
	metrics.MutatorCallsTotal.WithLabelValues("remove_drone").Inc()
	h.recordAudit(c, id, "remove_drone", "")
	return c.SendStatus(fiber.StatusNoContent)
}

// --- implants ---

// AddImplant handles POST /api/v1/contexts/:id/implants.
func (h *Handler) AddImplant(c *fiber.Ctx) error {
	ctx, id, err := h.contextByID(c)
	if err != nil {
		return mapErr(c, err)
	}
	var req moduleRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	key := ctx.AddImplant(req.TypeID)
	metrics.MutatorCallsTotal.WithLabelValues("add_implant").Inc()
	h.recordAudit(c, id, "add_implant", "type_id="+itoa(int64(req.TypeID)))
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"key": key})
}

// RemoveImplant handles DELETE /api/v1/contexts/:id/implants/:key.
func (h *Handler) RemoveImplant(c *fiber.Ctx) error {
	ctx, id, err := h.contextByID(c)
	if err != nil {
		return mapErr(c, err)
	}
	key, err := c.ParamsInt("key")
	if err != nil {
		return badRequest(c, "invalid key")
	}
	if err := ctx.RemoveImplant(key); err != nil {
		return mapErr(c, err)
	}
	metrics.MutatorCallsTotal.WithLabelValues("remove_implant").Inc()
	h.recordAudit(c, id, "remove_implant", "")
	return c.SendStatus(fiber.StatusNoContent)
}

// --- skills ---

type levelRequest struct {
	Level int `json:"level"`
}

// SetDefaultSkillLevel handles PUT /api/v1/contexts/:id/skills/default.
func (h *Handler) SetDefaultSkillLevel(c *fiber.Ctx) error {
	ctx, id, err := h.contextByID(c)
	if err != nil {
		return mapErr(c, err)
	}
	var req levelRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx.SetDefaultSkillLevel(req.Level)
	metrics.MutatorCallsTotal.WithLabelValues("set_default_skill_level").Inc()
	h.recordAudit(c, id, "set_default_skill_level", itoa(int64(req.Level)))
	return c.SendStatus(fiber.StatusNoContent)
}

// SetSkillLevel handles PUT /api/v1/contexts/:id/skills/:type_id.
func (h *Handler) SetSkillLevel(c *fiber.Ctx) error {
	ctx, id, err := h.contextByID(c)
	if err != nil {
		return mapErr(c, err)
	}
	typeID, err := c.ParamsInt("type_id")
	if err != nil {
		return badRequest(c, "invalid type_id")
	}
	var req levelRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx.SetSkillLevel(uint32(typeID), req.Level)
	metrics.MutatorCallsTotal.WithLabelValues("set_skill_level").Inc()
	h.recordAudit(c, id, "set_skill_level", "type_id="+itoa(int64(typeID)))
	return c.SendStatus(fiber.StatusNoContent)
}

// ResetSkillLevels handles POST /api/v1/contexts/:id/skills/reset.
func (h *Handler) ResetSkillLevels(c *fiber.Ctx) error {
	ctx, id, err := h.contextByID(c)
	if err != nil {
		return mapErr(c, err)
	}
	ctx.ResetSkillLevels()
	metrics.MutatorCallsTotal.WithLabelValues("reset_skill_levels").Inc()
	h.recordAudit(c, id, "reset_skill_levels", "")
	return c.SendStatus(fiber.StatusNoContent)
}

type skillImportRequest struct {
	CharacterID int    `json:"character_id"`
	AccessToken string `json:"access_token"`
}

// ImportSkills handles POST /api/v1/contexts/:id/skills/import.
func (h *Handler) ImportSkills(c *fiber.Ctx) error {
	ctx, id, err := h.contextByID(c)
	if err != nil {
		return mapErr(c, err)
	}
	if h.skills == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "skill import is not configured"})
	}
	var req skillImportRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	skills := h.skills.Fetch(c.Context(), req.CharacterID, req.AccessToken)
	skillimport.Apply(ctx, skills)
	metrics.MutatorCallsTotal.WithLabelValues("import_skills").Inc()
	h.recordAudit(c, id, "import_skills", "character_id="+itoa(int64(req.CharacterID)))
	return c.JSON(fiber.Map{"imported": len(skills)})
}

// --- attributes ---

// GetCharAttribute handles GET /api/v1/contexts/:id/attributes/char/:attr_id.
func (h *Handler) GetCharAttribute(c *fiber.Ctx) error {
	ctx, _, err := h.contextByID(c)
	if err != nil {
		return mapErr(c, err)
	}
	attrID, err := c.ParamsInt("attr_id")
	if err != nil {
		return badRequest(c, "invalid attr_id")
	}
	start := time.Now()
	v, err := ctx.GetCharAttribute(uint16(attrID))
	metrics.AttributeQueryDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return mapErr(c, err)
	}
	return c.JSON(fiber.Map{"value": v})
}

// GetShipAttribute handles GET /api/v1/contexts/:id/attributes/ship/:attr_id.
func (h *Handler) GetShipAttribute(c *fiber.Ctx) error {
	ctx, _, err := h.contextByID(c)
	if err != nil {
		return mapErr(c, err)
	}
	attrID, err := c.ParamsInt("attr_id")
	if err != nil {
		return badRequest(c, "invalid attr_id")
	}
	start := time.Now()
	v, err := ctx.GetShipAttribute(uint16(attrID))
	metrics.AttributeQueryDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return mapErr(c, err)
	}
	return c.JSON(fiber.Map{"value": v})
}

// GetModuleAttribute handles GET /api/v1/contexts/:id/attributes/module/:key/:attr_id.
func (h *Handler) GetModuleAttribute(c *fiber.Ctx) error {
	ctx, _, err := h.contextByID(c)
	if err != nil {
		return mapErr(c, err)
	}
	key, err := c.ParamsInt("key")
	if err != nil {
		return badRequest(c, "invalid key")
	}
	attrID, err := c.ParamsInt("attr_id")
	if err != nil {
		return badRequest(c, "invalid attr_id")
	}
	start := time.Now()
	v, err := ctx.GetModuleAttribute(key, uint16(attrID))
	metrics.AttributeQueryDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return mapErr(c, err)
	}
	return c.JSON(fiber.Map{"value": v})
}

// GetChargeAttribute handles GET /api/v1/contexts/:id/attributes/charge/:key/:attr_id.
func (h *Handler) GetChargeAttribute(c *fiber.Ctx) error {
	ctx, _, err := h.contextByID(c)
	if err != nil {
		return mapErr(c, err)
	}
	key, err := c.ParamsInt("key")
	if err != nil {
		return badRequest(c, "invalid key")
	}
	attrID, err := c.ParamsInt("attr_id")
	if err != nil {
		return badRequest(c, "invalid attr_id")
	}
	start := time.Now()
	v, err := ctx.GetChargeAttribute(key, uint16(attrID))
	metrics.AttributeQueryDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return mapErr(c, err)
	}
	return c.JSON(fiber.Map{"value": v})
}

// GetDroneAttribute handles GET /api/v1/contexts/:id/attributes/drone/:type_id/:attr_id.
func (h *Handler) GetDroneAttribute(c *fiber.Ctx) error {
	ctx, _, err := h.contextByID(c)
	if err != nil {
		return mapErr(c, err)
	}
	typeID, err := c.ParamsInt("type_id")
	if err != nil {
		return badRequest(c, "invalid type_id")
	}
	attrID, err := c.ParamsInt("attr_id")
	if err != nil {
		return badRequest(c, "invalid attr_id")
	}
	start := time.Now()
	v, err := ctx.GetDroneAttribute(uint32(typeID), uint16(attrID))
	metrics.AttributeQueryDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return mapErr(c, err)
	}
	return c.JSON(fiber.Map{"value": v})
}

// GetImplantAttribute handles GET /api/v1/contexts/:id/attributes/implant/:key/:attr_id.
func (h *Handler) GetImplantAttribute(c *fiber.Ctx) error {
	ctx, _, err := h.contextByID(c)
	if err != nil {
		return mapErr(c, err)
	}
	key, err := c.ParamsInt("key")
	if err != nil {
		return badRequest(c, "invalid key")
	}
	attrID, err := c.ParamsInt("attr_id")
	if err != nil {
		return badRequest(c, "invalid attr_id")
	}
	start := time.Now()
	v, err := ctx.GetImplantAttribute(key, uint16(attrID))
	metrics.AttributeQueryDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return mapErr(c, err)
	}
	return c.JSON(fiber.Map{"value": v})
}
