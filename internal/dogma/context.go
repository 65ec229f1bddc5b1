package dogma

// droneEntry tracks one squadron of same-type drones bound to a Context.
// The engine evaluates effects once per type, not once per drone; quantity
// is bookkeeping the caller relies on for partial removal, not a factor
// multiplied into any attribute (spec.md §8, "drone quantity
// independence").
type droneEntry struct {
	handle   handle
	quantity int
}

// Context is one live fitting: a character wearing implants and skills,
// fit to a ship carrying modules, charges and drones, optionally locked
// onto a target, optionally sitting in an area. It owns an arena of
// environments and is not safe for concurrent use — callers needing
// concurrent access own their own locking (see internal/apipool).
type Context struct {
	cat Catalogue

	arena    []*env
	freeList []int

	character handle
	ship      handle
	target    handle
	area      handle

	defaultSkillLevel int
	skillLevels       map[uint32]int

	drones map[uint32]*droneEntry
}

// maxSkillLevel is also the context's initial default: a freshly created
// context assumes every skill trained to the cap until told otherwise, so
// that attribute queries against an unconfigured context read as "best
// case" rather than "untrained".
const initialDefaultSkillLevel = maxSkillLevel

// NewContext builds a fitting context against cat: a character with every
// skill in the catalogue injected (offline, so their passive effects
// apply) at the maximum level, and an empty ship (type id 0, state zero)
// already attached — mirroring the reference implementation, which never
// leaves ctx.ship nil and treats set_ship on the already-current id as a
// no-op.
func NewContext(cat Catalogue) *Context {
	ctx := &Context{
		cat:               cat,
		skillLevels:       make(map[uint32]int),
		drones:            make(map[uint32]*droneEntry),
		defaultSkillLevel: initialDefaultSkillLevel,
	}

	ctx.character = ctx.createEnv(0, noHandle, 0)
	ctx.target = ctx.createEnv(0, noHandle, 0)
	ctx.area = ctx.createEnv(0, noHandle, 0)
	ctx.ship = ctx.attachChildAt(ctx.character, 0, 0)

	ctx.cat.IterTypes(func(t Type) bool {
		if t.CategoryID != CategorySkill {
			return true
		}
		h, _ := ctx.attachChild(ctx.character, t.ID)
		ctx.setEnvState(h, Offline)
		return true
	})

	return ctx
}

// FreeContext retracts every effect still active anywhere in ctx and
// releases its arena. ctx must not be used afterwards.
func (ctx *Context) FreeContext() {
	for i, e := range ctx.arena {
		if e != nil && !e.freed {
			ctx.zeroEnvState(handle(i))
		}
	}
	ctx.freeEnv(ctx.character)
	ctx.freeEnv(ctx.target)
	ctx.freeEnv(ctx.area)
}

// SetShip re-types the fitted ship in place, preserving every module,
// charge and drone already attached to it. Setting the same type id the
// ship already has is a deliberate no-op (spec.md §8, "no-op ship
// change"): no state transition, no effect re-evaluation.
func (ctx *Context) SetShip(typeID uint32) {
	e := ctx.env(ctx.ship)
	if e.id == typeID {
		return
	}
	ctx.zeroEnvState(ctx.ship)
	e.id = typeID
	ctx.setEnvState(ctx.ship, Online)
}

// AddModule fits a module of typeID into the first free slot on the ship
// and returns the key callers use to reference it (SetModuleState,
// AddCharge, RemoveModule). A newly fitted module starts at state zero,
// with none of its effects evaluated — callers bring it Offline or higher
// explicitly via SetModuleState.
func (ctx *Context) AddModule(typeID uint32) int {
	_, key := ctx.attachChild(ctx.ship, typeID)
	ctx.reapplyAllActiveEffects()
	return key
}

func (ctx *Context) moduleHandle(key int) handle {
	e := ctx.env(ctx.ship)
	h, ok := e.children[key]
	if !ok {
		return noHandle
	}
	return h
}

// SetModuleState transitions a fitted module between Offline, Online,
// Active and Overloaded.
func (ctx *Context) SetModuleState(key int, state State) error {
	h := ctx.moduleHandle(key)
	if h == noHandle {
		return ErrNotFound
	}
	ctx.setEnvState(h, state)
	return nil
}

// RemoveModule retracts a module's effects (and its charge's, if any) and
// removes it from the ship.
func (ctx *Context) RemoveModule(key int) error {
	h := ctx.moduleHandle(key)
	if h == noHandle {
		return ErrNotFound
	}
	ctx.zeroEnvTree(h)
	ctx.detachChild(ctx.ship, key)
	ctx.freeEnv(h)
	return nil
}

// AddCharge loads typeID into the module at key's charge slot, retracting
// and replacing any charge already loaded there. A charge always starts
// Active, regardless of its module's state (the reference engine applies
// this unconditionally).
func (ctx *Context) AddCharge(key int, typeID uint32) error {
	h := ctx.moduleHandle(key)
	if h == noHandle {
		return ErrNotFound
	}
	if err := ctx.RemoveCharge(key); err != nil {
		return err
	}
	chargeHandle := ctx.attachChildAt(h, 0, typeID)
	ctx.setEnvState(chargeHandle, Active)
	ctx.reapplyAllActiveEffects()
	return nil
}

// RemoveCharge unloads the charge in the module at key, if any.
func (ctx *Context) RemoveCharge(key int) error {
	h := ctx.moduleHandle(key)
	if h == noHandle {
		return ErrNotFound
	}
	e := ctx.env(h)
	chargeHandle, ok := e.children[0]
	if !ok {
		return nil
	}
	ctx.zeroEnvState(chargeHandle)
	ctx.detachChild(h, 0)
	ctx.freeEnv(chargeHandle)
	return nil
}

func (ctx *Context) chargeHandle(key int) handle {
	h := ctx.moduleHandle(key)
	if h == noHandle {
		return noHandle
	}
	e := ctx.env(h)
	chargeHandle, ok := e.children[0]
	if !ok {
		return noHandle
	}
	return chargeHandle
}

// AddDrone adds quantity drones of typeID to the active flight, merging
// into an existing squadron of the same type if one is already out. Drones
// are environments of the character, not the ship — so ship-scoped effects
// never reach them (spec.md §8, scope isolation). A newly launched
// squadron starts Active immediately.
func (ctx *Context) AddDrone(typeID uint32, quantity int) {
	if quantity <= 0 {
		return
	}
	if entry, ok := ctx.drones[typeID]; ok {
		entry.quantity += quantity
		return
	}
	h, _ := ctx.attachChild(ctx.character, typeID)
	ctx.setEnvState(h, Active)
	ctx.reapplyAllActiveEffects()
	ctx.drones[typeID] = &droneEntry{handle: h, quantity: quantity}
}

// RemoveDronePartial reduces the squadron of typeID by quantity. If
// quantity is at least the squadron's current count it is equivalent to
// RemoveDrone; otherwise the squadron remains, unaffected attribute-wise,
// with its count reduced (spec.md §8, "partial-remove underflow").
func (ctx *Context) RemoveDronePartial(typeID uint32, quantity int) error {
	entry, ok := ctx.drones[typeID]
	if !ok {
		return nil
	}
	if quantity >= entry.quantity {
		return ctx.RemoveDrone(typeID)
	}
	entry.quantity -= quantity
	return nil
}

// RemoveDrone retracts and removes every drone of typeID regardless of
// quantity.
func (ctx *Context) RemoveDrone(typeID uint32) error {
	entry, ok := ctx.drones[typeID]
	if !ok {
		return nil
	}
	e := ctx.env(entry.handle)
	if e != nil {
		ctx.zeroEnvState(entry.handle)
		ctx.detachChild(ctx.character, e.index)
		ctx.freeEnv(entry.handle)
	}
	delete(ctx.drones, typeID)
	return nil
}

// AddImplant plugs typeID into the character's first free implant slot and
// returns the key used to reference it (RemoveImplant). A freshly plugged
// implant is brought Online immediately.
func (ctx *Context) AddImplant(typeID uint32) int {
	h, key := ctx.attachChild(ctx.character, typeID)
	ctx.setEnvState(h, Online)
	ctx.reapplyAllActiveEffects()
	return key
}

func (ctx *Context) implantHandle(key int) handle {
	e := ctx.env(ctx.character)
	h, ok := e.children[key]
	if !ok {
		return noHandle
	}
	return h
}

// RemoveImplant retracts and unplugs an implant.
func (ctx *Context) RemoveImplant(key int) error {
	h := ctx.implantHandle(key)
	if h == noHandle {
		return ErrNotFound
	}
	ctx.zeroEnvState(h)
	ctx.detachChild(ctx.character, key)
	ctx.freeEnv(h)
	return nil
}

// minSkillLevel and maxSkillLevel bound every skill level set through
// this package's public API; out-of-range values clamp to the nearer
// bound rather than erroring (spec.md §8, "skill level clamping").
const (
	minSkillLevel = 0
	maxSkillLevel = 5
)

func clampSkillLevel(level int) int {
	if level < minSkillLevel {
		return minSkillLevel
	}
	if level > maxSkillLevel {
		return maxSkillLevel
	}
	return level
}

// SetSkillLevel overrides the trained level of one skill, irrespective of
// the context's default. level is clamped to [0,5].
func (ctx *Context) SetSkillLevel(skillTypeID uint32, level int) {
	ctx.skillLevels[skillTypeID] = clampSkillLevel(level)
}

// SetDefaultSkillLevel sets the level every skill without an explicit
// override resolves to. level is clamped to [0,5].
func (ctx *Context) SetDefaultSkillLevel(level int) {
	ctx.defaultSkillLevel = clampSkillLevel(level)
}

// ResetSkillLevels clears every explicit per-skill override, reverting all
// skills to the context's default level.
func (ctx *Context) ResetSkillLevels() {
	ctx.skillLevels = make(map[uint32]int)
}

// GetSkillLevel returns the level skillTypeID currently resolves to: its
// override if one was set, otherwise the context's default.
func (ctx *Context) GetSkillLevel(skillTypeID uint32) int {
	return ctx.skillLevel(skillTypeID)
}

// GetCharAttribute reads an attribute off the character environment.
func (ctx *Context) GetCharAttribute(attributeID uint16) (float64, error) {
	return ctx.getAttribute(ctx.character, attributeID)
}

// GetShipAttribute reads an attribute off the fitted ship.
func (ctx *Context) GetShipAttribute(attributeID uint16) (float64, error) {
	return ctx.getAttribute(ctx.ship, attributeID)
}

// GetModuleAttribute reads an attribute off the fitted module at key.
func (ctx *Context) GetModuleAttribute(key int, attributeID uint16) (float64, error) {
	h := ctx.moduleHandle(key)
	if h == noHandle {
		return 0, ErrNotFound
	}
	return ctx.getAttribute(h, attributeID)
}

// GetChargeAttribute reads an attribute off the charge loaded in the
// module at key.
func (ctx *Context) GetChargeAttribute(key int, attributeID uint16) (float64, error) {
	h := ctx.chargeHandle(key)
	if h == noHandle {
		return 0, ErrNotFound
	}
	return ctx.getAttribute(h, attributeID)
}

// GetDroneAttribute reads an attribute off an active drone squadron.
func (ctx *Context) GetDroneAttribute(typeID uint32, attributeID uint16) (float64, error) {
	entry, ok := ctx.drones[typeID]
	if !ok {
		return 0, ErrNotFound
	}
	return ctx.getAttribute(entry.handle, attributeID)
}

// GetImplantAttribute reads an attribute off the implant at key.
func (ctx *Context) GetImplantAttribute(key int, attributeID uint16) (float64, error) {
	h := ctx.implantHandle(key)
	if h == noHandle {
		return 0, ErrNotFound
	}
	return ctx.getAttribute(h, attributeID)
}

// Location names one of the two singleton environments addressable only
// by role rather than by a container key.
type Location int

const (
	LocationTarget Location = iota
	LocationArea
)

// GetLocationAttribute reads an attribute off target or area.
func (ctx *Context) GetLocationAttribute(loc Location, attributeID uint16) (float64, error) {
	switch loc {
	case LocationTarget:
		return ctx.getAttribute(ctx.target, attributeID)
	case LocationArea:
		return ctx.getAttribute(ctx.area, attributeID)
	default:
		return 0, ErrNotFound
	}
}

// SetTarget tears down the target environment's effects, re-types the same
// environment as typeID and brings it Offline.
func (ctx *Context) SetTarget(typeID uint32) {
	ctx.zeroEnvState(ctx.target)
	e := ctx.env(ctx.target)
	e.id = typeID
	ctx.setEnvState(ctx.target, Offline)
}

// ClearTarget reverts the target environment to an empty (typeID 0) one.
func (ctx *Context) ClearTarget() {
	ctx.SetTarget(0)
}

// SetArea tears down the area environment's effects, re-types the same
// environment as typeID and brings it Offline.
func (ctx *Context) SetArea(typeID uint32) {
	ctx.zeroEnvState(ctx.area)
	e := ctx.env(ctx.area)
	e.id = typeID
	ctx.setEnvState(ctx.area, Offline)
}
