package dogma

// memCatalogue is a small in-memory Catalogue built directly from Go
// literals, for tests that exercise the engine without a SQLite fixture
// file (see internal/sde for the on-disk implementation and its own
// integration tests against the same scenarios).
type memCatalogue struct {
	types      map[uint32]Type
	attrs      map[uint16]AttributeMeta
	effectRefs map[uint32][]EffectRef
	effects    map[uint32]Effect
	exprs      map[int64]Expression
	nextExpr   int64
}

var _ Catalogue = (*memCatalogue)(nil)

func newMemCatalogue() *memCatalogue {
	return &memCatalogue{
		types:      make(map[uint32]Type),
		attrs:      make(map[uint16]AttributeMeta),
		effectRefs: make(map[uint32][]EffectRef),
		effects:    make(map[uint32]Effect),
		exprs:      make(map[int64]Expression),
		nextExpr:   1,
	}
}

func (c *memCatalogue) LookupType(typeID uint32) (Type, error) {
	t, ok := c.types[typeID]
	if !ok {
		return Type{}, ErrNotFound
	}
	return t, nil
}

func (c *memCatalogue) IterTypes(fn func(Type) bool) {
	for _, t := range c.types {
		if !fn(t) {
			return
		}
	}
}

func (c *memCatalogue) LookupAttributeMeta(attributeID uint16) (AttributeMeta, error) {
	m, ok := c.attrs[attributeID]
	if !ok {
		return AttributeMeta{}, ErrNotFound
	}
	return m, nil
}

func (c *memCatalogue) EffectsOf(typeID uint32) []EffectRef {
	return c.effectRefs[typeID]
}

func (c *memCatalogue) LookupEffect(effectID uint32) (Effect, error) {
	e, ok := c.effects[effectID]
	if !ok {
		return Effect{}, ErrNotFound
	}
	return e, nil
}

func (c *memCatalogue) LookupExpression(expressionID int64) (Expression, error) {
	e, ok := c.exprs[expressionID]
	if !ok {
		return Expression{}, ErrNotFound
	}
	return e, nil
}

// --- builder helpers, used only by tests to assemble fixture data ---

func (c *memCatalogue) addType(t Type) {
	if t.Attributes == nil {
		t.Attributes = make(map[uint16]float64)
	}
	c.types[t.ID] = t
}

func (c *memCatalogue) addAttr(m AttributeMeta) {
	c.attrs[m.ID] = m
}

func (c *memCatalogue) attachEffect(typeID uint32, ref EffectRef) {
	c.effectRefs[typeID] = append(c.effectRefs[typeID], ref)
}

func (c *memCatalogue) addEffect(e Effect) {
	c.effects[e.ID] = e
}

func (c *memCatalogue) newExpr(e Expression) int64 {
	id := c.nextExpr
	c.nextExpr++
	e.ID = id
	c.exprs[id] = e
	return id
}

func (c *memCatalogue) litInt(v int64) int64 {
	return c.newExpr(Expression{Opcode: OpLiteralInt, ValueInt: v})
}

func (c *memCatalogue) attrExpr(attributeID uint16) int64 {
	return c.newExpr(Expression{Opcode: OpAttr, ValueInt: int64(attributeID)})
}

func (c *memCatalogue) loc(opcode Opcode) int64 {
	return c.newExpr(Expression{Opcode: opcode})
}

func (c *memCatalogue) locGroup(locExpr int64, groupID uint32) int64 {
	return c.newExpr(Expression{Opcode: OpLocGroup, Arg1: locExpr, Arg2: c.litInt(int64(groupID))})
}

func (c *memCatalogue) locSrq(locExpr int64, skillID uint32) int64 {
	return c.newExpr(Expression{Opcode: OpLocSrq, Arg1: locExpr, Arg2: c.litInt(int64(skillID))})
}

func (c *memCatalogue) gen(locExpr, attrExprID int64) int64 {
	return c.newExpr(Expression{Opcode: OpGen, Arg1: locExpr, Arg2: attrExprID})
}

func (c *memCatalogue) mutator(targetGen, magnitudeGen int64, op Operator) int64 {
	return c.newExpr(Expression{Opcode: OpMutator, Arg1: targetGen, Arg2: magnitudeGen, ValueInt: int64(op)})
}

func (c *memCatalogue) seq(a, b int64) int64 {
	return c.newExpr(Expression{Opcode: OpSeq, Arg1: a, Arg2: b})
}

// setAttrValue stores a base attribute value directly on an already
// registered type. Used to give an effect's source type a "bonus amount"
// attribute the effect's own expression tree then references as its
// magnitude — mirroring how real EVE effects carry their bonus in a
// dedicated attribute on the item granting it, rather than as an inline
// constant in the expression tree.
func (c *memCatalogue) setAttrValue(typeID uint32, attributeID uint16, value float64) {
	c.types[typeID].Attributes[attributeID] = value
}

// installMutator registers effectID on typeID: walking it installs op,
// with magnitude read from magnitudeAttrID on typeID itself (LocThis),
// onto targetAttrID on every environment targetLoc resolves to.
func (c *memCatalogue) installMutator(typeID, effectID uint32, category EffectCategory, targetLoc int64, targetAttrID, magnitudeAttrID uint16, magnitude float64, op Operator) {
	c.setAttrValue(typeID, magnitudeAttrID, magnitude)
	target := c.gen(targetLoc, c.attrExpr(targetAttrID))
	value := c.gen(c.loc(OpLocThis), c.attrExpr(magnitudeAttrID))
	root := c.mutator(target, value, op)
	c.addEffect(Effect{ID: effectID, Category: category, PreExpressionID: root})
	c.attachEffect(typeID, EffectRef{EffectID: effectID, Category: category})
}

// selfBuff installs an effect of effectID onto typeID that applies op,
// with magnitude taken from magnitudeAttrID on typeID, to targetAttrID on
// the environment carrying the effect itself (LocThis).
func (c *memCatalogue) selfBuff(typeID, effectID uint32, category EffectCategory, targetAttrID, magnitudeAttrID uint16, magnitude float64, op Operator) {
	c.installMutator(typeID, effectID, category, c.loc(OpLocThis), targetAttrID, magnitudeAttrID, magnitude, op)
}

// groupBuff installs an effect of effectID onto typeID that applies op,
// with magnitude taken from magnitudeAttrID on typeID, to targetAttrID on
// every child of fromLoc belonging to groupID (e.g. every drone of the
// character, every module of the ship).
func (c *memCatalogue) groupBuff(typeID, effectID uint32, category EffectCategory, fromLoc Opcode, groupID uint32, targetAttrID, magnitudeAttrID uint16, magnitude float64, op Operator) {
	c.installMutator(typeID, effectID, category, c.locGroup(c.loc(fromLoc), groupID), targetAttrID, magnitudeAttrID, magnitude, op)
}

// dualSelfBuff installs a single effect whose expression tree is a
// sequence of two independent mutators, each applying its own op to its
// own target/magnitude attribute pair on the environment carrying the
// effect (LocThis). Exercises effects with more than one mutator in
// their tree, which a single modifier install never does.
func (c *memCatalogue) dualSelfBuff(typeID, effectID uint32, category EffectCategory,
	targetAttrID1, magnitudeAttrID1 uint16, magnitude1 float64, op1 Operator,
	targetAttrID2, magnitudeAttrID2 uint16, magnitude2 float64, op2 Operator) {
	c.setAttrValue(typeID, magnitudeAttrID1, magnitude1)
	c.setAttrValue(typeID, magnitudeAttrID2, magnitude2)

	first := c.mutator(c.gen(c.loc(OpLocThis), c.attrExpr(targetAttrID1)), c.gen(c.loc(OpLocThis), c.attrExpr(magnitudeAttrID1)), op1)
	second := c.mutator(c.gen(c.loc(OpLocThis), c.attrExpr(targetAttrID2)), c.gen(c.loc(OpLocThis), c.attrExpr(magnitudeAttrID2)), op2)
	root := c.seq(first, second)

	c.addEffect(Effect{ID: effectID, Category: category, PreExpressionID: root})
	c.attachEffect(typeID, EffectRef{EffectID: effectID, Category: category})
}
