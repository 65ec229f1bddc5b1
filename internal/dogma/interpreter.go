package dogma

// evalMode selects whether a walk installs modifiers (do) or removes them
// (undo). The walk itself is identical in both modes — only what a
// mutator node does with the resolved operands differs — which is what
// makes do/undo deterministically symmetric (spec.md §4.4).
type evalMode int

const (
	modeDo evalMode = iota
	modeUndo
)

// requiredSkillAttributeID is the catalogue attribute id this package
// treats as "the skill type id this type requires", for OpLocSrq
// filtering. It mirrors EVE's own requiredSkill1 dogma attribute.
const requiredSkillAttributeID = 182

// operand is what a Gen node or a bare location node resolves to: one or
// more target environments, plus (for Gen) the attribute of interest on
// each.
type operand struct {
	targets []handle
	attrID  uint16
}

// evalEffect walks effect's pre-expression tree against self (the
// environment whose state transition triggered this evaluation),
// installing (modeDo) or removing (modeUndo) every modifier the tree
// describes. Failures — a missing expression, a dangling child id — abort
// evaluation of this effect only; they never propagate, per spec.md §4.4
// and §7.
func (ctx *Context) evalEffect(self handle, effect Effect, mode evalMode) {
	if effect.PreExpressionID == 0 {
		return
	}
	ctx.evalNode(self, effect.ID, effect.PreExpressionID, mode)
}

func (ctx *Context) evalNode(self handle, effectID uint32, exprID int64, mode evalMode) {
	if exprID == 0 {
		return
	}
	expr, err := ctx.cat.LookupExpression(exprID)
	if err != nil {
		return
	}
	switch expr.Opcode {
	case OpSeq:
		ctx.evalNode(self, effectID, expr.Arg1, mode)
		ctx.evalNode(self, effectID, expr.Arg2, mode)
	case OpMutator:
		ctx.evalMutator(self, effectID, expr, mode)
	default:
		// A non-mutator, non-sequence root does not itself install
		// anything; nothing to do.
	}
}

func (ctx *Context) evalMutator(self handle, effectID uint32, expr Expression, mode evalMode) {
	targetExpr, err := ctx.cat.LookupExpression(expr.Arg1)
	if err != nil {
		return
	}
	magnitudeExpr, err := ctx.cat.LookupExpression(expr.Arg2)
	if err != nil {
		return
	}

	targetOp, ok := ctx.evalOperand(self, targetExpr)
	if !ok || len(targetOp.targets) == 0 {
		return
	}
	magnitudeOp, ok := ctx.evalOperand(self, magnitudeExpr)
	if !ok || len(magnitudeOp.targets) == 0 {
		return
	}

	op := Operator(expr.ValueInt)
	penaltied := ctx.isPenaltied(targetOp.attrID, op)
	mod := Modifier{
		SourceEnv:      magnitudeOp.targets[0],
		SourceEffectID: effectID,
		Operator:       op,
		TargetAttrID:   targetOp.attrID,
		SourceAttrID:   magnitudeOp.attrID,
		Penaltied:      penaltied,
	}

	for _, target := range targetOp.targets {
		e := ctx.env(target)
		if e == nil {
			continue
		}
		switch mode {
		case modeDo:
			e.modifiers.add(mod)
		case modeUndo:
			e.modifiers.remove(mod.SourceEnv, mod.SourceEffectID, mod.Operator, mod.TargetAttrID)
		}
	}
}

func (ctx *Context) isPenaltied(attrID uint16, op Operator) bool {
	if !op.isPreMultiplicative() && !op.isPostMultiplicative() {
		return false
	}
	meta, err := ctx.cat.LookupAttributeMeta(attrID)
	if err != nil {
		return false
	}
	return !meta.Stackable
}

// evalOperand resolves a Gen node, a bare location node, or a filter node
// into an operand. The second return value is false on unrecoverable
// failure (e.g. referencing a dangling child expression).
func (ctx *Context) evalOperand(self handle, expr Expression) (operand, bool) {
	switch expr.Opcode {
	case OpGen:
		locExpr, err := ctx.cat.LookupExpression(expr.Arg1)
		if err != nil {
			return operand{}, false
		}
		locOp, ok := ctx.evalOperand(self, locExpr)
		if !ok {
			return operand{}, false
		}
		attrID, ok := ctx.evalAttrExpr(expr.Arg2)
		if !ok {
			return operand{}, false
		}
		locOp.attrID = attrID
		return locOp, true

	case OpLiteralInt, OpLiteralFloat, OpAttr:
		// Not a location; only meaningful as the attribute child of Gen.
		return operand{}, false

	case OpLocThis:
		return operand{targets: []handle{self}}, true
	case OpLocShip:
		return operand{targets: []handle{ctx.ship}}, true
	case OpLocChar:
		return operand{targets: []handle{ctx.character}}, true
	case OpLocTarget:
		return operand{targets: []handle{ctx.target}}, true
	case OpLocArea:
		return operand{targets: []handle{ctx.area}}, true
	case OpLocOther:
		other := ctx.otherSide(self)
		if other == noHandle {
			return operand{}, true
		}
		return operand{targets: []handle{other}}, true

	case OpLocGroup:
		locExpr, err := ctx.cat.LookupExpression(expr.Arg1)
		if err != nil {
			return operand{}, false
		}
		locOp, ok := ctx.evalOperand(self, locExpr)
		if !ok {
			return operand{}, false
		}
		groupID := uint32(expr.Arg2Literal(ctx))
		return operand{targets: ctx.childrenInGroup(locOp.targets, groupID)}, true

	case OpLocSrq:
		locExpr, err := ctx.cat.LookupExpression(expr.Arg1)
		if err != nil {
			return operand{}, false
		}
		locOp, ok := ctx.evalOperand(self, locExpr)
		if !ok {
			return operand{}, false
		}
		skillID := uint32(expr.Arg2Literal(ctx))
		return operand{targets: ctx.childrenRequiringSkill(locOp.targets, skillID)}, true

	default:
		return operand{}, false
	}
}

// Arg2Literal resolves expr.Arg2 as a literal-int expression id and
// returns its value, defaulting to expr.ValueInt if Arg2 is zero (so
// callers may encode small literals inline without a child node).
func (expr Expression) Arg2Literal(ctx *Context) int64 {
	if expr.Arg2 == 0 {
		return expr.ValueInt
	}
	lit, err := ctx.cat.LookupExpression(expr.Arg2)
	if err != nil {
		return expr.ValueInt
	}
	return lit.ValueInt
}

func (ctx *Context) evalAttrExpr(exprID int64) (uint16, bool) {
	if exprID == 0 {
		return 0, false
	}
	expr, err := ctx.cat.LookupExpression(exprID)
	if err != nil {
		return 0, false
	}
	if expr.Opcode != OpAttr && expr.Opcode != OpLiteralInt {
		return 0, false
	}
	return uint16(expr.ValueInt), true
}

// otherSide resolves the "other" location selector: the opposite side of
// a module<->charge link.
func (ctx *Context) otherSide(self handle) handle {
	e := ctx.env(self)
	if e == nil {
		return noHandle
	}
	if e.parent != noHandle && ctx.env(e.parent) != nil && e.index == 0 && ctx.isModule(e.parent) {
		// self is a charge; other is its module.
		return e.parent
	}
	// self may be a module; other is its charge, if any, at key 0.
	if chargeHandle, ok := e.children[0]; ok {
		return chargeHandle
	}
	return noHandle
}

func (ctx *Context) isModule(h handle) bool {
	e := ctx.env(h)
	return e != nil && e.parent == ctx.ship
}

func (ctx *Context) childrenInGroup(locs []handle, groupID uint32) []handle {
	var out []handle
	for _, loc := range locs {
		e := ctx.env(loc)
		if e == nil {
			continue
		}
		for _, childHandle := range e.children {
			child := ctx.env(childHandle)
			if child == nil {
				continue
			}
			t, err := ctx.cat.LookupType(child.id)
			if err != nil {
				continue
			}
			if t.GroupID == groupID {
				out = append(out, childHandle)
			}
		}
	}
	return out
}

func (ctx *Context) childrenRequiringSkill(locs []handle, skillID uint32) []handle {
	var out []handle
	for _, loc := range locs {
		e := ctx.env(loc)
		if e == nil {
			continue
		}
		for _, childHandle := range e.children {
			child := ctx.env(childHandle)
			if child == nil {
				continue
			}
			t, err := ctx.cat.LookupType(child.id)
			if err != nil {
				continue
			}
			if required, ok := t.Attributes[requiredSkillAttributeID]; ok && uint32(required) == skillID {
				out = append(out, childHandle)
			}
		}
	}
	return out
}
