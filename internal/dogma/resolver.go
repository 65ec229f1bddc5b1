package dogma

import (
	"math"
	"sort"
)

// stackingPenaltyBase is the constant in EVE's diminishing-returns
// formula: the nth (0-indexed) penaltied multiplier is attenuated by
// exp(-(n/2.67)^2).
const stackingPenaltyBase = 2.67

// attrKey identifies one (environment, attribute) pair being resolved,
// used to detect and break magnitude-resolution cycles.
type attrKey struct {
	h    handle
	attr uint16
}

// getAttribute computes the effective value of attributeID on the
// environment identified by h, per spec.md §4.6.
func (ctx *Context) getAttribute(h handle, attributeID uint16) (float64, error) {
	return ctx.resolveAttr(h, attributeID, make(map[attrKey]bool))
}

func (ctx *Context) resolveAttr(h handle, attributeID uint16, visiting map[attrKey]bool) (float64, error) {
	e := ctx.env(h)
	if e == nil {
		return 0, ErrNotFound
	}

	typ, typErr := ctx.cat.LookupType(e.id)
	if typErr == nil && typ.CategoryID == CategorySkill {
		return float64(ctx.skillLevel(e.id)), nil
	}

	base, err := ctx.baseValue(typ, typErr, attributeID)
	if err != nil {
		return 0, err
	}

	key := attrKey{h, attributeID}
	if visiting[key] {
		// Cycle in magnitude resolution: break it by falling back to the
		// base value, per spec.md §7.
		return base, nil
	}
	visiting[key] = true
	defer delete(visiting, key)

	mods := e.modifiers.iter(attributeID)
	if len(mods) == 0 {
		return base, nil
	}

	resolved := make([]resolvedModifier, 0, len(mods))
	for _, m := range mods {
		v, err := ctx.resolveAttr(m.SourceEnv, m.SourceAttrID, visiting)
		if err != nil {
			continue
		}
		resolved = append(resolved, resolvedModifier{m, v})
	}

	highIsGood := true
	if meta, err := ctx.cat.LookupAttributeMeta(attributeID); err == nil {
		highIsGood = meta.HighIsGood
	}

	acc := base

	// 1. pre_assign: last write wins, ties broken by catalogue order
	// (the order modifiers were installed in, which is iteration order
	// here).
	for _, r := range resolved {
		if r.mod.Operator == OpPreAssign {
			acc = r.value
		}
	}

	// 2. pre_mul, pre_div
	acc = foldMultiplicative(acc, resolved, Operator.isPreMultiplicative, highIsGood)

	// 3. mod_add, mod_sub
	for _, r := range resolved {
		switch r.mod.Operator {
		case OpModAdd:
			acc += r.value
		case OpModSub:
			acc -= r.value
		}
	}

	// 4. post_mul, post_div, post_percent
	acc = foldMultiplicative(acc, resolved, Operator.isPostMultiplicative, highIsGood)

	// 5. post_assign
	for _, r := range resolved {
		if r.mod.Operator == OpPostAssign {
			acc = r.value
		}
	}

	return acc, nil
}

func (ctx *Context) baseValue(typ Type, typErr error, attributeID uint16) (float64, error) {
	if typErr == nil {
		if v, ok := typ.Attributes[attributeID]; ok {
			return v, nil
		}
	}
	if meta, err := ctx.cat.LookupAttributeMeta(attributeID); err == nil {
		return meta.Default, nil
	}
	return 0, ErrNotFound
}

func (ctx *Context) skillLevel(skillTypeID uint32) int {
	if lvl, ok := ctx.skillLevels[skillTypeID]; ok {
		return lvl
	}
	return ctx.defaultSkillLevel
}

type resolvedModifier struct {
	mod   Modifier
	value float64
}

// foldMultiplicative applies one multiplicative fold class (pre-mul/div
// or post-mul/div/percent) to acc. Non-penaltied modifiers in the class
// apply in full, in any order (multiplication is commutative).
// Penaltied modifiers are ranked by favourability — governed by the
// target attribute's high_is_good flag — and each successive one is
// attenuated by the stacking-penalty formula.
func foldMultiplicative(acc float64, mods []resolvedModifier, inClass func(Operator) bool, highIsGood bool) float64 {
	var straight, penaltied []resolvedModifier
	for _, r := range mods {
		if !inClass(r.mod.Operator) {
			continue
		}
		if r.mod.Penaltied {
			penaltied = append(penaltied, r)
		} else {
			straight = append(straight, r)
		}
	}

	for _, r := range straight {
		acc = applyFactor(acc, r.mod.Operator, r.value)
	}

	if len(penaltied) == 0 {
		return acc
	}

	sort.SliceStable(penaltied, func(i, j int) bool {
		fi := effectiveFactor(penaltied[i].mod.Operator, penaltied[i].value)
		fj := effectiveFactor(penaltied[j].mod.Operator, penaltied[j].value)
		if highIsGood {
			return fi > fj
		}
		return fi < fj
	})

	for i, r := range penaltied {
		penalty := stackingPenalty(i)
		factor := effectiveFactor(r.mod.Operator, r.value)
		acc *= 1 + (factor-1)*penalty
	}

	return acc
}

// applyFactor applies a single multiplicative modifier to acc directly
// (used for non-penaltied modifiers, which stack in full).
func applyFactor(acc float64, op Operator, value float64) float64 {
	switch op {
	case OpPreMul, OpPostMul:
		return acc * value
	case OpPreDiv, OpPostDiv:
		if value == 0 {
			return acc
		}
		return acc / value
	case OpPostPercent:
		return acc * (1 + value/100.0)
	default:
		return acc
	}
}

// effectiveFactor expresses any multiplicative operator as the single
// multiplier it contributes, so penaltied modifiers of different
// operators can still be ranked and attenuated on one scale.
func effectiveFactor(op Operator, value float64) float64 {
	switch op {
	case OpPreMul, OpPostMul:
		return value
	case OpPreDiv, OpPostDiv:
		if value == 0 {
			return 1
		}
		return 1 / value
	case OpPostPercent:
		return 1 + value/100.0
	default:
		return 1
	}
}

// stackingPenalty returns the attenuation factor for the nth (0-indexed)
// penaltied modifier in a stacking group: 1st=100%, 2nd≈86.9%,
// 3rd≈57.1%, 4th≈28.3%, 5th≈10.6%, ...
func stackingPenalty(n int) float64 {
	if n == 0 {
		return 1.0
	}
	return math.Exp(-math.Pow(float64(n)/stackingPenaltyBase, 2))
}
