package dogma

// setEnvState transitions e (identified by handle h) to newState,
// preserving the modifier-presence invariant: for every bit that turns
// off, every effect of that category attached to the environment's type
// is evaluated in undo-mode; for every bit that turns on, in do-mode.
// Effects are independent — a failure evaluating one never rolls back or
// blocks another (spec.md §4.4).
func (ctx *Context) setEnvState(h handle, newState State) {
	e := ctx.env(h)
	if e == nil {
		return
	}

	deltaOn := newState &^ e.state
	deltaOff := e.state &^ newState

	for _, ref := range ctx.cat.EffectsOf(e.id) {
		bit := State(1) << uint(ref.Category)
		switch {
		case deltaOff&bit != 0:
			effect, err := ctx.cat.LookupEffect(ref.EffectID)
			if err == nil {
				ctx.evalEffect(h, effect, modeUndo)
			}
		case deltaOn&bit != 0:
			effect, err := ctx.cat.LookupEffect(ref.EffectID)
			if err == nil {
				ctx.evalEffect(h, effect, modeDo)
			}
		}
	}

	e.state = newState
}

// zeroEnvState retracts every active effect on e by transitioning it to
// state 0. Used before detaching/freeing an environment, so no dangling
// modifier references remain once the environment is gone.
func (ctx *Context) zeroEnvState(h handle) {
	ctx.setEnvState(h, 0)
}

// zeroEnvTree zeroes h and every descendant's state, retracting all of
// their effects before the whole subtree is detached and freed. A module
// being removed must retract its charge's modifiers too, not just its
// own, to satisfy the "modifier retraction on detach" invariant.
func (ctx *Context) zeroEnvTree(h handle) {
	e := ctx.env(h)
	if e == nil {
		return
	}
	for _, child := range e.children {
		ctx.zeroEnvTree(child)
	}
	ctx.zeroEnvState(h)
}

// reapplyActiveEffects re-evaluates every effect category already active
// on h, in do-mode. Safe to call at any time: a modifier's identity is
// scoped to the (source, effect, operator, target attribute) tuple within
// each target environment's own store, so re-running an effect that is
// already installed on a given target is a no-op there — only targets the
// filter did not previously resolve to receive the modifier.
func (ctx *Context) reapplyActiveEffects(h handle) {
	e := ctx.env(h)
	if e == nil {
		return
	}
	for _, ref := range ctx.cat.EffectsOf(e.id) {
		bit := State(1) << uint(ref.Category)
		if e.state&bit == 0 {
			continue
		}
		effect, err := ctx.cat.LookupEffect(ref.EffectID)
		if err != nil {
			continue
		}
		ctx.evalEffect(h, effect, modeDo)
	}
}

// reapplyAllActiveEffects re-evaluates every live environment's currently
// active effects. Called whenever the world tree gains a new environment
// (a module, a charge, a drone, an implant): a group- or skill-filtered
// modifier installed by some other environment before the new one
// existed (e.g. a character skill boosting "every drone of the
// character", itself a sibling of the drone rather than its ancestor)
// never targeted it at install time. This gives every already-active
// effect in the context a chance to reach it, without disturbing
// anything a filter already resolved.
func (ctx *Context) reapplyAllActiveEffects() {
	for i, e := range ctx.arena {
		if e == nil || e.freed {
			continue
		}
		ctx.reapplyActiveEffects(handle(i))
	}
}
