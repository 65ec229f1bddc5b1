package dogma

// handle is a stable reference to an environment in a Context's arena. It
// never aliases a pointer across package boundaries (see SPEC_FULL.md §9):
// callers outside this package only ever see opaque int keys (module/
// implant indices) or none at all (ship, character, drone-by-type).
type handle int

const noHandle handle = -1

// safeCharIndexes is the first key the allocator will hand out for
// user-facing children (modules under a ship, drones/implants under the
// character). Keys below it are reserved for positional children such as
// the ship slot under the character.
const safeCharIndexes = 1

// env is one node of the live world tree.
type env struct {
	id        uint32
	parent    handle
	index     int
	children  map[int]handle
	state     State
	modifiers *modifierStore
	freed     bool
}

func newEnv(id uint32, parent handle, index int) *env {
	return &env{
		id:        id,
		parent:    parent,
		index:     index,
		children:  make(map[int]handle),
		state:     0,
		modifiers: newModifierStore(),
	}
}

// createEnv allocates a new environment in ctx's arena and returns its
// handle. It does not attach it to any parent's children map; callers
// attach it explicitly via attachChildAt or attachChild.
func (ctx *Context) createEnv(id uint32, parent handle, index int) handle {
	e := newEnv(id, parent, index)
	if n := len(ctx.freeList); n > 0 {
		h := ctx.freeList[n-1]
		ctx.freeList = ctx.freeList[:n-1]
		ctx.arena[h] = e
		return handle(h)
	}
	ctx.arena = append(ctx.arena, e)
	return handle(len(ctx.arena) - 1)
}

func (ctx *Context) env(h handle) *env {
	if h == noHandle {
		return nil
	}
	return ctx.arena[h]
}

// attachChildAt creates a child environment at an explicit key (used for
// the ship, always key 0, and for charges, always key 0 under their
// module).
func (ctx *Context) attachChildAt(parent handle, key int, id uint32) handle {
	h := ctx.createEnv(id, parent, key)
	ctx.env(parent).children[key] = h
	return h
}

// attachChild finds the first free key at or above safeCharIndexes in
// parent's children map and attaches a new environment there, returning
// the allocated key.
func (ctx *Context) attachChild(parent handle, id uint32) (handle, int) {
	p := ctx.env(parent)
	key := safeCharIndexes
	for {
		if _, taken := p.children[key]; !taken {
			break
		}
		key++
	}
	h := ctx.createEnv(id, parent, key)
	p.children[key] = h
	return h, key
}

// detachChild removes the child at key from parent's children map
// without freeing it. Returns noHandle if the key is absent.
func (ctx *Context) detachChild(parent handle, key int) handle {
	p := ctx.env(parent)
	h, ok := p.children[key]
	if !ok {
		return noHandle
	}
	delete(p.children, key)
	return h
}

// freeEnv recursively releases an environment and its children. The
// environment's state must already be zero (all its modifiers retracted)
// before this is called; freeEnv does not itself retract anything.
func (ctx *Context) freeEnv(h handle) {
	e := ctx.env(h)
	if e == nil || e.freed {
		return
	}
	for _, childHandle := range e.children {
		ctx.freeEnv(childHandle)
	}
	e.freed = true
	e.children = nil
	e.modifiers = nil
	ctx.freeList = append(ctx.freeList, int(h))
}
