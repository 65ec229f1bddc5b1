package dogma

import (
	"math/rand"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// stackingTypeBase and friends give every generated modifier a distinct
// source type, each carrying its own magnitude attribute, so gopter can
// vary the number and values of penaltied modifiers targeting one
// attribute without the fixture builder's idempotent add() collapsing
// them (modifier identity is keyed by source env).
const (
	stackingShip       = 20001
	stackingTargetAttr uint16 = 400
)

func stackingSourceType(i int) uint32 { return uint32(21000 + i) }
func stackingMagAttr(i int) uint16    { return uint16(5000 + i) }

// buildStackingFixture installs n post-percent modules, each a distinct
// source type with its own magnitude attribute carrying value magnitudes[i],
// all fitted and online so their modifiers are live against a single ship
// environment's stackingTargetAttr.
func buildStackingFixture(magnitudes []float64) (*Context, *memCatalogue) {
	cat := newMemCatalogue()
	cat.addAttr(AttributeMeta{ID: stackingTargetAttr, Default: 100.0, Stackable: false, HighIsGood: true})
	cat.addType(Type{ID: stackingShip, CategoryID: 6, Name: "Stacking Ship"})

	for i, mag := range magnitudes {
		t := stackingSourceType(i)
		cat.addType(Type{ID: t, GroupID: 1, CategoryID: 7, Name: "Stacker"})
		cat.installMutator(t, uint32(7000+i), EffectOnline, cat.loc(OpLocShip), stackingTargetAttr, stackingMagAttr(i), mag, OpPostPercent)
	}

	ctx := NewContext(cat)
	ctx.SetShip(stackingShip)
	for i := range magnitudes {
		key := ctx.AddModule(stackingSourceType(i))
		_ = ctx.SetModuleState(key, Online)
	}
	return ctx, cat
}

// TestStackingPenaltyMonotonicDecay asserts the property behind
// stackingPenalty: attenuation strictly decreases (weakly, ties only at
// n=0 vs itself) as more penaltied modifiers of the same favourable sign
// pile onto one attribute, and the decayed total never exceeds the
// un-decayed (naive product) total when every bonus is positive.
func TestStackingPenaltyMonotonicDecay(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("decayed total never exceeds the naive product of positive bonuses", prop.ForAll(
		func(mags []float64) bool {
			if len(mags) == 0 {
				return true
			}
			ctx, _ := buildStackingFixture(mags)
			defer ctx.FreeContext()

			got, err := ctx.GetShipAttribute(stackingTargetAttr)
			if err != nil {
				return false
			}

			naive := 100.0
			for _, m := range mags {
				naive *= 1 + m/100.0
			}

			return got <= naive+1e-6
		},
		gen.SliceOfN(5, gen.Float64Range(1.0, 50.0)),
	))

	properties.Property("each successive penaltied bonus contributes strictly less than the first", prop.ForAll(
		func(mag float64, n int) bool {
			if n < 2 {
				return true
			}
			mags := make([]float64, n)
			for i := range mags {
				mags[i] = mag
			}
			ctx, _ := buildStackingFixture(mags)
			defer ctx.FreeContext()

			got, err := ctx.GetShipAttribute(stackingTargetAttr)
			if err != nil {
				return false
			}

			// n equal bonuses of mag%, fully undecayed, would give
			// 100*(1+mag/100)^n. The stacking-penaltied result must be
			// strictly smaller whenever n > 1 and mag > 0.
			undecayed := 100.0
			for i := 0; i < n; i++ {
				undecayed *= 1 + mag/100.0
			}
			return got < undecayed
		},
		gen.Float64Range(5.0, 40.0),
		gen.IntRange(2, 8),
	))

	properties.TestingRun(t)
}

// TestStackingRankIgnoresInstallOrder asserts that reordering the
// magnitudes passed to the fixture never changes the resolved total —
// penalty ranking is a property of the values, not installation order.
func TestStackingRankIgnoresInstallOrder(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("resolved total is invariant to the order modifiers were installed in", prop.ForAll(
		func(mags []float64) bool {
			if len(mags) < 2 {
				return true
			}
			ctxA, _ := buildStackingFixture(mags)
			defer ctxA.FreeContext()
			a, err := ctxA.GetShipAttribute(stackingTargetAttr)
			if err != nil {
				return false
			}

			shuffled := append([]float64(nil), mags...)
			rand.New(rand.NewSource(int64(len(mags)))).Shuffle(len(shuffled), func(i, j int) {
				shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
			})
			ctxB, _ := buildStackingFixture(shuffled)
			defer ctxB.FreeContext()
			b, err := ctxB.GetShipAttribute(stackingTargetAttr)
			if err != nil {
				return false
			}

			return floatsClose(a, b, 1e-6)
		},
		gen.SliceOfN(6, gen.Float64Range(1.0, 60.0)),
	))

	properties.TestingRun(t)
}

func floatsClose(a, b, eps float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= eps
}
