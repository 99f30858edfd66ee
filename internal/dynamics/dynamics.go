// Package dynamics provides the tuning constants and read-only system
// metrics computed over the graph and the self state.
package dynamics

import (
	"math"

	"github.com/partswork/engine/internal/graph"
	"github.com/partswork/engine/internal/part"
	"github.com/partswork/engine/internal/selfstate"
)

// Tuning groups the thresholds and increments consumed by the state
// machines. Injected at construction so tests can vary values without
// process-wide leakage.
type Tuning struct {
	// CompassionThreshold is the energy cutoff above which engagement
	// is considered safe.
	CompassionThreshold float64
	// TrustIncrement is added to a part's trust during befriending.
	TrustIncrement float64
	// ResidualCharge is the activation left on an exile after purging.
	ResidualCharge float64
	// LowTrustThreshold marks a protector as rigidly defensive for
	// conflict detection.
	LowTrustThreshold float64
}

// DefaultTuning returns the standard thresholds and increments.
func DefaultTuning() Tuning {
	return Tuning{
		CompassionThreshold: 0.5,
		TrustIncrement:      0.1,
		ResidualCharge:      0.1,
		LowTrustThreshold:   0.4,
	}
}

// IsSelfLed reports whether the composite energy is strictly above the
// compassion threshold.
func IsSelfLed(state *selfstate.State, tuning Tuning) bool {
	return state.Energy() > tuning.CompassionThreshold
}

// PreservationRatio is the balance of power between self and the parts:
// composite energy over summed exile activation, capped at 1. With no
// exiles, or none activated, the ratio is 1.
func PreservationRatio(state *selfstate.State, g *graph.Graph) float64 {
	exiles := g.Exiles()
	if len(exiles) == 0 {
		return 1.0
	}
	var total float64
	for _, e := range exiles {
		total += e.Activation
	}
	if total == 0 {
		return 1.0
	}
	return math.Min(state.Energy()/total, 1.0)
}

// Tension is the polarization intensity between two parts: one minus
// the lower of their trust levels, rounded to two decimals.
func Tension(trustA, trustB float64) float64 {
	return math.Round((1.0-math.Min(trustA, trustB))*100) / 100
}

// DetectConflicts suggests polarized pairs from graph structure: a
// manager and a firefighter both below the trust threshold that guard
// at least one common exile and have no declared conflict in either
// ordering. Suggestions carry tension = 1 - min(trust levels), rounded
// to two decimals, and are never inserted into the graph.
func DetectConflicts(g *graph.Graph, trustThreshold float64) []graph.Conflict {
	var managers []*part.Manager
	var firefighters []*part.Firefighter
	for _, p := range g.Parts() {
		switch v := p.(type) {
		case *part.Manager:
			if v.TrustLevel < trustThreshold {
				managers = append(managers, v)
			}
		case *part.Firefighter:
			if v.TrustLevel < trustThreshold {
				firefighters = append(firefighters, v)
			}
		}
	}

	var suggestions []graph.Conflict
	for _, mgr := range managers {
		for _, ff := range firefighters {
			if g.HasConflict(mgr.ID, ff.ID) {
				continue
			}
			if len(g.SharedExiles(mgr.ID, ff.ID)) == 0 {
				continue
			}
			suggestions = append(suggestions, graph.Conflict{
				PartAID: mgr.ID,
				PartBID: ff.ID,
				Tension: Tension(mgr.TrustLevel, ff.TrustLevel),
			})
		}
	}
	return suggestions
}
