// Package facilitator models the facilitator's interaction profile: the
// five qualities that tune how the engagement workflow and unburdening
// pipeline apply their thresholds and increments.
package facilitator

import "math"

// Modifiers is the facilitator profile. Each quality is in [0,1];
// 0.5 represents a competent but not masterful facilitator.
//
// Presence amplifies effective energy for gate checks. Patience lowers
// the compassion threshold. Perspective widens log detail. Persistence
// scales the trust increment. Playfulness adds variance to the trust
// increment through an injected random source.
type Modifiers struct {
	Presence    float64
	Patience    float64
	Perspective float64
	Persistence float64
	Playfulness float64

	// Rand supplies variance in [-1,1) for playfulness. When nil the
	// trust increment is fully deterministic.
	Rand func() float64
}

// Default returns the baseline profile with every quality at 0.5.
func Default() Modifiers {
	return Modifiers{
		Presence:    0.5,
		Patience:    0.5,
		Perspective: 0.5,
		Persistence: 0.5,
		Playfulness: 0.5,
	}
}

// EffectiveThreshold lowers the gate for a patient facilitator:
// threshold x (1 - patience x 0.3).
func (m Modifiers) EffectiveThreshold(base float64) float64 {
	return base * (1.0 - m.Patience*0.3)
}

// EffectiveEnergy amplifies available energy for a present facilitator:
// energy x (1 + presence x 0.2), capped at 1.
func (m Modifiers) EffectiveEnergy(energy float64) float64 {
	return math.Min(energy*(1.0+m.Presence*0.2), 1.0)
}

// TrustIncrement scales the base increment by persistence, from half
// the base at 0 to one and a half times at 1. Playfulness adds up to
// +-20% variance when a random source is configured. Never below 0.01.
func (m Modifiers) TrustIncrement(base float64) float64 {
	scaled := base * (0.5 + m.Persistence)
	if m.Playfulness > 0 && m.Rand != nil {
		scaled += m.Rand() * m.Playfulness * 0.2 * base
	}
	return math.Max(scaled, 0.01)
}
