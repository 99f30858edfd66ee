// Package selfstate models the self-energy resource of the internal
// system: an eight-quality vector, its scalar composite, and the
// occlusion imposed by blended parts.
//
// The potential is constant: self is never damaged, only occluded.
// Blending reduces the accessible energy per quality; unblending restores
// it. The most occluding blend wins per quality (the dominant-part rule).
package selfstate

import (
	"fmt"
	"math"
	"time"
)

// Potential is the fixed ceiling of accessible self-energy.
const Potential = 1.0

// compositeTolerance bounds the allowed drift between the stored scalar
// and the vector composite before the scalar is corrected.
const compositeTolerance = 1e-9

// Blend records one part occluding self-energy. Fraction applies to
// every quality unless the override map names a quality-specific value.
type Blend struct {
	PartID    string              `json:"part_id"`
	Fraction  float64             `json:"fraction"`
	Overrides map[Quality]float64 `json:"overrides,omitempty"`
}

// Event is one entry in the append-only session log.
type Event struct {
	Timestamp   time.Time `json:"timestamp"`
	Kind        string    `json:"kind"`
	Description string    `json:"description"`
	PartID      string    `json:"part_id,omitempty"`
}

// State holds the live vector, the active blends, and the session log.
// All mutations keep the scalar energy equal to the vector composite.
type State struct {
	vector Vector
	energy float64
	blends []Blend
	log    []Event
	clock  func() time.Time
}

// New returns a state whose vector is uniform at the given energy.
func New(energy float64) *State {
	s := &State{
		vector: Uniform(energy),
		energy: energy,
		clock:  time.Now,
	}
	s.syncEnergy()
	return s
}

// NewWithVector returns a state seeded from an explicit vector. The
// scalar is always derived from the vector, never the reverse.
func NewWithVector(v Vector) *State {
	s := &State{
		vector: v.Clone(),
		clock:  time.Now,
	}
	s.syncEnergy()
	return s
}

// SetClock overrides the timestamp source for log entries.
func (s *State) SetClock(clock func() time.Time) {
	if clock != nil {
		s.clock = clock
	}
}

// Energy returns the scalar composite of the vector.
func (s *State) Energy() float64 {
	return s.energy
}

// Vector returns a copy of the live quality vector.
func (s *State) Vector() Vector {
	return s.vector.Clone()
}

// ActiveBlends returns a copy of the active blends.
func (s *State) ActiveBlends() []Blend {
	return append([]Blend(nil), s.blends...)
}

// Log returns the session log in append order.
func (s *State) Log() []Event {
	return append([]Event(nil), s.log...)
}

// Append adds an event to the session log, stamping it with the clock.
func (s *State) Append(kind, description, partID string) {
	s.log = append(s.log, Event{
		Timestamp:   s.clock().UTC(),
		Kind:        kind,
		Description: description,
		PartID:      partID,
	})
}

// AddBlend upserts the blend for a part, recomputes the vector, and
// logs a blend event. A second blend for the same part replaces the first.
func (s *State) AddBlend(b Blend) {
	kept := s.blends[:0]
	for _, existing := range s.blends {
		if existing.PartID != b.PartID {
			kept = append(kept, existing)
		}
	}
	s.blends = append(kept, b)
	s.recompute()
	s.Append("blend", fmt.Sprintf("Part blended at %.0f%%", b.Fraction*100), b.PartID)
}

// RemoveBlend removes any blend for the part and recomputes. Removing
// an absent blend still logs the unblend event.
func (s *State) RemoveBlend(partID string) {
	kept := s.blends[:0]
	for _, existing := range s.blends {
		if existing.PartID != partID {
			kept = append(kept, existing)
		}
	}
	s.blends = kept
	s.recompute()
	s.Append("unblend", "Part unblended", partID)
}

// MostBlended returns the id of the blend with the highest overall
// fraction, or the empty string when no blends are active.
func (s *State) MostBlended() string {
	var id string
	best := math.Inf(-1)
	for _, b := range s.blends {
		if b.Fraction > best {
			best = b.Fraction
			id = b.PartID
		}
	}
	return id
}

// recompute rebuilds the vector from the active blends. With no blends
// every quality returns to the full potential. Otherwise each quality is
// occluded by the strongest applicable blend: the per-quality override
// when present, the overall fraction when not.
func (s *State) recompute() {
	if len(s.blends) == 0 {
		s.vector = Uniform(Potential)
		s.syncEnergy()
		return
	}
	for _, q := range Qualities {
		var occlusion float64
		for _, b := range s.blends {
			f := b.Fraction
			if override, ok := b.Overrides[q]; ok {
				f = override
			}
			if f > occlusion {
				occlusion = f
			}
		}
		s.vector[q] = Potential * (1 - occlusion)
	}
	s.syncEnergy()
}

// syncEnergy corrects the scalar from the vector composite when they
// diverge beyond tolerance. The composite is the source of truth; the
// scalar is never written back into the vector.
func (s *State) syncEnergy() {
	composite := s.vector.Composite()
	if math.Abs(composite-s.energy) > compositeTolerance {
		s.energy = composite
	}
}
