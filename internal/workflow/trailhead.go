package workflow

import "time"

// Modality classifies the sensory channel of a trailhead signal.
type Modality string

const (
	ModalitySomatic   Modality = "somatic"
	ModalityVisual    Modality = "visual"
	ModalityAuditory  Modality = "auditory"
	ModalityCognitive Modality = "cognitive"
)

// Trailhead is an entry-point signal that a part is present: a body
// sensation, image, sound, or thought observed by the facilitator.
type Trailhead struct {
	ID          string    `json:"id"`
	Modality    Modality  `json:"modality"`
	Intensity   float64   `json:"intensity"`
	Timestamp   time.Time `json:"timestamp"`
	Description string    `json:"description"`
	// PartID is set when the signal is already associated with a part.
	PartID string `json:"part_id,omitempty"`
}

// TrailheadLog is the ordered record of all trailheads and focus
// shifts in a session.
type TrailheadLog struct {
	entries []Trailhead
	shifts  []FocusShift
}

// Add records a trailhead.
func (l *TrailheadLog) Add(t Trailhead) {
	l.entries = append(l.entries, t)
}

// Entries returns all recorded trailheads in order.
func (l *TrailheadLog) Entries() []Trailhead {
	return append([]Trailhead(nil), l.entries...)
}

// ByModality filters trailheads by sensory channel.
func (l *TrailheadLog) ByModality(m Modality) []Trailhead {
	var out []Trailhead
	for _, t := range l.entries {
		if t.Modality == m {
			out = append(out, t)
		}
	}
	return out
}

// ByPart returns all trailheads associated with a part.
func (l *TrailheadLog) ByPart(partID string) []Trailhead {
	var out []Trailhead
	for _, t := range l.entries {
		if t.PartID == partID {
			out = append(out, t)
		}
	}
	return out
}

// FocusShift marks the pivot from an external trigger to the internal
// part now in focus.
type FocusShift struct {
	FromSubject string    `json:"from_subject"`
	ToSubject   string    `json:"to_subject"`
	Timestamp   time.Time `json:"timestamp"`
	TrailheadID string    `json:"trailhead_id,omitempty"`
}

// AddShift records a focus shift.
func (l *TrailheadLog) AddShift(shift FocusShift) {
	l.shifts = append(l.shifts, shift)
}

// Shifts returns all recorded focus shifts in order.
func (l *TrailheadLog) Shifts() []FocusShift {
	return append([]FocusShift(nil), l.shifts...)
}
