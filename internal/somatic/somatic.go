// Package somatic maps parts to felt-sense body locations. A marker is
// one (part, location, quality, intensity) observation; the body map is
// the indexed collection for a session.
package somatic

// Region is a major body zone where a sensation is felt.
type Region string

const (
	RegionHead    Region = "head"
	RegionThroat  Region = "throat"
	RegionChest   Region = "chest"
	RegionStomach Region = "stomach"
	RegionPelvis  Region = "pelvis"
	RegionLimbs   Region = "limbs"
	RegionBack    Region = "back"
)

// Side is the lateral position of a sensation. Center is the default
// for midline sensations.
type Side string

const (
	SideLeft   Side = "left"
	SideCenter Side = "center"
	SideRight  Side = "right"
)

// Location is where in the body a part is felt. Detail carries
// free-text precision beyond the region/side coordinates.
type Location struct {
	Region Region `json:"region"`
	Side   Side   `json:"side"`
	Detail string `json:"detail,omitempty"`
}

// Marker is a part's felt-sense presence in the body. Quality is the
// texture of the sensation (tightness, heat, heaviness); intensity runs
// from imperceptible (0) to overwhelming (1).
type Marker struct {
	ID        string   `json:"id"`
	PartID    string   `json:"part_id"`
	Location  Location `json:"location"`
	Quality   string   `json:"quality"`
	Intensity float64  `json:"intensity"`
}

// BodyMap collects all somatic markers in a session.
type BodyMap struct {
	markers []Marker
}

// Add appends a marker to the map.
func (m *BodyMap) Add(marker Marker) {
	if marker.Location.Side == "" {
		marker.Location.Side = SideCenter
	}
	m.markers = append(m.markers, marker)
}

// Markers returns all markers in insertion order.
func (m *BodyMap) Markers() []Marker {
	return append([]Marker(nil), m.markers...)
}

// ByPart returns the somatic footprint of one part.
func (m *BodyMap) ByPart(partID string) []Marker {
	var out []Marker
	for _, marker := range m.markers {
		if marker.PartID == partID {
			out = append(out, marker)
		}
	}
	return out
}

// ByRegion returns every marker felt in a body region.
func (m *BodyMap) ByRegion(region Region) []Marker {
	var out []Marker
	for _, marker := range m.markers {
		if marker.Location.Region == region {
			out = append(out, marker)
		}
	}
	return out
}

// RemovePart clears all markers for a part. An unburdened part's
// somatic signature typically dissolves with its burden.
func (m *BodyMap) RemovePart(partID string) {
	kept := m.markers[:0]
	for _, marker := range m.markers {
		if marker.PartID != partID {
			kept = append(kept, marker)
		}
	}
	m.markers = kept
}
