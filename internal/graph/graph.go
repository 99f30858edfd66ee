// Package graph holds the relationship graph of the internal system:
// parts as nodes, directed typed edges between them, and declared
// conflict (polarization) pairs.
//
// The engagement workflow and the unburdening pipeline consult the graph
// read-only; topology changes remain the caller's job.
package graph

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/partswork/engine/internal/part"
)

// EdgeType classifies a directed relationship between two parts.
type EdgeType string

const (
	// EdgeProtects links a protector to the exile it guards.
	EdgeProtects EdgeType = "protects"
	// EdgePolarized links two parts locked in mutual escalation.
	EdgePolarized EdgeType = "polarized"
	// EdgeAllied links parts cooperating toward a shared goal.
	EdgeAllied EdgeType = "allied"
)

var (
	// ErrNotFound indicates a referenced part is not in the graph.
	ErrNotFound = errors.New("part not found")
)

// Edge is a directed typed relationship. For protects edges the source
// is the protector and the target is the exile.
type Edge struct {
	SourceID string   `json:"source_id"`
	TargetID string   `json:"target_id"`
	Type     EdgeType `json:"type"`
}

// Conflict is an explicitly declared polarization between two parts.
type Conflict struct {
	PartAID string  `json:"part_a_id"`
	PartBID string  `json:"part_b_id"`
	Tension float64 `json:"tension"`
}

// Graph is the container for parts and their relationships.
type Graph struct {
	nodes     map[string]part.Part
	edges     []Edge
	conflicts []Conflict
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{nodes: make(map[string]part.Part)}
}

// AddPart inserts or replaces a part node.
func (g *Graph) AddPart(p part.Part) error {
	if err := part.Validate(p); err != nil {
		return err
	}
	g.nodes[p.Meta().ID] = p
	return nil
}

// RemovePart deletes a part and every edge or conflict touching it.
// Removing an absent part is a no-op.
func (g *Graph) RemovePart(id string) {
	delete(g.nodes, id)
	kept := g.edges[:0]
	for _, e := range g.edges {
		if e.SourceID != id && e.TargetID != id {
			kept = append(kept, e)
		}
	}
	g.edges = kept
	keptConflicts := g.conflicts[:0]
	for _, c := range g.conflicts {
		if c.PartAID != id && c.PartBID != id {
			keptConflicts = append(keptConflicts, c)
		}
	}
	g.conflicts = keptConflicts
}

// AddEdge inserts a directed edge. Both endpoints must exist.
func (g *Graph) AddEdge(e Edge) error {
	if !g.Exists(e.SourceID) {
		return fmt.Errorf("edge source %s: %w", e.SourceID, ErrNotFound)
	}
	if !g.Exists(e.TargetID) {
		return fmt.Errorf("edge target %s: %w", e.TargetID, ErrNotFound)
	}
	g.edges = append(g.edges, e)
	return nil
}

// AddConflict declares a polarization between two existing parts.
func (g *Graph) AddConflict(c Conflict) error {
	if !g.Exists(c.PartAID) {
		return fmt.Errorf("conflict part %s: %w", c.PartAID, ErrNotFound)
	}
	if !g.Exists(c.PartBID) {
		return fmt.Errorf("conflict part %s: %w", c.PartBID, ErrNotFound)
	}
	g.conflicts = append(g.conflicts, c)
	return nil
}

// Exists reports whether a part with the given id is in the graph.
func (g *Graph) Exists(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// Get returns a part by id.
func (g *Graph) Get(id string) (part.Part, error) {
	p, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("part %s: %w", id, ErrNotFound)
	}
	return p, nil
}

// Parts returns all part nodes in unspecified order.
func (g *Graph) Parts() []part.Part {
	parts := make([]part.Part, 0, len(g.nodes))
	for _, p := range g.nodes {
		parts = append(parts, p)
	}
	return parts
}

// Edges returns a copy of all directed edges.
func (g *Graph) Edges() []Edge {
	return append([]Edge(nil), g.edges...)
}

// EdgesFrom returns the targets of all edges of the given type
// originating at the given part.
func (g *Graph) EdgesFrom(id string, edgeType EdgeType) []part.Part {
	var targets []part.Part
	for _, e := range g.edges {
		if e.SourceID != id || e.Type != edgeType {
			continue
		}
		if p, ok := g.nodes[e.TargetID]; ok {
			targets = append(targets, p)
		}
	}
	return targets
}

// ProtectorsOf returns every part with a protects edge into the given exile.
func (g *Graph) ProtectorsOf(exileID string) []part.Part {
	var protectors []part.Part
	for _, e := range g.edges {
		if e.TargetID != exileID || e.Type != EdgeProtects {
			continue
		}
		if p, ok := g.nodes[e.SourceID]; ok {
			protectors = append(protectors, p)
		}
	}
	return protectors
}

// Exiles returns all exile parts in the graph.
func (g *Graph) Exiles() []*part.Exile {
	var exiles []*part.Exile
	for _, p := range g.nodes {
		if e, ok := p.(*part.Exile); ok {
			exiles = append(exiles, e)
		}
	}
	return exiles
}

// SharedExiles returns the exiles protected by both given parts.
func (g *Graph) SharedExiles(partAID, partBID string) []*part.Exile {
	aTargets := make(map[string]bool)
	for _, e := range g.edges {
		if e.SourceID == partAID && e.Type == EdgeProtects {
			aTargets[e.TargetID] = true
		}
	}
	var shared []*part.Exile
	for _, e := range g.edges {
		if e.SourceID != partBID || e.Type != EdgeProtects || !aTargets[e.TargetID] {
			continue
		}
		if exile, ok := g.nodes[e.TargetID].(*part.Exile); ok {
			shared = append(shared, exile)
			delete(aTargets, e.TargetID)
		}
	}
	return shared
}

// ConflictPairs returns a copy of all declared conflicts.
func (g *Graph) ConflictPairs() []Conflict {
	return append([]Conflict(nil), g.conflicts...)
}

// HasConflict reports whether a conflict is declared between the two
// parts in either ordering.
func (g *Graph) HasConflict(partAID, partBID string) bool {
	for _, c := range g.conflicts {
		if (c.PartAID == partAID && c.PartBID == partBID) ||
			(c.PartAID == partBID && c.PartBID == partAID) {
			return true
		}
	}
	return false
}

// MapNode is one node in the exported parts map.
type MapNode struct {
	ID         string  `json:"id"`
	Label      string  `json:"label"`
	Kind       string  `json:"kind"`
	State      string  `json:"state"`
	TrustLevel float64 `json:"trust_level"`
	Activation float64 `json:"activation,omitempty"`
}

// MapEdge is one edge in the exported parts map.
type MapEdge struct {
	Source  string  `json:"source"`
	Target  string  `json:"target"`
	Type    string  `json:"type"`
	Tension float64 `json:"tension,omitempty"`
}

// PartsMap is the export format consumed by force-directed graph
// visualisation tools.
type PartsMap struct {
	Nodes []MapNode `json:"nodes"`
	Edges []MapEdge `json:"edges"`
}

// ExportMap renders the graph as a parts map. Declared conflicts appear
// as polarized edges carrying their tension.
func (g *Graph) ExportMap() PartsMap {
	out := PartsMap{Nodes: make([]MapNode, 0, len(g.nodes)), Edges: make([]MapEdge, 0, len(g.edges)+len(g.conflicts))}
	for _, p := range g.nodes {
		meta := p.Meta()
		node := MapNode{
			ID:         meta.ID,
			Label:      truncate(meta.Narrative, 50),
			Kind:       string(p.Kind()),
			TrustLevel: meta.TrustLevel,
		}
		switch v := p.(type) {
		case *part.Manager:
			node.State = string(v.State)
		case *part.Firefighter:
			node.State = string(v.State)
		case *part.Exile:
			node.State = string(v.State)
			node.Activation = v.Activation
		}
		out.Nodes = append(out.Nodes, node)
	}
	for _, e := range g.edges {
		out.Edges = append(out.Edges, MapEdge{Source: e.SourceID, Target: e.TargetID, Type: string(e.Type)})
	}
	for _, c := range g.conflicts {
		out.Edges = append(out.Edges, MapEdge{Source: c.PartAID, Target: c.PartBID, Type: string(EdgePolarized), Tension: c.Tension})
	}
	return out
}

// truncate shortens s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
