// Package session composes the parts graph, self state, engagement
// workflow, unburdening pipeline, somatic map, and dialogue into one
// facilitated session with a single lock.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/partswork/engine/internal/dialogue"
	"github.com/partswork/engine/internal/dynamics"
	"github.com/partswork/engine/internal/facilitator"
	"github.com/partswork/engine/internal/graph"
	"github.com/partswork/engine/internal/id"
	"github.com/partswork/engine/internal/part"
	"github.com/partswork/engine/internal/selfstate"
	"github.com/partswork/engine/internal/somatic"
	"github.com/partswork/engine/internal/storage"
	"github.com/partswork/engine/internal/unburdening"
	"github.com/partswork/engine/internal/workflow"
)

// Session is one facilitated parts-work session. All methods are safe
// for concurrent use; a single mutex serializes every operation.
type Session struct {
	mu sync.Mutex

	id          string
	createdAt   time.Time
	clock       func() time.Time
	idGenerator func() (string, error)

	graph      *graph.Graph
	state      *selfstate.State
	tuning     dynamics.Tuning
	modifiers  *facilitator.Modifiers
	trailheads *workflow.TrailheadLog
	bodyMap    *somatic.BodyMap
	engagement *workflow.Engine
	pipeline   *unburdening.Pipeline
	dialogue   *dialogue.Dialogue

	provider      dialogue.Provider
	initialEnergy float64

	store     storage.SessionStore
	persisted int
}

// Option configures a session at construction.
type Option func(*Session)

// WithID sets the session identifier instead of generating one.
func WithID(sessionID string) Option {
	return func(s *Session) { s.id = sessionID }
}

// WithClock injects the time source.
func WithClock(clock func() time.Time) Option {
	return func(s *Session) { s.clock = clock }
}

// WithIDGenerator injects the part identifier generator.
func WithIDGenerator(gen func() (string, error)) Option {
	return func(s *Session) { s.idGenerator = gen }
}

// WithTuning overrides the default simulation constants.
func WithTuning(tuning dynamics.Tuning) Option {
	return func(s *Session) { s.tuning = tuning }
}

// WithModifiers sets the facilitator quality profile.
func WithModifiers(m *facilitator.Modifiers) Option {
	return func(s *Session) { s.modifiers = m }
}

// WithProvider sets the dialogue backend. The default is the scripted
// rule-based provider.
func WithProvider(p dialogue.Provider) Option {
	return func(s *Session) { s.provider = p }
}

// WithStore attaches a durable store; session events are mirrored to
// its journal as they happen.
func WithStore(store storage.SessionStore) Option {
	return func(s *Session) { s.store = store }
}

// WithInitialEnergy sets the starting self energy. The default is 1.0,
// full access to self.
func WithInitialEnergy(energy float64) Option {
	return func(s *Session) { s.initialEnergy = energy }
}

// New creates a session. The returned session is registered with its
// store, when one is attached.
func New(ctx context.Context, opts ...Option) (*Session, error) {
	s := &Session{
		clock:         time.Now,
		idGenerator:   id.NewID,
		tuning:        dynamics.DefaultTuning(),
		initialEnergy: selfstate.Potential,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.id == "" {
		sessionID, err := s.idGenerator()
		if err != nil {
			return nil, fmt.Errorf("generate session id: %w", err)
		}
		s.id = sessionID
	}
	s.createdAt = s.clock().UTC()

	s.graph = graph.New()
	s.state = selfstate.New(s.initialEnergy)
	s.state.SetClock(s.clock)
	s.trailheads = &workflow.TrailheadLog{}
	s.bodyMap = &somatic.BodyMap{}
	s.engagement = workflow.New(s.graph, s.state, s.trailheads, s.tuning, s.modifiers)
	s.pipeline = unburdening.New(s.graph, s.state, s.tuning, s.modifiers)
	if s.provider == nil {
		s.provider = dialogue.Scripted{}
	}
	s.dialogue = dialogue.New(s.provider, s.graph, s.state, s.tuning)

	if s.store != nil {
		record := storage.SessionRecord{
			ID:        s.id,
			Energy:    s.state.Energy(),
			CreatedAt: s.createdAt,
			UpdatedAt: s.createdAt,
		}
		if err := s.store.CreateSession(ctx, record); err != nil {
			return nil, fmt.Errorf("register session: %w", err)
		}
	}
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// CreatedAt returns the session creation time.
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// AddPart validates and adds a part to the graph, assigning an ID when
// the part has none.
func (s *Session) AddPart(ctx context.Context, p part.Part) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta := p.Meta()
	if meta.ID == "" {
		partID, err := s.idGenerator()
		if err != nil {
			return "", fmt.Errorf("generate part id: %w", err)
		}
		meta.ID = partID
	}
	if err := s.graph.AddPart(p); err != nil {
		return "", err
	}
	s.state.Append("graph", fmt.Sprintf("Part added: %s (%s)", meta.Narrative, p.Kind()), meta.ID)
	return meta.ID, s.flush(ctx)
}

// RemovePart removes a part and its edges, conflicts, blends, and
// somatic markers.
func (s *Session) RemovePart(ctx context.Context, partID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.graph.Exists(partID) {
		return fmt.Errorf("part %s: %w", partID, graph.ErrNotFound)
	}
	s.graph.RemovePart(partID)
	s.state.RemoveBlend(partID)
	s.bodyMap.RemovePart(partID)
	s.state.Append("graph", "Part removed", partID)
	return s.flush(ctx)
}

// GetPart returns a part by ID.
func (s *Session) GetPart(partID string) (part.Part, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.Get(partID)
}

// Parts returns all parts in the graph.
func (s *Session) Parts() []part.Part {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.Parts()
}

// PartsMap exports the visualization of the system: nodes, protection
// edges, and polarization edges with tension.
func (s *Session) PartsMap() graph.PartsMap {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.ExportMap()
}

// AddRelationship adds a typed edge between two existing parts.
func (s *Session) AddRelationship(ctx context.Context, fromID, toID string, edgeType graph.EdgeType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.graph.AddEdge(graph.Edge{SourceID: fromID, TargetID: toID, Type: edgeType}); err != nil {
		return err
	}
	s.state.Append("graph", fmt.Sprintf("Relationship added: %s -> %s (%s)", fromID, toID, edgeType), "")
	return s.flush(ctx)
}

// AddConflict records a polarization between two parts. Tension is
// derived from the lower of the two trust levels.
func (s *Session) AddConflict(ctx context.Context, partAID, partBID string) (graph.Conflict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.graph.Get(partAID)
	if err != nil {
		return graph.Conflict{}, err
	}
	b, err := s.graph.Get(partBID)
	if err != nil {
		return graph.Conflict{}, err
	}
	conflict := graph.Conflict{
		PartAID: partAID,
		PartBID: partBID,
		Tension: dynamics.Tension(a.Meta().TrustLevel, b.Meta().TrustLevel),
	}
	if err := s.graph.AddConflict(conflict); err != nil {
		return graph.Conflict{}, err
	}
	s.state.Append("graph", fmt.Sprintf("Polarization recorded (tension %.2f)", conflict.Tension), "")
	return conflict, s.flush(ctx)
}

// DetectConflicts scans for protector pairs in structural opposition.
// Detected conflicts are advisory and are not added to the graph.
func (s *Session) DetectConflicts() []graph.Conflict {
	s.mu.Lock()
	defer s.mu.Unlock()
	return dynamics.DetectConflicts(s.graph, s.tuning.LowTrustThreshold)
}

// Blend blends a part into self at the given fraction, optionally
// overriding individual quality occlusions.
func (s *Session) Blend(ctx context.Context, partID string, fraction float64, overrides map[selfstate.Quality]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.graph.Get(partID); err != nil {
		return err
	}
	if fraction < 0 || fraction > 1 {
		return fmt.Errorf("fraction %.2f: %w", fraction, ErrInvalidFraction)
	}
	for quality, value := range overrides {
		if value < 0 || value > 1 {
			return fmt.Errorf("override %s=%.2f: %w", quality, value, ErrInvalidFraction)
		}
	}
	s.state.AddBlend(selfstate.Blend{PartID: partID, Fraction: fraction, Overrides: overrides})
	return s.flush(ctx)
}

// Unblend releases a blended part, restoring the occluded qualities.
func (s *Session) Unblend(ctx context.Context, partID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.graph.Get(partID); err != nil {
		return err
	}
	s.state.RemoveBlend(partID)
	return s.flush(ctx)
}

// Energy returns the composite self energy.
func (s *Session) Energy() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Energy()
}

// Vector returns the per-quality self energy values.
func (s *Session) Vector() selfstate.Vector {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Vector()
}

// IsSelfLed reports whether self energy clears the compassion threshold.
func (s *Session) IsSelfLed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return dynamics.IsSelfLed(s.state, s.tuning)
}

// PreservationRatio returns the balance of power between self and the
// activated exiles.
func (s *Session) PreservationRatio() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return dynamics.PreservationRatio(s.state, s.graph)
}

// ActiveBlends returns the current blends.
func (s *Session) ActiveBlends() []selfstate.Blend {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.ActiveBlends()
}

// Log returns the in-memory session event log.
func (s *Session) Log() []selfstate.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Log()
}

// Find starts the engagement workflow from a trailhead.
func (s *Session) Find(ctx context.Context, t workflow.Trailhead) (workflow.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == "" {
		trailheadID, err := s.idGenerator()
		if err != nil {
			return workflow.Result{}, fmt.Errorf("generate trailhead id: %w", err)
		}
		t.ID = trailheadID
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = s.clock().UTC()
	}
	result := s.engagement.Find(t)
	return result, s.flush(ctx)
}

// Focus directs attention to a part.
func (s *Session) Focus(ctx context.Context, partID string) (workflow.Result, error) {
	return s.step(ctx, func() (workflow.Result, error) { return s.engagement.Focus(partID) })
}

// FleshOut gathers the focused part's age and intent.
func (s *Session) FleshOut(ctx context.Context, partID string) (workflow.Result, error) {
	return s.step(ctx, func() (workflow.Result, error) { return s.engagement.FleshOut(partID) })
}

// FeelToward applies the compassion gate before befriending.
func (s *Session) FeelToward(ctx context.Context, partID string) (workflow.Result, error) {
	return s.step(ctx, func() (workflow.Result, error) { return s.engagement.FeelToward(partID) })
}

// Befriend raises the part's trust.
func (s *Session) Befriend(ctx context.Context, partID string) (workflow.Result, error) {
	return s.step(ctx, func() (workflow.Result, error) { return s.engagement.Befriend(partID) })
}

// Fear closes the engagement by surfacing what the part protects.
func (s *Session) Fear(ctx context.Context, partID string) (workflow.Result, error) {
	return s.step(ctx, func() (workflow.Result, error) { return s.engagement.Fear(partID) })
}

// EngagementStep returns the workflow's last completed step.
func (s *Session) EngagementStep() workflow.Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engagement.CurrentStep()
}

// Witness opens the unburdening pipeline for an exile.
func (s *Session) Witness(ctx context.Context, exileID string) (unburdening.Result, error) {
	return s.pipelineStep(ctx, func() (unburdening.Result, error) { return s.pipeline.Witness(exileID) })
}

// Retrieve brings the witnessed exile into present safety.
func (s *Session) Retrieve(ctx context.Context, exileID string) (unburdening.Result, error) {
	return s.pipelineStep(ctx, func() (unburdening.Result, error) { return s.pipeline.Retrieve(exileID) })
}

// Reparent has self give the exile what it needed.
func (s *Session) Reparent(ctx context.Context, exileID, needed string) (unburdening.Result, error) {
	return s.pipelineStep(ctx, func() (unburdening.Result, error) { return s.pipeline.Reparent(exileID, needed) })
}

// Purge releases the exile's burden through an element.
func (s *Session) Purge(ctx context.Context, exileID string, element unburdening.Element) (unburdening.Result, error) {
	return s.pipelineStep(ctx, func() (unburdening.Result, error) { return s.pipeline.Purge(exileID, element) })
}

// Invite completes the unburdening with new qualities.
func (s *Session) Invite(ctx context.Context, exileID string, qualities []string) (unburdening.Result, error) {
	return s.pipelineStep(ctx, func() (unburdening.Result, error) { return s.pipeline.Invite(exileID, qualities) })
}

// UnburdeningStep returns the pipeline's last completed step.
func (s *Session) UnburdeningStep() unburdening.Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pipeline.CurrentStep()
}

// SpeakAs generates a part's response to a facilitator message.
func (s *Session) SpeakAs(ctx context.Context, partID, message string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	response, err := s.dialogue.SpeakAs(ctx, partID, message, string(s.engagement.CurrentStep()))
	if err != nil {
		return "", err
	}
	return response, s.flush(ctx)
}

// DirectAccess generates a part's response to the therapist speaking
// directly, bypassing self and the gate.
func (s *Session) DirectAccess(ctx context.Context, partID, message string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	response, err := s.dialogue.DirectAccess(ctx, partID, message)
	if err != nil {
		return "", err
	}
	return response, s.flush(ctx)
}

// DialogueHistory returns the conversation record for a part.
func (s *Session) DialogueHistory(partID string) []dialogue.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dialogue.History(partID)
}

// AddMarker records a somatic marker for an existing part.
func (s *Session) AddMarker(ctx context.Context, marker somatic.Marker) (somatic.Marker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.graph.Get(marker.PartID); err != nil {
		return somatic.Marker{}, err
	}
	if marker.ID == "" {
		markerID, err := s.idGenerator()
		if err != nil {
			return somatic.Marker{}, fmt.Errorf("generate marker id: %w", err)
		}
		marker.ID = markerID
	}
	s.bodyMap.Add(marker)
	s.state.Append("somatic", fmt.Sprintf("Sensation noted: %s in %s", marker.Quality, marker.Location.Region), marker.PartID)
	return marker, s.flush(ctx)
}

// BodyMarkers returns all somatic markers.
func (s *Session) BodyMarkers() []somatic.Marker {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bodyMap.Markers()
}

// MarkersByPart returns the somatic footprint of one part.
func (s *Session) MarkersByPart(partID string) []somatic.Marker {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bodyMap.ByPart(partID)
}

// Trailheads returns all recorded trailheads.
func (s *Session) Trailheads() []workflow.Trailhead {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trailheads.Entries()
}

// RecordFocusShift marks the U-turn from an external subject to the
// part now holding attention.
func (s *Session) RecordFocusShift(ctx context.Context, shift workflow.FocusShift) (workflow.FocusShift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if shift.Timestamp.IsZero() {
		shift.Timestamp = s.clock().UTC()
	}
	s.trailheads.AddShift(shift)
	s.state.Append("engagement", fmt.Sprintf("U-turn: attention shifted from %q to %q", shift.FromSubject, shift.ToSubject), "")
	return shift, s.flush(ctx)
}

// FocusShifts returns all recorded focus shifts.
func (s *Session) FocusShifts() []workflow.FocusShift {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trailheads.Shifts()
}

// step runs an engagement call under the lock and mirrors its events.
func (s *Session) step(ctx context.Context, call func() (workflow.Result, error)) (workflow.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := call()
	if err != nil {
		return workflow.Result{}, err
	}
	return result, s.flush(ctx)
}

// pipelineStep runs an unburdening call under the lock and mirrors its
// events.
func (s *Session) pipelineStep(ctx context.Context, call func() (unburdening.Result, error)) (unburdening.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := call()
	if err != nil {
		return unburdening.Result{}, err
	}
	return result, s.flush(ctx)
}

// flush mirrors new in-memory log events to the durable journal and
// refreshes the registry snapshot. A nil store makes it a no-op.
// Callers must hold the session lock.
func (s *Session) flush(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	log := s.state.Log()
	for _, event := range log[s.persisted:] {
		record := storage.EventRecord{
			SessionID:   s.id,
			Timestamp:   event.Timestamp,
			Kind:        event.Kind,
			Description: event.Description,
			PartID:      event.PartID,
		}
		if err := s.store.AppendEvent(ctx, record); err != nil {
			return fmt.Errorf("journal event: %w", err)
		}
		s.persisted++
	}
	record := storage.SessionRecord{
		ID:        s.id,
		Energy:    s.state.Energy(),
		PartCount: len(s.graph.Parts()),
		CreatedAt: s.createdAt,
		UpdatedAt: s.clock().UTC(),
	}
	if err := s.store.UpdateSession(ctx, record); err != nil {
		return fmt.Errorf("update session record: %w", err)
	}
	return nil
}
