package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/partswork/engine/internal/dialogue"
	"github.com/partswork/engine/internal/graph"
	"github.com/partswork/engine/internal/part"
	"github.com/partswork/engine/internal/selfstate"
	"github.com/partswork/engine/internal/somatic"
	"github.com/partswork/engine/internal/storage"
	"github.com/partswork/engine/internal/storage/memory"
	"github.com/partswork/engine/internal/unburdening"
	"github.com/partswork/engine/internal/workflow"
)

func fixedClock() time.Time {
	return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
}

func sequentialIDs() func() (string, error) {
	n := 0
	return func() (string, error) {
		n++
		return fmt.Sprintf("id-%02d", n), nil
	}
}

func newSession(t *testing.T, opts ...Option) *Session {
	t.Helper()
	base := []Option{WithClock(fixedClock), WithIDGenerator(sequentialIDs())}
	s, err := New(context.Background(), append(base, opts...)...)
	if err != nil {
		t.Fatalf("New(): %v", err)
	}
	return s
}

func TestNewDefaults(t *testing.T) {
	s := newSession(t)
	if s.ID() == "" {
		t.Fatal("empty session id")
	}
	if !s.CreatedAt().Equal(fixedClock()) {
		t.Fatalf("CreatedAt() = %v", s.CreatedAt())
	}
	if got := s.Energy(); got != 1.0 {
		t.Fatalf("Energy() = %v, want 1.0", got)
	}
	if !s.IsSelfLed() {
		t.Fatal("fresh session should be self led")
	}
}

func TestAddPartAssignsID(t *testing.T) {
	s := newSession(t)

	partID, err := s.AddPart(context.Background(), part.NewManager("", "the critic", 9, "prevent humiliation"))
	if err != nil {
		t.Fatalf("AddPart(): %v", err)
	}
	if partID == "" {
		t.Fatal("empty part id")
	}
	if _, err := s.GetPart(partID); err != nil {
		t.Fatalf("GetPart(): %v", err)
	}
	if got := len(s.Parts()); got != 1 {
		t.Fatalf("Parts() = %d, want 1", got)
	}
}

func TestRemovePartCascades(t *testing.T) {
	ctx := context.Background()
	s := newSession(t)

	if _, err := s.AddPart(ctx, part.NewManager("mgr", "the critic", 9, "prevent humiliation")); err != nil {
		t.Fatalf("AddPart(): %v", err)
	}
	if err := s.Blend(ctx, "mgr", 0.6, nil); err != nil {
		t.Fatalf("Blend(): %v", err)
	}
	if _, err := s.AddMarker(ctx, somatic.Marker{PartID: "mgr", Location: somatic.Location{Region: somatic.RegionChest}, Quality: "tightness", Intensity: 0.7}); err != nil {
		t.Fatalf("AddMarker(): %v", err)
	}

	if err := s.RemovePart(ctx, "mgr"); err != nil {
		t.Fatalf("RemovePart(): %v", err)
	}
	if got := s.Energy(); got != 1.0 {
		t.Fatalf("Energy() = %v after removal, want 1.0", got)
	}
	if got := len(s.BodyMarkers()); got != 0 {
		t.Fatalf("BodyMarkers() = %d after removal", got)
	}
	if err := s.RemovePart(ctx, "mgr"); !errors.Is(err, graph.ErrNotFound) {
		t.Fatalf("RemovePart(absent) = %v, want ErrNotFound", err)
	}
}

func TestBlendValidation(t *testing.T) {
	ctx := context.Background()
	s := newSession(t)
	if _, err := s.AddPart(ctx, part.NewManager("mgr", "the critic", 9, "prevent humiliation")); err != nil {
		t.Fatalf("AddPart(): %v", err)
	}

	if err := s.Blend(ctx, "ghost", 0.5, nil); !errors.Is(err, graph.ErrNotFound) {
		t.Fatalf("Blend(ghost) = %v, want ErrNotFound", err)
	}
	if err := s.Blend(ctx, "mgr", 1.2, nil); !errors.Is(err, ErrInvalidFraction) {
		t.Fatalf("Blend(1.2) = %v, want ErrInvalidFraction", err)
	}
	overrides := map[selfstate.Quality]float64{selfstate.Clarity: -0.1}
	if err := s.Blend(ctx, "mgr", 0.5, overrides); !errors.Is(err, ErrInvalidFraction) {
		t.Fatalf("Blend(bad override) = %v, want ErrInvalidFraction", err)
	}

	if err := s.Blend(ctx, "mgr", 0.6, nil); err != nil {
		t.Fatalf("Blend(): %v", err)
	}
	if got := s.Energy(); math.Abs(got-0.4) > 1e-9 {
		t.Fatalf("Energy() = %v, want 0.4", got)
	}
	if s.IsSelfLed() {
		t.Fatal("blended session should not be self led")
	}
	if err := s.Unblend(ctx, "mgr"); err != nil {
		t.Fatalf("Unblend(): %v", err)
	}
	if got := s.Energy(); got != 1.0 {
		t.Fatalf("Energy() = %v after unblend, want 1.0", got)
	}
}

func TestEngagementThroughFacade(t *testing.T) {
	ctx := context.Background()
	s := newSession(t)
	if _, err := s.AddPart(ctx, part.NewManager("mgr", "the critic", 9, "prevent humiliation")); err != nil {
		t.Fatalf("AddPart(): %v", err)
	}

	result, err := s.Find(ctx, workflow.Trailhead{Modality: workflow.ModalitySomatic, Intensity: 0.6, Description: "chest tightness", PartID: "mgr"})
	if err != nil {
		t.Fatalf("Find(): %v", err)
	}
	if result.NextStep != workflow.StepFocus {
		t.Fatalf("Find() next = %q", result.NextStep)
	}
	if got := len(s.Trailheads()); got != 1 {
		t.Fatalf("Trailheads() = %d, want 1", got)
	}
	if s.Trailheads()[0].ID == "" {
		t.Fatal("trailhead id not assigned")
	}

	steps := []func() (workflow.Result, error){
		func() (workflow.Result, error) { return s.Focus(ctx, "mgr") },
		func() (workflow.Result, error) { return s.FleshOut(ctx, "mgr") },
		func() (workflow.Result, error) { return s.FeelToward(ctx, "mgr") },
		func() (workflow.Result, error) { return s.Befriend(ctx, "mgr") },
		func() (workflow.Result, error) { return s.Fear(ctx, "mgr") },
	}
	for i, step := range steps {
		if _, err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	if got := s.EngagementStep(); got != workflow.StepFear {
		t.Fatalf("EngagementStep() = %q, want fear", got)
	}

	p, _ := s.GetPart("mgr")
	if got := p.Meta().TrustLevel; got != 0.6 {
		t.Fatalf("trust = %v after befriend, want 0.6", got)
	}
}

func TestRecordFocusShift(t *testing.T) {
	ctx := context.Background()
	s := newSession(t)

	if _, err := s.Find(ctx, workflow.Trailhead{Modality: workflow.ModalitySomatic, Intensity: 0.6, Description: "chest tightness"}); err != nil {
		t.Fatalf("Find(): %v", err)
	}

	trailheadID := s.Trailheads()[0].ID
	shift, err := s.RecordFocusShift(ctx, workflow.FocusShift{
		FromSubject: "the upcoming meeting",
		ToSubject:   "the part bracing for it",
		TrailheadID: trailheadID,
	})
	if err != nil {
		t.Fatalf("RecordFocusShift(): %v", err)
	}
	if !shift.Timestamp.Equal(fixedClock()) {
		t.Fatalf("shift timestamp = %v, want clock stamp", shift.Timestamp)
	}

	shifts := s.FocusShifts()
	if len(shifts) != 1 {
		t.Fatalf("FocusShifts() = %d, want 1", len(shifts))
	}
	if shifts[0].TrailheadID != trailheadID {
		t.Fatalf("shift trailhead = %q, want %q", shifts[0].TrailheadID, trailheadID)
	}

	log := s.Log()
	last := log[len(log)-1]
	if last.Kind != "engagement" || !strings.Contains(last.Description, "U-turn") {
		t.Fatalf("last event = %+v, want a U-turn engagement entry", last)
	}
}

func TestUnburdeningThroughFacade(t *testing.T) {
	ctx := context.Background()
	s := newSession(t)
	exile := part.NewExile("ex", "the lonely child", 7, "hold the memory")
	exile.Burden = &part.Burden{Content: "I am unwantable", StoredCharge: 0.8}
	if _, err := s.AddPart(ctx, exile); err != nil {
		t.Fatalf("AddPart(): %v", err)
	}

	if _, err := s.Witness(ctx, "ex"); err != nil {
		t.Fatalf("Witness(): %v", err)
	}
	if _, err := s.Retrieve(ctx, "ex"); err != nil {
		t.Fatalf("Retrieve(): %v", err)
	}
	if _, err := s.Reparent(ctx, "ex", "to be held"); err != nil {
		t.Fatalf("Reparent(): %v", err)
	}
	if _, err := s.Purge(ctx, "ex", unburdening.ElementWater); err != nil {
		t.Fatalf("Purge(): %v", err)
	}
	result, err := s.Invite(ctx, "ex", []string{"playfulness"})
	if err != nil {
		t.Fatalf("Invite(): %v", err)
	}
	if result.NextStep != "" {
		t.Fatalf("Invite() next = %q, want terminal", result.NextStep)
	}
	if got := s.UnburdeningStep(); got != unburdening.StepInvite {
		t.Fatalf("UnburdeningStep() = %q, want invite", got)
	}
	if _, err := s.Retrieve(ctx, "ex"); !errors.Is(err, unburdening.ErrOutOfSequence) {
		t.Fatalf("Retrieve(after invite) = %v, want ErrOutOfSequence", err)
	}
}

func TestDialogueThroughFacade(t *testing.T) {
	ctx := context.Background()
	s := newSession(t)
	mgr := part.NewManager("mgr", "the critic", 9, "prevent humiliation")
	if _, err := s.AddPart(ctx, mgr); err != nil {
		t.Fatalf("AddPart(): %v", err)
	}

	response, err := s.SpeakAs(ctx, "mgr", "What do you do for the system?")
	if err != nil {
		t.Fatalf("SpeakAs(): %v", err)
	}
	if response == "" {
		t.Fatal("empty response")
	}
	if got := len(s.DialogueHistory("mgr")); got != 2 {
		t.Fatalf("DialogueHistory() = %d, want 2", got)
	}

	if err := s.Blend(ctx, "mgr", 0.9, nil); err != nil {
		t.Fatalf("Blend(): %v", err)
	}
	if _, err := s.SpeakAs(ctx, "mgr", "hello"); !errors.Is(err, dialogue.ErrLowEnergy) {
		t.Fatalf("SpeakAs(blended) = %v, want ErrLowEnergy", err)
	}
	if _, err := s.DirectAccess(ctx, "mgr", "I am speaking just to you."); err != nil {
		t.Fatalf("DirectAccess(): %v", err)
	}
}

func TestJournalMirroredToStore(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	s := newSession(t, WithStore(store))

	record, err := store.GetSession(ctx, s.ID())
	if err != nil {
		t.Fatalf("GetSession(): %v", err)
	}
	if record.Energy != 1.0 {
		t.Fatalf("registered energy = %v", record.Energy)
	}

	if _, err := s.AddPart(ctx, part.NewManager("mgr", "the critic", 9, "prevent humiliation")); err != nil {
		t.Fatalf("AddPart(): %v", err)
	}
	if err := s.Blend(ctx, "mgr", 0.6, nil); err != nil {
		t.Fatalf("Blend(): %v", err)
	}

	events, err := store.ListEvents(ctx, s.ID())
	if err != nil {
		t.Fatalf("ListEvents(): %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("ListEvents() = %d, want 2", len(events))
	}
	if events[0].Kind != "graph" || events[1].Kind != "blend" {
		t.Fatalf("event kinds = %s,%s", events[0].Kind, events[1].Kind)
	}
	if !strings.Contains(events[1].Description, "60%") {
		t.Fatalf("blend event = %q", events[1].Description)
	}

	record, _ = store.GetSession(ctx, s.ID())
	if math.Abs(record.Energy-0.4) > 1e-9 || record.PartCount != 1 {
		t.Fatalf("snapshot = %+v", record)
	}
}

func TestManagerLifecycle(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	m := NewManager(store, WithClock(fixedClock))

	s1, err := m.Create(ctx, WithID("alpha"))
	if err != nil {
		t.Fatalf("Create(): %v", err)
	}
	if _, err := m.Create(ctx, WithID("beta")); err != nil {
		t.Fatalf("Create(): %v", err)
	}

	got, err := m.Get("alpha")
	if err != nil {
		t.Fatalf("Get(): %v", err)
	}
	if got != s1 {
		t.Fatal("Get() returned a different session")
	}
	if _, err := m.Get("ghost"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Get(ghost) = %v, want ErrSessionNotFound", err)
	}

	sessions := m.List()
	if len(sessions) != 2 {
		t.Fatalf("List() = %d, want 2", len(sessions))
	}
	if sessions[0].ID() != "alpha" || sessions[1].ID() != "beta" {
		t.Fatalf("order = %s,%s", sessions[0].ID(), sessions[1].ID())
	}

	if err := m.Delete(ctx, "alpha"); err != nil {
		t.Fatalf("Delete(): %v", err)
	}
	if _, err := store.GetSession(ctx, "alpha"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("store record survived delete: %v", err)
	}
	if err := m.Delete(ctx, "alpha"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Delete(absent) = %v, want ErrSessionNotFound", err)
	}
}

func TestConflictsThroughFacade(t *testing.T) {
	ctx := context.Background()
	s := newSession(t)

	mgr := part.NewManager("mgr", "the critic", 9, "prevent humiliation")
	mgr.TrustLevel = 0.2
	ff := part.NewFirefighter("ff", "the numbing one", 14, "stop the pain")
	ff.TrustLevel = 0.3
	for _, p := range []part.Part{mgr, ff, part.NewExile("ex", "the lonely child", 7, "hold the memory")} {
		if _, err := s.AddPart(ctx, p); err != nil {
			t.Fatalf("AddPart(): %v", err)
		}
	}
	for _, src := range []string{"mgr", "ff"} {
		if err := s.AddRelationship(ctx, src, "ex", graph.EdgeProtects); err != nil {
			t.Fatalf("AddRelationship(%s): %v", src, err)
		}
	}

	detected := s.DetectConflicts()
	if len(detected) != 1 {
		t.Fatalf("DetectConflicts() = %d, want 1", len(detected))
	}

	conflict, err := s.AddConflict(ctx, "mgr", "ff")
	if err != nil {
		t.Fatalf("AddConflict(): %v", err)
	}
	if conflict.Tension != 0.8 {
		t.Fatalf("Tension = %v, want 0.8", conflict.Tension)
	}

	partsMap := s.PartsMap()
	if len(partsMap.Nodes) != 3 {
		t.Fatalf("map nodes = %d, want 3", len(partsMap.Nodes))
	}
}
