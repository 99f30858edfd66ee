package dynamics

import (
	"math"
	"testing"

	"github.com/partswork/engine/internal/graph"
	"github.com/partswork/engine/internal/part"
	"github.com/partswork/engine/internal/selfstate"
)

func TestIsSelfLedBoundary(t *testing.T) {
	tuning := DefaultTuning()
	tests := []struct {
		energy float64
		want   bool
	}{
		{0.51, true},
		{0.5, false}, // exactly at the threshold is not self-led
		{0.49, false},
		{1.0, true},
	}
	for _, tc := range tests {
		state := selfstate.New(tc.energy)
		if got := IsSelfLed(state, tuning); got != tc.want {
			t.Fatalf("IsSelfLed(energy=%v) = %v, want %v", tc.energy, got, tc.want)
		}
	}
}

func TestPreservationRatio(t *testing.T) {
	state := selfstate.New(1.0)

	g := graph.New()
	if got := PreservationRatio(state, g); got != 1.0 {
		t.Fatalf("PreservationRatio(no exiles) = %v, want 1.0", got)
	}

	e1 := part.NewExile("e1", "x", 7, "y")
	e1.Activation = 0.8
	e2 := part.NewExile("e2", "x", 5, "y")
	e2.Activation = 0.7
	for _, e := range []*part.Exile{e1, e2} {
		if err := g.AddPart(e); err != nil {
			t.Fatalf("AddPart(): %v", err)
		}
	}

	want := 1.0 / 1.5
	if got := PreservationRatio(state, g); math.Abs(got-want) > 1e-9 {
		t.Fatalf("PreservationRatio() = %v, want %v", got, want)
	}

	// Low activation must not push the ratio above 1.
	e1.Activation = 0.1
	e2.Activation = 0.1
	if got := PreservationRatio(state, g); got != 1.0 {
		t.Fatalf("PreservationRatio(capped) = %v, want 1.0", got)
	}

	e1.Activation = 0
	e2.Activation = 0
	if got := PreservationRatio(state, g); got != 1.0 {
		t.Fatalf("PreservationRatio(zero activation) = %v, want 1.0", got)
	}
}

func TestTensionRounding(t *testing.T) {
	if got := Tension(0.333, 0.9); got != 0.67 {
		t.Fatalf("Tension() = %v, want 0.67", got)
	}
	if got := Tension(1.0, 1.0); got != 0.0 {
		t.Fatalf("Tension(full trust) = %v, want 0", got)
	}
}

func conflictGraph(t *testing.T, mgrTrust, ffTrust float64) *graph.Graph {
	t.Helper()
	g := graph.New()
	mgr := part.NewManager("mgr", "the critic", 9, "contain")
	mgr.TrustLevel = mgrTrust
	ff := part.NewFirefighter("ff", "the numbing part", 14, "extinguish")
	ff.TrustLevel = ffTrust
	ex := part.NewExile("ex", "the lonely child", 7, "hold")
	for _, p := range []part.Part{mgr, ff, ex} {
		if err := g.AddPart(p); err != nil {
			t.Fatalf("AddPart(): %v", err)
		}
	}
	for _, src := range []string{"mgr", "ff"} {
		if err := g.AddEdge(graph.Edge{SourceID: src, TargetID: "ex", Type: graph.EdgeProtects}); err != nil {
			t.Fatalf("AddEdge(): %v", err)
		}
	}
	return g
}

func TestDetectConflicts(t *testing.T) {
	g := conflictGraph(t, 0.2, 0.3)

	conflicts := DetectConflicts(g, 0.4)
	if len(conflicts) != 1 {
		t.Fatalf("DetectConflicts() = %d, want 1", len(conflicts))
	}
	c := conflicts[0]
	if c.PartAID != "mgr" || c.PartBID != "ff" {
		t.Fatalf("conflict pair = %s/%s", c.PartAID, c.PartBID)
	}
	if c.Tension != 0.8 {
		t.Fatalf("tension = %v, want 0.8", c.Tension)
	}

	// Detection must not mutate the graph.
	if got := len(g.ConflictPairs()); got != 0 {
		t.Fatalf("ConflictPairs() = %d, want 0", got)
	}
}

func TestDetectConflictsSkipsTrustedPairs(t *testing.T) {
	g := conflictGraph(t, 0.2, 0.9)
	if got := DetectConflicts(g, 0.4); len(got) != 0 {
		t.Fatalf("DetectConflicts() = %d, want 0", len(got))
	}
}

func TestDetectConflictsSkipsDeclaredEitherOrdering(t *testing.T) {
	g := conflictGraph(t, 0.2, 0.3)
	if err := g.AddConflict(graph.Conflict{PartAID: "ff", PartBID: "mgr", Tension: 0.5}); err != nil {
		t.Fatalf("AddConflict(): %v", err)
	}
	if got := DetectConflicts(g, 0.4); len(got) != 0 {
		t.Fatalf("DetectConflicts() = %d, want 0 with reversed declaration", len(got))
	}
}

func TestDetectConflictsRequiresSharedExile(t *testing.T) {
	g := graph.New()
	mgr := part.NewManager("mgr", "x", 9, "y")
	mgr.TrustLevel = 0.1
	ff := part.NewFirefighter("ff", "x", 14, "y")
	ff.TrustLevel = 0.1
	for _, p := range []part.Part{mgr, ff} {
		if err := g.AddPart(p); err != nil {
			t.Fatalf("AddPart(): %v", err)
		}
	}
	if got := DetectConflicts(g, 0.4); len(got) != 0 {
		t.Fatalf("DetectConflicts() = %d, want 0 without shared exile", len(got))
	}
}
