// Package workflow implements the six-step protector engagement
// protocol: find, focus, flesh out, feel toward, befriend, fear.
//
// Steps run in strict linear order. The feel-toward step is the critical
// gate: when composite energy is at or below the compassion threshold,
// another part has blended and must be released before engagement can
// continue. A blocked gate is a normal result, not an error, and never
// advances the machine.
package workflow

import (
	"fmt"
	"math"

	"github.com/partswork/engine/internal/dynamics"
	"github.com/partswork/engine/internal/facilitator"
	"github.com/partswork/engine/internal/graph"
	"github.com/partswork/engine/internal/selfstate"
)

// Step names one of the six engagement steps.
type Step string

const (
	StepFind       Step = "find"
	StepFocus      Step = "focus"
	StepFleshOut   Step = "flesh_out"
	StepFeelToward Step = "feel_toward"
	StepBefriend   Step = "befriend"
	StepFear       Step = "fear"
)

// eventKind tags engagement events in the session log.
const eventKind = "engagement"

// Result reports the outcome of one step call. NextStep is empty when
// the step is terminal or blocked; UnblendRequired names the part to
// release before retrying a blocked step.
type Result struct {
	Step            Step   `json:"step"`
	TargetID        string `json:"target_part_id,omitempty"`
	NextStep        Step   `json:"next_step,omitempty"`
	UnblendRequired string `json:"unblend_required,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

// Engine is the six-step engagement state machine. It reads the graph,
// consults the self state for the gate, and mutates only fields on the
// parts it is handed.
type Engine struct {
	graph      *graph.Graph
	state      *selfstate.State
	trailheads *TrailheadLog
	tuning     dynamics.Tuning
	modifiers  *facilitator.Modifiers

	currentStep Step
	targetID    string
}

// New returns an engagement engine over the given graph and self state.
// Modifiers are optional; nil applies the tuning values unchanged.
func New(g *graph.Graph, state *selfstate.State, trailheads *TrailheadLog, tuning dynamics.Tuning, modifiers *facilitator.Modifiers) *Engine {
	return &Engine{
		graph:      g,
		state:      state,
		trailheads: trailheads,
		tuning:     tuning,
		modifiers:  modifiers,
	}
}

// CurrentStep returns the step most recently completed, or empty.
func (e *Engine) CurrentStep() Step {
	return e.currentStep
}

// TargetID returns the part currently being engaged, or empty.
func (e *Engine) TargetID() string {
	return e.targetID
}

// Find records the trailhead and starts the engagement. The target is
// the trailhead's pre-associated part, which may be empty; resolving
// the part is the caller's job.
func (e *Engine) Find(t Trailhead) Result {
	e.currentStep = StepFind
	e.trailheads.Add(t)
	e.state.Append(eventKind, fmt.Sprintf("FIND: trailhead %q observed", t.Description), t.PartID)
	return Result{
		Step:     StepFind,
		TargetID: t.PartID,
		NextStep: StepFocus,
		Notes:    fmt.Sprintf("Trailhead: %s (%s)", t.Description, t.Modality),
	}
}

// Focus directs attention to the part, selecting it as the engagement
// target.
func (e *Engine) Focus(partID string) (Result, error) {
	if _, err := e.graph.Get(partID); err != nil {
		return Result{}, err
	}
	e.currentStep = StepFocus
	e.targetID = partID
	e.state.Append(eventKind, "FOCUS: attention directed to part", partID)
	return Result{
		Step:     StepFocus,
		TargetID: partID,
		NextStep: StepFleshOut,
	}, nil
}

// FleshOut gathers the part's metadata: formation age and intent.
func (e *Engine) FleshOut(partID string) (Result, error) {
	p, err := e.graph.Get(partID)
	if err != nil {
		return Result{}, err
	}
	e.currentStep = StepFleshOut
	meta := p.Meta()
	e.state.Append(eventKind, fmt.Sprintf("FLESH_OUT: part aged %d, intent %q", meta.Age, meta.Intent), partID)
	return Result{
		Step:     StepFleshOut,
		TargetID: partID,
		NextStep: StepFeelToward,
		Notes:    fmt.Sprintf("Age: %d, Intent: %s", meta.Age, meta.Intent),
	}, nil
}

// FeelToward is the critical gate. With energy above the threshold the
// engagement proceeds to befriending. Otherwise the result is blocked
// and names the most blended part; the machine does not advance, and
// retrying the same call after unblending succeeds.
func (e *Engine) FeelToward(partID string) (Result, error) {
	if _, err := e.graph.Get(partID); err != nil {
		return Result{}, err
	}

	energy, threshold := e.effectiveGate()
	if energy <= threshold {
		interfering := e.state.MostBlended()
		e.state.Append(eventKind,
			fmt.Sprintf("FEEL_TOWARD: energy insufficient (%.2f <= %.2f), unblend required", energy, threshold),
			interfering)
		return Result{
			Step:            StepFeelToward,
			TargetID:        partID,
			UnblendRequired: interfering,
			Notes:           "Energy insufficient: another part is blended",
		}, nil
	}

	e.currentStep = StepFeelToward
	e.state.Append(eventKind,
		fmt.Sprintf("FEEL_TOWARD: energy sufficient (%.2f > %.2f)", energy, threshold),
		partID)
	return Result{
		Step:     StepFeelToward,
		TargetID: partID,
		NextStep: StepBefriend,
		Notes:    "Energy sufficient: self is present",
	}, nil
}

// Befriend raises the part's trust by the configured increment, capped
// at 1.
func (e *Engine) Befriend(partID string) (Result, error) {
	p, err := e.graph.Get(partID)
	if err != nil {
		return Result{}, err
	}
	e.currentStep = StepBefriend

	increment := e.tuning.TrustIncrement
	if e.modifiers != nil {
		increment = e.modifiers.TrustIncrement(increment)
	}
	meta := p.Meta()
	meta.TrustLevel = math.Min(meta.TrustLevel+increment, 1.0)

	e.state.Append(eventKind, fmt.Sprintf("BEFRIEND: trust updated to %.2f", meta.TrustLevel), partID)
	return Result{
		Step:     StepBefriend,
		TargetID: partID,
		NextStep: StepFear,
		Notes:    fmt.Sprintf("Trust updated to %.2f", meta.TrustLevel),
	}, nil
}

// Fear closes the engagement by surfacing what the part guards: the
// count of its outgoing protects edges, as descriptive context.
func (e *Engine) Fear(partID string) (Result, error) {
	p, err := e.graph.Get(partID)
	if err != nil {
		return Result{}, err
	}
	e.currentStep = StepFear

	protected := e.graph.EdgesFrom(partID, graph.EdgeProtects)
	e.state.Append(eventKind, fmt.Sprintf("FEAR: part protects %d other part(s)", len(protected)), partID)
	return Result{
		Step:     StepFear,
		TargetID: partID,
		Notes:    fmt.Sprintf("Protects %d part(s). Part intent: %q", len(protected), p.Meta().Intent),
	}, nil
}

// effectiveGate returns the energy and threshold after applying the
// facilitator modifiers, when configured.
func (e *Engine) effectiveGate() (energy, threshold float64) {
	energy = e.state.Energy()
	threshold = e.tuning.CompassionThreshold
	if e.modifiers != nil {
		energy = e.modifiers.EffectiveEnergy(energy)
		threshold = e.modifiers.EffectiveThreshold(threshold)
	}
	return energy, threshold
}
