// Package unburdening implements the five-step exile healing pipeline:
// witness, retrieve, reparent, purge, invite.
//
// Every step is gated by the compassion threshold, and the pipeline pins
// its target: once an exile has been witnessed, all later steps must name
// the same exile. A blocked gate is a normal result that never advances
// the machine; a target switch or an out-of-order call is a caller error.
//
// Checks run in a fixed order on every step: sequencing, target
// continuity, lookup and variant validation, then the energy gate.
package unburdening

import (
	"errors"
	"fmt"
	"strings"

	"github.com/partswork/engine/internal/dynamics"
	"github.com/partswork/engine/internal/facilitator"
	"github.com/partswork/engine/internal/graph"
	"github.com/partswork/engine/internal/part"
	"github.com/partswork/engine/internal/selfstate"
)

// Step names one of the pipeline stages. StepComplete is terminal.
type Step string

const (
	StepWitness  Step = "witness"
	StepRetrieve Step = "retrieve"
	StepReparent Step = "reparent"
	StepPurge    Step = "purge"
	StepInvite   Step = "invite"
	StepComplete Step = "complete"
)

// Element is the medium through which a burden is released. A label
// only; no element has a differentiated numeric effect.
type Element string

const (
	ElementFire  Element = "fire"
	ElementWater Element = "water"
	ElementWind  Element = "wind"
	ElementEarth Element = "earth"
	ElementLight Element = "light"
)

// ParseElement validates an element label.
func ParseElement(value string) (Element, error) {
	switch e := Element(strings.ToLower(strings.TrimSpace(value))); e {
	case ElementFire, ElementWater, ElementWind, ElementEarth, ElementLight:
		return e, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidElement, value)
	}
}

var (
	// ErrOutOfSequence indicates a step was called out of pipeline order.
	ErrOutOfSequence = errors.New("step out of sequence")
	// ErrTargetMismatch indicates an attempt to switch exiles mid-pipeline.
	ErrTargetMismatch = errors.New("cannot switch target mid-pipeline")
	// ErrNotExile indicates the named part is not an exile.
	ErrNotExile = errors.New("part is not an exile")
	// ErrNoBurden indicates the exile carries no burden to witness.
	ErrNoBurden = errors.New("exile has no burden")
	// ErrInvalidElement indicates an unrecognized purge element.
	ErrInvalidElement = errors.New("invalid element")
)

// eventKind tags unburdening events in the session log.
const eventKind = "unburdening"

// Result reports the outcome of one pipeline step. NextStep is empty
// when the pipeline is complete or the step was blocked by the gate;
// UnblendRequired names the part to release before retrying.
type Result struct {
	Step            Step   `json:"step"`
	TargetID        string `json:"target_part_id,omitempty"`
	NextStep        Step   `json:"next_step,omitempty"`
	UnblendRequired string `json:"unblend_required,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

// Pipeline is the five-step unburdening state machine.
type Pipeline struct {
	graph     *graph.Graph
	state     *selfstate.State
	tuning    dynamics.Tuning
	modifiers *facilitator.Modifiers

	currentStep Step
	targetID    string
}

// New returns an unburdening pipeline over the given graph and self
// state. Modifiers are optional; nil applies the tuning values unchanged.
func New(g *graph.Graph, state *selfstate.State, tuning dynamics.Tuning, modifiers *facilitator.Modifiers) *Pipeline {
	return &Pipeline{
		graph:     g,
		state:     state,
		tuning:    tuning,
		modifiers: modifiers,
	}
}

// CurrentStep returns the stage most recently completed, or empty.
func (p *Pipeline) CurrentStep() Step {
	return p.currentStep
}

// TargetID returns the pinned exile, or empty before witnessing.
func (p *Pipeline) TargetID() string {
	return p.targetID
}

// Witness opens the pipeline: self receives the exile's story. The
// exile must exist and carry a burden. On success the target is pinned
// and the notes carry the burden content.
func (p *Pipeline) Witness(exileID string) (Result, error) {
	if p.currentStep != "" {
		return Result{}, fmt.Errorf("witness after %s: %w", p.currentStep, ErrOutOfSequence)
	}
	exile, err := p.lookupExile(exileID)
	if err != nil {
		return Result{}, err
	}
	if exile.Burden == nil {
		return Result{}, fmt.Errorf("exile %s: %w", exileID, ErrNoBurden)
	}
	if blocked, ok := p.gate(StepWitness, exileID); !ok {
		return blocked, nil
	}

	p.currentStep = StepWitness
	p.targetID = exileID

	content := exile.Burden.Content
	p.state.Append(eventKind, fmt.Sprintf("WITNESS: burden received: %q", content), exileID)
	return Result{
		Step:     StepWitness,
		TargetID: exileID,
		NextStep: StepRetrieve,
		Notes:    fmt.Sprintf("Burden witnessed: %q", content),
	}, nil
}

// Retrieve brings the exile out of the original scene into present
// safety, setting its state to retrieved.
func (p *Pipeline) Retrieve(exileID string) (Result, error) {
	exile, err := p.advanceChecks(StepWitness, exileID)
	if err != nil {
		return Result{}, err
	}
	if blocked, ok := p.gate(StepRetrieve, exileID); !ok {
		return blocked, nil
	}

	exile.State = part.ExileRetrieved
	p.currentStep = StepRetrieve

	p.state.Append(eventKind, "RETRIEVE: exile brought into present safety", exileID)
	return Result{
		Step:     StepRetrieve,
		TargetID: exileID,
		NextStep: StepReparent,
		Notes:    "Exile retrieved from the original scene",
	}, nil
}

// Reparent has self give the exile what it needed at the time of the
// wounding. The needed thing is recorded; no part field changes.
func (p *Pipeline) Reparent(exileID, needed string) (Result, error) {
	if _, err := p.advanceChecks(StepRetrieve, exileID); err != nil {
		return Result{}, err
	}
	if blocked, ok := p.gate(StepReparent, exileID); !ok {
		return blocked, nil
	}

	p.currentStep = StepReparent

	p.state.Append(eventKind, fmt.Sprintf("REPARENT: self provides what was needed: %q", needed), exileID)
	return Result{
		Step:     StepReparent,
		TargetID: exileID,
		NextStep: StepPurge,
		Notes:    fmt.Sprintf("Needed: %s", needed),
	}, nil
}

// Purge releases the burden through the chosen element. The burden is
// cleared and the activation drops to the residual charge; the story
// remains, the overwhelming intensity does not.
func (p *Pipeline) Purge(exileID string, element Element) (Result, error) {
	exile, err := p.advanceChecks(StepReparent, exileID)
	if err != nil {
		return Result{}, err
	}
	if _, err := ParseElement(string(element)); err != nil {
		return Result{}, err
	}
	if blocked, ok := p.gate(StepPurge, exileID); !ok {
		return blocked, nil
	}

	exile.Burden = nil
	exile.Activation = p.tuning.ResidualCharge
	p.currentStep = StepPurge

	p.state.Append(eventKind, fmt.Sprintf("PURGE: burden released via %s, charge reduced to residual", element), exileID)
	return Result{
		Step:     StepPurge,
		TargetID: exileID,
		NextStep: StepInvite,
		Notes:    fmt.Sprintf("Burden purged via %s", element),
	}, nil
}

// Invite completes the pipeline: the exile takes on the invited
// qualities and becomes unburdened. No further steps are legal.
func (p *Pipeline) Invite(exileID string, qualities []string) (Result, error) {
	exile, err := p.advanceChecks(StepPurge, exileID)
	if err != nil {
		return Result{}, err
	}
	if blocked, ok := p.gate(StepInvite, exileID); !ok {
		return blocked, nil
	}

	exile.InvitedQualities = append([]string(nil), qualities...)
	exile.State = part.ExileUnburdened
	p.currentStep = StepComplete

	p.state.Append(eventKind, fmt.Sprintf("INVITE: exile takes on new qualities: %s", strings.Join(qualities, ", ")), exileID)
	return Result{
		Step:     StepInvite,
		TargetID: exileID,
		Notes:    fmt.Sprintf("Qualities invited: %s", strings.Join(qualities, ", ")),
	}, nil
}

// advanceChecks enforces sequencing, target continuity, and lookup for
// every step after witness.
func (p *Pipeline) advanceChecks(required Step, exileID string) (*part.Exile, error) {
	if p.currentStep != required {
		return nil, fmt.Errorf("requires %s first: %w", required, ErrOutOfSequence)
	}
	if exileID != p.targetID {
		return nil, fmt.Errorf("pipeline pinned to %s: %w", p.targetID, ErrTargetMismatch)
	}
	return p.lookupExile(exileID)
}

func (p *Pipeline) lookupExile(exileID string) (*part.Exile, error) {
	node, err := p.graph.Get(exileID)
	if err != nil {
		return nil, err
	}
	exile, ok := node.(*part.Exile)
	if !ok {
		return nil, fmt.Errorf("part %s: %w", exileID, ErrNotExile)
	}
	return exile, nil
}

// gate applies the compassion threshold. On failure it logs the blocked
// step and returns the blocked result; the pipeline state is untouched,
// so retrying the identical call after unblending succeeds.
func (p *Pipeline) gate(step Step, exileID string) (Result, bool) {
	energy := p.state.Energy()
	threshold := p.tuning.CompassionThreshold
	if p.modifiers != nil {
		energy = p.modifiers.EffectiveEnergy(energy)
		threshold = p.modifiers.EffectiveThreshold(threshold)
	}
	if energy > threshold {
		return Result{}, true
	}

	interfering := p.state.MostBlended()
	p.state.Append(eventKind,
		fmt.Sprintf("%s: energy insufficient (%.2f <= %.2f), unblend required", strings.ToUpper(string(step)), energy, threshold),
		interfering)
	return Result{
		Step:            step,
		TargetID:        exileID,
		UnblendRequired: interfering,
		Notes:           "Energy insufficient: another part is blended",
	}, false
}
