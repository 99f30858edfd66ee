// Package dialogue renders parts into natural-language speech through a
// pluggable provider. The provider is a rendering engine only; the
// compassion gate and conversation bookkeeping live here.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/partswork/engine/internal/dynamics"
	"github.com/partswork/engine/internal/graph"
	"github.com/partswork/engine/internal/part"
	"github.com/partswork/engine/internal/selfstate"
)

// Role identifies the speaker of a dialogue message.
type Role string

const (
	// RoleFacilitator is self or the therapist speaking to the part.
	RoleFacilitator Role = "facilitator"
	// RolePart is the part responding in its own voice.
	RolePart Role = "part"
)

var (
	// ErrLowEnergy indicates dialogue was attempted below the
	// compassion threshold; the caller must unblend first.
	ErrLowEnergy = errors.New("energy too low for dialogue")
	// ErrProviderFailure indicates the rendering backend failed.
	ErrProviderFailure = errors.New("dialogue provider failure")
)

// Message is one exchange in a part conversation.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Context bundles the state a provider needs to generate a response.
type Context struct {
	Energy       float64
	CurrentStep  string
	Message      string
	History      []Message
	DirectAccess bool
}

// Provider generates a part's response. Any backend qualifies: a hosted
// model, a local model, or a rule-based stand-in for tests.
type Provider interface {
	Respond(ctx context.Context, p part.Part, dctx Context, systemPrompt string) (string, error)
}

// SystemPrompt builds the instruction block a provider uses to speak as
// the part: identity, formation age, intent, trust, and the
// variant-specific fields that shape its voice.
func SystemPrompt(p part.Part, directAccess bool) string {
	meta := p.Meta()
	var b strings.Builder
	fmt.Fprintf(&b, "You are a part of an internal system. You are %s.\n", meta.Narrative)
	fmt.Fprintf(&b, "You were formed at age %d. You still see the world from that age.\n", meta.Age)
	fmt.Fprintf(&b, "Your protective intent: %s\n", meta.Intent)
	fmt.Fprintf(&b, "Your trust in self is currently %.0f%%.\n", meta.TrustLevel*100)

	switch v := p.(type) {
	case *part.Manager:
		if len(v.Strategies) > 0 {
			fmt.Fprintf(&b, "Your strategies: %s\n", strings.Join(v.Strategies, ", "))
		}
		fmt.Fprintf(&b, "Your rigidity: %.0f%%.\n", v.Rigidity*100)
	case *part.Firefighter:
		if len(v.Extinguishing) > 0 {
			fmt.Fprintf(&b, "Your emergency behaviors: %s\n", strings.Join(v.Extinguishing, ", "))
		}
	case *part.Exile:
		if v.Burden != nil {
			fmt.Fprintf(&b, "You carry this burden: %s\n", v.Burden.Content)
		}
		fmt.Fprintf(&b, "Your current charge: %.0f%%.\n", v.Activation*100)
	}

	b.WriteString("Speak in first person. Express your feelings and needs authentically. You have positive intent even if your behavior seems harmful.")
	if directAccess {
		b.WriteString("\nA therapist is speaking directly to you. You may respond more openly than you would through self.")
	}
	return b.String()
}

// Dialogue orchestrates part conversations: it enforces the compassion
// gate, tracks per-part history, and logs every exchange.
type Dialogue struct {
	provider  Provider
	graph     *graph.Graph
	state     *selfstate.State
	tuning    dynamics.Tuning
	clock     func() time.Time
	histories map[string][]Message
}

// New returns a dialogue orchestrator backed by the given provider.
func New(provider Provider, g *graph.Graph, state *selfstate.State, tuning dynamics.Tuning) *Dialogue {
	return &Dialogue{
		provider:  provider,
		graph:     g,
		state:     state,
		tuning:    tuning,
		clock:     time.Now,
		histories: make(map[string][]Message),
	}
}

// SpeakAs generates the part's response to a facilitator message. The
// compassion gate applies: below the threshold the facilitator cannot
// engage and the caller must unblend first.
func (d *Dialogue) SpeakAs(ctx context.Context, partID, message, currentStep string) (string, error) {
	p, err := d.graph.Get(partID)
	if err != nil {
		return "", err
	}
	if d.state.Energy() <= d.tuning.CompassionThreshold {
		return "", ErrLowEnergy
	}

	response, err := d.generate(ctx, p, Context{
		Energy:      d.state.Energy(),
		CurrentStep: currentStep,
		Message:     message,
		History:     d.History(partID),
	}, false)
	if err != nil {
		return "", err
	}

	d.record(partID, message, response)
	d.state.Append("dialogue", fmt.Sprintf("Facilitator: %q | Part response: %q", message, response), partID)
	return response, nil
}

// DirectAccess generates the part's response to a therapist speaking
// directly to it, bypassing self. No gate applies.
func (d *Dialogue) DirectAccess(ctx context.Context, partID, message string) (string, error) {
	p, err := d.graph.Get(partID)
	if err != nil {
		return "", err
	}

	response, err := d.generate(ctx, p, Context{
		Energy:       d.state.Energy(),
		Message:      message,
		History:      d.History(partID),
		DirectAccess: true,
	}, true)
	if err != nil {
		return "", err
	}

	d.record(partID, message, response)
	d.state.Append("direct_access", fmt.Sprintf("Therapist (direct access): %q | Part response: %q", message, response), partID)
	return response, nil
}

// History returns a copy of the conversation record for a part.
func (d *Dialogue) History(partID string) []Message {
	return append([]Message(nil), d.histories[partID]...)
}

// ClearHistory drops the conversation record for a part.
func (d *Dialogue) ClearHistory(partID string) {
	delete(d.histories, partID)
}

func (d *Dialogue) generate(ctx context.Context, p part.Part, dctx Context, directAccess bool) (string, error) {
	response, err := d.provider.Respond(ctx, p, dctx, SystemPrompt(p, directAccess))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}
	return response, nil
}

func (d *Dialogue) record(partID, message, response string) {
	now := d.clock().UTC()
	d.histories[partID] = append(d.histories[partID],
		Message{Role: RoleFacilitator, Content: message, Timestamp: now},
		Message{Role: RolePart, Content: response, Timestamp: now},
	)
}
