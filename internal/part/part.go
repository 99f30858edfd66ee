// Package part defines the sub-personality entities of the internal
// system and their variant-specific state machines.
//
// Three variants exist: Manager (proactive protector), Firefighter
// (reactive protector), and Exile (burdened vulnerability). All variants
// share a common base and are distinguished by a "kind" discriminator,
// which drives JSON (de)serialization.
package part

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Kind discriminates the part variants.
type Kind string

const (
	// KindManager identifies a proactive protector.
	KindManager Kind = "manager"
	// KindFirefighter identifies a reactive protector.
	KindFirefighter Kind = "firefighter"
	// KindExile identifies a burdened vulnerability.
	KindExile Kind = "exile"
)

// ManagerState tracks the manager monitoring cycle: idle, scanning, blocking.
type ManagerState string

const (
	ManagerIdle     ManagerState = "idle"
	ManagerScanning ManagerState = "scanning"
	ManagerBlocking ManagerState = "blocking"
)

// FirefighterState tracks the firefighter activation cycle.
type FirefighterState string

const (
	FirefighterDormant  FirefighterState = "dormant"
	FirefighterActive   FirefighterState = "active"
	FirefighterCooldown FirefighterState = "cooldown"
)

// ExileState tracks an exile along two pathways: the uncontrolled
// breakthrough path (isolated, leaking, flooding) and the intentional
// healing path (isolated, retrieved, unburdened).
type ExileState string

const (
	ExileIsolated   ExileState = "isolated"
	ExileLeaking    ExileState = "leaking"
	ExileFlooding   ExileState = "flooding"
	ExileRetrieved  ExileState = "retrieved"
	ExileUnburdened ExileState = "unburdened"
)

// BurdenKind classifies a burden by its origin.
type BurdenKind string

const (
	BurdenPersonal   BurdenKind = "personal"
	BurdenLegacy     BurdenKind = "legacy"
	BurdenUnattached BurdenKind = "unattached"
	BurdenSocietal   BurdenKind = "societal"
)

var (
	// ErrUnknownKind indicates a part payload carried an unrecognized kind tag.
	ErrUnknownKind = errors.New("unknown part kind")
	// ErrOutOfRange indicates a bounded value fell outside [0,1].
	ErrOutOfRange = errors.New("value must be between 0 and 1")
)

// Burden is the payload of stored negative intensity attached to an exile.
// StoredCharge is the intensity locked in the payload; compare with
// Exile.Activation, which is the intensity affecting the system right now.
type Burden struct {
	Kind         BurdenKind `json:"burden_kind"`
	Origin       string     `json:"origin"`
	Content      string     `json:"content"`
	StoredCharge float64    `json:"stored_charge"`
	Lineage      []string   `json:"lineage,omitempty"`
}

// GenerationDepth reports the number of generations in the lineage chain.
// Zero means a personal burden with no inherited lineage.
func (b Burden) GenerationDepth() int {
	return len(b.Lineage)
}

// Base holds the attributes shared by every part variant.
type Base struct {
	ID         string  `json:"id"`
	Narrative  string  `json:"narrative"`
	Age        int     `json:"age"`
	Intent     string  `json:"intent"`
	TrustLevel float64 `json:"trust_level"`
	Visible    bool    `json:"visible"`
}

// Part is the closed union over the three variants. Concrete values are
// always pointers so callers can mutate fields in place.
type Part interface {
	Kind() Kind
	Meta() *Base
}

// Manager is a proactive protector: it scans for triggers and enforces
// pre-emptive strategies to keep exile material contained.
type Manager struct {
	Base
	Triggers   []string     `json:"triggers,omitempty"`
	Strategies []string     `json:"strategies,omitempty"`
	Rigidity   float64      `json:"rigidity"`
	State      ManagerState `json:"state"`
}

// Firefighter is a reactive protector: dormant until manager blocking
// fails, then active with high-intensity measures, then in cooldown.
type Firefighter struct {
	Base
	PainThreshold    float64          `json:"pain_threshold"`
	Extinguishing    []string         `json:"extinguishing_behaviors,omitempty"`
	RefractoryPeriod time.Duration    `json:"refractory_period_ns,omitempty"`
	State            FirefighterState `json:"state"`
}

// Exile carries the stored pain of the system. Hidden by default.
// Activation is the current intensity in [0,1].
type Exile struct {
	Base
	Burden           *Burden    `json:"burden,omitempty"`
	Activation       float64    `json:"activation"`
	InvitedQualities []string   `json:"invited_qualities,omitempty"`
	State            ExileState `json:"state"`
}

func (m *Manager) Kind() Kind      { return KindManager }
func (m *Manager) Meta() *Base     { return &m.Base }
func (f *Firefighter) Kind() Kind  { return KindFirefighter }
func (f *Firefighter) Meta() *Base { return &f.Base }
func (e *Exile) Kind() Kind        { return KindExile }
func (e *Exile) Meta() *Base       { return &e.Base }

// NewManager returns a manager with default trust and state.
func NewManager(id, narrative string, age int, intent string) *Manager {
	return &Manager{
		Base:     Base{ID: id, Narrative: narrative, Age: age, Intent: intent, TrustLevel: 0.5, Visible: true},
		Rigidity: 0.5,
		State:    ManagerIdle,
	}
}

// NewFirefighter returns a firefighter with default trust and state.
func NewFirefighter(id, narrative string, age int, intent string) *Firefighter {
	return &Firefighter{
		Base:             Base{ID: id, Narrative: narrative, Age: age, Intent: intent, TrustLevel: 0.5, Visible: true},
		PainThreshold:    0.7,
		RefractoryPeriod: 30 * time.Minute,
		State:            FirefighterDormant,
	}
}

// NewExile returns an exile with default trust and activation. Exiles
// start hidden; visibility is a protector-controlled property.
func NewExile(id, narrative string, age int, intent string) *Exile {
	return &Exile{
		Base:       Base{ID: id, Narrative: narrative, Age: age, Intent: intent, TrustLevel: 0.5, Visible: false},
		Activation: 0.5,
		State:      ExileIsolated,
	}
}

// Validate checks the bounded fields of a part.
func Validate(p Part) error {
	meta := p.Meta()
	if err := checkUnit("trust_level", meta.TrustLevel); err != nil {
		return err
	}
	switch v := p.(type) {
	case *Manager:
		return checkUnit("rigidity", v.Rigidity)
	case *Firefighter:
		return checkUnit("pain_threshold", v.PainThreshold)
	case *Exile:
		if err := checkUnit("activation", v.Activation); err != nil {
			return err
		}
		if v.Burden != nil {
			return checkUnit("stored_charge", v.Burden.StoredCharge)
		}
	}
	return nil
}

func checkUnit(field string, value float64) error {
	if value < 0 || value > 1 {
		return fmt.Errorf("%s: %w", field, ErrOutOfRange)
	}
	return nil
}

// MarshalJSON adds the kind discriminator to the manager payload.
func (m Manager) MarshalJSON() ([]byte, error) {
	type alias Manager
	return json.Marshal(struct {
		Kind Kind `json:"kind"`
		alias
	}{KindManager, alias(m)})
}

// MarshalJSON adds the kind discriminator to the firefighter payload.
func (f Firefighter) MarshalJSON() ([]byte, error) {
	type alias Firefighter
	return json.Marshal(struct {
		Kind Kind `json:"kind"`
		alias
	}{KindFirefighter, alias(f)})
}

// MarshalJSON adds the kind discriminator to the exile payload.
func (e Exile) MarshalJSON() ([]byte, error) {
	type alias Exile
	return json.Marshal(struct {
		Kind Kind `json:"kind"`
		alias
	}{KindExile, alias(e)})
}

// Decode deserializes a part payload, dispatching on the kind tag.
// The returned part has been validated.
func Decode(data []byte) (Part, error) {
	var probe struct {
		Kind Kind `json:"kind"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("decode part kind: %w", err)
	}

	var p Part
	switch probe.Kind {
	case KindManager:
		v := &Manager{State: ManagerIdle, Rigidity: 0.5}
		v.TrustLevel = 0.5
		v.Visible = true
		if err := json.Unmarshal(data, v); err != nil {
			return nil, fmt.Errorf("decode manager: %w", err)
		}
		p = v
	case KindFirefighter:
		v := &Firefighter{State: FirefighterDormant, PainThreshold: 0.7, RefractoryPeriod: 30 * time.Minute}
		v.TrustLevel = 0.5
		v.Visible = true
		if err := json.Unmarshal(data, v); err != nil {
			return nil, fmt.Errorf("decode firefighter: %w", err)
		}
		p = v
	case KindExile:
		v := &Exile{State: ExileIsolated, Activation: 0.5}
		v.TrustLevel = 0.5
		if err := json.Unmarshal(data, v); err != nil {
			return nil, fmt.Errorf("decode exile: %w", err)
		}
		p = v
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, probe.Kind)
	}

	if err := Validate(p); err != nil {
		return nil, err
	}
	return p, nil
}
