package part

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestNewManagerDefaults(t *testing.T) {
	m := NewManager("m1", "the critic", 9, "prevent humiliation")
	if m.TrustLevel != 0.5 {
		t.Fatalf("TrustLevel = %v, want 0.5", m.TrustLevel)
	}
	if m.State != ManagerIdle {
		t.Fatalf("State = %q, want idle", m.State)
	}
	if !m.Visible {
		t.Fatal("manager should be visible by default")
	}
}

func TestNewExileDefaults(t *testing.T) {
	e := NewExile("e1", "the lonely child", 7, "hold the memory")
	if e.Visible {
		t.Fatal("exile should be hidden by default")
	}
	if e.Activation != 0.5 {
		t.Fatalf("Activation = %v, want 0.5", e.Activation)
	}
	if e.State != ExileIsolated {
		t.Fatalf("State = %q, want isolated", e.State)
	}
}

func TestValidateRejectsOutOfRange(t *testing.T) {
	tests := []struct {
		name string
		p    Part
	}{
		{"trust above one", &Manager{Base: Base{TrustLevel: 1.2}, Rigidity: 0.5}},
		{"negative rigidity", &Manager{Base: Base{TrustLevel: 0.5}, Rigidity: -0.1}},
		{"pain threshold", &Firefighter{Base: Base{TrustLevel: 0.5}, PainThreshold: 1.5}},
		{"activation", &Exile{Base: Base{TrustLevel: 0.5}, Activation: 2}},
		{"stored charge", &Exile{Base: Base{TrustLevel: 0.5}, Activation: 0.5, Burden: &Burden{StoredCharge: -0.2}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := Validate(tc.p); !errors.Is(err, ErrOutOfRange) {
				t.Fatalf("Validate() = %v, want ErrOutOfRange", err)
			}
		})
	}
}

func TestMarshalIncludesKind(t *testing.T) {
	data, err := json.Marshal(NewFirefighter("f1", "the numbing part", 14, "extinguish pain"))
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	if !strings.Contains(string(data), `"kind":"firefighter"`) {
		t.Fatalf("payload missing kind tag: %s", data)
	}
}

func TestDecodeDispatchesOnKind(t *testing.T) {
	payload := `{
		"kind": "exile",
		"id": "e1",
		"narrative": "the lonely child",
		"age": 7,
		"burden": {"burden_kind": "personal", "content": "I am unwantable", "stored_charge": 0.8}
	}`
	p, err := Decode([]byte(payload))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	exile, ok := p.(*Exile)
	if !ok {
		t.Fatalf("Decode() = %T, want *Exile", p)
	}
	if exile.State != ExileIsolated {
		t.Fatalf("State = %q, want default isolated", exile.State)
	}
	if exile.TrustLevel != 0.5 {
		t.Fatalf("TrustLevel = %v, want default 0.5", exile.TrustLevel)
	}
	if exile.Burden == nil || exile.Burden.Content != "I am unwantable" {
		t.Fatalf("Burden = %+v", exile.Burden)
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	m := NewManager("m1", "the critic", 9, "prevent humiliation")
	m.Strategies = []string{"perfectionism"}
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	p, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	decoded, ok := p.(*Manager)
	if !ok {
		t.Fatalf("Decode() = %T, want *Manager", p)
	}
	if decoded.ID != "m1" || len(decoded.Strategies) != 1 {
		t.Fatalf("decoded = %+v", decoded)
	}
}

func TestDecodeUnknownKind(t *testing.T) {
	_, err := Decode([]byte(`{"kind": "sage"}`))
	if !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("Decode() = %v, want ErrUnknownKind", err)
	}
}

func TestDecodeValidates(t *testing.T) {
	_, err := Decode([]byte(`{"kind": "manager", "trust_level": 3}`))
	if !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("Decode() = %v, want ErrOutOfRange", err)
	}
}

func TestGenerationDepth(t *testing.T) {
	b := Burden{Kind: BurdenLegacy, Lineage: []string{"grandmother", "mother"}}
	if got := b.GenerationDepth(); got != 2 {
		t.Fatalf("GenerationDepth() = %d, want 2", got)
	}
	if got := (Burden{}).GenerationDepth(); got != 0 {
		t.Fatalf("GenerationDepth() = %d, want 0", got)
	}
}
