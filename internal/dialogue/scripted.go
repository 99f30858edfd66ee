package dialogue

import (
	"context"
	"fmt"

	"github.com/partswork/engine/internal/part"
)

// Scripted is a rule-based provider for demos and offline runs. It
// derives a response from the part's variant, trust level, and burden
// instead of calling a model.
type Scripted struct{}

// Respond implements Provider.
func (Scripted) Respond(_ context.Context, p part.Part, dctx Context, _ string) (string, error) {
	meta := p.Meta()

	if dctx.DirectAccess {
		return fmt.Sprintf("(speaking directly) I hear you. I am %s and my job is %s.", meta.Narrative, meta.Intent), nil
	}

	switch v := p.(type) {
	case *part.Manager:
		if meta.TrustLevel < 0.4 {
			return "I don't see why I should let my guard down. Someone has to keep things under control.", nil
		}
		return fmt.Sprintf("I've been working hard at this since you were %d. My job is %s.", meta.Age, meta.Intent), nil
	case *part.Firefighter:
		if v.State == part.FirefighterActive {
			return "Not now. The pain is too close. I have to put it out first.", nil
		}
		return "I only show up when it gets unbearable. I'm not trying to hurt you.", nil
	case *part.Exile:
		if v.State == part.ExileUnburdened {
			return "It feels lighter now. I can finally just be here.", nil
		}
		if v.Burden != nil {
			return fmt.Sprintf("I've been carrying this alone: %s. Will you stay with me?", v.Burden.Content), nil
		}
		return "I'm still here. It's quieter than it used to be.", nil
	}
	return "I'm here.", nil
}
