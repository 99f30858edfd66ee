// Package gemini is a dialogue provider backed by Google's Gemini API.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/partswork/engine/internal/dialogue"
	"github.com/partswork/engine/internal/part"
)

const defaultModel = "gemini-2.0-flash"

// Provider renders part responses through the Gemini API.
type Provider struct {
	client *genai.Client
	model  string
}

// New creates a Gemini provider. The API key is required; an empty
// model falls back to the default.
func New(ctx context.Context, apiKey, model string) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = defaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &Provider{client: client, model: model}, nil
}

// Name returns the provider label used in logs.
func (p *Provider) Name() string {
	return fmt.Sprintf("gemini:%s", p.model)
}

// Respond generates the part's reply. The conversation history is
// replayed as alternating user/model turns ahead of the new message.
func (p *Provider) Respond(ctx context.Context, _ part.Part, dctx dialogue.Context, systemPrompt string) (string, error) {
	contents := make([]*genai.Content, 0, len(dctx.History)+1)
	for _, msg := range dctx.History {
		role := genai.Role(genai.RoleUser)
		if msg.Role == dialogue.RolePart {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}
	contents = append(contents, genai.NewContentFromText(dctx.Message, genai.RoleUser))

	result, err := p.client.Models.GenerateContent(ctx, p.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
	})
	if err != nil {
		return "", fmt.Errorf("gemini generate failed: %w", err)
	}

	text := strings.TrimSpace(result.Text())
	if text == "" {
		return "", fmt.Errorf("no completion returned")
	}
	return text, nil
}
