package dialogue

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// GeminiConfig configures the Gemini-backed generator and embedder.
type GeminiConfig struct {
	APIKey         string
	Model          string
	EmbeddingModel string
}

// Gemini implements Generator on top of the Gemini API. It also exposes
// Embed, which satisfies the knowledge package's Embedder interface.
type Gemini struct {
	client     *genai.Client
	model      string
	embedModel string
}

func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("dialogue: gemini api key is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("dialogue: gemini model is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("dialogue: gemini client init failed: %w", err)
	}

	return &Gemini{
		client:     client,
		model:      cfg.Model,
		embedModel: cfg.EmbeddingModel,
	}, nil
}

// GenerateReply asks the model for the next agent utterance given the full
// prior history. History roles are mapped to the backend's role vocabulary.
func (g *Gemini) GenerateReply(ctx context.Context, dc *Context, agentName, companyName string) (string, error) {
	system := SystemPrompt(agentName, companyName, dc.Order, dc.Knowledge)

	contents := make([]*genai.Content, 0, len(dc.Messages))
	for _, m := range dc.Messages {
		role := genai.Role(genai.RoleUser)
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
	})
	if err != nil {
		return "", fmt.Errorf("dialogue: generation failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return ReplyOnEmptyGeneration, nil
	}
	return text, nil
}

// Embed returns one embedding vector per input text.
func (g *Gemini) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if g.embedModel == "" {
		return nil, errors.New("dialogue: embedding model not configured")
	}

	contents := make([]*genai.Content, 0, len(texts))
	for _, t := range texts {
		contents = append(contents, genai.NewContentFromText(t, genai.RoleUser))
	}

	resp, err := g.client.Models.EmbedContent(ctx, g.embedModel, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("dialogue: embedding failed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("dialogue: expected %d embeddings, got %d", len(texts), len(resp.Embeddings))
	}

	out := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		out[i] = e.Values
	}
	return out, nil
}
