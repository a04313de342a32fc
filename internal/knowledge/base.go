// Package knowledge stores company documents and retrieves the most relevant
// ones as extra dialogue context for the voice agent.
package knowledge

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned for write operations when no vector store is
// configured.
var ErrNotConfigured = errors.New("knowledge: vector store not configured")

// Document is one knowledge base entry. Score is populated on search results
// only.
type Document struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Score    float64        `json:"score,omitempty"`
}

// Embedder turns texts into vectors. Implemented by dialogue.Gemini.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Base is the knowledge store used by the call orchestrator.
type Base interface {
	AddDocuments(ctx context.Context, docs []Document) ([]string, error)
	Search(ctx context.Context, query string, limit int) ([]Document, error)

	// ContextForQuery assembles relevant document contents into a single
	// prompt fragment, bounded by the character budget.
	ContextForQuery(ctx context.Context, query string, budget int) (string, error)

	DeleteDocuments(ctx context.Context, ids []string) error
	Clear(ctx context.Context) error
}

// Nop is the knowledge base used when no vector store is configured. Every
// lookup comes back empty and writes are rejected.
type Nop struct{}

func (Nop) AddDocuments(ctx context.Context, docs []Document) ([]string, error) {
	return nil, ErrNotConfigured
}

func (Nop) Search(ctx context.Context, query string, limit int) ([]Document, error) {
	return nil, nil
}

func (Nop) ContextForQuery(ctx context.Context, query string, budget int) (string, error) {
	return "", nil
}

func (Nop) DeleteDocuments(ctx context.Context, ids []string) error { return ErrNotConfigured }

func (Nop) Clear(ctx context.Context) error { return ErrNotConfigured }
