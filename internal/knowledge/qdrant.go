package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const defaultScoreThreshold = 0.5

// QdrantConfig configures the Qdrant REST adapter.
type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string

	// VectorSize must match the embedding model output dimension.
	VectorSize int

	HTTPTimeout time.Duration
}

// Qdrant stores documents as points in a single Qdrant collection, with
// vectors produced by the configured Embedder.
type Qdrant struct {
	cfg      QdrantConfig
	baseURL  string
	client   *http.Client
	embedder Embedder
	log      *slog.Logger
}

func NewQdrant(cfg QdrantConfig, embedder Embedder, log *slog.Logger) (*Qdrant, error) {
	if cfg.URL == "" {
		return nil, errors.New("knowledge: qdrant url is required")
	}
	if embedder == nil {
		return nil, errors.New("knowledge: embedder is required")
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.Collection == "" {
		cfg.Collection = "knowledge_base"
	}
	if cfg.VectorSize <= 0 {
		cfg.VectorSize = 768
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Qdrant{
		cfg:      cfg,
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		client:   &http.Client{Timeout: timeout},
		embedder: embedder,
		log:      log,
	}, nil
}

// EnsureCollection creates the collection when it does not exist yet.
func (q *Qdrant) EnsureCollection(ctx context.Context) error {
	status, _, err := q.do(ctx, http.MethodGet, "/collections/"+q.cfg.Collection, nil)
	if err != nil {
		return err
	}
	if status == http.StatusOK {
		return nil
	}
	return q.createCollection(ctx)
}

func (q *Qdrant) createCollection(ctx context.Context) error {
	body := map[string]any{
		"vectors": map[string]any{
			"size":     q.cfg.VectorSize,
			"distance": "Cosine",
		},
	}
	status, respBody, err := q.do(ctx, http.MethodPut, "/collections/"+q.cfg.Collection, body)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("knowledge: create collection: status %d: %s", status, respBody)
	}
	q.log.Info("qdrant collection created", "collection", q.cfg.Collection)
	return nil
}

type qdrantPoint struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// AddDocuments embeds and upserts the documents, returning assigned ids.
// A document whose embedding fails is stored with a zero vector so its text
// is not lost; it will not surface in similarity search until re-added.
func (q *Qdrant) AddDocuments(ctx context.Context, docs []Document) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}

	vectors, err := q.embedder.Embed(ctx, texts)
	if err != nil || len(vectors) != len(docs) {
		q.log.Warn("embedding failed, storing documents with zero vectors", "error", err)
		vectors = make([][]float32, len(docs))
	}

	points := make([]qdrantPoint, 0, len(docs))
	ids := make([]string, 0, len(docs))
	for i, d := range docs {
		id := d.ID
		if id == "" {
			id = uuid.NewString()
		}
		vec := vectors[i]
		if len(vec) == 0 {
			vec = make([]float32, q.cfg.VectorSize)
		}
		points = append(points, qdrantPoint{
			ID:     id,
			Vector: vec,
			Payload: map[string]any{
				"content":  d.Content,
				"metadata": d.Metadata,
			},
		})
		ids = append(ids, id)
	}

	status, body, err := q.do(ctx, http.MethodPut,
		"/collections/"+q.cfg.Collection+"/points?wait=true",
		map[string]any{"points": points})
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("knowledge: upsert points: status %d: %s", status, body)
	}

	q.log.Info("documents added", "count", len(ids), "collection", q.cfg.Collection)
	return ids, nil
}

type qdrantSearchResponse struct {
	Result []struct {
		ID      any            `json:"id"`
		Score   float64        `json:"score"`
		Payload map[string]any `json:"payload"`
	} `json:"result"`
}

// Search embeds the query and returns documents above the score threshold,
// most relevant first.
func (q *Qdrant) Search(ctx context.Context, query string, limit int) ([]Document, error) {
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}

	vectors, err := q.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("knowledge: embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, errors.New("knowledge: embedder returned no vector for query")
	}

	status, body, err := q.do(ctx, http.MethodPost,
		"/collections/"+q.cfg.Collection+"/points/search",
		map[string]any{
			"vector":          vectors[0],
			"limit":           limit,
			"score_threshold": defaultScoreThreshold,
			"with_payload":    true,
		})
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("knowledge: search: status %d: %s", status, body)
	}

	var out qdrantSearchResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("knowledge: decode search response: %w", err)
	}

	docs := make([]Document, 0, len(out.Result))
	for _, hit := range out.Result {
		doc := Document{
			ID:    fmt.Sprintf("%v", hit.ID),
			Score: hit.Score,
		}
		if content, ok := hit.Payload["content"].(string); ok {
			doc.Content = content
		}
		if meta, ok := hit.Payload["metadata"].(map[string]any); ok {
			doc.Metadata = meta
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (q *Qdrant) ContextForQuery(ctx context.Context, query string, budget int) (string, error) {
	docs, err := q.Search(ctx, query, 5)
	if err != nil {
		return "", err
	}
	return assembleContext(docs, budget), nil
}

func (q *Qdrant) DeleteDocuments(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	status, body, err := q.do(ctx, http.MethodPost,
		"/collections/"+q.cfg.Collection+"/points/delete?wait=true",
		map[string]any{"points": ids})
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("knowledge: delete points: status %d: %s", status, body)
	}
	return nil
}

// Clear drops and recreates the collection.
func (q *Qdrant) Clear(ctx context.Context) error {
	status, body, err := q.do(ctx, http.MethodDelete, "/collections/"+q.cfg.Collection, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusNotFound {
		return fmt.Errorf("knowledge: drop collection: status %d: %s", status, body)
	}
	return q.createCollection(ctx)
}

func (q *Qdrant) do(ctx context.Context, method, path string, payload any) (int, []byte, error) {
	var reqBody io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, q.baseURL+path, reqBody)
	if err != nil {
		return 0, nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if q.cfg.APIKey != "" {
		req.Header.Set("api-key", q.cfg.APIKey)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}
