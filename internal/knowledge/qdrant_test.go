package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type stubEmbedder struct {
	vectors [][]float32
	err     error
}

func (s *stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.vectors != nil {
		return s.vectors, nil
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

func newTestQdrant(t *testing.T, embedder Embedder, handler http.HandlerFunc) *Qdrant {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	q, err := NewQdrant(QdrantConfig{
		URL:        srv.URL,
		Collection: "test_docs",
		VectorSize: 3,
	}, embedder, nil)
	if err != nil {
		t.Fatalf("new qdrant: %v", err)
	}
	return q
}

func TestAddDocuments_UpsertsPoints(t *testing.T) {
	var upserted struct {
		Points []qdrantPoint `json:"points"`
	}
	q := newTestQdrant(t, &stubEmbedder{}, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || !strings.Contains(r.URL.Path, "/points") {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &upserted); err != nil {
			t.Fatalf("decode upsert body: %v", err)
		}
		w.Write([]byte(`{"status":"ok"}`))
	})

	ids, err := q.AddDocuments(context.Background(), []Document{
		{Content: "Оплата картой принимается."},
		{ID: "doc-2", Content: "Работаем с 9 до 21."},
	})
	if err != nil {
		t.Fatalf("add documents: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 ids, got %d", len(ids))
	}
	if ids[0] == "" {
		t.Fatalf("expected a generated id for the first document")
	}
	if ids[1] != "doc-2" {
		t.Fatalf("expected caller-provided id to be kept, got %q", ids[1])
	}
	if len(upserted.Points) != 2 {
		t.Fatalf("expected 2 points upserted, got %d", len(upserted.Points))
	}
	if got := upserted.Points[0].Payload["content"]; got != "Оплата картой принимается." {
		t.Fatalf("unexpected payload content %v", got)
	}
}

func TestAddDocuments_EmbedFailureFallsBackToZeroVectors(t *testing.T) {
	var upserted struct {
		Points []qdrantPoint `json:"points"`
	}
	q := newTestQdrant(t, &stubEmbedder{err: errors.New("quota")}, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &upserted); err != nil {
			t.Fatalf("decode upsert body: %v", err)
		}
		w.Write([]byte(`{"status":"ok"}`))
	})

	if _, err := q.AddDocuments(context.Background(), []Document{{Content: "текст"}}); err != nil {
		t.Fatalf("add documents: %v", err)
	}
	if len(upserted.Points) != 1 {
		t.Fatalf("expected 1 point, got %d", len(upserted.Points))
	}
	vec := upserted.Points[0].Vector
	if len(vec) != 3 {
		t.Fatalf("expected zero vector of size 3, got %v", vec)
	}
	for _, v := range vec {
		if v != 0 {
			t.Fatalf("expected zero vector, got %v", vec)
		}
	}
}

func TestSearch_ReturnsScoredDocuments(t *testing.T) {
	q := newTestQdrant(t, &stubEmbedder{}, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/points/search") {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req map[string]any
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &req); err != nil {
			t.Fatalf("decode search body: %v", err)
		}
		if req["score_threshold"] != 0.5 {
			t.Fatalf("expected score_threshold 0.5, got %v", req["score_threshold"])
		}
		w.Write([]byte(`{"result":[
			{"id":"doc-1","score":0.91,"payload":{"content":"Оплата картой","metadata":{"topic":"payments"}}},
			{"id":"doc-2","score":0.62,"payload":{"content":"График работы"}}
		]}`))
	})

	docs, err := q.Search(context.Background(), "как оплатить", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].Content != "Оплата картой" || docs[0].Score != 0.91 {
		t.Fatalf("unexpected first hit %+v", docs[0])
	}
	if docs[0].Metadata["topic"] != "payments" {
		t.Fatalf("metadata lost: %+v", docs[0].Metadata)
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	q := newTestQdrant(t, &stubEmbedder{}, func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("no request expected")
	})
	docs, err := q.Search(context.Background(), "", 5)
	if err != nil || docs != nil {
		t.Fatalf("expected empty result, got %v, %v", docs, err)
	}
}

func TestContextForQuery_AssemblesUnderBudget(t *testing.T) {
	q := newTestQdrant(t, &stubEmbedder{}, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":[
			{"id":"a","score":0.9,"payload":{"content":"Первый документ."}},
			{"id":"b","score":0.8,"payload":{"content":"Второй документ."}}
		]}`))
	})

	got, err := q.ContextForQuery(context.Background(), "вопрос", 2000)
	if err != nil {
		t.Fatalf("context for query: %v", err)
	}
	if got != "Первый документ.\n\nВторой документ." {
		t.Fatalf("unexpected context %q", got)
	}
}

func TestNopBase(t *testing.T) {
	var b Base = Nop{}

	if _, err := b.AddDocuments(context.Background(), []Document{{Content: "x"}}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	docs, err := b.Search(context.Background(), "q", 5)
	if err != nil || docs != nil {
		t.Fatalf("expected empty search, got %v, %v", docs, err)
	}
	ctxText, err := b.ContextForQuery(context.Background(), "q", 100)
	if err != nil || ctxText != "" {
		t.Fatalf("expected empty context, got %q, %v", ctxText, err)
	}
}
