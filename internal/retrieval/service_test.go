package retrieval

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/courtwise/sentencing-service/internal/sentencing"
	"github.com/courtwise/sentencing-service/internal/store"
)

type fakeChunkStore struct {
	textCalls   int
	hybridCalls int
	lastTopK    int
	lastVector  []float64
}

func (f *fakeChunkStore) FetchOffenceByID(ctx context.Context, offenceID string) (*sentencing.OffenceRecord, error) {
	return nil, nil
}

func (f *fakeChunkStore) SearchOffences(ctx context.Context, query string, limit int) ([]store.ScoredOffence, error) {
	return nil, nil
}

func (f *fakeChunkStore) FetchSentencingMatrix(ctx context.Context, offenceID string) ([]sentencing.MatrixRow, error) {
	return nil, nil
}

func (f *fakeChunkStore) SearchChunksText(ctx context.Context, query string, topK int, offenceID *string) ([]store.GuidelineChunk, error) {
	f.textCalls++
	f.lastTopK = topK
	return []store.GuidelineChunk{{ChunkID: "text"}}, nil
}

func (f *fakeChunkStore) SearchChunksHybrid(ctx context.Context, query string, embedding []float64, topK int, offenceID *string) ([]store.GuidelineChunk, error) {
	f.hybridCalls++
	f.lastTopK = topK
	f.lastVector = embedding
	return []store.GuidelineChunk{{ChunkID: "hybrid"}}, nil
}

func (f *fakeChunkStore) StoreCalculationAudit(ctx context.Context, offenceID string, requestPayload, resultPayload any) error {
	return nil
}

type staticEmbedder struct {
	vector []float64
	err    error
}

func (e staticEmbedder) Embed(ctx context.Context, query string) ([]float64, error) {
	return e.vector, e.err
}

func TestSearchUsesHybridWhenEmbeddingSucceeds(t *testing.T) {
	fs := &fakeChunkStore{}
	svc := NewService(ServiceConfig{
		Store:              fs,
		Embedder:           staticEmbedder{vector: []float64{0.1, 0.2}},
		EnableVectorSearch: true,
	})

	got, err := svc.Search(context.Background(), "custody threshold", nil, 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if fs.hybridCalls != 1 || fs.textCalls != 0 {
		t.Fatalf("expected hybrid path, got hybrid=%d text=%d", fs.hybridCalls, fs.textCalls)
	}
	if got[0].ChunkID != "hybrid" {
		t.Fatalf("unexpected result %+v", got)
	}
	if fs.lastTopK != 6 {
		t.Fatalf("default top_k: got %d want 6", fs.lastTopK)
	}
}

func TestSearchFallsBackOnEmbedFailure(t *testing.T) {
	fs := &fakeChunkStore{}
	svc := NewService(ServiceConfig{
		Store:              fs,
		Embedder:           staticEmbedder{err: context.DeadlineExceeded},
		EnableVectorSearch: true,
	})

	got, err := svc.Search(context.Background(), "q", nil, 3)
	if err != nil {
		t.Fatalf("fallback must not error: %v", err)
	}
	if fs.textCalls != 1 || fs.hybridCalls != 0 {
		t.Fatalf("expected lexical fallback, got hybrid=%d text=%d", fs.hybridCalls, fs.textCalls)
	}
	if got[0].ChunkID != "text" || fs.lastTopK != 3 {
		t.Fatalf("unexpected fallback result %+v top_k=%d", got, fs.lastTopK)
	}
}

func TestSearchLexicalWhenVectorDisabledOrNoEmbedder(t *testing.T) {
	fs := &fakeChunkStore{}
	svc := NewService(ServiceConfig{Store: fs, Embedder: staticEmbedder{vector: []float64{1}}, EnableVectorSearch: false})
	if _, err := svc.Search(context.Background(), "q", nil, 0); err != nil {
		t.Fatalf("search: %v", err)
	}
	if fs.textCalls != 1 {
		t.Fatal("vector disabled must use lexical path")
	}

	fs2 := &fakeChunkStore{}
	svc2 := NewService(ServiceConfig{Store: fs2, EnableVectorSearch: true})
	if _, err := svc2.Search(context.Background(), "q", nil, 0); err != nil {
		t.Fatalf("search: %v", err)
	}
	if fs2.textCalls != 1 {
		t.Fatal("nil embedder must use lexical path")
	}
}

func TestSearchClampsTopK(t *testing.T) {
	fs := &fakeChunkStore{}
	svc := NewService(ServiceConfig{Store: fs})
	if _, err := svc.Search(context.Background(), "q", nil, 50); err != nil {
		t.Fatalf("search: %v", err)
	}
	if fs.lastTopK != 20 {
		t.Fatalf("top_k clamp: got %d want 20", fs.lastTopK)
	}
}

func TestOpenAIEmbedderRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing auth header")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"embedding":[0.25,0.5]}]}`))
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(OpenAIEmbedderConfig{APIKey: "test-key", BaseURL: srv.URL})
	got, err := e.Embed(context.Background(), "custody threshold")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(got) != 2 || got[0] != 0.25 || got[1] != 0.5 {
		t.Fatalf("unexpected vector %v", got)
	}
}

func TestOpenAIEmbedderNon200IsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(OpenAIEmbedderConfig{APIKey: "k", BaseURL: srv.URL})
	if _, err := e.Embed(context.Background(), "q"); err == nil {
		t.Fatal("expected error on non-200")
	}
}

func TestOpenAIEmbedderEmptyDataIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(OpenAIEmbedderConfig{APIKey: "k", BaseURL: srv.URL})
	if _, err := e.Embed(context.Background(), "q"); err == nil {
		t.Fatal("expected error on empty data")
	}
}
