// Package retrieval serves hybrid vector/lexical search over pre-indexed
// guideline chunks, degrading to lexical-only when no embedding is available.
package retrieval

import (
	"context"
	"log"

	"github.com/courtwise/sentencing-service/internal/store"
)

const (
	defaultTopK = 6
	maxTopK     = 20
)

// Service runs guideline chunk searches. The embedder may be nil, which
// forces the lexical path.
type Service struct {
	store        store.Store
	embedder     Embedder
	defaultTopK  int
	vectorSearch bool
}

type ServiceConfig struct {
	Store              store.Store
	Embedder           Embedder
	DefaultTopK        int
	EnableVectorSearch bool
}

func NewService(cfg ServiceConfig) *Service {
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = defaultTopK
	}
	return &Service{
		store:        cfg.Store,
		embedder:     cfg.Embedder,
		defaultTopK:  cfg.DefaultTopK,
		vectorSearch: cfg.EnableVectorSearch,
	}
}

// Search retrieves the top chunks for the query. topK <= 0 selects the
// configured default; values above 20 are clamped. Embedding failures degrade
// to the lexical path instead of failing the request.
func (s *Service) Search(ctx context.Context, query string, offenceID *string, topK int) ([]store.GuidelineChunk, error) {
	k := topK
	if k <= 0 {
		k = s.defaultTopK
	}
	if k > maxTopK {
		k = maxTopK
	}

	if s.vectorSearch && s.embedder != nil {
		embedding, err := s.embedder.Embed(ctx, query)
		if err == nil {
			return s.store.SearchChunksHybrid(ctx, query, embedding, k, offenceID)
		}
		log.Printf("retrieval embed_failed err=%v", err)
	}

	return s.store.SearchChunksText(ctx, query, k, offenceID)
}
