package services

import (
	"context"
	"fmt"

	"github.com/kennyhq/kenny-memory/internal/embeddings"
	"github.com/kennyhq/kenny-memory/internal/model"
	"github.com/kennyhq/kenny-memory/internal/store"
)

const (
	defaultMemoryListLimit = 50
	maxMemoryListLimit     = 200
)

// MemoryService orchestrates long-term memory use cases. Memory
// embeddings come from a different model than turn embeddings and the
// two vector spaces are never mixed.
type MemoryService struct {
	store    store.Store
	embedder embeddings.EmbeddingProvider
}

func NewMemoryService(s store.Store, emb embeddings.EmbeddingProvider) *MemoryService {
	return &MemoryService{store: s, embedder: emb}
}

// CreateMemory stores one distilled fact. When the caller does not supply
// an embedding, the content is embedded server-side.
func (s *MemoryService) CreateMemory(ctx context.Context, m *model.Memory) (*model.Memory, error) {
	if m.UserID == "" {
		return nil, fmt.Errorf("%w: userId is required", model.ErrValidation)
	}
	if m.Content == "" {
		return nil, fmt.Errorf("%w: content is required", model.ErrValidation)
	}
	if !m.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown memory kind %q", model.ErrValidation, m.Kind)
	}
	if m.Confidence < 0 || m.Confidence > 1 {
		return nil, fmt.Errorf("%w: confidence must be within [0,1]", model.ErrValidation)
	}
	if n := len(m.Embedding); n != 0 && n != model.MemoryEmbeddingDim {
		return nil, fmt.Errorf("%w: memory embedding has %d dimensions, want %d",
			model.ErrDimensionMismatch, n, model.MemoryEmbeddingDim)
	}
	if len(m.Embedding) == 0 && s.embedder != nil {
		vec, err := s.embedder.Embed(ctx, m.Content)
		if err != nil {
			return nil, fmt.Errorf("embed memory content: %w", err)
		}
		if len(vec) != model.MemoryEmbeddingDim {
			return nil, fmt.Errorf("%w: embedder returned %d dimensions, want %d",
				model.ErrDimensionMismatch, len(vec), model.MemoryEmbeddingDim)
		}
		m.Embedding = vec
	}
	return s.store.Memories().Create(ctx, m)
}

// GetMemories lists a user's active memories, optionally filtered by kind.
func (s *MemoryService) GetMemories(ctx context.Context, userID, kind string, limit int) ([]*model.Memory, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: userId is required", model.ErrValidation)
	}
	var kindFilter *model.MemoryKind
	if kind != "" {
		k := model.MemoryKind(kind)
		if !k.Valid() {
			return nil, fmt.Errorf("%w: unknown memory kind %q", model.ErrValidation, kind)
		}
		kindFilter = &k
	}
	if limit <= 0 {
		limit = defaultMemoryListLimit
	}
	if limit > maxMemoryListLimit {
		limit = maxMemoryListLimit
	}
	return s.store.Memories().ListByUser(ctx, userID, kindFilter, limit)
}

// SearchMemories runs the access-tracking similarity search. Every
// returned memory has had its access count incremented by this call.
func (s *MemoryService) SearchMemories(ctx context.Context, userID, queryText string, queryVec []float32, threshold float64, limit int) ([]*model.MemoryMatch, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: userId is required", model.ErrValidation)
	}
	vec, err := s.resolveQueryVector(ctx, queryText, queryVec)
	if err != nil {
		return nil, err
	}
	threshold, limit, err = normalizeSearch(threshold, limit)
	if err != nil {
		return nil, err
	}
	return s.store.Memories().SearchAndTouch(ctx, userID, vec, threshold, limit)
}

func (s *MemoryService) resolveQueryVector(ctx context.Context, text string, vec []float32) ([]float32, error) {
	if len(vec) > 0 {
		if len(vec) != model.MemoryEmbeddingDim {
			return nil, fmt.Errorf("%w: query embedding has %d dimensions, want %d",
				model.ErrDimensionMismatch, len(vec), model.MemoryEmbeddingDim)
		}
		return vec, nil
	}
	if text == "" {
		return nil, fmt.Errorf("%w: either query text or query embedding is required", model.ErrValidation)
	}
	if s.embedder == nil {
		return nil, fmt.Errorf("%w: no embedder configured for query text", model.ErrValidation)
	}
	out, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(out) != model.MemoryEmbeddingDim {
		return nil, fmt.Errorf("%w: embedder returned %d dimensions, want %d",
			model.ErrDimensionMismatch, len(out), model.MemoryEmbeddingDim)
	}
	return out, nil
}
