package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/kennyhq/kenny-memory/internal/embeddings"
	"github.com/kennyhq/kenny-memory/internal/model"
	"github.com/kennyhq/kenny-memory/internal/sessioncache"
	"github.com/kennyhq/kenny-memory/internal/store"
)

const (
	defaultSearchThreshold = 0.7
	defaultSearchLimit     = 10
	maxSearchLimit         = 100
	defaultRecentTurns     = 5
	maxRecentTurns         = 50
)

// ConversationService orchestrates session, turn and conversation-search
// use cases. Session-to-conversation resolution goes through the cache;
// the store is keyed by conversation id.
type ConversationService struct {
	store    store.Store
	sessions *sessioncache.Cache
	embedder embeddings.EmbeddingProvider
}

func NewConversationService(s store.Store, sessions *sessioncache.Cache, emb embeddings.EmbeddingProvider) *ConversationService {
	return &ConversationService{store: s, sessions: sessions, embedder: emb}
}

func (s *ConversationService) CreateConversation(ctx context.Context, c *model.Conversation) (*model.Conversation, error) {
	if c.SessionID == "" {
		return nil, fmt.Errorf("%w: sessionId is required", model.ErrValidation)
	}
	if c.UserID == "" {
		return nil, fmt.Errorf("%w: userId is required", model.ErrValidation)
	}
	created, err := s.store.Conversations().Create(ctx, c)
	if err != nil {
		return nil, err
	}
	if s.sessions != nil {
		s.sessions.Put(created)
	}
	return created, nil
}

func (s *ConversationService) GetConversation(ctx context.Context, sessionID string) (*model.Conversation, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: sessionId is required", model.ErrValidation)
	}
	return s.resolve(ctx, sessionID)
}

// AppendTurn records one exchange on an existing session. The turn number
// is caller-assigned; a duplicate fails with ErrConflict and changes
// nothing.
func (s *ConversationService) AppendTurn(ctx context.Context, sessionID string, t *model.Turn) (*model.Turn, error) {
	if t.UserMessage == "" {
		return nil, fmt.Errorf("%w: userMessage is required", model.ErrValidation)
	}
	if t.TurnNumber < 1 {
		return nil, fmt.Errorf("%w: turnNumber must be positive", model.ErrValidation)
	}
	if n := len(t.UserEmbedding); n != 0 && n != model.TurnEmbeddingDim {
		return nil, fmt.Errorf("%w: turn embedding has %d dimensions, want %d",
			model.ErrDimensionMismatch, n, model.TurnEmbeddingDim)
	}

	conv, err := s.resolve(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	t.ConversationID = conv.ConversationID

	appended, err := s.store.Turns().Append(ctx, t)
	if err != nil {
		return nil, err
	}
	if s.sessions != nil {
		refreshed := *conv
		refreshed.TurnCount++
		refreshed.LastActivity = appended.CreationTime
		s.sessions.Put(&refreshed)
	}
	return appended, nil
}

// RecentContext returns the last turns of a session in chronological
// order. An unknown session yields an empty window, not an error.
func (s *ConversationService) RecentContext(ctx context.Context, sessionID string, limit int) ([]*model.Turn, error) {
	if limit <= 0 {
		limit = defaultRecentTurns
	}
	if limit > maxRecentTurns {
		limit = maxRecentTurns
	}
	conv, err := s.resolve(ctx, sessionID)
	if errors.Is(err, model.ErrNotFound) {
		return []*model.Turn{}, nil
	}
	if err != nil {
		return nil, err
	}
	turns, err := s.store.Turns().Recent(ctx, conv.ConversationID, limit)
	if err != nil {
		return nil, err
	}
	// Newest-first from the store; flip to reading order.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// SearchConversations finds semantically similar turns across all of the
// user's conversations. A caller-supplied embedding wins; otherwise the
// query text is embedded server-side.
func (s *ConversationService) SearchConversations(ctx context.Context, userID, queryText string, queryVec []float32, threshold float64, limit int) ([]*model.TurnMatch, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: userId is required", model.ErrValidation)
	}
	vec, err := s.resolveQueryVector(ctx, queryText, queryVec, model.TurnEmbeddingDim)
	if err != nil {
		return nil, err
	}
	threshold, limit, err = normalizeSearch(threshold, limit)
	if err != nil {
		return nil, err
	}
	return s.store.Turns().SearchBySimilarity(ctx, userID, vec, threshold, limit)
}

func (s *ConversationService) resolve(ctx context.Context, sessionID string) (*model.Conversation, error) {
	if s.sessions != nil {
		if conv, ok := s.sessions.Get(sessionID); ok {
			return conv, nil
		}
	}
	conv, err := s.store.Conversations().GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.sessions != nil {
		s.sessions.Put(conv)
	}
	return conv, nil
}

func (s *ConversationService) resolveQueryVector(ctx context.Context, text string, vec []float32, wantDim int) ([]float32, error) {
	if len(vec) > 0 {
		if len(vec) != wantDim {
			return nil, fmt.Errorf("%w: query embedding has %d dimensions, want %d",
				model.ErrDimensionMismatch, len(vec), wantDim)
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
	if len(out) != wantDim {
		return nil, fmt.Errorf("%w: embedder returned %d dimensions, want %d",
			model.ErrDimensionMismatch, len(out), wantDim)
	}
	return out, nil
}

func normalizeSearch(threshold float64, limit int) (float64, int, error) {
	if threshold == 0 {
		threshold = defaultSearchThreshold
	}
	if threshold < 0 || threshold > 1 {
		return 0, 0, fmt.Errorf("%w: threshold must be within [0,1]", model.ErrValidation)
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	return threshold, limit, nil
}
