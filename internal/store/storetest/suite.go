package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kennyhq/kenny-memory/internal/model"
	"github.com/kennyhq/kenny-memory/internal/store"
)

// Run exercises a compliance suite against a store.Store implementation.
// Implementations should provide a clean, isolated store from makeStore.
func Run(t *testing.T, makeStore func(t *testing.T) store.Store) {
	t.Helper()

	s := makeStore(t)
	ctx := context.Background()

	userID := "u-" + uuid.New().String()
	sessionID := "s-" + uuid.New().String()

	// Conversations
	conv, err := s.Conversations().Create(ctx, &model.Conversation{
		SessionID: sessionID,
		UserID:    userID,
		Metadata:  map[string]interface{}{"channel": "imessage"},
	})
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	if conv.ConversationID == "" || !conv.Active || conv.TurnCount != 0 {
		t.Fatalf("CreateConversation: unexpected result %+v", conv)
	}
	if got, err := s.Conversations().GetBySessionID(ctx, sessionID); err != nil || got.ConversationID != conv.ConversationID {
		t.Fatalf("GetBySessionID: got=%v err=%v", got, err)
	}
	if _, err := s.Conversations().GetBySessionID(ctx, "no-such-session"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("GetBySessionID missing: want ErrNotFound, got %v", err)
	}
	if _, err := s.Conversations().Create(ctx, &model.Conversation{SessionID: sessionID, UserID: userID}); !errors.Is(err, model.ErrConflict) {
		t.Fatalf("CreateConversation duplicate session: want ErrConflict, got %v", err)
	}

	// Turns: appending N turns leaves turn_count == N.
	emb1 := unitVector(model.TurnEmbeddingDim, 0)
	emb2 := unitVector(model.TurnEmbeddingDim, 1)
	t1, err := s.Turns().Append(ctx, &model.Turn{
		ConversationID: conv.ConversationID, TurnNumber: 1,
		UserMessage: "remind me to call mom", Response: "done",
		Intent: "reminder", Confidence: 0.93, UserEmbedding: emb1,
	})
	if err != nil {
		t.Fatalf("AppendTurn 1: %v", err)
	}
	if _, err := s.Turns().Append(ctx, &model.Turn{
		ConversationID: conv.ConversationID, TurnNumber: 2,
		UserMessage: "what's the weather", Response: "sunny",
		Intent: "weather", Confidence: 0.88, UserEmbedding: emb2,
	}); err != nil {
		t.Fatalf("AppendTurn 2: %v", err)
	}
	if got, _ := s.Conversations().GetBySessionID(ctx, sessionID); got.TurnCount != 2 {
		t.Fatalf("turn_count after two appends: want 2, got %d", got.TurnCount)
	}

	// Duplicate turn number is rejected and leaves the count untouched.
	if _, err := s.Turns().Append(ctx, &model.Turn{
		ConversationID: conv.ConversationID, TurnNumber: 2,
		UserMessage: "dup", Response: "dup",
	}); !errors.Is(err, model.ErrConflict) {
		t.Fatalf("AppendTurn duplicate: want ErrConflict, got %v", err)
	}
	if got, _ := s.Conversations().GetBySessionID(ctx, sessionID); got.TurnCount != 2 {
		t.Fatalf("turn_count after rejected duplicate: want 2, got %d", got.TurnCount)
	}

	// Appending to an unknown conversation is a foreign-key failure.
	if _, err := s.Turns().Append(ctx, &model.Turn{
		ConversationID: uuid.New().String(), TurnNumber: 1,
		UserMessage: "orphan", Response: "orphan",
	}); !errors.Is(err, model.ErrForeignKey) {
		t.Fatalf("AppendTurn orphan: want ErrForeignKey, got %v", err)
	}

	// Recent returns newest first and respects the limit.
	recent, err := s.Turns().Recent(ctx, conv.ConversationID, 1)
	if err != nil || len(recent) != 1 || recent[0].TurnNumber != 2 {
		t.Fatalf("Recent: got=%v err=%v", recent, err)
	}
	if recent[0].TurnID != "" && t1.TurnID == recent[0].TurnID {
		t.Fatalf("Recent returned the oldest turn first")
	}

	// Turn similarity search: a query identical to emb1 matches turn 1 with
	// similarity near 1; an orthogonal vector stays below any real floor.
	matches, err := s.Turns().SearchBySimilarity(ctx, userID, emb1, 0.5, 10)
	if err != nil {
		t.Fatalf("SearchBySimilarity: %v", err)
	}
	if len(matches) == 0 || matches[0].TurnNumber != 1 {
		t.Fatalf("SearchBySimilarity: want turn 1 first, got %v", matches)
	}
	if matches[0].Similarity < 0.99 {
		t.Fatalf("SearchBySimilarity: want self-similarity ~1, got %f", matches[0].Similarity)
	}
	if matches[0].SessionID != sessionID {
		t.Fatalf("SearchBySimilarity: want session %s, got %s", sessionID, matches[0].SessionID)
	}
	for _, m := range matches {
		if m.Similarity < 0.5 {
			t.Fatalf("SearchBySimilarity returned sub-threshold match %f", m.Similarity)
		}
	}

	// Memories
	memEmb := unitVector(model.MemoryEmbeddingDim, 0)
	farEmb := unitVector(model.MemoryEmbeddingDim, 1)
	mem, err := s.Memories().Create(ctx, &model.Memory{
		UserID: userID, Kind: model.MemoryKindPreference,
		Content: "prefers morning meetings", Embedding: memEmb,
		SourceConversationID: &conv.ConversationID,
	})
	if err != nil {
		t.Fatalf("CreateMemory: %v", err)
	}
	if mem.Confidence != 1.0 || mem.AccessCount != 0 || !mem.Active {
		t.Fatalf("CreateMemory defaults: %+v", mem)
	}
	if _, err := s.Memories().Create(ctx, &model.Memory{
		UserID: userID, Kind: model.MemoryKindFact,
		Content: "lives in Austin", Embedding: farEmb, Confidence: 0.4,
	}); err != nil {
		t.Fatalf("CreateMemory 2: %v", err)
	}

	// SearchAndTouch returns only matches above the floor and touches
	// exactly the rows it returned.
	found, err := s.Memories().SearchAndTouch(ctx, userID, memEmb, 0.7, 10)
	if err != nil {
		t.Fatalf("SearchAndTouch: %v", err)
	}
	if len(found) != 1 || found[0].MemoryID != mem.MemoryID {
		t.Fatalf("SearchAndTouch: want only %s, got %v", mem.MemoryID, found)
	}
	if found[0].Similarity < 0.99 {
		t.Fatalf("SearchAndTouch: want self-similarity ~1, got %f", found[0].Similarity)
	}

	all, err := s.Memories().ListByUser(ctx, userID, nil, 10)
	if err != nil || len(all) != 2 {
		t.Fatalf("ListByUser: n=%d err=%v", len(all), err)
	}
	for _, m := range all {
		switch m.MemoryID {
		case mem.MemoryID:
			if m.AccessCount != 1 || m.LastAccessed == nil {
				t.Fatalf("matched memory not touched: %+v", m)
			}
		default:
			if m.AccessCount != 0 || m.LastAccessed != nil {
				t.Fatalf("unmatched memory was touched: %+v", m)
			}
		}
	}

	// Kind filter narrows the listing.
	kind := model.MemoryKindFact
	facts, err := s.Memories().ListByUser(ctx, userID, &kind, 10)
	if err != nil || len(facts) != 1 || facts[0].Kind != model.MemoryKindFact {
		t.Fatalf("ListByUser kind filter: got=%v err=%v", facts, err)
	}

	// Patterns: second upsert for the same (user, type) replaces data and
	// confidence and bumps sample_size.
	p1, err := s.Patterns().Upsert(ctx, &model.Pattern{
		UserID: userID, PatternType: "peak_hours",
		Data: map[string]interface{}{"hour": float64(9)}, Confidence: 0.6,
	})
	if err != nil {
		t.Fatalf("UpsertPattern: %v", err)
	}
	if p1.SampleSize != 1 {
		t.Fatalf("UpsertPattern first: want sample_size 1, got %d", p1.SampleSize)
	}
	p2, err := s.Patterns().Upsert(ctx, &model.Pattern{
		UserID: userID, PatternType: "peak_hours",
		Data: map[string]interface{}{"hour": float64(14)}, Confidence: 0.8,
	})
	if err != nil {
		t.Fatalf("UpsertPattern second: %v", err)
	}
	if p2.SampleSize != 2 || p2.PatternID != p1.PatternID {
		t.Fatalf("UpsertPattern merge: %+v vs %+v", p1, p2)
	}
	pats, err := s.Patterns().ListByUser(ctx, userID)
	if err != nil || len(pats) != 1 {
		t.Fatalf("ListPatterns: n=%d err=%v", len(pats), err)
	}
	if pats[0].Confidence != 0.8 || pats[0].Data["hour"] != float64(14) {
		t.Fatalf("ListPatterns: second payload not kept: %+v", pats[0])
	}

	// Analytics
	ev, err := s.Analytics().Insert(ctx, &model.AnalyticsEvent{
		ConversationID: conv.ConversationID, TurnID: &t1.TurnID,
		Name: "response_latency", Value: 412,
		Data: map[string]interface{}{"agent": "calendar"},
	})
	if err != nil || ev.EventID == "" {
		t.Fatalf("InsertEvent: got=%v err=%v", ev, err)
	}
	if _, err := s.Analytics().Insert(ctx, &model.AnalyticsEvent{
		ConversationID: uuid.New().String(), Name: "orphan", Value: 1,
	}); !errors.Is(err, model.ErrForeignKey) {
		t.Fatalf("InsertEvent orphan: want ErrForeignKey, got %v", err)
	}

	// Retention sweep. Nothing qualifies with a cutoff in the past.
	past := time.Now().Add(-24 * time.Hour)
	if swept, err := s.Conversations().DeactivateInactiveSince(ctx, past); err != nil || len(swept) != 0 {
		t.Fatalf("DeactivateInactiveSince past cutoff: swept=%v err=%v", swept, err)
	}
	// With a future cutoff every active conversation is stale, and the
	// swept session ids are reported back.
	future := time.Now().Add(time.Hour)
	swept, err := s.Conversations().DeactivateInactiveSince(ctx, future)
	if err != nil || len(swept) < 1 {
		t.Fatalf("DeactivateInactiveSince future cutoff: swept=%v err=%v", swept, err)
	}
	foundSession := false
	for _, id := range swept {
		if id == sessionID {
			foundSession = true
		}
	}
	if !foundSession {
		t.Fatalf("DeactivateInactiveSince did not report session %s: %v", sessionID, swept)
	}
	if got, _ := s.Conversations().GetBySessionID(ctx, sessionID); got.Active {
		t.Fatalf("conversation still active after sweep")
	}
	// Sweeping again is a no-op; soft delete does not repeat.
	if swept, err := s.Conversations().DeactivateInactiveSince(ctx, future); err != nil || len(swept) != 0 {
		t.Fatalf("DeactivateInactiveSince idempotent: swept=%v err=%v", swept, err)
	}

	// Memory sweep needs all three conditions. The preference memory was
	// touched (access_count 1) but has confidence 1.0, so only the
	// low-confidence, never-accessed fact qualifies.
	n, err := s.Memories().DeactivateStale(ctx, future, 0.5, 3)
	if err != nil || n != 1 {
		t.Fatalf("DeactivateStale: n=%d err=%v", n, err)
	}
	if left, _ := s.Memories().ListByUser(ctx, userID, nil, 10); len(left) != 1 || left[0].MemoryID != mem.MemoryID {
		t.Fatalf("DeactivateStale survivors: %v", left)
	}
	// High access count alone protects a low-confidence memory.
	if n, err := s.Memories().DeactivateStale(ctx, future, 2.0, 0); err != nil || n != 0 {
		t.Fatalf("DeactivateStale access floor 0: n=%d err=%v", n, err)
	}
}

// unitVector returns a dim-length unit vector with a 1 at axis. Distinct
// axes are orthogonal, so cosine similarity between them is exactly 0.
func unitVector(dim, axis int) []float32 {
	v := make([]float32, dim)
	v[axis%dim] = 1
	return v
}
