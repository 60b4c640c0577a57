package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/kennyhq/kenny-memory/internal/model"
	"github.com/kennyhq/kenny-memory/internal/sessioncache"
	"github.com/kennyhq/kenny-memory/internal/store"
)

// --- Fakes ---

type fakeEmbedder struct {
	dim   int
	calls int
	err   error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return make([]float32, f.dim), nil
}

type fakeStore struct {
	conversations fakeConversations
	turns         fakeTurns
	memories      fakeMemories
	patterns      fakePatterns
	analytics     fakeAnalytics
}

func (f *fakeStore) Conversations() store.Conversations { return &f.conversations }
func (f *fakeStore) Turns() store.Turns                 { return &f.turns }
func (f *fakeStore) Memories() store.Memories           { return &f.memories }
func (f *fakeStore) Patterns() store.Patterns           { return &f.patterns }
func (f *fakeStore) Analytics() store.Analytics         { return &f.analytics }

type fakeConversations struct {
	bySession     map[string]*model.Conversation
	sweptSessions []string
	sweepCut      time.Time
}

func (f *fakeConversations) Create(ctx context.Context, c *model.Conversation) (*model.Conversation, error) {
	if f.bySession == nil {
		f.bySession = map[string]*model.Conversation{}
	}
	if _, ok := f.bySession[c.SessionID]; ok {
		return nil, model.ErrConflict
	}
	out := *c
	out.ConversationID = "conv-" + c.SessionID
	out.Active = true
	f.bySession[c.SessionID] = &out
	return &out, nil
}

func (f *fakeConversations) GetBySessionID(ctx context.Context, sessionID string) (*model.Conversation, error) {
	if c, ok := f.bySession[sessionID]; ok {
		return c, nil
	}
	return nil, model.ErrNotFound
}

func (f *fakeConversations) DeactivateInactiveSince(ctx context.Context, cutoff time.Time) ([]string, error) {
	f.sweepCut = cutoff
	return f.sweptSessions, nil
}

type fakeTurns struct {
	appended   []*model.Turn
	recent     []*model.Turn
	recentArgs struct {
		conversationID string
		limit          int
	}
	searchVec []float32
}

func (f *fakeTurns) Append(ctx context.Context, t *model.Turn) (*model.Turn, error) {
	out := *t
	out.TurnID = "t-1"
	out.CreationTime = time.Now()
	f.appended = append(f.appended, &out)
	return &out, nil
}

func (f *fakeTurns) Recent(ctx context.Context, conversationID string, limit int) ([]*model.Turn, error) {
	f.recentArgs.conversationID = conversationID
	f.recentArgs.limit = limit
	return f.recent, nil
}

func (f *fakeTurns) SearchBySimilarity(ctx context.Context, userID string, query []float32, threshold float64, limit int) ([]*model.TurnMatch, error) {
	f.searchVec = query
	return nil, nil
}

type fakeMemories struct {
	created   []*model.Memory
	searchVec []float32
	swept     int
	sweepArgs struct {
		confidenceFloor float64
		accessFloor     int
	}
}

func (f *fakeMemories) Create(ctx context.Context, m *model.Memory) (*model.Memory, error) {
	out := *m
	out.MemoryID = "m-1"
	f.created = append(f.created, &out)
	return &out, nil
}

func (f *fakeMemories) ListByUser(ctx context.Context, userID string, kind *model.MemoryKind, limit int) ([]*model.Memory, error) {
	return nil, nil
}

func (f *fakeMemories) SearchAndTouch(ctx context.Context, userID string, query []float32, threshold float64, limit int) ([]*model.MemoryMatch, error) {
	f.searchVec = query
	return nil, nil
}

func (f *fakeMemories) DeactivateStale(ctx context.Context, cutoff time.Time, confidenceFloor float64, accessFloor int) (int, error) {
	f.sweepArgs.confidenceFloor = confidenceFloor
	f.sweepArgs.accessFloor = accessFloor
	return f.swept, nil
}

type fakePatterns struct{ upserts []*model.Pattern }

func (f *fakePatterns) Upsert(ctx context.Context, p *model.Pattern) (*model.Pattern, error) {
	out := *p
	out.PatternID = "p-1"
	out.SampleSize = len(f.upserts) + 1
	f.upserts = append(f.upserts, &out)
	return &out, nil
}

func (f *fakePatterns) ListByUser(ctx context.Context, userID string) ([]*model.Pattern, error) {
	return f.upserts, nil
}

type fakeAnalytics struct{ events []*model.AnalyticsEvent }

func (f *fakeAnalytics) Insert(ctx context.Context, e *model.AnalyticsEvent) (*model.AnalyticsEvent, error) {
	out := *e
	out.EventID = "e-1"
	f.events = append(f.events, &out)
	return &out, nil
}

// --- Conversation service ---

func TestAppendTurnRejectsWrongDimension(t *testing.T) {
	fs := &fakeStore{}
	svc := NewConversationService(fs, nil, nil)
	if _, err := svc.CreateConversation(context.Background(), &model.Conversation{SessionID: "s1", UserID: "u1"}); err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	_, err := svc.AppendTurn(context.Background(), "s1", &model.Turn{
		TurnNumber: 1, UserMessage: "hi", UserEmbedding: make([]float32, 128),
	})
	if !errors.Is(err, model.ErrDimensionMismatch) {
		t.Fatalf("want ErrDimensionMismatch, got %v", err)
	}
	if len(fs.turns.appended) != 0 {
		t.Fatalf("turn reached the store despite bad dimension")
	}
}

func TestAppendTurnUnknownSession(t *testing.T) {
	svc := NewConversationService(&fakeStore{}, nil, nil)
	_, err := svc.AppendTurn(context.Background(), "missing", &model.Turn{TurnNumber: 1, UserMessage: "hi"})
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestRecentContextUnknownSessionIsEmpty(t *testing.T) {
	svc := NewConversationService(&fakeStore{}, nil, nil)
	turns, err := svc.RecentContext(context.Background(), "missing", 5)
	if err != nil {
		t.Fatalf("recent context: %v", err)
	}
	if len(turns) != 0 {
		t.Fatalf("want empty window, got %d turns", len(turns))
	}
}

func TestRecentContextChronologicalOrder(t *testing.T) {
	fs := &fakeStore{}
	fs.turns.recent = []*model.Turn{
		{TurnNumber: 3}, {TurnNumber: 2}, {TurnNumber: 1},
	}
	svc := NewConversationService(fs, nil, nil)
	if _, err := svc.CreateConversation(context.Background(), &model.Conversation{SessionID: "s1", UserID: "u1"}); err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	turns, err := svc.RecentContext(context.Background(), "s1", 3)
	if err != nil {
		t.Fatalf("recent context: %v", err)
	}
	for i, want := range []int{1, 2, 3} {
		if turns[i].TurnNumber != want {
			t.Fatalf("turn %d: want number %d, got %d", i, want, turns[i].TurnNumber)
		}
	}
}

func TestRecentContextDefaultLimit(t *testing.T) {
	fs := &fakeStore{}
	svc := NewConversationService(fs, nil, nil)
	if _, err := svc.CreateConversation(context.Background(), &model.Conversation{SessionID: "s1", UserID: "u1"}); err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	if _, err := svc.RecentContext(context.Background(), "s1", 0); err != nil {
		t.Fatalf("recent context: %v", err)
	}
	if fs.turns.recentArgs.limit != defaultRecentTurns {
		t.Fatalf("want default limit %d, got %d", defaultRecentTurns, fs.turns.recentArgs.limit)
	}
}

func TestSearchConversationsEmbedsQueryText(t *testing.T) {
	fs := &fakeStore{}
	emb := &fakeEmbedder{dim: model.TurnEmbeddingDim}
	svc := NewConversationService(fs, nil, emb)

	if _, err := svc.SearchConversations(context.Background(), "u1", "coffee plans", nil, 0, 0); err != nil {
		t.Fatalf("search: %v", err)
	}
	if emb.calls != 1 {
		t.Fatalf("embedder calls: want 1, got %d", emb.calls)
	}
	if len(fs.turns.searchVec) != model.TurnEmbeddingDim {
		t.Fatalf("query vector dims: want %d, got %d", model.TurnEmbeddingDim, len(fs.turns.searchVec))
	}
}

func TestSearchConversationsCallerVectorSkipsEmbedder(t *testing.T) {
	fs := &fakeStore{}
	emb := &fakeEmbedder{dim: model.TurnEmbeddingDim}
	svc := NewConversationService(fs, nil, emb)

	vec := make([]float32, model.TurnEmbeddingDim)
	if _, err := svc.SearchConversations(context.Background(), "u1", "", vec, 0.8, 5); err != nil {
		t.Fatalf("search: %v", err)
	}
	if emb.calls != 0 {
		t.Fatalf("embedder should not run when the caller supplies a vector")
	}
}

func TestSearchConversationsThresholdOutOfRange(t *testing.T) {
	svc := NewConversationService(&fakeStore{}, nil, nil)
	vec := make([]float32, model.TurnEmbeddingDim)
	if _, err := svc.SearchConversations(context.Background(), "u1", "", vec, 1.5, 5); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("want ErrValidation, got %v", err)
	}
}

// --- Memory service ---

func TestCreateMemoryValidation(t *testing.T) {
	fs := &fakeStore{}
	svc := NewMemoryService(fs, nil)

	cases := []struct {
		name string
		mem  *model.Memory
		want error
	}{
		{"missing user", &model.Memory{Kind: model.MemoryKindFact, Content: "x"}, model.ErrValidation},
		{"missing content", &model.Memory{UserID: "u1", Kind: model.MemoryKindFact}, model.ErrValidation},
		{"bad kind", &model.Memory{UserID: "u1", Kind: "opinion", Content: "x"}, model.ErrValidation},
		{"bad dims", &model.Memory{UserID: "u1", Kind: model.MemoryKindFact, Content: "x",
			Embedding: make([]float32, 768)}, model.ErrDimensionMismatch},
	}
	for _, tc := range cases {
		if _, err := svc.CreateMemory(context.Background(), tc.mem); !errors.Is(err, tc.want) {
			t.Fatalf("%s: want %v, got %v", tc.name, tc.want, err)
		}
	}
	if len(fs.memories.created) != 0 {
		t.Fatalf("invalid memory reached the store")
	}
}

func TestCreateMemoryEmbedsContent(t *testing.T) {
	fs := &fakeStore{}
	emb := &fakeEmbedder{dim: model.MemoryEmbeddingDim}
	svc := NewMemoryService(fs, emb)

	if _, err := svc.CreateMemory(context.Background(), &model.Memory{
		UserID: "u1", Kind: model.MemoryKindPreference, Content: "prefers tea",
	}); err != nil {
		t.Fatalf("create memory: %v", err)
	}
	if emb.calls != 1 {
		t.Fatalf("embedder calls: want 1, got %d", emb.calls)
	}
	if len(fs.memories.created) != 1 || len(fs.memories.created[0].Embedding) != model.MemoryEmbeddingDim {
		t.Fatalf("stored memory missing embedding")
	}
}

func TestGetMemoriesRejectsUnknownKind(t *testing.T) {
	svc := NewMemoryService(&fakeStore{}, nil)
	if _, err := svc.GetMemories(context.Background(), "u1", "opinion", 10); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("want ErrValidation, got %v", err)
	}
}

func TestSearchMemoriesDimensionCheck(t *testing.T) {
	svc := NewMemoryService(&fakeStore{}, nil)
	vec := make([]float32, model.TurnEmbeddingDim) // wrong space
	if _, err := svc.SearchMemories(context.Background(), "u1", "", vec, 0.7, 10); !errors.Is(err, model.ErrDimensionMismatch) {
		t.Fatalf("want ErrDimensionMismatch, got %v", err)
	}
}

// --- Pattern service ---

func TestUpsertPatternValidation(t *testing.T) {
	svc := NewPatternService(&fakeStore{})
	_, err := svc.UpsertPattern(context.Background(), &model.Pattern{UserID: "u1", PatternType: "peak_hours"})
	if !errors.Is(err, model.ErrValidation) {
		t.Fatalf("want ErrValidation for empty data, got %v", err)
	}
	_, err = svc.UpsertPattern(context.Background(), &model.Pattern{
		UserID: "u1", PatternType: "peak_hours",
		Data: map[string]interface{}{"hour": 9}, Confidence: 1.2,
	})
	if !errors.Is(err, model.ErrValidation) {
		t.Fatalf("want ErrValidation for confidence > 1, got %v", err)
	}
}

// --- Retention service ---

func TestSweepRejectsNonPositiveAge(t *testing.T) {
	svc := NewRetentionService(&fakeStore{}, nil, zerolog.Nop())
	for _, age := range []time.Duration{0, -time.Hour} {
		if _, err := svc.Sweep(context.Background(), age); !errors.Is(err, model.ErrValidation) {
			t.Fatalf("age %v: want ErrValidation, got %v", age, err)
		}
	}
}

func TestSweepPassesFloorsAndCutoff(t *testing.T) {
	fs := &fakeStore{}
	fs.conversations.sweptSessions = []string{"s1", "s2", "s3", "s4"}
	fs.memories.swept = 2
	svc := NewRetentionService(fs, nil, zerolog.Nop())

	res, err := svc.Sweep(context.Background(), 90*24*time.Hour)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res.ConversationsDeactivated != 4 || res.MemoriesDeactivated != 2 {
		t.Fatalf("sweep result: %+v", res)
	}
	if fs.memories.sweepArgs.confidenceFloor != memoryConfidenceFloor ||
		fs.memories.sweepArgs.accessFloor != memoryAccessFloor {
		t.Fatalf("sweep floors: %+v", fs.memories.sweepArgs)
	}
	wantCut := time.Now().Add(-90 * 24 * time.Hour)
	if d := fs.conversations.sweepCut.Sub(wantCut); d < -time.Minute || d > time.Minute {
		t.Fatalf("sweep cutoff drifted: %v", fs.conversations.sweepCut)
	}
}

func TestSweepEvictsDeactivatedSessions(t *testing.T) {
	sessions, err := sessioncache.New(64, time.Minute)
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	defer sessions.Close()

	sessions.Put(&model.Conversation{ConversationID: "c1", SessionID: "stale-session", Active: true})
	sessions.Put(&model.Conversation{ConversationID: "c2", SessionID: "live-session", Active: true})
	sessions.Wait()

	fs := &fakeStore{}
	fs.conversations.sweptSessions = []string{"stale-session"}
	svc := NewRetentionService(fs, sessions, zerolog.Nop())

	if _, err := svc.Sweep(context.Background(), time.Hour); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	sessions.Wait()
	if _, ok := sessions.Get("stale-session"); ok {
		t.Fatalf("swept session still cached")
	}
	if _, ok := sessions.Get("live-session"); !ok {
		t.Fatalf("untouched session evicted")
	}
}

// --- Analytics service ---

func TestRecordEventValidation(t *testing.T) {
	svc := NewAnalyticsService(&fakeStore{})
	if _, err := svc.RecordEvent(context.Background(), &model.AnalyticsEvent{Name: "latency"}); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("want ErrValidation, got %v", err)
	}
	if _, err := svc.RecordEvent(context.Background(), &model.AnalyticsEvent{ConversationID: "c1"}); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("want ErrValidation, got %v", err)
	}
}
