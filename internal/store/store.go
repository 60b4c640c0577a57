package store

import (
	"context"
	"time"

	"github.com/kennyhq/kenny-memory/internal/model"
)

// Store exposes persistence operations required by services.
// Implementations live under internal/store/<driver>/ (postgres, sqlite).
type Store interface {
	Conversations() Conversations
	Turns() Turns
	Memories() Memories
	Patterns() Patterns
	Analytics() Analytics
}

type Conversations interface {
	Create(ctx context.Context, c *model.Conversation) (*model.Conversation, error)
	GetBySessionID(ctx context.Context, sessionID string) (*model.Conversation, error)
	// DeactivateInactiveSince flips the active flag off for every active
	// conversation whose last activity predates the cutoff and returns the
	// session ids it deactivated, so callers can drop cached resolutions.
	// Soft delete only.
	DeactivateInactiveSince(ctx context.Context, cutoff time.Time) ([]string, error)
}

type Turns interface {
	// Append inserts one turn and, in the same transaction, bumps the parent
	// conversation's turn count, last activity and update time. A duplicate
	// (conversation, turn number) pair fails with model.ErrConflict; an
	// unknown conversation fails with model.ErrForeignKey. Neither failure
	// leaves a partial row behind.
	Append(ctx context.Context, t *model.Turn) (*model.Turn, error)

	// Recent returns the newest turns for a conversation ordered by
	// descending turn number.
	Recent(ctx context.Context, conversationID string, limit int) ([]*model.Turn, error)

	// SearchBySimilarity returns turns across all of the user's
	// conversations whose embedding distance to the query is below
	// (1 - threshold), nearest first. Read-only.
	SearchBySimilarity(ctx context.Context, userID string, query []float32, threshold float64, limit int) ([]*model.TurnMatch, error)
}

type Memories interface {
	Create(ctx context.Context, m *model.Memory) (*model.Memory, error)

	// ListByUser returns active memories most-recently-accessed first,
	// ties broken by descending confidence. A nil kind means all kinds.
	ListByUser(ctx context.Context, userID string, kind *model.MemoryKind, limit int) ([]*model.Memory, error)

	// SearchAndTouch finds active memories within (1 - threshold) cosine
	// distance of the query, nearest first, capped at limit. For exactly
	// that matched set it increments access_count and stamps last_accessed.
	// Touched set and returned set are identical, and the whole operation
	// is one atomic transaction.
	SearchAndTouch(ctx context.Context, userID string, query []float32, threshold float64, limit int) ([]*model.MemoryMatch, error)

	// DeactivateStale flips the active flag off for memories older than
	// cutoff whose confidence is below confidenceFloor and whose access
	// count is below accessFloor. All three conditions must hold.
	DeactivateStale(ctx context.Context, cutoff time.Time, confidenceFloor float64, accessFloor int) (int, error)
}

type Patterns interface {
	// Upsert inserts the pattern or, when one exists for the same
	// (user, type) pair, replaces data and confidence, increments the
	// sample size by one and refreshes update_time. Single atomic upsert.
	Upsert(ctx context.Context, p *model.Pattern) (*model.Pattern, error)
	ListByUser(ctx context.Context, userID string) ([]*model.Pattern, error)
}

type Analytics interface {
	Insert(ctx context.Context, e *model.AnalyticsEvent) (*model.AnalyticsEvent, error)
}
