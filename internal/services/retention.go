package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/kennyhq/kenny-memory/internal/model"
	"github.com/kennyhq/kenny-memory/internal/sessioncache"
	"github.com/kennyhq/kenny-memory/internal/store"
)

// A memory older than the sweep cutoff survives when it is either
// confident or in use. Only the conjunction of staleness, low confidence
// and low access count deactivates it.
const (
	memoryConfidenceFloor = 0.5
	memoryAccessFloor     = 3
)

// RetentionService runs the on-demand soft-delete sweep. There is no
// background scheduler; callers decide when to sweep.
type RetentionService struct {
	store    store.Store
	sessions *sessioncache.Cache
	log      zerolog.Logger
}

func NewRetentionService(s store.Store, sessions *sessioncache.Cache, log zerolog.Logger) *RetentionService {
	return &RetentionService{store: s, sessions: sessions, log: log}
}

// Sweep deactivates conversations idle longer than age and memories that
// are stale, low-confidence and rarely accessed. Rows are flagged, never
// deleted. Swept sessions are evicted from the cache so they are not
// served as active until the TTL lapses.
func (s *RetentionService) Sweep(ctx context.Context, age time.Duration) (*model.SweepResult, error) {
	if age <= 0 {
		return nil, fmt.Errorf("%w: sweep age must be positive", model.ErrValidation)
	}
	cutoff := time.Now().Add(-age)

	sweptSessions, err := s.store.Conversations().DeactivateInactiveSince(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("sweep conversations: %w", err)
	}
	if s.sessions != nil {
		for _, sessionID := range sweptSessions {
			s.sessions.Invalidate(sessionID)
		}
	}
	mems, err := s.store.Memories().DeactivateStale(ctx, cutoff, memoryConfidenceFloor, memoryAccessFloor)
	if err != nil {
		return nil, fmt.Errorf("sweep memories: %w", err)
	}

	s.log.Info().
		Time("cutoff", cutoff).
		Int("conversations_deactivated", len(sweptSessions)).
		Int("memories_deactivated", mems).
		Msg("retention sweep finished")

	return &model.SweepResult{
		ConversationsDeactivated: len(sweptSessions),
		MemoriesDeactivated:      mems,
	}, nil
}
