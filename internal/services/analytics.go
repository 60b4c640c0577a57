package services

import (
	"context"
	"fmt"

	"github.com/kennyhq/kenny-memory/internal/model"
	"github.com/kennyhq/kenny-memory/internal/store"
)

// AnalyticsService records per-turn metric observations.
type AnalyticsService struct {
	store store.Store
}

func NewAnalyticsService(s store.Store) *AnalyticsService {
	return &AnalyticsService{store: s}
}

func (s *AnalyticsService) RecordEvent(ctx context.Context, e *model.AnalyticsEvent) (*model.AnalyticsEvent, error) {
	if e.ConversationID == "" {
		return nil, fmt.Errorf("%w: conversationId is required", model.ErrValidation)
	}
	if e.Name == "" {
		return nil, fmt.Errorf("%w: metric name is required", model.ErrValidation)
	}
	return s.store.Analytics().Insert(ctx, e)
}
