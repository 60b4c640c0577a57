package services

import (
	"context"
	"fmt"

	"github.com/kennyhq/kenny-memory/internal/model"
	"github.com/kennyhq/kenny-memory/internal/store"
)

// PatternService maintains aggregated behavioral statistics per user.
type PatternService struct {
	store store.Store
}

func NewPatternService(s store.Store) *PatternService {
	return &PatternService{store: s}
}

// UpsertPattern records one observation of a pattern. Data and confidence
// replace the previous values; the sample size accumulates across calls.
func (s *PatternService) UpsertPattern(ctx context.Context, p *model.Pattern) (*model.Pattern, error) {
	if p.UserID == "" {
		return nil, fmt.Errorf("%w: userId is required", model.ErrValidation)
	}
	if p.PatternType == "" {
		return nil, fmt.Errorf("%w: patternType is required", model.ErrValidation)
	}
	if len(p.Data) == 0 {
		return nil, fmt.Errorf("%w: pattern data is required", model.ErrValidation)
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		return nil, fmt.Errorf("%w: confidence must be within [0,1]", model.ErrValidation)
	}
	return s.store.Patterns().Upsert(ctx, p)
}

func (s *PatternService) GetPatterns(ctx context.Context, userID string) ([]*model.Pattern, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: userId is required", model.ErrValidation)
	}
	return s.store.Patterns().ListByUser(ctx, userID)
}
