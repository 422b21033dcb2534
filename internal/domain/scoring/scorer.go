package scoring

import (
	"context"
	"fmt"

	model "github.com/Avasam/Global-speedrunning-leaderboard/internal/domain/model"
	"github.com/Avasam/Global-speedrunning-leaderboard/pkg/logger"
)

// Source provides the leaderboard data an entry is scored against.
type Source interface {
	Leaderboard(ctx context.Context, gameID, categoryID, levelID string, attrs map[string]string) (model.Leaderboard, error)
	LevelCount(ctx context.Context, gameID string) (int, error)
}

// ScorerOption applies a configuration option to the Scorer.
type ScorerOption func(*Scorer)

// WithCalculator replaces the default DeviationModel.
func WithCalculator(c Calculator) ScorerOption {
	return func(s *Scorer) {
		if c != nil {
			s.calc = c
		}
	}
}

// WithLogger sets the logger used for per-entry debug output.
func WithLogger(l logger.Logger) ScorerOption {
	return func(s *Scorer) {
		if l != nil {
			s.log = l
		}
	}
}

// Scorer fetches an entry's leaderboard and computes its points.
type Scorer struct {
	source Source
	calc   Calculator
	log    logger.Logger
}

// NewScorer creates a scorer reading from source.
func NewScorer(source Source, opts ...ScorerOption) *Scorer {
	s := &Scorer{
		source: source,
		calc:   NewDeviationModel(),
		log:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score returns e with Points set. Level entries that earn points are
// divided by the game's level count plus one, so a full-game category and
// its levels do not overweight one game. The level count is only fetched
// in that case.
func (s *Scorer) Score(ctx context.Context, e model.Entry) (model.Entry, error) {
	lb, err := s.source.Leaderboard(ctx, e.CollectionID, e.SubCollectionID, e.ItemID, e.Attributes)
	if err != nil {
		return e, fmt.Errorf("leaderboard for run %s: %w", e.ID, err)
	}

	e.Points = s.calc.Points(lb, e.Metric)
	if e.IsItem() && e.Points > 0 {
		count, err := s.source.LevelCount(ctx, e.CollectionID)
		if err != nil {
			return e, fmt.Errorf("level count for game %s: %w", e.CollectionID, err)
		}
		e.ItemCount = count
		e.Points /= float64(count + 1)
	}

	s.log.Debug(ctx, e.String(),
		logger.String("run_id", e.ID),
		logger.Int("board_size", len(lb.Entries)),
		logger.Float64("points", e.Points))
	return e, nil
}
