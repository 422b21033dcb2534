// Package classify decides which personal bests are eligible for scoring and
// extracts the sub-category filters their leaderboard is ranked under.
package classify

import (
	"context"
	"fmt"
	"sync"

	model "github.com/Avasam/Global-speedrunning-leaderboard/internal/domain/model"
	"golang.org/x/sync/singleflight"
)

// VariableSource lists a game's variables.
type VariableSource interface {
	Variables(ctx context.Context, gameID string) ([]model.Variable, error)
}

// Classifier filters personal bests into scorable entries. It remembers each
// game's sub-category variables for its lifetime; build one per profile run.
type Classifier struct {
	src   VariableSource
	group singleflight.Group

	mu            sync.RWMutex
	subcategories map[string]map[string]struct{} // game id -> variable ids
}

// New creates a classifier reading variables from src.
func New(src VariableSource) *Classifier {
	return &Classifier{
		src:           src,
		subcategories: make(map[string]map[string]struct{}),
	}
}

// Classify returns the entry pb should be scored as. The boolean is false,
// with a nil error, when pb is not eligible: it must belong to a category
// and carry at least one video.
func (c *Classifier) Classify(ctx context.Context, pb model.PersonalBest) (model.Entry, bool, error) {
	if pb.CategoryID == "" || len(pb.VideoLinks) == 0 {
		return model.Entry{}, false, nil
	}

	ids, err := c.subcategoryIDs(ctx, pb.GameID)
	if err != nil {
		return model.Entry{}, false, err
	}

	attrs := make(map[string]string)
	for varID, valueID := range pb.Values {
		if _, ok := ids[varID]; ok {
			attrs[varID] = valueID
		}
	}
	return model.NewEntry(pb.RunID, pb.Metric, pb.GameID, pb.CategoryID, pb.LevelID, attrs), true, nil
}

func (c *Classifier) cached(gameID string) (map[string]struct{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids, ok := c.subcategories[gameID]
	return ids, ok
}

// subcategoryIDs fetches at most once per game, collapsing concurrent misses.
func (c *Classifier) subcategoryIDs(ctx context.Context, gameID string) (map[string]struct{}, error) {
	if ids, ok := c.cached(gameID); ok {
		return ids, nil
	}

	v, err, _ := c.group.Do(gameID, func() (any, error) {
		if ids, ok := c.cached(gameID); ok {
			return ids, nil
		}
		vars, err := c.src.Variables(ctx, gameID)
		if err != nil {
			return nil, fmt.Errorf("variables for game %s: %w", gameID, err)
		}
		ids := make(map[string]struct{})
		for _, v := range vars {
			if v.IsSubcategory {
				ids[v.ID] = struct{}{}
			}
		}
		c.mu.Lock()
		c.subcategories[gameID] = ids
		c.mu.Unlock()
		return ids, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]struct{}), nil
}
