// Package repository persists profile totals and serves the ranked leaderboard.
package repository

import (
	"context"
	"time"

	"github.com/Avasam/Global-speedrunning-leaderboard/internal/domain/model"
)

// Entry represents a leaderboard row.
type Entry struct {
	Rank        int
	ProfileID   string
	DisplayName string
	Weblink     string
	Points      float64
	UpdatedAt   time.Time
}

// SaveResult tells whether Save found an existing row.
type SaveResult int

// Save outcomes.
const (
	Inserted SaveResult = iota + 1
	Updated
)

func (r SaveResult) String() string {
	switch r {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	default:
		return "unknown"
	}
}

// Store provides read/write access to the leaderboard table.
type Store interface {
	// Save writes the profile's name, link and points stamped with at. The
	// row is looked up by profile id; when none matches a new row is added.
	Save(ctx context.Context, p model.Profile, at time.Time) (SaveResult, error)

	// Rank returns the current rank and row for a profile.
	// Returns ErrNotFound if the profile is unknown.
	Rank(ctx context.Context, profileID string) (Entry, error)

	// TopN returns the top-N entries ordered by points desc.
	// Equal points share a rank and the next rank skips accordingly.
	TopN(ctx context.Context, n int) ([]Entry, error)

	// Count returns the number of profiles on the leaderboard.
	Count(ctx context.Context) (int, error)

	Close() error
}
