// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"
)

// PersonalBest is one raw personal-best record as delivered by the ranking provider.
type PersonalBest struct {
	RunID      string            // run identifier
	GameID     string            // collection
	CategoryID string            // sub-collection; empty for unofficial runs
	LevelID    string            // item; empty for full-game runs
	Values     map[string]string // variable id -> value id
	Metric     float64           // primary time, in seconds
	VideoLinks []string          // external verification
}

// Variable describes one game variable.
type Variable struct {
	ID            string
	IsSubcategory bool
}

// RankedEntry is one row of a leaderboard snapshot.
type RankedEntry struct {
	Place     int // 0 means no rank
	Metric    float64
	PlayerIDs []string
}

// Leaderboard is an ordered snapshot of ranked entries for one category.
// Entries are kept in the order delivered by the provider.
type Leaderboard struct {
	Entries []RankedEntry
	Banned  map[string]struct{}
}

// NewLeaderboard builds a snapshot, collecting banned player ids into a set.
func NewLeaderboard(entries []RankedEntry, bannedPlayers ...string) Leaderboard {
	banned := make(map[string]struct{}, len(bannedPlayers))
	for _, id := range bannedPlayers {
		banned[id] = struct{}{}
	}
	return Leaderboard{Entries: entries, Banned: banned}
}

// IsBanned reports whether any of the entry's players is banned.
func (l Leaderboard) IsBanned(e RankedEntry) bool {
	for _, id := range e.PlayerIDs {
		if _, ok := l.Banned[id]; ok {
			return true
		}
	}
	return false
}

// Entry is a classified personal best with its derived points.
type Entry struct {
	ID              string
	Metric          float64
	CollectionID    string
	SubCollectionID string
	Attributes      map[string]string
	ItemID          string
	// ItemCount is only resolved for item entries that scored points.
	ItemCount int
	Points    float64
}

// NewEntry copies the attributes so entries never share a map.
func NewEntry(id string, metric float64, collectionID, subCollectionID, itemID string, attributes map[string]string) Entry {
	attrs := make(map[string]string, len(attributes))
	maps.Copy(attrs, attributes)
	return Entry{
		ID:              id,
		Metric:          metric,
		CollectionID:    collectionID,
		SubCollectionID: subCollectionID,
		Attributes:      attrs,
		ItemID:          itemID,
	}
}

// IsItem reports whether the entry belongs to an individual-level ranking.
func (e Entry) IsItem() bool { return e.ItemID != "" }

// CategoryKey identifies the category (and level) an entry competes in.
func (e Entry) CategoryKey() string {
	return e.SubCollectionID + "-" + e.ItemID
}

func (e Entry) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run: <Game: %s, Category: %s, ", e.CollectionID, e.SubCollectionID)
	if e.IsItem() {
		fmt.Fprintf(&b, "Level/%d: %s, ", e.ItemCount, e.ItemID)
	}
	keys := slices.Sorted(maps.Keys(e.Attributes))
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+e.Attributes[k])
	}
	fmt.Fprintf(&b, "{%s} %g>", strings.Join(pairs, ", "), RoundUp(e.Points))
	return b.String()
}

// RoundUp rounds points up to two decimals for display.
func RoundUp(points float64) float64 {
	return math.Ceil(points*100) / 100
}
