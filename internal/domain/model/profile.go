package model

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// ProfileIdentity is the resolved identity of a profile.
type ProfileIdentity struct {
	ID          string
	DisplayName string
	Weblink     string
	Banned      bool
}

// Profile is the aggregated result of one score update.
type Profile struct {
	ProfileIdentity
	CategoryScores map[string]float64
	TotalPoints    float64
}

// NewProfile returns a profile with an empty breakdown.
func NewProfile(id ProfileIdentity) Profile {
	return Profile{ProfileIdentity: id, CategoryScores: make(map[string]float64)}
}

func (p Profile) String() string {
	banned := ""
	if p.Banned {
		banned = "(Banned)"
	}
	return fmt.Sprintf("User: <%s, %g, %s%s>", p.DisplayName, RoundUp(p.TotalPoints), p.ID, banned)
}

// Breakdown renders the per-category points as a two-column table,
// sorted by category key.
func (p Profile) Breakdown() string {
	var b strings.Builder
	b.WriteString("Category-Level    | Points\n----------------- | ------")
	for _, key := range slices.Sorted(maps.Keys(p.CategoryScores)) {
		fmt.Fprintf(&b, "\n%-17s | %g", key, RoundUp(p.CategoryScores[key]))
	}
	return b.String()
}

// ErrorKindUnhandled labels failures that carry no kind of their own.
const ErrorKindUnhandled = "Unhandled"

// ErrorRecord is a per-record failure collected during aggregation.
type ErrorRecord struct {
	Kind    string
	Details string
}

func (r ErrorRecord) String() string {
	return fmt.Sprintf("Error: %s\n%s", r.Kind, r.Details)
}

// KindError is implemented by errors that name their own kind.
type KindError interface {
	error
	Kind() string
}

// SummarizeErrors coalesces identical records, keeping first-seen order,
// and prefixes each line with its occurrence count.
func SummarizeErrors(records []ErrorRecord) []string {
	counts := make(map[string]int, len(records))
	order := make([]string, 0, len(records))
	for _, r := range records {
		s := r.String()
		if counts[s] == 0 {
			order = append(order, s)
		}
		counts[s]++
	}
	out := make([]string, 0, len(order))
	for _, s := range order {
		out = append(out, fmt.Sprintf("[x%d] %s", counts[s], s))
	}
	return out
}

// UpdateJob is a queued request to rescore one profile.
type UpdateJob struct {
	ID          string
	ProfileID   string
	RequestedAt time.Time
}
