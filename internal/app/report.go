package service

import (
	"fmt"
	"strings"

	"github.com/Avasam/Global-speedrunning-leaderboard/internal/domain/model"
)

// Outcome of one profile update.
type Outcome string

// Update outcomes.
const (
	OutcomeUpdated  Outcome = "updated"
	OutcomeInserted Outcome = "inserted"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeFailed   Outcome = "failed"
)

const (
	separator  = "-------------------------"
	issuesLink = "https://github.com/Avasam/Global_speedrunning_leaderboard/issues"
)

// Report is the human-readable result of an update request.
type Report struct {
	Profile model.Profile
	Outcome Outcome
	Errors  []model.ErrorRecord
	Text    string
}

func savedText(p model.Profile, outcome Outcome) string {
	status := "found. Updated its cell."
	if outcome == OutcomeInserted {
		status = "not found. Added a new row."
	}
	return fmt.Sprintf("%s %s\n%s", p, status, p.Breakdown())
}

func skippedText(p model.Profile) string {
	reason := "has a score of 0"
	if p.Banned {
		reason = "is banned"
	}
	return fmt.Sprintf("Not uploading data as %s %s.", p, reason)
}

func failedText(records []model.ErrorRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n%s\nNot uploading data as some errors were caught during execution:\n%s\n",
		separator, issuesLink, separator)
	for _, line := range model.SummarizeErrors(records) {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}
