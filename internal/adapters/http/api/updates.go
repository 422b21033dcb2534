package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	service "github.com/Avasam/Global-speedrunning-leaderboard/internal/app"
	"github.com/Avasam/Global-speedrunning-leaderboard/internal/domain/model"
)

type reportResponse struct {
	ProfileID      string             `json:"profile_id"`
	DisplayName    string             `json:"display_name"`
	Banned         bool               `json:"banned"`
	Points         float64            `json:"points"`
	CategoryScores map[string]float64 `json:"category_scores"`
	Outcome        string             `json:"outcome"`
	Errors         []string           `json:"errors,omitempty"`
	Text           string             `json:"text"`
}

type enqueueRequest struct {
	ProfileID string `json:"profile_id"`
}

type enqueueResponse struct {
	Status string `json:"status"`
	JobID  string `json:"job_id"`
}

// handleUpdateProfile handles POST /profiles/{profileID}/update. It scores
// the profile synchronously and returns the report.
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	report, err := s.deps.UpdateProfile(r.Context(), chi.URLParam(r, "profileID"))
	if err != nil {
		writeUpdateError(w, err)
		return
	}
	scores := make(map[string]float64, len(report.Profile.CategoryScores))
	for k, v := range report.Profile.CategoryScores {
		scores[k] = model.RoundUp(v)
	}
	writeJSON(w, http.StatusOK, reportResponse{
		ProfileID:      report.Profile.ID,
		DisplayName:    report.Profile.DisplayName,
		Banned:         report.Profile.Banned,
		Points:         model.RoundUp(report.Profile.TotalPoints),
		CategoryScores: scores,
		Outcome:        string(report.Outcome),
		Errors:         model.SummarizeErrors(report.Errors),
		Text:           report.Text,
	})
}

// handleEnqueue handles POST /updates.
func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}

	jobID, err := s.deps.Enqueue(r.Context(), req.ProfileID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, enqueueResponse{Status: "accepted", JobID: jobID})
	case errors.Is(err, service.ErrInvalidProfileID):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, service.ErrAlreadyPending):
		writeError(w, http.StatusConflict, "already_pending", err)
	case errors.Is(err, service.ErrBackpressure):
		writeError(w, http.StatusTooManyRequests, "backpressure", err)
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
