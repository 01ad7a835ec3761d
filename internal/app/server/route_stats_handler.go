package server

import (
	"net/http"

	"jackdaw/internal/database"
	"jackdaw/internal/domain"
	"jackdaw/internal/jobs/refresh"
)

type statsResponse struct {
	Sources    []refresh.Outcome `json:"sources"`
	RecentRuns []domain.Run      `json:"recent_runs,omitempty"`
}

func getStats(job *refresh.Job) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := statsResponse{Sources: job.Outcomes()}

		// The run archive is optional; stats degrade to in-memory outcomes.
		if database.DB != nil {
			if runs, err := database.RecentRuns(r.Context(), 10); err == nil {
				payload.RecentRuns = runs
			}
		}

		writeJSON(w, http.StatusOK, payload)
	}
}
