package server

import (
	"net/http"

	"jackdaw/internal/jobs/refresh"
)

func triggerRefresh(job *refresh.Job) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if job.TriggerRefresh("api") {
			writeJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "already pending"})
	}
}
