package server

import (
	"net/http"
	"net/netip"

	"jackdaw/internal/jobs/refresh"
)

type lookupResponse struct {
	IP      string `json:"ip"`
	Country string `json:"country"`
	Family  string `json:"family"`
}

func lookupAddress(job *refresh.Job) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := r.URL.Query().Get("ip")
		if raw == "" {
			writeError(w, "missing ip parameter", http.StatusBadRequest)
			return
		}

		addr, err := netip.ParseAddr(raw)
		if err != nil {
			writeError(w, "invalid ip address", http.StatusBadRequest)
			return
		}

		index := job.Index()
		if index == nil {
			writeError(w, "no snapshot loaded yet", http.StatusServiceUnavailable)
			return
		}

		match, ok := index.Lookup(addr)
		if !ok {
			writeError(w, "address not covered by any allocation", http.StatusNotFound)
			return
		}

		writeJSON(w, http.StatusOK, lookupResponse{
			IP:      addr.String(),
			Country: match.Country,
			Family:  match.Family.String(),
		})
	}
}
