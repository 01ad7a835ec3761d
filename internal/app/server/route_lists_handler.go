package server

import (
	"net/http"
	"net/netip"
	"strings"

	"jackdaw/internal/domain"
	"jackdaw/internal/jobs/refresh"
)

func getFamilyList(job *refresh.Job) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		family, ok := parseListFamily(r.PathValue("family"))
		if !ok {
			writeError(w, "unknown address family", http.StatusNotFound)
			return
		}

		groups := job.Groups()
		if groups == nil {
			writeError(w, "no snapshot loaded yet", http.StatusServiceUnavailable)
			return
		}

		writeBlockList(w, groups.Blocks(family, ""))
	}
}

func getCountryList(job *refresh.Job) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		family, ok := parseListFamily(r.PathValue("family"))
		if !ok {
			writeError(w, "unknown address family", http.StatusNotFound)
			return
		}

		groups := job.Groups()
		if groups == nil {
			writeError(w, "no snapshot loaded yet", http.StatusServiceUnavailable)
			return
		}

		// Ledger country codes are upper-case; accept either case in the path.
		country := strings.ToUpper(r.PathValue("country"))
		blocks := groups.Blocks(family, country)
		if len(blocks) == 0 {
			writeError(w, "no blocks for country", http.StatusNotFound)
			return
		}

		writeBlockList(w, blocks)
	}
}

// parseListFamily accepts the two routable families; asn has no block lists.
func parseListFamily(raw string) (domain.Family, bool) {
	family, ok := domain.ParseFamily(raw)
	if !ok || !family.IsIP() {
		return "", false
	}
	return family, true
}

func writeBlockList(w http.ResponseWriter, blocks []netip.Prefix) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	var sb strings.Builder
	for _, block := range blocks {
		sb.WriteString(block.String())
		sb.WriteByte('\n')
	}
	_, _ = w.Write([]byte(sb.String()))
}
