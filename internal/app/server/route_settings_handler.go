package server

import (
	"net/http"

	"jackdaw/internal/config"
)

func getSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, config.GetConfig())
}
