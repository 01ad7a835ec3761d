package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"jackdaw/internal/auth"
	"jackdaw/internal/jobs/refresh"
)

const shutdownGrace = 10 * time.Second

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Handler assembles the API routes around the refresh job.
func Handler(job *refresh.Job) http.Handler {
	router := http.NewServeMux()

	router.HandleFunc("GET /healthz", healthz)
	router.HandleFunc("GET /version", getVersion)
	router.HandleFunc("POST /login", loginUser)

	router.HandleFunc("GET /stats", getStats(job))
	router.HandleFunc("GET /lookup", lookupAddress(job))
	router.HandleFunc("GET /lists/{family}", getFamilyList(job))
	router.HandleFunc("GET /lists/{family}/{country}", getCountryList(job))

	router.Handle("POST /refresh", auth.RequireAuth(http.HandlerFunc(triggerRefresh(job))))
	router.Handle("GET /settings", auth.IsAdmin(http.HandlerFunc(getSettings)))

	return enableCORS(router)
}

// OpenRoutes serves the API until ctx is canceled, then drains in-flight
// requests before returning.
func OpenRoutes(ctx context.Context, port int, job *refresh.Job) error {
	server := http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: Handler(job),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("API server shutdown", "error", err)
		}
	}()

	log.Infof("Starting jackdaw API on port :%d", port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server failed: %w", err)
	}
	return nil
}
