package server

import (
	"encoding/json"
	"net/http"

	"jackdaw/internal/auth"
	"jackdaw/internal/support"
)

type credentials struct {
	Password string `json:"password"`
}

// loginUser exchanges the admin password for a JWT. The expected bcrypt hash
// comes from JACKDAW_ADMIN_PASSWORD_HASH; without it the login stays closed.
func loginUser(w http.ResponseWriter, r *http.Request) {
	hash := support.GetEnv("JACKDAW_ADMIN_PASSWORD_HASH", "")
	if hash == "" {
		writeError(w, "admin login is not configured", http.StatusServiceUnavailable)
		return
	}

	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	if !support.CheckPasswordHash(creds.Password, hash) {
		writeError(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := auth.GenerateJWT("admin", "admin")
	if err != nil {
		writeError(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}
