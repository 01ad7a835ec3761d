package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGenerateAndValidateJWT(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	token, err := GenerateJWT("admin", "admin")
	if err != nil {
		t.Fatalf("GenerateJWT returned error: %v", err)
	}

	claims, err := ValidateJWT(token)
	if err != nil {
		t.Fatalf("ValidateJWT returned error: %v", err)
	}
	if claims["sub"] != "admin" || claims["role"] != "admin" {
		t.Fatalf("claims = %v, want sub=admin role=admin", claims)
	}
}

func TestValidateJWTRejectsTampering(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	token, err := GenerateJWT("admin", "admin")
	if err != nil {
		t.Fatalf("GenerateJWT returned error: %v", err)
	}

	if _, err := ValidateJWT(token + "x"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("ValidateJWT(%q) = %v, want ErrInvalidToken", token+"x", err)
	}

	t.Setenv("JWT_SECRET", "different-secret")
	if _, err := ValidateJWT(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("ValidateJWT with wrong secret = %v, want ErrInvalidToken", err)
	}
}

func TestGenerateJWTNeedsSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	if _, err := GenerateJWT("admin", "admin"); err == nil {
		t.Fatal("GenerateJWT succeeded without JWT_SECRET")
	}
}

func TestRequireAuth(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	handler := RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/refresh", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/refresh", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: status = %d, want 401", rec.Code)
	}

	token, err := GenerateJWT("admin", "admin")
	if err != nil {
		t.Fatalf("GenerateJWT returned error: %v", err)
	}
	req = httptest.NewRequest(http.MethodPost, "/refresh", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("valid token: status = %d, want 204", rec.Code)
	}
}

func TestIsAdmin(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	handler := IsAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	token, err := GenerateJWT("reader", "viewer")
	if err != nil {
		t.Fatalf("GenerateJWT returned error: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("viewer role: status = %d, want 403", rec.Code)
	}

	token, err = GenerateJWT("admin", "admin")
	if err != nil {
		t.Fatalf("GenerateJWT returned error: %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("admin role: status = %d, want 204", rec.Code)
	}
}
