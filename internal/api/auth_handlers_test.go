package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/batchflow/batchflow/internal/auth"
)

func TestLogin(t *testing.T) {
	config := auth.Config{
		JWTSecret:     "test-secret",
		AdminPassword: "correct-password",
		TokenDuration: time.Hour,
	}
	h := NewAuthHandler(config, testLogger())

	t.Run("Valid credentials", func(t *testing.T) {
		body := `{"password": "correct-password"}`
		rec := httptest.NewRecorder()
		h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body)))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		var resp LoginResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Token == "" {
			t.Fatal("response carries no token")
		}
		userID, err := auth.ValidateToken(resp.Token, config.JWTSecret)
		if err != nil {
			t.Fatalf("issued token does not validate: %v", err)
		}
		if userID != "admin" {
			t.Errorf("token user ID = %q, want admin", userID)
		}
	})

	t.Run("Wrong password", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"password": "nope"}`)))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("Wrong method", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.Login(rec, httptest.NewRequest(http.MethodGet, "/api/auth/login", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("status = %d, want 405", rec.Code)
		}
	})
}
