package tests

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/nghego/nghego/internal/api"
)

func TestPing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := api.NewRouter(&api.Deps{})

	req := httptest.NewRequest(http.MethodGet, "/rest/ping", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var body struct {
		SubsonicResponse struct {
			Status string `json:"status"`
		} `json:"subsonic-response"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.SubsonicResponse.Status != "ok" {
		t.Fatalf("expected status %q, got %q", "ok", body.SubsonicResponse.Status)
	}
}
