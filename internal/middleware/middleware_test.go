package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nkapre/docqa/internal/api"
	"github.com/nkapre/docqa/internal/config"
)

func TestWrap_RateLimitedResponseWrittenOnce(t *testing.T) {
	handled := 0
	handler := Wrap(func(w http.ResponseWriter, r *http.Request) {
		handled++
		w.WriteHeader(http.StatusOK)
	})

	var last *httptest.ResponseRecorder
	for i := 0; i < config.BURST_RATE_LIMIT_PER_SECOND+1; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "203.0.113.7:1234"
		last = httptest.NewRecorder()
		handler(last, req)
	}

	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("status got %d, want 429", last.Code)
	}
	if handled != config.BURST_RATE_LIMIT_PER_SECOND {
		t.Errorf("handler ran %d times, want %d", handled, config.BURST_RATE_LIMIT_PER_SECOND)
	}
	//a doubled-up body is two concatenated JSON objects and fails to decode
	var body api.JobResponse
	if err := json.Unmarshal(last.Body.Bytes(), &body); err != nil {
		t.Fatalf("429 body is not a single JSON object: %v, body: %q", err, last.Body.String())
	}
	if body.Error == nil || body.Error.Message != "Rate limit exceeded" {
		t.Errorf("unexpected error payload: %+v", body.Error)
	}
}
