package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/breatheroute/routekit/internal/api/middleware"
)

// echoRequestID serves one request and returns the ID the handler saw and the header.
func echoRequestID(t *testing.T, incoming string) (seen, header string) {
	t.Helper()
	handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = middleware.GetRequestID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/providers/valhalla/directions", http.NoBody)
	if incoming != "" {
		req.Header.Set("X-Request-Id", incoming)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return seen, rec.Header().Get("X-Request-Id")
}

func TestRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"generated when absent", "", false},
		{"caller id kept", "batch-7f3a/job-12", true},
		{"control characters replaced", "abc\x01def", false},
		{"spaces replaced", "two words", false},
		{"overlong replaced", strings.Repeat("x", 129), false},
		{"maximum length kept", strings.Repeat("x", 128), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen, header := echoRequestID(t, tt.incoming)

			assert.Equal(t, header, seen, "context and header agree")
			if tt.keep {
				assert.Equal(t, tt.incoming, seen)
				return
			}
			assert.True(t, strings.HasPrefix(seen, "req_"), "got %q", seen)
			assert.Len(t, seen, len("req_")+22)
		})
	}
}

func TestRequestID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id, _ := echoRequestID(t, "")
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestGetRequestID_Missing(t *testing.T) {
	assert.Empty(t, middleware.GetRequestID(context.Background()))
}
