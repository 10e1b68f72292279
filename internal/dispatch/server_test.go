package dispatch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lherwood/expense-tracker/internal/rows/memory"
)

func TestClientAddr(t *testing.T) {
	cases := []struct {
		name      string
		remote    string
		forwarded string
		want      string
	}{
		{"remote addr without port", "10.0.0.1:54321", "", "10.0.0.1"},
		{"new connection keeps the same key", "10.0.0.1:54999", "", "10.0.0.1"},
		{"forwarded header wins", "10.0.0.1:54321", "203.0.113.9", "203.0.113.9"},
		{"first forwarded hop only", "10.0.0.1:54321", "203.0.113.9, 70.41.3.18", "203.0.113.9"},
		{"unparseable remote kept as-is", "pipe", "", "pipe"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", nil)
			r.RemoteAddr = tc.remote
			if tc.forwarded != "" {
				r.Header.Set("X-Forwarded-For", tc.forwarded)
			}
			if got := clientAddr(r); got != tc.want {
				t.Errorf("clientAddr = %q want %q", got, tc.want)
			}
		})
	}
}

func TestShutdownStopsLimiter(t *testing.T) {
	s := NewServer("", memory.New())
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	// Stop is idempotent; a second shutdown must not panic.
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("second shutdown: %v", err)
	}
}
