package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStatusRecorderKeepsFirstStatus(t *testing.T) {
	rec := &statusRecorder{ResponseWriter: httptest.NewRecorder(), statusCode: http.StatusOK}

	rec.WriteHeader(http.StatusUnauthorized)
	rec.WriteHeader(http.StatusInternalServerError)

	if rec.statusCode != http.StatusUnauthorized {
		t.Fatalf("expected first status to win, got %d", rec.statusCode)
	}
}

func TestMiddlewareFlushesStreams(t *testing.T) {
	inner := httptest.NewRecorder()

	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("data: 1\n\n"))
		if err := http.NewResponseController(w).Flush(); err != nil {
			t.Errorf("flush through middleware: %v", err)
		}
	}))
	h.ServeHTTP(inner, httptest.NewRequest(http.MethodPost, "/api/proxy/chat/completions", nil))

	if !inner.Flushed {
		t.Fatalf("expected the underlying writer to be flushed")
	}
	if inner.Body.String() != "data: 1\n\n" {
		t.Fatalf("unexpected body: %q", inner.Body.String())
	}
}
