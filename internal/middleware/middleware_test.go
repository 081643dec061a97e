package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"chat-relay/pkg/logging/logging"
)

func TestRecovererWritesJSON(t *testing.T) {
	h := Recoverer()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if got := rr.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("unexpected Content-Type: %s", got)
	}
	if rr.Body.String() != `{"error":"Internal server error"}` {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}
}

func TestRecovererPassesAbortHandler(t *testing.T) {
	h := Recoverer()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Fatalf("expected ErrAbortHandler to propagate, got %v", rec)
		}
	}()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	t.Fatalf("panic was swallowed")
}

func TestLoggingContextAttachesLogger(t *testing.T) {
	base := zaptest.NewLogger(t)

	var got *zap.Logger
	h := LoggingContext(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = logging.L(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if got == nil || got == logging.DefaultLogger() {
		t.Fatalf("expected request-scoped logger in context")
	}
	if rr.Code != http.StatusTeapot {
		t.Fatalf("status not passed through: %d", rr.Code)
	}
}
