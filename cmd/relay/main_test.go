package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap/zaptest"

	"chat-relay/internal/handlers"
	"chat-relay/internal/httpserver"
	"chat-relay/internal/relay"
	"chat-relay/internal/target"
)

func TestShutdownEndsOpenStream(t *testing.T) {
	const first = "data: {\"choices\":[]}\n\n"

	released := make(chan struct{})
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(first))
		w.(http.Flusher).Flush()

		select {
		case <-r.Context().Done():
			close(released)
		case <-time.After(5 * time.Second):
		}
	}))
	defer upstream.Close()

	logger := zaptest.NewLogger(t)
	rl := relay.New(relay.Config{}, logger)
	defer func() { _ = rl.Close() }()

	h := handlers.NewRelayHandler(
		target.NewResolver(target.Config{Credential: "sk-test", BaseURL: upstream.URL}),
		rl, nil, time.Minute,
	)
	r := chi.NewRouter()
	httpserver.SetupRouter(r, logger, h, httpserver.Options{MaxBodyBytes: 1 << 20})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := newServer(ln.Addr().String(), r)

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ln) }()

	resp, err := http.Post("http://"+ln.Addr().String()+httpserver.RelayPath, "application/json",
		strings.NewReader(`{"model":"gpt-4o","stream":true}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	buf := make([]byte, len(first))
	if _, err := io.ReadFull(resp.Body, buf); err != nil {
		t.Fatalf("read first chunk: %v", err)
	}
	if string(buf) != first {
		t.Fatalf("unexpected first chunk %q", buf)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("shutdown waited %s for the open stream", elapsed)
	}

	select {
	case <-released:
	case <-time.After(2 * time.Second):
		t.Fatalf("upstream stream was not released on shutdown")
	}

	if err := <-serveErr; err != http.ErrServerClosed {
		t.Fatalf("expected ErrServerClosed, got %v", err)
	}
}
