package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"chat-relay/internal/cache"
	"chat-relay/internal/metrics"
	"chat-relay/internal/relay"
	"chat-relay/internal/target"
	"chat-relay/pkg/logging/logging"
)

const (
	modeJSON   = "json"
	modeStream = "stream"
)

// Resolver yields the upstream target for a request.
type Resolver interface {
	Resolve() (target.Target, error)
}

// Forwarder sends a parsed request upstream.
type Forwarder interface {
	Forward(ctx context.Context, t target.Target, req *relay.Request) (*relay.Upstream, error)
}

// RelayHandler serves the chat-completions relay endpoint.
type RelayHandler struct {
	Resolver  Resolver
	Forwarder Forwarder

	// Cache is optional; nil disables replay of non-streamed responses.
	Cache    cache.ReplayCache
	CacheTTL time.Duration
}

func NewRelayHandler(resolver Resolver, forwarder Forwarder, c cache.ReplayCache, ttl time.Duration) *RelayHandler {
	return &RelayHandler{
		Resolver:  resolver,
		Forwarder: forwarder,
		Cache:     c,
		CacheTTL:  ttl,
	}
}

// ChatCompletion handles POST /api/proxy/chat/completions.
//
// The inbound stream flag alone decides the transfer mode. Nothing is sent
// upstream unless the body parses and a target resolves.
func (h *RelayHandler) ChatCompletion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.L(ctx)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.fail(w, logger, modeJSON, relay.MalformedRequest(err))
		return
	}

	req, err := relay.ParseRequest(body)
	if err != nil {
		h.fail(w, logger, modeJSON, err)
		return
	}

	mode := modeJSON
	if req.Stream {
		mode = modeStream
	}
	logger = logger.With(
		zap.String("model", req.Model),
		zap.String("mode", mode),
	)

	t, err := h.Resolver.Resolve()
	if err != nil {
		h.fail(w, logger, mode, relay.Configuration(err))
		return
	}

	if req.Stream {
		h.serveStream(ctx, w, logger, t, req)
		return
	}
	h.serveJSON(ctx, w, logger, t, req)
}

func (h *RelayHandler) serveJSON(ctx context.Context, w http.ResponseWriter, logger *zap.Logger, t target.Target, req *relay.Request) {
	var cacheKey string
	if h.Cache != nil {
		cacheKey = cache.BuildReplayKey(t.BaseURL, req.Body).String()
		cached, hit, err := h.Cache.Get(ctx, cacheKey)
		if err == nil && hit {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Relay-Cache", "hit")
			_, _ = w.Write(cached)
			metrics.RelayRequestsTotal.WithLabelValues(modeJSON, "cache_hit").Inc()
			return
		}
	}

	up, err := h.Forwarder.Forward(ctx, t, req)
	if err != nil {
		h.fail(w, logger, modeJSON, err)
		return
	}
	metrics.RelayUpstreamLatencySeconds.WithLabelValues(modeJSON).Observe(up.Latency.Seconds())

	payload, err := up.ReadJSON()
	if err != nil {
		h.fail(w, logger, modeJSON, err)
		return
	}

	if h.Cache != nil && up.StatusCode >= 200 && up.StatusCode < 300 {
		_ = h.Cache.Set(ctx, cacheKey, payload, h.CacheTTL)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(up.StatusCode)
	if _, err := w.Write(payload); err != nil {
		logger.Warn("relay_write_failed", zap.Error(err))
	}

	metrics.RelayRequestsTotal.WithLabelValues(modeJSON, "ok").Inc()
	logger.Info("relay_completed",
		zap.Int("upstream_status", up.StatusCode),
		zap.Int("bytes", len(payload)),
		zap.Duration("upstream_latency", up.Latency),
	)
}

func (h *RelayHandler) serveStream(ctx context.Context, w http.ResponseWriter, logger *zap.Logger, t target.Target, req *relay.Request) {
	up, err := h.Forwarder.Forward(ctx, t, req)
	if err != nil {
		h.fail(w, logger, modeStream, err)
		return
	}
	metrics.RelayUpstreamLatencySeconds.WithLabelValues(modeStream).Observe(up.Latency.Seconds())

	src, err := up.Source()
	if err != nil {
		h.fail(w, logger, modeStream, err)
		return
	}

	sink := relay.NewHTTPSink(w)
	if err := sink.Open(up.StatusCode); err != nil {
		// caller is already gone; Pump still closes both ends
		logger.Debug("relay_stream_open_failed", zap.Error(err))
	}

	start := time.Now()
	stats, err := relay.Pump(ctx, src, sink)

	metrics.RelayStreamBytesTotal.Add(float64(stats.Bytes))
	metrics.RelayStreamChunksTotal.Add(float64(stats.Chunks))

	fields := []zap.Field{
		zap.Int("upstream_status", up.StatusCode),
		zap.Int64("bytes", stats.Bytes),
		zap.Int("chunks", stats.Chunks),
		zap.Duration("upstream_latency", up.Latency),
		zap.Duration("stream_duration", time.Since(start)),
	}

	switch {
	case err == nil:
		metrics.RelayRequestsTotal.WithLabelValues(modeStream, "ok").Inc()
		logger.Info("relay_completed", fields...)
	case errors.Is(err, relay.ErrCallerGone):
		metrics.RelayRequestsTotal.WithLabelValues(modeStream, "caller_gone").Inc()
		logger.Info("relay_stream_abandoned", append(fields, zap.Error(err))...)
	default:
		h.countFailure(modeStream, err)
		logger.Warn("relay_stream_aborted", append(fields, zap.Error(err))...)
		// headers are out; dropping the connection is the only error
		// signal left that the caller cannot mistake for a clean end
		panic(http.ErrAbortHandler)
	}
}

// fail writes err as a JSON error body and records it.
func (h *RelayHandler) fail(w http.ResponseWriter, logger *zap.Logger, mode string, err error) {
	h.countFailure(mode, err)

	var re *relay.Error
	if errors.As(err, &re) {
		logger.Warn("relay_failed",
			zap.String("kind", re.Kind.String()),
			zap.String("cause", re.Cause),
			zap.Error(err),
		)
	} else {
		logger.Error("relay_failed", zap.Error(err))
	}

	relay.WriteError(w, err)
}

func (h *RelayHandler) countFailure(mode string, err error) {
	metrics.RelayRequestsTotal.WithLabelValues(mode, relay.KindOf(err).String()).Inc()

	var re *relay.Error
	if errors.As(err, &re) && re.Cause != "" {
		metrics.RelayUpstreamFailuresTotal.WithLabelValues(re.Cause).Inc()
	}
}
