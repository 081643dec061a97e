package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Histogram: gateway HTTP latency in seconds. For streams this is the
	// full stream duration.
	GatewayLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_latency_seconds",
			Help:    "HTTP request latency for the relay in seconds.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 60},
		},
		[]string{"path", "method", "status_code"},
	)

	// RelayRequestsTotal counts relayed requests by transfer mode
	// (json | stream) and outcome (ok | error kind).
	RelayRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_requests_total",
			Help: "Relayed chat-completion requests by mode and outcome.",
		},
		[]string{"mode", "outcome"},
	)

	// RelayUpstreamLatencySeconds is time to upstream response headers.
	RelayUpstreamLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_upstream_latency_seconds",
			Help:    "Time until the upstream provider returned response headers.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"mode"},
	)

	RelayUpstreamFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_upstream_failures_total",
			Help: "Network failures talking to the upstream provider, by cause.",
		},
		[]string{"cause"},
	)

	RelayStreamBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_stream_bytes_total",
			Help: "Bytes relayed from upstream event streams to callers.",
		},
	)

	RelayStreamChunksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_stream_chunks_total",
			Help: "Chunks relayed from upstream event streams to callers.",
		},
	)

	ReplayCacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "replay_cache_hits_total",
			Help: "Non-streamed requests answered from the replay cache.",
		},
	)
)

// Register is called once in main() to register metrics.
func Register() {
	prometheus.MustRegister(
		GatewayLatencySeconds,
		RelayRequestsTotal,
		RelayUpstreamLatencySeconds,
		RelayUpstreamFailuresTotal,
		RelayStreamBytesTotal,
		RelayStreamChunksTotal,
		ReplayCacheHitsTotal,
	)
}

// Handler exposes the /metrics endpoint for Prometheus to scrape.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware measures latency for each HTTP request. The observation is
// deferred so aborted streams are still recorded.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rec := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		defer func() {
			GatewayLatencySeconds.
				WithLabelValues(r.URL.Path, r.Method, strconv.Itoa(rec.statusCode)).
				Observe(time.Since(start).Seconds())
		}()

		next.ServeHTTP(rec, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.statusCode = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps streamed responses flowing through the recorder.
func (r *statusRecorder) Flush() {
	_ = http.NewResponseController(r.ResponseWriter).Flush()
}

// Unwrap lets http.ResponseController reach the underlying writer for
// flushing streamed responses.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
