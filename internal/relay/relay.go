// Package relay forwards chat-completion requests to an upstream provider
// and mirrors the upstream response back in the transfer mode the caller
// asked for: one JSON document, or a byte-transparent event stream.
package relay

import (
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

type Config struct {
	// UpstreamHeaderTimeout bounds the wait for upstream response headers.
	// Zero leaves it to the transport.
	UpstreamHeaderTimeout time.Duration

	// ReadTimeout bounds each read of a streamed upstream body. Zero
	// disables it.
	ReadTimeout time.Duration

	MaxIdleConns        int // default: 100
	MaxIdleConnsPerHost int // default: 100

	// Custom HTTP client (for testing or special configs)
	HTTPClient *http.Client
}

// WithDefaults returns a copy of Config with defaults applied.
func (c *Config) WithDefaults() Config {
	cfg := *c

	if cfg.UpstreamHeaderTimeout < 0 {
		cfg.UpstreamHeaderTimeout = 0
	}
	if cfg.ReadTimeout < 0 {
		cfg.ReadTimeout = 0
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = 100
	}
	if cfg.MaxIdleConnsPerHost <= 0 {
		cfg.MaxIdleConnsPerHost = 100
	}

	return cfg
}

// Relay owns the outbound HTTP client. A Relay is safe for concurrent use;
// each request gets its own upstream response which is never shared.
type Relay struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Relay {
	cfg = cfg.WithDefaults()

	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		// no Client.Timeout: it would cut long-lived streams
		httpClient = &http.Client{
			Transport: defaultTransport(cfg),
		}
	}

	return &Relay{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     logger.Named("relay"),
	}
}

func defaultTransport(cfg Config) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     90 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.UpstreamHeaderTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// Close releases idle upstream connections.
func (r *Relay) Close() error {
	r.httpClient.CloseIdleConnections()
	return nil
}
