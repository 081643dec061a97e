package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"chat-relay/internal/target"
)

const maxResponseSize = 32 * 1024 * 1024 // 32MB non-streamed upstream body

// Upstream is the response of one forwarded request. It is owned by the
// request that created it and must be released with Close, ReadJSON or by
// closing the Source returned from Source.
type Upstream struct {
	StatusCode int
	Header     http.Header
	Latency    time.Duration

	resp        *http.Response
	cancel      context.CancelFunc
	readTimeout time.Duration
}

// Forward POSTs req.Body to t's chat-completions endpoint with t's
// credential. Network failures are returned as RelayFailure errors; a
// non-2xx upstream status is not an error.
func (r *Relay) Forward(ctx context.Context, t target.Target, req *Request) (*Upstream, error) {
	if req == nil {
		return nil, &Error{Kind: KindInternal, Reason: reasonRelayFailure, Err: errors.New("nil request")}
	}

	ctx, cancel := context.WithCancel(ctx)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.Endpoint(), bytes.NewReader(req.Body))
	if err != nil {
		cancel()
		return nil, failure("other", fmt.Errorf("build upstream request: %w", err))
	}
	httpReq.Header.Set("Authorization", "Bearer "+t.Credential)
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := r.httpClient.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		cancel()
		cause := classifyNetError(err)
		r.logger.Debug("upstream request failed",
			zap.String("cause", cause),
			zap.Duration("duration", latency),
			zap.Error(err),
		)
		return nil, failure(cause, fmt.Errorf("upstream request: %w", err))
	}

	r.logger.Debug("upstream responded",
		zap.Int("status", resp.StatusCode),
		zap.Bool("stream", req.Stream),
		zap.Duration("duration", latency),
	)

	return &Upstream{
		StatusCode:  resp.StatusCode,
		Header:      resp.Header,
		Latency:     latency,
		resp:        resp,
		cancel:      cancel,
		readTimeout: r.cfg.ReadTimeout,
	}, nil
}

// Close releases the upstream connection. It is safe to call more than once.
func (u *Upstream) Close() error {
	defer u.cancel()
	if u.resp.Body == nil {
		return nil
	}
	return u.resp.Body.Close()
}

// ReadJSON reads the whole upstream body and checks it is JSON. The bytes
// are returned untouched. The upstream is released before returning.
func (u *Upstream) ReadJSON() ([]byte, error) {
	defer u.Close()

	if u.resp.Body == nil {
		return nil, failure("other", errors.New("upstream returned no body"))
	}

	body, err := io.ReadAll(io.LimitReader(u.resp.Body, maxResponseSize+1))
	if err != nil {
		return nil, failure(classifyNetError(err), fmt.Errorf("read upstream body: %w", err))
	}
	if len(body) > maxResponseSize {
		return nil, failure("other", fmt.Errorf("upstream body too large (max %d bytes)", maxResponseSize))
	}
	if !json.Valid(body) {
		return nil, failure("other", fmt.Errorf("upstream returned non-JSON body: %s", truncate(string(body), 200)))
	}

	return body, nil
}

// Source hands the upstream body to a streaming Source. An upstream without
// a readable body is released and reported as UpstreamBodyMissing.
func (u *Upstream) Source() (Source, error) {
	if u.resp.Body == nil || u.resp.Body == http.NoBody {
		_ = u.Close()
		return nil, &Error{
			Kind:   KindUpstreamBodyMissing,
			Reason: reasonUpstreamBodyMissing,
			Err:    fmt.Errorf("upstream status %d carried no body", u.StatusCode),
		}
	}
	return NewBodySource(u.resp.Body, u.cancel, u.readTimeout), nil
}

// classifyNetError labels a network error for logs and metrics.
func classifyNetError(err error) string {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "dns"
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "connection refused"):
		return "refused"
	case strings.Contains(errStr, "connection reset"), strings.Contains(errStr, "broken pipe"):
		return "reset"
	case strings.Contains(errStr, "no such host"):
		return "dns"
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return "refused"
	}

	return "other"
}

// truncate limits string length for logging
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
