package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

const chunkSize = 32 * 1024

type bodySource struct {
	body        io.ReadCloser
	cancel      context.CancelFunc
	readTimeout time.Duration
	buf         []byte

	expired   atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewBodySource reads body one Read call per chunk. cancel aborts the
// request that produced body; it is used to enforce readTimeout and is
// called on Close. A zero readTimeout disables the per-read bound.
func NewBodySource(body io.ReadCloser, cancel context.CancelFunc, readTimeout time.Duration) Source {
	if cancel == nil {
		cancel = func() {}
	}
	return &bodySource{
		body:        body,
		cancel:      cancel,
		readTimeout: readTimeout,
		buf:         make([]byte, chunkSize),
	}
}

func (s *bodySource) Next(ctx context.Context) ([]byte, bool, error) {
	if s.readTimeout > 0 {
		timer := time.AfterFunc(s.readTimeout, func() {
			s.expired.Store(true)
			s.cancel()
		})
		defer timer.Stop()
	}

	n, err := s.body.Read(s.buf)
	chunk := s.buf[:n]

	switch {
	case err == nil:
		return chunk, false, nil
	case errors.Is(err, io.EOF):
		return chunk, true, nil
	case s.expired.Load():
		return chunk, false, &Error{
			Kind:   KindRelayTimeout,
			Reason: reasonRelayTimeout,
			Cause:  "timeout",
			Err:    fmt.Errorf("no upstream data within %s: %w", s.readTimeout, err),
		}
	case ctx.Err() != nil:
		return chunk, false, fmt.Errorf("%w: %w", ErrCallerGone, ctx.Err())
	default:
		return chunk, false, failure(classifyNetError(err), fmt.Errorf("read upstream stream: %w", err))
	}
}

func (s *bodySource) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.body.Close()
		s.cancel()
	})
	return s.closeErr
}
