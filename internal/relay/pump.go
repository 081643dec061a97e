package relay

import (
	"context"
	"fmt"
)

// Source is a pull-based byte source. Next blocks until the next chunk is
// available; final reports the end of the body and may come with a last
// chunk. The returned slice is only valid until the next call.
type Source interface {
	Next(ctx context.Context) (chunk []byte, final bool, err error)
	Close() error
}

// Sink is a push-based byte sink. CloseWithError is the single terminal
// call: a nil error closes the stream cleanly, anything else terminates it
// with an error signal.
type Sink interface {
	Write(p []byte) error
	CloseWithError(err error) error
}

// State is the lifecycle of one pump run.
type State int

const (
	StateIdle State = iota
	StateReading
	StateClosingSuccess
	StateClosingError
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReading:
		return "reading"
	case StateClosingSuccess:
		return "closing_success"
	case StateClosingError:
		return "closing_error"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Stats describes a finished pump run.
type Stats struct {
	Bytes  int64
	Chunks int
	State  State
}

// Pump copies src to dst chunk by chunk until src is exhausted, src fails,
// dst refuses a write or ctx is done. Bytes are written exactly as read and
// the next chunk is not pulled until the previous one was accepted by dst.
//
// On return src has been closed and dst.CloseWithError has been called
// exactly once, including when src or dst panics. A returned error wrapping
// ErrCallerGone means dst stopped accepting data.
func Pump(ctx context.Context, src Source, dst Sink) (Stats, error) {
	p := &pump{src: src, dst: dst}
	err := p.run(ctx)
	return p.stats, err
}

type pump struct {
	src   Source
	dst   Sink
	state State
	stats Stats
}

func (p *pump) run(ctx context.Context) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = p.finish(&Error{Kind: KindInternal, Reason: reasonRelayFailure, Err: fmt.Errorf("stream relay panic: %v", rec)})
		}
	}()

	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return p.finish(fmt.Errorf("%w: %w", ErrCallerGone, ctxErr))
		}

		p.setState(StateReading)
		chunk, final, readErr := p.src.Next(ctx)

		if len(chunk) > 0 {
			if writeErr := p.dst.Write(chunk); writeErr != nil {
				return p.finish(fmt.Errorf("%w: %w", ErrCallerGone, writeErr))
			}
			p.stats.Bytes += int64(len(chunk))
			p.stats.Chunks++
		}

		if readErr != nil {
			return p.finish(readErr)
		}
		if final {
			return p.finish(nil)
		}
	}
}

// finish runs the closing transition once; later calls only return cause.
func (p *pump) finish(cause error) error {
	if p.state == StateClosed || p.state == StateClosingSuccess || p.state == StateClosingError {
		return cause
	}

	if cause == nil {
		p.setState(StateClosingSuccess)
	} else {
		p.setState(StateClosingError)
	}

	// the closed state must be reached even if a close panics
	defer p.setState(StateClosed)

	_ = p.src.Close()
	closeErr := p.dst.CloseWithError(cause)

	if cause == nil && closeErr != nil {
		return fmt.Errorf("%w: %w", ErrCallerGone, closeErr)
	}
	return cause
}

func (p *pump) setState(s State) {
	p.state = s
	p.stats.State = s
}
