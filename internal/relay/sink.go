package relay

import (
	"errors"
	"net/http"
)

var errSinkClosed = errors.New("relay: sink already closed")

// HTTPSink writes a server-sent event stream to an http.ResponseWriter,
// flushing after every chunk.
type HTTPSink struct {
	w      http.ResponseWriter
	rc     *http.ResponseController
	opened bool
	closed bool
	err    error
}

func NewHTTPSink(w http.ResponseWriter) *HTTPSink {
	return &HTTPSink{w: w, rc: http.NewResponseController(w)}
}

// Open writes the event-stream headers and status. It is called once
// before the first Write.
func (s *HTTPSink) Open(status int) error {
	if s.opened {
		return nil
	}
	s.opened = true

	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	s.w.WriteHeader(status)

	return s.flush()
}

func (s *HTTPSink) Write(p []byte) error {
	if s.closed {
		return errSinkClosed
	}
	if !s.opened {
		if err := s.Open(http.StatusOK); err != nil {
			return err
		}
	}
	if _, err := s.w.Write(p); err != nil {
		return err
	}
	return s.flush()
}

// CloseWithError ends the stream. It may only be called once.
func (s *HTTPSink) CloseWithError(err error) error {
	if s.closed {
		return errSinkClosed
	}
	s.closed = true
	s.err = err

	if err != nil {
		return nil
	}
	if !s.opened {
		return s.Open(http.StatusOK)
	}
	return s.flush()
}

// Err is the error the stream was closed with, nil after a clean close.
func (s *HTTPSink) Err() error {
	return s.err
}

func (s *HTTPSink) Closed() bool {
	return s.closed
}

func (s *HTTPSink) flush() error {
	if err := s.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}
