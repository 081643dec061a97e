package relay

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Kind classifies relay failures.
type Kind int

const (
	KindInternal Kind = iota
	KindMalformedRequest
	KindConfiguration
	KindUpstreamBodyMissing
	KindRelayFailure
	KindRelayTimeout
)

func (k Kind) String() string {
	switch k {
	case KindMalformedRequest:
		return "malformed_request"
	case KindConfiguration:
		return "configuration"
	case KindUpstreamBodyMissing:
		return "upstream_body_missing"
	case KindRelayFailure:
		return "relay_failure"
	case KindRelayTimeout:
		return "relay_timeout"
	default:
		return "internal"
	}
}

// Client-visible reasons.
const (
	reasonMalformedRequest    = "Invalid JSON request body"
	reasonConfiguration       = "OpenAI API key not configured"
	reasonUpstreamBodyMissing = "No response body"
	reasonRelayFailure        = "Internal server error"
	reasonRelayTimeout        = "Upstream read timed out"
)

// ErrCallerGone marks a stream that ended because the caller stopped
// consuming it.
var ErrCallerGone = errors.New("relay: caller disconnected")

// Error is the single error type surfaced by the relay.
//
// Reason is what the caller sees in the JSON error body. Err carries the
// technical cause and is only logged. Cause is a short network failure
// label (see classifyNetError) for RelayFailure and RelayTimeout.
type Error struct {
	Kind   Kind
	Reason string
	Cause  string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return "relay: " + e.Kind.String() + ": " + e.Err.Error()
	}
	return "relay: " + e.Kind.String() + ": " + e.Reason
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StatusCode is the HTTP status for e. Every kind maps to 500.
func (e *Error) StatusCode() int {
	return http.StatusInternalServerError
}

// KindOf returns the Kind of err, or KindInternal if err is not an *Error.
func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindInternal
}

// MalformedRequest wraps a request parsing failure.
func MalformedRequest(err error) *Error {
	return &Error{Kind: KindMalformedRequest, Reason: reasonMalformedRequest, Err: err}
}

// Configuration wraps a target resolution failure.
func Configuration(err error) *Error {
	return &Error{Kind: KindConfiguration, Reason: reasonConfiguration, Err: err}
}

func failure(cause string, err error) *Error {
	return &Error{Kind: KindRelayFailure, Reason: reasonRelayFailure, Cause: cause, Err: err}
}

type errorBody struct {
	Error string `json:"error"`
}

// WriteError writes err as {"error": "<reason>"}. Errors that are not an
// *Error are reported as a generic internal failure.
func WriteError(w http.ResponseWriter, err error) {
	var re *Error
	if !errors.As(err, &re) {
		re = &Error{Kind: KindInternal, Reason: reasonRelayFailure, Err: err}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(re.StatusCode())
	_ = json.NewEncoder(w).Encode(errorBody{Error: re.Reason})
}
