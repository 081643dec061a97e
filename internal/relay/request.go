package relay

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Request is an inbound chat-completion request. Body is forwarded
// upstream byte for byte; Stream and Model are read from it.
type Request struct {
	Body   []byte
	Stream bool
	Model  string
}

// ParseRequest validates that body is a JSON object and extracts the
// stream flag. A missing or null stream means false; any other
// non-boolean value is rejected.
func ParseRequest(body []byte) (*Request, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, MalformedRequest(errors.New("empty body"))
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, MalformedRequest(fmt.Errorf("decode body: %w", err))
	}
	if fields == nil {
		return nil, MalformedRequest(errors.New("body is not a JSON object"))
	}

	req := &Request{Body: body}

	if raw, ok := fields["stream"]; ok && !bytes.Equal(raw, []byte("null")) {
		if err := json.Unmarshal(raw, &req.Stream); err != nil {
			return nil, MalformedRequest(fmt.Errorf("stream must be a boolean: %w", err))
		}
	}

	if raw, ok := fields["model"]; ok {
		// model is only used for logging
		_ = json.Unmarshal(raw, &req.Model)
	}

	return req, nil
}
