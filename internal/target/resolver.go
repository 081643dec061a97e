// Package target resolves which upstream completion provider a request is
// forwarded to and with which credential.
package target

import (
	"errors"
	"strings"
)

// DefaultBaseURL is used when no base URL is configured.
const DefaultBaseURL = "https://api.openai.com"

// ErrConfiguration is returned by Resolve when no credential is configured.
var ErrConfiguration = errors.New("target: upstream credential not configured")

// Config is the process-wide upstream configuration.
type Config struct {
	Credential string
	BaseURL    string
}

// Target is the resolved upstream for a single request.
type Target struct {
	BaseURL    string
	Credential string
}

// Endpoint returns the chat-completions URL for t.
func (t Target) Endpoint() string {
	return t.BaseURL + "/chat/completions"
}

// Resolver produces a Target from an immutable Config. It is safe for
// concurrent use.
type Resolver struct {
	cfg Config
}

func NewResolver(cfg Config) *Resolver {
	return &Resolver{cfg: cfg}
}

// Resolve returns the upstream target, or ErrConfiguration when the
// credential is empty or blank.
func (r *Resolver) Resolve() (Target, error) {
	if strings.TrimSpace(r.cfg.Credential) == "" {
		return Target{}, ErrConfiguration
	}

	baseURL := strings.TrimSpace(r.cfg.BaseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	// trailing slashes would double up with the endpoint path
	baseURL = strings.TrimRight(baseURL, "/")

	return Target{
		BaseURL:    baseURL,
		Credential: r.cfg.Credential,
	}, nil
}
