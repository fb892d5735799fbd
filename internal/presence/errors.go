package presence

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// ErrMissingCredentials marks a capability that was not configured.
var ErrMissingCredentials = eris.New("presence: missing credentials")

// ProviderError is a failed call to an external capability. Scorers recover
// it locally by substituting a fallback.
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("presence: %s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ParseError is a rater reply that did not contain the expected JSON object.
// It unwraps to a *ProviderError so callers can treat it as one.
type ParseError struct {
	Reply    string
	provider *ProviderError
}

// NewParseError builds a ParseError for a reply from provider.
func NewParseError(provider, reply string, err error) *ParseError {
	return &ParseError{
		Reply:    reply,
		provider: &ProviderError{Provider: provider, Op: "parse", Err: err},
	}
}

func (e *ParseError) Error() string {
	return e.provider.Error()
}

func (e *ParseError) Unwrap() error { return e.provider }
