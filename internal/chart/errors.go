package chart

import (
	"errors"
	"fmt"
)

// ErrDetectionFailed indicates text could not be classified as a chart
// config, a diagram or markup.
var ErrDetectionFailed = errors.New("could not interpret content as a chart, diagram or markup")

const maxSnippetRunes = 500

// ConfigurationError reports a missing or invalid provider setting. It is
// raised before any network call is made.
type ConfigurationError struct {
	Provider string
	Setting  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s is not configured: missing %s", e.Provider, e.Setting)
}

// ProviderError reports a non-success response from a backend.
type ProviderError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.StatusCode, e.Body)
}

type EmptyResponseError struct {
	Provider string
}

func (e *EmptyResponseError) Error() string {
	return fmt.Sprintf("%s returned an empty response", e.Provider)
}

// MalformedResponseError reports reply text that is not a JSON object.
type MalformedResponseError struct {
	Snippet string
	Err     error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed response %q: %v", e.Snippet, e.Err)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// NewMalformedResponseError keeps at most the first 500 runes of text.
func NewMalformedResponseError(text string, err error) *MalformedResponseError {
	r := []rune(text)
	if len(r) > maxSnippetRunes {
		r = r[:maxSnippetRunes]
	}
	return &MalformedResponseError{Snippet: string(r), Err: err}
}

// SchemaViolationError reports parsed content that does not satisfy the
// structural rules of its declared kind.
type SchemaViolationError struct {
	Field  string
	Reason string
}

func (e *SchemaViolationError) Error() string {
	return fmt.Sprintf("schema violation: %s %s", e.Field, e.Reason)
}

func violation(field, format string, args ...any) *SchemaViolationError {
	return &SchemaViolationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
