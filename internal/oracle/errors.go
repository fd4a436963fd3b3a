package oracle

import "fmt"

// StatusError is a non-2xx HTTP response from a backend.
type StatusError struct {
	Backend string
	Code    int
	Body    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Backend, e.Code, e.Body)
}

// ParseError means a completion arrived but is not a label array.
// It is never retried.
type ParseError struct {
	Reason  string
	Snippet string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unparseable classification response: %s (%q)", e.Reason, e.Snippet)
}

func newParseError(reason, text string) *ParseError {
	snippet := text
	if r := []rune(snippet); len(r) > 200 {
		snippet = string(r[:200]) + "..."
	}
	return &ParseError{Reason: reason, Snippet: snippet}
}
