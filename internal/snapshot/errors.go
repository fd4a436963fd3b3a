package snapshot

import (
	"errors"
	"fmt"

	"cuelang.org/go/cue/token"
)

// ErrorKind categorizes fatal snapshot errors.
type ErrorKind int

const (
	// KindNotFound means the snapshot file does not exist.
	KindNotFound ErrorKind = iota
	// KindRead means the file exists but could not be read.
	KindRead
	// KindSyntax means the content is not valid JSON.
	KindSyntax
	// KindSchema means required keys are missing or have the wrong type.
	KindSchema
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindRead:
		return "read"
	case KindSyntax:
		return "syntax"
	case KindSchema:
		return "schema"
	default:
		return "unknown"
	}
}

// Error is a fatal problem with one snapshot source.
type Error struct {
	Kind    ErrorKind
	Source  string
	Message string
	Pos     token.Pos // CUE position if available
	Err     error
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Source, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Source, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a snapshot error, and false if err is not one.
func KindOf(err error) (ErrorKind, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return 0, false
}
