package cli

import (
	"errors"
	"fmt"

	"cuelang.org/go/cue/token"

	"github.com/roach88/bookmerge/internal/snapshot"
)

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeNotFound    = "E002" // Input file not found
	ErrCodeReadFailed  = "E003" // Input file unreadable
	ErrCodeSyntax      = "E004" // Snapshot is not JSON
	ErrCodeSchema      = "E005" // Snapshot misses required keys
	ErrCodeWriteFailed = "E007" // Output file write error

	ErrCodeTaxonomy   = "E010" // Taxonomy file invalid
	ErrCodeOracle     = "E011" // Oracle backend not configured
	ErrCodeMerge      = "E012" // Source/config precedence problem
	ErrCodeCatalog    = "E013" // Catalog JSON invalid
	ErrCodeStore      = "E014" // SQLite sink failure
	ErrCodeInvalidArg = "E015" // Bad flag value
)

// LoadError is an input problem with an optional CUE position.
type LoadError struct {
	Code    string
	Source  string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Line returns the 1-based line of the problem, or 0 when unknown.
func (e *LoadError) Line() int {
	if e.Pos.IsValid() {
		return e.Pos.Line()
	}
	return 0
}

// asLoadError converts a snapshot error into a LoadError. Other errors keep
// fallback as their code.
func asLoadError(err error, fallback string) *LoadError {
	var le *LoadError
	if errors.As(err, &le) {
		return le
	}
	var se *snapshot.Error
	if errors.As(err, &se) {
		return &LoadError{
			Code:    MapSnapshotKindToCode(se.Kind),
			Source:  se.Source,
			Message: se.Message,
			Pos:     se.Pos,
		}
	}
	return &LoadError{Code: fallback, Message: err.Error()}
}

// MapSnapshotKindToCode maps a snapshot error kind to an error code.
func MapSnapshotKindToCode(kind snapshot.ErrorKind) string {
	switch kind {
	case snapshot.KindNotFound:
		return ErrCodeNotFound
	case snapshot.KindRead:
		return ErrCodeReadFailed
	case snapshot.KindSyntax:
		return ErrCodeSyntax
	case snapshot.KindSchema:
		return ErrCodeSchema
	default:
		return ErrCodeGeneric
	}
}

// failWith writes err through the formatter and returns an ExitError with
// exitCode.
func failWith(f *OutputFormatter, exitCode int, err error, fallback string) error {
	le := asLoadError(err, fallback)
	var details any
	if le.Source != "" || le.Line() > 0 {
		details = map[string]any{"source": le.Source, "line": le.Line()}
	}
	return f.Fail(exitCode, le.Code, le.Message, details)
}
