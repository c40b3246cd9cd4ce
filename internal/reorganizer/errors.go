package reorganizer

import (
	"errors"
	"fmt"
)

var (
	// ErrNotPDF is returned when the selected input is not a PDF. The organizer keeps its prior state.
	ErrNotPDF = errors.New("input is not a PDF document")

	// ErrNoDocument guards export, print and reorder when no usable session exists.
	ErrNoDocument = errors.New("no document loaded")

	// ErrSuperseded marks a result that belongs to a load that has since been replaced.
	// Callers should drop it silently; it is not a failure.
	ErrSuperseded = errors.New("result belongs to a superseded load")

	ErrInvalidDropTarget = errors.New("invalid drop target")
	ErrInvalidMove       = errors.New("invalid move")
	ErrInvalidOrder      = errors.New("order is not a permutation of the loaded pages")
	ErrUnknownPage       = errors.New("unknown page")
)

// LoadError reports that the source bytes could not be opened as a document.
type LoadError struct {
	Generation Generation
	Cause      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load document (generation %d): %v", e.Generation, e.Cause)
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// RebuildError reports that the rebuild service could not produce output for a snapshot.
// The session stays valid so the export can be retried.
type RebuildError struct {
	Generation Generation
	Cause      error
}

func (e *RebuildError) Error() string {
	return fmt.Sprintf("failed to rebuild document (generation %d): %v", e.Generation, e.Cause)
}

func (e *RebuildError) Unwrap() error {
	return e.Cause
}
