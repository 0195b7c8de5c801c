package websearch

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	// ErrorCollaborator covers model calls that failed or returned output
	// violating the expected contract.
	ErrorCollaborator ErrorKind = "COLLABORATOR_FAILURE"
	// ErrorMalformedState marks a missing precondition on the turn state.
	ErrorMalformedState ErrorKind = "MALFORMED_STATE"
)

const (
	ReasonLLM                  = "llm_error"
	ReasonSchemaViolation      = "schema_violation"
	ReasonMissingQuestion      = "missing_question"
	ReasonMissingSearchResults = "missing_search_results"
)

// Error is returned by every workflow stage. All stage errors are terminal
// for the current turn.
type Error struct {
	Kind   ErrorKind
	Stage  string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("websearch: %s: %s (%s)", e.Stage, e.Kind, e.Reason)
	}
	return fmt.Sprintf("websearch: %s: %s (%s): %v", e.Stage, e.Kind, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(kind ErrorKind, stage, reason string, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Reason: reason, Err: err}
}

func IsCollaboratorFailure(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == ErrorCollaborator
}

func IsMalformedState(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == ErrorMalformedState
}
