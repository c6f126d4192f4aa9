// ABOUTME: Outcome vocabulary returned by the workflow facade
// ABOUTME: Every error names the resource and the attempted action
package engine

import (
	"errors"
	"fmt"

	"github.com/harperreed/devicedrop/models"
)

// Code classifies a facade outcome.
type Code string

const (
	CodeInvalidTransition    Code = "invalid_transition"
	CodeMissingRequiredField Code = "missing_required_field"
	CodeBusy                 Code = "busy"
	CodeFetchFailed          Code = "fetch_failed"
	CodeMutationFailed       Code = "mutation_failed"
)

// Error is the single error type returned by Facade operations.
type Error struct {
	Code   Code
	Kind   models.Kind
	ID     string
	Action string
	// Field is set for CodeMissingRequiredField.
	Field string
	Err   error
}

// Sentinels for errors.Is; they match any *Error with the same code.
var (
	ErrInvalidTransition    = &Error{Code: CodeInvalidTransition}
	ErrMissingRequiredField = &Error{Code: CodeMissingRequiredField}
	ErrBusy                 = &Error{Code: CodeBusy}
	ErrFetchFailed          = &Error{Code: CodeFetchFailed}
	ErrMutationFailed       = &Error{Code: CodeMutationFailed}
)

// ErrSuperseded is returned by list calls whose response arrived after a newer
// request (or a session reset) for the same kind. Callers drop it silently.
var ErrSuperseded = errors.New("response superseded by a newer request")

func (e *Error) Error() string {
	if e.Kind == "" {
		return string(e.Code)
	}

	target := e.Kind.Noun()
	if e.ID != "" {
		target += " " + e.ID
	} else if e.Action == "list" {
		target = e.Kind.Collection()
	}

	var detail string
	switch e.Code {
	case CodeBusy:
		detail = "already processing"
	case CodeFetchFailed:
		detail = "fetch failed"
	case CodeMutationFailed:
		detail = "request failed"
	}

	switch {
	case e.Err != nil && detail != "":
		return fmt.Sprintf("%s %s: %s: %v", e.Action, target, detail, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s %s: %v", e.Action, target, e.Err)
	default:
		return fmt.Sprintf("%s %s: %s", e.Action, target, detail)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinels by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == "" && t.ID == "" && t.Code == e.Code
}

// CodeOf extracts the outcome code from err, or "" for foreign errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func newError(code Code, kind models.Kind, id, action string, cause error) *Error {
	return &Error{Code: code, Kind: kind, ID: id, Action: action, Err: cause}
}
