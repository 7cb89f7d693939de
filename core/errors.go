package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// ParseError reports an input file that is unreadable or not in the expected layout.
// The whole file is rejected; no rows are extracted from it.
type ParseError struct {
	Reason string
	Err    error
}

func NewParseError(reason string, err ...error) error {
	pe := &ParseError{Reason: reason}
	if len(err) > 0 {
		pe.Err = err[0]
	}
	return pe
}

func (err ParseError) Error() string {
	if err.Err == nil {
		return err.Reason
	}
	return err.Reason + ": " + err.Err.Error()
}

func (err ParseError) Unwrap() error { return err.Err }

func IsParseError(err error) bool {
	_, ok := errors.Cause(err).(*ParseError)
	return ok
}

// IngestionError reports a persistence failure while committing a file's rows.
// The transaction was rolled back: zero rows were changed.
type IngestionError struct {
	Err error
}

func NewIngestionError(err error) error {
	return &IngestionError{Err: err}
}

func (err IngestionError) Error() string {
	return "ingestion failed: " + err.Err.Error()
}

func IsIngestionError(err error) bool {
	_, ok := errors.Cause(err).(*IngestionError)
	return ok
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
