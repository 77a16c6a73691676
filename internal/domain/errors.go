package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies domain failures so the boundary can pick a response class.
type ErrorKind string

const (
	KindMalformedInput     ErrorKind = "malformed_input"
	KindMissingFeature     ErrorKind = "missing_feature"
	KindScoringUnavailable ErrorKind = "scoring_unavailable"
	KindNotFound           ErrorKind = "not_found"
)

// Error is a classified domain error.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// NewMalformedInputError reports input that cannot be turned into an observation.
func NewMalformedInputError(message string) *Error {
	return &Error{Kind: KindMalformedInput, Message: message}
}

// NewMissingFeatureError reports a feature column that could not be derived.
func NewMissingFeatureError(column string) *Error {
	return &Error{Kind: KindMissingFeature, Message: fmt.Sprintf("missing value for feature %q", column)}
}

// NewScoringUnavailableError reports use of a scorer that has not been initialized.
func NewScoringUnavailableError(message string) *Error {
	return &Error{Kind: KindScoringUnavailable, Message: message}
}

// NewNotFoundError reports a missing entity.
func NewNotFoundError(entity, id string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %s not found", entity, id)}
}

// Wrap attaches a cause to err and returns it.
func (e *Error) Wrap(cause error) *Error {
	e.Err = cause
	return e
}

// KindOf returns the kind of the first *Error in err's chain, or "" if there is none.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsClientError reports whether err should be reported to callers as a bad request.
func IsClientError(err error) bool {
	switch KindOf(err) {
	case KindMalformedInput, KindMissingFeature:
		return true
	}
	return false
}
