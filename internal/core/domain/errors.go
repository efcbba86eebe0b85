package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a job or request failed.
type ErrorKind string

const (
	KindInvalidInput        ErrorKind = "invalid_input"
	KindExternalToolFailure ErrorKind = "external_tool_failure"
	KindMissingArtifact     ErrorKind = "missing_artifact"
	KindUnexpected          ErrorKind = "unexpected"
)

var (
	ErrInvalidURL      = errors.New("please provide a valid YouTube URL")
	ErrMissingURL      = errors.New("please provide a URL")
	ErrMissingSelector = errors.New("missing required parameters")
)

// JobError carries the kind of failure and the user-visible message.
type JobError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *JobError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *JobError) Unwrap() error { return e.Err }

func InvalidInput(err error) *JobError {
	return &JobError{Kind: KindInvalidInput, Message: err.Error(), Err: err}
}

func ToolFailure(message string, err error) *JobError {
	return &JobError{Kind: KindExternalToolFailure, Message: message, Err: err}
}

func MissingArtifact(message string) *JobError {
	return &JobError{Kind: KindMissingArtifact, Message: message}
}

func Unexpected(err error) *JobError {
	return &JobError{Kind: KindUnexpected, Message: err.Error(), Err: err}
}

// Message returns the text shown to polling clients for err.
func Message(err error) string {
	var je *JobError
	if errors.As(err, &je) {
		return je.Message
	}
	return err.Error()
}

// KindOf returns the kind of err, or KindUnexpected for foreign errors.
func KindOf(err error) ErrorKind {
	var je *JobError
	if errors.As(err, &je) {
		return je.Kind
	}
	return KindUnexpected
}
