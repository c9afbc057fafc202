package entity

import (
	"errors"
	"fmt"
)

type FillErrorKind string

const (
	FillErrNoFields         FillErrorKind = "no_fields"
	FillErrNoCredentials    FillErrorKind = "no_credentials"
	FillErrNoPrompt         FillErrorKind = "no_prompt"
	FillErrNoModel          FillErrorKind = "no_model"
	FillErrCompletionFailed FillErrorKind = "completion_failed"
	FillErrInvalidResponse  FillErrorKind = "invalid_response"
	FillErrTimeout          FillErrorKind = "timeout"
	FillErrAborted          FillErrorKind = "aborted"
	FillErrTransport        FillErrorKind = "transport"
	FillErrNormalize        FillErrorKind = "normalize_failed"
)

// FillError is the tagged failure of one episode step.
type FillError struct {
	Kind FillErrorKind
	Err  error
}

func NewFillError(kind FillErrorKind, err error) *FillError {
	return &FillError{Kind: kind, Err: err}
}

func (e *FillError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *FillError) Unwrap() error {
	return e.Err
}

// FillErrorKindOf returns the kind of a FillError anywhere in err's chain.
func FillErrorKindOf(err error) (FillErrorKind, bool) {
	var fe *FillError
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return "", false
}
