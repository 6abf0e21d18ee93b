package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a claim processing failure.
type ErrorKind string

const (
	// KindClaimNotFound means the claim input source does not exist. Fatal.
	KindClaimNotFound ErrorKind = "claim_not_found"
	// KindMalformedClaim means a field failed validation. Fatal.
	KindMalformedClaim ErrorKind = "malformed_claim"
	// KindProviderError is a mid-call reasoning provider failure. Recovered
	// inside a stage by falling back.
	KindProviderError ErrorKind = "provider_error"
	// KindTimeoutExceeded means the run exceeded its time budget. Fatal.
	KindTimeoutExceeded ErrorKind = "timeout_exceeded"
	// KindFatalStage means a deterministic fallback failed, which is a bug.
	KindFatalStage ErrorKind = "fatal_stage_error"
	// KindUnknown is reported for errors outside the taxonomy.
	KindUnknown ErrorKind = "unknown"
)

// UnknownClaimNumber is reported when a run fails before a claim number is known.
const UnknownClaimNumber = "unknown"

// Error is a classified claim processing error.
type Error struct {
	Kind        ErrorKind
	ClaimNumber string
	Field       string
	Err         error
}

func (e *Error) Error() string {
	claim := e.ClaimNumber
	if claim == "" {
		claim = UnknownClaimNumber
	}
	msg := fmt.Sprintf("%s (claim %s)", e.Kind, claim)
	if e.Field != "" {
		msg += ": field " + e.Field
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a classified error.
func NewError(kind ErrorKind, claimNumber string, err error) *Error {
	return &Error{Kind: kind, ClaimNumber: claimNumber, Err: err}
}

// MalformedField reports a validation failure on a single claim field.
func MalformedField(claimNumber, field, reason string) *Error {
	return &Error{
		Kind:        KindMalformedClaim,
		ClaimNumber: claimNumber,
		Field:       field,
		Err:         errors.New(reason),
	}
}

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnknown
}

// ClaimNumberOf returns the claim number carried by err, or "unknown".
func ClaimNumberOf(err error) string {
	var ce *Error
	if errors.As(err, &ce) && ce.ClaimNumber != "" {
		return ce.ClaimNumber
	}
	return UnknownClaimNumber
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
