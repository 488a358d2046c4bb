package common

import "errors"

// Kind classifies a failure of the emotion pipeline
type Kind string

// Error kinds
const (
	KindDecode               Kind = "DECODE_FAILED"
	KindEmptySignal          Kind = "EMPTY_SIGNAL"
	KindInsufficientData     Kind = "INSUFFICIENT_DATA"
	KindDimensionMismatch    Kind = "DIMENSION_MISMATCH"
	KindCorruptArtifact      Kind = "CORRUPT_ARTIFACT"
	KindIncompatibleArtifact Kind = "INCOMPATIBLE_ARTIFACT"
	KindClassifierFailure    Kind = "CLASSIFIER_FAILURE"
)

// Sentinels for errors.Is comparisons. Any *Error of the same kind matches.
var (
	ErrDecode               = &Error{Kind: KindDecode, Message: "audio could not be decoded"}
	ErrEmptySignal          = &Error{Kind: KindEmptySignal, Message: "audio signal is empty or silent"}
	ErrInsufficientData     = &Error{Kind: KindInsufficientData, Message: "not enough training samples"}
	ErrDimensionMismatch    = &Error{Kind: KindDimensionMismatch, Message: "feature vector length does not match model"}
	ErrCorruptArtifact      = &Error{Kind: KindCorruptArtifact, Message: "model artifact could not be parsed"}
	ErrIncompatibleArtifact = &Error{Kind: KindIncompatibleArtifact, Message: "model artifact is incompatible"}
	ErrClassifierFailure    = &Error{Kind: KindClassifierFailure, Message: "classifier failed"}
)

// Error represents a pipeline error with the stage and input it relates to
type Error struct {
	Kind    Kind   `json:"kind"`
	Op      string `json:"op,omitempty"`     // Stage that failed, e.g. "decode", "train"
	Source  string `json:"source,omitempty"` // Input identifier, usually a file name
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Source != "" {
		msg = e.Source + ": " + msg
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// NewError creates a new pipeline error
func NewError(kind Kind, op, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
		Cause:   cause,
	}
}

// WithSource returns a copy of the error annotated with the input identifier
func (e *Error) WithSource(source string) *Error {
	c := *e
	c.Source = source
	return &c
}

// KindOf returns the kind of the first *Error in err's chain, or "" if there is none
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
