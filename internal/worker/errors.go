package worker

import (
	"errors"

	"github.com/ironsheep/photobox/internal/model"
)

// Kind classifies a worker failure.
type Kind int

const (
	ProcessingFailure Kind = iota
	InvalidArgument
	DependencyMissing
	NotFound
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "InvalidArgument"
	case DependencyMissing:
		return "DependencyMissing"
	case NotFound:
		return "NotFound"
	default:
		return "ProcessingFailure"
	}
}

// Error is a classified worker failure. Msg, when set, is the message shown
// to clients; Err is the underlying cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return e.Msg + ": " + e.Err.Error()
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Invalid returns an InvalidArgument error.
func Invalid(msg string, err error) error {
	return &Error{Kind: InvalidArgument, Msg: msg, Err: err}
}

// Missing returns a DependencyMissing error wrapping err.
func Missing(err error) error {
	return &Error{Kind: DependencyMissing, Err: err}
}

// Failed returns a ProcessingFailure error.
func Failed(msg string, err error) error {
	return &Error{Kind: ProcessingFailure, Msg: msg, Err: err}
}

// KindOf returns the Kind of err. A missing model dependency anywhere in the
// chain is DependencyMissing; anything unclassified is ProcessingFailure.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, model.ErrDependencyMissing) {
		return DependencyMissing
	}
	return ProcessingFailure
}

// Classify wraps a model error, keeping DependencyMissing distinct from
// processing failures.
func Classify(msg string, err error) error {
	if errors.Is(err, model.ErrDependencyMissing) {
		return Missing(err)
	}
	return Failed(msg, err)
}
