package config

import (
	"errors"
	"fmt"
)

// ErrorKind tells a malformed input image apart from a numerical failure.
type ErrorKind int

const (
	KindPreprocess ErrorKind = iota + 1
	KindPostprocess
)

func (k ErrorKind) String() string {
	switch k {
	case KindPreprocess:
		return "preprocess"
	case KindPostprocess:
		return "postprocess"
	default:
		return "unknown"
	}
}

var (
	ErrPreprocess  = errors.New("preprocess error")
	ErrPostprocess = errors.New("postprocess error")
)

// AlignmentError is returned by every failing step. Both kinds are deterministic,
// retrying with the same input fails the same way.
type AlignmentError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *AlignmentError) Error() string {
	return fmt.Sprintf("%s error in %s: %v", e.Kind, e.Op, e.Err)
}

func (e *AlignmentError) Unwrap() error {
	return e.Err
}

// Is matches ErrPreprocess and ErrPostprocess by kind.
func (e *AlignmentError) Is(target error) bool {
	switch target {
	case ErrPreprocess:
		return e.Kind == KindPreprocess
	case ErrPostprocess:
		return e.Kind == KindPostprocess
	}
	return false
}

func NewPreprocessError(op string, err error) error {
	return &AlignmentError{Kind: KindPreprocess, Op: op, Err: err}
}

func NewPostprocessError(op string, err error) error {
	return &AlignmentError{Kind: KindPostprocess, Op: op, Err: err}
}

// KindOf returns the kind of err, or 0 when err is not an AlignmentError.
func KindOf(err error) ErrorKind {
	var alignErr *AlignmentError
	if errors.As(err, &alignErr) {
		return alignErr.Kind
	}
	return 0
}
