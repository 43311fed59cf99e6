package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so the scheduler can decide per-kind behavior:
// auth and upstream abort the cycle and retry next cycle, parse is skipped
// locally, store degrades to stateless mode, delivery is logged and dropped.
type Kind string

const (
	KindAuth     Kind = "auth"
	KindUpstream Kind = "upstream"
	KindParse    Kind = "parse"
	KindStore    Kind = "store"
	KindDelivery Kind = "delivery"
	KindUnknown  Kind = "unknown"
)

// Error is a classified error with the operation that produced it
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E wraps err with a kind and operation name
func E(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf is E with fmt-style message construction
func Errorf(kind Kind, op, format string, args ...interface{}) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the classification of err, or KindUnknown
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
