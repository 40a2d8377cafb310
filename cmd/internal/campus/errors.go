package campus

import (
	"errors"
	"fmt"
)

// Sentinel error kinds, mapped to HTTP status codes by the api package.
var (
	ErrInvalidInput = errors.New("invalid_input")
	ErrNotFound     = errors.New("not_found")
	ErrConflict     = errors.New("conflict")
)

// OpError carries the failing operation, its kind and a client-safe message.
type OpError struct {
	Op   string
	Kind error
	Msg  string
}

func (e OpError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Msg)
}

func (e OpError) Unwrap() error { return e.Kind }

func invalid(op, msg string) error  { return OpError{Op: op, Kind: ErrInvalidInput, Msg: msg} }
func notFound(op, what string) error { return OpError{Op: op, Kind: ErrNotFound, Msg: what + " not found"} }
func conflict(op, msg string) error  { return OpError{Op: op, Kind: ErrConflict, Msg: msg} }

func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }
func IsNotFound(err error) bool     { return errors.Is(err, ErrNotFound) }
func IsConflict(err error) bool     { return errors.Is(err, ErrConflict) }

// Message returns the client-safe message of an OpError, or "".
func Message(err error) string {
	var oe OpError
	if errors.As(err, &oe) {
		return oe.Msg
	}
	return ""
}
