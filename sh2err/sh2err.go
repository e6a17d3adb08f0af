// Package sh2err defines the error taxonomy shared by the shtp and sh2
// packages: a small status code enum mirroring the C driver's SH2_ERR_*
// values, wrapped so callers can still use errors.Is / errors.As.
package sh2err

import (
	"errors"
	"fmt"
)

// Code is a coarse status, returned from the hub or synthesized locally.
type Code int

const (
	OK Code = iota
	Err
	BadParam
	OpInProgress
	Timeout
	Hub
	IO
)

func (c Code) String() string {
	switch c {
	case OK:
		return "ok"
	case Err:
		return "error"
	case BadParam:
		return "bad parameter"
	case OpInProgress:
		return "operation in progress"
	case Timeout:
		return "timeout"
	case Hub:
		return "hub reported error"
	case IO:
		return "i/o error"
	default:
		return "unknown"
	}
}

// Error pairs a Code with an optional underlying cause.
type Error struct {
	Code Code
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code.String()
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps a Code as an error. Returns nil for OK, matching the
// SH2_OK-is-zero convention the C API uses for "return rc" idioms.
func New(c Code) error {
	if c == OK {
		return nil
	}
	return &Error{Code: c}
}

// Wrap pairs a Code with a causing error.
func Wrap(c Code, err error) error {
	if c == OK && err == nil {
		return nil
	}
	return &Error{Code: c, Err: err}
}

// CodeOf extracts the Code from err, defaulting to Err for unrecognized errors.
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return Err
}
