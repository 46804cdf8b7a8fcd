package store

import (
	"errors"
	"fmt"
)

var (
	ErrRead  = errors.New("store read failed")
	ErrWrite = errors.New("store write failed")
)

// OpError records which store operation failed. It matches both its kind
// (ErrRead or ErrWrite) and the driver cause with errors.Is.
type OpError struct {
	Op   string
	Kind error
	Err  error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *OpError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func readErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Kind: ErrRead, Err: err}
}

func writeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Kind: ErrWrite, Err: err}
}
