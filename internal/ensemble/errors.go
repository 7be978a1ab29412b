package ensemble

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfRange indicates an index outside [0, Len()).
	ErrOutOfRange = errors.New("ensemble: index out of range")

	// ErrConfiguration indicates invalid construction parameters.
	ErrConfiguration = errors.New("ensemble: invalid configuration")

	// ErrUnknownLayout indicates a layout name that is not registered.
	ErrUnknownLayout = errors.New("ensemble: unknown layout")

	// ErrSpanLength indicates spans whose lengths do not match the ensemble.
	ErrSpanLength = errors.New("ensemble: span length mismatch")
)

// IndexError records the offending index of a failed accessor call.
type IndexError struct {
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("ensemble: index %d out of range [0, %d)", e.Index, e.Len)
}

func (e *IndexError) Unwrap() error {
	return ErrOutOfRange
}

func checkIndex(i, n int) error {
	if i < 0 || i >= n {
		return &IndexError{Index: i, Len: n}
	}
	return nil
}
