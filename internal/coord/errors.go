package coord

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCoordinateFormat = errors.New("invalid coordinate format")
	ErrOutOfRange              = errors.New("coordinate out of range")
)

// InvalidFormatError is returned when a token is neither a decimal number
// nor a complete DMS expression.
type InvalidFormatError struct {
	Raw any
}

func (e *InvalidFormatError) Error() string {
	return fmt.Sprintf("%v: %q", ErrInvalidCoordinateFormat, fmt.Sprint(e.Raw))
}

func (e *InvalidFormatError) Unwrap() error { return ErrInvalidCoordinateFormat }

// OutOfRangeError reports a latitude outside [-90, 90] or a longitude
// outside [-180, 180].
type OutOfRangeError struct {
	Axis  Axis
	Value float64
}

func (e *OutOfRangeError) Error() string {
	lo, hi := e.Axis.bounds()
	return fmt.Sprintf("%v: %s %g not in [%g, %g]", ErrOutOfRange, e.Axis, e.Value, lo, hi)
}

func (e *OutOfRangeError) Unwrap() error { return ErrOutOfRange }
