package core

import "errors"

// Primitive arithmetic errors
var (
	// ErrDivisionByZero is returned when dividing by (or inverting) the zero element
	ErrDivisionByZero = errors.New("division by zero")

	// ErrValueOutOfRange is returned when a value does not fit the target integer width
	ErrValueOutOfRange = errors.New("value does not fit the target integer width")

	// ErrIntegerOverflow is returned by checked unsigned addition
	ErrIntegerOverflow = errors.New("integer overflow")

	// ErrIntegerUnderflow is returned by checked unsigned subtraction
	ErrIntegerUnderflow = errors.New("integer underflow")

	// ErrInvalidFeltString is returned when a string cannot be parsed as a field element
	ErrInvalidFeltString = errors.New("invalid field element string")
)
