package memory

import (
	"errors"
	"fmt"
)

// Address arithmetic errors
var (
	// ErrOffsetOverflow is returned when an offset would exceed the 32-bit range
	ErrOffsetOverflow = errors.New("relocatable offset overflow")

	// ErrOffsetUnderflow is returned when an offset would become negative
	ErrOffsetUnderflow = errors.New("relocatable offset underflow")

	// ErrForbiddenOperation is returned for operations with no defined semantics on addresses
	ErrForbiddenOperation = errors.New("forbidden operation on relocatable")

	// ErrSegmentMismatch is returned when subtracting addresses of different segments
	ErrSegmentMismatch = errors.New("relocatables belong to different segments")
)

// Memory access errors
var (
	// ErrUndefinedValue is returned when reading a cell that was never written
	ErrUndefinedValue = errors.New("undefined memory value")

	// ErrInconsistentMemory is returned when rewriting a cell with a different value
	ErrInconsistentMemory = errors.New("inconsistent memory assignment")

	// ErrUnallocatedSegment is returned when addressing a segment that does not exist
	ErrUnallocatedSegment = errors.New("segment is not allocated")

	// ErrSegmentTooLarge is returned when a write would grow a segment past its size limit
	ErrSegmentTooLarge = errors.New("segment size limit exceeded")

	// ErrExpectedFelt is returned when a cell holds a relocatable where a field element is required
	ErrExpectedFelt = errors.New("expected a field element")

	// ErrExpectedRelocatable is returned when a cell holds a field element where an address is required
	ErrExpectedRelocatable = errors.New("expected a relocatable")
)

// UndefinedValueError reports the address of an undefined cell
type UndefinedValueError struct {
	Address Relocatable
}

// Error returns the error message
func (e *UndefinedValueError) Error() string {
	return fmt.Sprintf("value cannot be inferred from undefined cell at %s", e.Address)
}

// Unwrap returns ErrUndefinedValue
func (e *UndefinedValueError) Unwrap() error {
	return ErrUndefinedValue
}

// InconsistentMemoryError reports a write-once violation
type InconsistentMemoryError struct {
	Address  Relocatable
	Existing MaybeRelocatable
	New      MaybeRelocatable
}

// Error returns the error message
func (e *InconsistentMemoryError) Error() string {
	return fmt.Sprintf("inconsistent memory assignment at %s: existing %s, new %s", e.Address, e.Existing, e.New)
}

// Unwrap returns ErrInconsistentMemory
func (e *InconsistentMemoryError) Unwrap() error {
	return ErrInconsistentMemory
}
