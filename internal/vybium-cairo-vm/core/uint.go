package core

import (
	"fmt"
	"math"
	"math/bits"
)

// AddUint32 returns a + b, failing instead of wrapping around
func AddUint32(a, b uint32) (uint32, error) {
	sum, carry := bits.Add32(a, b, 0)
	if carry != 0 {
		return 0, fmt.Errorf("%w: %d + %d", ErrIntegerOverflow, a, b)
	}
	return sum, nil
}

// SubUint32 returns a - b, failing instead of wrapping around
func SubUint32(a, b uint32) (uint32, error) {
	diff, borrow := bits.Sub32(a, b, 0)
	if borrow != 0 {
		return 0, fmt.Errorf("%w: %d - %d", ErrIntegerUnderflow, a, b)
	}
	return diff, nil
}

// ToUint32 converts a signed integer to a uint32
func ToUint32(v int64) (uint32, error) {
	if v < 0 || v > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %d is not a uint32", ErrValueOutOfRange, v)
	}
	return uint32(v), nil
}

// ToInt16 converts a signed integer to an int16
func ToInt16(v int64) (int16, error) {
	if v < math.MinInt16 || v > math.MaxInt16 {
		return 0, fmt.Errorf("%w: %d is not an int16", ErrValueOutOfRange, v)
	}
	return int16(v), nil
}

// Uint64ToUint32 narrows a uint64 to a uint32
func Uint64ToUint32(v uint64) (uint32, error) {
	if v > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %d is not a uint32", ErrValueOutOfRange, v)
	}
	return uint32(v), nil
}
