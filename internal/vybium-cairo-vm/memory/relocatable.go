// Package memory provides the segmented, relocatable address space of the Cairo VM
package memory

import (
	"fmt"
	"math"

	"github.com/vybium/vybium-cairo-vm/internal/vybium-cairo-vm/core"
)

// Fixed segments
const (
	// ProgramSegment hosts the program bytecode, pc always points into it
	ProgramSegment uint32 = 0

	// ExecutionSegment hosts the stack, ap and fp always point into it
	ExecutionSegment uint32 = 1
)

// Relocatable is a two-part (segment, offset) address
//
// Relocatables are immutable values: every arithmetic operation returns a new
// address and fails instead of wrapping around.
type Relocatable struct {
	SegmentIndex uint32
	Offset       uint32
}

// NewRelocatable creates a new address
func NewRelocatable(segment, offset uint32) Relocatable {
	return Relocatable{SegmentIndex: segment, Offset: offset}
}

// NewProgramCounter creates an address pinned to the program segment
func NewProgramCounter(offset uint32) Relocatable {
	return Relocatable{SegmentIndex: ProgramSegment, Offset: offset}
}

// NewMemoryPointer creates an address pinned to the execution segment
func NewMemoryPointer(offset uint32) Relocatable {
	return Relocatable{SegmentIndex: ExecutionSegment, Offset: offset}
}

// AddUint returns r displaced forward by n cells
func (r Relocatable) AddUint(n uint32) (Relocatable, error) {
	if uint64(r.Offset)+uint64(n) > math.MaxUint32 {
		return Relocatable{}, fmt.Errorf("%w: %s + %d", ErrOffsetOverflow, r, n)
	}
	return Relocatable{SegmentIndex: r.SegmentIndex, Offset: r.Offset + n}, nil
}

// AddFelt returns r displaced forward by a field element, which must fit in 32 bits
func (r Relocatable) AddFelt(f core.Felt) (Relocatable, error) {
	n, err := f.ToUint32()
	if err != nil {
		return Relocatable{}, fmt.Errorf("%w: %s + %s", ErrOffsetOverflow, r, f.Hex())
	}
	return r.AddUint(n)
}

// AddSignedFelt returns r displaced by a field element read as a signed amount
//
// A felt holding -n moves the address back by n. This is the displacement of
// relative jumps and of ap and fp updates; both n and -n are tried as 32-bit
// magnitudes.
func (r Relocatable) AddSignedFelt(f core.Felt) (Relocatable, error) {
	if n, err := f.ToUint32(); err == nil {
		return r.AddUint(n)
	}
	n, err := f.Neg().ToUint32()
	if err != nil {
		return Relocatable{}, fmt.Errorf("%w: %s + %s", ErrOffsetOverflow, r, f.Hex())
	}
	return r.SubUint(n)
}

// AddInt returns r displaced by a signed amount
func (r Relocatable) AddInt(n int64) (Relocatable, error) {
	if n >= 0 {
		if n > math.MaxUint32 {
			return Relocatable{}, fmt.Errorf("%w: %s + %d", ErrOffsetOverflow, r, n)
		}
		return r.AddUint(uint32(n))
	}
	if n < -math.MaxUint32 {
		return Relocatable{}, fmt.Errorf("%w: %s - %d", ErrOffsetUnderflow, r, -n)
	}
	return r.SubUint(uint32(-n))
}

// AddMaybeRelocatable adds a field element to r; adding two addresses is forbidden
func (r Relocatable) AddMaybeRelocatable(other MaybeRelocatable) (Relocatable, error) {
	if felt, ok := other.GetFelt(); ok {
		return r.AddFelt(felt)
	}
	return Relocatable{}, fmt.Errorf("%w: %s + %s", ErrForbiddenOperation, r, other)
}

// SubUint returns r displaced backward by n cells
func (r Relocatable) SubUint(n uint32) (Relocatable, error) {
	if r.Offset < n {
		return Relocatable{}, fmt.Errorf("%w: %s - %d", ErrOffsetUnderflow, r, n)
	}
	return Relocatable{SegmentIndex: r.SegmentIndex, Offset: r.Offset - n}, nil
}

// SubFelt returns r displaced backward by a field element, which must fit in 32 bits
func (r Relocatable) SubFelt(f core.Felt) (Relocatable, error) {
	n, err := f.ToUint32()
	if err != nil {
		return Relocatable{}, fmt.Errorf("%w: %s - %s", ErrOffsetUnderflow, r, f.Hex())
	}
	return r.SubUint(n)
}

// Sub returns the distance between two addresses of the same segment
func (r Relocatable) Sub(other Relocatable) (core.Felt, error) {
	if r.SegmentIndex != other.SegmentIndex {
		return core.Felt{}, fmt.Errorf("%w: %s - %s", ErrSegmentMismatch, r, other)
	}
	if r.Offset < other.Offset {
		return core.Felt{}, fmt.Errorf("%w: %s - %s", ErrOffsetUnderflow, r, other)
	}
	return core.FeltFromUint64(uint64(r.Offset - other.Offset)), nil
}

// Mul is not defined on addresses
func (r Relocatable) Mul(other MaybeRelocatable) error {
	return fmt.Errorf("%w: %s * %s", ErrForbiddenOperation, r, other)
}

// Div is not defined on addresses
func (r Relocatable) Div(other MaybeRelocatable) error {
	return fmt.Errorf("%w: %s / %s", ErrForbiddenOperation, r, other)
}

// Equal reports whether both components match
func (r Relocatable) Equal(other Relocatable) bool {
	return r == other
}

// String returns the address as segment:offset
func (r Relocatable) String() string {
	return fmt.Sprintf("%d:%d", r.SegmentIndex, r.Offset)
}
