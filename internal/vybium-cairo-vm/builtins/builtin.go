// Package builtins implements the Cairo builtins as memory segment rules
//
// A builtin owns one memory segment. It checks writes to that segment with a
// validation rule, and may compute undefined cells with a deduction rule.
package builtins

import (
	"fmt"

	"github.com/vybium/vybium-cairo-vm/internal/vybium-cairo-vm/memory"
)

// Builtin names as they appear in compiled programs
const (
	RangeCheckName = "range_check"
	ECDSAName      = "ecdsa"
	ECOpName       = "ec_op"
)

// DefaultRangeCheckBoundExponent is the bit width accepted by the range check builtin
const DefaultRangeCheckBoundExponent = 128

// Builtin is a memory segment with attached rules
type Builtin interface {
	// Name returns the builtin name
	Name() string

	// CellsPerInstance returns the number of cells of one builtin invocation
	CellsPerInstance() uint32

	// InitSegment allocates the builtin segment and attaches its rules
	InitSegment(mem *memory.Memory) memory.Relocatable

	// Base returns the segment base, valid after InitSegment
	Base() memory.Relocatable
}

// New creates a builtin from its name
func New(name string, rangeCheckBoundExponent uint) (Builtin, error) {
	switch name {
	case RangeCheckName:
		return NewRangeCheck(rangeCheckBoundExponent), nil
	case ECDSAName:
		return NewSignature(), nil
	case ECOpName:
		return NewECOp(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBuiltin, name)
}

// IsKnown reports whether name designates a supported builtin
func IsKnown(name string) bool {
	switch name {
	case RangeCheckName, ECDSAName, ECOpName:
		return true
	}
	return false
}

type segment struct {
	base memory.Relocatable
}

func (s *segment) Base() memory.Relocatable {
	return s.base
}

// instanceBase returns the address of the first cell of the instance containing addr
func instanceBase(addr memory.Relocatable, cells uint32) memory.Relocatable {
	return memory.NewRelocatable(addr.SegmentIndex, addr.Offset-addr.Offset%cells)
}
