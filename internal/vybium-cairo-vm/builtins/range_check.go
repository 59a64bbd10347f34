package builtins

import (
	"fmt"

	"github.com/vybium/vybium-cairo-vm/internal/vybium-cairo-vm/memory"
)

// RangeCheck accepts field elements in [0, 2^BoundExponent)
type RangeCheck struct {
	segment
	BoundExponent uint
}

// NewRangeCheck creates a range check builtin, 0 selects the default bound
func NewRangeCheck(boundExponent uint) *RangeCheck {
	if boundExponent == 0 {
		boundExponent = DefaultRangeCheckBoundExponent
	}
	return &RangeCheck{BoundExponent: boundExponent}
}

func (r *RangeCheck) Name() string { return RangeCheckName }

func (r *RangeCheck) CellsPerInstance() uint32 { return 1 }

func (r *RangeCheck) InitSegment(mem *memory.Memory) memory.Relocatable {
	r.base = mem.AllocateSegment()
	mem.AddValidationRule(r.base.SegmentIndex, r.Validate)
	return r.base
}

// Validate checks the value stored at addr
func (r *RangeCheck) Validate(mem *memory.Memory, addr memory.Relocatable) error {
	v, err := mem.Get(addr)
	if err != nil {
		return err
	}
	f, ok := v.GetFelt()
	if !ok {
		return fmt.Errorf("%w: %s at %s", ErrRangeCheckNotFelt, v, addr)
	}
	if uint(f.BitLen()) > r.BoundExponent {
		return &RangeCheckOutOfBoundsError{Value: f, BoundExponent: r.BoundExponent}
	}
	return nil
}
