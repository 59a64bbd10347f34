package vm

import (
	"fmt"

	"github.com/vybium/vybium-cairo-vm/internal/vybium-cairo-vm/memory"
)

// RunContext holds the three VM registers
//
// pc always points into the program segment, ap and fp into the execution
// segment. The setters enforce it.
type RunContext struct {
	pc memory.Relocatable
	ap memory.Relocatable
	fp memory.Relocatable
}

// NewRunContext creates a run context from register offsets
func NewRunContext(pc, ap, fp uint32) *RunContext {
	return &RunContext{
		pc: memory.NewProgramCounter(pc),
		ap: memory.NewMemoryPointer(ap),
		fp: memory.NewMemoryPointer(fp),
	}
}

func (rc *RunContext) PC() memory.Relocatable { return rc.pc }
func (rc *RunContext) AP() memory.Relocatable { return rc.ap }
func (rc *RunContext) FP() memory.Relocatable { return rc.fp }

// SetPC moves pc, which must stay in the program segment
func (rc *RunContext) SetPC(pc memory.Relocatable) error {
	if pc.SegmentIndex != memory.ProgramSegment {
		return fmt.Errorf("%w: pc=%s", ErrInvalidRegisterSegment, pc)
	}
	rc.pc = pc
	return nil
}

// SetAP moves ap, which must stay in the execution segment
func (rc *RunContext) SetAP(ap memory.Relocatable) error {
	if ap.SegmentIndex != memory.ExecutionSegment {
		return fmt.Errorf("%w: ap=%s", ErrInvalidRegisterSegment, ap)
	}
	rc.ap = ap
	return nil
}

// SetFP moves fp, which must stay in the execution segment
func (rc *RunContext) SetFP(fp memory.Relocatable) error {
	if fp.SegmentIndex != memory.ExecutionSegment {
		return fmt.Errorf("%w: fp=%s", ErrInvalidRegisterSegment, fp)
	}
	rc.fp = fp
	return nil
}

// IncrementPC advances pc by size words
func (rc *RunContext) IncrementPC(size uint32) error {
	pc, err := rc.pc.AddUint(size)
	if err != nil {
		return err
	}
	rc.pc = pc
	return nil
}

func (rc *RunContext) register(r Register) memory.Relocatable {
	if r == FP {
		return rc.fp
	}
	return rc.ap
}

// ComputeAddress returns register + offset
func (rc *RunContext) ComputeAddress(r Register, offset int16) (memory.Relocatable, error) {
	return rc.register(r).AddInt(int64(offset))
}

// ComputeDstAddress returns the address of the dst operand
func (rc *RunContext) ComputeDstAddress(inst Instruction) (memory.Relocatable, error) {
	return rc.ComputeAddress(inst.DstRegister, inst.OffDst)
}

// ComputeOp0Address returns the address of the op0 operand
func (rc *RunContext) ComputeOp0Address(inst Instruction) (memory.Relocatable, error) {
	return rc.ComputeAddress(inst.Op0Register, inst.OffOp0)
}

// ComputeOp1Address returns the address of the op1 operand
//
// An immediate lives right after the instruction word, so its offset must be
// 1. With Op1SrcOp0, op0 must be a known relocatable.
func (rc *RunContext) ComputeOp1Address(src Op1Src, offset int16, op0 *memory.MaybeRelocatable) (memory.Relocatable, error) {
	var base memory.Relocatable
	switch src {
	case Op1SrcAP:
		base = rc.ap
	case Op1SrcFP:
		base = rc.fp
	case Op1SrcImm:
		if offset != 1 {
			return memory.Relocatable{}, fmt.Errorf("%w: got %d", ErrImmediateOffsetMismatch, offset)
		}
		base = rc.pc
	case Op1SrcOp0:
		if op0 == nil {
			return memory.Relocatable{}, ErrOp0Undefined
		}
		r, ok := op0.GetRelocatable()
		if !ok {
			return memory.Relocatable{}, fmt.Errorf("%w: op0=%s", ErrOp0NotRelocatable, op0)
		}
		base = r
	default:
		return memory.Relocatable{}, fmt.Errorf("%w: %d", ErrInvalidOp1Source, src)
	}
	return base.AddInt(int64(offset))
}

func (rc *RunContext) String() string {
	return fmt.Sprintf("pc=%s ap=%s fp=%s", rc.pc, rc.ap, rc.fp)
}
