// Package vm provides the Vybium Cairo VM execution engine
package vm

import (
	"fmt"
)

// Register selects the base register of a dst or op0 operand
type Register uint8

const (
	AP Register = iota
	FP
)

func (r Register) String() string {
	if r == FP {
		return "fp"
	}
	return "ap"
}

// Op1Src selects where op1 is read from
type Op1Src uint8

const (
	Op1SrcOp0 Op1Src = iota
	Op1SrcImm
	Op1SrcFP
	Op1SrcAP
)

// ResLogic selects how res is computed from op0 and op1
type ResLogic uint8

const (
	ResOp1 ResLogic = iota
	ResAdd
	ResMul
	ResUnconstrained
)

// PcUpdate selects how pc moves after the instruction
type PcUpdate uint8

const (
	PcUpdateRegular PcUpdate = iota
	PcUpdateJump
	PcUpdateJumpRel
	PcUpdateJnz
)

// ApUpdate selects how ap moves after the instruction
type ApUpdate uint8

const (
	ApUpdateRegular ApUpdate = iota
	ApUpdateAdd
	ApUpdateAdd1
	ApUpdateAdd2
)

// FpUpdate is derived from the opcode, it has no bits of its own
type FpUpdate uint8

const (
	FpUpdateRegular FpUpdate = iota
	FpUpdateApPlus2
	FpUpdateDst
)

// Opcode is the instruction kind
type Opcode uint8

const (
	OpcodeNoOp Opcode = iota
	OpcodeCall
	OpcodeRet
	OpcodeAssertEq
)

var (
	op1SrcNames   = [...]string{"op0", "imm", "fp", "ap"}
	resLogicNames = [...]string{"op1", "add", "mul", "unconstrained"}
	pcUpdateNames = [...]string{"regular", "jump", "jump_rel", "jnz"}
	apUpdateNames = [...]string{"regular", "add", "add1", "add2"}
	fpUpdateNames = [...]string{"regular", "ap_plus2", "dst"}
	opcodeNames   = [...]string{"nop", "call", "ret", "assert_eq"}
)

func (s Op1Src) String() string   { return op1SrcNames[s] }
func (r ResLogic) String() string { return resLogicNames[r] }
func (u PcUpdate) String() string { return pcUpdateNames[u] }
func (u ApUpdate) String() string { return apUpdateNames[u] }
func (u FpUpdate) String() string { return fpUpdateNames[u] }
func (o Opcode) String() string   { return opcodeNames[o] }

// Bit layout of the flag word, which sits above the three 16-bit offsets
const (
	offsetBias = 1 << 15

	flagDstRegBit = 0
	flagOp0RegBit = 1
	flagOp1Shift  = 2
	flagResShift  = 5
	flagPcShift   = 7
	flagApShift   = 10
	flagOpShift   = 12
	flagsShift    = 48
	highBit       = 63
)

// Instruction is a decoded Cairo instruction
type Instruction struct {
	OffDst int16
	OffOp0 int16
	OffOp1 int16

	DstRegister Register
	Op0Register Register
	Op1Src      Op1Src
	ResLogic    ResLogic
	PcUpdate    PcUpdate
	ApUpdate    ApUpdate
	FpUpdate    FpUpdate
	Opcode      Opcode
}

// Size returns the number of words the instruction occupies, 2 when it carries an immediate
func (inst Instruction) Size() uint32 {
	if inst.Op1Src == Op1SrcImm {
		return 2
	}
	return 1
}

// String returns a compact description of the instruction
func (inst Instruction) String() string {
	return fmt.Sprintf("%s dst=[%s%+d] op0=[%s%+d] op1=%s%+d res=%s pc=%s ap=%s fp=%s",
		inst.Opcode, inst.DstRegister, inst.OffDst, inst.Op0Register, inst.OffOp0,
		inst.Op1Src, inst.OffOp1, inst.ResLogic, inst.PcUpdate, inst.ApUpdate, inst.FpUpdate)
}

func decodeOffset(word uint64, shift uint) int16 {
	return int16(int32((word>>shift)&0xffff) - offsetBias)
}

func encodeOffset(off int16) uint64 {
	return uint64(int32(off) + offsetBias)
}

// DecodeInstruction decodes a 64-bit instruction word
//
// The high bit is checked first, then op1 source, pc update, result logic,
// ap update and opcode, in that order. Decoding fails as a whole.
func DecodeInstruction(word uint64) (Instruction, error) {
	if word>>highBit != 0 {
		return Instruction{}, fmt.Errorf("%w: 0x%x", ErrHighBitSet, word)
	}

	flags := word >> flagsShift
	inst := Instruction{
		OffDst: decodeOffset(word, 0),
		OffOp0: decodeOffset(word, 16),
		OffOp1: decodeOffset(word, 32),
	}

	if (flags>>flagDstRegBit)&1 == 1 {
		inst.DstRegister = FP
	}
	if (flags>>flagOp0RegBit)&1 == 1 {
		inst.Op0Register = FP
	}

	switch (flags >> flagOp1Shift) & 0b111 {
	case 0:
		inst.Op1Src = Op1SrcOp0
	case 1:
		inst.Op1Src = Op1SrcImm
	case 2:
		inst.Op1Src = Op1SrcFP
	case 4:
		inst.Op1Src = Op1SrcAP
	default:
		return Instruction{}, fmt.Errorf("%w: 0x%x", ErrInvalidOp1Source, word)
	}

	switch (flags >> flagPcShift) & 0b111 {
	case 0:
		inst.PcUpdate = PcUpdateRegular
	case 1:
		inst.PcUpdate = PcUpdateJump
	case 2:
		inst.PcUpdate = PcUpdateJumpRel
	case 4:
		inst.PcUpdate = PcUpdateJnz
	default:
		return Instruction{}, fmt.Errorf("%w: 0x%x", ErrInvalidPcUpdate, word)
	}

	switch (flags >> flagResShift) & 0b11 {
	case 0:
		if inst.PcUpdate == PcUpdateJnz {
			inst.ResLogic = ResUnconstrained
		} else {
			inst.ResLogic = ResOp1
		}
	case 1:
		inst.ResLogic = ResAdd
	case 2:
		inst.ResLogic = ResMul
	default:
		return Instruction{}, fmt.Errorf("%w: 0x%x", ErrInvalidResultLogic, word)
	}

	opcodeBits := (flags >> flagOpShift) & 0b111

	switch (flags >> flagApShift) & 0b11 {
	case 0:
		if opcodeBits == 1 {
			inst.ApUpdate = ApUpdateAdd2
		} else {
			inst.ApUpdate = ApUpdateRegular
		}
	case 1:
		inst.ApUpdate = ApUpdateAdd
	case 2:
		inst.ApUpdate = ApUpdateAdd1
	default:
		return Instruction{}, fmt.Errorf("%w: 0x%x", ErrInvalidApUpdate, word)
	}

	switch opcodeBits {
	case 0:
		inst.Opcode = OpcodeNoOp
	case 1:
		inst.Opcode = OpcodeCall
		inst.FpUpdate = FpUpdateApPlus2
	case 2:
		inst.Opcode = OpcodeRet
		inst.FpUpdate = FpUpdateDst
	case 4:
		inst.Opcode = OpcodeAssertEq
	default:
		return Instruction{}, fmt.Errorf("%w: 0x%x", ErrInvalidOpcode, word)
	}

	return inst, nil
}

// EncodeInstruction is the inverse of DecodeInstruction
//
// FpUpdate is ignored since it is implied by the opcode. ApUpdateAdd2 is only
// representable on a Call, and ResUnconstrained only with a Jnz.
func EncodeInstruction(inst Instruction) (uint64, error) {
	var flags uint64
	if inst.DstRegister == FP {
		flags |= 1 << flagDstRegBit
	}
	if inst.Op0Register == FP {
		flags |= 1 << flagOp0RegBit
	}

	var op1 uint64
	switch inst.Op1Src {
	case Op1SrcOp0:
		op1 = 0
	case Op1SrcImm:
		op1 = 1
	case Op1SrcFP:
		op1 = 2
	case Op1SrcAP:
		op1 = 4
	default:
		return 0, fmt.Errorf("%w: op1 source %d", ErrNotEncodable, inst.Op1Src)
	}
	flags |= op1 << flagOp1Shift

	var res uint64
	switch inst.ResLogic {
	case ResOp1:
		if inst.PcUpdate == PcUpdateJnz {
			return 0, fmt.Errorf("%w: jnz implies unconstrained res", ErrNotEncodable)
		}
		res = 0
	case ResAdd:
		res = 1
	case ResMul:
		res = 2
	case ResUnconstrained:
		if inst.PcUpdate != PcUpdateJnz {
			return 0, fmt.Errorf("%w: unconstrained res requires jnz", ErrNotEncodable)
		}
		res = 0
	default:
		return 0, fmt.Errorf("%w: result logic %d", ErrNotEncodable, inst.ResLogic)
	}
	flags |= res << flagResShift

	var pc uint64
	switch inst.PcUpdate {
	case PcUpdateRegular:
		pc = 0
	case PcUpdateJump:
		pc = 1
	case PcUpdateJumpRel:
		pc = 2
	case PcUpdateJnz:
		pc = 4
	default:
		return 0, fmt.Errorf("%w: pc update %d", ErrNotEncodable, inst.PcUpdate)
	}
	flags |= pc << flagPcShift

	var ap uint64
	switch inst.ApUpdate {
	case ApUpdateRegular:
		if inst.Opcode == OpcodeCall {
			return 0, fmt.Errorf("%w: call implies ap += 2", ErrNotEncodable)
		}
		ap = 0
	case ApUpdateAdd:
		ap = 1
	case ApUpdateAdd1:
		ap = 2
	case ApUpdateAdd2:
		if inst.Opcode != OpcodeCall {
			return 0, fmt.Errorf("%w: ap += 2 requires call", ErrNotEncodable)
		}
		ap = 0
	default:
		return 0, fmt.Errorf("%w: ap update %d", ErrNotEncodable, inst.ApUpdate)
	}
	flags |= ap << flagApShift

	var op uint64
	switch inst.Opcode {
	case OpcodeNoOp:
		op = 0
	case OpcodeCall:
		op = 1
	case OpcodeRet:
		op = 2
	case OpcodeAssertEq:
		op = 4
	default:
		return 0, fmt.Errorf("%w: opcode %d", ErrNotEncodable, inst.Opcode)
	}
	flags |= op << flagOpShift

	return flags<<flagsShift |
		encodeOffset(inst.OffOp1)<<32 |
		encodeOffset(inst.OffOp0)<<16 |
		encodeOffset(inst.OffDst), nil
}
