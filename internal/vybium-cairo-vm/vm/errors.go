package vm

import (
	"errors"
	"fmt"

	"github.com/vybium/vybium-cairo-vm/internal/vybium-cairo-vm/memory"
)

// Instruction decoding errors
var (
	ErrHighBitSet         = errors.New("high bit of instruction word is set")
	ErrInvalidOp1Source   = errors.New("invalid op1 source")
	ErrInvalidPcUpdate    = errors.New("invalid pc update")
	ErrInvalidResultLogic = errors.New("invalid result logic")
	ErrInvalidApUpdate    = errors.New("invalid ap update")
	ErrInvalidOpcode      = errors.New("invalid opcode")
	ErrNotEncodable       = errors.New("instruction cannot be encoded")
)

// Run context errors
var (
	ErrImmediateOffsetMismatch = errors.New("immediate operand must be at offset 1 from pc")
	ErrOp0Undefined            = errors.New("op0 is undefined")
	ErrOp0NotRelocatable       = errors.New("op0 must be a relocatable to address op1")
	ErrInvalidRegisterSegment  = errors.New("register points outside its segment")
)

// Execution errors
var (
	ErrInstructionNotFelt     = errors.New("instruction word is not a field element")
	ErrInstructionTooLarge    = errors.New("instruction word does not fit in 64 bits")
	ErrMulRelocatable         = errors.New("cannot multiply relocatables")
	ErrResUndefined           = errors.New("res is undefined")
	ErrAssertEqFailed         = errors.New("assert_eq failed: dst != res")
	ErrCallOp0Mismatch        = errors.New("call: op0 must hold the return pc")
	ErrCallDstMismatch        = errors.New("call: dst must hold the current fp")
	ErrApUpdateRelocatable    = errors.New("ap update: res must be a field element")
	ErrJumpNotRelocatable     = errors.New("absolute jump: res must be a relocatable")
	ErrJumpRelNotFelt         = errors.New("relative jump: res must be a field element")
	ErrJnzRelocatableOp1      = errors.New("jnz: op1 must be a field element")
	ErrMachineHalted          = errors.New("machine already halted")
	ErrStepLimitExceeded      = errors.New("step limit exceeded")
	ErrUnknownBuiltin         = errors.New("unknown builtin")
	ErrDuplicateBuiltin       = errors.New("builtin declared twice")
	ErrEmptyProgram           = errors.New("empty program")
	ErrEntrypointOutOfProgram = errors.New("entrypoint is outside the program")
)

// Dictionary and hint errors
var (
	ErrDictionaryNotFound   = errors.New("dictionary not found")
	ErrDictIndexMismatch    = errors.New("dictionary index mismatch")
	ErrPtrDiffNotDivisible  = errors.New("pointer difference is not divisible by the dict access size")
	ErrSquashNotInitialized = errors.New("squash state is not initialized")
	ErrEmptySquashKeys      = errors.New("no keys left to squash")
	ErrEmptySquashIndices   = errors.New("no access indices left for the current key")
	ErrNoExcludedArc        = errors.New("no excluded arc, run AssertLeFindSmallArcs first")
	ErrUnknownHint          = errors.New("unknown hint")
	ErrInvalidDictKey       = errors.New("dictionary key must be a field element")
	ErrDictAccessMismatch   = errors.New("dictionary access log does not match memory")
)

// StepError attaches the registers of the failing step to an execution error
type StepError struct {
	Step uint64
	PC   memory.Relocatable
	AP   memory.Relocatable
	FP   memory.Relocatable
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (pc=%s ap=%s fp=%s): %v", e.Step, e.PC, e.AP, e.FP, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// HintError reports a failing hint together with its position
type HintError struct {
	PC   uint32
	Hint string
	Err  error
}

func (e *HintError) Error() string {
	return fmt.Sprintf("hint %s at pc offset %d: %v", e.Hint, e.PC, e.Err)
}

func (e *HintError) Unwrap() error {
	return e.Err
}
