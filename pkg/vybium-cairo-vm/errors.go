package vybiumcairovm

import (
	"errors"
	"fmt"

	"github.com/vybium/vybium-cairo-vm/internal/vybium-cairo-vm/builtins"
	"github.com/vybium/vybium-cairo-vm/internal/vybium-cairo-vm/core"
	"github.com/vybium/vybium-cairo-vm/internal/vybium-cairo-vm/hints"
	"github.com/vybium/vybium-cairo-vm/internal/vybium-cairo-vm/memory"
	"github.com/vybium/vybium-cairo-vm/internal/vybium-cairo-vm/vm"
)

// ErrorCode represents a Vybium Cairo VM error code
type ErrorCode int

const (
	// ErrUnknown represents an unknown error
	ErrUnknown ErrorCode = iota

	// ErrInvalidConfig represents an invalid configuration error
	ErrInvalidConfig

	// ErrVMExecution represents a VM execution error not covered by a more specific code
	ErrVMExecution

	// ErrInvalidInput represents a malformed program or hint table
	ErrInvalidInput

	// ErrPrimitive represents a field or integer conversion failure
	ErrPrimitive

	// ErrAddressing represents an invalid relocatable operation or memory access
	ErrAddressing

	// ErrInstructionDecode represents an undecodable instruction word
	ErrInstructionDecode

	// ErrRunContext represents an invalid operand address or register update
	ErrRunContext

	// ErrBuiltin represents a rejected builtin cell
	ErrBuiltin

	// ErrDictionary represents a dictionary or squash failure
	ErrDictionary

	// ErrStepLimit represents a run stopped by the step limit
	ErrStepLimit
)

var errorCodeNames = map[ErrorCode]string{
	ErrUnknown:           "unknown",
	ErrInvalidConfig:     "invalid config",
	ErrVMExecution:       "vm execution",
	ErrInvalidInput:      "invalid input",
	ErrPrimitive:         "primitive",
	ErrAddressing:        "addressing",
	ErrInstructionDecode: "instruction decode",
	ErrRunContext:        "run context",
	ErrBuiltin:           "builtin",
	ErrDictionary:        "dictionary",
	ErrStepLimit:         "step limit",
}

func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("code %d", int(c))
}

// VMError represents a Vybium Cairo VM error
type VMError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error returns the error message
func (e *VMError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("vybium-cairo-vm error [%s]: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("vybium-cairo-vm error [%s]: %s", e.Code, e.Message)
}

// Unwrap returns the cause of the error
func (e *VMError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target error
func (e *VMError) Is(target error) bool {
	t, ok := target.(*VMError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// classification is checked in order, the first matching sentinel wins
var classification = []struct {
	code      ErrorCode
	sentinels []error
}{
	{ErrStepLimit, []error{vm.ErrStepLimitExceeded}},
	{ErrBuiltin, []error{
		builtins.ErrRangeCheckOutOfBounds, builtins.ErrRangeCheckNotFelt,
		builtins.ErrUndefinedSignatureDict, builtins.ErrUndefinedSignature, builtins.ErrInvalidSignature,
		builtins.ErrSignatureNotFelt, builtins.ErrPointNotOnCurve, builtins.ErrECOpNotFelt, builtins.ErrLadderFailed,
		builtins.ErrUnknownBuiltin, vm.ErrUnknownBuiltin, vm.ErrDuplicateBuiltin,
	}},
	{ErrDictionary, []error{
		vm.ErrDictionaryNotFound, vm.ErrDictIndexMismatch, vm.ErrPtrDiffNotDivisible,
		vm.ErrSquashNotInitialized, vm.ErrEmptySquashKeys, vm.ErrEmptySquashIndices, vm.ErrInvalidDictKey,
		vm.ErrDictAccessMismatch,
	}},
	{ErrInstructionDecode, []error{
		vm.ErrHighBitSet, vm.ErrInvalidOp1Source, vm.ErrInvalidPcUpdate, vm.ErrInvalidResultLogic,
		vm.ErrInvalidApUpdate, vm.ErrInvalidOpcode, vm.ErrInstructionNotFelt, vm.ErrInstructionTooLarge,
	}},
	{ErrRunContext, []error{
		vm.ErrImmediateOffsetMismatch, vm.ErrOp0Undefined, vm.ErrOp0NotRelocatable, vm.ErrInvalidRegisterSegment,
		vm.ErrApUpdateRelocatable, vm.ErrJumpNotRelocatable, vm.ErrJumpRelNotFelt, vm.ErrJnzRelocatableOp1,
	}},
	{ErrAddressing, []error{
		memory.ErrOffsetOverflow, memory.ErrOffsetUnderflow, memory.ErrForbiddenOperation, memory.ErrSegmentMismatch,
		memory.ErrUndefinedValue, memory.ErrInconsistentMemory, memory.ErrUnallocatedSegment,
		memory.ErrExpectedFelt, memory.ErrExpectedRelocatable, memory.ErrSegmentTooLarge,
	}},
	{ErrPrimitive, []error{
		core.ErrDivisionByZero, core.ErrValueOutOfRange, core.ErrIntegerOverflow, core.ErrIntegerUnderflow,
		core.ErrInvalidFeltString,
	}},
	{ErrInvalidInput, []error{
		hints.ErrInvalidHintTable, hints.ErrInvalidHint, hints.ErrUnknownHint, hints.ErrInvalidOperand,
		vm.ErrUnknownHint, vm.ErrEmptyProgram, vm.ErrEntrypointOutOfProgram,
	}},
}

// classify maps an internal error to the most specific error code
func classify(err error) ErrorCode {
	for _, c := range classification {
		for _, sentinel := range c.sentinels {
			if errors.Is(err, sentinel) {
				return c.code
			}
		}
	}
	return ErrVMExecution
}
