package vybiumcairovm

import (
	"io"
	"log/slog"

	"github.com/vybium/vybium-cairo-vm/internal/vybium-cairo-vm/utils"
	"github.com/vybium/vybium-cairo-vm/internal/vybium-cairo-vm/vm"
)

// VM is the public interface for the Vybium Cairo VM
type VM interface {
	// Execute runs a program until it ends and returns its relocated memory and trace
	Execute(program *Program) (*ExecutionResult, error)

	// GetState returns the state of the last run, including a failed one
	GetState() *VMState
}

// VMState represents the current state of the VM (read-only)
type VMState struct {
	PC Relocatable
	AP Relocatable
	FP Relocatable

	// Cycle count
	CycleCount uint64

	// Halted flag
	Halted bool

	// Number of allocated segments
	Segments int
}

// vmImpl is the internal implementation of VM
type vmImpl struct {
	config  *utils.Config
	logger  *slog.Logger
	vmState *vm.VMState
}

// NewVM creates a new Vybium Cairo VM with the given configuration
func NewVM(config *VMConfig) (VM, error) {
	if config == nil {
		return nil, &VMError{Code: ErrInvalidConfig, Message: "config cannot be nil"}
	}

	internal := config.internal()
	if err := internal.Validate(); err != nil {
		return nil, &VMError{Code: ErrInvalidConfig, Message: "invalid configuration", Cause: err}
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &vmImpl{config: internal, logger: logger}, nil
}

// Execute runs a program on the VM
func (v *vmImpl) Execute(program *Program) (*ExecutionResult, error) {
	if program == nil {
		return nil, &VMError{Code: ErrInvalidInput, Message: "program cannot be nil"}
	}

	internalProgram := &vm.Program{
		Data:       program.Data,
		Hints:      program.Hints,
		Builtins:   program.Builtins,
		Entrypoint: program.Entrypoint,
	}
	if len(v.config.Builtins) > 0 {
		internalProgram.Builtins = v.config.Builtins
	}
	if internalProgram.Hints == nil {
		internalProgram.Hints = make(HintTable)
	}

	state, err := vm.NewVMState(internalProgram, vm.Options{
		MaxSteps:                v.config.MaxSteps,
		RangeCheckBoundExponent: v.config.RangeCheckBoundExponent,
		TraceEnabled:            v.config.TraceEnabled,
		Logger:                  v.logger,
	})
	if err != nil {
		return nil, &VMError{Code: classify(err), Message: "failed to load program", Cause: err}
	}
	v.vmState = state

	if err := state.Run(); err != nil {
		return nil, &VMError{Code: classify(err), Message: "VM execution failed", Cause: err}
	}

	result := &ExecutionResult{
		PC:         state.Context.PC(),
		AP:         state.Context.AP(),
		FP:         state.Context.FP(),
		CycleCount: state.CycleCount,
		Halted:     state.Halting,
		Segments:   state.Memory.NumSegments(),
	}

	if result.Memory, err = state.RelocatedMemory(); err != nil {
		return nil, &VMError{Code: classify(err), Message: "failed to relocate memory", Cause: err}
	}
	if result.Trace, err = state.RelocatedTrace(); err != nil {
		return nil, &VMError{Code: classify(err), Message: "failed to relocate trace", Cause: err}
	}

	if result.ProgramDigest, err = utils.ProgramDigest(v.config.HashFunction, program.Data, program.Entrypoint); err != nil {
		return nil, &VMError{Code: ErrInvalidConfig, Message: "failed to compute program digest", Cause: err}
	}

	if len(result.Trace) > 0 {
		rows := make([][3]uint64, len(result.Trace))
		for i, e := range result.Trace {
			rows[i] = [3]uint64{e.PC, e.AP, e.FP}
		}
		commitment, err := utils.CommitTrace(rows)
		if err != nil {
			return nil, &VMError{Code: ErrVMExecution, Message: "failed to commit to trace", Cause: err}
		}
		result.TraceCommitment = commitment.RootBytes()
	}

	return result, nil
}

// GetState returns the current VM state
func (v *vmImpl) GetState() *VMState {
	if v.vmState == nil {
		return &VMState{}
	}

	return &VMState{
		PC:         v.vmState.Context.PC(),
		AP:         v.vmState.Context.AP(),
		FP:         v.vmState.Context.FP(),
		CycleCount: v.vmState.CycleCount,
		Halted:     v.vmState.Halting,
		Segments:   v.vmState.Memory.NumSegments(),
	}
}
