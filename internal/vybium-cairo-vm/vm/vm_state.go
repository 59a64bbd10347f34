package vm

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/vybium/vybium-cairo-vm/internal/vybium-cairo-vm/builtins"
	"github.com/vybium/vybium-cairo-vm/internal/vybium-cairo-vm/core"
	"github.com/vybium/vybium-cairo-vm/internal/vybium-cairo-vm/memory"
)

// LevelTrace is below slog.LevelDebug, per-step records are logged at this level
const LevelTrace slog.Level = -8

// Options tunes a VM run
type Options struct {
	// MaxSteps aborts the run with ErrStepLimitExceeded, 0 means unlimited
	MaxSteps uint64

	// RangeCheckBoundExponent bounds range checked values to [0, 2^n), 0 selects 128
	RangeCheckBoundExponent uint

	// MaxSegmentSize bounds the cells of each segment, 0 selects memory.DefaultMaxSegmentSize
	MaxSegmentSize uint32

	// TraceEnabled records the register trace
	TraceEnabled bool

	// Logger receives run and step records, nil discards them
	Logger *slog.Logger
}

// VMState is the complete state of a Cairo VM run
type VMState struct {
	Program *Program
	Memory  *memory.Memory
	Context *RunContext

	// Builtins in declaration order; each owns the segment after the previous one
	Builtins []builtins.Builtin

	// Dictionaries opened by hints, keyed by segment base
	Dicts *DictManager

	// Squash is set by the InitSquashData hint
	Squash *SquashState

	// Trace is nil unless Options.TraceEnabled
	Trace *TraceRecorder

	CycleCount uint64
	Halting    bool

	endPC       memory.Relocatable
	excludedArc int
	hasExcluded bool
	maxSteps    uint64
	logger      *slog.Logger
}

// NewVMState loads a program and prepares its initial stack
//
// Memory layout: segment 0 holds the program, segment 1 the execution stack,
// then one segment per builtin in declaration order. The initial stack is
// [builtin bases..., return fp, end pc] and ap = fp point right after it.
func NewVMState(program *Program, opts Options) (*VMState, error) {
	if program == nil {
		return nil, fmt.Errorf("program cannot be nil")
	}
	if err := program.Validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	mem := memory.NewMemory()
	mem.SetMaxSegmentSize(opts.MaxSegmentSize)
	programBase := mem.AllocateSegment()
	executionBase := mem.AllocateSegment()

	vm := &VMState{
		Program:  program,
		Memory:   mem,
		Dicts:    NewDictManager(),
		maxSteps: opts.MaxSteps,
		logger:   logger.With("module", "vm"),
	}
	if opts.TraceEnabled {
		vm.Trace = NewTraceRecorder()
	}

	stack := make([]memory.MaybeRelocatable, 0, len(program.Builtins)+2)
	for _, name := range program.Builtins {
		b, err := builtins.New(name, opts.RangeCheckBoundExponent)
		if err != nil {
			return nil, err
		}
		base := b.InitSegment(mem)
		vm.Builtins = append(vm.Builtins, b)
		stack = append(stack, memory.FromRelocatable(base))
	}

	data := make([]memory.MaybeRelocatable, len(program.Data))
	for i, word := range program.Data {
		data[i] = memory.FromFelt(word)
	}
	endPC, err := mem.Load(programBase, data)
	if err != nil {
		return nil, fmt.Errorf("failed to load program: %w", err)
	}
	vm.endPC = endPC

	returnFP := executionBase
	stack = append(stack, memory.FromRelocatable(returnFP), memory.FromRelocatable(endPC))
	stackEnd, err := mem.Load(executionBase, stack)
	if err != nil {
		return nil, fmt.Errorf("failed to load initial stack: %w", err)
	}

	vm.Context = NewRunContext(program.Entrypoint, stackEnd.Offset, stackEnd.Offset)
	return vm, nil
}

// EndPC returns the pc at which the run terminates
func (vm *VMState) EndPC() memory.Relocatable {
	return vm.endPC
}

// Builtin returns the builtin with the given name
func (vm *VMState) Builtin(name string) (builtins.Builtin, bool) {
	for _, b := range vm.Builtins {
		if b.Name() == name {
			return b, true
		}
	}
	return nil, false
}

// AddSignature registers an ECDSA signature for the instance whose public key is at offset
func (vm *VMState) AddSignature(offset uint32, sig builtins.Signature) error {
	b, ok := vm.Builtin(builtins.ECDSAName)
	if !ok {
		return fmt.Errorf("%w: program does not declare %q", ErrUnknownBuiltin, builtins.ECDSAName)
	}
	b.(*builtins.SignatureBuiltin).AddSignature(offset, sig)
	return nil
}

// Done reports whether the run reached the end pc or halted
func (vm *VMState) Done() bool {
	return vm.Halting || vm.Context.PC() == vm.endPC
}

// Run executes the program until it terminates or fails
func (vm *VMState) Run() error {
	vm.logger.Info("run started",
		"entrypoint", vm.Program.Entrypoint,
		"length", vm.Program.Length(),
		"builtins", vm.Program.Builtins,
		"maxSteps", vm.maxSteps)

	for !vm.Done() {
		if vm.maxSteps > 0 && vm.CycleCount >= vm.maxSteps {
			return fmt.Errorf("%w: %d steps", ErrStepLimitExceeded, vm.maxSteps)
		}
		if err := vm.Step(); err != nil {
			vm.logger.Error("run failed", "step", vm.CycleCount, "err", err)
			return err
		}
	}

	vm.logger.Info("run finished",
		"steps", vm.CycleCount,
		"halted", vm.Halting,
		"pc", vm.Context.PC().String(),
		"ap", vm.Context.AP().String(),
		"fp", vm.Context.FP().String())
	return nil
}

// Step runs the hints at pc, then executes one instruction
func (vm *VMState) Step() error {
	if vm.Halting {
		return ErrMachineHalted
	}

	pc, ap, fp := vm.Context.PC(), vm.Context.AP(), vm.Context.FP()
	wrap := func(err error) error {
		return &StepError{Step: vm.CycleCount, PC: pc, AP: ap, FP: fp, Err: err}
	}

	if vm.Trace != nil {
		vm.Trace.RecordState(vm.Context)
	}

	if err := vm.runHints(pc.Offset); err != nil {
		return wrap(err)
	}

	inst, err := vm.CurrentInstruction()
	if err != nil {
		return wrap(err)
	}

	if vm.logger.Enabled(context.Background(), LevelTrace) {
		vm.logger.Log(context.Background(), LevelTrace, "step",
			"step", vm.CycleCount, "pc", pc.String(), "ap", ap.String(), "fp", fp.String(), "instruction", inst.String())
	}

	if err := vm.ExecuteInstruction(inst); err != nil {
		return wrap(err)
	}

	// An instruction jumping to itself is the end loop of a proof mode program
	if vm.Context.PC() == pc {
		vm.Halting = true
	}

	vm.CycleCount++
	return nil
}

func (vm *VMState) runHints(pc uint32) error {
	for _, h := range vm.Program.Hints[pc] {
		vm.logger.Debug("hint", "pc", pc, "hint", h.Name())
		if err := vm.ExecuteHint(h); err != nil {
			return &HintError{PC: pc, Hint: h.Name(), Err: err}
		}
	}
	return nil
}

// CurrentInstruction fetches and decodes the instruction at pc
func (vm *VMState) CurrentInstruction() (Instruction, error) {
	v, err := vm.Memory.Get(vm.Context.PC())
	if err != nil {
		return Instruction{}, fmt.Errorf("failed to fetch instruction: %w", err)
	}
	f, ok := v.GetFelt()
	if !ok {
		return Instruction{}, fmt.Errorf("%w: %s", ErrInstructionNotFelt, v)
	}
	word, err := f.ToUint64()
	if err != nil {
		return Instruction{}, fmt.Errorf("%w: %s", ErrInstructionTooLarge, f.Hex())
	}
	return DecodeInstruction(word)
}

// RelocatedMemory returns memory flattened with segments laid out from address 1
func (vm *VMState) RelocatedMemory() ([]*core.Felt, error) {
	return vm.Memory.Relocate()
}

// RelocatedTrace returns the register trace with absolute addresses, nil if tracing is off
func (vm *VMState) RelocatedTrace() ([]RelocatedTraceEntry, error) {
	if vm.Trace == nil {
		return nil, nil
	}
	return vm.Trace.Relocate(vm.Memory.RelocationTable())
}
