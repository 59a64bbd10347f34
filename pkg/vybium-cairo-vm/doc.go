// Package vybiumcairovm runs compiled Cairo programs on the Vybium Cairo VM.
//
// The VM executes Cairo bytecode over the STARK prime field
// P = 2^251 + 17*2^192 + 1. Memory is write-once and split into segments
// addressed by (segment, offset) pairs; builtins own their own segment and
// validate or deduce the cells written there.
//
// # Features
//
// - Full Cairo instruction set: assert_eq, call, ret, jumps and jnz with operand deduction
// - Range check, ECDSA signature and EC op builtins on the STARK curve
// - Native hints for segment allocation, felt252 dictionaries and assert_le
// - Relocated memory and register trace, ready for a prover
// - Program digest (sha3 or sha256) and a Merkle commitment of the trace
//
// # Quick Start
//
// Executing a program:
//
//	program, err := vybiumcairovm.ParseProgram(data)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	vm, err := vybiumcairovm.NewVM(vybiumcairovm.DefaultVMConfig())
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := vm.Execute(program)
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println("steps:", result.CycleCount)
//
// Programs are JSON documents:
//
//	{
//	  "data": ["0x480680017fff8000", "5", "0x208b7fff7fff7ffe"],
//	  "hints": [[0, [{"AllocSegment": {"dst": {"register": "AP", "offset": 1}}}]]],
//	  "builtins": ["range_check"],
//	  "entrypoint": 0
//	}
//
// # Memory layout
//
// Segment 0 holds the program and segment 1 the execution stack. Each builtin
// declared by the program gets the next segment, in declaration order, and
// its base is pushed on the stack before the return frame. The run ends when
// pc reaches the end of the program segment, or when an instruction jumps to
// itself.
//
// # Architecture
//
// - pkg/vybium-cairo-vm/: Public API (this package)
// - internal/vybium-cairo-vm/: Private implementation (not importable)
//
// Implementation details in internal/ can be refactored without breaking the public API.
package vybiumcairovm
