package vm

import (
	"fmt"

	"github.com/vybium/vybium-cairo-vm/internal/vybium-cairo-vm/memory"
)

// TraceEntry holds the registers at the start of a step
type TraceEntry struct {
	PC memory.Relocatable
	AP memory.Relocatable
	FP memory.Relocatable
}

// RelocatedTraceEntry holds the registers of a step as absolute addresses
type RelocatedTraceEntry struct {
	PC uint64
	AP uint64
	FP uint64
}

// TraceRecorder records the register trace consumed by proof generation
type TraceRecorder struct {
	entries    []TraceEntry
	cycleCount uint64
}

// NewTraceRecorder creates an empty trace recorder
func NewTraceRecorder() *TraceRecorder {
	return &TraceRecorder{
		entries: make([]TraceEntry, 0, 64),
	}
}

// RecordState records the registers before the instruction executes
func (tr *TraceRecorder) RecordState(rc *RunContext) {
	tr.entries = append(tr.entries, TraceEntry{PC: rc.PC(), AP: rc.AP(), FP: rc.FP()})
	tr.cycleCount++
}

// Entries returns the recorded trace
func (tr *TraceRecorder) Entries() []TraceEntry {
	return tr.entries
}

// Len returns the number of recorded steps
func (tr *TraceRecorder) Len() uint64 {
	return tr.cycleCount
}

// Relocate maps every entry to absolute addresses with the given relocation table
func (tr *TraceRecorder) Relocate(table []uint64) ([]RelocatedTraceEntry, error) {
	out := make([]RelocatedTraceEntry, len(tr.entries))
	for i, e := range tr.entries {
		pc, err := memory.RelocateAddress(e.PC, table)
		if err != nil {
			return nil, fmt.Errorf("failed to relocate trace entry %d: %w", i, err)
		}
		ap, err := memory.RelocateAddress(e.AP, table)
		if err != nil {
			return nil, fmt.Errorf("failed to relocate trace entry %d: %w", i, err)
		}
		fp, err := memory.RelocateAddress(e.FP, table)
		if err != nil {
			return nil, fmt.Errorf("failed to relocate trace entry %d: %w", i, err)
		}
		out[i] = RelocatedTraceEntry{PC: pc, AP: ap, FP: fp}
	}
	return out, nil
}
