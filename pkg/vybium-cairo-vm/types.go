package vybiumcairovm

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/vybium/vybium-cairo-vm/internal/vybium-cairo-vm/core"
	"github.com/vybium/vybium-cairo-vm/internal/vybium-cairo-vm/hints"
	"github.com/vybium/vybium-cairo-vm/internal/vybium-cairo-vm/memory"
	"github.com/vybium/vybium-cairo-vm/internal/vybium-cairo-vm/utils"
	"github.com/vybium/vybium-cairo-vm/internal/vybium-cairo-vm/vm"
)

// LevelTrace enables per-step log records
const LevelTrace = vm.LevelTrace

// Felt represents an element of the STARK prime field
type Felt = core.Felt

// Relocatable represents a (segment, offset) memory address
type Relocatable = memory.Relocatable

// Hint is a native hint run before an instruction
type Hint = hints.Hint

// HintTable maps a program offset to the hints run before the instruction there
type HintTable = hints.Table

// TraceEntry holds the registers of one step as absolute addresses
type TraceEntry = vm.RelocatedTraceEntry

// Program represents a compiled Cairo program
type Program struct {
	// Bytecode and constants, loaded into segment 0
	Data []Felt

	// Hints by program offset
	Hints HintTable

	// Builtins used by the program, in declaration order
	Builtins []string

	// Offset of the first instruction
	Entrypoint uint32
}

type programJSON struct {
	Data       []json.RawMessage `json:"data"`
	Hints      json.RawMessage   `json:"hints,omitempty"`
	Builtins   []string          `json:"builtins,omitempty"`
	Entrypoint uint32            `json:"entrypoint"`
}

// ParseProgram parses a JSON program
//
// Data words are decimal or 0x-prefixed hex strings, or JSON numbers. Hints
// use the compiler layout [[pc, [hint, ...]], ...].
func ParseProgram(data []byte) (*Program, error) {
	var raw programJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &VMError{Code: ErrInvalidInput, Message: "invalid program JSON", Cause: err}
	}

	p := &Program{
		Data:       make([]Felt, len(raw.Data)),
		Hints:      make(HintTable),
		Builtins:   raw.Builtins,
		Entrypoint: raw.Entrypoint,
	}
	for i, word := range raw.Data {
		f, err := parseWord(word)
		if err != nil {
			return nil, &VMError{Code: ErrInvalidInput, Message: fmt.Sprintf("invalid data word %d", i), Cause: err}
		}
		p.Data[i] = f
	}

	if len(raw.Hints) > 0 && string(raw.Hints) != "null" {
		table, err := ParseHints(raw.Hints)
		if err != nil {
			return nil, err
		}
		p.Hints = table
	}
	return p, nil
}

func parseWord(raw json.RawMessage) (Felt, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return core.FeltFromString(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return Felt{}, err
	}
	return core.FeltFromString(n.String())
}

// ParseHints parses a compiled hint table
func ParseHints(data []byte) (HintTable, error) {
	table, err := hints.ParseTable(data)
	if err != nil {
		return nil, &VMError{Code: ErrInvalidInput, Message: "invalid hint table", Cause: err}
	}
	return table, nil
}

// VMConfig represents configuration for the Vybium Cairo VM
type VMConfig struct {
	// Builtins overrides the builtins declared by the program when not empty
	Builtins []string

	// Range check bound: values must lie in [0, 2^RangeCheckBoundExponent)
	RangeCheckBoundExponent uint

	// Step limit, 0 means unlimited
	MaxSteps uint64

	// Hash function for the program digest: "sha3" or "sha256"
	HashFunction string

	// Record the register trace and commit to it
	TraceEnabled bool

	// Logger for run and step records, nil discards them
	Logger *slog.Logger
}

// DefaultVMConfig returns a default VM configuration
func DefaultVMConfig() *VMConfig {
	c := utils.DefaultConfig()
	return &VMConfig{
		RangeCheckBoundExponent: c.RangeCheckBoundExponent,
		MaxSteps:                c.MaxSteps,
		HashFunction:            c.HashFunction,
		TraceEnabled:            c.TraceEnabled,
	}
}

// internal maps the public config onto the run config, zero values keep the defaults
func (c *VMConfig) internal() *utils.Config {
	cfg := utils.DefaultConfig().
		WithBuiltins(c.Builtins...).
		WithMaxSteps(c.MaxSteps).
		WithTrace(c.TraceEnabled)
	if c.RangeCheckBoundExponent != 0 {
		cfg.WithRangeCheckBoundExponent(c.RangeCheckBoundExponent)
	}
	if c.HashFunction != "" {
		cfg.WithHashFunction(c.HashFunction)
	}
	return cfg
}

// ExecutionResult represents the outcome of a successful run
type ExecutionResult struct {
	// Final registers
	PC Relocatable
	AP Relocatable
	FP Relocatable

	// Number of executed instructions
	CycleCount uint64

	// Whether the run ended on an instruction jumping to itself
	Halted bool

	// Number of memory segments allocated by the run
	Segments int

	// Relocated memory, indexed by absolute address; nil entries are undefined cells
	Memory []*Felt

	// Relocated register trace, nil unless tracing is enabled
	Trace []TraceEntry

	// Digest of the program data and entrypoint
	ProgramDigest []byte

	// Merkle root of the relocated trace, nil unless tracing is enabled
	TraceCommitment []byte
}

// WriteTrace writes the relocated trace as consecutive little-endian u64 (ap, fp, pc) triples
func (r *ExecutionResult) WriteTrace(w io.Writer) error {
	bw := bufio.NewWriter(w)
	var buf [24]byte
	for _, e := range r.Trace {
		binary.LittleEndian.PutUint64(buf[0:], e.AP)
		binary.LittleEndian.PutUint64(buf[8:], e.FP)
		binary.LittleEndian.PutUint64(buf[16:], e.PC)
		if _, err := bw.Write(buf[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteMemory writes every defined cell as a little-endian u64 address followed by
// the 32-byte little-endian value
func (r *ExecutionResult) WriteMemory(w io.Writer) error {
	bw := bufio.NewWriter(w)
	var buf [40]byte
	for addr, v := range r.Memory {
		if v == nil {
			continue
		}
		binary.LittleEndian.PutUint64(buf[0:], uint64(addr))
		be := v.Bytes()
		for i := range be {
			buf[8+i] = be[31-i]
		}
		if _, err := bw.Write(buf[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}
