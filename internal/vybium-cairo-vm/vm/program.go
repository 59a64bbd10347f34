package vm

import (
	"fmt"

	"github.com/vybium/vybium-cairo-vm/internal/vybium-cairo-vm/builtins"
	"github.com/vybium/vybium-cairo-vm/internal/vybium-cairo-vm/core"
	"github.com/vybium/vybium-cairo-vm/internal/vybium-cairo-vm/hints"
)

// Program is a compiled Cairo program: its bytecode, hints and builtins
type Program struct {
	// Data is loaded as is into the program segment
	Data []core.Felt

	// Hints run before the instruction at their pc offset
	Hints hints.Table

	// Builtins get one segment each, in this order, and their base pushed on the initial stack
	Builtins []string

	// Entrypoint is the pc offset of the first instruction
	Entrypoint uint32
}

// NewProgram creates an empty program
func NewProgram() *Program {
	return &Program{
		Data:  make([]core.Felt, 0),
		Hints: make(hints.Table),
	}
}

// Length returns the number of words of the program
func (p *Program) Length() uint32 {
	return uint32(len(p.Data))
}

// AddInstruction encodes and appends an instruction
//
// imm must be set exactly when the instruction takes an immediate operand.
func (p *Program) AddInstruction(inst Instruction, imm *core.Felt) error {
	word, err := EncodeInstruction(inst)
	if err != nil {
		return err
	}
	if (inst.Op1Src == Op1SrcImm) != (imm != nil) {
		return fmt.Errorf("%w: immediate operand mismatch for %s", ErrNotEncodable, inst)
	}
	p.Data = append(p.Data, core.FeltFromUint64(word))
	if imm != nil {
		p.Data = append(p.Data, *imm)
	}
	return nil
}

// AddHint attaches a hint to the next instruction to be added
func (p *Program) AddHint(h hints.Hint) {
	pc := p.Length()
	p.Hints[pc] = append(p.Hints[pc], h)
}

// AddBuiltin declares a builtin
func (p *Program) AddBuiltin(name string) {
	p.Builtins = append(p.Builtins, name)
}

// Validate checks the program can be loaded
func (p *Program) Validate() error {
	if len(p.Data) == 0 {
		return ErrEmptyProgram
	}
	if p.Entrypoint >= p.Length() {
		return fmt.Errorf("%w: entrypoint %d, program length %d", ErrEntrypointOutOfProgram, p.Entrypoint, p.Length())
	}
	seen := make(map[string]bool, len(p.Builtins))
	for _, name := range p.Builtins {
		if !builtins.IsKnown(name) {
			return fmt.Errorf("%w: %q", ErrUnknownBuiltin, name)
		}
		if seen[name] {
			return fmt.Errorf("%w: %q", ErrDuplicateBuiltin, name)
		}
		seen[name] = true
	}
	return nil
}
