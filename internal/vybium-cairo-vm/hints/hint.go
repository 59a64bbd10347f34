// Package hints defines the native hints the VM can run before an instruction
//
// A hint is a closed sum type: every variant is a struct implementing Hint,
// and the VM dispatches on it with a type switch. Operands refer to memory
// relative to ap or fp through CellRef, or to a computed value through
// ResOperand.
package hints

import (
	"fmt"

	"github.com/vybium/vybium-cairo-vm/internal/vybium-cairo-vm/core"
)

// Register is the base register of a cell reference
type Register uint8

const (
	AP Register = iota
	FP
)

func (r Register) String() string {
	if r == FP {
		return "FP"
	}
	return "AP"
}

// CellRef designates the memory cell at register + offset
type CellRef struct {
	Register Register
	Offset   int16
}

func (c CellRef) String() string {
	return fmt.Sprintf("[%s%+d]", c.Register, c.Offset)
}

// ResOperand is a value computed from memory or an immediate
//
// Implementations: Deref, DoubleDeref, Immediate, BinOp.
type ResOperand interface {
	fmt.Stringer
	resOperand()
}

// Deref is the value stored at a cell
type Deref struct {
	Cell CellRef
}

// DoubleDeref is the value stored at [cell] + offset, [cell] must hold an address
type DoubleDeref struct {
	Cell   CellRef
	Offset int16
}

// Immediate is a constant
type Immediate struct {
	Value core.Felt
}

// Operation is the operator of a BinOp
type Operation uint8

const (
	OpAdd Operation = iota
	OpMul
)

func (o Operation) String() string {
	if o == OpMul {
		return "*"
	}
	return "+"
}

// BinOp is [a] op b, where b is either a Deref or an Immediate
type BinOp struct {
	Op Operation
	A  CellRef
	B  ResOperand
}

func (Deref) resOperand()       {}
func (DoubleDeref) resOperand() {}
func (Immediate) resOperand()   {}
func (BinOp) resOperand()       {}

func (d Deref) String() string       { return d.Cell.String() }
func (d DoubleDeref) String() string { return fmt.Sprintf("[%s%+d]", d.Cell, d.Offset) }
func (i Immediate) String() string   { return i.Value.Hex() }
func (b BinOp) String() string       { return fmt.Sprintf("%s %s %s", b.A, b.Op, b.B) }

// Hint is one native hint
type Hint interface {
	// Name returns the hint name as it appears in compiled programs
	Name() string
	hint()
}

// AllocSegment allocates a new memory segment and stores its base at Dst
type AllocSegment struct {
	Dst CellRef
}

// TestLessThan stores 1 at Dst if Lhs < Rhs, 0 otherwise
type TestLessThan struct {
	Lhs ResOperand
	Rhs ResOperand
	Dst CellRef
}

// AllocFelt252Dict creates a new dictionary and records its segment in the segment arena
type AllocFelt252Dict struct {
	SegmentArenaPtr ResOperand
}

// GetSegmentArenaIndex asserts DictIndex holds the id of the dictionary ending at DictEndPtr
type GetSegmentArenaIndex struct {
	DictEndPtr ResOperand
	DictIndex  CellRef
}

// Felt252DictEntryInit reads the previous value of Key into the new access
type Felt252DictEntryInit struct {
	DictPtr ResOperand
	Key     ResOperand
}

// Felt252DictEntryUpdate sets the value of the key accessed at DictPtr - 3
type Felt252DictEntryUpdate struct {
	DictPtr ResOperand
	Value   ResOperand
}

// InitSquashData sets up the squash of a dictionary access log
type InitSquashData struct {
	DictAccesses ResOperand
	PtrDiff      ResOperand
	NAccesses    ResOperand
	BigKeys      CellRef
	FirstKey     CellRef
}

// GetCurrentAccessIndex stores the current access index of the squashed key
type GetCurrentAccessIndex struct {
	RangeCheckPtr ResOperand
}

// ShouldSkipSquashLoop stores 1 if the current key was accessed only once
type ShouldSkipSquashLoop struct {
	ShouldSkipLoop CellRef
}

// GetCurrentAccessDelta pops the current access index and stores the distance to the next one, minus 1
type GetCurrentAccessDelta struct {
	IndexDeltaMinus1 CellRef
}

// ShouldContinueSquashLoop stores 1 while the current key has accesses left to squash
type ShouldContinueSquashLoop struct {
	ShouldContinue CellRef
}

// GetNextDictKey moves the squash to the next key
type GetNextDictKey struct {
	NextKey CellRef
}

// AssertLeFindSmallArcs splits [0, P) at A and B and range checks the two smallest arcs
type AssertLeFindSmallArcs struct {
	RangeCheckPtr ResOperand
	A             ResOperand
	B             ResOperand
}

// AssertLeIsFirstArcExcluded stores 1 unless the first arc is the excluded one
type AssertLeIsFirstArcExcluded struct {
	SkipExcludeAFlag CellRef
}

// AssertLeIsSecondArcExcluded stores 1 unless the second arc is the excluded one
type AssertLeIsSecondArcExcluded struct {
	SkipExcludeBMinusA CellRef
}

func (AllocSegment) Name() string                { return "AllocSegment" }
func (TestLessThan) Name() string                { return "TestLessThan" }
func (AllocFelt252Dict) Name() string            { return "AllocFelt252Dict" }
func (GetSegmentArenaIndex) Name() string        { return "GetSegmentArenaIndex" }
func (Felt252DictEntryInit) Name() string        { return "Felt252DictEntryInit" }
func (Felt252DictEntryUpdate) Name() string      { return "Felt252DictEntryUpdate" }
func (InitSquashData) Name() string              { return "InitSquashData" }
func (GetCurrentAccessIndex) Name() string       { return "GetCurrentAccessIndex" }
func (ShouldSkipSquashLoop) Name() string        { return "ShouldSkipSquashLoop" }
func (GetCurrentAccessDelta) Name() string       { return "GetCurrentAccessDelta" }
func (ShouldContinueSquashLoop) Name() string    { return "ShouldContinueSquashLoop" }
func (GetNextDictKey) Name() string              { return "GetNextDictKey" }
func (AssertLeFindSmallArcs) Name() string       { return "AssertLeFindSmallArcs" }
func (AssertLeIsFirstArcExcluded) Name() string  { return "AssertLeIsFirstArcExcluded" }
func (AssertLeIsSecondArcExcluded) Name() string { return "AssertLeIsSecondArcExcluded" }

func (AllocSegment) hint()                {}
func (TestLessThan) hint()                {}
func (AllocFelt252Dict) hint()            {}
func (GetSegmentArenaIndex) hint()        {}
func (Felt252DictEntryInit) hint()        {}
func (Felt252DictEntryUpdate) hint()      {}
func (InitSquashData) hint()              {}
func (GetCurrentAccessIndex) hint()       {}
func (ShouldSkipSquashLoop) hint()        {}
func (GetCurrentAccessDelta) hint()       {}
func (ShouldContinueSquashLoop) hint()    {}
func (GetNextDictKey) hint()              {}
func (AssertLeFindSmallArcs) hint()       {}
func (AssertLeIsFirstArcExcluded) hint()  {}
func (AssertLeIsSecondArcExcluded) hint() {}

// Table maps a pc offset in the program segment to the hints run before the instruction there
type Table map[uint32][]Hint
