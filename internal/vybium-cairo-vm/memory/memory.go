package memory

import (
	"fmt"

	"github.com/vybium/vybium-cairo-vm/internal/vybium-cairo-vm/core"
)

// ValidationRule checks a freshly written cell of the segment it is attached to
type ValidationRule func(mem *Memory, addr Relocatable) error

// DeductionRule computes the value of an undefined cell of the segment it is attached to
//
// It returns ok == false when the cell cannot be deduced yet.
type DeductionRule func(mem *Memory, addr Relocatable) (value MaybeRelocatable, ok bool, err error)

// DefaultMaxSegmentSize bounds the number of cells of a single segment
const DefaultMaxSegmentSize = 1 << 26

// Assignment is one cell write of a batch
type Assignment struct {
	Address Relocatable
	Value   MaybeRelocatable
}

type cell struct {
	value   MaybeRelocatable
	written bool
}

// Memory is a write-once, segmented address space
//
// Segments are created by AllocateSegment and grow on demand when written,
// up to the maximum segment size. They are never reclaimed.
type Memory struct {
	segments        [][]cell
	validationRules map[uint32]ValidationRule
	deductionRules  map[uint32]DeductionRule
	maxSegmentSize  uint32
}

// NewMemory creates an empty memory without any segment
func NewMemory() *Memory {
	return &Memory{
		segments:        make([][]cell, 0, 4),
		validationRules: make(map[uint32]ValidationRule),
		deductionRules:  make(map[uint32]DeductionRule),
		maxSegmentSize:  DefaultMaxSegmentSize,
	}
}

// SetMaxSegmentSize changes the segment size limit, 0 restores the default
func (m *Memory) SetMaxSegmentSize(n uint32) {
	if n == 0 {
		n = DefaultMaxSegmentSize
	}
	m.maxSegmentSize = n
}

// AllocateSegment appends a new empty segment and returns its base address
func (m *Memory) AllocateSegment() Relocatable {
	m.segments = append(m.segments, make([]cell, 0))
	return NewRelocatable(uint32(len(m.segments)-1), 0)
}

// NumSegments returns the number of allocated segments
func (m *Memory) NumSegments() int {
	return len(m.segments)
}

// AddValidationRule attaches a validation rule to a segment
func (m *Memory) AddValidationRule(segment uint32, rule ValidationRule) {
	m.validationRules[segment] = rule
}

// AddDeductionRule attaches a deduction rule to a segment
func (m *Memory) AddDeductionRule(segment uint32, rule DeductionRule) {
	m.deductionRules[segment] = rule
}

func (m *Memory) segment(index uint32) ([]cell, error) {
	if int(index) >= len(m.segments) {
		return nil, fmt.Errorf("%w: segment %d (%d allocated)", ErrUnallocatedSegment, index, len(m.segments))
	}
	return m.segments[index], nil
}

// TryGet returns the value stored at addr, ok == false if the cell is undefined
func (m *Memory) TryGet(addr Relocatable) (MaybeRelocatable, bool) {
	seg, err := m.segment(addr.SegmentIndex)
	if err != nil || int(addr.Offset) >= len(seg) || !seg[addr.Offset].written {
		return MaybeRelocatable{}, false
	}
	return seg[addr.Offset].value, true
}

// Get returns the value stored at addr
func (m *Memory) Get(addr Relocatable) (MaybeRelocatable, error) {
	if _, err := m.segment(addr.SegmentIndex); err != nil {
		return MaybeRelocatable{}, err
	}
	v, ok := m.TryGet(addr)
	if !ok {
		return MaybeRelocatable{}, &UndefinedValueError{Address: addr}
	}
	return v, nil
}

// GetFelt returns the field element stored at addr
func (m *Memory) GetFelt(addr Relocatable) (core.Felt, error) {
	v, err := m.Get(addr)
	if err != nil {
		return core.Felt{}, err
	}
	f, err := v.Felt()
	if err != nil {
		return core.Felt{}, fmt.Errorf("at %s: %w", addr, err)
	}
	return f, nil
}

// GetRelocatable returns the address stored at addr
func (m *Memory) GetRelocatable(addr Relocatable) (Relocatable, error) {
	v, err := m.Get(addr)
	if err != nil {
		return Relocatable{}, err
	}
	r, err := v.Relocatable()
	if err != nil {
		return Relocatable{}, fmt.Errorf("at %s: %w", addr, err)
	}
	return r, nil
}

// AssertEq writes value at addr if the cell is empty, otherwise checks it holds value
//
// Writes into a segment with a validation rule are validated; a rejected value
// is not kept.
func (m *Memory) AssertEq(addr Relocatable, value MaybeRelocatable) error {
	seg, err := m.segment(addr.SegmentIndex)
	if err != nil {
		return err
	}
	if int(addr.Offset) < len(seg) && seg[addr.Offset].written {
		existing := seg[addr.Offset].value
		if existing != value {
			return &InconsistentMemoryError{Address: addr, Existing: existing, New: value}
		}
		return nil
	}

	if int(addr.Offset) >= len(seg) {
		if addr.Offset >= m.maxSegmentSize {
			return fmt.Errorf("%w: %s, limit %d cells", ErrSegmentTooLarge, addr, m.maxSegmentSize)
		}
		seg = append(seg, make([]cell, int(addr.Offset)+1-len(seg))...)
		m.segments[addr.SegmentIndex] = seg
	}
	seg[addr.Offset] = cell{value: value, written: true}

	if rule, ok := m.validationRules[addr.SegmentIndex]; ok {
		if err := rule(m, addr); err != nil {
			m.clear(addr)
			return err
		}
	}
	return nil
}

// AssertEqAll applies AssertEq to every assignment in order
//
// Either all assignments hold or none of the cells they filled is kept.
func (m *Memory) AssertEqAll(assignments []Assignment) error {
	var filled []Relocatable
	for _, a := range assignments {
		_, existed := m.TryGet(a.Address)
		if err := m.AssertEq(a.Address, a.Value); err != nil {
			for i := len(filled) - 1; i >= 0; i-- {
				m.clear(filled[i])
			}
			return err
		}
		if !existed {
			filled = append(filled, a.Address)
		}
	}
	return nil
}

// clear undoes a fresh write, the segment shrinks back to its last written cell
func (m *Memory) clear(addr Relocatable) {
	seg := m.segments[addr.SegmentIndex]
	seg[addr.Offset] = cell{}
	n := len(seg)
	for n > 0 && !seg[n-1].written {
		n--
	}
	m.segments[addr.SegmentIndex] = seg[:n]
}

// Load writes values at consecutive addresses starting at base and returns the address past the last one
func (m *Memory) Load(base Relocatable, values []MaybeRelocatable) (Relocatable, error) {
	addr := base
	for i, v := range values {
		if err := m.AssertEq(addr, v); err != nil {
			return Relocatable{}, fmt.Errorf("failed to load value %d: %w", i, err)
		}
		next, err := addr.AddUint(1)
		if err != nil {
			return Relocatable{}, err
		}
		addr = next
	}
	return addr, nil
}

// Deduce asks the segment's deduction rule for the value of an undefined cell
func (m *Memory) Deduce(addr Relocatable) (MaybeRelocatable, bool, error) {
	rule, ok := m.deductionRules[addr.SegmentIndex]
	if !ok {
		return MaybeRelocatable{}, false, nil
	}
	return rule(m, addr)
}

// SegmentSize returns the number of cells of a segment, up to its highest written offset
func (m *Memory) SegmentSize(index uint32) (uint32, error) {
	seg, err := m.segment(index)
	if err != nil {
		return 0, err
	}
	return uint32(len(seg)), nil
}

// Segment returns a copy of a segment's cells, nil entries are undefined cells
func (m *Memory) Segment(index uint32) ([]*MaybeRelocatable, error) {
	seg, err := m.segment(index)
	if err != nil {
		return nil, err
	}
	out := make([]*MaybeRelocatable, len(seg))
	for i := range seg {
		if seg[i].written {
			v := seg[i].value
			out[i] = &v
		}
	}
	return out, nil
}
