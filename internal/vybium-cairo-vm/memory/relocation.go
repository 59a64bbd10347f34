package memory

import (
	"fmt"

	"github.com/vybium/vybium-cairo-vm/internal/vybium-cairo-vm/core"
)

// RelocationTable returns the absolute base address of every segment
//
// Segments are laid out back to back starting at address 1, in allocation order.
func (m *Memory) RelocationTable() []uint64 {
	table := make([]uint64, len(m.segments))
	base := uint64(1)
	for i, seg := range m.segments {
		table[i] = base
		base += uint64(len(seg))
	}
	return table
}

// RelocateAddress maps a relocatable address to its absolute address
func RelocateAddress(addr Relocatable, table []uint64) (uint64, error) {
	if int(addr.SegmentIndex) >= len(table) {
		return 0, fmt.Errorf("%w: cannot relocate %s", ErrUnallocatedSegment, addr)
	}
	return table[addr.SegmentIndex] + uint64(addr.Offset), nil
}

// Relocate flattens all segments into a single address space
//
// The returned slice is indexed by absolute address; index 0 and undefined
// cells are nil. Addresses stored in memory are replaced by their absolute
// value.
func (m *Memory) Relocate() ([]*core.Felt, error) {
	table := m.RelocationTable()
	total := uint64(1)
	if n := len(table); n > 0 {
		total = table[n-1] + uint64(len(m.segments[n-1]))
	}

	out := make([]*core.Felt, total)
	for i, seg := range m.segments {
		for offset, c := range seg {
			if !c.written {
				continue
			}
			var value core.Felt
			if r, ok := c.value.GetRelocatable(); ok {
				abs, err := RelocateAddress(r, table)
				if err != nil {
					return nil, fmt.Errorf("relocating value at %d:%d: %w", i, offset, err)
				}
				value = core.FeltFromUint64(abs)
			} else {
				value, _ = c.value.GetFelt()
			}
			out[table[i]+uint64(offset)] = &value
		}
	}
	return out, nil
}
