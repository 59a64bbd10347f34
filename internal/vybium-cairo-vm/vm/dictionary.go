package vm

import (
	"fmt"

	"github.com/vybium/vybium-cairo-vm/internal/vybium-cairo-vm/core"
	"github.com/vybium/vybium-cairo-vm/internal/vybium-cairo-vm/memory"
)

// Dictionary is a felt-keyed dictionary backed by its own memory segment
type Dictionary struct {
	ID   uint32
	Base memory.Relocatable

	values   map[core.Felt]memory.MaybeRelocatable
	accesses map[core.Felt][]uint32
}

// Get returns the value of key, ok is false if the key was never set
func (d *Dictionary) Get(key core.Felt) (memory.MaybeRelocatable, bool) {
	v, ok := d.values[key]
	return v, ok
}

// Set stores value under key
func (d *Dictionary) Set(key core.Felt, value memory.MaybeRelocatable) {
	d.values[key] = value
}

// RecordAccess logs an access to key at the given offset of the dictionary segment
func (d *Dictionary) RecordAccess(key core.Felt, offset uint32) {
	d.accesses[key] = append(d.accesses[key], offset)
}

// Accesses returns the offsets at which key was accessed, in access order
func (d *Dictionary) Accesses(key core.Felt) []uint32 {
	return d.accesses[key]
}

// VerifyAccessLog checks the recorded accesses are exactly keys, logged every
// dictAccessSize cells from start
func (d *Dictionary) VerifyAccessLog(start uint32, keys []core.Felt) error {
	recorded := 0
	byOffset := make(map[uint32]core.Felt)
	for key, offsets := range d.accesses {
		for _, off := range offsets {
			byOffset[off] = key
			recorded++
		}
	}
	if recorded != len(keys) {
		return fmt.Errorf("%w: dictionary %d recorded %d accesses, log holds %d", ErrDictAccessMismatch, d.ID, recorded, len(keys))
	}
	for i, key := range keys {
		off := start + uint32(i)*dictAccessSize
		got, ok := byOffset[off]
		if !ok || got != key {
			return fmt.Errorf("%w: dictionary %d access %d at offset %d is %s, log holds %s",
				ErrDictAccessMismatch, d.ID, i, off, got, key)
		}
	}
	return nil
}

// Len returns the number of keys
func (d *Dictionary) Len() int {
	return len(d.values)
}

// DictManager owns the dictionaries of a run
//
// Dictionaries are keyed by the base of their segment. Ids are handed out
// sequentially from 0 and never reused, even after a dictionary is dropped.
type DictManager struct {
	dicts  map[memory.Relocatable]*Dictionary
	nextID uint32
}

// NewDictManager creates an empty manager
func NewDictManager() *DictManager {
	return &DictManager{dicts: make(map[memory.Relocatable]*Dictionary)}
}

// NewDictionary registers a dictionary backed by the segment starting at base
func (m *DictManager) NewDictionary(base memory.Relocatable) *Dictionary {
	d := &Dictionary{
		ID:       m.nextID,
		Base:     base,
		values:   make(map[core.Felt]memory.MaybeRelocatable),
		accesses: make(map[core.Felt][]uint32),
	}
	m.dicts[segmentBase(base)] = d
	m.nextID++
	return d
}

// Get returns the dictionary whose segment contains addr
func (m *DictManager) Get(addr memory.Relocatable) (*Dictionary, error) {
	d, ok := m.dicts[segmentBase(addr)]
	if !ok {
		return nil, fmt.Errorf("%w: segment %d", ErrDictionaryNotFound, addr.SegmentIndex)
	}
	return d, nil
}

// Remove drops the dictionary whose segment contains addr, if any
func (m *DictManager) Remove(addr memory.Relocatable) {
	delete(m.dicts, segmentBase(addr))
}

// Len returns the number of active dictionaries
func (m *DictManager) Len() int {
	return len(m.dicts)
}

func segmentBase(addr memory.Relocatable) memory.Relocatable {
	return memory.NewRelocatable(addr.SegmentIndex, 0)
}
