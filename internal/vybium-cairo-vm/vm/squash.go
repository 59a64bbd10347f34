package vm

import (
	"slices"

	"github.com/vybium/vybium-cairo-vm/internal/vybium-cairo-vm/core"
)

// SquashState walks a dictionary access log key by key
//
// Keys are visited in ascending order and, for each key, access indices in
// ascending order. The current key and index are always the smallest left.
type SquashState struct {
	keys    []core.Felt
	indices map[core.Felt][]uint64
}

// NewSquashState builds the squash state from the access indices of every key
func NewSquashState(accesses map[core.Felt][]uint64) *SquashState {
	s := &SquashState{
		keys:    make([]core.Felt, 0, len(accesses)),
		indices: make(map[core.Felt][]uint64, len(accesses)),
	}
	for key, idx := range accesses {
		sorted := slices.Clone(idx)
		slices.Sort(sorted)
		s.keys = append(s.keys, key)
		s.indices[key] = sorted
	}
	slices.SortFunc(s.keys, func(a, b core.Felt) int { return a.Cmp(b) })
	return s
}

// Keys returns the keys left, current first
func (s *SquashState) Keys() []core.Felt {
	return slices.Clone(s.keys)
}

// LargestKey returns the largest key, ok is false when no key is left
func (s *SquashState) LargestKey() (core.Felt, bool) {
	if len(s.keys) == 0 {
		return core.Felt{}, false
	}
	return s.keys[len(s.keys)-1], true
}

// CurrentKey returns the key being squashed
func (s *SquashState) CurrentKey() (core.Felt, error) {
	if len(s.keys) == 0 {
		return core.Felt{}, ErrEmptySquashKeys
	}
	return s.keys[0], nil
}

func (s *SquashState) currentIndices() ([]uint64, error) {
	key, err := s.CurrentKey()
	if err != nil {
		return nil, err
	}
	return s.indices[key], nil
}

// CurrentIndex returns the smallest access index left for the current key
func (s *SquashState) CurrentIndex() (uint64, error) {
	idx, err := s.currentIndices()
	if err != nil {
		return 0, err
	}
	if len(idx) == 0 {
		return 0, ErrEmptySquashIndices
	}
	return idx[0], nil
}

// PopIndex drops the current access index and returns the distance to the next one
func (s *SquashState) PopIndex() (uint64, error) {
	idx, err := s.currentIndices()
	if err != nil {
		return 0, err
	}
	if len(idx) < 2 {
		return 0, ErrEmptySquashIndices
	}
	delta := idx[1] - idx[0]
	key := s.keys[0]
	s.indices[key] = idx[1:]
	return delta, nil
}

// ShouldSkipLoop reports whether the current key was accessed at most once
func (s *SquashState) ShouldSkipLoop() (bool, error) {
	idx, err := s.currentIndices()
	if err != nil {
		return false, err
	}
	return len(idx) <= 1, nil
}

// ShouldContinueLoop reports whether the current key has accesses left to squash
func (s *SquashState) ShouldContinueLoop() (bool, error) {
	idx, err := s.currentIndices()
	if err != nil {
		return false, err
	}
	return len(idx) > 1, nil
}

// NextKey drops the current key and returns the new current one
func (s *SquashState) NextKey() (core.Felt, error) {
	if len(s.keys) < 2 {
		return core.Felt{}, ErrEmptySquashKeys
	}
	delete(s.indices, s.keys[0])
	s.keys = s.keys[1:]
	return s.keys[0], nil
}
