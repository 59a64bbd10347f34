package memory

import (
	"fmt"

	"github.com/vybium/vybium-cairo-vm/internal/vybium-cairo-vm/core"
)

// MaybeRelocatable is a memory value: either an address or a field element
//
// The zero value is the field element 0. MaybeRelocatable is comparable, two
// values are == iff they hold the same kind and the same content.
type MaybeRelocatable struct {
	isRelocatable bool
	relocatable   Relocatable
	felt          core.Felt
}

// FromFelt wraps a field element
func FromFelt(f core.Felt) MaybeRelocatable {
	return MaybeRelocatable{felt: f}
}

// FromUint64 wraps a small integer as a field element
func FromUint64(v uint64) MaybeRelocatable {
	return MaybeRelocatable{felt: core.FeltFromUint64(v)}
}

// FromRelocatable wraps an address
func FromRelocatable(r Relocatable) MaybeRelocatable {
	return MaybeRelocatable{isRelocatable: true, relocatable: r}
}

// IsRelocatable reports whether the value is an address
func (m MaybeRelocatable) IsRelocatable() bool {
	return m.isRelocatable
}

// GetFelt returns the field element if the value is one
func (m MaybeRelocatable) GetFelt() (core.Felt, bool) {
	if m.isRelocatable {
		return core.Felt{}, false
	}
	return m.felt, true
}

// GetRelocatable returns the address if the value is one
func (m MaybeRelocatable) GetRelocatable() (Relocatable, bool) {
	if !m.isRelocatable {
		return Relocatable{}, false
	}
	return m.relocatable, true
}

// Felt returns the field element or ErrExpectedFelt
func (m MaybeRelocatable) Felt() (core.Felt, error) {
	if m.isRelocatable {
		return core.Felt{}, fmt.Errorf("%w, got %s", ErrExpectedFelt, m)
	}
	return m.felt, nil
}

// Relocatable returns the address or ErrExpectedRelocatable
func (m MaybeRelocatable) Relocatable() (Relocatable, error) {
	if !m.isRelocatable {
		return Relocatable{}, fmt.Errorf("%w, got %s", ErrExpectedRelocatable, m)
	}
	return m.relocatable, nil
}

// IsZero reports whether the value is the field element 0; addresses are never zero
func (m MaybeRelocatable) IsZero() bool {
	return !m.isRelocatable && m.felt.IsZero()
}

// Equal reports equality; an address never equals a field element
func (m MaybeRelocatable) Equal(other MaybeRelocatable) bool {
	return m == other
}

// Add supports felt + felt, address + felt and felt + address
func (m MaybeRelocatable) Add(other MaybeRelocatable) (MaybeRelocatable, error) {
	switch {
	case !m.isRelocatable && !other.isRelocatable:
		return FromFelt(m.felt.Add(other.felt)), nil
	case m.isRelocatable && !other.isRelocatable:
		r, err := m.relocatable.AddFelt(other.felt)
		if err != nil {
			return MaybeRelocatable{}, err
		}
		return FromRelocatable(r), nil
	case !m.isRelocatable && other.isRelocatable:
		r, err := other.relocatable.AddFelt(m.felt)
		if err != nil {
			return MaybeRelocatable{}, err
		}
		return FromRelocatable(r), nil
	default:
		return MaybeRelocatable{}, fmt.Errorf("%w: %s + %s", ErrForbiddenOperation, m, other)
	}
}

// Sub supports felt - felt, address - felt and address - address
func (m MaybeRelocatable) Sub(other MaybeRelocatable) (MaybeRelocatable, error) {
	switch {
	case !m.isRelocatable && !other.isRelocatable:
		return FromFelt(m.felt.Sub(other.felt)), nil
	case m.isRelocatable && !other.isRelocatable:
		r, err := m.relocatable.SubFelt(other.felt)
		if err != nil {
			return MaybeRelocatable{}, err
		}
		return FromRelocatable(r), nil
	case m.isRelocatable && other.isRelocatable:
		d, err := m.relocatable.Sub(other.relocatable)
		if err != nil {
			return MaybeRelocatable{}, err
		}
		return FromFelt(d), nil
	default:
		return MaybeRelocatable{}, fmt.Errorf("%w: %s - %s", ErrForbiddenOperation, m, other)
	}
}

// Mul is only defined on field elements
func (m MaybeRelocatable) Mul(other MaybeRelocatable) (MaybeRelocatable, error) {
	if m.isRelocatable {
		return MaybeRelocatable{}, m.relocatable.Mul(other)
	}
	if other.isRelocatable {
		return MaybeRelocatable{}, other.relocatable.Mul(m)
	}
	return FromFelt(m.felt.Mul(other.felt)), nil
}

// Div is only defined on field elements
func (m MaybeRelocatable) Div(other MaybeRelocatable) (MaybeRelocatable, error) {
	if m.isRelocatable {
		return MaybeRelocatable{}, m.relocatable.Div(other)
	}
	if other.isRelocatable {
		return MaybeRelocatable{}, fmt.Errorf("%w: %s / %s", ErrForbiddenOperation, m, other)
	}
	q, err := m.felt.Div(other.felt)
	if err != nil {
		return MaybeRelocatable{}, err
	}
	return FromFelt(q), nil
}

// String returns the address as segment:offset or the field element in hex
func (m MaybeRelocatable) String() string {
	if m.isRelocatable {
		return m.relocatable.String()
	}
	return m.felt.Hex()
}
