package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vybium/vybium-cairo-vm/internal/vybium-cairo-vm/core"
	"github.com/vybium/vybium-cairo-vm/internal/vybium-cairo-vm/memory"
)

func TestDictManager(t *testing.T) {
	m := NewDictManager()

	a := m.NewDictionary(memory.NewRelocatable(4, 0))
	b := m.NewDictionary(memory.NewRelocatable(5, 0))
	assert.Equal(t, uint32(0), a.ID)
	assert.Equal(t, uint32(1), b.ID)
	assert.Equal(t, 2, m.Len())

	// any address of the segment designates the dictionary
	got, err := m.Get(memory.NewRelocatable(5, 12))
	require.NoError(t, err)
	assert.Same(t, b, got)

	_, err = m.Get(memory.NewRelocatable(6, 0))
	assert.ErrorIs(t, err, ErrDictionaryNotFound)

	m.Remove(memory.NewRelocatable(4, 3))
	assert.Equal(t, 1, m.Len())
	_, err = m.Get(memory.NewRelocatable(4, 0))
	assert.ErrorIs(t, err, ErrDictionaryNotFound)

	// ids are not reused
	c := m.NewDictionary(memory.NewRelocatable(7, 0))
	assert.Equal(t, uint32(2), c.ID)
}

func TestDictionary(t *testing.T) {
	d := NewDictManager().NewDictionary(memory.NewRelocatable(2, 0))
	key := core.FeltFromUint64(3)

	_, ok := d.Get(key)
	assert.False(t, ok)

	d.Set(key, memory.FromUint64(10))
	d.Set(key, memory.FromRelocatable(memory.NewRelocatable(1, 1)))
	v, ok := d.Get(key)
	require.True(t, ok)
	assert.Equal(t, memory.FromRelocatable(memory.NewRelocatable(1, 1)), v)
	assert.Equal(t, 1, d.Len())

	d.RecordAccess(key, 0)
	d.RecordAccess(key, 6)
	assert.Equal(t, []uint32{0, 6}, d.Accesses(key))
	assert.Empty(t, d.Accesses(core.FeltFromUint64(4)))
}
