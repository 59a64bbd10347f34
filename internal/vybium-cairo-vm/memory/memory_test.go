package memory

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vybium/vybium-cairo-vm/internal/vybium-cairo-vm/core"
)

func TestAllocateSegment(t *testing.T) {
	mem := NewMemory()
	assert.Equal(t, NewRelocatable(0, 0), mem.AllocateSegment())
	assert.Equal(t, NewRelocatable(1, 0), mem.AllocateSegment())
	assert.Equal(t, NewRelocatable(2, 0), mem.AllocateSegment())
	assert.Equal(t, 3, mem.NumSegments())
}

func TestMemoryGet(t *testing.T) {
	mem := NewMemory()
	base := mem.AllocateSegment()

	t.Run("Undefined", func(t *testing.T) {
		_, err := mem.Get(base)
		assert.ErrorIs(t, err, ErrUndefinedValue)

		var undefined *UndefinedValueError
		require.True(t, errors.As(err, &undefined))
		assert.Equal(t, base, undefined.Address)
	})

	t.Run("UnallocatedSegment", func(t *testing.T) {
		_, err := mem.Get(NewRelocatable(7, 0))
		assert.ErrorIs(t, err, ErrUnallocatedSegment)

		err = mem.AssertEq(NewRelocatable(7, 0), FromUint64(1))
		assert.ErrorIs(t, err, ErrUnallocatedSegment)
	})

	t.Run("Written", func(t *testing.T) {
		addr := NewRelocatable(0, 10)
		require.NoError(t, mem.AssertEq(addr, FromUint64(42)))
		v, err := mem.Get(addr)
		require.NoError(t, err)
		assert.Equal(t, FromUint64(42), v)

		// Cells below the write stay undefined
		_, ok := mem.TryGet(NewRelocatable(0, 9))
		assert.False(t, ok)

		size, err := mem.SegmentSize(0)
		require.NoError(t, err)
		assert.Equal(t, uint32(11), size)
	})

	t.Run("TypedGetters", func(t *testing.T) {
		addr := NewRelocatable(0, 20)
		require.NoError(t, mem.AssertEq(addr, FromRelocatable(NewRelocatable(0, 1))))

		_, err := mem.GetFelt(addr)
		assert.ErrorIs(t, err, ErrExpectedFelt)

		r, err := mem.GetRelocatable(addr)
		require.NoError(t, err)
		assert.Equal(t, NewRelocatable(0, 1), r)
	})
}

func TestMemoryAssertEq(t *testing.T) {
	mem := NewMemory()
	mem.AllocateSegment()
	addr := NewRelocatable(0, 0)

	require.NoError(t, mem.AssertEq(addr, FromUint64(7)))

	// Rewriting an equal value is a no-op
	require.NoError(t, mem.AssertEq(addr, FromUint64(7)))
	require.NoError(t, mem.AssertEq(addr, FromFelt(core.FeltFromInt64(7))))

	// Rewriting a different value fails
	err := mem.AssertEq(addr, FromUint64(8))
	assert.ErrorIs(t, err, ErrInconsistentMemory)

	var inconsistent *InconsistentMemoryError
	require.True(t, errors.As(err, &inconsistent))
	assert.Equal(t, FromUint64(7), inconsistent.Existing)
	assert.Equal(t, FromUint64(8), inconsistent.New)

	// A felt never equals an address
	err = mem.AssertEq(addr, FromRelocatable(NewRelocatable(0, 7)))
	assert.ErrorIs(t, err, ErrInconsistentMemory)
}

func TestMemoryRules(t *testing.T) {
	mem := NewMemory()
	mem.AllocateSegment()
	guarded := mem.AllocateSegment()

	errOdd := errors.New("odd value")
	mem.AddValidationRule(guarded.SegmentIndex, func(m *Memory, addr Relocatable) error {
		f, err := m.GetFelt(addr)
		if err != nil {
			return err
		}
		if f.BigInt().Bit(0) == 1 {
			return errOdd
		}
		return nil
	})
	mem.AddDeductionRule(guarded.SegmentIndex, func(m *Memory, addr Relocatable) (MaybeRelocatable, bool, error) {
		if addr.Offset == 0 {
			return MaybeRelocatable{}, false, nil
		}
		return FromUint64(uint64(addr.Offset) * 2), true, nil
	})

	require.NoError(t, mem.AssertEq(guarded, FromUint64(2)))

	odd := NewRelocatable(guarded.SegmentIndex, 1)
	assert.ErrorIs(t, mem.AssertEq(odd, FromUint64(3)), errOdd)
	_, ok := mem.TryGet(odd)
	assert.False(t, ok, "rejected value must not be kept")

	v, ok, err := mem.Deduce(NewRelocatable(guarded.SegmentIndex, 4))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, FromUint64(8), v)

	_, ok, err = mem.Deduce(NewRelocatable(0, 4))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryAssertEqAll(t *testing.T) {
	mem := NewMemory()
	mem.AllocateSegment()
	guarded := mem.AllocateSegment()

	errOdd := errors.New("odd value")
	mem.AddValidationRule(guarded.SegmentIndex, func(m *Memory, addr Relocatable) error {
		f, err := m.GetFelt(addr)
		if err != nil {
			return err
		}
		if f.BigInt().Bit(0) == 1 {
			return errOdd
		}
		return nil
	})
	require.NoError(t, mem.AssertEq(NewRelocatable(0, 0), FromUint64(1)))

	t.Run("RejectedLeavesNothing", func(t *testing.T) {
		err := mem.AssertEqAll([]Assignment{
			{Address: NewRelocatable(0, 0), Value: FromUint64(1)},
			{Address: NewRelocatable(0, 4), Value: FromUint64(5)},
			{Address: NewRelocatable(guarded.SegmentIndex, 0), Value: FromUint64(2)},
			{Address: NewRelocatable(guarded.SegmentIndex, 1), Value: FromUint64(3)},
		})
		assert.ErrorIs(t, err, errOdd)

		_, ok := mem.TryGet(NewRelocatable(0, 4))
		assert.False(t, ok)
		_, ok = mem.TryGet(NewRelocatable(guarded.SegmentIndex, 0))
		assert.False(t, ok)

		// cells written before the batch stay
		v, err := mem.Get(NewRelocatable(0, 0))
		require.NoError(t, err)
		assert.Equal(t, FromUint64(1), v)

		size, err := mem.SegmentSize(0)
		require.NoError(t, err)
		assert.Equal(t, uint32(1), size)
		size, err = mem.SegmentSize(guarded.SegmentIndex)
		require.NoError(t, err)
		assert.Zero(t, size)
	})

	t.Run("ConflictLeavesNothing", func(t *testing.T) {
		err := mem.AssertEqAll([]Assignment{
			{Address: NewRelocatable(0, 2), Value: FromUint64(7)},
			{Address: NewRelocatable(0, 2), Value: FromUint64(8)},
		})
		var inconsistent *InconsistentMemoryError
		assert.ErrorAs(t, err, &inconsistent)
		_, ok := mem.TryGet(NewRelocatable(0, 2))
		assert.False(t, ok)
	})

	t.Run("AllHold", func(t *testing.T) {
		require.NoError(t, mem.AssertEqAll([]Assignment{
			{Address: NewRelocatable(0, 1), Value: FromUint64(9)},
			{Address: NewRelocatable(guarded.SegmentIndex, 0), Value: FromUint64(4)},
		}))
		v, err := mem.Get(NewRelocatable(guarded.SegmentIndex, 0))
		require.NoError(t, err)
		assert.Equal(t, FromUint64(4), v)
	})
}

func TestMemorySegmentSizeLimit(t *testing.T) {
	mem := NewMemory()
	mem.AllocateSegment()

	err := mem.AssertEq(NewRelocatable(0, 1<<31), FromUint64(1))
	assert.ErrorIs(t, err, ErrSegmentTooLarge)

	mem.SetMaxSegmentSize(4)
	require.NoError(t, mem.AssertEq(NewRelocatable(0, 3), FromUint64(1)))
	assert.ErrorIs(t, mem.AssertEq(NewRelocatable(0, 4), FromUint64(1)), ErrSegmentTooLarge)

	size, err := mem.SegmentSize(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), size)
}

func TestMemoryLoad(t *testing.T) {
	mem := NewMemory()
	base := mem.AllocateSegment()
	end, err := mem.Load(base, []MaybeRelocatable{FromUint64(1), FromUint64(2), FromUint64(3)})
	require.NoError(t, err)
	assert.Equal(t, NewRelocatable(0, 3), end)

	cells, err := mem.Segment(0)
	require.NoError(t, err)
	require.Len(t, cells, 3)
	assert.Equal(t, FromUint64(2), *cells[1])
}

func TestMemoryRelocate(t *testing.T) {
	mem := NewMemory()
	s0 := mem.AllocateSegment()
	s1 := mem.AllocateSegment()
	s2 := mem.AllocateSegment()

	_, err := mem.Load(s0, []MaybeRelocatable{FromUint64(10), FromUint64(11)})
	require.NoError(t, err)
	_, err = mem.Load(s1, []MaybeRelocatable{FromRelocatable(NewRelocatable(2, 1)), FromUint64(12), FromUint64(13)})
	require.NoError(t, err)
	require.NoError(t, mem.AssertEq(NewRelocatable(s2.SegmentIndex, 1), FromUint64(14)))

	table := mem.RelocationTable()
	assert.Equal(t, []uint64{1, 3, 6}, table)

	abs, err := RelocateAddress(NewRelocatable(1, 2), table)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), abs)

	flat, err := mem.Relocate()
	require.NoError(t, err)
	require.Len(t, flat, 8)
	assert.Nil(t, flat[0])
	assert.Equal(t, core.FeltFromUint64(10), *flat[1])
	assert.Equal(t, core.FeltFromUint64(7), *flat[3], "2:1 relocates to 6+1")
	assert.Nil(t, flat[6])
	assert.Equal(t, core.FeltFromUint64(14), *flat[7])
}
