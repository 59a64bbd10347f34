package vm

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vybium/vybium-cairo-vm/internal/vybium-cairo-vm/core"
	"github.com/vybium/vybium-cairo-vm/internal/vybium-cairo-vm/hints"
	"github.com/vybium/vybium-cairo-vm/internal/vybium-cairo-vm/memory"
)

// newHintVM returns a VM ready to run hints, ap = fp = 1:2
func newHintVM(t *testing.T) *VMState {
	t.Helper()
	vm, err := NewVMState(newProgramBuilder(t).add(ret()).build(), Options{})
	require.NoError(t, err)
	return vm
}

func apCell(off int16) hints.CellRef {
	return hints.CellRef{Register: hints.AP, Offset: off}
}

func apDeref(off int16) hints.Deref {
	return hints.Deref{Cell: apCell(off)}
}

func imm(v int64) hints.Immediate {
	return hints.Immediate{Value: core.FeltFromInt64(v)}
}

func setAP(t *testing.T, vm *VMState, off uint32, v memory.MaybeRelocatable) {
	t.Helper()
	addr, err := vm.Context.AP().AddUint(off)
	require.NoError(t, err)
	require.NoError(t, vm.Memory.AssertEq(addr, v))
}

func getAP(t *testing.T, vm *VMState, off uint32) memory.MaybeRelocatable {
	t.Helper()
	addr, err := vm.Context.AP().AddUint(off)
	require.NoError(t, err)
	v, err := vm.Memory.Get(addr)
	require.NoError(t, err)
	return v
}

func TestResolveResOperand(t *testing.T) {
	vm := newHintVM(t)
	setAP(t, vm, 0, memory.FromUint64(5))
	setAP(t, vm, 1, memory.FromRelocatable(vm.Context.AP()))

	tests := []struct {
		name string
		op   hints.ResOperand
		want memory.MaybeRelocatable
	}{
		{"Deref", apDeref(0), memory.FromUint64(5)},
		{"DerefFP", hints.Deref{Cell: hints.CellRef{Register: hints.FP, Offset: -2}}, memory.FromRelocatable(memory.NewRelocatable(1, 0))},
		{"DoubleDeref", hints.DoubleDeref{Cell: apCell(1), Offset: 0}, memory.FromUint64(5)},
		{"Immediate", imm(-3), memory.FromFelt(core.FeltFromInt64(-3))},
		{"BinOpAdd", hints.BinOp{Op: hints.OpAdd, A: apCell(0), B: imm(2)}, memory.FromUint64(7)},
		{"BinOpMul", hints.BinOp{Op: hints.OpMul, A: apCell(0), B: apDeref(0)}, memory.FromUint64(25)},
		{"BinOpRelocatable", hints.BinOp{Op: hints.OpAdd, A: apCell(1), B: imm(1)}, memory.FromRelocatable(memory.NewRelocatable(1, 3))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := vm.resolveResOperand(tt.op)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := vm.resolveResOperand(apDeref(5))
	var undefined *memory.UndefinedValueError
	assert.ErrorAs(t, err, &undefined)

	_, err = vm.resolveResOperand(hints.DoubleDeref{Cell: apCell(0)})
	assert.ErrorIs(t, err, memory.ErrExpectedRelocatable)
}

func TestHintAllocSegment(t *testing.T) {
	vm := newHintVM(t)
	require.NoError(t, vm.ExecuteHint(hints.AllocSegment{Dst: apCell(0)}))
	require.NoError(t, vm.ExecuteHint(hints.AllocSegment{Dst: apCell(1)}))

	assert.Equal(t, memory.FromRelocatable(memory.NewRelocatable(2, 0)), getAP(t, vm, 0))
	assert.Equal(t, memory.FromRelocatable(memory.NewRelocatable(3, 0)), getAP(t, vm, 1))

	// the destination is write-once
	err := vm.ExecuteHint(hints.AllocSegment{Dst: apCell(0)})
	var inconsistent *memory.InconsistentMemoryError
	assert.ErrorAs(t, err, &inconsistent)
}

func TestHintTestLessThan(t *testing.T) {
	tests := []struct {
		name     string
		lhs, rhs hints.ResOperand
		want     uint64
	}{
		{"Less", imm(3), imm(5), 1},
		{"Equal", imm(5), imm(5), 0},
		{"Greater", imm(6), imm(5), 0},
		{"NegativeIsLarge", imm(-1), imm(5), 0},
		{"BinOp", hints.BinOp{Op: hints.OpAdd, A: apCell(0), B: imm(1)}, imm(11), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vm := newHintVM(t)
			setAP(t, vm, 0, memory.FromUint64(9))
			require.NoError(t, vm.ExecuteHint(hints.TestLessThan{Lhs: tt.lhs, Rhs: tt.rhs, Dst: apCell(1)}))
			assert.Equal(t, memory.FromUint64(tt.want), getAP(t, vm, 1))
		})
	}
}

func TestHintUnknown(t *testing.T) {
	vm := newHintVM(t)
	assert.ErrorIs(t, vm.ExecuteHint(nil), ErrUnknownHint)
}

// setupArena lays out a segment arena with no dictionary yet and stores
// its end pointer at [ap]. Returns the dict infos base.
func setupArena(t *testing.T, vm *VMState) memory.Relocatable {
	t.Helper()
	infos := vm.Memory.AllocateSegment()
	arena := vm.Memory.AllocateSegment()
	end, err := vm.Memory.Load(arena, []memory.MaybeRelocatable{
		memory.FromRelocatable(infos),
		memory.FromUint64(0),
		memory.FromUint64(0),
	})
	require.NoError(t, err)
	setAP(t, vm, 0, memory.FromRelocatable(end))
	return infos
}

func TestHintDictionaryLifecycle(t *testing.T) {
	vm := newHintVM(t)
	infos := setupArena(t, vm)

	require.NoError(t, vm.ExecuteHint(hints.AllocFelt252Dict{SegmentArenaPtr: apDeref(0)}))
	require.Equal(t, 1, vm.Dicts.Len())

	dictBase, err := vm.Memory.GetRelocatable(infos)
	require.NoError(t, err)
	assert.Equal(t, memory.NewRelocatable(4, 0), dictBase)

	at := func(off uint32) memory.Relocatable {
		return memory.NewRelocatable(dictBase.SegmentIndex, off)
	}
	setAP(t, vm, 1, memory.FromRelocatable(at(0)))
	setAP(t, vm, 2, memory.FromRelocatable(at(3)))
	setAP(t, vm, 3, memory.FromRelocatable(at(6)))

	// first access to key 7: previous value defaults to 0
	require.NoError(t, vm.Memory.AssertEq(at(0), memory.FromUint64(7)))
	require.NoError(t, vm.ExecuteHint(hints.Felt252DictEntryInit{DictPtr: apDeref(1), Key: imm(7)}))
	prev, err := vm.Memory.GetFelt(at(1))
	require.NoError(t, err)
	assert.True(t, prev.IsZero())

	require.NoError(t, vm.Memory.AssertEq(at(2), memory.FromUint64(100)))
	require.NoError(t, vm.ExecuteHint(hints.Felt252DictEntryUpdate{DictPtr: apDeref(2), Value: imm(100)}))

	// second access reads the updated value
	require.NoError(t, vm.Memory.AssertEq(at(3), memory.FromUint64(7)))
	require.NoError(t, vm.ExecuteHint(hints.Felt252DictEntryInit{DictPtr: apDeref(2), Key: imm(7)}))
	requireFeltAt(t, vm, at(4), 100)
	require.NoError(t, vm.Memory.AssertEq(at(5), memory.FromUint64(100)))

	d, err := vm.Dicts.Get(dictBase)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 3}, d.Accesses(core.FeltFromUint64(7)))

	require.NoError(t, vm.ExecuteHint(hints.GetSegmentArenaIndex{DictEndPtr: apDeref(3), DictIndex: apCell(4)}))
	assert.Equal(t, memory.FromUint64(0), getAP(t, vm, 4))

	require.NoError(t, vm.ExecuteHint(hints.InitSquashData{
		DictAccesses: apDeref(1),
		PtrDiff:      imm(6),
		NAccesses:    imm(2),
		BigKeys:      apCell(5),
		FirstKey:     apCell(6),
	}))
	assert.Equal(t, memory.FromUint64(0), getAP(t, vm, 5))
	assert.Equal(t, memory.FromUint64(7), getAP(t, vm, 6))
	assert.Equal(t, 0, vm.Dicts.Len(), "squashed dictionary is dropped")

	rc := vm.Memory.AllocateSegment()
	setAP(t, vm, 7, memory.FromRelocatable(rc))

	require.NoError(t, vm.ExecuteHint(hints.ShouldSkipSquashLoop{ShouldSkipLoop: apCell(8)}))
	assert.Equal(t, memory.FromUint64(0), getAP(t, vm, 8))

	require.NoError(t, vm.ExecuteHint(hints.GetCurrentAccessIndex{RangeCheckPtr: apDeref(7)}))
	requireFeltAt(t, vm, rc, 0)

	require.NoError(t, vm.ExecuteHint(hints.GetCurrentAccessDelta{IndexDeltaMinus1: apCell(9)}))
	assert.Equal(t, memory.FromUint64(0), getAP(t, vm, 9))

	require.NoError(t, vm.ExecuteHint(hints.ShouldContinueSquashLoop{ShouldContinue: apCell(10)}))
	assert.Equal(t, memory.FromUint64(0), getAP(t, vm, 10))

	assert.ErrorIs(t, vm.ExecuteHint(hints.GetNextDictKey{NextKey: apCell(11)}), ErrEmptySquashKeys)
}

func TestHintInitSquashDataChecksAccessLog(t *testing.T) {
	squash := hints.InitSquashData{
		DictAccesses: apDeref(1),
		PtrDiff:      imm(6),
		NAccesses:    imm(2),
		BigKeys:      apCell(3),
		FirstKey:     apCell(4),
	}

	newDict := func(t *testing.T) (*VMState, func(uint32) memory.Relocatable) {
		vm := newHintVM(t)
		infos := setupArena(t, vm)
		require.NoError(t, vm.ExecuteHint(hints.AllocFelt252Dict{SegmentArenaPtr: apDeref(0)}))
		dictBase, err := vm.Memory.GetRelocatable(infos)
		require.NoError(t, err)
		at := func(off uint32) memory.Relocatable {
			return memory.NewRelocatable(dictBase.SegmentIndex, off)
		}
		setAP(t, vm, 1, memory.FromRelocatable(at(0)))
		setAP(t, vm, 2, memory.FromRelocatable(at(3)))
		return vm, at
	}

	t.Run("UnrecordedAccess", func(t *testing.T) {
		vm, at := newDict(t)
		require.NoError(t, vm.Memory.AssertEq(at(0), memory.FromUint64(7)))
		require.NoError(t, vm.ExecuteHint(hints.Felt252DictEntryInit{DictPtr: apDeref(1), Key: imm(7)}))
		require.NoError(t, vm.Memory.AssertEq(at(3), memory.FromUint64(8)))

		assert.ErrorIs(t, vm.ExecuteHint(squash), ErrDictAccessMismatch)
		assert.Nil(t, vm.Squash)
	})

	t.Run("KeyDiffers", func(t *testing.T) {
		vm, at := newDict(t)
		require.NoError(t, vm.Memory.AssertEq(at(0), memory.FromUint64(7)))
		require.NoError(t, vm.ExecuteHint(hints.Felt252DictEntryInit{DictPtr: apDeref(1), Key: imm(7)}))
		require.NoError(t, vm.Memory.AssertEq(at(3), memory.FromUint64(8)))
		require.NoError(t, vm.ExecuteHint(hints.Felt252DictEntryInit{DictPtr: apDeref(2), Key: imm(9)}))

		assert.ErrorIs(t, vm.ExecuteHint(squash), ErrDictAccessMismatch)
	})

	t.Run("Matches", func(t *testing.T) {
		vm, at := newDict(t)
		require.NoError(t, vm.Memory.AssertEq(at(0), memory.FromUint64(7)))
		require.NoError(t, vm.ExecuteHint(hints.Felt252DictEntryInit{DictPtr: apDeref(1), Key: imm(7)}))
		require.NoError(t, vm.Memory.AssertEq(at(3), memory.FromUint64(8)))
		require.NoError(t, vm.ExecuteHint(hints.Felt252DictEntryInit{DictPtr: apDeref(2), Key: imm(8)}))

		require.NoError(t, vm.ExecuteHint(squash))
		assert.Equal(t, []core.Felt{core.FeltFromUint64(7), core.FeltFromUint64(8)}, vm.Squash.Keys())
	})
}

func TestHintSegmentArenaIndexMismatch(t *testing.T) {
	vm := newHintVM(t)
	setupArena(t, vm)
	require.NoError(t, vm.ExecuteHint(hints.AllocFelt252Dict{SegmentArenaPtr: apDeref(0)}))

	setAP(t, vm, 1, memory.FromRelocatable(memory.NewRelocatable(4, 0)))
	setAP(t, vm, 2, memory.FromUint64(3))

	err := vm.ExecuteHint(hints.GetSegmentArenaIndex{DictEndPtr: apDeref(1), DictIndex: apCell(2)})
	assert.ErrorIs(t, err, ErrDictIndexMismatch)

	setAP(t, vm, 3, memory.FromRelocatable(memory.NewRelocatable(1, 0)))
	err = vm.ExecuteHint(hints.GetSegmentArenaIndex{DictEndPtr: apDeref(3), DictIndex: apCell(4)})
	assert.ErrorIs(t, err, ErrDictionaryNotFound)
}

func TestHintInitSquashData(t *testing.T) {
	t.Run("MultipleKeys", func(t *testing.T) {
		vm := newHintVM(t)
		log := vm.Memory.AllocateSegment()
		bigKey := core.FeltFromBigInt(new(big.Int).Lsh(big.NewInt(1), 128))
		_, err := vm.Memory.Load(log, []memory.MaybeRelocatable{
			memory.FromUint64(5), memory.FromUint64(0), memory.FromUint64(1),
			memory.FromFelt(bigKey), memory.FromUint64(0), memory.FromUint64(2),
			memory.FromUint64(5), memory.FromUint64(1), memory.FromUint64(3),
		})
		require.NoError(t, err)
		setAP(t, vm, 0, memory.FromRelocatable(log))

		require.NoError(t, vm.ExecuteHint(hints.InitSquashData{
			DictAccesses: apDeref(0),
			PtrDiff:      imm(9),
			NAccesses:    imm(3),
			BigKeys:      apCell(1),
			FirstKey:     apCell(2),
		}))
		assert.Equal(t, memory.FromUint64(1), getAP(t, vm, 1))
		assert.Equal(t, memory.FromUint64(5), getAP(t, vm, 2))
		assert.Equal(t, []core.Felt{core.FeltFromUint64(5), bigKey}, vm.Squash.Keys())

		rc := vm.Memory.AllocateSegment()
		setAP(t, vm, 3, memory.FromRelocatable(rc))
		require.NoError(t, vm.ExecuteHint(hints.GetCurrentAccessIndex{RangeCheckPtr: apDeref(3)}))
		requireFeltAt(t, vm, rc, 0)

		require.NoError(t, vm.ExecuteHint(hints.GetCurrentAccessDelta{IndexDeltaMinus1: apCell(4)}))
		assert.Equal(t, memory.FromUint64(1), getAP(t, vm, 4), "indices 0 and 2 are 2 apart")

		require.NoError(t, vm.ExecuteHint(hints.GetNextDictKey{NextKey: apCell(5)}))
		assert.Equal(t, memory.FromFelt(bigKey), getAP(t, vm, 5))

		require.NoError(t, vm.ExecuteHint(hints.ShouldSkipSquashLoop{ShouldSkipLoop: apCell(6)}))
		assert.Equal(t, memory.FromUint64(1), getAP(t, vm, 6))
	})

	t.Run("PtrDiffNotDivisible", func(t *testing.T) {
		vm := newHintVM(t)
		setAP(t, vm, 0, memory.FromRelocatable(vm.Memory.AllocateSegment()))
		err := vm.ExecuteHint(hints.InitSquashData{
			DictAccesses: apDeref(0), PtrDiff: imm(4), NAccesses: imm(0),
			BigKeys: apCell(1), FirstKey: apCell(2),
		})
		assert.ErrorIs(t, err, ErrPtrDiffNotDivisible)
	})

	t.Run("NotInitialized", func(t *testing.T) {
		vm := newHintVM(t)
		for _, h := range []hints.Hint{
			hints.GetCurrentAccessIndex{RangeCheckPtr: apDeref(0)},
			hints.ShouldSkipSquashLoop{ShouldSkipLoop: apCell(0)},
			hints.GetCurrentAccessDelta{IndexDeltaMinus1: apCell(0)},
			hints.ShouldContinueSquashLoop{ShouldContinue: apCell(0)},
			hints.GetNextDictKey{NextKey: apCell(0)},
		} {
			assert.ErrorIs(t, vm.ExecuteHint(h), ErrSquashNotInitialized, h.Name())
		}
	})
}

func TestHintAssertLeArcs(t *testing.T) {
	tests := []struct {
		name          string
		a, b          int64
		limbs         []int64
		skipFirst     uint64
		skipSecond    uint64
		excludedIndex int
	}{
		// arcs 1, 9 and P-11: the third is excluded
		{"ExcludeThird", 1, 10, []int64{1, 0, 9, 0}, 1, 1, 2},
		// arcs 10, P-12 and 1: the second is excluded
		{"ExcludeSecond", 10, -2, []int64{1, 0, 10, 0}, 1, 0, 1},
		// arcs P-3, 1 and 1: the first is excluded
		{"ExcludeFirst", -3, -2, []int64{1, 0, 1, 0}, 0, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vm := newHintVM(t)
			rc := vm.Memory.AllocateSegment()
			setAP(t, vm, 0, memory.FromRelocatable(rc))

			assert.ErrorIs(t, vm.ExecuteHint(hints.AssertLeIsFirstArcExcluded{SkipExcludeAFlag: apCell(1)}), ErrNoExcludedArc)

			require.NoError(t, vm.ExecuteHint(hints.AssertLeFindSmallArcs{
				RangeCheckPtr: apDeref(0),
				A:             imm(tt.a),
				B:             imm(tt.b),
			}))
			assert.Equal(t, tt.excludedIndex, vm.excludedArc)

			for i, want := range tt.limbs {
				requireFeltAt(t, vm, memory.NewRelocatable(rc.SegmentIndex, uint32(i)), want)
			}

			require.NoError(t, vm.ExecuteHint(hints.AssertLeIsFirstArcExcluded{SkipExcludeAFlag: apCell(1)}))
			assert.Equal(t, memory.FromUint64(tt.skipFirst), getAP(t, vm, 1))

			require.NoError(t, vm.ExecuteHint(hints.AssertLeIsSecondArcExcluded{SkipExcludeBMinusA: apCell(2)}))
			assert.Equal(t, memory.FromUint64(tt.skipSecond), getAP(t, vm, 2))
		})
	}
}

func TestHintAssertLeLargeArc(t *testing.T) {
	vm := newHintVM(t)
	rc := vm.Memory.AllocateSegment()
	setAP(t, vm, 0, memory.FromRelocatable(rc))

	// a = 2^200 is the second smallest arc, split by prime / 2
	twoPow200 := new(big.Int).Lsh(big.NewInt(1), 200)
	a := core.FeltFromBigInt(twoPow200)
	require.NoError(t, vm.ExecuteHint(hints.AssertLeFindSmallArcs{
		RangeCheckPtr: apDeref(0),
		A:             hints.Immediate{Value: a},
		B:             imm(-1),
	}))

	q, r := new(big.Int).DivMod(twoPow200, primeOver2High.ToBig(), new(big.Int))

	requireFeltAt(t, vm, rc, 0)
	got, err := vm.Memory.GetFelt(memory.NewRelocatable(rc.SegmentIndex, 2))
	require.NoError(t, err)
	assert.Equal(t, core.FeltFromBigInt(r), got)
	got, err = vm.Memory.GetFelt(memory.NewRelocatable(rc.SegmentIndex, 3))
	require.NoError(t, err)
	assert.Equal(t, core.FeltFromBigInt(q), got)
}
