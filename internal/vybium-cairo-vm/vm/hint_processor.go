package vm

import (
	"fmt"
	"slices"

	"github.com/holiman/uint256"

	"github.com/vybium/vybium-cairo-vm/internal/vybium-cairo-vm/core"
	"github.com/vybium/vybium-cairo-vm/internal/vybium-cairo-vm/hints"
	"github.com/vybium/vybium-cairo-vm/internal/vybium-cairo-vm/memory"
)

// dictAccessSize is the number of cells of a dict access: key, previous value, new value
const dictAccessSize = 3

var (
	// prime / 3 and prime / 2, the bounds of the two small arcs of assert_le
	primeOver3High = uint256.MustFromDecimal("3544607988759775765608368578435044694")
	primeOver2High = uint256.MustFromDecimal("5316911983139663648412552867652567041")

	twoPow128 = new(uint256.Int).Lsh(uint256.NewInt(1), 128)
)

// ExecuteHint runs one hint against the current registers and memory
func (vm *VMState) ExecuteHint(h hints.Hint) error {
	switch h := h.(type) {
	case hints.AllocSegment:
		base := vm.Memory.AllocateSegment()
		return vm.writeCell(h.Dst, memory.FromRelocatable(base))

	case hints.TestLessThan:
		lhs, err := vm.resolveFelt(h.Lhs)
		if err != nil {
			return err
		}
		rhs, err := vm.resolveFelt(h.Rhs)
		if err != nil {
			return err
		}
		return vm.writeCell(h.Dst, boolCell(lhs.Cmp(rhs) < 0))

	case hints.AllocFelt252Dict:
		return vm.allocFelt252Dict(h)
	case hints.GetSegmentArenaIndex:
		return vm.getSegmentArenaIndex(h)
	case hints.Felt252DictEntryInit:
		return vm.felt252DictEntryInit(h)
	case hints.Felt252DictEntryUpdate:
		return vm.felt252DictEntryUpdate(h)
	case hints.InitSquashData:
		return vm.initSquashData(h)

	case hints.GetCurrentAccessIndex:
		squash, err := vm.squashState()
		if err != nil {
			return err
		}
		ptr, err := vm.getPointer(h.RangeCheckPtr)
		if err != nil {
			return err
		}
		idx, err := squash.CurrentIndex()
		if err != nil {
			return err
		}
		return vm.Memory.AssertEq(ptr, memory.FromUint64(idx))

	case hints.ShouldSkipSquashLoop:
		squash, err := vm.squashState()
		if err != nil {
			return err
		}
		skip, err := squash.ShouldSkipLoop()
		if err != nil {
			return err
		}
		return vm.writeCell(h.ShouldSkipLoop, boolCell(skip))

	case hints.GetCurrentAccessDelta:
		squash, err := vm.squashState()
		if err != nil {
			return err
		}
		delta, err := squash.PopIndex()
		if err != nil {
			return err
		}
		return vm.writeCell(h.IndexDeltaMinus1, memory.FromUint64(delta-1))

	case hints.ShouldContinueSquashLoop:
		squash, err := vm.squashState()
		if err != nil {
			return err
		}
		cont, err := squash.ShouldContinueLoop()
		if err != nil {
			return err
		}
		return vm.writeCell(h.ShouldContinue, boolCell(cont))

	case hints.GetNextDictKey:
		squash, err := vm.squashState()
		if err != nil {
			return err
		}
		key, err := squash.NextKey()
		if err != nil {
			return err
		}
		return vm.writeCell(h.NextKey, memory.FromFelt(key))

	case hints.AssertLeFindSmallArcs:
		return vm.assertLeFindSmallArcs(h)

	case hints.AssertLeIsFirstArcExcluded:
		if !vm.hasExcluded {
			return ErrNoExcludedArc
		}
		return vm.writeCell(h.SkipExcludeAFlag, boolCell(vm.excludedArc != 0))

	case hints.AssertLeIsSecondArcExcluded:
		if !vm.hasExcluded {
			return ErrNoExcludedArc
		}
		return vm.writeCell(h.SkipExcludeBMinusA, boolCell(vm.excludedArc != 1))
	}
	return fmt.Errorf("%w: %T", ErrUnknownHint, h)
}

func boolCell(b bool) memory.MaybeRelocatable {
	if b {
		return memory.FromUint64(1)
	}
	return memory.FromUint64(0)
}

// cellRefAddress returns register + offset
func (vm *VMState) cellRefAddress(c hints.CellRef) (memory.Relocatable, error) {
	base := vm.Context.AP()
	if c.Register == hints.FP {
		base = vm.Context.FP()
	}
	return base.AddInt(int64(c.Offset))
}

func (vm *VMState) writeCell(c hints.CellRef, v memory.MaybeRelocatable) error {
	addr, err := vm.cellRefAddress(c)
	if err != nil {
		return err
	}
	return vm.Memory.AssertEq(addr, v)
}

func (vm *VMState) readCell(c hints.CellRef) (memory.MaybeRelocatable, error) {
	addr, err := vm.cellRefAddress(c)
	if err != nil {
		return memory.MaybeRelocatable{}, err
	}
	return vm.Memory.Get(addr)
}

// resolveResOperand evaluates a hint operand against memory
func (vm *VMState) resolveResOperand(op hints.ResOperand) (memory.MaybeRelocatable, error) {
	switch op := op.(type) {
	case hints.Deref:
		return vm.readCell(op.Cell)

	case hints.DoubleDeref:
		v, err := vm.readCell(op.Cell)
		if err != nil {
			return memory.MaybeRelocatable{}, err
		}
		ptr, err := v.Relocatable()
		if err != nil {
			return memory.MaybeRelocatable{}, err
		}
		addr, err := ptr.AddInt(int64(op.Offset))
		if err != nil {
			return memory.MaybeRelocatable{}, err
		}
		return vm.Memory.Get(addr)

	case hints.Immediate:
		return memory.FromFelt(op.Value), nil

	case hints.BinOp:
		a, err := vm.readCell(op.A)
		if err != nil {
			return memory.MaybeRelocatable{}, err
		}
		b, err := vm.resolveResOperand(op.B)
		if err != nil {
			return memory.MaybeRelocatable{}, err
		}
		if op.Op == hints.OpMul {
			return a.Mul(b)
		}
		return a.Add(b)
	}
	return memory.MaybeRelocatable{}, fmt.Errorf("unsupported operand %T", op)
}

func (vm *VMState) resolveFelt(op hints.ResOperand) (core.Felt, error) {
	v, err := vm.resolveResOperand(op)
	if err != nil {
		return core.Felt{}, err
	}
	return v.Felt()
}

func (vm *VMState) getPointer(op hints.ResOperand) (memory.Relocatable, error) {
	v, err := vm.resolveResOperand(op)
	if err != nil {
		return memory.Relocatable{}, err
	}
	return v.Relocatable()
}

func (vm *VMState) squashState() (*SquashState, error) {
	if vm.Squash == nil {
		return nil, ErrSquashNotInitialized
	}
	return vm.Squash, nil
}

// allocFelt252Dict reads the segment arena at ptr: [ptr-3] holds the dict
// infos base and [ptr-2] the number of dicts allocated so far. The new
// dictionary base goes to infos + 3n.
func (vm *VMState) allocFelt252Dict(h hints.AllocFelt252Dict) error {
	arena, err := vm.getPointer(h.SegmentArenaPtr)
	if err != nil {
		return err
	}
	nAddr, err := arena.SubUint(2)
	if err != nil {
		return err
	}
	nFelt, err := vm.Memory.GetFelt(nAddr)
	if err != nil {
		return err
	}
	n, err := nFelt.ToUint32()
	if err != nil {
		return fmt.Errorf("invalid dict count %s: %w", nFelt, err)
	}
	infosAddr, err := arena.SubUint(3)
	if err != nil {
		return err
	}
	infos, err := vm.Memory.GetRelocatable(infosAddr)
	if err != nil {
		return err
	}

	base := vm.Memory.AllocateSegment()
	d := vm.Dicts.NewDictionary(base)
	vm.logger.Debug("dictionary allocated", "id", d.ID, "base", base.String())

	slot, err := infos.AddUint(dictAccessSize * n)
	if err != nil {
		return err
	}
	return vm.Memory.AssertEq(slot, memory.FromRelocatable(base))
}

func (vm *VMState) getSegmentArenaIndex(h hints.GetSegmentArenaIndex) error {
	end, err := vm.getPointer(h.DictEndPtr)
	if err != nil {
		return err
	}
	d, err := vm.Dicts.Get(end)
	if err != nil {
		return err
	}
	addr, err := vm.cellRefAddress(h.DictIndex)
	if err != nil {
		return err
	}
	if err := vm.Memory.AssertEq(addr, memory.FromUint64(uint64(d.ID))); err != nil {
		return fmt.Errorf("%w: %w", ErrDictIndexMismatch, err)
	}
	return nil
}

// felt252DictEntryInit writes the previous value of key at dictPtr + 1, unset keys read as 0
func (vm *VMState) felt252DictEntryInit(h hints.Felt252DictEntryInit) error {
	ptr, err := vm.getPointer(h.DictPtr)
	if err != nil {
		return err
	}
	key, err := vm.resolveFelt(h.Key)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDictKey, err)
	}
	d, err := vm.Dicts.Get(ptr)
	if err != nil {
		return err
	}
	d.RecordAccess(key, ptr.Offset)

	prev, ok := d.Get(key)
	if !ok {
		prev = memory.FromUint64(0)
	}
	d.Set(key, prev)

	prevAddr, err := ptr.AddUint(1)
	if err != nil {
		return err
	}
	return vm.Memory.AssertEq(prevAddr, prev)
}

// felt252DictEntryUpdate sets the key of the access just written at dictPtr - 3
func (vm *VMState) felt252DictEntryUpdate(h hints.Felt252DictEntryUpdate) error {
	ptr, err := vm.getPointer(h.DictPtr)
	if err != nil {
		return err
	}
	keyAddr, err := ptr.SubUint(dictAccessSize)
	if err != nil {
		return err
	}
	key, err := vm.Memory.GetFelt(keyAddr)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDictKey, err)
	}
	value, err := vm.resolveResOperand(h.Value)
	if err != nil {
		return err
	}
	d, err := vm.Dicts.Get(ptr)
	if err != nil {
		return err
	}
	d.Set(key, value)
	return nil
}

// initSquashData indexes the access log by key and drops the squashed dictionary
func (vm *VMState) initSquashData(h hints.InitSquashData) error {
	accessesPtr, err := vm.getPointer(h.DictAccesses)
	if err != nil {
		return err
	}
	ptrDiff, err := vm.resolveFelt(h.PtrDiff)
	if err != nil {
		return err
	}
	diff, err := ptrDiff.ToUint64()
	if err != nil || diff%dictAccessSize != 0 {
		return fmt.Errorf("%w: %s", ErrPtrDiffNotDivisible, ptrDiff)
	}
	nFelt, err := vm.resolveFelt(h.NAccesses)
	if err != nil {
		return err
	}
	n, err := nFelt.ToUint32()
	if err != nil {
		return fmt.Errorf("invalid access count %s: %w", nFelt, err)
	}

	accesses := make(map[core.Felt][]uint64)
	keys := make([]core.Felt, 0, n)
	for i := uint32(0); i < n; i++ {
		keyAddr, err := accessesPtr.AddUint(dictAccessSize * i)
		if err != nil {
			return err
		}
		key, err := vm.Memory.GetFelt(keyAddr)
		if err != nil {
			return fmt.Errorf("%w: access %d: %w", ErrInvalidDictKey, i, err)
		}
		accesses[key] = append(accesses[key], uint64(i))
		keys = append(keys, key)
	}

	// a log written through the dictionary hints must match what they recorded
	if d, err := vm.Dicts.Get(accessesPtr); err == nil {
		if err := d.VerifyAccessLog(accessesPtr.Offset, keys); err != nil {
			return err
		}
	}

	squash := NewSquashState(accesses)
	vm.Squash = squash

	bigKeys := false
	if largest, ok := squash.LargestKey(); ok {
		bigKeys = !largest.Uint256().Lt(twoPow128)
	}
	if err := vm.writeCell(h.BigKeys, boolCell(bigKeys)); err != nil {
		return err
	}

	firstKey, err := squash.CurrentKey()
	if err != nil {
		return err
	}
	if err := vm.writeCell(h.FirstKey, memory.FromFelt(firstKey)); err != nil {
		return err
	}

	vm.Dicts.Remove(accessesPtr)
	return nil
}

type arc struct {
	length core.Felt
	index  int
}

// assertLeFindSmallArcs splits the field circle at a and b into three arcs,
// excludes the longest one and range checks the other two in 4 limbs
func (vm *VMState) assertLeFindSmallArcs(h hints.AssertLeFindSmallArcs) error {
	a, err := vm.resolveFelt(h.A)
	if err != nil {
		return err
	}
	b, err := vm.resolveFelt(h.B)
	if err != nil {
		return err
	}
	rc, err := vm.getPointer(h.RangeCheckPtr)
	if err != nil {
		return err
	}

	arcs := []arc{
		{length: a, index: 0},
		{length: b.Sub(a), index: 1},
		{length: core.FeltFromInt64(-1).Sub(b), index: 2},
	}
	slices.SortFunc(arcs, func(x, y arc) int {
		if c := x.length.Cmp(y.length); c != 0 {
			return c
		}
		return x.index - y.index
	})
	vm.excludedArc = arcs[2].index
	vm.hasExcluded = true

	var q, r uint256.Int
	limbs := make([]memory.MaybeRelocatable, 0, 4)
	q.DivMod(arcs[0].length.Uint256(), primeOver3High, &r)
	limbs = append(limbs, memory.FromFelt(core.FeltFromUint256(&r)), memory.FromFelt(core.FeltFromUint256(&q)))
	q.DivMod(arcs[1].length.Uint256(), primeOver2High, &r)
	limbs = append(limbs, memory.FromFelt(core.FeltFromUint256(&r)), memory.FromFelt(core.FeltFromUint256(&q)))

	for i, v := range limbs {
		addr, err := rc.AddUint(uint32(i))
		if err != nil {
			return err
		}
		if err := vm.Memory.AssertEq(addr, v); err != nil {
			return err
		}
	}
	return nil
}
