package builtins

import (
	"fmt"
	"math/big"

	"github.com/vybium/vybium-cairo-vm/internal/vybium-cairo-vm/core"
	"github.com/vybium/vybium-cairo-vm/internal/vybium-cairo-vm/memory"
)

// ECOpScalarHeight is the number of ladder iterations, enough for any scalar below P
const ECOpScalarHeight = 256

const (
	ecOpCells      = 7
	ecOpInputCells = 5
	ecOpOutputX    = 5
	ecOpOutputY    = 6
)

// ECOp computes R = P + m*Q
//
// Instance layout: P.x, P.y, Q.x, Q.y, m, R.x, R.y. R is deduced once the five
// inputs are written.
type ECOp struct {
	segment
}

// NewECOp creates an ec_op builtin
func NewECOp() *ECOp {
	return &ECOp{}
}

func (e *ECOp) Name() string { return ECOpName }

func (e *ECOp) CellsPerInstance() uint32 { return ecOpCells }

func (e *ECOp) InitSegment(mem *memory.Memory) memory.Relocatable {
	e.base = mem.AllocateSegment()
	mem.AddDeductionRule(e.base.SegmentIndex, e.Deduce)
	return e.base
}

// Deduce computes the output cell at addr, ok is false while inputs are missing
func (e *ECOp) Deduce(mem *memory.Memory, addr memory.Relocatable) (memory.MaybeRelocatable, bool, error) {
	index := addr.Offset % ecOpCells
	if index != ecOpOutputX && index != ecOpOutputY {
		return memory.MaybeRelocatable{}, false, nil
	}

	base := instanceBase(addr, ecOpCells)
	var inputs [ecOpInputCells]core.Felt
	for i := range inputs {
		v, ok := mem.TryGet(memory.NewRelocatable(base.SegmentIndex, base.Offset+uint32(i)))
		if !ok {
			return memory.MaybeRelocatable{}, false, nil
		}
		f, isFelt := v.GetFelt()
		if !isFelt {
			return memory.MaybeRelocatable{}, false, fmt.Errorf("%w: %s at offset %d", ErrECOpNotFelt, v, base.Offset+uint32(i))
		}
		inputs[i] = f
	}

	p := Point{X: inputs[0], Y: inputs[1]}
	q := Point{X: inputs[2], Y: inputs[3]}
	for _, pt := range []Point{p, q} {
		if !pt.IsOnCurve() {
			return memory.MaybeRelocatable{}, false, fmt.Errorf("%w: %s", ErrPointNotOnCurve, pt)
		}
	}

	r, err := ECOpImpl(p, q, inputs[4], ECOpScalarHeight)
	if err != nil {
		return memory.MaybeRelocatable{}, false, err
	}
	if index == ecOpOutputX {
		return memory.FromFelt(r.X), true, nil
	}
	return memory.FromFelt(r.Y), true, nil
}

// ECOpImpl returns p + m*q with a double-and-add ladder of the given height
//
// The ladder fails if the running sum and the doubled point ever share an x
// coordinate, since the affine addition is undefined there.
func ECOpImpl(p, q Point, m core.Felt, height int) (Point, error) {
	partial := p
	doubled := q
	scalar := new(big.Int).Set(m.BigInt())
	fail := &LadderFailedError{P: p, Q: q, M: m}

	for i := 0; i < height; i++ {
		if doubled.X.Equal(partial.X) {
			return Point{}, fail
		}
		if scalar.Bit(0) == 1 {
			sum, err := ecAdd(partial, doubled)
			if err != nil {
				return Point{}, fail
			}
			partial = sum
		}
		next, err := ecDouble(doubled, Alpha)
		if err != nil {
			return Point{}, fail
		}
		doubled = next
		scalar.Rsh(scalar, 1)
	}
	if scalar.Sign() != 0 {
		return Point{}, fail
	}
	return partial, nil
}
