package vm

import (
	"fmt"

	"github.com/vybium/vybium-cairo-vm/internal/vybium-cairo-vm/memory"
)

// Operands holds the resolved operands of an instruction
type Operands struct {
	Dst memory.MaybeRelocatable
	Op0 memory.MaybeRelocatable
	Op1 memory.MaybeRelocatable

	// Res is nil when the result is unconstrained
	Res *memory.MaybeRelocatable

	DstAddr memory.Relocatable
	Op0Addr memory.Relocatable
	Op1Addr memory.Relocatable

	deducedDst bool
	deducedOp0 bool
	deducedOp1 bool
}

// ExecuteInstruction runs one decoded instruction against memory and registers
//
// Deduced operands are only written once the opcode assertions pass, and the
// registers are only updated after that.
func (vm *VMState) ExecuteInstruction(inst Instruction) error {
	ops, err := vm.ComputeOperands(inst)
	if err != nil {
		return err
	}
	if err := vm.checkOpcode(inst, ops); err != nil {
		return err
	}
	if err := vm.writeDeducedOperands(ops); err != nil {
		return err
	}
	return vm.updateRegisters(inst, ops)
}

// ComputeOperands resolves dst, op0, op1 and res, deducing the missing ones
func (vm *VMState) ComputeOperands(inst Instruction) (*Operands, error) {
	ops := &Operands{}
	var err error

	if ops.DstAddr, err = vm.Context.ComputeDstAddress(inst); err != nil {
		return nil, fmt.Errorf("failed to compute dst address: %w", err)
	}
	if ops.Op0Addr, err = vm.Context.ComputeOp0Address(inst); err != nil {
		return nil, fmt.Errorf("failed to compute op0 address: %w", err)
	}

	dst, dstOk := vm.Memory.TryGet(ops.DstAddr)
	op0, op0Ok := vm.Memory.TryGet(ops.Op0Addr)

	var op0Ref *memory.MaybeRelocatable
	if op0Ok {
		op0Ref = &op0
	}
	if ops.Op1Addr, err = vm.Context.ComputeOp1Address(inst.Op1Src, inst.OffOp1, op0Ref); err != nil {
		return nil, fmt.Errorf("failed to compute op1 address: %w", err)
	}
	op1, op1Ok := vm.Memory.TryGet(ops.Op1Addr)

	var dstRef, op1Ref *memory.MaybeRelocatable
	if dstOk {
		dstRef = &dst
	}
	if op1Ok {
		op1Ref = &op1
	}

	if !op0Ok {
		v, res, err := vm.deduceOp0(inst, ops.Op0Addr, dstRef, op1Ref)
		if err != nil {
			return nil, err
		}
		op0, ops.Res, ops.deducedOp0 = v, res, true
	}
	ops.Op0 = op0

	if !op1Ok {
		v, res, err := vm.deduceOp1(inst, ops.Op1Addr, dstRef, &op0)
		if err != nil {
			return nil, err
		}
		op1, ops.deducedOp1 = v, true
		if ops.Res == nil {
			ops.Res = res
		}
	}
	ops.Op1 = op1

	if ops.Res == nil {
		if ops.Res, err = computeRes(inst, op0, op1); err != nil {
			return nil, err
		}
	}

	if !dstOk {
		v, err := vm.deduceDst(inst, ops.DstAddr, ops.Res)
		if err != nil {
			return nil, err
		}
		dst, ops.deducedDst = v, true
	}
	ops.Dst = dst

	return ops, nil
}

// deduceOp0 asks the builtin of the op0 segment first, then the instruction equation
func (vm *VMState) deduceOp0(inst Instruction, addr memory.Relocatable, dst, op1 *memory.MaybeRelocatable) (memory.MaybeRelocatable, *memory.MaybeRelocatable, error) {
	if v, ok, err := vm.Memory.Deduce(addr); err != nil {
		return memory.MaybeRelocatable{}, nil, err
	} else if ok {
		return v, nil, nil
	}

	switch inst.Opcode {
	case OpcodeCall:
		returnPC, err := vm.Context.PC().AddUint(inst.Size())
		if err != nil {
			return memory.MaybeRelocatable{}, nil, err
		}
		return memory.FromRelocatable(returnPC), nil, nil

	case OpcodeAssertEq:
		if dst == nil || op1 == nil {
			break
		}
		switch inst.ResLogic {
		case ResAdd:
			v, err := dst.Sub(*op1)
			if err != nil {
				return memory.MaybeRelocatable{}, nil, err
			}
			res := *dst
			return v, &res, nil
		case ResMul:
			d, dOk := dst.GetFelt()
			o, oOk := op1.GetFelt()
			if dOk && oOk && !o.IsZero() {
				q, _ := d.Div(o)
				res := *dst
				return memory.FromFelt(q), &res, nil
			}
		}
	}
	return memory.MaybeRelocatable{}, nil, fmt.Errorf("failed to deduce op0: %w", &memory.UndefinedValueError{Address: addr})
}

// deduceOp1 asks the builtin of the op1 segment first, then the instruction equation
func (vm *VMState) deduceOp1(inst Instruction, addr memory.Relocatable, dst, op0 *memory.MaybeRelocatable) (memory.MaybeRelocatable, *memory.MaybeRelocatable, error) {
	if v, ok, err := vm.Memory.Deduce(addr); err != nil {
		return memory.MaybeRelocatable{}, nil, err
	} else if ok {
		return v, nil, nil
	}

	if inst.Opcode == OpcodeAssertEq && dst != nil {
		res := *dst
		switch inst.ResLogic {
		case ResOp1:
			return *dst, &res, nil
		case ResAdd:
			v, err := dst.Sub(*op0)
			if err != nil {
				return memory.MaybeRelocatable{}, nil, err
			}
			return v, &res, nil
		case ResMul:
			d, dOk := dst.GetFelt()
			o, oOk := op0.GetFelt()
			if dOk && oOk && !o.IsZero() {
				q, _ := d.Div(o)
				return memory.FromFelt(q), &res, nil
			}
		}
	}
	return memory.MaybeRelocatable{}, nil, fmt.Errorf("failed to deduce op1: %w", &memory.UndefinedValueError{Address: addr})
}

// deduceDst infers dst from res for assert_eq, and from fp for call
func (vm *VMState) deduceDst(inst Instruction, addr memory.Relocatable, res *memory.MaybeRelocatable) (memory.MaybeRelocatable, error) {
	switch inst.Opcode {
	case OpcodeAssertEq:
		if res != nil {
			return *res, nil
		}
	case OpcodeCall:
		return memory.FromRelocatable(vm.Context.FP()), nil
	}
	return memory.MaybeRelocatable{}, fmt.Errorf("failed to deduce dst: %w", &memory.UndefinedValueError{Address: addr})
}

// computeRes applies the result logic, nil means unconstrained
func computeRes(inst Instruction, op0, op1 memory.MaybeRelocatable) (*memory.MaybeRelocatable, error) {
	var res memory.MaybeRelocatable
	switch inst.ResLogic {
	case ResOp1:
		res = op1
	case ResAdd:
		sum, err := op0.Add(op1)
		if err != nil {
			return nil, fmt.Errorf("failed to compute res: %w", err)
		}
		res = sum
	case ResMul:
		a, aOk := op0.GetFelt()
		b, bOk := op1.GetFelt()
		if !aOk || !bOk {
			return nil, fmt.Errorf("%w: %s * %s", ErrMulRelocatable, op0, op1)
		}
		res = memory.FromFelt(a.Mul(b))
	case ResUnconstrained:
		return nil, nil
	}
	return &res, nil
}

func (vm *VMState) checkOpcode(inst Instruction, ops *Operands) error {
	switch inst.Opcode {
	case OpcodeAssertEq:
		if ops.Res == nil {
			return ErrResUndefined
		}
		if !ops.Dst.Equal(*ops.Res) {
			return fmt.Errorf("%w: dst=%s res=%s", ErrAssertEqFailed, ops.Dst, ops.Res)
		}
	case OpcodeCall:
		returnPC, err := vm.Context.PC().AddUint(inst.Size())
		if err != nil {
			return err
		}
		if !ops.Op0.Equal(memory.FromRelocatable(returnPC)) {
			return fmt.Errorf("%w: op0=%s, return pc=%s", ErrCallOp0Mismatch, ops.Op0, returnPC)
		}
		if !ops.Dst.Equal(memory.FromRelocatable(vm.Context.FP())) {
			return fmt.Errorf("%w: dst=%s, fp=%s", ErrCallDstMismatch, ops.Dst, vm.Context.FP())
		}
	}
	return nil
}

// writeDeducedOperands commits the deduced operands together, a rejected one leaves none of them written
func (vm *VMState) writeDeducedOperands(ops *Operands) error {
	writes := make([]memory.Assignment, 0, 3)
	if ops.deducedDst {
		writes = append(writes, memory.Assignment{Address: ops.DstAddr, Value: ops.Dst})
	}
	if ops.deducedOp0 {
		writes = append(writes, memory.Assignment{Address: ops.Op0Addr, Value: ops.Op0})
	}
	if ops.deducedOp1 {
		writes = append(writes, memory.Assignment{Address: ops.Op1Addr, Value: ops.Op1})
	}
	if len(writes) == 0 {
		return nil
	}
	if err := vm.Memory.AssertEqAll(writes); err != nil {
		return fmt.Errorf("failed to write deduced operands: %w", err)
	}
	return nil
}

// updateRegisters moves fp, then ap, then pc; each update reads the registers before the step
func (vm *VMState) updateRegisters(inst Instruction, ops *Operands) error {
	ap, fp := vm.Context.AP(), vm.Context.FP()

	newFP, err := vm.nextFP(inst, ops, ap, fp)
	if err != nil {
		return err
	}
	newAP, err := vm.nextAP(inst, ops, ap)
	if err != nil {
		return err
	}
	newPC, err := vm.nextPC(inst, ops)
	if err != nil {
		return err
	}

	if err := vm.Context.SetFP(newFP); err != nil {
		return err
	}
	if err := vm.Context.SetAP(newAP); err != nil {
		return err
	}
	return vm.Context.SetPC(newPC)
}

func (vm *VMState) nextFP(inst Instruction, ops *Operands, ap, fp memory.Relocatable) (memory.Relocatable, error) {
	switch inst.FpUpdate {
	case FpUpdateApPlus2:
		return ap.AddUint(2)
	case FpUpdateDst:
		if r, ok := ops.Dst.GetRelocatable(); ok {
			return r, nil
		}
		f, _ := ops.Dst.GetFelt()
		return fp.AddSignedFelt(f)
	}
	return fp, nil
}

func (vm *VMState) nextAP(inst Instruction, ops *Operands, ap memory.Relocatable) (memory.Relocatable, error) {
	switch inst.ApUpdate {
	case ApUpdateAdd:
		if ops.Res == nil {
			return memory.Relocatable{}, fmt.Errorf("ap update: %w", ErrResUndefined)
		}
		f, ok := ops.Res.GetFelt()
		if !ok {
			return memory.Relocatable{}, fmt.Errorf("%w: res=%s", ErrApUpdateRelocatable, ops.Res)
		}
		return ap.AddSignedFelt(f)
	case ApUpdateAdd1:
		return ap.AddUint(1)
	case ApUpdateAdd2:
		return ap.AddUint(2)
	}
	return ap, nil
}

func (vm *VMState) nextPC(inst Instruction, ops *Operands) (memory.Relocatable, error) {
	pc := vm.Context.PC()
	switch inst.PcUpdate {
	case PcUpdateJump:
		if ops.Res == nil {
			return memory.Relocatable{}, fmt.Errorf("jump: %w", ErrResUndefined)
		}
		r, ok := ops.Res.GetRelocatable()
		if !ok {
			return memory.Relocatable{}, fmt.Errorf("%w: res=%s", ErrJumpNotRelocatable, ops.Res)
		}
		return r, nil
	case PcUpdateJumpRel:
		if ops.Res == nil {
			return memory.Relocatable{}, fmt.Errorf("relative jump: %w", ErrResUndefined)
		}
		f, ok := ops.Res.GetFelt()
		if !ok {
			return memory.Relocatable{}, fmt.Errorf("%w: res=%s", ErrJumpRelNotFelt, ops.Res)
		}
		return pc.AddSignedFelt(f)
	case PcUpdateJnz:
		if ops.Dst.IsZero() {
			return pc.AddUint(inst.Size())
		}
		f, ok := ops.Op1.GetFelt()
		if !ok {
			return memory.Relocatable{}, fmt.Errorf("%w: op1=%s", ErrJnzRelocatableOp1, ops.Op1)
		}
		return pc.AddSignedFelt(f)
	}
	return pc.AddUint(inst.Size())
}
