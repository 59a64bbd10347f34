package hints

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vybium/vybium-cairo-vm/internal/vybium-cairo-vm/core"
)

var (
	ErrInvalidHintTable = errors.New("invalid hint table")
	ErrInvalidHint      = errors.New("invalid hint")
	ErrUnknownHint      = errors.New("unknown hint")
	ErrInvalidOperand   = errors.New("invalid hint operand")
)

// ParseTable parses a compiled hint table: [[pc, [hint, ...]], ...]
//
// Hints keep their declaration order. A pc listed more than once gets the
// hints of every group, in order.
func ParseTable(data []byte) (Table, error) {
	var groups []json.RawMessage
	if err := json.Unmarshal(data, &groups); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHintTable, err)
	}

	table := make(Table, len(groups))
	for i, raw := range groups {
		var group []json.RawMessage
		if err := json.Unmarshal(raw, &group); err != nil || len(group) != 2 {
			return nil, fmt.Errorf("%w: group %d must be a [pc, hints] pair", ErrInvalidHintTable, i)
		}
		var pc uint32
		if err := json.Unmarshal(group[0], &pc); err != nil {
			return nil, fmt.Errorf("%w: group %d: pc: %v", ErrInvalidHintTable, i, err)
		}
		var rawHints []json.RawMessage
		if err := json.Unmarshal(group[1], &rawHints); err != nil {
			return nil, fmt.Errorf("%w: group %d: hints: %v", ErrInvalidHintTable, i, err)
		}
		for j, rh := range rawHints {
			h, err := ParseHint(rh)
			if err != nil {
				return nil, fmt.Errorf("group %d, hint %d: %w", i, j, err)
			}
			table[pc] = append(table[pc], h)
		}
	}
	return table, nil
}

// ParseHint parses a single hint object such as {"AllocSegment": {"dst": ...}}
//
// A {"Core": ...} wrapper, as emitted by the compiler, is accepted.
func ParseHint(data []byte) (Hint, error) {
	name, payload, err := singleKey(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHint, err)
	}
	if name == "Core" {
		return ParseHint(payload)
	}

	return decodeHint(name, payload)
}

func decodeHint(name string, payload json.RawMessage) (Hint, error) {
	switch name {
	case "AllocSegment":
		var p struct {
			Dst *CellRef `json:"dst"`
		}
		if err := decodePayload(name, payload, &p); err != nil {
			return nil, err
		}
		if err := requireCells(name, p.Dst); err != nil {
			return nil, err
		}
		return AllocSegment{Dst: *p.Dst}, nil

	case "TestLessThan":
		var p struct {
			Lhs resOperandJSON `json:"lhs"`
			Rhs resOperandJSON `json:"rhs"`
			Dst *CellRef       `json:"dst"`
		}
		if err := decodePayload(name, payload, &p); err != nil {
			return nil, err
		}
		if err := requireOperands(name, p.Lhs, p.Rhs); err != nil {
			return nil, err
		}
		if err := requireCells(name, p.Dst); err != nil {
			return nil, err
		}
		return TestLessThan{Lhs: p.Lhs.ResOperand, Rhs: p.Rhs.ResOperand, Dst: *p.Dst}, nil

	case "AllocFelt252Dict":
		var p struct {
			SegmentArenaPtr resOperandJSON `json:"segment_arena_ptr"`
		}
		if err := decodePayload(name, payload, &p); err != nil {
			return nil, err
		}
		if err := requireOperands(name, p.SegmentArenaPtr); err != nil {
			return nil, err
		}
		return AllocFelt252Dict{SegmentArenaPtr: p.SegmentArenaPtr.ResOperand}, nil

	case "GetSegmentArenaIndex":
		var p struct {
			DictEndPtr resOperandJSON `json:"dict_end_ptr"`
			DictIndex  *CellRef       `json:"dict_index"`
		}
		if err := decodePayload(name, payload, &p); err != nil {
			return nil, err
		}
		if err := requireOperands(name, p.DictEndPtr); err != nil {
			return nil, err
		}
		if err := requireCells(name, p.DictIndex); err != nil {
			return nil, err
		}
		return GetSegmentArenaIndex{DictEndPtr: p.DictEndPtr.ResOperand, DictIndex: *p.DictIndex}, nil

	case "Felt252DictEntryInit":
		var p struct {
			DictPtr resOperandJSON `json:"dict_ptr"`
			Key     resOperandJSON `json:"key"`
		}
		if err := decodePayload(name, payload, &p); err != nil {
			return nil, err
		}
		if err := requireOperands(name, p.DictPtr, p.Key); err != nil {
			return nil, err
		}
		return Felt252DictEntryInit{DictPtr: p.DictPtr.ResOperand, Key: p.Key.ResOperand}, nil

	case "Felt252DictEntryUpdate":
		var p struct {
			DictPtr resOperandJSON `json:"dict_ptr"`
			Value   resOperandJSON `json:"value"`
		}
		if err := decodePayload(name, payload, &p); err != nil {
			return nil, err
		}
		if err := requireOperands(name, p.DictPtr, p.Value); err != nil {
			return nil, err
		}
		return Felt252DictEntryUpdate{DictPtr: p.DictPtr.ResOperand, Value: p.Value.ResOperand}, nil

	case "InitSquashData":
		var p struct {
			DictAccesses resOperandJSON `json:"dict_accesses"`
			PtrDiff      resOperandJSON `json:"ptr_diff"`
			NAccesses    resOperandJSON `json:"n_accesses"`
			BigKeys      *CellRef       `json:"big_keys"`
			FirstKey     *CellRef       `json:"first_key"`
		}
		if err := decodePayload(name, payload, &p); err != nil {
			return nil, err
		}
		if err := requireOperands(name, p.DictAccesses, p.PtrDiff, p.NAccesses); err != nil {
			return nil, err
		}
		if err := requireCells(name, p.BigKeys, p.FirstKey); err != nil {
			return nil, err
		}
		return InitSquashData{
			DictAccesses: p.DictAccesses.ResOperand,
			PtrDiff:      p.PtrDiff.ResOperand,
			NAccesses:    p.NAccesses.ResOperand,
			BigKeys:      *p.BigKeys,
			FirstKey:     *p.FirstKey,
		}, nil

	case "GetCurrentAccessIndex":
		var p struct {
			RangeCheckPtr resOperandJSON `json:"range_check_ptr"`
		}
		if err := decodePayload(name, payload, &p); err != nil {
			return nil, err
		}
		if err := requireOperands(name, p.RangeCheckPtr); err != nil {
			return nil, err
		}
		return GetCurrentAccessIndex{RangeCheckPtr: p.RangeCheckPtr.ResOperand}, nil

	case "ShouldSkipSquashLoop":
		cell, err := decodeSingleCell(name, payload, "should_skip_loop")
		if err != nil {
			return nil, err
		}
		return ShouldSkipSquashLoop{ShouldSkipLoop: cell}, nil

	case "GetCurrentAccessDelta":
		cell, err := decodeSingleCell(name, payload, "index_delta_minus1")
		if err != nil {
			return nil, err
		}
		return GetCurrentAccessDelta{IndexDeltaMinus1: cell}, nil

	case "ShouldContinueSquashLoop":
		cell, err := decodeSingleCell(name, payload, "should_continue")
		if err != nil {
			return nil, err
		}
		return ShouldContinueSquashLoop{ShouldContinue: cell}, nil

	case "GetNextDictKey":
		cell, err := decodeSingleCell(name, payload, "next_key")
		if err != nil {
			return nil, err
		}
		return GetNextDictKey{NextKey: cell}, nil

	case "AssertLeFindSmallArcs":
		var p struct {
			RangeCheckPtr resOperandJSON `json:"range_check_ptr"`
			A             resOperandJSON `json:"a"`
			B             resOperandJSON `json:"b"`
		}
		if err := decodePayload(name, payload, &p); err != nil {
			return nil, err
		}
		if err := requireOperands(name, p.RangeCheckPtr, p.A, p.B); err != nil {
			return nil, err
		}
		return AssertLeFindSmallArcs{RangeCheckPtr: p.RangeCheckPtr.ResOperand, A: p.A.ResOperand, B: p.B.ResOperand}, nil

	case "AssertLeIsFirstArcExcluded":
		cell, err := decodeSingleCell(name, payload, "skip_exclude_a_flag")
		if err != nil {
			return nil, err
		}
		return AssertLeIsFirstArcExcluded{SkipExcludeAFlag: cell}, nil

	case "AssertLeIsSecondArcExcluded":
		cell, err := decodeSingleCell(name, payload, "skip_exclude_b_minus_a")
		if err != nil {
			return nil, err
		}
		return AssertLeIsSecondArcExcluded{SkipExcludeBMinusA: cell}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownHint, name)
}

func decodePayload(name string, payload json.RawMessage, v any) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidHint, name, err)
	}
	return nil
}

func decodeSingleCell(name string, payload json.RawMessage, field string) (CellRef, error) {
	var p map[string]*CellRef
	if err := decodePayload(name, payload, &p); err != nil {
		return CellRef{}, err
	}
	cell, ok := p[field]
	if !ok || cell == nil {
		return CellRef{}, fmt.Errorf("%w: %s: missing %q", ErrInvalidHint, name, field)
	}
	return *cell, nil
}

func requireCells(name string, cells ...*CellRef) error {
	for _, c := range cells {
		if c == nil {
			return fmt.Errorf("%w: %s: missing cell reference", ErrInvalidHint, name)
		}
	}
	return nil
}

func requireOperands(name string, ops ...resOperandJSON) error {
	for _, op := range ops {
		if op.ResOperand == nil {
			return fmt.Errorf("%w: %s: missing operand", ErrInvalidHint, name)
		}
	}
	return nil
}

// singleKey splits an externally tagged enum value {"Variant": payload}
func singleKey(data []byte) (string, json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return "", nil, err
	}
	if len(obj) != 1 {
		return "", nil, fmt.Errorf("expected a single variant, got %d keys", len(obj))
	}
	for k, v := range obj {
		return k, v, nil
	}
	return "", nil, nil
}

// UnmarshalJSON decodes {"register": "AP"|"FP", "offset": n}
func (c *CellRef) UnmarshalJSON(data []byte) error {
	var raw struct {
		Register string `json:"register"`
		Offset   *int16 `json:"offset"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: cell reference: %v", ErrInvalidOperand, err)
	}
	switch raw.Register {
	case "AP":
		c.Register = AP
	case "FP":
		c.Register = FP
	default:
		return fmt.Errorf("%w: unknown register %q", ErrInvalidOperand, raw.Register)
	}
	if raw.Offset == nil {
		return fmt.Errorf("%w: cell reference without offset", ErrInvalidOperand)
	}
	c.Offset = *raw.Offset
	return nil
}

// MarshalJSON encodes the cell reference the way UnmarshalJSON reads it
func (c CellRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Register string `json:"register"`
		Offset   int16  `json:"offset"`
	}{c.Register.String(), c.Offset})
}

type resOperandJSON struct {
	ResOperand
}

func (r *resOperandJSON) UnmarshalJSON(data []byte) error {
	op, err := parseResOperand(data)
	if err != nil {
		return err
	}
	r.ResOperand = op
	return nil
}

func parseResOperand(data []byte) (ResOperand, error) {
	name, payload, err := singleKey(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOperand, err)
	}

	switch name {
	case "Deref":
		var cell CellRef
		if err := json.Unmarshal(payload, &cell); err != nil {
			return nil, err
		}
		return Deref{Cell: cell}, nil

	case "DoubleDeref":
		var pair []json.RawMessage
		if err := json.Unmarshal(payload, &pair); err != nil || len(pair) != 2 {
			return nil, fmt.Errorf("%w: DoubleDeref must be a [cell, offset] pair", ErrInvalidOperand)
		}
		var cell CellRef
		if err := json.Unmarshal(pair[0], &cell); err != nil {
			return nil, err
		}
		var offset int16
		if err := json.Unmarshal(pair[1], &offset); err != nil {
			return nil, fmt.Errorf("%w: DoubleDeref offset: %v", ErrInvalidOperand, err)
		}
		return DoubleDeref{Cell: cell, Offset: offset}, nil

	case "Immediate":
		value, err := parseImmediate(payload)
		if err != nil {
			return nil, err
		}
		return Immediate{Value: value}, nil

	case "BinOp":
		var raw struct {
			Op string          `json:"op"`
			A  *CellRef        `json:"a"`
			B  json.RawMessage `json:"b"`
		}
		if err := json.Unmarshal(payload, &raw); err != nil {
			return nil, fmt.Errorf("%w: BinOp: %v", ErrInvalidOperand, err)
		}
		var op Operation
		switch raw.Op {
		case "Add":
			op = OpAdd
		case "Mul":
			op = OpMul
		default:
			return nil, fmt.Errorf("%w: unknown BinOp operator %q", ErrInvalidOperand, raw.Op)
		}
		if raw.A == nil || len(raw.B) == 0 {
			return nil, fmt.Errorf("%w: BinOp needs both a and b", ErrInvalidOperand)
		}
		b, err := parseResOperand(raw.B)
		if err != nil {
			return nil, err
		}
		switch b.(type) {
		case Deref, Immediate:
		default:
			return nil, fmt.Errorf("%w: BinOp b must be a Deref or an Immediate", ErrInvalidOperand)
		}
		return BinOp{Op: op, A: *raw.A, B: b}, nil
	}

	return nil, fmt.Errorf("%w: unknown operand %q", ErrInvalidOperand, name)
}

// parseImmediate accepts a JSON number or a decimal/hex string
func parseImmediate(payload json.RawMessage) (core.Felt, error) {
	trimmed := bytes.TrimSpace(payload)
	s := string(trimmed)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return core.Felt{}, fmt.Errorf("%w: Immediate: %v", ErrInvalidOperand, err)
		}
	}
	f, err := core.FeltFromString(s)
	if err != nil {
		return core.Felt{}, fmt.Errorf("%w: Immediate: %v", ErrInvalidOperand, err)
	}
	return f, nil
}
