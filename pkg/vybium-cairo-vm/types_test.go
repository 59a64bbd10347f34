package vybiumcairovm

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vybium/vybium-cairo-vm/internal/vybium-cairo-vm/core"
	"github.com/vybium/vybium-cairo-vm/internal/vybium-cairo-vm/hints"
)

func TestParseProgram(t *testing.T) {
	p, err := ParseProgram([]byte(`{
		"data": ["0x208b7fff7fff7ffe", "42", 7, "-1"],
		"builtins": ["range_check", "ecdsa"],
		"entrypoint": 0
	}`))
	require.NoError(t, err)

	require.Len(t, p.Data, 4)
	assert.Equal(t, core.FeltFromUint64(0x208b7fff7fff7ffe), p.Data[0])
	assert.Equal(t, core.FeltFromUint64(42), p.Data[1])
	assert.Equal(t, core.FeltFromUint64(7), p.Data[2])
	assert.Equal(t, core.FeltFromInt64(-1), p.Data[3])
	assert.Equal(t, []string{"range_check", "ecdsa"}, p.Builtins)
	assert.Empty(t, p.Hints)
}

func TestParseProgramHints(t *testing.T) {
	p, err := ParseProgram([]byte(`{
		"data": ["0x208b7fff7fff7ffe"],
		"hints": [
			[0, [{"AllocSegment": {"dst": {"register": "AP", "offset": 0}}}]],
			[0, [{"Core": {"AllocSegment": {"dst": {"register": "FP", "offset": -3}}}}]]
		]
	}`))
	require.NoError(t, err)

	assert.Equal(t, []Hint{
		hints.AllocSegment{Dst: hints.CellRef{Register: hints.AP, Offset: 0}},
		hints.AllocSegment{Dst: hints.CellRef{Register: hints.FP, Offset: -3}},
	}, p.Hints[0])
}

func TestParseProgramErrors(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"not JSON", `{`},
		{"bad word", `{"data": ["0xzz"]}`},
		{"bad word type", `{"data": [true]}`},
		{"bad hint table", `{"data": ["1"], "hints": [[0]]}`},
		{"unknown hint", `{"data": ["1"], "hints": [[0, [{"Print": {}}]]]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseProgram([]byte(tt.json))
			requireCode(t, err, ErrInvalidInput)
		})
	}
}

func TestDefaultVMConfig(t *testing.T) {
	c := DefaultVMConfig()
	assert.Equal(t, uint(128), c.RangeCheckBoundExponent)
	assert.Equal(t, "sha3", c.HashFunction)
	assert.True(t, c.TraceEnabled)
	assert.Zero(t, c.MaxSteps)
	assert.Nil(t, c.Logger)
}

func TestWriteTrace(t *testing.T) {
	r := &ExecutionResult{Trace: []TraceEntry{{PC: 1, AP: 8, FP: 8}, {PC: 3, AP: 9, FP: 8}}}

	var buf bytes.Buffer
	require.NoError(t, r.WriteTrace(&buf))

	out := buf.Bytes()
	require.Len(t, out, 48)
	assert.Equal(t, uint64(8), binary.LittleEndian.Uint64(out[0:]))
	assert.Equal(t, uint64(8), binary.LittleEndian.Uint64(out[8:]))
	assert.Equal(t, uint64(1), binary.LittleEndian.Uint64(out[16:]))
	assert.Equal(t, uint64(9), binary.LittleEndian.Uint64(out[24:]))
	assert.Equal(t, uint64(3), binary.LittleEndian.Uint64(out[40:]))
}

func TestWriteMemory(t *testing.T) {
	five := core.FeltFromUint64(5)
	minusOne := core.FeltFromInt64(-1)
	r := &ExecutionResult{Memory: []*Felt{nil, &five, nil, &minusOne}}

	var buf bytes.Buffer
	require.NoError(t, r.WriteMemory(&buf))

	out := buf.Bytes()
	require.Len(t, out, 80)
	assert.Equal(t, uint64(1), binary.LittleEndian.Uint64(out[0:]))
	assert.Equal(t, byte(5), out[8])
	assert.Equal(t, make([]byte, 31), out[9:40])

	assert.Equal(t, uint64(3), binary.LittleEndian.Uint64(out[40:]))
	be := minusOne.Bytes()
	assert.Equal(t, be[31], out[48])
	assert.Equal(t, be[0], out[79])
}
