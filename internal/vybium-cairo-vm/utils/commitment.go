package utils

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/hash"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/merkle"
)

// ErrEmptyTrace is returned when committing to a trace without any step
var ErrEmptyTrace = errors.New("cannot commit to an empty trace")

// TraceCommitment is a Merkle commitment to a relocated register trace
//
// Every (pc, ap, fp) row is hashed into a leaf; the leaves are padded with
// zero digests up to a power of two, and at least two leaves.
type TraceCommitment struct {
	Root   hash.Digest
	Steps  int
	Leaves int
	Depth  int
}

// CommitTrace builds the Merkle commitment of a trace given as (pc, ap, fp) rows
func CommitTrace(rows [][3]uint64) (*TraceCommitment, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyTrace
	}

	n := max(NextPowerOfTwo(len(rows)), 2)
	leaves := make([]hash.Digest, n)
	for i, row := range rows {
		leaves[i] = hash.HashVarlen([]field.Element{
			field.New(row[0]),
			field.New(row[1]),
			field.New(row[2]),
		})
	}

	tree, err := merkle.New(leaves)
	if err != nil {
		return nil, fmt.Errorf("failed to create Merkle tree: %w", err)
	}

	return &TraceCommitment{
		Root:   tree.Root(),
		Steps:  len(rows),
		Leaves: n,
		Depth:  Log2(n),
	}, nil
}

// RootBytes returns the root with every element as 8 little-endian bytes
func (c *TraceCommitment) RootBytes() []byte {
	out := make([]byte, len(c.Root)*8)
	for i, elem := range c.Root {
		val := elem.Value()
		for j := 0; j < 8; j++ {
			out[i*8+j] = byte(val >> (j * 8))
		}
	}
	return out
}

// Hex returns the root as a hex string
func (c *TraceCommitment) Hex() string {
	return hex.EncodeToString(c.RootBytes())
}
