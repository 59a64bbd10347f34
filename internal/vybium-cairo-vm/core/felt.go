package core

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/consensys/gnark-crypto/ecc/stark-curve/fp"
	"github.com/holiman/uint256"
)

// Felt represents an element of the STARK prime field, P = 2^251 + 17*2^192 + 1
//
// The zero value is the field element 0. Felt values are always held in
// canonical reduced form, so they can be compared with == and used as map keys.
type Felt struct {
	value fp.Element
}

var (
	// FeltZero is the additive identity
	FeltZero = FeltFromUint64(0)

	// FeltOne is the multiplicative identity
	FeltOne = FeltFromUint64(1)
)

// Modulus returns the field prime P
func Modulus() *big.Int {
	return fp.Modulus()
}

// FeltFromUint64 creates a new field element from a uint64
func FeltFromUint64(v uint64) Felt {
	var f Felt
	f.value.SetUint64(v)
	return f
}

// FeltFromInt64 creates a new field element from an int64, negative values wrap around P
func FeltFromInt64(v int64) Felt {
	var f Felt
	f.value.SetInt64(v)
	return f
}

// FeltFromBigInt creates a new field element from a big.Int, reducing it modulo P
func FeltFromBigInt(v *big.Int) Felt {
	reduced := new(big.Int).Mod(v, fp.Modulus())
	var f Felt
	f.value.SetBigInt(reduced)
	return f
}

// FeltFromUint256 creates a new field element from a 256-bit integer, reducing it modulo P
func FeltFromUint256(v *uint256.Int) Felt {
	b := v.Bytes32()
	var f Felt
	f.value.SetBytes(b[:])
	return f
}

// FeltFromElement wraps a gnark-crypto STARK field element
func FeltFromElement(e fp.Element) Felt {
	return Felt{value: e}
}

// FeltFromString parses a decimal or 0x-prefixed hexadecimal string, negative values wrap around P
func FeltFromString(s string) (Felt, error) {
	trimmed := strings.TrimSpace(s)
	v, ok := new(big.Int).SetString(trimmed, 0)
	if !ok {
		return Felt{}, fmt.Errorf("%w: %q", ErrInvalidFeltString, s)
	}
	return FeltFromBigInt(v), nil
}

// Add performs field addition
func (f Felt) Add(other Felt) Felt {
	var r Felt
	r.value.Add(&f.value, &other.value)
	return r
}

// Sub performs field subtraction
func (f Felt) Sub(other Felt) Felt {
	var r Felt
	r.value.Sub(&f.value, &other.value)
	return r
}

// Mul performs field multiplication
func (f Felt) Mul(other Felt) Felt {
	var r Felt
	r.value.Mul(&f.value, &other.value)
	return r
}

// Neg returns the additive inverse of the field element
func (f Felt) Neg() Felt {
	var r Felt
	r.value.Neg(&f.value)
	return r
}

// Square returns f * f
func (f Felt) Square() Felt {
	var r Felt
	r.value.Square(&f.value)
	return r
}

// Sqrt returns a square root of f, ok is false if f is not a quadratic residue
func (f Felt) Sqrt() (Felt, bool) {
	var r Felt
	if r.value.Sqrt(&f.value) == nil {
		return Felt{}, false
	}
	return r, true
}

// Inv returns the multiplicative inverse
func (f Felt) Inv() (Felt, error) {
	if f.IsZero() {
		return Felt{}, ErrDivisionByZero
	}
	var r Felt
	r.value.Inverse(&f.value)
	return r, nil
}

// Div performs field division
func (f Felt) Div(other Felt) (Felt, error) {
	inv, err := other.Inv()
	if err != nil {
		return Felt{}, err
	}
	return f.Mul(inv), nil
}

// Cmp compares the canonical integer representatives of f and other
func (f Felt) Cmp(other Felt) int {
	return f.value.Cmp(&other.value)
}

// Equal reports whether f and other are the same field element
func (f Felt) Equal(other Felt) bool {
	return f.value.Equal(&other.value)
}

// IsZero reports whether f is 0
func (f Felt) IsZero() bool {
	return f.value.IsZero()
}

// BigInt returns the canonical integer representative in [0, P)
func (f Felt) BigInt() *big.Int {
	return f.value.BigInt(new(big.Int))
}

// Uint256 returns the canonical integer representative as a 256-bit integer
func (f Felt) Uint256() *uint256.Int {
	b := f.value.Bytes()
	return new(uint256.Int).SetBytes32(b[:])
}

// BitLen returns the bit length of the canonical integer representative
func (f Felt) BitLen() int {
	return f.Uint256().BitLen()
}

// Bytes returns the 32-byte big-endian encoding of the canonical representative
func (f Felt) Bytes() [32]byte {
	return f.value.Bytes()
}

// Element returns the underlying gnark-crypto field element
func (f Felt) Element() fp.Element {
	return f.value
}

// ToUint64 converts the field element to a uint64
func (f Felt) ToUint64() (uint64, error) {
	if !f.value.IsUint64() {
		return 0, fmt.Errorf("%w: %s does not fit in 64 bits", ErrValueOutOfRange, f.Hex())
	}
	return f.value.Uint64(), nil
}

// ToUint32 converts the field element to a uint32
func (f Felt) ToUint32() (uint32, error) {
	v, err := f.ToUint64()
	if err != nil || v > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %s does not fit in 32 bits", ErrValueOutOfRange, f.Hex())
	}
	return uint32(v), nil
}

// String returns the decimal representation
func (f Felt) String() string {
	return f.value.Text(10)
}

// Hex returns the 0x-prefixed hexadecimal representation
func (f Felt) Hex() string {
	return "0x" + f.value.Text(16)
}
