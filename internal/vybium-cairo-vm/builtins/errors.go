package builtins

import (
	"errors"
	"fmt"

	"github.com/vybium/vybium-cairo-vm/internal/vybium-cairo-vm/core"
)

var (
	ErrUnknownBuiltin         = errors.New("unknown builtin")
	ErrRangeCheckNotFelt      = errors.New("range check: value is not a field element")
	ErrRangeCheckOutOfBounds  = errors.New("range check: value out of bounds")
	ErrUndefinedSignatureDict = errors.New("ecdsa: signature table is undefined")
	ErrUndefinedSignature     = errors.New("ecdsa: no signature for public key")
	ErrInvalidSignature       = errors.New("ecdsa: invalid signature")
	ErrSignatureNotFelt       = errors.New("ecdsa: public key and message must be field elements")
	ErrPointNotOnCurve        = errors.New("ec_op: point is not on the curve")
	ErrECOpNotFelt            = errors.New("ec_op: inputs must be field elements")
	ErrLadderFailed           = errors.New("ec_op: scalar multiplication ladder failed")
)

// RangeCheckOutOfBoundsError reports a value written to the range check segment outside [0, 2^BoundExponent)
type RangeCheckOutOfBoundsError struct {
	Value         core.Felt
	BoundExponent uint
}

func (e *RangeCheckOutOfBoundsError) Error() string {
	return fmt.Sprintf("range check: %s is not in [0, 2^%d)", e.Value.Hex(), e.BoundExponent)
}

func (e *RangeCheckOutOfBoundsError) Unwrap() error {
	return ErrRangeCheckOutOfBounds
}

// UndefinedSignatureError reports a public key written without a registered signature
type UndefinedSignatureError struct {
	Offset uint32
}

func (e *UndefinedSignatureError) Error() string {
	return fmt.Sprintf("ecdsa: no signature registered at offset %d", e.Offset)
}

func (e *UndefinedSignatureError) Unwrap() error {
	return ErrUndefinedSignature
}

// InvalidSignatureError reports a signature that verifies for neither candidate public key
type InvalidSignatureError struct {
	R         core.Felt
	S         core.Felt
	Message   core.Felt
	PubKeyPos string
	PubKeyNeg string
}

func (e *InvalidSignatureError) Error() string {
	return fmt.Sprintf("ecdsa: signature (r=%s, s=%s) of message %s is invalid for public keys %s and %s",
		e.R.Hex(), e.S.Hex(), e.Message.Hex(), e.PubKeyPos, e.PubKeyNeg)
}

func (e *InvalidSignatureError) Unwrap() error {
	return ErrInvalidSignature
}

// LadderFailedError reports an ec_op instance whose ladder hit two points with the same x coordinate
type LadderFailedError struct {
	P Point
	Q Point
	M core.Felt
}

func (e *LadderFailedError) Error() string {
	return fmt.Sprintf("ec_op: ladder failed for P=%s Q=%s m=%s", e.P, e.Q, e.M.Hex())
}

func (e *LadderFailedError) Unwrap() error {
	return ErrLadderFailed
}
