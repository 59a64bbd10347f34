package builtins

import (
	"fmt"
	"math/big"

	starkcurve "github.com/consensys/gnark-crypto/ecc/stark-curve"
	"github.com/consensys/gnark-crypto/ecc/stark-curve/fr"

	"github.com/vybium/vybium-cairo-vm/internal/vybium-cairo-vm/core"
	"github.com/vybium/vybium-cairo-vm/internal/vybium-cairo-vm/memory"
)

const (
	signatureCells      = 2
	signaturePubKeyCell = 0
)

// Signature is an ECDSA signature over the STARK curve
type Signature struct {
	R core.Felt
	S core.Felt
}

// SignatureBuiltin verifies (public key, message) pairs against registered signatures
//
// Instance layout: public key x coordinate, message hash. Signatures are
// registered by the offset of the public key cell before the pair is written.
type SignatureBuiltin struct {
	segment
	signatures map[uint32]Signature
}

// NewSignature creates an ecdsa builtin without any registered signature
func NewSignature() *SignatureBuiltin {
	return &SignatureBuiltin{}
}

func (s *SignatureBuiltin) Name() string { return ECDSAName }

func (s *SignatureBuiltin) CellsPerInstance() uint32 { return signatureCells }

func (s *SignatureBuiltin) InitSegment(mem *memory.Memory) memory.Relocatable {
	s.base = mem.AllocateSegment()
	mem.AddValidationRule(s.base.SegmentIndex, s.Validate)
	return s.base
}

// AddSignature registers the signature checked when the instance at offset is written
func (s *SignatureBuiltin) AddSignature(offset uint32, sig Signature) {
	if s.signatures == nil {
		s.signatures = make(map[uint32]Signature)
	}
	s.signatures[offset] = sig
}

// Signatures returns the number of registered signatures
func (s *SignatureBuiltin) Signatures() int {
	return len(s.signatures)
}

// Validate verifies the instance containing addr once both of its cells are written
func (s *SignatureBuiltin) Validate(mem *memory.Memory, addr memory.Relocatable) error {
	base := instanceBase(addr, signatureCells)
	pubKeyAddr := memory.NewRelocatable(base.SegmentIndex, base.Offset+signaturePubKeyCell)
	msgAddr := memory.NewRelocatable(base.SegmentIndex, base.Offset+signaturePubKeyCell+1)

	pubKey, okKey := mem.TryGet(pubKeyAddr)
	msg, okMsg := mem.TryGet(msgAddr)
	if !okKey || !okMsg {
		return nil
	}

	pubKeyX, isFelt := pubKey.GetFelt()
	if !isFelt {
		return fmt.Errorf("%w: public key %s", ErrSignatureNotFelt, pubKey)
	}
	message, isFelt := msg.GetFelt()
	if !isFelt {
		return fmt.Errorf("%w: message %s", ErrSignatureNotFelt, msg)
	}

	if s.signatures == nil {
		return ErrUndefinedSignatureDict
	}
	sig, ok := s.signatures[pubKeyAddr.Offset]
	if !ok {
		return &UndefinedSignatureError{Offset: pubKeyAddr.Offset}
	}
	return Verify(pubKeyX, message, sig)
}

// Verify checks sig against the message hash for a public key given by its x coordinate
//
// Both points with that abscissa are tried.
func Verify(pubKeyX, message core.Felt, sig Signature) error {
	yPos, yNeg, ok := recoverY(pubKeyX)
	invalid := &InvalidSignatureError{R: sig.R, S: sig.S, Message: message}
	if !ok {
		invalid.PubKeyPos = pubKeyX.Hex()
		invalid.PubKeyNeg = pubKeyX.Hex()
		return fmt.Errorf("%w: public key is not on the curve", invalid)
	}
	pos := Point{X: pubKeyX, Y: yPos}
	neg := Point{X: pubKeyX, Y: yNeg}
	invalid.PubKeyPos = pos.String()
	invalid.PubKeyNeg = neg.String()

	order := fr.Modulus()
	r := sig.R.BigInt()
	sInt := sig.S.BigInt()
	if r.Sign() == 0 || r.Cmp(order) >= 0 || sInt.Sign() == 0 || sInt.Cmp(order) >= 0 {
		return invalid
	}
	w := new(big.Int).ModInverse(sInt, order)
	if w == nil {
		return invalid
	}

	for _, q := range []Point{pos, neg} {
		if verifyWithKey(q, message.BigInt(), r, w, order) {
			return nil
		}
	}
	return invalid
}

// verifyWithKey checks x((z*G + r*Q) * w) == r
func verifyWithKey(q Point, z, r, w, order *big.Int) bool {
	g, _ := starkcurve.Generators()
	qAff := q.affine()
	var qJac starkcurve.G1Jac
	qJac.FromAffine(&qAff)

	var zG, rQ starkcurve.G1Jac
	zG.ScalarMultiplication(&g, new(big.Int).Mod(z, order))
	rQ.ScalarMultiplication(&qJac, r)
	zG.AddAssign(&rQ)
	var sum starkcurve.G1Jac
	sum.ScalarMultiplication(&zG, w)

	var res starkcurve.G1Affine
	res.FromJacobian(&sum)
	if res.IsInfinity() {
		return false
	}
	x := core.FeltFromElement(res.X).BigInt()
	return x.Mod(x, order).Cmp(r) == 0
}
