package builtins

import (
	"fmt"

	starkcurve "github.com/consensys/gnark-crypto/ecc/stark-curve"

	"github.com/vybium/vybium-cairo-vm/internal/vybium-cairo-vm/core"
)

// STARK curve: y^2 = x^3 + Alpha*x + Beta over the field of core.Felt
var (
	Alpha = core.FeltOne
	Beta  = mustFelt("0x6f21413efbe40de150e596d72f7a8c5609ad26c15c915c1f4cdfcb99cee9e89")
)

func mustFelt(s string) core.Felt {
	f, err := core.FeltFromString(s)
	if err != nil {
		panic(err)
	}
	return f
}

// Point is an affine point of the STARK curve
type Point struct {
	X core.Felt
	Y core.Felt
}

func (p Point) String() string {
	return fmt.Sprintf("(%s, %s)", p.X.Hex(), p.Y.Hex())
}

func (p Point) affine() starkcurve.G1Affine {
	return starkcurve.G1Affine{X: p.X.Element(), Y: p.Y.Element()}
}

func pointFromAffine(a *starkcurve.G1Affine) Point {
	return Point{X: core.FeltFromElement(a.X), Y: core.FeltFromElement(a.Y)}
}

// IsOnCurve reports whether p satisfies the curve equation
func (p Point) IsOnCurve() bool {
	a := p.affine()
	return a.IsOnCurve()
}

// Generator returns the curve generator
func Generator() Point {
	_, g := starkcurve.Generators()
	return pointFromAffine(&g)
}

// recoverY returns the two y coordinates of the points with abscissa x
func recoverY(x core.Felt) (core.Felt, core.Felt, bool) {
	rhs := x.Square().Mul(x).Add(Alpha.Mul(x)).Add(Beta)
	y, ok := rhs.Sqrt()
	if !ok {
		return core.Felt{}, core.Felt{}, false
	}
	return y, y.Neg(), true
}

// ecAdd adds two points with distinct x coordinates
func ecAdd(p, q Point) (Point, error) {
	slope, err := p.Y.Sub(q.Y).Div(p.X.Sub(q.X))
	if err != nil {
		return Point{}, err
	}
	x := slope.Square().Sub(p.X).Sub(q.X)
	y := slope.Mul(p.X.Sub(x)).Sub(p.Y)
	return Point{X: x, Y: y}, nil
}

// ecDouble doubles a point with a non-zero y coordinate
func ecDouble(p Point, alpha core.Felt) (Point, error) {
	three := core.FeltFromUint64(3)
	slope, err := three.Mul(p.X.Square()).Add(alpha).Div(p.Y.Add(p.Y))
	if err != nil {
		return Point{}, err
	}
	x := slope.Square().Sub(p.X).Sub(p.X)
	y := slope.Mul(p.X.Sub(x)).Sub(p.Y)
	return Point{X: x, Y: y}, nil
}
