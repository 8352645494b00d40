package symbolic

import (
	"fmt"
	"math"
	"strconv"

	"github.com/Tigul/cognitive-robot-abstract-machine/internal/trinary"
)

// Scalar is a real-valued expression. NaN signals a value that could not be
// resolved, and every comparison involving NaN is Unknown.
type Scalar interface {
	Float(env *Snapshot) float64
	String() string
}

// Variable is a named scalar stored in the snapshot at a fixed index, such
// as an auxiliary variable.
type Variable interface {
	Name() string
	Index() int
}

type constScalar float64

func (c constScalar) Float(*Snapshot) float64 { return float64(c) }
func (c constScalar) String() string           { return strconv.FormatFloat(float64(c), 'g', -1, 64) }

// Number lifts a constant into a scalar.
func Number(f float64) Scalar { return constScalar(f) }

type varScalar struct{ v Variable }

func (s varScalar) Float(env *Snapshot) float64 {
	f, _ := env.At(s.v.Index())
	return f
}

func (s varScalar) String() string { return s.v.Name() }

// Var references a variable's value in the snapshot.
func Var(v Variable) Scalar {
	if v == nil {
		panic("symbolic.Var: nil variable")
	}
	return varScalar{v}
}

type binaryScalar struct {
	op   string
	a, b Scalar
	fn   func(a, b float64) float64
}

func (s binaryScalar) Float(env *Snapshot) float64 { return s.fn(s.a.Float(env), s.b.Float(env)) }
func (s binaryScalar) String() string {
	return fmt.Sprintf("(%s %s %s)", s.a, s.op, s.b)
}

// Add returns a+b.
func Add(a, b Scalar) Scalar {
	return binaryScalar{op: "+", a: a, b: b, fn: func(x, y float64) float64 { return x + y }}
}

// Sub returns a-b.
func Sub(a, b Scalar) Scalar {
	return binaryScalar{op: "-", a: a, b: b, fn: func(x, y float64) float64 { return x - y }}
}

// Mul returns a*b.
func Mul(a, b Scalar) Scalar {
	return binaryScalar{op: "*", a: a, b: b, fn: func(x, y float64) float64 { return x * y }}
}

// Mod returns the floored modulus, whose sign follows the divisor.
func Mod(a, b Scalar) Scalar {
	return binaryScalar{op: "%", a: a, b: b, fn: FloorMod}
}

// FloorMod returns x mod y with the sign of y. A zero divisor yields NaN.
func FloorMod(x, y float64) float64 {
	if y == 0 {
		return math.NaN()
	}
	return x - y*math.Floor(x/y)
}

type floorScalar struct{ a Scalar }

func (s floorScalar) Float(env *Snapshot) float64 { return math.Floor(s.a.Float(env)) }
func (s floorScalar) String() string               { return "floor(" + s.a.String() + ")" }

// Floor rounds a down.
func Floor(a Scalar) Scalar { return floorScalar{a} }

type compareExpr struct {
	op   string
	a, b Scalar
	fn   func(a, b float64) bool
}

func (c compareExpr) Eval(env *Snapshot) trinary.Value {
	x, y := c.a.Float(env), c.b.Float(env)
	if math.IsNaN(x) || math.IsNaN(y) {
		return trinary.Unknown
	}
	return trinary.FromBool(c.fn(x, y))
}

func (c compareExpr) String() string { return fmt.Sprintf("(%s %s %s)", c.a, c.op, c.b) }

// Greater is a > b.
func Greater(a, b Scalar) Expr {
	return compareExpr{op: ">", a: a, b: b, fn: func(x, y float64) bool { return x > y }}
}

// GreaterEqual is a >= b.
func GreaterEqual(a, b Scalar) Expr {
	return compareExpr{op: ">=", a: a, b: b, fn: func(x, y float64) bool { return x >= y }}
}

// Less is a < b.
func Less(a, b Scalar) Expr {
	return compareExpr{op: "<", a: a, b: b, fn: func(x, y float64) bool { return x < y }}
}

// LessEqual is a <= b.
func LessEqual(a, b Scalar) Expr {
	return compareExpr{op: "<=", a: a, b: b, fn: func(x, y float64) bool { return x <= y }}
}

// Equal is a == b.
func Equal(a, b Scalar) Expr {
	return compareExpr{op: "==", a: a, b: b, fn: func(x, y float64) bool { return x == y }}
}

// Point3 is a 3-vector of scalars.
type Point3 struct {
	X, Y, Z Scalar
}

// Distance returns the Euclidean distance between p and q.
func (p Point3) Distance(q Point3) Scalar {
	return distanceScalar{p, q}
}

type distanceScalar struct{ p, q Point3 }

func (d distanceScalar) Float(env *Snapshot) float64 {
	dx := d.p.X.Float(env) - d.q.X.Float(env)
	dy := d.p.Y.Float(env) - d.q.Y.Float(env)
	dz := d.p.Z.Float(env) - d.q.Z.Float(env)
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func (d distanceScalar) String() string {
	return fmt.Sprintf("dist((%s, %s, %s), (%s, %s, %s))", d.p.X, d.p.Y, d.p.Z, d.q.X, d.q.Y, d.q.Z)
}
