// Package symbolic is the condition layer of the motion statechart: boolean
// expressions over named scalars and node observations that evaluate to a
// tri-valued result.
//
// Expressions are pure functions of a per-tick Snapshot plus the observation
// state of the nodes they reference. They are built once, at plan build time,
// and evaluated once per tick.
//
// Two construction styles are supported and can be mixed freely:
//
//	// Go combinators
//	cond := symbolic.And(symbolic.Observe(reached), symbolic.Greater(symbolic.Var(t), symbolic.Number(2)))
//
//	// expr-lang source over auxiliary scalars (see Compile)
//	cond, err := symbolic.Compile("elapsed > 2.0 && gripper_z < 0.8")
package symbolic

import (
	"strings"

	"github.com/Tigul/cognitive-robot-abstract-machine/internal/trinary"
)

// Expr is a tri-valued boolean expression.
type Expr interface {
	// Eval evaluates the expression against one tick's snapshot.
	Eval(env *Snapshot) trinary.Value
	String() string
}

// Observable is anything exposing an observation variable, typically a
// statechart node.
type Observable interface {
	Name() string
	Observation() trinary.Value
}

type constExpr trinary.Value

func (c constExpr) Eval(*Snapshot) trinary.Value { return trinary.Value(c) }
func (c constExpr) String() string              { return trinary.Value(c).String() }

var (
	// True always evaluates to trinary.True.
	True Expr = constExpr(trinary.True)
	// False always evaluates to trinary.False.
	False Expr = constExpr(trinary.False)
	// Unknown always evaluates to trinary.Unknown.
	Unknown Expr = constExpr(trinary.Unknown)
)

// Const lifts a trinary value into an expression.
func Const(v trinary.Value) Expr { return constExpr(v) }

// IsConst reports whether e is a constant, and its value.
func IsConst(e Expr) (trinary.Value, bool) {
	c, ok := e.(constExpr)
	return trinary.Value(c), ok
}

type andExpr []Expr

func (a andExpr) Eval(env *Snapshot) trinary.Value {
	result := trinary.True
	for _, e := range a {
		switch v := e.Eval(env); {
		case v == trinary.False:
			return trinary.False
		case v.IsUnknown():
			result = trinary.Unknown
		}
	}
	return result
}

func (a andExpr) String() string { return join(a, " && ") }

type orExpr []Expr

func (o orExpr) Eval(env *Snapshot) trinary.Value {
	result := trinary.False
	for _, e := range o {
		switch v := e.Eval(env); {
		case v == trinary.True:
			return trinary.True
		case v.IsUnknown():
			result = trinary.Unknown
		}
	}
	return result
}

func (o orExpr) String() string { return join(o, " || ") }

// And is the Kleene conjunction of its operands. And() is True.
func And(exprs ...Expr) Expr {
	switch len(exprs) {
	case 0:
		return True
	case 1:
		return exprs[0]
	}
	return andExpr(append([]Expr(nil), exprs...))
}

// Or is the Kleene disjunction of its operands. Or() is False.
func Or(exprs ...Expr) Expr {
	switch len(exprs) {
	case 0:
		return False
	case 1:
		return exprs[0]
	}
	return orExpr(append([]Expr(nil), exprs...))
}

type notExpr struct{ e Expr }

func (n notExpr) Eval(env *Snapshot) trinary.Value { return n.e.Eval(env).Not() }
func (n notExpr) String() string                   { return "!(" + n.e.String() + ")" }

// Not negates e. Unknown stays Unknown.
func Not(e Expr) Expr {
	if c, ok := e.(constExpr); ok {
		return constExpr(trinary.Value(c).Not())
	}
	return notExpr{e}
}

type observeExpr struct{ o Observable }

func (x observeExpr) Eval(*Snapshot) trinary.Value { return x.o.Observation() }
func (x observeExpr) String() string               { return "obs(" + x.o.Name() + ")" }

// Observe references the current observation of o.
func Observe(o Observable) Expr {
	if o == nil {
		panic("symbolic.Observe: nil observable")
	}
	return observeExpr{o}
}

// Func adapts an opaque predicate, such as a learned pre-condition
// classifier, into an expression.
func Func(name string, fn func(env *Snapshot) trinary.Value) Expr {
	return funcExpr{name: name, fn: fn}
}

type funcExpr struct {
	name string
	fn   func(env *Snapshot) trinary.Value
}

func (f funcExpr) Eval(env *Snapshot) trinary.Value {
	if f.fn == nil {
		return trinary.Unknown
	}
	return f.fn(env)
}

func (f funcExpr) String() string { return f.name + "()" }

func join(exprs []Expr, sep string) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.String()
	}
	return "(" + strings.Join(parts, sep) + ")"
}
