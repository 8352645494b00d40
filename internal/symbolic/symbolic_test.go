package symbolic

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tigul/cognitive-robot-abstract-machine/internal/trinary"
)

type fakeObservable struct {
	name string
	obs  trinary.Value
}

func (f *fakeObservable) Name() string               { return f.name }
func (f *fakeObservable) Observation() trinary.Value { return f.obs }

type fakeVar struct {
	name  string
	index int
}

func (v fakeVar) Name() string { return v.name }
func (v fakeVar) Index() int   { return v.index }

func TestAndOr_Kleene(t *testing.T) {
	t.Parallel()

	a := &fakeObservable{name: "a"}
	b := &fakeObservable{name: "b"}
	and := And(Observe(a), Observe(b))
	or := Or(Observe(a), Observe(b))
	env := EmptySnapshot()

	values := []trinary.Value{trinary.False, trinary.Unknown, trinary.True}
	for _, va := range values {
		for _, vb := range values {
			a.obs, b.obs = va, vb
			assert.Equal(t, trinary.And(va, vb), and.Eval(env), "%v and %v", va, vb)
			assert.Equal(t, trinary.Or(va, vb), or.Eval(env), "%v or %v", va, vb)
			assert.Equal(t, va.Not(), Not(Observe(a)).Eval(env))
		}
	}
}

func TestAndOr_Degenerate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, trinary.True, And().Eval(nil))
	assert.Equal(t, trinary.False, Or().Eval(nil))
	assert.Equal(t, True, And(True))

	v, ok := IsConst(Not(False))
	require.True(t, ok)
	assert.Equal(t, trinary.True, v)

	_, ok = IsConst(Not(Observe(&fakeObservable{name: "x"})))
	assert.False(t, ok)
}

func TestFunc_NilIsUnknown(t *testing.T) {
	t.Parallel()
	assert.Equal(t, trinary.Unknown, Func("classifier", nil).Eval(nil))
	assert.Equal(t, trinary.True, Func("always", func(*Snapshot) trinary.Value { return trinary.True }).Eval(nil))
	assert.Equal(t, "classifier()", Func("classifier", nil).String())
}

func TestScalarComparisons(t *testing.T) {
	t.Parallel()

	env := NewSnapshot([]string{"t", "z"}, []float64{3, 0.5})
	tv := Var(fakeVar{"t", 0})
	zv := Var(fakeVar{"z", 1})
	missing := Var(fakeVar{"gone", 7})

	assert.Equal(t, trinary.True, Greater(tv, Number(2)).Eval(env))
	assert.Equal(t, trinary.False, Less(tv, zv).Eval(env))
	assert.Equal(t, trinary.True, GreaterEqual(tv, Number(3)).Eval(env))
	assert.Equal(t, trinary.True, LessEqual(zv, Number(0.5)).Eval(env))
	assert.Equal(t, trinary.True, Equal(Add(tv, zv), Number(3.5)).Eval(env))
	assert.Equal(t, trinary.True, Equal(Mul(Sub(tv, zv), Number(2)), Number(5)).Eval(env))
	assert.Equal(t, trinary.Unknown, Greater(missing, Number(0)).Eval(env))
	assert.Equal(t, trinary.Unknown, Equal(Mod(tv, Number(0)), Number(0)).Eval(env))
	assert.Equal(t, "(t > 2)", Greater(tv, Number(2)).String())
}

func TestFloorMod(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 1.0, FloorMod(7, 3), 1e-12)
	assert.InDelta(t, 2.0, FloorMod(-1, 3), 1e-12)
	assert.InDelta(t, 0.5, FloorMod(2.5, 1), 1e-12)
	assert.True(t, math.IsNaN(FloorMod(1, 0)))

	env := NewSnapshot([]string{"t"}, []float64{5.7})
	assert.InDelta(t, 1.0, Mod(Floor(Var(fakeVar{"t", 0})), Number(2)).Float(env), 1e-12)
}

func TestDistance(t *testing.T) {
	t.Parallel()

	p := Point3{Number(0), Number(0), Number(0)}
	q := Point3{Number(3), Number(4), Number(0)}
	assert.InDelta(t, 5.0, p.Distance(q).Float(nil), 1e-12)
}

func TestSnapshot(t *testing.T) {
	t.Parallel()

	names := []string{"a", "b"}
	values := []float64{1, 2}
	s := NewSnapshot(names, values)
	values[0] = 99

	v, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1.0, v)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []float64{1, 2}, s.Values())

	_, ok = s.At(5)
	assert.False(t, ok)
	_, ok = s.Get("c")
	assert.False(t, ok)

	var nilSnap *Snapshot
	assert.Equal(t, 0, nilSnap.Len())
	assert.Nil(t, nilSnap.Values())

	assert.Panics(t, func() { NewSnapshot([]string{"a"}, nil) })
}

func TestIdent(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"gripper/x":    "gripper_x",
		"time":         "time",
		"3d.point":     "_3d_point",
		"arm-left/z_1": "arm_left_z_1",
	}
	for in, want := range tests {
		assert.Equal(t, want, Ident(in), in)
	}
}

func TestCompile(t *testing.T) {
	t.Parallel()

	c, err := Compile("t > 2.5 && gripper_z <= 0.8")
	require.NoError(t, err)
	assert.Equal(t, "t > 2.5 && gripper_z <= 0.8", c.String())

	env := NewSnapshot([]string{"t", "gripper/z"}, []float64{3, 0.5})
	assert.Equal(t, trinary.True, c.Eval(env))
	assert.NoError(t, c.LastError())

	env = NewSnapshot([]string{"t", "gripper/z"}, []float64{1, 0.5})
	assert.Equal(t, trinary.False, c.Eval(env))
}

func TestCompile_UnresolvedIsUnknown(t *testing.T) {
	t.Parallel()

	c := MustCompile("missing_scalar > 1")
	assert.Equal(t, trinary.Unknown, c.Eval(EmptySnapshot()))
	assert.ErrorIs(t, c.LastError(), ErrUnresolved)

	env := NewSnapshot([]string{"a"}, []float64{1})
	for _, source := range []string{
		"missing == 2",
		"missing != 2",
		"a == 1 && missing != 0",
		"!(missing == 2)",
	} {
		c := MustCompile(source)
		assert.Equal(t, trinary.Unknown, c.Eval(env), source)
		assert.ErrorIs(t, c.LastError(), ErrUnresolved, source)
	}

	c = MustCompile("let b = a; abs(b - 1) < 0.01")
	assert.Equal(t, trinary.True, c.Eval(env), "builtins and let bindings are not variables")
	assert.NoError(t, c.LastError())
}

func TestCompile_Errors(t *testing.T) {
	t.Parallel()

	_, err := Compile("")
	assert.Error(t, err)

	_, err = Compile("t >")
	assert.Error(t, err)

	assert.Panics(t, func() { MustCompile("(((") })
}

func TestExprLRUCache(t *testing.T) {
	t.Parallel()

	c := NewExprLRUCache(2)
	p1 := MustCompile("a > 1").program
	p2 := MustCompile("b > 1").program
	p3 := MustCompile("c > 1").program

	c.Put("a", p1)
	c.Put("b", p2)
	_, ok := c.Get("a")
	require.True(t, ok)

	// b is now least recently used.
	c.Put("c", p3)
	assert.Equal(t, 2, c.Len())
	_, ok = c.Get("b")
	assert.False(t, ok)
	got, ok := c.Get("c")
	require.True(t, ok)
	assert.Same(t, p3, got)

	size, hits, misses, ratio := c.Stats()
	assert.Equal(t, 2, size)
	assert.Equal(t, int64(2), hits)
	assert.Equal(t, int64(1), misses)
	assert.InDelta(t, 2.0/3.0, ratio, 1e-9)

	c.Resize(1)
	assert.Equal(t, 1, c.Len())
	c.Clear()
	assert.Equal(t, 0, c.Len())
	assert.Contains(t, c.String(), "ExprLRUCache{size=0")
}
