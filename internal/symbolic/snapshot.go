package symbolic

import (
	"math"
	"strings"
	"unicode"
)

// Snapshot is an immutable view of every auxiliary scalar resolved for one
// tick. Expressions evaluated against the same Snapshot observe the same
// external state, regardless of concurrent mutation of the world.
type Snapshot struct {
	names  []string
	values []float64
	index  map[string]int
	env    map[string]any
}

// NewSnapshot pairs names with values positionally. Both slices are copied.
// It panics if the lengths differ.
func NewSnapshot(names []string, values []float64) *Snapshot {
	if len(names) != len(values) {
		panic("symbolic.NewSnapshot: names and values differ in length")
	}
	s := &Snapshot{
		names:  append([]string(nil), names...),
		values: append([]float64(nil), values...),
		index:  make(map[string]int, len(names)),
		env:    make(map[string]any, len(names)),
	}
	for i, name := range s.names {
		s.index[name] = i
		s.env[Ident(name)] = s.values[i]
	}
	return s
}

// EmptySnapshot returns a snapshot with no scalars.
func EmptySnapshot() *Snapshot {
	return NewSnapshot(nil, nil)
}

// Len returns the number of scalars.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.values)
}

// At returns the value at the registration index.
func (s *Snapshot) At(i int) (float64, bool) {
	if s == nil || i < 0 || i >= len(s.values) {
		return math.NaN(), false
	}
	return s.values[i], true
}

// Get returns the value registered under name.
func (s *Snapshot) Get(name string) (float64, bool) {
	if s == nil {
		return math.NaN(), false
	}
	i, ok := s.index[name]
	if !ok {
		return math.NaN(), false
	}
	return s.values[i], true
}

// Values returns a copy of the resolved vector.
func (s *Snapshot) Values() []float64 {
	if s == nil {
		return nil
	}
	return append([]float64(nil), s.values...)
}

// exprEnv returns the expr-lang environment, keyed by Ident(name). Callers
// must not mutate it.
func (s *Snapshot) exprEnv() map[string]any {
	if s == nil {
		return map[string]any{}
	}
	return s.env
}

// Ident converts a variable name such as "gripper/x" into the identifier
// used to reference it from a compiled expression ("gripper_x").
func Ident(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for i, r := range name {
		switch {
		case r == '_' || unicode.IsLetter(r):
			b.WriteRune(r)
		case unicode.IsDigit(r):
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
