// Package auxvar bridges opaque external state, such as the control clock or
// a sensor reading, into named scalars usable inside symbolic conditions.
//
// A Manager owns every variable created so far and resolves them into one
// immutable vector per tick:
//
//	m := auxvar.NewManager()
//	t, _ := m.CreateFloatVariable(auxvar.Name("elapsed"), clock.Seconds)
//	cond := symbolic.Greater(symbolic.Var(t), symbolic.Number(2))
//
//	snap, err := m.Snapshot() // once per tick
//	cond.Eval(snap)
//
// Providers must be side-effect-free reads. The manager never caches across
// resolutions and never swallows a provider error.
package auxvar

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Tigul/cognitive-robot-abstract-machine/internal/symbolic"
)

// ErrDuplicateVariable is returned when a name is registered twice.
var ErrDuplicateVariable = errors.New("auxiliary variable already registered")

// PrefixedName is a variable name scoped by the node or component that
// created it.
type PrefixedName struct {
	Prefix string
	Name   string
}

// Name returns an unprefixed name.
func Name(name string) PrefixedName { return PrefixedName{Name: name} }

// Sub derives a child name, as used for point components.
func (n PrefixedName) Sub(name string) PrefixedName {
	return PrefixedName{Prefix: n.String(), Name: name}
}

func (n PrefixedName) String() string {
	if n.Prefix == "" {
		return n.Name
	}
	return n.Prefix + "/" + n.Name
}

// Provider reads one scalar from external state.
type Provider func() (float64, error)

// Point3Provider reads a 3-vector from external state.
type Point3Provider func() ([3]float64, error)

// Variable is a registered scalar. It implements symbolic.Variable.
type Variable struct {
	name     PrefixedName
	index    int
	provider Provider
}

var _ symbolic.Variable = (*Variable)(nil)

// Name returns the rendered name, e.g. "gripper/x".
func (v *Variable) Name() string { return v.name.String() }

// PrefixedName returns the structured name.
func (v *Variable) PrefixedName() PrefixedName { return v.name }

// Index is the variable's position in the resolved vector.
func (v *Variable) Index() int { return v.index }

// Scalar references the variable inside a symbolic expression.
func (v *Variable) Scalar() symbolic.Scalar { return symbolic.Var(v) }

// Point3 is a view over three correlated scalars sharing one provider.
type Point3 struct {
	X, Y, Z *Variable
}

// Scalars returns the symbolic 3-vector over the components.
func (p Point3) Scalars() symbolic.Point3 {
	return symbolic.Point3{X: p.X.Scalar(), Y: p.Y.Scalar(), Z: p.Z.Scalar()}
}

// Manager owns the ordered list of auxiliary variables. It is safe for
// concurrent use.
type Manager struct {
	mu     sync.Mutex
	vars   []*Variable
	byName map[string]*Variable
}

// NewManager returns an empty manager.
func NewManager() *Manager {
	return &Manager{byName: make(map[string]*Variable)}
}

// CreateFloatVariable registers a scalar bound to provider.
func (m *Manager) CreateFloatVariable(name PrefixedName, provider Provider) (*Variable, error) {
	if provider == nil {
		panic("auxvar.CreateFloatVariable: nil provider")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registerLocked(name, provider)
}

// CreatePoint3 registers the scalars <name>/x, <name>/y and <name>/z, bound
// to the components of provider's result.
func (m *Manager) CreatePoint3(name PrefixedName, provider Point3Provider) (Point3, error) {
	if provider == nil {
		panic("auxvar.CreatePoint3: nil provider")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	axes := [3]string{"x", "y", "z"}
	for _, axis := range axes {
		if _, ok := m.byName[name.Sub(axis).String()]; ok {
			return Point3{}, fmt.Errorf("auxvar: %s: %w", name.Sub(axis), ErrDuplicateVariable)
		}
	}
	var out [3]*Variable
	for i, axis := range axes {
		component := i
		v, err := m.registerLocked(name.Sub(axis), func() (float64, error) {
			p, err := provider()
			if err != nil {
				return 0, err
			}
			return p[component], nil
		})
		if err != nil {
			return Point3{}, err
		}
		out[i] = v
	}
	return Point3{X: out[0], Y: out[1], Z: out[2]}, nil
}

func (m *Manager) registerLocked(name PrefixedName, provider Provider) (*Variable, error) {
	key := name.String()
	if _, ok := m.byName[key]; ok {
		return nil, fmt.Errorf("auxvar: %s: %w", key, ErrDuplicateVariable)
	}
	v := &Variable{name: name, index: len(m.vars), provider: provider}
	m.vars = append(m.vars, v)
	m.byName[key] = v
	return v, nil
}

// Lookup returns the variable registered under the rendered name.
func (m *Manager) Lookup(name string) (*Variable, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.byName[name]
	return v, ok
}

// Variables returns the registered variables in registration order.
func (m *Manager) Variables() []*Variable {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Variable(nil), m.vars...)
}

// Len returns the number of registered variables.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.vars)
}

// ResolveAuxiliaryVariables calls every provider once and returns the results
// in registration order. The first provider error aborts resolution and is
// returned wrapped with the variable's name.
func (m *Manager) ResolveAuxiliaryVariables() ([]float64, error) {
	vars := m.Variables()
	values := make([]float64, len(vars))
	for i, v := range vars {
		f, err := v.provider()
		if err != nil {
			return nil, fmt.Errorf("auxvar: resolve %s: %w", v.Name(), err)
		}
		values[i] = f
	}
	return values, nil
}

// Snapshot resolves every variable into an immutable snapshot.
func (m *Manager) Snapshot() (*symbolic.Snapshot, error) {
	vars := m.Variables()
	names := make([]string, len(vars))
	values := make([]float64, len(vars))
	for i, v := range vars {
		f, err := v.provider()
		if err != nil {
			return nil, fmt.Errorf("auxvar: resolve %s: %w", v.Name(), err)
		}
		names[i] = v.Name()
		values[i] = f
	}
	return symbolic.NewSnapshot(names, values), nil
}
