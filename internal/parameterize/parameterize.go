// Package parameterize names the free parameters of the actions in a plan,
// so that an external sampler can build a distribution over them.
//
// Every action node of a plan gets a 0-based ordinal in pre-order. Each
// uninstantiated field of the action (a nil pointer or nil interface) yields
// one Variable per leaf value beneath it, named
//
//	<ActionType>_<ordinal>.<field path>
//
// for example "NavigateAction_1.target_location.pose.position.x". Path
// segments come from the `param` struct tag, falling back to the lower-cased
// field name. A tag of "-" hides the field.
package parameterize

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/Tigul/cognitive-robot-abstract-machine/internal/plan"
)

// Kind classifies a variable's domain.
type Kind int

const (
	Continuous Kind = iota
	Integer
	Symbolic
)

func (k Kind) String() string {
	switch k {
	case Continuous:
		return "continuous"
	case Integer:
		return "integer"
	case Symbolic:
		return "symbolic"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Variable is one free parameter of a plan.
type Variable struct {
	Name string
	Kind Kind
	// Domain lists the values of a symbolic variable. It is nil for other
	// kinds, and for symbolic variables of an unknown type.
	Domain []string
}

func (v Variable) String() string {
	if v.Kind == Symbolic && v.Domain != nil {
		return fmt.Sprintf("%s %s{%s}", v.Kind, v.Name, strings.Join(v.Domain, ","))
	}
	return v.Kind.String() + " " + v.Name
}

// Domainer is implemented by enumerations. Fields of such types become
// symbolic variables.
type Domainer interface {
	Domain() []string
}

var domainerType = reflect.TypeFor[Domainer]()

// ParameterizePlan returns the free parameters of p's actions in plan order.
//
// classes restricts which struct types are described: an action or nested
// struct whose type is not listed contributes nothing. Each class is a value
// of the type, a pointer to one, or a reflect.Type. With no classes every
// struct type is described.
func ParameterizePlan(p *plan.Plan, classes ...any) []Variable {
	root := p.Root()
	if root == nil {
		return nil
	}
	w := newWalker(classes)
	nodes := append([]*plan.Node{root}, root.RecursiveChildren()...)
	ordinal := 0
	for _, n := range nodes {
		a, ok := plan.ActionOf(n)
		if !ok {
			continue
		}
		i := ordinal
		ordinal++
		v := reflect.ValueOf(a)
		for v.Kind() == reflect.Pointer && !v.IsNil() {
			v = v.Elem()
		}
		if v.Kind() != reflect.Struct || !w.allowed(v.Type()) {
			continue
		}
		w.fields(v.Type().Name()+"_"+strconv.Itoa(i), v)
	}
	return w.out
}

type walker struct {
	classes map[reflect.Type]struct{}
	out     []Variable

	// types on the current leaves path and pointers on the current fields
	// path; a repeat ends the branch.
	types map[reflect.Type]bool
	ptrs  map[uintptr]bool
}

func newWalker(classes []any) *walker {
	w := &walker{types: map[reflect.Type]bool{}, ptrs: map[uintptr]bool{}}
	if len(classes) == 0 {
		return w
	}
	w.classes = make(map[reflect.Type]struct{}, len(classes))
	for _, c := range classes {
		t, ok := c.(reflect.Type)
		if !ok {
			t = reflect.TypeOf(c)
		}
		for t != nil && t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		if t != nil {
			w.classes[t] = struct{}{}
		}
	}
	return w
}

func (w *walker) allowed(t reflect.Type) bool {
	if w.classes == nil {
		return true
	}
	_, ok := w.classes[t]
	return ok
}

// fields visits the fields of an instantiated struct, looking for free ones.
func (w *walker) fields(prefix string, v reflect.Value) {
	t := v.Type()
	for i := range t.NumField() {
		f := t.Field(i)
		name, ok := fieldName(f)
		if !ok {
			continue
		}
		path := prefix + "." + name
		fv := v.Field(i)
		switch fv.Kind() {
		case reflect.Pointer:
			if fv.IsNil() {
				w.leaves(path, f.Type.Elem())
			} else if e := fv.Elem(); e.Kind() == reflect.Struct && w.allowed(e.Type()) && !w.ptrs[fv.Pointer()] {
				w.ptrs[fv.Pointer()] = true
				w.fields(path, e)
				delete(w.ptrs, fv.Pointer())
			}
		case reflect.Interface:
			if fv.IsNil() {
				w.leaves(path, f.Type)
			}
		case reflect.Struct:
			if w.allowed(f.Type) {
				w.fields(path, fv)
			}
		}
	}
}

// leaves emits every variable of a free value of type t.
func (w *walker) leaves(path string, t reflect.Type) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if domain, ok := domainOf(t); ok {
		w.out = append(w.out, Variable{Name: path, Kind: Symbolic, Domain: domain})
		return
	}
	switch t.Kind() {
	case reflect.Bool:
		w.out = append(w.out, Variable{Name: path, Kind: Symbolic, Domain: []string{"false", "true"}})
	case reflect.Float32, reflect.Float64:
		w.out = append(w.out, Variable{Name: path, Kind: Continuous})
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		w.out = append(w.out, Variable{Name: path, Kind: Integer})
	case reflect.Interface:
		w.out = append(w.out, Variable{Name: path, Kind: Symbolic})
	case reflect.Struct:
		if !w.allowed(t) || w.types[t] {
			return
		}
		w.types[t] = true
		defer delete(w.types, t)
		for i := range t.NumField() {
			f := t.Field(i)
			if name, ok := fieldName(f); ok {
				w.leaves(path+"."+name, f.Type)
			}
		}
	}
}

func domainOf(t reflect.Type) ([]string, bool) {
	switch {
	case t.Kind() == reflect.Interface:
		return nil, false
	case t.Implements(domainerType):
		return reflect.Zero(t).Interface().(Domainer).Domain(), true
	case reflect.PointerTo(t).Implements(domainerType):
		return reflect.New(t).Interface().(Domainer).Domain(), true
	}
	return nil, false
}

func fieldName(f reflect.StructField) (string, bool) {
	if !f.IsExported() {
		return "", false
	}
	tag, _, _ := strings.Cut(f.Tag.Get("param"), ",")
	switch tag {
	case "-":
		return "", false
	case "":
		return strings.ToLower(f.Name), true
	}
	return tag, true
}
