package symbolic

import (
	"errors"
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/vm"

	"github.com/Tigul/cognitive-robot-abstract-machine/internal/trinary"
)

// DefaultExprCacheSize is the default maximum number of compiled programs kept
// in the package-level cache.
const DefaultExprCacheSize = 1000

var programs = NewExprLRUCache(DefaultExprCacheSize)

// SetExprCacheSize resizes the compiled program cache.
func SetExprCacheSize(size int) { programs.Resize(size) }

// ClearExprCache empties the compiled program cache.
func ClearExprCache() { programs.Clear() }

// ExprCacheStats reports the compiled program cache statistics.
func ExprCacheStats() (size int, hits, misses int64, ratio float64) { return programs.Stats() }

// CompiledExpr is an expr-lang program evaluated against the auxiliary
// scalars of a snapshot, keyed by Ident(name).
//
// A runtime error, a non-boolean result, or a variable missing from the
// snapshot evaluates to Unknown rather than False. LastError reports the
// cause.
type CompiledExpr struct {
	source  string
	program *vm.Program
	vars    []string

	mu      sync.Mutex
	lastErr error
}

var _ Expr = (*CompiledExpr)(nil)

// Compile compiles source with expr-lang. Compilation errors are build-phase
// errors and are returned immediately.
//
// Expression syntax follows github.com/expr-lang/expr:
//   - comparisons: elapsed > 2.5, gripper_z <= 0.8
//   - boolean logic: a > 0 && (b < 1 || c == 2)
//   - arithmetic and builtins: abs(x - y) < 0.01, floor(elapsed) % 2 == 0
func Compile(source string) (*CompiledExpr, error) {
	if source == "" {
		return nil, fmt.Errorf("symbolic: empty expression")
	}
	program, ok := programs.Get(source)
	if !ok {
		var err error
		program, err = expr.Compile(source,
			expr.Env(map[string]any{}),
			expr.AllowUndefinedVariables(),
			expr.AsBool(),
		)
		if err != nil {
			return nil, fmt.Errorf("symbolic: compile %q: %w", source, err)
		}
		programs.Put(source, program)
	}
	return &CompiledExpr{source: source, program: program, vars: variables(program)}, nil
}

// ErrUnresolved is recorded by Eval when the expression references a
// variable the snapshot does not carry.
var ErrUnresolved = errors.New("symbolic: unresolved variable")

// variables lists the free identifiers of program, excluding called
// functions and let bindings.
func variables(program *vm.Program) []string {
	root := program.Node()
	v := &identCollector{seen: map[string]bool{}, bound: map[string]bool{}}
	ast.Walk(&root, v)
	names := make([]string, 0, len(v.names))
	for _, name := range v.names {
		if !v.bound[name] {
			names = append(names, name)
		}
	}
	return names
}

type identCollector struct {
	names []string
	seen  map[string]bool
	bound map[string]bool
}

func (v *identCollector) Visit(node *ast.Node) {
	switch n := (*node).(type) {
	case *ast.IdentifierNode:
		if !v.seen[n.Value] {
			v.seen[n.Value] = true
			v.names = append(v.names, n.Value)
		}
	case *ast.CallNode:
		if id, ok := n.Callee.(*ast.IdentifierNode); ok {
			v.bound[id.Value] = true
		}
	case *ast.VariableDeclaratorNode:
		v.bound[n.Name] = true
	}
}

// MustCompile is like Compile but panics on error.
func MustCompile(source string) *CompiledExpr {
	c, err := Compile(source)
	if err != nil {
		panic(err)
	}
	return c
}

// Eval runs the program against the snapshot's scalars.
func (c *CompiledExpr) Eval(env *Snapshot) trinary.Value {
	vars := env.exprEnv()
	for _, name := range c.vars {
		if _, ok := vars[name]; !ok {
			c.setErr(fmt.Errorf("%w %q in %q", ErrUnresolved, name, c.source))
			return trinary.Unknown
		}
	}
	result, err := expr.Run(c.program, vars)
	if err != nil {
		c.setErr(fmt.Errorf("symbolic: evaluate %q: %w", c.source, err))
		return trinary.Unknown
	}
	b, ok := result.(bool)
	if !ok {
		c.setErr(fmt.Errorf("symbolic: %q returned non-boolean %T", c.source, result))
		return trinary.Unknown
	}
	c.setErr(nil)
	return trinary.FromBool(b)
}

func (c *CompiledExpr) String() string { return c.source }

// LastError returns the error from the most recent Eval, or nil.
func (c *CompiledExpr) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *CompiledExpr) setErr(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}
