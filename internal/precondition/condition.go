// Package precondition expresses action pre- and post-conditions as go-pabt
// conditions over the world state, and builds reactive PA-BT goal plans from
// them.
//
// Conditions are grouped the way go-pabt groups them: each IConditions slice
// is a conjunction and a list of slices is a disjunction.
package precondition

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	pabtpkg "github.com/joeycumines/go-pabt"

	"github.com/Tigul/cognitive-robot-abstract-machine/internal/symbolic"
	"github.com/Tigul/cognitive-robot-abstract-machine/internal/world"
)

// ErrUnsatisfied is returned by Check when no condition group holds.
var ErrUnsatisfied = errors.New("precondition: not satisfied")

// Condition matches the world value stored under one key.
type Condition struct {
	key   string
	desc  string
	match func(value any) bool
}

var _ pabtpkg.Condition = (*Condition)(nil)

// Cond returns a condition on key. A nil match never matches.
func Cond(key, desc string, match func(value any) bool) *Condition {
	return &Condition{key: key, desc: desc, match: match}
}

func (c *Condition) Key() any { return c.key }

func (c *Condition) Match(value any) bool {
	if c.match == nil {
		return false
	}
	return c.match(value)
}

func (c *Condition) String() string { return c.key + " " + c.desc }

// Equal matches when the value equals want.
func Equal(key string, want any) *Condition {
	return Cond(key, fmt.Sprintf("== %v", want), func(v any) bool { return v == want })
}

// Absent matches when nothing is stored under key.
func Absent(key string) *Condition {
	return Cond(key, "is absent", func(v any) bool { return v == nil })
}

// Present matches when a value is stored under key.
func Present(key string) *Condition {
	return Cond(key, "is present", func(v any) bool { return v != nil })
}

// GripperIsFree matches while m's gripper holds nothing.
func GripperIsFree(m world.Manipulator) *Condition {
	return Cond(world.AttachmentKey(m.Gripper), "is free", func(v any) bool { return v == nil })
}

// GripperIsNotFree matches while m's gripper holds an object.
func GripperIsNotFree(m world.Manipulator) *Condition {
	return Cond(world.AttachmentKey(m.Gripper), "is not free", func(v any) bool { return v != nil })
}

// exprEnv is the environment of an expression condition.
type exprEnv struct {
	Value any `expr:"value"`
}

var exprPrograms = symbolic.NewExprLRUCache(symbolic.DefaultExprCacheSize)

// SetExprCacheSize resizes the cache of compiled condition expressions.
func SetExprCacheSize(size int) { exprPrograms.Resize(size) }

// ExprCondition matches a value with an expr-lang expression over the
// variable value, for example "value != nil && value > 0.25". Evaluation
// errors and non-boolean results do not match.
type ExprCondition struct {
	key     string
	source  string
	program *vm.Program

	mu      sync.Mutex
	lastErr error
}

var _ pabtpkg.Condition = (*ExprCondition)(nil)

// Expr compiles an expression condition on key.
func Expr(key, source string) (*ExprCondition, error) {
	if source == "" {
		return nil, errors.New("precondition: empty expression")
	}
	program, ok := exprPrograms.Get(source)
	if !ok {
		var err error
		program, err = expr.Compile(source, expr.Env(exprEnv{}), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("precondition: compile %q: %w", source, err)
		}
		exprPrograms.Put(source, program)
	}
	return &ExprCondition{key: key, source: source, program: program}, nil
}

func (c *ExprCondition) Key() any { return c.key }

func (c *ExprCondition) Match(value any) bool {
	out, err := expr.Run(c.program, exprEnv{Value: value})
	if err == nil {
		if b, ok := out.(bool); ok {
			c.setErr(nil)
			return b
		}
		err = fmt.Errorf("non-boolean result %T", out)
	}
	c.setErr(err)
	slog.Debug("expression condition did not evaluate", "key", c.key, "expr", c.source, "error", err)
	return false
}

func (c *ExprCondition) String() string { return c.key + ": " + c.source }

// LastError returns the error of the latest Match, or nil.
func (c *ExprCondition) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *ExprCondition) setErr(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}

// Check evaluates groups against state. It succeeds when any group has all
// its conditions matching, and when groups is empty. Otherwise it returns
// ErrUnsatisfied naming the first failing condition of each group.
func Check(state pabtpkg.IState, groups ...pabtpkg.IConditions) error {
	if len(groups) == 0 {
		return nil
	}
	var failed []string
	for _, group := range groups {
		bad, err := firstFailing(state, group)
		if err != nil {
			return err
		}
		if bad == nil {
			return nil
		}
		failed = append(failed, describe(bad))
	}
	return fmt.Errorf("%w: %s", ErrUnsatisfied, strings.Join(failed, "; "))
}

func firstFailing(state pabtpkg.IState, group pabtpkg.IConditions) (pabtpkg.Condition, error) {
	for _, c := range group {
		v, err := state.Variable(c.Key())
		if err != nil {
			return nil, fmt.Errorf("precondition: read %v: %w", c.Key(), err)
		}
		if !c.Match(v) {
			return c, nil
		}
	}
	return nil, nil
}

func describe(c pabtpkg.Condition) string {
	if s, ok := c.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprint(c.Key())
}
