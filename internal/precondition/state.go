package precondition

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	bt "github.com/joeycumines/go-behaviortree"
	pabtpkg "github.com/joeycumines/go-pabt"

	"github.com/Tigul/cognitive-robot-abstract-machine/internal/plan"
	"github.com/Tigul/cognitive-robot-abstract-machine/internal/world"
)

// State exposes a world's state store to the PA-BT planner and holds the
// actions it may expand failed conditions with.
type State struct {
	world *world.World

	mu      sync.RWMutex
	actions map[string]pabtpkg.IAction
}

var _ pabtpkg.IState = (*State)(nil)

// NewState returns a planner state over w.
func NewState(w *world.World) *State {
	if w == nil {
		panic("precondition.NewState: nil world")
	}
	return &State{world: w, actions: make(map[string]pabtpkg.IAction)}
}

// World returns the world the state reads.
func (s *State) World() *world.World { return s.world }

// Register adds or replaces the action called name.
func (s *State) Register(name string, a pabtpkg.IAction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions[name] = a
}

// Variable reads key from the world state. Keys are strings or
// fmt.Stringers.
func (s *State) Variable(key any) (any, error) {
	switch k := key.(type) {
	case string:
		return s.world.State.Get(k), nil
	case fmt.Stringer:
		return s.world.State.Get(k.String()), nil
	case nil:
		return nil, errors.New("precondition: nil variable key")
	default:
		return nil, fmt.Errorf("precondition: unsupported key type %T", key)
	}
}

// Actions returns, in name order, the registered actions with an effect
// satisfying failed.
func (s *State) Actions(failed pabtpkg.Condition) ([]pabtpkg.IAction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.actions))
	for name := range s.actions {
		names = append(names, name)
	}
	slices.Sort(names)

	var out []pabtpkg.IAction
	for _, name := range names {
		a := s.actions[name]
		if failed == nil || satisfies(a, failed) {
			out = append(out, a)
		}
	}
	return out, nil
}

func satisfies(a pabtpkg.IAction, failed pabtpkg.Condition) bool {
	for _, e := range a.Effects() {
		if e != nil && e.Key() == failed.Key() && failed.Match(e.Value()) {
			return true
		}
	}
	return false
}

// Effect records the value an action leaves under a key.
type Effect struct {
	key   string
	value any
}

var _ pabtpkg.Effect = (*Effect)(nil)

// Set returns the effect key := value.
func Set(key string, value any) *Effect { return &Effect{key: key, value: value} }

func (e *Effect) Key() any   { return e.key }
func (e *Effect) Value() any { return e.value }

// Action is a planner action: condition groups that must hold before it
// runs, the effects it promises, and the behavior tree that performs it.
type Action struct {
	Name       string
	conditions []pabtpkg.IConditions
	effects    pabtpkg.Effects
	node       bt.Node
}

var _ pabtpkg.IAction = (*Action)(nil)

// NewAction returns an action. It panics on a nil node.
func NewAction(name string, conditions []pabtpkg.IConditions, effects pabtpkg.Effects, node bt.Node) *Action {
	if node == nil {
		panic(fmt.Sprintf("precondition.NewAction: nil node (action=%s)", name))
	}
	return &Action{Name: name, conditions: conditions, effects: effects, node: node}
}

// PlanAction wraps a plan as a planner action. Each tick of the action
// ticks the plan's root once.
func PlanAction(ctx context.Context, name string, p *plan.Plan, conditions []pabtpkg.IConditions, effects pabtpkg.Effects) (*Action, error) {
	root := p.Root()
	if root == nil {
		return nil, fmt.Errorf("precondition: action %s: %w", name, plan.ErrEmptyPlan)
	}
	return NewAction(name, conditions, effects, root.BTNode(ctx)), nil
}

func (a *Action) Conditions() []pabtpkg.IConditions { return a.conditions }
func (a *Action) Effects() pabtpkg.Effects          { return a.effects }
func (a *Action) Node() bt.Node                     { return a.node }

// Goal plans a reactive tree that achieves any of the goal groups from the
// registered actions.
func (s *State) Goal(goal ...pabtpkg.IConditions) (bt.Node, error) {
	if len(goal) == 0 {
		return nil, errors.New("precondition: empty goal")
	}
	p, err := pabtpkg.INew(s, goal)
	if err != nil {
		return nil, fmt.Errorf("precondition: plan goal: %w", err)
	}
	return p.Node(), nil
}

// GoalPlan returns a single-node plan that pursues goal reactively.
func (s *State) GoalPlan(ctx *plan.Context, goal ...pabtpkg.IConditions) (*plan.Plan, error) {
	node, err := s.Goal(goal...)
	if err != nil {
		return nil, err
	}
	return plan.ReactivePlan(ctx, node), nil
}
