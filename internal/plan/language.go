package plan

import (
	"fmt"

	bt "github.com/joeycumines/go-behaviortree"

	"github.com/Tigul/cognitive-robot-abstract-machine/internal/statechart"
)

// SequentialPlan returns a plan whose root runs items in order. Each item is
// a *Plan, mounted as is, or an Action, wrapped with ActionPlan.
func SequentialPlan(ctx *Context, items ...any) (*Plan, error) {
	return composite(ctx, Sequential(), items)
}

// ParallelPlan returns a plan whose root runs items concurrently.
func ParallelPlan(ctx *Context, items ...any) (*Plan, error) {
	return composite(ctx, Parallel(), items)
}

func composite(ctx *Context, b Behavior, items []any) (*Plan, error) {
	p := New(ctx, NewNode(b))
	for i, item := range items {
		var sub *Plan
		switch v := item.(type) {
		case *Plan:
			sub = v
		case Action:
			sub = ActionPlan(ctx, v)
		default:
			return nil, fmt.Errorf("%w: item %d is %T", ErrInvalidItem, i, item)
		}
		if err := p.Mount(sub, nil); err != nil {
			return nil, fmt.Errorf("plan: mount item %d: %w", i, err)
		}
	}
	return p, nil
}

// CodePlan returns a single-node plan running fn.
func CodePlan(ctx *Context, fn CodeFunc) *Plan { return New(ctx, NewNode(Code(fn))) }

// ActionPlan returns a single-node plan that expands a when it starts.
func ActionPlan(ctx *Context, a Action) *Plan { return New(ctx, NewNode(Expand(a))) }

// MotionPlan returns a single-node plan running sc.
func MotionPlan(ctx *Context, sc *statechart.MotionStatechart) *Plan {
	return New(ctx, NewNode(Motion(sc)))
}

// ReactivePlan returns a single-node plan ticking node.
func ReactivePlan(ctx *Context, node bt.Node) *Plan { return New(ctx, NewNode(Reactive(node))) }

// ActionOf returns the designator of an action node.
func ActionOf(n *Node) (Action, bool) {
	if b, ok := n.behavior.(*expand); ok {
		return b.action, true
	}
	return nil, false
}

// ChartOf returns the statechart of a motion node.
func ChartOf(n *Node) (*statechart.MotionStatechart, bool) {
	if b, ok := n.behavior.(*motion); ok {
		return b.chart, true
	}
	return nil, false
}
