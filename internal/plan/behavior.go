package plan

import (
	"fmt"

	bt "github.com/joeycumines/go-behaviortree"
	"golang.org/x/sync/errgroup"

	"github.com/Tigul/cognitive-robot-abstract-machine/internal/lifecycle"
	"github.com/Tigul/cognitive-robot-abstract-machine/internal/statechart"
)

// Behavior is what a node does when ticked. The set is closed; build
// behaviors with Sequential, Parallel, Code, Motion, Expand and Reactive.
type Behavior interface {
	Kind() string
	tick(tc *tickContext, n *Node) (lifecycle.State, error)
}

// controllable behaviors hold state of their own that control signals must
// reach.
type controllable interface {
	onPause()
	onResume()
	onInterrupt()
	onReset()
}

type sequential struct{}

// Sequential runs children one at a time in edge order. A child starts on the
// tick after its predecessor succeeds, and the first failure fails the block.
func Sequential() Behavior { return sequential{} }

func (sequential) Kind() string { return "sequential" }

func (sequential) tick(tc *tickContext, n *Node) (lifecycle.State, error) {
	return runSequence(tc, n)
}

func runSequence(tc *tickContext, n *Node) (lifecycle.State, error) {
	children := n.Children()
	for i, c := range children {
		if c.Status() == lifecycle.Succeeded {
			continue
		}
		st, err := tc.child(c)
		switch st {
		case lifecycle.Succeeded:
			if i == len(children)-1 {
				return lifecycle.Succeeded, nil
			}
			return lifecycle.Running, nil
		case lifecycle.Failed:
			return lifecycle.Failed, err
		default:
			return lifecycle.Running, nil
		}
	}
	return lifecycle.Succeeded, nil
}

type parallel struct{}

// Parallel ticks every unfinished child concurrently and waits for all of
// them. The block fails as soon as a child fails, interrupting the rest, and
// succeeds once all children have.
func Parallel() Behavior { return parallel{} }

func (parallel) Kind() string { return "parallel" }

func (parallel) tick(tc *tickContext, n *Node) (lifecycle.State, error) {
	children := n.Children()
	type result struct {
		st  lifecycle.State
		err error
	}
	results := make([]result, len(children))
	var g errgroup.Group
	for i, c := range children {
		if st := c.Status(); st.IsTerminal() {
			results[i] = result{st, c.Err()}
			continue
		}
		g.Go(func() error {
			st, err := tc.child(c)
			results[i] = result{st, err}
			return nil
		})
	}
	_ = g.Wait()

	done := true
	for i, r := range results {
		if r.st == lifecycle.Failed {
			for j, c := range children {
				if j != i && !results[j].st.IsTerminal() {
					c.InterruptContext(tc.ctx)
				}
			}
			return lifecycle.Failed, r.err
		}
		done = done && r.st == lifecycle.Succeeded
	}
	if done {
		return lifecycle.Succeeded, nil
	}
	return lifecycle.Running, nil
}

// CodeFunc is the body of a code node.
type CodeFunc func(h *Handle) error

type code struct{ fn CodeFunc }

// Code runs fn once, synchronously, as the node's whole tick. The node
// succeeds unless fn returns an error or panics.
func Code(fn CodeFunc) Behavior {
	if fn == nil {
		panic("plan: nil code function")
	}
	return code{fn: fn}
}

func (code) Kind() string { return "code" }

func (b code) tick(tc *tickContext, n *Node) (st lifecycle.State, err error) {
	defer func() {
		if r := recover(); r != nil {
			st, err = lifecycle.Failed, fmt.Errorf("panic: %v", r)
		}
	}()
	if err := b.fn(&Handle{ctx: tc.ctx, node: n, top: tc.top}); err != nil {
		return lifecycle.Failed, err
	}
	return lifecycle.Succeeded, nil
}

// motion runs a statechart, one chart tick per plan tick.
type motion struct{ chart *statechart.MotionStatechart }

// Motion runs chart, building it on the node's first tick. A provider error
// aborting a chart tick fails the node.
func Motion(chart *statechart.MotionStatechart) Behavior {
	if chart == nil {
		panic("plan: nil statechart")
	}
	return &motion{chart: chart}
}

func (*motion) Kind() string { return "motion" }

// Chart returns the statechart the node runs.
func (b *motion) Chart() *statechart.MotionStatechart { return b.chart }

func (b *motion) tick(tc *tickContext, _ *Node) (lifecycle.State, error) {
	if !b.chart.Built() {
		if err := b.chart.Build(tc.ctx); err != nil {
			return lifecycle.Failed, err
		}
	}
	outcome, err := b.chart.Tick(tc.ctx)
	switch {
	case outcome == statechart.OutcomeSucceeded:
		return lifecycle.Succeeded, nil
	case outcome == statechart.OutcomeFailed, err != nil:
		return lifecycle.Failed, err
	default:
		return lifecycle.Running, nil
	}
}

func (b *motion) onPause()     { b.chart.Pause() }
func (b *motion) onResume()    { b.chart.Resume() }
func (b *motion) onInterrupt() { b.chart.Interrupt() }
func (b *motion) onReset()     { b.chart.Reset() }

// Action is a designator: a description of robot behavior that expands into
// a concrete sub-plan when it starts.
type Action interface {
	Plan(ctx *Context) (*Plan, error)
}

type expand struct {
	action  Action
	mounted *Node
}

// Expand resolves a on the node's first tick and mounts the resulting plan
// below the node, which then follows the mounted root.
func Expand(a Action) Behavior {
	if a == nil {
		panic("plan: nil action")
	}
	return &expand{action: a}
}

func (*expand) Kind() string { return "action" }

// Action returns the designator.
func (b *expand) Action() Action { return b.action }

func (b *expand) tick(tc *tickContext, n *Node) (lifecycle.State, error) {
	if b.mounted == nil {
		host := n.Plan()
		sub, err := b.action.Plan(host.actionContext())
		if err != nil {
			return lifecycle.Failed, fmt.Errorf("expand %T: %w", b.action, err)
		}
		root := sub.Root()
		if err := host.Mount(sub, n); err != nil {
			return lifecycle.Failed, fmt.Errorf("mount %T: %w", b.action, err)
		}
		b.mounted = root
	}
	return tc.child(b.mounted)
}

type reactive struct{ node bt.Node }

// Reactive ticks a behavior tree, mapping its statuses onto the node.
func Reactive(node bt.Node) Behavior {
	if node == nil {
		panic("plan: nil behavior tree")
	}
	return reactive{node: node}
}

func (reactive) Kind() string { return "reactive" }

func (b reactive) tick(*tickContext, *Node) (lifecycle.State, error) {
	status, err := b.node.Tick()
	switch {
	case err != nil:
		return lifecycle.Failed, err
	case status == bt.Success:
		return lifecycle.Succeeded, nil
	case status == bt.Failure:
		return lifecycle.Failed, ErrReactiveFailure
	default:
		return lifecycle.Running, nil
	}
}
