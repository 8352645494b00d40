package plan

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Tigul/cognitive-robot-abstract-machine/internal/goroutineid"
	"github.com/Tigul/cognitive-robot-abstract-machine/internal/lifecycle"
)

// Node is a unit of the plan tree. Its behavior decides what a tick does;
// a node without one groups its children and runs them in order.
//
// Status changes only through ticks and the control methods. A terminal
// status is left only through Reset.
type Node struct {
	id       uuid.UUID
	behavior Behavior
	plan     atomic.Pointer[Plan]
	status   atomic.Int32

	// tickMu is held for the whole of a tick, which is what control signals
	// wait on.
	tickMu    sync.Mutex
	tickGID   atomic.Int64
	tickDrive atomic.Pointer[drive]

	interrupted atomic.Bool
	paused      atomic.Bool

	mu        sync.Mutex
	err       error
	startTime time.Time
	created   time.Time
}

// NewNode returns a detached node running b. A nil b makes a grouping node.
func NewNode(b Behavior) *Node {
	return &Node{id: uuid.New(), behavior: b, created: time.Now()}
}

func (n *Node) ID() uuid.UUID { return n.id }

// Behavior returns the node's behavior, nil for grouping nodes.
func (n *Node) Behavior() Behavior { return n.behavior }

// Kind names the node's behavior.
func (n *Node) Kind() string {
	if n.behavior == nil {
		return "group"
	}
	return n.behavior.Kind()
}

func (n *Node) Status() lifecycle.State { return lifecycle.State(n.status.Load()) }

// StartTime returns when the node first started running, or its creation
// time before that.
func (n *Node) StartTime() time.Time {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.startTime.IsZero() {
		return n.created
	}
	return n.startTime
}

// Err returns the cause of a failure, or nil.
func (n *Node) Err() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.err
}

// Plan returns the plan the node belongs to, or nil while detached.
func (n *Node) Plan() *Plan { return n.plan.Load() }

// Interrupted reports whether an interrupt reached the node since its last
// reset.
func (n *Node) Interrupted() bool { return n.interrupted.Load() }

func (n *Node) String() string {
	return fmt.Sprintf("%s(%s)", n.Kind(), n.id.String()[:8])
}

// Parent returns the node's parent, or nil for a root or detached node.
func (n *Node) Parent() *Node {
	if p := n.Plan(); p != nil {
		return p.parentOf(n)
	}
	return nil
}

// Children returns the direct children in edge insertion order.
func (n *Node) Children() []*Node {
	if p := n.Plan(); p != nil {
		return p.childrenOf(n)
	}
	return nil
}

// AllParents returns the ancestors, nearest first.
func (n *Node) AllParents() []*Node {
	var out []*Node
	for a := n.Parent(); a != nil; a = a.Parent() {
		out = append(out, a)
	}
	return out
}

// RecursiveChildren returns every descendant in pre-order.
func (n *Node) RecursiveChildren() []*Node {
	if p := n.Plan(); p != nil {
		return p.descendants(n)
	}
	return nil
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool { return len(n.Children()) == 0 }

// Subtree returns a read-only plan view rooted at the node.
func (n *Node) Subtree() (*Plan, error) {
	p := n.Plan()
	if p == nil {
		return nil, fmt.Errorf("%w: %s is detached", ErrEmptyPlan, n.id)
	}
	return p.Subtree(n)
}

func (n *Node) context() *Context {
	if p := n.Plan(); p != nil {
		return p.ctx
	}
	return nil
}

// transition moves the node to to. Terminal states are left only for
// NotStarted.
func (n *Node) transition(to lifecycle.State) bool {
	for {
		cur := n.status.Load()
		from := lifecycle.State(cur)
		if from == to || (from.IsTerminal() && to != lifecycle.NotStarted) {
			return false
		}
		if n.status.CompareAndSwap(cur, int32(to)) {
			n.context().logger().Debug("plan node transition",
				"node", n.id, "kind", n.Kind(), "from", from, "to", to)
			return true
		}
	}
}

func (n *Node) start() {
	if n.transition(lifecycle.Running) {
		n.mu.Lock()
		n.startTime = time.Now()
		n.mu.Unlock()
	}
}

func (n *Node) fail(err error) bool {
	if !n.transition(lifecycle.Failed) {
		return false
	}
	n.mu.Lock()
	n.err = err
	n.mu.Unlock()
	if !IsInterrupt(err) {
		n.context().logger().Warn("plan node failed", "node", n.id, "kind", n.Kind(), "error", err)
	}
	return true
}

type tickContext struct {
	ctx context.Context
	top *Node
}

// child ticks c on behalf of the node ticking with tc.
func (tc *tickContext) child(c *Node) (lifecycle.State, error) {
	return c.tick(&tickContext{ctx: withChain(tc.ctx, c), top: tc.top})
}

func (n *Node) tick(tc *tickContext) (lifecycle.State, error) {
	n.tickMu.Lock()
	defer n.tickMu.Unlock()
	n.tickGID.Store(goroutineid.Get())
	defer n.tickGID.Store(0)
	n.tickDrive.Store(driveOf(tc.ctx))
	defer n.tickDrive.Store(nil)

	if st := n.Status(); st.IsTerminal() {
		return st, n.Err()
	}
	if n.interrupted.Load() {
		n.fail(ErrInterrupted)
		return n.Status(), n.Err()
	}
	if n.paused.Load() {
		if n.Status() == lifecycle.Running && n.transition(lifecycle.Paused) {
			n.signal(func(c controllable) { c.onPause() })
		}
		return n.Status(), nil
	}
	switch n.Status() {
	case lifecycle.NotStarted:
		n.start()
	case lifecycle.Paused:
		n.transition(lifecycle.Running)
		n.signal(func(c controllable) { c.onResume() })
	}

	st, err := n.run(tc)

	if n.interrupted.Load() {
		n.fail(ErrInterrupted)
		return n.Status(), n.Err()
	}
	switch st {
	case lifecycle.Succeeded:
		n.transition(lifecycle.Succeeded)
	case lifecycle.Failed:
		if err == nil {
			err = fmt.Errorf("%s failed", n.Kind())
		}
		n.fail(&NodeError{Node: n.id, Kind: n.Kind(), Err: err})
	default:
		if n.paused.Load() && n.transition(lifecycle.Paused) {
			n.signal(func(c controllable) { c.onPause() })
		}
	}
	return n.Status(), n.Err()
}

func (n *Node) run(tc *tickContext) (lifecycle.State, error) {
	if n.behavior == nil {
		return runSequence(tc, n)
	}
	return n.behavior.tick(tc, n)
}

func (n *Node) signal(fn func(controllable)) {
	if c, ok := n.behavior.(controllable); ok {
		fn(c)
	}
}

// inheritSignals hands an interrupt or pause already applied to parent to
// nodes attached below it.
func inheritSignals(parent *Node, nodes []*Node) {
	switch {
	case parent.interrupted.Load():
		for _, n := range nodes {
			n.interrupted.Store(true)
			n.fail(ErrInterrupted)
		}
	case parent.paused.Load():
		for _, n := range nodes {
			n.paused.Store(true)
		}
	}
}

// Interrupt forces the node and its descendants to failed with
// ErrInterrupted. When it returns no tick is in progress anywhere in the
// subtree and none will change its state again until Reset.
//
// Interrupt must not be called from code running inside a tick of the
// subtree on another goroutine; use InterruptContext with the tick context,
// which Handle does.
func (n *Node) Interrupt() { n.InterruptContext(context.Background()) }

// InterruptContext is Interrupt for callers that may be inside a tick of the
// subtree. Nodes on ctx's tick chain, and nodes busy on another goroutine for
// the same top-level tick, are failed without waiting for their tick to
// finish.
func (n *Node) InterruptContext(ctx context.Context) {
	targets := n.subtreeNodes()
	for _, t := range targets {
		t.interrupted.Store(true)
	}
	for _, t := range targets {
		t.locked(ctx, func() {
			if t.fail(ErrInterrupted) {
				t.signal(func(c controllable) { c.onInterrupt() })
			}
		})
	}
}

// Pause holds the node and its descendants. Running nodes move to paused and
// nodes that have not started yet will not start until resumed.
func (n *Node) Pause() { n.PauseContext(context.Background()) }

// PauseContext is Pause for callers that may be inside a tick of the subtree.
// Nodes ticking for the same top-level tick as ctx move to paused when their
// tick returns.
func (n *Node) PauseContext(ctx context.Context) {
	targets := n.subtreeNodes()
	for _, t := range targets {
		t.paused.Store(true)
	}
	for _, t := range targets {
		if onCallerChain(ctx, t) {
			continue
		}
		t.tickMu.Lock()
		if t.Status() == lifecycle.Running && t.transition(lifecycle.Paused) {
			t.signal(func(c controllable) { c.onPause() })
		}
		t.tickMu.Unlock()
	}
}

// Resume lifts a pause from the node and its descendants.
func (n *Node) Resume() { n.ResumeContext(context.Background()) }

// ResumeContext is Resume for callers that may be inside a tick of the
// subtree.
func (n *Node) ResumeContext(ctx context.Context) {
	targets := n.subtreeNodes()
	for _, t := range targets {
		t.paused.Store(false)
	}
	for _, t := range targets {
		if onCallerChain(ctx, t) {
			continue
		}
		t.tickMu.Lock()
		if t.Status() == lifecycle.Paused && t.transition(lifecycle.Running) {
			t.signal(func(c controllable) { c.onResume() })
		}
		t.tickMu.Unlock()
	}
}

// Reset returns the node and its descendants to not started, clearing
// failures and signals.
func (n *Node) Reset() { n.ResetContext(context.Background()) }

// ResetContext is Reset for callers that may be inside a tick of the subtree.
func (n *Node) ResetContext(ctx context.Context) {
	for _, t := range n.subtreeNodes() {
		t.locked(ctx, func() {
			t.interrupted.Store(false)
			t.paused.Store(false)
			t.transition(lifecycle.NotStarted)
			t.mu.Lock()
			t.err = nil
			t.startTime = time.Time{}
			t.mu.Unlock()
			t.signal(func(c controllable) { c.onReset() })
		})
	}
}

// locked runs fn under the node's tick mutex unless the caller is already
// inside the node's tick.
func (n *Node) locked(ctx context.Context, fn func()) {
	if onCallerChain(ctx, n) {
		fn()
		return
	}
	n.tickMu.Lock()
	defer n.tickMu.Unlock()
	fn()
}

func (n *Node) subtreeNodes() []*Node {
	return append([]*Node{n}, n.RecursiveChildren()...)
}
