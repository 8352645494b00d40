package plan

import (
	"context"
	"log/slog"
	"time"

	"github.com/Tigul/cognitive-robot-abstract-machine/internal/goroutineid"
	"github.com/Tigul/cognitive-robot-abstract-machine/internal/world"
)

// DefaultTickInterval is the tick period Perform uses when the context does
// not set one.
const DefaultTickInterval = 10 * time.Millisecond

// Context carries the world and robot a plan acts on. Plans built for one
// task usually share a single Context.
type Context struct {
	World     *world.World
	Robot     *world.Robot
	SuperPlan *Plan
	Logger    *slog.Logger
	// TickInterval is the period between Perform ticks.
	TickInterval time.Duration
	// Dt is the control-cycle step handed to motion statecharts built for
	// this context. Zero selects the statechart default.
	Dt float64
}

// NewContext returns a context for w and r.
func NewContext(w *world.World, r *world.Robot) *Context {
	return &Context{World: w, Robot: r}
}

func (c *Context) logger() *slog.Logger {
	if c == nil || c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

func (c *Context) tickInterval() time.Duration {
	if c == nil || c.TickInterval <= 0 {
		return DefaultTickInterval
	}
	return c.TickInterval
}

// tickChain links the nodes whose tick is in progress on behalf of one
// caller, innermost first. It crosses goroutines through context values, so
// parallel branches still know their ancestors.
type tickChain struct {
	node *Node
	prev *tickChain
}

type chainKey struct{}

func withChain(ctx context.Context, n *Node) context.Context {
	prev, _ := ctx.Value(chainKey{}).(*tickChain)
	return context.WithValue(ctx, chainKey{}, &tickChain{node: n, prev: prev})
}

// drive identifies one top-level tick of a tree. Nodes record the drive
// they are ticking for, so a control call made from inside that tick can
// tell a sibling branch busy on another goroutine from an outside tick.
type drive struct{ top *Node }

type driveKey struct{}

// withDrive starts a top-level tick of top.
func withDrive(ctx context.Context, top *Node) context.Context {
	return withChain(context.WithValue(ctx, driveKey{}, &drive{top: top}), top)
}

func driveOf(ctx context.Context) *drive {
	if ctx == nil {
		return nil
	}
	d, _ := ctx.Value(driveKey{}).(*drive)
	return d
}

// onCallerChain reports whether n is being ticked on behalf of the caller:
// through ctx, on the current goroutine, or by another branch of the same
// top-level tick. Control calls must not wait for such a node's tick to
// finish; its own tick applies the signal when it returns.
func onCallerChain(ctx context.Context, n *Node) bool {
	if ctx != nil {
		for c, _ := ctx.Value(chainKey{}).(*tickChain); c != nil; c = c.prev {
			if c.node == n {
				return true
			}
		}
	}
	if d := driveOf(ctx); d != nil && n.tickDrive.Load() == d {
		return true
	}
	gid := n.tickGID.Load()
	return gid != 0 && gid == goroutineid.Get()
}

// Handle is the control capability handed to inline code. It reaches the
// live tree without any global state.
type Handle struct {
	ctx  context.Context
	node *Node
	top  *Node
}

// Context returns the tick context. It is cancelled when the driving
// Perform is cancelled.
func (h *Handle) Context() context.Context { return h.ctx }

// Node returns the code node being ticked.
func (h *Handle) Node() *Node { return h.node }

// Root returns the root of the tree being driven.
func (h *Handle) Root() *Node { return h.top }

// Plan returns the plan owning the code node.
func (h *Handle) Plan() *Plan { return h.node.Plan() }

// World returns the world of the code node's plan, or nil.
func (h *Handle) World() *world.World {
	if p := h.node.Plan(); p != nil {
		return p.World()
	}
	return nil
}

// Interrupt interrupts n and its descendants. It is safe to call on an
// ancestor of the code node, and from several branches of a parallel block
// in the same tick.
func (h *Handle) Interrupt(n *Node) { n.InterruptContext(h.ctx) }

// Pause pauses n and its descendants.
func (h *Handle) Pause(n *Node) { n.PauseContext(h.ctx) }

// Resume resumes n and its descendants.
func (h *Handle) Resume(n *Node) { n.ResumeContext(h.ctx) }
