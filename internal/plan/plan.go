// Package plan implements the executable plan tree: nodes joined by
// parent/child edges, behaviors that run them, and the lifecycle signals
// (pause, resume, interrupt, reset) that propagate through them.
//
// Plans are built programmatically:
//
//	p, err := plan.SequentialPlan(ctx,
//		robotplans.NewMoveTorso(robotplans.TorsoHigh),
//		plan.CodePlan(ctx, func(h *plan.Handle) error { return nil }),
//	)
//	if err != nil {
//		return err
//	}
//	err = p.Perform(context.Background())
package plan

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/Tigul/cognitive-robot-abstract-machine/internal/lifecycle"
	"github.com/Tigul/cognitive-robot-abstract-machine/internal/world"
)

// Edge is a directed parent/child pair.
type Edge struct {
	Parent, Child *Node
}

// Plan owns a tree of nodes. Edges keep insertion order, which is also the
// order children run in.
type Plan struct {
	mu       sync.RWMutex
	root     *Node
	nodes    []*Node
	members  map[*Node]struct{}
	edges    []Edge
	parent   map[*Node]*Node
	children map[*Node][]*Node
	ctx      *Context
	super    *Plan
	view     bool
}

// New returns a plan rooted at root. It panics if root already belongs to a
// plan.
func New(ctx *Context, root *Node) *Plan {
	if root == nil {
		panic("plan: nil root")
	}
	if root.Plan() != nil {
		panic(fmt.Sprintf("plan: root %s already belongs to a plan", root.id))
	}
	p := &Plan{
		root:     root,
		members:  make(map[*Node]struct{}),
		parent:   make(map[*Node]*Node),
		children: make(map[*Node][]*Node),
		ctx:      ctx,
	}
	p.addLocked(root)
	return p
}

// Root returns the root node, or nil once the plan was mounted elsewhere.
func (p *Plan) Root() *Node {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.root
}

// Nodes returns the nodes in insertion order.
func (p *Plan) Nodes() []*Node {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.nodes)
}

// Edges returns the edges in insertion order.
func (p *Plan) Edges() []Edge {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.edges)
}

// HasNode reports whether n is in the plan.
func (p *Plan) HasNode(n *Node) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.members[n]
	return ok
}

// HasEdge reports whether the edge parent -> child is in the plan.
func (p *Plan) HasEdge(parent, child *Node) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.parent[child] == parent && parent != nil
}

// Context returns the plan's context.
func (p *Plan) Context() *Context { return p.ctx }

// World returns the context world, falling back to the super plan's.
func (p *Plan) World() *world.World {
	if p.ctx != nil && p.ctx.World != nil {
		return p.ctx.World
	}
	if s := p.SuperPlan(); s != nil {
		return s.World()
	}
	return nil
}

// Robot returns the context robot, falling back to the super plan's.
func (p *Plan) Robot() *world.Robot {
	if p.ctx != nil && p.ctx.Robot != nil {
		return p.ctx.Robot
	}
	if s := p.SuperPlan(); s != nil {
		return s.Robot()
	}
	return nil
}

// actionContext is handed to actions expanded inside p: p's context with
// the world and robot resolved through super plans, and p as super plan.
func (p *Plan) actionContext() *Context {
	var c Context
	if p.ctx != nil {
		c = *p.ctx
	}
	c.World, c.Robot, c.SuperPlan = p.World(), p.Robot(), p
	return &c
}

// SuperPlan returns the plan this one was mounted into, or the context's
// super plan.
func (p *Plan) SuperPlan() *Plan {
	p.mu.RLock()
	s := p.super
	p.mu.RUnlock()
	if s != nil {
		return s
	}
	if p.ctx != nil {
		return p.ctx.SuperPlan
	}
	return nil
}

// AddNode attaches n without an edge. Adding a node twice is a no-op.
func (p *Plan) AddNode(n *Node) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.view {
		return ErrReadOnly
	}
	return p.attachLocked(n)
}

func (p *Plan) attachLocked(n *Node) error {
	if err := p.checkAttachLocked(n); err != nil {
		return err
	}
	if _, ok := p.members[n]; !ok {
		p.addLocked(n)
	}
	return nil
}

// checkAttachLocked reports whether n is a member of p or free to join it.
func (p *Plan) checkAttachLocked(n *Node) error {
	if _, ok := p.members[n]; ok {
		return nil
	}
	if n.Plan() != nil {
		return fmt.Errorf("%w: %s", ErrForeignNode, n.id)
	}
	return nil
}

func (p *Plan) addLocked(n *Node) {
	p.members[n] = struct{}{}
	p.nodes = append(p.nodes, n)
	n.plan.Store(p)
}

// AddEdge records parent -> child, attaching either node if needed. Adding an
// existing edge again is a no-op. A second parent for child, an edge into the
// root, or an edge closing a cycle is rejected.
func (p *Plan) AddEdge(parent, child *Node) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.view {
		return ErrReadOnly
	}
	if parent == child {
		return ErrCycle
	}
	if prev, ok := p.parent[child]; ok {
		if prev == parent {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrMultipleParents, child.id)
	}
	if child == p.root {
		return ErrRootParent
	}
	for a := parent; a != nil; a = p.parent[a] {
		if a == child {
			return ErrCycle
		}
	}
	// Neither node is attached unless both can be.
	for _, n := range []*Node{parent, child} {
		if err := p.checkAttachLocked(n); err != nil {
			return err
		}
	}
	for _, n := range []*Node{parent, child} {
		if _, ok := p.members[n]; !ok {
			p.addLocked(n)
		}
	}
	p.linkLocked(parent, child)
	inheritSignals(parent, []*Node{child})
	return nil
}

func (p *Plan) linkLocked(parent, child *Node) {
	p.edges = append(p.edges, Edge{Parent: parent, Child: child})
	p.parent[child] = parent
	p.children[parent] = append(p.children[parent], child)
}

// Mount grafts other into p with an edge from at to other's root. A nil at
// means p's root. Every grafted node is rebound to p and other is left
// empty. Mounting under an interrupted or paused node passes the signal on
// to the grafted nodes.
func (p *Plan) Mount(other *Plan, at *Node) error {
	if other == p {
		return fmt.Errorf("%w: cannot mount a plan into itself", ErrCycle)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.view || other.view {
		return ErrReadOnly
	}
	if at == nil {
		at = p.root
	}
	if _, ok := p.members[at]; !ok {
		return fmt.Errorf("%w: mount point %s", ErrForeignNode, at.id)
	}

	other.mu.Lock()
	defer other.mu.Unlock()
	if other.root == nil {
		return ErrEmptyPlan
	}
	grafted := other.nodes
	for _, n := range grafted {
		p.members[n] = struct{}{}
		p.nodes = append(p.nodes, n)
		n.plan.Store(p)
	}
	for _, e := range other.edges {
		p.linkLocked(e.Parent, e.Child)
	}
	p.linkLocked(at, other.root)

	other.super = p
	other.root = nil
	other.nodes = nil
	other.edges = nil
	other.members = make(map[*Node]struct{})
	other.parent = make(map[*Node]*Node)
	other.children = make(map[*Node][]*Node)

	inheritSignals(at, grafted)
	return nil
}

// Subtree returns a read-only view rooted at n holding n's descendants and
// the edges between them. The nodes stay owned by their plan.
func (p *Plan) Subtree(n *Node) (*Plan, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if _, ok := p.members[n]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrForeignNode, n.id)
	}
	v := &Plan{
		root:     n,
		members:  make(map[*Node]struct{}),
		parent:   make(map[*Node]*Node),
		children: make(map[*Node][]*Node),
		ctx:      p.ctx,
		super:    p.super,
		view:     true,
	}
	v.members[n] = struct{}{}
	v.nodes = append(v.nodes, n)
	for _, d := range p.descendantsLocked(n) {
		v.members[d] = struct{}{}
		v.nodes = append(v.nodes, d)
	}
	for _, e := range p.edges {
		if _, ok := v.members[e.Child]; ok && e.Child != n {
			v.linkLocked(e.Parent, e.Child)
		}
	}
	return v, nil
}

func (p *Plan) parentOf(n *Node) *Node {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.parent[n]
}

func (p *Plan) childrenOf(n *Node) []*Node {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.children[n])
}

func (p *Plan) descendants(n *Node) []*Node {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.descendantsLocked(n)
}

// descendantsLocked lists n's descendants in pre-order.
func (p *Plan) descendantsLocked(n *Node) []*Node {
	var out []*Node
	var walk func(*Node)
	walk = func(m *Node) {
		for _, c := range p.children[m] {
			out = append(out, c)
			walk(c)
		}
	}
	walk(n)
	return out
}

// Tick advances the plan's root by one tick.
func (p *Plan) Tick(ctx context.Context) (lifecycle.State, error) {
	root := p.Root()
	if root == nil {
		return lifecycle.NotStarted, ErrEmptyPlan
	}
	return root.tick(&tickContext{ctx: withDrive(ctx, root), top: root})
}
