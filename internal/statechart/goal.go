package statechart

import (
	"github.com/Tigul/cognitive-robot-abstract-machine/internal/symbolic"
)

// Goal is a composite node. A goal type embeds Goal and implements Expander
// to register its children. Children only start while their goal is running
// and are held while it is paused.
//
// Unless the embedding type provides its own Build, a goal observes the
// conjunction of its children's observation variables.
type Goal struct {
	NodeBase
	children []Node
}

// AddNode registers a child. Each node may be registered once.
func (g *Goal) AddNode(n Node) error {
	if g.chart == nil {
		return &BuildError{Node: g.name, Op: "add node", Err: ErrNotRegistered}
	}
	if err := g.chart.register(n, &g.NodeBase); err != nil {
		return err
	}
	g.children = append(g.children, n)
	return nil
}

// Children returns the registered children in registration order.
func (g *Goal) Children() []Node { return append([]Node(nil), g.children...) }

func (g *Goal) Build(*BuildContext) (symbolic.Expr, error) {
	return childConjunction(g.children), nil
}

func childConjunction(children []Node) symbolic.Expr {
	vars := make([]symbolic.Expr, len(children))
	for i, c := range children {
		vars[i] = c.Var()
	}
	return symbolic.And(vars...)
}

// SequenceGoal runs its nodes one after another: each node's start condition
// is conjoined with its predecessor's observation. It observes its last
// node.
type SequenceGoal struct {
	Goal
	nodes []Node
}

// NewSequenceGoal returns a goal running nodes in order.
func NewSequenceGoal(name string, nodes ...Node) *SequenceGoal {
	g := &SequenceGoal{nodes: nodes}
	g.SetName(name)
	return g
}

func (g *SequenceGoal) Expand(*BuildContext) error {
	var prev Node
	for _, n := range g.nodes {
		if err := g.AddNode(n); err != nil {
			return err
		}
		if prev != nil {
			b := n.base()
			b.start = andCond(b.start, prev.Var())
		}
		prev = n
	}
	return nil
}

func (g *SequenceGoal) Build(*BuildContext) (symbolic.Expr, error) {
	if len(g.nodes) == 0 {
		return symbolic.True, nil
	}
	return g.nodes[len(g.nodes)-1].Var(), nil
}

// ParallelGoal starts all its nodes together and observes their conjunction.
type ParallelGoal struct {
	Goal
	nodes []Node
}

// NewParallelGoal returns a goal running nodes concurrently.
func NewParallelGoal(name string, nodes ...Node) *ParallelGoal {
	g := &ParallelGoal{nodes: nodes}
	g.SetName(name)
	return g
}

func (g *ParallelGoal) Expand(*BuildContext) error {
	for _, n := range g.nodes {
		if err := g.AddNode(n); err != nil {
			return err
		}
	}
	return nil
}
