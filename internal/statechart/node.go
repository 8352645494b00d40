package statechart

import (
	"sync"
	"sync/atomic"

	"github.com/Tigul/cognitive-robot-abstract-machine/internal/lifecycle"
	"github.com/Tigul/cognitive-robot-abstract-machine/internal/symbolic"
	"github.com/Tigul/cognitive-robot-abstract-machine/internal/trinary"
)

// Node is a motion statechart node. Implementations embed NodeBase and add
// any of the optional hooks: Builder, Expander, Ticker, Starter, Pauser,
// Unpauser, Ender and Resetter.
type Node interface {
	symbolic.Observable
	State() lifecycle.State
	Err() error
	// Var is the node's observation variable, for use in other nodes'
	// conditions.
	Var() symbolic.Expr
	base() *NodeBase
}

// Builder returns the node's observation expression. It is evaluated every
// tick the node runs, unless the node is also a Ticker. Nodes that are
// neither observe Unknown.
type Builder interface {
	Build(ctx *BuildContext) (symbolic.Expr, error)
}

// Expander is implemented by goals. Expand registers child nodes through
// Goal.AddNode and wires their conditions. It runs exactly once.
type Expander interface {
	Expand(ctx *BuildContext) error
}

// Ticker computes the observation while the node is running. An error fails
// the node.
type Ticker interface {
	OnTick(ctx *Context) (trinary.Value, error)
}

// Starter runs on not_started -> running.
type Starter interface {
	OnStart(ctx *Context) error
}

// Pauser runs on running -> paused.
type Pauser interface {
	OnPause(ctx *Context) error
}

// Unpauser runs on paused -> running.
type Unpauser interface {
	OnUnpause(ctx *Context) error
}

// Ender runs on running -> succeeded.
type Ender interface {
	OnEnd(ctx *Context) error
}

// Resetter runs when a started node returns to not_started.
type Resetter interface {
	OnReset(ctx *Context) error
}

// NodeBase carries the name, conditions and lifecycle state shared by all
// nodes. Conditions left nil are defaulted at build time: start True, pause
// False, reset False, end the node's own observation variable.
type NodeBase struct {
	name string

	start, pause, end, reset symbolic.Expr
	observation              symbolic.Expr

	obs   atomic.Int32
	state atomic.Int32

	errMu sync.Mutex
	err   error

	chart    *MotionStatechart
	parent   *NodeBase
	expanded bool
	built    bool
	// held is set when the node was paused from outside its own condition.
	held bool
}

// SetName names the node. Unnamed nodes are named on registration.
func (b *NodeBase) SetName(name string) { b.name = name }

func (b *NodeBase) Name() string { return b.name }

// Observation is the current value of the observation variable.
func (b *NodeBase) Observation() trinary.Value { return trinary.Value(b.obs.Load()) }

// State is the current lifecycle state.
func (b *NodeBase) State() lifecycle.State { return lifecycle.State(b.state.Load()) }

// Err is the cause of a failed node.
func (b *NodeBase) Err() error {
	b.errMu.Lock()
	defer b.errMu.Unlock()
	return b.err
}

func (b *NodeBase) Var() symbolic.Expr { return symbolic.Observe(b) }

func (b *NodeBase) StartCondition() symbolic.Expr { return b.start }
func (b *NodeBase) PauseCondition() symbolic.Expr { return b.pause }
func (b *NodeBase) EndCondition() symbolic.Expr   { return b.end }
func (b *NodeBase) ResetCondition() symbolic.Expr { return b.reset }

// SetStartCondition replaces the start condition. Conditions are frozen once
// the statechart is built.
func (b *NodeBase) SetStartCondition(e symbolic.Expr) { b.setCond(&b.start, e) }
func (b *NodeBase) SetPauseCondition(e symbolic.Expr) { b.setCond(&b.pause, e) }
func (b *NodeBase) SetEndCondition(e symbolic.Expr)   { b.setCond(&b.end, e) }
func (b *NodeBase) SetResetCondition(e symbolic.Expr) { b.setCond(&b.reset, e) }

func (b *NodeBase) setCond(dst *symbolic.Expr, e symbolic.Expr) {
	if b.built {
		panic("statechart: condition of " + b.name + " changed after build")
	}
	*dst = e
}

func (b *NodeBase) base() *NodeBase { return b }

func (b *NodeBase) setState(s lifecycle.State) { b.state.Store(int32(s)) }
func (b *NodeBase) setObs(v trinary.Value)    { b.obs.Store(int32(v)) }

func (b *NodeBase) setErr(err error) {
	b.errMu.Lock()
	b.err = err
	b.errMu.Unlock()
}

// bindDefaults fills in nil conditions.
func (b *NodeBase) bindDefaults() {
	if b.start == nil {
		b.start = symbolic.True
	}
	if b.pause == nil {
		b.pause = symbolic.False
	}
	if b.reset == nil {
		b.reset = symbolic.False
	}
	if b.end == nil {
		b.end = b.Var()
	}
	if b.observation == nil {
		b.observation = symbolic.Unknown
	}
}

// andCond conjoins extra onto an optional condition.
func andCond(existing, extra symbolic.Expr) symbolic.Expr {
	if existing == nil {
		return extra
	}
	return symbolic.And(existing, extra)
}
