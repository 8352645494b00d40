// Package statechart implements the motion statechart: nodes with tri-valued
// start, pause, end and reset conditions, goals that expand into sub-graphs
// at build time, and a tick engine that drives lifecycle transitions.
//
// A statechart is built once and ticked until it reaches an outcome:
//
//	sc := statechart.New(statechart.WithWorld(w))
//	a := statechart.NewSleep("settle", 0.5)
//	done := statechart.NewEndMotion("done")
//	done.SetStartCondition(a.Var())
//	_ = sc.Add(a, done)
//	if err := sc.Build(ctx); err != nil { ... }
//	for {
//		outcome, err := sc.Tick(ctx)
//		...
//	}
//
// Every tick resolves the auxiliary variables once and evaluates the nodes
// in pre-order (a goal before its children), each against that snapshot.
// A node observes the values already written by nodes evaluated earlier in
// the same tick.
package statechart

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/Tigul/cognitive-robot-abstract-machine/internal/auxvar"
	"github.com/Tigul/cognitive-robot-abstract-machine/internal/goroutineid"
	"github.com/Tigul/cognitive-robot-abstract-machine/internal/lifecycle"
	"github.com/Tigul/cognitive-robot-abstract-machine/internal/symbolic"
	"github.com/Tigul/cognitive-robot-abstract-machine/internal/trinary"
	"github.com/Tigul/cognitive-robot-abstract-machine/internal/world"
)

// DefaultDt is the default control-cycle time step in seconds.
const DefaultDt = 0.05

// Outcome is the overall result of a motion.
type Outcome int

const (
	OutcomeRunning Outcome = iota
	OutcomeSucceeded
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRunning:
		return "running"
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Option configures a MotionStatechart.
type Option func(*MotionStatechart)

// WithWorld sets the world handed to nodes.
func WithWorld(w *world.World) Option {
	return func(c *MotionStatechart) { c.world = w }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *MotionStatechart) { c.logger = l }
}

// WithDt sets the control-cycle time step.
func WithDt(dt float64) Option {
	return func(c *MotionStatechart) {
		if dt > 0 {
			c.dt = dt
		}
	}
}

// WithName names the statechart in logs and errors.
func WithName(name string) Option {
	return func(c *MotionStatechart) { c.name = name }
}

// MotionStatechart owns a graph of nodes and ticks them.
type MotionStatechart struct {
	// mu is held for the duration of Build, Tick and the control signals.
	mu sync.Mutex
	// regMu guards registration, which goals perform from inside Build.
	regMu  sync.Mutex
	top    []Node
	byName map[string]Node
	count  int

	name    string
	world   *world.World
	logger  *slog.Logger
	dt      float64
	aux     *auxvar.Manager
	timeVar *auxvar.Variable

	order   []Node
	ends    []Node
	cancels []Node
	built   bool

	now     float64
	ticks   int
	outcome Outcome
	err     error

	held         atomic.Bool
	interruptReq atomic.Bool
	tickGID      atomic.Int64
}

// New returns an empty statechart.
func New(opts ...Option) *MotionStatechart {
	c := &MotionStatechart{
		byName: make(map[string]Node),
		name:   "motion",
		dt:     DefaultDt,
		aux:    auxvar.NewManager(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.world == nil {
		c.world = world.New(nil, nil)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	v, err := c.aux.CreateFloatVariable(auxvar.Name("time"), func() (float64, error) { return c.now, nil })
	if err != nil {
		panic(err)
	}
	c.timeVar = v
	return c
}

func (c *MotionStatechart) Name() string { return c.name }

// Aux returns the auxiliary variable manager.
func (c *MotionStatechart) Aux() *auxvar.Manager { return c.aux }

// World returns the world handed to nodes.
func (c *MotionStatechart) World() *world.World { return c.world }

// Add registers top-level nodes.
func (c *MotionStatechart) Add(nodes ...Node) error {
	for _, n := range nodes {
		if err := c.register(n, nil); err != nil {
			return err
		}
	}
	return nil
}

func (c *MotionStatechart) register(n Node, parent *NodeBase) error {
	c.regMu.Lock()
	defer c.regMu.Unlock()
	b := n.base()
	if c.built {
		return buildErr("register", n, ErrAlreadyBuilt)
	}
	if b.chart != nil {
		return buildErr("register", n, ErrNodeAlreadyRegistered)
	}
	if b.name == "" {
		b.name = fmt.Sprintf("%s_%d", typeName(n), c.count)
	}
	if _, ok := c.byName[b.name]; ok {
		return buildErr("register", n, ErrDuplicateName)
	}
	b.chart = c
	b.parent = parent
	b.setObs(trinary.False)
	c.byName[b.name] = n
	c.count++
	if parent == nil {
		c.top = append(c.top, n)
	}
	return nil
}

func typeName(n Node) string {
	s := fmt.Sprintf("%T", n)
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		s = s[i+1:]
	}
	return s
}

// Node returns the node registered under name.
func (c *MotionStatechart) Node(name string) (Node, bool) {
	c.regMu.Lock()
	defer c.regMu.Unlock()
	n, ok := c.byName[name]
	return n, ok
}

// Nodes returns every node in evaluation order. Before Build only top-level
// nodes are known.
func (c *MotionStatechart) Nodes() []Node {
	c.regMu.Lock()
	defer c.regMu.Unlock()
	if c.built {
		return append([]Node(nil), c.order...)
	}
	return append([]Node(nil), c.top...)
}

// Build expands every goal, then builds every node bottom-up and binds the
// default conditions.
func (c *MotionStatechart) Build(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isBuilt() {
		return &BuildError{Node: c.name, Op: "build", Err: ErrAlreadyBuilt}
	}
	bctx := &BuildContext{
		Context: ctx,
		Aux:     c.aux,
		World:   c.world,
		Logger:  c.logger,
		Dt:      c.dt,
		chart:   c,
	}
	for _, n := range c.topNodes() {
		if err := c.expandTree(bctx, n); err != nil {
			return err
		}
	}
	var order []Node
	for _, n := range c.topNodes() {
		order = preorder(order, n)
	}
	for i := len(order) - 1; i >= 0; i-- {
		if order[i].base().built {
			continue
		}
		if err := c.build(bctx, order[i]); err != nil {
			return err
		}
	}

	c.regMu.Lock()
	c.order = order
	c.ends, c.cancels = nil, nil
	for _, n := range order {
		switch n.(type) {
		case *EndMotion:
			c.ends = append(c.ends, n)
		case *CancelMotion:
			c.cancels = append(c.cancels, n)
		}
	}
	c.built = true
	c.regMu.Unlock()
	c.logger.Debug("statechart built", "statechart", c.name, "nodes", len(order))
	return nil
}

// Built reports whether Build has completed.
func (c *MotionStatechart) Built() bool { return c.isBuilt() }

func (c *MotionStatechart) isBuilt() bool {
	c.regMu.Lock()
	defer c.regMu.Unlock()
	return c.built
}

func (c *MotionStatechart) topNodes() []Node {
	c.regMu.Lock()
	defer c.regMu.Unlock()
	return append([]Node(nil), c.top...)
}

func (c *MotionStatechart) expandTree(ctx *BuildContext, n Node) error {
	if _, ok := n.(Expander); ok && !n.base().expanded {
		if err := c.expand(ctx, n); err != nil {
			return err
		}
	}
	for _, child := range childrenOf(n) {
		if err := c.expandTree(ctx, child); err != nil {
			return err
		}
	}
	return nil
}

func (c *MotionStatechart) expand(ctx *BuildContext, n Node) error {
	e, ok := n.(Expander)
	if !ok {
		return nil
	}
	b := n.base()
	if b.chart != c {
		return buildErr("expand", n, ErrNotRegistered)
	}
	if b.expanded {
		return buildErr("expand", n, ErrAlreadyExpanded)
	}
	b.expanded = true
	if err := e.Expand(ctx); err != nil {
		return buildErr("expand", n, err)
	}
	return nil
}

func (c *MotionStatechart) build(ctx *BuildContext, n Node) error {
	b := n.base()
	if b.chart != c {
		return buildErr("build", n, ErrNotRegistered)
	}
	if _, ok := n.(Expander); ok && !b.expanded {
		return buildErr("build", n, ErrBuildBeforeExpand)
	}
	if b.built {
		return buildErr("build", n, ErrAlreadyBuilt)
	}
	if bn, ok := n.(Builder); ok {
		expr, err := bn.Build(ctx)
		if err != nil {
			return buildErr("build", n, err)
		}
		b.observation = expr
	}
	b.bindDefaults()
	b.built = true
	return nil
}

func childrenOf(n Node) []Node {
	if g, ok := n.(interface{ Children() []Node }); ok {
		return g.Children()
	}
	return nil
}

func preorder(dst []Node, n Node) []Node {
	dst = append(dst, n)
	for _, child := range childrenOf(n) {
		dst = preorder(dst, child)
	}
	return dst
}

// Tick advances the statechart by one control cycle and returns the
// outcome. Control time does not advance while the statechart is paused.
// An auxiliary-variable error aborts the tick before any transition and is
// returned with OutcomeRunning. A failed outcome returns the cause.
func (c *MotionStatechart) Tick(ctx context.Context) (Outcome, error) {
	gid := goroutineid.Get()
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isBuilt() {
		return OutcomeFailed, ErrNotBuilt
	}
	if c.outcome != OutcomeRunning {
		return c.outcome, c.err
	}
	c.tickGID.Store(gid)
	defer c.tickGID.Store(0)

	snap, err := c.aux.Snapshot()
	if err != nil {
		return OutcomeRunning, fmt.Errorf("statechart %s: tick aborted: %w", c.name, err)
	}
	ectx := &Context{
		Context:  ctx,
		World:    c.world,
		Logger:   c.logger,
		Snapshot: snap,
		Time:     c.now,
		Dt:       c.dt,
		Tick:     c.ticks,
	}
	for _, n := range c.order {
		if c.interruptReq.Load() {
			break
		}
		c.step(ectx, n)
	}
	if c.interruptReq.Swap(false) {
		c.interruptLocked()
		return c.outcome, c.err
	}
	if !c.held.Load() {
		c.now += c.dt
	}
	c.ticks++
	c.outcome, c.err = c.evaluate()
	if c.outcome != OutcomeRunning {
		c.logger.Debug("motion finished", "statechart", c.name, "outcome", c.outcome, "ticks", c.ticks)
	}
	return c.outcome, c.err
}

// Outcome returns the latest outcome and, for failures, the cause.
func (c *MotionStatechart) Outcome() (Outcome, error) {
	if c.reentrant() {
		return c.outcome, c.err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outcome, c.err
}

// Ticks returns the number of completed ticks since the last reset.
func (c *MotionStatechart) Ticks() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticks
}

func (c *MotionStatechart) evaluate() (Outcome, error) {
	for _, n := range c.order {
		if n.State() == lifecycle.Failed {
			return OutcomeFailed, fmt.Errorf("statechart %s: node %q failed: %w", c.name, n.Name(), n.Err())
		}
	}
	for _, n := range c.cancels {
		if n.State() == lifecycle.Succeeded {
			return OutcomeFailed, fmt.Errorf("statechart %s: %q: %w", c.name, n.Name(), n.(*CancelMotion).cause())
		}
	}
	for _, n := range c.ends {
		if n.State() == lifecycle.Succeeded {
			return OutcomeSucceeded, nil
		}
	}
	if len(c.ends) > 0 {
		return OutcomeRunning, nil
	}
	for _, n := range c.top {
		if !n.State().IsTerminal() {
			return OutcomeRunning, nil
		}
	}
	return OutcomeSucceeded, nil
}

// step applies at most one lifecycle transition chain to n.
func (c *MotionStatechart) step(ctx *Context, n Node) {
	b := n.base()
	snap := ctx.Snapshot
	state := b.State()

	if state != lifecycle.NotStarted && c.eval(n, "reset", b.reset, snap) == trinary.True {
		c.resetNode(ctx, n)
		return
	}

	blocked := c.held.Load() || (b.parent != nil && b.parent.State() == lifecycle.Paused)

	switch state {
	case lifecycle.Succeeded, lifecycle.Failed:
		return

	case lifecycle.NotStarted:
		if blocked || (b.parent != nil && b.parent.State() != lifecycle.Running) {
			return
		}
		if c.eval(n, "start", b.start, snap) != trinary.True {
			return
		}
		c.transition(n, lifecycle.Running)
		if h, ok := n.(Starter); ok {
			if err := h.OnStart(ctx); err != nil {
				c.fail(n, err)
				return
			}
		}

	case lifecycle.Paused:
		if blocked {
			return
		}
		if b.held {
			b.held = false
		} else if c.eval(n, "pause", b.pause, snap) != trinary.False {
			return
		}
		c.transition(n, lifecycle.Running)
		if h, ok := n.(Unpauser); ok {
			if err := h.OnUnpause(ctx); err != nil {
				c.fail(n, err)
				return
			}
		}
	}

	if blocked {
		c.pauseNode(ctx, n, true)
		return
	}

	obs, err := c.observe(ctx, n)
	if err != nil {
		c.fail(n, err)
		return
	}
	b.setObs(obs)

	if c.eval(n, "pause", b.pause, snap) == trinary.True {
		c.pauseNode(ctx, n, false)
		return
	}
	if c.eval(n, "end", b.end, snap) == trinary.True {
		c.transition(n, lifecycle.Succeeded)
		b.setObs(trinary.True)
		if h, ok := n.(Ender); ok {
			if err := h.OnEnd(ctx); err != nil {
				c.fail(n, err)
			}
		}
	}
}

func (c *MotionStatechart) observe(ctx *Context, n Node) (trinary.Value, error) {
	if t, ok := n.(Ticker); ok {
		return t.OnTick(ctx)
	}
	return c.eval(n, "observation", n.base().observation, ctx.Snapshot), nil
}

// eval evaluates one of n's conditions, logging why a compiled expression
// came out Unknown.
func (c *MotionStatechart) eval(n Node, which string, e symbolic.Expr, snap *symbolic.Snapshot) trinary.Value {
	v := e.Eval(snap)
	if v != trinary.Unknown {
		return v
	}
	if ce, ok := e.(*symbolic.CompiledExpr); ok {
		if err := ce.LastError(); err != nil {
			c.logger.Debug("statechart condition undecidable",
				"statechart", c.name, "node", n.Name(), "condition", which, "error", err)
		}
	}
	return v
}

func (c *MotionStatechart) transition(n Node, to lifecycle.State) {
	b := n.base()
	c.logger.Debug("statechart transition", "statechart", c.name, "node", b.name, "from", b.State(), "to", to)
	b.setState(to)
	if to != lifecycle.Succeeded && to != lifecycle.Running {
		b.setObs(trinary.False)
	}
}

func (c *MotionStatechart) pauseNode(ctx *Context, n Node, held bool) {
	c.transition(n, lifecycle.Paused)
	n.base().held = held
	if h, ok := n.(Pauser); ok {
		if err := h.OnPause(ctx); err != nil {
			c.fail(n, err)
		}
	}
}

// fail fails n with err and its active descendants with ErrInterrupted.
func (c *MotionStatechart) fail(n Node, err error) {
	c.logger.Warn("statechart node failed", "statechart", c.name, "node", n.Name(), "error", err)
	n.base().setErr(err)
	c.transition(n, lifecycle.Failed)
	c.failDescendants(n)
}

func (c *MotionStatechart) failDescendants(n Node) {
	for _, child := range childrenOf(n) {
		if child.State().IsActive() {
			child.base().setErr(fmt.Errorf("%q failed: %w", n.Name(), ErrInterrupted))
			c.transition(child, lifecycle.Failed)
		}
		c.failDescendants(child)
	}
}

// resetNode returns n and its started descendants to not_started.
func (c *MotionStatechart) resetNode(ctx *Context, n Node) {
	b := n.base()
	c.transition(n, lifecycle.NotStarted)
	b.held = false
	b.setErr(nil)
	if h, ok := n.(Resetter); ok {
		if err := h.OnReset(ctx); err != nil {
			c.fail(n, err)
		}
	}
	for _, child := range childrenOf(n) {
		if child.State() != lifecycle.NotStarted {
			c.resetNode(ctx, child)
		}
	}
}

func (c *MotionStatechart) reentrant() bool {
	gid := c.tickGID.Load()
	return gid != 0 && gid == goroutineid.Get()
}

// Pause holds every node: running nodes pause and nothing starts until
// Resume. Called from within a tick, it takes effect on the nodes not yet
// evaluated.
func (c *MotionStatechart) Pause() {
	c.held.Store(true)
	if c.reentrant() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	ctx := c.controlContext()
	for _, n := range c.order {
		if n.State() == lifecycle.Running {
			c.pauseNode(ctx, n, true)
		}
	}
}

// Resume releases a Pause. Nodes paused by Pause resume immediately. Nodes
// paused by their own condition stay paused until it turns False.
func (c *MotionStatechart) Resume() {
	c.held.Store(false)
	if c.reentrant() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	ctx := c.controlContext()
	for _, n := range c.order {
		b := n.base()
		if n.State() != lifecycle.Paused || !b.held {
			continue
		}
		if b.parent != nil && b.parent.State() == lifecycle.Paused {
			continue
		}
		b.held = false
		c.transition(n, lifecycle.Running)
		if h, ok := n.(Unpauser); ok {
			if err := h.OnUnpause(ctx); err != nil {
				c.fail(n, err)
			}
		}
	}
}

// Paused reports whether the statechart is held by Pause.
func (c *MotionStatechart) Paused() bool { return c.held.Load() }

// Interrupt fails every running or paused node with ErrInterrupted. A motion
// still running ends with OutcomeFailed; a finished one keeps its outcome.
// Once it returns no further hook runs, unless it was called from within a
// tick, in which case the tick stops before the next node.
func (c *MotionStatechart) Interrupt() {
	if c.reentrant() {
		c.interruptReq.Store(true)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interruptLocked()
}

// interruptLocked fails every active node. A motion that already finished
// keeps its outcome.
func (c *MotionStatechart) interruptLocked() {
	for _, n := range c.order {
		if n.State().IsActive() {
			n.base().setErr(ErrInterrupted)
			c.transition(n, lifecycle.Failed)
		}
	}
	if c.outcome == OutcomeRunning {
		c.outcome = OutcomeFailed
		c.err = fmt.Errorf("statechart %s: %w", c.name, ErrInterrupted)
	}
}

// Reset returns every node to not_started and rewinds control time.
func (c *MotionStatechart) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	ctx := c.controlContext()
	for _, n := range c.order {
		if n.State() != lifecycle.NotStarted {
			c.resetNode(ctx, n)
		}
	}
	c.now = 0
	c.ticks = 0
	c.outcome = OutcomeRunning
	c.err = nil
	c.held.Store(false)
	c.interruptReq.Store(false)
}

func (c *MotionStatechart) controlContext() *Context {
	return &Context{
		Context:  context.Background(),
		World:    c.world,
		Logger:   c.logger,
		Snapshot: symbolic.EmptySnapshot(),
		Time:     c.now,
		Dt:       c.dt,
		Tick:     c.ticks,
	}
}
