package statechart

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/Tigul/cognitive-robot-abstract-machine/internal/symbolic"
	"github.com/Tigul/cognitive-robot-abstract-machine/internal/trinary"
	"github.com/Tigul/cognitive-robot-abstract-machine/internal/world"
)

// ConstTrueNode observes True and so succeeds on its first tick.
type ConstTrueNode struct{ NodeBase }

func NewConstTrue(name string) *ConstTrueNode {
	n := new(ConstTrueNode)
	n.SetName(name)
	return n
}

func (*ConstTrueNode) Build(*BuildContext) (symbolic.Expr, error) { return symbolic.True, nil }

// ConstFalseNode observes False and never ends on its own.
type ConstFalseNode struct{ NodeBase }

func NewConstFalse(name string) *ConstFalseNode {
	n := new(ConstFalseNode)
	n.SetName(name)
	return n
}

func (*ConstFalseNode) Build(*BuildContext) (symbolic.Expr, error) { return symbolic.False, nil }

// Sleep observes True once Seconds of control time have elapsed since its
// first running tick.
type Sleep struct {
	NodeBase
	Seconds float64

	start   float64
	started bool
}

func NewSleep(name string, seconds float64) *Sleep {
	n := &Sleep{Seconds: seconds}
	n.SetName(name)
	return n
}

func (n *Sleep) OnStart(*Context) error {
	n.started = false
	return nil
}

func (n *Sleep) OnTick(ctx *Context) (trinary.Value, error) {
	if !n.started {
		n.start, n.started = ctx.Time, true
	}
	return trinary.FromBool(ctx.Time-n.start >= n.Seconds), nil
}

// CountSeconds observes True once Seconds of world-clock time have elapsed
// since it started, and Unknown until then.
type CountSeconds struct {
	NodeBase
	Seconds float64

	start float64
}

func NewCountSeconds(name string, seconds float64) *CountSeconds {
	n := &CountSeconds{Seconds: seconds}
	n.SetName(name)
	return n
}

func (n *CountSeconds) OnStart(ctx *Context) error {
	n.start = ctx.Now()
	return nil
}

func (n *CountSeconds) OnTick(ctx *Context) (trinary.Value, error) {
	if ctx.Now()-n.start >= n.Seconds {
		return trinary.True, nil
	}
	return trinary.Unknown, nil
}

// Pulse observes True on its first running tick and False afterwards, until
// reset. Its end condition defaults to False so the pulse stays observable.
type Pulse struct {
	NodeBase
	triggered bool
}

func NewPulse(name string) *Pulse {
	n := new(Pulse)
	n.SetName(name)
	n.SetEndCondition(symbolic.False)
	return n
}

func (n *Pulse) OnTick(*Context) (trinary.Value, error) {
	if n.triggered {
		return trinary.False, nil
	}
	n.triggered = true
	return trinary.True, nil
}

func (n *Pulse) OnReset(*Context) error {
	n.triggered = false
	return nil
}

// Print emits Message every tick it runs and observes True. Without Out the
// message goes to the statechart's logger.
type Print struct {
	NodeBase
	Message string
	Out     io.Writer
}

func NewPrint(name, message string) *Print {
	n := &Print{Message: message}
	n.SetName(name)
	return n
}

func (n *Print) OnTick(ctx *Context) (trinary.Value, error) {
	if n.Out == nil {
		ctx.Logger.Info(n.Message, "node", n.Name())
		return trinary.True, nil
	}
	if _, err := fmt.Fprintln(n.Out, n.Message); err != nil {
		return trinary.Unknown, err
	}
	return trinary.True, nil
}

// CollisionMatrixUpdater pushes Entries to the world's collision scene and
// observes True. A scene error fails the node.
type CollisionMatrixUpdater struct {
	NodeBase
	Entries []world.CollisionEntry
}

func NewCollisionMatrixUpdater(name string, entries ...world.CollisionEntry) *CollisionMatrixUpdater {
	n := &CollisionMatrixUpdater{Entries: entries}
	n.SetName(name)
	return n
}

func (n *CollisionMatrixUpdater) OnTick(ctx *Context) (trinary.Value, error) {
	if ctx.World == nil || ctx.World.Scene == nil {
		return trinary.Unknown, errors.New("no collision scene")
	}
	if err := ctx.World.Scene.UpdateCollisionMatrix(ctx.Context, n.Entries); err != nil {
		return trinary.Unknown, fmt.Errorf("update collision matrix: %w", err)
	}
	return trinary.True, nil
}

// PayloadAlternator observes floor(time) mod Mod == 0, computed from control
// time alone.
type PayloadAlternator struct {
	NodeBase
	Mod int
}

func NewPayloadAlternator(name string, mod int) *PayloadAlternator {
	n := &PayloadAlternator{Mod: mod}
	n.SetName(name)
	return n
}

func (n *PayloadAlternator) Build(ctx *BuildContext) (symbolic.Expr, error) {
	mod := n.Mod
	if mod <= 0 {
		mod = 2
	}
	phase := symbolic.Mod(symbolic.Floor(ctx.Time()), symbolic.Number(float64(mod)))
	return symbolic.Equal(phase, symbolic.Number(0)), nil
}

// CheckMaxTrajectoryLength observes True once control time exceeds Length
// seconds. Pair it with a CancelMotion to bound a motion's duration.
type CheckMaxTrajectoryLength struct {
	NodeBase
	Length float64
}

func NewCheckMaxTrajectoryLength(name string, length float64) *CheckMaxTrajectoryLength {
	n := &CheckMaxTrajectoryLength{Length: length}
	n.SetName(name)
	return n
}

func (n *CheckMaxTrajectoryLength) Build(ctx *BuildContext) (symbolic.Expr, error) {
	return symbolic.Greater(ctx.Time(), symbolic.Number(n.Length)), nil
}

// ChangeStateOnEvents records the last lifecycle hook it received. It
// observes Unknown, so it only ends through an explicit end condition.
type ChangeStateOnEvents struct {
	NodeBase
	event string
}

func NewChangeStateOnEvents(name string) *ChangeStateOnEvents {
	n := new(ChangeStateOnEvents)
	n.SetName(name)
	return n
}

// Event returns the name of the last hook, or "" before any.
func (n *ChangeStateOnEvents) Event() string { return n.event }

func (n *ChangeStateOnEvents) OnStart(*Context) error   { n.event = "on_start"; return nil }
func (n *ChangeStateOnEvents) OnPause(*Context) error   { n.event = "on_pause"; return nil }
func (n *ChangeStateOnEvents) OnUnpause(*Context) error { n.event = "on_unpause"; return nil }
func (n *ChangeStateOnEvents) OnEnd(*Context) error     { n.event = "on_end"; return nil }
func (n *ChangeStateOnEvents) OnReset(*Context) error   { n.event = "on_reset"; return nil }

// DefaultJointTolerance is the default convergence tolerance of JointPosition.
const DefaultJointTolerance = 1e-3

// JointPosition drives a joint in the world state toward Target, moving at
// most Velocity*dt per tick, and observes True once within Tolerance. A
// non-positive Velocity writes the target in one tick.
type JointPosition struct {
	NodeBase
	Joint     string
	Target    float64
	Velocity  float64
	Tolerance float64
}

func NewJointPosition(name, joint string, target, velocity float64) *JointPosition {
	n := &JointPosition{Joint: joint, Target: target, Velocity: velocity, Tolerance: DefaultJointTolerance}
	n.SetName(name)
	return n
}

func (n *JointPosition) OnTick(ctx *Context) (trinary.Value, error) {
	if ctx.World == nil {
		return trinary.Unknown, errors.New("no world")
	}
	pos := ctx.World.JointPosition(n.Joint)
	next := n.Target
	if step := n.Velocity * ctx.Dt; n.Velocity > 0 && math.Abs(n.Target-pos) > step {
		next = pos + math.Copysign(step, n.Target-pos)
	}
	if next != pos {
		ctx.World.SetJointPosition(n.Joint, next)
	}
	return trinary.FromBool(math.Abs(n.Target-next) <= n.Tolerance), nil
}

// EndMotion succeeds the whole motion when it succeeds. It observes True, so
// its start condition decides when the motion ends.
type EndMotion struct{ NodeBase }

func NewEndMotion(name string) *EndMotion {
	n := new(EndMotion)
	n.SetName(name)
	return n
}

func (*EndMotion) Build(*BuildContext) (symbolic.Expr, error) { return symbolic.True, nil }

// CancelMotion fails the whole motion when it succeeds, with Cause wrapped in
// ErrMotionCancelled.
type CancelMotion struct {
	NodeBase
	Cause error
}

func NewCancelMotion(name string, cause error) *CancelMotion {
	n := &CancelMotion{Cause: cause}
	n.SetName(name)
	return n
}

func (*CancelMotion) Build(*BuildContext) (symbolic.Expr, error) { return symbolic.True, nil }

func (n *CancelMotion) cause() error {
	if n.Cause == nil {
		return ErrMotionCancelled
	}
	return fmt.Errorf("%w: %w", ErrMotionCancelled, n.Cause)
}
