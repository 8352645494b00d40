// Package robotplans provides simulated robot actions. Each action is a
// plan.Action that expands into pre-perform checks, a motion statechart
// driving joints in the world state, and post-perform checks:
//
//	ctx := plan.NewContext(world.New(nil, nil), robotplans.PR2())
//	p, err := plan.SequentialPlan(ctx,
//		robotplans.MoveTorso(robotplans.TorsoHigh),
//		robotplans.ParkArms(robotplans.ArmBoth),
//	)
//	if err != nil { ... }
//	err = p.Perform(context.Background())
//
// Fields left nil are free parameters: performing such an action fails with
// ErrUnbound, and the parameterize package reports them.
package robotplans

import (
	"fmt"
	"slices"
	"sync"

	pabtpkg "github.com/joeycumines/go-pabt"

	"github.com/Tigul/cognitive-robot-abstract-machine/internal/plan"
	"github.com/Tigul/cognitive-robot-abstract-machine/internal/precondition"
	"github.com/Tigul/cognitive-robot-abstract-machine/internal/statechart"
	"github.com/Tigul/cognitive-robot-abstract-machine/internal/world"
)

// Designator is an action description.
type Designator interface {
	plan.Action
	// ActionName names the action in logs and errors.
	ActionName() string
	// PreCondition returns the condition groups that must hold before the
	// motion starts. Any one group holding is enough.
	PreCondition(r *world.Robot) []pabtpkg.IConditions
	// PostCondition returns the condition groups that must hold once the
	// motion ends.
	PostCondition(r *world.Robot) []pabtpkg.IConditions
}

// PerformCallback observes a designator being performed.
type PerformCallback func(h *plan.Handle, d Designator)

type callbackList struct {
	mu  sync.Mutex
	seq int
	cbs []registered
}

type registered struct {
	id int
	fn PerformCallback
}

func (l *callbackList) add(fn PerformCallback) func() {
	if fn == nil {
		panic("robotplans: nil perform callback")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	id := l.seq
	l.cbs = append(l.cbs, registered{id: id, fn: fn})
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.cbs = slices.DeleteFunc(l.cbs, func(r registered) bool { return r.id == id })
	}
}

func (l *callbackList) snapshot() []PerformCallback {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]PerformCallback, len(l.cbs))
	for i, r := range l.cbs {
		out[i] = r.fn
	}
	return out
}

var prePerform, postPerform callbackList

// RegisterPrePerform adds a callback run before every action checks its
// precondition. The returned func removes it.
func RegisterPrePerform(fn PerformCallback) (unregister func()) { return prePerform.add(fn) }

// RegisterPostPerform adds a callback run after every action's motion
// succeeds, before its postcondition is checked.
func RegisterPostPerform(fn PerformCallback) (unregister func()) { return postPerform.add(fn) }

// perform assembles the plan of an action: the pre-perform step, the
// motion, and the post-perform step.
func perform(ctx *plan.Context, d Designator, r *world.Robot, sc *statechart.MotionStatechart) (*plan.Plan, error) {
	pre := plan.CodePlan(ctx, func(h *plan.Handle) error {
		logger(ctx).Info("performing action", "action", d.ActionName())
		for _, cb := range prePerform.snapshot() {
			cb(h, d)
		}
		if err := precondition.Check(precondition.NewState(h.World()), d.PreCondition(r)...); err != nil {
			return fmt.Errorf("%s: precondition: %w", d.ActionName(), err)
		}
		return nil
	})
	post := plan.CodePlan(ctx, func(h *plan.Handle) error {
		for _, cb := range postPerform.snapshot() {
			cb(h, d)
		}
		if err := precondition.Check(precondition.NewState(h.World()), d.PostCondition(r)...); err != nil {
			return fmt.Errorf("%s: postcondition: %w", d.ActionName(), err)
		}
		return nil
	})
	return plan.SequentialPlan(ctx, pre, plan.MotionPlan(ctx, sc), post)
}

// chart returns an empty motion statechart configured from ctx.
func chart(ctx *plan.Context, w *world.World, name string) *statechart.MotionStatechart {
	return statechart.New(
		statechart.WithWorld(w),
		statechart.WithLogger(logger(ctx)),
		statechart.WithDt(ctx.Dt),
		statechart.WithName(name),
	)
}
