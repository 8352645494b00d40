package robotplans

import (
	"fmt"
	"math"

	pabtpkg "github.com/joeycumines/go-pabt"

	"github.com/Tigul/cognitive-robot-abstract-machine/internal/plan"
	"github.com/Tigul/cognitive-robot-abstract-machine/internal/precondition"
	"github.com/Tigul/cognitive-robot-abstract-machine/internal/statechart"
	"github.com/Tigul/cognitive-robot-abstract-machine/internal/world"
)

// jointNear matches a joint position within the convergence tolerance of
// target.
func jointNear(joint string, target float64) *precondition.Condition {
	return precondition.Cond(world.JointKey(joint), fmt.Sprintf("near %g", target), func(v any) bool {
		f, ok := v.(float64)
		if !ok {
			// unset joints rest at zero
			f = 0
		}
		return math.Abs(f-target) <= statechart.DefaultJointTolerance
	})
}

// MoveTorsoAction moves the torso to a named height.
type MoveTorsoAction struct {
	TorsoState *TorsoState `param:"torso_state"`
}

// MoveTorso returns an action moving the torso to s.
func MoveTorso(s TorsoState) *MoveTorsoAction { return &MoveTorsoAction{TorsoState: &s} }

func (*MoveTorsoAction) ActionName() string { return "MoveTorsoAction" }

func (a *MoveTorsoAction) PreCondition(*world.Robot) []pabtpkg.IConditions { return nil }

func (a *MoveTorsoAction) PostCondition(r *world.Robot) []pabtpkg.IConditions {
	if a.TorsoState == nil {
		return nil
	}
	return []pabtpkg.IConditions{{jointNear(r.TorsoJoint, a.TorsoState.Position())}}
}

func (a *MoveTorsoAction) Plan(ctx *plan.Context) (*plan.Plan, error) {
	if a.TorsoState == nil {
		return nil, fmt.Errorf("%s: torso_state: %w", a.ActionName(), ErrUnbound)
	}
	w, r, err := environment(ctx)
	if err != nil {
		return nil, err
	}
	sc := chart(ctx, w, "move_torso_"+a.TorsoState.String())
	if err := sc.Add(statechart.NewJointPosition(r.TorsoJoint, r.TorsoJoint, a.TorsoState.Position(), TorsoVelocity)); err != nil {
		return nil, err
	}
	return perform(ctx, a, r, sc)
}

// ParkArmsAction moves arms to their park pose.
type ParkArmsAction struct {
	Arm *Arms `param:"arm"`
}

// ParkArms returns an action parking arms.
func ParkArms(arms Arms) *ParkArmsAction { return &ParkArmsAction{Arm: &arms} }

func (*ParkArmsAction) ActionName() string { return "ParkArmsAction" }

func (a *ParkArmsAction) PreCondition(*world.Robot) []pabtpkg.IConditions { return nil }

func (a *ParkArmsAction) PostCondition(r *world.Robot) []pabtpkg.IConditions {
	if a.Arm == nil {
		return nil
	}
	var group pabtpkg.IConditions
	for _, name := range a.Arm.Manipulators() {
		m, err := r.Manipulator(name)
		if err != nil {
			continue
		}
		for _, joint := range m.Joints {
			group = append(group, jointNear(joint, m.ParkPose[joint]))
		}
	}
	return []pabtpkg.IConditions{group}
}

func (a *ParkArmsAction) Plan(ctx *plan.Context) (*plan.Plan, error) {
	if a.Arm == nil {
		return nil, fmt.Errorf("%s: arm: %w", a.ActionName(), ErrUnbound)
	}
	w, r, err := environment(ctx)
	if err != nil {
		return nil, err
	}
	park, err := parkGoal(r, *a.Arm)
	if err != nil {
		return nil, err
	}
	sc := chart(ctx, w, "park_arms_"+a.Arm.String())
	if err := sc.Add(park); err != nil {
		return nil, err
	}
	return perform(ctx, a, r, sc)
}

// parkGoal drives the joints of the selected arms to their park pose
// together.
func parkGoal(r *world.Robot, arms Arms) (*statechart.ParallelGoal, error) {
	var nodes []statechart.Node
	for _, name := range arms.Manipulators() {
		m, err := r.Manipulator(name)
		if err != nil {
			return nil, err
		}
		for _, joint := range m.Joints {
			nodes = append(nodes, statechart.NewJointPosition(joint, joint, m.ParkPose[joint], ArmVelocity))
		}
	}
	return statechart.NewParallelGoal("park_"+arms.String(), nodes...), nil
}

// NavigateAction drives the base to a target pose. Unless KeepJointStates
// is set, both arms are parked before the base moves.
type NavigateAction struct {
	TargetLocation  *PoseStamped `param:"target_location"`
	KeepJointStates *bool        `param:"keep_joint_states"`
}

// Navigate returns an action driving the base to target.
func Navigate(target *PoseStamped, keepJointStates bool) *NavigateAction {
	return &NavigateAction{TargetLocation: target, KeepJointStates: &keepJointStates}
}

func (*NavigateAction) ActionName() string { return "NavigateAction" }

// PreCondition requires both grippers to be free unless the joints are
// kept, so that parking cannot drop a held object.
func (a *NavigateAction) PreCondition(r *world.Robot) []pabtpkg.IConditions {
	if a.keep() {
		return nil
	}
	var group pabtpkg.IConditions
	for _, m := range r.Manipulators {
		group = append(group, precondition.GripperIsFree(m))
	}
	return []pabtpkg.IConditions{group}
}

func (a *NavigateAction) PostCondition(*world.Robot) []pabtpkg.IConditions {
	if a.TargetLocation == nil {
		return nil
	}
	p := a.TargetLocation.Pose
	return []pabtpkg.IConditions{{
		jointNear(BaseXJoint, p.Position.X),
		jointNear(BaseYJoint, p.Position.Y),
		jointNear(BaseYawJoint, p.Orientation.Yaw()),
	}}
}

func (a *NavigateAction) keep() bool { return a.KeepJointStates != nil && *a.KeepJointStates }

func (a *NavigateAction) Plan(ctx *plan.Context) (*plan.Plan, error) {
	switch {
	case a.TargetLocation == nil:
		return nil, fmt.Errorf("%s: target_location: %w", a.ActionName(), ErrUnbound)
	case a.KeepJointStates == nil:
		return nil, fmt.Errorf("%s: keep_joint_states: %w", a.ActionName(), ErrUnbound)
	}
	w, r, err := environment(ctx)
	if err != nil {
		return nil, err
	}
	p := a.TargetLocation.Pose
	drive := statechart.NewParallelGoal("drive",
		statechart.NewJointPosition(BaseXJoint, BaseXJoint, p.Position.X, BaseVelocity),
		statechart.NewJointPosition(BaseYJoint, BaseYJoint, p.Position.Y, BaseVelocity),
		statechart.NewJointPosition(BaseYawJoint, BaseYawJoint, p.Orientation.Yaw(), BaseVelocity),
	)
	var top statechart.Node = drive
	if !a.keep() {
		park, err := parkGoal(r, ArmBoth)
		if err != nil {
			return nil, err
		}
		top = statechart.NewSequenceGoal("navigate", park, drive)
	}
	sc := chart(ctx, w, "navigate")
	if err := sc.Add(top); err != nil {
		return nil, err
	}
	return perform(ctx, a, r, sc)
}
