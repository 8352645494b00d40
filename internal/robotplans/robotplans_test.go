package robotplans

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Tigul/cognitive-robot-abstract-machine/internal/lifecycle"
	"github.com/Tigul/cognitive-robot-abstract-machine/internal/plan"
	"github.com/Tigul/cognitive-robot-abstract-machine/internal/precondition"
	"github.com/Tigul/cognitive-robot-abstract-machine/internal/world"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const torso = "torso_lift_joint"

func testContext() *plan.Context {
	ctx := plan.NewContext(world.New(new(world.ManualClock), nil), PR2())
	ctx.TickInterval = time.Millisecond
	ctx.Dt = 0.5
	return ctx
}

func run(t *testing.T, p *plan.Plan) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return p.Perform(ctx)
}

func TestMoveTorso(t *testing.T) {
	t.Parallel()

	ctx := testContext()
	require.NoError(t, run(t, plan.ActionPlan(ctx, MoveTorso(TorsoHigh))))
	assert.InDelta(t, 0.3, ctx.World.JointPosition(torso), 1e-9)

	require.NoError(t, run(t, plan.ActionPlan(ctx, MoveTorso(TorsoMid))))
	assert.InDelta(t, 0.15, ctx.World.JointPosition(torso), 1e-9)
}

func TestInterruptPlan(t *testing.T) {
	t.Parallel()

	ctx := testContext()
	low := MoveTorso(TorsoLow)
	p, err := plan.SequentialPlan(ctx,
		MoveTorso(TorsoHigh),
		plan.CodePlan(ctx, func(h *plan.Handle) error {
			h.Interrupt(h.Root())
			return nil
		}),
		low,
	)
	require.NoError(t, err)

	err = run(t, p)
	require.ErrorIs(t, err, plan.ErrInterrupted)
	assert.InDelta(t, 0.3, ctx.World.JointPosition(torso), 0.1)

	for _, n := range p.Root().RecursiveChildren() {
		if a, ok := plan.ActionOf(n); ok && a == low {
			assert.True(t, n.IsLeaf(), "the action after the interrupt never expands")
			assert.Equal(t, lifecycle.Failed, n.Status())
		}
	}
}

func TestPausePlan(t *testing.T) {
	t.Parallel()

	ctx := testContext()
	p, err := plan.SequentialPlan(ctx, MoveTorso(TorsoHigh))
	require.NoError(t, err)
	root := p.Root()

	for range 3 {
		_, err = p.Tick(context.Background())
		require.NoError(t, err)
	}
	root.Pause()
	before := ctx.World.JointPosition(torso)
	assert.Greater(t, before, 0.0, "the motion has started")
	for range 5 {
		st, err := p.Tick(context.Background())
		require.NoError(t, err)
		assert.Equal(t, lifecycle.Paused, st)
	}
	assert.Equal(t, before, ctx.World.JointPosition(torso))
	assert.Less(t, before, 0.3)

	root.Resume()
	require.NoError(t, run(t, p))
	assert.InDelta(t, 0.3, ctx.World.JointPosition(torso), 1e-9)
}

func TestParkArms(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		arms   Arms
		parked []string
		idle   []string
	}{
		{ArmLeft, []string{"l_elbow_flex_joint"}, []string{"r_elbow_flex_joint"}},
		{ArmRight, []string{"r_elbow_flex_joint"}, []string{"l_elbow_flex_joint"}},
		{ArmBoth, []string{"l_elbow_flex_joint", "r_elbow_flex_joint"}, nil},
	} {
		t.Run(tc.arms.String(), func(t *testing.T) {
			t.Parallel()
			ctx := testContext()
			require.NoError(t, run(t, plan.ActionPlan(ctx, ParkArms(tc.arms))))
			for _, j := range tc.parked {
				assert.InDelta(t, -1.4, ctx.World.JointPosition(j), 1e-9, j)
			}
			for _, j := range tc.idle {
				assert.Zero(t, ctx.World.JointPosition(j), j)
			}
			assert.NoError(t, precondition.Check(precondition.NewState(ctx.World), ParkArms(tc.arms).PostCondition(ctx.Robot)...))
		})
	}
}

func TestNavigate(t *testing.T) {
	t.Parallel()

	ctx := testContext()
	r := ctx.Robot
	ctx.World.Attach("l_gripper", "cup")

	err := run(t, plan.ActionPlan(ctx, Navigate(NewPose(1, -1, 0.5), false)))
	require.ErrorIs(t, err, precondition.ErrUnsatisfied)
	assert.Zero(t, ctx.World.JointPosition(BaseXJoint), "the motion never starts")

	require.NoError(t, run(t, plan.ActionPlan(ctx, Navigate(NewPose(1, -1, 0.5), true))))
	assert.InDelta(t, 1, ctx.World.JointPosition(BaseXJoint), 1e-9)
	assert.InDelta(t, -1, ctx.World.JointPosition(BaseYJoint), 1e-9)
	assert.InDelta(t, 0.5, ctx.World.JointPosition(BaseYawJoint), 1e-9)
	assert.Zero(t, ctx.World.JointPosition("l_elbow_flex_joint"), "joints are kept")

	ctx.World.Detach("l_gripper")
	require.NoError(t, run(t, plan.ActionPlan(ctx, Navigate(NewPose(0, 0, 0), false))))
	assert.InDelta(t, 0, ctx.World.JointPosition(BaseXJoint), 1e-9)
	for _, m := range r.Manipulators {
		for j, want := range m.ParkPose {
			assert.InDelta(t, want, ctx.World.JointPosition(j), 1e-9, j)
		}
	}
}

func TestUnbound(t *testing.T) {
	t.Parallel()

	for _, a := range []plan.Action{new(MoveTorsoAction), new(ParkArmsAction), new(NavigateAction)} {
		err := run(t, plan.ActionPlan(testContext(), a))
		assert.ErrorIs(t, err, ErrUnbound)
	}
}

func TestEnvironment(t *testing.T) {
	t.Parallel()

	err := run(t, plan.ActionPlan(plan.NewContext(world.New(nil, nil), nil), MoveTorso(TorsoHigh)))
	assert.ErrorIs(t, err, ErrNoRobot)

	_, _, err = environment(nil)
	assert.ErrorIs(t, err, ErrNoWorld)

	super := plan.New(testContext(), plan.NewNode(nil))
	w, r, err := environment(&plan.Context{SuperPlan: super})
	require.NoError(t, err)
	assert.Same(t, super.World(), w)
	assert.Same(t, super.Robot(), r)
}

// The callback tests are not parallel: the registries are process-wide.

func TestPerformCallbacks(t *testing.T) {
	ctx := testContext()
	action := MoveTorso(TorsoHigh)
	var events []string
	record := func(stage string) PerformCallback {
		return func(h *plan.Handle, d Designator) {
			if d == Designator(action) {
				events = append(events, stage+":"+d.ActionName())
				assert.NotNil(t, h.World())
			}
		}
	}
	unregisterPre := RegisterPrePerform(record("pre"))
	unregisterPost := RegisterPostPerform(record("post"))

	require.NoError(t, run(t, plan.ActionPlan(ctx, action)))
	assert.Equal(t, []string{"pre:MoveTorsoAction", "post:MoveTorsoAction"}, events)

	unregisterPre()
	unregisterPost()
	events = nil
	action.TorsoState = new(TorsoState)
	require.NoError(t, run(t, plan.ActionPlan(ctx, action)))
	assert.Empty(t, events)

	assert.Panics(t, func() { RegisterPrePerform(nil) })
}

func TestPostconditionFailure(t *testing.T) {
	ctx := testContext()
	action := MoveTorso(TorsoHigh)
	defer RegisterPostPerform(func(h *plan.Handle, d Designator) {
		if d == Designator(action) {
			h.World().SetJointPosition(torso, 0)
		}
	})()

	err := run(t, plan.ActionPlan(ctx, action))
	require.ErrorIs(t, err, precondition.ErrUnsatisfied)
	assert.Contains(t, err.Error(), "MoveTorsoAction: postcondition")
}

func TestTask(t *testing.T) {
	t.Parallel()

	task, err := ParseTask(strings.NewReader(`
name: tidy
steps:
  - move_torso: high
  - parallel:
      - park_arms: left
      - navigate: {x: 1.5, y: -0.5, keep: true}
  - code:
      set: {done: true}
`))
	require.NoError(t, err)
	assert.Equal(t, "tidy", task.Name)
	require.Len(t, task.Steps, 3)

	ctx := testContext()
	p, err := task.Plan(ctx)
	require.NoError(t, err)
	require.NoError(t, run(t, p))
	assert.InDelta(t, 0.3, ctx.World.JointPosition(torso), 1e-9)
	assert.InDelta(t, 1.5, ctx.World.JointPosition(BaseXJoint), 1e-9)
	assert.InDelta(t, -1.4, ctx.World.JointPosition("l_elbow_flex_joint"), 1e-9)
	assert.Equal(t, true, ctx.World.State.Get("done"))
}

func TestTask_Interrupt(t *testing.T) {
	t.Parallel()

	task, err := ParseTask(strings.NewReader(`
steps:
  - move_torso: high
  - code: {interrupt: true}
  - move_torso: low
`))
	require.NoError(t, err)
	ctx := testContext()
	p, err := task.Plan(ctx)
	require.NoError(t, err)
	assert.ErrorIs(t, run(t, p), plan.ErrInterrupted)
	assert.InDelta(t, 0.3, ctx.World.JointPosition(torso), 1e-9)
}

func TestParseTask_Errors(t *testing.T) {
	t.Parallel()

	for name, src := range map[string]string{
		"empty":       ``,
		"no steps":    `name: x`,
		"unknown key": "steps:\n  - fly: high\n",
		"two actions": "steps:\n  - move_torso: high\n    park_arms: both\n",
		"bad torso":   "steps:\n  - move_torso: sideways\n",
		"bad arms":    "steps:\n  - park_arms: three\n",
		"partial":     "steps:\n  - navigate: {x: 1}\n",
	} {
		t.Run(name, func(t *testing.T) {
			task, err := ParseTask(strings.NewReader(src))
			if err == nil {
				_, err = task.Plan(testContext())
			}
			assert.Error(t, err)
		})
	}
}

func TestTypes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"low", "mid", "high"}, TorsoHigh.Domain())
	assert.Equal(t, "TorsoState(7)", TorsoState(7).String())
	s, err := ParseTorsoState("HIGH")
	require.NoError(t, err)
	assert.Equal(t, TorsoHigh, s)

	a, err := ParseArms("Both")
	require.NoError(t, err)
	assert.Equal(t, []string{"left", "right"}, a.Manipulators())
	assert.Equal(t, []string{"left", "right", "both"}, ArmLeft.Domain())

	assert.InDelta(t, 1.2, YawQuaternion(1.2).Yaw(), 1e-12)
	assert.Equal(t, "map", NewPose(0, 0, 0).Header.FrameID)
}

func TestRobotNamed(t *testing.T) {
	t.Parallel()

	r, err := RobotNamed("pr2")
	require.NoError(t, err)
	assert.Equal(t, PR2(), r)

	_, err = RobotNamed("hsr")
	assert.ErrorContains(t, err, `unknown robot "hsr"`)
}
