package precondition

import (
	"context"
	"testing"

	bt "github.com/joeycumines/go-behaviortree"
	pabtpkg "github.com/joeycumines/go-pabt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tigul/cognitive-robot-abstract-machine/internal/plan"
	"github.com/Tigul/cognitive-robot-abstract-machine/internal/world"
)

var leftArm = world.Manipulator{Name: "left", Gripper: "l_gripper"}

func TestConditions(t *testing.T) {
	t.Parallel()

	w := world.New(nil, nil)
	s := NewState(w)

	free, held := GripperIsFree(leftArm), GripperIsNotFree(leftArm)
	assert.Equal(t, "attached/l_gripper", free.Key())
	assert.NoError(t, Check(s, pabtpkg.IConditions{free}))
	assert.ErrorIs(t, Check(s, pabtpkg.IConditions{held}), ErrUnsatisfied)

	w.Attach(leftArm.Gripper, "cup")
	assert.ErrorIs(t, Check(s, pabtpkg.IConditions{free}), ErrUnsatisfied)
	assert.NoError(t, Check(s, pabtpkg.IConditions{held}))
	assert.True(t, Equal(world.AttachmentKey("l_gripper"), "cup").Match("cup"))
	assert.True(t, Present("x").Match(1))
	assert.True(t, Absent("x").Match(nil))
	assert.False(t, Cond("x", "never", nil).Match(1))
	assert.Equal(t, "x is absent", Absent("x").String())
}

func TestCheck_Groups(t *testing.T) {
	t.Parallel()

	w := world.New(nil, nil)
	s := NewState(w)
	w.State.Set("door", "open")

	assert.NoError(t, Check(s), "no groups always holds")

	err := Check(s,
		pabtpkg.IConditions{Equal("door", "closed"), Present("key")},
		pabtpkg.IConditions{Present("key")},
	)
	require.ErrorIs(t, err, ErrUnsatisfied)
	assert.Contains(t, err.Error(), "door == closed; key is present")

	assert.NoError(t, Check(s,
		pabtpkg.IConditions{Present("key")},
		pabtpkg.IConditions{Equal("door", "open")},
	), "any satisfied group is enough")
}

func TestExprCondition(t *testing.T) {
	t.Parallel()

	c, err := Expr("joint/torso", "value != nil && value > 0.25")
	require.NoError(t, err)
	assert.Equal(t, "joint/torso", c.Key())
	assert.True(t, c.Match(0.3))
	assert.NoError(t, c.LastError())
	assert.False(t, c.Match(0.1))
	assert.False(t, c.Match(nil))

	assert.False(t, c.Match("high"), "type errors do not match")
	assert.Error(t, c.LastError())

	again, err := Expr("other", "value != nil && value > 0.25")
	require.NoError(t, err)
	assert.Same(t, c.program, again.program, "programs are cached by source")

	_, err = Expr("k", "value >")
	assert.Error(t, err)
	_, err = Expr("k", "")
	assert.Error(t, err)
}

func TestState_Variable(t *testing.T) {
	t.Parallel()

	w := world.New(nil, nil)
	w.State.Set("k", 1.5)
	s := NewState(w)
	v, err := s.Variable("k")
	require.NoError(t, err)
	assert.Equal(t, 1.5, v)

	_, err = s.Variable(nil)
	assert.Error(t, err)
	_, err = s.Variable(42)
	assert.Error(t, err)
	assert.Panics(t, func() { NewState(nil) })
}

func TestState_Actions(t *testing.T) {
	t.Parallel()

	s := NewState(world.New(nil, nil))
	noop := bt.New(func([]bt.Node) (bt.Status, error) { return bt.Success, nil })
	s.Register("open", NewAction("open", nil, pabtpkg.Effects{Set("door", "open")}, noop))
	s.Register("close", NewAction("close", nil, pabtpkg.Effects{Set("door", "closed")}, noop))
	s.Register("fetch", NewAction("fetch", nil, pabtpkg.Effects{Set("key", "brass")}, noop))

	got, err := s.Actions(Equal("door", "open"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "open", got[0].(*Action).Name)

	all, err := s.Actions(nil)
	require.NoError(t, err)
	names := make([]string, len(all))
	for i, a := range all {
		names[i] = a.(*Action).Name
	}
	assert.Equal(t, []string{"close", "fetch", "open"}, names)

	assert.Panics(t, func() { NewAction("x", nil, nil, nil) })
}

// TestGoal plans "hold the cup" from two actions: moving to the table, and
// picking, which requires being at the table and a free gripper.
func TestGoal(t *testing.T) {
	t.Parallel()

	w := world.New(nil, nil)
	s := NewState(w)
	ctx := plan.NewContext(w, nil)

	move, err := PlanAction(context.Background(), "move",
		plan.CodePlan(ctx, func(h *plan.Handle) error {
			h.World().State.Set("at", "table")
			return nil
		}),
		nil,
		pabtpkg.Effects{Set("at", "table")},
	)
	require.NoError(t, err)
	s.Register("move", move)

	picks := 0
	s.Register("pick", NewAction("pick",
		[]pabtpkg.IConditions{{Equal("at", "table"), GripperIsFree(leftArm)}},
		pabtpkg.Effects{Set(world.AttachmentKey(leftArm.Gripper), "cup")},
		bt.New(func([]bt.Node) (bt.Status, error) {
			picks++
			w.Attach(leftArm.Gripper, "cup")
			return bt.Success, nil
		}),
	))

	goal, err := s.Goal(pabtpkg.IConditions{Equal(world.AttachmentKey(leftArm.Gripper), "cup")})
	require.NoError(t, err)

	status := bt.Running
	for i := 0; i < 10 && status == bt.Running; i++ {
		status, err = goal.Tick()
		require.NoError(t, err)
	}
	assert.Equal(t, bt.Success, status)
	held, ok := w.Held(leftArm.Gripper)
	assert.True(t, ok)
	assert.Equal(t, "cup", held)
	assert.Equal(t, "table", w.State.Get("at"))
	assert.Equal(t, 1, picks)

	_, err = s.Goal()
	assert.Error(t, err)
}

func TestGoalPlan(t *testing.T) {
	t.Parallel()

	w := world.New(nil, nil)
	w.State.Set("door", "open")
	s := NewState(w)
	p, err := s.GoalPlan(plan.NewContext(w, nil), pabtpkg.IConditions{Equal("door", "open")})
	require.NoError(t, err)
	require.NoError(t, p.Perform(context.Background()))

	mounted := plan.New(nil, plan.NewNode(nil))
	empty := plan.CodePlan(nil, func(*plan.Handle) error { return nil })
	require.NoError(t, mounted.Mount(empty, nil))
	_, err = PlanAction(context.Background(), "gone", empty, nil, nil)
	assert.ErrorIs(t, err, plan.ErrEmptyPlan)
}
