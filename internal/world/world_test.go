package world

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_ZeroValue(t *testing.T) {
	t.Parallel()

	var s State
	assert.Nil(t, s.Get("missing"))
	assert.False(t, s.Has("missing"))
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Keys())
	s.Delete("missing")
	assert.Equal(t, uint64(0), s.Version())

	s.Set("b", 2)
	s.Set("a", 1.5)
	assert.Equal(t, []string{"a", "b"}, s.Keys())
	assert.Equal(t, uint64(2), s.Version())

	f, ok := s.Float("b")
	require.True(t, ok)
	assert.Equal(t, 2.0, f)

	s.Set("name", "pr2")
	_, ok = s.Float("name")
	assert.False(t, ok)

	snap := s.Snapshot()
	snap["a"] = 99.0
	f, _ = s.Float("a")
	assert.Equal(t, 1.5, f)

	s.Delete("a")
	assert.False(t, s.Has("a"))
}

func TestState_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	var s State
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := fmt.Sprintf("joint/%d", i)
			for j := range 100 {
				s.Set(key, float64(j))
				_, _ = s.Float(key)
				_ = s.Keys()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 8, s.Len())
	assert.Equal(t, uint64(800), s.Version())
}

func TestManualClock(t *testing.T) {
	t.Parallel()

	var c ManualClock
	assert.Equal(t, 0.0, c.Now())
	c.Advance(0.5)
	c.Advance(0.25)
	assert.Equal(t, 0.75, c.Now())
	c.Set(10)
	assert.Equal(t, 10.0, c.Now())

	sys := NewSystemClock()
	assert.GreaterOrEqual(t, sys.Now(), 0.0)
}

func TestMemoryScene(t *testing.T) {
	t.Parallel()

	s := new(MemoryScene)
	entries := []CollisionEntry{{BodyA: "gripper", BodyB: "table", Distance: 0.05}}
	require.NoError(t, s.UpdateCollisionMatrix(context.Background(), entries))
	entries[0].Allow = true
	require.Len(t, s.Updates(), 1)
	assert.False(t, s.Updates()[0][0].Allow)

	s.Err = errors.New("scene offline")
	assert.ErrorIs(t, s.UpdateCollisionMatrix(context.Background(), nil), s.Err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, new(MemoryScene).UpdateCollisionMatrix(ctx, nil), context.Canceled)
}

func TestWorld_GrippersAndJoints(t *testing.T) {
	t.Parallel()

	w := New(new(ManualClock), nil)
	left := Manipulator{Name: "left", Gripper: "l_gripper"}
	robot := &Robot{Name: "pr2", TorsoJoint: "torso_lift_joint", Manipulators: []Manipulator{left}}

	m, err := robot.Manipulator("left")
	require.NoError(t, err)
	assert.Equal(t, left.Gripper, m.Gripper)

	_, err = robot.Manipulator("right")
	assert.ErrorIs(t, err, ErrUnknownManipulator)

	assert.True(t, w.GripperIsFree(left))
	w.Attach("l_gripper", "milk")
	assert.False(t, w.GripperIsFree(left))
	obj, ok := w.Held("l_gripper")
	require.True(t, ok)
	assert.Equal(t, "milk", obj)
	w.Detach("l_gripper")
	assert.True(t, w.GripperIsFree(left))

	assert.Equal(t, 0.0, w.JointPosition(robot.TorsoJoint))
	w.SetJointPosition(robot.TorsoJoint, 0.3)
	assert.Equal(t, 0.3, w.JointPosition(robot.TorsoJoint))
}
