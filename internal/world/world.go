package world

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrUnknownManipulator is returned when a robot has no manipulator by the
// requested name.
var ErrUnknownManipulator = errors.New("unknown manipulator")

// CollisionEntry allows or avoids collisions between two bodies, keeping at
// least Distance apart when avoided.
type CollisionEntry struct {
	BodyA, BodyB string
	Allow        bool
	Distance     float64
}

// CollisionScene receives collision matrix updates from the statechart.
// Collision checking itself lives outside the engine.
type CollisionScene interface {
	UpdateCollisionMatrix(ctx context.Context, entries []CollisionEntry) error
}

// MemoryScene records every collision matrix it receives.
type MemoryScene struct {
	mu      sync.Mutex
	updates [][]CollisionEntry
	// Err, when set, is returned by every update.
	Err error
}

func (s *MemoryScene) UpdateCollisionMatrix(ctx context.Context, entries []CollisionEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.updates = append(s.updates, slices.Clone(entries))
	return nil
}

// Updates returns the matrices received so far, oldest first.
func (s *MemoryScene) Updates() [][]CollisionEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.updates)
}

// Manipulator is an arm with a gripper.
type Manipulator struct {
	Name    string
	Gripper string
	// Joints lists the arm joints in chain order.
	Joints []string
	// ParkPose maps joint names to their parked positions.
	ParkPose map[string]float64
}

// Robot describes the controllable parts of a robot.
type Robot struct {
	Name         string
	TorsoJoint   string
	Manipulators []Manipulator
}

// Manipulator returns the manipulator called name.
func (r *Robot) Manipulator(name string) (Manipulator, error) {
	for _, m := range r.Manipulators {
		if m.Name == name {
			return m, nil
		}
	}
	return Manipulator{}, fmt.Errorf("%w: %q on %s", ErrUnknownManipulator, name, r.Name)
}

// World bundles the shared state, clock and collision scene handed to plans.
type World struct {
	State *State
	Clock Clock
	Scene CollisionScene
}

// New returns a world over a fresh state store. A nil clock selects a
// system clock and a nil scene selects a MemoryScene.
func New(clock Clock, scene CollisionScene) *World {
	if clock == nil {
		clock = NewSystemClock()
	}
	if scene == nil {
		scene = new(MemoryScene)
	}
	return &World{State: new(State), Clock: clock, Scene: scene}
}

// JointKey is the state key holding a joint position.
func JointKey(joint string) string { return "joint/" + joint }

// AttachmentKey is the state key holding the object held by a gripper.
func AttachmentKey(gripper string) string { return "attached/" + gripper }

// JointPosition returns the position of joint, defaulting to zero.
func (w *World) JointPosition(joint string) float64 {
	f, _ := w.State.Float(JointKey(joint))
	return f
}

// SetJointPosition writes the position of joint.
func (w *World) SetJointPosition(joint string, position float64) {
	w.State.Set(JointKey(joint), position)
}

// Attach records that gripper holds object.
func (w *World) Attach(gripper, object string) { w.State.Set(AttachmentKey(gripper), object) }

// Detach releases whatever gripper holds.
func (w *World) Detach(gripper string) { w.State.Delete(AttachmentKey(gripper)) }

// Held returns the object held by gripper.
func (w *World) Held(gripper string) (string, bool) {
	obj, ok := w.State.Get(AttachmentKey(gripper)).(string)
	return obj, ok
}

// GripperIsFree reports whether m's gripper holds nothing.
func (w *World) GripperIsFree(m Manipulator) bool {
	_, held := w.Held(m.Gripper)
	return !held
}
