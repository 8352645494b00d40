package robotplans

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/Tigul/cognitive-robot-abstract-machine/internal/plan"
	"github.com/Tigul/cognitive-robot-abstract-machine/internal/world"
)

// Joints of the simulated mobile base.
const (
	BaseXJoint   = "odom_x_joint"
	BaseYJoint   = "odom_y_joint"
	BaseYawJoint = "odom_z_joint"
)

// Default joint velocities, in joint units per second.
const (
	TorsoVelocity = 0.2
	ArmVelocity   = 1.0
	BaseVelocity  = 0.5
)

var (
	ErrNoWorld = errors.New("robotplans: no world in plan context")
	ErrNoRobot = errors.New("robotplans: no robot in plan context")
	// ErrUnbound is returned when an action with a free parameter is
	// performed.
	ErrUnbound = errors.New("robotplans: unbound parameter")
)

// PR2 returns a description of a PR2-like robot.
func PR2() *world.Robot {
	return &world.Robot{
		Name:       "pr2",
		TorsoJoint: "torso_lift_joint",
		Manipulators: []world.Manipulator{
			{
				Name:    "left",
				Gripper: "l_gripper",
				Joints:  []string{"l_shoulder_pan_joint", "l_shoulder_lift_joint", "l_elbow_flex_joint"},
				ParkPose: map[string]float64{
					"l_shoulder_pan_joint":  1.712,
					"l_shoulder_lift_joint": -0.264,
					"l_elbow_flex_joint":    -1.4,
				},
			},
			{
				Name:    "right",
				Gripper: "r_gripper",
				Joints:  []string{"r_shoulder_pan_joint", "r_shoulder_lift_joint", "r_elbow_flex_joint"},
				ParkPose: map[string]float64{
					"r_shoulder_pan_joint":  -1.712,
					"r_shoulder_lift_joint": -0.256,
					"r_elbow_flex_joint":    -1.4,
				},
			},
		},
	}
}

// RobotNamed returns the robot description registered under name.
func RobotNamed(name string) (*world.Robot, error) {
	switch name {
	case "pr2":
		return PR2(), nil
	}
	return nil, fmt.Errorf("robotplans: unknown robot %q", name)
}

// environment resolves the world and robot of ctx, falling back to its
// super plan.
func environment(ctx *plan.Context) (*world.World, *world.Robot, error) {
	if ctx == nil {
		return nil, nil, ErrNoWorld
	}
	w, r := ctx.World, ctx.Robot
	if sp := ctx.SuperPlan; sp != nil {
		if w == nil {
			w = sp.World()
		}
		if r == nil {
			r = sp.Robot()
		}
	}
	switch {
	case w == nil:
		return nil, nil, ErrNoWorld
	case r == nil:
		return nil, nil, ErrNoRobot
	}
	return w, r, nil
}

func logger(ctx *plan.Context) *slog.Logger {
	if ctx != nil && ctx.Logger != nil {
		return ctx.Logger
	}
	return slog.Default()
}
