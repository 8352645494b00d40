package robotplans

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// TorsoState is a named torso height.
type TorsoState int

const (
	TorsoLow TorsoState = iota
	TorsoMid
	TorsoHigh
)

var torsoNames = [...]string{"low", "mid", "high"}

// Position returns the torso joint position for s, in meters.
func (s TorsoState) Position() float64 {
	switch s {
	case TorsoMid:
		return 0.15
	case TorsoHigh:
		return 0.3
	default:
		return 0
	}
}

func (s TorsoState) String() string {
	if s >= 0 && int(s) < len(torsoNames) {
		return torsoNames[s]
	}
	return "TorsoState(" + strconv.Itoa(int(s)) + ")"
}

// Domain lists every torso state.
func (TorsoState) Domain() []string { return torsoNames[:] }

// ParseTorsoState parses the name of a torso state.
func ParseTorsoState(s string) (TorsoState, error) {
	for i, name := range torsoNames {
		if strings.EqualFold(s, name) {
			return TorsoState(i), nil
		}
	}
	return 0, fmt.Errorf("robotplans: unknown torso state %q", s)
}

// Arms selects one or both arms.
type Arms int

const (
	ArmLeft Arms = iota
	ArmRight
	ArmBoth
)

var armNames = [...]string{"left", "right", "both"}

func (a Arms) String() string {
	if a >= 0 && int(a) < len(armNames) {
		return armNames[a]
	}
	return "Arms(" + strconv.Itoa(int(a)) + ")"
}

// Domain lists every arm selection.
func (Arms) Domain() []string { return armNames[:] }

// Manipulators returns the manipulator names a selects.
func (a Arms) Manipulators() []string {
	switch a {
	case ArmLeft:
		return []string{"left"}
	case ArmRight:
		return []string{"right"}
	default:
		return []string{"left", "right"}
	}
}

// ParseArms parses the name of an arm selection.
func ParseArms(s string) (Arms, error) {
	for i, name := range armNames {
		if strings.EqualFold(s, name) {
			return Arms(i), nil
		}
	}
	return 0, fmt.Errorf("robotplans: unknown arms %q", s)
}

type Vector3 struct {
	X, Y, Z float64
}

type Quaternion struct {
	X, Y, Z, W float64
}

// Yaw returns the rotation about the z axis.
func (q Quaternion) Yaw() float64 {
	return math.Atan2(2*(q.W*q.Z+q.X*q.Y), 1-2*(q.Y*q.Y+q.Z*q.Z))
}

// YawQuaternion returns the rotation of yaw radians about the z axis.
func YawQuaternion(yaw float64) Quaternion {
	return Quaternion{Z: math.Sin(yaw / 2), W: math.Cos(yaw / 2)}
}

type Pose struct {
	Position    Vector3    `param:"position"`
	Orientation Quaternion `param:"orientation"`
}

type Header struct {
	Sequence int    `param:"sequence"`
	FrameID  string `param:"frame_id"`
}

// PoseStamped is a pose in a named frame.
type PoseStamped struct {
	Pose   Pose   `param:"pose"`
	Header Header `param:"header"`
}

// NewPose returns a pose at (x, y) facing yaw, in the map frame.
func NewPose(x, y, yaw float64) *PoseStamped {
	return &PoseStamped{
		Pose:   Pose{Position: Vector3{X: x, Y: y}, Orientation: YawQuaternion(yaw)},
		Header: Header{FrameID: "map"},
	}
}
