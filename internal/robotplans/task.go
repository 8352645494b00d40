package robotplans

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Tigul/cognitive-robot-abstract-machine/internal/plan"
)

// Free marks a parameter left for a sampler to choose.
const Free = "free"

// Task is a plan description loaded from YAML:
//
//	name: tidy
//	steps:
//	  - move_torso: high
//	  - parallel:
//	      - park_arms: both
//	      - navigate: {x: 1.5, y: -0.5, yaw: 1.57}
//	  - move_torso: free
//
// The steps of a task run in sequence. Every step sets exactly one key.
type Task struct {
	Name  string `yaml:"name"`
	Steps []Step `yaml:"steps"`
}

// Step is one entry of a task.
type Step struct {
	MoveTorso  string    `yaml:"move_torso,omitempty"`
	ParkArms   string    `yaml:"park_arms,omitempty"`
	Navigate   *Target   `yaml:"navigate,omitempty"`
	Sequential []Step    `yaml:"sequential,omitempty"`
	Parallel   []Step    `yaml:"parallel,omitempty"`
	Code       *CodeStep `yaml:"code,omitempty"`
}

// Target is a navigation goal. An empty target is free.
type Target struct {
	X     *float64 `yaml:"x"`
	Y     *float64 `yaml:"y"`
	Yaw   *float64 `yaml:"yaw"`
	Frame string   `yaml:"frame"`
	// Keep skips parking the arms.
	Keep bool `yaml:"keep"`
}

// CodeStep writes world state inline.
type CodeStep struct {
	Set map[string]any `yaml:"set"`
	// Interrupt interrupts the whole task once the values are written.
	Interrupt bool `yaml:"interrupt"`
}

var errEmptyTask = errors.New("robotplans: task has no steps")

// LoadTask reads a task file.
func LoadTask(path string) (*Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("robotplans: read task: %w", err)
	}
	return ParseTask(bytes.NewReader(data))
}

// ParseTask decodes a task, rejecting unknown keys.
func ParseTask(r io.Reader) (*Task, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var t Task
	if err := dec.Decode(&t); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errEmptyTask
		}
		return nil, fmt.Errorf("robotplans: decode task: %w", err)
	}
	if len(t.Steps) == 0 {
		return nil, errEmptyTask
	}
	return &t, nil
}

// Plan builds the task as a sequential plan.
func (t *Task) Plan(ctx *plan.Context) (*plan.Plan, error) {
	items, err := stepItems(ctx, t.Steps, "steps")
	if err != nil {
		return nil, err
	}
	return plan.SequentialPlan(ctx, items...)
}

func stepItems(ctx *plan.Context, steps []Step, path string) ([]any, error) {
	items := make([]any, 0, len(steps))
	for i, s := range steps {
		item, err := s.item(ctx, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (s Step) item(ctx *plan.Context, path string) (any, error) {
	set := 0
	for _, ok := range []bool{s.MoveTorso != "", s.ParkArms != "", s.Navigate != nil, s.Sequential != nil, s.Parallel != nil, s.Code != nil} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return nil, fmt.Errorf("robotplans: %s: want exactly one action, got %d", path, set)
	}
	switch {
	case s.MoveTorso != "":
		a := new(MoveTorsoAction)
		if s.MoveTorso != Free {
			st, err := ParseTorsoState(s.MoveTorso)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			a.TorsoState = &st
		}
		return a, nil
	case s.ParkArms != "":
		a := new(ParkArmsAction)
		if s.ParkArms != Free {
			arms, err := ParseArms(s.ParkArms)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			a.Arm = &arms
		}
		return a, nil
	case s.Navigate != nil:
		return s.Navigate.action(path)
	case s.Sequential != nil:
		items, err := stepItems(ctx, s.Sequential, path+".sequential")
		if err != nil {
			return nil, err
		}
		return plan.SequentialPlan(ctx, items...)
	case s.Parallel != nil:
		items, err := stepItems(ctx, s.Parallel, path+".parallel")
		if err != nil {
			return nil, err
		}
		return plan.ParallelPlan(ctx, items...)
	default:
		return s.Code.plan(ctx), nil
	}
}

func (t *Target) action(path string) (*NavigateAction, error) {
	keep := t.Keep
	a := &NavigateAction{KeepJointStates: &keep}
	switch {
	case t.X == nil && t.Y == nil && t.Yaw == nil:
		return a, nil
	case t.X == nil || t.Y == nil:
		return nil, fmt.Errorf("robotplans: %s: navigate needs both x and y", path)
	}
	var yaw float64
	if t.Yaw != nil {
		yaw = *t.Yaw
	}
	a.TargetLocation = NewPose(*t.X, *t.Y, yaw)
	if t.Frame != "" {
		a.TargetLocation.Header.FrameID = t.Frame
	}
	return a, nil
}

func (c *CodeStep) plan(ctx *plan.Context) *plan.Plan {
	return plan.CodePlan(ctx, func(h *plan.Handle) error {
		w := h.World()
		if w == nil {
			return ErrNoWorld
		}
		for k, v := range c.Set {
			w.State.Set(k, v)
		}
		if c.Interrupt {
			h.Interrupt(h.Root())
		}
		return nil
	})
}
