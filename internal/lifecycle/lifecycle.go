// Package lifecycle defines the execution state shared by plan nodes and
// motion statechart nodes.
package lifecycle

import "fmt"

// State is the lifecycle state of an executable node.
type State int

const (
	NotStarted State = iota
	Running
	Paused
	Succeeded
	Failed
)

// IsTerminal reports whether s is Succeeded or Failed. Only a reset leaves a
// terminal state.
func (s State) IsTerminal() bool { return s == Succeeded || s == Failed }

// IsActive reports whether s is Running or Paused.
func (s State) IsActive() bool { return s == Running || s == Paused }

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}
