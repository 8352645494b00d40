package statechart

import (
	"errors"
	"fmt"
)

// Build-phase errors. All of them abort construction of the statechart.
var (
	ErrAlreadyExpanded       = errors.New("goal already expanded")
	ErrBuildBeforeExpand     = errors.New("goal built before it was expanded")
	ErrNodeAlreadyRegistered = errors.New("node already registered")
	ErrDuplicateName         = errors.New("node name already in use")
	ErrAlreadyBuilt          = errors.New("already built")
	ErrNotRegistered         = errors.New("goal is not registered with a statechart")
)

// Run-phase errors.
var (
	ErrNotBuilt        = errors.New("statechart not built")
	ErrInterrupted     = errors.New("motion interrupted")
	ErrMotionCancelled = errors.New("motion cancelled")
)

// BuildError reports a build-phase failure for a specific node.
type BuildError struct {
	Node string
	Op   string
	Err  error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("statechart: %s %q: %v", e.Op, e.Node, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

func buildErr(op string, n Node, err error) error {
	var be *BuildError
	if errors.As(err, &be) {
		return err
	}
	return &BuildError{Node: n.Name(), Op: op, Err: err}
}
