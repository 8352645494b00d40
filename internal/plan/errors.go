package plan

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Graph errors.
var (
	ErrMultipleParents = errors.New("plan: node already has a parent")
	ErrCycle           = errors.New("plan: edge would create a cycle")
	ErrRootParent      = errors.New("plan: root cannot have a parent")
	ErrForeignNode     = errors.New("plan: node belongs to another plan")
	ErrEmptyPlan       = errors.New("plan: plan has no root")
	ErrReadOnly        = errors.New("plan: subtree views are read-only")
	ErrInvalidItem     = errors.New("plan: item must be a *Plan or an Action")
)

// Run errors.
var (
	// ErrInterrupted is the cause recorded on nodes forced to failed by an
	// interrupt. It is not a genuine failure.
	ErrInterrupted = errors.New("plan: interrupted")
	// ErrReactiveFailure is recorded when a reactive tree fails without an
	// error of its own.
	ErrReactiveFailure = errors.New("plan: reactive tree failed")
)

// NodeError is the failure of a plan node. Composite nodes wrap the error of
// the child that failed them, so the chain leads to the originating cause.
type NodeError struct {
	Node uuid.UUID
	Kind string
	Err  error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("plan node %s (%s): %v", e.Node, e.Kind, e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }

// IsInterrupt reports whether err is, or wraps, ErrInterrupted.
func IsInterrupt(err error) bool { return errors.Is(err, ErrInterrupted) }
