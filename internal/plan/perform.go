package plan

import (
	"context"
	"errors"
	"fmt"

	bt "github.com/joeycumines/go-behaviortree"

	"github.com/Tigul/cognitive-robot-abstract-machine/internal/lifecycle"
)

// errFinished stops the ticker once the root is terminal.
var errFinished = errors.New("plan: finished")

// Perform ticks the plan every Context.TickInterval until its root finishes.
// It returns nil when the root succeeds and the root's failure otherwise;
// interrupts wrap ErrInterrupted. Cancelling ctx interrupts the tree and
// returns the context's error.
func (p *Plan) Perform(ctx context.Context) error {
	root := p.Root()
	if root == nil {
		return ErrEmptyPlan
	}
	logger := p.ctx.logger()
	logger.Debug("plan perform", "root", root.id, "kind", root.Kind())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	driver := bt.New(func([]bt.Node) (bt.Status, error) {
		st, _ := p.Tick(ctx)
		if st.IsTerminal() {
			return bt.Success, errFinished
		}
		return bt.Running, nil
	})
	ticker := bt.NewTicker(ctx, p.ctx.tickInterval(), driver)
	<-ticker.Done()

	switch root.Status() {
	case lifecycle.Succeeded:
		logger.Debug("plan succeeded", "root", root.id)
		return nil
	case lifecycle.Failed:
		return root.Err()
	}

	root.Interrupt()
	err := ticker.Err()
	if err == nil || errors.Is(err, errFinished) {
		err = ctx.Err()
	}
	if err == nil {
		err = ErrInterrupted
	}
	return fmt.Errorf("plan: perform stopped: %w", err)
}

// BTNode adapts the node to a behavior tree leaf. Each tick of the leaf
// ticks the node once. A running, paused or not yet started node reports
// bt.Running, and a failure reports bt.Failure without an error so that
// fallbacks can recover.
func (n *Node) BTNode(ctx context.Context) bt.Node {
	return bt.New(func([]bt.Node) (bt.Status, error) {
		st, _ := n.tick(&tickContext{ctx: withDrive(ctx, n), top: n})
		switch st {
		case lifecycle.Succeeded:
			return bt.Success, nil
		case lifecycle.Failed:
			return bt.Failure, nil
		default:
			return bt.Running, nil
		}
	})
}
