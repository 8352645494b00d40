package statechart

import (
	"context"
	"log/slog"

	"github.com/Tigul/cognitive-robot-abstract-machine/internal/auxvar"
	"github.com/Tigul/cognitive-robot-abstract-machine/internal/symbolic"
	"github.com/Tigul/cognitive-robot-abstract-machine/internal/world"
)

// BuildContext is handed to Expand and Build.
type BuildContext struct {
	Context context.Context
	// Aux registers auxiliary variables referenced by conditions.
	Aux    *auxvar.Manager
	World  *world.World
	Logger *slog.Logger
	// Dt is the control-cycle time step in seconds.
	Dt float64

	chart *MotionStatechart
}

// Time is the control time in seconds, advanced by Dt every tick.
func (c *BuildContext) Time() symbolic.Scalar { return c.chart.timeVar.Scalar() }

// Expand expands a goal ahead of the statechart, so that its composed
// observation can be built from within the caller's own Expand.
func (c *BuildContext) Expand(n Node) error {
	return c.chart.expand(c, n)
}

// Build builds n ahead of the statechart and returns its observation
// expression. Goals in n's subtree must have been expanded first.
func (c *BuildContext) Build(n Node) (symbolic.Expr, error) {
	for _, d := range preorder(nil, n)[1:] {
		if _, ok := d.(Expander); ok && !d.base().expanded {
			return nil, buildErr("build", d, ErrBuildBeforeExpand)
		}
	}
	if err := c.chart.build(c, n); err != nil {
		return nil, err
	}
	return n.base().observation, nil
}

// Context is handed to the run-phase hooks.
type Context struct {
	Context  context.Context
	World    *world.World
	Logger   *slog.Logger
	Snapshot *symbolic.Snapshot
	// Time is the control time of the current tick.
	Time float64
	Dt   float64
	// Tick counts completed ticks since the last reset.
	Tick int
}

// Now returns the world clock's reading.
func (c *Context) Now() float64 { return c.World.Clock.Now() }
