package command

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/Tigul/cognitive-robot-abstract-machine/internal/config"
	"github.com/Tigul/cognitive-robot-abstract-machine/internal/plan"
	"github.com/Tigul/cognitive-robot-abstract-machine/internal/precondition"
	"github.com/Tigul/cognitive-robot-abstract-machine/internal/robotplans"
	"github.com/Tigul/cognitive-robot-abstract-machine/internal/symbolic"
	"github.com/Tigul/cognitive-robot-abstract-machine/internal/world"
)

// RunCommand performs a task file against a fresh simulated world.
type RunCommand struct {
	*BaseCommand
	config     *config.Config
	timeout    time.Duration
	printState bool
	dt         float64
	logLevel   string
}

// NewRunCommand creates a new run command.
func NewRunCommand(cfg *config.Config) *RunCommand {
	return &RunCommand{
		BaseCommand: NewBaseCommand(
			"run",
			"Perform a task file against a simulated robot",
			"run [options] <task.yaml>",
		),
		config: cfg,
	}
}

// SetupFlags configures the flags for the run command. Defaults come from
// the [run] configuration.
func (c *RunCommand) SetupFlags(fs *flag.FlagSet) {
	schema := config.DefaultSchema()
	fs.DurationVar(&c.timeout, "timeout", schema.Duration(c.config, c.Name(), "timeout"), "Abort the task after this long (0 disables)")
	fs.BoolVar(&c.printState, "print-state", schema.Bool(c.config, c.Name(), "print-state"), "Print the world state after the task")
	fs.Float64Var(&c.dt, "dt", 0, "Override the statechart control-cycle step, in seconds")
	fs.StringVar(&c.logLevel, "log-level", "", "Override the log level")
}

// Execute runs the task.
func (c *RunCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if err := c.wantArgs(args, 1, stderr); err != nil {
		return err
	}

	if c.logLevel != "" {
		c.config.SetCommandOption(c.Name(), "log.level", c.logLevel)
	}
	settings, err := config.DefaultSchema().Settings(c.config, c.Name())
	if err != nil {
		return err
	}
	if c.dt > 0 {
		settings.Dt = c.dt
	}

	logger, closeLog, err := newLogger(settings, stderr)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	symbolic.SetExprCacheSize(settings.ExprCacheSize)
	precondition.SetExprCacheSize(settings.ExprCacheSize)

	robot, err := robotplans.RobotNamed(settings.Robot)
	if err != nil {
		return err
	}
	task, err := robotplans.LoadTask(args[0])
	if err != nil {
		return err
	}

	w := world.New(nil, nil)
	p, err := task.Plan(&plan.Context{
		World:        w,
		Robot:        robot,
		Logger:       logger,
		TickInterval: settings.TickInterval,
		Dt:           settings.Dt,
	})
	if err != nil {
		return fmt.Errorf("building task %q: %w", task.Name, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	logger.Info("task started", "task", task.Name, "robot", robot.Name, "nodes", len(p.Nodes()))
	start := time.Now()
	err = p.Perform(ctx)
	logger.Info("task finished", "task", task.Name, "status", p.Root().Status().String(), "elapsed", time.Since(start))

	if c.printState {
		writeState(stdout, w)
	}
	if err != nil {
		if errors.Is(err, plan.ErrInterrupted) {
			_, _ = fmt.Fprintf(stdout, "Task %s interrupted\n", task.Name)
		}
		return fmt.Errorf("task %q: %w", task.Name, err)
	}
	_, _ = fmt.Fprintf(stdout, "Task %s succeeded\n", task.Name)
	return nil
}

func writeState(out io.Writer, w *world.World) {
	tw := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "World state:")
	snapshot := w.State.Snapshot()
	for _, key := range sortedKeys(snapshot) {
		switch v := snapshot[key].(type) {
		case float64:
			_, _ = fmt.Fprintf(tw, "  %s\t%.4f\n", key, v)
		default:
			_, _ = fmt.Fprintf(tw, "  %s\t%v\n", key, v)
		}
	}
	_ = tw.Flush()
}
