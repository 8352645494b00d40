package command

import (
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/Tigul/cognitive-robot-abstract-machine/internal/config"
	"github.com/Tigul/cognitive-robot-abstract-machine/internal/parameterize"
	"github.com/Tigul/cognitive-robot-abstract-machine/internal/robotplans"
)

// ParamsCommand lists the free parameters of a task file.
type ParamsCommand struct {
	*BaseCommand
	config *config.Config
	format string
}

// NewParamsCommand creates a new params command.
func NewParamsCommand(cfg *config.Config) *ParamsCommand {
	return &ParamsCommand{
		BaseCommand: NewBaseCommand(
			"params",
			"List the free parameters of a task file",
			"params [options] <task.yaml>",
		),
		config: cfg,
	}
}

// SetupFlags configures the flags for the params command.
func (c *ParamsCommand) SetupFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.format, "format", config.DefaultSchema().ResolveCommand(c.config, c.Name(), "format"), "Output format: text or yaml")
}

type paramDoc struct {
	Name   string   `yaml:"name"`
	Kind   string   `yaml:"kind"`
	Domain []string `yaml:"domain,omitempty"`
}

type paramsDoc struct {
	Task       string     `yaml:"task"`
	Parameters []paramDoc `yaml:"parameters"`
}

// Execute prints the parameters.
func (c *ParamsCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if err := c.wantArgs(args, 1, stderr); err != nil {
		return err
	}
	format := c.format
	if format == "" {
		format = config.DefaultSchema().ResolveCommand(c.config, c.Name(), "format")
	}
	if format != "text" && format != "yaml" {
		return fmt.Errorf("params: unknown format %q", format)
	}

	task, err := robotplans.LoadTask(args[0])
	if err != nil {
		return err
	}
	p, err := task.Plan(nil)
	if err != nil {
		return fmt.Errorf("building task %q: %w", task.Name, err)
	}
	vars := parameterize.ParameterizePlan(p)

	if format == "yaml" {
		doc := paramsDoc{Task: task.Name, Parameters: make([]paramDoc, 0, len(vars))}
		for _, v := range vars {
			doc.Parameters = append(doc.Parameters, paramDoc{Name: v.Name, Kind: v.Kind.String(), Domain: v.Domain})
		}
		enc := yaml.NewEncoder(stdout)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("params: encode: %w", err)
		}
		return enc.Close()
	}

	if len(vars) == 0 {
		_, _ = fmt.Fprintf(stdout, "Task %s has no free parameters\n", task.Name)
		return nil
	}
	w := tabwriter.NewWriter(stdout, 0, 8, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tKIND\tDOMAIN")
	for _, v := range vars {
		domain := "-"
		if len(v.Domain) > 0 {
			domain = strings.Join(v.Domain, ",")
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", v.Name, v.Kind, domain)
	}
	return w.Flush()
}
