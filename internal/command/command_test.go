package command

import (
	"bytes"
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Tigul/cognitive-robot-abstract-machine/internal/config"
)

// execute parses args with cmd's flags and runs it.
func execute(t *testing.T, cmd Command, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cmd.SetupFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parsing flags: %v", err)
	}
	var out, errOut bytes.Buffer
	err = cmd.Execute(fs.Args(), &out, &errOut)
	return out.String(), errOut.String(), err
}

func writeTask(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "task.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// fastConfig ticks quickly with a coarse control step.
func fastConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.SetGlobalOption("tick.interval", "1ms")
	cfg.SetGlobalOption("statechart.dt", "0.5")
	cfg.SetGlobalOption("log.format", "json")
	return cfg
}

type testCommand struct {
	*BaseCommand
}

func (c *testCommand) Execute(args []string, stdout, stderr io.Writer) error { return nil }

func TestRegistry(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	registry.Register(&testCommand{NewBaseCommand("b", "B command", "b")})
	registry.Register(&testCommand{NewBaseCommand("a", "A command", "a")})

	cmd, err := registry.Get("a")
	if err != nil {
		t.Fatalf("Failed to get registered command: %v", err)
	}
	if cmd.Description() != "A command" {
		t.Errorf("unexpected command %q", cmd.Description())
	}
	if _, err := registry.Get("nonexistent"); err == nil {
		t.Error("Expected error for non-existent command, got nil")
	}
	if got := strings.Join(registry.List(), ","); got != "a,b" {
		t.Errorf("expected sorted names, got %s", got)
	}
}

func TestHelpCommand(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	help := NewHelpCommand(registry)
	registry.Register(help)
	registry.Register(NewRunCommand(config.NewConfig()))

	stdout, _, err := execute(t, help)
	if err != nil {
		t.Fatalf("help failed: %v", err)
	}
	for _, want := range []string{"Usage: cram <command>", "help", "run", "Perform a task file"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("help output missing %q:\n%s", want, stdout)
		}
	}

	stdout, _, err = execute(t, help, "run")
	if err != nil {
		t.Fatalf("help run failed: %v", err)
	}
	for _, want := range []string{"Command: run", "Flags:", "-timeout", "-print-state"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("help run output missing %q:\n%s", want, stdout)
		}
	}

	if _, stderr, err := execute(t, help, "nope"); err == nil || !strings.Contains(stderr, "Unknown command: nope") {
		t.Errorf("expected unknown command error, got %v (%q)", err, stderr)
	}
}

func TestVersionCommand(t *testing.T) {
	t.Parallel()

	cmd := NewVersionCommand("1.2.3")
	stdout, _, err := execute(t, cmd)
	if err != nil || stdout != "cram version 1.2.3\n" {
		t.Fatalf("unexpected version output %q (%v)", stdout, err)
	}
	if _, _, err := execute(t, cmd, "extra"); err == nil {
		t.Error("expected error for unexpected arguments")
	}
}

func TestConfigCommand(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config")
	cfg := config.NewConfig()
	cfg.SetCommandOption("run", "timeout", "5s")

	stdout, _, err := execute(t, NewConfigCommand(cfg, path), "robot")
	if err != nil || stdout != "robot: pr2\n" {
		t.Fatalf("expected schema default, got %q (%v)", stdout, err)
	}

	stdout, _, err = execute(t, NewConfigCommand(cfg, path), "missing.key")
	if err != nil || !strings.Contains(stdout, "'missing.key' not found") {
		t.Fatalf("expected not found, got %q (%v)", stdout, err)
	}

	stdout, _, err = execute(t, NewConfigCommand(cfg, path), "log.level", "debug")
	if err != nil || !strings.Contains(stdout, "Set configuration: log.level = debug") {
		t.Fatalf("set failed: %q (%v)", stdout, err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "log.level debug" {
		t.Fatalf("expected persisted option, got %q (%v)", data, err)
	}

	stdout, _, _ = execute(t, NewConfigCommand(cfg, path), "-all")
	for _, want := range []string{"log.level: debug", "[run]", "timeout: 5s"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("--all output missing %q:\n%s", want, stdout)
		}
	}

	stdout, _, _ = execute(t, NewConfigCommand(cfg, path), "validate")
	if !strings.Contains(stdout, "Configuration is valid.") {
		t.Errorf("expected valid config, got %q", stdout)
	}
	cfg.SetGlobalOption("statechart.dt", "fast")
	stdout, _, _ = execute(t, NewConfigCommand(cfg, path), "validate")
	if !strings.Contains(stdout, "1 issue(s)") {
		t.Errorf("expected one issue, got %q", stdout)
	}

	stdout, _, _ = execute(t, NewConfigCommand(cfg, path), "schema")
	if !strings.Contains(stdout, "tick.interval") {
		t.Errorf("schema output missing options:\n%s", stdout)
	}

	if _, _, err := execute(t, NewConfigCommand(cfg, path), "a", "b", "c"); err == nil {
		t.Error("expected error for too many arguments")
	}
}

func TestRunCommand(t *testing.T) {
	t.Parallel()

	path := writeTask(t, `name: lift
steps:
  - move_torso: high
  - parallel:
      - park_arms: left
      - code:
          set:
            flag: 1.5
`)
	stdout, stderr, err := execute(t, NewRunCommand(fastConfig()), "-print-state", path)
	if err != nil {
		t.Fatalf("run failed: %v\nstderr: %s", err, stderr)
	}
	for _, want := range []string{
		"World state:",
		"joint/torso_lift_joint",
		"0.3000",
		"joint/l_shoulder_pan_joint",
		"1.7120",
		"flag",
		"Task lift succeeded",
	} {
		if !strings.Contains(stdout, want) {
			t.Errorf("run output missing %q:\n%s", want, stdout)
		}
	}
	if !strings.Contains(stderr, `"msg":"task started"`) || !strings.Contains(stderr, `"action":"MoveTorsoAction"`) {
		t.Errorf("expected JSON logs on stderr, got:\n%s", stderr)
	}
}

func TestRunCommand_Failures(t *testing.T) {
	t.Parallel()

	interrupted := writeTask(t, `name: stop
steps:
  - code: {interrupt: true}
  - move_torso: high
`)
	stdout, _, err := execute(t, NewRunCommand(fastConfig()), "-print-state=false", interrupted)
	if err == nil || !strings.Contains(err.Error(), `task "stop"`) {
		t.Fatalf("expected interrupted task error, got %v", err)
	}
	if !strings.Contains(stdout, "Task stop interrupted") || strings.Contains(stdout, "World state:") {
		t.Errorf("unexpected output:\n%s", stdout)
	}

	unbound := writeTask(t, "name: free\nsteps:\n  - move_torso: free\n")
	if _, _, err := execute(t, NewRunCommand(fastConfig()), unbound); err == nil || !strings.Contains(err.Error(), "unbound") {
		t.Errorf("expected unbound parameter error, got %v", err)
	}

	cfg := fastConfig()
	cfg.SetGlobalOption("robot", "hsr")
	if _, _, err := execute(t, NewRunCommand(cfg), unbound); err == nil || !strings.Contains(err.Error(), `unknown robot "hsr"`) {
		t.Errorf("expected unknown robot error, got %v", err)
	}

	cfg = fastConfig()
	cfg.SetGlobalOption("statechart.dt", "-1")
	if _, _, err := execute(t, NewRunCommand(cfg), unbound); err == nil || !strings.Contains(err.Error(), "statechart.dt") {
		t.Errorf("expected settings error, got %v", err)
	}

	if _, _, err := execute(t, NewRunCommand(fastConfig()), filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing task file")
	}
	if _, stderr, err := execute(t, NewRunCommand(fastConfig())); err == nil || !strings.Contains(stderr, "Usage: cram run") {
		t.Errorf("expected usage error, got %v (%q)", err, stderr)
	}
}

func TestRunCommand_LogFile(t *testing.T) {
	t.Parallel()

	logPath := filepath.Join(t.TempDir(), "cram.log")
	cfg := fastConfig()
	cfg.SetGlobalOption("log.file", logPath)
	path := writeTask(t, "name: lift\nsteps:\n  - move_torso: mid\n")

	if _, _, err := execute(t, NewRunCommand(cfg), "-log-level", "warn", path); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if strings.Contains(string(data), "task started") {
		t.Errorf("info records should be filtered at warn level:\n%s", data)
	}
}

const freeTask = `name: fetch
steps:
  - move_torso: free
  - navigate: {x: 1, y: 2}
  - park_arms: both
  - navigate: {}
`

func TestParamsCommand_Text(t *testing.T) {
	t.Parallel()

	stdout, _, err := execute(t, NewParamsCommand(config.NewConfig()), writeTask(t, freeTask))
	if err != nil {
		t.Fatalf("params failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	if len(lines) < 3 || !strings.HasPrefix(lines[0], "NAME") {
		t.Fatalf("unexpected output:\n%s", stdout)
	}
	for _, want := range []string{
		"MoveTorsoAction_0.torso_state",
		"low,mid,high",
		"NavigateAction_3.target_location.pose.position.x",
		"continuous",
	} {
		if !strings.Contains(stdout, want) {
			t.Errorf("params output missing %q:\n%s", want, stdout)
		}
	}
	if strings.Contains(stdout, "NavigateAction_1") || strings.Contains(stdout, "ParkArmsAction_2") {
		t.Errorf("bound actions listed:\n%s", stdout)
	}

	bound := writeTask(t, "name: bound\nsteps:\n  - move_torso: low\n")
	stdout, _, err = execute(t, NewParamsCommand(config.NewConfig()), bound)
	if err != nil || !strings.Contains(stdout, "Task bound has no free parameters") {
		t.Errorf("unexpected output %q (%v)", stdout, err)
	}
}

func TestParamsCommand_YAML(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	cfg.SetCommandOption("params", "format", "yaml")
	stdout, _, err := execute(t, NewParamsCommand(cfg), writeTask(t, "name: torso\nsteps:\n  - move_torso: free\n"))
	if err != nil {
		t.Fatalf("params failed: %v", err)
	}
	want := `task: torso
parameters:
  - name: MoveTorsoAction_0.torso_state
    kind: symbolic
    domain:
      - low
      - mid
      - high
`
	if stdout != want {
		t.Errorf("unexpected yaml:\n%s\nwant:\n%s", stdout, want)
	}

	if _, _, err := execute(t, NewParamsCommand(cfg), "-format", "xml", writeTask(t, freeTask)); err == nil {
		t.Error("expected error for unknown format")
	}
}
