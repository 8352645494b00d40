package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestSchemaLookup(t *testing.T) {
	s := DefaultSchema()

	if opt := s.Lookup("", "tick.interval"); opt == nil || opt.Type != TypeDuration {
		t.Fatalf("expected tick.interval duration option, got %+v", opt)
	}
	if opt := s.Lookup("run", "timeout"); opt == nil || opt.Default != "1m" {
		t.Fatalf("expected run.timeout option, got %+v", opt)
	}
	if !s.IsKnown("run", "log.level") {
		t.Error("global options are known in command sections")
	}
	if s.IsKnown("", "timeout") {
		t.Error("section options are not global")
	}
	if got := s.Sections(); strings.Join(got, ",") != "params,run" {
		t.Errorf("unexpected sections %v", got)
	}
}

func TestResolveCommand(t *testing.T) {
	s := DefaultSchema()
	c := NewConfig()

	if got := s.Resolve(c, "tick.interval"); got != "10ms" {
		t.Errorf("expected default, got %q", got)
	}
	c.SetGlobalOption("tick.interval", "20ms")
	if got := s.ResolveCommand(c, "run", "tick.interval"); got != "20ms" {
		t.Errorf("expected global value, got %q", got)
	}
	c.SetCommandOption("run", "tick.interval", "30ms")
	if got := s.ResolveCommand(c, "run", "tick.interval"); got != "30ms" {
		t.Errorf("expected section value, got %q", got)
	}
	t.Setenv("CRAM_TICK_INTERVAL", "40ms")
	if got := s.ResolveCommand(c, "run", "tick.interval"); got != "40ms" {
		t.Errorf("expected env override, got %q", got)
	}
	if got := s.ResolveCommand(nil, "params", "format"); got != "text" {
		t.Errorf("expected section default, got %q", got)
	}
	if got := s.Resolve(c, "nope"); got != "" {
		t.Errorf("expected empty for unknown key, got %q", got)
	}
}

func TestSettings(t *testing.T) {
	s := DefaultSchema()

	got, err := s.Settings(NewConfig(), "run")
	if err != nil {
		t.Fatalf("Settings failed: %v", err)
	}
	want := Settings{
		TickInterval:  10 * time.Millisecond,
		Dt:            0.05,
		ExprCacheSize: got.ExprCacheSize,
		Robot:         "pr2",
		LogLevel:      slog.LevelInfo,
		LogFormat:     "auto",
	}
	if got != want || got.ExprCacheSize < 1 {
		t.Fatalf("unexpected defaults %+v", got)
	}

	c := NewConfig()
	c.SetGlobalOption("log.level", "WARN")
	c.SetCommandOption("run", "statechart.dt", "0.01")
	got, err = s.Settings(c, "run")
	if err != nil {
		t.Fatalf("Settings failed: %v", err)
	}
	if got.LogLevel != slog.LevelWarn || got.Dt != 0.01 {
		t.Errorf("unexpected settings %+v", got)
	}

	for key, value := range map[string]string{
		"tick.interval":   "-1s",
		"statechart.dt":   "0",
		"expr.cache-size": "many",
		"log.level":       "loud",
		"log.format":      "xml",
	} {
		c := NewConfig()
		c.SetGlobalOption(key, value)
		if _, err := s.Settings(c, ""); err == nil || !strings.Contains(err.Error(), key) {
			t.Errorf("%s=%s: expected error naming the key, got %v", key, value, err)
		}
	}

	if d := s.Duration(NewConfig(), "run", "timeout"); d != time.Minute {
		t.Errorf("expected 1m timeout, got %v", d)
	}
	if !s.Bool(NewConfig(), "run", "print-state") {
		t.Error("expected print-state default true")
	}
}

func TestFormatHelp(t *testing.T) {
	help := DefaultSchema().FormatHelp()
	for _, want := range []string{"Global Options:", "tick.interval", "env: CRAM_LOG_LEVEL", "[run] Options:", "default: 1m"} {
		if !strings.Contains(help, want) {
			t.Errorf("help missing %q:\n%s", want, help)
		}
	}
}
