package config

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// Settings are the typed engine options in effect for one command.
type Settings struct {
	TickInterval  time.Duration
	Dt            float64
	ExprCacheSize int
	Robot         string
	LogLevel      slog.Level
	LogFile       string
	LogFormat     string
}

// Settings resolves the engine options for command, which may be "" for
// none. Values come from the environment, then the command section, then
// the global options, then the schema defaults.
func (s *ConfigSchema) Settings(c *Config, command string) (Settings, error) {
	get := func(key string) string { return s.ResolveCommand(c, command, key) }
	var (
		out Settings
		err error
	)
	if out.TickInterval, err = time.ParseDuration(get("tick.interval")); err != nil || out.TickInterval <= 0 {
		return Settings{}, fmt.Errorf("config: tick.interval: want a positive duration, got %q", get("tick.interval"))
	}
	if out.Dt, err = strconv.ParseFloat(get("statechart.dt"), 64); err != nil || out.Dt <= 0 {
		return Settings{}, fmt.Errorf("config: statechart.dt: want a positive number, got %q", get("statechart.dt"))
	}
	if out.ExprCacheSize, err = strconv.Atoi(get("expr.cache-size")); err != nil || out.ExprCacheSize < 1 {
		return Settings{}, fmt.Errorf("config: expr.cache-size: want a positive integer, got %q", get("expr.cache-size"))
	}
	if out.LogLevel, err = parseLevel(get("log.level")); err != nil {
		return Settings{}, fmt.Errorf("config: log.level: %w", err)
	}
	out.Robot = get("robot")
	out.LogFile = get("log.file")
	switch out.LogFormat = strings.ToLower(get("log.format")); out.LogFormat {
	case "auto", "text", "json":
	default:
		return Settings{}, fmt.Errorf("config: log.format: want auto, text or json, got %q", out.LogFormat)
	}
	return out, nil
}

// Duration resolves a duration option of command. An empty or invalid value
// yields zero.
func (s *ConfigSchema) Duration(c *Config, command, key string) time.Duration {
	d, err := time.ParseDuration(s.ResolveCommand(c, command, key))
	if err != nil {
		return 0
	}
	return d
}

// Bool resolves a boolean option of command. An empty or invalid value
// yields false.
func (s *ConfigSchema) Bool(c *Config, command, key string) bool {
	b, err := parseBool(s.ResolveCommand(c, command, key))
	return err == nil && b
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("expected log level, got %q", s)
	}
	return l, nil
}
