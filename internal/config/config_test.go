package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigParsing(t *testing.T) {
	configContent := `# Global options
tick.interval 5ms
log.level debug

[run]
timeout 30s
print-state   no

[params]
format yaml`

	config, err := LoadFromReader(strings.NewReader(configContent))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if value, ok := config.GetGlobalOption("tick.interval"); !ok || value != "5ms" {
		t.Errorf("Expected tick.interval=5ms, got %s (exists: %v)", value, ok)
	}
	if value, ok := config.GetCommandOption("run", "timeout"); !ok || value != "30s" {
		t.Errorf("Expected run.timeout=30s, got %s (exists: %v)", value, ok)
	}
	if value, ok := config.GetCommandOption("run", "print-state"); !ok || value != "no" {
		t.Errorf("Expected run.print-state=no, got %q (exists: %v)", value, ok)
	}
	if value, ok := config.GetCommandOption("run", "log.level"); !ok || value != "debug" {
		t.Errorf("Expected run.log.level=debug (fallback), got %s (exists: %v)", value, ok)
	}
	if value, ok := config.GetCommandOption("nonexistent", "option"); ok {
		t.Errorf("Expected nonexistent option to not exist, but got %s", value)
	}
	if config.HasWarnings() {
		t.Errorf("Expected no warnings, got %v", config.Warnings)
	}
}

func TestEmptyConfig(t *testing.T) {
	config, err := LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Failed to load empty config: %v", err)
	}
	if len(config.Global) != 0 || len(config.Commands) != 0 {
		t.Errorf("Expected empty config, got %+v", config)
	}
}

func TestConfigWarnings(t *testing.T) {
	config, err := LoadFromReader(strings.NewReader("verbose true\nstatechart.dt fast\n[run]\ntimeout never\n"))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if len(config.Warnings) != 3 {
		t.Fatalf("Expected 3 warnings, got %v", config.Warnings)
	}
	joined := strings.Join(config.Warnings, "\n")
	for _, want := range []string{`unknown global option: "verbose"`, `"statechart.dt": expected float`, `"timeout" in [run]: expected duration`} {
		if !strings.Contains(joined, want) {
			t.Errorf("Expected a warning containing %q, got %v", want, config.Warnings)
		}
	}
}

func TestLoadFromPath(t *testing.T) {
	dir := t.TempDir()

	config, err := LoadFromPath(filepath.Join(dir, "missing"))
	if err != nil {
		t.Fatalf("Missing file should load as empty config: %v", err)
	}
	if len(config.Global) != 0 {
		t.Errorf("Expected empty config, got %v", config.Global)
	}

	path := filepath.Join(dir, "config")
	if err := os.WriteFile(path, []byte("robot pr2\n"), 0644); err != nil {
		t.Fatal(err)
	}
	config, err = LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if v, _ := config.GetGlobalOption("robot"); v != "pr2" {
		t.Errorf("Expected robot=pr2, got %q", v)
	}

	link := filepath.Join(dir, "link")
	if err := os.Symlink(path, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	if _, err := LoadFromPath(link); err == nil || !strings.Contains(err.Error(), "symlink not allowed") {
		t.Errorf("Expected symlink rejection, got %v", err)
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv(ConfigEnvVar, "/tmp/custom-config")
	got, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath returned error: %v", err)
	}
	if got != "/tmp/custom-config" {
		t.Fatalf("expected override path, got %q", got)
	}

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	t.Setenv(ConfigEnvVar, "")
	got, err = GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath returned error: %v", err)
	}
	if want := filepath.Join(home, ".cram", "config"); got != want {
		t.Fatalf("expected default path %q, got %q", want, got)
	}
}
