package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethanmclark1/conav-suite/internal/config"
	"github.com/ethanmclark1/conav-suite/internal/engine"
	"github.com/ethanmclark1/conav-suite/internal/scenario"
	"github.com/ethanmclark1/conav-suite/internal/world"
)

func TestLoadFromReader_Empty(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Env.Scenario != scenario.Default || cfg.Env.MaxCycles != engine.DefaultMaxCycles {
		t.Errorf("defaults not applied: %+v", cfg.Env)
	}
	if cfg.Placement.MaxAttempts != 10000 || cfg.Placement.MaxRestarts != 64 {
		t.Errorf("placement defaults = %+v", cfg.Placement)
	}
}

func TestLoadFromReader_Overrides(t *testing.T) {
	yaml := `
env:
  agents: 2
  dynamic_obstacles: 3
  return_to_start: true
  scenario: cross
motion:
  interval: 50ms
  step: 0.01
run:
  episodes: 5
  seed: 99
  scenarios: [bisect, corners]
server:
  listen: ":8080"
  log_level: debug
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Env.Agents != 2 || cfg.Env.DynamicObstacles != 3 || !cfg.Env.ReturnToStart {
		t.Errorf("env = %+v", cfg.Env)
	}
	if cfg.Env.SmallObstacles != 10 {
		t.Errorf("unset field lost its default: small_obstacles = %d", cfg.Env.SmallObstacles)
	}
	if cfg.Motion.Interval != 50*time.Millisecond || cfg.Motion.Step != 0.01 {
		t.Errorf("motion = %+v", cfg.Motion)
	}
	if cfg.Run.Seed == nil || *cfg.Run.Seed != 99 || len(cfg.Run.Scenarios) != 2 {
		t.Errorf("run = %+v", cfg.Run)
	}

	opts := cfg.Options()
	if opts.World.NumAgents != 2 || opts.DefaultScenario != "cross" || !opts.ReturnToStart {
		t.Errorf("options = %+v", opts)
	}
	if opts.MotionInterval != 50*time.Millisecond {
		t.Errorf("motion interval = %s", opts.MotionInterval)
	}
	if opts.World.Physics.DT != world.DefaultPhysics().DT {
		t.Errorf("physics dt = %g", opts.World.Physics.DT)
	}
	if cfg.Server.LogLevel.Level().String() != "DEBUG" {
		t.Errorf("log level = %v", cfg.Server.LogLevel.Level())
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	_, err := config.LoadFromReader(strings.NewReader("env:\n  agnets: 2\n"))
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	yaml := `
env:
  agents: 3
  max_cycles: -1
  scenario: nowhere
physics:
  damping: 1.5
placement:
  max_attempts: 0
server:
  log_level: loud
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	if !errors.Is(err, world.ErrTooManyAgents) {
		t.Errorf("error should wrap ErrTooManyAgents, got: %v", err)
	}
	for _, want := range []string{"max_cycles", "nowhere", "damping", "max_attempts", "log_level"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %s, got: %v", want, err)
		}
	}
}

func TestCustomScenario(t *testing.T) {
	yaml := `
env:
  scenario: cfg_box
scenarios:
  - name: cfg_box
    class: standard
    regions:
      - x: {lo: -0.2, hi: 0.2}
        y: {lo: -0.2, hi: 0.2}
    dynamic:
      - x: {lo: -0.9, hi: 0.9}
        y: {lo: 0.7, hi: 0.75}
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := cfg.RegisterScenarios(); err != nil {
		t.Fatalf("register: %v", err)
	}
	sc, err := scenario.Resolve("cfg_box")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(sc.Regions) != 1 || sc.Regions[0].X.Hi != 0.2 || len(sc.Dynamic) != 1 {
		t.Errorf("scenario = %+v", sc)
	}
}

func TestCustomScenario_Duplicate(t *testing.T) {
	yaml := `
scenarios:
  - name: cfg_twice
    regions: [{x: {lo: 0, hi: 0.1}, y: {lo: 0, hi: 0.1}}]
  - name: cfg_twice
    regions: [{x: {lo: 0, hi: 0.1}, y: {lo: 0, hi: 0.1}}]
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("expected duplicate error, got: %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(config.EnvDBPath, "/tmp/navsim-test.db")
	t.Setenv(config.EnvLogLevel, "warn")
	t.Setenv(config.EnvRandomOrgKey, "key")

	cfg, err := config.LoadFromReader(strings.NewReader("storage:\n  db_path: file.db\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Storage.DBPath != "/tmp/navsim-test.db" {
		t.Errorf("db path = %q", cfg.Storage.DBPath)
	}
	if cfg.Server.LogLevel != config.LogWarn {
		t.Errorf("log level = %q", cfg.Server.LogLevel)
	}
	if cfg.Run.RandomOrgAPIKey != "key" {
		t.Errorf("api key = %q", cfg.Run.RandomOrgAPIKey)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "navsim.yaml")
	if err := os.WriteFile(path, []byte("run:\n  episodes: 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Run.Episodes != 3 {
		t.Errorf("episodes = %d", cfg.Run.Episodes)
	}

	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file err = %v", err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("NAVSIM_DOTENV_PROBE=loaded\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("NAVSIM_DOTENV_PROBE") })

	if err := config.LoadDotEnv(filepath.Join(dir, "absent.env"), path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := os.Getenv("NAVSIM_DOTENV_PROBE"); got != "loaded" {
		t.Errorf("probe = %q", got)
	}
}
