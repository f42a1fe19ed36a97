package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"slices"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ethanmclark1/conav-suite/internal/scenario"
)

// Environment variables that override file settings.
const (
	EnvDBPath       = "NAVSIM_DB_PATH"
	EnvLogLevel     = "NAVSIM_LOG_LEVEL"
	EnvRandomOrgKey = "RANDOM_ORG_API_KEY"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		cfg := Default()
		ApplyEnv(cfg)
		return cfg, Validate(cfg)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r over the defaults, applies
// environment overrides and validates the result.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyEnv(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads the first .env file found among paths into the process
// environment. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		err := godotenv.Load(p)
		if err == nil {
			return nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config: load %q: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides cfg with any navsim environment variables that are set.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv(EnvDBPath); v != "" {
		cfg.Storage.DBPath = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Server.LogLevel = LogLevel(v)
	}
	if v := os.Getenv(EnvRandomOrgKey); v != "" {
		cfg.Run.RandomOrgAPIKey = v
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if err := cfg.WorldConfig().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("env: %w", err))
	}
	if cfg.Env.MaxCycles <= 0 {
		errs = append(errs, fmt.Errorf("env.max_cycles %d must be positive", cfg.Env.MaxCycles))
	}
	if cfg.Env.Sensitivity <= 0 {
		errs = append(errs, fmt.Errorf("env.sensitivity %g must be positive", cfg.Env.Sensitivity))
	}
	if cfg.Env.MaxObservableDist < 0 {
		errs = append(errs, fmt.Errorf("env.max_observable_dist %g must not be negative", cfg.Env.MaxObservableDist))
	}
	for field, v := range map[string]float64{
		"env.agent_size":            cfg.Env.AgentSize,
		"env.goal_size":             cfg.Env.GoalSize,
		"env.large_obstacle_size":   cfg.Env.LargeObstacleSize,
		"env.small_obstacle_size":   cfg.Env.SmallObstacleSize,
		"env.dynamic_obstacle_size": cfg.Env.DynamicObstacleSize,
	} {
		if v < 0 {
			errs = append(errs, fmt.Errorf("%s %g must not be negative", field, v))
		}
	}

	if cfg.Motion.Interval < 0 {
		errs = append(errs, fmt.Errorf("motion.interval %s must not be negative", cfg.Motion.Interval))
	}
	if cfg.Motion.Step < 0 {
		errs = append(errs, fmt.Errorf("motion.step %g must not be negative", cfg.Motion.Step))
	}

	if cfg.Physics.DT <= 0 {
		errs = append(errs, fmt.Errorf("physics.dt %g must be positive", cfg.Physics.DT))
	}
	if cfg.Physics.Mass <= 0 {
		errs = append(errs, fmt.Errorf("physics.mass %g must be positive", cfg.Physics.Mass))
	}
	if cfg.Physics.Damping < 0 || cfg.Physics.Damping >= 1 {
		errs = append(errs, fmt.Errorf("physics.damping %g is out of range [0, 1)", cfg.Physics.Damping))
	}
	if cfg.Physics.MaxSpeed < 0 {
		errs = append(errs, fmt.Errorf("physics.max_speed %g must not be negative", cfg.Physics.MaxSpeed))
	}

	if cfg.Placement.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("placement.max_attempts %d must be positive", cfg.Placement.MaxAttempts))
	}
	if cfg.Placement.MaxRestarts < 0 {
		errs = append(errs, fmt.Errorf("placement.max_restarts %d must not be negative", cfg.Placement.MaxRestarts))
	}

	if cfg.Run.Episodes < 0 {
		errs = append(errs, fmt.Errorf("run.episodes %d must not be negative", cfg.Run.Episodes))
	}
	if cfg.Run.Interval < 0 {
		errs = append(errs, fmt.Errorf("run.interval %s must not be negative", cfg.Run.Interval))
	}

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Custom scenarios must be coherent and uniquely named.
	custom := make(map[string]int, len(cfg.Scenarios))
	for i, s := range cfg.Scenarios {
		prefix := fmt.Sprintf("scenarios[%d]", i)
		if err := s.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", prefix, err))
		}
		if prev, ok := custom[s.Name]; ok && s.Name != "" {
			errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of scenarios[%d]", prefix, s.Name, prev))
		}
		custom[s.Name] = i
	}

	known := scenario.Names()
	check := func(field, name string) {
		if _, ok := custom[name]; ok {
			return
		}
		if !slices.Contains(known, name) {
			errs = append(errs, fmt.Errorf("%s %q is not a registered or configured scenario", field, name))
		}
	}
	if cfg.Env.Scenario != "" {
		check("env.scenario", cfg.Env.Scenario)
	}
	for i, name := range cfg.Run.Scenarios {
		check(fmt.Sprintf("run.scenarios[%d]", i), name)
	}

	return errors.Join(errs...)
}
