// Package config loads the navsim YAML configuration and maps it onto the
// engine's options.
package config

import (
	"log/slog"
	"time"

	"github.com/ethanmclark1/conav-suite/internal/engine"
	"github.com/ethanmclark1/conav-suite/internal/motion"
	"github.com/ethanmclark1/conav-suite/internal/placement"
	"github.com/ethanmclark1/conav-suite/internal/scenario"
	"github.com/ethanmclark1/conav-suite/internal/world"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level converts l to a slog level. Unknown values map to info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Config is the top-level navsim configuration.
type Config struct {
	Env       EnvConfig           `yaml:"env"`
	Motion    MotionConfig        `yaml:"motion"`
	Physics   PhysicsConfig       `yaml:"physics"`
	Placement PlacementConfig     `yaml:"placement"`
	Run       RunConfig           `yaml:"run"`
	Storage   StorageConfig       `yaml:"storage"`
	Server    ServerConfig        `yaml:"server"`
	Scenarios []scenario.Scenario `yaml:"scenarios"`
}

// EnvConfig sizes the world and sets the stepping rules.
type EnvConfig struct {
	Agents           int `yaml:"agents"`
	LargeObstacles   int `yaml:"large_obstacles"`
	SmallObstacles   int `yaml:"small_obstacles"`
	DynamicObstacles int `yaml:"dynamic_obstacles"`

	// Entity radii. Zero keeps the built-in size.
	AgentSize           float64 `yaml:"agent_size"`
	GoalSize            float64 `yaml:"goal_size"`
	LargeObstacleSize   float64 `yaml:"large_obstacle_size"`
	SmallObstacleSize   float64 `yaml:"small_obstacle_size"`
	DynamicObstacleSize float64 `yaml:"dynamic_obstacle_size"`

	MaxObservableDist float64 `yaml:"max_observable_dist"`
	MaxCycles         int     `yaml:"max_cycles"`
	ReturnToStart     bool    `yaml:"return_to_start"`
	ContinuousActions bool    `yaml:"continuous_actions"`
	Sensitivity       float64 `yaml:"sensitivity"`

	// Scenario used when a reset names none. RandomScenario overrides it.
	Scenario       string `yaml:"scenario"`
	RandomScenario bool   `yaml:"random_scenario"`
}

// MotionConfig paces the scripted dynamic obstacles.
type MotionConfig struct {
	Interval time.Duration `yaml:"interval"`
	Step     float64       `yaml:"step"`
}

// PhysicsConfig holds the world step constants.
type PhysicsConfig struct {
	DT            float64 `yaml:"dt"`
	Damping       float64 `yaml:"damping"`
	Mass          float64 `yaml:"mass"`
	MaxSpeed      float64 `yaml:"max_speed"`
	DriftStrength float64 `yaml:"drift_strength"`
	DriftScale    float64 `yaml:"drift_scale"`
	DriftSeed     int64   `yaml:"drift_seed"`
}

// PlacementConfig bounds rejection sampling.
type PlacementConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
	MaxRestarts int `yaml:"max_restarts"`
}

// RunConfig drives the episode runner.
type RunConfig struct {
	Episodes   int           `yaml:"episodes"` // 0 = until interrupted
	Interval   time.Duration `yaml:"interval"` // pause between rounds
	Seed       *int64        `yaml:"seed"`     // first episode seed; nil draws fresh seeds
	PolicySeed int64         `yaml:"policy_seed"`
	Scenarios  []string      `yaml:"scenarios"` // cycled per episode

	// RandomOrgAPIKey enables random.org seeds. Usually set through the
	// environment rather than the file.
	RandomOrgAPIKey string `yaml:"random_org_api_key"`
}

// StorageConfig locates the episode database. An empty path disables it.
type StorageConfig struct {
	DBPath string `yaml:"db_path"`
}

// ServerConfig configures the status API and logging.
type ServerConfig struct {
	// Listen is the HTTP address. Empty disables the API.
	Listen   string   `yaml:"listen"`
	LogLevel LogLevel `yaml:"log_level"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	wc := world.DefaultConfig()
	return &Config{
		Env: EnvConfig{
			Agents:            wc.NumAgents,
			LargeObstacles:    wc.NumLargeObstacles,
			SmallObstacles:    wc.NumSmallObstacles,
			DynamicObstacles:  wc.NumDynamicObstacles,
			MaxObservableDist: wc.MaxObservableDist,
			MaxCycles:         engine.DefaultMaxCycles,
			Sensitivity:       engine.DefaultSensitivity,
			Scenario:          scenario.Default,
		},
		Physics: PhysicsConfig{
			DT:         wc.Physics.DT,
			Damping:    wc.Physics.Damping,
			Mass:       wc.Physics.Mass,
			MaxSpeed:   wc.Physics.MaxSpeed,
			DriftScale: wc.Physics.DriftScale,
		},
		Motion: MotionConfig{
			Interval: motion.DefaultInterval,
			Step:     motion.DefaultStep,
		},
		Placement: PlacementConfig{
			MaxAttempts: placement.DefaultMaxAttempts,
			MaxRestarts: placement.DefaultMaxRestarts,
		},
		Run: RunConfig{
			Episodes:   1,
			PolicySeed: 1,
		},
		Server: ServerConfig{
			LogLevel: LogInfo,
		},
	}
}

// RegisterScenarios adds the file's custom scenarios to the registry.
func (c *Config) RegisterScenarios() error {
	for _, s := range c.Scenarios {
		if err := scenario.Register(s); err != nil {
			return err
		}
		slog.Debug("registered scenario", "name", s.Name, "class", s.Class)
	}
	return nil
}

// WorldConfig returns the world sizing described by c.
func (c *Config) WorldConfig() world.Config {
	return world.Config{
		NumAgents:           c.Env.Agents,
		NumLargeObstacles:   c.Env.LargeObstacles,
		NumSmallObstacles:   c.Env.SmallObstacles,
		NumDynamicObstacles: c.Env.DynamicObstacles,
		AgentSize:           c.Env.AgentSize,
		GoalSize:            c.Env.GoalSize,
		LargeObstacleSize:   c.Env.LargeObstacleSize,
		SmallObstacleSize:   c.Env.SmallObstacleSize,
		DynamicObstacleSize: c.Env.DynamicObstacleSize,
		MaxObservableDist:   c.Env.MaxObservableDist,
		Physics: world.Physics{
			DT:            c.Physics.DT,
			Damping:       c.Physics.Damping,
			Mass:          c.Physics.Mass,
			MaxSpeed:      c.Physics.MaxSpeed,
			DriftStrength: c.Physics.DriftStrength,
			DriftScale:    c.Physics.DriftScale,
			DriftSeed:     c.Physics.DriftSeed,
		},
	}
}

// Options maps c onto engine options. Seeds and Metrics are left for the
// caller to attach.
func (c *Config) Options() engine.Options {
	return engine.Options{
		World:             c.WorldConfig(),
		MaxCycles:         c.Env.MaxCycles,
		ReturnToStart:     c.Env.ReturnToStart,
		ContinuousActions: c.Env.ContinuousActions,
		Sensitivity:       c.Env.Sensitivity,
		DefaultScenario:   c.Env.Scenario,
		RandomScenario:    c.Env.RandomScenario,
		MaxAttempts:       c.Placement.MaxAttempts,
		MaxRestarts:       c.Placement.MaxRestarts,
		MotionInterval:    c.Motion.Interval,
		MotionStep:        c.Motion.Step,
	}
}
