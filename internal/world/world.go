package world

import (
	"errors"
	"fmt"

	"github.com/ethanmclark1/conav-suite/internal/scenario"
)

// Supported population limits.
const (
	MaxAgents           = 2
	MaxLargeObstacles   = 4
	MaxDynamicObstacles = 4
)

var (
	ErrTooManyAgents    = errors.New("too many agents")
	ErrTooManyObstacles = errors.New("too many obstacles")
)

// Config sizes a world. Zero sizes fall back to the package defaults.
type Config struct {
	NumAgents           int
	NumLargeObstacles   int
	NumSmallObstacles   int
	NumDynamicObstacles int

	AgentSize           float64
	GoalSize            float64
	LargeObstacleSize   float64
	SmallObstacleSize   float64
	DynamicObstacleSize float64

	MaxObservableDist float64

	Physics Physics
}

// DefaultConfig returns the single-agent layout used by the reference
// environment.
func DefaultConfig() Config {
	return Config{
		NumAgents:           1,
		NumLargeObstacles:   4,
		NumSmallObstacles:   10,
		NumDynamicObstacles: 1,
		MaxObservableDist:   1.0,
		Physics:             DefaultPhysics(),
	}
}

func (c *Config) applyDefaults() {
	if c.AgentSize == 0 {
		c.AgentSize = AgentSize
	}
	if c.GoalSize == 0 {
		c.GoalSize = GoalSize
	}
	if c.LargeObstacleSize == 0 {
		c.LargeObstacleSize = LargeObstacleSize
	}
	if c.SmallObstacleSize == 0 {
		c.SmallObstacleSize = SmallObstacleSize
	}
	if c.DynamicObstacleSize == 0 {
		c.DynamicObstacleSize = DynamicObstacleSize
	}
	if c.MaxObservableDist == 0 {
		c.MaxObservableDist = 1.0
	}
	if c.Physics == (Physics{}) {
		c.Physics = DefaultPhysics()
	}
}

// Validate rejects populations outside the supported limits.
func (c Config) Validate() error {
	switch {
	case c.NumAgents < 1:
		return fmt.Errorf("%w: need at least one agent, got %d", ErrTooManyAgents, c.NumAgents)
	case c.NumAgents > MaxAgents:
		return fmt.Errorf("%w: %d exceeds the supported %d", ErrTooManyAgents, c.NumAgents, MaxAgents)
	case c.NumLargeObstacles < 0 || c.NumLargeObstacles > MaxLargeObstacles:
		return fmt.Errorf("%w: %d large obstacles, supported 0-%d", ErrTooManyObstacles, c.NumLargeObstacles, MaxLargeObstacles)
	case c.NumDynamicObstacles < 0 || c.NumDynamicObstacles > MaxDynamicObstacles:
		return fmt.Errorf("%w: %d dynamic obstacles, supported 0-%d", ErrTooManyObstacles, c.NumDynamicObstacles, MaxDynamicObstacles)
	case c.NumSmallObstacles < 0:
		return fmt.Errorf("%w: negative small obstacle count %d", ErrTooManyObstacles, c.NumSmallObstacles)
	}
	return nil
}

// World owns every entity of an episode. Entities are created once by New
// and mutated in place by each reset.
type World struct {
	Agents         []*Agent
	Goals          []*Goal // 2 per agent: targets first, return points last
	LargeObstacles []*Obstacle
	SmallObstacles []*Obstacle
	Hazards        *Hazards // dynamic obstacles

	// Scenario in force since the last reset.
	Scenario scenario.Scenario

	Physics Physics
	drift   *Drift
	time    float64
}

// New builds a world populated per cfg.
func New(cfg Config) (*World, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	w := &World{Physics: cfg.Physics}

	for i := 0; i < cfg.NumAgents; i++ {
		w.Agents = append(w.Agents, &Agent{
			Entity: Entity{
				Name:    fmt.Sprintf("agent_%d", i),
				Size:    cfg.AgentSize,
				Movable: true,
				Color:   ColorAgent,
			},
			MaxObservableDist: cfg.MaxObservableDist,
		})
	}

	for i := 0; i < cfg.NumAgents*2; i++ {
		color := ColorGoal
		if i >= cfg.NumAgents {
			color = ColorReturn
		}
		w.Goals = append(w.Goals, &Goal{Entity: Entity{
			Name:  fmt.Sprintf("goal_%d", i),
			Size:  cfg.GoalSize,
			Color: color,
		}})
	}

	for i := 0; i < cfg.NumLargeObstacles; i++ {
		w.LargeObstacles = append(w.LargeObstacles, newObstacle(fmt.Sprintf("large_obs_%d", i), cfg.LargeObstacleSize, KindLarge))
	}
	for i := 0; i < cfg.NumSmallObstacles; i++ {
		w.SmallObstacles = append(w.SmallObstacles, newObstacle(fmt.Sprintf("small_obs_%d", i), cfg.SmallObstacleSize, KindSmall))
	}

	dynamic := make([]*Obstacle, 0, cfg.NumDynamicObstacles)
	for i := 0; i < cfg.NumDynamicObstacles; i++ {
		o := newObstacle(fmt.Sprintf("dynamic_obs_%d", i), cfg.DynamicObstacleSize, KindDynamic)
		o.Movable = true
		o.Active = false
		o.Color = ColorHazard
		dynamic = append(dynamic, o)
	}
	w.Hazards = newHazards(dynamic)

	if cfg.Physics.DriftStrength > 0 {
		w.drift = NewDrift(cfg.Physics.DriftSeed, cfg.Physics.DriftScale)
	}

	return w, nil
}

func newObstacle(name string, size float64, kind ObstacleKind) *Obstacle {
	return &Obstacle{
		Entity: Entity{
			Name:  name,
			Size:  size,
			Color: ColorObstacle,
		},
		Kind:     kind,
		Active:   true,
		BaseSize: size,
	}
}

// StaticObstacles returns large then small obstacles.
func (w *World) StaticObstacles() []*Obstacle {
	out := make([]*Obstacle, 0, len(w.LargeObstacles)+len(w.SmallObstacles))
	out = append(out, w.LargeObstacles...)
	return append(out, w.SmallObstacles...)
}

// Agent looks up an agent by name.
func (w *World) Agent(name string) (*Agent, bool) {
	for _, a := range w.Agents {
		if a.Name == name {
			return a, true
		}
	}
	return nil, false
}

// Time returns the simulated seconds since the last reset.
func (w *World) Time() float64 {
	return w.time
}

// ResetClock zeroes the simulated time. Called by the generator.
func (w *World) ResetClock() {
	w.time = 0
}
