// Package world provides the entities of a navigation episode and the
// physical integration step that moves agents between rounds.
package world

import (
	"fmt"

	"github.com/ethanmclark1/conav-suite/internal/geom"
)

// Default entity radii.
const (
	AgentSize           = 0.05
	GoalSize            = 0.05
	LargeObstacleSize   = 0.1
	SmallObstacleSize   = 0.01
	DynamicObstacleSize = 0.05
)

// Color is an RGB triple in [0, 1]. Cosmetic only.
type Color [3]float64

var (
	ColorAgent    = Color{1, 0.95, 0.8}
	ColorGoal     = Color{0.835, 0.90, 0.831}
	ColorReturn   = Color{0.85, 0.90, 0.99}
	ColorObstacle = Color{0.97, 0.801, 0.8}
	ColorHazard   = Color{0.75, 0.25, 0.25}
)

// Entity is the state shared by agents, goals, and obstacles.
type Entity struct {
	Name     string   `json:"name"`
	Size     float64  `json:"size"`
	Movable  bool     `json:"movable"`
	Position geom.Vec `json:"position"`
	Velocity geom.Vec `json:"velocity"`
	Color    Color    `json:"color"`
}

// Stop zeroes the velocity.
func (e *Entity) Stop() {
	e.Velocity = geom.Vec{}
}

// Agent is a controllable entity navigating to its goal.
type Agent struct {
	Entity

	// GoalA is the target, GoalB the start point to return to. Both point
	// into World.Goals; the world owns them.
	GoalA *Goal `json:"-"`
	GoalB *Goal `json:"-"`

	// ReachedGoal flips once GoalA is reached in return-to-start episodes.
	ReachedGoal bool `json:"reached_goal"`

	MaxObservableDist float64 `json:"max_observable_dist"`

	// Action is the force applied on the next world step.
	Action geom.Vec `json:"action"`
}

// ActiveGoal returns the goal the agent is currently heading for.
func (a *Agent) ActiveGoal() *Goal {
	if a.ReachedGoal && a.GoalB != nil {
		return a.GoalB
	}
	return a.GoalA
}

// Goal is a stationary target disc.
type Goal struct {
	Entity
}

// ObstacleKind separates the three obstacle populations.
type ObstacleKind uint8

const (
	KindLarge ObstacleKind = iota
	KindSmall
	KindDynamic
)

func (k ObstacleKind) String() string {
	switch k {
	case KindLarge:
		return "large"
	case KindSmall:
		return "small"
	case KindDynamic:
		return "dynamic"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Obstacle is a hazard agents must avoid.
type Obstacle struct {
	Entity
	Kind ObstacleKind `json:"kind"`

	// Active reports whether a dynamic obstacle takes part in this episode.
	// Static obstacles are always active.
	Active bool `json:"active"`

	// Region is the corridor a dynamic obstacle was placed in.
	Region geom.Rect `json:"region"`

	// BaseSize is the radius restored on every reset; growing hazards
	// change Size during an episode.
	BaseSize float64 `json:"base_size"`
}
