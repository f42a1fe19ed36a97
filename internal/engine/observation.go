package engine

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/ethanmclark1/conav-suite/internal/geom"
	"github.com/ethanmclark1/conav-suite/internal/world"
)

// ObservationLen returns the fixed observation length for a population:
// own position and velocity, then one relative position per other agent,
// per obstacle, and for the active goal.
func ObservationLen(agents, large, small, dynamic int) int {
	return 2*Dims + Dims*(agents-1) + Dims*(large+small+dynamic) + Dims
}

// Observe builds agent's observation. Entities farther than the agent's
// observable distance, and dynamic obstacles sitting out the episode, read
// as the sentinel value in both components.
func (e *Env) Observe(agent string) ([]float64, error) {
	a, ok := e.World.Agent(agent)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAgent, agent)
	}
	w := e.World
	obs := make([]float64, 0, ObservationLen(len(w.Agents), len(w.LargeObstacles), len(w.SmallObstacles), w.Hazards.Len()))
	obs = append(obs, a.Position.X, a.Position.Y, a.Velocity.X, a.Velocity.Y)

	rel := func(p geom.Vec, visible bool) {
		d := r2.Sub(p, a.Position)
		if !visible || r2.Norm(d) > a.MaxObservableDist {
			obs = append(obs, a.MaxObservableDist, a.MaxObservableDist)
			return
		}
		obs = append(obs, d.X, d.Y)
	}

	for _, other := range w.Agents {
		if other.Name != a.Name {
			rel(other.Position, true)
		}
	}
	for _, o := range w.LargeObstacles {
		rel(o.Position, true)
	}
	for _, o := range w.SmallObstacles {
		rel(o.Position, true)
	}
	w.Hazards.Do(func(dyn []*world.Obstacle) {
		for _, o := range dyn {
			rel(o.Position, o.Active)
		}
	})
	if g := a.ActiveGoal(); g != nil {
		rel(g.Position, true)
	} else {
		rel(geom.Vec{}, false)
	}
	return obs, nil
}
