package engine

import (
	"log/slog"

	"github.com/ethanmclark1/conav-suite/internal/geom"
	"github.com/ethanmclark1/conav-suite/internal/world"
)

// updateStatus sets termination and truncation flags after a round. Flags
// are sticky: an agent flagged once stays flagged until the next reset.
func (e *Env) updateStatus() {
	var dynamic []world.Obstacle
	e.World.Hazards.Do(func(obs []*world.Obstacle) {
		for _, o := range obs {
			if o.Active {
				dynamic = append(dynamic, *o)
			}
		}
	})
	static := e.World.StaticObstacles()

	for _, a := range e.World.Agents {
		if e.terminations[a.Name] || e.truncations[a.Name] {
			continue
		}

		if e.reachedGoal(a) {
			e.terminations[a.Name] = true
			slog.Debug("agent terminated", "agent", a.Name, "round", e.rounds)
		}

		if hit, name := collides(a, static, dynamic); hit {
			e.truncations[a.Name] = true
			slog.Debug("agent truncated", "agent", a.Name, "obstacle", name, "round", e.rounds)
		}

		if e.rounds >= e.opts.MaxCycles && !e.terminations[a.Name] {
			e.truncations[a.Name] = true
		}
	}
}

// reachedGoal reports whether a is done with its goals. In return-to-start
// episodes the first arrival only switches the active goal.
func (e *Env) reachedGoal(a *world.Agent) bool {
	g := a.ActiveGoal()
	if g == nil || geom.Dist(a.Position, g.Position) > a.Size+g.Size {
		return false
	}
	if e.opts.ReturnToStart && !a.ReachedGoal {
		a.ReachedGoal = true
		slog.Debug("agent reached goal, returning", "agent", a.Name, "round", e.rounds)
		return false
	}
	return true
}

// collides reports the first obstacle within touching distance of a.
func collides(a *world.Agent, static []*world.Obstacle, dynamic []world.Obstacle) (bool, string) {
	for _, o := range static {
		if geom.Dist(a.Position, o.Position) <= a.Size+o.Size {
			return true, o.Name
		}
	}
	for _, o := range dynamic {
		if geom.Dist(a.Position, o.Position) <= a.Size+o.Size {
			return true, o.Name
		}
	}
	return false, ""
}
