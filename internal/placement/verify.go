package placement

import (
	"errors"
	"fmt"

	"github.com/ethanmclark1/conav-suite/internal/geom"
	"github.com/ethanmclark1/conav-suite/internal/world"
)

// ErrInvalidLayout is wrapped by every violation Verify reports.
var ErrInvalidLayout = errors.New("invalid layout")

type footprint struct {
	name   string
	owner  string // set on an agent and its return goal
	center geom.Vec
	radius float64
}

func footprints(w *world.World) []footprint {
	var out []footprint
	for _, a := range w.Agents {
		out = append(out, footprint{a.Name, a.Name, a.Position, a.Size})
	}
	for _, g := range w.Goals {
		owner := ""
		for _, a := range w.Agents {
			if a.GoalB == g {
				owner = a.Name
			}
		}
		out = append(out, footprint{g.Name, owner, g.Position, g.Size})
	}
	for _, o := range w.StaticObstacles() {
		out = append(out, footprint{o.Name, "", o.Position, o.Size})
	}
	for _, o := range w.Hazards.Snapshot() {
		if o.Active {
			out = append(out, footprint{o.Name, "", o.Position, o.Size})
		}
	}
	return out
}

// Verify checks a freshly reset world: no two footprints overlap (an agent
// and its own return point excepted), agents are at rest inside the world,
// and each return point sits on its agent.
func Verify(w *world.World) error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidLayout}, args...)...))
	}

	fps := footprints(w)
	for i := range fps {
		for j := i + 1; j < len(fps); j++ {
			a, b := fps[i], fps[j]
			if a.owner != "" && a.owner == b.owner {
				continue
			}
			if d := geom.Dist(a.center, b.center); d < a.radius+b.radius-1e-12 {
				fail("%s and %s overlap: dist %g < %g", a.name, b.name, d, a.radius+b.radius)
			}
		}
	}
	for _, a := range w.Agents {
		if a.Velocity != (geom.Vec{}) || a.Action != (geom.Vec{}) {
			fail("%s not at rest: vel=%v action=%v", a.Name, a.Velocity, a.Action)
		}
		if a.GoalB.Position != a.Position {
			fail("%s return point %v differs from start %v", a.Name, a.GoalB.Position, a.Position)
		}
		if a.ReachedGoal {
			fail("%s still marked as having reached its goal", a.Name)
		}
		if !geom.World.Contains(a.Position, 0) || !geom.World.Contains(a.GoalA.Position, 0) {
			fail("%s placed outside the world", a.Name)
		}
	}
	return errors.Join(errs...)
}
