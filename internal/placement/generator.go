package placement

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/ethanmclark1/conav-suite/internal/geom"
	"github.com/ethanmclark1/conav-suite/internal/scenario"
	"github.com/ethanmclark1/conav-suite/internal/world"
)

// DefaultMaxRestarts bounds how often a whole layout is redrawn after a
// draw runs out of attempts.
const DefaultMaxRestarts = 64

// Generator places every entity of a world for one episode.
type Generator struct {
	Sampler     Sampler
	MaxRestarts int

	// LastRestarts is the number of discarded layouts in the latest Reset.
	LastRestarts int
}

// NewGenerator returns a generator with the given budgets. Non-positive
// values use the defaults.
func NewGenerator(maxAttempts, maxRestarts int) *Generator {
	if maxRestarts <= 0 {
		maxRestarts = DefaultMaxRestarts
	}
	return &Generator{Sampler: NewSampler(maxAttempts), MaxRestarts: maxRestarts}
}

// Reset lays out agents, goals, large, small, and dynamic obstacles in that
// order, each avoiding everything placed before it. The caller must have
// stopped any motion task touching w.
func (g *Generator) Reset(w *world.World, rng *rand.Rand, name string) error {
	sc, err := scenario.Resolve(name)
	if err != nil {
		return err
	}
	if sc.Polygonal() && len(w.LargeObstacles) > len(sc.Triangles) {
		return fmt.Errorf("%w: scenario %q holds %d large obstacles, world has %d",
			ErrInfeasible, sc.Name, len(sc.Triangles), len(w.LargeObstacles))
	}

	w.Scenario = sc
	w.ResetClock()

	for attempt := 0; attempt <= g.MaxRestarts; attempt++ {
		err = g.place(w, rng, sc)
		if err == nil {
			g.LastRestarts = attempt
			if attempt > 0 {
				slog.Debug("layout needed restarts", "scenario", sc.Name, "restarts", attempt)
			}
			return nil
		}
		if !errors.Is(err, ErrInfeasible) {
			return err
		}
	}
	g.LastRestarts = g.MaxRestarts
	return fmt.Errorf("scenario %q after %d restarts: %w", sc.Name, g.MaxRestarts, err)
}

// layout accumulates the footprints placed so far.
type layout struct {
	placed []Disc
}

func (l *layout) add(p geom.Vec, r float64) {
	l.placed = append(l.placed, Disc{Center: p, Radius: r})
}

func (g *Generator) place(w *world.World, rng *rand.Rand, sc scenario.Scenario) error {
	var l layout

	if err := g.placeAgents(w, rng, sc, &l); err != nil {
		return fmt.Errorf("agents: %w", err)
	}
	if err := g.placeLarge(w, rng, sc, &l); err != nil {
		return fmt.Errorf("large obstacles: %w", err)
	}
	if err := g.placeSmall(w, rng, sc, &l); err != nil {
		return fmt.Errorf("small obstacles: %w", err)
	}
	if err := g.placeDynamic(w, rng, sc, &l); err != nil {
		return fmt.Errorf("dynamic obstacles: %w", err)
	}
	return nil
}

// keepOut is the region test shared by agents, goals, and small obstacles.
func keepOut(sc scenario.Scenario, eps float64) Predicate {
	var regionTest Predicate
	if sc.Polygonal() {
		regionTest = OutsideTriangles(sc.Triangles, eps)
	} else {
		regionTest = OutsideRects(sc.Regions, eps)
	}
	return All(regionTest, OutsideRects(sc.Dynamic, eps))
}

func (g *Generator) draw(rng *rand.Rand, box *geom.Rect, pred Predicate) (geom.Vec, error) {
	if box != nil {
		return g.Sampler.SampleIn(rng, *box, pred)
	}
	return g.Sampler.Sample(rng, pred)
}

func (g *Generator) placeAgents(w *world.World, rng *rand.Rand, sc scenario.Scenario, l *layout) error {
	largeSize := world.LargeObstacleSize
	if len(w.LargeObstacles) > 0 {
		largeSize = w.LargeObstacles[0].Size
	}

	for i, a := range w.Agents {
		a.GoalA = w.Goals[i]
		a.GoalB = w.Goals[len(w.Goals)-1-i]
		a.ReachedGoal = false
		a.Action = geom.Vec{}
		a.Stop()
		a.GoalA.Stop()
		a.GoalB.Stop()
		a.Color = world.ColorAgent
		a.GoalA.Color = world.ColorGoal
		a.GoalB.Color = world.ColorReturn

		excl := keepOut(sc, a.Size+largeSize)

		pos, err := g.draw(rng, sc.Start, All(excl, FarFrom(l.placed, a.Size)))
		if err != nil {
			return fmt.Errorf("%s: %w", a.Name, err)
		}
		l.add(pos, a.Size)
		l.add(pos, a.GoalB.Size)

		goal, err := g.draw(rng, sc.Goal, All(excl, FarFrom(l.placed, a.GoalA.Size)))
		if err != nil {
			return fmt.Errorf("%s goal: %w", a.Name, err)
		}
		l.add(goal, a.GoalA.Size)

		a.Position = pos
		a.GoalA.Position = goal
		a.GoalB.Position = pos
	}
	return nil
}

func (g *Generator) placeLarge(w *world.World, rng *rand.Rand, sc scenario.Scenario, l *layout) error {
	occupied := make(map[int]bool, len(sc.Triangles))

	for i, o := range w.LargeObstacles {
		o.Stop()
		o.Color = world.ColorObstacle

		var (
			pos geom.Vec
			err error
		)
		if sc.Polygonal() {
			free := func(p geom.Vec) bool {
				idx := TriangleIndex(sc.Triangles, p)
				return idx >= 0 && !occupied[idx]
			}
			pos, err = g.Sampler.Sample(rng, All(InsideAnyTriangle(sc.Triangles), free, FarFrom(l.placed, o.Size)))
			if err == nil {
				occupied[TriangleIndex(sc.Triangles, pos)] = true
			}
		} else {
			region := sc.Regions[i%len(sc.Regions)]
			pos, err = g.Sampler.SampleIn(rng, region, FarFrom(l.placed, o.Size))
		}
		if err != nil {
			return fmt.Errorf("%s: %w", o.Name, err)
		}
		o.Position = pos
		l.add(pos, o.Size)
	}
	return nil
}

func (g *Generator) placeSmall(w *world.World, rng *rand.Rand, sc scenario.Scenario, l *layout) error {
	if len(w.SmallObstacles) == 0 {
		return nil
	}
	largeSize := world.LargeObstacleSize
	if len(w.LargeObstacles) > 0 {
		largeSize = w.LargeObstacles[0].Size
	}

	for _, o := range w.SmallObstacles {
		o.Stop()
		o.Color = world.ColorObstacle
		pos, err := g.Sampler.Sample(rng, All(keepOut(sc, o.Size+largeSize), FarFrom(l.placed, o.Size)))
		if err != nil {
			return fmt.Errorf("%s: %w", o.Name, err)
		}
		o.Position = pos
		l.add(pos, o.Size)
	}
	return nil
}

func (g *Generator) placeDynamic(w *world.World, rng *rand.Rand, sc scenario.Scenario, l *layout) error {
	var err error
	w.Hazards.Do(func(obs []*world.Obstacle) {
		for i, o := range obs {
			o.Stop()
			o.Size = o.BaseSize
			o.Color = world.ColorHazard
			if i >= len(sc.Dynamic) {
				o.Active = false
				o.Region = geom.Rect{}
				continue
			}
			o.Active = true
			o.Region = sc.Dynamic[i]

			var pos geom.Vec
			pos, err = g.Sampler.SampleIn(rng, o.Region, FarFrom(l.placed, o.Size))
			if err != nil {
				err = fmt.Errorf("%s: %w", o.Name, err)
				return
			}
			o.Position = pos
			l.add(pos, o.Size)
		}
	})
	return err
}
