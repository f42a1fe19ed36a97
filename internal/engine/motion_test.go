package engine

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/ethanmclark1/conav-suite/internal/geom"
	"github.com/ethanmclark1/conav-suite/internal/world"
)

// The tests in this file step the environment while motion tasks write
// hazards from their own goroutines. Run them with -race.

func TestRunnerWithLiveMotion(t *testing.T) {
	for _, name := range []string{"stellaris", "disaster_response_0", "precision_farming_2"} {
		t.Run(name, func(t *testing.T) {
			e := newEnv(t, func(o *Options) { o.MotionInterval = 50 * time.Microsecond })

			r := NewRunner(e, 3)
			r.Seed = seed(21)
			r.Scenarios = []string{name}
			r.Interval = 100 * time.Microsecond

			var results []EpisodeResult
			moved := false
			r.OnEpisode = func(res EpisodeResult) {
				results = append(results, res)
				start := make(map[string]Placement, len(res.Layout))
				for _, p := range res.Layout {
					start[p.Entity] = p
				}
				for _, o := range e.World.Hazards.Snapshot() {
					p, ok := start[o.Name]
					if !ok || !o.Active {
						continue
					}
					if p.X != o.Position.X || p.Y != o.Position.Y || p.Size != o.Size {
						moved = true
					}
				}
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := r.Run(ctx, 2); err != nil {
				t.Fatalf("run: %v", err)
			}
			if len(results) != 2 {
				t.Fatalf("episodes = %d", len(results))
			}
			for i, res := range results {
				if res.Outcome == OutcomeAborted {
					t.Fatalf("episode %d aborted after %d rounds", i, res.Rounds)
				}
				if res.Rounds < 1 || res.Rounds > DefaultMaxCycles {
					t.Fatalf("episode %d rounds = %d", i, res.Rounds)
				}
			}
			if !moved {
				t.Fatal("no hazard moved during either episode")
			}
			if e.motion.Running() {
				t.Fatal("motion still running after Run")
			}
		})
	}
}

func TestCorridorHazardTruncatesWhileMoving(t *testing.T) {
	const step = 0.002
	e := newEnv(t, func(o *Options) {
		bare(o)
		o.World.NumDynamicObstacles = 1
		o.MaxCycles = math.MaxInt32
		o.MotionInterval = 50 * time.Microsecond
		o.MotionStep = step
	})
	reset(t, e, "stellaris")

	a := e.World.Agents[0]
	a.Position = geom.Vec{}
	a.GoalA.Position = geom.Vec{X: 0.9, Y: 0.9}

	// Park the hazard at the low end of a corridor that runs through the
	// agent. The motion task picks up the new corridor on its next tick.
	e.World.Hazards.Update(0, func(o *world.Obstacle) {
		o.Region = geom.R(-0.5, 0.5, 0, 0)
		o.Position = geom.Vec{X: -0.5}
		o.Stop()
	})
	reach := a.Size + e.World.Hazards.Snapshot()[0].Size

	deadline := time.Now().Add(10 * time.Second)
	for !e.Truncations()["agent_0"] {
		if time.Now().After(deadline) {
			t.Fatalf("hazard never truncated the agent (last at %v)", e.World.Hazards.Snapshot()[0].Position)
		}
		before := e.World.Hazards.Snapshot()[0].Position.X
		if err := e.Step("agent_0", NoOp); err != nil {
			t.Fatalf("step: %v", err)
		}
		after := e.World.Hazards.Snapshot()[0].Position.X
		if a.Position != (geom.Vec{}) {
			t.Fatalf("agent moved to %v", a.Position)
		}

		// The hazard only moves along x between the two snapshots, far
		// from either end of the corridor. If it was in contact for the
		// whole step the status check must have seen it.
		lo, hi := math.Min(before, after), math.Max(before, after)
		truncated := e.Truncations()["agent_0"]
		if !truncated && hi <= reach && lo >= -reach && hi-lo < reach {
			t.Fatalf("hazard stayed within %g of the agent (x in [%g, %g]) without truncating", reach, lo, hi)
		}
		if truncated && (hi < -reach || lo > reach) {
			t.Fatalf("truncated while the hazard was out of reach (x in [%g, %g])", lo, hi)
		}
	}

	if !e.Done() {
		if err := e.Step("agent_0", NoOp); err != nil {
			t.Fatalf("dead step: %v", err)
		}
	}
	if !e.Done() {
		t.Fatal("truncated agent still in the rotation")
	}
}
