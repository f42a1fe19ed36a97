// Package motion drives dynamic obstacles along scripted paths while an
// episode runs. Each active obstacle gets its own goroutine that wakes on a
// fixed interval and mutates the obstacle under the world's hazard lock.
package motion

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/ethanmclark1/conav-suite/internal/geom"
	"github.com/ethanmclark1/conav-suite/internal/scenario"
	"github.com/ethanmclark1/conav-suite/internal/world"
)

// Kind selects the scripted behaviour of a dynamic obstacle.
type Kind uint8

const (
	KindCorridor  Kind = iota // Bounce along the corridor's long axis
	KindGrowth                // Grow in place
	KindLawnMower             // Travel to a field, sweep it, return
)

func (k Kind) String() string {
	switch k {
	case KindCorridor:
		return "corridor"
	case KindGrowth:
		return "growth"
	case KindLawnMower:
		return "lawn_mower"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Tuning defaults.
const (
	DefaultStep     = 0.02 // world units per tick
	MaxHazardSize   = 0.5
	ArriveTolerance = 0.05
)

// Policy is the per-episode motion rule shared by every dynamic obstacle of
// a scenario.
type Policy struct {
	Kind    Kind
	Step    float64
	Growth  float64 // KindGrowth: size factor per tick
	MaxSize float64 // KindGrowth: size cap
	Sweep   scenario.Sweep
}

// PolicyFor picks the policy for a scenario's class.
func PolicyFor(sc scenario.Scenario, step float64) Policy {
	if step <= 0 {
		step = DefaultStep
	}
	switch sc.Class {
	case scenario.ClassDisasterResponse:
		return Policy{Kind: KindGrowth, Step: step, Growth: sc.Growth, MaxSize: MaxHazardSize}
	case scenario.ClassPrecisionFarming:
		p := Policy{Kind: KindLawnMower, Step: step}
		if sc.Sweep != nil {
			p.Sweep = *sc.Sweep
		}
		return p
	default:
		return Policy{Kind: KindCorridor, Step: step}
	}
}

// Region returns the area an obstacle spawned in spawn may visit under p.
// A lawn mower travels from its spawn box to the field and back, so its
// region covers both along with the destination.
func (p Policy) Region(spawn geom.Rect) geom.Rect {
	if p.Kind != KindLawnMower {
		return spawn
	}
	return spawn.Union(p.Sweep.Bounds).Extend(p.Sweep.Destination)
}

// phase of a lawn-mower pass.
type phase uint8

const (
	toDestination phase = iota
	sweeping
	toStart
)

func (p phase) String() string {
	switch p {
	case toDestination:
		return "moving_to_destination"
	case sweeping:
		return "zigzagging"
	case toStart:
		return "moving_to_start"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

// mover holds the per-obstacle state of one motion task.
type mover struct {
	policy  Policy
	start   geom.Vec
	phase   phase
	heading scenario.Direction
}

func newMover(p Policy, start geom.Vec) *mover {
	return &mover{policy: p, start: start, heading: p.Sweep.Direction}
}

// advance applies one tick to o. The caller holds the hazard lock.
func (m *mover) advance(o *world.Obstacle) {
	switch m.policy.Kind {
	case KindCorridor:
		bounce(o, m.policy.Step)
	case KindGrowth:
		o.Size = math.Min(o.Size*m.policy.Growth, m.policy.MaxSize)
	case KindLawnMower:
		m.mow(o)
	}
}

// bounce moves o along the longer axis of its corridor, reversing at the
// ends. The velocity records the signed displacement of the last tick.
func bounce(o *world.Obstacle, step float64) {
	r := o.Region
	alongX := r.X.Len() >= r.Y.Len()

	axis, pos, vel := r.Y, o.Position.Y, o.Velocity.Y
	if alongX {
		axis, pos, vel = r.X, o.Position.X, o.Velocity.X
	}

	dir := 1.0
	if vel < 0 {
		dir = -1
	}
	next := pos + dir*step
	switch {
	case next >= axis.Hi:
		next, dir = axis.Hi, -1
	case next <= axis.Lo:
		next, dir = axis.Lo, 1
	}

	o.Position = r.Clamp(o.Position)
	if alongX {
		o.Position.X = next
		o.Velocity = geom.Vec{X: dir * step}
	} else {
		o.Position.Y = next
		o.Velocity = geom.Vec{Y: dir * step}
	}
}

// mow runs the lawn-mower state machine for one tick.
func (m *mover) mow(o *world.Obstacle) {
	sw := m.policy.Sweep
	step := m.policy.Step

	switch m.phase {
	case toDestination:
		if geom.Dist(o.Position, sw.Destination) <= ArriveTolerance {
			o.Position = sw.Destination
			o.Stop()
			m.phase = sweeping
			m.heading = sw.Direction
			return
		}
		moveToward(o, sw.Destination, step)

	case sweeping:
		next := o.Position
		next.X += float64(m.heading) * step
		if sw.Bounds.X.Contains(next.X, 0) {
			o.Velocity = geom.Vec{X: next.X - o.Position.X}
			o.Position = next
			return
		}
		// Row finished: advance one lane and turn around.
		next = o.Position
		next.Y += 2 * o.Size
		if !sw.Bounds.Y.Contains(next.Y, 0) {
			o.Stop()
			m.phase = toStart
			return
		}
		o.Velocity = geom.Vec{Y: next.Y - o.Position.Y}
		o.Position = next
		m.heading = -m.heading

	case toStart:
		if geom.Dist(o.Position, m.start) <= ArriveTolerance {
			o.Position = m.start
			o.Stop()
			m.phase = toDestination
			return
		}
		moveToward(o, m.start, step)
	}
}

func moveToward(o *world.Obstacle, target geom.Vec, step float64) {
	d := r2.Sub(target, o.Position)
	dist := r2.Norm(d)
	if dist <= step {
		o.Velocity = d
		o.Position = target
		return
	}
	o.Velocity = r2.Scale(step/dist, d)
	o.Position = geom.World.Clamp(r2.Add(o.Position, o.Velocity))
}
