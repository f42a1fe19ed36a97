package world

import (
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/ethanmclark1/conav-suite/internal/geom"
)

// Physics holds the integration constants of the world step.
type Physics struct {
	DT       float64 // Seconds per round
	Damping  float64 // Fraction of velocity lost per round
	Mass     float64
	MaxSpeed float64 // 0 = unbounded

	// Ambient drift: a slowly varying force field applied to every agent.
	DriftStrength float64 // 0 disables the field
	DriftScale    float64 // Spatial frequency of the field
	DriftSeed     int64
}

// DefaultPhysics matches the multi-agent particle environment constants.
func DefaultPhysics() Physics {
	return Physics{
		DT:         0.1,
		Damping:    0.25,
		Mass:       1.0,
		DriftScale: 1.5,
	}
}

// Step integrates every agent by one round using the force stored in its
// Action. Goals and static obstacles never move; dynamic obstacles are
// driven by their own scripted motion.
func (w *World) Step() {
	p := w.Physics
	for _, a := range w.Agents {
		if !a.Movable {
			continue
		}
		force := a.Action
		if w.drift != nil {
			force = r2.Add(force, r2.Scale(p.DriftStrength, w.drift.At(a.Position, w.time)))
		}
		vel := r2.Add(r2.Scale(1-p.Damping, a.Velocity), r2.Scale(p.DT/p.Mass, force))
		if p.MaxSpeed > 0 {
			if speed := r2.Norm(vel); speed > p.MaxSpeed {
				vel = r2.Scale(p.MaxSpeed/speed, vel)
			}
		}
		a.Velocity = vel
		a.Position = r2.Add(a.Position, r2.Scale(p.DT, vel))
	}
	w.time += p.DT
}

// Drift is a time-varying vector field built from two simplex noise layers.
type Drift struct {
	x, y  opensimplex.Noise
	scale float64
}

// NewDrift creates a drift field. Equal seeds produce equal fields.
func NewDrift(seed int64, scale float64) *Drift {
	if scale <= 0 {
		scale = 1
	}
	return &Drift{
		x:     opensimplex.NewNormalized(seed),
		y:     opensimplex.NewNormalized(seed + 1),
		scale: scale,
	}
}

// At returns the field at point p and time t, each component in [-1, 1].
func (d *Drift) At(p geom.Vec, t float64) geom.Vec {
	return geom.Vec{
		X: fractal(d.x, p.X*d.scale, p.Y*d.scale, t, 3)*2 - 1,
		Y: fractal(d.y, p.X*d.scale, p.Y*d.scale, t, 3)*2 - 1,
	}
}

// fractal layers octaves of normalized noise, halving amplitude and
// doubling frequency each time. The result stays in [0, 1].
func fractal(noise opensimplex.Noise, x, y, t float64, octaves int) float64 {
	total, amplitude, maxVal, freq := 0.0, 1.0, 0.0, 1.0
	for i := 0; i < octaves; i++ {
		total += noise.Eval3(x*freq, y*freq, t*0.1) * amplitude
		maxVal += amplitude
		amplitude *= 0.5
		freq *= 2
	}
	return math.Max(0, math.Min(1, total/maxVal))
}
