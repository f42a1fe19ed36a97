// Package placement draws collision-free entity layouts for an episode by
// rejection sampling against scenario constraints.
package placement

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/ethanmclark1/conav-suite/internal/geom"
)

// ErrInfeasible is returned when no valid position is found within the
// attempt budget.
var ErrInfeasible = errors.New("placement infeasible")

// DefaultMaxAttempts bounds a single rejection-sampling draw.
const DefaultMaxAttempts = 10000

// Predicate reports whether a candidate point is acceptable.
type Predicate func(p geom.Vec) bool

// Sampler draws uniform points until a predicate accepts one. It keeps no
// state between calls.
type Sampler struct {
	Bounds      geom.Rect
	MaxAttempts int
}

// NewSampler returns a sampler over the world square. A non-positive
// maxAttempts uses DefaultMaxAttempts.
func NewSampler(maxAttempts int) Sampler {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return Sampler{Bounds: geom.World, MaxAttempts: maxAttempts}
}

// Sample draws from the sampler bounds until pred holds.
func (s Sampler) Sample(rng *rand.Rand, pred Predicate) (geom.Vec, error) {
	return s.SampleIn(rng, s.Bounds, pred)
}

// SampleIn draws uniformly from r until pred holds. A nil pred accepts the
// first draw.
func (s Sampler) SampleIn(rng *rand.Rand, r geom.Rect, pred Predicate) (geom.Vec, error) {
	for i := 0; i < s.MaxAttempts; i++ {
		p := geom.Vec{
			X: r.X.Lo + rng.Float64()*r.X.Len(),
			Y: r.Y.Lo + rng.Float64()*r.Y.Len(),
		}
		if pred == nil || pred(p) {
			return p, nil
		}
	}
	return geom.Vec{}, fmt.Errorf("%w: %d draws in %+v rejected", ErrInfeasible, s.MaxAttempts, r)
}

// All combines predicates with logical AND.
func All(preds ...Predicate) Predicate {
	return func(p geom.Vec) bool {
		for _, pred := range preds {
			if pred != nil && !pred(p) {
				return false
			}
		}
		return true
	}
}

// OutsideRects accepts points outside every rectangle widened by eps.
func OutsideRects(rects []geom.Rect, eps float64) Predicate {
	return func(p geom.Vec) bool {
		for _, r := range rects {
			if r.Contains(p, eps) {
				return false
			}
		}
		return true
	}
}

// InsideRect accepts points inside r.
func InsideRect(r geom.Rect) Predicate {
	return func(p geom.Vec) bool {
		return r.Contains(p, 0)
	}
}

// OutsideTriangles accepts points outside every triangle after enlarging it
// about its centroid by factor eps.
func OutsideTriangles(tris []geom.Triangle, eps float64) Predicate {
	enlarged := make([]geom.Triangle, len(tris))
	for i, t := range tris {
		enlarged[i] = t.Enlarge(eps)
	}
	return func(p geom.Vec) bool {
		for _, t := range enlarged {
			if t.Contains(p) {
				return false
			}
		}
		return true
	}
}

// InsideAnyTriangle accepts points inside at least one triangle.
func InsideAnyTriangle(tris []geom.Triangle) Predicate {
	return func(p geom.Vec) bool {
		return TriangleIndex(tris, p) >= 0
	}
}

// TriangleIndex returns the first triangle containing p, or -1.
func TriangleIndex(tris []geom.Triangle, p geom.Vec) int {
	for i, t := range tris {
		if t.Contains(p) {
			return i
		}
	}
	return -1
}

// Disc is a placed entity footprint.
type Disc struct {
	Center geom.Vec
	Radius float64
}

// FarFrom accepts points at which a disc of the given radius keeps at least
// the sum of radii from every placed disc.
func FarFrom(placed []Disc, radius float64) Predicate {
	return func(p geom.Vec) bool {
		for _, d := range placed {
			if geom.Dist(p, d.Center) < d.Radius+radius {
				return false
			}
		}
		return true
	}
}
