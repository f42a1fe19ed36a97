// Package geom provides the planar primitives used for scenario regions:
// closed intervals, axis-aligned rectangles, and triangles.
// Points are gonum r2 vectors; the world is the square [-1, 1] on both axes.
package geom

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Vec is a point or displacement in the plane.
type Vec = r2.Vec

// WorldMin and WorldMax bound the simulated square on both axes.
const (
	WorldMin = -1.0
	WorldMax = 1.0
)

// World is the full simulated square.
var World = Rect{X: Interval{WorldMin, WorldMax}, Y: Interval{WorldMin, WorldMax}}

// Interval is a closed range [Lo, Hi] on one axis.
type Interval struct {
	Lo float64 `json:"lo" yaml:"lo"`
	Hi float64 `json:"hi" yaml:"hi"`
}

// Contains reports whether v lies in the interval widened by eps on both ends.
func (iv Interval) Contains(v, eps float64) bool {
	return iv.Lo-eps <= v && v <= iv.Hi+eps
}

// Len returns Hi - Lo.
func (iv Interval) Len() float64 {
	return iv.Hi - iv.Lo
}

// Mid returns the interval midpoint.
func (iv Interval) Mid() float64 {
	return (iv.Lo + iv.Hi) / 2
}

// Clamp limits v to the interval.
func (iv Interval) Clamp(v float64) float64 {
	return math.Max(iv.Lo, math.Min(iv.Hi, v))
}

// Rect is an axis-aligned rectangle given as one interval per axis.
type Rect struct {
	X Interval `json:"x" yaml:"x"`
	Y Interval `json:"y" yaml:"y"`
}

// R builds a rectangle from ((xlo, xhi), (ylo, yhi)) bounds.
func R(xlo, xhi, ylo, yhi float64) Rect {
	return Rect{X: Interval{xlo, xhi}, Y: Interval{ylo, yhi}}
}

// Contains reports whether p lies inside the rectangle expanded by eps.
func (r Rect) Contains(p Vec, eps float64) bool {
	return r.X.Contains(p.X, eps) && r.Y.Contains(p.Y, eps)
}

// Center returns the rectangle midpoint.
func (r Rect) Center() Vec {
	return Vec{X: r.X.Mid(), Y: r.Y.Mid()}
}

// Clamp returns the point of the rectangle closest to p.
func (r Rect) Clamp(p Vec) Vec {
	return Vec{X: r.X.Clamp(p.X), Y: r.Y.Clamp(p.Y)}
}

// Within reports whether r lies entirely inside outer.
func (r Rect) Within(outer Rect) bool {
	return r.X.Lo >= outer.X.Lo && r.X.Hi <= outer.X.Hi &&
		r.Y.Lo >= outer.Y.Lo && r.Y.Hi <= outer.Y.Hi
}

// Union returns the smallest rectangle covering r and o.
func (r Rect) Union(o Rect) Rect {
	return R(
		math.Min(r.X.Lo, o.X.Lo), math.Max(r.X.Hi, o.X.Hi),
		math.Min(r.Y.Lo, o.Y.Lo), math.Max(r.Y.Hi, o.Y.Hi),
	)
}

// Extend returns r grown just enough to cover p.
func (r Rect) Extend(p Vec) Rect {
	return r.Union(R(p.X, p.X, p.Y, p.Y))
}

// Validate rejects inverted or degenerate-to-nothing intervals.
func (r Rect) Validate() error {
	if r.X.Lo > r.X.Hi {
		return fmt.Errorf("x interval [%g, %g] is inverted", r.X.Lo, r.X.Hi)
	}
	if r.Y.Lo > r.Y.Hi {
		return fmt.Errorf("y interval [%g, %g] is inverted", r.Y.Lo, r.Y.Hi)
	}
	return nil
}

// Triangle is a closed region bounded by three vertices.
type Triangle [3]Vec

// Centroid returns the mean of the vertices.
func (t Triangle) Centroid() Vec {
	return r2.Scale(1.0/3.0, r2.Add(r2.Add(t[0], t[1]), t[2]))
}

// Enlarge scales every vertex away from the centroid by factor eps:
// v' = v + eps*(v - c).
func (t Triangle) Enlarge(eps float64) Triangle {
	c := t.Centroid()
	var out Triangle
	for i, v := range t {
		out[i] = r2.Add(v, r2.Scale(eps, r2.Sub(v, c)))
	}
	return out
}

// Contains reports whether p lies inside the triangle or on its boundary.
// Works for either vertex winding.
func (t Triangle) Contains(p Vec) bool {
	d1 := cross(t[0], t[1], p)
	d2 := cross(t[1], t[2], p)
	d3 := cross(t[2], t[0], p)
	hasNeg := d1 < 0 || d2 < 0 || d3 < 0
	hasPos := d1 > 0 || d2 > 0 || d3 > 0
	return !(hasNeg && hasPos)
}

// Area returns the unsigned area.
func (t Triangle) Area() float64 {
	return math.Abs(cross(t[0], t[1], t[2])) / 2
}

// Bounds returns the smallest rectangle containing the triangle.
func (t Triangle) Bounds() Rect {
	r := Rect{X: Interval{t[0].X, t[0].X}, Y: Interval{t[0].Y, t[0].Y}}
	for _, v := range t[1:] {
		r.X.Lo = math.Min(r.X.Lo, v.X)
		r.X.Hi = math.Max(r.X.Hi, v.X)
		r.Y.Lo = math.Min(r.Y.Lo, v.Y)
		r.Y.Hi = math.Max(r.Y.Hi, v.Y)
	}
	return r
}

func cross(a, b, p Vec) float64 {
	return (b.X-a.X)*(p.Y-a.Y) - (b.Y-a.Y)*(p.X-a.X)
}

// Dist returns the Euclidean distance between a and b.
func Dist(a, b Vec) float64 {
	return r2.Norm(r2.Sub(a, b))
}

// ApproxEqual reports whether a and b are within tol on both axes.
func ApproxEqual(a, b Vec, tol float64) bool {
	return math.Abs(a.X-b.X) <= tol && math.Abs(a.Y-b.Y) <= tol
}
