// Package scenario holds the named spatial configurations an episode can be
// generated from: where large obstacles sit, where agents start and aim, and
// which corridors dynamic obstacles patrol.
package scenario

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/ethanmclark1/conav-suite/internal/geom"
)

// ErrUnknownScenario is returned by Resolve for names not in the registry.
var ErrUnknownScenario = errors.New("unknown scenario")

// Class groups scenarios that share a scripted-motion policy for their
// dynamic obstacles.
type Class uint8

const (
	ClassStandard          Class = iota // Dynamic obstacles bounce along corridors
	ClassDisasterResponse               // Dynamic obstacles are spreading hazards
	ClassPrecisionFarming               // Dynamic obstacles sweep a field
)

var classNames = map[Class]string{
	ClassStandard:         "standard",
	ClassDisasterResponse: "disaster_response",
	ClassPrecisionFarming: "precision_farming",
}

func (c Class) String() string {
	if n, ok := classNames[c]; ok {
		return n
	}
	return fmt.Sprintf("class(%d)", uint8(c))
}

// MarshalText implements encoding.TextMarshaler.
func (c Class) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Class) UnmarshalText(b []byte) error {
	s := strings.TrimSpace(string(b))
	for k, n := range classNames {
		if n == s {
			*c = k
			return nil
		}
	}
	return fmt.Errorf("unknown scenario class %q", s)
}

// Direction is the initial horizontal heading of a field sweep.
type Direction int8

const (
	Left  Direction = -1
	Right Direction = 1
)

func (d Direction) String() string {
	if d == Left {
		return "left"
	}
	return "right"
}

// MarshalText implements encoding.TextMarshaler.
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Direction) UnmarshalText(b []byte) error {
	switch strings.TrimSpace(string(b)) {
	case "left":
		*d = Left
	case "right":
		*d = Right
	default:
		return fmt.Errorf("unknown sweep direction %q", string(b))
	}
	return nil
}

// Sweep describes a lawn-mower pass over a field.
type Sweep struct {
	Destination geom.Vec  `json:"destination" yaml:"destination"`
	Direction   Direction `json:"direction" yaml:"direction"`
	Bounds      geom.Rect `json:"bounds" yaml:"bounds"`
}

// Scenario is one named set of placement constraints.
//
// Rectangle scenarios list Regions: large obstacles are placed inside them
// and everything else keeps out. Polygon scenarios list Triangles instead,
// each of which receives at most one large obstacle.
type Scenario struct {
	Name      string          `json:"name" yaml:"name"`
	Class     Class           `json:"class" yaml:"class"`
	Regions   []geom.Rect     `json:"regions,omitempty" yaml:"regions"`
	Triangles []geom.Triangle `json:"triangles,omitempty" yaml:"triangles"`

	// Optional start and goal boxes for agents.
	Start *geom.Rect `json:"start,omitempty" yaml:"start"`
	Goal  *geom.Rect `json:"goal,omitempty" yaml:"goal"`

	// Corridors (or spawn boxes) for dynamic obstacles, one obstacle each.
	Dynamic []geom.Rect `json:"dynamic,omitempty" yaml:"dynamic"`

	Growth float64 `json:"growth,omitempty" yaml:"growth"` // per-tick size factor, disaster response only
	Sweep  *Sweep  `json:"sweep,omitempty" yaml:"sweep"`   // precision farming only
}

// Polygonal reports whether the scenario uses triangle semantics.
func (s Scenario) Polygonal() bool {
	return len(s.Triangles) > 0
}

// Validate checks that the scenario is internally coherent.
func (s Scenario) Validate() error {
	var errs []error
	if s.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if len(s.Regions) == 0 && len(s.Triangles) == 0 {
		errs = append(errs, errors.New("either regions or triangles are required"))
	}
	if len(s.Regions) > 0 && len(s.Triangles) > 0 {
		errs = append(errs, errors.New("regions and triangles are mutually exclusive"))
	}
	checkRect := func(field string, r geom.Rect) {
		if err := r.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", field, err))
			return
		}
		if !r.Within(geom.World) {
			errs = append(errs, fmt.Errorf("%s: %+v extends outside the world", field, r))
		}
	}
	for i, r := range s.Regions {
		checkRect(fmt.Sprintf("regions[%d]", i), r)
	}
	for i, r := range s.Dynamic {
		checkRect(fmt.Sprintf("dynamic[%d]", i), r)
	}
	for i, t := range s.Triangles {
		if t.Area() == 0 {
			errs = append(errs, fmt.Errorf("triangles[%d]: degenerate", i))
		}
		if !t.Bounds().Within(geom.World) {
			errs = append(errs, fmt.Errorf("triangles[%d]: extends outside the world", i))
		}
	}
	if s.Start != nil {
		checkRect("start", *s.Start)
	}
	if s.Goal != nil {
		checkRect("goal", *s.Goal)
	}
	switch s.Class {
	case ClassDisasterResponse:
		if s.Growth <= 1 {
			errs = append(errs, fmt.Errorf("growth %g must exceed 1", s.Growth))
		}
	case ClassPrecisionFarming:
		if s.Sweep == nil {
			errs = append(errs, errors.New("sweep is required for precision farming"))
		} else {
			checkRect("sweep.bounds", s.Sweep.Bounds)
			if !geom.World.Contains(s.Sweep.Destination, 0) {
				errs = append(errs, errors.New("sweep.destination lies outside the world"))
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("scenario %q: %w", s.Name, err)
	}
	return nil
}

// clone returns a deep copy so callers can never mutate the registry.
func (s Scenario) clone() Scenario {
	out := s
	out.Regions = slices.Clone(s.Regions)
	out.Triangles = slices.Clone(s.Triangles)
	out.Dynamic = slices.Clone(s.Dynamic)
	if s.Start != nil {
		r := *s.Start
		out.Start = &r
	}
	if s.Goal != nil {
		r := *s.Goal
		out.Goal = &r
	}
	if s.Sweep != nil {
		sw := *s.Sweep
		out.Sweep = &sw
	}
	return out
}

var (
	registryMu sync.RWMutex
	registry   = builtin()
)

// Resolve returns the constraints registered under name.
func Resolve(name string) (Scenario, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	s, ok := registry[name]
	if !ok {
		return Scenario{}, fmt.Errorf("%w: %q", ErrUnknownScenario, name)
	}
	return s.clone(), nil
}

// Register validates s and adds it to the registry, replacing any scenario
// of the same name.
func Register(s Scenario) error {
	if err := s.Validate(); err != nil {
		return err
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[s.Name] = s.clone()
	return nil
}

// Names lists every registered scenario in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
