package engine

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/ethanmclark1/conav-suite/internal/geom"
)

// Dims is the dimensionality of the physical action space.
const Dims = 2

// Action sizes and scaling.
const (
	NumDiscreteActions  = 2*Dims + 1 // no-op, -x, +x, -y, +y
	ContinuousActionLen = 2*Dims + 1
	DefaultSensitivity  = 5.0
)

// Action is one agent's choice for a round. Discrete environments read
// Discrete; continuous environments read Continuous.
type Action struct {
	Discrete   int
	Continuous []float64
}

// NoOp is the zero action in either mode.
var NoOp = Action{}

// Move returns a discrete action.
func Move(n int) Action {
	return Action{Discrete: n}
}

// Thrust returns a continuous action.
func Thrust(v ...float64) Action {
	return Action{Continuous: v}
}

// decode converts a to a force. Continuous values are clipped to [0, 1].
func decode(a Action, continuous bool, sensitivity float64) (geom.Vec, error) {
	var f geom.Vec
	if !continuous {
		if a.Continuous != nil {
			return f, fmt.Errorf("%w: continuous values in a discrete environment", ErrInvalidAction)
		}
		switch a.Discrete {
		case 0:
		case 1:
			f.X = -1
		case 2:
			f.X = 1
		case 3:
			f.Y = -1
		case 4:
			f.Y = 1
		default:
			return f, fmt.Errorf("%w: discrete action %d outside [0, %d)", ErrInvalidAction, a.Discrete, NumDiscreteActions)
		}
	} else {
		v := a.Continuous
		if v == nil {
			v = make([]float64, ContinuousActionLen)
		}
		if len(v) != ContinuousActionLen {
			return f, fmt.Errorf("%w: continuous action has %d values, want %d", ErrInvalidAction, len(v), ContinuousActionLen)
		}
		c := make([]float64, len(v))
		for i, x := range v {
			if math.IsNaN(x) {
				return f, fmt.Errorf("%w: NaN at index %d", ErrInvalidAction, i)
			}
			c[i] = math.Max(0, math.Min(1, x))
		}
		f.X = c[1] - c[2]
		f.Y = c[3] - c[4]
	}
	f.X *= sensitivity
	f.Y *= sensitivity
	return f, nil
}

// RandomAction samples uniformly from the action space.
func RandomAction(rng *rand.Rand, continuous bool) Action {
	if !continuous {
		return Move(rng.Intn(NumDiscreteActions))
	}
	v := make([]float64, ContinuousActionLen)
	for i := range v {
		v[i] = rng.Float64()
	}
	return Thrust(v...)
}
