// Package engine runs navigation episodes. Env is the turn-based stepping
// protocol: agents act one at a time, and the world advances once every
// live agent has acted. Runner drives whole episodes with a policy.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math/rand"
	"slices"
	"time"

	"github.com/ethanmclark1/conav-suite/internal/entropy"
	"github.com/ethanmclark1/conav-suite/internal/geom"
	"github.com/ethanmclark1/conav-suite/internal/motion"
	"github.com/ethanmclark1/conav-suite/internal/observe"
	"github.com/ethanmclark1/conav-suite/internal/placement"
	"github.com/ethanmclark1/conav-suite/internal/scenario"
	"github.com/ethanmclark1/conav-suite/internal/world"
)

var (
	ErrOutOfTurn     = errors.New("agent stepped out of turn")
	ErrNotRunning    = errors.New("episode not running")
	ErrInvalidAction = errors.New("invalid action")
	ErrUnknownAgent  = errors.New("unknown agent")
	ErrMotionActive  = errors.New("motion tasks still running")
)

// DefaultMaxCycles is the round limit after which live agents are truncated.
const DefaultMaxCycles = 500

// State is the episode lifecycle phase.
type State uint8

const (
	StateIdle State = iota
	StateGenerating
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateGenerating:
		return "generating"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Options configures an environment. Zero values use the defaults.
type Options struct {
	World world.Config

	MaxCycles         int
	ReturnToStart     bool
	ContinuousActions bool
	Sensitivity       float64

	// Scenario used when a reset names none. RandomScenario picks uniformly
	// from the registry instead.
	DefaultScenario string
	RandomScenario  bool

	MaxAttempts int
	MaxRestarts int

	MotionInterval time.Duration
	MotionStep     float64

	// Seeds draws a seed when a reset supplies none. Nil uses crypto/rand.
	Seeds   *entropy.Client
	Metrics *observe.Metrics
}

// DefaultOptions returns the single-agent discrete environment.
func DefaultOptions() Options {
	return Options{
		World:           world.DefaultConfig(),
		MaxCycles:       DefaultMaxCycles,
		Sensitivity:     DefaultSensitivity,
		DefaultScenario: scenario.Default,
	}
}

func (o *Options) applyDefaults() {
	if o.MaxCycles <= 0 {
		o.MaxCycles = DefaultMaxCycles
	}
	if o.Sensitivity == 0 {
		o.Sensitivity = DefaultSensitivity
	}
	if o.DefaultScenario == "" {
		o.DefaultScenario = scenario.Default
	}
}

// ResetOptions selects the next episode.
type ResetOptions struct {
	Scenario string
	Seed     *int64
}

// Info is the auxiliary per-agent data returned by Last.
type Info struct {
	Round       int    `json:"round"`
	Scenario    string `json:"scenario"`
	ReachedGoal bool   `json:"reached_goal"`
}

// Env is a turn-based multi-agent navigation environment. It is not safe
// for concurrent use; only its motion tasks run in the background.
type Env struct {
	opts   Options
	World  *world.World
	gen    *placement.Generator
	motion *motion.Controller

	state State
	seed  int64
	rng   *rand.Rand

	possible []string
	live     []string // rotation order, shrinks as dead agents step
	cursor   int
	pending  map[string]geom.Vec
	rounds   int

	terminations map[string]bool
	truncations  map[string]bool
	rewards      map[string]float64
}

// New builds an environment. The world is created once and reused by
// every reset.
func New(opts Options) (*Env, error) {
	opts.applyDefaults()
	w, err := world.New(opts.World)
	if err != nil {
		return nil, err
	}
	if _, err := scenario.Resolve(opts.DefaultScenario); err != nil {
		return nil, err
	}

	mc := motion.NewController(opts.MotionInterval, opts.MotionStep)
	mc.Metrics = opts.Metrics

	e := &Env{
		opts:         opts,
		World:        w,
		gen:          placement.NewGenerator(opts.MaxAttempts, opts.MaxRestarts),
		motion:       mc,
		pending:      make(map[string]geom.Vec),
		terminations: make(map[string]bool),
		truncations:  make(map[string]bool),
		rewards:      make(map[string]float64),
	}
	for _, a := range w.Agents {
		e.possible = append(e.possible, a.Name)
	}
	return e, nil
}

// Reset stops the current episode, lays out a new one, and starts its
// motion tasks. Motion tasks run under ctx.
func (e *Env) Reset(ctx context.Context, ro ResetOptions) error {
	e.stopMotion()

	e.state = StateGenerating
	if e.motion.Running() {
		e.state = StateIdle
		return ErrMotionActive
	}

	if ro.Seed != nil {
		e.seed = *ro.Seed
	} else {
		e.seed = e.opts.Seeds.Seed()
	}
	e.rng = rand.New(rand.NewSource(e.seed))

	name := ro.Scenario
	if name == "" {
		name = e.opts.DefaultScenario
		if e.opts.RandomScenario {
			names := scenario.Names()
			name = names[e.rng.Intn(len(names))]
		}
	}

	if err := e.gen.Reset(e.World, e.rng, name); err != nil {
		e.state = StateIdle
		return fmt.Errorf("reset %q: %w", name, err)
	}
	if e.opts.Metrics != nil {
		e.opts.Metrics.RecordRestarts(ctx, name, e.gen.LastRestarts)
	}

	e.live = slices.Clone(e.possible)
	e.cursor = 0
	e.rounds = 0
	clear(e.pending)
	clear(e.terminations)
	clear(e.truncations)
	clear(e.rewards)
	for _, n := range e.possible {
		e.terminations[n] = false
		e.truncations[n] = false
		e.rewards[n] = 0
	}

	if err := e.motion.Start(ctx, e.World, e.World.Scenario); err != nil {
		e.state = StateIdle
		return fmt.Errorf("start motion: %w", err)
	}
	e.state = StateRunning

	slog.Info("episode reset",
		"scenario", name,
		"seed", e.seed,
		"agents", len(e.possible),
		"restarts", e.gen.LastRestarts,
	)
	return nil
}

func (e *Env) stopMotion() {
	if e.state == StateRunning {
		e.state = StateStopping
	}
	e.motion.Stop()
	e.state = StateIdle
}

// Close stops the motion tasks. The environment can be reset again.
func (e *Env) Close() {
	e.stopMotion()
}

// Step records agent's action. When the rotation wraps the world advances
// one round for every buffered action. Stepping an agent that is already
// terminated or truncated removes it from the rotation.
func (e *Env) Step(agent string, a Action) error {
	if e.state != StateRunning {
		return fmt.Errorf("%w: state %s", ErrNotRunning, e.state)
	}
	if len(e.live) == 0 {
		return fmt.Errorf("%w: every agent is done", ErrNotRunning)
	}
	if cur := e.live[e.cursor]; agent != cur {
		return fmt.Errorf("%w: got %q, expected %q", ErrOutOfTurn, agent, cur)
	}

	if e.terminations[agent] || e.truncations[agent] {
		e.live = slices.Delete(e.live, e.cursor, e.cursor+1)
		delete(e.pending, agent)
		if e.cursor >= len(e.live) {
			e.cursor = 0
			if len(e.pending) > 0 {
				e.completeRound()
			}
		}
		return nil
	}

	force, err := decode(a, e.opts.ContinuousActions, e.opts.Sensitivity)
	if err != nil {
		return err
	}
	e.pending[agent] = force
	e.cursor++
	if e.cursor == len(e.live) {
		e.cursor = 0
		e.completeRound()
	}
	return nil
}

// completeRound applies buffered actions, steps the world, and updates
// every agent's status.
func (e *Env) completeRound() {
	for _, a := range e.World.Agents {
		a.Action = e.pending[a.Name] // zero for agents that did not act
	}
	clear(e.pending)

	e.World.Step()
	e.rounds++

	for _, n := range e.possible {
		e.rewards[n] = 0
	}
	e.updateStatus()

	if e.opts.Metrics != nil {
		e.opts.Metrics.Rounds.Add(context.Background(), 1)
	}
	slog.Debug("round complete", "round", e.rounds, "live", len(e.live))
}

// AgentSelection names the agent whose turn it is, or "" when every agent
// has left the rotation.
func (e *Env) AgentSelection() string {
	if len(e.live) == 0 {
		return ""
	}
	return e.live[e.cursor]
}

// Agents lists the agents still in the rotation.
func (e *Env) Agents() []string {
	return slices.Clone(e.live)
}

// PossibleAgents lists every agent the environment was built with.
func (e *Env) PossibleAgents() []string {
	return slices.Clone(e.possible)
}

// Last returns the observation, reward, flags, and info of the agent whose
// turn it is.
func (e *Env) Last() (obs []float64, reward float64, terminated, truncated bool, info Info, err error) {
	agent := e.AgentSelection()
	if agent == "" {
		return nil, 0, false, false, Info{}, fmt.Errorf("%w: every agent is done", ErrNotRunning)
	}
	obs, err = e.Observe(agent)
	if err != nil {
		return nil, 0, false, false, Info{}, err
	}
	return obs, e.rewards[agent], e.terminations[agent], e.truncations[agent], e.info(agent), nil
}

func (e *Env) info(agent string) Info {
	inf := Info{Round: e.rounds, Scenario: e.World.Scenario.Name}
	if a, ok := e.World.Agent(agent); ok {
		inf.ReachedGoal = a.ReachedGoal
	}
	return inf
}

// Terminations returns a copy of the per-agent termination flags.
func (e *Env) Terminations() map[string]bool { return maps.Clone(e.terminations) }

// Truncations returns a copy of the per-agent truncation flags.
func (e *Env) Truncations() map[string]bool { return maps.Clone(e.truncations) }

// Rewards returns a copy of the per-agent rewards of the last round.
func (e *Env) Rewards() map[string]float64 { return maps.Clone(e.rewards) }

// Done reports whether every agent has left the rotation.
func (e *Env) Done() bool {
	return e.state == StateRunning && len(e.live) == 0
}

// State returns the lifecycle phase.
func (e *Env) State() State { return e.state }

// Rounds returns the number of completed rounds in this episode.
func (e *Env) Rounds() int { return e.rounds }

// Seed returns the seed of the current episode.
func (e *Env) Seed() int64 { return e.seed }

// Options returns the effective configuration.
func (e *Env) Options() Options { return e.opts }

