package engine

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ethanmclark1/conav-suite/internal/world"
)

// Episode outcomes.
const (
	OutcomeTerminated = "terminated" // every agent reached its goal
	OutcomeTruncated  = "truncated"  // every agent collided or ran out of rounds
	OutcomeMixed      = "mixed"
	OutcomeAborted    = "aborted" // cancelled before every agent was done
)

// Policy chooses an agent's action from its observation.
type Policy interface {
	Act(agent string, obs []float64) Action
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(agent string, obs []float64) Action

func (f PolicyFunc) Act(agent string, obs []float64) Action { return f(agent, obs) }

// RandomPolicy samples uniformly from the action space.
type RandomPolicy struct {
	rng        *rand.Rand
	continuous bool
}

// NewRandomPolicy returns a seeded random policy.
func NewRandomPolicy(seed int64, continuous bool) *RandomPolicy {
	return &RandomPolicy{rng: rand.New(rand.NewSource(seed)), continuous: continuous}
}

func (p *RandomPolicy) Act(string, []float64) Action {
	return RandomAction(p.rng, p.continuous)
}

// Placement is one entity's position at the start of an episode.
type Placement struct {
	Entity string  `json:"entity" db:"entity"`
	Kind   string  `json:"kind" db:"kind"`
	X      float64 `json:"x" db:"x"`
	Y      float64 `json:"y" db:"y"`
	Size   float64 `json:"size" db:"size"`
	Active bool    `json:"active" db:"active"`
}

// Layout snapshots every entity position.
func (e *Env) Layout() []Placement {
	w := e.World
	var out []Placement
	add := func(ent world.Entity, kind string, active bool) {
		out = append(out, Placement{
			Entity: ent.Name, Kind: kind,
			X: ent.Position.X, Y: ent.Position.Y,
			Size: ent.Size, Active: active,
		})
	}
	for _, a := range w.Agents {
		add(a.Entity, "agent", true)
	}
	for _, g := range w.Goals {
		add(g.Entity, "goal", true)
	}
	for _, o := range w.StaticObstacles() {
		add(o.Entity, o.Kind.String(), true)
	}
	for _, o := range w.Hazards.Snapshot() {
		add(o.Entity, o.Kind.String(), o.Active)
	}
	return out
}

// EpisodeResult summarises a finished episode.
type EpisodeResult struct {
	ID         string          `json:"id"`
	Scenario   string          `json:"scenario"`
	Seed       int64           `json:"seed"`
	Agents     int             `json:"agents"`
	Rounds     int             `json:"rounds"`
	Outcome    string          `json:"outcome"`
	Terminated map[string]bool `json:"terminated"`
	Truncated  map[string]bool `json:"truncated"`
	Layout     []Placement     `json:"layout"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
}

// Status is a point-in-time view of a runner, safe to read from other
// goroutines.
type Status struct {
	Running    bool      `json:"running"`
	Episode    int       `json:"episode"`
	Round      int       `json:"round"`
	Scenario   string    `json:"scenario"`
	Completed  int       `json:"completed"`
	Terminated int       `json:"terminated"`
	Truncated  int       `json:"truncated"`
	StartedAt  time.Time `json:"started_at"`
}

// Runner drives whole episodes through an Env.
type Runner struct {
	Env    *Env
	Policy Policy

	// Interval is the pause between rounds. Zero runs as fast as possible.
	Interval time.Duration

	// Scenarios are cycled through episode by episode. Empty defers to the
	// environment's default or random choice.
	Scenarios []string

	// Seed, when set, makes episode i use Seed+i.
	Seed *int64

	// Callbacks, populated during setup.
	OnRound   func(round int)
	OnEpisode func(res EpisodeResult)

	mu     sync.RWMutex
	status Status
	cancel context.CancelFunc
}

// NewRunner creates a runner with a random policy.
func NewRunner(env *Env, seed int64) *Runner {
	return &Runner{
		Env:    env,
		Policy: NewRandomPolicy(seed, env.Options().ContinuousActions),
	}
}

// Run plays episodes until n are done (n <= 0 means no limit), ctx is
// cancelled, or Stop is called. Motion tasks are stopped on return.
func (r *Runner) Run(ctx context.Context, n int) error {
	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.status = Status{Running: true, StartedAt: time.Now()}
	r.mu.Unlock()

	defer func() {
		cancel()
		r.Env.Close()
		r.mu.Lock()
		r.status.Running = false
		r.cancel = nil
		r.mu.Unlock()
	}()

	slog.Info("runner started", "episodes", n, "interval", r.Interval)

	for i := 0; n <= 0 || i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		res, err := r.episode(ctx, i)
		if err != nil {
			return err
		}

		r.mu.Lock()
		r.status.Completed++
		switch res.Outcome {
		case OutcomeTerminated:
			r.status.Terminated++
		case OutcomeTruncated:
			r.status.Truncated++
		}
		r.mu.Unlock()

		if m := r.Env.opts.Metrics; m != nil {
			m.RecordEpisode(ctx, res.Scenario, res.Outcome, res.Rounds)
		}
		if r.OnEpisode != nil {
			r.OnEpisode(res)
		}
	}

	slog.Info("runner stopped", "completed", r.Status().Completed)
	return nil
}

// Stop cancels a running Run. Safe to call at any time.
func (r *Runner) Stop() {
	r.mu.RLock()
	cancel := r.cancel
	r.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
}

// Status returns a snapshot of the runner's progress.
func (r *Runner) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

func (r *Runner) episode(ctx context.Context, i int) (EpisodeResult, error) {
	env := r.Env
	ro := ResetOptions{}
	if len(r.Scenarios) > 0 {
		ro.Scenario = r.Scenarios[i%len(r.Scenarios)]
	}
	if r.Seed != nil {
		s := *r.Seed + int64(i)
		ro.Seed = &s
	}
	if err := env.Reset(ctx, ro); err != nil {
		return EpisodeResult{}, err
	}

	res := EpisodeResult{
		ID:        uuid.NewString(),
		Scenario:  env.World.Scenario.Name,
		Seed:      env.Seed(),
		Agents:    len(env.PossibleAgents()),
		Layout:    env.Layout(),
		StartedAt: time.Now(),
	}

	r.mu.Lock()
	r.status.Episode = i + 1
	r.status.Round = 0
	r.status.Scenario = res.Scenario
	r.mu.Unlock()

	aborted := false
	for !env.Done() {
		if ctx.Err() != nil {
			aborted = true
			break
		}
		rounds := env.Rounds()

		agent := env.AgentSelection()
		obs, _, term, trunc, _, err := env.Last()
		if err != nil {
			return res, err
		}
		act := NoOp
		if !term && !trunc {
			act = r.Policy.Act(agent, obs)
		}
		if err := env.Step(agent, act); err != nil {
			return res, err
		}

		if env.Rounds() != rounds {
			r.mu.Lock()
			r.status.Round = env.Rounds()
			r.mu.Unlock()
			if r.OnRound != nil {
				r.OnRound(env.Rounds())
			}
			if r.Interval > 0 {
				select {
				case <-ctx.Done():
				case <-time.After(r.Interval):
				}
			}
		}
	}

	res.Rounds = env.Rounds()
	res.Terminated = env.Terminations()
	res.Truncated = env.Truncations()
	res.FinishedAt = time.Now()
	res.Outcome = outcome(res, aborted)

	slog.Info("episode finished",
		"id", res.ID,
		"scenario", res.Scenario,
		"rounds", res.Rounds,
		"outcome", res.Outcome,
	)
	return res, nil
}

func outcome(res EpisodeResult, aborted bool) string {
	if aborted {
		return OutcomeAborted
	}
	term, trunc := 0, 0
	for _, v := range res.Terminated {
		if v {
			term++
		}
	}
	for _, v := range res.Truncated {
		if v {
			trunc++
		}
	}
	switch {
	case term == res.Agents:
		return OutcomeTerminated
	case trunc == res.Agents:
		return OutcomeTruncated
	default:
		return OutcomeMixed
	}
}
