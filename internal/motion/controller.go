package motion

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ethanmclark1/conav-suite/internal/observe"
	"github.com/ethanmclark1/conav-suite/internal/scenario"
	"github.com/ethanmclark1/conav-suite/internal/world"
)

// DefaultInterval is the wall-clock period between motion ticks.
const DefaultInterval = 100 * time.Millisecond

// ErrAlreadyRunning is returned by Start while a previous episode's tasks
// are still alive.
var ErrAlreadyRunning = errors.New("motion already running")

// Controller owns the motion tasks of one world.
type Controller struct {
	Interval time.Duration
	Step     float64
	Metrics  *observe.Metrics // optional

	mu     sync.Mutex
	cancel context.CancelFunc
	group  *errgroup.Group
	tasks  int
}

// NewController returns a controller. Non-positive arguments use the
// package defaults.
func NewController(interval time.Duration, step float64) *Controller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if step <= 0 {
		step = DefaultStep
	}
	return &Controller{Interval: interval, Step: step}
}

// Start launches one task per active dynamic obstacle of w, each following
// the policy of sc. Tasks run until Stop or until ctx is cancelled.
func (c *Controller) Start(ctx context.Context, w *world.World, sc scenario.Scenario) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.group != nil {
		return ErrAlreadyRunning
	}

	policy := PolicyFor(sc, c.Step)

	type task struct {
		idx int
		m   *mover
	}
	var tasks []task
	w.Hazards.Do(func(obs []*world.Obstacle) {
		for i, o := range obs {
			if o.Active {
				o.Region = policy.Region(o.Region)
				tasks = append(tasks, task{idx: i, m: newMover(policy, o.Position)})
			}
		}
	})

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	for _, t := range tasks {
		g.Go(func() error {
			c.run(gctx, w, t.idx, t.m)
			return nil
		})
	}

	c.cancel = cancel
	c.group = g
	c.tasks = len(tasks)
	if c.Metrics != nil {
		c.Metrics.ActiveHazards.Add(ctx, int64(len(tasks)))
	}

	slog.Info("motion started", "scenario", sc.Name, "policy", policy.Kind.String(), "hazards", len(tasks))
	return nil
}

func (c *Controller) run(ctx context.Context, w *world.World, idx int, m *mover) {
	ticker := time.NewTicker(c.Interval)
	defer ticker.Stop()

	kind := m.policy.Kind.String()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Hazards.Update(idx, m.advance)
			if c.Metrics != nil {
				c.Metrics.RecordMotionTick(ctx, kind)
			}
		}
	}
}

// Stop signals every task and waits for all of them to return. Calling it
// again, or before Start, does nothing.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.group == nil {
		return
	}
	c.cancel()
	_ = c.group.Wait() // tasks never fail

	if c.Metrics != nil {
		c.Metrics.ActiveHazards.Add(context.Background(), -int64(c.tasks))
	}
	slog.Info("motion stopped", "hazards", c.tasks)

	c.cancel = nil
	c.group = nil
	c.tasks = 0
}

// Running reports whether tasks were started and not yet stopped.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.group != nil
}
