package motion

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/ethanmclark1/conav-suite/internal/geom"
	"github.com/ethanmclark1/conav-suite/internal/observe"
	"github.com/ethanmclark1/conav-suite/internal/scenario"
	"github.com/ethanmclark1/conav-suite/internal/world"
)

func TestPolicyFor(t *testing.T) {
	tests := []struct {
		name string
		want Kind
	}{
		{"stellaris", KindCorridor},
		{"disaster_response_0", KindGrowth},
		{"precision_farming_2", KindLawnMower},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc, err := scenario.Resolve(tt.name)
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			p := PolicyFor(sc, 0)
			if p.Kind != tt.want {
				t.Fatalf("kind = %v, want %v", p.Kind, tt.want)
			}
			if p.Step != DefaultStep {
				t.Fatalf("step = %g", p.Step)
			}
		})
	}

	sc, _ := scenario.Resolve("disaster_response_1")
	if p := PolicyFor(sc, 0); p.Growth != 1.050 || p.MaxSize != MaxHazardSize {
		t.Fatalf("growth policy = %+v", p)
	}
}

func TestBounceReversesAtCorridorEnds(t *testing.T) {
	o := &world.Obstacle{Region: geom.R(0, 1, -0.02, 0.02)}
	o.Position = geom.Vec{X: 0, Y: 0}

	var xs []float64
	for i := 0; i < 20; i++ {
		bounce(o, 0.125)
		xs = append(xs, o.Position.X)
		if !o.Region.Contains(o.Position, 0) {
			t.Fatalf("tick %d left the corridor: %v", i, o.Position)
		}
	}
	want := []float64{0.125, 0.25, 0.375, 0.5, 0.625, 0.75, 0.875, 1, 0.875, 0.75}
	for i, w := range want {
		if xs[i] != w {
			t.Fatalf("tick %d: x = %g, want %g (all %v)", i, xs[i], w, xs)
		}
	}
	// 16 ticks after the start it is back at the low end heading up.
	if xs[15] != 0 || xs[16] != 0.125 {
		t.Fatalf("no reversal at the low end: %v", xs)
	}
}

func TestBounceFollowsLongerAxis(t *testing.T) {
	o := &world.Obstacle{Region: geom.R(0.85, 0.9, -0.9, 0.9)}
	o.Position = geom.Vec{X: 0.87, Y: 0.5}
	o.Velocity = geom.Vec{Y: -1}

	bounce(o, 0.1)
	if o.Position.X != 0.87 || math.Abs(o.Position.Y-0.4) > 1e-12 {
		t.Fatalf("position = %v", o.Position)
	}
	if o.Velocity.Y >= 0 {
		t.Fatalf("velocity sign not kept: %v", o.Velocity)
	}
}

func TestGrowthIsCapped(t *testing.T) {
	m := newMover(Policy{Kind: KindGrowth, Growth: 1.125, MaxSize: MaxHazardSize}, geom.Vec{})
	o := &world.Obstacle{}
	o.Size = 0.05

	m.advance(o)
	if math.Abs(o.Size-0.05625) > 1e-12 {
		t.Fatalf("size after one tick = %g", o.Size)
	}
	for i := 0; i < 100; i++ {
		m.advance(o)
	}
	if o.Size != MaxHazardSize {
		t.Fatalf("size = %g, want cap %g", o.Size, MaxHazardSize)
	}
}

func TestLawnMowerCycle(t *testing.T) {
	start := geom.Vec{X: 0.5, Y: 0.5}
	p := Policy{
		Kind: KindLawnMower,
		Step: 0.05,
		Sweep: scenario.Sweep{
			Destination: geom.Vec{},
			Direction:   scenario.Right,
			Bounds:      geom.R(-0.1, 0.1, -0.1, 0.1),
		},
	}
	m := newMover(p, start)
	o := &world.Obstacle{}
	o.Size = 0.05
	o.Position = start

	var order []phase
	for i := 0; i < 200; i++ {
		before := m.phase
		m.advance(o)
		if !geom.World.Contains(o.Position, 0) {
			t.Fatalf("tick %d left the world: %v", i, o.Position)
		}
		if m.phase == sweeping && !p.Sweep.Bounds.Contains(o.Position, 1e-12) {
			t.Fatalf("tick %d swept outside the field: %v", i, o.Position)
		}
		if m.phase != before {
			order = append(order, m.phase)
		}
		if len(order) == 3 {
			break
		}
	}

	want := []phase{sweeping, toStart, toDestination}
	if len(order) != 3 {
		t.Fatalf("incomplete cycle: %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("transition %d = %v, want %v", i, order[i], want[i])
		}
	}
	if o.Position != start {
		t.Fatalf("did not return to start: %v", o.Position)
	}
	if o.Velocity != (geom.Vec{}) {
		t.Fatalf("velocity after arrival = %v", o.Velocity)
	}
}

func TestLawnMowerStaysInRegion(t *testing.T) {
	for _, name := range []string{"precision_farming_0", "precision_farming_1", "precision_farming_2", "precision_farming_3"} {
		t.Run(name, func(t *testing.T) {
			sc, err := scenario.Resolve(name)
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			p := PolicyFor(sc, 0)
			spawn := sc.Dynamic[0]
			region := p.Region(spawn)
			if !spawn.Within(region) || !p.Sweep.Bounds.Within(region) {
				t.Fatalf("region %+v does not cover spawn and field", region)
			}

			o := &world.Obstacle{Region: region}
			o.Size = 0.05
			o.Position = spawn.Center()
			m := newMover(p, o.Position)
			for i := 0; i < 3000; i++ {
				m.advance(o)
				if !region.Contains(o.Position, 1e-9) {
					t.Fatalf("tick %d (%v) left the region %+v: %v", i, m.phase, region, o.Position)
				}
			}
		})
	}

	sc := standard()
	if got := PolicyFor(sc, 0).Region(sc.Dynamic[0]); got != sc.Dynamic[0] {
		t.Fatalf("corridor region changed: %+v", got)
	}
}

func TestLawnMowerTurnsAtFieldEdge(t *testing.T) {
	p := Policy{
		Kind: KindLawnMower,
		Step: 0.05,
		Sweep: scenario.Sweep{
			Direction: scenario.Left,
			Bounds:    geom.R(-0.1, 0.1, -0.5, 0.5),
		},
	}
	m := newMover(p, geom.Vec{})
	m.phase = sweeping
	o := &world.Obstacle{}
	o.Size = 0.05
	o.Position = geom.Vec{X: -0.1, Y: 0}

	m.advance(o)
	if o.Position.X != -0.1 || math.Abs(o.Position.Y-0.1) > 1e-12 {
		t.Fatalf("expected a lane change, got %v", o.Position)
	}
	if m.heading != scenario.Right {
		t.Fatalf("heading = %v", m.heading)
	}
	m.advance(o)
	if math.Abs(o.Position.X+0.05) > 1e-12 {
		t.Fatalf("expected to sweep right, got %v", o.Position)
	}
}

func newCorridorWorld(t *testing.T, n int) *world.World {
	t.Helper()
	cfg := world.DefaultConfig()
	cfg.NumDynamicObstacles = n
	w, err := world.New(cfg)
	if err != nil {
		t.Fatalf("new world: %v", err)
	}
	w.Hazards.Do(func(obs []*world.Obstacle) {
		for i, o := range obs {
			y := float64(i) * 0.2
			o.Active = true
			o.Region = geom.R(0, 1, y-0.01, y+0.01)
			o.Position = geom.Vec{X: 0, Y: y}
		}
	})
	return w
}

func standard() scenario.Scenario {
	sc, _ := scenario.Resolve("stellaris")
	return sc
}

func TestControllerMovesHazardsUnderLock(t *testing.T) {
	w := newCorridorWorld(t, 3)
	c := NewController(time.Millisecond, 0.125)

	if err := c.Start(context.Background(), w, standard()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !c.Running() {
		t.Fatal("controller not running after Start")
	}

	moved := false
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for i, o := range w.Hazards.Snapshot() {
			steps := o.Position.X / 0.125
			if steps != math.Trunc(steps) || o.Position.X < 0 || o.Position.X > 1 {
				t.Fatalf("obstacle %d at %v: torn or out of corridor", i, o.Position)
			}
			if o.Position.Y != float64(i)*0.2 {
				t.Fatalf("obstacle %d drifted off its axis: %v", i, o.Position)
			}
			if o.Position.X > 0 {
				moved = true
			}
		}
		if moved {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if !moved {
		t.Fatal("no obstacle moved")
	}

	c.Stop()
	c.Stop()
	if c.Running() {
		t.Fatal("controller still running after Stop")
	}

	before := w.Hazards.Snapshot()
	time.Sleep(10 * time.Millisecond)
	after := w.Hazards.Snapshot()
	for i := range before {
		if before[i].Position != after[i].Position {
			t.Fatalf("obstacle %d moved after Stop", i)
		}
	}
}

func TestControllerSkipsInactiveHazards(t *testing.T) {
	w := newCorridorWorld(t, 2)
	w.Hazards.Update(1, func(o *world.Obstacle) { o.Active = false })

	c := NewController(time.Millisecond, 0.125)
	if err := c.Start(context.Background(), w, standard()); err != nil {
		t.Fatalf("start: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	c.Stop()

	obs := w.Hazards.Snapshot()
	if obs[1].Position.X != 0 {
		t.Fatalf("inactive obstacle moved: %v", obs[1].Position)
	}
}

func TestControllerWidensLawnMowerRegion(t *testing.T) {
	w := newCorridorWorld(t, 1)
	sc, _ := scenario.Resolve("precision_farming_2")
	c := NewController(time.Hour, 0)
	if err := c.Start(context.Background(), w, sc); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer c.Stop()

	want := geom.R(-0.25, 1, -1, 1)
	if got := w.Hazards.Snapshot()[0].Region; got != want {
		t.Fatalf("region = %+v, want %+v", got, want)
	}
}

func TestControllerRejectsDoubleStart(t *testing.T) {
	w := newCorridorWorld(t, 1)
	c := NewController(time.Hour, 0)
	if err := c.Start(context.Background(), w, standard()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer c.Stop()
	if err := c.Start(context.Background(), w, standard()); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestControllerStopAfterContextCancel(t *testing.T) {
	w := newCorridorWorld(t, 2)
	c := NewController(time.Millisecond, 0.125)
	ctx, cancel := context.WithCancel(context.Background())
	if err := c.Start(ctx, w, standard()); err != nil {
		t.Fatalf("start: %v", err)
	}
	cancel()

	done := make(chan struct{})
	go func() {
		c.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after context cancel")
	}
}

func TestStopBeforeStart(t *testing.T) {
	c := NewController(0, 0)
	c.Stop()
	if c.Running() {
		t.Fatal("running without Start")
	}
	if c.Interval != DefaultInterval || c.Step != DefaultStep {
		t.Fatalf("defaults not applied: %+v", c)
	}
}

func TestControllerRecordsMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}

	w := newCorridorWorld(t, 2)
	c := NewController(time.Millisecond, 0.125)
	c.Metrics = m
	if err := c.Start(context.Background(), w, standard()); err != nil {
		t.Fatalf("start: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	c.Stop()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	var ticks, active int64 = 0, -1
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			sum, ok := md.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			switch md.Name {
			case "navsim.motion.ticks":
				for _, dp := range sum.DataPoints {
					ticks += dp.Value
				}
			case "navsim.active_hazards":
				active = sum.DataPoints[0].Value
			}
		}
	}
	if ticks == 0 {
		t.Fatal("no motion ticks recorded")
	}
	if active != 0 {
		t.Fatalf("active hazards after stop = %d, want 0", active)
	}
}
