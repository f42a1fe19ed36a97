package engine

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestRunnerVClusterEpisode(t *testing.T) {
	e := newEnv(t, func(o *Options) {
		o.World.NumLargeObstacles = 4
		o.World.NumSmallObstacles = 0
		o.MotionInterval = 0
	})
	wantLen := ObservationLen(1, 4, 0, e.World.Hazards.Len())

	r := NewRunner(e, 7)
	r.Seed = seed(11)
	r.Scenarios = []string{"v_cluster"}

	policy := r.Policy
	r.Policy = PolicyFunc(func(agent string, obs []float64) Action {
		if len(obs) != wantLen {
			t.Errorf("observation length %d, want %d", len(obs), wantLen)
		}
		return policy.Act(agent, obs)
	})

	var results []EpisodeResult
	rounds := 0
	r.OnRound = func(int) { rounds++ }
	r.OnEpisode = func(res EpisodeResult) { results = append(results, res) }

	if err := r.Run(context.Background(), 1); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("episodes = %d", len(results))
	}
	res := results[0]
	if res.Rounds < 1 || res.Rounds > DefaultMaxCycles {
		t.Fatalf("rounds = %d", res.Rounds)
	}
	if rounds != res.Rounds {
		t.Fatalf("OnRound fired %d times for %d rounds", rounds, res.Rounds)
	}
	if res.Outcome != OutcomeTerminated && res.Outcome != OutcomeTruncated {
		t.Fatalf("outcome = %q", res.Outcome)
	}
	if res.Scenario != "v_cluster" || res.Seed != 11 || res.Agents != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if _, err := uuid.Parse(res.ID); err != nil {
		t.Fatalf("episode id %q: %v", res.ID, err)
	}
	if len(res.Layout) != 1+2+4+e.World.Hazards.Len() {
		t.Fatalf("layout has %d entries", len(res.Layout))
	}
	if e.motion.Running() {
		t.Fatal("motion still running after Run")
	}
}

func TestRunnerCyclesScenariosAndSeeds(t *testing.T) {
	e := newEnv(t, nil)
	r := NewRunner(e, 1)
	r.Seed = seed(100)
	r.Scenarios = []string{"bisect", "cross"}

	var got []EpisodeResult
	r.OnEpisode = func(res EpisodeResult) { got = append(got, res) }

	if err := r.Run(context.Background(), 3); err != nil {
		t.Fatalf("run: %v", err)
	}
	want := []struct {
		scenario string
		seed     int64
	}{{"bisect", 100}, {"cross", 101}, {"bisect", 102}}
	if len(got) != len(want) {
		t.Fatalf("episodes = %d", len(got))
	}
	for i, w := range want {
		if got[i].Scenario != w.scenario || got[i].Seed != w.seed {
			t.Fatalf("episode %d = %s/%d, want %s/%d", i, got[i].Scenario, got[i].Seed, w.scenario, w.seed)
		}
	}

	st := r.Status()
	if st.Running || st.Completed != 3 || st.Terminated+st.Truncated > 3 {
		t.Fatalf("status = %+v", st)
	}
}

func TestRunnerStop(t *testing.T) {
	e := newEnv(t, nil)
	r := NewRunner(e, 1)
	r.Interval = time.Millisecond

	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background(), 0) }()

	deadline := time.Now().Add(2 * time.Second)
	for !r.Status().Running && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(10 * time.Millisecond)
	r.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
	if r.Status().Running {
		t.Fatal("status still running")
	}
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		name    string
		term    map[string]bool
		trunc   map[string]bool
		aborted bool
		want    string
	}{
		{"all reached", map[string]bool{"a": true, "b": true}, map[string]bool{}, false, OutcomeTerminated},
		{"all collided", map[string]bool{}, map[string]bool{"a": true, "b": true}, false, OutcomeTruncated},
		{"split", map[string]bool{"a": true}, map[string]bool{"b": true}, false, OutcomeMixed},
		{"aborted", map[string]bool{}, map[string]bool{}, true, OutcomeAborted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := EpisodeResult{Agents: 2, Terminated: tt.term, Truncated: tt.trunc}
			if got := outcome(res, tt.aborted); got != tt.want {
				t.Fatalf("outcome = %q, want %q", got, tt.want)
			}
		})
	}
}
