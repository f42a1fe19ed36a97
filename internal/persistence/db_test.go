package persistence

import (
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethanmclark1/conav-suite/internal/engine"
)

func openTemp(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "navsim.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func result(id, outcome string, finished time.Time) engine.EpisodeResult {
	return engine.EpisodeResult{
		ID:         id,
		Scenario:   "bisect",
		Seed:       42,
		Agents:     2,
		Rounds:     17,
		Outcome:    outcome,
		Terminated: map[string]bool{"agent_0": true, "agent_1": false},
		Truncated:  map[string]bool{"agent_0": false, "agent_1": true},
		Layout: []engine.Placement{
			{Entity: "agent_0", Kind: "agent", X: -0.5, Y: 0.25, Size: 0.025, Active: true},
			{Entity: "dynamic_obs_0", Kind: "dynamic", X: 0.1, Y: -0.2, Size: 0.02, Active: false},
		},
		StartedAt:  finished.Add(-time.Second),
		FinishedAt: finished,
	}
}

func TestSaveAndLoadEpisode(t *testing.T) {
	db := openTemp(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := db.SaveEpisode(result("ep-1", engine.OutcomeMixed, now)); err != nil {
		t.Fatalf("save: %v", err)
	}

	ep, term, trunc, err := db.GetEpisode("ep-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ep.Scenario != "bisect" || ep.Seed != 42 || ep.Agents != 2 || ep.Rounds != 17 {
		t.Fatalf("episode = %+v", ep)
	}
	if !ep.FinishedAt.Equal(now) || !ep.StartedAt.Equal(now.Add(-time.Second)) {
		t.Fatalf("times = %v..%v", ep.StartedAt, ep.FinishedAt)
	}
	if !term["agent_0"] || term["agent_1"] || !trunc["agent_1"] {
		t.Fatalf("flags term=%v trunc=%v", term, trunc)
	}

	ps, err := db.Placements("ep-1")
	if err != nil {
		t.Fatalf("placements: %v", err)
	}
	if len(ps) != 2 {
		t.Fatalf("placements = %d", len(ps))
	}
	if ps[0].Entity != "agent_0" || !ps[0].Active || ps[0].X != -0.5 {
		t.Fatalf("placement 0 = %+v", ps[0])
	}
	if ps[1].Kind != "dynamic" || ps[1].Active {
		t.Fatalf("placement 1 = %+v", ps[1])
	}
}

func TestSaveEpisodeDuplicateRollsBack(t *testing.T) {
	db := openTemp(t)
	now := time.Now()
	if err := db.SaveEpisode(result("ep-1", engine.OutcomeMixed, now)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := db.SaveEpisode(result("ep-1", engine.OutcomeMixed, now)); err == nil {
		t.Fatal("expected duplicate id error")
	}
	ps, err := db.Placements("ep-1")
	if err != nil {
		t.Fatalf("placements: %v", err)
	}
	if len(ps) != 2 {
		t.Fatalf("placements = %d after failed save", len(ps))
	}
}

func TestRecentEpisodesNewestFirst(t *testing.T) {
	db := openTemp(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		if err := db.SaveEpisode(result(id, engine.OutcomeTerminated, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}

	eps, err := db.RecentEpisodes(2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(eps) != 2 || eps[0].ID != "c" || eps[1].ID != "b" {
		t.Fatalf("recent = %+v", eps)
	}
}

func TestOutcomeCounts(t *testing.T) {
	db := openTemp(t)
	now := time.Now()
	outcomes := []string{engine.OutcomeTerminated, engine.OutcomeTerminated, engine.OutcomeTruncated}
	for i, o := range outcomes {
		if err := db.SaveEpisode(result(string(rune('a'+i)), o, now)); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	counts, err := db.OutcomeCounts()
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts[engine.OutcomeTerminated] != 2 || counts[engine.OutcomeTruncated] != 1 {
		t.Fatalf("counts = %v", counts)
	}
}

func TestMalformedTimestampIsReported(t *testing.T) {
	tests := []struct {
		name   string
		column string
	}{
		{"started", "started_at"},
		{"finished", "finished_at"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := openTemp(t)
			if err := db.SaveEpisode(result("ep-1", engine.OutcomeTerminated, time.Now())); err != nil {
				t.Fatalf("save: %v", err)
			}
			if _, err := db.conn.Exec(`UPDATE episodes SET `+tt.column+` = 'yesterday' WHERE id = ?`, "ep-1"); err != nil {
				t.Fatalf("corrupt: %v", err)
			}

			if _, _, _, err := db.GetEpisode("ep-1"); err == nil || !strings.Contains(err.Error(), tt.column) {
				t.Fatalf("GetEpisode err = %v, want a %s parse error", err, tt.column)
			}
			if eps, err := db.RecentEpisodes(10); err == nil {
				t.Fatalf("RecentEpisodes returned %+v without error", eps)
			}
		})
	}
}

func TestMeta(t *testing.T) {
	db := openTemp(t)
	if _, err := db.GetMeta("last_seed"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("missing key err = %v", err)
	}
	if err := db.SaveMeta("last_seed", "1"); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveMeta("last_seed", "2"); err != nil {
		t.Fatal(err)
	}
	v, err := db.GetMeta("last_seed")
	if err != nil || v != "2" {
		t.Fatalf("meta = %q, %v", v, err)
	}
}
