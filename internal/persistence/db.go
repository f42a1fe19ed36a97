// Package persistence stores finished episodes and their layouts in SQLite
// so runs can be inspected and reproduced.
package persistence

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/ethanmclark1/conav-suite/internal/engine"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DB wraps a SQLite connection.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS episodes (
		id TEXT PRIMARY KEY,
		scenario TEXT NOT NULL,
		seed INTEGER NOT NULL,
		agents INTEGER NOT NULL,
		rounds INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		terminated_json TEXT NOT NULL,
		truncated_json TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS placements (
		episode_id TEXT NOT NULL REFERENCES episodes(id),
		entity TEXT NOT NULL,
		kind TEXT NOT NULL,
		x REAL NOT NULL,
		y REAL NOT NULL,
		size REAL NOT NULL,
		active INTEGER NOT NULL,
		PRIMARY KEY (episode_id, entity)
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_episodes_finished ON episodes(finished_at);
	CREATE INDEX IF NOT EXISTS idx_episodes_scenario ON episodes(scenario);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// Episode is a stored episode summary.
type Episode struct {
	ID         string    `json:"id"`
	Scenario   string    `json:"scenario"`
	Seed       int64     `json:"seed"`
	Agents     int       `json:"agents"`
	Rounds     int       `json:"rounds"`
	Outcome    string    `json:"outcome"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

type episodeRow struct {
	ID         string `db:"id"`
	Scenario   string `db:"scenario"`
	Seed       int64  `db:"seed"`
	Agents     int    `db:"agents"`
	Rounds     int    `db:"rounds"`
	Outcome    string `db:"outcome"`
	StartedAt  string `db:"started_at"`
	FinishedAt string `db:"finished_at"`
}

func (r episodeRow) episode() (Episode, error) {
	started, err := time.Parse(timeLayout, r.StartedAt)
	if err != nil {
		return Episode{}, fmt.Errorf("episode %s started_at: %w", r.ID, err)
	}
	finished, err := time.Parse(timeLayout, r.FinishedAt)
	if err != nil {
		return Episode{}, fmt.Errorf("episode %s finished_at: %w", r.ID, err)
	}
	return Episode{
		ID: r.ID, Scenario: r.Scenario, Seed: r.Seed,
		Agents: r.Agents, Rounds: r.Rounds, Outcome: r.Outcome,
		StartedAt: started, FinishedAt: finished,
	}, nil
}

// SaveEpisode writes an episode and its layout in one transaction.
func (db *DB) SaveEpisode(res engine.EpisodeResult) error {
	termJSON, err := json.Marshal(res.Terminated)
	if err != nil {
		return fmt.Errorf("encode terminations: %w", err)
	}
	truncJSON, err := json.Marshal(res.Truncated)
	if err != nil {
		return fmt.Errorf("encode truncations: %w", err)
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO episodes
		(id, scenario, seed, agents, rounds, outcome, terminated_json, truncated_json, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.ID, res.Scenario, res.Seed, res.Agents, res.Rounds, res.Outcome,
		string(termJSON), string(truncJSON),
		res.StartedAt.UTC().Format(timeLayout), res.FinishedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert episode %s: %w", res.ID, err)
	}

	stmt, err := tx.Preparex(`INSERT INTO placements
		(episode_id, entity, kind, x, y, size, active)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range res.Layout {
		active := 0
		if p.Active {
			active = 1
		}
		if _, err := stmt.Exec(res.ID, p.Entity, p.Kind, p.X, p.Y, p.Size, active); err != nil {
			return fmt.Errorf("insert placement %s: %w", p.Entity, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Debug("episode saved", "id", res.ID, "placements", len(res.Layout))
	return nil
}

// RecentEpisodes returns the most recently finished episodes, newest first.
func (db *DB) RecentEpisodes(limit int) ([]Episode, error) {
	var rows []episodeRow
	err := db.conn.Select(&rows,
		`SELECT id, scenario, seed, agents, rounds, outcome, started_at, finished_at
		 FROM episodes ORDER BY finished_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	out := make([]Episode, len(rows))
	for i, r := range rows {
		if out[i], err = r.episode(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// GetEpisode returns one episode with its flags.
func (db *DB) GetEpisode(id string) (Episode, map[string]bool, map[string]bool, error) {
	var row struct {
		episodeRow
		TerminatedJSON string `db:"terminated_json"`
		TruncatedJSON  string `db:"truncated_json"`
	}
	err := db.conn.Get(&row, `SELECT * FROM episodes WHERE id = ?`, id)
	if err != nil {
		return Episode{}, nil, nil, err
	}
	var term, trunc map[string]bool
	if err := json.Unmarshal([]byte(row.TerminatedJSON), &term); err != nil {
		return Episode{}, nil, nil, fmt.Errorf("decode terminations: %w", err)
	}
	if err := json.Unmarshal([]byte(row.TruncatedJSON), &trunc); err != nil {
		return Episode{}, nil, nil, fmt.Errorf("decode truncations: %w", err)
	}
	ep, err := row.episode()
	if err != nil {
		return Episode{}, nil, nil, err
	}
	return ep, term, trunc, nil
}

// Placements returns the stored layout of an episode.
func (db *DB) Placements(episodeID string) ([]engine.Placement, error) {
	var out []engine.Placement
	err := db.conn.Select(&out,
		`SELECT entity, kind, x, y, size, active FROM placements
		 WHERE episode_id = ? ORDER BY rowid`,
		episodeID,
	)
	return out, err
}

// OutcomeCounts tallies stored episodes by outcome.
func (db *DB) OutcomeCounts() (map[string]int, error) {
	var rows []struct {
		Outcome string `db:"outcome"`
		N       int    `db:"n"`
	}
	if err := db.conn.Select(&rows, `SELECT outcome, COUNT(*) AS n FROM episodes GROUP BY outcome`); err != nil {
		return nil, err
	}
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.Outcome] = r.N
	}
	return out, nil
}

// SaveMeta stores a key-value pair in world metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	return value, err
}
