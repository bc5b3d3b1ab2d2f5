// Package devbackend is a local stand-in for the managed backend service.
//
// It speaks the subset of the Supabase wire protocol the web client uses: GoTrue-style
// auth endpoints under /auth/v1 and PostgREST-style table endpoints under /rest/v1,
// backed by SQLite. Scoring and the leaderboard are computed here, on the "server side",
// exactly where the real service would compute them.
//
// It exists for local development and for tests of the backend adapter; production
// deployments point the web client at the real service.
package devbackend

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Points awarded when a completed match is scored.
const (
	ExactScorePoints = 3
	OutcomePoints    = 1
)

// DB wraps the SQLite connection pool that holds users, sessions and tables.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
//
// ":memory:" gives a throwaway database; the pool is pinned to one connection so
// every query sees the same in-memory instance.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("devbackend: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("devbackend: pinging database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("devbackend: setting WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("devbackend: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("devbackend: running migrations: %w", err)
	}
	return db, nil
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			username      TEXT NOT NULL DEFAULT '',
			avatar_url    TEXT NOT NULL DEFAULT '',
			created_at    TEXT NOT NULL,
			updated_at    TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS refresh_tokens (
			token      TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			revoked    INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_refresh_tokens_user_id ON refresh_tokens(user_id);

		CREATE TABLE IF NOT EXISTS password_resets (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			email        TEXT NOT NULL,
			requested_at TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("creating auth tables: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS matches (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			home_team   TEXT NOT NULL,
			away_team   TEXT NOT NULL,
			home_score  INTEGER,
			away_score  INTEGER,
			match_date  TEXT NOT NULL,
			location    TEXT NOT NULL DEFAULT '',
			competition TEXT NOT NULL DEFAULT '',
			status      TEXT NOT NULL DEFAULT 'scheduled'
			            CHECK (status IN ('scheduled', 'in_progress', 'completed', 'cancelled')),
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_matches_match_date ON matches(match_date);

		CREATE TABLE IF NOT EXISTS predictions (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id       TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			match_id      INTEGER NOT NULL REFERENCES matches(id) ON DELETE CASCADE,
			home_score    INTEGER NOT NULL CHECK (home_score >= 0),
			away_score    INTEGER NOT NULL CHECK (away_score >= 0),
			points_earned INTEGER,
			created_at    TEXT NOT NULL,
			updated_at    TEXT NOT NULL,
			CONSTRAINT predictions_user_id_match_id_key UNIQUE (user_id, match_id)
		);
		CREATE INDEX IF NOT EXISTS idx_predictions_user_id ON predictions(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating match tables: %w", err)
	}

	_, err = db.conn.Exec(fmt.Sprintf(`
		CREATE VIEW IF NOT EXISTS leaderboard AS
		SELECT u.id AS user_id,
		       CASE WHEN u.username = '' THEN u.email ELSE u.username END AS username,
		       u.avatar_url AS avatar_url,
		       COALESCE(SUM(p.points_earned), 0) AS total_points,
		       COUNT(p.id) AS predictions_count,
		       COALESCE(SUM(CASE WHEN p.points_earned = %[1]d THEN 1 ELSE 0 END), 0) AS correct_score_count,
		       COALESCE(SUM(CASE WHEN p.points_earned >= %[2]d THEN 1 ELSE 0 END), 0) AS correct_outcome_count,
		       CASE WHEN COUNT(p.points_earned) = 0 THEN 0.0
		            ELSE ROUND(100.0 * SUM(CASE WHEN p.points_earned >= %[2]d THEN 1 ELSE 0 END) / COUNT(p.points_earned), 2)
		       END AS accuracy_percentage
		FROM users u
		LEFT JOIN predictions p ON p.user_id = u.id
		GROUP BY u.id;
	`, ExactScorePoints, OutcomePoints))
	if err != nil {
		return fmt.Errorf("creating leaderboard view: %w", err)
	}

	return nil
}

// timeLayout is fixed-width so TEXT columns sort and compare chronologically.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

// timestamp renders t the way every TEXT time column stores it.
func timestamp(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("devbackend: parsing timestamp %q: %w", s, err)
	}
	return t, nil
}
