package devbackend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/scorecast/internal/apperror"
	"github.com/sakif/scorecast/internal/model"
)

// Points returns what a prediction earns against a final score: ExactScorePoints
// for the exact score, OutcomePoints for the right winner or a draw, else zero.
func Points(predHome, predAway, home, away int) int {
	switch {
	case predHome == home && predAway == away:
		return ExactScorePoints
	case sign(predHome-predAway) == sign(home-away):
		return OutcomePoints
	default:
		return 0
	}
}

func sign(n int) int {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	}
	return 0
}

// ScoreMatch awards points to every prediction of a completed match and
// returns how many predictions were scored. Matches that are not completed,
// or have no final score, leave predictions untouched.
func (db *DB) ScoreMatch(ctx context.Context, matchID int64, now time.Time) (int, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("devbackend: beginning scoring tx: %w", err)
	}
	defer tx.Rollback()

	var (
		status     string
		home, away sql.NullInt64
	)
	err = tx.QueryRowContext(ctx,
		`SELECT status, home_score, away_score FROM matches WHERE id = ?`, matchID,
	).Scan(&status, &home, &away)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, apperror.NotFound("match", fmt.Sprint(matchID))
		}
		return 0, fmt.Errorf("devbackend: loading match %d: %w", matchID, err)
	}
	if model.MatchStatus(status) != model.MatchCompleted || !home.Valid || !away.Valid {
		return 0, nil
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT id, home_score, away_score FROM predictions WHERE match_id = ?`, matchID)
	if err != nil {
		return 0, fmt.Errorf("devbackend: loading predictions of match %d: %w", matchID, err)
	}

	type scored struct {
		id     int64
		points int
	}
	var pending []scored
	for rows.Next() {
		var id int64
		var ph, pa int
		if err := rows.Scan(&id, &ph, &pa); err != nil {
			rows.Close()
			return 0, fmt.Errorf("devbackend: scanning prediction: %w", err)
		}
		pending = append(pending, scored{id: id, points: Points(ph, pa, int(home.Int64), int(away.Int64))})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("devbackend: iterating predictions: %w", err)
	}

	for _, p := range pending {
		if _, err := tx.ExecContext(ctx,
			`UPDATE predictions SET points_earned = ?, updated_at = ? WHERE id = ?`,
			p.points, timestamp(now), p.id,
		); err != nil {
			return 0, fmt.Errorf("devbackend: scoring prediction %d: %w", p.id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("devbackend: committing scores: %w", err)
	}
	return len(pending), nil
}

// matchOpen reports whether predictions for the match may still be written:
// it must exist, be scheduled, and not have kicked off yet.
func (db *DB) matchOpen(ctx context.Context, matchID int64, now time.Time) (bool, error) {
	return matchOpen(ctx, db.conn, matchID, now)
}

func matchOpen(ctx context.Context, q querier, matchID int64, now time.Time) (bool, error) {
	var status, date string
	err := q.QueryRowContext(ctx,
		`SELECT status, match_date FROM matches WHERE id = ?`, matchID,
	).Scan(&status, &date)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, apperror.NotFound("match", fmt.Sprint(matchID))
		}
		return false, fmt.Errorf("devbackend: loading match %d: %w", matchID, err)
	}

	kickoff, err := parseTimestamp(date)
	if err != nil {
		return false, err
	}
	return model.MatchStatus(status) == model.MatchScheduled && now.Before(kickoff), nil
}
