package devbackend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/sakif/scorecast/internal/apperror"
	"github.com/sakif/scorecast/internal/model"
)

// SeedUser is an account created at startup.
type SeedUser struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

// Seed is the content of a seed file:
//
//	{"users": [{"email": "...", "password": "...", "username": "..."}],
//	 "matches": [{"home_team": "...", "away_team": "...", "match_date": "2026-11-01T18:00:00Z", ...}]}
type Seed struct {
	Users   []SeedUser    `json:"users"`
	Matches []model.Match `json:"matches"`
}

// LoadSeed reads and validates a seed file.
func LoadSeed(path string) (*Seed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("devbackend: reading seed file: %w", err)
	}

	var seed Seed
	if err := json.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("devbackend: parsing seed file %s: %w", path, err)
	}

	for i, m := range seed.Matches {
		if m.HomeTeam == "" || m.AwayTeam == "" {
			return nil, apperror.ValidationFailed("matches", fmt.Sprintf("match %d: both teams are required", i))
		}
		if m.MatchDate.IsZero() {
			return nil, apperror.ValidationFailed("matches", fmt.Sprintf("match %d: match_date is required", i))
		}
		if m.Status == "" {
			seed.Matches[i].Status = model.MatchScheduled
		} else if !m.Status.Valid() {
			return nil, apperror.ValidationFailed("matches", fmt.Sprintf("match %d: unknown status %q", i, m.Status))
		}
	}
	return &seed, nil
}

// Apply creates the seed's users and matches. Users that already exist are
// skipped, so a seed can be applied to a persistent database on every start.
// Matches are inserted only when the matches table is empty.
func (s *Server) Apply(ctx context.Context, seed *Seed) error {
	now := s.now()

	for _, u := range seed.Users {
		hash, err := s.passwords.Hash(u.Password)
		if err != nil {
			return fmt.Errorf("devbackend: seeding user %s: %w", u.Email, err)
		}
		if _, err := s.db.CreateUser(ctx, u.Email, hash, publicUsername(u.Email, u.Username), now); err != nil {
			if errors.Is(err, apperror.ErrConflict) {
				continue
			}
			return err
		}
	}

	existing, err := s.db.selectRows(ctx, matchesTable, &selectQuery{columns: []string{"id"}, limit: 1})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		s.logger.Info("matches already present; skipping match seed")
		return nil
	}

	for _, m := range seed.Matches {
		if _, err := s.db.InsertMatch(ctx, m, now); err != nil {
			return err
		}
	}

	s.logger.Info("seed applied",
		slog.Int("users", len(seed.Users)),
		slog.Int("matches", len(seed.Matches)),
	)
	return nil
}

// InsertMatch stores a fixture and returns its id. Completed matches with a
// score are scored immediately.
func (db *DB) InsertMatch(ctx context.Context, m model.Match, now time.Time) (int64, error) {
	rec := row{
		"home_team":   m.HomeTeam,
		"away_team":   m.AwayTeam,
		"match_date":  timestamp(m.MatchDate),
		"location":    m.Location,
		"competition": m.Competition,
		"status":      string(m.Status),
		"created_at":  timestamp(now),
		"updated_at":  timestamp(now),
	}
	if m.Status == "" {
		rec["status"] = string(model.MatchScheduled)
	}
	if m.HomeScore != nil {
		rec["home_score"] = int64(*m.HomeScore)
	}
	if m.AwayScore != nil {
		rec["away_score"] = int64(*m.AwayScore)
	}

	id, err := db.insertRow(ctx, matchesTable, rec)
	if err != nil {
		return 0, fmt.Errorf("devbackend: inserting match %s vs %s: %w", m.HomeTeam, m.AwayTeam, err)
	}
	if _, err := db.ScoreMatch(ctx, id, now); err != nil {
		return 0, err
	}
	return id, nil
}
