package store

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/sakif/scorecast/internal/backend"
	"github.com/sakif/scorecast/internal/model"
)

// LeaderboardStore holds the ranking computed by the backend.
type LeaderboardStore struct {
	activity

	tables TableBackend
	logger *slog.Logger

	mu      sync.RWMutex
	entries []model.LeaderboardEntry
}

func NewLeaderboardStore(tables TableBackend, logger *slog.Logger) *LeaderboardStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &LeaderboardStore{tables: tables, logger: logger, entries: []model.LeaderboardEntry{}}
}

// Fetch replaces the entries with the leaderboard ordered by total points,
// highest first. On failure the previous entries are kept.
func (s *LeaderboardStore) Fetch(ctx context.Context) {
	s.start()
	defer s.finish()

	var entries []model.LeaderboardEntry
	q := backend.Query{Order: []backend.Order{backend.Desc("total_points")}}
	if err := s.tables.Query(ctx, TableLeaderboard, q, &entries); err != nil {
		s.fail(err)
		s.logger.Warn("fetching leaderboard failed", slog.String("error", err.Error()))
		return
	}
	if entries == nil {
		entries = []model.LeaderboardEntry{}
	}

	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()
}

// Entries returns a copy of the loaded leaderboard in backend order.
func (s *LeaderboardStore) Entries() []model.LeaderboardEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.entries)
}
