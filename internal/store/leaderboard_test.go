package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/scorecast/internal/apperror"
	"github.com/sakif/scorecast/internal/backend"
	"github.com/sakif/scorecast/internal/model"
)

func TestLeaderboardStore_Fetch(t *testing.T) {
	tables := tablesWith(map[string]any{
		TableLeaderboard: []model.LeaderboardEntry{
			{UserID: "u2", Username: "bea", TotalPoints: 7},
			{UserID: "u1", Username: "ana", TotalPoints: 4},
		},
	})
	s := NewLeaderboardStore(tables, nil)

	s.Fetch(context.Background())

	entries := s.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "bea", entries[0].Username)
	assert.Equal(t, "total_points.desc", tables.queries[0].Values().Get("order"))
	assert.False(t, s.IsLoading())
}

func TestLeaderboardStore_FetchFailureKeepsEntries(t *testing.T) {
	fail := false
	tables := &fakeTables{query: func(context.Context, string, backend.Query) (any, error) {
		if fail {
			return nil, apperror.Query(500, "relation \"leaderboard\" does not exist")
		}
		return []model.LeaderboardEntry{{UserID: "u1", TotalPoints: 1}}, nil
	}}
	s := NewLeaderboardStore(tables, nil)

	s.Fetch(context.Background())
	fail = true
	s.Fetch(context.Background())

	assert.Len(t, s.Entries(), 1)
	assert.Contains(t, s.LastError(), "leaderboard")
}

func TestLeaderboardStore_StartsEmpty(t *testing.T) {
	s := NewLeaderboardStore(tablesWith(nil), nil)

	assert.NotNil(t, s.Entries())
	assert.Empty(t, s.Entries())
	assert.Empty(t, s.LastError())
}
