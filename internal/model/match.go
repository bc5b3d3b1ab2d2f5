package model

import "time"

// MatchStatus is the lifecycle state of a match as reported by the backend.
type MatchStatus string

const (
	MatchScheduled  MatchStatus = "scheduled"
	MatchInProgress MatchStatus = "in_progress"
	MatchCompleted  MatchStatus = "completed"
	MatchCancelled  MatchStatus = "cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s MatchStatus) Valid() bool {
	switch s {
	case MatchScheduled, MatchInProgress, MatchCompleted, MatchCancelled:
		return true
	}
	return false
}

// Match is a fixture between two teams. Scores stay nil until the match is played.
//
// The client never mutates a Match.
type Match struct {
	ID          int64       `json:"id"`
	HomeTeam    string      `json:"home_team"`
	AwayTeam    string      `json:"away_team"`
	HomeScore   *int        `json:"home_score"`
	AwayScore   *int        `json:"away_score"`
	MatchDate   time.Time   `json:"match_date"`
	Location    string      `json:"location"`
	Competition string      `json:"competition"`
	Status      MatchStatus `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// HasScore reports whether both final scores are known.
func (m Match) HasScore() bool {
	return m.HomeScore != nil && m.AwayScore != nil
}
