package model

import "time"

// Prediction is one user's predicted score for one match.
//
// PointsEarned is nil until the backend scores the completed match.
// There is at most one prediction per (UserID, MatchID).
type Prediction struct {
	ID           int64     `json:"id"`
	UserID       string    `json:"user_id"`
	MatchID      int64     `json:"match_id"`
	HomeScore    int       `json:"home_score"`
	AwayScore    int       `json:"away_score"`
	PointsEarned *int      `json:"points_earned"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PredictionInput is what a user submits; the store decides between insert and update.
type PredictionInput struct {
	UserID    string `json:"user_id"`
	MatchID   int64  `json:"match_id"`
	HomeScore int    `json:"home_score"`
	AwayScore int    `json:"away_score"`
}

// LeaderboardEntry is one row of the externally computed leaderboard.
type LeaderboardEntry struct {
	UserID              string  `json:"user_id"`
	Username            string  `json:"username"`
	AvatarURL           string  `json:"avatar_url,omitempty"`
	TotalPoints         int     `json:"total_points"`
	PredictionsCount    int     `json:"predictions_count"`
	CorrectScoreCount   int     `json:"correct_score_count"`
	CorrectOutcomeCount int     `json:"correct_outcome_count"`
	AccuracyPercentage  float64 `json:"accuracy_percentage"`
}
