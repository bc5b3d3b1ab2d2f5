package store

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/sakif/scorecast/internal/apperror"
	"github.com/sakif/scorecast/internal/backend"
	"github.com/sakif/scorecast/internal/model"
)

// MaxScore bounds a predicted score.
const MaxScore = 99

// MatchStore holds the fixture list and the signed-in user's predictions.
type MatchStore struct {
	activity

	tables TableBackend
	logger *slog.Logger
	now    func() time.Time

	mu          sync.RWMutex
	matches     []model.Match
	predictions []model.Prediction
}

// NewMatchStore builds a store. now defaults to time.Now.
func NewMatchStore(tables TableBackend, logger *slog.Logger, now func() time.Time) *MatchStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if now == nil {
		now = time.Now
	}
	return &MatchStore{
		tables:      tables,
		logger:      logger,
		now:         now,
		matches:     []model.Match{},
		predictions: []model.Prediction{},
	}
}

// predictionInsert is the record sent for a new prediction.
type predictionInsert struct {
	UserID    string    `json:"user_id"`
	MatchID   int64     `json:"match_id"`
	HomeScore int       `json:"home_score"`
	AwayScore int       `json:"away_score"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// predictionPatch is the change sent when a prediction already exists.
type predictionPatch struct {
	HomeScore int       `json:"home_score"`
	AwayScore int       `json:"away_score"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FetchMatches replaces the match list with every match ordered by date.
// On failure the previous list is kept and the error is only recorded.
func (s *MatchStore) FetchMatches(ctx context.Context) {
	s.start()
	defer s.finish()

	var matches []model.Match
	q := backend.Query{Order: []backend.Order{backend.Asc("match_date")}}
	if err := s.tables.Query(ctx, TableMatches, q, &matches); err != nil {
		s.fail(err)
		s.logger.Warn("fetching matches failed", slog.String("error", err.Error()))
		return
	}
	if matches == nil {
		matches = []model.Match{}
	}

	s.mu.Lock()
	s.matches = matches
	s.mu.Unlock()
}

// FetchUserPredictions replaces the prediction list with userID's predictions.
// On failure the previous list is kept and the error is only recorded.
func (s *MatchStore) FetchUserPredictions(ctx context.Context, userID string) {
	s.start()
	defer s.finish()

	if err := s.loadPredictions(ctx, userID); err != nil {
		s.fail(err)
		s.logger.Warn("fetching predictions failed", slog.String("user_id", userID), slog.String("error", err.Error()))
	}
}

func (s *MatchStore) loadPredictions(ctx context.Context, userID string) error {
	var preds []model.Prediction
	q := backend.Query{Filters: []backend.Filter{backend.Eq("user_id", userID)}}
	if err := s.tables.Query(ctx, TablePredictions, q, &preds); err != nil {
		return err
	}
	if preds == nil {
		preds = []model.Prediction{}
	}

	s.mu.Lock()
	s.predictions = preds
	s.mu.Unlock()
	return nil
}

// UpsertPrediction saves a prediction. If the loaded predictions already hold
// one for (UserID, MatchID) it is updated by id; otherwise a new one is
// inserted. Either way the user's predictions are then reloaded.
func (s *MatchStore) UpsertPrediction(ctx context.Context, in model.PredictionInput) (*model.Prediction, error) {
	s.start()
	defer s.finish()

	if err := validatePrediction(in); err != nil {
		s.fail(err)
		return nil, err
	}

	now := s.now().UTC()
	var (
		saved model.Prediction
		err   error
	)
	if existing := s.findPrediction(in.UserID, in.MatchID); existing != nil {
		err = s.tables.Update(ctx, TablePredictions, existing.ID, predictionPatch{
			HomeScore: in.HomeScore,
			AwayScore: in.AwayScore,
			UpdatedAt: now,
		}, &saved)
	} else {
		err = s.tables.Insert(ctx, TablePredictions, predictionInsert{
			UserID:    in.UserID,
			MatchID:   in.MatchID,
			HomeScore: in.HomeScore,
			AwayScore: in.AwayScore,
			CreatedAt: now,
			UpdatedAt: now,
		}, &saved)
	}
	if err != nil {
		s.fail(err)
		s.logger.Warn("saving prediction failed",
			slog.String("user_id", in.UserID),
			slog.Int64("match_id", in.MatchID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	if err := s.loadPredictions(ctx, in.UserID); err != nil {
		s.fail(err)
		s.logger.Warn("reloading predictions failed", slog.String("user_id", in.UserID), slog.String("error", err.Error()))
	}
	return &saved, nil
}

func validatePrediction(in model.PredictionInput) error {
	switch {
	case in.UserID == "":
		return apperror.ValidationFailed("user_id", "a signed-in user is required")
	case in.MatchID <= 0:
		return apperror.ValidationFailed("match_id", "a match is required")
	case in.HomeScore < 0 || in.HomeScore > MaxScore:
		return apperror.ValidationFailed("home_score", "home score must be between 0 and 99")
	case in.AwayScore < 0 || in.AwayScore > MaxScore:
		return apperror.ValidationFailed("away_score", "away score must be between 0 and 99")
	}
	return nil
}

func (s *MatchStore) findPrediction(userID string, matchID int64) *model.Prediction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.predictions {
		if p.UserID == userID && p.MatchID == matchID {
			cp := p
			return &cp
		}
	}
	return nil
}

// Matches returns a copy of the loaded matches, ordered by date.
func (s *MatchStore) Matches() []model.Match {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.matches)
}

// UserPredictions returns a copy of the loaded predictions.
func (s *MatchStore) UserPredictions() []model.Prediction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.predictions)
}

// UpcomingMatches are the matches dated strictly after now, soonest first.
func (s *MatchStore) UpcomingMatches() []model.Match {
	now := s.now()
	out := s.filterMatches(func(m model.Match) bool { return m.MatchDate.After(now) })
	slices.SortStableFunc(out, func(a, b model.Match) int { return a.MatchDate.Compare(b.MatchDate) })
	return out
}

// PastMatches are the matches dated strictly before now, most recent first.
// A match dated exactly now is in neither list.
func (s *MatchStore) PastMatches() []model.Match {
	now := s.now()
	out := s.filterMatches(func(m model.Match) bool { return m.MatchDate.Before(now) })
	slices.SortStableFunc(out, func(a, b model.Match) int { return b.MatchDate.Compare(a.MatchDate) })
	return out
}

func (s *MatchStore) filterMatches(keep func(model.Match) bool) []model.Match {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Match{}
	for _, m := range s.matches {
		if keep(m) {
			out = append(out, m)
		}
	}
	return out
}

// PredictionForMatch returns the first loaded prediction for matchID, or nil.
func (s *MatchStore) PredictionForMatch(matchID int64) *model.Prediction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := slices.IndexFunc(s.predictions, func(p model.Prediction) bool { return p.MatchID == matchID })
	if i < 0 {
		return nil
	}
	cp := s.predictions[i]
	return &cp
}

// PredictionsByMatch indexes the loaded predictions by match id.
func (s *MatchStore) PredictionsByMatch() map[int64]model.Prediction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int64]model.Prediction, len(s.predictions))
	for _, p := range s.predictions {
		if _, ok := out[p.MatchID]; !ok {
			out[p.MatchID] = p
		}
	}
	return out
}

// TotalPoints sums the points of the loaded, already scored predictions.
func (s *MatchStore) TotalPoints() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, p := range s.predictions {
		if p.PointsEarned != nil {
			total += *p.PointsEarned
		}
	}
	return total
}
