package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/sakif/scorecast/internal/apperror"
	"github.com/sakif/scorecast/internal/model"
	"github.com/sakif/scorecast/internal/router"
)

// HandleSavePrediction saves the visitor's prediction for one match.
//
// HTTP: POST /predictions  (form: match_id, home_score, away_score)
//
// The store decides between insert and update. The session is verified first,
// the same way the guard does for the page, so an expired session is sent to
// the login page instead of failing at the backend.
func (h *Handler) HandleSavePrediction(w http.ResponseWriter, r *http.Request) {
	a, ok := h.currentApp(w, r)
	if !ok {
		return
	}
	if !a.Session.VerifySession(r.Context()) {
		http.Redirect(w, r, router.LoginRedirect(router.PathOf(router.NamePredictions)), http.StatusSeeOther)
		return
	}

	in, err := parsePrediction(r)
	if err == nil {
		in.UserID = a.UserID()
		_, err = a.Matches.UpsertPrediction(r.Context(), in)
	}
	if err != nil {
		h.logger.Info("prediction rejected",
			slog.String("client", a.ID),
			slog.Int64("match_id", in.MatchID),
			slog.String("error", err.Error()),
		)
		a.Matches.FetchMatches(r.Context())
		h.renderPredictions(w, r, a, statusFor(err), apperror.MessageOf(err))
		return
	}

	h.setNotice(w, "predictions.saved")
	http.Redirect(w, r, router.PathOf(router.NamePredictions), http.StatusSeeOther)
}

// parsePrediction reads the form. Range checks are left to the store.
func parsePrediction(r *http.Request) (model.PredictionInput, error) {
	var in model.PredictionInput

	matchID, err := strconv.ParseInt(strings.TrimSpace(r.PostFormValue("match_id")), 10, 64)
	if err != nil {
		return in, apperror.ValidationFailed("match_id", "a match is required")
	}
	in.MatchID = matchID

	home, err := strconv.Atoi(strings.TrimSpace(r.PostFormValue("home_score")))
	if err != nil {
		return in, apperror.ValidationFailed("home_score", "home score must be between 0 and 99")
	}
	away, err := strconv.Atoi(strings.TrimSpace(r.PostFormValue("away_score")))
	if err != nil {
		return in, apperror.ValidationFailed("away_score", "away score must be between 0 and 99")
	}
	in.HomeScore, in.AwayScore = home, away
	return in, nil
}
