package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/scorecast/internal/app"
	"github.com/sakif/scorecast/internal/model"
	"github.com/sakif/scorecast/internal/router"
)

// matchView pairs a match with the visitor's prediction for it.
type matchView struct {
	Match      model.Match
	Prediction *model.Prediction
}

type homeData struct {
	Upcoming []matchView
	Past     []matchView
}

type predictionsData struct {
	Upcoming    []matchView
	TotalPoints int
}

type leaderboardData struct {
	Entries []model.LeaderboardEntry
}

type authFormData struct {
	Email    string
	Redirect string
	Sent     bool
}

// Guard runs the navigation guard before a page. Redirects use 303 so a
// guarded POST target is re-requested with GET.
func (h *Handler) Guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a, ok := h.currentApp(w, r)
		if !ok {
			return
		}
		d := h.guard.Check(r.Context(), a.Session, r.URL.RequestURI())
		if d.Outcome == router.Redirected {
			http.Redirect(w, r, d.Location, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// loadMatches refreshes matches and, when signed in, the visitor's predictions.
func loadMatches(r *http.Request, a *app.App) {
	a.Matches.FetchMatches(r.Context())
	if id := a.UserID(); id != "" {
		a.Matches.FetchUserPredictions(r.Context(), id)
	}
}

// withPredictions pairs each match with the visitor's prediction. Anonymous
// visitors have none loaded, so every Prediction is nil for them.
func withPredictions(a *app.App, matches []model.Match) []matchView {
	var byMatch map[int64]model.Prediction
	if a.UserID() != "" {
		byMatch = a.Matches.PredictionsByMatch()
	}
	out := make([]matchView, 0, len(matches))
	for _, m := range matches {
		mv := matchView{Match: m}
		if p, ok := byMatch[m.ID]; ok {
			mv.Prediction = &p
		}
		out = append(out, mv)
	}
	return out
}

// HandleHome shows upcoming matches and results.
//
// HTTP: GET /
func (h *Handler) HandleHome(w http.ResponseWriter, r *http.Request) {
	a, ok := h.currentApp(w, r)
	if !ok {
		return
	}
	loadMatches(r, a)

	v := h.newView(w, r, router.NameHome)
	v.Error = h.errorText(v.Locale, a.Matches.LastError())
	v.Data = homeData{
		Upcoming: withPredictions(a, a.Matches.UpcomingMatches()),
		Past:     withPredictions(a, a.Matches.PastMatches()),
	}
	h.render(w, http.StatusOK, v)
}

// HandlePredictions shows a prediction form for every upcoming match.
//
// HTTP: GET /predictions (signed in only)
func (h *Handler) HandlePredictions(w http.ResponseWriter, r *http.Request) {
	a, ok := h.currentApp(w, r)
	if !ok {
		return
	}
	loadMatches(r, a)
	h.renderPredictions(w, r, a, http.StatusOK, "")
}

func (h *Handler) renderPredictions(w http.ResponseWriter, r *http.Request, a *app.App, status int, errMsg string) {
	v := h.newView(w, r, router.NamePredictions)
	if errMsg == "" {
		errMsg = a.Matches.LastError()
	}
	v.Error = h.errorText(v.Locale, errMsg)

	upcoming := make([]model.Match, 0)
	for _, m := range a.Matches.UpcomingMatches() {
		if m.Status == model.MatchScheduled {
			upcoming = append(upcoming, m)
		}
	}
	v.Data = predictionsData{
		Upcoming:    withPredictions(a, upcoming),
		TotalPoints: a.Matches.TotalPoints(),
	}
	h.render(w, status, v)
}

// HandleLeaderboard shows the ranking.
//
// HTTP: GET /leaderboard
func (h *Handler) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	a, ok := h.currentApp(w, r)
	if !ok {
		return
	}
	a.Leaderboard.Fetch(r.Context())

	v := h.newView(w, r, router.NameLeaderboard)
	v.Error = h.errorText(v.Locale, a.Leaderboard.LastError())
	v.Data = leaderboardData{Entries: a.Leaderboard.Entries()}
	h.render(w, http.StatusOK, v)
}

// HandleLoginPage shows the sign-in form.
//
// HTTP: GET /login?redirect=/predictions (guests only)
func (h *Handler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	v := h.newView(w, r, router.NameLogin)
	v.Data = authFormData{Redirect: router.SafeRedirect(r.URL.Query().Get("redirect"))}
	h.render(w, http.StatusOK, v)
}

// HandleRegisterPage shows the sign-up form.
//
// HTTP: GET /register (guests only)
func (h *Handler) HandleRegisterPage(w http.ResponseWriter, r *http.Request) {
	v := h.newView(w, r, router.NameRegister)
	v.Data = authFormData{}
	h.render(w, http.StatusOK, v)
}

// HandleResetPage shows the password reset form.
//
// HTTP: GET /reset-password
func (h *Handler) HandleResetPage(w http.ResponseWriter, r *http.Request) {
	v := h.newView(w, r, router.NameResetPassword)
	v.Data = authFormData{}
	h.render(w, http.StatusOK, v)
}

// HandleNotFound is the catch-all page.
func (h *Handler) HandleNotFound(w http.ResponseWriter, r *http.Request) {
	h.logger.Debug("page not found", slog.String("path", r.URL.Path))
	v := h.newView(w, r, router.NameNotFound)
	h.render(w, http.StatusNotFound, v)
}

// HandleHealth reports that the process is serving.
//
// HTTP: GET /healthz
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleLocale stores the chosen language and returns to the page it came from.
//
// HTTP: GET /lang/{locale}?back=/leaderboard
func (h *Handler) HandleLocale(w http.ResponseWriter, r *http.Request) {
	locale := r.PathValue("locale")
	if h.bundle.Has(locale) {
		http.SetCookie(w, &http.Cookie{
			Name:     LocaleCookie,
			Value:    locale,
			Path:     "/",
			MaxAge:   365 * 24 * 60 * 60,
			HttpOnly: true,
			Secure:   h.cookieSecure,
			SameSite: http.SameSiteLaxMode,
		})
	}
	http.Redirect(w, r, router.SafeRedirect(r.URL.Query().Get("back")), http.StatusSeeOther)
}
