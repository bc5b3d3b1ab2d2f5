package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/scorecast/internal/apperror"
	"github.com/sakif/scorecast/internal/i18n"
	"github.com/sakif/scorecast/internal/router"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	bundle, err := i18n.Load(i18n.EnglishUS)
	require.NoError(t, err)
	h, err := New(bundle, router.NewGuard(nil), false, nil)
	require.NoError(t, err)
	return h
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", apperror.ValidationFailed("home_score", "bad"), http.StatusUnprocessableEntity},
		{"auth", apperror.Auth(400, "Invalid login credentials"), http.StatusUnauthorized},
		{"unauthorized", apperror.Unauthorized("no session"), http.StatusUnauthorized},
		{"forbidden", apperror.Forbidden("nope"), http.StatusForbidden},
		{"rejected query", apperror.Query(400, "predictions are closed for match 3"), http.StatusUnprocessableEntity},
		{"backend down", apperror.Query(503, "unavailable"), http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestErrorText(t *testing.T) {
	h := newTestHandler(t)

	assert.Equal(t, "", h.errorText(i18n.EnglishUS, ""))
	assert.Equal(t, "Invalid email or password.", h.errorText(i18n.EnglishUS, "Invalid login credentials"))
	assert.Equal(t, "E-mail ou senha inválidos.", h.errorText(i18n.PortugueseBR, "Invalid login credentials"))
	assert.Equal(t, "Predictions for this match are closed.", h.errorText(i18n.EnglishUS, "predictions are closed for match 7"))
	assert.Equal(t, "Your session has expired. Please sign in again.", h.errorText(i18n.EnglishUS, "JWT expired"))

	// untranslated messages pass through
	assert.Equal(t, "connection refused", h.errorText(i18n.EnglishUS, "connection refused"))
}

func TestParsePrediction(t *testing.T) {
	tests := []struct {
		name  string
		form  url.Values
		field string
	}{
		{"missing match", url.Values{"home_score": {"1"}, "away_score": {"0"}}, "match_id"},
		{"non-numeric home", url.Values{"match_id": {"4"}, "home_score": {"two"}, "away_score": {"0"}}, "home_score"},
		{"empty away", url.Values{"match_id": {"4"}, "home_score": {"2"}}, "away_score"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/predictions", strings.NewReader(tt.form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

			_, err := parsePrediction(req)

			var appErr *apperror.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.field, appErr.Field)
			assert.ErrorIs(t, err, apperror.ErrValidation)
		})
	}

	t.Run("valid", func(t *testing.T) {
		form := url.Values{"match_id": {" 4 "}, "home_score": {"2"}, "away_score": {"0"}}
		req := httptest.NewRequest(http.MethodPost, "/predictions", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		in, err := parsePrediction(req)
		require.NoError(t, err)
		assert.Equal(t, int64(4), in.MatchID)
		assert.Equal(t, 2, in.HomeScore)
		assert.Equal(t, 0, in.AwayScore)
	})
}

func TestTakeNotice(t *testing.T) {
	h := newTestHandler(t)

	t.Run("known key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: NoticeCookie, Value: "predictions.saved"})
		rr := httptest.NewRecorder()

		assert.Equal(t, "predictions.saved", h.takeNotice(rr, req))
		cookies := rr.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, -1, cookies[0].MaxAge)
	})

	t.Run("unknown key is dropped", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: NoticeCookie, Value: "<script>"})
		assert.Equal(t, "", h.takeNotice(httptest.NewRecorder(), req))
	})
}

func TestHandleLocale_SetsCookie(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/lang/pt-BR?back=/leaderboard", nil)
	req.SetPathValue("locale", "pt-BR")
	rr := httptest.NewRecorder()
	h.HandleLocale(rr, req)

	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/leaderboard", rr.Header().Get("Location"))
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, LocaleCookie, cookies[0].Name)
	assert.Equal(t, "pt-BR", cookies[0].Value)
}

func TestHandleNotFound_RendersWithoutClient(t *testing.T) {
	h := newTestHandler(t)

	rr := httptest.NewRecorder()
	h.HandleNotFound(rr, httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "Page not found")
	assert.Contains(t, rr.Body.String(), `href="/login"`)
}
