// Package handler renders the web client's pages and handles its forms.
//
// HANDLER RESPONSIBILITIES:
//  1. Find the browser's stores (app.FromContext, set by the registry middleware)
//  2. Run the store actions the page needs
//  3. Render a template from the stores' state, or redirect
//
// Handlers hold no state of their own between requests; everything a page shows
// lives in the browser's stores. Forms follow POST/redirect/GET: a successful
// POST redirects and leaves a one-shot notice in a cookie, a failed POST
// re-renders the form with the error.
package handler

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/scorecast/internal/app"
	"github.com/sakif/scorecast/internal/i18n"
	"github.com/sakif/scorecast/internal/model"
	"github.com/sakif/scorecast/internal/router"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Cookie names.
const (
	LocaleCookie = "scorecast_lang"
	NoticeCookie = "scorecast_notice"
)

// Handler serves every page and form.
//
// Templates are parsed once in New; each page is base.html plus its own file,
// which fills base's "content" block.
type Handler struct {
	pages        map[string]*template.Template
	bundle       *i18n.Bundle
	guard        *router.Guard
	logger       *slog.Logger
	cookieSecure bool
}

// pageFiles maps a route name to its template.
var pageFiles = map[string]string{
	router.NameHome:          "home.html",
	router.NameLogin:         "login.html",
	router.NameRegister:      "register.html",
	router.NameResetPassword: "reset-password.html",
	router.NamePredictions:   "predictions.html",
	router.NameLeaderboard:   "leaderboard.html",
	router.NameNotFound:      "not-found.html",
}

var funcs = template.FuncMap{
	"deref": func(p *int) int {
		if p == nil {
			return 0
		}
		return *p
	},
	"inc": func(i int) int { return i + 1 },
	"pair": func(v view, m matchView) matchItem {
		return matchItem{View: v, Item: m}
	},
}

// matchItem hands the shared "match" block both the page and one match.
type matchItem struct {
	View view
	Item matchView
}

// New parses the templates.
func New(bundle *i18n.Bundle, guard *router.Guard, cookieSecure bool, logger *slog.Logger) (*Handler, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	h := &Handler{
		pages:        make(map[string]*template.Template, len(pageFiles)),
		bundle:       bundle,
		guard:        guard,
		logger:       logger,
		cookieSecure: cookieSecure,
	}
	for name, file := range pageFiles {
		tmpl, err := template.New("base.html").Funcs(funcs).ParseFS(templateFS, "templates/base.html", "templates/"+file)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", file, err)
		}
		h.pages[name] = tmpl
	}
	return h, nil
}

// Static serves the embedded stylesheet.
func Static() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.FileServerFS(sub)
}

// view is what every template receives.
type view struct {
	Route   string
	Locale  string
	Locales []string
	Path    string
	User    *model.User
	Notice  string
	Error   string
	Data    any

	bundle *i18n.Bundle
}

// T translates key into the page's locale.
func (v view) T(key string, args ...any) string {
	return v.bundle.T(v.Locale, key, args...)
}

// Percent formats an accuracy value for the page's locale.
func (v view) Percent(f float64) string {
	return v.bundle.Percent(v.Locale, f)
}

// Date formats a kick-off time for the page's locale.
func (v view) Date(t time.Time) string {
	if v.Locale == i18n.PortugueseBR {
		return t.Local().Format("02/01/2006 15:04")
	}
	return t.Local().Format("Jan 2, 2006 3:04 PM")
}

// Status translates a match status.
func (v view) Status(s model.MatchStatus) string {
	return v.T("match.status." + string(s))
}

// newView fills the fields every page shows.
func (h *Handler) newView(w http.ResponseWriter, r *http.Request, route string) view {
	v := view{
		Route:   route,
		Locale:  h.locale(r),
		Locales: h.bundle.Locales(),
		Path:    r.URL.RequestURI(),
		bundle:  h.bundle,
	}
	if a := app.FromContext(r.Context()); a != nil {
		v.User = a.Session.CurrentUser()
	}
	if key := h.takeNotice(w, r); key != "" {
		v.Notice = v.T(key)
	}
	return v
}

func (h *Handler) locale(r *http.Request) string {
	cookie := ""
	if c, err := r.Cookie(LocaleCookie); err == nil {
		cookie = c.Value
	}
	return h.bundle.Match(cookie, r.Header.Get("Accept-Language"))
}

// render executes the page template for v.Route with status.
func (h *Handler) render(w http.ResponseWriter, status int, v view) {
	tmpl, ok := h.pages[v.Route]
	if !ok {
		h.logger.Error("no template for route", slog.String("route", v.Route))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "base", v); err != nil {
		// the status line is already sent; all we can do is log
		h.logger.Error("failed to render template",
			slog.String("route", v.Route),
			slog.String("error", err.Error()),
		)
	}
}

// setNotice leaves a translation key for the next page render.
func (h *Handler) setNotice(w http.ResponseWriter, key string) {
	http.SetCookie(w, &http.Cookie{
		Name:     NoticeCookie,
		Value:    key,
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// takeNotice returns and clears the pending notice key. Keys the bundle does not
// know are dropped, so the cookie cannot inject text.
func (h *Handler) takeNotice(w http.ResponseWriter, r *http.Request) string {
	c, err := r.Cookie(NoticeCookie)
	if err != nil || c.Value == "" {
		return ""
	}
	http.SetCookie(w, &http.Cookie{Name: NoticeCookie, Value: "", Path: "/", MaxAge: -1})
	if h.bundle.T(i18n.Fallback, c.Value) == c.Value {
		return ""
	}
	return c.Value
}

// currentApp returns the browser's App. The registry middleware always sets it;
// a missing App is a wiring bug.
func (h *Handler) currentApp(w http.ResponseWriter, r *http.Request) (*app.App, bool) {
	a := app.FromContext(r.Context())
	if a == nil {
		h.logger.Error("request without client context", slog.String("path", r.URL.Path))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return nil, false
	}
	return a, true
}
