// Package router holds the page table and the guard that runs before every page.
package router

import "strings"

// Route names.
const (
	NameHome          = "home"
	NameLogin         = "login"
	NameRegister      = "register"
	NameResetPassword = "reset-password"
	NamePredictions   = "predictions"
	NameLeaderboard   = "leaderboard"
	NameNotFound      = "not-found"
)

// Route is one page and its access rules.
type Route struct {
	Path string
	Name string

	// RequiresAuth pages redirect anonymous visitors to the login page.
	RequiresAuth bool

	// GuestOnly pages redirect signed-in visitors home.
	GuestOnly bool
}

// Routes is the page table. Anything not listed resolves to NotFound.
var Routes = []Route{
	{Path: "/", Name: NameHome},
	{Path: "/login", Name: NameLogin, GuestOnly: true},
	{Path: "/register", Name: NameRegister, GuestOnly: true},
	{Path: "/reset-password", Name: NameResetPassword},
	{Path: "/predictions", Name: NamePredictions, RequiresAuth: true},
	{Path: "/leaderboard", Name: NameLeaderboard},
}

// NotFound is the catch-all route.
var NotFound = Route{Name: NameNotFound}

// Lookup resolves a request path. A trailing slash is ignored.
func Lookup(path string) Route {
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	for _, r := range Routes {
		if r.Path == path {
			return r
		}
	}
	nf := NotFound
	nf.Path = path
	return nf
}

// PathOf returns the path registered under name, or "/" if there is none.
func PathOf(name string) string {
	for _, r := range Routes {
		if r.Name == name {
			return r.Path
		}
	}
	return "/"
}
