package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/scorecast/internal/router"
)

// HandleLogin signs the visitor in.
//
// HTTP: POST /login  (form: email, password, redirect)
//
// On success the browser goes to the redirect hint when it is a local path,
// otherwise home. On failure the form is shown again with the error.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	a, ok := h.currentApp(w, r)
	if !ok {
		return
	}
	email := strings.TrimSpace(r.PostFormValue("email"))
	redirect := router.SafeRedirect(r.PostFormValue("redirect"))

	if err := a.Session.Login(r.Context(), email, r.PostFormValue("password")); err != nil {
		h.logger.Info("sign-in rejected", slog.String("client", a.ID), slog.String("error", err.Error()))
		v := h.newView(w, r, router.NameLogin)
		v.Error = h.errorText(v.Locale, a.Session.LastError())
		v.Data = authFormData{Email: email, Redirect: redirect}
		h.render(w, statusFor(err), v)
		return
	}

	h.logger.Info("user signed in", slog.String("client", a.ID), slog.String("user_id", a.UserID()))
	http.Redirect(w, r, redirect, http.StatusSeeOther)
}

// HandleRegister creates an account.
//
// HTTP: POST /register  (form: email, password, confirm)
//
// When the backend signs the new account in straight away the browser goes
// home; when it waits for email confirmation the form says so, even if an
// earlier account is still signed in on this browser.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	a, ok := h.currentApp(w, r)
	if !ok {
		return
	}
	email := strings.TrimSpace(r.PostFormValue("email"))
	password := r.PostFormValue("password")

	v := h.newView(w, r, router.NameRegister)
	v.Data = authFormData{Email: email}

	if password != r.PostFormValue("confirm") {
		v.Error = v.T("register.mismatch")
		h.render(w, http.StatusUnprocessableEntity, v)
		return
	}

	before := a.UserID()
	if err := a.Session.Register(r.Context(), email, password); err != nil {
		h.logger.Info("sign-up rejected", slog.String("client", a.ID), slog.String("error", err.Error()))
		v.Error = h.errorText(v.Locale, a.Session.LastError())
		h.render(w, statusFor(err), v)
		return
	}

	if id := a.UserID(); id != "" && id != before {
		h.logger.Info("user registered", slog.String("client", a.ID), slog.String("user_id", a.UserID()))
		http.Redirect(w, r, router.PathOf(router.NameHome), http.StatusSeeOther)
		return
	}
	v.Notice = v.T("register.checkEmail")
	v.Data = authFormData{}
	h.render(w, http.StatusOK, v)
}

// HandleLogout signs the visitor out.
//
// HTTP: POST /logout
//
// Logout is a state change, so it is a POST; a GET could be triggered by a
// prefetch or a cross-site image tag.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	a, ok := h.currentApp(w, r)
	if !ok {
		return
	}
	if err := a.Session.Logout(r.Context()); err != nil {
		h.logger.Warn("sign-out failed", slog.String("client", a.ID), slog.String("error", err.Error()))
		h.setNotice(w, "error.generic")
	}
	http.Redirect(w, r, router.PathOf(router.NameHome), http.StatusSeeOther)
}

// HandleReset requests a password reset email.
//
// HTTP: POST /reset-password  (form: email)
func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	a, ok := h.currentApp(w, r)
	if !ok {
		return
	}
	email := strings.TrimSpace(r.PostFormValue("email"))

	v := h.newView(w, r, router.NameResetPassword)
	if err := a.Session.ResetPassword(r.Context(), email); err != nil {
		v.Error = h.errorText(v.Locale, a.Session.LastError())
		v.Data = authFormData{Email: email}
		h.render(w, statusFor(err), v)
		return
	}
	v.Data = authFormData{Sent: true}
	v.Notice = v.T("reset.sent")
	h.render(w, http.StatusOK, v)
}
