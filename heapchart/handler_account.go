package heapchart

import "net/http"

func (h *Handler) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	if !requireLoggedOut(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, formView{
		Action: PathLogin,
		Fields: []string{"username", "password"},
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !requireLoggedOut(w, r) {
		return
	}

	// Passwords are taken verbatim; only the username is trimmed.
	user, err := Authenticate(r.Context(), h.storage, formValue(r, "username"), r.PostFormValue("password"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.sessions.SetCookie(w, h.sessions.Create(int64(user.ID)))
	h.logger.InfoContext(r.Context(), "user logged in", "user", user.Name)
	http.Redirect(w, r, PathDashboard, http.StatusSeeOther)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if !h.requireLocalReferrer(w, r) {
		return
	}

	h.sessions.Destroy(h.sessions.Token(r))
	h.sessions.ClearCookie(w)
	http.Redirect(w, r, PathLogin, http.StatusSeeOther)
}

func (h *Handler) handleSignupForm(w http.ResponseWriter, r *http.Request) {
	if !requireLoggedOut(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, formView{
		Action: PathSignup,
		Fields: []string{"username", "password", "redundant_password"},
	})
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	if !requireLoggedOut(w, r) {
		return
	}

	user, err := Signup(r.Context(), h.storage,
		formValue(r, "username"),
		r.PostFormValue("password"),
		r.PostFormValue("redundant_password"),
	)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "user signed up", "user", user.Name)
	http.Redirect(w, r, PathLogin, http.StatusSeeOther)
}
