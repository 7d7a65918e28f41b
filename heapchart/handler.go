package heapchart

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/heapchart/heapchart/heapchart/session"
)

// confirmation is the form value that confirms a delete.
const confirmation = "confirmed!"

// HandlerConfig configures a Handler.
type HandlerConfig struct {
	// Logger receives request errors. Default: slog.Default().
	Logger *slog.Logger
}

// Handler implements http.Handler for the library and floor site.
// Every path except login and signup requires a signed-in user.
type Handler struct {
	storage  Storage
	sessions *session.Store
	logger   *slog.Logger
	mux      *http.ServeMux
}

// NewHandler creates a handler over the given storage and session store.
// Pass nil for cfg to use defaults.
func NewHandler(storage Storage, sessions *session.Store, cfg *HandlerConfig) *Handler {
	h := &Handler{
		storage:  storage,
		sessions: sessions,
		logger:   slog.Default(),
		mux:      http.NewServeMux(),
	}

	if cfg != nil {
		if cfg.Logger != nil {
			h.logger = cfg.Logger
		}
	}

	h.routes()
	return h
}

func (h *Handler) routes() {
	h.mux.HandleFunc("GET /{$}", h.handleDashboard)

	h.mux.HandleFunc("GET "+PathLogin, h.handleLoginForm)
	h.mux.HandleFunc("POST "+PathLogin, h.handleLogin)
	h.mux.HandleFunc("GET "+PathLogout, h.handleLogout)
	h.mux.HandleFunc("GET "+PathSignup, h.handleSignupForm)
	h.mux.HandleFunc("POST "+PathSignup, h.handleSignup)

	h.mux.HandleFunc("GET "+PathLibraries, h.handleLibraries)
	h.mux.HandleFunc("GET /library/{id}", h.handleLibrary)
	h.mux.HandleFunc("GET /library/{id}/edit", h.handleLibraryEditForm)
	h.mux.HandleFunc("POST /library/{id}/edit", h.handleLibraryEdit)
	h.mux.HandleFunc("GET /library/{id}/delete", h.handleLibraryDeleteForm)
	h.mux.HandleFunc("POST /library/{id}/delete", h.handleLibraryDelete)
	h.mux.HandleFunc("GET /library/{id}/reorganize", h.handleLibraryReorganizeForm)
	h.mux.HandleFunc("POST /library/{id}/reorganize", h.handleLibraryReorganize)

	h.mux.HandleFunc("GET "+PathFloors, h.handleFloors)
	h.mux.HandleFunc("GET /floor/{id}", h.handleFloor)
	h.mux.HandleFunc("GET /floor/{id}/edit", h.handleFloorEditForm)
	h.mux.HandleFunc("POST /floor/{id}/edit", h.handleFloorEdit)
	h.mux.HandleFunc("GET /floor/{id}/delete", h.handleFloorDeleteForm)
	h.mux.HandleFunc("POST /floor/{id}/delete", h.handleFloorDelete)
	h.mux.HandleFunc("GET /floor/{id}/assign", h.handleFloorAssignForm)
	h.mux.HandleFunc("POST /floor/{id}/assign", h.handleFloorAssign)
	h.mux.HandleFunc("GET /floor/{id}/unassign", h.handleFloorUnassign)
}

type userKey struct{}

// CurrentUser returns the signed-in user of a request handled by Handler,
// or nil.
func CurrentUser(ctx context.Context) *User {
	u, _ := ctx.Value(userKey{}).(*User)
	return u
}

// ServeHTTP resolves the session, enforces sign-in, then routes the request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user, err := h.sessionUser(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if user == nil && !publicPaths[r.URL.Path] {
		http.Redirect(w, r, PathLogin, http.StatusSeeOther)
		return
	}

	if user != nil {
		r = r.WithContext(context.WithValue(r.Context(), userKey{}, user))
	}
	h.mux.ServeHTTP(w, r)
}

// sessionUser returns the user of the request's session, or nil. Sessions
// of users that no longer exist are ended.
func (h *Handler) sessionUser(r *http.Request) (*User, error) {
	token := h.sessions.Token(r)
	uid, ok := h.sessions.Lookup(token)
	if !ok {
		return nil, nil
	}

	user, err := h.storage.User(r.Context(), ID(uid))
	if errors.Is(err, ErrNotFound) {
		h.sessions.Destroy(token)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// requireLoggedOut redirects signed-in users to the dashboard. It returns
// false if it wrote a response.
func requireLoggedOut(w http.ResponseWriter, r *http.Request) bool {
	if CurrentUser(r.Context()) != nil {
		http.Redirect(w, r, PathDashboard, http.StatusSeeOther)
		return false
	}
	return true
}

// requireLocalReferrer rejects requests whose Referer is missing or points at
// another host. Used for state changes reachable by GET. It returns false if
// it wrote a response.
func (h *Handler) requireLocalReferrer(w http.ResponseWriter, r *http.Request) bool {
	ref, err := url.Parse(r.Referer())
	if err != nil || r.Referer() == "" || ref.Host != r.Host {
		h.writeError(w, r, newError(codeForbidden, "request must come from this site"))
		return false
	}
	return true
}

// pathID parses the {id} wildcard. create is true for CreationID.
func pathID(r *http.Request) (id ID, create bool, err error) {
	return ParseID(r.PathValue("id"))
}

// formValue returns a trimmed form value; missing values are empty.
func formValue(r *http.Request, key string) string {
	return strings.TrimSpace(r.PostFormValue(key))
}

// parseOrder parses an order form value. Empty means no order.
func parseOrder(value string) (*int64, error) {
	if value == "" {
		return nil, nil
	}
	if strings.TrimLeft(value, "0123456789") != "" {
		return nil, badRequest("invalid floor order %q", value)
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil, badRequest("invalid floor order %q", value)
	}
	return &n, nil
}

// writeJSON writes v as a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError converts err to an HTTP error response. Internal errors are
// logged.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := asAppError(err)
	if appErr.Code == codeInternal {
		h.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeJSON(w, appErr.Code.httpStatus(), appErr)
}

// formView describes a form for clients that render their own markup.
type formView struct {
	Action string   `json:"action"`
	Fields []string `json:"fields"`
	Values any      `json:"values,omitempty"`
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	libraries, err := h.storage.Libraries(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	floors, err := h.storage.Floors(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		User      *User `json:"user"`
		Libraries int   `json:"libraries"`
		Floors    int   `json:"floors"`
	}{CurrentUser(r.Context()), len(libraries), len(floors)})
}
