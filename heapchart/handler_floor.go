package heapchart

import (
	"net/http"

	"github.com/heapchart/heapchart/natsort"
)

// loadFloor loads the floor named by the {id} wildcard. It returns a nil
// floor and no error when the path asks for a new floor.
func (h *Handler) loadFloor(r *http.Request) (*Floor, error) {
	id, create, err := pathID(r)
	if err != nil || create {
		return nil, err
	}
	return h.storage.Floor(r.Context(), id)
}

// handleFloors lists all floors. The sort query parameter selects the
// ordering by name; floors are grouped by library unless told otherwise.
func (h *Handler) handleFloors(w http.ResponseWriter, r *http.Request) {
	strategy := natsort.ByFloor
	if s := r.URL.Query().Get("sort"); s != "" {
		strategy = natsort.Strategy(s)
	}
	compare, ok := natsort.Lookup(strategy)
	if !ok {
		h.writeError(w, r, badRequest("unknown sort %q (valid: %v)", strategy, natsort.Strategies()))
		return
	}

	floors, err := h.storage.Floors(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	natsort.SortBy(floors, compare)
	writeJSON(w, http.StatusOK, struct {
		Floors []Floor `json:"floors"`
	}{floors})
}

func (h *Handler) handleFloor(w http.ResponseWriter, r *http.Request) {
	floor, err := h.loadFloor(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if floor == nil {
		http.Redirect(w, r, CreateFloorPath, http.StatusMovedPermanently)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Floor *Floor `json:"floor"`
	}{floor})
}

func (h *Handler) handleFloorEditForm(w http.ResponseWriter, r *http.Request) {
	floor, err := h.loadFloor(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	view := formView{Action: CreateFloorPath, Fields: []string{"name", "directions", "order"}}
	if floor != nil {
		view.Action = FloorPath(floor.ID, "edit")
		view.Values = floor
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleFloorEdit(w http.ResponseWriter, r *http.Request) {
	floor, err := h.loadFloor(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	attrs := FloorAttrs{
		Name:       formValue(r, "name"),
		Directions: formValue(r, "directions"),
	}
	if attrs.Name == "" {
		h.writeError(w, r, badRequest("name is required"))
		return
	}
	if attrs.Order, err = parseOrder(formValue(r, "order")); err != nil {
		h.writeError(w, r, err)
		return
	}

	if floor == nil {
		_, err = h.storage.CreateFloor(r.Context(), attrs)
	} else {
		_, err = h.storage.UpdateFloor(r.Context(), floor.ID, attrs)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	http.Redirect(w, r, PathFloors, http.StatusSeeOther)
}

func (h *Handler) handleFloorDeleteForm(w http.ResponseWriter, r *http.Request) {
	floor, err := h.loadFloor(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if floor == nil {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("Yes."))
		return
	}

	writeJSON(w, http.StatusOK, formView{
		Action: FloorPath(floor.ID, "delete"),
		Fields: []string{"confirmation"},
		Values: floor,
	})
}

func (h *Handler) handleFloorDelete(w http.ResponseWriter, r *http.Request) {
	floor, err := h.loadFloor(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if floor == nil {
		h.writeError(w, r, badRequest("cannot delete nonexistent floor"))
		return
	}

	if formValue(r, "confirmation") != confirmation {
		http.Redirect(w, r, FloorPath(floor.ID, "delete"), http.StatusSeeOther)
		return
	}

	if err := h.storage.DeleteFloor(r.Context(), floor.ID); err != nil {
		h.writeError(w, r, err)
		return
	}

	http.Redirect(w, r, PathFloors, http.StatusSeeOther)
}

func (h *Handler) handleFloorAssignForm(w http.ResponseWriter, r *http.Request) {
	floor, err := h.loadFloor(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if floor == nil {
		h.writeError(w, r, badRequest("cannot reassign nonexistent floor"))
		return
	}

	libraries, err := h.storage.Libraries(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	natsort.SortNames(libraries)
	writeJSON(w, http.StatusOK, struct {
		formView
		Libraries []Library `json:"libraries"`
	}{
		formView{Action: FloorPath(floor.ID, "assign"), Fields: []string{"library"}, Values: floor},
		libraries,
	})
}

func (h *Handler) handleFloorAssign(w http.ResponseWriter, r *http.Request) {
	floor, err := h.loadFloor(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if floor == nil {
		h.writeError(w, r, badRequest("cannot reassign nonexistent floor"))
		return
	}

	raw := formValue(r, "library")
	libraryID, create, err := ParseID(raw)
	if err != nil || create {
		h.writeError(w, r, badRequest("cannot assign to invalid library id %q", raw))
		return
	}

	if err := h.storage.AssignFloor(r.Context(), floor.ID, &libraryID); err != nil {
		h.writeError(w, r, err)
		return
	}

	http.Redirect(w, r, PathFloors, http.StatusSeeOther)
}

// handleFloorUnassign clears a floor's library. It changes state on GET, so
// it only accepts requests that come from this site.
func (h *Handler) handleFloorUnassign(w http.ResponseWriter, r *http.Request) {
	if !h.requireLocalReferrer(w, r) {
		return
	}

	floor, err := h.loadFloor(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if floor == nil {
		h.writeError(w, r, badRequest("cannot unassign nonexistent floor"))
		return
	}

	if err := h.storage.AssignFloor(r.Context(), floor.ID, nil); err != nil {
		h.writeError(w, r, err)
		return
	}

	http.Redirect(w, r, r.Referer(), http.StatusSeeOther)
}
