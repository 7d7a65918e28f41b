package heapchart

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/heapchart/heapchart/natsort"
)

// loadLibrary loads the library named by the {id} wildcard. It returns a
// nil library and no error when the path asks for a new library.
func (h *Handler) loadLibrary(r *http.Request) (*Library, error) {
	id, create, err := pathID(r)
	if err != nil || create {
		return nil, err
	}
	return h.storage.Library(r.Context(), id)
}

func (h *Handler) handleLibraries(w http.ResponseWriter, r *http.Request) {
	libraries, err := h.storage.Libraries(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	natsort.SortNames(libraries)
	writeJSON(w, http.StatusOK, struct {
		Libraries []Library `json:"libraries"`
	}{libraries})
}

func (h *Handler) handleLibrary(w http.ResponseWriter, r *http.Request) {
	library, err := h.loadLibrary(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if library == nil {
		http.Redirect(w, r, CreateLibraryPath, http.StatusMovedPermanently)
		return
	}

	h.writeLibraryFloors(w, r, library)
}

// writeLibraryFloors responds with a library and its naturally sorted floors.
func (h *Handler) writeLibraryFloors(w http.ResponseWriter, r *http.Request, library *Library) {
	floors, err := h.storage.FloorsOf(r.Context(), library.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	natsort.SortFloors(floors)
	writeJSON(w, http.StatusOK, struct {
		Library *Library `json:"library"`
		Floors  []Floor  `json:"floors"`
	}{library, floors})
}

func (h *Handler) handleLibraryEditForm(w http.ResponseWriter, r *http.Request) {
	library, err := h.loadLibrary(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	view := formView{Action: CreateLibraryPath, Fields: []string{"name"}}
	if library != nil {
		view.Action = LibraryPath(library.ID, "edit")
		view.Values = library
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleLibraryEdit(w http.ResponseWriter, r *http.Request) {
	library, err := h.loadLibrary(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	name := formValue(r, "name")
	if name == "" {
		h.writeError(w, r, badRequest("name is required"))
		return
	}

	if library == nil {
		_, err = h.storage.CreateLibrary(r.Context(), name)
	} else {
		_, err = h.storage.RenameLibrary(r.Context(), library.ID, name)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	http.Redirect(w, r, PathLibraries, http.StatusSeeOther)
}

func (h *Handler) handleLibraryDeleteForm(w http.ResponseWriter, r *http.Request) {
	library, err := h.loadLibrary(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if library == nil {
		// Something that was never created is trivially deletable.
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("Yes."))
		return
	}

	writeJSON(w, http.StatusOK, formView{
		Action: LibraryPath(library.ID, "delete"),
		Fields: []string{"confirmation", "cascade"},
		Values: library,
	})
}

func (h *Handler) handleLibraryDelete(w http.ResponseWriter, r *http.Request) {
	library, err := h.loadLibrary(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if library == nil {
		h.writeError(w, r, badRequest("cannot delete nonexistent library"))
		return
	}

	if formValue(r, "confirmation") != confirmation {
		http.Redirect(w, r, LibraryPath(library.ID, "delete"), http.StatusSeeOther)
		return
	}

	cascade := formValue(r, "cascade") == "on"
	if err := h.storage.DeleteLibrary(r.Context(), library.ID, cascade); err != nil {
		h.writeError(w, r, err)
		return
	}

	http.Redirect(w, r, PathLibraries, http.StatusSeeOther)
}

func (h *Handler) handleLibraryReorganizeForm(w http.ResponseWriter, r *http.Request) {
	library, err := h.loadLibrary(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if library == nil {
		h.writeError(w, r, badRequest("cannot reorganize nonexistent library"))
		return
	}

	h.writeLibraryFloors(w, r, library)
}

func (h *Handler) handleLibraryReorganize(w http.ResponseWriter, r *http.Request) {
	library, err := h.loadLibrary(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if library == nil {
		h.writeError(w, r, badRequest("cannot reorganize nonexistent library"))
		return
	}

	if err := r.ParseForm(); err != nil {
		h.writeError(w, r, badRequest("invalid form: %v", err))
		return
	}

	orders, err := parseReorganizeForm(r.PostForm)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.storage.ReorderFloors(r.Context(), orders); err != nil {
		h.writeError(w, r, err)
		return
	}

	http.Redirect(w, r, LibraryPath(library.ID, ""), http.StatusSeeOther)
}

// parseReorganizeForm collects "floor-<id>" fields into new floor orders.
// Other fields are ignored.
func parseReorganizeForm(form map[string][]string) (map[ID]*int64, error) {
	orders := make(map[ID]*int64)
	for key, values := range form {
		key = strings.ToLower(strings.TrimSpace(key))
		idText, ok := strings.CutPrefix(key, "floor-")
		if !ok || idText == "" || strings.TrimLeft(idText, "0123456789") != "" {
			continue
		}
		n, err := strconv.ParseInt(idText, 10, 64)
		if err != nil {
			return nil, badRequest("cannot reorganize nonexistent floor %q", key)
		}

		value := ""
		if len(values) > 0 {
			value = strings.TrimSpace(values[0])
		}
		order, err := parseOrder(value)
		if err != nil {
			return nil, err
		}
		orders[ID(n)] = order
	}
	return orders, nil
}
