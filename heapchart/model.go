package heapchart

import (
	"time"

	"github.com/heapchart/heapchart/natsort"
)

// User is a registered account.
type User struct {
	ID         ID        `json:"id"`
	Name       string    `json:"name"`
	SecretHash string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// Library is a building or collection that holds floors.
type Library struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

// SortName implements natsort.Named.
func (l Library) SortName() (string, bool) {
	return l.Name, true
}

// Floor is a floor within a library. A floor may be unassigned (no
// library) and may be unordered (no Order).
type Floor struct {
	ID         ID     `json:"id"`
	Name       string `json:"name"`
	Directions string `json:"directions,omitempty"`
	Order      *int64 `json:"order"`
	LibraryID  *ID    `json:"library_id"`

	// Library is loaded by storage alongside the floor when LibraryID is set.
	Library *Library `json:"library,omitempty"`
}

// SortName implements natsort.Named.
func (f Floor) SortName() (string, bool) {
	return f.Name, true
}

// SortOrder implements natsort.Floor.
func (f Floor) SortOrder() (int64, bool) {
	if f.Order == nil {
		return 0, false
	}
	return *f.Order, true
}

// SortLibrary implements natsort.Floor.
func (f Floor) SortLibrary() natsort.Named {
	if f.Library == nil {
		return nil
	}
	return *f.Library
}

// FloorAttrs holds the user-editable fields of a floor.
type FloorAttrs struct {
	Name       string
	Directions string
	Order      *int64
}

var (
	_ natsort.Named = Library{}
	_ natsort.Floor = Floor{}
)
