package heapchart

import "context"

// Storage defines the interface for user, library and floor persistence.
// Implementations must be goroutine-safe.
//
// Names are unique per record kind: creating or renaming to a taken name
// returns an error wrapping ErrConflict. Lookups of unknown IDs return an
// error wrapping ErrNotFound.
type Storage interface {
	// CreateUser stores a new user with an already-hashed secret.
	CreateUser(ctx context.Context, name, secretHash string) (*User, error)

	// UserByName returns the user with the given name.
	UserByName(ctx context.Context, name string) (*User, error)

	// User returns the user with the given ID.
	User(ctx context.Context, id ID) (*User, error)

	// Libraries returns all libraries in no particular order.
	Libraries(ctx context.Context) ([]Library, error)

	// Library returns the library with the given ID.
	Library(ctx context.Context, id ID) (*Library, error)

	// CreateLibrary stores a new library.
	CreateLibrary(ctx context.Context, name string) (*Library, error)

	// RenameLibrary changes a library's name.
	RenameLibrary(ctx context.Context, id ID, name string) (*Library, error)

	// DeleteLibrary removes a library. Its floors become unassigned, or are
	// deleted with it when cascade is true. Either way the change is atomic.
	DeleteLibrary(ctx context.Context, id ID, cascade bool) error

	// Floors returns all floors in no particular order, with Library loaded.
	Floors(ctx context.Context) ([]Floor, error)

	// FloorsOf returns the floors assigned to a library, with Library loaded.
	FloorsOf(ctx context.Context, libraryID ID) ([]Floor, error)

	// Floor returns the floor with the given ID, with Library loaded.
	Floor(ctx context.Context, id ID) (*Floor, error)

	// CreateFloor stores a new, unassigned floor.
	CreateFloor(ctx context.Context, attrs FloorAttrs) (*Floor, error)

	// UpdateFloor replaces a floor's editable attributes.
	UpdateFloor(ctx context.Context, id ID, attrs FloorAttrs) (*Floor, error)

	// DeleteFloor removes a floor.
	DeleteFloor(ctx context.Context, id ID) error

	// AssignFloor moves a floor to a library, or unassigns it when
	// libraryID is nil. Assigning to an unknown library returns ErrNotFound.
	AssignFloor(ctx context.Context, floorID ID, libraryID *ID) error

	// ReorderFloors sets the order of several floors at once. A nil order
	// clears it. If any floor is unknown nothing is changed.
	ReorderFloors(ctx context.Context, orders map[ID]*int64) error
}
