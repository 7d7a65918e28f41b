// Package memorystorage provides an in-memory implementation of heapchart.Storage.
package memorystorage

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go4org/hashtriemap"
	"github.com/heapchart/heapchart/heapchart"
)

// Storage is an in-memory implementation of heapchart.Storage.
// Uses hashtriemap for lookups by ID and by name. Records are never mutated
// in place: writers store fresh copies under mu, so readers holding the read
// lock see a consistent set of users, libraries and floors.
type Storage struct {
	mu sync.RWMutex

	users     hashtriemap.HashTrieMap[heapchart.ID, heapchart.User]
	libraries hashtriemap.HashTrieMap[heapchart.ID, heapchart.Library]
	floors    hashtriemap.HashTrieMap[heapchart.ID, heapchart.Floor] // Library is never set here

	userNames    hashtriemap.HashTrieMap[string, heapchart.ID]
	libraryNames hashtriemap.HashTrieMap[string, heapchart.ID]
	floorNames   hashtriemap.HashTrieMap[string, heapchart.ID]

	lastID atomic.Int64
}

// New creates a new in-memory storage instance.
func New() *Storage {
	return &Storage{}
}

var _ heapchart.Storage = (*Storage)(nil)

func (m *Storage) nextID() heapchart.ID {
	return heapchart.ID(m.lastID.Add(1))
}

// CreateUser stores a new user.
func (m *Storage) CreateUser(ctx context.Context, name, secretHash string) (*heapchart.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.userNames.Load(name); taken {
		return nil, fmt.Errorf("user %q exists: %w", name, heapchart.ErrConflict)
	}

	u := heapchart.User{
		ID:         m.nextID(),
		Name:       name,
		SecretHash: secretHash,
		CreatedAt:  time.Now().UTC(),
	}
	m.users.Store(u.ID, u)
	m.userNames.Store(name, u.ID)
	return &u, nil
}

// UserByName returns the user with the given name.
func (m *Storage) UserByName(ctx context.Context, name string) (*heapchart.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.userNames.Load(name)
	if !ok {
		return nil, heapchart.ErrNotFound
	}
	return m.userLocked(id)
}

// User returns the user with the given ID.
func (m *Storage) User(ctx context.Context, id heapchart.ID) (*heapchart.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.userLocked(id)
}

func (m *Storage) userLocked(id heapchart.ID) (*heapchart.User, error) {
	u, ok := m.users.Load(id)
	if !ok {
		return nil, heapchart.ErrNotFound
	}
	return &u, nil
}

// Libraries returns all libraries.
func (m *Storage) Libraries(ctx context.Context) ([]heapchart.Library, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []heapchart.Library
	m.libraries.Range(func(_ heapchart.ID, l heapchart.Library) bool {
		out = append(out, l)
		return true
	})
	return out, nil
}

// Library returns the library with the given ID.
func (m *Storage) Library(ctx context.Context, id heapchart.ID) (*heapchart.Library, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	l, ok := m.libraries.Load(id)
	if !ok {
		return nil, heapchart.ErrNotFound
	}
	return &l, nil
}

// CreateLibrary stores a new library.
func (m *Storage) CreateLibrary(ctx context.Context, name string) (*heapchart.Library, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.libraryNames.Load(name); taken {
		return nil, fmt.Errorf("library %q exists: %w", name, heapchart.ErrConflict)
	}

	l := heapchart.Library{ID: m.nextID(), Name: name}
	m.libraries.Store(l.ID, l)
	m.libraryNames.Store(name, l.ID)
	return &l, nil
}

// RenameLibrary changes a library's name.
func (m *Storage) RenameLibrary(ctx context.Context, id heapchart.ID, name string) (*heapchart.Library, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.libraries.Load(id)
	if !ok {
		return nil, heapchart.ErrNotFound
	}
	if owner, taken := m.libraryNames.Load(name); taken && owner != id {
		return nil, fmt.Errorf("library %q exists: %w", name, heapchart.ErrConflict)
	}

	m.libraryNames.Delete(l.Name)
	l.Name = name
	m.libraries.Store(id, l)
	m.libraryNames.Store(name, id)
	return &l, nil
}

// DeleteLibrary removes a library and unassigns or deletes its floors.
func (m *Storage) DeleteLibrary(ctx context.Context, id heapchart.ID, cascade bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.libraries.LoadAndDelete(id)
	if !ok {
		return heapchart.ErrNotFound
	}
	m.libraryNames.Delete(l.Name)

	m.floors.Range(func(fid heapchart.ID, f heapchart.Floor) bool {
		if f.LibraryID == nil || *f.LibraryID != id {
			return true
		}
		if cascade {
			m.floors.Delete(fid)
			m.floorNames.Delete(f.Name)
		} else {
			f.LibraryID = nil
			m.floors.Store(fid, f)
		}
		return true
	})
	return nil
}

// Floors returns all floors with their libraries loaded.
func (m *Storage) Floors(ctx context.Context) ([]heapchart.Floor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []heapchart.Floor
	m.floors.Range(func(_ heapchart.ID, f heapchart.Floor) bool {
		out = append(out, m.withLibrary(f))
		return true
	})
	return out, nil
}

// FloorsOf returns the floors assigned to a library.
func (m *Storage) FloorsOf(ctx context.Context, libraryID heapchart.ID) ([]heapchart.Floor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []heapchart.Floor
	m.floors.Range(func(_ heapchart.ID, f heapchart.Floor) bool {
		if f.LibraryID != nil && *f.LibraryID == libraryID {
			out = append(out, m.withLibrary(f))
		}
		return true
	})
	return out, nil
}

// Floor returns the floor with the given ID.
func (m *Storage) Floor(ctx context.Context, id heapchart.ID) (*heapchart.Floor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	f, ok := m.floors.Load(id)
	if !ok {
		return nil, heapchart.ErrNotFound
	}
	f = m.withLibrary(f)
	return &f, nil
}

// withLibrary returns a copy of f, sharing no pointers with the stored
// record, with Library set from its LibraryID.
func (m *Storage) withLibrary(f heapchart.Floor) heapchart.Floor {
	f.Order = copyOrder(f.Order)
	if f.LibraryID == nil {
		return f
	}
	id := *f.LibraryID
	f.LibraryID = &id
	if l, ok := m.libraries.Load(id); ok {
		f.Library = &l
	}
	return f
}

// CreateFloor stores a new, unassigned floor.
func (m *Storage) CreateFloor(ctx context.Context, attrs heapchart.FloorAttrs) (*heapchart.Floor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.floorNames.Load(attrs.Name); taken {
		return nil, fmt.Errorf("floor %q exists: %w", attrs.Name, heapchart.ErrConflict)
	}

	f := heapchart.Floor{
		ID:         m.nextID(),
		Name:       attrs.Name,
		Directions: attrs.Directions,
		Order:      copyOrder(attrs.Order),
	}
	m.floors.Store(f.ID, f)
	m.floorNames.Store(f.Name, f.ID)

	f = m.withLibrary(f)
	return &f, nil
}

// UpdateFloor replaces a floor's editable attributes.
func (m *Storage) UpdateFloor(ctx context.Context, id heapchart.ID, attrs heapchart.FloorAttrs) (*heapchart.Floor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.floors.Load(id)
	if !ok {
		return nil, heapchart.ErrNotFound
	}
	if owner, taken := m.floorNames.Load(attrs.Name); taken && owner != id {
		return nil, fmt.Errorf("floor %q exists: %w", attrs.Name, heapchart.ErrConflict)
	}

	m.floorNames.Delete(f.Name)
	f.Name = attrs.Name
	f.Directions = attrs.Directions
	f.Order = copyOrder(attrs.Order)
	m.floors.Store(id, f)
	m.floorNames.Store(f.Name, id)

	f = m.withLibrary(f)
	return &f, nil
}

// DeleteFloor removes a floor.
func (m *Storage) DeleteFloor(ctx context.Context, id heapchart.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.floors.LoadAndDelete(id)
	if !ok {
		return heapchart.ErrNotFound
	}
	m.floorNames.Delete(f.Name)
	return nil
}

// AssignFloor moves a floor to a library, or unassigns it.
func (m *Storage) AssignFloor(ctx context.Context, floorID heapchart.ID, libraryID *heapchart.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.floors.Load(floorID)
	if !ok {
		return heapchart.ErrNotFound
	}
	if libraryID != nil {
		if _, ok := m.libraries.Load(*libraryID); !ok {
			return fmt.Errorf("library %d: %w", *libraryID, heapchart.ErrNotFound)
		}
		id := *libraryID
		f.LibraryID = &id
	} else {
		f.LibraryID = nil
	}
	m.floors.Store(floorID, f)
	return nil
}

// ReorderFloors sets the order of several floors at once.
func (m *Storage) ReorderFloors(ctx context.Context, orders map[heapchart.ID]*int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id := range orders {
		if _, ok := m.floors.Load(id); !ok {
			return fmt.Errorf("floor %d: %w", id, heapchart.ErrNotFound)
		}
	}
	for id, order := range orders {
		f, _ := m.floors.Load(id)
		f.Order = copyOrder(order)
		m.floors.Store(id, f)
	}
	return nil
}

func copyOrder(o *int64) *int64 {
	if o == nil {
		return nil
	}
	v := *o
	return &v
}
