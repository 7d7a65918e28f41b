// Package badgerstore provides a Badger-backed implementation of heapchart.Storage.
//
// Records are stored as JSON under per-type key prefixes, with separate keys
// indexing names for uniqueness and floors by library. Every mutation runs
// in a single Badger transaction, so a cascade delete or a reorder is
// applied completely or not at all.
//
// Limitations:
//
//   - Badger's value log GC runs on a background goroutine (see GCInterval);
//     call RunGC() directly when it is disabled
//   - IDs come from a leased Badger sequence, so IDs skipped by a crash are
//     never reused and gaps are normal
//   - Single-process only: Badger uses file locking, but no additional fencing is performed
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/heapchart/heapchart/heapchart"
)

// Key prefixes for the different record types.
const (
	prefixUser    = "u:" // u:{id} -> JSON userRecord
	prefixLibrary = "l:" // l:{id} -> JSON Library
	prefixFloor   = "f:" // f:{id} -> JSON floorRecord

	prefixUserName    = "un:" // un:{name} -> user id
	prefixLibraryName = "ln:" // ln:{name} -> library id
	prefixFloorName   = "fn:" // fn:{name} -> floor id

	prefixShelf = "lf:" // lf:{libraryID}:{floorID} -> empty; floors of a library

	keyIDSequence = "seq:id" // Badger sequence shared by all record types
)

// idSequenceBandwidth is how many IDs are leased from Badger at a time.
const idSequenceBandwidth = 100

// maxConflictRetries bounds how often a transaction is retried after
// badger.ErrConflict.
const maxConflictRetries = 5

// ErrClosed is returned when operations are attempted on a closed storage.
var ErrClosed = errors.New("badgerstore: storage closed")

type userRecord struct {
	ID         heapchart.ID `json:"id"`
	Name       string       `json:"name"`
	SecretHash string       `json:"secret_hash"`
	CreatedAt  time.Time    `json:"created_at"`
}

func (r userRecord) user() *heapchart.User {
	return &heapchart.User{ID: r.ID, Name: r.Name, SecretHash: r.SecretHash, CreatedAt: r.CreatedAt}
}

// floorRecord is a floor as stored; the library is joined on read.
type floorRecord struct {
	ID         heapchart.ID  `json:"id"`
	Name       string        `json:"name"`
	Directions string        `json:"directions,omitempty"`
	Order      *int64        `json:"order,omitempty"`
	LibraryID  *heapchart.ID `json:"library_id,omitempty"`
}

// Storage is a Badger-backed implementation of heapchart.Storage.
type Storage struct {
	db  *badger.DB
	ids *badger.Sequence

	shutdownTimeout time.Duration
	logger          *slog.Logger

	// Background goroutine control
	wg             sync.WaitGroup
	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc

	closeOnce sync.Once
	closed    atomic.Bool
}

var _ heapchart.Storage = (*Storage)(nil)

// New opens a Badger-backed storage.
func New(opts Options) (*Storage, error) {
	badgerOpts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory || opts.Dir == "" {
		badgerOpts = badgerOpts.WithInMemory(true)
	}
	if opts.Logger != nil {
		badgerOpts = badgerOpts.WithLogger(opts.Logger)
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: open: %w", err)
	}

	ids, err := db.GetSequence([]byte(keyIDSequence), idSequenceBandwidth)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("badgerstore: id sequence: %w", err)
	}

	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}

	logger := opts.SLogger
	if logger == nil {
		logger = slog.Default()
	}

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())

	s := &Storage{
		db:              db,
		ids:             ids,
		shutdownTimeout: shutdownTimeout,
		logger:          logger,
		shutdownCtx:     shutdownCtx,
		shutdownCancel:  shutdownCancel,
	}

	gcInterval := opts.GCInterval
	if gcInterval == 0 {
		gcInterval = DefaultGCInterval
	}
	if gcInterval > 0 {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runGCLoop(gcInterval)
		}()
	}

	return s, nil
}

// Close stops background goroutines and closes the Badger database.
// Waits up to ShutdownTimeout for background goroutines to finish.
// Close is safe to call multiple times - subsequent calls are no-ops.
func (s *Storage) Close() error {
	var closeErr error

	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.shutdownCancel()

		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(s.shutdownTimeout):
			s.logger.Warn("badgerstore: shutdown timeout exceeded, proceeding with close",
				"timeout", s.shutdownTimeout)
		}

		if err := s.ids.Release(); err != nil {
			s.logger.Warn("badgerstore: failed to release id sequence", "error", err)
		}
		closeErr = s.db.Close()
	})

	return closeErr
}

// checkClosed returns ErrClosed if the storage has been closed.
func (s *Storage) checkClosed() error {
	if s.closed.Load() {
		return ErrClosed
	}
	return nil
}

// RunGC runs Badger's value log garbage collection.
func (s *Storage) RunGC() error {
	if err := s.checkClosed(); err != nil {
		return err
	}
	return s.db.RunValueLogGC(0.5)
}

func (s *Storage) nextID() (heapchart.ID, error) {
	n, err := s.ids.Next()
	if err != nil {
		return 0, fmt.Errorf("badgerstore: next id: %w", err)
	}
	return heapchart.ID(n + 1), nil // sequences start at 0, IDs at 1
}

// view runs fn in a read-only transaction.
func (s *Storage) view(fn func(txn *badger.Txn) error) error {
	if err := s.checkClosed(); err != nil {
		return err
	}
	return s.db.View(fn)
}

// update runs fn in a read-write transaction, retrying when a concurrent
// transaction touched the same keys.
func (s *Storage) update(fn func(txn *badger.Txn) error) error {
	if err := s.checkClosed(); err != nil {
		return err
	}
	var err error
	for range maxConflictRetries {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("badgerstore: transaction kept conflicting: %w", err)
}

// Keys

func idKey(prefix string, id heapchart.ID) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefix, id))
}

func nameKey(prefix, name string) []byte {
	return []byte(prefix + name)
}

func shelfPrefix(libraryID heapchart.ID) []byte {
	return []byte(fmt.Sprintf("%s%020d:", prefixShelf, libraryID))
}

func shelfKey(libraryID, floorID heapchart.ID) []byte {
	return []byte(fmt.Sprintf("%s%020d:%020d", prefixShelf, libraryID, floorID))
}

// Transaction helpers

// getJSON decodes the value at key into v. A missing key is
// heapchart.ErrNotFound.
func getJSON(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return heapchart.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("badgerstore: get %s: %w", key, err)
	}
	return item.Value(func(val []byte) error {
		if err := json.Unmarshal(val, v); err != nil {
			return fmt.Errorf("badgerstore: decode %s: %w", key, err)
		}
		return nil
	})
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	encoded, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("badgerstore: encode %s: %w", key, err)
	}
	if err := txn.Set(key, encoded); err != nil {
		return fmt.Errorf("badgerstore: set %s: %w", key, err)
	}
	return nil
}

func deleteKey(txn *badger.Txn, key []byte) error {
	if err := txn.Delete(key); err != nil {
		return fmt.Errorf("badgerstore: delete %s: %w", key, err)
	}
	return nil
}

// lookupName returns the ID a name index points at.
func lookupName(txn *badger.Txn, prefix, name string) (heapchart.ID, error) {
	item, err := txn.Get(nameKey(prefix, name))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, heapchart.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("badgerstore: get name %q: %w", name, err)
	}
	var id heapchart.ID
	err = item.Value(func(val []byte) error {
		n, err := strconv.ParseInt(string(val), 10, 64)
		id = heapchart.ID(n)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("badgerstore: decode name %q: %w", name, err)
	}
	return id, nil
}

// claimName points a name index at id, failing with ErrConflict if another
// record holds the name. oldName, if different, is released.
func claimName(txn *badger.Txn, prefix, kind, oldName, name string, id heapchart.ID) error {
	owner, err := lookupName(txn, prefix, name)
	switch {
	case err == nil && owner != id:
		return fmt.Errorf("%s %q exists: %w", kind, name, heapchart.ErrConflict)
	case err != nil && !errors.Is(err, heapchart.ErrNotFound):
		return err
	}
	if oldName != "" && oldName != name {
		if err := deleteKey(txn, nameKey(prefix, oldName)); err != nil {
			return err
		}
	}
	if err := txn.Set(nameKey(prefix, name), []byte(id.String())); err != nil {
		return fmt.Errorf("badgerstore: set name %q: %w", name, err)
	}
	return nil
}

// scan calls fn for every item under prefix.
func scan(txn *badger.Txn, prefix []byte, fn func(item *badger.Item) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		if err := fn(it.Item()); err != nil {
			return err
		}
	}
	return nil
}

// shelvedFloors returns the IDs of the floors assigned to a library.
func shelvedFloors(txn *badger.Txn, libraryID heapchart.ID) ([]heapchart.ID, error) {
	prefix := shelfPrefix(libraryID)
	var ids []heapchart.ID
	err := scan(txn, prefix, func(item *badger.Item) error {
		n, err := strconv.ParseInt(string(item.Key()[len(prefix):]), 10, 64)
		if err != nil {
			return fmt.Errorf("badgerstore: bad shelf key %s: %w", item.Key(), err)
		}
		ids = append(ids, heapchart.ID(n))
		return nil
	})
	return ids, err
}

// Users

// CreateUser stores a new user.
func (s *Storage) CreateUser(ctx context.Context, name, secretHash string) (*heapchart.User, error) {
	id, err := s.nextID()
	if err != nil {
		return nil, err
	}
	rec := userRecord{ID: id, Name: name, SecretHash: secretHash, CreatedAt: time.Now().UTC()}

	err = s.update(func(txn *badger.Txn) error {
		if err := claimName(txn, prefixUserName, "user", "", name, id); err != nil {
			return err
		}
		return setJSON(txn, idKey(prefixUser, id), rec)
	})
	if err != nil {
		return nil, err
	}
	return rec.user(), nil
}

// UserByName returns the user with the given name.
func (s *Storage) UserByName(ctx context.Context, name string) (*heapchart.User, error) {
	var rec userRecord
	err := s.view(func(txn *badger.Txn) error {
		id, err := lookupName(txn, prefixUserName, name)
		if err != nil {
			return err
		}
		return getJSON(txn, idKey(prefixUser, id), &rec)
	})
	if err != nil {
		return nil, err
	}
	return rec.user(), nil
}

// User returns the user with the given ID.
func (s *Storage) User(ctx context.Context, id heapchart.ID) (*heapchart.User, error) {
	var rec userRecord
	err := s.view(func(txn *badger.Txn) error {
		return getJSON(txn, idKey(prefixUser, id), &rec)
	})
	if err != nil {
		return nil, err
	}
	return rec.user(), nil
}

// Libraries

// Libraries returns all libraries in ID order.
func (s *Storage) Libraries(ctx context.Context) ([]heapchart.Library, error) {
	var out []heapchart.Library
	err := s.view(func(txn *badger.Txn) error {
		return scan(txn, []byte(prefixLibrary), func(item *badger.Item) error {
			var l heapchart.Library
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &l) }); err != nil {
				return fmt.Errorf("badgerstore: decode %s: %w", item.Key(), err)
			}
			out = append(out, l)
			return nil
		})
	})
	return out, err
}

// Library returns the library with the given ID.
func (s *Storage) Library(ctx context.Context, id heapchart.ID) (*heapchart.Library, error) {
	var l heapchart.Library
	err := s.view(func(txn *badger.Txn) error {
		return getJSON(txn, idKey(prefixLibrary, id), &l)
	})
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// CreateLibrary stores a new library.
func (s *Storage) CreateLibrary(ctx context.Context, name string) (*heapchart.Library, error) {
	id, err := s.nextID()
	if err != nil {
		return nil, err
	}
	l := heapchart.Library{ID: id, Name: name}

	err = s.update(func(txn *badger.Txn) error {
		if err := claimName(txn, prefixLibraryName, "library", "", name, id); err != nil {
			return err
		}
		return setJSON(txn, idKey(prefixLibrary, id), l)
	})
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// RenameLibrary changes a library's name.
func (s *Storage) RenameLibrary(ctx context.Context, id heapchart.ID, name string) (*heapchart.Library, error) {
	var l heapchart.Library
	err := s.update(func(txn *badger.Txn) error {
		if err := getJSON(txn, idKey(prefixLibrary, id), &l); err != nil {
			return err
		}
		if err := claimName(txn, prefixLibraryName, "library", l.Name, name, id); err != nil {
			return err
		}
		l.Name = name
		return setJSON(txn, idKey(prefixLibrary, id), l)
	})
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// DeleteLibrary removes a library. Its floors are deleted when cascade is
// set and unassigned otherwise.
func (s *Storage) DeleteLibrary(ctx context.Context, id heapchart.ID, cascade bool) error {
	return s.update(func(txn *badger.Txn) error {
		var l heapchart.Library
		if err := getJSON(txn, idKey(prefixLibrary, id), &l); err != nil {
			return err
		}

		floorIDs, err := shelvedFloors(txn, id)
		if err != nil {
			return err
		}
		for _, fid := range floorIDs {
			if err := deleteKey(txn, shelfKey(id, fid)); err != nil {
				return err
			}
			var rec floorRecord
			if err := getJSON(txn, idKey(prefixFloor, fid), &rec); err != nil {
				if errors.Is(err, heapchart.ErrNotFound) {
					continue
				}
				return err
			}
			if cascade {
				if err := deleteKey(txn, idKey(prefixFloor, fid)); err != nil {
					return err
				}
				if err := deleteKey(txn, nameKey(prefixFloorName, rec.Name)); err != nil {
					return err
				}
				continue
			}
			rec.LibraryID = nil
			if err := setJSON(txn, idKey(prefixFloor, fid), rec); err != nil {
				return err
			}
		}

		if err := deleteKey(txn, nameKey(prefixLibraryName, l.Name)); err != nil {
			return err
		}
		return deleteKey(txn, idKey(prefixLibrary, id))
	})
}

// Floors

// joinLibrary builds a Floor from rec, loading its library.
func joinLibrary(txn *badger.Txn, rec floorRecord) (heapchart.Floor, error) {
	f := heapchart.Floor{
		ID:         rec.ID,
		Name:       rec.Name,
		Directions: rec.Directions,
		Order:      rec.Order,
		LibraryID:  rec.LibraryID,
	}
	if rec.LibraryID == nil {
		return f, nil
	}
	var l heapchart.Library
	err := getJSON(txn, idKey(prefixLibrary, *rec.LibraryID), &l)
	switch {
	case err == nil:
		f.Library = &l
	case !errors.Is(err, heapchart.ErrNotFound):
		return f, err
	}
	return f, nil
}

// Floors returns all floors with their libraries loaded.
func (s *Storage) Floors(ctx context.Context) ([]heapchart.Floor, error) {
	var out []heapchart.Floor
	err := s.view(func(txn *badger.Txn) error {
		var recs []floorRecord
		err := scan(txn, []byte(prefixFloor), func(item *badger.Item) error {
			var rec floorRecord
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &rec) }); err != nil {
				return fmt.Errorf("badgerstore: decode %s: %w", item.Key(), err)
			}
			recs = append(recs, rec)
			return nil
		})
		if err != nil {
			return err
		}
		for _, rec := range recs {
			f, err := joinLibrary(txn, rec)
			if err != nil {
				return err
			}
			out = append(out, f)
		}
		return nil
	})
	return out, err
}

// FloorsOf returns the floors assigned to a library.
func (s *Storage) FloorsOf(ctx context.Context, libraryID heapchart.ID) ([]heapchart.Floor, error) {
	var out []heapchart.Floor
	err := s.view(func(txn *badger.Txn) error {
		floorIDs, err := shelvedFloors(txn, libraryID)
		if err != nil {
			return err
		}
		for _, fid := range floorIDs {
			var rec floorRecord
			if err := getJSON(txn, idKey(prefixFloor, fid), &rec); err != nil {
				return err
			}
			f, err := joinLibrary(txn, rec)
			if err != nil {
				return err
			}
			out = append(out, f)
		}
		return nil
	})
	return out, err
}

// Floor returns the floor with the given ID.
func (s *Storage) Floor(ctx context.Context, id heapchart.ID) (*heapchart.Floor, error) {
	var f heapchart.Floor
	err := s.view(func(txn *badger.Txn) error {
		var rec floorRecord
		if err := getJSON(txn, idKey(prefixFloor, id), &rec); err != nil {
			return err
		}
		var err error
		f, err = joinLibrary(txn, rec)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// CreateFloor stores a new, unassigned floor.
func (s *Storage) CreateFloor(ctx context.Context, attrs heapchart.FloorAttrs) (*heapchart.Floor, error) {
	id, err := s.nextID()
	if err != nil {
		return nil, err
	}
	rec := floorRecord{ID: id, Name: attrs.Name, Directions: attrs.Directions, Order: attrs.Order}

	err = s.update(func(txn *badger.Txn) error {
		if err := claimName(txn, prefixFloorName, "floor", "", attrs.Name, id); err != nil {
			return err
		}
		return setJSON(txn, idKey(prefixFloor, id), rec)
	})
	if err != nil {
		return nil, err
	}
	return &heapchart.Floor{ID: id, Name: rec.Name, Directions: rec.Directions, Order: rec.Order}, nil
}

// UpdateFloor replaces a floor's editable attributes.
func (s *Storage) UpdateFloor(ctx context.Context, id heapchart.ID, attrs heapchart.FloorAttrs) (*heapchart.Floor, error) {
	var f heapchart.Floor
	err := s.update(func(txn *badger.Txn) error {
		var rec floorRecord
		if err := getJSON(txn, idKey(prefixFloor, id), &rec); err != nil {
			return err
		}
		if err := claimName(txn, prefixFloorName, "floor", rec.Name, attrs.Name, id); err != nil {
			return err
		}
		rec.Name = attrs.Name
		rec.Directions = attrs.Directions
		rec.Order = attrs.Order
		if err := setJSON(txn, idKey(prefixFloor, id), rec); err != nil {
			return err
		}
		var err error
		f, err = joinLibrary(txn, rec)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// DeleteFloor removes a floor.
func (s *Storage) DeleteFloor(ctx context.Context, id heapchart.ID) error {
	return s.update(func(txn *badger.Txn) error {
		var rec floorRecord
		if err := getJSON(txn, idKey(prefixFloor, id), &rec); err != nil {
			return err
		}
		if rec.LibraryID != nil {
			if err := deleteKey(txn, shelfKey(*rec.LibraryID, id)); err != nil {
				return err
			}
		}
		if err := deleteKey(txn, nameKey(prefixFloorName, rec.Name)); err != nil {
			return err
		}
		return deleteKey(txn, idKey(prefixFloor, id))
	})
}

// AssignFloor moves a floor to a library, or unassigns it when libraryID is nil.
func (s *Storage) AssignFloor(ctx context.Context, floorID heapchart.ID, libraryID *heapchart.ID) error {
	return s.update(func(txn *badger.Txn) error {
		var rec floorRecord
		if err := getJSON(txn, idKey(prefixFloor, floorID), &rec); err != nil {
			return err
		}
		if libraryID != nil {
			var l heapchart.Library
			if err := getJSON(txn, idKey(prefixLibrary, *libraryID), &l); err != nil {
				return fmt.Errorf("library %d: %w", *libraryID, err)
			}
		}

		if rec.LibraryID != nil {
			if err := deleteKey(txn, shelfKey(*rec.LibraryID, floorID)); err != nil {
				return err
			}
		}
		rec.LibraryID = libraryID
		if libraryID != nil {
			if err := txn.Set(shelfKey(*libraryID, floorID), nil); err != nil {
				return fmt.Errorf("badgerstore: set shelf: %w", err)
			}
		}
		return setJSON(txn, idKey(prefixFloor, floorID), rec)
	})
}

// ReorderFloors sets the order of several floors in one transaction.
func (s *Storage) ReorderFloors(ctx context.Context, orders map[heapchart.ID]*int64) error {
	if len(orders) == 0 {
		return s.checkClosed()
	}
	return s.update(func(txn *badger.Txn) error {
		for id, order := range orders {
			var rec floorRecord
			if err := getJSON(txn, idKey(prefixFloor, id), &rec); err != nil {
				return fmt.Errorf("floor %d: %w", id, err)
			}
			rec.Order = order
			if err := setJSON(txn, idKey(prefixFloor, id), rec); err != nil {
				return err
			}
		}
		return nil
	})
}
