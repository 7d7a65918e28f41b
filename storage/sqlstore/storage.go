// Package sqlstore provides a SQLite-backed implementation of heapchart.Storage.
//
// It uses the pure-Go modernc.org/sqlite driver, so no cgo toolchain is
// needed. Floors reference their library with ON DELETE SET NULL, which
// gives the non-cascading library delete for free.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/heapchart/heapchart/heapchart"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	secret_hash TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS libraries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS floors (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	directions TEXT NOT NULL DEFAULT '',
	floor_order INTEGER,
	library_id INTEGER REFERENCES libraries(id) ON DELETE SET NULL ON UPDATE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_floors_library ON floors(library_id);
`

const selectFloors = `
SELECT f.id, f.name, f.directions, f.floor_order, f.library_id, l.name
FROM floors f LEFT JOIN libraries l ON l.id = f.library_id`

// Options configures the SQLite storage.
type Options struct {
	// Path is the database file. Parent directories are created.
	// Use MemoryPath for a throwaway database.
	Path string

	// Logger for sqlstore operations. If nil, uses slog.Default().
	Logger *slog.Logger
}

// Storage is a SQLite-backed implementation of heapchart.Storage.
type Storage struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ heapchart.Storage = (*Storage)(nil)

// New opens (creating if needed) the database at opts.Path and applies the
// schema.
func New(opts Options) (*Storage, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	path := opts.Path
	if path == "" {
		path = MemoryPath
	}
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlstore: create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps an in-memory
	// database alive for the life of the pool.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if path != MemoryPath {
		if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
			logger.Debug("sqlstore: failed to enable WAL", "error", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: apply schema: %w", err)
	}

	logger.Debug("sqlstore: opened", "path", path)
	return &Storage{db: db, logger: logger}, nil
}

// dsn adds the connection pragmas to path.
func dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	return "file:" + path + "?" + q.Encode()
}

// Close closes the database.
func (s *Storage) Close() error {
	return s.db.Close()
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

// mapWriteError turns constraint failures into heapchart errors.
func mapWriteError(err error, kind, name string) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%s %q exists: %w", kind, name, heapchart.ErrConflict)
	}
	return fmt.Errorf("sqlstore: write %s: %w", kind, err)
}

// mustAffect returns ErrNotFound if res changed no rows.
func mustAffect(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlstore: rows affected: %w", err)
	}
	if n == 0 {
		return heapchart.ErrNotFound
	}
	return nil
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func nullID(p *heapchart.ID) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

// inTx runs fn in a transaction, committing if it returns nil.
func (s *Storage) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstore: begin: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Warn("sqlstore: rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlstore: commit: %w", err)
	}
	return nil
}

// Users

// CreateUser stores a new user.
func (s *Storage) CreateUser(ctx context.Context, name, secretHash string) (*heapchart.User, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (name, secret_hash, created_at) VALUES (?, ?, ?)`,
		name, secretHash, now.Format(time.RFC3339Nano))
	if err != nil {
		return nil, mapWriteError(err, "user", name)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("sqlstore: last insert id: %w", err)
	}
	return &heapchart.User{ID: heapchart.ID(id), Name: name, SecretHash: secretHash, CreatedAt: now}, nil
}

func (s *Storage) scanUser(row *sql.Row) (*heapchart.User, error) {
	var (
		u       heapchart.User
		created string
	)
	if err := row.Scan(&u.ID, &u.Name, &u.SecretHash, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, heapchart.ErrNotFound
		}
		return nil, fmt.Errorf("sqlstore: scan user: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: user %d created_at: %w", u.ID, err)
	}
	u.CreatedAt = t
	return &u, nil
}

// UserByName returns the user with the given name.
func (s *Storage) UserByName(ctx context.Context, name string) (*heapchart.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, name, secret_hash, created_at FROM users WHERE name = ?`, name))
}

// User returns the user with the given ID.
func (s *Storage) User(ctx context.Context, id heapchart.ID) (*heapchart.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, name, secret_hash, created_at FROM users WHERE id = ?`, id))
}

// Libraries

// Libraries returns all libraries in ID order.
func (s *Storage) Libraries(ctx context.Context) ([]heapchart.Library, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM libraries ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: query libraries: %w", err)
	}
	defer rows.Close()

	var out []heapchart.Library
	for rows.Next() {
		var l heapchart.Library
		if err := rows.Scan(&l.ID, &l.Name); err != nil {
			return nil, fmt.Errorf("sqlstore: scan library: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Library returns the library with the given ID.
func (s *Storage) Library(ctx context.Context, id heapchart.ID) (*heapchart.Library, error) {
	l := heapchart.Library{ID: id}
	err := s.db.QueryRowContext(ctx, `SELECT name FROM libraries WHERE id = ?`, id).Scan(&l.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, heapchart.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: get library: %w", err)
	}
	return &l, nil
}

// CreateLibrary stores a new library.
func (s *Storage) CreateLibrary(ctx context.Context, name string) (*heapchart.Library, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO libraries (name) VALUES (?)`, name)
	if err != nil {
		return nil, mapWriteError(err, "library", name)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("sqlstore: last insert id: %w", err)
	}
	return &heapchart.Library{ID: heapchart.ID(id), Name: name}, nil
}

// RenameLibrary changes a library's name.
func (s *Storage) RenameLibrary(ctx context.Context, id heapchart.ID, name string) (*heapchart.Library, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE libraries SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return nil, mapWriteError(err, "library", name)
	}
	if err := mustAffect(res); err != nil {
		return nil, err
	}
	return &heapchart.Library{ID: id, Name: name}, nil
}

// DeleteLibrary removes a library. Its floors are deleted when cascade is
// set; otherwise the foreign key unassigns them.
func (s *Storage) DeleteLibrary(ctx context.Context, id heapchart.ID, cascade bool) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if cascade {
			if _, err := tx.ExecContext(ctx, `DELETE FROM floors WHERE library_id = ?`, id); err != nil {
				return fmt.Errorf("sqlstore: delete floors: %w", err)
			}
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM libraries WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("sqlstore: delete library: %w", err)
		}
		return mustAffect(res)
	})
}

// Floors

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanFloor(row rowScanner) (heapchart.Floor, error) {
	var (
		f           heapchart.Floor
		order       sql.NullInt64
		libraryID   sql.NullInt64
		libraryName sql.NullString
	)
	if err := row.Scan(&f.ID, &f.Name, &f.Directions, &order, &libraryID, &libraryName); err != nil {
		return f, err
	}
	if order.Valid {
		f.Order = &order.Int64
	}
	if libraryID.Valid {
		id := heapchart.ID(libraryID.Int64)
		f.LibraryID = &id
		if libraryName.Valid {
			f.Library = &heapchart.Library{ID: id, Name: libraryName.String}
		}
	}
	return f, nil
}

func (s *Storage) queryFloors(ctx context.Context, query string, args ...any) ([]heapchart.Floor, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: query floors: %w", err)
	}
	defer rows.Close()

	var out []heapchart.Floor
	for rows.Next() {
		f, err := scanFloor(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: scan floor: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Floors returns all floors with their libraries loaded.
func (s *Storage) Floors(ctx context.Context) ([]heapchart.Floor, error) {
	return s.queryFloors(ctx, selectFloors+` ORDER BY f.id`)
}

// FloorsOf returns the floors assigned to a library.
func (s *Storage) FloorsOf(ctx context.Context, libraryID heapchart.ID) ([]heapchart.Floor, error) {
	return s.queryFloors(ctx, selectFloors+` WHERE f.library_id = ? ORDER BY f.id`, libraryID)
}

// Floor returns the floor with the given ID.
func (s *Storage) Floor(ctx context.Context, id heapchart.ID) (*heapchart.Floor, error) {
	f, err := scanFloor(s.db.QueryRowContext(ctx, selectFloors+` WHERE f.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, heapchart.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: get floor: %w", err)
	}
	return &f, nil
}

// CreateFloor stores a new, unassigned floor.
func (s *Storage) CreateFloor(ctx context.Context, attrs heapchart.FloorAttrs) (*heapchart.Floor, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO floors (name, directions, floor_order) VALUES (?, ?, ?)`,
		attrs.Name, attrs.Directions, nullInt64(attrs.Order))
	if err != nil {
		return nil, mapWriteError(err, "floor", attrs.Name)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("sqlstore: last insert id: %w", err)
	}
	return s.Floor(ctx, heapchart.ID(id))
}

// UpdateFloor replaces a floor's editable attributes.
func (s *Storage) UpdateFloor(ctx context.Context, id heapchart.ID, attrs heapchart.FloorAttrs) (*heapchart.Floor, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE floors SET name = ?, directions = ?, floor_order = ? WHERE id = ?`,
		attrs.Name, attrs.Directions, nullInt64(attrs.Order), id)
	if err != nil {
		return nil, mapWriteError(err, "floor", attrs.Name)
	}
	if err := mustAffect(res); err != nil {
		return nil, err
	}
	return s.Floor(ctx, id)
}

// DeleteFloor removes a floor.
func (s *Storage) DeleteFloor(ctx context.Context, id heapchart.ID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM floors WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlstore: delete floor: %w", err)
	}
	return mustAffect(res)
}

// AssignFloor moves a floor to a library, or unassigns it when libraryID is nil.
func (s *Storage) AssignFloor(ctx context.Context, floorID heapchart.ID, libraryID *heapchart.ID) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if libraryID != nil {
			var one int
			err := tx.QueryRowContext(ctx, `SELECT 1 FROM libraries WHERE id = ?`, *libraryID).Scan(&one)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("library %d: %w", *libraryID, heapchart.ErrNotFound)
			}
			if err != nil {
				return fmt.Errorf("sqlstore: get library: %w", err)
			}
		}
		res, err := tx.ExecContext(ctx, `UPDATE floors SET library_id = ? WHERE id = ?`, nullID(libraryID), floorID)
		if err != nil {
			return fmt.Errorf("sqlstore: assign floor: %w", err)
		}
		return mustAffect(res)
	})
}

// ReorderFloors sets the order of several floors in one transaction.
func (s *Storage) ReorderFloors(ctx context.Context, orders map[heapchart.ID]*int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `UPDATE floors SET floor_order = ? WHERE id = ?`)
		if err != nil {
			return fmt.Errorf("sqlstore: prepare reorder: %w", err)
		}
		defer stmt.Close()

		for id, order := range orders {
			res, err := stmt.ExecContext(ctx, nullInt64(order), id)
			if err != nil {
				return fmt.Errorf("sqlstore: reorder floor %d: %w", id, err)
			}
			if err := mustAffect(res); err != nil {
				return fmt.Errorf("floor %d: %w", id, err)
			}
		}
		return nil
	})
}
