package badgerstore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heapchart/heapchart/heapchart"
	"github.com/heapchart/heapchart/heapchart/storagetest"
)

// quietLogger suppresses all Badger output during tests.
type quietLogger struct{}

func (l *quietLogger) Errorf(string, ...interface{})   {}
func (l *quietLogger) Warningf(string, ...interface{}) {}
func (l *quietLogger) Infof(string, ...interface{})    {}
func (l *quietLogger) Debugf(string, ...interface{})   {}

// quietSLog returns a silent slog.Logger for tests.
func quietSLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestStorage creates an in-memory storage for testing with background
// goroutines disabled for deterministic behavior.
func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(Options{
		InMemory:   true,
		Logger:     &quietLogger{},
		SLogger:    quietSLog(),
		GCInterval: -1,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, s.Close())
	})
	return s
}

func TestConformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) heapchart.Storage {
		return newTestStorage(t)
	})
}

func TestPersistence(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	open := func() *Storage {
		s, err := New(Options{Dir: dir, Logger: &quietLogger{}, SLogger: quietSLog(), GCInterval: -1})
		require.NoError(t, err)
		return s
	}

	s := open()
	lib, err := s.CreateLibrary(ctx, "Main")
	require.NoError(t, err)
	floor, err := s.CreateFloor(ctx, heapchart.FloorAttrs{Name: "Floor 1"})
	require.NoError(t, err)
	require.NoError(t, s.AssignFloor(ctx, floor.ID, &lib.ID))
	require.NoError(t, s.Close())

	s = open()
	defer s.Close()

	got, err := s.Floor(ctx, floor.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Library)
	assert.Equal(t, "Main", got.Library.Name)

	_, err = s.CreateLibrary(ctx, "Main")
	assert.ErrorIs(t, err, heapchart.ErrConflict)

	// IDs keep increasing across restarts.
	next, err := s.CreateLibrary(ctx, "Annex")
	require.NoError(t, err)
	assert.Greater(t, next.ID, floor.ID)

	of, err := s.FloorsOf(ctx, lib.ID)
	require.NoError(t, err)
	assert.Len(t, of, 1)
}

func TestShelfIndex(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	a, _ := s.CreateLibrary(ctx, "A")
	b, _ := s.CreateLibrary(ctx, "B")
	f, _ := s.CreateFloor(ctx, heapchart.FloorAttrs{Name: "Moving"})

	require.NoError(t, s.AssignFloor(ctx, f.ID, &a.ID))
	require.NoError(t, s.AssignFloor(ctx, f.ID, &b.ID))

	ofA, err := s.FloorsOf(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, ofA, "reassigned floor left behind in old library")

	ofB, err := s.FloorsOf(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, ofB, 1)
	assert.Equal(t, f.ID, ofB[0].ID)

	require.NoError(t, s.DeleteFloor(ctx, f.ID))
	ofB, err = s.FloorsOf(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, ofB, "deleted floor still indexed")
}

func TestIDKeysSortNumerically(t *testing.T) {
	assert.Less(t, string(idKey(prefixFloor, 9)), string(idKey(prefixFloor, 10)))
	assert.Equal(t, "lf:00000000000000000003:00000000000000000012", string(shelfKey(3, 12)))
}

func TestOperationsAfterClose(t *testing.T) {
	s, err := New(Options{InMemory: true, Logger: &quietLogger{}, SLogger: quietSLog()})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	ctx := context.Background()
	id := heapchart.ID(1)

	checks := map[string]error{}
	_, checks["CreateUser"] = s.CreateUser(ctx, "alice", "x")
	_, checks["User"] = s.User(ctx, id)
	_, checks["Libraries"] = s.Libraries(ctx)
	_, checks["CreateLibrary"] = s.CreateLibrary(ctx, "Main")
	checks["DeleteLibrary"] = s.DeleteLibrary(ctx, id, true)
	_, checks["Floors"] = s.Floors(ctx)
	_, checks["UpdateFloor"] = s.UpdateFloor(ctx, id, heapchart.FloorAttrs{Name: "x"})
	checks["AssignFloor"] = s.AssignFloor(ctx, id, nil)
	checks["ReorderFloors"] = s.ReorderFloors(ctx, nil)
	checks["RunGC"] = s.RunGC()

	for op, err := range checks {
		if !errors.Is(err, ErrClosed) {
			t.Errorf("%s after close = %v, want ErrClosed", op, err)
		}
	}
}
