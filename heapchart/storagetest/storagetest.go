// Package storagetest provides a conformance suite for heapchart.Storage
// implementations.
//
// Example usage:
//
//	func TestConformance(t *testing.T) {
//		storagetest.Run(t, func(t *testing.T) heapchart.Storage {
//			return memorystorage.New()
//		})
//	}
package storagetest

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/heapchart/heapchart/heapchart"
)

// Factory returns a fresh, empty storage. It should register any cleanup
// with t.
type Factory func(t *testing.T) heapchart.Storage

// Run runs every conformance test against storages made by newStorage.
func Run(t *testing.T, newStorage Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s heapchart.Storage)
	}{
		{"Users", testUsers},
		{"Libraries", testLibraries},
		{"Floors", testFloors},
		{"AssignFloor", testAssignFloor},
		{"DeleteLibrary", testDeleteLibrary},
		{"DeleteLibraryCascade", testDeleteLibraryCascade},
		{"ReorderFloors", testReorderFloors},
		{"ReturnedValuesAreCopies", testReturnedValuesAreCopies},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStorage(t))
		})
	}
}

func order(n int64) *int64 { return &n }

func testUsers(t *testing.T, s heapchart.Storage) {
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "alice", "hash-a")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.ID.IsZero() || u.Name != "alice" || u.SecretHash != "hash-a" {
		t.Errorf("CreateUser returned %+v", u)
	}

	if _, err := s.CreateUser(ctx, "alice", "other"); !errors.Is(err, heapchart.ErrConflict) {
		t.Errorf("duplicate CreateUser error = %v, want ErrConflict", err)
	}

	byName, err := s.UserByName(ctx, "alice")
	if err != nil {
		t.Fatalf("UserByName: %v", err)
	}
	if byName.ID != u.ID || byName.SecretHash != "hash-a" {
		t.Errorf("UserByName returned %+v, want ID %d", byName, u.ID)
	}

	byID, err := s.User(ctx, u.ID)
	if err != nil {
		t.Fatalf("User: %v", err)
	}
	if byID.Name != "alice" {
		t.Errorf("User returned name %q", byID.Name)
	}

	if _, err := s.UserByName(ctx, "bob"); !errors.Is(err, heapchart.ErrNotFound) {
		t.Errorf("UserByName(bob) error = %v, want ErrNotFound", err)
	}
	if _, err := s.User(ctx, u.ID+1000); !errors.Is(err, heapchart.ErrNotFound) {
		t.Errorf("User(unknown) error = %v, want ErrNotFound", err)
	}
}

func testLibraries(t *testing.T, s heapchart.Storage) {
	ctx := context.Background()

	central, err := s.CreateLibrary(ctx, "Main")
	if err != nil {
		t.Fatalf("CreateLibrary: %v", err)
	}
	annex, err := s.CreateLibrary(ctx, "Annex")
	if err != nil {
		t.Fatalf("CreateLibrary: %v", err)
	}
	if central.ID == annex.ID {
		t.Fatalf("libraries share ID %d", central.ID)
	}

	if _, err := s.CreateLibrary(ctx, "Main"); !errors.Is(err, heapchart.ErrConflict) {
		t.Errorf("duplicate CreateLibrary error = %v, want ErrConflict", err)
	}

	renamed, err := s.RenameLibrary(ctx, central.ID, "Central")
	if err != nil {
		t.Fatalf("RenameLibrary: %v", err)
	}
	if renamed.Name != "Central" {
		t.Errorf("RenameLibrary returned %+v", renamed)
	}
	if _, err := s.RenameLibrary(ctx, central.ID, "Central"); err != nil {
		t.Errorf("renaming to own name: %v", err)
	}
	if _, err := s.RenameLibrary(ctx, central.ID, "Annex"); !errors.Is(err, heapchart.ErrConflict) {
		t.Errorf("rename to taken name error = %v, want ErrConflict", err)
	}
	// The old name is free again.
	if _, err := s.CreateLibrary(ctx, "Main"); err != nil {
		t.Errorf("reusing old name: %v", err)
	}
	if _, err := s.RenameLibrary(ctx, central.ID+1000, "X"); !errors.Is(err, heapchart.ErrNotFound) {
		t.Errorf("RenameLibrary(unknown) error = %v, want ErrNotFound", err)
	}

	got, err := s.Library(ctx, central.ID)
	if err != nil {
		t.Fatalf("Library: %v", err)
	}
	if got.Name != "Central" {
		t.Errorf("Library name = %q, want Central", got.Name)
	}
	if _, err := s.Library(ctx, central.ID+1000); !errors.Is(err, heapchart.ErrNotFound) {
		t.Errorf("Library(unknown) error = %v, want ErrNotFound", err)
	}

	all, err := s.Libraries(ctx)
	if err != nil {
		t.Fatalf("Libraries: %v", err)
	}
	var names []string
	for _, l := range all {
		names = append(names, l.Name)
	}
	slices.Sort(names)
	if !slices.Equal(names, []string{"Annex", "Central", "Main"}) {
		t.Errorf("Libraries = %v", names)
	}

	if err := s.DeleteLibrary(ctx, central.ID+1000, false); !errors.Is(err, heapchart.ErrNotFound) {
		t.Errorf("DeleteLibrary(unknown) error = %v, want ErrNotFound", err)
	}
}

func testFloors(t *testing.T, s heapchart.Storage) {
	ctx := context.Background()

	f, err := s.CreateFloor(ctx, heapchart.FloorAttrs{Name: "Floor 1", Directions: "up the stairs", Order: order(1)})
	if err != nil {
		t.Fatalf("CreateFloor: %v", err)
	}
	if f.Name != "Floor 1" || f.Directions != "up the stairs" || f.Order == nil || *f.Order != 1 {
		t.Errorf("CreateFloor returned %+v", f)
	}
	if f.LibraryID != nil || f.Library != nil {
		t.Errorf("new floor is assigned: %+v", f)
	}

	if _, err := s.CreateFloor(ctx, heapchart.FloorAttrs{Name: "Floor 1"}); !errors.Is(err, heapchart.ErrConflict) {
		t.Errorf("duplicate CreateFloor error = %v, want ErrConflict", err)
	}

	g, err := s.CreateFloor(ctx, heapchart.FloorAttrs{Name: "Floor 2"})
	if err != nil {
		t.Fatalf("CreateFloor: %v", err)
	}
	if g.Order != nil {
		t.Errorf("unordered floor has order %d", *g.Order)
	}

	updated, err := s.UpdateFloor(ctx, f.ID, heapchart.FloorAttrs{Name: "Ground", Directions: ""})
	if err != nil {
		t.Fatalf("UpdateFloor: %v", err)
	}
	if updated.Name != "Ground" || updated.Directions != "" || updated.Order != nil {
		t.Errorf("UpdateFloor returned %+v", updated)
	}
	if _, err := s.UpdateFloor(ctx, f.ID, heapchart.FloorAttrs{Name: "Floor 2"}); !errors.Is(err, heapchart.ErrConflict) {
		t.Errorf("update to taken name error = %v, want ErrConflict", err)
	}
	if _, err := s.UpdateFloor(ctx, f.ID+1000, heapchart.FloorAttrs{Name: "X"}); !errors.Is(err, heapchart.ErrNotFound) {
		t.Errorf("UpdateFloor(unknown) error = %v, want ErrNotFound", err)
	}

	got, err := s.Floor(ctx, f.ID)
	if err != nil {
		t.Fatalf("Floor: %v", err)
	}
	if got.Name != "Ground" {
		t.Errorf("Floor name = %q, want Ground", got.Name)
	}

	if err := s.DeleteFloor(ctx, g.ID); err != nil {
		t.Fatalf("DeleteFloor: %v", err)
	}
	if _, err := s.Floor(ctx, g.ID); !errors.Is(err, heapchart.ErrNotFound) {
		t.Errorf("Floor after delete error = %v, want ErrNotFound", err)
	}
	if err := s.DeleteFloor(ctx, g.ID); !errors.Is(err, heapchart.ErrNotFound) {
		t.Errorf("second DeleteFloor error = %v, want ErrNotFound", err)
	}
	// The deleted floor's name is free again.
	if _, err := s.CreateFloor(ctx, heapchart.FloorAttrs{Name: "Floor 2"}); err != nil {
		t.Errorf("reusing deleted name: %v", err)
	}

	all, err := s.Floors(ctx)
	if err != nil {
		t.Fatalf("Floors: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("Floors returned %d floors, want 2", len(all))
	}
}

func testAssignFloor(t *testing.T, s heapchart.Storage) {
	ctx := context.Background()

	lib, err := s.CreateLibrary(ctx, "Main")
	if err != nil {
		t.Fatalf("CreateLibrary: %v", err)
	}
	f, err := s.CreateFloor(ctx, heapchart.FloorAttrs{Name: "Stacks"})
	if err != nil {
		t.Fatalf("CreateFloor: %v", err)
	}
	other, err := s.CreateFloor(ctx, heapchart.FloorAttrs{Name: "Loose"})
	if err != nil {
		t.Fatalf("CreateFloor: %v", err)
	}

	if err := s.AssignFloor(ctx, f.ID, &lib.ID); err != nil {
		t.Fatalf("AssignFloor: %v", err)
	}

	got, err := s.Floor(ctx, f.ID)
	if err != nil {
		t.Fatalf("Floor: %v", err)
	}
	if got.LibraryID == nil || *got.LibraryID != lib.ID {
		t.Fatalf("LibraryID = %v, want %d", got.LibraryID, lib.ID)
	}
	if got.Library == nil || got.Library.Name != "Main" {
		t.Errorf("Library not loaded: %+v", got.Library)
	}

	of, err := s.FloorsOf(ctx, lib.ID)
	if err != nil {
		t.Fatalf("FloorsOf: %v", err)
	}
	if len(of) != 1 || of[0].ID != f.ID || of[0].Library == nil {
		t.Errorf("FloorsOf = %+v, want only %d with library", of, f.ID)
	}

	all, err := s.Floors(ctx)
	if err != nil {
		t.Fatalf("Floors: %v", err)
	}
	for _, fl := range all {
		switch fl.ID {
		case f.ID:
			if fl.Library == nil || fl.Library.ID != lib.ID {
				t.Errorf("Floors: assigned floor missing library: %+v", fl)
			}
		case other.ID:
			if fl.Library != nil || fl.LibraryID != nil {
				t.Errorf("Floors: unassigned floor has library: %+v", fl)
			}
		}
	}

	missing := lib.ID + 1000
	if err := s.AssignFloor(ctx, f.ID, &missing); !errors.Is(err, heapchart.ErrNotFound) {
		t.Errorf("assign to unknown library error = %v, want ErrNotFound", err)
	}
	if err := s.AssignFloor(ctx, f.ID+1000, &lib.ID); !errors.Is(err, heapchart.ErrNotFound) {
		t.Errorf("assign unknown floor error = %v, want ErrNotFound", err)
	}

	if err := s.AssignFloor(ctx, f.ID, nil); err != nil {
		t.Fatalf("unassign: %v", err)
	}
	got, err = s.Floor(ctx, f.ID)
	if err != nil {
		t.Fatalf("Floor: %v", err)
	}
	if got.LibraryID != nil || got.Library != nil {
		t.Errorf("floor still assigned after unassign: %+v", got)
	}
}

// assignedFixture creates a library with two floors and one loose floor.
func assignedFixture(t *testing.T, s heapchart.Storage) (lib *heapchart.Library, inside []heapchart.ID, loose heapchart.ID) {
	t.Helper()
	ctx := context.Background()

	lib, err := s.CreateLibrary(ctx, "Main")
	if err != nil {
		t.Fatalf("CreateLibrary: %v", err)
	}
	for _, name := range []string{"One", "Two"} {
		f, err := s.CreateFloor(ctx, heapchart.FloorAttrs{Name: name})
		if err != nil {
			t.Fatalf("CreateFloor: %v", err)
		}
		if err := s.AssignFloor(ctx, f.ID, &lib.ID); err != nil {
			t.Fatalf("AssignFloor: %v", err)
		}
		inside = append(inside, f.ID)
	}
	f, err := s.CreateFloor(ctx, heapchart.FloorAttrs{Name: "Loose"})
	if err != nil {
		t.Fatalf("CreateFloor: %v", err)
	}
	return lib, inside, f.ID
}

func testDeleteLibrary(t *testing.T, s heapchart.Storage) {
	ctx := context.Background()
	lib, inside, _ := assignedFixture(t, s)

	if err := s.DeleteLibrary(ctx, lib.ID, false); err != nil {
		t.Fatalf("DeleteLibrary: %v", err)
	}
	if _, err := s.Library(ctx, lib.ID); !errors.Is(err, heapchart.ErrNotFound) {
		t.Errorf("Library after delete error = %v, want ErrNotFound", err)
	}

	for _, id := range inside {
		f, err := s.Floor(ctx, id)
		if err != nil {
			t.Fatalf("floor %d lost without cascade: %v", id, err)
		}
		if f.LibraryID != nil || f.Library != nil {
			t.Errorf("floor %d still assigned: %+v", id, f)
		}
	}

	// The name is free again.
	if _, err := s.CreateLibrary(ctx, "Main"); err != nil {
		t.Errorf("reusing deleted library name: %v", err)
	}
}

func testDeleteLibraryCascade(t *testing.T, s heapchart.Storage) {
	ctx := context.Background()
	lib, inside, loose := assignedFixture(t, s)

	if err := s.DeleteLibrary(ctx, lib.ID, true); err != nil {
		t.Fatalf("DeleteLibrary: %v", err)
	}

	for _, id := range inside {
		if _, err := s.Floor(ctx, id); !errors.Is(err, heapchart.ErrNotFound) {
			t.Errorf("floor %d survived cascade: %v", id, err)
		}
	}
	if _, err := s.Floor(ctx, loose); err != nil {
		t.Errorf("unrelated floor deleted: %v", err)
	}
	if _, err := s.CreateFloor(ctx, heapchart.FloorAttrs{Name: "One"}); err != nil {
		t.Errorf("reusing cascaded floor name: %v", err)
	}
}

func testReorderFloors(t *testing.T, s heapchart.Storage) {
	ctx := context.Background()
	_, inside, loose := assignedFixture(t, s)

	if _, err := s.UpdateFloor(ctx, loose, heapchart.FloorAttrs{Name: "Loose", Order: order(9)}); err != nil {
		t.Fatalf("UpdateFloor: %v", err)
	}

	err := s.ReorderFloors(ctx, map[heapchart.ID]*int64{
		inside[0]: order(2),
		inside[1]: order(1),
		loose:     nil,
	})
	if err != nil {
		t.Fatalf("ReorderFloors: %v", err)
	}

	want := map[heapchart.ID]*int64{inside[0]: order(2), inside[1]: order(1), loose: nil}
	for id, w := range want {
		f, err := s.Floor(ctx, id)
		if err != nil {
			t.Fatalf("Floor(%d): %v", id, err)
		}
		switch {
		case w == nil && f.Order != nil:
			t.Errorf("floor %d order = %d, want none", id, *f.Order)
		case w != nil && (f.Order == nil || *f.Order != *w):
			t.Errorf("floor %d order = %v, want %d", id, f.Order, *w)
		}
	}

	// An unknown floor aborts the whole reorder.
	err = s.ReorderFloors(ctx, map[heapchart.ID]*int64{
		inside[0]:    order(7),
		loose + 1000: order(1),
	})
	if !errors.Is(err, heapchart.ErrNotFound) {
		t.Fatalf("ReorderFloors with unknown floor error = %v, want ErrNotFound", err)
	}
	f, err := s.Floor(ctx, inside[0])
	if err != nil {
		t.Fatalf("Floor: %v", err)
	}
	if f.Order == nil || *f.Order != 2 {
		t.Errorf("failed reorder changed floor %d to %v", inside[0], f.Order)
	}

	if err := s.ReorderFloors(ctx, nil); err != nil {
		t.Errorf("empty ReorderFloors: %v", err)
	}
}

func testReturnedValuesAreCopies(t *testing.T, s heapchart.Storage) {
	ctx := context.Background()
	lib, inside, _ := assignedFixture(t, s)

	if err := s.ReorderFloors(ctx, map[heapchart.ID]*int64{inside[0]: order(5)}); err != nil {
		t.Fatalf("ReorderFloors: %v", err)
	}

	f, err := s.Floor(ctx, inside[0])
	if err != nil {
		t.Fatalf("Floor: %v", err)
	}
	*f.Order = 99
	*f.LibraryID = lib.ID + 1000
	f.Library.Name = "Changed"

	again, err := s.Floor(ctx, inside[0])
	if err != nil {
		t.Fatalf("Floor: %v", err)
	}
	if *again.Order != 5 || *again.LibraryID != lib.ID || again.Library.Name != "Main" {
		t.Errorf("mutating a returned floor changed storage: %+v", again)
	}
}
