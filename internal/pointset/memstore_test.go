package pointset_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/MrWong99/geoquiz/internal/pointset"
)

func newSet(name, owner string) *pointset.PointSet {
	return &pointset.PointSet{
		Name:    name,
		Mode:    pointset.ModeWorld,
		OwnerID: owner,
		Points: []pointset.LocationPoint{
			{Name: "Madrid", Lat: 40.4168, Lng: -3.7038},
			{Name: "Sevilla", Lat: 37.3891, Lng: -5.9845},
		},
	}
}

func TestMemStore_CRUD(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := pointset.NewMemStore()

	set := newSet("Capitales", "u1")
	if err := s.Create(ctx, set); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if set.ID == "" {
		t.Fatal("Create did not assign an ID")
	}
	if set.CreatedAt.IsZero() {
		t.Error("Create did not set CreatedAt")
	}

	got, err := s.Get(ctx, set.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "Capitales" || len(got.Points) != 2 {
		t.Errorf("Get = %+v", got)
	}

	got.Points[0].Name = "mutated"
	again, _ := s.Get(ctx, set.ID)
	if again.Points[0].Name != "Madrid" {
		t.Error("mutating a returned set changed the store")
	}

	got.Name = "Capitales de provincia"
	if err := s.Update(ctx, got); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !got.CreatedAt.Equal(set.CreatedAt) {
		t.Error("Update changed CreatedAt")
	}

	if err := s.Delete(ctx, set.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, set.ID); !errors.Is(err, pointset.ErrNotFound) {
		t.Errorf("Get after Delete: err = %v, want ErrNotFound", err)
	}
}

func TestMemStore_Errors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := pointset.NewMemStore()

	set := newSet("A", "u1")
	set.ID = "fixed"
	if err := s.Create(ctx, set); err != nil {
		t.Fatalf("Create: %v", err)
	}
	dup := newSet("B", "u1")
	dup.ID = "fixed"
	if err := s.Create(ctx, dup); !errors.Is(err, pointset.ErrDuplicateID) {
		t.Errorf("duplicate Create: err = %v, want ErrDuplicateID", err)
	}

	missing := newSet("C", "u1")
	missing.ID = "nope"
	if err := s.Update(ctx, missing); !errors.Is(err, pointset.ErrNotFound) {
		t.Errorf("Update missing: err = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, "nope"); !errors.Is(err, pointset.ErrNotFound) {
		t.Errorf("Delete missing: err = %v, want ErrNotFound", err)
	}
	if err := s.Create(ctx, &pointset.PointSet{}); err == nil {
		t.Error("Create invalid set: err = nil, want validation error")
	}
}

func TestMemStore_ListFiltersAndSorts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	var s pointset.MemStore // zero value is usable

	for _, in := range []struct{ name, owner string }{{"Ríos", "u1"}, {"Capitales", "u1"}, {"Montes", "u2"}} {
		if err := s.Create(ctx, newSet(in.name, in.owner)); err != nil {
			t.Fatalf("Create %s: %v", in.name, err)
		}
	}

	mine, err := s.List(ctx, "u1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(mine) != 2 || mine[0].Name != "Capitales" || mine[1].Name != "Ríos" {
		t.Errorf("List(u1) = %v", mine)
	}

	all, _ := s.List(ctx, "")
	if len(all) != 3 {
		t.Errorf("List(\"\") returned %d sets, want 3", len(all))
	}
}

func TestMemStore_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := pointset.NewMemStore()

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			set := newSet("Capitales", "u1")
			if err := s.Create(ctx, set); err != nil {
				t.Errorf("Create: %v", err)
				return
			}
			_, _ = s.Get(ctx, set.ID)
			_, _ = s.List(ctx, "u1")
		}()
	}
	wg.Wait()

	all, _ := s.List(ctx, "")
	if len(all) != 20 {
		t.Errorf("got %d sets, want 20", len(all))
	}
}
