package pointset_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MrWong99/geoquiz/internal/pointset"
)

const seedYAML = `
sets:
  - id: espana-capitales
    name: "Capitales de España"
    mode: world
    owner_id: system
    points:
      - { name: Madrid, lat: 40.4168, lng: -3.7038 }
      - { name: Sevilla, lat: 37.3891, lng: -5.9845 }
`

func TestLoadSeedFromReader(t *testing.T) {
	t.Parallel()

	sf, err := pointset.LoadSeedFromReader(strings.NewReader(seedYAML))
	if err != nil {
		t.Fatalf("LoadSeedFromReader: %v", err)
	}
	if len(sf.Sets) != 1 || len(sf.Sets[0].Points) != 2 {
		t.Fatalf("parsed %+v", sf)
	}
	if p := sf.Sets[0].Points[1]; p.Name != "Sevilla" || p.Lat != 37.3891 {
		t.Errorf("point = %+v", p)
	}
}

func TestLoadSeedFromReader_UnknownField(t *testing.T) {
	t.Parallel()

	_, err := pointset.LoadSeedFromReader(strings.NewReader("sets: []\nextra: 1\n"))
	if err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestSeed_Idempotent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "spain.yaml")
	if err := os.WriteFile(path, []byte(seedYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	store := pointset.NewMemStore()
	for range 2 {
		n, err := pointset.Seed(ctx, store, []string{path})
		if err != nil {
			t.Fatalf("Seed: %v", err)
		}
		if n != 1 {
			t.Errorf("Seed wrote %d sets, want 1", n)
		}
	}

	all, _ := store.List(ctx, "")
	if len(all) != 1 || all[0].ID != "espana-capitales" {
		t.Errorf("store holds %+v", all)
	}
}

func TestSeed_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := pointset.Seed(context.Background(), pointset.NewMemStore(), []string{filepath.Join(t.TempDir(), "nope.yaml")})
	if err == nil {
		t.Fatal("Seed: err = nil, want open error")
	}
}
