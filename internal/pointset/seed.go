package pointset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// SeedFile is the top-level structure of a set seed YAML file.
//
// Example:
//
//	sets:
//	  - id: espana-capitales
//	    name: "Capitales de España"
//	    mode: world
//	    owner_id: system
//	    points:
//	      - { name: Madrid, lat: 40.4168, lng: -3.7038 }
//	      - { name: Sevilla, lat: 37.3891, lng: -5.9845 }
type SeedFile struct {
	Sets []PointSet `yaml:"sets"`
}

// LoadSeedFile reads and parses a seed file from disk.
func LoadSeedFile(path string) (*SeedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pointset: open seed file %q: %w", path, err)
	}
	defer f.Close()

	sf, err := LoadSeedFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("pointset: parse seed file %q: %w", path, err)
	}
	return sf, nil
}

// LoadSeedFromReader parses seed YAML from r. Unknown keys are rejected.
func LoadSeedFromReader(r io.Reader) (*SeedFile, error) {
	var sf SeedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&sf); err != nil {
		return nil, fmt.Errorf("pointset: decode seed yaml: %w", err)
	}
	return &sf, nil
}

// Seed loads every file in paths concurrently and writes its sets into
// store. Sets that already exist are replaced, so seeding is idempotent.
// It returns the number of sets written and the first error encountered.
func Seed(ctx context.Context, store Store, paths []string) (int, error) {
	files := make([]*SeedFile, len(paths))

	g, _ := errgroup.WithContext(ctx)
	for i, p := range paths {
		g.Go(func() error {
			sf, err := LoadSeedFile(p)
			if err != nil {
				return err
			}
			files[i] = sf
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	n := 0
	for i, sf := range files {
		for _, set := range sf.Sets {
			if err := upsert(ctx, store, &set); err != nil {
				return n, fmt.Errorf("pointset: seed %q from %q: %w", set.Name, paths[i], err)
			}
			n++
		}
		slog.Info("point sets seeded", "file", paths[i], "sets", len(sf.Sets))
	}
	return n, nil
}

func upsert(ctx context.Context, store Store, set *PointSet) error {
	if set.ID == "" {
		return store.Create(ctx, set)
	}
	err := store.Update(ctx, set)
	if errors.Is(err, ErrNotFound) {
		return store.Create(ctx, set)
	}
	return err
}
