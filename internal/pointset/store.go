package pointset

import (
	"context"
	"errors"
)

// ErrNotFound is returned when the requested set does not exist.
var ErrNotFound = errors.New("pointset: set not found")

// ErrDuplicateID is returned by Create when a set with the same ID exists.
var ErrDuplicateID = errors.New("pointset: set with that ID already exists")

// Store persists point sets.
//
// All implementations must be safe for concurrent use.
type Store interface {
	// Create stores a new set. An empty ID is replaced by a generated one;
	// CreatedAt and UpdatedAt are set by the store. Returns [ErrDuplicateID]
	// if the ID is taken.
	Create(ctx context.Context, set *PointSet) error

	// Get returns the set with the given ID or [ErrNotFound].
	Get(ctx context.Context, id string) (*PointSet, error)

	// List returns the sets owned by ownerID ordered by name. An empty
	// ownerID lists every set.
	List(ctx context.Context, ownerID string) ([]PointSet, error)

	// Update replaces an existing set and refreshes UpdatedAt.
	// Returns [ErrNotFound] when no set with that ID exists.
	Update(ctx context.Context, set *PointSet) error

	// Delete removes a set. Returns [ErrNotFound] when it does not exist.
	Delete(ctx context.Context, id string) error

	// Ping reports whether the store can serve requests.
	Ping(ctx context.Context) error
}
