package pointset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the point_sets table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS point_sets (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    mode        TEXT NOT NULL DEFAULT 'world',
    image_url   TEXT NOT NULL DEFAULT '',
    points      JSONB NOT NULL DEFAULT '[]',
    owner_id    TEXT NOT NULL DEFAULT '',
    owner_email TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_point_sets_owner ON point_sets(owner_id);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
}

// PostgresStore is a [Store] backed by PostgreSQL. Points are stored as a
// JSONB array; float64 coordinates survive the JSON round trip exactly, so
// coordinate equality still identifies points after a reload.
type PostgresStore struct {
	db DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a [PostgresStore] on top of db. The caller is
// responsible for calling [PostgresStore.Migrate] before issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes [Schema], creating the point_sets table and indexes if
// they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("pointset: migrate: %w", err)
	}
	return nil
}

const selectColumns = `id, name, mode, image_url, points, owner_id, owner_email, created_at, updated_at`

// Create implements [Store.Create].
func (s *PostgresStore) Create(ctx context.Context, set *PointSet) error {
	if err := set.Validate(); err != nil {
		return fmt.Errorf("pointset: create: %w", err)
	}
	if set.ID == "" {
		set.ID = uuid.NewString()
	}
	pointsJSON, err := marshalPoints(set.Points)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO point_sets (id, name, mode, image_url, points, owner_id, owner_email)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`

	err = s.db.QueryRow(ctx, query,
		set.ID, set.Name, string(set.Mode), set.ImageURL, pointsJSON, set.OwnerID, set.OwnerEmail,
	).Scan(&set.CreatedAt, &set.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("pointset: create %q: %w", set.ID, ErrDuplicateID)
		}
		return fmt.Errorf("pointset: create: %w", err)
	}
	return nil
}

// Get implements [Store.Get].
func (s *PostgresStore) Get(ctx context.Context, id string) (*PointSet, error) {
	query := `SELECT ` + selectColumns + ` FROM point_sets WHERE id = $1`

	set, err := scanSet(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("pointset: get %q: %w", id, err)
	}
	return set, nil
}

// List implements [Store.List].
func (s *PostgresStore) List(ctx context.Context, ownerID string) ([]PointSet, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if ownerID == "" {
		rows, err = s.db.Query(ctx, `SELECT `+selectColumns+` FROM point_sets ORDER BY name, id`)
	} else {
		rows, err = s.db.Query(ctx, `SELECT `+selectColumns+` FROM point_sets WHERE owner_id = $1 ORDER BY name, id`, ownerID)
	}
	if err != nil {
		return nil, fmt.Errorf("pointset: list: %w", err)
	}
	defer rows.Close()

	var sets []PointSet
	for rows.Next() {
		set, err := scanSet(rows)
		if err != nil {
			return nil, fmt.Errorf("pointset: list scan: %w", err)
		}
		sets = append(sets, *set)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pointset: list: %w", err)
	}
	return sets, nil
}

// Update implements [Store.Update].
func (s *PostgresStore) Update(ctx context.Context, set *PointSet) error {
	if err := set.Validate(); err != nil {
		return fmt.Errorf("pointset: update: %w", err)
	}
	pointsJSON, err := marshalPoints(set.Points)
	if err != nil {
		return err
	}

	const query = `
		UPDATE point_sets SET
			name = $2, mode = $3, image_url = $4, points = $5,
			owner_id = $6, owner_email = $7, updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at`

	err = s.db.QueryRow(ctx, query,
		set.ID, set.Name, string(set.Mode), set.ImageURL, pointsJSON, set.OwnerID, set.OwnerEmail,
	).Scan(&set.CreatedAt, &set.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("pointset: update: %w", err)
	}
	return nil
}

// Delete implements [Store.Delete].
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM point_sets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("pointset: delete %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping implements [Store.Ping].
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("pointset: ping: %w", err)
	}
	return nil
}

// scanSet reads one row in [selectColumns] order.
func scanSet(row pgx.Row) (*PointSet, error) {
	var (
		set        PointSet
		mode       string
		pointsJSON []byte
	)
	if err := row.Scan(
		&set.ID, &set.Name, &mode, &set.ImageURL, &pointsJSON,
		&set.OwnerID, &set.OwnerEmail, &set.CreatedAt, &set.UpdatedAt,
	); err != nil {
		return nil, err
	}
	set.Mode = MapMode(mode)
	if err := json.Unmarshal(pointsJSON, &set.Points); err != nil {
		return nil, fmt.Errorf("pointset: unmarshal points: %w", err)
	}
	return &set, nil
}

// marshalPoints encodes points as a JSON array, never "null".
func marshalPoints(points []LocationPoint) ([]byte, error) {
	if points == nil {
		points = []LocationPoint{}
	}
	b, err := json.Marshal(points)
	if err != nil {
		return nil, fmt.Errorf("pointset: marshal points: %w", err)
	}
	return b, nil
}

// isDuplicateKeyError checks whether a PostgreSQL error is a unique-violation
// (SQLSTATE 23505).
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
