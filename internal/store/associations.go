// Package store provides the data access layer for association records,
// backed by PostgreSQL via the pgx driver. Condition trees are persisted as
// JSONB and decoded through the condition registry, so a row holding an
// unknown or malformed tree surfaces an error instead of silently matching.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/freyrlabs/freyr/internal/association"
	"github.com/freyrlabs/freyr/internal/condition"
	"github.com/freyrlabs/freyr/internal/validation"
)

var _ association.Store = (*PostgresStore)(nil)

// PostgresStore is the pgx-backed implementation of association.Store.
type PostgresStore struct {
	db       *pgxpool.Pool
	registry *condition.Registry
}

// NewPostgresStore creates a repository instance with the given connection
// pool and condition registry.
func NewPostgresStore(db *pgxpool.Pool, registry *condition.Registry) *PostgresStore {
	validation.AssertNotNil(db, "database pool")
	validation.AssertNotNil(registry, "condition registry")
	return &PostgresStore{db: db, registry: registry}
}

const associationColumns = `id, store_id, group_tag, name, description, priority, enabled,
		start_date, end_date, condition, target_product_ids, created_at, updated_at`

// ListCandidates returns the enabled records for a store, optionally narrowed
// to one group. Results are ordered by priority then id so callers downstream
// see a deterministic sequence.
func (s *PostgresStore) ListCandidates(ctx context.Context, storeID, group string) ([]*association.Association, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM associations
		WHERE store_id = $1
		  AND enabled
		  AND ($2 = '' OR group_tag = $2)
		ORDER BY priority, id
	`, associationColumns)

	rows, err := s.db.Query(ctx, query, storeID, group)
	if err != nil {
		return nil, storeErr("failed to list candidates", err)
	}
	defer rows.Close()

	return s.collect(rows)
}

// GetByIDs returns the records with the given ids. Missing ids are silently
// skipped.
func (s *PostgresStore) GetByIDs(ctx context.Context, ids []string) ([]*association.Association, error) {
	if len(ids) == 0 {
		return []*association.Association{}, nil
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM associations
		WHERE id = ANY($1)
		ORDER BY priority, id
	`, associationColumns)

	rows, err := s.db.Query(ctx, query, ids)
	if err != nil {
		return nil, storeErr("failed to get associations", err)
	}
	defer rows.Close()

	return s.collect(rows)
}

// List returns a page of records for a store plus the total count. It serves
// the authoring surface and includes disabled records.
func (s *PostgresStore) List(ctx context.Context, storeID, group string, limit, offset int) ([]*association.Association, int64, error) {
	var total int64
	countQuery := `
		SELECT count(*)
		FROM associations
		WHERE store_id = $1
		  AND ($2 = '' OR group_tag = $2)
	`
	if err := s.db.QueryRow(ctx, countQuery, storeID, group).Scan(&total); err != nil {
		return nil, 0, storeErr("failed to count associations", err)
	}

	// No rows means we can skip the page query.
	if total == 0 {
		return []*association.Association{}, 0, nil
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM associations
		WHERE store_id = $1
		  AND ($2 = '' OR group_tag = $2)
		ORDER BY priority, id
		LIMIT $3 OFFSET $4
	`, associationColumns)

	rows, err := s.db.Query(ctx, query, storeID, group, limit, offset)
	if err != nil {
		return nil, 0, storeErr("failed to list associations", err)
	}
	defer rows.Close()

	records, err := s.collect(rows)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// Save upserts the given records inside a single transaction, assigning ids
// to new ones. The input structs are updated in place with ids and
// server-generated timestamps.
func (s *PostgresStore) Save(ctx context.Context, records []*association.Association) ([]*association.Association, error) {
	if len(records) == 0 {
		return records, nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, storeErr("failed to begin transaction", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO associations
			(id, store_id, group_tag, name, description, priority, enabled,
			 start_date, end_date, condition, target_product_ids)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			store_id           = EXCLUDED.store_id,
			group_tag          = EXCLUDED.group_tag,
			name               = EXCLUDED.name,
			description        = EXCLUDED.description,
			priority           = EXCLUDED.priority,
			enabled            = EXCLUDED.enabled,
			start_date         = EXCLUDED.start_date,
			end_date           = EXCLUDED.end_date,
			condition          = EXCLUDED.condition,
			target_product_ids = EXCLUDED.target_product_ids,
			updated_at         = now()
		RETURNING created_at, updated_at
	`

	for _, record := range records {
		if record.ID == "" {
			record.ID = uuid.NewString()
		}

		tree, err := json.Marshal(record.Condition)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize condition tree for %q: %w", record.ID, err)
		}

		err = tx.QueryRow(ctx, query,
			record.ID,
			record.StoreID,
			record.Group,
			record.Name,
			record.Description,
			record.Priority,
			record.Enabled,
			record.StartDate,
			record.EndDate,
			tree,
			record.TargetProductIDs,
		).Scan(&record.CreatedAt, &record.UpdatedAt)
		if err != nil {
			return nil, storeErr(fmt.Sprintf("failed to upsert association %q", record.ID), err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, storeErr("failed to commit save", err)
	}

	return records, nil
}

// Delete removes the records with the given ids. Unknown ids are a no-op.
func (s *PostgresStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	if _, err := s.db.Exec(ctx, `DELETE FROM associations WHERE id = ANY($1)`, ids); err != nil {
		return storeErr("failed to delete associations", err)
	}
	return nil
}

// collect scans every row into an association record, rebuilding the
// condition tree through the registry.
func (s *PostgresStore) collect(rows pgx.Rows) ([]*association.Association, error) {
	records := []*association.Association{}

	for rows.Next() {
		record, err := s.scanRow(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, storeErr("rows iteration error", err)
	}

	return records, nil
}

func (s *PostgresStore) scanRow(row pgx.Row) (*association.Association, error) {
	var (
		record Association
		tree   []byte
	)

	err := row.Scan(
		&record.ID,
		&record.StoreID,
		&record.Group,
		&record.Name,
		&record.Description,
		&record.Priority,
		&record.Enabled,
		&record.StartDate,
		&record.EndDate,
		&tree,
		&record.TargetProductIDs,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, storeErr("failed to scan association row", err)
	}

	node, err := s.registry.Build(tree)
	if err != nil {
		return nil, fmt.Errorf("stored condition tree for %q is unusable: %w", record.ID, err)
	}

	return record.toDomain(node), nil
}

// Association mirrors the 'associations' table structure.
type Association struct {
	ID               string     `db:"id"`
	StoreID          string     `db:"store_id"`
	Group            string     `db:"group_tag"`
	Name             string     `db:"name"`
	Description      string     `db:"description"`
	Priority         int        `db:"priority"`
	Enabled          bool       `db:"enabled"`
	StartDate        *time.Time `db:"start_date"`
	EndDate          *time.Time `db:"end_date"`
	TargetProductIDs []string   `db:"target_product_ids"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

func (r *Association) toDomain(node condition.Node) *association.Association {
	return &association.Association{
		ID:               r.ID,
		StoreID:          r.StoreID,
		Group:            r.Group,
		Name:             r.Name,
		Description:      r.Description,
		Priority:         r.Priority,
		Enabled:          r.Enabled,
		StartDate:        r.StartDate,
		EndDate:          r.EndDate,
		Condition:        node,
		TargetProductIDs: r.TargetProductIDs,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

// storeErr tags a database failure with the store-unavailable sentinel so
// callers can match on it without inspecting driver errors.
func storeErr(msg string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return fmt.Errorf("%s: %w: %w", msg, association.ErrStoreUnavailable, err)
}
