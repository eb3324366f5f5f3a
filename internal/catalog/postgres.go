// Package catalog provides the data access layer for product catalog facts:
// which categories a product belongs to and which property values it carries.
// The evaluation context is built from these lookups, one round-trip each per
// search.
package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/freyrlabs/freyr/internal/evaluation"
	"github.com/freyrlabs/freyr/internal/validation"
)

var (
	_ evaluation.CategoryProvider = (*PostgresCatalog)(nil)
	_ evaluation.PropertyProvider = (*PostgresCatalog)(nil)
)

// PostgresCatalog answers catalog lookups from the product_categories and
// product_properties tables.
type PostgresCatalog struct {
	db *pgxpool.Pool
}

// NewPostgresCatalog creates a catalog instance with the given connection pool.
func NewPostgresCatalog(db *pgxpool.Pool) *PostgresCatalog {
	validation.AssertNotNil(db, "database pool")
	return &PostgresCatalog{db: db}
}

// MemberCategories returns the distinct categories any of the given products
// belongs to.
func (c *PostgresCatalog) MemberCategories(ctx context.Context, productIDs []string) ([]string, error) {
	if len(productIDs) == 0 {
		return []string{}, nil
	}

	rows, err := c.db.Query(ctx, `
		SELECT DISTINCT category_id
		FROM product_categories
		WHERE product_id = ANY($1)
		ORDER BY category_id
	`, productIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query category memberships: %w", err)
	}
	defer rows.Close()

	categories := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan category membership: %w", err)
		}
		categories = append(categories, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read category memberships: %w", err)
	}

	return categories, nil
}

// PropertyValues returns the distinct property values present among the given
// products, keyed by property name.
func (c *PostgresCatalog) PropertyValues(ctx context.Context, productIDs []string) (map[string][]string, error) {
	if len(productIDs) == 0 {
		return map[string][]string{}, nil
	}

	rows, err := c.db.Query(ctx, `
		SELECT DISTINCT name, value
		FROM product_properties
		WHERE product_id = ANY($1)
		ORDER BY name, value
	`, productIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query property values: %w", err)
	}
	defer rows.Close()

	properties := map[string][]string{}
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("failed to scan property value: %w", err)
		}
		properties[name] = append(properties[name], value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read property values: %w", err)
	}

	return properties, nil
}
