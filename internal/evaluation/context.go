// Package evaluation builds the read-only fact base a search evaluates
// condition trees against. The context is constructed once per search from
// the anchor products and reused across every candidate evaluation: category
// membership and property values are fetched from their providers a single
// time, never per node.
package evaluation

import (
	"context"
	"fmt"
	"strings"

	"github.com/freyrlabs/freyr/internal/condition"
)

// CategoryProvider answers which categories the anchor products belong to.
// Implementations typically sit on a catalog service or search index.
type CategoryProvider interface {
	// MemberCategories returns the ids of every category any of the given
	// products is a member of (including inherited memberships, if the
	// backing catalog models them).
	MemberCategories(ctx context.Context, productIDs []string) ([]string, error)
}

// PropertyProvider answers which property values are present among the
// anchor products.
type PropertyProvider interface {
	// PropertyValues returns the values present among the given products,
	// keyed by property name. A product lacking a property contributes
	// nothing for that name.
	PropertyValues(ctx context.Context, productIDs []string) (map[string][]string, error)
}

// Context is the immutable per-search fact base. It satisfies
// condition.Context, so candidate trees evaluate directly against it.
type Context struct {
	storeID    string
	productIDs []string

	categories map[string]struct{}
	properties map[string]map[string]struct{} // lower(name) -> value set
}

var _ condition.Context = (*Context)(nil)

// NewContext fetches the anchor products' category memberships and property
// values once and freezes them into a Context. Provider failures are returned
// to the caller; a context is never built on partial data.
func NewContext(
	ctx context.Context,
	storeID string,
	productIDs []string,
	categories CategoryProvider,
	properties PropertyProvider,
) (*Context, error) {
	memberCategories, err := categories.MemberCategories(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("fetching category memberships: %w", err)
	}

	propertyValues, err := properties.PropertyValues(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("fetching property values: %w", err)
	}

	categorySet := make(map[string]struct{}, len(memberCategories))
	for _, id := range memberCategories {
		categorySet[id] = struct{}{}
	}

	propertyIndex := make(map[string]map[string]struct{}, len(propertyValues))
	for name, values := range propertyValues {
		key := strings.ToLower(name)
		set, ok := propertyIndex[key]
		if !ok {
			set = make(map[string]struct{}, len(values))
			propertyIndex[key] = set
		}
		for _, value := range values {
			set[value] = struct{}{}
		}
	}

	return &Context{
		storeID:    storeID,
		productIDs: productIDs,
		categories: categorySet,
		properties: propertyIndex,
	}, nil
}

// StoreID returns the store the search runs against.
func (c *Context) StoreID() string { return c.storeID }

// ProductIDs returns the anchor product ids the context was built from.
func (c *Context) ProductIDs() []string { return c.productIDs }

// InAnyCategory reports whether any anchor product belongs to any of the
// given categories.
func (c *Context) InAnyCategory(categoryIDs []string) bool {
	for _, id := range categoryIDs {
		if _, ok := c.categories[id]; ok {
			return true
		}
	}
	return false
}

// HasPropertyValues reports whether, for every property name in the map, at
// least one anchor product carries a value from the allowed set. Names are
// matched case-insensitively; a name no anchor product carries never matches.
// An empty map is vacuously true.
func (c *Context) HasPropertyValues(properties map[string][]string) bool {
	for name, allowed := range properties {
		present, ok := c.properties[strings.ToLower(name)]
		if !ok {
			return false
		}

		found := false
		for _, value := range allowed {
			if _, ok := present[value]; ok {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
