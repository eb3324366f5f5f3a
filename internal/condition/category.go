package condition

import "encoding/json"

// ProductCategory is satisfied when any anchor product belongs to any of the
// listed categories. An empty category set matches nothing.
type ProductCategory struct {
	// CatalogID optionally scopes the category ids to one catalog.
	CatalogID string

	// CategoryIDs is the set of categories to test membership against.
	CategoryIDs []string
}

var _ Node = (*ProductCategory)(nil)

// Kind returns the product-category discriminator tag.
func (c *ProductCategory) Kind() string { return KindProductCategory }

// Matches reports whether the anchor products intersect the category set.
func (c *ProductCategory) Matches(ctx Context) bool {
	if len(c.CategoryIDs) == 0 {
		return false
	}
	return ctx.InAnyCategory(c.CategoryIDs)
}

// MarshalJSON serializes the node in its tagged wire shape:
// {"kind":"product-category","catalog_id":...,"category_ids":[...]}.
func (c *ProductCategory) MarshalJSON() ([]byte, error) {
	ids := c.CategoryIDs
	if ids == nil {
		ids = []string{}
	}
	return json.Marshal(struct {
		Kind        string   `json:"kind"`
		CatalogID   string   `json:"catalog_id,omitempty"`
		CategoryIDs []string `json:"category_ids"`
	}{
		Kind:        KindProductCategory,
		CatalogID:   c.CatalogID,
		CategoryIDs: ids,
	})
}
