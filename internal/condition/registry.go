package condition

import (
	"encoding/json"
	"fmt"
)

// Constructor builds a node variant from its raw tagged payload. Constructors
// for container kinds use the registry to build their children recursively.
type Constructor func(payload json.RawMessage, r *Registry) (Node, error)

// Registry maps discriminator tags to node constructors. It lets host
// applications add custom condition kinds at startup without modifying the
// built-in evaluation logic.
//
// Registration must complete before concurrent reads begin (typically in the
// composition root); reads are lock-free after that point. Re-registering a
// tag overwrites the previous constructor, which allows hosts to override the
// built-in kinds.
type Registry struct {
	constructors map[string]Constructor
}

// NewRegistry creates a registry with the built-in kinds pre-registered.
func NewRegistry() *Registry {
	r := &Registry{constructors: make(map[string]Constructor)}
	r.Register(KindBlock, buildBlock)
	r.Register(KindProductCategory, buildProductCategory)
	r.Register(KindPropertyValues, buildPropertyValues)
	return r
}

// Register binds a constructor to a discriminator tag. Last write wins.
func (r *Registry) Register(kind string, fn Constructor) {
	r.constructors[kind] = fn
}

// Build constructs a node tree from its tagged JSON shape. It fails closed:
// an unknown tag yields ErrUnknownKind and a payload of the wrong shape
// yields ErrMalformedPayload, wrapped with enough context to locate the
// offending node.
func (r *Registry) Build(payload json.RawMessage) (Node, error) {
	var envelope struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if envelope.Kind == "" {
		return nil, fmt.Errorf("%w: missing \"kind\" field", ErrMalformedPayload)
	}

	fn, ok := r.constructors[envelope.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, envelope.Kind)
	}

	return fn(payload, r)
}

// buildBlock constructs a Block, building each child through the registry.
// A missing or empty children array yields an empty (vacuously true) block.
func buildBlock(payload json.RawMessage, r *Registry) (Node, error) {
	var data struct {
		Children []json.RawMessage `json:"children"`
	}
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, fmt.Errorf("%w: block: %v", ErrMalformedPayload, err)
	}

	block := &Block{Children: make([]Node, 0, len(data.Children))}
	for i, raw := range data.Children {
		child, err := r.Build(raw)
		if err != nil {
			return nil, fmt.Errorf("block child %d: %w", i, err)
		}
		block.Children = append(block.Children, child)
	}

	return block, nil
}

// buildProductCategory constructs a ProductCategory node. The category_ids
// field is required; an explicitly empty array is allowed and matches nothing.
func buildProductCategory(payload json.RawMessage, _ *Registry) (Node, error) {
	var data struct {
		CatalogID   string    `json:"catalog_id"`
		CategoryIDs *[]string `json:"category_ids"`
	}
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, fmt.Errorf("%w: product-category: %v", ErrMalformedPayload, err)
	}
	if data.CategoryIDs == nil {
		return nil, fmt.Errorf("%w: product-category: missing \"category_ids\" field", ErrMalformedPayload)
	}

	return &ProductCategory{
		CatalogID:   data.CatalogID,
		CategoryIDs: *data.CategoryIDs,
	}, nil
}

// buildPropertyValues constructs a PropertyValues node. The properties field
// is required; names are normalized to lower case.
func buildPropertyValues(payload json.RawMessage, _ *Registry) (Node, error) {
	var data struct {
		Properties *map[string][]string `json:"properties"`
	}
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, fmt.Errorf("%w: property-values: %v", ErrMalformedPayload, err)
	}
	if data.Properties == nil {
		return nil, fmt.Errorf("%w: property-values: missing \"properties\" field", ErrMalformedPayload)
	}

	return NewPropertyValues(*data.Properties), nil
}
