package condition

import (
	"encoding/json"
	"strings"
)

// PropertyValues is satisfied when, for every named property, at least one
// anchor product carries a value from the allowed set. An anchor product that
// lacks a property entirely does not match for that name. An empty property
// map is vacuously satisfied.
//
// Property names are normalized to lower case when the node is constructed,
// so matching against the context is case-insensitive by construction.
type PropertyValues struct {
	// Properties maps a lower-cased property name to its allowed values.
	Properties map[string][]string
}

var _ Node = (*PropertyValues)(nil)

// NewPropertyValues builds a PropertyValues node, lower-casing property names.
// Values for names that collide after normalization are merged.
func NewPropertyValues(properties map[string][]string) *PropertyValues {
	normalized := make(map[string][]string, len(properties))
	for name, values := range properties {
		key := strings.ToLower(name)
		normalized[key] = append(normalized[key], values...)
	}
	return &PropertyValues{Properties: normalized}
}

// Kind returns the property-values discriminator tag.
func (p *PropertyValues) Kind() string { return KindPropertyValues }

// Matches reports whether the anchor products collectively satisfy the
// property map.
func (p *PropertyValues) Matches(ctx Context) bool {
	if len(p.Properties) == 0 {
		return true
	}
	return ctx.HasPropertyValues(p.Properties)
}

// MarshalJSON serializes the node in its tagged wire shape:
// {"kind":"property-values","properties":{"name":["v1","v2"]}}.
func (p *PropertyValues) MarshalJSON() ([]byte, error) {
	properties := p.Properties
	if properties == nil {
		properties = map[string][]string{}
	}
	return json.Marshal(struct {
		Kind       string              `json:"kind"`
		Properties map[string][]string `json:"properties"`
	}{
		Kind:       KindPropertyValues,
		Properties: properties,
	})
}
