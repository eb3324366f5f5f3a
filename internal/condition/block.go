package condition

import "encoding/json"

// Block is the AND combinator: it owns an ordered sequence of child nodes and
// is satisfied only when every child is satisfied. A block with no children is
// vacuously satisfied.
//
// Children are owned exclusively by their block (strict tree, no sharing).
type Block struct {
	Children []Node
}

// Compile-time check that Block satisfies the Node contract.
var _ Node = (*Block)(nil)

// Kind returns the block discriminator tag.
func (b *Block) Kind() string { return KindBlock }

// Matches reports whether every child condition holds.
func (b *Block) Matches(ctx Context) bool {
	for _, child := range b.Children {
		if !child.Matches(ctx) {
			return false
		}
	}
	return true
}

// CategoryIDs aggregates the category ids selected by the block's direct
// ProductCategory children. Authoring surfaces use this to show what a
// resulting-rules block points at; it is not part of evaluation.
func (b *Block) CategoryIDs() []string {
	var ids []string
	for _, child := range b.Children {
		if c, ok := child.(*ProductCategory); ok {
			ids = append(ids, c.CategoryIDs...)
		}
	}
	return ids
}

// PropertyValues aggregates the property selections of the block's direct
// PropertyValues children into a single name -> allowed values map.
// A name selected by more than one child keeps the union of its values.
func (b *Block) PropertyValues() map[string][]string {
	result := make(map[string][]string)
	for _, child := range b.Children {
		p, ok := child.(*PropertyValues)
		if !ok {
			continue
		}
		for name, values := range p.Properties {
			result[name] = append(result[name], values...)
		}
	}
	return result
}

// MarshalJSON serializes the block in its tagged wire shape:
// {"kind":"block","children":[...]}.
func (b *Block) MarshalJSON() ([]byte, error) {
	children := b.Children
	if children == nil {
		children = []Node{}
	}
	return json.Marshal(struct {
		Kind     string `json:"kind"`
		Children []Node `json:"children"`
	}{
		Kind:     KindBlock,
		Children: children,
	})
}
