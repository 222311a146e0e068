/*
Package hierarchy models the nested organizational payload returned by the
analytics proxy as an explicit tree.

PURPOSE:
  The payload is a dynamically-shaped JSON document: territories and
  service points containing agencies, totals, and arbitrary nested maps.
  Rather than mutating through references into map[string]any, the payload
  is converted once into a tree of *Node with pointer identity, edited, and
  converted back. The caller's payload is never touched.

NODE KINDS:
  KindObject: named children (a container or an agency)
  KindArray:  ordered children (e.g. "agencies")
  KindScalar: string, json.Number, float64, int, bool or nil

Whether an object is a container or an agency leaf is a merge-time
decision (see merge/identity.go); the tree itself does not classify.

SEE ALSO:
  - codec.go: JSON decoding with UseNumber
  - merge/walker.go: The traversal that edits the tree
*/
package hierarchy

import (
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

type Kind uint8

const (
	KindScalar Kind = iota
	KindObject
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	}
	return "scalar"
}

// Node is one value of the payload tree.
type Node struct {
	kind   Kind
	fields map[string]*Node
	items  []*Node
	scalar any
}

// FromAny builds a tree from a decoded JSON value. Maps with non-string
// keys and other Go types are kept as opaque scalars.
func FromAny(v any) *Node {
	switch t := v.(type) {
	case map[string]any:
		n := &Node{kind: KindObject, fields: make(map[string]*Node, len(t))}
		for k, child := range t {
			n.fields[k] = FromAny(child)
		}
		return n
	case []any:
		n := &Node{kind: KindArray, items: make([]*Node, len(t))}
		for i, child := range t {
			n.items[i] = FromAny(child)
		}
		return n
	case []map[string]any:
		n := &Node{kind: KindArray, items: make([]*Node, len(t))}
		for i, child := range t {
			n.items[i] = FromAny(child)
		}
		return n
	}
	return &Node{kind: KindScalar, scalar: v}
}

// Any rebuilds a fresh dynamic value from the tree.
func (n *Node) Any() any {
	if n == nil {
		return nil
	}
	switch n.kind {
	case KindObject:
		out := make(map[string]any, len(n.fields))
		for k, child := range n.fields {
			out[k] = child.Any()
		}
		return out
	case KindArray:
		out := make([]any, len(n.items))
		for i, child := range n.items {
			out[i] = child.Any()
		}
		return out
	}
	return n.scalar
}

// Map is Any for object nodes; it returns nil for other kinds.
func (n *Node) Map() map[string]any {
	m, _ := n.Any().(map[string]any)
	return m
}

func (n *Node) Kind() Kind     { return n.kind }
func (n *Node) IsObject() bool { return n != nil && n.kind == KindObject }
func (n *Node) IsArray() bool  { return n != nil && n.kind == KindArray }
func (n *Node) Scalar() any    { return n.scalar }

// Field returns the named child of an object node.
func (n *Node) Field(key string) (*Node, bool) {
	if !n.IsObject() {
		return nil, false
	}
	child, ok := n.fields[key]
	return child, ok
}

// Has reports presence of a key, whatever its value (null included).
func (n *Node) Has(key string) bool {
	_, ok := n.Field(key)
	return ok
}

// Path follows nested object keys.
func (n *Node) Path(keys ...string) (*Node, bool) {
	cur := n
	for _, k := range keys {
		next, ok := cur.Field(k)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// Keys returns the object's keys in sorted order.
func (n *Node) Keys() []string {
	if !n.IsObject() {
		return nil
	}
	keys := make([]string, 0, len(n.fields))
	for k := range n.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Items returns the elements of an array node.
func (n *Node) Items() []*Node {
	if !n.IsArray() {
		return nil
	}
	return n.items
}

// Set stores a scalar value under key on an object node.
func (n *Node) Set(key string, v any) {
	if !n.IsObject() {
		return
	}
	n.fields[key] = FromAny(v)
}

// Value returns the dynamic value under key.
func (n *Node) Value(key string) (any, bool) {
	child, ok := n.Field(key)
	if !ok {
		return nil, false
	}
	return child.Any(), true
}

// Text returns the scalar under key as text. Strings are returned as is,
// numbers in their JSON form; any other kind yields "".
func (n *Node) Text(key string) string {
	child, ok := n.Field(key)
	if !ok || child.kind != KindScalar {
		return ""
	}
	return ScalarText(child.scalar)
}

// Number returns the scalar under key as a decimal when it is numeric.
// Numeric strings are accepted, as the proxy sometimes quotes amounts.
func (n *Node) Number(key string) (decimal.Decimal, bool) {
	child, ok := n.Field(key)
	if !ok || child.kind != KindScalar {
		return decimal.Zero, false
	}
	return ScalarNumber(child.scalar)
}

// =============================================================================
// SCALAR CONVERSIONS
// =============================================================================

// ScalarText renders strings and numbers as text; other values yield "".
func ScalarText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}

// ScalarNumber converts numeric scalars (and numeric strings) to decimal.
func ScalarNumber(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		return d, err == nil
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int64:
		return decimal.NewFromInt(t), true
	case float64:
		return decimal.NewFromFloat(t), true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(t))
		return d, err == nil
	}
	return decimal.Zero, false
}
