/*
walker.go - Depth-first traversal of the payload tree

PURPOSE:
  Finds every agency leaf of the payload, resolves its objective through
  the Index and writes the value back. All per-pass state (index, target,
  counters, visited set) lives in walkContext, threaded through the
  recursion; nothing is shared between passes.

TRAVERSAL (per object node):
  1. If the node is an agency leaf, match and write back.
  2. Descend into node.agencies.
  3. Descend into node.service_points.agencies.
  4. Descend into every object/array field (generic descent). This also
     re-covers the collections of steps 2 and 3.
  A node is entered at most once per pass, so a leaf is merged once even
  when several descents reach it.

ENTRY POINTS (the payload root is never a candidate itself):
  With hierarchicalData:
    - each group of TERRITOIRE and POINT SERVICES: its agencies,
      service_points.agencies, then the group
    - generic descent over hierarchicalData
  Without:
    - generic descent over the root
    - root.territories and root.agencies

SEE ALSO:
  - index.go: Matching cascade
  - identity.go: Leaf test and identifier extraction
*/
package merge

import (
	"github.com/shopspring/decimal"

	"github.com/Modou1ngom/cofidash/hierarchy"
)

// Payload keys the walker knows about.
const (
	keyHierarchicalData = "hierarchicalData"
	keyTerritoire       = "TERRITOIRE"
	keyPointServices    = "POINT SERVICES"
	keyAgencies         = "agencies"
	keyServicePoints    = "service_points"
	keyTerritories      = "territories"
)

// Stats counts what one pass did.
type Stats struct {
	Candidates int `json:"candidates"` // objectives after filtering
	Groups     int `json:"groups"`     // aggregated groups (sum strategy)
	Matched    int `json:"matched"`
	Unmatched  int `json:"unmatched"`
}

type walkContext struct {
	index    *Index
	target   Target
	observer Observer
	visited  map[*hierarchy.Node]struct{}
	stats    Stats
}

func newWalkContext(index *Index, target Target, observer Observer) *walkContext {
	return &walkContext{
		index:    index,
		target:   target,
		observer: observer,
		visited:  make(map[*hierarchy.Node]struct{}),
	}
}

// walkPayload runs the entry points over an unwrapped payload.
func (c *walkContext) walkPayload(root *hierarchy.Node) {
	if !root.IsObject() {
		return
	}

	if hd, ok := root.Field(keyHierarchicalData); ok {
		for _, bucket := range []string{keyTerritoire, keyPointServices} {
			groups, ok := hd.Field(bucket)
			if !ok || !groups.IsObject() {
				continue
			}
			for _, name := range groups.Keys() {
				group, _ := groups.Field(name)
				if !group.IsObject() {
					continue
				}
				c.visitCollection(group, keyAgencies)
				c.visitServicePoints(group)
				c.visit(group)
			}
		}
		c.walkChildren(hd)
		return
	}

	c.walkChildren(root)
	for _, key := range []string{keyTerritories, keyAgencies} {
		if n, ok := root.Field(key); ok {
			c.walkChildren(n)
		}
	}
}

// visit evaluates a node and descends into it, once per pass.
func (c *walkContext) visit(n *hierarchy.Node) {
	if n == nil || (!n.IsObject() && !n.IsArray()) {
		return
	}
	if _, seen := c.visited[n]; seen {
		return
	}
	c.visited[n] = struct{}{}

	if n.IsArray() {
		c.walkChildren(n)
		return
	}

	if id, ok := AgencyOf(n); ok {
		c.merge(n, id)
	}

	c.visitCollection(n, keyAgencies)
	c.visitServicePoints(n)
	c.walkChildren(n)
}

// visitCollection visits the members of n[key], array or keyed object.
func (c *walkContext) visitCollection(n *hierarchy.Node, key string) {
	if coll, ok := n.Field(key); ok {
		c.walkChildren(coll)
	}
}

// visitServicePoints visits the members of n.service_points.agencies.
func (c *walkContext) visitServicePoints(n *hierarchy.Node) {
	if coll, ok := n.Path(keyServicePoints, keyAgencies); ok {
		c.walkChildren(coll)
	}
}

// walkChildren visits the children of n without evaluating n itself.
func (c *walkContext) walkChildren(n *hierarchy.Node) {
	switch {
	case n.IsArray():
		for _, item := range n.Items() {
			c.visit(item)
		}
	case n.IsObject():
		for _, key := range n.Keys() {
			child, _ := n.Field(key)
			c.visit(child)
		}
	}
}

// merge resolves and writes back one agency leaf.
func (c *walkContext) merge(n *hierarchy.Node, id Identity) {
	m, ok := c.index.Resolve(id)
	if !ok {
		c.stats.Unmatched++
		c.observer.Unmatched(id.Key(), id.Candidates())
		return
	}

	old := previousValue(n, c.target.Field)
	n.Set(c.target.Field, m.Value)
	n.Set(GenericField, m.Value)
	if c.target.RateField != "" {
		if rate, ok := realizationRate(n, c.target.RateMetric, m.Value); ok {
			n.Set(c.target.RateField, rate)
		}
	}

	c.stats.Matched++
	c.observer.Matched(id.Key(), old, m.Value)
}

func previousValue(n *hierarchy.Node, field string) any {
	for _, k := range []string{GenericField, field} {
		if v, ok := n.Value(k); ok && v != nil {
			return v
		}
	}
	return 0
}

// realizationRate is round(100 * metric / objective, 2), defined only for
// a numeric metric and a positive objective.
func realizationRate(n *hierarchy.Node, metric string, objectiveValue int64) (float64, bool) {
	if objectiveValue <= 0 {
		return 0, false
	}
	sold, ok := n.Number(metric)
	if !ok {
		return 0, false
	}
	rate := sold.Mul(decimal.NewFromInt(100)).Div(decimal.NewFromInt(objectiveValue)).Round(2)
	f, _ := rate.Float64()
	return f, true
}
