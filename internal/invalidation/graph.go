// Package invalidation maps collection keys to the keys derived from them and
// walks that map to mark dependents stale after a write.
package invalidation

import (
	"sort"

	"go.uber.org/zap"
)

// Invalidator is the part of the resource cache the graph drives.
type Invalidator interface {
	Invalidate(key string) bool
}

// Graph is a static dependency map: key -> keys derived from it.
type Graph struct {
	target Invalidator
	deps   map[string][]string
	logger *zap.Logger
}

// New copies edges into an immutable graph that invalidates through target.
func New(target Invalidator, edges map[string][]string, logger *zap.Logger) *Graph {
	if logger == nil {
		logger = zap.NewNop()
	}
	deps := make(map[string][]string, len(edges))
	for key, dependents := range edges {
		deps[key] = append([]string(nil), dependents...)
	}
	return &Graph{target: target, deps: deps, logger: logger}
}

// Dependents returns the direct dependents of key.
func (g *Graph) Dependents(key string) []string {
	return append([]string(nil), g.deps[key]...)
}

// Propagate invalidates key and every transitive dependent, breadth-first.
// Each key is visited once even if the graph has cycles. It returns the keys
// in visit order.
func (g *Graph) Propagate(key string) []string {
	visited := map[string]bool{key: true}
	queue := []string{key}
	var order []string

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		order = append(order, cur)
		if g.target != nil {
			g.target.Invalidate(cur)
		}
		for _, dep := range g.deps[cur] {
			if visited[dep] {
				continue
			}
			visited[dep] = true
			queue = append(queue, dep)
		}
	}

	g.logger.Debug("invalidation propagated", zap.String("root", key), zap.Strings("keys", order))
	return order
}

// Keys lists every key that appears in the graph, sorted.
func (g *Graph) Keys() []string {
	seen := make(map[string]bool)
	for key, deps := range g.deps {
		seen[key] = true
		for _, d := range deps {
			seen[d] = true
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
