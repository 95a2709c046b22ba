package invalidation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type recorder struct {
	keys []string
}

func (r *recorder) Invalidate(key string) bool {
	r.keys = append(r.keys, key)
	return true
}

func TestPropagate_BooksToStats(t *testing.T) {
	rec := &recorder{}
	g := New(rec, map[string][]string{"books": {"stats"}}, nil)

	order := g.Propagate("books")
	assert.Equal(t, []string{"books", "stats"}, order)
	assert.Equal(t, []string{"books", "stats"}, rec.keys)
}

func TestPropagate_LeafOnlyInvalidatesItself(t *testing.T) {
	rec := &recorder{}
	g := New(rec, map[string][]string{"books": {"stats"}}, nil)

	assert.Equal(t, []string{"stats"}, g.Propagate("stats"))
	assert.Equal(t, []string{"stats"}, rec.keys)
}

func TestPropagate_BreadthFirstTransitive(t *testing.T) {
	rec := &recorder{}
	g := New(rec, map[string][]string{
		"books":   {"stats", "authors"},
		"stats":   {"chart"},
		"authors": {"chart", "ranking"},
	}, nil)

	assert.Equal(t, []string{"books", "stats", "authors", "chart", "ranking"}, g.Propagate("books"))
}

func TestPropagate_CycleVisitsEachKeyOnce(t *testing.T) {
	rec := &recorder{}
	g := New(rec, map[string][]string{
		"a": {"b"},
		"b": {"c"},
		"c": {"a", "b"},
	}, nil)

	assert.Equal(t, []string{"a", "b", "c"}, g.Propagate("a"))
	assert.Equal(t, []string{"a", "b", "c"}, rec.keys)
}

func TestNew_CopiesEdges(t *testing.T) {
	edges := map[string][]string{"books": {"stats"}}
	g := New(nil, edges, nil)
	edges["books"][0] = "mutated"

	assert.Equal(t, []string{"stats"}, g.Dependents("books"))
	deps := g.Dependents("books")
	deps[0] = "mutated"
	assert.Equal(t, []string{"stats"}, g.Dependents("books"))
	assert.Equal(t, []string{"books", "stats"}, g.Keys())
}
