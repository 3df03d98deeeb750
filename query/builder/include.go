package builder

import (
	"strings"

	"github.com/satishbabariya/relquery/query/ast"
)

// IncludeOption refines an included collection
type IncludeOption func(*ast.Include)

// IncludeWhere filters the included collection
func IncludeWhere(w *WhereBuilder) IncludeOption {
	return func(inc *ast.Include) {
		if !w.IsEmpty() {
			inc.Filter = w.Build()
		}
	}
}

// IncludeOrderBy orders the included collection by a field of its elements
func IncludeOrderBy(field, direction string) IncludeOption {
	return func(inc *ast.Include) {
		inc.Orderings = append(inc.Orderings, ast.IncludeOrdering{
			Key:        ast.Fn("e", ast.P("e."+field)),
			Descending: strings.EqualFold(direction, "desc"),
		})
	}
}

// IncludeSkip skips elements of the included collection
func IncludeSkip(count any) IncludeOption {
	return func(inc *ast.Include) { inc.Skip = Value(count) }
}

// IncludeTake limits the included collection
func IncludeTake(count any) IncludeOption {
	return func(inc *ast.Include) { inc.Take = Value(count) }
}

// IncludeTree is a hierarchical include structure as accepted by the JSON
// front end: {"Posts": {"Comments": {}}}.
type IncludeTree struct {
	Relation string
	Options  []IncludeOption
	Nested   []*IncludeTree
}

// Add adds a nested relation, returning the existing node when present
func (n *IncludeTree) Add(relation string) *IncludeTree {
	for _, c := range n.Nested {
		if c.Relation == relation {
			return c
		}
	}
	c := &IncludeTree{Relation: relation}
	n.Nested = append(n.Nested, c)
	return c
}

// Flatten returns every path of the tree in dot notation, parents first
func (n *IncludeTree) Flatten() []string {
	var out []string
	var walk func(prefix string, t *IncludeTree)
	walk = func(prefix string, t *IncludeTree) {
		path := t.Relation
		if prefix != "" {
			path = prefix + "." + t.Relation
		}
		if path != "" {
			out = append(out, path)
		}
		for _, c := range t.Nested {
			walk(path, c)
		}
	}
	walk("", n)
	return out
}

// Apply includes every path of the tree; options attach to the node they
// were declared on.
func (n *IncludeTree) Apply(q *QueryBuilder) *QueryBuilder {
	var walk func(prefix string, t *IncludeTree)
	walk = func(prefix string, t *IncludeTree) {
		path := t.Relation
		if prefix != "" {
			path = prefix + "." + t.Relation
		}
		if path != "" {
			q.Include(path, t.Options...)
		}
		for _, c := range t.Nested {
			walk(path, c)
		}
	}
	walk("", n)
	return q
}
