package translate

import (
	"github.com/satishbabariya/relquery/metadata"
	"github.com/satishbabariya/relquery/query/ast"
	"github.com/satishbabariya/relquery/query/ir"
)

// Translated expressions are symbolic until the query is finalized: a value
// is an ir.Scalar or one of the structured values below. Structured values
// are flattened into projections and shapers at the end of translation.

// entityValue is an entity whose columns are available in the current select
type entityValue struct {
	typ      *metadata.EntityType
	props    []*metadata.Property
	cols     []ir.Scalar
	owned    []*metadata.OwnedNavigation
	docs     []ir.Scalar
	nullable bool
	refs     []*reference
	includes []*include
}

// reference is a reference navigation joined into a select
type reference struct {
	nav   *metadata.Navigation
	value *entityValue
	kind  ir.JoinKind
	owner *ir.SelectBuilder
}

// include is one navigation of an include tree. Filter, orderings and paging
// only apply to collections.
type include struct {
	nav       *metadata.Navigation
	filter    *ast.Lambda
	orderings []ast.IncludeOrdering
	skip      ast.Expr
	take      ast.Expr
	children  []*include
}

// ownedValue is a document, or a part of one, reached through JSON paths
type ownedValue struct {
	typ        *metadata.ComplexType
	path       *ir.JSONPath
	collection bool
	nullable   bool
}

// objectValue is an anonymous object
type objectValue struct {
	names  []string
	values []any
}

// groupingValue is the result of GroupBy. Until an operator needs SQL
// grouping the rows stay ungrouped so the groupings can be materialized.
type groupingValue struct {
	key     any
	element any
	applied bool
}

// collectionValue is a correlated collection projected alongside its owner
type collectionValue struct {
	name  string
	child *shapedQuery
	// outer holds the owner's keys, matched pairwise with child.corr
	outer []ir.Scalar
}

func newEntityValue(e *metadata.EntityType, alias string, nullable bool) *entityValue {
	v := &entityValue{typ: e, nullable: nullable}
	for _, p := range e.HierarchyProperties() {
		v.props = append(v.props, p)
		v.cols = append(v.cols, ir.Col(alias, p.Column, p.Mapping, p.Nullable || nullable))
	}
	for _, o := range hierarchyOwned(e) {
		v.owned = append(v.owned, o)
		v.docs = append(v.docs, ir.Col(alias, o.Column, metadata.JSON, o.Nullable || nullable))
	}
	return v
}

// hierarchyOwned returns the owned navigations of e, its bases and the types
// derived from it
func hierarchyOwned(e *metadata.EntityType) []*metadata.OwnedNavigation {
	var out []*metadata.OwnedNavigation
	var chain []*metadata.EntityType
	for t := e; t != nil; t = t.Base {
		chain = append([]*metadata.EntityType{t}, chain...)
	}
	for _, t := range chain {
		out = append(out, t.Owned...)
	}
	var walk func(*metadata.EntityType)
	walk = func(t *metadata.EntityType) {
		for _, d := range t.Derived {
			out = append(out, d.Owned...)
			walk(d)
		}
	}
	walk(e)
	return out
}

func (v *entityValue) column(p *metadata.Property) ir.Scalar {
	for i, q := range v.props {
		if q == p {
			return v.cols[i]
		}
	}
	return nil
}

func (v *entityValue) property(name string) (*metadata.Property, ir.Scalar) {
	for i, p := range v.props {
		if p.Name == name {
			return p, v.cols[i]
		}
	}
	return nil, nil
}

func (v *entityValue) document(name string) (*metadata.OwnedNavigation, ir.Scalar) {
	for i, o := range v.owned {
		if o.Name == name {
			return o, v.docs[i]
		}
	}
	return nil, nil
}

// keys returns the primary key columns
func (v *entityValue) keys() []ir.Scalar {
	pk := v.typ.PrimaryKey()
	out := make([]ir.Scalar, 0, len(pk))
	for _, p := range pk {
		if c := v.column(p); c != nil {
			out = append(out, c)
		}
	}
	return out
}

func (v *entityValue) columnsOf(props []*metadata.Property) []ir.Scalar {
	out := make([]ir.Scalar, len(props))
	for i, p := range props {
		out[i] = v.column(p)
	}
	return out
}

// reference returns the join of nav already added to b
func (v *entityValue) reference(nav *metadata.Navigation, b *ir.SelectBuilder) *reference {
	for _, r := range v.refs {
		if r.nav == nav && r.owner == b {
			return r
		}
	}
	return nil
}

// withInclude returns a copy of v whose include tree contains path
func (v *entityValue) withInclude(path []*include) *entityValue {
	cp := *v
	cp.includes = mergeIncludes(v.includes, path)
	return &cp
}

// withIncludes returns a copy of v with its include tree replaced
func (v *entityValue) withIncludes(tree []*include) *entityValue {
	cp := *v
	cp.includes = tree
	return &cp
}

// withoutRefs drops the reference joins memoized on the entities of v
func withoutRefs(v any) any {
	switch x := v.(type) {
	case *entityValue:
		cp := *x
		cp.refs = nil
		return &cp
	case *objectValue:
		cp := &objectValue{names: x.names, values: make([]any, len(x.values))}
		for i, f := range x.values {
			cp.values[i] = withoutRefs(f)
		}
		return cp
	}
	return v
}

func mergeIncludes(tree []*include, path []*include) []*include {
	if len(path) == 0 {
		return tree
	}
	out := append([]*include(nil), tree...)
	for i, existing := range out {
		if existing.nav == path[0].nav {
			merged := *existing
			if path[0].filter != nil || len(path[0].orderings) > 0 || path[0].skip != nil || path[0].take != nil {
				merged.filter = path[0].filter
				merged.orderings = path[0].orderings
				merged.skip = path[0].skip
				merged.take = path[0].take
			}
			merged.children = mergeIncludes(existing.children, path[1:])
			out[i] = &merged
			return out
		}
	}
	head := *path[0]
	head.children = mergeIncludes(nil, path[1:])
	return append(out, &head)
}

func liftAll(xs []ir.Scalar, lift ir.Lifter) []ir.Scalar {
	if len(xs) == 0 {
		return xs
	}
	out := make([]ir.Scalar, len(xs))
	for i, x := range xs {
		out[i] = lift(x)
	}
	return out
}

// liftValue retargets a value onto the select wrapping the one it was
// translated against
func liftValue(v any, lift ir.Lifter) any {
	switch x := v.(type) {
	case nil:
		return nil
	case ir.Scalar:
		return lift(x)
	case *entityValue:
		cp := *x
		cp.cols = liftAll(x.cols, lift)
		cp.docs = liftAll(x.docs, lift)
		cp.refs = make([]*reference, len(x.refs))
		for i, r := range x.refs {
			cp.refs[i] = &reference{nav: r.nav, value: liftValue(r.value, lift).(*entityValue), kind: r.kind, owner: r.owner}
		}
		return &cp
	case *ownedValue:
		cp := *x
		if p, ok := lift(x.path).(*ir.JSONPath); ok {
			cp.path = p
		}
		return &cp
	case *objectValue:
		cp := &objectValue{names: x.names, values: make([]any, len(x.values))}
		for i, f := range x.values {
			cp.values[i] = liftValue(f, lift)
		}
		return cp
	case *groupingValue:
		return &groupingValue{key: liftValue(x.key, lift), element: liftValue(x.element, lift), applied: x.applied}
	case *collectionValue:
		cp := *x
		cp.outer = liftAll(x.outer, lift)
		return &cp
	}
	return v
}

// flatten lists the scalars a value projects, in a stable order. It fails
// for values holding collections.
func flatten(v any) ([]ir.Scalar, bool) {
	switch x := v.(type) {
	case ir.Scalar:
		return []ir.Scalar{x}, true
	case *entityValue:
		out := append([]ir.Scalar(nil), x.cols...)
		return append(out, x.docs...), true
	case *ownedValue:
		return []ir.Scalar{x.path}, true
	case *objectValue:
		var out []ir.Scalar
		for _, f := range x.values {
			s, ok := flatten(f)
			if !ok {
				return nil, false
			}
			out = append(out, s...)
		}
		return out, true
	case *groupingValue:
		k, ok := flatten(x.key)
		if !ok {
			return nil, false
		}
		e, ok := flatten(x.element)
		if !ok {
			return nil, false
		}
		return append(k, e...), true
	}
	return nil, false
}

// hasCollections reports whether shaping v fans rows out
func hasCollections(v any) bool {
	switch x := v.(type) {
	case *entityValue:
		for _, inc := range x.includes {
			if inc.nav.IsCollection || hasCollectionsBelow(inc) {
				return true
			}
		}
	case *objectValue:
		for _, f := range x.values {
			if hasCollections(f) {
				return true
			}
		}
	case *collectionValue:
		return true
	case *groupingValue:
		return !x.applied
	}
	return false
}

func hasCollectionsBelow(inc *include) bool {
	for _, c := range inc.children {
		if c.nav.IsCollection || hasCollectionsBelow(c) {
			return true
		}
	}
	return false
}

// hasIncludes reports whether shaping v adds joins
func hasIncludes(v any) bool {
	switch x := v.(type) {
	case *entityValue:
		return len(x.includes) > 0
	case *objectValue:
		for _, f := range x.values {
			if hasIncludes(f) {
				return true
			}
		}
	case *collectionValue:
		return true
	case *groupingValue:
		return !x.applied || hasIncludes(x.element)
	}
	return false
}
