package translate

import (
	"github.com/satishbabariya/relquery/metadata"
	"github.com/satishbabariya/relquery/query/ir"
	"github.com/satishbabariya/relquery/query/shaper"
)

// finalize projects the value of the top-level query and describes how its
// rows are shaped back into results
func (t *translation) finalize(q *shapedQuery) (*Result, error) {
	if g, ok := q.value.(*groupingValue); ok && !g.applied {
		if err := t.clientGrouping(q); err != nil {
			return nil, err
		}
	}
	if hasIncludes(q.value) && (q.b.IsLimited() || q.b.IsDistinct() || q.b.IsGrouped()) {
		q.b.PushdownIntoSubquery()
	}
	if !q.b.IsDistinct() {
		q.b.SetProjection(nil)
	}

	f := &frame{t: t, b: q.b}
	ids := append([]ir.Scalar(nil), q.identifier...)
	root, err := f.shape(q.value, &ids)
	if err != nil {
		return nil, err
	}
	shape := &shaper.Shape{Root: root}
	if f.fanned {
		shape.Identifier = f.identifiers(q.identifier)
	}
	sel, err := t.build(q.b)
	if err != nil {
		return nil, err
	}

	params := make(map[string]*metadata.TypeMapping, len(t.params))
	for name, m := range t.params {
		params[name] = m
	}
	return &Result{
		Select:      sel,
		Related:     t.related,
		Shape:       shape,
		Cardinality: q.card,
		Parameters:  params,
		Warnings:    t.warnings,
	}, nil
}

// clientGrouping keeps the rows of a grouping ungrouped, ordered by key so
// that each group arrives as a run of consecutive rows
func (t *translation) clientGrouping(q *shapedQuery) error {
	if q.b.IsLimited() || q.b.IsDistinct() {
		q.b.PushdownIntoSubquery()
	}
	g := q.value.(*groupingValue)
	keys, ok := flatten(g.key)
	if !ok || len(keys) == 0 || hasIncludes(g.key) {
		return failf("GroupBy", "unsupported grouping key")
	}
	previous := q.b.Orderings()
	q.b.ClearOrdering()
	for _, k := range keys {
		q.b.AppendOrdering(&ir.Ordering{Expr: k})
	}
	for _, o := range previous {
		q.b.AppendOrdering(o)
	}
	q.identifier = keys
	return nil
}

// frame shapes values against the projection of one select
type frame struct {
	t *translation
	b *ir.SelectBuilder
	// fanned is set once a collection is stitched from the rows of b
	fanned bool
}

func (f *frame) project(s ir.Scalar) int {
	i, _ := f.b.AddToProjection(f.t.settle(s), columnName(s))
	return i
}

func (f *frame) identifiers(xs []ir.Scalar) []shaper.Identifier {
	out := make([]shaper.Identifier, len(xs))
	for i, x := range xs {
		out[i] = shaper.Identifier{Ordinal: f.project(x), Mapping: f.t.mapping(x)}
	}
	return out
}

// shape describes v. ids is the running identifier of the current row:
// the result identifier followed by the identifiers of every collection
// fanned out so far.
func (f *frame) shape(v any, ids *[]ir.Scalar) (shaper.Node, error) {
	switch x := v.(type) {
	case *entityValue:
		return f.entity(x, ids)
	case *ownedValue:
		return &shaper.Document{Ordinal: f.project(x.path), Type: x.typ, Collection: x.collection}, nil
	case *objectValue:
		obj := &shaper.Object{}
		for i, name := range x.names {
			n, err := f.shape(x.values[i], ids)
			if err != nil {
				return nil, err
			}
			obj.Fields = append(obj.Fields, shaper.Field{Name: name, Value: n})
		}
		return obj, nil
	case *collectionValue:
		return f.collection(x, ids)
	case *groupingValue:
		if x.applied {
			return nil, failf("GroupBy", "groupings must be projected after they are filtered, ordered or paged")
		}
		return f.grouping(x, ids)
	case ir.Scalar:
		return &shaper.Scalar{Ordinal: f.project(x), Mapping: f.t.mapping(x), Nullable: ir.IsNullable(x)}, nil
	}
	return nil, failf("result", "cannot shape %T", v)
}

func (f *frame) entity(v *entityValue, ids *[]ir.Scalar) (*shaper.Entity, error) {
	n := &shaper.Entity{Type: v.typ, Discriminator: -1, Optional: v.nullable}
	n.Key = f.identifiers(v.keys())
	if d := v.typ.DiscriminatorProperty(); d != nil && len(v.typ.Concrete()) > 1 {
		if col := v.column(d); col != nil {
			n.Discriminator = f.project(col)
		}
	}
	for i, p := range v.props {
		n.Properties = append(n.Properties, shaper.PropertyBinding{Property: p, Ordinal: f.project(v.cols[i])})
	}
	for i, o := range v.owned {
		n.Owned = append(n.Owned, shaper.OwnedBinding{Navigation: o, Ordinal: f.project(v.docs[i])})
	}

	var collections []*include
	for _, inc := range v.includes {
		if inc.nav.IsCollection {
			collections = append(collections, inc)
			continue
		}
		ref, err := f.t.joinReference(f.b, v, inc.nav)
		if err != nil {
			return nil, err
		}
		child, err := f.entity(ref.withIncludes(inc.children), ids)
		if err != nil {
			return nil, err
		}
		n.Includes = append(n.Includes, shaper.IncludeBinding{Navigation: inc.nav, Value: child})
	}
	if len(collections) > 1 && !f.t.split {
		f.t.warn(WarnMultipleCollectionInclude,
			"%s loads %d collections in a single query; split queries avoid multiplying the rows returned",
			v.typ.Name, len(collections))
	}
	for _, inc := range collections {
		cv, err := f.t.includeCollection(v, inc)
		if err != nil {
			return nil, err
		}
		node, err := f.collection(cv, ids)
		if err != nil {
			return nil, err
		}
		n.Includes = append(n.Includes, shaper.IncludeBinding{Navigation: inc.nav, Value: node})
	}
	return n, nil
}

// includeCollection builds the query of an included collection
func (t *translation) includeCollection(owner *entityValue, inc *include) (*collectionValue, error) {
	q := t.collectionQuery(owner, inc.nav)
	if inc.filter != nil {
		if err := t.where(q, inc.filter, nil); err != nil {
			return nil, err
		}
	}
	for i, o := range inc.orderings {
		if err := t.orderBy(q, o.Key, o.Descending, i > 0, nil); err != nil {
			return nil, err
		}
	}
	if inc.skip != nil {
		if err := t.skip(q, inc.skip, nil); err != nil {
			return nil, err
		}
	}
	if inc.take != nil {
		if err := t.take(q, inc.take, nil); err != nil {
			return nil, err
		}
	}
	if len(inc.children) > 0 {
		q.value = q.value.(*entityValue).withIncludes(inc.children)
	}
	return &collectionValue{name: inc.nav.Name, child: q, outer: q.outer}, nil
}

func (f *frame) grouping(g *groupingValue, ids *[]ir.Scalar) (shaper.Node, error) {
	key, err := f.shape(g.key, ids)
	if err != nil {
		return nil, err
	}
	outer := append([]ir.Scalar(nil), *ids...)
	var self []ir.Scalar
	if ev, ok := g.element.(*entityValue); ok {
		self = ev.keys()
	}
	for _, s := range self {
		f.b.AppendOrdering(&ir.Ordering{Expr: s})
	}
	*ids = append(*ids, self...)
	f.fanned = true
	elem, err := f.shape(g.element, ids)
	if err != nil {
		return nil, err
	}
	return &shaper.Grouping{
		Key: key,
		Elements: &shaper.Collection{
			Element: elem,
			Outer:   f.identifiers(outer),
			Self:    f.identifiers(self),
		},
	}, nil
}

// childJoin is a collection prepared for joining next to its owner
type childJoin struct {
	table      ir.Table
	kind       ir.JoinKind
	on         ir.Scalar
	orderings  []*ir.Ordering
	identifier []ir.Scalar
	value      any
}

func (f *frame) collection(cv *collectionValue, ids *[]ir.Scalar) (shaper.Node, error) {
	if len(*ids) == 0 {
		return nil, failf("collection "+cv.name, "the owner has no identifier")
	}
	if f.t.split {
		return f.splitCollection(cv, ids)
	}
	outer := append([]ir.Scalar(nil), *ids...)
	for _, s := range outer {
		f.b.AppendOrdering(&ir.Ordering{Expr: s})
	}
	j, err := f.t.prepareChild(cv.child, cv.outer, false)
	if err != nil {
		return nil, err
	}
	f.b.AddJoin(j.kind, j.table, j.on, false)
	for _, o := range j.orderings {
		f.b.AppendOrdering(o)
	}
	for _, s := range j.identifier {
		f.b.AppendOrdering(&ir.Ordering{Expr: s})
	}
	*ids = append(*ids, j.identifier...)
	f.fanned = true
	elem, err := f.shape(optional(j.value), ids)
	if err != nil {
		return nil, err
	}
	return &shaper.Collection{
		Name:    cv.name,
		Element: elem,
		Outer:   f.identifiers(outer),
		Self:    f.identifiers(j.identifier),
	}, nil
}

// splitCollection loads a collection with a related query: the owner's
// select, without its projection, joined to the collection and ordered
// like the owner's rows
func (f *frame) splitCollection(cv *collectionValue, ids *[]ir.Scalar) (shaper.Node, error) {
	owner := append([]ir.Scalar(nil), *ids...)
	for _, s := range owner {
		f.b.AppendOrdering(&ir.Ordering{Expr: s})
	}

	rb := f.b.Clone()
	rb.SetProjection(nil)
	lift := func(s ir.Scalar) ir.Scalar { return s }
	if rb.IsLimited() || rb.IsDistinct() || rb.IsGrouped() {
		lift = rb.PushdownIntoSubquery()
	}
	parent := liftAll(owner, lift)
	j, err := f.t.prepareChild(cv.child, liftAll(cv.outer, lift), true)
	if err != nil {
		return nil, err
	}
	rb.AddJoin(j.kind, j.table, j.on, false)
	for _, s := range parent {
		rb.AppendOrdering(&ir.Ordering{Expr: s})
	}
	for _, o := range j.orderings {
		rb.AppendOrdering(o)
	}
	for _, s := range j.identifier {
		rb.AppendOrdering(&ir.Ordering{Expr: s})
	}

	index := len(f.t.related)
	f.t.related = append(f.t.related, nil)
	rf := &frame{t: f.t, b: rb}
	childIDs := append(append([]ir.Scalar(nil), parent...), j.identifier...)
	elem, err := rf.shape(j.value, &childIDs)
	if err != nil {
		return nil, err
	}
	node := &shaper.SplitCollection{
		Name:        cv.name,
		Query:       index,
		Element:     elem,
		Parent:      f.identifiers(owner),
		ChildParent: rf.identifiers(parent),
		Self:        rf.identifiers(j.identifier),
	}
	sel, err := f.t.build(rb)
	if err != nil {
		return nil, err
	}
	f.t.related[index] = sel
	return node, nil
}

// prepareChild turns the query of a collection into a table joined next to
// its owner. outer holds the owner's keys in the select the child joins.
func (t *translation) prepareChild(q *shapedQuery, outer []ir.Scalar, split bool) (*childJoin, error) {
	if g, ok := q.value.(*groupingValue); ok && !g.applied {
		return nil, failf("collection", "groupings cannot be projected inside a collection")
	}
	if len(q.identifier) == 0 {
		return nil, failf("collection", "the elements have no identifier")
	}
	kind := ir.LeftJoin
	if split {
		kind = ir.InnerJoin
	}

	if isLateral(q.b) {
		on, err := t.keyEquality(outer, q.corr)
		if err != nil {
			return nil, err
		}
		q.b.ApplyPredicate(on)
		if q.skip != nil {
			q.b.ApplyOffset(q.skip)
		}
		if q.take != nil {
			q.b.ApplyLimit(q.take)
		}
		q.b.PushdownIntoSubquery()
		kind = ir.OuterApply
		if split {
			kind = ir.CrossApply
		}
		return &childJoin{table: q.b.Tables()[0], kind: kind, orderings: q.b.Orderings(), identifier: q.identifier, value: q.value}, nil
	}

	if q.skip != nil || q.take != nil {
		if q.b.IsDistinct() || q.b.IsGrouped() {
			q.b.PushdownIntoSubquery()
		}
		orderings := q.b.Orderings()
		if len(orderings) == 0 {
			for _, s := range q.identifier {
				orderings = append(orderings, &ir.Ordering{Expr: s})
			}
		}
		rn := &ir.RowNumber{Partitions: q.corr, Orderings: orderings, Mapping: metadata.Int}
		q.b.AddToProjection(rn, "row")
		row := q.b.PushdownIntoSubquery()(rn)
		var paging ir.Scalar
		if q.skip != nil {
			paging = ir.Compare(ir.OpGreater, row, q.skip)
		}
		if q.take != nil {
			bound := q.take
			if q.skip != nil {
				bound = &ir.Binary{Op: ir.OpAdd, Left: q.skip, Right: q.take, Mapping: q.take.TypeMapping()}
			}
			paging = ir.And(paging, ir.Compare(ir.OpLessEqual, row, bound))
		}
		on, err := t.keyEquality(outer, q.corr)
		if err != nil {
			return nil, err
		}
		return &childJoin{table: q.b.Tables()[0], kind: kind, on: ir.And(on, paging), orderings: q.b.Orderings(), identifier: q.identifier, value: q.value}, nil
	}

	if !isPlain(q.b) {
		q.b.PushdownIntoSubquery()
	}
	on, err := t.keyEquality(outer, q.corr)
	if err != nil {
		return nil, err
	}
	return &childJoin{table: q.b.Tables()[0], kind: kind, on: on, orderings: q.b.Orderings(), identifier: q.identifier, value: q.value}, nil
}

// optional marks the entities of v as possibly missing, as they are when
// their rows come from the outer side of a join
func optional(v any) any {
	switch x := v.(type) {
	case *entityValue:
		cp := *x
		cp.nullable = true
		return &cp
	case *objectValue:
		cp := &objectValue{names: x.names, values: make([]any, len(x.values))}
		for i, f := range x.values {
			cp.values[i] = optional(f)
		}
		return cp
	}
	return v
}

// isLateral reports whether the select references tables it does not
// declare, which happens when a projected collection is filtered by its
// owner's columns
func isLateral(b *ir.SelectBuilder) bool {
	s := b.Snapshot()
	declared := make(map[string]bool)
	for _, a := range ir.DeclaredAliases(s) {
		declared[a] = true
	}
	for a := range ir.ReferencedAliases(s) {
		if !declared[a] {
			return true
		}
	}
	return false
}
