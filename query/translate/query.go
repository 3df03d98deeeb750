package translate

import (
	"strconv"
	"strings"

	"github.com/satishbabariya/relquery/metadata"
	"github.com/satishbabariya/relquery/query/ast"
	"github.com/satishbabariya/relquery/query/ir"
)

// valueColumn names the single column of inline and parameter row sets
const valueColumn = "value"

func (t *translation) query(q ast.Query, sc *scope, mode queryMode) (*shapedQuery, error) {
	switch x := q.(type) {
	case nil:
		return nil, failf("query", "missing source")
	case *ast.EntitySource:
		return t.entitySource(x.Entity)
	case *ast.InlineSource:
		return t.inlineSource(x), nil
	case *ast.ParameterSource:
		return t.parameterSource(x)
	case *ast.RawSource:
		return t.rawSource(x, sc)
	case *ast.FunctionSource:
		return t.functionSource(x, sc)
	case *ast.NavigationSource:
		return t.navigationSource(x, sc, mode)
	case *ast.QueryMode:
		return t.query(x.Source, sc, mode)
	case *ast.SetOperation:
		return t.setOperation(x, sc, mode)
	case *ast.Join:
		return t.join(x, sc, mode)
	}

	src := ast.SourceOf(q)
	if src == nil {
		return nil, failf(string(q.Type()), "unsupported operator")
	}
	sq, err := t.query(src, sc, mode)
	if err != nil {
		return nil, err
	}
	switch x := q.(type) {
	case *ast.Where:
		err = t.where(sq, x.Predicate, sc)
	case *ast.Select:
		err = t.selectOp(sq, x.Selector, sc)
	case *ast.OrderBy:
		err = t.orderBy(sq, x.Key, x.Descending, x.Then, sc)
	case *ast.Skip:
		err = t.skip(sq, x.Count, sc)
	case *ast.Take:
		err = t.take(sq, x.Count, sc)
	case *ast.Distinct:
		err = t.distinct(sq)
	case *ast.Include:
		err = t.include(sq, x)
	case *ast.GroupBy:
		err = t.groupBy(sq, x, sc)
	case *ast.Terminal:
		if mode != modeTop {
			return nil, failf(string(x.Op), "nested terminal operator")
		}
		err = t.terminal(sq, x, sc)
	default:
		err = failf(string(q.Type()), "unsupported operator")
	}
	if err != nil {
		return nil, err
	}
	return sq, nil
}

func (t *translation) entitySource(name string) (*shapedQuery, error) {
	e, ok := t.tr.model.Entity(name)
	if !ok {
		return nil, failf("entity "+name, "not part of the model")
	}
	return t.entityQuery(e), nil
}

func (t *translation) entityQuery(e *metadata.EntityType) *shapedQuery {
	root := e.Root()
	alias := t.am.Generate(root.Table)
	v := newEntityValue(e, alias, false)
	q := t.newQuery(&ir.TableRef{Name: root.Table, Schema: root.Schema, Alias: alias}, v, v.keys())
	q.b.ApplyPredicate(discriminatorFilter(e, v))
	return q
}

// discriminatorFilter restricts the rows of a derived type's table to the
// discriminator values of the type and the types deriving from it
func discriminatorFilter(e *metadata.EntityType, v *entityValue) ir.Scalar {
	d := e.DiscriminatorProperty()
	if e.Base == nil || d == nil {
		return nil
	}
	col := v.column(d)
	if col == nil {
		return nil
	}
	var values []ir.Scalar
	for _, c := range e.Concrete() {
		values = append(values, ir.Const(c.DiscriminatorValue, d.Mapping))
	}
	return ir.InValues(col, values, false, false)
}

func (t *translation) inlineSource(x *ast.InlineSource) *shapedQuery {
	mapping := x.Mapping
	for _, v := range x.Values {
		if mapping != nil {
			break
		}
		mapping, _ = metadata.MappingForValue(v)
	}
	if mapping == nil {
		mapping = metadata.Untyped
	}
	nullable := false
	rows := make([][]ir.Scalar, len(x.Values))
	for i, v := range x.Values {
		if v == nil {
			nullable = true
		}
		rows[i] = []ir.Scalar{ir.Const(v, mapping)}
	}
	alias := t.am.Generate("values")
	col := ir.Col(alias, valueColumn, mapping, nullable)
	return t.newQuery(&ir.ValuesTable{Columns: []string{valueColumn}, Rows: rows, Alias: alias}, col, []ir.Scalar{col})
}

func (t *translation) parameterSource(x *ast.ParameterSource) (*shapedQuery, error) {
	mapping := x.Mapping
	if mapping == nil {
		mapping = t.params[x.Name]
	}
	if mapping == nil {
		mapping = metadata.Untyped
	} else if err := t.inferParameter(x.Name, mapping); err != nil {
		return nil, err
	}
	alias := t.am.Generate("values")
	col := ir.Col(alias, valueColumn, mapping, true)
	table := &ir.ValuesTable{
		Columns:       []string{valueColumn},
		RowsParameter: &ir.Parameter{Name: x.Name, Mapping: mapping},
		Alias:         alias,
	}
	return t.newQuery(table, col, []ir.Scalar{col}), nil
}

func (t *translation) rawSource(x *ast.RawSource, sc *scope) (*shapedQuery, error) {
	e, ok := t.tr.model.Entity(x.Entity)
	if !ok {
		return nil, failf("entity "+x.Entity, "not part of the model")
	}
	args, err := t.scalars(x.Args, sc)
	if err != nil {
		return nil, err
	}
	table := &ir.RawTable{SQL: x.SQL, Args: args, Alias: t.am.Generate(e.TableName())}
	if x.ArgsParameter != "" {
		table.ArgsParameter = &ir.Parameter{Name: x.ArgsParameter, Mapping: metadata.Untyped}
	}
	v := newEntityValue(e, table.Alias, false)
	q := t.newQuery(table, v, v.keys())
	q.b.ApplyPredicate(discriminatorFilter(e, v))
	return q, nil
}

func (t *translation) functionSource(x *ast.FunctionSource, sc *scope) (*shapedQuery, error) {
	e, ok := t.tr.model.Entity(x.Entity)
	if !ok {
		return nil, failf("entity "+x.Entity, "not part of the model")
	}
	args, err := t.scalars(x.Args, sc)
	if err != nil {
		return nil, err
	}
	table := &ir.FunctionTable{Name: x.Function, Args: args, Alias: t.am.Generate(e.TableName())}
	v := newEntityValue(e, table.Alias, false)
	q := t.newQuery(table, v, v.keys())
	q.b.ApplyPredicate(discriminatorFilter(e, v))
	return q, nil
}

func (t *translation) scalars(exprs []ast.Expr, sc *scope) ([]ir.Scalar, error) {
	out := make([]ir.Scalar, len(exprs))
	for i, e := range exprs {
		s, err := t.scalar(e, sc)
		if err != nil {
			return nil, err
		}
		out[i] = t.settle(s)
	}
	return out, nil
}

func (t *translation) navigationSource(x *ast.NavigationSource, sc *scope, mode queryMode) (*shapedQuery, error) {
	construct := ast.FormatExpr(x.Of)
	if x.Navigation == "" {
		return nil, failf(construct, "the elements of a grouping can only be aggregated")
	}
	construct += "." + x.Navigation
	if mode == modeTop {
		return nil, failf(construct, "navigation sources are only valid inside subqueries")
	}
	of, err := t.expr(x.Of, sc)
	if err != nil {
		return nil, err
	}
	owner, ok := of.(*entityValue)
	if !ok {
		return nil, failf(construct, "not an entity")
	}
	nav, ok := findNavigation(owner.typ, x.Navigation)
	if !ok || !nav.IsCollection {
		return nil, failf(construct, "%s has no collection navigation %s", owner.typ.Name, x.Navigation)
	}
	q := t.collectionQuery(owner, nav)
	if mode == modeCorrelated {
		on, err := t.keyEquality(q.outer, q.corr)
		if err != nil {
			return nil, err
		}
		q.b.ApplyPredicate(on)
		q.collection = false
	}
	return q, nil
}

// collectionQuery starts the query over the targets of a collection
// navigation of owner
func (t *translation) collectionQuery(owner *entityValue, nav *metadata.Navigation) *shapedQuery {
	q := t.entityQuery(nav.Target)
	v := q.value.(*entityValue)
	q.collection = true
	q.corr = v.columnsOf(nav.InnerKey)
	q.outer = owner.columnsOf(nav.OuterKey)
	return q
}

// findNavigation looks up a navigation on e or on a type deriving from it
func findNavigation(e *metadata.EntityType, name string) (*metadata.Navigation, bool) {
	for _, c := range e.Concrete() {
		if nav, ok := c.Navigation(name); ok {
			return nav, true
		}
	}
	return nil, false
}

// prepare runs before every operator: it applies a pending grouping and
// rejects operators that cannot follow the paging of a collection
func (t *translation) prepare(q *shapedQuery, op string) error {
	if q.collection && (q.skip != nil || q.take != nil) && op != "Select" {
		return failf(op, "cannot follow Skip or Take of a projected collection")
	}
	return t.applyGrouping(q)
}

func (t *translation) where(q *shapedQuery, l *ast.Lambda, sc *scope) error {
	if err := t.prepare(q, "Where"); err != nil {
		return err
	}
	if q.b.IsLimited() || q.b.IsDistinct() || (q.b.IsGrouped() && t.mayJoin(l)) {
		q.b.PushdownIntoSubquery()
	}
	v, err := t.lambda(q, l, sc, q.value)
	if err != nil {
		return err
	}
	pred, err := t.predicate(v, l.Body)
	if err != nil {
		return err
	}
	q.b.ApplyPredicate(pred)
	return nil
}

func (t *translation) selectOp(q *shapedQuery, l *ast.Lambda, sc *scope) error {
	if err := t.prepare(q, "Select"); err != nil {
		return err
	}
	_, grouping := q.value.(*groupingValue)
	if q.b.IsDistinct() || (q.b.IsGrouped() && !grouping) || (q.b.IsLimited() && t.mayJoin(l)) {
		q.b.PushdownIntoSubquery()
	}
	v, err := t.lambda(q, l, sc, q.value)
	if err != nil {
		return err
	}
	q.value = v
	return nil
}

func (t *translation) orderBy(q *shapedQuery, key *ast.Lambda, desc, then bool, sc *scope) error {
	if err := t.prepare(q, "OrderBy"); err != nil {
		return err
	}
	if q.b.IsLimited() || ((q.b.IsDistinct() || q.b.IsGrouped()) && t.mayJoin(key)) {
		q.b.PushdownIntoSubquery()
	}
	v, err := t.lambda(q, key, sc, q.value)
	if err != nil {
		return err
	}
	var keys []ir.Scalar
	if ev, ok := v.(*entityValue); ok {
		keys = ev.keys()
	} else if keys, ok = flatten(v); !ok {
		return failf("OrderBy "+ast.FormatExpr(key.Body), "cannot order by a collection")
	}
	if !then {
		q.b.ClearOrdering()
	}
	for _, k := range keys {
		switch k.(type) {
		case *ir.Constant, *ir.Parameter:
			continue
		}
		q.b.AppendOrdering(&ir.Ordering{Expr: k, Descending: desc})
	}
	return nil
}

// count translates the argument of Skip or Take
func (t *translation) count(e ast.Expr, sc *scope, op string) (ir.Scalar, error) {
	s, err := t.scalar(e, sc)
	if err != nil {
		return nil, err
	}
	if s, err = t.typed(s, metadata.Int); err != nil {
		return nil, err
	}
	switch kindOf(s) {
	case metadata.KindInt, metadata.KindBigInt:
		return s, nil
	}
	return nil, failf(op+" "+ast.FormatExpr(e), "count is not an integer")
}

func (t *translation) skip(q *shapedQuery, e ast.Expr, sc *scope) error {
	n, err := t.count(e, sc, "Skip")
	if err != nil {
		return err
	}
	if q.collection {
		if q.skip != nil || q.take != nil {
			return failf("Skip", "cannot follow Skip or Take of a projected collection")
		}
		q.skip = n
		return nil
	}
	if err := t.prepare(q, "Skip"); err != nil {
		return err
	}
	q.b.ApplyOffset(n)
	return nil
}

func (t *translation) take(q *shapedQuery, e ast.Expr, sc *scope) error {
	n, err := t.count(e, sc, "Take")
	if err != nil {
		return err
	}
	if q.collection {
		if q.take != nil {
			return failf("Take", "cannot follow Take of a projected collection")
		}
		q.take = n
		return nil
	}
	if err := t.prepare(q, "Take"); err != nil {
		return err
	}
	q.b.ApplyLimit(n)
	return nil
}

func (t *translation) distinct(q *shapedQuery) error {
	if err := t.prepare(q, "Distinct"); err != nil {
		return err
	}
	if hasIncludes(q.value) {
		return failf("Distinct", "cannot apply to results loading related data")
	}
	if q.b.IsLimited() {
		q.b.PushdownIntoSubquery()
	}
	scalars, ok := flatten(q.value)
	if !ok {
		return failf("Distinct", "cannot apply to this result")
	}
	q.b.SetProjection(nil)
	for _, s := range scalars {
		q.b.AddToProjection(t.settle(s), columnName(s))
	}
	q.b.ApplyDistinct()
	if _, ok := q.value.(*entityValue); !ok {
		q.identifier = scalars
	}
	return nil
}

func (t *translation) include(q *shapedQuery, x *ast.Include) error {
	construct := "Include " + strings.Join(x.Path, ".")
	ev, ok := q.value.(*entityValue)
	if !ok {
		return failf(construct, "the query does not return entities")
	}
	if len(x.Path) == 0 {
		return failf(construct, "empty navigation path")
	}
	path := make([]*include, 0, len(x.Path))
	typ := ev.typ
	for i, seg := range x.Path {
		nav, ok := findNavigation(typ, seg)
		if !ok {
			if _, owned := typ.OwnedNavigation(seg); owned && i == len(x.Path)-1 {
				// documents are always loaded with their owner
				return nil
			}
			return failf(construct, "%s has no navigation %s", typ.Name, seg)
		}
		path = append(path, &include{nav: nav})
		typ = nav.Target
	}
	last := path[len(path)-1]
	if x.Filter != nil || len(x.Orderings) > 0 || x.Skip != nil || x.Take != nil {
		if !last.nav.IsCollection {
			return failf(construct, "filters and paging only apply to collections")
		}
		last.filter = x.Filter
		last.orderings = x.Orderings
		last.skip = x.Skip
		last.take = x.Take
	}
	q.value = ev.withInclude(path)
	return nil
}

func (t *translation) groupBy(q *shapedQuery, x *ast.GroupBy, sc *scope) error {
	if err := t.prepare(q, "GroupBy"); err != nil {
		return err
	}
	if hasIncludes(q.value) {
		return failf("GroupBy", "cannot group results loading related data")
	}
	if q.b.IsLimited() || q.b.IsDistinct() || q.b.IsGrouped() {
		q.b.PushdownIntoSubquery()
	}
	key, err := t.lambda(q, x.Key, sc, q.value)
	if err != nil {
		return err
	}
	element := q.value
	if x.Element != nil {
		if element, err = t.lambda(q, x.Element, sc, q.value); err != nil {
			return err
		}
	}
	q.value = &groupingValue{key: key, element: element}
	return nil
}

// applyGrouping turns a pending grouping into GROUP BY
func (t *translation) applyGrouping(q *shapedQuery) error {
	g, ok := q.value.(*groupingValue)
	if !ok || g.applied {
		return nil
	}
	keys, ok := flatten(g.key)
	if !ok || len(keys) == 0 {
		return failf("GroupBy", "unsupported grouping key")
	}
	for i, k := range keys {
		if _, constant := k.(*ir.Constant); constant {
			return failf("GroupBy", "grouping key is constant")
		}
		keys[i] = t.settle(k)
	}
	keys = q.b.ApplyGrouping(keys)
	g = q.value.(*groupingValue)
	q.value = &groupingValue{key: g.key, element: g.element, applied: true}
	q.identifier = keys
	return nil
}

func (t *translation) setOperation(x *ast.SetOperation, sc *scope, mode queryMode) (*shapedQuery, error) {
	construct := string(x.Kind)
	left, err := t.query(x.Left, sc, mode)
	if err != nil {
		return nil, err
	}
	right, err := t.query(x.Right, sc, mode)
	if err != nil {
		return nil, err
	}
	for _, side := range []*shapedQuery{left, right} {
		if err := t.prepare(side, construct); err != nil {
			return nil, err
		}
		if side.collection || hasCollections(side.value) {
			return nil, failf(construct, "collections cannot be combined")
		}
	}
	if le, ok := left.value.(*entityValue); ok {
		if re, ok := right.value.(*entityValue); !ok || re.typ != le.typ {
			return nil, failf(construct, "operands return different types")
		}
	}
	ls, lok := flatten(left.value)
	rs, rok := flatten(right.value)
	if !lok || !rok || len(ls) != len(rs) {
		return nil, failf(construct, "operands have different shapes")
	}

	var names []string
	lproj := make([]*ir.Projection, len(ls))
	rproj := make([]*ir.Projection, len(rs))
	for i := range ls {
		l, r, err := t.pair(ls[i], rs[i])
		if err != nil {
			return nil, err
		}
		name := uniqueName(names, columnName(l))
		names = append(names, name)
		lproj[i] = &ir.Projection{Expr: t.settle(l), Alias: name}
		rproj[i] = &ir.Projection{Expr: t.settle(r), Alias: name}
	}
	for _, side := range []*shapedQuery{left, right} {
		if !side.b.IsLimited() {
			side.b.ClearOrdering()
		}
	}
	left.b.SetProjection(lproj)
	right.b.SetProjection(rproj)
	rsel, err := t.build(right.b)
	if err != nil {
		return nil, err
	}

	kind, all := ir.Union, false
	switch x.Kind {
	case ast.SetConcat:
		all = true
	case ast.SetIntersect:
		kind = ir.Intersect
	case ast.SetExcept:
		kind = ir.Except
	}
	left.value = withoutRefs(left.value)
	left.b.ApplySetOperation(kind, all, rsel)
	if ev, ok := left.value.(*entityValue); ok {
		left.identifier = ev.keys()
	} else {
		left.identifier, _ = flatten(left.value)
	}
	return left, nil
}

func (t *translation) join(x *ast.Join, sc *scope, mode queryMode) (*shapedQuery, error) {
	outer, err := t.query(x.Outer, sc, mode)
	if err != nil {
		return nil, err
	}
	inner, err := t.query(x.Inner, sc, mode)
	if err != nil {
		return nil, err
	}
	for _, side := range []*shapedQuery{outer, inner} {
		if err := t.prepare(side, "Join"); err != nil {
			return nil, err
		}
	}
	if inner.collection || outer.collection || hasIncludes(inner.value) {
		return nil, failf("Join", "the inner query cannot load related data")
	}

	ikv, err := t.lambda(inner, x.InnerKey, sc, inner.value)
	if err != nil {
		return nil, err
	}
	iks, ok := keyScalars(ikv)
	if !ok {
		return nil, failf("Join", "unsupported inner key %s", ast.FormatExpr(x.InnerKey.Body))
	}
	// the keys ride along when the inner query becomes a derived table
	inner.corr = iks
	table := t.asTable(inner)

	if outer.b.IsLimited() || outer.b.IsDistinct() || outer.b.IsGrouped() {
		outer.b.PushdownIntoSubquery()
	}
	okv, err := t.lambda(outer, x.OuterKey, sc, outer.value)
	if err != nil {
		return nil, err
	}
	oks, ok := keyScalars(okv)
	if !ok {
		return nil, failf("Join", "unsupported outer key %s", ast.FormatExpr(x.OuterKey.Body))
	}
	on, err := t.keyEquality(oks, inner.corr)
	if err != nil {
		return nil, err
	}
	outer.b.AddJoin(ir.InnerJoin, table, on, false)

	result, err := t.lambda(outer, x.Result, sc, outer.value, inner.value)
	if err != nil {
		return nil, err
	}
	outer.value = result
	outer.identifier = append(append([]ir.Scalar(nil), outer.identifier...), inner.identifier...)
	return outer, nil
}

// keyScalars lists the scalars a join or ordering key compares: the primary
// key of an entity and the flattened members of anything else
func keyScalars(v any) ([]ir.Scalar, bool) {
	if ev, ok := v.(*entityValue); ok {
		return ev.keys(), true
	}
	return flatten(v)
}

// asTable returns q as a table that can be joined: its source when q only
// reads it, a derived table otherwise
func (t *translation) asTable(q *shapedQuery) ir.Table {
	if !isPlain(q.b) {
		q.b.PushdownIntoSubquery()
	}
	return q.b.Tables()[0]
}

func isPlain(b *ir.SelectBuilder) bool {
	return len(b.Tables()) == 1 && b.Predicate() == nil && !b.IsGrouped() &&
		!b.IsLimited() && !b.IsDistinct()
}

func (t *translation) terminal(q *shapedQuery, x *ast.Terminal, sc *scope) error {
	switch x.Op {
	case ast.OpFirst, ast.OpFirstOrDefault, ast.OpSingle, ast.OpSingleOrDefault:
		if x.Lambda != nil {
			if err := t.where(q, x.Lambda, sc); err != nil {
				return err
			}
		}
		if err := t.prepare(q, string(x.Op)); err != nil {
			return err
		}
		limit := 1
		if x.Op == ast.OpSingle || x.Op == ast.OpSingleOrDefault {
			// a second row proves the result is not single
			limit = 2
		}
		q.b.ApplyLimit(intConst(limit))
		q.card = map[ast.TerminalOp]Cardinality{
			ast.OpFirst:           First,
			ast.OpFirstOrDefault:  FirstOrDefault,
			ast.OpSingle:          Single,
			ast.OpSingleOrDefault: SingleOrDefault,
		}[x.Op]
		return nil
	}

	v, exists, err := t.reduce(q, x, sc)
	if err != nil {
		return err
	}
	if exists {
		q.b = ir.NewSelectBuilder(t.am, nil)
	}
	q.value = v
	q.identifier = nil
	q.card = Scalar
	return nil
}

// reduce applies an aggregate or quantifier to q. Aggregates leave q
// selecting from the rows to aggregate and return the aggregate; quantifiers
// consume q into the returned EXISTS test.
func (t *translation) reduce(q *shapedQuery, x *ast.Terminal, sc *scope) (ir.Scalar, bool, error) {
	op := string(x.Op)
	if err := t.prepare(q, op); err != nil {
		return nil, false, err
	}
	if hasCollections(q.value) {
		return nil, false, failf(op, "cannot reduce results holding collections")
	}

	if x.Op.IsAggregate() {
		if q.b.IsLimited() || q.b.IsDistinct() || q.b.IsGrouped() {
			q.b.PushdownIntoSubquery()
		}
		e := &EnumerableExpression{}
		switch x.Op {
		case ast.OpCount, ast.OpLongCount:
			if x.Lambda != nil {
				if err := t.where(q, x.Lambda, sc); err != nil {
					return nil, false, err
				}
			}
		default:
			sel := q.value
			if x.Lambda != nil {
				var err error
				if sel, err = t.lambda(q, x.Lambda, sc, q.value); err != nil {
					return nil, false, err
				}
			}
			s, ok := asScalar(sel)
			if !ok {
				return nil, false, failf(op, "the aggregated value is not a scalar")
			}
			e.ApplySelector(t.settle(s))
		}
		agg, err := t.tr.registry.Aggregate(t.ctx, op, e)
		if err != nil {
			return nil, false, err
		}
		q.b.ClearOrdering()
		return agg, false, nil
	}

	switch x.Op {
	case ast.OpAny:
		if x.Lambda != nil {
			if err := t.where(q, x.Lambda, sc); err != nil {
				return nil, false, err
			}
		}
	case ast.OpAll:
		if x.Lambda == nil {
			return nil, false, failf(op, "missing predicate")
		}
		if q.b.IsLimited() || q.b.IsDistinct() {
			q.b.PushdownIntoSubquery()
		}
		v, err := t.lambda(q, x.Lambda, sc, q.value)
		if err != nil {
			return nil, false, err
		}
		pred, err := t.predicate(v, x.Lambda.Body)
		if err != nil {
			return nil, false, err
		}
		q.b.ApplyPredicate(ir.Not(pred))
	case ast.OpContains:
		if x.Item == nil {
			return nil, false, failf(op, "missing item")
		}
		if q.b.IsLimited() || q.b.IsDistinct() {
			q.b.PushdownIntoSubquery()
		}
		prev := t.cur
		t.cur = q
		item, err := t.expr(x.Item, sc)
		t.cur = prev
		if err != nil {
			return nil, false, err
		}
		test, err := t.equal(q.value, item, false, op)
		if err != nil {
			return nil, false, err
		}
		q.b.ApplyPredicate(test)
	default:
		return nil, false, failf(op, "unsupported terminal operator")
	}
	q.b.SetProjection(nil)
	q.b.ClearOrdering()
	sel, err := t.build(q.b)
	if err != nil {
		return nil, false, err
	}
	return &ir.Exists{Subquery: sel, Negated: x.Op == ast.OpAll, Mapping: metadata.Boolean}, true, nil
}

func columnName(s ir.Scalar) string {
	switch x := s.(type) {
	case *ir.ColumnRef:
		return x.Column
	case *ir.JSONPath:
		if len(x.Path) > 0 {
			return x.Path[len(x.Path)-1]
		}
		return x.Column.Column
	}
	return "c"
}

func uniqueName(taken []string, name string) string {
	candidate := name
	for n := 0; ; n++ {
		clash := false
		for _, t := range taken {
			if t == candidate {
				clash = true
				break
			}
		}
		if !clash {
			return candidate
		}
		candidate = name + strconv.Itoa(n)
	}
}
