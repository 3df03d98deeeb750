package translate

import (
	"fmt"

	"github.com/satishbabariya/relquery/metadata"
	"github.com/satishbabariya/relquery/query/ast"
	"github.com/satishbabariya/relquery/query/ir"
)

// scope binds lambda parameters to translated values
type scope struct {
	names  []string
	values []any
	parent *scope
}

func (s *scope) bind(names []string, values []any) *scope {
	return &scope{names: names, values: values, parent: s}
}

func (s *scope) lookup(name string) (any, bool) {
	for c := s; c != nil; c = c.parent {
		for i := len(c.names) - 1; i >= 0; i-- {
			if c.names[i] == name {
				return c.values[i], true
			}
		}
	}
	return nil, false
}

// lambda translates the body of l with its parameters bound to args.
// Reference navigations reached in the body are joined into q.
func (t *translation) lambda(q *shapedQuery, l *ast.Lambda, sc *scope, args ...any) (any, error) {
	if l == nil {
		return nil, failf("lambda", "missing")
	}
	if len(l.Params) != len(args) {
		return nil, failf("lambda "+ast.FormatExpr(l.Body), "takes %d parameters, want %d", len(l.Params), len(args))
	}
	prev := t.cur
	t.cur = q
	defer func() { t.cur = prev }()
	return t.expr(l.Body, sc.bind(l.Params, args))
}

// mayJoin reports whether translating the body of l may add reference
// navigation joins to the select it runs against
func (t *translation) mayJoin(l *ast.Lambda) bool {
	if l == nil {
		return false
	}
	found := false
	walkExpr(l.Body, func(e ast.Expr) bool {
		if m, ok := e.(*ast.Member); ok && t.isReferenceName(m.Name) {
			found = true
		}
		return !found
	})
	return found
}

func (t *translation) isReferenceName(name string) bool {
	for _, e := range t.tr.model.Entities() {
		for _, n := range e.Navigations {
			if n.Name == name && !n.IsCollection {
				return true
			}
		}
	}
	return false
}

// walkExpr visits e depth-first without entering subqueries, which run
// against their own selects
func walkExpr(e ast.Expr, f func(ast.Expr) bool) {
	if e == nil || !f(e) {
		return
	}
	switch x := e.(type) {
	case *ast.Member:
		walkExpr(x.Target, f)
	case *ast.Binary:
		walkExpr(x.Left, f)
		walkExpr(x.Right, f)
	case *ast.Unary:
		walkExpr(x.Operand, f)
	case *ast.Call:
		walkExpr(x.Target, f)
		for _, a := range x.Args {
			walkExpr(a, f)
		}
	case *ast.Conditional:
		walkExpr(x.Test, f)
		walkExpr(x.Then, f)
		walkExpr(x.Else, f)
	case *ast.New:
		for _, field := range x.Fields {
			walkExpr(field.Value, f)
		}
	case *ast.In:
		walkExpr(x.Item, f)
	}
}

func (t *translation) expr(e ast.Expr, sc *scope) (any, error) {
	switch x := e.(type) {
	case *ast.Ref:
		v, ok := sc.lookup(x.Name)
		if !ok {
			return nil, failf("reference "+x.Name, "unbound range variable")
		}
		return v, nil
	case *ast.Constant:
		return constant(x.Value), nil
	case *ast.Parameter:
		return &ir.Parameter{Name: x.Name}, nil
	case *ast.Member:
		return t.member(x, sc)
	case *ast.Binary:
		return t.binary(x, sc)
	case *ast.Unary:
		return t.unary(x, sc)
	case *ast.Call:
		return t.call(x, sc)
	case *ast.Conditional:
		return t.conditional(x, sc)
	case *ast.New:
		obj := &objectValue{}
		for _, f := range x.Fields {
			v, err := t.expr(f.Value, sc)
			if err != nil {
				return nil, err
			}
			obj.names = append(obj.names, f.Name)
			obj.values = append(obj.values, v)
		}
		return obj, nil
	case *ast.Subquery:
		return t.subquery(x, sc)
	case *ast.In:
		return t.in(x, sc)
	}
	return nil, failf(fmt.Sprintf("expression %T", e), "unsupported expression")
}

// constant types a literal with the default mapping of its Go type; NULL
// and values without a default stay untyped until used
func constant(v any) *ir.Constant {
	m, _ := metadata.MappingForValue(v)
	return ir.Const(v, m)
}

func asScalar(v any) (ir.Scalar, bool) {
	switch x := v.(type) {
	case ir.Scalar:
		return x, true
	case *ownedValue:
		return x.path, true
	}
	return nil, false
}

func (t *translation) scalar(e ast.Expr, sc *scope) (ir.Scalar, error) {
	v, err := t.expr(e, sc)
	if err != nil {
		return nil, err
	}
	s, ok := asScalar(v)
	if !ok {
		return nil, failf(ast.FormatExpr(e), "not a scalar value")
	}
	return s, nil
}

func (t *translation) predicate(v any, e ast.Expr) (ir.Scalar, error) {
	s, ok := asScalar(v)
	if !ok {
		return nil, failf(ast.FormatExpr(e), "not a predicate")
	}
	s, err := t.typed(s, metadata.Boolean)
	if err != nil {
		return nil, err
	}
	if m := s.TypeMapping(); m != nil && m != metadata.Untyped && m.Kind != metadata.KindBoolean {
		return nil, failf(ast.FormatExpr(e), "%s is not a boolean", m)
	}
	return s, nil
}

func (t *translation) member(x *ast.Member, sc *scope) (any, error) {
	target, err := t.expr(x.Target, sc)
	if err != nil {
		return nil, err
	}
	construct := "member " + ast.FormatExpr(x)
	switch v := target.(type) {
	case *entityValue:
		return t.entityMember(v, x.Name, construct)
	case *ownedValue:
		return ownedMember(v, x.Name, construct)
	case *objectValue:
		for i, name := range v.names {
			if name == x.Name {
				return v.values[i], nil
			}
		}
		return nil, failf(construct, "no field %s", x.Name)
	case *groupingValue:
		if x.Name == "Key" {
			return v.key, nil
		}
		return nil, failf(construct, "groupings only expose Key")
	case ir.Scalar:
		return t.tr.registry.Member(t.ctx, t.settle(v), x.Name)
	}
	return nil, failf(construct, "unsupported receiver")
}

func (t *translation) entityMember(v *entityValue, name, construct string) (any, error) {
	if _, col := v.property(name); col != nil {
		return col, nil
	}
	if nav, ok := findNavigation(v.typ, name); ok {
		if nav.IsCollection {
			q := t.collectionQuery(v, nav)
			return &collectionValue{name: nav.Name, child: q, outer: q.outer}, nil
		}
		return t.reference(v, nav)
	}
	if o, doc := v.document(name); o != nil {
		col, ok := doc.(*ir.ColumnRef)
		if !ok {
			return nil, failf(construct, "document column is not addressable")
		}
		return &ownedValue{
			typ:        o.Type,
			path:       &ir.JSONPath{Column: col, AsJSON: true, Mapping: metadata.JSON},
			collection: o.IsCollection,
			nullable:   col.Nullable,
		}, nil
	}
	return nil, failf(construct, "%s has no member %s", v.typ.Name, name)
}

func ownedMember(v *ownedValue, name, construct string) (any, error) {
	if v.collection {
		return nil, failf(construct, "members of a document collection cannot be accessed")
	}
	path := func(key string) []string {
		return append(append([]string(nil), v.path.Path...), key)
	}
	if p, ok := v.typ.Property(name); ok {
		return &ir.JSONPath{Column: v.path.Column, Path: path(p.Column), Mapping: p.Mapping}, nil
	}
	if o, ok := v.typ.OwnedNavigation(name); ok {
		return &ownedValue{
			typ:        o.Type,
			path:       &ir.JSONPath{Column: v.path.Column, Path: path(o.Column), AsJSON: true, Mapping: metadata.JSON},
			collection: o.IsCollection,
			nullable:   true,
		}, nil
	}
	return nil, failf(construct, "%s has no member %s", v.typ.Name, name)
}

// reference joins a reference navigation of owner into the current select
func (t *translation) reference(owner *entityValue, nav *metadata.Navigation) (*entityValue, error) {
	if t.cur == nil {
		return nil, failf("navigation "+nav.String(), "no query to join into")
	}
	return t.joinReference(t.cur.b, owner, nav)
}

func (t *translation) joinReference(b *ir.SelectBuilder, owner *entityValue, nav *metadata.Navigation) (*entityValue, error) {
	if r := owner.reference(nav, b); r != nil {
		return r.value, nil
	}
	if b.IsLimited() || b.IsDistinct() || b.IsGrouped() {
		return nil, failf("navigation "+nav.String(), "cannot be joined after paging, Distinct or GroupBy")
	}
	target := nav.Target
	root := target.Root()
	alias := t.am.Generate(root.Table)
	kind := ir.LeftJoin
	if nav.IsRequired && !owner.nullable {
		kind = ir.InnerJoin
	}
	v := newEntityValue(target, alias, kind == ir.LeftJoin)
	on, err := t.keyEquality(owner.columnsOf(nav.OuterKey), v.columnsOf(nav.InnerKey))
	if err != nil {
		return nil, err
	}
	on = ir.And(on, discriminatorFilter(target, v))
	b.AddJoin(kind, &ir.TableRef{Name: root.Table, Schema: root.Schema, Alias: alias}, on, true)
	owner.refs = append(owner.refs, &reference{nav: nav, value: v, kind: kind, owner: b})
	return v, nil
}

func (t *translation) keyEquality(l, r []ir.Scalar) (ir.Scalar, error) {
	if len(l) == 0 || len(l) != len(r) {
		return nil, failf("key", "%d key columns matched against %d", len(l), len(r))
	}
	var out ir.Scalar
	for i := range l {
		if l[i] == nil || r[i] == nil {
			return nil, failf("key", "unmapped key column")
		}
		a, b, err := t.pair(l[i], r[i])
		if err != nil {
			return nil, err
		}
		out = ir.And(out, ir.Eq(a, b))
	}
	return out, nil
}

func (t *translation) binary(x *ast.Binary, sc *scope) (any, error) {
	construct := ast.FormatExpr(x)
	l, err := t.expr(x.Left, sc)
	if err != nil {
		return nil, err
	}
	r, err := t.expr(x.Right, sc)
	if err != nil {
		return nil, err
	}
	if x.Op == ast.OpEqual || x.Op == ast.OpNotEqual {
		return t.equal(l, r, x.Op == ast.OpNotEqual, construct)
	}

	ls, lok := asScalar(l)
	rs, rok := asScalar(r)
	if !lok || !rok {
		return nil, failf(construct, "operands are not scalars")
	}
	if ls, rs, err = t.pair(ls, rs); err != nil {
		return nil, err
	}
	switch x.Op {
	case ast.OpAndAlso, ast.OpOrElse:
		lp, err := t.predicate(ls, x.Left)
		if err != nil {
			return nil, err
		}
		rp, err := t.predicate(rs, x.Right)
		if err != nil {
			return nil, err
		}
		if x.Op == ast.OpAndAlso {
			return ir.And(lp, rp), nil
		}
		return ir.Or(lp, rp), nil
	case ast.OpLess:
		return ir.Compare(ir.OpLess, ls, rs), nil
	case ast.OpLessEqual:
		return ir.Compare(ir.OpLessEqual, ls, rs), nil
	case ast.OpGreater:
		return ir.Compare(ir.OpGreater, ls, rs), nil
	case ast.OpGreaterEqual:
		return ir.Compare(ir.OpGreaterEqual, ls, rs), nil
	case ast.OpCoalesce:
		return ir.Coalesce(t.settle(ls), t.settle(rs)), nil
	case ast.OpAdd:
		if kindOf(ls) == metadata.KindString || kindOf(rs) == metadata.KindString {
			return &ir.Binary{Op: ir.OpConcat, Left: ls, Right: rs, Mapping: t.resultMapping(ls, rs)}, nil
		}
		return &ir.Binary{Op: ir.OpAdd, Left: ls, Right: rs, Mapping: t.resultMapping(ls, rs)}, nil
	case ast.OpSubtract:
		return &ir.Binary{Op: ir.OpSubtract, Left: ls, Right: rs, Mapping: t.resultMapping(ls, rs)}, nil
	case ast.OpMultiply:
		return &ir.Binary{Op: ir.OpMultiply, Left: ls, Right: rs, Mapping: t.resultMapping(ls, rs)}, nil
	case ast.OpDivide:
		return &ir.Binary{Op: ir.OpDivide, Left: ls, Right: rs, Mapping: t.resultMapping(ls, rs)}, nil
	case ast.OpModulo:
		return &ir.Binary{Op: ir.OpModulo, Left: ls, Right: rs, Mapping: t.resultMapping(ls, rs)}, nil
	}
	return nil, failf(construct, "unsupported operator %s", x.Op)
}

// resultMapping is the mapping of an arithmetic result: the wider numeric
// mapping of the operands, or the mapping of the first typed one
func (t *translation) resultMapping(l, r ir.Scalar) *metadata.TypeMapping {
	lm, rm := t.mapping(l), t.mapping(r)
	if lm == metadata.Untyped {
		return rm
	}
	if rm.Kind.IsNumeric() && lm.Kind.IsNumeric() && rm.Kind > lm.Kind {
		return rm
	}
	return lm
}

// equal compares two values. Entities compare by key; a comparison with
// NULL becomes a null test.
func (t *translation) equal(l, r any, negated bool, construct string) (ir.Scalar, error) {
	le, lent := l.(*entityValue)
	re, rent := r.(*entityValue)
	switch {
	case lent && rent:
		if le.typ.Root() != re.typ.Root() {
			return nil, failf(construct, "compares %s with %s", le.typ.Name, re.typ.Name)
		}
		return t.compareKeys(le.keys(), re.keys(), negated)
	case lent || rent:
		ent, other := le, r
		if rent {
			ent, other = re, l
		}
		if s, ok := other.(ir.Scalar); !ok || !ir.IsNullConstant(s) {
			return nil, failf(construct, "entities can only be compared with entities or null")
		}
		keys := ent.keys()
		if len(keys) == 0 {
			return nil, failf(construct, "%s has no key", ent.typ.Name)
		}
		if negated {
			return ir.IsNotNull(keys[0]), nil
		}
		return ir.IsNull(keys[0]), nil
	}

	ls, lok := asScalar(l)
	rs, rok := asScalar(r)
	if !lok || !rok {
		return nil, failf(construct, "operands are not comparable")
	}
	ls, rs, err := t.pair(ls, rs)
	if err != nil {
		return nil, err
	}
	test := func(s ir.Scalar) ir.Scalar {
		if negated {
			return ir.IsNotNull(s)
		}
		return ir.IsNull(s)
	}
	switch {
	case ir.IsNullConstant(rs):
		return test(ls), nil
	case ir.IsNullConstant(ls):
		return test(rs), nil
	}
	if negated {
		return ir.Compare(ir.OpNotEqual, ls, rs), nil
	}
	return ir.Eq(ls, rs), nil
}

func (t *translation) compareKeys(l, r []ir.Scalar, negated bool) (ir.Scalar, error) {
	if !negated {
		return t.keyEquality(l, r)
	}
	if len(l) == 0 || len(l) != len(r) {
		return nil, failf("key", "%d key columns matched against %d", len(l), len(r))
	}
	var out ir.Scalar
	for i := range l {
		out = ir.Or(out, ir.Compare(ir.OpNotEqual, l[i], r[i]))
	}
	return out, nil
}

func (t *translation) unary(x *ast.Unary, sc *scope) (any, error) {
	v, err := t.expr(x.Operand, sc)
	if err != nil {
		return nil, err
	}
	switch x.Op {
	case ast.OpNot:
		p, err := t.predicate(v, x.Operand)
		if err != nil {
			return nil, err
		}
		return ir.Not(p), nil
	case ast.OpNegate:
		s, ok := asScalar(v)
		if !ok {
			return nil, failf(ast.FormatExpr(x), "operand is not a scalar")
		}
		return &ir.Unary{Op: ir.OpNegate, Operand: s, Mapping: t.mapping(s)}, nil
	}
	return nil, failf(ast.FormatExpr(x), "unsupported operator %s", x.Op)
}

func (t *translation) call(x *ast.Call, sc *scope) (any, error) {
	args := make([]ir.Scalar, len(x.Args))
	for i, a := range x.Args {
		s, err := t.scalar(a, sc)
		if err != nil {
			return nil, err
		}
		args[i] = s
	}
	if x.Target == nil {
		return t.tr.registry.Method(t.ctx, nil, x.Method, args)
	}
	target, err := t.expr(x.Target, sc)
	if err != nil {
		return nil, err
	}
	recv, ok := asScalar(target)
	if !ok {
		return nil, failf("method "+x.Method, "receiver %s is not a scalar", ast.FormatExpr(x.Target))
	}
	return t.tr.registry.Method(t.ctx, t.settle(recv), x.Method, args)
}

func (t *translation) conditional(x *ast.Conditional, sc *scope) (any, error) {
	tv, err := t.expr(x.Test, sc)
	if err != nil {
		return nil, err
	}
	test, err := t.predicate(tv, x.Test)
	if err != nil {
		return nil, err
	}
	th, err := t.scalar(x.Then, sc)
	if err != nil {
		return nil, err
	}
	el, err := t.scalar(x.Else, sc)
	if err != nil {
		return nil, err
	}
	if th, el, err = t.pair(th, el); err != nil {
		return nil, err
	}
	mapping := th.TypeMapping()
	if mapping == nil {
		mapping = el.TypeMapping()
	}
	return &ir.Case{Whens: []ir.When{{Test: test, Result: th}}, Else: el, Mapping: mapping}, nil
}

func (t *translation) in(x *ast.In, sc *scope) (any, error) {
	item, err := t.scalar(x.Item, sc)
	if err != nil {
		return nil, err
	}
	if x.Parameter != "" {
		return t.inParameter(item, x.Parameter)
	}
	values := make([]ir.Scalar, len(x.Values))
	for i, v := range x.Values {
		c, err := t.typed(constant(v), item.TypeMapping())
		if err != nil {
			return nil, err
		}
		values[i] = c
	}
	return ir.InValues(item, values, false, false), nil
}

// inParameter tests item against the elements of an array parameter; the
// elements take the mapping of item
func (t *translation) inParameter(item ir.Scalar, name string) (ir.Scalar, error) {
	item = t.settle(item)
	p := &ir.Parameter{Name: name}
	if m := item.TypeMapping(); m != nil && m != metadata.Untyped {
		if err := t.inferParameter(name, m); err != nil {
			return nil, err
		}
		p.Mapping = m
	}
	return &ir.In{Item: item, ValuesParameter: p, Mapping: metadata.Boolean}, nil
}

func (t *translation) subquery(x *ast.Subquery, sc *scope) (any, error) {
	term, ok := x.Query.(*ast.Terminal)
	if !ok {
		q, err := t.query(x.Query, sc, modeCollection)
		if err != nil {
			return nil, err
		}
		if !q.collection {
			return nil, failf("subquery "+ast.Format(x.Query), "projected collections must start from a collection navigation")
		}
		return &collectionValue{child: q, outer: q.outer}, nil
	}

	op := string(term.Op)
	if nav, ok := rootOf(term.Source).(*ast.NavigationSource); ok && nav.Navigation == "" {
		return t.groupAggregate(term, sc)
	}
	if term.Op == ast.OpContains && term.Lambda == nil {
		switch src := term.Source.(type) {
		case *ast.InlineSource:
			item, err := t.scalar(term.Item, sc)
			if err != nil {
				return nil, err
			}
			values := make([]ir.Scalar, len(src.Values))
			for i, v := range src.Values {
				c := constant(v)
				if src.Mapping != nil {
					c = ir.Const(v, src.Mapping)
				}
				s, err := t.typed(c, item.TypeMapping())
				if err != nil {
					return nil, err
				}
				values[i] = s
			}
			return ir.InValues(item, values, false, false), nil
		case *ast.ParameterSource:
			item, err := t.scalar(term.Item, sc)
			if err != nil {
				return nil, err
			}
			if src.Mapping != nil {
				if item, err = t.typed(item, src.Mapping); err != nil {
					return nil, err
				}
			}
			return t.inParameter(item, src.Name)
		}
	}

	q, err := t.query(term.Source, sc, modeCorrelated)
	if err != nil {
		return nil, err
	}
	switch term.Op {
	case ast.OpFirst, ast.OpFirstOrDefault, ast.OpSingle, ast.OpSingleOrDefault:
		if term.Lambda != nil {
			if err := t.where(q, term.Lambda, sc); err != nil {
				return nil, err
			}
		}
		if err := t.prepare(q, op); err != nil {
			return nil, err
		}
		q.b.ApplyLimit(intConst(1))
		s, ok := asScalar(q.value)
		if !ok {
			return nil, failf(op+" "+ast.Format(term.Source), "only scalar values can be selected by a nested %s", op)
		}
		return t.scalarSubquery(q, s)
	}
	v, exists, err := t.reduce(q, term, sc)
	if err != nil {
		return nil, err
	}
	if exists {
		return v, nil
	}
	return t.scalarSubquery(q, v)
}

func (t *translation) scalarSubquery(q *shapedQuery, s ir.Scalar) (ir.Scalar, error) {
	s = t.settle(s)
	q.b.SetProjection(nil)
	q.b.AddToProjection(s, columnName(s))
	sel, err := t.build(q.b)
	if err != nil {
		return nil, err
	}
	return &ir.ScalarSubquery{Subquery: sel, Mapping: t.mapping(s)}, nil
}

func rootOf(q ast.Query) ast.Query {
	for {
		src := ast.SourceOf(q)
		if src == nil {
			return q
		}
		q = src
	}
}

// groupAggregate reduces the elements of a grouping inside the grouped
// select
func (t *translation) groupAggregate(term *ast.Terminal, sc *scope) (ir.Scalar, error) {
	op := string(term.Op)
	var chain []ast.Query
	var root *ast.NavigationSource
	for q := term.Source; root == nil; q = ast.SourceOf(q) {
		switch x := q.(type) {
		case nil:
			return nil, failf(op, "missing grouping")
		case *ast.NavigationSource:
			root = x
		default:
			chain = append(chain, x)
		}
	}
	gv, err := t.expr(root.Of, sc)
	if err != nil {
		return nil, err
	}
	g, ok := gv.(*groupingValue)
	if !ok || !g.applied {
		return nil, failf(op+" "+ast.FormatExpr(root.Of), "not a grouping")
	}

	e := &EnumerableExpression{}
	current := g.element
	for i := len(chain) - 1; i >= 0; i-- {
		switch x := chain[i].(type) {
		case *ast.Where:
			v, err := t.lambda(t.cur, x.Predicate, sc, current)
			if err != nil {
				return nil, err
			}
			pred, err := t.predicate(v, x.Predicate.Body)
			if err != nil {
				return nil, err
			}
			e.ApplyPredicate(pred)
		case *ast.Select:
			if current, err = t.lambda(t.cur, x.Selector, sc, current); err != nil {
				return nil, err
			}
		case *ast.Distinct:
			e.Distinct = true
		case *ast.OrderBy:
			v, err := t.lambda(t.cur, x.Key, sc, current)
			if err != nil {
				return nil, err
			}
			keys, ok := keyScalars(v)
			if !ok {
				return nil, failf(op, "unsupported ordering of grouped elements")
			}
			if !x.Then {
				e.Orderings = nil
			}
			for _, k := range keys {
				e.Orderings = append(e.Orderings, &ir.Ordering{Expr: k, Descending: x.Descending})
			}
		default:
			return nil, failf(string(x.Type()), "unsupported over the elements of a grouping")
		}
	}

	method := op
	switch term.Op {
	case ast.OpCount, ast.OpLongCount, ast.OpAny:
		if term.Lambda != nil {
			v, err := t.lambda(t.cur, term.Lambda, sc, current)
			if err != nil {
				return nil, err
			}
			pred, err := t.predicate(v, term.Lambda.Body)
			if err != nil {
				return nil, err
			}
			e.ApplyPredicate(pred)
		}
		if e.Distinct {
			s, ok := asScalar(current)
			if !ok {
				return nil, failf(op, "distinct elements must be scalars")
			}
			e.ApplySelector(t.settle(s))
		}
		if term.Op == ast.OpAny {
			method = string(ast.OpCount)
		}
	case ast.OpSum, ast.OpMin, ast.OpMax, ast.OpAverage:
		sel := current
		if term.Lambda != nil {
			if sel, err = t.lambda(t.cur, term.Lambda, sc, current); err != nil {
				return nil, err
			}
		}
		s, ok := asScalar(sel)
		if !ok {
			return nil, failf(op, "the aggregated value is not a scalar")
		}
		e.ApplySelector(t.settle(s))
	default:
		return nil, failf(op, "unsupported over the elements of a grouping")
	}
	agg, err := t.tr.registry.Aggregate(t.ctx, method, e)
	if err != nil {
		return nil, err
	}
	if term.Op == ast.OpAny {
		return ir.Compare(ir.OpGreater, agg, intConst(0)), nil
	}
	return agg, nil
}
