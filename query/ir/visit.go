package ir

// Visitor is called for every node of a tree by Walk. If Visit returns nil
// the children of the node are skipped.
type Visitor interface {
	Visit(Node) Visitor
}

// VisitFunc adapts a function to a Visitor that always descends
// when the function returns true.
type VisitFunc func(Node) bool

// Visit implements Visitor
func (f VisitFunc) Visit(n Node) Visitor {
	if f(n) {
		return f
	}
	return nil
}

// Walk traverses n depth-first
func Walk(v Visitor, n Node) {
	if n == nil {
		return
	}
	if v = v.Visit(n); v == nil {
		return
	}
	mapChildren(n, func(c Node) Node {
		Walk(v, c)
		return c
	})
}

// Inspect calls f for every node of n; returning false skips children.
func Inspect(n Node, f func(Node) bool) {
	Walk(VisitFunc(f), n)
}

// Rewriter rewrites a tree bottom-up. Walk is called before the children of
// a node are rewritten and returns the Rewriter used for them (nil skips
// them); Rewrite is called afterwards with the node carrying rewritten
// children.
type Rewriter interface {
	Walk(Node) Rewriter
	Rewrite(Node) Node
}

// RewriteFunc adapts a function to a Rewriter that visits every node
type RewriteFunc func(Node) Node

// Walk implements Rewriter
func (f RewriteFunc) Walk(Node) Rewriter { return f }

// Rewrite implements Rewriter
func (f RewriteFunc) Rewrite(n Node) Node { return f(n) }

// Rewrite applies r to n and returns the result. Nodes whose children did not
// change are returned as-is, so an unchanged tree is pointer-identical to
// its input.
func Rewrite(r Rewriter, n Node) Node {
	if n == nil {
		return nil
	}
	if sub := r.Walk(n); sub != nil {
		n = mapChildren(n, func(c Node) Node { return Rewrite(sub, c) })
	}
	return r.Rewrite(n)
}

// RewriteScalar is Rewrite for scalars
func RewriteScalar(r Rewriter, s Scalar) Scalar {
	if s == nil {
		return nil
	}
	return Rewrite(r, s).(Scalar)
}

// RewriteSelect is Rewrite for selects
func RewriteSelect(r Rewriter, s *Select) *Select {
	if s == nil {
		return nil
	}
	return Rewrite(r, s).(*Select)
}

func mapScalar(f func(Node) Node, s Scalar) Scalar {
	if s == nil {
		return nil
	}
	return f(s).(Scalar)
}

func mapSelect(f func(Node) Node, s *Select) *Select {
	if s == nil {
		return nil
	}
	return f(s).(*Select)
}

func mapParameter(f func(Node) Node, p *Parameter) *Parameter {
	if p == nil {
		return nil
	}
	return f(p).(*Parameter)
}

func mapScalars(f func(Node) Node, xs []Scalar) ([]Scalar, bool) {
	var out []Scalar
	for i, x := range xs {
		y := mapScalar(f, x)
		if y != x && out == nil {
			out = make([]Scalar, len(xs))
			copy(out, xs[:i])
		}
		if out != nil {
			out[i] = y
		}
	}
	if out == nil {
		return xs, false
	}
	return out, true
}

func mapOrderings(f func(Node) Node, xs []*Ordering) ([]*Ordering, bool) {
	var out []*Ordering
	for i, x := range xs {
		y := f(x).(*Ordering)
		if y != x && out == nil {
			out = make([]*Ordering, len(xs))
			copy(out, xs[:i])
		}
		if out != nil {
			out[i] = y
		}
	}
	if out == nil {
		return xs, false
	}
	return out, true
}

func mapProjections(f func(Node) Node, xs []*Projection) ([]*Projection, bool) {
	var out []*Projection
	for i, x := range xs {
		y := f(x).(*Projection)
		if y != x && out == nil {
			out = make([]*Projection, len(xs))
			copy(out, xs[:i])
		}
		if out != nil {
			out[i] = y
		}
	}
	if out == nil {
		return xs, false
	}
	return out, true
}

func mapTables(f func(Node) Node, xs []Table) ([]Table, bool) {
	var out []Table
	for i, x := range xs {
		y := f(x).(Table)
		if y != x && out == nil {
			out = make([]Table, len(xs))
			copy(out, xs[:i])
		}
		if out != nil {
			out[i] = y
		}
	}
	if out == nil {
		return xs, false
	}
	return out, true
}

// mapChildren applies f to every child of n and returns n, or a shallow copy
// of n when any child changed.
func mapChildren(n Node, f func(Node) Node) Node {
	switch x := n.(type) {
	case *ColumnRef, *Constant, *Parameter, *Fragment, *TableRef:
		return n

	case *Binary:
		l, r := mapScalar(f, x.Left), mapScalar(f, x.Right)
		if l == x.Left && r == x.Right {
			return x
		}
		cp := *x
		cp.Left, cp.Right = l, r
		return &cp

	case *Unary:
		o := mapScalar(f, x.Operand)
		if o == x.Operand {
			return x
		}
		cp := *x
		cp.Operand = o
		return &cp

	case *Func:
		args, changed := mapScalars(f, x.Args)
		if !changed {
			return x
		}
		cp := *x
		cp.Args = args
		return &cp

	case *Case:
		operand := mapScalar(f, x.Operand)
		changed := operand != x.Operand
		whens, copied := x.Whens, false
		for i, w := range x.Whens {
			t, r := mapScalar(f, w.Test), mapScalar(f, w.Result)
			if t != w.Test || r != w.Result {
				if !copied {
					whens = append([]When(nil), x.Whens...)
					copied = true
				}
				whens[i] = When{Test: t, Result: r}
				changed = true
			}
		}
		els := mapScalar(f, x.Else)
		if !changed && els == x.Else {
			return x
		}
		cp := *x
		cp.Operand, cp.Whens, cp.Else = operand, whens, els
		return &cp

	case *Exists:
		s := mapSelect(f, x.Subquery)
		if s == x.Subquery {
			return x
		}
		cp := *x
		cp.Subquery = s
		return &cp

	case *In:
		item := mapScalar(f, x.Item)
		values, changed := mapScalars(f, x.Values)
		param := mapParameter(f, x.ValuesParameter)
		sub := mapSelect(f, x.Subquery)
		if item == x.Item && !changed && param == x.ValuesParameter && sub == x.Subquery {
			return x
		}
		cp := *x
		cp.Item, cp.Values, cp.ValuesParameter, cp.Subquery = item, values, param, sub
		return &cp

	case *Like:
		m, p, e := mapScalar(f, x.Match), mapScalar(f, x.Pattern), mapScalar(f, x.Escape)
		if m == x.Match && p == x.Pattern && e == x.Escape {
			return x
		}
		cp := *x
		cp.Match, cp.Pattern, cp.Escape = m, p, e
		return &cp

	case *Collate:
		o := mapScalar(f, x.Operand)
		if o == x.Operand {
			return x
		}
		cp := *x
		cp.Operand = o
		return &cp

	case *RowNumber:
		parts, c1 := mapScalars(f, x.Partitions)
		ords, c2 := mapOrderings(f, x.Orderings)
		if !c1 && !c2 {
			return x
		}
		cp := *x
		cp.Partitions, cp.Orderings = parts, ords
		return &cp

	case *ScalarSubquery:
		s := mapSelect(f, x.Subquery)
		if s == x.Subquery {
			return x
		}
		cp := *x
		cp.Subquery = s
		return &cp

	case *JSONPath:
		c := f(x.Column).(*ColumnRef)
		if c == x.Column {
			return x
		}
		cp := *x
		cp.Column = c
		return &cp

	case *Projection:
		e := mapScalar(f, x.Expr)
		if e == x.Expr {
			return x
		}
		return &Projection{Expr: e, Alias: x.Alias}

	case *Ordering:
		e := mapScalar(f, x.Expr)
		if e == x.Expr {
			return x
		}
		return &Ordering{Expr: e, Descending: x.Descending}

	case *SubqueryTable:
		s := mapSelect(f, x.Select)
		if s == x.Select {
			return x
		}
		return &SubqueryTable{Select: s, Alias: x.Alias}

	case *FunctionTable:
		args, changed := mapScalars(f, x.Args)
		if !changed {
			return x
		}
		cp := *x
		cp.Args = args
		return &cp

	case *RawTable:
		args, changed := mapScalars(f, x.Args)
		param := mapParameter(f, x.ArgsParameter)
		if !changed && param == x.ArgsParameter {
			return x
		}
		cp := *x
		cp.Args, cp.ArgsParameter = args, param
		return &cp

	case *ValuesTable:
		var rows [][]Scalar
		for i, row := range x.Rows {
			mapped, changed := mapScalars(f, row)
			if changed && rows == nil {
				rows = make([][]Scalar, len(x.Rows))
				copy(rows, x.Rows[:i])
			}
			if rows != nil {
				rows[i] = mapped
			}
		}
		param := mapParameter(f, x.RowsParameter)
		if rows == nil && param == x.RowsParameter {
			return x
		}
		cp := *x
		if rows != nil {
			cp.Rows = rows
		}
		cp.RowsParameter = param
		return &cp

	case *SetOperation:
		l, r := mapSelect(f, x.Left), mapSelect(f, x.Right)
		if l == x.Left && r == x.Right {
			return x
		}
		cp := *x
		cp.Left, cp.Right = l, r
		return &cp

	case *Join:
		t := f(x.Table).(Table)
		on := mapScalar(f, x.On)
		if t == x.Table && on == x.On {
			return x
		}
		cp := *x
		cp.Table, cp.On = t, on
		return &cp

	case *Select:
		tables, c1 := mapTables(f, x.Tables)
		proj, c2 := mapProjections(f, x.Projection)
		pred := mapScalar(f, x.Predicate)
		group, c3 := mapScalars(f, x.GroupBy)
		having := mapScalar(f, x.Having)
		ords, c4 := mapOrderings(f, x.Orderings)
		limit, offset := mapScalar(f, x.Limit), mapScalar(f, x.Offset)
		if !c1 && !c2 && !c3 && !c4 && pred == x.Predicate && having == x.Having &&
			limit == x.Limit && offset == x.Offset {
			return x
		}
		cp := *x
		cp.Tables, cp.Projection, cp.Predicate = tables, proj, pred
		cp.GroupBy, cp.Having, cp.Orderings = group, having, ords
		cp.Limit, cp.Offset = limit, offset
		return &cp
	}
	panic("ir: unknown node type")
}

// ReferencedAliases returns the set of table aliases referenced by column
// references anywhere under n.
func ReferencedAliases(n Node) map[string]bool {
	refs := make(map[string]bool)
	Inspect(n, func(c Node) bool {
		if col, ok := c.(*ColumnRef); ok {
			refs[col.Table] = true
		}
		return true
	})
	return refs
}

// References reports whether n references any of the aliases
func References(n Node, aliases map[string]bool) bool {
	found := false
	Inspect(n, func(c Node) bool {
		if found {
			return false
		}
		if col, ok := c.(*ColumnRef); ok && aliases[col.Table] {
			found = true
		}
		return !found
	})
	return found
}
