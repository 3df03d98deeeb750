package builder

import (
	"github.com/satishbabariya/relquery/query/ast"
)

// WhereBuilder builds predicates over one range variable
type WhereBuilder struct {
	variable   string
	conditions []ast.Expr
	operator   ast.BinaryOp
}

// NewWhereBuilder creates a new WHERE builder whose field names are
// members of the range variable v
func NewWhereBuilder(v string) *WhereBuilder {
	return &WhereBuilder{
		variable: v,
		operator: ast.OpAndAlso,
	}
}

// Var returns the range variable
func (w *WhereBuilder) Var() string { return w.variable }

func (w *WhereBuilder) field(name string) ast.Expr {
	return ast.P(w.variable + "." + name)
}

func (w *WhereBuilder) add(e ast.Expr) *WhereBuilder {
	w.conditions = append(w.conditions, e)
	return w
}

// Equals adds an equality condition
func (w *WhereBuilder) Equals(field string, value any) *WhereBuilder {
	return w.add(ast.Eq(w.field(field), Value(value)))
}

// NotEquals adds a not-equals condition
func (w *WhereBuilder) NotEquals(field string, value any) *WhereBuilder {
	return w.add(ast.Ne(w.field(field), Value(value)))
}

// GreaterThan adds a greater-than condition
func (w *WhereBuilder) GreaterThan(field string, value any) *WhereBuilder {
	return w.add(ast.Gt(w.field(field), Value(value)))
}

// LessThan adds a less-than condition
func (w *WhereBuilder) LessThan(field string, value any) *WhereBuilder {
	return w.add(ast.Lt(w.field(field), Value(value)))
}

// GreaterOrEqual adds a greater-or-equal condition
func (w *WhereBuilder) GreaterOrEqual(field string, value any) *WhereBuilder {
	return w.add(ast.Ge(w.field(field), Value(value)))
}

// LessOrEqual adds a less-or-equal condition
func (w *WhereBuilder) LessOrEqual(field string, value any) *WhereBuilder {
	return w.add(ast.Le(w.field(field), Value(value)))
}

// In adds an IN condition over constant values
func (w *WhereBuilder) In(field string, values []any) *WhereBuilder {
	return w.add(&ast.In{Item: w.field(field), Values: values})
}

// InParam adds an IN condition over an array parameter
func (w *WhereBuilder) InParam(field, param string) *WhereBuilder {
	return w.add(&ast.In{Item: w.field(field), Parameter: param})
}

// NotIn adds a NOT IN condition
func (w *WhereBuilder) NotIn(field string, values []any) *WhereBuilder {
	return w.add(ast.Not(&ast.In{Item: w.field(field), Values: values}))
}

// Contains adds a substring condition
func (w *WhereBuilder) Contains(field string, value any) *WhereBuilder {
	return w.add(ast.Method(w.field(field), "Contains", Value(value)))
}

// StartsWith adds a prefix condition
func (w *WhereBuilder) StartsWith(field string, value any) *WhereBuilder {
	return w.add(ast.Method(w.field(field), "StartsWith", Value(value)))
}

// EndsWith adds a suffix condition
func (w *WhereBuilder) EndsWith(field string, value any) *WhereBuilder {
	return w.add(ast.Method(w.field(field), "EndsWith", Value(value)))
}

// IsNull adds an IS NULL condition
func (w *WhereBuilder) IsNull(field string) *WhereBuilder {
	return w.add(ast.Eq(w.field(field), ast.C(nil)))
}

// IsNotNull adds an IS NOT NULL condition
func (w *WhereBuilder) IsNotNull(field string) *WhereBuilder {
	return w.add(ast.Ne(w.field(field), ast.C(nil)))
}

// Expr adds an arbitrary condition over the range variable
func (w *WhereBuilder) Expr(e ast.Expr) *WhereBuilder {
	return w.add(e)
}

// Some adds a condition that at least one element of a collection
// navigation matches sub, whose range variable is independent.
func (w *WhereBuilder) Some(navigation string, sub *WhereBuilder) *WhereBuilder {
	return w.add(w.exists(navigation, sub, ast.OpAny))
}

// Every adds a condition that all elements of a collection navigation match
func (w *WhereBuilder) Every(navigation string, sub *WhereBuilder) *WhereBuilder {
	return w.add(w.exists(navigation, sub, ast.OpAll))
}

// None adds a condition that no element of a collection navigation matches
func (w *WhereBuilder) None(navigation string, sub *WhereBuilder) *WhereBuilder {
	return w.add(ast.Not(w.exists(navigation, sub, ast.OpAny)))
}

func (w *WhereBuilder) exists(navigation string, sub *WhereBuilder, op ast.TerminalOp) ast.Expr {
	t := &ast.Terminal{Source: ast.Nav(ast.P(w.variable), navigation), Op: op}
	if sub != nil && len(sub.conditions) > 0 {
		t.Lambda = sub.Build()
	} else if op == ast.OpAll {
		t.Lambda = ast.Fn("_", ast.C(true))
	}
	return ast.Sub(t)
}

// SetOperator sets the logical operator (AND or OR)
func (w *WhereBuilder) SetOperator(op string) *WhereBuilder {
	if op == "OR" || op == "or" {
		w.operator = ast.OpOrElse
	} else {
		w.operator = ast.OpAndAlso
	}
	return w
}

// AND adds a group of conditions joined by AND
func (w *WhereBuilder) AND(builders ...*WhereBuilder) *WhereBuilder {
	return w.group(ast.OpAndAlso, builders)
}

// OR adds a group of conditions joined by OR
func (w *WhereBuilder) OR(builders ...*WhereBuilder) *WhereBuilder {
	return w.group(ast.OpOrElse, builders)
}

// NOT adds a negated group
func (w *WhereBuilder) NOT(builder *WhereBuilder) *WhereBuilder {
	if body := builder.body(w.variable); body != nil {
		w.add(ast.Not(body))
	}
	return w
}

func (w *WhereBuilder) group(op ast.BinaryOp, builders []*WhereBuilder) *WhereBuilder {
	var parts []ast.Expr
	for _, b := range builders {
		if body := b.body(w.variable); body != nil {
			parts = append(parts, body)
		}
	}
	if len(parts) == 0 {
		return w
	}
	if op == ast.OpOrElse {
		return w.add(ast.Or(parts...))
	}
	return w.add(ast.And(parts...))
}

// NewSubWhereBuilder creates an independent builder over the same range
// variable for use in AND/OR/NOT
func (w *WhereBuilder) NewSubWhereBuilder() *WhereBuilder {
	return NewWhereBuilder(w.variable)
}

// body joins the conditions, renaming the range variable to v. It is nil
// when there are no conditions.
func (w *WhereBuilder) body(v string) ast.Expr {
	if w == nil || len(w.conditions) == 0 {
		return nil
	}
	var out ast.Expr
	if w.operator == ast.OpOrElse {
		out = ast.Or(w.conditions...)
	} else {
		out = ast.And(w.conditions...)
	}
	if v != w.variable {
		out = renameRef(out, w.variable, v)
	}
	return out
}

// IsEmpty reports whether no condition was added
func (w *WhereBuilder) IsEmpty() bool {
	return w == nil || len(w.conditions) == 0
}

// Build returns the predicate lambda; an empty builder yields a constant
// true predicate.
func (w *WhereBuilder) Build() *ast.Lambda {
	body := w.body(w.variable)
	if body == nil {
		body = ast.C(true)
	}
	return ast.Fn(w.variable, body)
}

// Value converts a Go value to an expression: expressions are kept,
// Parameter values become parameters and anything else a constant.
func Value(v any) ast.Expr {
	switch x := v.(type) {
	case ast.Expr:
		return x
	case Parameter:
		return ast.Param(string(x))
	}
	return ast.C(v)
}

// Parameter names a runtime parameter in builder arguments
type Parameter string

// renameRef renames references to the range variable from in an expression
func renameRef(e ast.Expr, from, to string) ast.Expr {
	switch x := e.(type) {
	case *ast.Ref:
		if x.Name == from {
			return &ast.Ref{Name: to}
		}
	case *ast.Member:
		return &ast.Member{Target: renameRef(x.Target, from, to), Name: x.Name}
	case *ast.Binary:
		return ast.Bin(x.Op, renameRef(x.Left, from, to), renameRef(x.Right, from, to))
	case *ast.Unary:
		return &ast.Unary{Op: x.Op, Operand: renameRef(x.Operand, from, to)}
	case *ast.Call:
		cp := &ast.Call{Method: x.Method}
		if x.Target != nil {
			cp.Target = renameRef(x.Target, from, to)
		}
		for _, a := range x.Args {
			cp.Args = append(cp.Args, renameRef(a, from, to))
		}
		return cp
	case *ast.Conditional:
		return &ast.Conditional{Test: renameRef(x.Test, from, to), Then: renameRef(x.Then, from, to), Else: renameRef(x.Else, from, to)}
	case *ast.In:
		cp := *x
		cp.Item = renameRef(x.Item, from, to)
		return &cp
	case *ast.Subquery:
		if t, ok := x.Query.(*ast.Terminal); ok {
			if nav, ok := t.Source.(*ast.NavigationSource); ok {
				ct := *t
				ct.Source = ast.Nav(renameRef(nav.Of, from, to), nav.Navigation)
				return ast.Sub(&ct)
			}
		}
	}
	return e
}
