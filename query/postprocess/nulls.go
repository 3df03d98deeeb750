package postprocess

import (
	"github.com/satishbabariya/relquery/query/ir"
)

// ExpandNulls rewrites equality, inequality and IN over nullable operands so
// that NULL compares equal to NULL and a comparison never yields NULL. A
// negated IN over a nullable item is turned into a NOT IN that also
// matches NULL items; for a parameter list the parameter processor adds
// that test once the list is known.
// Filters (WHERE, HAVING, ON and CASE tests) outside a negation use the
// shorter form that only has to be right where NULL acts as false.
func ExpandNulls(s *ir.Select) *ir.Select {
	return expandNulls(s)
}

func expandNulls(s *ir.Select) *ir.Select {
	s = nested(s, expandNulls)
	out := *s
	changed := false
	set := func(dst *ir.Scalar, v ir.Scalar) {
		if v != *dst {
			*dst = v
			changed = true
		}
	}
	set(&out.Predicate, filter(s.Predicate))
	set(&out.Having, filter(s.Having))

	out.Tables = make([]ir.Table, len(s.Tables))
	for i, t := range s.Tables {
		out.Tables[i] = t
		if j, ok := t.(*ir.Join); ok && j.On != nil {
			if on := filter(j.On); on != j.On {
				cp := *j
				cp.On = on
				out.Tables[i] = &cp
				changed = true
			}
		}
	}
	out.Projection = make([]*ir.Projection, len(s.Projection))
	for i, p := range s.Projection {
		out.Projection[i] = p
		if e := value(p.Expr); e != p.Expr {
			out.Projection[i] = &ir.Projection{Expr: e, Alias: p.Alias}
			changed = true
		}
	}
	if !changed {
		return s
	}
	return &out
}

func filter(s ir.Scalar) ir.Scalar { return expand(s, true) }

func value(s ir.Scalar) ir.Scalar { return expand(s, false) }

// expand rewrites the comparisons of a boolean expression. optimized is set
// while NULL and false are interchangeable.
func expand(s ir.Scalar, optimized bool) ir.Scalar {
	switch x := s.(type) {
	case nil:
		return nil
	case *ir.Binary:
		switch {
		case x.Op.IsLogical():
			l, r := expand(x.Left, optimized), expand(x.Right, optimized)
			if l == x.Left && r == x.Right {
				return x
			}
			cp := *x
			cp.Left, cp.Right = l, r
			return &cp
		case x.Op == ir.OpEqual:
			return equality(x, optimized)
		case x.Op == ir.OpNotEqual:
			return inequality(x)
		}
	case *ir.Unary:
		if x.Op == ir.OpNot {
			if in, ok := x.Operand.(*ir.In); ok && nullableIn(in) {
				cp := *in
				cp.Negated = !in.Negated
				return membership(&cp, optimized)
			}
			if o := expand(x.Operand, false); o != x.Operand {
				return ir.Not(o)
			}
		}
	case *ir.In:
		if nullableIn(x) {
			return membership(x, optimized)
		}
	case *ir.Case:
		whens := make([]ir.When, len(x.Whens))
		changed := false
		for i, w := range x.Whens {
			whens[i] = ir.When{Test: expand(w.Test, true), Result: value(w.Result)}
			changed = changed || whens[i].Test != w.Test || whens[i].Result != w.Result
		}
		if changed {
			cp := *x
			cp.Whens = whens
			return &cp
		}
	}
	return s
}

func nullableIn(x *ir.In) bool {
	return x.Subquery == nil && ir.IsNullable(x.Item)
}

func membership(x *ir.In, optimized bool) ir.Scalar {
	switch {
	case x.ValuesParameter != nil:
		return x
	case x.Negated:
		return ir.Or(x, ir.IsNull(x.Item))
	case optimized:
		return x
	}
	return ir.And(x, ir.IsNotNull(x.Item))
}

func equality(x *ir.Binary, optimized bool) ir.Scalar {
	ln, rn := ir.IsNullable(x.Left), ir.IsNullable(x.Right)
	switch {
	case ir.IsNullConstant(x.Right):
		return ir.IsNull(x.Left)
	case ir.IsNullConstant(x.Left):
		return ir.IsNull(x.Right)
	case !ln && !rn:
		return x
	case ln && rn:
		bothNull := ir.And(ir.IsNull(x.Left), ir.IsNull(x.Right))
		if optimized {
			return ir.Or(x, bothNull)
		}
		return ir.Or(ir.And(ir.And(x, ir.IsNotNull(x.Left)), ir.IsNotNull(x.Right)), bothNull)
	case optimized:
		return x
	case ln:
		return ir.And(x, ir.IsNotNull(x.Left))
	}
	return ir.And(x, ir.IsNotNull(x.Right))
}

func inequality(x *ir.Binary) ir.Scalar {
	ln, rn := ir.IsNullable(x.Left), ir.IsNullable(x.Right)
	switch {
	case ir.IsNullConstant(x.Right):
		return ir.IsNotNull(x.Left)
	case ir.IsNullConstant(x.Left):
		return ir.IsNotNull(x.Right)
	case !ln && !rn:
		return x
	case ln && rn:
		differ := ir.Or(ir.Or(x, ir.IsNull(x.Left)), ir.IsNull(x.Right))
		return ir.And(differ, ir.Or(ir.IsNotNull(x.Left), ir.IsNotNull(x.Right)))
	case ln:
		return ir.Or(x, ir.IsNull(x.Left))
	}
	return ir.Or(x, ir.IsNull(x.Right))
}
