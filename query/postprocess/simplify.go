package postprocess

import (
	"github.com/satishbabariya/relquery/query/ir"
)

// Simplify folds boolean constants: literal true and false operands of AND,
// OR and NOT, null tests over literals, and CASE branches decided by a
// literal test. A predicate folded to true is removed.
func Simplify(s *ir.Select) *ir.Select {
	return ir.RewriteSelect(ir.RewriteFunc(simplifyNode), s)
}

// SimplifyScalar is Simplify for one expression
func SimplifyScalar(s ir.Scalar) ir.Scalar {
	return ir.RewriteScalar(ir.RewriteFunc(simplifyNode), s)
}

func simplifyNode(n ir.Node) ir.Node {
	switch x := n.(type) {
	case *ir.Binary:
		switch x.Op {
		case ir.OpAnd:
			switch {
			case ir.IsFalse(x.Left) || ir.IsFalse(x.Right):
				return ir.False
			case ir.IsTrue(x.Left):
				return x.Right
			case ir.IsTrue(x.Right):
				return x.Left
			}
		case ir.OpOr:
			switch {
			case ir.IsTrue(x.Left) || ir.IsTrue(x.Right):
				return ir.True
			case ir.IsFalse(x.Left):
				return x.Right
			case ir.IsFalse(x.Right):
				return x.Left
			}
		}
	case *ir.Unary:
		c, ok := x.Operand.(*ir.Constant)
		switch {
		case x.Op == ir.OpNot:
			if ir.IsTrue(x.Operand) || ir.IsFalse(x.Operand) {
				return ir.Not(x.Operand)
			}
			if u, ok := x.Operand.(*ir.Unary); ok {
				switch u.Op {
				case ir.OpNot:
					return u.Operand
				case ir.OpIsNull:
					return ir.IsNotNull(u.Operand)
				case ir.OpIsNotNull:
					return ir.IsNull(u.Operand)
				}
			}
		case ok && x.Op == ir.OpIsNull:
			return ir.Bool(c.Value == nil)
		case ok && x.Op == ir.OpIsNotNull:
			return ir.Bool(c.Value != nil)
		}
	case *ir.Case:
		if x.Operand != nil {
			return n
		}
		var whens []ir.When
		for _, w := range x.Whens {
			if ir.IsFalse(w.Test) {
				continue
			}
			if ir.IsTrue(w.Test) && len(whens) == 0 {
				return w.Result
			}
			if ir.IsTrue(w.Test) {
				cp := *x
				cp.Whens, cp.Else = whens, w.Result
				return &cp
			}
			whens = append(whens, w)
		}
		if len(whens) == len(x.Whens) {
			return n
		}
		if len(whens) == 0 && x.Else != nil {
			return x.Else
		}
		if len(whens) == 0 {
			return ir.Const(nil, x.Mapping)
		}
		cp := *x
		cp.Whens = whens
		return &cp
	case *ir.Select:
		if !ir.IsTrue(x.Predicate) && !ir.IsTrue(x.Having) {
			return n
		}
		cp := *x
		if ir.IsTrue(cp.Predicate) {
			cp.Predicate = nil
		}
		if ir.IsTrue(cp.Having) {
			cp.Having = nil
		}
		return &cp
	}
	return n
}
