package postprocess

import (
	"github.com/satishbabariya/relquery/query/ir"
)

// PruneProjections drops the columns of derived tables that nothing outside
// them reads. DISTINCT derived tables keep every column since their rows
// depend on all of them.
func PruneProjections(s *ir.Select) *ir.Select {
	out := s
	for i, t := range s.Tables {
		sub := derived(t)
		if sub == nil || sub.Select.Distinct {
			continue
		}
		used := columnsUsed(out, sub, sub.Alias)
		var keep []*ir.Projection
		for _, p := range sub.Select.Projection {
			if used[p.Alias] {
				keep = append(keep, p)
			}
		}
		if len(keep) == len(sub.Select.Projection) {
			continue
		}
		inner := *sub.Select
		inner.Projection = keep
		if out == s {
			cp := *s
			cp.Tables = append([]ir.Table(nil), s.Tables...)
			out = &cp
		}
		out.Tables[i] = replaceDerived(t, &ir.SubqueryTable{Select: &inner, Alias: sub.Alias})
	}
	return nested(out, PruneProjections)
}

func derived(t ir.Table) *ir.SubqueryTable {
	if j, ok := t.(*ir.Join); ok {
		t = j.Table
	}
	sub, _ := t.(*ir.SubqueryTable)
	return sub
}

func replaceDerived(t ir.Table, sub *ir.SubqueryTable) ir.Table {
	if j, ok := t.(*ir.Join); ok {
		cp := *j
		cp.Table = sub
		return &cp
	}
	return sub
}

// columnsUsed collects the columns of alias read anywhere in s outside skip
func columnsUsed(s *ir.Select, skip ir.Node, alias string) map[string]bool {
	used := make(map[string]bool)
	ir.Inspect(s, func(n ir.Node) bool {
		if n == skip {
			return false
		}
		if c, ok := n.(*ir.ColumnRef); ok && c.Table == alias {
			used[c.Column] = true
		}
		return true
	})
	return used
}

// PruneJoins removes prunable joins whose table nothing references. Inner
// joins are only removed when their condition is a plain key equality, as a
// filter in the condition could drop rows.
func PruneJoins(s *ir.Select) *ir.Select {
	out := s
	for {
		removed := false
		for i, t := range out.Tables {
			j, ok := t.(*ir.Join)
			if !ok || !j.Prunable || !prunable(j) {
				continue
			}
			if len(columnsUsed(out, j, j.Table.TableAlias())) > 0 {
				continue
			}
			cp := *out
			cp.Tables = append(append([]ir.Table(nil), out.Tables[:i]...), out.Tables[i+1:]...)
			out = &cp
			removed = true
			break
		}
		if !removed {
			break
		}
	}
	return nested(out, PruneJoins)
}

func prunable(j *ir.Join) bool {
	switch j.Kind {
	case ir.LeftJoin:
		return true
	case ir.InnerJoin:
		return keyEquality(j.On)
	}
	return false
}

func keyEquality(s ir.Scalar) bool {
	b, ok := s.(*ir.Binary)
	if !ok {
		return false
	}
	switch b.Op {
	case ir.OpAnd:
		return keyEquality(b.Left) && keyEquality(b.Right)
	case ir.OpEqual:
		_, l := b.Left.(*ir.ColumnRef)
		_, r := b.Right.(*ir.ColumnRef)
		return l && r
	}
	return false
}
