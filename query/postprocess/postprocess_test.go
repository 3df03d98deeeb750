package postprocess_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/relquery/metadata"
	"github.com/satishbabariya/relquery/query/ir"
	"github.com/satishbabariya/relquery/query/postprocess"
)

func col(table, column string, nullable bool) *ir.ColumnRef {
	return ir.Col(table, column, metadata.Int, nullable)
}

func from(alias string) *ir.TableRef {
	return &ir.TableRef{Name: "tags", Alias: alias}
}

func TestPrunedJoinLeavesNoAliasGap(t *testing.T) {
	s := &ir.Select{
		Tables: []ir.Table{
			from("t0"),
			&ir.Join{Kind: ir.LeftJoin, Table: from("t1"), On: ir.Eq(col("t0", "id", false), col("t1", "id", false)), Prunable: true},
			&ir.Join{Kind: ir.InnerJoin, Table: from("t2"), On: ir.Eq(col("t0", "id", false), col("t2", "parent_id", false))},
		},
		Projection: []*ir.Projection{
			{Expr: col("t0", "id", false), Alias: "id"},
			{Expr: col("t2", "label", false), Alias: "label"},
		},
	}

	out, err := postprocess.Process(s, postprocess.Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"t0", "t1"}, out.TableAliases())
	assert.Equal(t, "t1", out.Projection[1].Expr.(*ir.ColumnRef).Table)
	assert.Equal(t, "(t0.id = t1.parent_id)", ir.Print(out.Tables[1].(*ir.Join).On))

	again, err := postprocess.Process(out, postprocess.Options{})
	require.NoError(t, err)
	assert.True(t, ir.Equal(out, again))
}

func TestReferencedJoinsAreKept(t *testing.T) {
	s := &ir.Select{
		Tables: []ir.Table{
			from("t0"),
			&ir.Join{Kind: ir.LeftJoin, Table: from("t1"), On: ir.Eq(col("t0", "id", false), col("t1", "id", false)), Prunable: true},
		},
		Predicate: ir.Eq(col("t1", "id", true), ir.Const(3, metadata.Int)),
	}
	out := postprocess.PruneJoins(s)
	assert.Len(t, out.Tables, 2)
}

func TestFilteredInnerJoinIsKept(t *testing.T) {
	on := ir.And(
		ir.Eq(col("t0", "id", false), col("t1", "id", false)),
		ir.Eq(ir.Col("t1", "kind", metadata.String, false), ir.Const("featured", metadata.String)),
	)
	s := &ir.Select{
		Tables: []ir.Table{
			from("t0"),
			&ir.Join{Kind: ir.InnerJoin, Table: from("t1"), On: on, Prunable: true},
		},
	}
	out := postprocess.PruneJoins(s)
	assert.Len(t, out.Tables, 2)
}

func TestSimplify(t *testing.T) {
	x := ir.Compare(ir.OpGreater, col("t0", "id", false), ir.Const(1, metadata.Int))
	for name, tc := range map[string]struct {
		in   ir.Scalar
		want string
	}{
		"and true":       {&ir.Binary{Op: ir.OpAnd, Left: ir.True, Right: x, Mapping: metadata.Boolean}, "(t0.id > 1)"},
		"or false":       {&ir.Binary{Op: ir.OpOr, Left: x, Right: ir.False, Mapping: metadata.Boolean}, "(t0.id > 1)"},
		"and false":      {&ir.Binary{Op: ir.OpAnd, Left: x, Right: ir.False, Mapping: metadata.Boolean}, "FALSE"},
		"null literal":   {ir.IsNull(ir.Const(nil, metadata.Int)), "TRUE"},
		"not not":        {&ir.Unary{Op: ir.OpNot, Operand: &ir.Unary{Op: ir.OpNot, Operand: x, Mapping: metadata.Boolean}, Mapping: metadata.Boolean}, "(t0.id > 1)"},
		"not is null":    {&ir.Unary{Op: ir.OpNot, Operand: ir.IsNull(col("t0", "a", true)), Mapping: metadata.Boolean}, "t0.a IS NOT NULL"},
		"decided case":   {&ir.Case{Whens: []ir.When{{Test: ir.False, Result: ir.Const(1, metadata.Int)}, {Test: ir.True, Result: ir.Const(2, metadata.Int)}}, Mapping: metadata.Int}, "2"},
		"untouched case": {&ir.Case{Whens: []ir.When{{Test: x, Result: ir.Const(1, metadata.Int)}}, Else: ir.Const(2, metadata.Int), Mapping: metadata.Int}, "CASE WHEN (t0.id > 1) THEN 1 ELSE 2 END"},
	} {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, ir.Print(postprocess.SimplifyScalar(tc.in)))
		})
	}
}

func TestSimplifyDropsTruePredicate(t *testing.T) {
	s := &ir.Select{
		Tables:    []ir.Table{from("t0")},
		Predicate: &ir.Binary{Op: ir.OpOr, Left: col("t0", "flag", false), Right: ir.True, Mapping: metadata.Boolean},
	}
	assert.Nil(t, postprocess.Simplify(s).Predicate)
}

func TestExpandNulls(t *testing.T) {
	a, b, id := col("t0", "a", true), col("t0", "b", true), col("t0", "id", false)
	for name, tc := range map[string]struct {
		predicate ir.Scalar
		want      string
	}{
		"both nullable equal": {ir.Eq(a, b), "((t0.a = t0.b) OR (t0.a IS NULL AND t0.b IS NULL))"},
		"one nullable equal":  {ir.Eq(a, id), "(t0.a = t0.id)"},
		"one nullable differ": {ir.Compare(ir.OpNotEqual, a, id), "((t0.a <> t0.id) OR t0.a IS NULL)"},
		"not null equal":      {ir.Eq(id, id), "(t0.id = t0.id)"},
		"equal to null":       {ir.Eq(a, ir.Const(nil, metadata.Int)), "t0.a IS NULL"},
		"negated equal":       {ir.Not(ir.Eq(a, id)), "NOT ((t0.a = t0.id) AND t0.a IS NOT NULL)"},
		"negated in":          {ir.Not(inList(a, false)), "(t0.a NOT IN (1, 2) OR t0.a IS NULL)"},
		"negated in param":    {ir.Not(inParam(a)), "t0.a NOT IN @p"},
		"in under negation":   {ir.Not(ir.Or(inList(a, false), ir.Eq(id, id))), "NOT ((t0.a IN (1, 2) AND t0.a IS NOT NULL) OR (t0.id = t0.id))"},
		"in filter":           {inList(a, false), "t0.a IN (1, 2)"},
		"not in list":         {inList(a, true), "(t0.a NOT IN (1, 2) OR t0.a IS NULL)"},
		"negated not in":      {ir.Not(inList(a, true)), "t0.a IN (1, 2)"},
		"not null in":         {ir.Not(inList(id, false)), "NOT t0.id IN (1, 2)"},
	} {
		t.Run(name, func(t *testing.T) {
			s := &ir.Select{Tables: []ir.Table{from("t0")}, Predicate: tc.predicate}
			out := postprocess.ExpandNulls(s)
			assert.Equal(t, tc.want, ir.Print(out.Predicate))
		})
	}
}

func inList(item ir.Scalar, negated bool) *ir.In {
	return &ir.In{
		Item:    item,
		Values:  []ir.Scalar{ir.Const(1, metadata.Int), ir.Const(2, metadata.Int)},
		Negated: negated,
		Mapping: metadata.Boolean,
	}
}

func inParam(item ir.Scalar) *ir.In {
	return &ir.In{Item: item, ValuesParameter: &ir.Parameter{Name: "p", Mapping: metadata.Int}, Mapping: metadata.Boolean}
}

func TestExpandNullsLeavesUnaffectedSelects(t *testing.T) {
	s := &ir.Select{Tables: []ir.Table{from("t0")}, Predicate: ir.Eq(col("t0", "id", false), ir.Const(1, metadata.Int))}
	assert.Same(t, s, postprocess.ExpandNulls(s))
}

func TestPruneProjections(t *testing.T) {
	inner := &ir.Select{
		Tables: []ir.Table{from("t0")},
		Projection: []*ir.Projection{
			{Expr: col("t0", "id", false), Alias: "id"},
			{Expr: col("t0", "label", false), Alias: "label"},
			{Expr: col("t0", "rank", false), Alias: "rank"},
		},
		Limit: ir.Const(10, metadata.Int),
	}
	s := &ir.Select{
		Tables:     []ir.Table{&ir.SubqueryTable{Select: inner, Alias: "s0"}},
		Projection: []*ir.Projection{{Expr: col("s0", "label", false), Alias: "label"}},
		Orderings:  []*ir.Ordering{{Expr: col("s0", "id", false)}},
	}
	out := postprocess.PruneProjections(s)
	sub := out.Tables[0].(*ir.SubqueryTable)
	require.Len(t, sub.Select.Projection, 2)
	assert.Equal(t, "id", sub.Select.Projection[0].Alias)
	assert.Equal(t, "label", sub.Select.Projection[1].Alias)
	assert.Len(t, inner.Projection, 3)

	inner.Distinct = true
	out = postprocess.PruneProjections(s)
	assert.Len(t, out.Tables[0].(*ir.SubqueryTable).Select.Projection, 3)
}

func TestUniquifyAliases(t *testing.T) {
	nested := &ir.Select{
		Tables:    []ir.Table{from("t0")},
		Predicate: ir.Eq(col("t0", "parent_id", false), ir.Const(1, metadata.Int)),
	}
	s := &ir.Select{
		Tables:     []ir.Table{from("t0")},
		Projection: []*ir.Projection{{Expr: col("t0", "id", false), Alias: "id"}},
		Predicate:  &ir.Exists{Subquery: nested, Mapping: metadata.Boolean},
	}
	out := postprocess.UniquifyAliases(s)
	assert.Equal(t, []string{"t0"}, out.TableAliases())
	inner := out.Predicate.(*ir.Exists).Subquery
	assert.Equal(t, []string{"t1"}, inner.TableAliases())
	assert.Equal(t, "(t1.parent_id = 1)", ir.Print(inner.Predicate))
}

func TestParseNullSemantics(t *testing.T) {
	n, err := postprocess.ParseNullSemantics("emulated")
	require.NoError(t, err)
	assert.Equal(t, postprocess.Emulated, n)
	assert.Equal(t, "emulated", n.String())

	_, err = postprocess.ParseNullSemantics("fuzzy")
	assert.Error(t, err)
}
