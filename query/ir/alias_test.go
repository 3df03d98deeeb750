package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/satishbabariya/relquery/metadata"
)

func TestAliasManagerGenerate(t *testing.T) {
	am := NewAliasManager()
	assert.Equal(t, "b0", am.Generate("blogs"))
	assert.Equal(t, "b1", am.Generate("Blog"))
	assert.Equal(t, "p0", am.Generate("posts"))
	assert.Equal(t, "t0", am.Generate("_1"))

	am.Reserve("p5")
	assert.Equal(t, "p6", am.Generate("posts"))
}

func threeTables() *Select {
	return &Select{
		Tables: []Table{
			&TableRef{Name: "t", Alias: "t0"},
			&Join{Kind: LeftJoin, Table: &TableRef{Name: "t", Alias: "t2"},
				On: Eq(Col("t0", "id", metadata.Int, false), Col("t2", "parent_id", metadata.Int, false))},
		},
		Projection: []*Projection{
			{Expr: Col("t0", "id", metadata.Int, false), Alias: "id"},
			{Expr: Col("t2", "id", metadata.Int, true), Alias: "id0"},
		},
	}
}

func TestRenumberClosesGaps(t *testing.T) {
	s := threeTables()
	out := Renumber(s)

	assert.Equal(t, []string{"t0", "t1"}, out.TableAliases())
	assert.Equal(t, "t1.id AS id0", Print(out.Projection[1]))
	assert.Equal(t, "(t0.id = t1.parent_id)", Print(out.Tables[1].(*Join).On))

	// input is left untouched
	assert.Equal(t, []string{"t0", "t2"}, s.TableAliases())
	assert.Same(t, out, Renumber(out))
}

func TestRenumberIsPerLetterAndNested(t *testing.T) {
	inner := &Select{
		Tables:     []Table{&TableRef{Name: "posts", Alias: "p3"}},
		Projection: []*Projection{{Expr: Col("p3", "id", metadata.Int, false), Alias: "id"}},
	}
	s := &Select{
		Tables: []Table{
			&TableRef{Name: "blogs", Alias: "b1"},
			&Join{Kind: InnerJoin, Table: &SubqueryTable{Select: inner, Alias: "s4"},
				On: Eq(Col("b1", "id", metadata.Int, false), Col("s4", "id", metadata.Int, false))},
		},
	}
	out := Renumber(s)
	assert.Equal(t, []string{"b0", "s0", "p0"}, DeclaredAliases(out))
	assert.Equal(t, "(b0.id = s0.id)", Print(out.Tables[1].(*Join).On))
}

func TestRenameAliasRespectsShadowing(t *testing.T) {
	shadow := &Select{
		Tables:     []Table{&TableRef{Name: "t", Alias: "t0"}},
		Projection: []*Projection{{Expr: Col("t0", "x", metadata.Int, false), Alias: "x"}},
	}
	correlated := &Select{
		Tables:    []Table{&TableRef{Name: "u", Alias: "u0"}},
		Predicate: Eq(Col("u0", "t_id", metadata.Int, false), Col("t0", "id", metadata.Int, false)),
	}
	s := &Select{
		Tables: []Table{&TableRef{Name: "t", Alias: "t0"}},
		Projection: []*Projection{
			{Expr: &ScalarSubquery{Subquery: shadow, Mapping: metadata.Int}, Alias: "a"},
			{Expr: &Exists{Subquery: correlated, Mapping: metadata.Boolean}, Alias: "b"},
		},
	}
	out := RenameAlias(s, "t0", "t9")
	assert.Equal(t, []string{"t9"}, out.TableAliases())
	assert.Same(t, shadow, out.Projection[0].Expr.(*ScalarSubquery).Subquery)
	assert.Equal(t, "(u0.t_id = t9.id)", Print(out.Projection[1].Expr.(*Exists).Subquery.Predicate))
}
