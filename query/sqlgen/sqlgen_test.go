package sqlgen_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/relquery/metadata"
	"github.com/satishbabariya/relquery/query/ir"
	"github.com/satishbabariya/relquery/query/sqlgen"
)

func generate(t *testing.T, provider string, s *ir.Select, opts ...sqlgen.Option) *sqlgen.Command {
	t.Helper()
	g, err := sqlgen.NewGenerator(provider, opts...)
	require.NoError(t, err)
	cmd, err := g.Generate(s)
	require.NoError(t, err)
	return cmd
}

func generateErr(t *testing.T, provider string, s *ir.Select, opts ...sqlgen.Option) error {
	t.Helper()
	g, err := sqlgen.NewGenerator(provider, opts...)
	require.NoError(t, err)
	_, err = g.Generate(s)
	return err
}

func blogs() *ir.TableRef {
	return &ir.TableRef{Name: "blogs", Alias: "b0"}
}

func col(name string, mapping *metadata.TypeMapping) *ir.ColumnRef {
	return ir.Col("b0", name, mapping, false)
}

func pagedSelect() *ir.Select {
	p := &ir.Parameter{Name: "p", Mapping: metadata.Int}
	return &ir.Select{
		Tables: []ir.Table{blogs()},
		Projection: []*ir.Projection{
			{Expr: col("id", metadata.Int), Alias: "id"},
			{Expr: col("name", metadata.String), Alias: "name"},
		},
		Predicate: ir.And(
			ir.Eq(col("rating", metadata.Int), p),
			ir.Compare(ir.OpGreater, col("id", metadata.Int), ir.Const(3, metadata.Int)),
		),
		Orderings: []*ir.Ordering{{Expr: col("name", metadata.String)}},
		Limit:     ir.Const(10, metadata.Int),
		Offset:    p,
	}
}

func TestGenerateSelectPerProvider(t *testing.T) {
	for provider, want := range map[string]struct {
		text   string
		params []string
	}{
		"postgresql": {
			`SELECT "b0"."id" AS "id", "b0"."name" AS "name" FROM "blogs" AS "b0" WHERE ("b0"."rating" = $1) AND ("b0"."id" > 3) ORDER BY "b0"."name" ASC LIMIT 10 OFFSET $1`,
			[]string{"p"},
		},
		"mysql": {
			"SELECT `b0`.`id` AS `id`, `b0`.`name` AS `name` FROM `blogs` AS `b0` WHERE (`b0`.`rating` = ?) AND (`b0`.`id` > 3) ORDER BY `b0`.`name` ASC LIMIT 10 OFFSET ?",
			[]string{"p", "p"},
		},
		"sqlite": {
			`SELECT "b0"."id" AS "id", "b0"."name" AS "name" FROM "blogs" AS "b0" WHERE ("b0"."rating" = ?) AND ("b0"."id" > 3) ORDER BY "b0"."name" ASC LIMIT 10 OFFSET ?`,
			[]string{"p", "p"},
		},
		"sqlserver": {
			`SELECT [b0].[id] AS [id], [b0].[name] AS [name] FROM [blogs] AS [b0] WHERE ([b0].[rating] = @p1) AND ([b0].[id] > 3) ORDER BY [b0].[name] ASC OFFSET @p1 ROWS FETCH NEXT 10 ROWS ONLY`,
			[]string{"p"},
		},
	} {
		t.Run(provider, func(t *testing.T) {
			cmd := generate(t, provider, pagedSelect())
			assert.Equal(t, want.text, cmd.Text)
			assert.Equal(t, want.params, cmd.Parameters)
		})
	}
}

func TestTopWithoutOffset(t *testing.T) {
	s := &ir.Select{Tables: []ir.Table{blogs()}, Limit: ir.Const(1, metadata.Int)}
	assert.Equal(t, "SELECT TOP(1) 1 FROM [blogs] AS [b0]", generate(t, "mssql", s).Text)
}

func TestOffsetWithoutLimit(t *testing.T) {
	s := &ir.Select{Tables: []ir.Table{blogs()}, Offset: ir.Const(5, metadata.Int)}
	assert.Equal(t, `SELECT 1 FROM "blogs" AS "b0" LIMIT -1 OFFSET 5`, generate(t, "sqlite", s).Text)
	assert.Equal(t, "SELECT 1 FROM `blogs` AS `b0` LIMIT 18446744073709551615 OFFSET 5", generate(t, "mysql", s).Text)
	assert.Equal(t, `SELECT 1 FROM "blogs" AS "b0" OFFSET 5`, generate(t, "postgres", s).Text)
	assert.Equal(t, "SELECT 1 FROM [blogs] AS [b0] ORDER BY (SELECT 1) OFFSET 5 ROWS", generate(t, "sqlserver", s).Text)
}

func TestPredicateAsValue(t *testing.T) {
	exists := &ir.Exists{
		Subquery: &ir.Select{
			Tables:    []ir.Table{&ir.TableRef{Name: "posts", Alias: "p0"}},
			Predicate: ir.Eq(ir.Col("p0", "blog_id", metadata.Int, false), col("id", metadata.Int)),
		},
		Mapping: metadata.Boolean,
	}
	s := &ir.Select{Projection: []*ir.Projection{{Expr: exists, Alias: "any"}}}

	assert.Equal(t,
		`SELECT EXISTS (SELECT 1 FROM "posts" AS "p0" WHERE "p0"."blog_id" = "b0"."id") AS "any"`,
		generate(t, "postgresql", s).Text)
	assert.Equal(t,
		`SELECT CASE WHEN EXISTS (SELECT 1 FROM [posts] AS [p0] WHERE [p0].[blog_id] = [b0].[id]) THEN CAST(1 AS BIT) ELSE CAST(0 AS BIT) END AS [any]`,
		generate(t, "sqlserver", s).Text)
}

func TestBooleanColumnAsCondition(t *testing.T) {
	s := &ir.Select{Tables: []ir.Table{blogs()}, Predicate: col("active", metadata.Boolean)}
	assert.Equal(t, `SELECT 1 FROM "blogs" AS "b0" WHERE "b0"."active"`, generate(t, "postgresql", s).Text)
	assert.Equal(t, `SELECT 1 FROM [blogs] AS [b0] WHERE [b0].[active] = CAST(1 AS BIT)`, generate(t, "sqlserver", s).Text)

	s.Predicate = ir.False
	assert.Equal(t, `SELECT 1 FROM [blogs] AS [b0] WHERE 1 = 0`, generate(t, "sqlserver", s).Text)
	assert.Equal(t, `SELECT 1 FROM "blogs" AS "b0" WHERE 0`, generate(t, "sqlite", s).Text)
}

func TestCanonicalFunctions(t *testing.T) {
	name := col("name", metadata.String)
	s := &ir.Select{
		Tables: []ir.Table{blogs()},
		Projection: []*ir.Projection{
			{Expr: &ir.Func{Name: "INSTR", Args: []ir.Scalar{name, ir.Const("x", metadata.String)}, Mapping: metadata.Int}, Alias: "a"},
			{Expr: &ir.Func{Name: "LENGTH", Args: []ir.Scalar{name}, Mapping: metadata.Int}, Alias: "b"},
			{Expr: &ir.Func{Name: "YEAR", Args: []ir.Scalar{col("created", metadata.DateTime)}, Mapping: metadata.Int}, Alias: "c"},
		},
	}
	for provider, want := range map[string][]string{
		"postgresql": {`STRPOS("b0"."name", 'x')`, `LENGTH("b0"."name")`, `CAST(DATE_PART('year', "b0"."created") AS INTEGER)`},
		"mysql":      {"INSTR(`b0`.`name`, 'x')", "CHAR_LENGTH(`b0`.`name`)", "YEAR(`b0`.`created`)"},
		"sqlite":     {`INSTR("b0"."name", 'x')`, `LENGTH("b0"."name")`, `CAST(strftime('%Y', "b0"."created") AS INTEGER)`},
		"sqlserver":  {`CHARINDEX(N'x', [b0].[name])`, `LEN([b0].[name])`, `YEAR([b0].[created])`},
	} {
		t.Run(provider, func(t *testing.T) {
			text := generate(t, provider, s).Text
			for _, fragment := range want {
				assert.Contains(t, text, fragment)
			}
		})
	}
}

func TestGreatestIsVersionGated(t *testing.T) {
	greatest := &ir.Func{Name: "GREATEST", Args: []ir.Scalar{col("a", metadata.Int), col("b", metadata.Int)}, Mapping: metadata.Int}
	s := &ir.Select{Tables: []ir.Table{blogs()}, Projection: []*ir.Projection{{Expr: greatest, Alias: "g"}}}

	assert.Contains(t, generate(t, "sqlserver", s, sqlgen.WithServerVersion("15.0")).Text,
		"(SELECT MAX(v) FROM (VALUES ([b0].[a]), ([b0].[b])) AS x(v))")
	assert.Contains(t, generate(t, "sqlserver", s, sqlgen.WithServerVersion("16.0.1000")).Text,
		"GREATEST([b0].[a], [b0].[b])")
	assert.Contains(t, generate(t, "sqlite", s).Text, `MAX("b0"."a", "b0"."b")`)
}

func TestSQLiteRoundingWithoutMathFunctions(t *testing.T) {
	x := ir.Col("b0", "score", metadata.Float, false)
	s := &ir.Select{Tables: []ir.Table{blogs()}, Projection: []*ir.Projection{
		{Expr: &ir.Func{Name: "CEILING", Args: []ir.Scalar{x}, Mapping: metadata.Float}, Alias: "c"},
	}}
	assert.Equal(t,
		`SELECT (CASE WHEN "b0"."score" > CAST("b0"."score" AS INTEGER) THEN CAST("b0"."score" AS INTEGER) + 1 ELSE CAST("b0"."score" AS INTEGER) END) AS "c" FROM "blogs" AS "b0"`,
		generate(t, "sqlite", s).Text)
}

func lateralSelect(kind ir.JoinKind) *ir.Select {
	inner := &ir.Select{
		Tables:    []ir.Table{&ir.TableRef{Name: "posts", Alias: "p0"}},
		Predicate: ir.Eq(ir.Col("p0", "blog_id", metadata.Int, false), col("id", metadata.Int)),
		Limit:     ir.Const(1, metadata.Int),
	}
	return &ir.Select{Tables: []ir.Table{
		blogs(),
		&ir.Join{Kind: kind, Table: &ir.SubqueryTable{Select: inner, Alias: "s0"}},
	}}
}

func TestApplyJoins(t *testing.T) {
	assert.Equal(t,
		`SELECT 1 FROM "blogs" AS "b0" LEFT JOIN LATERAL (SELECT 1 FROM "posts" AS "p0" WHERE "p0"."blog_id" = "b0"."id" LIMIT 1) AS "s0" ON TRUE`,
		generate(t, "postgresql", lateralSelect(ir.OuterApply)).Text)
	assert.Contains(t, generate(t, "postgresql", lateralSelect(ir.CrossApply)).Text, `CROSS JOIN LATERAL (`)
	assert.Equal(t,
		`SELECT 1 FROM [blogs] AS [b0] OUTER APPLY (SELECT TOP(1) 1 FROM [posts] AS [p0] WHERE [p0].[blog_id] = [b0].[id]) AS [s0]`,
		generate(t, "sqlserver", lateralSelect(ir.OuterApply)).Text)

	assert.ErrorIs(t, generateErr(t, "sqlite", lateralSelect(ir.OuterApply)), sqlgen.ErrUnsupported)
	assert.ErrorIs(t, generateErr(t, "mysql", lateralSelect(ir.CrossApply), sqlgen.WithServerVersion("8.0.13")), sqlgen.ErrUnsupported)
	assert.NoError(t, generateErr(t, "mysql", lateralSelect(ir.CrossApply), sqlgen.WithServerVersion("8.0.14")))
}

func TestRowNumberIsVersionGated(t *testing.T) {
	rn := &ir.RowNumber{
		Partitions: []ir.Scalar{col("owner_id", metadata.Int)},
		Orderings:  []*ir.Ordering{{Expr: col("id", metadata.Int)}},
		Mapping:    metadata.Int,
	}
	s := &ir.Select{Tables: []ir.Table{blogs()}, Projection: []*ir.Projection{{Expr: rn, Alias: "row"}}}
	assert.Equal(t,
		`SELECT ROW_NUMBER() OVER(PARTITION BY "b0"."owner_id" ORDER BY "b0"."id" ASC) AS "row" FROM "blogs" AS "b0"`,
		generate(t, "sqlite", s).Text)
	assert.ErrorIs(t, generateErr(t, "sqlite", s, sqlgen.WithServerVersion("3.24.0")), sqlgen.ErrUnsupported)

	rn.Orderings = nil
	assert.Contains(t, generate(t, "sqlserver", s).Text, "OVER(PARTITION BY [b0].[owner_id] ORDER BY (SELECT 1))")
}

func TestRawTable(t *testing.T) {
	raw := &ir.RawTable{
		SQL:   "SELECT * FROM blogs WHERE id > {0} AND name = {1}",
		Args:  []ir.Scalar{&ir.Parameter{Name: "a", Mapping: metadata.Int}, ir.Const("x", metadata.String)},
		Alias: "b0",
	}
	s := &ir.Select{Tables: []ir.Table{raw}}
	cmd := generate(t, "postgresql", s)
	assert.Equal(t, `SELECT 1 FROM (SELECT * FROM blogs WHERE id > $1 AND name = 'x') AS "b0"`, cmd.Text)
	assert.Equal(t, []string{"a"}, cmd.Parameters)

	raw.SQL = "SELECT * FROM blogs WHERE id > {2}"
	assert.ErrorIs(t, generateErr(t, "postgresql", s), sqlgen.ErrRawArgument)

	raw.ArgsParameter = &ir.Parameter{Name: "args", Mapping: metadata.Untyped}
	assert.ErrorIs(t, generateErr(t, "postgresql", s), sqlgen.ErrUnexpandedParameter)
}

func TestValuesTable(t *testing.T) {
	empty := &ir.Select{Tables: []ir.Table{&ir.ValuesTable{Columns: []string{"value"}, Alias: "v0"}}}
	assert.Equal(t, `SELECT 1 FROM (SELECT NULL AS "value" WHERE 1 = 0) AS "v0"`, generate(t, "postgresql", empty).Text)
	assert.Equal(t, "SELECT 1 FROM (SELECT NULL AS `value` FROM DUAL WHERE 1 = 0) AS `v0`", generate(t, "mysql", empty).Text)

	rows := &ir.Select{Tables: []ir.Table{&ir.ValuesTable{
		Columns: []string{"value"},
		Rows:    [][]ir.Scalar{{ir.Const(1, metadata.Int)}, {ir.Const(2, metadata.Int)}},
		Alias:   "v0",
	}}}
	assert.Equal(t, `SELECT 1 FROM (VALUES (1), (2)) AS "v0" ("value")`, generate(t, "postgresql", rows).Text)
	assert.Equal(t, `SELECT 1 FROM (SELECT 1 AS "value" UNION ALL SELECT 2) AS "v0"`, generate(t, "sqlite", rows).Text)

	param := &ir.Select{Tables: []ir.Table{&ir.ValuesTable{
		Columns:       []string{"value"},
		RowsParameter: &ir.Parameter{Name: "ids", Mapping: metadata.Int},
		Alias:         "v0",
	}}}
	assert.ErrorIs(t, generateErr(t, "sqlite", param), sqlgen.ErrUnexpandedParameter)
}

func TestLiteralsAndConcat(t *testing.T) {
	s := &ir.Select{Projection: []*ir.Projection{
		{Expr: &ir.Binary{Op: ir.OpConcat, Left: ir.Const(`a\b`, metadata.String), Right: ir.Const("it's", metadata.String), Mapping: metadata.String}, Alias: "s"},
		{Expr: ir.Const(true, metadata.Boolean), Alias: "t"},
		{Expr: ir.Const([]byte{0xab, 0x01}, metadata.Bytes), Alias: "b"},
	}}
	assert.Equal(t, `SELECT 'a\b' || 'it''s' AS "s", TRUE AS "t", '\xab01'::bytea AS "b"`, generate(t, "postgresql", s).Text)
	assert.Equal(t, "SELECT CONCAT('a\\\\b', 'it''s') AS `s`, TRUE AS `t`, X'AB01' AS `b`", generate(t, "mysql", s).Text)
	assert.Equal(t, `SELECT N'a\b' + N'it''s' AS [s], CAST(1 AS BIT) AS [t], 0xAB01 AS [b]`, generate(t, "sqlserver", s).Text)
}

func TestJSONPath(t *testing.T) {
	doc := ir.Col("b0", "settings", metadata.JSON, true)
	s := &ir.Select{Tables: []ir.Table{blogs()}, Projection: []*ir.Projection{
		{Expr: &ir.JSONPath{Column: doc, Path: []string{"theme", "color"}, Mapping: metadata.String}, Alias: "color"},
		{Expr: &ir.JSONPath{Column: doc, Path: []string{"theme"}, AsJSON: true, Mapping: metadata.JSON}, Alias: "theme"},
	}}
	assert.Contains(t, generate(t, "postgresql", s).Text, `"b0"."settings" #>> '{theme,color}' AS "color", "b0"."settings" #> '{theme}' AS "theme"`)
	assert.Contains(t, generate(t, "mysql", s).Text, "JSON_UNQUOTE(JSON_EXTRACT(`b0`.`settings`, '$.theme.color'))")
	assert.Contains(t, generate(t, "sqlite", s).Text, `json_extract("b0"."settings", '$.theme')`)
	assert.Contains(t, generate(t, "sqlserver", s).Text, `JSON_QUERY([b0].[settings], '$.theme')`)
}

func TestTagsBecomeComments(t *testing.T) {
	s := &ir.Select{Tags: []string{"list blogs", "two\nlines"}}
	assert.Equal(t, "-- list blogs\n-- two\n-- lines\nSELECT 1", generate(t, "sqlite", s).Text)
}

func TestCommandArgs(t *testing.T) {
	cmd := &sqlgen.Command{Text: "SELECT ?, ?", Parameters: []string{"a", "a"}}
	args, err := cmd.Args(map[string]any{"a": 4})
	require.NoError(t, err)
	assert.Equal(t, []any{4, 4}, args)

	_, err = cmd.Args(map[string]any{})
	assert.ErrorIs(t, err, sqlgen.ErrMissingValue)
}

func TestNewGeneratorErrors(t *testing.T) {
	_, err := sqlgen.NewGenerator("oracle")
	assert.ErrorIs(t, err, sqlgen.ErrUnknownProvider)

	_, err = sqlgen.NewGenerator("mysql", sqlgen.WithServerVersion("not a version"))
	assert.Error(t, err)

	g, err := sqlgen.NewGenerator("postgres")
	require.NoError(t, err)
	assert.Equal(t, "postgresql", g.Provider())
}
