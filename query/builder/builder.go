// Package builder provides a fluent query builder API and a Prisma-style JSON
// front end, both producing object-query trees.
package builder

import (
	"strings"
	"unicode"

	"github.com/satishbabariya/relquery/query/ast"
)

// QueryBuilder builds queries over one range variable
type QueryBuilder struct {
	query    ast.Query
	variable string
	ordered  bool
}

// From starts a query over all rows of an entity
func From(entity string) *QueryBuilder {
	return newQuery(&ast.EntitySource{Entity: entity}, entity)
}

// FromRaw starts a query over entity rows returned by raw command text with
// {0}, {1}... placeholders.
func FromRaw(entity, sql string, args ...any) *QueryBuilder {
	src := &ast.RawSource{Entity: entity, SQL: sql}
	for _, a := range args {
		src.Args = append(src.Args, Value(a))
	}
	return newQuery(src, entity)
}

// FromRawParam starts a raw query whose placeholders bind to the elements
// of an array parameter
func FromRawParam(entity, sql, param string) *QueryBuilder {
	return newQuery(&ast.RawSource{Entity: entity, SQL: sql, ArgsParameter: param}, entity)
}

// FromFunction starts a query over a table-valued function
func FromFunction(entity, function string, args ...any) *QueryBuilder {
	src := &ast.FunctionSource{Entity: entity, Function: function}
	for _, a := range args {
		src.Args = append(src.Args, Value(a))
	}
	return newQuery(src, entity)
}

// FromValues starts a query over constant scalar values
func FromValues(values ...any) *QueryBuilder {
	return newQuery(&ast.InlineSource{Values: values}, "v")
}

// FromParameter starts a query over the elements of an array parameter
func FromParameter(name string) *QueryBuilder {
	return newQuery(&ast.ParameterSource{Name: name}, "v")
}

// Wrap continues building on an existing query
func Wrap(q ast.Query, variable string) *QueryBuilder {
	return &QueryBuilder{query: q, variable: variable}
}

func newQuery(q ast.Query, name string) *QueryBuilder {
	return &QueryBuilder{query: q, variable: rangeVariable(name)}
}

// rangeVariable derives a range variable from an entity name: Blog -> b
func rangeVariable(name string) string {
	for _, r := range name {
		if unicode.IsLetter(r) {
			return string(unicode.ToLower(r))
		}
	}
	return "x"
}

// Var returns the range variable lambdas are written against
func (q *QueryBuilder) Var() string { return q.variable }

// Field returns the member path of the range variable: Field("Blog.Name")
func (q *QueryBuilder) Field(path string) ast.Expr {
	return ast.P(q.variable + "." + path)
}

// Filter returns a WHERE builder over the range variable
func (q *QueryBuilder) Filter() *WhereBuilder {
	return NewWhereBuilder(q.variable)
}

// Where filters by a predicate over the range variable
func (q *QueryBuilder) Where(pred ast.Expr) *QueryBuilder {
	q.query = &ast.Where{Source: q.query, Predicate: ast.Fn(q.variable, pred)}
	return q
}

// WhereBuilder filters by the conditions of w
func (q *QueryBuilder) WhereBuilder(w *WhereBuilder) *QueryBuilder {
	if w.IsEmpty() {
		return q
	}
	return q.Where(w.body(q.variable))
}

// OrderBy adds an ordering on a field path; direction is ASC or DESC. The
// first call orders, later calls add subordinate orderings.
func (q *QueryBuilder) OrderBy(field string, direction string) *QueryBuilder {
	return q.OrderByExpr(q.Field(field), strings.EqualFold(direction, "desc"))
}

// OrderByExpr adds an ordering on an expression over the range variable
func (q *QueryBuilder) OrderByExpr(key ast.Expr, descending bool) *QueryBuilder {
	q.query = &ast.OrderBy{Source: q.query, Key: ast.Fn(q.variable, key), Descending: descending, Then: q.ordered}
	q.ordered = true
	return q
}

// Skip skips count rows
func (q *QueryBuilder) Skip(count any) *QueryBuilder {
	q.query = &ast.Skip{Source: q.query, Count: Value(count)}
	q.ordered = false
	return q
}

// Take limits the result to count rows
func (q *QueryBuilder) Take(count any) *QueryBuilder {
	q.query = &ast.Take{Source: q.query, Count: Value(count)}
	q.ordered = false
	return q
}

// Distinct removes duplicate rows
func (q *QueryBuilder) Distinct() *QueryBuilder {
	q.query = &ast.Distinct{Source: q.query}
	q.ordered = false
	return q
}

// Select projects the named fields into an anonymous object
func (q *QueryBuilder) Select(fields ...string) *QueryBuilder {
	obj := &ast.New{}
	for _, f := range fields {
		name := f
		if i := strings.LastIndexByte(f, '.'); i >= 0 {
			name = f[i+1:]
		}
		obj.Fields = append(obj.Fields, ast.F(name, q.Field(f)))
	}
	return q.SelectExpr(obj)
}

// SelectExpr projects an expression over the range variable
func (q *QueryBuilder) SelectExpr(selector ast.Expr) *QueryBuilder {
	q.query = &ast.Select{Source: q.query, Selector: ast.Fn(q.variable, selector)}
	q.ordered = false
	return q
}

// GroupBy groups by a key over the range variable. The range variable of
// the result is "g", whose Key member is the key.
func (q *QueryBuilder) GroupBy(key ast.Expr) *QueryBuilder {
	q.query = &ast.GroupBy{Source: q.query, Key: ast.Fn(q.variable, key)}
	q.variable = "g"
	q.ordered = false
	return q
}

// Include eagerly loads a dotted navigation path
func (q *QueryBuilder) Include(path string, opts ...IncludeOption) *QueryBuilder {
	inc := &ast.Include{Source: q.query, Path: strings.Split(path, ".")}
	for _, opt := range opts {
		opt(inc)
	}
	q.query = inc
	return q
}

// Join inner joins other on equal keys. The result pairs both range
// variables under the names outer and inner of an anonymous object, unless
// result is given.
func (q *QueryBuilder) Join(other *QueryBuilder, outerKey, innerKey string, result ast.Expr) *QueryBuilder {
	ov, iv := q.variable, other.variable
	if ov == iv {
		iv += "1"
		other = Wrap(other.query, iv)
	}
	if result == nil {
		result = ast.Obj(ast.F("Outer", ast.P(ov)), ast.F("Inner", ast.P(iv)))
	}
	q.query = &ast.Join{
		Outer:    q.query,
		Inner:    other.query,
		OuterKey: ast.Fn(ov, q.Field(outerKey)),
		InnerKey: ast.Fn(iv, ast.P(iv+"."+innerKey)),
		Result:   &ast.Lambda{Params: []string{ov, iv}, Body: result},
	}
	q.variable = "j"
	q.ordered = false
	return q
}

// Union combines with other, removing duplicates
func (q *QueryBuilder) Union(other *QueryBuilder) *QueryBuilder {
	return q.setOp(ast.SetUnion, other)
}

// Concat combines with other, keeping duplicates
func (q *QueryBuilder) Concat(other *QueryBuilder) *QueryBuilder {
	return q.setOp(ast.SetConcat, other)
}

// Intersect keeps the rows present in both queries
func (q *QueryBuilder) Intersect(other *QueryBuilder) *QueryBuilder {
	return q.setOp(ast.SetIntersect, other)
}

// Except keeps the rows absent from other
func (q *QueryBuilder) Except(other *QueryBuilder) *QueryBuilder {
	return q.setOp(ast.SetExcept, other)
}

func (q *QueryBuilder) setOp(kind ast.SetKind, other *QueryBuilder) *QueryBuilder {
	q.query = &ast.SetOperation{Kind: kind, Left: q.query, Right: other.query}
	q.ordered = false
	return q
}

// AsSplitQuery loads included collections with one query each
func (q *QueryBuilder) AsSplitQuery() *QueryBuilder {
	q.query = &ast.QueryMode{Source: q.query, Split: true}
	return q
}

// AsSingleQuery loads included collections through joins
func (q *QueryBuilder) AsSingleQuery() *QueryBuilder {
	q.query = &ast.QueryMode{Source: q.query, Split: false}
	return q
}

// Build returns the query
func (q *QueryBuilder) Build() ast.Query {
	return q.query
}

func (q *QueryBuilder) terminal(op ast.TerminalOp, body ast.Expr) ast.Query {
	t := &ast.Terminal{Source: q.query, Op: op}
	if body != nil {
		t.Lambda = ast.Fn(q.variable, body)
	}
	return t
}

// First returns the first row, failing when there is none
func (q *QueryBuilder) First() ast.Query { return q.terminal(ast.OpFirst, nil) }

// FirstOrDefault returns the first row or nil
func (q *QueryBuilder) FirstOrDefault() ast.Query { return q.terminal(ast.OpFirstOrDefault, nil) }

// Single returns the only row, failing unless there is exactly one
func (q *QueryBuilder) Single() ast.Query { return q.terminal(ast.OpSingle, nil) }

// SingleOrDefault returns the only row or nil, failing on more than one
func (q *QueryBuilder) SingleOrDefault() ast.Query { return q.terminal(ast.OpSingleOrDefault, nil) }

// Count counts rows
func (q *QueryBuilder) Count() ast.Query { return q.terminal(ast.OpCount, nil) }

// LongCount counts rows as a 64-bit integer
func (q *QueryBuilder) LongCount() ast.Query { return q.terminal(ast.OpLongCount, nil) }

// Any reports whether a row exists, optionally matching pred
func (q *QueryBuilder) Any(pred ast.Expr) ast.Query { return q.terminal(ast.OpAny, pred) }

// All reports whether every row matches pred
func (q *QueryBuilder) All(pred ast.Expr) ast.Query { return q.terminal(ast.OpAll, pred) }

// Sum sums a field
func (q *QueryBuilder) Sum(field string) ast.Query { return q.terminal(ast.OpSum, q.Field(field)) }

// Min returns the smallest value of a field
func (q *QueryBuilder) Min(field string) ast.Query { return q.terminal(ast.OpMin, q.Field(field)) }

// Max returns the largest value of a field
func (q *QueryBuilder) Max(field string) ast.Query { return q.terminal(ast.OpMax, q.Field(field)) }

// Average averages a field
func (q *QueryBuilder) Average(field string) ast.Query {
	return q.terminal(ast.OpAverage, q.Field(field))
}

// Contains reports whether item is among the rows of a scalar query
func (q *QueryBuilder) Contains(item any) ast.Query {
	return &ast.Terminal{Source: q.query, Op: ast.OpContains, Item: Value(item)}
}
