package ir

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/satishbabariya/relquery/metadata"
)

// ErrMissingTypeMapping is returned by Build when a scalar has no type mapping.
var ErrMissingTypeMapping = errors.New("scalar expression has no type mapping")

// Lifter maps a scalar over the tables of a select that was just pushed down
// into a subquery onto the enclosing select, projecting whatever it needs from
// the subquery.
type Lifter func(Scalar) Scalar

// SelectBuilder assembles a Select. Each mutator first decides whether the
// current select can absorb the operator under SQL clause ordering; if not,
// the current select is pushed down into a derived table and the operator is
// applied to the new enclosing select:
//
//	predicate   wraps after LIMIT, OFFSET or DISTINCT (HAVING when grouped)
//	ordering    wraps after LIMIT or OFFSET
//	limit       wraps after LIMIT
//	offset      wraps after LIMIT or OFFSET
//	distinct    wraps after LIMIT or OFFSET
//	grouping    wraps after LIMIT, OFFSET, DISTINCT or GROUP BY
//	join        wraps after LIMIT, OFFSET, DISTINCT or GROUP BY
//
// Projection changes never wrap here. Whether a new projection over a
// distinct or grouped select needs a derived table depends on what is
// projected (grouping keys and aggregates do not), so callers decide and
// call PushdownIntoSubquery first.
//
// Set operations always become a derived table. Hooks registered with
// OnPushdown receive the Lifter of every wrap so callers can retarget the
// expressions they hold.
type SelectBuilder struct {
	aliases    *AliasManager
	tables     []Table
	projection []*Projection
	predicate  Scalar
	groupBy    []Scalar
	having     Scalar
	orderings  []*Ordering
	limit      Scalar
	offset     Scalar
	distinct   bool
	tags       []string
	hooks      []func(Lifter)
}

// NewSelectBuilder creates a builder over a source table
func NewSelectBuilder(aliases *AliasManager, from Table) *SelectBuilder {
	b := &SelectBuilder{aliases: aliases}
	if from != nil {
		b.tables = []Table{from}
	}
	return b
}

// Aliases returns the alias manager shared with nested builders
func (b *SelectBuilder) Aliases() *AliasManager { return b.aliases }

// OnPushdown registers a hook called with the Lifter of every pushdown
func (b *SelectBuilder) OnPushdown(hook func(Lifter)) {
	b.hooks = append(b.hooks, hook)
}

// Clone returns an independent builder with the same state and no hooks.
func (b *SelectBuilder) Clone() *SelectBuilder {
	s := b.snapshot()
	return &SelectBuilder{
		aliases:    b.aliases,
		tables:     s.Tables,
		projection: s.Projection,
		predicate:  s.Predicate,
		groupBy:    s.GroupBy,
		having:     s.Having,
		orderings:  s.Orderings,
		limit:      s.Limit,
		offset:     s.Offset,
		distinct:   s.Distinct,
		tags:       append([]string(nil), b.tags...),
	}
}

// Tables returns the FROM list
func (b *SelectBuilder) Tables() []Table { return b.tables }

// Projection returns the current projection
func (b *SelectBuilder) Projection() []*Projection { return b.projection }

// Predicate returns the current WHERE predicate
func (b *SelectBuilder) Predicate() Scalar { return b.predicate }

// Orderings returns the current orderings
func (b *SelectBuilder) Orderings() []*Ordering { return b.orderings }

// Limit returns the current limit
func (b *SelectBuilder) Limit() Scalar { return b.limit }

// Offset returns the current offset
func (b *SelectBuilder) Offset() Scalar { return b.offset }

// IsDistinct reports whether DISTINCT was applied
func (b *SelectBuilder) IsDistinct() bool { return b.distinct }

// IsGrouped reports whether GROUP BY was applied
func (b *SelectBuilder) IsGrouped() bool { return len(b.groupBy) > 0 }

// IsLimited reports whether LIMIT or OFFSET was applied
func (b *SelectBuilder) IsLimited() bool { return b.limit != nil || b.offset != nil }

// Tag attaches a free-form tag to the query
func (b *SelectBuilder) Tag(tag string) {
	b.tags = append(b.tags, tag)
}

// ApplyPredicate conjoins a predicate. A literal true is a no-op.
func (b *SelectBuilder) ApplyPredicate(pred Scalar) {
	if pred == nil || IsTrue(pred) {
		return
	}
	if b.IsLimited() || b.distinct {
		pred = b.PushdownIntoSubquery()(pred)
	}
	if b.IsGrouped() {
		b.having = And(b.having, pred)
		return
	}
	b.predicate = And(b.predicate, pred)
}

// ApplyOrdering replaces the orderings with o
func (b *SelectBuilder) ApplyOrdering(o *Ordering) {
	if b.IsLimited() {
		o = b.liftOrdering(b.PushdownIntoSubquery(), o)
	}
	b.orderings = []*Ordering{o}
}

// AppendOrdering adds a subordinate ordering unless an equal one exists
func (b *SelectBuilder) AppendOrdering(o *Ordering) {
	if b.IsLimited() {
		o = b.liftOrdering(b.PushdownIntoSubquery(), o)
	}
	for _, existing := range b.orderings {
		if Equal(existing.Expr, o.Expr) {
			return
		}
	}
	b.orderings = append(b.orderings, o)
}

// ClearOrdering removes all orderings
func (b *SelectBuilder) ClearOrdering() {
	b.orderings = nil
}

// ApplyLimit sets LIMIT
func (b *SelectBuilder) ApplyLimit(limit Scalar) {
	if b.limit != nil {
		b.PushdownIntoSubquery()
	}
	b.limit = limit
}

// ApplyOffset sets OFFSET
func (b *SelectBuilder) ApplyOffset(offset Scalar) {
	if b.IsLimited() {
		b.PushdownIntoSubquery()
	}
	b.offset = offset
}

// ApplyDistinct sets DISTINCT and drops orderings, which do not survive it.
func (b *SelectBuilder) ApplyDistinct() {
	if b.IsLimited() {
		b.PushdownIntoSubquery()
	}
	b.distinct = true
	b.orderings = nil
}

// ApplyGrouping sets GROUP BY and returns the keys retargeted to the select
// the grouping was applied to.
func (b *SelectBuilder) ApplyGrouping(keys []Scalar) []Scalar {
	if b.IsLimited() || b.distinct || b.IsGrouped() {
		lift := b.PushdownIntoSubquery()
		lifted := make([]Scalar, len(keys))
		for i, k := range keys {
			lifted[i] = lift(k)
		}
		keys = lifted
	}
	b.groupBy = keys
	b.orderings = nil
	return keys
}

// SetProjection replaces the projection as is; it never pushes down
func (b *SelectBuilder) SetProjection(p []*Projection) {
	b.projection = p
}

// AddToProjection projects expr unless an equal expression already is, and
// returns the ordinal and the column alias used.
func (b *SelectBuilder) AddToProjection(expr Scalar, alias string) (int, string) {
	for i, p := range b.projection {
		if Equal(p.Expr, expr) {
			return i, p.Alias
		}
	}
	alias = uniqueColumnName(b.projection, alias)
	b.projection = append(b.projection, &Projection{Expr: expr, Alias: alias})
	return len(b.projection) - 1, alias
}

// AddJoin joins table on a condition. It returns on retargeted to the
// select the join was added to.
func (b *SelectBuilder) AddJoin(kind JoinKind, table Table, on Scalar, prunable bool) Scalar {
	if b.IsLimited() || b.distinct || b.IsGrouped() {
		lift := b.PushdownIntoSubquery()
		if on != nil {
			on = lift(on)
		}
		if apply, ok := table.(*SubqueryTable); ok && (kind == CrossApply || kind == OuterApply) {
			// correlated lateral subqueries reference the wrapped tables
			table = &SubqueryTable{Select: liftSelect(lift, apply.Select), Alias: apply.Alias}
		}
	}
	b.tables = append(b.tables, &Join{Kind: kind, Table: table, On: on, Prunable: prunable})
	return on
}

// AddCrossJoin cross joins table
func (b *SelectBuilder) AddCrossJoin(table Table) {
	b.AddJoin(CrossJoin, table, nil, false)
}

// ApplySetOperation combines the current select, whose projection must be
// set, with right. The result becomes a derived table; hooks receive a
// Lifter mapping the left side's projected expressions onto it.
func (b *SelectBuilder) ApplySetOperation(kind SetOpKind, all bool, right *Select) Lifter {
	left := b.snapshot()
	alias := b.aliases.Generate(kind.String())
	op := &SetOperation{Kind: kind, All: all, Left: left, Right: right, Alias: alias}
	b.reset(op)

	lift := func(s Scalar) Scalar {
		if s == nil {
			return nil
		}
		for _, p := range left.Projection {
			if Equal(p.Expr, s) {
				return &ColumnRef{Table: alias, Column: p.Alias, Nullable: IsNullable(p.Expr) || isNullableColumn(right, p.Alias), Mapping: p.Expr.TypeMapping()}
			}
		}
		return s
	}
	proj := make([]*Projection, len(left.Projection))
	for i, p := range left.Projection {
		proj[i] = &Projection{Expr: lift(p.Expr), Alias: p.Alias}
	}
	b.projection = proj
	for _, h := range b.hooks {
		h(lift)
	}
	return lift
}

func isNullableColumn(s *Select, alias string) bool {
	for _, p := range s.Projection {
		if p.Alias == alias {
			return IsNullable(p.Expr)
		}
	}
	return true
}

// PushdownIntoSubquery wraps the current select into a derived table and
// makes it the source of a fresh select. Orderings move to the outer select
// and stay inside only when the inner select is limited.
func (b *SelectBuilder) PushdownIntoSubquery() Lifter {
	inner := b.snapshot()
	alias := b.aliases.Generate("subquery")
	l := &lifter{inner: inner, alias: alias, innerAliases: make(map[string]bool)}
	for _, a := range inner.TableAliases() {
		l.innerAliases[a] = true
	}

	orderings := b.orderings
	projection := b.projection
	if inner.Limit == nil && inner.Offset == nil {
		inner.Orderings = nil
	}
	b.reset(&SubqueryTable{Select: inner, Alias: alias})
	for _, o := range orderings {
		b.orderings = append(b.orderings, b.liftOrdering(l.lift, o))
	}
	for _, p := range projection {
		b.projection = append(b.projection, &Projection{Expr: l.lift(p.Expr), Alias: p.Alias})
	}
	for _, h := range b.hooks {
		h(l.lift)
	}
	return l.lift
}

func (b *SelectBuilder) liftOrdering(lift Lifter, o *Ordering) *Ordering {
	return &Ordering{Expr: lift(o.Expr), Descending: o.Descending}
}

func (b *SelectBuilder) snapshot() *Select {
	s := &Select{
		Tables:     b.tables,
		Projection: b.projection,
		Predicate:  b.predicate,
		GroupBy:    b.groupBy,
		Having:     b.having,
		Orderings:  b.orderings,
		Limit:      b.limit,
		Offset:     b.offset,
		Distinct:   b.distinct,
	}
	return s.clone()
}

func (b *SelectBuilder) reset(from Table) {
	b.tables = []Table{from}
	b.projection = nil
	b.predicate = nil
	b.groupBy = nil
	b.having = nil
	b.orderings = nil
	b.limit = nil
	b.offset = nil
	b.distinct = false
}

// Snapshot returns the current state as a select without checking type
// mappings
func (b *SelectBuilder) Snapshot() *Select {
	return b.snapshot()
}

// Rewrite applies r to every expression and table the builder holds
func (b *SelectBuilder) Rewrite(r Rewriter) {
	s := RewriteSelect(r, b.snapshot())
	b.tables = s.Tables
	b.projection = s.Projection
	b.predicate = s.Predicate
	b.groupBy = s.GroupBy
	b.having = s.Having
	b.orderings = s.Orderings
	b.limit = s.Limit
	b.offset = s.Offset
}

// Build freezes the builder state into a Select. Every scalar must carry a
// type mapping, except dialect fragments.
func (b *SelectBuilder) Build() (*Select, error) {
	s := b.snapshot()
	s.Tags = append([]string(nil), b.tags...)
	if err := CheckTypeMappings(s); err != nil {
		return nil, err
	}
	return s, nil
}

// CheckTypeMappings verifies that every scalar under n has a type mapping
func CheckTypeMappings(n Node) error {
	var err error
	Inspect(n, func(c Node) bool {
		if err != nil {
			return false
		}
		s, ok := c.(Scalar)
		if !ok {
			return true
		}
		if _, frag := s.(*Fragment); frag {
			return false
		}
		if s.TypeMapping() == nil {
			err = fmt.Errorf("%w: %s", ErrMissingTypeMapping, Print(s))
			return false
		}
		return true
	})
	return err
}

type lifter struct {
	inner        *Select
	alias        string
	innerAliases map[string]bool
}

// lift projects the parts of s that reference the wrapped tables. Column
// references are projected individually; aggregates, window functions and
// correlated subqueries are projected whole since they cannot be evaluated
// over the derived table.
func (l *lifter) lift(s Scalar) Scalar {
	if s == nil || !References(s, l.innerAliases) {
		return s
	}
	switch x := s.(type) {
	case *ColumnRef:
		return l.project(x, x.Column)
	case *Func:
		if x.Aggregate {
			return l.project(x, "c")
		}
	case *RowNumber, *ScalarSubquery, *Exists:
		return l.project(x, "c")
	case *In:
		if x.Subquery != nil {
			return l.project(x, "c")
		}
	case *JSONPath:
		col := l.project(x.Column, x.Column.Column).(*ColumnRef)
		cp := *x
		cp.Column = col
		return &cp
	}
	return mapChildren(s, func(c Node) Node {
		if cs, ok := c.(Scalar); ok {
			return l.lift(cs)
		}
		if sel, ok := c.(*Select); ok {
			return liftSelect(l.lift, sel)
		}
		return c
	}).(Scalar)
}

func (l *lifter) project(expr Scalar, name string) Scalar {
	var alias string
	for _, p := range l.inner.Projection {
		if Equal(p.Expr, expr) {
			alias = p.Alias
			break
		}
	}
	if alias == "" {
		alias = uniqueColumnName(l.inner.Projection, name)
		l.inner.Projection = append(l.inner.Projection, &Projection{Expr: expr, Alias: alias})
	}
	return &ColumnRef{Table: l.alias, Column: alias, Nullable: IsNullable(expr), Mapping: expr.TypeMapping()}
}

// liftSelect retargets correlated references of a nested select
func liftSelect(lift Lifter, s *Select) *Select {
	return RewriteSelect(RewriteFunc(func(n Node) Node {
		if col, ok := n.(*ColumnRef); ok {
			return lift(col)
		}
		return n
	}), s)
}

func uniqueColumnName(projection []*Projection, name string) string {
	if name == "" {
		name = "c"
	}
	taken := func(candidate string) bool {
		for _, p := range projection {
			if p.Alias == candidate {
				return true
			}
		}
		return false
	}
	if !taken(name) {
		return name
	}
	for i := 0; ; i++ {
		candidate := name + strconv.Itoa(i)
		if !taken(candidate) {
			return candidate
		}
	}
}

// ColumnFor returns a reference to a projected column of a derived table
func ColumnFor(alias string, p *Projection) *ColumnRef {
	return &ColumnRef{Table: alias, Column: p.Alias, Nullable: IsNullable(p.Expr), Mapping: p.Expr.TypeMapping()}
}

// BooleanOr returns mapping, or the boolean mapping when mapping is nil
func BooleanOr(mapping *metadata.TypeMapping) *metadata.TypeMapping {
	if mapping == nil {
		return metadata.Boolean
	}
	return mapping
}
