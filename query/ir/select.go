package ir

// Select is one tabular query. Tables[0] is the FROM source and the rest are
// joins. Projection order defines the positional mapping to row cells.
type Select struct {
	Tables     []Table
	Projection []*Projection
	Predicate  Scalar
	GroupBy    []Scalar
	Having     Scalar
	Orderings  []*Ordering
	Limit      Scalar
	Offset     Scalar
	Distinct   bool
	Tags       []string
}

// Projection is one output column
type Projection struct {
	Expr  Scalar
	Alias string
}

// Ordering is one ORDER BY entry
type Ordering struct {
	Expr       Scalar
	Descending bool
}

func (*Select) node()     {}
func (*Projection) node() {}
func (*Ordering) node()   {}

// ProjectionIndex returns the ordinal of the projection whose expression
// equals expr, or -1.
func (s *Select) ProjectionIndex(expr Scalar) int {
	for i, p := range s.Projection {
		if Equal(p.Expr, expr) {
			return i
		}
	}
	return -1
}

// TableAliases returns the aliases declared directly by the select's tables
func (s *Select) TableAliases() []string {
	out := make([]string, 0, len(s.Tables))
	for _, t := range s.Tables {
		out = append(out, t.TableAlias())
	}
	return out
}

// IsSimple reports whether the select only filters and projects a single
// source, so it can be merged into an enclosing select.
func (s *Select) IsSimple() bool {
	return len(s.Tables) == 1 && len(s.GroupBy) == 0 && s.Having == nil &&
		s.Limit == nil && s.Offset == nil && !s.Distinct
}

// clone returns a shallow copy with fresh top-level slices
func (s *Select) clone() *Select {
	cp := *s
	cp.Tables = append([]Table(nil), s.Tables...)
	cp.Projection = append([]*Projection(nil), s.Projection...)
	cp.GroupBy = append([]Scalar(nil), s.GroupBy...)
	cp.Orderings = append([]*Ordering(nil), s.Orderings...)
	cp.Tags = append([]string(nil), s.Tags...)
	return &cp
}
