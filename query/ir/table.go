package ir

// Table is a source in a select's FROM list
type Table interface {
	Node
	TableAlias() string
	table()
}

// TableRef is a mapped table
type TableRef struct {
	Name   string
	Schema string
	Alias  string
}

// SubqueryTable is a derived table
type SubqueryTable struct {
	Select *Select
	Alias  string
}

// FunctionTable is a table-valued function call
type FunctionTable struct {
	Name  string
	Args  []Scalar
	Alias string
}

// RawTable is user-supplied command text with {0}, {1}... placeholders bound
// to Args, or to the elements of ArgsParameter before they are flattened.
type RawTable struct {
	SQL           string
	Args          []Scalar
	ArgsParameter *Parameter
	Alias         string
}

// ValuesTable is an inline row set. RowsParameter is a single-column array
// parameter expanded into Rows per execution.
type ValuesTable struct {
	Columns       []string
	Rows          [][]Scalar
	RowsParameter *Parameter
	Alias         string
}

// SetOpKind is a set operator
type SetOpKind int

const (
	Union SetOpKind = iota
	Intersect
	Except
)

// String returns the SQL keyword
func (k SetOpKind) String() string {
	switch k {
	case Intersect:
		return "INTERSECT"
	case Except:
		return "EXCEPT"
	}
	return "UNION"
}

// SetOperation combines two selects with identical projections and is used
// as a derived table.
type SetOperation struct {
	Kind  SetOpKind
	All   bool
	Left  *Select
	Right *Select
	Alias string
}

// JoinKind is a join flavor
type JoinKind int

const (
	InnerJoin JoinKind = iota
	LeftJoin
	CrossJoin
	CrossApply
	OuterApply
)

// String returns a readable join name
func (k JoinKind) String() string {
	switch k {
	case LeftJoin:
		return "LEFT JOIN"
	case CrossJoin:
		return "CROSS JOIN"
	case CrossApply:
		return "CROSS APPLY"
	case OuterApply:
		return "OUTER APPLY"
	}
	return "INNER JOIN"
}

// Join adds Table to the FROM list. On is nil for cross joins and applies.
// Prunable joins are removed by the postprocessor when nothing references them.
type Join struct {
	Kind     JoinKind
	Table    Table
	On       Scalar
	Prunable bool
}

func (*TableRef) node()      {}
func (*SubqueryTable) node() {}
func (*FunctionTable) node() {}
func (*RawTable) node()      {}
func (*ValuesTable) node()   {}
func (*SetOperation) node()  {}
func (*Join) node()          {}

func (*TableRef) table()      {}
func (*SubqueryTable) table() {}
func (*FunctionTable) table() {}
func (*RawTable) table()      {}
func (*ValuesTable) table()   {}
func (*SetOperation) table()  {}
func (*Join) table()          {}

func (t *TableRef) TableAlias() string      { return t.Alias }
func (t *SubqueryTable) TableAlias() string { return t.Alias }
func (t *FunctionTable) TableAlias() string { return t.Alias }
func (t *RawTable) TableAlias() string      { return t.Alias }
func (t *ValuesTable) TableAlias() string   { return t.Alias }
func (t *SetOperation) TableAlias() string  { return t.Alias }
func (j *Join) TableAlias() string          { return j.Table.TableAlias() }

// withAlias returns a copy of t carrying alias
func withAlias(t Table, alias string) Table {
	switch x := t.(type) {
	case *TableRef:
		cp := *x
		cp.Alias = alias
		return &cp
	case *SubqueryTable:
		cp := *x
		cp.Alias = alias
		return &cp
	case *FunctionTable:
		cp := *x
		cp.Alias = alias
		return &cp
	case *RawTable:
		cp := *x
		cp.Alias = alias
		return &cp
	case *ValuesTable:
		cp := *x
		cp.Alias = alias
		return &cp
	case *SetOperation:
		cp := *x
		cp.Alias = alias
		return &cp
	case *Join:
		cp := *x
		cp.Table = withAlias(x.Table, alias)
		return &cp
	}
	return t
}
