// Package ir provides the relational intermediate representation a query is
// translated into: select nodes, table sources, joins, set operations and
// typed scalar expressions.
//
// Trees are assembled through a SelectBuilder and treated as immutable once
// built; rewrites copy the nodes they change and share the rest.
package ir

import (
	"github.com/satishbabariya/relquery/metadata"
)

// Node is any IR node
type Node interface {
	node()
}

// Scalar is a value-producing expression. Every scalar in a built tree
// carries a type mapping, except Fragment.
type Scalar interface {
	Node
	TypeMapping() *metadata.TypeMapping
	scalar()
}

// ColumnRef references a column of a table source by alias. It is a weak,
// name-based reference: renaming an alias retargets it without graph surgery.
type ColumnRef struct {
	Table    string
	Column   string
	Nullable bool
	Mapping  *metadata.TypeMapping
}

// Constant is a literal value
type Constant struct {
	Value   any
	Mapping *metadata.TypeMapping
}

// Parameter is a named runtime value bound at execution.
type Parameter struct {
	Name    string
	Mapping *metadata.TypeMapping
}

// BinaryOp is a binary operator
type BinaryOp int

const (
	OpEqual BinaryOp = iota
	OpNotEqual
	OpLess
	OpLessEqual
	OpGreater
	OpGreaterEqual
	OpAnd
	OpOr
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpModulo
	OpConcat
)

// IsComparison reports whether the operator compares two values
func (op BinaryOp) IsComparison() bool {
	return op >= OpEqual && op <= OpGreaterEqual
}

// IsLogical reports whether the operator is AND or OR
func (op BinaryOp) IsLogical() bool {
	return op == OpAnd || op == OpOr
}

// String returns the SQL spelling
func (op BinaryOp) String() string {
	switch op {
	case OpEqual:
		return "="
	case OpNotEqual:
		return "<>"
	case OpLess:
		return "<"
	case OpLessEqual:
		return "<="
	case OpGreater:
		return ">"
	case OpGreaterEqual:
		return ">="
	case OpAnd:
		return "AND"
	case OpOr:
		return "OR"
	case OpAdd:
		return "+"
	case OpSubtract:
		return "-"
	case OpMultiply:
		return "*"
	case OpDivide:
		return "/"
	case OpModulo:
		return "%"
	case OpConcat:
		return "||"
	}
	return "?"
}

// Binary applies a binary operator
type Binary struct {
	Op      BinaryOp
	Left    Scalar
	Right   Scalar
	Mapping *metadata.TypeMapping
}

// UnaryOp is a unary operator
type UnaryOp int

const (
	OpNot UnaryOp = iota
	OpNegate
	OpIsNull
	OpIsNotNull
)

// Unary applies a unary operator
type Unary struct {
	Op      UnaryOp
	Operand Scalar
	Mapping *metadata.TypeMapping
}

// Func is a function call, including aggregates.
type Func struct {
	Name      string
	Args      []Scalar
	Aggregate bool
	// Distinct applies DISTINCT to the aggregate argument
	Distinct bool
	// Star renders the single argument as *, as in COUNT(*)
	Star     bool
	Nullable bool
	Mapping  *metadata.TypeMapping
}

// When is one CASE branch
type When struct {
	Test   Scalar
	Result Scalar
}

// Case is a searched (Operand nil) or simple CASE expression
type Case struct {
	Operand Scalar
	Whens   []When
	Else    Scalar
	Mapping *metadata.TypeMapping
}

// Exists tests whether a subquery returns rows
type Exists struct {
	Subquery *Select
	Negated  bool
	Mapping  *metadata.TypeMapping
}

// In tests membership in a value list, an array parameter or a subquery.
// Exactly one of Values, ValuesParameter and Subquery is set; an empty
// Values list is rendered as a constant by the parameter processor.
type In struct {
	Item            Scalar
	Values          []Scalar
	ValuesParameter *Parameter
	Subquery        *Select
	Negated         bool
	Mapping         *metadata.TypeMapping
}

// Like is a LIKE match with an optional escape character
type Like struct {
	Match   Scalar
	Pattern Scalar
	Escape  Scalar
	Mapping *metadata.TypeMapping
}

// Collate applies a collation to its operand
type Collate struct {
	Operand   Scalar
	Collation string
}

// RowNumber is ROW_NUMBER() OVER (PARTITION BY ... ORDER BY ...)
type RowNumber struct {
	Partitions []Scalar
	Orderings  []*Ordering
	Mapping    *metadata.TypeMapping
}

// ScalarSubquery is a subquery returning a single value
type ScalarSubquery struct {
	Subquery *Select
	Mapping  *metadata.TypeMapping
}

// JSONPath navigates into a JSON document column. An empty Path yields the
// document itself. AsJSON keeps the result a JSON fragment instead of
// unwrapping a scalar.
type JSONPath struct {
	Column  *ColumnRef
	Path    []string
	AsJSON  bool
	Mapping *metadata.TypeMapping
}

// Fragment is verbatim dialect text. It never carries a type mapping.
type Fragment struct {
	SQL string
}

func (*ColumnRef) node()      {}
func (*Constant) node()       {}
func (*Parameter) node()      {}
func (*Binary) node()         {}
func (*Unary) node()          {}
func (*Func) node()           {}
func (*Case) node()           {}
func (*Exists) node()         {}
func (*In) node()             {}
func (*Like) node()           {}
func (*Collate) node()        {}
func (*RowNumber) node()      {}
func (*ScalarSubquery) node() {}
func (*JSONPath) node()       {}
func (*Fragment) node()       {}

func (*ColumnRef) scalar()      {}
func (*Constant) scalar()       {}
func (*Parameter) scalar()      {}
func (*Binary) scalar()         {}
func (*Unary) scalar()          {}
func (*Func) scalar()           {}
func (*Case) scalar()           {}
func (*Exists) scalar()         {}
func (*In) scalar()             {}
func (*Like) scalar()           {}
func (*Collate) scalar()        {}
func (*RowNumber) scalar()      {}
func (*ScalarSubquery) scalar() {}
func (*JSONPath) scalar()       {}
func (*Fragment) scalar()       {}

func (c *ColumnRef) TypeMapping() *metadata.TypeMapping      { return c.Mapping }
func (c *Constant) TypeMapping() *metadata.TypeMapping       { return c.Mapping }
func (p *Parameter) TypeMapping() *metadata.TypeMapping      { return p.Mapping }
func (b *Binary) TypeMapping() *metadata.TypeMapping         { return b.Mapping }
func (u *Unary) TypeMapping() *metadata.TypeMapping          { return u.Mapping }
func (f *Func) TypeMapping() *metadata.TypeMapping           { return f.Mapping }
func (c *Case) TypeMapping() *metadata.TypeMapping           { return c.Mapping }
func (e *Exists) TypeMapping() *metadata.TypeMapping         { return e.Mapping }
func (i *In) TypeMapping() *metadata.TypeMapping             { return i.Mapping }
func (l *Like) TypeMapping() *metadata.TypeMapping           { return l.Mapping }
func (c *Collate) TypeMapping() *metadata.TypeMapping        { return c.Operand.TypeMapping() }
func (r *RowNumber) TypeMapping() *metadata.TypeMapping      { return r.Mapping }
func (s *ScalarSubquery) TypeMapping() *metadata.TypeMapping { return s.Mapping }
func (j *JSONPath) TypeMapping() *metadata.TypeMapping       { return j.Mapping }
func (*Fragment) TypeMapping() *metadata.TypeMapping         { return nil }

// Col creates a column reference
func Col(table, column string, mapping *metadata.TypeMapping, nullable bool) *ColumnRef {
	return &ColumnRef{Table: table, Column: column, Mapping: mapping, Nullable: nullable}
}

// Const creates a constant
func Const(v any, mapping *metadata.TypeMapping) *Constant {
	return &Constant{Value: v, Mapping: mapping}
}

// True and False are the boolean constants
var (
	True  = &Constant{Value: true, Mapping: metadata.Boolean}
	False = &Constant{Value: false, Mapping: metadata.Boolean}
)

// Bool returns the boolean constant for v
func Bool(v bool) *Constant {
	if v {
		return True
	}
	return False
}

// IsTrue reports whether s is the constant true
func IsTrue(s Scalar) bool {
	c, ok := s.(*Constant)
	return ok && c.Value == true
}

// IsFalse reports whether s is the constant false
func IsFalse(s Scalar) bool {
	c, ok := s.(*Constant)
	return ok && c.Value == false
}

// IsNullConstant reports whether s is a NULL literal
func IsNullConstant(s Scalar) bool {
	c, ok := s.(*Constant)
	return ok && c.Value == nil
}

// Compare creates a boolean comparison
func Compare(op BinaryOp, left, right Scalar) *Binary {
	return &Binary{Op: op, Left: left, Right: right, Mapping: metadata.Boolean}
}

// Eq creates left = right
func Eq(left, right Scalar) *Binary {
	return Compare(OpEqual, left, right)
}

// And conjoins predicates, eliding literal true operands. A nil operand is
// treated as true.
func And(left, right Scalar) Scalar {
	switch {
	case left == nil || IsTrue(left):
		return right
	case right == nil || IsTrue(right):
		return left
	}
	return &Binary{Op: OpAnd, Left: left, Right: right, Mapping: metadata.Boolean}
}

// Or disjoins predicates, eliding literal false operands
func Or(left, right Scalar) Scalar {
	switch {
	case left == nil || IsFalse(left):
		return right
	case right == nil || IsFalse(right):
		return left
	}
	return &Binary{Op: OpOr, Left: left, Right: right, Mapping: metadata.Boolean}
}

// Not negates a predicate
func Not(operand Scalar) Scalar {
	switch {
	case IsTrue(operand):
		return False
	case IsFalse(operand):
		return True
	}
	if u, ok := operand.(*Unary); ok && u.Op == OpNot {
		return u.Operand
	}
	return &Unary{Op: OpNot, Operand: operand, Mapping: metadata.Boolean}
}

// IsNull tests operand IS NULL
func IsNull(operand Scalar) *Unary {
	return &Unary{Op: OpIsNull, Operand: operand, Mapping: metadata.Boolean}
}

// IsNotNull tests operand IS NOT NULL
func IsNotNull(operand Scalar) *Unary {
	return &Unary{Op: OpIsNotNull, Operand: operand, Mapping: metadata.Boolean}
}

// Coalesce returns the first non-null argument
func Coalesce(args ...Scalar) *Func {
	nullable := true
	for _, a := range args {
		if !IsNullable(a) {
			nullable = false
		}
	}
	return &Func{Name: "COALESCE", Args: args, Nullable: nullable, Mapping: args[0].TypeMapping()}
}

// IsNullable reports whether the expression may evaluate to NULL.
func IsNullable(s Scalar) bool {
	switch x := s.(type) {
	case *ColumnRef:
		return x.Nullable
	case *Constant:
		return x.Value == nil
	case *Parameter:
		return true
	case *Binary:
		return IsNullable(x.Left) || IsNullable(x.Right)
	case *Unary:
		if x.Op == OpIsNull || x.Op == OpIsNotNull {
			return false
		}
		return IsNullable(x.Operand)
	case *Func:
		return x.Nullable
	case *Case:
		if x.Else == nil {
			return true
		}
		for _, w := range x.Whens {
			if IsNullable(w.Result) {
				return true
			}
		}
		return IsNullable(x.Else)
	case *Exists, *RowNumber:
		return false
	case *In:
		if x.Subquery != nil || x.ValuesParameter != nil {
			return true
		}
		if IsNullable(x.Item) {
			return true
		}
		for _, v := range x.Values {
			if IsNullable(v) {
				return true
			}
		}
		return false
	case *Like:
		return IsNullable(x.Match) || IsNullable(x.Pattern)
	case *Collate:
		return IsNullable(x.Operand)
	}
	return true
}

// InValues tests item against a list of values: the non-null values form an
// IN list and a NULL among them adds an IS NULL test. The negated form uses
// NOT IN and IS NOT NULL. With no values at all the test is constant false,
// or true when negated. Under emulated null semantics a negated test over a
// nullable item also matches NULL items.
func InValues(item Scalar, values []Scalar, negated, emulated bool) Scalar {
	var nonNull []Scalar
	hasNull := false
	for _, v := range values {
		if IsNullConstant(v) {
			hasNull = true
			continue
		}
		nonNull = append(nonNull, v)
	}

	var in Scalar
	switch len(nonNull) {
	case 0:
	case 1:
		op := OpEqual
		if negated {
			op = OpNotEqual
		}
		in = Compare(op, item, nonNull[0])
	default:
		in = &In{Item: item, Values: nonNull, Negated: negated, Mapping: metadata.Boolean}
	}

	if !negated {
		if hasNull {
			return Or(in, IsNull(item))
		}
		if in == nil {
			return False
		}
		return in
	}
	if hasNull {
		return And(in, IsNotNull(item))
	}
	if in == nil {
		return True
	}
	if emulated && IsNullable(item) {
		return Or(in, IsNull(item))
	}
	return in
}
