// Package ast defines the object-query AST: a tree of query operators over
// entity sources, with lambda expressions over range variables.
package ast

import (
	"github.com/satishbabariya/relquery/metadata"
)

// Query represents a query operator
type Query interface {
	Type() NodeType
	query()
}

// NodeType represents the type of query node
type NodeType string

const (
	NodeTypeEntitySource     NodeType = "EntitySource"
	NodeTypeInlineSource     NodeType = "InlineSource"
	NodeTypeParameterSource  NodeType = "ParameterSource"
	NodeTypeRawSource        NodeType = "RawSource"
	NodeTypeFunctionSource   NodeType = "FunctionSource"
	NodeTypeNavigationSource NodeType = "NavigationSource"
	NodeTypeWhere            NodeType = "Where"
	NodeTypeSelect           NodeType = "Select"
	NodeTypeOrderBy          NodeType = "OrderBy"
	NodeTypeSkip             NodeType = "Skip"
	NodeTypeTake             NodeType = "Take"
	NodeTypeDistinct         NodeType = "Distinct"
	NodeTypeInclude          NodeType = "Include"
	NodeTypeGroupBy          NodeType = "GroupBy"
	NodeTypeSetOperation     NodeType = "SetOperation"
	NodeTypeJoin             NodeType = "Join"
	NodeTypeTerminal         NodeType = "Terminal"
	NodeTypeQueryMode        NodeType = "QueryMode"
)

// Lambda is a function of range variables
type Lambda struct {
	Params []string
	Body   Expr
}

// Fn creates a one-parameter lambda
func Fn(param string, body Expr) *Lambda {
	return &Lambda{Params: []string{param}, Body: body}
}

// EntitySource represents all rows of a mapped entity
type EntitySource struct {
	Entity string
}

// InlineSource represents a constant collection of scalar values
type InlineSource struct {
	Values  []any
	Mapping *metadata.TypeMapping
}

// ParameterSource represents an array parameter used as a collection
type ParameterSource struct {
	Name    string
	Mapping *metadata.TypeMapping
}

// RawSource represents entity rows produced by raw command text. Placeholders
// {0}, {1}... bind to Args, or to the elements of the ArgsParameter array.
type RawSource struct {
	Entity        string
	SQL           string
	Args          []Expr
	ArgsParameter string
}

// FunctionSource represents entity rows returned by a table-valued function
type FunctionSource struct {
	Entity   string
	Function string
	Args     []Expr
}

// NavigationSource represents the collection navigation of an outer range
// variable, used inside correlated subqueries. An empty Navigation makes Of
// itself the collection, as for the elements of a grouping.
type NavigationSource struct {
	Of         Expr
	Navigation string
}

// Where represents filtering
type Where struct {
	Source    Query
	Predicate *Lambda
}

// Select represents a projection
type Select struct {
	Source   Query
	Selector *Lambda
}

// OrderBy represents an ordering. Then marks a subordinate ordering (ThenBy).
type OrderBy struct {
	Source     Query
	Key        *Lambda
	Descending bool
	Then       bool
}

// Skip represents an offset
type Skip struct {
	Source Query
	Count  Expr
}

// Take represents a limit
type Take struct {
	Source Query
	Count  Expr
}

// Distinct removes duplicates
type Distinct struct {
	Source Query
}

// Include eagerly loads a navigation path. The filter, orderings and paging
// apply to the last segment when it is a collection.
type Include struct {
	Source    Query
	Path      []string
	Filter    *Lambda
	Orderings []IncludeOrdering
	Skip      Expr
	Take      Expr
}

// IncludeOrdering orders an included collection
type IncludeOrdering struct {
	Key        *Lambda
	Descending bool
}

// GroupBy groups by a key; Element optionally projects each grouped element
type GroupBy struct {
	Source  Query
	Key     *Lambda
	Element *Lambda
}

// SetKind represents set operators
type SetKind string

const (
	SetUnion     SetKind = "Union"
	SetConcat    SetKind = "Concat"
	SetIntersect SetKind = "Intersect"
	SetExcept    SetKind = "Except"
)

// SetOperation combines two queries of the same shape
type SetOperation struct {
	Kind  SetKind
	Left  Query
	Right Query
}

// Join represents an inner join on keys. Result takes the outer and inner
// range variables.
type Join struct {
	Outer    Query
	Inner    Query
	OuterKey *Lambda
	InnerKey *Lambda
	Result   *Lambda
}

// TerminalOp represents terminal operators
type TerminalOp string

const (
	OpFirst           TerminalOp = "First"
	OpFirstOrDefault  TerminalOp = "FirstOrDefault"
	OpSingle          TerminalOp = "Single"
	OpSingleOrDefault TerminalOp = "SingleOrDefault"
	OpCount           TerminalOp = "Count"
	OpLongCount       TerminalOp = "LongCount"
	OpSum             TerminalOp = "Sum"
	OpMin             TerminalOp = "Min"
	OpMax             TerminalOp = "Max"
	OpAverage         TerminalOp = "Average"
	OpAny             TerminalOp = "Any"
	OpAll             TerminalOp = "All"
	OpContains        TerminalOp = "Contains"
)

// IsAggregate reports whether the operator reduces to a single value
func (op TerminalOp) IsAggregate() bool {
	switch op {
	case OpCount, OpLongCount, OpSum, OpMin, OpMax, OpAverage:
		return true
	}
	return false
}

// Terminal reduces a query to one result. Lambda is the optional predicate
// (First, Single, Count, Any, All) or selector (Sum, Min, Max, Average); Item
// is the value tested by Contains.
type Terminal struct {
	Source Query
	Op     TerminalOp
	Lambda *Lambda
	Item   Expr
}

// QueryMode switches between single-query and split-query loading of
// collections.
type QueryMode struct {
	Source Query
	Split  bool
}

func (*EntitySource) Type() NodeType     { return NodeTypeEntitySource }
func (*InlineSource) Type() NodeType     { return NodeTypeInlineSource }
func (*ParameterSource) Type() NodeType  { return NodeTypeParameterSource }
func (*RawSource) Type() NodeType        { return NodeTypeRawSource }
func (*FunctionSource) Type() NodeType   { return NodeTypeFunctionSource }
func (*NavigationSource) Type() NodeType { return NodeTypeNavigationSource }
func (*Where) Type() NodeType            { return NodeTypeWhere }
func (*Select) Type() NodeType           { return NodeTypeSelect }
func (*OrderBy) Type() NodeType          { return NodeTypeOrderBy }
func (*Skip) Type() NodeType             { return NodeTypeSkip }
func (*Take) Type() NodeType             { return NodeTypeTake }
func (*Distinct) Type() NodeType         { return NodeTypeDistinct }
func (*Include) Type() NodeType          { return NodeTypeInclude }
func (*GroupBy) Type() NodeType          { return NodeTypeGroupBy }
func (*SetOperation) Type() NodeType     { return NodeTypeSetOperation }
func (*Join) Type() NodeType             { return NodeTypeJoin }
func (*Terminal) Type() NodeType         { return NodeTypeTerminal }
func (*QueryMode) Type() NodeType        { return NodeTypeQueryMode }

func (*EntitySource) query()     {}
func (*InlineSource) query()     {}
func (*ParameterSource) query()  {}
func (*RawSource) query()        {}
func (*FunctionSource) query()   {}
func (*NavigationSource) query() {}
func (*Where) query()            {}
func (*Select) query()           {}
func (*OrderBy) query()          {}
func (*Skip) query()             {}
func (*Take) query()             {}
func (*Distinct) query()         {}
func (*Include) query()          {}
func (*GroupBy) query()          {}
func (*SetOperation) query()     {}
func (*Join) query()             {}
func (*Terminal) query()         {}
func (*QueryMode) query()        {}

// SourceOf returns the input of a unary operator, or nil for roots and
// binary operators.
func SourceOf(q Query) Query {
	switch x := q.(type) {
	case *Where:
		return x.Source
	case *Select:
		return x.Source
	case *OrderBy:
		return x.Source
	case *Skip:
		return x.Source
	case *Take:
		return x.Source
	case *Distinct:
		return x.Source
	case *Include:
		return x.Source
	case *GroupBy:
		return x.Source
	case *Terminal:
		return x.Source
	case *QueryMode:
		return x.Source
	}
	return nil
}
