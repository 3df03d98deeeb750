package ast

import (
	"strings"
)

// Expr represents an expression inside a lambda
type Expr interface {
	expr()
}

// Ref references a lambda parameter (range variable)
type Ref struct {
	Name string
}

// Member accesses a property, navigation or owned member
type Member struct {
	Target Expr
	Name   string
}

// Constant is a literal value
type Constant struct {
	Value any
}

// Parameter is a value supplied per execution
type Parameter struct {
	Name string
}

// BinaryOp represents binary operators
type BinaryOp string

const (
	OpEqual        BinaryOp = "=="
	OpNotEqual     BinaryOp = "!="
	OpLess         BinaryOp = "<"
	OpLessEqual    BinaryOp = "<="
	OpGreater      BinaryOp = ">"
	OpGreaterEqual BinaryOp = ">="
	OpAndAlso      BinaryOp = "&&"
	OpOrElse       BinaryOp = "||"
	OpAdd          BinaryOp = "+"
	OpSubtract     BinaryOp = "-"
	OpMultiply     BinaryOp = "*"
	OpDivide       BinaryOp = "/"
	OpModulo       BinaryOp = "%"
	OpCoalesce     BinaryOp = "??"
)

// Binary applies a binary operator
type Binary struct {
	Op    BinaryOp
	Left  Expr
	Right Expr
}

// UnaryOp represents unary operators
type UnaryOp string

const (
	OpNot    UnaryOp = "!"
	OpNegate UnaryOp = "-"
)

// Unary applies a unary operator
type Unary struct {
	Op      UnaryOp
	Operand Expr
}

// Call invokes a method on Target, or a static function when Target is nil
type Call struct {
	Target Expr
	Method string
	Args   []Expr
}

// Conditional is test ? then : else
type Conditional struct {
	Test Expr
	Then Expr
	Else Expr
}

// Field is one member of an anonymous object
type Field struct {
	Name  string
	Value Expr
}

// New creates an anonymous object
type New struct {
	Fields []Field
}

// Subquery embeds a correlated query, reduced to a value by a Terminal or
// projected as a collection.
type Subquery struct {
	Query Query
}

// In tests membership of Item in constant Values or an array Parameter
type In struct {
	Item      Expr
	Values    []any
	Parameter string
}

func (*Ref) expr()         {}
func (*Member) expr()      {}
func (*Constant) expr()    {}
func (*Parameter) expr()   {}
func (*Binary) expr()      {}
func (*Unary) expr()       {}
func (*Call) expr()        {}
func (*Conditional) expr() {}
func (*New) expr()         {}
func (*Subquery) expr()    {}
func (*In) expr()          {}

// P builds a member path from dotted text: P("b.Blog.Name") is
// Member(Member(Ref(b), Blog), Name).
func P(path string) Expr {
	parts := strings.Split(path, ".")
	var e Expr = &Ref{Name: parts[0]}
	for _, part := range parts[1:] {
		e = &Member{Target: e, Name: part}
	}
	return e
}

// C creates a constant
func C(v any) *Constant { return &Constant{Value: v} }

// Param creates a parameter reference
func Param(name string) *Parameter { return &Parameter{Name: name} }

// Bin creates a binary expression
func Bin(op BinaryOp, left, right Expr) *Binary {
	return &Binary{Op: op, Left: left, Right: right}
}

// Eq creates left == right
func Eq(left, right Expr) *Binary { return Bin(OpEqual, left, right) }

// Ne creates left != right
func Ne(left, right Expr) *Binary { return Bin(OpNotEqual, left, right) }

// Gt creates left > right
func Gt(left, right Expr) *Binary { return Bin(OpGreater, left, right) }

// Ge creates left >= right
func Ge(left, right Expr) *Binary { return Bin(OpGreaterEqual, left, right) }

// Lt creates left < right
func Lt(left, right Expr) *Binary { return Bin(OpLess, left, right) }

// Le creates left <= right
func Le(left, right Expr) *Binary { return Bin(OpLessEqual, left, right) }

// And conjoins expressions left to right
func And(exprs ...Expr) Expr {
	return fold(OpAndAlso, exprs)
}

// Or disjoins expressions left to right
func Or(exprs ...Expr) Expr {
	return fold(OpOrElse, exprs)
}

func fold(op BinaryOp, exprs []Expr) Expr {
	if len(exprs) == 0 {
		return C(op == OpAndAlso)
	}
	out := exprs[0]
	for _, e := range exprs[1:] {
		out = Bin(op, out, e)
	}
	return out
}

// Not negates an expression
func Not(e Expr) *Unary { return &Unary{Op: OpNot, Operand: e} }

// Method calls a method on a receiver
func Method(target Expr, method string, args ...Expr) *Call {
	return &Call{Target: target, Method: method, Args: args}
}

// Static calls a static function
func Static(fn string, args ...Expr) *Call {
	return &Call{Method: fn, Args: args}
}

// Obj creates an anonymous object
func Obj(fields ...Field) *New { return &New{Fields: fields} }

// F creates an anonymous object field
func F(name string, value Expr) Field { return Field{Name: name, Value: value} }

// Sub embeds a correlated query
func Sub(q Query) *Subquery { return &Subquery{Query: q} }

// Nav is the collection navigation of a range variable as a query source
func Nav(of Expr, navigation string) *NavigationSource {
	return &NavigationSource{Of: of, Navigation: navigation}
}

// Elements uses a collection-valued expression, such as a grouping, as a
// query source
func Elements(of Expr) *NavigationSource {
	return &NavigationSource{Of: of}
}

// Agg reduces the elements of a collection-valued expression: Agg(P("g"),
// OpSum, Fn("x", P("x.Price"))) is the sum of the prices of a grouping.
func Agg(of Expr, op TerminalOp, l *Lambda) *Subquery {
	return Sub(&Terminal{Source: Elements(of), Op: op, Lambda: l})
}
