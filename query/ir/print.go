package ir

import (
	"fmt"
	"strings"
)

// Print renders a node as canonical, SQL-like text. Equal trees print
// identically; type mappings are not printed.
func Print(n Node) string {
	p := &printer{}
	p.node(n)
	return p.b.String()
}

// Equal reports whether two nodes are structurally equal, ignoring type
// mappings.
func Equal(a, b Node) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return Print(a) == Print(b)
}

type printer struct {
	b      strings.Builder
	indent int
}

func (p *printer) write(s string) {
	p.b.WriteString(s)
}

func (p *printer) newline() {
	p.b.WriteByte('\n')
	p.b.WriteString(strings.Repeat("  ", p.indent))
}

func (p *printer) node(n Node) {
	switch x := n.(type) {
	case *Select:
		p.sel(x)
	case Table:
		p.table(x)
	case Scalar:
		p.scalar(x)
	case *Projection:
		p.scalar(x.Expr)
		if x.Alias != "" {
			p.write(" AS " + x.Alias)
		}
	case *Ordering:
		p.ordering(x)
	}
}

func (p *printer) nested(s *Select) {
	p.write("(")
	p.indent++
	p.newline()
	p.sel(s)
	p.indent--
	p.newline()
	p.write(")")
}

func (p *printer) sel(s *Select) {
	p.write("SELECT ")
	if s.Distinct {
		p.write("DISTINCT ")
	}
	if len(s.Projection) == 0 {
		p.write("1")
	}
	for i, proj := range s.Projection {
		if i > 0 {
			p.write(", ")
		}
		p.node(proj)
	}
	for i, t := range s.Tables {
		p.newline()
		if i == 0 {
			p.write("FROM ")
		}
		p.table(t)
	}
	if s.Predicate != nil {
		p.newline()
		p.write("WHERE ")
		p.scalar(s.Predicate)
	}
	if len(s.GroupBy) > 0 {
		p.newline()
		p.write("GROUP BY ")
		p.scalars(s.GroupBy)
	}
	if s.Having != nil {
		p.newline()
		p.write("HAVING ")
		p.scalar(s.Having)
	}
	if len(s.Orderings) > 0 {
		p.newline()
		p.write("ORDER BY ")
		for i, o := range s.Orderings {
			if i > 0 {
				p.write(", ")
			}
			p.ordering(o)
		}
	}
	if s.Limit != nil {
		p.newline()
		p.write("LIMIT ")
		p.scalar(s.Limit)
	}
	if s.Offset != nil {
		p.newline()
		p.write("OFFSET ")
		p.scalar(s.Offset)
	}
}

func (p *printer) ordering(o *Ordering) {
	p.scalar(o.Expr)
	if o.Descending {
		p.write(" DESC")
	} else {
		p.write(" ASC")
	}
}

func (p *printer) table(t Table) {
	switch x := t.(type) {
	case *TableRef:
		if x.Schema != "" {
			p.write(x.Schema + ".")
		}
		p.write(x.Name)
	case *SubqueryTable:
		p.nested(x.Select)
	case *FunctionTable:
		p.write(x.Name + "(")
		p.scalars(x.Args)
		p.write(")")
	case *RawTable:
		p.write(fmt.Sprintf("RAW(%q", x.SQL))
		if x.ArgsParameter != nil {
			p.write(", ")
			p.scalar(x.ArgsParameter)
		}
		for _, a := range x.Args {
			p.write(", ")
			p.scalar(a)
		}
		p.write(")")
	case *ValuesTable:
		p.write("VALUES ")
		if x.RowsParameter != nil {
			p.scalar(x.RowsParameter)
		}
		for i, row := range x.Rows {
			if i > 0 {
				p.write(", ")
			}
			p.write("(")
			p.scalars(row)
			p.write(")")
		}
	case *SetOperation:
		p.write("(")
		p.indent++
		p.newline()
		p.sel(x.Left)
		p.newline()
		p.write(x.Kind.String())
		if x.All {
			p.write(" ALL")
		}
		p.newline()
		p.sel(x.Right)
		p.indent--
		p.newline()
		p.write(")")
	case *Join:
		p.write(x.Kind.String() + " ")
		p.table(x.Table)
		if x.On != nil {
			p.write(" ON ")
			p.scalar(x.On)
		}
		return
	}
	p.write(" AS " + t.TableAlias())
	if v, ok := t.(*ValuesTable); ok {
		p.write("(" + strings.Join(v.Columns, ", ") + ")")
	}
}

func (p *printer) scalars(xs []Scalar) {
	for i, x := range xs {
		if i > 0 {
			p.write(", ")
		}
		p.scalar(x)
	}
}

func (p *printer) scalar(s Scalar) {
	switch x := s.(type) {
	case *ColumnRef:
		p.write(x.Table + "." + x.Column)
	case *Constant:
		p.write(FormatConstant(x.Value))
	case *Parameter:
		p.write("@" + x.Name)
	case *Binary:
		p.write("(")
		p.scalar(x.Left)
		p.write(" " + x.Op.String() + " ")
		p.scalar(x.Right)
		p.write(")")
	case *Unary:
		switch x.Op {
		case OpNot:
			p.write("NOT ")
			p.scalar(x.Operand)
		case OpNegate:
			p.write("-")
			p.scalar(x.Operand)
		case OpIsNull:
			p.scalar(x.Operand)
			p.write(" IS NULL")
		case OpIsNotNull:
			p.scalar(x.Operand)
			p.write(" IS NOT NULL")
		}
	case *Func:
		p.write(x.Name + "(")
		if x.Distinct {
			p.write("DISTINCT ")
		}
		if x.Star {
			p.write("*")
		} else {
			p.scalars(x.Args)
		}
		p.write(")")
	case *Case:
		p.write("CASE")
		if x.Operand != nil {
			p.write(" ")
			p.scalar(x.Operand)
		}
		for _, w := range x.Whens {
			p.write(" WHEN ")
			p.scalar(w.Test)
			p.write(" THEN ")
			p.scalar(w.Result)
		}
		if x.Else != nil {
			p.write(" ELSE ")
			p.scalar(x.Else)
		}
		p.write(" END")
	case *Exists:
		if x.Negated {
			p.write("NOT ")
		}
		p.write("EXISTS ")
		p.nested(x.Subquery)
	case *In:
		p.scalar(x.Item)
		if x.Negated {
			p.write(" NOT")
		}
		p.write(" IN ")
		switch {
		case x.Subquery != nil:
			p.nested(x.Subquery)
		case x.ValuesParameter != nil:
			p.scalar(x.ValuesParameter)
		default:
			p.write("(")
			p.scalars(x.Values)
			p.write(")")
		}
	case *Like:
		p.scalar(x.Match)
		p.write(" LIKE ")
		p.scalar(x.Pattern)
		if x.Escape != nil {
			p.write(" ESCAPE ")
			p.scalar(x.Escape)
		}
	case *Collate:
		p.scalar(x.Operand)
		p.write(" COLLATE " + x.Collation)
	case *RowNumber:
		p.write("ROW_NUMBER() OVER(")
		if len(x.Partitions) > 0 {
			p.write("PARTITION BY ")
			p.scalars(x.Partitions)
			if len(x.Orderings) > 0 {
				p.write(" ")
			}
		}
		if len(x.Orderings) > 0 {
			p.write("ORDER BY ")
			for i, o := range x.Orderings {
				if i > 0 {
					p.write(", ")
				}
				p.ordering(o)
			}
		}
		p.write(")")
	case *ScalarSubquery:
		p.nested(x.Subquery)
	case *JSONPath:
		p.write("JSON(")
		p.scalar(x.Column)
		p.write(", '$")
		for _, seg := range x.Path {
			p.write("." + seg)
		}
		p.write("'")
		if x.AsJSON {
			p.write(", json")
		}
		p.write(")")
	case *Fragment:
		p.write(x.SQL)
	}
}

// FormatConstant renders a literal value the way Print does
func FormatConstant(v any) string {
	switch c := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(c, "'", "''") + "'"
	case bool:
		if c {
			return "TRUE"
		}
		return "FALSE"
	case []byte:
		return fmt.Sprintf("X'%X'", c)
	case fmt.Stringer:
		return "'" + strings.ReplaceAll(c.String(), "'", "''") + "'"
	}
	return fmt.Sprintf("%v", v)
}
