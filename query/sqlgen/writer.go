package sqlgen

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/hashicorp/go-version"

	"github.com/satishbabariya/relquery/query/ir"
)

// rawPlaceholder matches the {n} argument markers of raw command text
var rawPlaceholder = regexp.MustCompile(`\{(\d+)\}`)

type writer struct {
	d      *dialect
	server *version.Version
	b      strings.Builder
	params []string
	index  map[string]int
	err    error
}

func (w *writer) write(s string) {
	w.b.WriteString(s)
}

func (w *writer) fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

func (w *writer) unsupported(construct string) {
	msg := construct + " on " + w.d.provider
	if w.server != nil {
		msg += " " + w.server.String()
	}
	w.fail(fmt.Errorf("%w: %s", ErrUnsupported, msg))
}

func (w *writer) comment(tag string) {
	for _, line := range strings.Split(tag, "\n") {
		w.write("-- " + line + "\n")
	}
}

func (w *writer) parameter(p *ir.Parameter) {
	if w.d.reuseParameters {
		if i, ok := w.index[p.Name]; ok {
			w.write(w.d.placeholder(i))
			return
		}
	}
	w.params = append(w.params, p.Name)
	w.index[p.Name] = len(w.params)
	w.write(w.d.placeholder(len(w.params)))
}

func (w *writer) sel(s *ir.Select) {
	w.write("SELECT ")
	if s.Distinct {
		w.write("DISTINCT ")
	}
	if w.d.top && s.Limit != nil && s.Offset == nil {
		w.write("TOP(")
		w.value(s.Limit)
		w.write(") ")
	}
	if len(s.Projection) == 0 {
		w.write("1")
	}
	for i, p := range s.Projection {
		if i > 0 {
			w.write(", ")
		}
		w.value(p.Expr)
		if p.Alias != "" {
			w.write(" AS " + w.d.quote(p.Alias))
		}
	}
	for i, t := range s.Tables {
		if i == 0 {
			w.write(" FROM ")
		} else {
			w.write(" ")
		}
		w.table(t)
	}
	if s.Predicate != nil {
		if len(s.Tables) == 0 {
			w.write(w.d.dual)
		}
		w.write(" WHERE ")
		w.condition(s.Predicate)
	}
	if len(s.GroupBy) > 0 {
		w.write(" GROUP BY ")
		w.values(s.GroupBy)
	}
	if s.Having != nil {
		w.write(" HAVING ")
		w.condition(s.Having)
	}
	w.orderBy(s.Orderings, w.d.top && s.Offset != nil)
	w.paging(s)
}

func (w *writer) orderBy(orderings []*ir.Ordering, required bool) {
	if len(orderings) == 0 {
		if required {
			w.write(" ORDER BY (SELECT 1)")
		}
		return
	}
	w.write(" ORDER BY ")
	w.orderings(orderings)
}

func (w *writer) orderings(orderings []*ir.Ordering) {
	for i, o := range orderings {
		if i > 0 {
			w.write(", ")
		}
		w.value(o.Expr)
		if o.Descending {
			w.write(" DESC")
		} else {
			w.write(" ASC")
		}
	}
}

func (w *writer) paging(s *ir.Select) {
	if w.d.top {
		if s.Offset == nil {
			return
		}
		w.write(" OFFSET ")
		w.value(s.Offset)
		w.write(" ROWS")
		if s.Limit != nil {
			w.write(" FETCH NEXT ")
			w.value(s.Limit)
			w.write(" ROWS ONLY")
		}
		return
	}
	switch {
	case s.Limit != nil:
		w.write(" LIMIT ")
		w.value(s.Limit)
	case s.Offset != nil && w.d.offsetOnlyLimit != "":
		w.write(" LIMIT " + w.d.offsetOnlyLimit)
	}
	if s.Offset != nil {
		w.write(" OFFSET ")
		w.value(s.Offset)
	}
}

func (w *writer) alias(alias string) {
	w.write(" AS " + w.d.quote(alias))
}

func (w *writer) nested(s *ir.Select) {
	w.write("(")
	w.sel(s)
	w.write(")")
}

func (w *writer) table(t ir.Table) {
	switch x := t.(type) {
	case *ir.TableRef:
		if x.Schema != "" {
			w.write(w.d.quote(x.Schema) + ".")
		}
		w.write(w.d.quote(x.Name))
		w.alias(x.Alias)
	case *ir.SubqueryTable:
		w.nested(x.Select)
		w.alias(x.Alias)
	case *ir.FunctionTable:
		w.call(x.Name, x.Args...)
		w.alias(x.Alias)
	case *ir.RawTable:
		w.write("(")
		w.raw(x)
		w.write(")")
		w.alias(x.Alias)
	case *ir.ValuesTable:
		w.valuesTable(x)
	case *ir.SetOperation:
		w.setOperation(x)
	case *ir.Join:
		w.join(x)
	default:
		w.fail(fmt.Errorf("%w: table %T", ErrUnsupported, t))
	}
}

func (w *writer) raw(x *ir.RawTable) {
	if x.ArgsParameter != nil {
		w.fail(fmt.Errorf("%w: @%s", ErrUnexpandedParameter, x.ArgsParameter.Name))
		return
	}
	last := 0
	for _, m := range rawPlaceholder.FindAllStringSubmatchIndex(x.SQL, -1) {
		w.write(x.SQL[last:m[0]])
		n, err := strconv.Atoi(x.SQL[m[2]:m[3]])
		if err != nil || n >= len(x.Args) {
			w.fail(fmt.Errorf("%w: %s", ErrRawArgument, x.SQL[m[0]:m[1]]))
			return
		}
		w.value(x.Args[n])
		last = m[1]
	}
	w.write(x.SQL[last:])
}

func (w *writer) valuesTable(x *ir.ValuesTable) {
	if x.RowsParameter != nil {
		w.fail(fmt.Errorf("%w: @%s", ErrUnexpandedParameter, x.RowsParameter.Name))
		return
	}
	w.write("(")
	switch {
	case len(x.Rows) == 0:
		w.write("SELECT ")
		for i, c := range x.Columns {
			if i > 0 {
				w.write(", ")
			}
			w.write("NULL AS " + w.d.quote(c))
		}
		w.write(w.d.dual + " WHERE 1 = 0")
	case w.d.valuesList:
		w.write("VALUES ")
		for i, row := range x.Rows {
			if i > 0 {
				w.write(", ")
			}
			w.write("(")
			w.values(row)
			w.write(")")
		}
	default:
		for i, row := range x.Rows {
			if i > 0 {
				w.write(" UNION ALL ")
			}
			w.write("SELECT ")
			for j, v := range row {
				if j > 0 {
					w.write(", ")
				}
				w.value(v)
				if i == 0 {
					w.write(" AS " + w.d.quote(x.Columns[j]))
				}
			}
		}
	}
	w.write(")")
	w.alias(x.Alias)
	if len(x.Rows) > 0 && w.d.valuesList {
		quoted := make([]string, len(x.Columns))
		for i, c := range x.Columns {
			quoted[i] = w.d.quote(c)
		}
		w.write(" (" + strings.Join(quoted, ", ") + ")")
	}
}

func (w *writer) setOperation(x *ir.SetOperation) {
	if x.Kind != ir.Union && !supports(w.server, w.d.minSetOps) {
		w.unsupported(x.Kind.String())
		return
	}
	w.write("(")
	w.setOperand(x.Left, x.Alias+"l")
	w.write(" " + x.Kind.String())
	if x.All {
		w.write(" ALL")
	}
	w.write(" ")
	w.setOperand(x.Right, x.Alias+"r")
	w.write(")")
	w.alias(x.Alias)
}

// setOperand wraps operands that order or page their rows, which compound
// selects do not allow directly.
func (w *writer) setOperand(s *ir.Select, alias string) {
	if len(s.Orderings) == 0 && s.Limit == nil && s.Offset == nil {
		w.sel(s)
		return
	}
	w.write("SELECT * FROM ")
	w.nested(s)
	w.alias(alias)
}

func (w *writer) join(j *ir.Join) {
	switch j.Kind {
	case ir.InnerJoin, ir.LeftJoin:
		w.write(j.Kind.String() + " ")
		w.table(j.Table)
		w.write(" ON ")
		if j.On == nil {
			w.condition(ir.True)
		} else {
			w.condition(j.On)
		}
	case ir.CrossJoin:
		w.write("CROSS JOIN ")
		w.table(j.Table)
	case ir.CrossApply, ir.OuterApply:
		w.apply(j)
	}
}

func (w *writer) apply(j *ir.Join) {
	switch {
	case w.d.apply == applyNative:
		w.write(j.Kind.String() + " ")
		w.table(j.Table)
	case w.d.apply == applyLateral && supports(w.server, w.d.minLateral):
		if j.Kind == ir.CrossApply {
			w.write("CROSS JOIN LATERAL ")
			w.table(j.Table)
			return
		}
		w.write("LEFT JOIN LATERAL ")
		w.table(j.Table)
		w.write(" ON ")
		w.condition(ir.True)
	default:
		w.unsupported(j.Kind.String())
	}
}

// isPredicate reports whether s is a search condition rather than a value
func isPredicate(s ir.Scalar) bool {
	switch x := s.(type) {
	case *ir.Binary:
		return x.Op.IsComparison() || x.Op.IsLogical()
	case *ir.Unary:
		return x.Op != ir.OpNegate
	case *ir.Exists, *ir.In, *ir.Like:
		return true
	}
	return false
}

// condition renders s where a search condition is expected
func (w *writer) condition(s ir.Scalar) {
	if w.d.predicateValues || isPredicate(s) {
		w.scalar(s)
		return
	}
	if c, ok := s.(*ir.Constant); ok {
		w.constantCondition(c)
		return
	}
	w.operand(s)
	w.write(" = " + w.d.boolLiteral(true))
}

func (w *writer) constantCondition(c *ir.Constant) {
	if c.Value == true {
		w.write("1 = 1")
	} else {
		w.write("1 = 0")
	}
}

// value renders s where a value is expected
func (w *writer) value(s ir.Scalar) {
	if w.d.predicateValues || !isPredicate(s) {
		w.scalar(s)
		return
	}
	w.write("CASE WHEN ")
	w.condition(s)
	w.write(" THEN " + w.d.boolLiteral(true) + " ELSE " + w.d.boolLiteral(false) + " END")
}

func (w *writer) values(xs []ir.Scalar) {
	for i, x := range xs {
		if i > 0 {
			w.write(", ")
		}
		w.value(x)
	}
}

// compound reports whether s needs parentheses as an operand
func compound(s ir.Scalar) bool {
	switch s.(type) {
	case *ir.Binary, *ir.Unary, *ir.In, *ir.Like, *ir.Collate:
		return true
	}
	return false
}

func (w *writer) operand(s ir.Scalar) {
	if compound(s) {
		w.write("(")
		w.value(s)
		w.write(")")
		return
	}
	w.value(s)
}

func (w *writer) conditionOperand(s ir.Scalar) {
	if compound(s) {
		w.write("(")
		w.condition(s)
		w.write(")")
		return
	}
	w.condition(s)
}

func (w *writer) column(c *ir.ColumnRef) {
	w.write(w.d.quote(c.Table) + "." + w.d.quote(c.Column))
}

func (w *writer) call(name string, args ...ir.Scalar) {
	w.write(name + "(")
	w.values(args)
	w.write(")")
}

func (w *writer) scalar(s ir.Scalar) {
	switch x := s.(type) {
	case *ir.ColumnRef:
		w.column(x)
	case *ir.Constant:
		w.write(w.d.literal(x.Value))
	case *ir.Parameter:
		w.parameter(x)
	case *ir.Binary:
		w.binary(x)
	case *ir.Unary:
		switch x.Op {
		case ir.OpNot:
			w.write("NOT ")
			w.conditionOperand(x.Operand)
		case ir.OpNegate:
			w.write("-")
			w.operand(x.Operand)
		case ir.OpIsNull:
			w.operand(x.Operand)
			w.write(" IS NULL")
		case ir.OpIsNotNull:
			w.operand(x.Operand)
			w.write(" IS NOT NULL")
		}
	case *ir.Func:
		w.function(x)
	case *ir.Case:
		w.caseExpr(x)
	case *ir.Exists:
		if x.Negated {
			w.write("NOT ")
		}
		w.write("EXISTS ")
		w.nested(x.Subquery)
	case *ir.In:
		w.in(x)
	case *ir.Like:
		w.operand(x.Match)
		w.write(" LIKE ")
		w.operand(x.Pattern)
		if x.Escape != nil {
			w.write(" ESCAPE ")
			w.value(x.Escape)
		}
	case *ir.Collate:
		w.operand(x.Operand)
		w.write(" COLLATE " + x.Collation)
	case *ir.RowNumber:
		w.rowNumber(x)
	case *ir.ScalarSubquery:
		w.nested(x.Subquery)
	case *ir.JSONPath:
		w.d.json(w, jsonAccess{column: x.Column, path: x.Path, asJSON: x.AsJSON})
	case *ir.Fragment:
		w.write(x.SQL)
	default:
		w.fail(fmt.Errorf("%w: scalar %T", ErrUnsupported, s))
	}
}

func (w *writer) binary(x *ir.Binary) {
	switch {
	case x.Op.IsLogical():
		w.conditionOperand(x.Left)
		w.write(" " + x.Op.String() + " ")
		w.conditionOperand(x.Right)
	case x.Op == ir.OpConcat && w.d.concat == "":
		w.call("CONCAT", x.Left, x.Right)
	case x.Op == ir.OpConcat:
		w.operand(x.Left)
		w.write(" " + w.d.concat + " ")
		w.operand(x.Right)
	default:
		w.operand(x.Left)
		w.write(" " + x.Op.String() + " ")
		w.operand(x.Right)
	}
}

func (w *writer) function(f *ir.Func) {
	if render, ok := w.d.functions[f.Name]; ok && !f.Aggregate {
		render(w, f)
		return
	}
	w.write(f.Name + "(")
	if f.Distinct {
		w.write("DISTINCT ")
	}
	if f.Star {
		w.write("*")
	} else {
		w.values(f.Args)
	}
	w.write(")")
}

func (w *writer) caseExpr(x *ir.Case) {
	w.write("CASE")
	if x.Operand != nil {
		w.write(" ")
		w.value(x.Operand)
	}
	for _, when := range x.Whens {
		w.write(" WHEN ")
		if x.Operand != nil {
			w.value(when.Test)
		} else {
			w.condition(when.Test)
		}
		w.write(" THEN ")
		w.value(when.Result)
	}
	if x.Else != nil {
		w.write(" ELSE ")
		w.value(x.Else)
	}
	w.write(" END")
}

func (w *writer) in(x *ir.In) {
	if x.ValuesParameter != nil {
		w.fail(fmt.Errorf("%w: @%s", ErrUnexpandedParameter, x.ValuesParameter.Name))
		return
	}
	w.operand(x.Item)
	if x.Negated {
		w.write(" NOT")
	}
	w.write(" IN ")
	if x.Subquery != nil {
		w.nested(x.Subquery)
		return
	}
	w.write("(")
	w.values(x.Values)
	w.write(")")
}

func (w *writer) rowNumber(x *ir.RowNumber) {
	if !supports(w.server, w.d.minWindow) {
		w.unsupported("ROW_NUMBER")
		return
	}
	w.write("ROW_NUMBER() OVER(")
	if len(x.Partitions) > 0 {
		w.write("PARTITION BY ")
		w.values(x.Partitions)
	}
	if len(x.Orderings) > 0 || w.d.top {
		if len(x.Partitions) > 0 {
			w.write(" ")
		}
		if len(x.Orderings) == 0 {
			w.write("ORDER BY (SELECT 1)")
		} else {
			w.write("ORDER BY ")
			w.orderings(x.Orderings)
		}
	}
	w.write(")")
}
