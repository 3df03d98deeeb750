package ast

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dchest/siphash"
)

// siphash keys for query fingerprints; fixed so digests are stable across
// processes.
const (
	fingerprintK0 = 0x72656c7175657279
	fingerprintK1 = 0x66696e6765727072
)

// Key identifies a query shape: canonical text of the operator tree plus
// session flags. Parameters contribute their names, constants their values.
type Key struct {
	Text   string
	Digest uint64
}

// String returns the hex digest
func (k Key) String() string {
	return strconv.FormatUint(k.Digest, 16)
}

// Fingerprint computes the cache key of a query under a set of session
// flags. The flag order does not matter.
func Fingerprint(q Query, flags ...string) Key {
	var sb strings.Builder
	writeQuery(&sb, q)
	if len(flags) > 0 {
		sorted := append([]string(nil), flags...)
		sort.Strings(sorted)
		sb.WriteString(" [")
		sb.WriteString(strings.Join(sorted, ","))
		sb.WriteString("]")
	}
	text := sb.String()
	return Key{Text: text, Digest: siphash.Hash(fingerprintK0, fingerprintK1, []byte(text))}
}

// Format renders a query as canonical text
func Format(q Query) string {
	var sb strings.Builder
	writeQuery(&sb, q)
	return sb.String()
}

// FormatExpr renders an expression as canonical text
func FormatExpr(e Expr) string {
	var sb strings.Builder
	writeExpr(&sb, e)
	return sb.String()
}

func writeQuery(sb *strings.Builder, q Query) {
	switch x := q.(type) {
	case nil:
		sb.WriteString("<nil>")
	case *EntitySource:
		fmt.Fprintf(sb, "Entity(%s)", x.Entity)
	case *InlineSource:
		sb.WriteString("Inline(")
		for i, v := range x.Values {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeValue(sb, v)
		}
		sb.WriteString(")")
	case *ParameterSource:
		fmt.Fprintf(sb, "ParamSource(@%s)", x.Name)
	case *RawSource:
		fmt.Fprintf(sb, "Raw(%s, %q", x.Entity, x.SQL)
		writeExprs(sb, x.Args)
		if x.ArgsParameter != "" {
			fmt.Fprintf(sb, ", @%s", x.ArgsParameter)
		}
		sb.WriteString(")")
	case *FunctionSource:
		fmt.Fprintf(sb, "Function(%s, %s", x.Entity, x.Function)
		writeExprs(sb, x.Args)
		sb.WriteString(")")
	case *NavigationSource:
		sb.WriteString("Nav(")
		writeExpr(sb, x.Of)
		if x.Navigation != "" {
			sb.WriteString(".")
			sb.WriteString(x.Navigation)
		}
		sb.WriteString(")")
	case *Where:
		writeUnary(sb, "Where", x.Source, x.Predicate)
	case *Select:
		writeUnary(sb, "Select", x.Source, x.Selector)
	case *OrderBy:
		name := "OrderBy"
		if x.Then {
			name = "ThenBy"
		}
		if x.Descending {
			name += "Descending"
		}
		writeUnary(sb, name, x.Source, x.Key)
	case *Skip:
		writeQuery(sb, x.Source)
		sb.WriteString(".Skip(")
		writeExpr(sb, x.Count)
		sb.WriteString(")")
	case *Take:
		writeQuery(sb, x.Source)
		sb.WriteString(".Take(")
		writeExpr(sb, x.Count)
		sb.WriteString(")")
	case *Distinct:
		writeQuery(sb, x.Source)
		sb.WriteString(".Distinct()")
	case *Include:
		writeQuery(sb, x.Source)
		fmt.Fprintf(sb, ".Include(%s", strings.Join(x.Path, "."))
		if x.Filter != nil {
			sb.WriteString(", where ")
			writeLambda(sb, x.Filter)
		}
		for _, o := range x.Orderings {
			sb.WriteString(", order ")
			writeLambda(sb, o.Key)
			if o.Descending {
				sb.WriteString(" desc")
			}
		}
		if x.Skip != nil {
			sb.WriteString(", skip ")
			writeExpr(sb, x.Skip)
		}
		if x.Take != nil {
			sb.WriteString(", take ")
			writeExpr(sb, x.Take)
		}
		sb.WriteString(")")
	case *GroupBy:
		writeQuery(sb, x.Source)
		sb.WriteString(".GroupBy(")
		writeLambda(sb, x.Key)
		if x.Element != nil {
			sb.WriteString(", ")
			writeLambda(sb, x.Element)
		}
		sb.WriteString(")")
	case *SetOperation:
		writeQuery(sb, x.Left)
		fmt.Fprintf(sb, ".%s(", x.Kind)
		writeQuery(sb, x.Right)
		sb.WriteString(")")
	case *Join:
		writeQuery(sb, x.Outer)
		sb.WriteString(".Join(")
		writeQuery(sb, x.Inner)
		for _, l := range []*Lambda{x.OuterKey, x.InnerKey, x.Result} {
			sb.WriteString(", ")
			writeLambda(sb, l)
		}
		sb.WriteString(")")
	case *Terminal:
		writeQuery(sb, x.Source)
		fmt.Fprintf(sb, ".%s(", x.Op)
		switch {
		case x.Lambda != nil:
			writeLambda(sb, x.Lambda)
		case x.Item != nil:
			writeExpr(sb, x.Item)
		}
		sb.WriteString(")")
	case *QueryMode:
		writeQuery(sb, x.Source)
		if x.Split {
			sb.WriteString(".AsSplitQuery()")
		} else {
			sb.WriteString(".AsSingleQuery()")
		}
	default:
		fmt.Fprintf(sb, "<%T>", q)
	}
}

func writeUnary(sb *strings.Builder, name string, source Query, l *Lambda) {
	writeQuery(sb, source)
	sb.WriteString(".")
	sb.WriteString(name)
	sb.WriteString("(")
	writeLambda(sb, l)
	sb.WriteString(")")
}

func writeLambda(sb *strings.Builder, l *Lambda) {
	if l == nil {
		sb.WriteString("<nil>")
		return
	}
	sb.WriteString(strings.Join(l.Params, ", "))
	sb.WriteString(" => ")
	writeExpr(sb, l.Body)
}

func writeExprs(sb *strings.Builder, xs []Expr) {
	for _, e := range xs {
		sb.WriteString(", ")
		writeExpr(sb, e)
	}
}

func writeExpr(sb *strings.Builder, e Expr) {
	switch x := e.(type) {
	case nil:
		sb.WriteString("<nil>")
	case *Ref:
		sb.WriteString(x.Name)
	case *Member:
		writeExpr(sb, x.Target)
		sb.WriteString(".")
		sb.WriteString(x.Name)
	case *Constant:
		writeValue(sb, x.Value)
	case *Parameter:
		sb.WriteString("@")
		sb.WriteString(x.Name)
	case *Binary:
		sb.WriteString("(")
		writeExpr(sb, x.Left)
		fmt.Fprintf(sb, " %s ", x.Op)
		writeExpr(sb, x.Right)
		sb.WriteString(")")
	case *Unary:
		sb.WriteString(string(x.Op))
		writeExpr(sb, x.Operand)
	case *Call:
		if x.Target != nil {
			writeExpr(sb, x.Target)
			sb.WriteString(".")
		}
		sb.WriteString(x.Method)
		sb.WriteString("(")
		for i, a := range x.Args {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeExpr(sb, a)
		}
		sb.WriteString(")")
	case *Conditional:
		sb.WriteString("(")
		writeExpr(sb, x.Test)
		sb.WriteString(" ? ")
		writeExpr(sb, x.Then)
		sb.WriteString(" : ")
		writeExpr(sb, x.Else)
		sb.WriteString(")")
	case *New:
		sb.WriteString("new {")
		for i, f := range x.Fields {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(f.Name)
			sb.WriteString(" = ")
			writeExpr(sb, f.Value)
		}
		sb.WriteString("}")
	case *Subquery:
		sb.WriteString("{")
		writeQuery(sb, x.Query)
		sb.WriteString("}")
	case *In:
		writeExpr(sb, x.Item)
		sb.WriteString(" in ")
		if x.Parameter != "" {
			sb.WriteString("@")
			sb.WriteString(x.Parameter)
			return
		}
		sb.WriteString("[")
		for i, v := range x.Values {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeValue(sb, v)
		}
		sb.WriteString("]")
	default:
		fmt.Fprintf(sb, "<%T>", e)
	}
}

// writeValue renders a constant with its Go type so 1 and "1" differ.
func writeValue(sb *strings.Builder, v any) {
	switch x := v.(type) {
	case nil:
		sb.WriteString("null")
	case string:
		sb.WriteString(strconv.Quote(x))
	case []byte:
		fmt.Fprintf(sb, "0x%x", x)
	default:
		fmt.Fprintf(sb, "%T(%v)", v, v)
	}
}
