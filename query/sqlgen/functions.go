package sqlgen

import (
	"strings"

	"github.com/satishbabariya/relquery/query/ir"
)

// funcRenderer renders a call of a canonical function
type funcRenderer func(w *writer, f *ir.Func)

// jsonAccess is a JSON path navigation ready for rendering
type jsonAccess struct {
	column *ir.ColumnRef
	path   []string
	asJSON bool
}

func (j jsonAccess) dotted() string {
	return "$." + strings.Join(j.path, ".")
}

func rename(name string) funcRenderer {
	return func(w *writer, f *ir.Func) {
		w.call(name, f.Args...)
	}
}

// datePart renders CAST(<prefix><arg><suffix> AS INTEGER)
func datePart(prefix, suffix string) funcRenderer {
	return func(w *writer, f *ir.Func) {
		w.write("CAST(" + prefix)
		w.value(f.Args[0])
		w.write(suffix + " AS INTEGER)")
	}
}

var postgresFunctions = map[string]funcRenderer{
	"INSTR":   rename("STRPOS"),
	"CEILING": rename("CEIL"),
	"YEAR":    datePart("DATE_PART('year', ", ")"),
	"MONTH":   datePart("DATE_PART('month', ", ")"),
	"DAY":     datePart("DATE_PART('day', ", ")"),
}

var mysqlFunctions = map[string]funcRenderer{
	"LENGTH": rename("CHAR_LENGTH"),
}

var sqliteFunctions = map[string]funcRenderer{
	"GREATEST":  rename("MAX"),
	"LEAST":     rename("MIN"),
	"SUBSTRING": rename("SUBSTR"),
	"YEAR":      datePart("strftime('%Y', ", ")"),
	"MONTH":     datePart("strftime('%m', ", ")"),
	"DAY":       datePart("strftime('%d', ", ")"),
	"CEILING":   truncateTowards(">", "+"),
	"FLOOR":     truncateTowards("<", "-"),
}

// truncateTowards rounds through integer truncation, which sqlite offers
// without its optional math functions.
func truncateTowards(cmp, step string) funcRenderer {
	return func(w *writer, f *ir.Func) {
		x := f.Args[0]
		w.write("(CASE WHEN ")
		w.operand(x)
		w.write(" " + cmp + " CAST(")
		w.value(x)
		w.write(" AS INTEGER) THEN CAST(")
		w.value(x)
		w.write(" AS INTEGER) " + step + " 1 ELSE CAST(")
		w.value(x)
		w.write(" AS INTEGER) END)")
	}
}

var sqlserverFunctions = map[string]funcRenderer{
	"LENGTH": rename("LEN"),
	"INSTR": func(w *writer, f *ir.Func) {
		w.call("CHARINDEX", f.Args[1], f.Args[0])
	},
	"ROUND": func(w *writer, f *ir.Func) {
		if len(f.Args) == 1 {
			w.write("ROUND(")
			w.value(f.Args[0])
			w.write(", 0)")
			return
		}
		w.call("ROUND", f.Args...)
	},
	"GREATEST": extremum("GREATEST", "MAX"),
	"LEAST":    extremum("LEAST", "MIN"),
}

// extremum uses the native function from SQL Server 2022 on and an
// aggregate over an inline VALUES list before.
func extremum(native, aggregate string) funcRenderer {
	since := mustVersion("16.0")
	return func(w *writer, f *ir.Func) {
		if supports(w.server, since) {
			w.call(native, f.Args...)
			return
		}
		w.write("(SELECT " + aggregate + "(v) FROM (VALUES ")
		for i, a := range f.Args {
			if i > 0 {
				w.write(", ")
			}
			w.write("(")
			w.value(a)
			w.write(")")
		}
		w.write(") AS x(v))")
	}
}

func postgresJSON(w *writer, j jsonAccess) {
	w.column(j.column)
	if len(j.path) == 0 {
		return
	}
	if j.asJSON {
		w.write(" #> ")
	} else {
		w.write(" #>> ")
	}
	w.write(quoteString("{" + strings.Join(j.path, ",") + "}"))
}

func mysqlJSON(w *writer, j jsonAccess) {
	if len(j.path) == 0 {
		w.column(j.column)
		return
	}
	if !j.asJSON {
		w.write("JSON_UNQUOTE(")
	}
	w.write("JSON_EXTRACT(")
	w.column(j.column)
	w.write(", " + quoteString(j.dotted()) + ")")
	if !j.asJSON {
		w.write(")")
	}
}

func sqliteJSON(w *writer, j jsonAccess) {
	if len(j.path) == 0 {
		w.column(j.column)
		return
	}
	w.write("json_extract(")
	w.column(j.column)
	w.write(", " + quoteString(j.dotted()) + ")")
}

func sqlserverJSON(w *writer, j jsonAccess) {
	if len(j.path) == 0 {
		w.column(j.column)
		return
	}
	if j.asJSON {
		w.write("JSON_QUERY(")
	} else {
		w.write("JSON_VALUE(")
	}
	w.column(j.column)
	w.write(", " + quoteString(j.dotted()) + ")")
}
