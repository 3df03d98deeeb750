package sqlgen

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-version"
)

// applyStyle is how a dialect spells correlated joins
type applyStyle int

const (
	applyNone applyStyle = iota
	applyLateral
	applyNative
)

// dialect holds the per-provider spelling rules
type dialect struct {
	provider string
	quote    func(string) string
	// placeholder renders the 1-based ordinal of a parameter
	placeholder func(int) string
	// reuseParameters binds repeated parameters to one placeholder
	reuseParameters bool
	boolLiteral     func(bool) string
	stringLiteral   func(string) string
	bytesLiteral    func([]byte) string
	// predicateValues reports whether predicates can be used as values
	predicateValues bool
	// top renders LIMIT without OFFSET as TOP and OFFSET as OFFSET/FETCH
	top bool
	// offsetOnlyLimit is the LIMIT emitted when only OFFSET is set
	offsetOnlyLimit string
	// valuesList renders inline rows with a VALUES list instead of UNION ALL
	valuesList bool
	// dual is appended to a FROM-less select that has a WHERE clause
	dual   string
	apply  applyStyle
	concat string

	functions map[string]funcRenderer
	json      func(w *writer, j jsonAccess)

	minWindow  *version.Version
	minLateral *version.Version
	minSetOps  *version.Version
}

func mustVersion(v string) *version.Version {
	return version.Must(version.NewVersion(v))
}

func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteIdentifierMySQL(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func quoteIdentifierSQLServer(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func upperBool(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

func hexBytes(b []byte) string {
	return "X'" + strings.ToUpper(hex.EncodeToString(b)) + "'"
}

var postgres = &dialect{
	provider:        "postgresql",
	quote:           quoteIdentifier,
	placeholder:     func(i int) string { return "$" + strconv.Itoa(i) },
	reuseParameters: true,
	boolLiteral:     upperBool,
	stringLiteral:   quoteString,
	bytesLiteral:    func(b []byte) string { return `'\x` + hex.EncodeToString(b) + `'::bytea` },
	predicateValues: true,
	valuesList:      true,
	apply:           applyLateral,
	concat:          "||",
	functions:       postgresFunctions,
	json:            postgresJSON,
	minWindow:       mustVersion("8.4"),
	minLateral:      mustVersion("9.3"),
}

var mysql = &dialect{
	provider:    "mysql",
	quote:       quoteIdentifierMySQL,
	placeholder: func(int) string { return "?" },
	boolLiteral: upperBool,
	stringLiteral: func(s string) string {
		return quoteString(strings.ReplaceAll(s, `\`, `\\`))
	},
	bytesLiteral:    hexBytes,
	predicateValues: true,
	offsetOnlyLimit: "18446744073709551615",
	dual:            " FROM DUAL",
	apply:           applyLateral,
	functions:       mysqlFunctions,
	json:            mysqlJSON,
	minWindow:       mustVersion("8.0"),
	minLateral:      mustVersion("8.0.14"),
	minSetOps:       mustVersion("8.0.31"),
}

var sqlite = &dialect{
	provider:    "sqlite",
	quote:       quoteIdentifier,
	placeholder: func(int) string { return "?" },
	boolLiteral: func(b bool) string {
		if b {
			return "1"
		}
		return "0"
	},
	stringLiteral:   quoteString,
	bytesLiteral:    hexBytes,
	predicateValues: true,
	offsetOnlyLimit: "-1",
	apply:           applyNone,
	concat:          "||",
	functions:       sqliteFunctions,
	json:            sqliteJSON,
	minWindow:       mustVersion("3.25.0"),
}

var sqlserver = &dialect{
	provider:        "sqlserver",
	quote:           quoteIdentifierSQLServer,
	placeholder:     func(i int) string { return "@p" + strconv.Itoa(i) },
	reuseParameters: true,
	boolLiteral: func(b bool) string {
		if b {
			return "CAST(1 AS BIT)"
		}
		return "CAST(0 AS BIT)"
	},
	stringLiteral:   func(s string) string { return "N" + quoteString(s) },
	bytesLiteral:    func(b []byte) string { return "0x" + strings.ToUpper(hex.EncodeToString(b)) },
	top:             true,
	valuesList:      true,
	apply:           applyNative,
	concat:          "+",
	functions:       sqlserverFunctions,
	json:            sqlserverJSON,
	minWindow:       mustVersion("9.0"),
}

// literal renders a constant value
func (d *dialect) literal(v any) string {
	switch c := v.(type) {
	case nil:
		return "NULL"
	case bool:
		return d.boolLiteral(c)
	case string:
		return d.stringLiteral(c)
	case []byte:
		return d.bytesLiteral(c)
	case time.Time:
		return d.stringLiteral(c.Format("2006-01-02 15:04:05.999999"))
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", c)
	case float32:
		return strconv.FormatFloat(float64(c), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(c, 'g', -1, 64)
	case fmt.Stringer:
		return d.stringLiteral(c.String())
	}
	return d.stringLiteral(fmt.Sprintf("%v", v))
}

// supports reports whether the server version reaches minimum. A nil minimum
// means the construct is always available.
func supports(server, minimum *version.Version) bool {
	return server == nil || minimum == nil || server.GreaterThanOrEqual(minimum)
}
