package schema

import (
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// prismaLexer tokenizes the subset of the Prisma schema language that maps
// onto a query model.
var prismaLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Keyword", Pattern: `\b(model|view|enum|type|datasource|generator)\b`},
	{Name: "BlockAttr", Pattern: `@@`},
	{Name: "FieldAttr", Pattern: `@`},
	{Name: "Punct", Pattern: `[{}()\[\]:,.=?]`},
	{Name: "String", Pattern: `"(?:\\.|[^"\\])*"`},
	{Name: "Number", Pattern: `-?\d+(?:\.\d+)?`},
	{Name: "Ident", Pattern: `[\p{L}\p{N}][\p{L}\p{N}_-]*`},
	{Name: "DocComment", Pattern: `///[^\n]*`},
	{Name: "Comment", Pattern: `//[^\n]*`},
	{Name: "MultiLineComment", Pattern: `/\*(?:[^*]|\*[^/])*\*/`},
	{Name: "Newline", Pattern: `[\r\n]+`},
	{Name: "Whitespace", Pattern: `[ \t]+`},
})

type file struct {
	Decls []*decl `@@*`
}

type decl struct {
	Model     *modelDecl   `  @@`
	Enum      *enumDecl    `| @@`
	Composite *typeDecl    `| @@`
	Config    *configBlock `| @@`
}

type modelDecl struct {
	Pos        lexer.Position
	Keyword    string            `@("model" | "view")`
	Name       string            `@Ident`
	Fields     []*fieldDecl      `"{" @@*`
	Attributes []*blockAttribute `@@* "}"`
}

type typeDecl struct {
	Pos    lexer.Position
	Name   string       `"type" @Ident`
	Fields []*fieldDecl `"{" @@* "}"`
}

type enumDecl struct {
	Pos        lexer.Position
	Name       string            `"enum" @Ident`
	Values     []*enumValue      `"{" @@*`
	Attributes []*blockAttribute `@@* "}"`
}

type enumValue struct {
	Name       string       `@Ident`
	Attributes []*attribute `@@*`
}

type configBlock struct {
	Kind       string            `@("datasource" | "generator")`
	Name       string            `@Ident`
	Properties []*configProperty `"{" @@* "}"`
}

type configProperty struct {
	Name  string `@Ident`
	Value value  `"=" @@`
}

type fieldDecl struct {
	Pos        lexer.Position
	Name       string       `@(Ident | Keyword)`
	Type       string       `@Ident`
	List       bool         `@("[" "]")?`
	Optional   bool         `@"?"?`
	Attributes []*attribute `@@*`
}

type attribute struct {
	Name string      `"@" @(Ident | Keyword) (@"." @Ident)*`
	Args []*argument `("(" (@@ ("," @@)*)? ","? ")")?`
}

type blockAttribute struct {
	Name string      `"@@" @(Ident | Keyword) (@"." @Ident)*`
	Args []*argument `("(" (@@ ("," @@)*)? ","? ")")?`
}

type argument struct {
	Name  string `(@Ident ":")?`
	Value value  `@@`
}

type value interface{ value() }

type functionCall struct {
	Name string      `@Ident`
	Args []*argument `"(" (@@ ("," @@)*)? ")"`
}

type arrayValue struct {
	Elements []value `"[" (@@ ("," @@)*)? "]"`
}

type stringValue struct {
	Value string `@String`
}

type numberValue struct {
	Value string `@Number`
}

type constantValue struct {
	Value string `@Ident`
}

func (*functionCall) value()  {}
func (*arrayValue) value()    {}
func (*stringValue) value()   {}
func (*numberValue) value()   {}
func (*constantValue) value() {}

var parser = participle.MustBuild[file](
	participle.Lexer(prismaLexer),
	participle.Elide("Whitespace", "Newline", "Comment", "DocComment", "MultiLineComment"),
	participle.Unquote("String"),
	participle.UseLookahead(10),
	participle.Union[value](
		&functionCall{},
		&arrayValue{},
		&stringValue{},
		&numberValue{},
		&constantValue{},
	),
)

func parse(filename, src string) (*file, error) {
	return parser.ParseString(filename, src)
}

// arg finds a named argument, falling back to the positional one at index pos.
func arg(args []*argument, name string, pos int) value {
	for _, a := range args {
		if a.Name == name {
			return a.Value
		}
	}
	if pos >= 0 {
		i := 0
		for _, a := range args {
			if a.Name != "" {
				continue
			}
			if i == pos {
				return a.Value
			}
			i++
		}
	}
	return nil
}

func stringArg(args []*argument, name string, pos int) (string, bool) {
	if s, ok := arg(args, name, pos).(*stringValue); ok {
		return s.Value, true
	}
	return "", false
}

func listArg(args []*argument, name string, pos int) []string {
	arr, ok := arg(args, name, pos).(*arrayValue)
	if !ok {
		return nil
	}
	var out []string
	for _, el := range arr.Elements {
		switch v := el.(type) {
		case *constantValue:
			out = append(out, v.Value)
		case *functionCall:
			// sort/length modifiers such as title(sort: Desc)
			out = append(out, v.Name)
		case *stringValue:
			out = append(out, v.Value)
		}
	}
	return out
}

func renderArgs(args []*argument) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		switch v := a.Value.(type) {
		case *numberValue:
			parts = append(parts, v.Value)
		case *constantValue:
			parts = append(parts, v.Value)
		case *stringValue:
			parts = append(parts, v.Value)
		}
	}
	return strings.Join(parts, ",")
}
