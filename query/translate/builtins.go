package translate

import (
	"strings"

	"github.com/satishbabariya/relquery/metadata"
	"github.com/satishbabariya/relquery/query/ir"
)

// Canonical function names emitted by the built-in translators. Command
// generators map them onto their dialect.
const (
	FuncUpper     = "UPPER"
	FuncLower     = "LOWER"
	FuncTrim      = "TRIM"
	FuncLTrim     = "LTRIM"
	FuncRTrim     = "RTRIM"
	FuncLength    = "LENGTH"
	FuncSubstring = "SUBSTRING"
	FuncReplace   = "REPLACE"
	FuncIndexOf   = "INSTR"
	FuncAbs       = "ABS"
	FuncRound     = "ROUND"
	FuncFloor     = "FLOOR"
	FuncCeiling   = "CEILING"
	FuncGreatest  = "GREATEST"
	FuncLeast     = "LEAST"
	FuncYear      = "YEAR"
	FuncMonth     = "MONTH"
	FuncDay       = "DAY"
	FuncCount     = "COUNT"
	FuncSum       = "SUM"
	FuncAvg       = "AVG"
	FuncMin       = "MIN"
	FuncMax       = "MAX"
)

// likeEscape is the escape character of generated LIKE patterns
const likeEscape = `\`

func kindOf(s ir.Scalar) metadata.TypeKind {
	if s == nil || s.TypeMapping() == nil {
		return metadata.KindUnknown
	}
	return s.TypeMapping().Kind
}

func call(name string, mapping *metadata.TypeMapping, args ...ir.Scalar) *ir.Func {
	nullable := false
	for _, a := range args {
		if ir.IsNullable(a) {
			nullable = true
		}
	}
	return &ir.Func{Name: name, Args: args, Nullable: nullable, Mapping: mapping}
}

func intConst(n int) *ir.Constant {
	return ir.Const(n, metadata.Int)
}

func translateStringMember(_ *Context, receiver ir.Scalar, member string) (ir.Scalar, error) {
	if kindOf(receiver) != metadata.KindString || member != "Length" {
		return nil, nil
	}
	return call(FuncLength, metadata.Int, receiver), nil
}

func translateDateMember(_ *Context, receiver ir.Scalar, member string) (ir.Scalar, error) {
	if kindOf(receiver) != metadata.KindDateTime {
		return nil, nil
	}
	switch member {
	case "Year":
		return call(FuncYear, metadata.Int, receiver), nil
	case "Month":
		return call(FuncMonth, metadata.Int, receiver), nil
	case "Day":
		return call(FuncDay, metadata.Int, receiver), nil
	}
	return nil, nil
}

func translateStringMethod(ctx *Context, receiver ir.Scalar, method string, args []ir.Scalar) (ir.Scalar, error) {
	if receiver == nil {
		if method == "IsNullOrEmpty" && len(args) == 1 {
			arg, err := ctx.Typed(args[0], metadata.String)
			if err != nil {
				return nil, err
			}
			return ir.Or(ir.IsNull(arg), ir.Eq(arg, ir.Const("", arg.TypeMapping()))), nil
		}
		return nil, nil
	}
	if kindOf(receiver) != metadata.KindString {
		return nil, nil
	}
	mapping := receiver.TypeMapping()
	typed := make([]ir.Scalar, len(args))
	for i, a := range args {
		t, err := ctx.Typed(a, mapping)
		if err != nil {
			return nil, err
		}
		typed[i] = t
	}
	args = typed

	switch {
	case len(args) == 0:
		switch method {
		case "ToUpper":
			return call(FuncUpper, mapping, receiver), nil
		case "ToLower":
			return call(FuncLower, mapping, receiver), nil
		case "Trim":
			return call(FuncTrim, mapping, receiver), nil
		case "TrimStart":
			return call(FuncLTrim, mapping, receiver), nil
		case "TrimEnd":
			return call(FuncRTrim, mapping, receiver), nil
		}
	case method == "Contains" && len(args) == 1:
		if pattern, ok := stringConstant(args[0]); ok {
			return like(receiver, "%"+escapeLike(pattern)+"%"), nil
		}
		return ir.Compare(ir.OpGreater, call(FuncIndexOf, metadata.Int, receiver, args[0]), intConst(0)), nil
	case method == "StartsWith" && len(args) == 1:
		if pattern, ok := stringConstant(args[0]); ok {
			return like(receiver, escapeLike(pattern)+"%"), nil
		}
		prefix := call(FuncSubstring, mapping, receiver, intConst(1), call(FuncLength, metadata.Int, args[0]))
		return ir.Eq(prefix, args[0]), nil
	case method == "EndsWith" && len(args) == 1:
		if pattern, ok := stringConstant(args[0]); ok {
			return like(receiver, "%"+escapeLike(pattern)), nil
		}
		argLen := call(FuncLength, metadata.Int, args[0])
		start := arith(ir.OpAdd, arith(ir.OpSubtract, call(FuncLength, metadata.Int, receiver), argLen), intConst(1))
		return ir.Eq(call(FuncSubstring, mapping, receiver, start, argLen), args[0]), nil
	case method == "Substring" && (len(args) == 1 || len(args) == 2):
		start, err := ctx.Typed(args[0], metadata.Int)
		if err != nil {
			return nil, err
		}
		length := ir.Scalar(call(FuncLength, metadata.Int, receiver))
		if len(args) == 2 {
			if length, err = ctx.Typed(args[1], metadata.Int); err != nil {
				return nil, err
			}
		}
		return call(FuncSubstring, mapping, receiver, oneBased(start), length), nil
	case method == "Replace" && len(args) == 2:
		return call(FuncReplace, mapping, receiver, args[0], args[1]), nil
	}
	return nil, nil
}

// oneBased converts a zero-based index to the one-based positions of SQL
// string functions
func oneBased(index ir.Scalar) ir.Scalar {
	if c, ok := index.(*ir.Constant); ok {
		if n, ok := c.Value.(int); ok {
			return intConst(n + 1)
		}
	}
	return arith(ir.OpAdd, index, intConst(1))
}

func arith(op ir.BinaryOp, left, right ir.Scalar) *ir.Binary {
	return &ir.Binary{Op: op, Left: left, Right: right, Mapping: left.TypeMapping()}
}

func like(match ir.Scalar, pattern string) *ir.Like {
	return &ir.Like{
		Match:   match,
		Pattern: ir.Const(pattern, metadata.String),
		Escape:  ir.Const(likeEscape, metadata.String),
		Mapping: metadata.Boolean,
	}
}

func stringConstant(s ir.Scalar) (string, bool) {
	c, ok := s.(*ir.Constant)
	if !ok {
		return "", false
	}
	v, ok := c.Value.(string)
	return v, ok
}

// escapeLike escapes the wildcard characters of a LIKE pattern
func escapeLike(s string) string {
	r := strings.NewReplacer(likeEscape, likeEscape+likeEscape, "%", likeEscape+"%", "_", likeEscape+"_")
	return r.Replace(s)
}

func translateMathMethod(ctx *Context, receiver ir.Scalar, method string, args []ir.Scalar) (ir.Scalar, error) {
	if receiver != nil || len(args) == 0 {
		return nil, nil
	}
	var name string
	switch method {
	case "Abs":
		name = FuncAbs
	case "Round":
		name = FuncRound
	case "Floor":
		name = FuncFloor
	case "Ceiling":
		name = FuncCeiling
	case "Max":
		name = FuncGreatest
	case "Min":
		name = FuncLeast
	default:
		return nil, nil
	}
	if (name == FuncGreatest || name == FuncLeast) && len(args) < 2 {
		return nil, nil
	}
	if name != FuncRound && name != FuncGreatest && name != FuncLeast && len(args) != 1 {
		return nil, nil
	}
	if name == FuncRound && len(args) > 2 {
		return nil, nil
	}
	values := args
	if name == FuncRound {
		values = args[:1]
	}
	values, mapping, err := unify(ctx, values)
	if err != nil {
		return nil, err
	}
	if name == FuncRound && len(args) == 2 {
		digits, err := ctx.Typed(args[1], metadata.Int)
		if err != nil {
			return nil, err
		}
		values = append(values, digits)
	}
	args = values
	if mapping == nil || !mapping.Kind.IsNumeric() {
		return nil, failf("function "+method, "argument is not numeric")
	}
	return call(name, mapping, args...), nil
}

func translateCoalesce(ctx *Context, receiver ir.Scalar, method string, args []ir.Scalar) (ir.Scalar, error) {
	if receiver != nil || method != "Coalesce" || len(args) < 2 {
		return nil, nil
	}
	args, _, err := unify(ctx, args)
	if err != nil {
		return nil, err
	}
	return ir.Coalesce(args...), nil
}

// unify types untyped arguments with the mapping of the first typed one
func unify(ctx *Context, args []ir.Scalar) ([]ir.Scalar, *metadata.TypeMapping, error) {
	var mapping *metadata.TypeMapping
	for _, a := range args {
		if m := a.TypeMapping(); m != nil && m != metadata.Untyped {
			mapping = m
			break
		}
	}
	out := make([]ir.Scalar, len(args))
	for i, a := range args {
		t, err := ctx.Typed(a, mapping)
		if err != nil {
			return nil, nil, err
		}
		out[i] = t
	}
	return out, mapping, nil
}
