// Package params specializes a cached select for the parameter values of
// one execution.
package params

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/satishbabariya/relquery/metadata"
	"github.com/satishbabariya/relquery/query/ir"
	"github.com/satishbabariya/relquery/query/postprocess"
)

var (
	// ErrMissingParameter is returned when a rewrite needs the value of a
	// parameter that was not supplied
	ErrMissingParameter = errors.New("missing parameter value")

	// ErrNotAnArray is returned when a parameter used as a list holds a
	// scalar value
	ErrNotAnArray = errors.New("parameter is not an array")
)

// Result is a select specialized for one set of values
type Result struct {
	Select *ir.Select
	// Values holds the supplied values plus the sub-parameters created for
	// flattened raw arguments
	Values map[string]any
	// CanCache is false when a rewrite depended on the values, which makes
	// the command unfit for reuse with other values of the same shape
	CanCache bool
}

// Process applies, in order, null-guard collapsing (emulated null semantics
// only), IN-list and inline-row expansion and raw-argument flattening. Each rewrite copies
// only the nodes it changes.
func Process(s *ir.Select, values map[string]any, nulls postprocess.NullSemantics) (*Result, error) {
	p := &processor{values: values, out: values, emulated: nulls == postprocess.Emulated}
	out := s
	if nulls == postprocess.Emulated {
		out = ir.RewriteSelect(ir.RewriteFunc(p.collapseNullGuards), out)
	}
	out = ir.RewriteSelect(ir.RewriteFunc(p.expandIn), out)
	out = ir.RewriteSelect(ir.RewriteFunc(p.expandRows), out)
	out = ir.RewriteSelect(ir.RewriteFunc(p.flattenRawArgs), out)
	if p.err != nil {
		return nil, p.err
	}
	canCache := out == s
	if !canCache {
		out = postprocess.Simplify(out)
	}
	return &Result{Select: out, Values: p.out, CanCache: canCache}, nil
}

type processor struct {
	values   map[string]any
	// out is copied from values before the first sub-parameter is added
	out      map[string]any
	copied   bool
	emulated bool
	err      error
}

func (p *processor) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

func (p *processor) lookup(name string) (any, bool) {
	v, ok := p.values[name]
	if !ok {
		p.fail(fmt.Errorf("%w: @%s", ErrMissingParameter, name))
	}
	return v, ok
}

func (p *processor) collapseNullGuards(n ir.Node) ir.Node {
	switch x := n.(type) {
	case *ir.Unary:
		param, ok := x.Operand.(*ir.Parameter)
		if !ok || (x.Op != ir.OpIsNull && x.Op != ir.OpIsNotNull) {
			return n
		}
		v, ok := p.lookup(param.Name)
		if !ok {
			return n
		}
		return ir.Bool(isNull(v) == (x.Op == ir.OpIsNull))
	case *ir.Binary:
		if x.Op != ir.OpEqual && x.Op != ir.OpNotEqual {
			return n
		}
		param, ok := x.Left.(*ir.Parameter)
		other := x.Right
		if !ok {
			param, ok = x.Right.(*ir.Parameter)
			other = x.Left
		}
		if !ok || !ir.IsNullConstant(other) {
			return n
		}
		v, ok := p.lookup(param.Name)
		if !ok {
			return n
		}
		return ir.Bool(isNull(v) == (x.Op == ir.OpEqual))
	}
	return n
}

func (p *processor) expandIn(n ir.Node) ir.Node {
	x, ok := n.(*ir.In)
	if !ok || x.ValuesParameter == nil {
		return n
	}
	v, ok := p.lookup(x.ValuesParameter.Name)
	if !ok {
		return n
	}
	elems, err := elements(v)
	if err != nil {
		p.fail(fmt.Errorf("@%s: %w", x.ValuesParameter.Name, err))
		return n
	}
	mapping := x.ValuesParameter.Mapping
	values := make([]ir.Scalar, len(elems))
	for i, e := range elems {
		values[i] = ir.Const(e, elementMapping(mapping, e))
	}
	return ir.InValues(x.Item, values, x.Negated, p.emulated)
}

func (p *processor) expandRows(n ir.Node) ir.Node {
	x, ok := n.(*ir.ValuesTable)
	if !ok || x.RowsParameter == nil {
		return n
	}
	v, ok := p.lookup(x.RowsParameter.Name)
	if !ok {
		return n
	}
	elems, err := elements(v)
	if err != nil {
		p.fail(fmt.Errorf("@%s: %w", x.RowsParameter.Name, err))
		return n
	}
	cp := *x
	cp.RowsParameter = nil
	cp.Rows = make([][]ir.Scalar, len(elems))
	for i, e := range elems {
		cp.Rows[i] = []ir.Scalar{ir.Const(e, elementMapping(x.RowsParameter.Mapping, e))}
	}
	return &cp
}

func (p *processor) flattenRawArgs(n ir.Node) ir.Node {
	x, ok := n.(*ir.RawTable)
	if !ok || x.ArgsParameter == nil {
		return n
	}
	name := x.ArgsParameter.Name
	v, ok := p.lookup(name)
	if !ok {
		return n
	}
	elems, err := elements(v)
	if err != nil {
		p.fail(fmt.Errorf("@%s: %w", name, err))
		return n
	}
	if !p.copied {
		p.out = make(map[string]any, len(p.values)+len(elems))
		for k, val := range p.values {
			p.out[k] = val
		}
		p.copied = true
	}
	cp := *x
	cp.ArgsParameter = nil
	cp.Args = append([]ir.Scalar(nil), x.Args...)
	for i, e := range elems {
		sub := fmt.Sprintf("%s_%d", name, i)
		p.out[sub] = e
		cp.Args = append(cp.Args, &ir.Parameter{Name: sub, Mapping: elementMapping(nil, e)})
	}
	return &cp
}

func elementMapping(m *metadata.TypeMapping, v any) *metadata.TypeMapping {
	if m != nil && m != metadata.Untyped {
		return m
	}
	if vm, ok := metadata.MappingForValue(v); ok {
		return vm
	}
	return metadata.Untyped
}

func isNull(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return rv.IsNil()
	}
	return false
}

// elements returns the elements of an array value. A nil value has none.
// Nil pointers among the elements become nil.
func elements(v any) ([]any, error) {
	if v == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(v)
	if !isArray(rv) {
		return nil, fmt.Errorf("%w: %T", ErrNotAnArray, v)
	}
	out := make([]any, rv.Len())
	for i := range out {
		e := rv.Index(i)
		for e.Kind() == reflect.Interface || e.Kind() == reflect.Pointer {
			if e.IsNil() {
				break
			}
			e = e.Elem()
		}
		if (e.Kind() == reflect.Interface || e.Kind() == reflect.Pointer) && e.IsNil() {
			continue
		}
		out[i] = e.Interface()
	}
	return out, nil
}

func isArray(rv reflect.Value) bool {
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return rv.Type().Elem().Kind() != reflect.Uint8
	}
	return false
}
