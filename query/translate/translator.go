// Package translate turns object-query ASTs into relational IR plus the
// shaper description that rebuilds application results from its rows.
package translate

import (
	"fmt"

	"github.com/satishbabariya/relquery/internal/debug"
	"github.com/satishbabariya/relquery/metadata"
	"github.com/satishbabariya/relquery/query/ast"
	"github.com/satishbabariya/relquery/query/ir"
	"github.com/satishbabariya/relquery/query/shaper"
)

// Cardinality tells how many results a translated query produces
type Cardinality int

const (
	// Sequence is any number of results
	Sequence Cardinality = iota
	First
	FirstOrDefault
	Single
	SingleOrDefault
	// Scalar is exactly one row holding one value, as for aggregates
	Scalar
)

// String returns the operator name of the cardinality
func (c Cardinality) String() string {
	switch c {
	case First:
		return "First"
	case FirstOrDefault:
		return "FirstOrDefault"
	case Single:
		return "Single"
	case SingleOrDefault:
		return "SingleOrDefault"
	case Scalar:
		return "Scalar"
	}
	return "Sequence"
}

// WarnMultipleCollectionInclude is reported when one owner loads several
// collections in a single query, which multiplies the rows returned.
const WarnMultipleCollectionInclude = "MultipleCollectionInclude"

// Warning is a non-fatal translation diagnostic
type Warning struct {
	Code    string
	Message string
}

// Result is a translated query
type Result struct {
	Select *ir.Select
	// Related holds the queries loading split collections, in the order the
	// shaper references them
	Related     []*ir.Select
	Shape       *shaper.Shape
	Cardinality Cardinality
	// Parameters holds the type mapping inferred for each parameter
	Parameters map[string]*metadata.TypeMapping
	Warnings   []Warning
}

// Options configures translation
type Options struct {
	// SplitQuery loads collections with related queries instead of joins.
	// A QueryMode operator in the query overrides it.
	SplitQuery bool
}

// Translator translates queries against a model. It is safe for
// concurrent use.
type Translator struct {
	model    *metadata.Model
	registry *Registry
	opts     Options
}

// New creates a translator. A nil registry uses the built-in translators.
func New(model *metadata.Model, registry *Registry, opts Options) *Translator {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Translator{model: model, registry: registry, opts: opts}
}

// Translate translates q. Errors wrap ErrTranslationFailed.
func (tr *Translator) Translate(q ast.Query) (*Result, error) {
	t := &translation{
		tr:     tr,
		am:     ir.NewAliasManager(),
		params: make(map[string]*metadata.TypeMapping),
		split:  splitMode(q, tr.opts.SplitQuery),
	}
	t.ctx = &Context{Model: tr.model, t: t}

	sq, err := t.query(q, nil, modeTop)
	if err != nil {
		return nil, err
	}
	res, err := t.finalize(sq)
	if err != nil {
		return nil, err
	}
	debug.Debug("Translated query", "fingerprint", ast.Fingerprint(q).String(), "related", len(res.Related), "cardinality", res.Cardinality.String())
	return res, nil
}

func splitMode(q ast.Query, fallback bool) bool {
	for ; q != nil; q = ast.SourceOf(q) {
		if m, ok := q.(*ast.QueryMode); ok {
			return m.Split
		}
	}
	return fallback
}

// queryMode tells a query root how it relates to the enclosing query
type queryMode int

const (
	modeTop queryMode = iota
	// modeCorrelated filters navigation roots by the owner inside the
	// subquery
	modeCorrelated
	// modeCollection leaves the correlation to the join that projects the
	// collection next to its owner
	modeCollection
)

// translation is the state of one Translate call
type translation struct {
	tr       *Translator
	ctx      *Context
	am       *ir.AliasManager
	params   map[string]*metadata.TypeMapping
	split    bool
	cur      *shapedQuery
	related  []*ir.Select
	warnings []Warning
}

// shapedQuery is a select under construction with the value its rows
// represent
type shapedQuery struct {
	b     *ir.SelectBuilder
	value any
	// identifier tells result rows apart
	identifier []ir.Scalar
	// corr holds the child-side keys of a collection root and outer the
	// owner-side keys they match
	corr  []ir.Scalar
	outer []ir.Scalar
	card  Cardinality

	collection bool
	skip, take ir.Scalar
}

func (t *translation) newQuery(from ir.Table, value any, identifier []ir.Scalar) *shapedQuery {
	q := &shapedQuery{b: ir.NewSelectBuilder(t.am, from), value: value, identifier: identifier}
	q.b.OnPushdown(func(lift ir.Lifter) {
		q.value = liftValue(q.value, lift)
		q.identifier = liftAll(q.identifier, lift)
		q.corr = liftAll(q.corr, lift)
	})
	return q
}

// weak reports whether s takes its type mapping from what it is used with
func weak(s ir.Scalar) bool {
	switch x := s.(type) {
	case *ir.Parameter:
		return x.Mapping == nil
	case *ir.Constant:
		if x.Mapping == nil {
			return true
		}
		m, ok := metadata.MappingForValue(x.Value)
		return ok && m == x.Mapping
	}
	return false
}

func (t *translation) typed(s ir.Scalar, mapping *metadata.TypeMapping) (ir.Scalar, error) {
	if s == nil || mapping == nil || mapping == metadata.Untyped || !weak(s) {
		return s, nil
	}
	switch x := s.(type) {
	case *ir.Parameter:
		if err := t.inferParameter(x.Name, mapping); err != nil {
			return nil, err
		}
		return &ir.Parameter{Name: x.Name, Mapping: mapping}, nil
	case *ir.Constant:
		if x.Value != nil && !convertible(x.Value, mapping) {
			return s, nil
		}
		return ir.Const(x.Value, mapping), nil
	}
	return s, nil
}

// convertible reports whether a literal can be rendered with mapping
func convertible(v any, mapping *metadata.TypeMapping) bool {
	m, ok := metadata.MappingForValue(v)
	if !ok {
		return true
	}
	switch {
	case m.Kind == mapping.Kind:
		return true
	case m.Kind.IsNumeric() && mapping.Kind.IsNumeric():
		return true
	case m.Kind == metadata.KindString && mapping.Kind == metadata.KindJSON:
		return true
	}
	return false
}

func (t *translation) inferParameter(name string, mapping *metadata.TypeMapping) error {
	existing, ok := t.params[name]
	if !ok {
		t.params[name] = mapping
		return nil
	}
	if !existing.Compatible(mapping) {
		return &TranslationError{
			Construct: "parameter @" + name,
			Reason:    fmt.Sprintf("used as %s and as %s", existing, mapping),
			Err:       ErrAmbiguousTypeMapping,
		}
	}
	return nil
}

// pair types a weak operand with the mapping of the other one
func (t *translation) pair(l, r ir.Scalar) (ir.Scalar, ir.Scalar, error) {
	var err error
	switch {
	case weak(l) && !weak(r):
		l, err = t.typed(l, r.TypeMapping())
	case weak(r) && !weak(l):
		r, err = t.typed(r, l.TypeMapping())
	}
	return l, r, err
}

// mapping resolves the mapping of s, falling back to what was inferred for
// parameters and to the default mapping of literals
func (t *translation) mapping(s ir.Scalar) *metadata.TypeMapping {
	if m := s.TypeMapping(); m != nil {
		return m
	}
	switch x := s.(type) {
	case *ir.Parameter:
		if m := t.params[x.Name]; m != nil {
			return m
		}
	case *ir.Constant:
		if m, ok := metadata.MappingForValue(x.Value); ok {
			return m
		}
	}
	return metadata.Untyped
}

// settle gives an untyped literal its default mapping
func (t *translation) settle(s ir.Scalar) ir.Scalar {
	if c, ok := s.(*ir.Constant); ok && c.Mapping == nil {
		return ir.Const(c.Value, t.mapping(c))
	}
	return s
}

// fill types whatever is still untyped before a select is frozen
func (t *translation) fill() ir.Rewriter {
	return ir.RewriteFunc(func(n ir.Node) ir.Node {
		switch x := n.(type) {
		case *ir.Parameter:
			if x.Mapping == nil {
				return &ir.Parameter{Name: x.Name, Mapping: t.mapping(x)}
			}
		case *ir.Constant:
			if x.Mapping == nil {
				return ir.Const(x.Value, t.mapping(x))
			}
		case *ir.Case:
			if x.Mapping == nil {
				cp := *x
				cp.Mapping = metadata.Untyped
				for _, w := range x.Whens {
					if m := w.Result.TypeMapping(); m != nil {
						cp.Mapping = m
						break
					}
				}
				return &cp
			}
		}
		return n
	})
}

func (t *translation) build(b *ir.SelectBuilder) (*ir.Select, error) {
	b.Rewrite(t.fill())
	s, err := b.Build()
	if err != nil {
		return nil, &TranslationError{Construct: "query", Reason: err.Error(), Err: err}
	}
	return s, nil
}

func (t *translation) warn(code, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	for _, w := range t.warnings {
		if w.Code == code && w.Message == msg {
			return
		}
	}
	t.warnings = append(t.warnings, Warning{Code: code, Message: msg})
	debug.Warn("Query translation warning", "code", code, "message", msg)
}
