package translate

import (
	"github.com/satishbabariya/relquery/metadata"
	"github.com/satishbabariya/relquery/query/ir"
)

// Context is handed to translators. It gives access to the model and to
// type-mapping inference for the query being translated.
type Context struct {
	Model *metadata.Model
	t     *translation
}

// Typed applies mapping to an untyped parameter or NULL constant. Scalars
// that already carry a mapping are returned unchanged.
func (c *Context) Typed(s ir.Scalar, mapping *metadata.TypeMapping) (ir.Scalar, error) {
	if c.t == nil {
		return s, nil
	}
	return c.t.typed(s, mapping)
}

// MemberTranslator translates a member access on a scalar receiver. It
// returns nil when it does not handle the member.
type MemberTranslator func(ctx *Context, receiver ir.Scalar, member string) (ir.Scalar, error)

// MethodTranslator translates a method call. receiver is nil for static
// functions. It returns nil when it does not handle the method.
type MethodTranslator func(ctx *Context, receiver ir.Scalar, method string, args []ir.Scalar) (ir.Scalar, error)

// AggregateTranslator translates an aggregate over an enumerable expression.
// It returns nil when it does not handle the method.
type AggregateTranslator func(ctx *Context, method string, e *EnumerableExpression) (ir.Scalar, error)

// Registry holds the translators consulted for members, methods and
// aggregates. Plugins are tried before the provider translators; the first
// non-nil result wins.
type Registry struct {
	members    []MemberTranslator
	methods    []MethodTranslator
	aggregates []AggregateTranslator

	pluginMembers    []MemberTranslator
	pluginMethods    []MethodTranslator
	pluginAggregates []AggregateTranslator
}

// NewRegistry creates a registry with the built-in provider translators
func NewRegistry() *Registry {
	return &Registry{
		members:    []MemberTranslator{translateStringMember, translateDateMember},
		methods:    []MethodTranslator{translateStringMethod, translateMathMethod, translateCoalesce},
		aggregates: []AggregateTranslator{translateAggregate},
	}
}

// AddMember registers a plugin member translator
func (r *Registry) AddMember(t MemberTranslator) *Registry {
	r.pluginMembers = append(r.pluginMembers, t)
	return r
}

// AddMethod registers a plugin method translator
func (r *Registry) AddMethod(t MethodTranslator) *Registry {
	r.pluginMethods = append(r.pluginMethods, t)
	return r
}

// AddAggregate registers a plugin aggregate translator
func (r *Registry) AddAggregate(t AggregateTranslator) *Registry {
	r.pluginAggregates = append(r.pluginAggregates, t)
	return r
}

// Member translates receiver.member
func (r *Registry) Member(ctx *Context, receiver ir.Scalar, member string) (ir.Scalar, error) {
	for _, list := range [][]MemberTranslator{r.pluginMembers, r.members} {
		for _, t := range list {
			s, err := t(ctx, receiver, member)
			if err != nil || s != nil {
				return s, err
			}
		}
	}
	return nil, failf("member "+member, "no translator for %s of %s", member, describe(receiver))
}

// Method translates receiver.method(args...)
func (r *Registry) Method(ctx *Context, receiver ir.Scalar, method string, args []ir.Scalar) (ir.Scalar, error) {
	for _, list := range [][]MethodTranslator{r.pluginMethods, r.methods} {
		for _, t := range list {
			s, err := t(ctx, receiver, method, args)
			if err != nil || s != nil {
				return s, err
			}
		}
	}
	if receiver == nil {
		return nil, failf("function "+method, "no translator for %d arguments", len(args))
	}
	return nil, failf("method "+method, "no translator for %s", describe(receiver))
}

// Aggregate translates method over an enumerable expression
func (r *Registry) Aggregate(ctx *Context, method string, e *EnumerableExpression) (ir.Scalar, error) {
	for _, list := range [][]AggregateTranslator{r.pluginAggregates, r.aggregates} {
		for _, t := range list {
			s, err := t(ctx, method, e)
			if err != nil || s != nil {
				return s, err
			}
		}
	}
	return nil, failf("aggregate "+method, "no translator")
}

func describe(s ir.Scalar) string {
	if m := s.TypeMapping(); m != nil {
		return m.StoreType + " " + ir.Print(s)
	}
	return ir.Print(s)
}
