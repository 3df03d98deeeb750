// Package postprocess provides the rewrite passes run over a translated
// select before it is cached. None of them depend on parameter values.
package postprocess

import (
	"fmt"

	"github.com/satishbabariya/relquery/internal/debug"
	"github.com/satishbabariya/relquery/query/ir"
)

// NullSemantics selects how comparisons treat NULL
type NullSemantics int

const (
	// Relational keeps the store's three-valued logic
	Relational NullSemantics = iota
	// Emulated rewrites comparisons so that NULL equals NULL and no
	// comparison evaluates to NULL
	Emulated
)

// String returns the name used in configuration
func (n NullSemantics) String() string {
	if n == Emulated {
		return "emulated"
	}
	return "relational"
}

// ParseNullSemantics parses "relational" or "emulated"
func ParseNullSemantics(s string) (NullSemantics, error) {
	switch s {
	case "", "relational":
		return Relational, nil
	case "emulated":
		return Emulated, nil
	}
	return Relational, fmt.Errorf("unknown null semantics %q", s)
}

// Options configure the passes
type Options struct {
	NullSemantics NullSemantics
}

// Process runs the passes in order: null-semantics rewriting when emulated,
// simplification, projection pruning of derived tables, join pruning, alias
// uniquification and alias renumbering. The projection of s itself is left
// untouched since result shapers read it by position.
func Process(s *ir.Select, opts Options) (*ir.Select, error) {
	if opts.NullSemantics == Emulated {
		s = ExpandNulls(s)
	}
	s = Simplify(s)
	s = PruneProjections(s)
	s = PruneJoins(s)
	s = UniquifyAliases(s)
	s = ir.Renumber(s)
	if err := ir.CheckTypeMappings(s); err != nil {
		return nil, fmt.Errorf("postprocess: %w", err)
	}
	debug.Debug("Postprocessed select", "tables", len(s.Tables), "nullSemantics", opts.NullSemantics.String())
	return s, nil
}

// nested applies f to every select nested directly in s: derived tables,
// set operation sides and subqueries in expressions
func nested(s *ir.Select, f func(*ir.Select) *ir.Select) *ir.Select {
	return ir.RewriteSelect(&nestedRewriter{f: f}, s)
}

type nestedRewriter struct {
	f func(*ir.Select) *ir.Select
}

func (r *nestedRewriter) Walk(n ir.Node) ir.Rewriter {
	switch n.(type) {
	case *ir.SubqueryTable, *ir.SetOperation, *ir.ScalarSubquery, *ir.Exists, *ir.In:
		return nil
	}
	return r
}

func (r *nestedRewriter) Rewrite(n ir.Node) ir.Node {
	switch x := n.(type) {
	case *ir.SubqueryTable:
		if sel := r.f(x.Select); sel != x.Select {
			cp := *x
			cp.Select = sel
			return &cp
		}
	case *ir.SetOperation:
		l, rr := r.f(x.Left), r.f(x.Right)
		if l != x.Left || rr != x.Right {
			cp := *x
			cp.Left, cp.Right = l, rr
			return &cp
		}
	case *ir.ScalarSubquery:
		if sel := r.f(x.Subquery); sel != x.Subquery {
			cp := *x
			cp.Subquery = sel
			return &cp
		}
	case *ir.Exists:
		if sel := r.f(x.Subquery); sel != x.Subquery {
			cp := *x
			cp.Subquery = sel
			return &cp
		}
	case *ir.In:
		item := ir.RewriteScalar(r, x.Item)
		changed := item != x.Item
		values := make([]ir.Scalar, len(x.Values))
		for i, v := range x.Values {
			values[i] = ir.RewriteScalar(r, v)
			changed = changed || values[i] != v
		}
		sub := x.Subquery
		if sub != nil {
			sub = r.f(sub)
			changed = changed || sub != x.Subquery
		}
		if changed {
			cp := *x
			cp.Item, cp.Values, cp.Subquery = item, values, sub
			return &cp
		}
	}
	return n
}
