package translate

import (
	"github.com/satishbabariya/relquery/metadata"
	"github.com/satishbabariya/relquery/query/ir"
)

// EnumerableExpression is the input of an aggregate: the elements selected,
// filtered, deduplicated and ordered. The same expression serves grouped
// aggregates, where the elements are the rows of a group, and aggregates over
// correlated subqueries.
type EnumerableExpression struct {
	// Selector is the aggregated value; nil counts rows
	Selector  ir.Scalar
	Predicate ir.Scalar
	Distinct  bool
	Orderings []*ir.Ordering
}

// ApplyPredicate conjoins a predicate
func (e *EnumerableExpression) ApplyPredicate(pred ir.Scalar) {
	e.Predicate = ir.And(e.Predicate, pred)
}

// ApplySelector replaces the selector
func (e *EnumerableExpression) ApplySelector(s ir.Scalar) {
	e.Selector = s
}

// filtered returns the selector masked by the predicate: elements failing it
// become NULL, which aggregates ignore
func (e *EnumerableExpression) filtered(whenTrue ir.Scalar) ir.Scalar {
	if e.Predicate == nil {
		return whenTrue
	}
	return &ir.Case{
		Whens:   []ir.When{{Test: e.Predicate, Result: whenTrue}},
		Mapping: whenTrue.TypeMapping(),
	}
}

func translateAggregate(_ *Context, method string, e *EnumerableExpression) (ir.Scalar, error) {
	switch method {
	case "Count", "LongCount":
		mapping := metadata.Int
		if method == "LongCount" {
			mapping = metadata.BigInt
		}
		if e.Selector == nil || !e.Distinct {
			if e.Predicate == nil {
				return &ir.Func{Name: FuncCount, Aggregate: true, Star: true, Mapping: mapping}, nil
			}
			return &ir.Func{Name: FuncCount, Aggregate: true, Args: []ir.Scalar{e.filtered(intConst(1))}, Mapping: mapping}, nil
		}
		return &ir.Func{Name: FuncCount, Aggregate: true, Distinct: true, Args: []ir.Scalar{e.filtered(e.Selector)}, Mapping: mapping}, nil

	case "Sum", "Average", "Min", "Max":
		if e.Selector == nil {
			return nil, failf("aggregate "+method, "no selector")
		}
		mapping := e.Selector.TypeMapping()
		if mapping == nil || (!mapping.Kind.IsNumeric() && (method == "Sum" || method == "Average")) {
			return nil, failf("aggregate "+method, "selector %s is not numeric", ir.Print(e.Selector))
		}
		arg := e.filtered(e.Selector)
		switch method {
		case "Sum":
			sum := &ir.Func{Name: FuncSum, Aggregate: true, Distinct: e.Distinct, Args: []ir.Scalar{arg}, Nullable: true, Mapping: mapping}
			return ir.Coalesce(sum, ir.Const(0, mapping)), nil
		case "Average":
			avg := metadata.Float
			if mapping.Kind == metadata.KindDecimal {
				avg = mapping
			}
			return &ir.Func{Name: FuncAvg, Aggregate: true, Distinct: e.Distinct, Args: []ir.Scalar{arg}, Nullable: true, Mapping: avg}, nil
		case "Min":
			return &ir.Func{Name: FuncMin, Aggregate: true, Args: []ir.Scalar{arg}, Nullable: true, Mapping: mapping}, nil
		default:
			return &ir.Func{Name: FuncMax, Aggregate: true, Args: []ir.Scalar{arg}, Nullable: true, Mapping: mapping}, nil
		}
	}
	return nil, nil
}
