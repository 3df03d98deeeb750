package builder

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/satishbabariya/relquery/query/ast"
)

// ErrInvalidQuery is returned for malformed JSON queries
var ErrInvalidQuery = errors.New("invalid query")

// Request is a Prisma-style query document:
//
//	{"model": "Blog", "action": "findMany",
//	 "where": {"rating": {"gt": "$min"}, "posts": {"some": {"title": {"contains": "go"}}}},
//	 "orderBy": [{"name": "asc"}], "include": {"posts": {"take": 2}},
//	 "skip": 10, "take": 5}
//
// String values beginning with $ are parameters. RelationLoadStrategy
// "query" loads included collections with one query each; Field names the
// aggregated field of sum, avg, min and max.
type Request struct {
	Model                string          `json:"model"`
	Action               string          `json:"action"`
	Where                map[string]any  `json:"where,omitempty"`
	OrderBy              json.RawMessage `json:"orderBy,omitempty"`
	Include              map[string]any  `json:"include,omitempty"`
	Select               map[string]any  `json:"select,omitempty"`
	Skip                 any             `json:"skip,omitempty"`
	Take                 any             `json:"take,omitempty"`
	Distinct             any             `json:"distinct,omitempty"`
	RelationLoadStrategy string          `json:"relationLoadStrategy,omitempty"`
	Field                string          `json:"field,omitempty"`
}

// ParseJSON parses a Prisma-style query document
func ParseJSON(data []byte) (ast.Query, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	dec.DisallowUnknownFields()
	var req Request
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	return req.Query()
}

// Query converts the request into an object query
func (r *Request) Query() (ast.Query, error) {
	if r.Model == "" {
		return nil, fmt.Errorf("%w: model is required", ErrInvalidQuery)
	}
	q := From(r.Model)
	if len(r.Where) > 0 {
		w, err := whereFromJSON(q.Var(), r.Where)
		if err != nil {
			return nil, err
		}
		q.WhereBuilder(w)
	}
	if len(r.OrderBy) > 0 {
		orderings, err := orderingsFromJSON(r.OrderBy)
		if err != nil {
			return nil, err
		}
		for _, o := range orderings {
			q.OrderBy(o[0], o[1])
		}
	}
	if distinct, err := distinctFromJSON(r.Distinct); err != nil {
		return nil, err
	} else if distinct {
		q.Distinct()
	}
	if r.Skip != nil {
		v, err := countFromJSON("skip", r.Skip)
		if err != nil {
			return nil, err
		}
		q.Skip(v)
	}
	if r.Take != nil {
		v, err := countFromJSON("take", r.Take)
		if err != nil {
			return nil, err
		}
		q.Take(v)
	}
	if len(r.Include) > 0 {
		tree, err := includeFromJSON(r.Include)
		if err != nil {
			return nil, err
		}
		tree.Apply(q)
	}
	if len(r.Select) > 0 {
		fields := make([]string, 0, len(r.Select))
		for name, v := range r.Select {
			if b, ok := v.(bool); ok && !b {
				continue
			}
			fields = append(fields, name)
		}
		sort.Strings(fields)
		q.Select(fields...)
	}
	switch r.RelationLoadStrategy {
	case "", "join":
	case "query":
		q.AsSplitQuery()
	default:
		return nil, fmt.Errorf("%w: unknown relationLoadStrategy %q", ErrInvalidQuery, r.RelationLoadStrategy)
	}

	switch r.Action {
	case "", "findMany":
		return q.Build(), nil
	case "findFirst":
		return q.FirstOrDefault(), nil
	case "findFirstOrThrow":
		return q.First(), nil
	case "findUnique":
		return q.SingleOrDefault(), nil
	case "findUniqueOrThrow":
		return q.Single(), nil
	case "count":
		return q.Count(), nil
	case "exists":
		return q.Any(nil), nil
	case "sum", "avg", "min", "max":
		if r.Field == "" {
			return nil, fmt.Errorf("%w: %s requires field", ErrInvalidQuery, r.Action)
		}
		switch r.Action {
		case "sum":
			return q.Sum(r.Field), nil
		case "avg":
			return q.Average(r.Field), nil
		case "min":
			return q.Min(r.Field), nil
		}
		return q.Max(r.Field), nil
	}
	return nil, fmt.Errorf("%w: unknown action %q", ErrInvalidQuery, r.Action)
}

// jsonValue converts a decoded JSON value into an expression
func jsonValue(v any) ast.Expr {
	switch x := v.(type) {
	case string:
		if strings.HasPrefix(x, "$") && len(x) > 1 {
			return ast.Param(x[1:])
		}
		return ast.C(x)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return ast.C(i)
		}
		f, _ := x.Float64()
		return ast.C(f)
	}
	return ast.C(v)
}

func whereFromJSON(v string, where map[string]any) (*WhereBuilder, error) {
	w := NewWhereBuilder(v)
	for _, key := range sortedKeys(where) {
		val := where[key]
		switch key {
		case "AND", "OR":
			items, err := whereList(val)
			if err != nil {
				return nil, err
			}
			var subs []*WhereBuilder
			for _, item := range items {
				sub, err := whereFromJSON(v, item)
				if err != nil {
					return nil, err
				}
				subs = append(subs, sub)
			}
			if key == "AND" {
				w.AND(subs...)
			} else {
				w.OR(subs...)
			}
		case "NOT":
			items, err := whereList(val)
			if err != nil {
				return nil, err
			}
			for _, item := range items {
				sub, err := whereFromJSON(v, item)
				if err != nil {
					return nil, err
				}
				w.NOT(sub)
			}
		default:
			if err := fieldFilter(w, key, val); err != nil {
				return nil, err
			}
		}
	}
	return w, nil
}

func whereList(v any) ([]map[string]any, error) {
	switch x := v.(type) {
	case map[string]any:
		return []map[string]any{x}, nil
	case []any:
		out := make([]map[string]any, 0, len(x))
		for _, item := range x {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: logical operands must be objects", ErrInvalidQuery)
			}
			out = append(out, m)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: logical operands must be objects", ErrInvalidQuery)
}

func fieldFilter(w *WhereBuilder, field string, val any) error {
	ops, ok := val.(map[string]any)
	if !ok {
		if val == nil {
			w.IsNull(field)
			return nil
		}
		w.Equals(field, jsonValue(val))
		return nil
	}
	for _, op := range sortedKeys(ops) {
		arg := ops[op]
		switch op {
		case "equals":
			if arg == nil {
				w.IsNull(field)
			} else {
				w.Equals(field, jsonValue(arg))
			}
		case "not":
			if arg == nil {
				w.IsNotNull(field)
			} else {
				w.NotEquals(field, jsonValue(arg))
			}
		case "gt":
			w.GreaterThan(field, jsonValue(arg))
		case "gte":
			w.GreaterOrEqual(field, jsonValue(arg))
		case "lt":
			w.LessThan(field, jsonValue(arg))
		case "lte":
			w.LessOrEqual(field, jsonValue(arg))
		case "contains":
			w.Contains(field, jsonValue(arg))
		case "startsWith":
			w.StartsWith(field, jsonValue(arg))
		case "endsWith":
			w.EndsWith(field, jsonValue(arg))
		case "in", "notIn":
			var in ast.Expr
			switch x := arg.(type) {
			case string:
				p, ok := jsonValue(x).(*ast.Parameter)
				if !ok {
					return fmt.Errorf("%w: %s.%s expects a list or a parameter", ErrInvalidQuery, field, op)
				}
				in = &ast.In{Item: w.field(field), Parameter: p.Name}
			case []any:
				values := make([]any, len(x))
				for i, item := range x {
					c, ok := jsonValue(item).(*ast.Constant)
					if !ok {
						return fmt.Errorf("%w: %s.%s list items must be constants", ErrInvalidQuery, field, op)
					}
					values[i] = c.Value
				}
				in = &ast.In{Item: w.field(field), Values: values}
			default:
				return fmt.Errorf("%w: %s.%s expects a list or a parameter", ErrInvalidQuery, field, op)
			}
			if op == "notIn" {
				in = ast.Not(in)
			}
			w.Expr(in)
		case "some", "every", "none":
			m, ok := arg.(map[string]any)
			if !ok {
				return fmt.Errorf("%w: %s.%s expects an object", ErrInvalidQuery, field, op)
			}
			sub, err := whereFromJSON(rangeVariable(field)+"0", m)
			if err != nil {
				return err
			}
			switch op {
			case "some":
				w.Some(field, sub)
			case "every":
				w.Every(field, sub)
			default:
				w.None(field, sub)
			}
		case "is", "isNot":
			if arg == nil {
				if op == "is" {
					w.IsNull(field)
				} else {
					w.IsNotNull(field)
				}
				continue
			}
			m, ok := arg.(map[string]any)
			if !ok {
				return fmt.Errorf("%w: %s.%s expects an object", ErrInvalidQuery, field, op)
			}
			sub, err := whereFromJSON(w.variable, prefixed(field, m))
			if err != nil {
				return err
			}
			if op == "is" {
				w.AND(sub)
			} else {
				w.NOT(sub)
			}
		default:
			return fmt.Errorf("%w: unknown filter %s.%s", ErrInvalidQuery, field, op)
		}
	}
	return nil
}

// prefixed rewrites the field names of a to-one relation filter into member
// paths through the relation
func prefixed(relation string, where map[string]any) map[string]any {
	out := make(map[string]any, len(where))
	for k, v := range where {
		switch k {
		case "AND", "OR", "NOT":
			switch x := v.(type) {
			case map[string]any:
				out[k] = prefixed(relation, x)
			case []any:
				items := make([]any, len(x))
				for i, item := range x {
					if m, ok := item.(map[string]any); ok {
						items[i] = prefixed(relation, m)
					} else {
						items[i] = item
					}
				}
				out[k] = items
			default:
				out[k] = v
			}
		default:
			out[relation+"."+k] = v
		}
	}
	return out
}

func orderingsFromJSON(raw json.RawMessage) ([][2]string, error) {
	var list []map[string]string
	if err := json.Unmarshal(raw, &list); err != nil {
		var single map[string]string
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil, fmt.Errorf("%w: orderBy: %v", ErrInvalidQuery, err)
		}
		list = []map[string]string{single}
	}
	var out [][2]string
	for _, entry := range list {
		for _, field := range sortedKeys(entry) {
			dir := strings.ToLower(entry[field])
			if dir != "asc" && dir != "desc" {
				return nil, fmt.Errorf("%w: orderBy %s: direction must be asc or desc", ErrInvalidQuery, field)
			}
			out = append(out, [2]string{field, dir})
		}
	}
	return out, nil
}

func distinctFromJSON(v any) (bool, error) {
	switch x := v.(type) {
	case nil:
		return false, nil
	case bool:
		return x, nil
	case []any:
		return len(x) > 0, nil
	}
	return false, fmt.Errorf("%w: distinct must be a boolean or a field list", ErrInvalidQuery)
}

func countFromJSON(name string, v any) (any, error) {
	switch x := v.(type) {
	case json.Number:
		n, err := x.Int64()
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: %s must be a non-negative integer", ErrInvalidQuery, name)
		}
		return int(n), nil
	case float64:
		if x < 0 || x != float64(int(x)) {
			return nil, fmt.Errorf("%w: %s must be a non-negative integer", ErrInvalidQuery, name)
		}
		return int(x), nil
	case string:
		if p, ok := jsonValue(x).(*ast.Parameter); ok {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s must be a non-negative integer", ErrInvalidQuery, name)
}

func includeFromJSON(include map[string]any) (*IncludeTree, error) {
	root := &IncludeTree{}
	if err := addIncludes(root, include); err != nil {
		return nil, err
	}
	return root, nil
}

func addIncludes(parent *IncludeTree, include map[string]any) error {
	for _, relation := range sortedKeys(include) {
		switch x := include[relation].(type) {
		case bool:
			if x {
				parent.Add(relation)
			}
		case map[string]any:
			node := parent.Add(relation)
			if err := includeOptions(node, x); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: include %s must be a boolean or an object", ErrInvalidQuery, relation)
		}
	}
	return nil
}

func includeOptions(node *IncludeTree, opts map[string]any) error {
	for _, key := range sortedKeys(opts) {
		v := opts[key]
		switch key {
		case "where":
			m, ok := v.(map[string]any)
			if !ok {
				return fmt.Errorf("%w: include %s where must be an object", ErrInvalidQuery, node.Relation)
			}
			w, err := whereFromJSON("e", m)
			if err != nil {
				return err
			}
			node.Options = append(node.Options, IncludeWhere(w))
		case "orderBy":
			raw, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidQuery, err)
			}
			orderings, err := orderingsFromJSON(raw)
			if err != nil {
				return err
			}
			for _, o := range orderings {
				node.Options = append(node.Options, IncludeOrderBy(o[0], o[1]))
			}
		case "take", "skip":
			n, err := countFromJSON(key, v)
			if err != nil {
				return err
			}
			if key == "take" {
				node.Options = append(node.Options, IncludeTake(n))
			} else {
				node.Options = append(node.Options, IncludeSkip(n))
			}
		case "include":
			m, ok := v.(map[string]any)
			if !ok {
				return fmt.Errorf("%w: include %s include must be an object", ErrInvalidQuery, node.Relation)
			}
			if err := addIncludes(node, m); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: unknown include option %s.%s", ErrInvalidQuery, node.Relation, key)
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
