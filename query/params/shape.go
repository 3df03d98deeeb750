package params

import (
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Shape describes a parameter map by what commands depend on besides the
// values: which parameters are null and how long array parameters are.
type Shape struct {
	entries []shapeEntry
}

type shapeEntry struct {
	name string
	null bool
	// length is -1 for scalars
	length int
}

// ShapeOf computes the shape of values
func ShapeOf(values map[string]any) Shape {
	s := Shape{entries: make([]shapeEntry, 0, len(values))}
	for name, v := range values {
		e := shapeEntry{name: name, null: isNull(v), length: -1}
		if !e.null {
			if rv := reflect.ValueOf(v); isArray(rv) {
				e.length = rv.Len()
			}
		}
		s.entries = append(s.entries, e)
	}
	sort.Slice(s.entries, func(i, j int) bool { return s.entries[i].name < s.entries[j].name })
	return s
}

// Equal reports whether two parameter maps have the same shape
func (s Shape) Equal(o Shape) bool {
	if len(s.entries) != len(o.entries) {
		return false
	}
	for i := range s.entries {
		if s.entries[i] != o.entries[i] {
			return false
		}
	}
	return true
}

// String renders the shape as name:kind pairs
func (s Shape) String() string {
	parts := make([]string, len(s.entries))
	for i, e := range s.entries {
		switch {
		case e.null:
			parts[i] = e.name + ":null"
		case e.length >= 0:
			parts[i] = e.name + ":[" + strconv.Itoa(e.length) + "]"
		default:
			parts[i] = e.name + ":value"
		}
	}
	return "{" + strings.Join(parts, " ") + "}"
}
