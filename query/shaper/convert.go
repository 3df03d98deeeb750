package shaper

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/satishbabariya/relquery/metadata"
)

var timeType = reflect.TypeOf(time.Time{})

// timeLayouts are tried in order when a driver returns dates as text
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// convert converts a non-null cell value to t
func convert(v any, t reflect.Type) (reflect.Value, error) {
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}
	switch t.Kind() {
	case reflect.Ptr:
		elem, err := convert(v, t.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		p := reflect.New(t.Elem())
		p.Elem().Set(elem)
		return p, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if t == reflect.TypeOf(time.Duration(0)) {
			break
		}
		if n, ok := toInt64(v); ok {
			out := reflect.New(t).Elem()
			if out.OverflowInt(n) {
				return reflect.Value{}, invalid(v, t)
			}
			out.SetInt(n)
			return out, nil
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if n, ok := toInt64(v); ok && n >= 0 {
			out := reflect.New(t).Elem()
			if out.OverflowUint(uint64(n)) {
				return reflect.Value{}, invalid(v, t)
			}
			out.SetUint(uint64(n))
			return out, nil
		}
	case reflect.Float32, reflect.Float64:
		if f, ok := toFloat64(v); ok {
			out := reflect.New(t).Elem()
			out.SetFloat(f)
			return out, nil
		}
	case reflect.String:
		switch x := v.(type) {
		case []byte:
			return reflect.ValueOf(string(x)).Convert(t), nil
		case string:
			return reflect.ValueOf(x).Convert(t), nil
		}
	case reflect.Bool:
		if b, ok := toBool(v); ok {
			return reflect.ValueOf(b).Convert(t), nil
		}
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			if s, ok := v.(string); ok {
				return reflect.ValueOf([]byte(s)).Convert(t), nil
			}
		}
	case reflect.Struct:
		if t == timeType {
			if tm, ok := toTime(v); ok {
				return reflect.ValueOf(tm), nil
			}
		}
	}
	if rv.Type().ConvertibleTo(t) && rv.Kind() != reflect.String && t.Kind() != reflect.String {
		return rv.Convert(t), nil
	}
	return reflect.Value{}, invalid(v, t)
}

func invalid(v any, t reflect.Type) error {
	return fmt.Errorf("%w: cannot read %T into %s", ErrInvalidType, v, t)
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case int16:
		return int64(x), true
	case int8:
		return int64(x), true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		if x > math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	case float64:
		if x == math.Trunc(x) {
			return int64(x), true
		}
	case float32:
		if float64(x) == math.Trunc(float64(x)) {
			return int64(x), true
		}
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case []byte:
		n, err := strconv.ParseInt(string(x), 10, 64)
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(x, 10, 64)
		return n, err == nil
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case []byte:
		f, err := strconv.ParseFloat(string(x), 64)
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	}
	if n, ok := toInt64(v); ok {
		return float64(n), true
	}
	return 0, false
}

func toBool(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case []byte:
		return parseBool(string(x))
	case string:
		return parseBool(x)
	}
	if n, ok := toInt64(v); ok {
		return n != 0, true
	}
	return false, false
}

func parseBool(s string) (bool, bool) {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	return b, err == nil
}

func toTime(v any) (time.Time, bool) {
	var s string
	switch x := v.(type) {
	case time.Time:
		return x, true
	case []byte:
		s = string(x)
	case string:
		s = x
	default:
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// scalarValue converts a cell for a mapping. Unmapped or untyped cells are
// returned as read, with text returned as string.
func scalarValue(v any, m *metadata.TypeMapping) (any, error) {
	if m == nil || m.GoType == nil {
		if b, ok := v.([]byte); ok && (m == nil || m.Kind != metadata.KindBytes) {
			return string(b), nil
		}
		return v, nil
	}
	out, err := convert(v, m.GoType)
	if err != nil {
		return nil, err
	}
	return out.Interface(), nil
}

// documentBytes returns the text of a JSON document cell
func documentBytes(v any) ([]byte, error) {
	switch x := v.(type) {
	case []byte:
		return x, nil
	case string:
		return []byte(x), nil
	}
	return nil, fmt.Errorf("%w: JSON document read from %T", ErrInvalidType, v)
}

// decodeDocument decodes a JSON document into a new value of t, or into
// maps and slices when t is nil.
func decodeDocument(v any, t reflect.Type) (any, error) {
	data, err := documentBytes(v)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil, nil
	}
	if t == nil {
		var out any
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidType, err)
		}
		return out, nil
	}
	p := reflect.New(t)
	if err := json.Unmarshal(data, p.Interface()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidType, err)
	}
	return p.Interface(), nil
}

// assign stores v into dst, adapting pointers, interfaces and slices of
// elements.
func assign(dst reflect.Value, v any) error {
	if v == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}
	rv := reflect.ValueOf(v)
	switch {
	case rv.Type().AssignableTo(dst.Type()):
		dst.Set(rv)
	case rv.Kind() == reflect.Ptr && rv.Elem().Type().AssignableTo(dst.Type()):
		dst.Set(rv.Elem())
	case dst.Kind() == reflect.Ptr && rv.Type().AssignableTo(dst.Type().Elem()):
		p := reflect.New(dst.Type().Elem())
		p.Elem().Set(rv)
		dst.Set(p)
	default:
		cv, err := convert(v, dst.Type())
		if err != nil {
			return err
		}
		dst.Set(cv)
	}
	return nil
}

// canBeNil reports whether a Go type holds null as its zero value
func canBeNil(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map:
		return true
	}
	return false
}

// sameInstance reports whether a and b are the same materialized instance
func sameInstance(a, b any) bool {
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if ra.Kind() != rb.Kind() {
		return false
	}
	switch ra.Kind() {
	case reflect.Ptr, reflect.Map:
		return ra.Pointer() == rb.Pointer()
	}
	return false
}

// valuesEqual compares identifier components. Nulls are equal to each
// other, numbers compare by value whatever their Go type.
func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch x := a.(type) {
	case []byte:
		switch y := b.(type) {
		case []byte:
			return bytes.Equal(x, y)
		case string:
			return string(x) == y
		}
		return false
	case string:
		switch y := b.(type) {
		case string:
			return x == y
		case []byte:
			return x == string(y)
		}
		return false
	case time.Time:
		y, ok := b.(time.Time)
		return ok && x.Equal(y)
	}
	if xi, ok := toInt64(a); ok {
		if _, isBool := a.(bool); !isBool {
			if yi, ok := toInt64(b); ok {
				return xi == yi
			}
		}
	}
	if xf, ok := toFloat64(a); ok {
		if yf, ok := toFloat64(b); ok {
			return xf == yf
		}
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta.Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

// canonical converts an identifier cell to the comparable form of its
// mapping: int64 for integers, float64 for floats, string for text and
// bytes, UTC time for dates. Cells that do not convert, or that have no
// mapping, keep the driver value with bytes read as text.
func canonical(m *metadata.TypeMapping, v any) any {
	if v == nil {
		return nil
	}
	kind := metadata.KindUnknown
	if m != nil {
		kind = m.Kind
	}
	switch kind {
	case metadata.KindInt, metadata.KindBigInt:
		if n, ok := toInt64(v); ok {
			return n
		}
	case metadata.KindFloat:
		if f, ok := toFloat64(v); ok {
			return f
		}
	case metadata.KindBoolean:
		if b, ok := toBool(v); ok {
			return b
		}
	case metadata.KindDateTime:
		if t, ok := toTime(v); ok {
			return t.UTC()
		}
	}
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// identityKey encodes an entity type and its key values. Components carry
// their type and length so that no two keys share an encoding.
func identityKey(entity string, keys []any) string {
	var sb strings.Builder
	sb.WriteString(entity)
	for _, k := range keys {
		text := fmt.Sprint(k)
		fmt.Fprintf(&sb, "|%T:%d:%s", k, len(text), text)
	}
	return sb.String()
}

func identifiersEqual(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !valuesEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

func allNull(values []any) bool {
	for _, v := range values {
		if v != nil {
			return false
		}
	}
	return true
}

// discriminatorMatches compares a discriminator cell with a declared value
func discriminatorMatches(cell, declared any) bool {
	if valuesEqual(cell, declared) {
		return true
	}
	return fmt.Sprint(cell) == fmt.Sprint(declared)
}
