// Package metadata describes the object/relational model queries are
// compiled against: entity types, their columns, navigations and the store
// type mappings of every property.
package metadata

import (
	"reflect"
	"strings"
	"time"
)

// TypeKind classifies a store type for translation and materialization.
type TypeKind int

const (
	KindUnknown TypeKind = iota
	KindInt
	KindBigInt
	KindFloat
	KindDecimal
	KindString
	KindBoolean
	KindDateTime
	KindBytes
	KindJSON
)

// String returns the kind name
func (k TypeKind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindBigInt:
		return "bigint"
	case KindFloat:
		return "float"
	case KindDecimal:
		return "decimal"
	case KindString:
		return "string"
	case KindBoolean:
		return "boolean"
	case KindDateTime:
		return "datetime"
	case KindBytes:
		return "bytes"
	case KindJSON:
		return "json"
	default:
		return "unknown"
	}
}

// IsNumeric reports whether arithmetic is defined for the kind
func (k TypeKind) IsNumeric() bool {
	switch k {
	case KindInt, KindBigInt, KindFloat, KindDecimal:
		return true
	}
	return false
}

// TypeMapping binds a store type to the Go type values are read into.
type TypeMapping struct {
	StoreType string
	GoType    reflect.Type
	Kind      TypeKind
}

// String returns the store type
func (m *TypeMapping) String() string {
	if m == nil {
		return "<unmapped>"
	}
	return m.StoreType
}

// Compatible reports whether two mappings describe the same store type.
// A nil mapping is compatible with nothing.
func (m *TypeMapping) Compatible(other *TypeMapping) bool {
	if m == nil || other == nil {
		return false
	}
	return strings.EqualFold(m.StoreType, other.StoreType)
}

// WithStoreType returns a copy of the mapping with a different store type
func (m *TypeMapping) WithStoreType(storeType string) *TypeMapping {
	cp := *m
	cp.StoreType = storeType
	return &cp
}

// Default mappings shared by models that do not override them.
var (
	Int      = &TypeMapping{StoreType: "integer", GoType: reflect.TypeOf(int(0)), Kind: KindInt}
	BigInt   = &TypeMapping{StoreType: "bigint", GoType: reflect.TypeOf(int64(0)), Kind: KindBigInt}
	Float    = &TypeMapping{StoreType: "double precision", GoType: reflect.TypeOf(float64(0)), Kind: KindFloat}
	Decimal  = &TypeMapping{StoreType: "decimal(65,30)", GoType: reflect.TypeOf(float64(0)), Kind: KindDecimal}
	String   = &TypeMapping{StoreType: "text", GoType: reflect.TypeOf(""), Kind: KindString}
	Boolean  = &TypeMapping{StoreType: "boolean", GoType: reflect.TypeOf(false), Kind: KindBoolean}
	DateTime = &TypeMapping{StoreType: "timestamp", GoType: reflect.TypeOf(time.Time{}), Kind: KindDateTime}
	Bytes    = &TypeMapping{StoreType: "bytea", GoType: reflect.TypeOf([]byte(nil)), Kind: KindBytes}
	JSON     = &TypeMapping{StoreType: "jsonb", GoType: reflect.TypeOf([]byte(nil)), Kind: KindJSON}

	// Untyped is carried by values passed through to the store unchanged,
	// such as raw command arguments.
	Untyped = &TypeMapping{StoreType: "unknown", Kind: KindUnknown}
)

// MappingForGoType finds the default mapping for a Go type. Pointer types
// map like their element type.
func MappingForGoType(t reflect.Type) (*TypeMapping, bool) {
	if t == nil {
		return nil, false
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == reflect.TypeOf(time.Time{}) {
		return DateTime, true
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return Int, true
	case reflect.Int64, reflect.Uint64:
		return BigInt, true
	case reflect.Float32, reflect.Float64:
		return Float, true
	case reflect.String:
		return String, true
	case reflect.Bool:
		return Boolean, true
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return Bytes, true
		}
	}
	return nil, false
}

// MappingForValue finds the default mapping for a runtime value
func MappingForValue(v any) (*TypeMapping, bool) {
	if v == nil {
		return nil, false
	}
	return MappingForGoType(reflect.TypeOf(v))
}

// MappingForPrismaType returns the mapping used for a Prisma scalar type name.
func MappingForPrismaType(name string) (*TypeMapping, bool) {
	switch name {
	case "Int":
		return Int, true
	case "BigInt":
		return BigInt, true
	case "Float":
		return Float, true
	case "Decimal":
		return Decimal, true
	case "String":
		return String, true
	case "Boolean":
		return Boolean, true
	case "DateTime":
		return DateTime, true
	case "Bytes":
		return Bytes, true
	case "Json":
		return JSON, true
	}
	return nil, false
}
