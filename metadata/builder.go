package metadata

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ErrInvalidModel is returned by Build when the declared model is inconsistent.
var ErrInvalidModel = errors.New("invalid model")

// PropertyOption customizes a declared property
type PropertyOption func(*Property)

// Column sets the column name
func Column(name string) PropertyOption {
	return func(p *Property) { p.Column = name }
}

// Optional marks the property nullable
func Optional() PropertyOption {
	return func(p *Property) { p.Nullable = true }
}

// Required marks the property non-nullable
func Required() PropertyOption {
	return func(p *Property) { p.Nullable = false }
}

// WithMapping overrides the store type mapping
func WithMapping(m *TypeMapping) PropertyOption {
	return func(p *Property) { p.Mapping = m }
}

// StoreType overrides only the store type name of the mapping
func StoreType(storeType string) PropertyOption {
	return func(p *Property) {
		if p.Mapping != nil {
			p.Mapping = p.Mapping.WithStoreType(storeType)
		}
	}
}

// Builder declares a model fluently. Errors are collected and reported by Build.
type Builder struct {
	entities []*EntityBuilder
	complex  []*ComplexBuilder
}

// NewBuilder creates an empty model builder
func NewBuilder() *Builder {
	return &Builder{}
}

type navKind int

const (
	navHasMany navKind = iota
	navHasOne
	navBelongsTo
)

type navSpec struct {
	kind   navKind
	name   string
	target string
	keys   []string
}

type ownedSpec struct {
	name       string
	complex    string
	column     string
	collection bool
}

// EntityBuilder declares one entity type
type EntityBuilder struct {
	entity    *EntityType
	keys      []string
	navs      []navSpec
	owned     []ownedSpec
	discProp  string
	base      string
	baseValue any
	err       error
}

// Entity starts declaring an entity type. When sample is a struct (or a
// pointer to one), its exported scalar fields are discovered as properties:
// the column comes from the `db` tag or the snake_cased field name, and
// pointer fields are nullable.
func (b *Builder) Entity(name string, sample any) *EntityBuilder {
	eb := &EntityBuilder{entity: &EntityType{Name: name, Table: toSnakeCase(name)}}
	if sample != nil {
		t := reflect.TypeOf(sample)
		for t.Kind() == reflect.Ptr {
			t = t.Elem()
		}
		if t.Kind() != reflect.Struct {
			eb.err = fmt.Errorf("%w: entity %s: sample must be a struct, got %s", ErrInvalidModel, name, t)
		} else {
			eb.entity.GoType = t
			eb.entity.Properties = discoverProperties(t, "db", toSnakeCase)
			for _, p := range eb.entity.Properties {
				p.Declaring = eb.entity
			}
		}
	}
	b.entities = append(b.entities, eb)
	return eb
}

// Table sets the table name
func (eb *EntityBuilder) Table(name string) *EntityBuilder {
	eb.entity.Table = name
	return eb
}

// Schema sets the table schema
func (eb *EntityBuilder) Schema(name string) *EntityBuilder {
	eb.entity.Schema = name
	return eb
}

// Key declares the primary key properties, in order
func (eb *EntityBuilder) Key(names ...string) *EntityBuilder {
	eb.keys = names
	return eb
}

// Property declares or customizes a property. A property discovered from the
// sample struct is matched by name or by its Go field name and renamed.
func (eb *EntityBuilder) Property(name string, opts ...PropertyOption) *EntityBuilder {
	p := findDiscovered(eb.entity.Properties, eb.entity.GoType, name)
	if p == nil {
		p = &Property{Name: name, Column: toSnakeCase(name), Declaring: eb.entity, Field: goFieldName(eb.entity.GoType, name)}
		if p.Field != "" {
			f, _ := eb.entity.GoType.FieldByName(p.Field)
			p.Mapping, _ = MappingForGoType(f.Type)
			p.Nullable = f.Type.Kind() == reflect.Ptr
		}
		eb.entity.Properties = append(eb.entity.Properties, p)
	}
	p.Name = name
	for _, opt := range opts {
		opt(p)
	}
	return eb
}

// Ignore removes a discovered property
func (eb *EntityBuilder) Ignore(name string) *EntityBuilder {
	props := eb.entity.Properties[:0]
	for _, p := range eb.entity.Properties {
		if p.Name != name && p.Field != name {
			props = append(props, p)
		}
	}
	eb.entity.Properties = props
	return eb
}

// Only drops every property whose name is not listed
func (eb *EntityBuilder) Only(names ...string) *EntityBuilder {
	keep := make(map[string]bool, len(names))
	for _, n := range names {
		keep[n] = true
	}
	props := eb.entity.Properties[:0]
	for _, p := range eb.entity.Properties {
		if keep[p.Name] {
			props = append(props, p)
		}
	}
	eb.entity.Properties = props
	return eb
}

// HasMany declares a collection navigation whose foreign key lives on the target.
func (eb *EntityBuilder) HasMany(name, target string, foreignKey ...string) *EntityBuilder {
	eb.navs = append(eb.navs, navSpec{kind: navHasMany, name: name, target: target, keys: foreignKey})
	return eb
}

// HasOne declares a reference navigation whose foreign key lives on the target.
func (eb *EntityBuilder) HasOne(name, target string, foreignKey ...string) *EntityBuilder {
	eb.navs = append(eb.navs, navSpec{kind: navHasOne, name: name, target: target, keys: foreignKey})
	return eb
}

// BelongsTo declares a reference navigation whose foreign key lives on this entity.
func (eb *EntityBuilder) BelongsTo(name, target string, foreignKey ...string) *EntityBuilder {
	eb.navs = append(eb.navs, navSpec{kind: navBelongsTo, name: name, target: target, keys: foreignKey})
	return eb
}

// OwnsOne stores a complex type as a JSON document in column
func (eb *EntityBuilder) OwnsOne(name, complexType, column string) *EntityBuilder {
	eb.owned = append(eb.owned, ownedSpec{name: name, complex: complexType, column: column})
	return eb
}

// OwnsMany stores a JSON array of a complex type in column
func (eb *EntityBuilder) OwnsMany(name, complexType, column string) *EntityBuilder {
	eb.owned = append(eb.owned, ownedSpec{name: name, complex: complexType, column: column, collection: true})
	return eb
}

// Discriminator sets the hierarchy discriminator property and this type's value
func (eb *EntityBuilder) Discriminator(property string, value any) *EntityBuilder {
	eb.discProp = property
	eb.entity.DiscriminatorValue = value
	return eb
}

// DerivesFrom places the entity in base's table hierarchy with a discriminator value
func (eb *EntityBuilder) DerivesFrom(base string, value any) *EntityBuilder {
	eb.base = base
	eb.baseValue = value
	return eb
}

// ComplexBuilder declares a complex type stored in JSON documents
type ComplexBuilder struct {
	complex *ComplexType
	owned   []ownedSpec
}

// Complex starts declaring a complex type. Struct samples are discovered like
// entities, using the `json` tag or the field name as document key.
func (b *Builder) Complex(name string, sample any) *ComplexBuilder {
	cb := &ComplexBuilder{complex: &ComplexType{Name: name}}
	if sample != nil {
		t := reflect.TypeOf(sample)
		for t.Kind() == reflect.Ptr {
			t = t.Elem()
		}
		if t.Kind() == reflect.Struct {
			cb.complex.GoType = t
			cb.complex.Properties = discoverProperties(t, "json", func(s string) string { return s })
		}
	}
	b.complex = append(b.complex, cb)
	return cb
}

// Property declares or customizes a document property
func (cb *ComplexBuilder) Property(name string, opts ...PropertyOption) *ComplexBuilder {
	p := findDiscovered(cb.complex.Properties, cb.complex.GoType, name)
	if p == nil {
		p = &Property{Name: name, Column: name, Field: goFieldName(cb.complex.GoType, name)}
		cb.complex.Properties = append(cb.complex.Properties, p)
	}
	p.Name = name
	for _, opt := range opts {
		opt(p)
	}
	return cb
}

// OwnsOne nests a complex type under key
func (cb *ComplexBuilder) OwnsOne(name, complexType, key string) *ComplexBuilder {
	cb.owned = append(cb.owned, ownedSpec{name: name, complex: complexType, column: key})
	return cb
}

// OwnsMany nests an array of a complex type under key
func (cb *ComplexBuilder) OwnsMany(name, complexType, key string) *ComplexBuilder {
	cb.owned = append(cb.owned, ownedSpec{name: name, complex: complexType, column: key, collection: true})
	return cb
}

// Build resolves keys, navigations, owned types and hierarchies and returns the
// read-only model.
func (b *Builder) Build() (*Model, error) {
	m := &Model{
		entities: make(map[string]*EntityType),
		byType:   make(map[reflect.Type]*EntityType),
		complex:  make(map[string]*ComplexType),
	}

	for _, cb := range b.complex {
		if _, dup := m.complex[cb.complex.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate complex type %s", ErrInvalidModel, cb.complex.Name)
		}
		for _, p := range cb.complex.Properties {
			if p.Mapping == nil {
				return nil, fmt.Errorf("%w: %s.%s has no type mapping", ErrInvalidModel, cb.complex.Name, p.Name)
			}
		}
		m.complex[cb.complex.Name] = cb.complex
	}
	for _, cb := range b.complex {
		for _, spec := range cb.owned {
			o, err := resolveOwned(m, cb.complex.GoType, spec)
			if err != nil {
				return nil, err
			}
			cb.complex.Owned = append(cb.complex.Owned, o)
		}
	}

	for _, eb := range b.entities {
		if eb.err != nil {
			return nil, eb.err
		}
		e := eb.entity
		if _, dup := m.entities[e.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate entity %s", ErrInvalidModel, e.Name)
		}
		for _, p := range e.Properties {
			if p.Mapping == nil {
				return nil, fmt.Errorf("%w: %s.%s has no type mapping", ErrInvalidModel, e.Name, p.Name)
			}
		}
		m.entities[e.Name] = e
		m.order = append(m.order, e)
		if e.GoType != nil {
			m.byType[e.GoType] = e
		}
	}

	// hierarchies first so keys and navigations see inherited properties
	for _, eb := range b.entities {
		if eb.base == "" {
			continue
		}
		base, ok := m.entities[eb.base]
		if !ok {
			return nil, fmt.Errorf("%w: %s derives from unknown entity %s", ErrInvalidModel, eb.entity.Name, eb.base)
		}
		e := eb.entity
		e.Base = base
		e.DiscriminatorValue = eb.baseValue
		base.Derived = append(base.Derived, e)
		declared := e.Properties[:0]
		for _, p := range e.Properties {
			if _, inherited := base.Property(p.Name); !inherited {
				declared = append(declared, p)
			}
		}
		e.Properties = declared
	}

	for _, eb := range b.entities {
		e := eb.entity
		if e.Base != nil {
			continue
		}
		keys := eb.keys
		if len(keys) == 0 {
			for _, candidate := range []string{"ID", "Id", "id"} {
				if _, ok := e.Property(candidate); ok {
					keys = []string{candidate}
					break
				}
			}
		}
		if len(keys) == 0 {
			return nil, fmt.Errorf("%w: entity %s has no key", ErrInvalidModel, e.Name)
		}
		props, err := resolveProperties(e, keys)
		if err != nil {
			return nil, err
		}
		e.Keys = props
		if eb.discProp != "" {
			d, ok := e.Property(eb.discProp)
			if !ok {
				return nil, fmt.Errorf("%w: discriminator %s not found on %s", ErrInvalidModel, eb.discProp, e.Name)
			}
			e.Discriminator = d
		}
	}
	for _, eb := range b.entities {
		if eb.entity.Base != nil && eb.entity.Root().Discriminator == nil {
			return nil, fmt.Errorf("%w: hierarchy of %s has no discriminator", ErrInvalidModel, eb.entity.Name)
		}
	}

	for _, eb := range b.entities {
		e := eb.entity
		for _, spec := range eb.navs {
			nav, err := resolveNavigation(m, e, spec)
			if err != nil {
				return nil, err
			}
			e.Navigations = append(e.Navigations, nav)
		}
		for _, spec := range eb.owned {
			o, err := resolveOwned(m, e.GoType, spec)
			if err != nil {
				return nil, err
			}
			e.Owned = append(e.Owned, o)
		}
	}
	return m, nil
}

func resolveNavigation(m *Model, e *EntityType, spec navSpec) (*Navigation, error) {
	target, ok := m.entities[spec.target]
	if !ok {
		return nil, fmt.Errorf("%w: navigation %s.%s targets unknown entity %s", ErrInvalidModel, e.Name, spec.name, spec.target)
	}
	nav := &Navigation{
		Name:         spec.name,
		Declaring:    e,
		Target:       target,
		IsCollection: spec.kind == navHasMany,
		Field:        goFieldName(e.GoType, spec.name),
	}
	var err error
	switch spec.kind {
	case navHasMany, navHasOne:
		nav.OuterKey = e.PrimaryKey()
		nav.InnerKey, err = resolveProperties(target, spec.keys)
	case navBelongsTo:
		nav.OuterKey, err = resolveProperties(e, spec.keys)
		nav.InnerKey = target.PrimaryKey()
		if err == nil {
			nav.IsRequired = true
			for _, p := range nav.OuterKey {
				if p.Nullable {
					nav.IsRequired = false
				}
			}
		}
	}
	if err != nil {
		return nil, err
	}
	if len(nav.OuterKey) == 0 || len(nav.OuterKey) != len(nav.InnerKey) {
		return nil, fmt.Errorf("%w: navigation %s.%s has mismatched keys", ErrInvalidModel, e.Name, spec.name)
	}
	return nav, nil
}

func resolveOwned(m *Model, owner reflect.Type, spec ownedSpec) (*OwnedNavigation, error) {
	ct, ok := m.complex[spec.complex]
	if !ok {
		return nil, fmt.Errorf("%w: owned navigation %s uses unknown complex type %s", ErrInvalidModel, spec.name, spec.complex)
	}
	column := spec.column
	if column == "" {
		column = toSnakeCase(spec.name)
	}
	o := &OwnedNavigation{
		Name:         spec.name,
		Column:       column,
		Type:         ct,
		IsCollection: spec.collection,
		Field:        goFieldName(owner, spec.name),
	}
	if o.Field != "" {
		f, _ := owner.FieldByName(o.Field)
		o.Nullable = f.Type.Kind() == reflect.Ptr
	}
	return o, nil
}

func resolveProperties(e *EntityType, names []string) ([]*Property, error) {
	props := make([]*Property, 0, len(names))
	for _, name := range names {
		p, ok := e.Property(name)
		if !ok {
			return nil, fmt.Errorf("%w: property %s not found on %s", ErrInvalidModel, name, e.Name)
		}
		props = append(props, p)
	}
	return props, nil
}

func discoverProperties(t reflect.Type, tagName string, column func(string) string) []*Property {
	var props []*Property
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() || f.Anonymous {
			continue
		}
		tag := f.Tag.Get(tagName)
		if tag == "-" {
			continue
		}
		mapping, ok := MappingForGoType(f.Type)
		if !ok {
			continue
		}
		col := strings.Split(tag, ",")[0]
		if col == "" {
			col = column(f.Name)
		}
		props = append(props, &Property{
			Name:     f.Name,
			Column:   col,
			Nullable: f.Type.Kind() == reflect.Ptr,
			Mapping:  mapping,
			Field:    f.Name,
		})
	}
	return props
}

func findDiscovered(props []*Property, t reflect.Type, name string) *Property {
	field := goFieldName(t, name)
	for _, p := range props {
		if p.Name == name || (field != "" && p.Field == field) {
			return p
		}
	}
	return nil
}

// goFieldName finds the struct field backing a member name, trying the exact
// name first and then its title-cased form (createdAt -> CreatedAt).
func goFieldName(t reflect.Type, name string) string {
	if t == nil || name == "" {
		return ""
	}
	if _, ok := t.FieldByName(name); ok {
		return name
	}
	title := cases.Title(language.Und, cases.NoLower).String(name)
	if _, ok := t.FieldByName(title); ok {
		return title
	}
	if strings.HasSuffix(title, "Id") {
		alt := strings.TrimSuffix(title, "Id") + "ID"
		if _, ok := t.FieldByName(alt); ok {
			return alt
		}
	}
	return ""
}

// toSnakeCase converts a Go identifier to a column name
func toSnakeCase(s string) string {
	var result strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && r >= 'A' && r <= 'Z' {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
			if (prev >= 'a' && prev <= 'z') || (prev >= '0' && prev <= '9') || nextLower {
				result.WriteByte('_')
			}
		}
		result.WriteRune(r)
	}
	return strings.ToLower(result.String())
}
