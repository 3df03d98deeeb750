package metadata

import (
	"reflect"
	"sort"
)

// Model is the read-only object/relational model produced by a Builder.
type Model struct {
	entities map[string]*EntityType
	byType   map[reflect.Type]*EntityType
	complex  map[string]*ComplexType
	order    []*EntityType
}

// Entity looks up an entity type by name
func (m *Model) Entity(name string) (*EntityType, bool) {
	e, ok := m.entities[name]
	return e, ok
}

// EntityFor looks up the entity type materialized into a Go struct type
func (m *Model) EntityFor(t reflect.Type) (*EntityType, bool) {
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	e, ok := m.byType[t]
	return e, ok
}

// ComplexType looks up a complex (document) type by name
func (m *Model) ComplexType(name string) (*ComplexType, bool) {
	c, ok := m.complex[name]
	return c, ok
}

// Entities returns all entity types in declaration order
func (m *Model) Entities() []*EntityType {
	out := make([]*EntityType, len(m.order))
	copy(out, m.order)
	return out
}

// EntityNames returns the sorted entity names
func (m *Model) EntityNames() []string {
	names := make([]string, 0, len(m.entities))
	for name := range m.entities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EntityType maps a Go struct (or a dynamic row map when GoType is nil) onto
// a table.
type EntityType struct {
	Name   string
	Table  string
	Schema string
	GoType reflect.Type

	// Properties holds the properties declared on this type. Use
	// AllProperties for the inherited ones as well.
	Properties  []*Property
	Keys        []*Property
	Navigations []*Navigation
	Owned       []*OwnedNavigation

	Discriminator      *Property
	DiscriminatorValue any
	Base               *EntityType
	Derived            []*EntityType
}

// Root returns the entity type at the top of the inheritance hierarchy
func (e *EntityType) Root() *EntityType {
	root := e
	for root.Base != nil {
		root = root.Base
	}
	return root
}

// TableName returns the table of the hierarchy root
func (e *EntityType) TableName() string {
	return e.Root().Table
}

// PrimaryKey returns the key properties, inherited from the root
func (e *EntityType) PrimaryKey() []*Property {
	return e.Root().Keys
}

// DiscriminatorProperty returns the discriminator column of the hierarchy
func (e *EntityType) DiscriminatorProperty() *Property {
	return e.Root().Discriminator
}

// AllProperties returns inherited properties followed by declared ones.
func (e *EntityType) AllProperties() []*Property {
	if e.Base == nil {
		return e.Properties
	}
	out := append([]*Property{}, e.Base.AllProperties()...)
	return append(out, e.Properties...)
}

// HierarchyProperties returns every property stored in the hierarchy's table
// reachable from this type, its own and those of all derived types.
func (e *EntityType) HierarchyProperties() []*Property {
	out := append([]*Property{}, e.AllProperties()...)
	var walk func(*EntityType)
	walk = func(t *EntityType) {
		for _, d := range t.Derived {
			out = append(out, d.Properties...)
			walk(d)
		}
	}
	walk(e)
	return out
}

// Concrete returns this type and every derived type, depth first.
func (e *EntityType) Concrete() []*EntityType {
	out := []*EntityType{e}
	for _, d := range e.Derived {
		out = append(out, d.Concrete()...)
	}
	return out
}

// Property finds a property by name, including inherited ones
func (e *EntityType) Property(name string) (*Property, bool) {
	for t := e; t != nil; t = t.Base {
		for _, p := range t.Properties {
			if p.Name == name {
				return p, true
			}
		}
	}
	return nil, false
}

// Navigation finds a navigation by name, including inherited ones
func (e *EntityType) Navigation(name string) (*Navigation, bool) {
	for t := e; t != nil; t = t.Base {
		for _, n := range t.Navigations {
			if n.Name == name {
				return n, true
			}
		}
	}
	return nil, false
}

// OwnedNavigation finds an owned navigation by name
func (e *EntityType) OwnedNavigation(name string) (*OwnedNavigation, bool) {
	for t := e; t != nil; t = t.Base {
		for _, o := range t.Owned {
			if o.Name == name {
				return o, true
			}
		}
	}
	return nil, false
}

// String returns the entity name
func (e *EntityType) String() string {
	return e.Name
}

// Property is a scalar member mapped to one column.
type Property struct {
	Name      string
	Column    string
	Nullable  bool
	Mapping   *TypeMapping
	Declaring *EntityType
	// Field is the Go struct field the value is stored in, empty for
	// dynamic types.
	Field string
}

// String returns Entity.Property
func (p *Property) String() string {
	if p.Declaring == nil {
		return p.Name
	}
	return p.Declaring.Name + "." + p.Name
}

// Navigation relates two entity types through key columns. OuterKey lives on
// the declaring type and InnerKey on the target; a join matches them pairwise.
type Navigation struct {
	Name         string
	Declaring    *EntityType
	Target       *EntityType
	IsCollection bool
	OuterKey     []*Property
	InnerKey     []*Property
	// IsRequired is set for reference navigations whose foreign key is not
	// nullable, which allows an inner join.
	IsRequired bool
	Field      string
}

// String returns Entity.Navigation
func (n *Navigation) String() string {
	return n.Declaring.Name + "." + n.Name
}

// OwnedNavigation binds a complex type stored as a JSON document, either in a
// column of the owner's table or under a key of an enclosing document.
type OwnedNavigation struct {
	Name         string
	Column       string
	Type         *ComplexType
	IsCollection bool
	Nullable     bool
	Field        string
}

// ComplexType is a keyless structural type stored inside a JSON document.
// Property.Column holds the document key.
type ComplexType struct {
	Name       string
	GoType     reflect.Type
	Properties []*Property
	Owned      []*OwnedNavigation
}

// Property finds a document property by name
func (c *ComplexType) Property(name string) (*Property, bool) {
	for _, p := range c.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// OwnedNavigation finds a nested document by name
func (c *ComplexType) OwnedNavigation(name string) (*OwnedNavigation, bool) {
	for _, o := range c.Owned {
		if o.Name == name {
			return o, true
		}
	}
	return nil, false
}
