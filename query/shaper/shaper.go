// Package shaper describes how application results are rebuilt from flat
// rows and compiles those descriptions into programs run once per row.
//
// A description is produced by the query translator next to the relational
// IR: every node names the row ordinals it reads. Collections are rebuilt
// either from fanned-out rows of the main query, stitched together by
// comparing identifiers of consecutive rows, or from the rows of a separate
// query merged by parent identifier.
package shaper

import (
	"github.com/satishbabariya/relquery/metadata"
)

// Node is a shaper description node
type Node interface {
	shaper()
}

// Identifier reads one component of a row identifier. Mapping decides the
// comparable form the cell is converted to before comparison.
type Identifier struct {
	Ordinal int
	Mapping *metadata.TypeMapping
}

// Scalar reads one converted cell
type Scalar struct {
	Ordinal  int
	Mapping  *metadata.TypeMapping
	Nullable bool
}

// PropertyBinding binds an entity property to a row ordinal
type PropertyBinding struct {
	Property *metadata.Property
	Ordinal  int
}

// OwnedBinding binds an owned navigation to the ordinal of its document column
type OwnedBinding struct {
	Navigation *metadata.OwnedNavigation
	Ordinal    int
}

// IncludeBinding fills a navigation of an entity. Value is an *Entity for a
// reference navigation and a *Collection or *SplitCollection for a
// collection navigation.
type IncludeBinding struct {
	Navigation *metadata.Navigation
	Value      Node
}

// Entity materializes an entity instance. Properties lists every property
// of the hierarchy the row carries; the concrete type is chosen by the
// discriminator cell when Discriminator is not negative. An Optional entity
// is nil when all of its key cells are null.
type Entity struct {
	Type          *metadata.EntityType
	Key           []Identifier
	Discriminator int
	Properties    []PropertyBinding
	Owned         []OwnedBinding
	Includes      []IncludeBinding
	Optional      bool
}

// Document materializes an owned type from a JSON document cell
type Document struct {
	Ordinal    int
	Type       *metadata.ComplexType
	Collection bool
}

// Field is one member of an anonymous object
type Field struct {
	Name  string
	Value Node
}

// Object materializes an anonymous object as a map keyed by field name
type Object struct {
	Fields []Field
}

// Collection rebuilds a collection from fanned-out rows of the query it is
// part of. Outer identifies the owning instance together with every
// collection fanned out before this one; Self identifies the element. An
// empty Self makes every row a new element.
type Collection struct {
	Name    string
	Element Node
	Outer   []Identifier
	Self    []Identifier
}

// SplitCollection rebuilds a collection from the rows of related query
// Query, ordered like the main query. Parent reads the owner's identifier
// from the owner's row and ChildParent reads it from the related row.
type SplitCollection struct {
	Name        string
	Query       int
	Element     Node
	Parent      []Identifier
	ChildParent []Identifier
	Self        []Identifier
}

// Grouping materializes a *Group: its key and the collection of elements
// sharing it.
type Grouping struct {
	Key      Node
	Elements *Collection
}

// Shape is the description of one query result. Identifier tells results
// apart when rows are fanned out by collections.
type Shape struct {
	Root       Node
	Identifier []Identifier
}

func (*Scalar) shaper()          {}
func (*Entity) shaper()          {}
func (*Document) shaper()        {}
func (*Object) shaper()          {}
func (*Collection) shaper()      {}
func (*SplitCollection) shaper() {}
func (*Grouping) shaper()        {}

// Group is a materialized grouping
type Group struct {
	Key      any
	Elements []any
}
