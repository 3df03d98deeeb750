package shaper

import (
	"fmt"
	"reflect"

	"github.com/satishbabariya/relquery/metadata"
)

// Options tune materialization
type Options struct {
	// DetailedErrors wraps cell read failures in a MaterializationError
	// naming the entity and property
	DetailedErrors bool
	// IdentityResolution makes entities with equal keys share one instance
	// within an enumeration
	IdentityResolution bool
}

// Program is a compiled shape. It is immutable and may be shared by
// concurrent enumerations, each with its own State.
type Program struct {
	root       materializer
	identifier []Identifier
	lookahead  bool
	queries    int
	opts       Options
}

// Queries returns the number of related queries whose rows the program
// merges into the main rows
func (p *Program) Queries() int { return p.queries }

// Streaming reports whether every row completes one result
func (p *Program) Streaming() bool { return !p.lookahead }

// Compile turns a shape into a program
func Compile(shape *Shape, opts Options) (*Program, error) {
	if shape == nil || shape.Root == nil {
		return nil, fmt.Errorf("%w: empty shape", ErrInvalidShape)
	}
	c := &compiler{opts: opts, entities: make(map[*Entity]*entityShaper)}
	root, coll, err := c.compile(shape.Root)
	if err != nil {
		return nil, err
	}
	if coll != nil {
		return nil, fmt.Errorf("%w: a collection cannot be the result root", ErrInvalidShape)
	}
	if c.inRow && len(shape.Identifier) == 0 {
		return nil, fmt.Errorf("%w: fanned-out collections need a result identifier", ErrInvalidShape)
	}
	return &Program{
		root:       root,
		identifier: shape.Identifier,
		lookahead:  c.inRow,
		queries:    c.queries,
		opts:       opts,
	}, nil
}

type materializer interface {
	build(rc *rowCtx, f *frame) (any, error)
}

type collector interface {
	attach(rc *rowCtx, f *frame, add func(any) error) error
}

type compiler struct {
	opts     Options
	entities map[*Entity]*entityShaper
	split    int
	inRow    bool
	queries  int
}

// compile returns a materializer for value nodes and a collector for
// collection nodes
func (c *compiler) compile(n Node) (materializer, collector, error) {
	switch x := n.(type) {
	case *Scalar:
		return &scalarShaper{node: x}, nil, nil
	case *Document:
		return &documentShaper{node: x}, nil, nil
	case *Entity:
		e, err := c.entity(x)
		return e, nil, err
	case *Object:
		o := &objectShaper{}
		for _, f := range x.Fields {
			m, coll, err := c.compile(f.Value)
			if err != nil {
				return nil, nil, err
			}
			o.fields = append(o.fields, objectField{name: f.Name, value: m, coll: coll})
		}
		return o, nil, nil
	case *Grouping:
		key, coll, err := c.compile(x.Key)
		if err != nil {
			return nil, nil, err
		}
		if coll != nil || x.Elements == nil {
			return nil, nil, fmt.Errorf("%w: grouping key must be a value", ErrInvalidShape)
		}
		_, elements, err := c.compile(x.Elements)
		if err != nil {
			return nil, nil, err
		}
		return &groupingShaper{key: key, elements: elements}, nil, nil
	case *Collection:
		elem, err := c.element(x.Element)
		if err != nil {
			return nil, nil, err
		}
		if c.split == 0 {
			c.inRow = true
		}
		return nil, &collectionShaper{node: x, elem: elem}, nil
	case *SplitCollection:
		if x.Query >= c.queries {
			c.queries = x.Query + 1
		}
		c.split++
		elem, err := c.element(x.Element)
		c.split--
		if err != nil {
			return nil, nil, err
		}
		return nil, &splitShaper{node: x, elem: elem}, nil
	}
	return nil, nil, fmt.Errorf("%w: unknown node %T", ErrInvalidShape, n)
}

func (c *compiler) element(n Node) (materializer, error) {
	m, coll, err := c.compile(n)
	if err != nil {
		return nil, err
	}
	if coll != nil {
		return nil, fmt.Errorf("%w: nested collection without an owner", ErrInvalidShape)
	}
	return m, nil
}

func (c *compiler) entity(n *Entity) (*entityShaper, error) {
	if e, ok := c.entities[n]; ok {
		return e, nil
	}
	e := &entityShaper{node: n, opts: c.opts}
	c.entities[n] = e

	includes := make([]*includeShaper, 0, len(n.Includes))
	for _, inc := range n.Includes {
		m, coll, err := c.compile(inc.Value)
		if err != nil {
			return nil, err
		}
		if (coll != nil) != inc.Navigation.IsCollection {
			return nil, fmt.Errorf("%w: include %s does not match its navigation", ErrInvalidShape, inc.Navigation)
		}
		includes = append(includes, &includeShaper{nav: inc.Navigation, ref: m, coll: coll})
	}

	for _, t := range n.Type.Concrete() {
		ct, err := newConcrete(n, t, includes)
		if err != nil {
			return nil, err
		}
		e.concrete = append(e.concrete, ct)
	}
	return e, nil
}

// concreteShaper materializes one concrete type of an entity node
type concreteShaper struct {
	typ      *metadata.EntityType
	goType   reflect.Type
	props    []propertySlot
	owned    []ownedSlot
	includes []includeSlot
}

type propertySlot struct {
	binding PropertyBinding
	field   []int
}

type ownedSlot struct {
	binding OwnedBinding
	field   []int
	decode  reflect.Type
}

type includeSlot struct {
	inc   *includeShaper
	field []int
}

type includeShaper struct {
	nav  *metadata.Navigation
	ref  materializer
	coll collector
}

func newConcrete(n *Entity, t *metadata.EntityType, includes []*includeShaper) (*concreteShaper, error) {
	ct := &concreteShaper{typ: t, goType: t.GoType}
	for _, b := range n.Properties {
		if p, ok := t.Property(b.Property.Name); !ok || p != b.Property {
			continue
		}
		slot := propertySlot{binding: b}
		if ct.goType != nil {
			f, ok := structField(ct.goType, b.Property.Field)
			if !ok {
				continue
			}
			slot.field = f.Index
		}
		ct.props = append(ct.props, slot)
	}
	for _, b := range n.Owned {
		if _, ok := t.OwnedNavigation(b.Navigation.Name); !ok {
			continue
		}
		slot := ownedSlot{binding: b}
		if ct.goType != nil {
			f, ok := structField(ct.goType, b.Navigation.Field)
			if !ok {
				return nil, fmt.Errorf("%w: %s has no field for owned navigation %s", ErrInvalidShape, t.Name, b.Navigation.Name)
			}
			slot.field = f.Index
			slot.decode = f.Type
			if slot.decode.Kind() == reflect.Ptr {
				slot.decode = slot.decode.Elem()
			}
		}
		ct.owned = append(ct.owned, slot)
	}
	for _, inc := range includes {
		if nav, ok := t.Navigation(inc.nav.Name); !ok || nav != inc.nav {
			continue
		}
		slot := includeSlot{inc: inc}
		if ct.goType != nil {
			f, ok := structField(ct.goType, inc.nav.Field)
			if !ok {
				return nil, fmt.Errorf("%w: %s has no field for navigation %s", ErrInvalidShape, t.Name, inc.nav.Name)
			}
			if inc.coll != nil && f.Type.Kind() != reflect.Slice {
				return nil, fmt.Errorf("%w: field for collection %s is not a slice", ErrInvalidShape, inc.nav)
			}
			slot.field = f.Index
		}
		ct.includes = append(ct.includes, slot)
	}
	return ct, nil
}

func structField(t reflect.Type, name string) (reflect.StructField, bool) {
	if name == "" {
		return reflect.StructField{}, false
	}
	return t.FieldByName(name)
}

// entityShaper materializes an entity node
type entityShaper struct {
	node     *Entity
	opts     Options
	concrete []*concreteShaper
}

func (e *entityShaper) build(rc *rowCtx, f *frame) (any, error) {
	if v, ok := rc.cache[e]; ok {
		return v, nil
	}
	keys := rc.identifier(e.node.Key)
	if e.node.Optional && allNull(keys) {
		rc.remember(e, nil)
		return nil, nil
	}
	ct, err := e.pick(rc)
	if err != nil {
		return nil, err
	}

	var identity string
	if e.opts.IdentityResolution && !allNull(keys) {
		identity = identityKey(e.node.Type.Root().Name, keys)
		if v, ok := rc.s.identities[identity]; ok {
			rc.remember(e, v)
			return v, ct.attach(rc, f, v, true)
		}
	}

	v, err := ct.create(rc, f, e)
	if err != nil {
		return nil, err
	}
	if identity != "" {
		rc.s.identities[identity] = v
	}
	rc.remember(e, v)
	return v, ct.attach(rc, f, v, false)
}

// pick chooses the concrete type of the row
func (e *entityShaper) pick(rc *rowCtx) (*concreteShaper, error) {
	d := e.node.Discriminator
	if d < 0 || len(e.concrete) == 1 {
		return e.concrete[0], nil
	}
	if rc.row.IsNull(d) {
		return nil, e.fail(ErrUnexpectedNull, e.node.Type.DiscriminatorProperty(), d)
	}
	cell := rc.row.Value(d)
	for _, ct := range e.concrete {
		if ct.typ.DiscriminatorValue != nil && discriminatorMatches(cell, ct.typ.DiscriminatorValue) {
			return ct, nil
		}
	}
	return nil, e.fail(fmt.Errorf("%w: unknown discriminator value %v", ErrInvalidType, cell), e.node.Type.DiscriminatorProperty(), d)
}

func (e *entityShaper) fail(err error, p *metadata.Property, ordinal int) error {
	if !e.opts.DetailedErrors {
		return err
	}
	me := &MaterializationError{Entity: e.node.Type.Name, Ordinal: ordinal, Err: err}
	if p != nil {
		me.Property = p.Name
	}
	return me
}

// create materializes the instance with its properties, documents and
// reference includes
func (ct *concreteShaper) create(rc *rowCtx, f *frame, e *entityShaper) (any, error) {
	if ct.goType == nil {
		m := make(map[string]any, len(ct.props)+len(ct.owned)+len(ct.includes))
		for _, slot := range ct.props {
			v, err := ct.cell(rc, e, slot.binding, true)
			if err != nil {
				return nil, err
			}
			m[slot.binding.Property.Name] = v
		}
		for _, slot := range ct.owned {
			v, err := ct.document(rc, e, slot)
			if err != nil {
				return nil, err
			}
			m[slot.binding.Navigation.Name] = v
		}
		for _, slot := range ct.includes {
			if slot.inc.ref == nil {
				continue
			}
			v, err := slot.inc.ref.build(rc, f)
			if err != nil {
				return nil, err
			}
			m[slot.inc.nav.Name] = v
		}
		return m, nil
	}

	ptr := reflect.New(ct.goType)
	inst := ptr.Elem()
	for _, slot := range ct.props {
		dst := inst.FieldByIndex(slot.field)
		v, err := ct.cell(rc, e, slot.binding, canBeNil(dst.Type()))
		if err != nil {
			return nil, err
		}
		if v == nil {
			continue
		}
		if err := assign(dst, v); err != nil {
			return nil, e.fail(err, slot.binding.Property, slot.binding.Ordinal)
		}
	}
	for _, slot := range ct.owned {
		v, err := ct.document(rc, e, slot)
		if err != nil {
			return nil, err
		}
		if err := assign(inst.FieldByIndex(slot.field), v); err != nil {
			return nil, e.fail(err, nil, slot.binding.Ordinal)
		}
	}
	for _, slot := range ct.includes {
		if slot.inc.ref == nil {
			continue
		}
		v, err := slot.inc.ref.build(rc, f)
		if err != nil {
			return nil, err
		}
		if err := assign(inst.FieldByIndex(slot.field), v); err != nil {
			return nil, err
		}
	}
	return ptr.Interface(), nil
}

// cell reads a property cell converted to its mapping's Go type
func (ct *concreteShaper) cell(rc *rowCtx, e *entityShaper, b PropertyBinding, nilable bool) (any, error) {
	if rc.row.IsNull(b.Ordinal) {
		if !nilable && !b.Property.Nullable {
			return nil, e.fail(ErrUnexpectedNull, b.Property, b.Ordinal)
		}
		return nil, nil
	}
	v, err := scalarValue(rc.row.Value(b.Ordinal), b.Property.Mapping)
	if err != nil {
		return nil, e.fail(err, b.Property, b.Ordinal)
	}
	return v, nil
}

func (ct *concreteShaper) document(rc *rowCtx, e *entityShaper, slot ownedSlot) (any, error) {
	o := slot.binding.Ordinal
	if rc.row.IsNull(o) {
		return nil, nil
	}
	v, err := decodeDocument(rc.row.Value(o), slot.decode)
	if err != nil {
		return nil, e.fail(err, nil, o)
	}
	return v, nil
}

// attach connects the collection includes of an instance. Collections of a
// resolved instance that was materialized before keep their elements and
// skip the ones already present.
func (ct *concreteShaper) attach(rc *rowCtx, f *frame, v any, resolved bool) error {
	for _, slot := range ct.includes {
		if slot.inc.coll == nil {
			continue
		}
		var add func(any) error
		if ct.goType == nil {
			add = mapAdder(v.(map[string]any), slot.inc.nav.Name, resolved || rc.s.p.opts.IdentityResolution)
		} else {
			fv := reflect.ValueOf(v).Elem().FieldByIndex(slot.field)
			if !resolved {
				fv.Set(reflect.MakeSlice(fv.Type(), 0, 0))
			}
			add = sliceAdder(fv, resolved || rc.s.p.opts.IdentityResolution)
		}
		if err := slot.inc.coll.attach(rc, f, add); err != nil {
			return err
		}
	}
	return nil
}

func mapAdder(m map[string]any, name string, dedupe bool) func(any) error {
	if _, ok := m[name]; !ok {
		m[name] = []any{}
	}
	return func(v any) error {
		elems := m[name].([]any)
		if dedupe {
			for _, existing := range elems {
				if sameInstance(existing, v) {
					return nil
				}
			}
		}
		m[name] = append(elems, v)
		return nil
	}
}

func sliceAdder(fv reflect.Value, dedupe bool) func(any) error {
	return func(v any) error {
		if dedupe {
			for i := 0; i < fv.Len(); i++ {
				if sameInstance(fv.Index(i).Interface(), v) {
					return nil
				}
			}
		}
		ev := reflect.New(fv.Type().Elem()).Elem()
		if err := assign(ev, v); err != nil {
			return err
		}
		fv.Set(reflect.Append(fv, ev))
		return nil
	}
}

type scalarShaper struct {
	node *Scalar
}

func (s *scalarShaper) build(rc *rowCtx, _ *frame) (any, error) {
	o := s.node.Ordinal
	if rc.row.IsNull(o) {
		if !s.node.Nullable {
			return nil, rc.fail(ErrUnexpectedNull, o)
		}
		return nil, nil
	}
	v, err := scalarValue(rc.row.Value(o), s.node.Mapping)
	if err != nil {
		return nil, rc.fail(err, o)
	}
	return v, nil
}

type documentShaper struct {
	node *Document
}

func (d *documentShaper) build(rc *rowCtx, _ *frame) (any, error) {
	o := d.node.Ordinal
	if rc.row.IsNull(o) {
		return nil, nil
	}
	t := d.node.Type.GoType
	if t != nil && d.node.Collection {
		t = reflect.SliceOf(reflect.PointerTo(t))
	}
	v, err := decodeDocument(rc.row.Value(o), t)
	if err != nil {
		return nil, rc.fail(err, o)
	}
	if t != nil && d.node.Collection && v != nil {
		return reflect.ValueOf(v).Elem().Interface(), nil
	}
	return v, nil
}

type objectField struct {
	name  string
	value materializer
	coll  collector
}

type objectShaper struct {
	fields []objectField
}

func (o *objectShaper) build(rc *rowCtx, f *frame) (any, error) {
	out := make(map[string]any, len(o.fields))
	for _, field := range o.fields {
		if field.coll != nil {
			add := mapAdder(out, field.name, rc.s.p.opts.IdentityResolution)
			if err := field.coll.attach(rc, f, add); err != nil {
				return nil, err
			}
			continue
		}
		v, err := field.value.build(rc, f)
		if err != nil {
			return nil, err
		}
		out[field.name] = v
	}
	return out, nil
}

type groupingShaper struct {
	key      materializer
	elements collector
}

func (g *groupingShaper) build(rc *rowCtx, f *frame) (any, error) {
	key, err := g.key.build(rc, f)
	if err != nil {
		return nil, err
	}
	group := &Group{Key: key, Elements: []any{}}
	add := func(v any) error {
		group.Elements = append(group.Elements, v)
		return nil
	}
	return group, g.elements.attach(rc, f, add)
}
