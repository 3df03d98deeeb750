// Package schema loads a query model from a Prisma schema file.
package schema

import (
	"fmt"
	"strings"

	"github.com/satishbabariya/relquery/metadata"
)

// Schema is a loaded Prisma schema
type Schema struct {
	// Provider is the datasource provider, e.g. "postgresql" or "sqlite"
	Provider string
	// URL is the datasource url when it is a string literal
	URL   string
	Model *metadata.Model
}

// Load parses src and builds a model. types optionally binds model and
// composite type names to Go struct samples; unbound models materialize as
// map[string]any.
func Load(filename, src string, types map[string]any) (*Schema, error) {
	f, err := parse(filename, src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}

	out := &Schema{}
	enums := make(map[string]bool)
	composites := make(map[string]*typeDecl)
	models := make(map[string]*modelDecl)
	for _, d := range f.Decls {
		switch {
		case d.Enum != nil:
			enums[d.Enum.Name] = true
		case d.Composite != nil:
			composites[d.Composite.Name] = d.Composite
		case d.Model != nil:
			models[d.Model.Name] = d.Model
		case d.Config != nil && d.Config.Kind == "datasource":
			for _, p := range d.Config.Properties {
				s, ok := p.Value.(*stringValue)
				if !ok {
					continue
				}
				switch p.Name {
				case "provider":
					out.Provider = s.Value
				case "url":
					out.URL = s.Value
				}
			}
		}
	}

	l := &loader{b: metadata.NewBuilder(), enums: enums, composites: composites, models: models}
	for _, d := range f.Decls {
		if d.Composite != nil {
			if err := l.composite(d.Composite, types[d.Composite.Name]); err != nil {
				return nil, err
			}
		}
	}
	for _, d := range f.Decls {
		if d.Model != nil {
			if err := l.model(d.Model, types[d.Model.Name]); err != nil {
				return nil, err
			}
		}
	}
	out.Model, err = l.b.Build()
	if err != nil {
		return nil, err
	}
	return out, nil
}

type loader struct {
	b          *metadata.Builder
	enums      map[string]bool
	composites map[string]*typeDecl
	models     map[string]*modelDecl
}

func (l *loader) scalar(fd *fieldDecl) (*metadata.TypeMapping, bool) {
	if l.enums[fd.Type] {
		return metadata.String, true
	}
	return metadata.MappingForPrismaType(fd.Type)
}

func (l *loader) propertyOptions(fd *fieldDecl, mapping *metadata.TypeMapping) []metadata.PropertyOption {
	opts := []metadata.PropertyOption{metadata.WithMapping(mapping), metadata.Required()}
	if fd.Optional {
		opts[1] = metadata.Optional()
	}
	for _, a := range fd.Attributes {
		switch {
		case a.Name == "map":
			if col, ok := stringArg(a.Args, "name", 0); ok {
				opts = append(opts, metadata.Column(col))
			}
		case strings.HasPrefix(a.Name, "db."):
			storeType := strings.ToLower(strings.TrimPrefix(a.Name, "db."))
			if rendered := renderArgs(a.Args); rendered != "" {
				storeType += "(" + rendered + ")"
			}
			opts = append(opts, metadata.StoreType(storeType))
		}
	}
	return opts
}

func (l *loader) composite(td *typeDecl, sample any) error {
	cb := l.b.Complex(td.Name, sample)
	for _, fd := range td.Fields {
		if _, ok := l.composites[fd.Type]; ok {
			key := fieldColumn(fd)
			if fd.List {
				cb.OwnsMany(fd.Name, fd.Type, key)
			} else {
				cb.OwnsOne(fd.Name, fd.Type, key)
			}
			continue
		}
		mapping, ok := l.scalar(fd)
		if !ok || fd.List {
			return fmt.Errorf("type %s: field %s has unsupported type %s", td.Name, fd.Name, fd.Type)
		}
		opts := l.propertyOptions(fd, mapping)
		opts = append(opts, metadata.Column(fieldColumn(fd)))
		cb.Property(fd.Name, opts...)
	}
	return nil
}

func (l *loader) model(md *modelDecl, sample any) error {
	eb := l.b.Entity(md.Name, sample).Table(md.Name)
	var keys, declared []string
	for _, fd := range md.Fields {
		if fd.attribute("ignore") != nil {
			eb.Ignore(fd.Name)
			continue
		}
		if _, ok := l.composites[fd.Type]; ok {
			if fd.List {
				eb.OwnsMany(fd.Name, fd.Type, fieldColumn(fd))
			} else {
				eb.OwnsOne(fd.Name, fd.Type, fieldColumn(fd))
			}
			continue
		}
		if target, ok := l.models[fd.Type]; ok {
			l.relation(eb, md, fd, target)
			continue
		}
		mapping, ok := l.scalar(fd)
		if !ok || fd.List {
			return fmt.Errorf("model %s: field %s has unsupported type %s", md.Name, fd.Name, fd.Type)
		}
		opts := l.propertyOptions(fd, mapping)
		if !hasAttribute(fd.Attributes, "map") {
			opts = append(opts, metadata.Column(fd.Name))
		}
		eb.Property(fd.Name, opts...)
		declared = append(declared, fd.Name)
		if fd.attribute("id") != nil {
			keys = append(keys, fd.Name)
		}
	}
	for _, a := range md.Attributes {
		switch a.Name {
		case "id":
			keys = listArg(a.Args, "fields", 0)
		case "map":
			if table, ok := stringArg(a.Args, "name", 0); ok {
				eb.Table(table)
			}
		case "schema":
			if s, ok := stringArg(a.Args, "name", 0); ok {
				eb.Schema(s)
			}
		}
	}
	eb.Only(declared...)
	if len(keys) > 0 {
		eb.Key(keys...)
	}
	return nil
}

// relation declares the navigation for a model-typed field. The side holding
// @relation(fields: ...) owns the foreign key; the other side is resolved by
// finding the back-reference on the target.
func (l *loader) relation(eb *metadata.EntityBuilder, md *modelDecl, fd *fieldDecl, target *modelDecl) {
	rel := fd.attribute("relation")
	if rel != nil {
		if fields := listArg(rel.Args, "fields", -1); len(fields) > 0 {
			eb.BelongsTo(fd.Name, target.Name, fields...)
			return
		}
	}
	name := relationName(rel)
	for _, back := range target.Fields {
		if back.Type != md.Name || (back == fd) {
			continue
		}
		backRel := back.attribute("relation")
		if backRel == nil || relationName(backRel) != name {
			continue
		}
		fields := listArg(backRel.Args, "fields", -1)
		if len(fields) == 0 {
			continue
		}
		if fd.List {
			eb.HasMany(fd.Name, target.Name, fields...)
		} else {
			eb.HasOne(fd.Name, target.Name, fields...)
		}
		return
	}
}

func relationName(a *attribute) string {
	if a == nil {
		return ""
	}
	name, _ := stringArg(a.Args, "name", 0)
	return name
}

func (fd *fieldDecl) attribute(name string) *attribute {
	for _, a := range fd.Attributes {
		if a.Name == name {
			return a
		}
	}
	return nil
}

func hasAttribute(attrs []*attribute, name string) bool {
	for _, a := range attrs {
		if a.Name == name {
			return true
		}
	}
	return false
}

func fieldColumn(fd *fieldDecl) string {
	if a := fd.attribute("map"); a != nil {
		if col, ok := stringArg(a.Args, "name", 0); ok {
			return col
		}
	}
	return fd.Name
}
