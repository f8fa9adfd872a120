package model

import (
	"database/sql/driver"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/shrek82/jpersist/value"
)

var (
	timeType   = reflect.TypeOf(time.Time{})
	valuerType = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
)

// Register reads jpersist struct tags from the given values (structs or
// pointers to structs) and adds a record type for each struct reachable from
// them. Types registered earlier are reused.
func (r *Registry) Register(values ...any) error {
	r.mu.Lock()
	known := make(map[reflect.Type]string, len(r.goTypes))
	for typ, name := range r.goTypes {
		known[typ] = name
	}
	r.mu.Unlock()

	p := &structParser{known: known, seen: make(map[reflect.Type]*RecordType)}
	for _, v := range values {
		if v == nil {
			return fmt.Errorf("%w: cannot register nil", ErrSchema)
		}
		typ := reflect.TypeOf(v)
		for typ.Kind() == reflect.Ptr {
			typ = typ.Elem()
		}
		if typ.Kind() != reflect.Struct {
			return fmt.Errorf("%w: value must be a struct or pointer to struct, got %s", ErrSchema, typ.Kind())
		}
		if _, err := p.parse(typ); err != nil {
			return err
		}
	}
	return r.Add(p.order...)
}

type structParser struct {
	known map[reflect.Type]string
	seen  map[reflect.Type]*RecordType
	order []*RecordType
}

func (p *structParser) parse(typ reflect.Type) (string, error) {
	if name, ok := p.known[typ]; ok {
		return name, nil
	}
	if rt, ok := p.seen[typ]; ok {
		return rt.Name, nil
	}
	if typ.Name() == "" {
		return "", fmt.Errorf("%w: anonymous struct types cannot be records", ErrSchema)
	}

	rt := &RecordType{Name: typ.Name(), goType: typ}
	p.seen[typ] = rt
	p.order = append(p.order, rt)

	for i := 0; i < typ.NumField(); i++ {
		sf := typ.Field(i)
		tag := ParseTag(sf.Tag.Get("jpersist"))

		if sf.Type == tableType {
			rt.Table = true
			rt.TableName = tag.Table
			continue
		}
		if tag.Skip || (!sf.IsExported() && !sf.Anonymous) {
			continue
		}

		if sf.Anonymous && isRecordStruct(sf.Type) {
			base, err := p.parse(deref(sf.Type))
			if err != nil {
				return "", err
			}
			rt.Bases = append(rt.Bases, base)
			continue
		}

		name, ok := jsonName(sf)
		if !ok {
			continue
		}
		f, err := p.field(rt.Name, sf, name, tag)
		if err != nil {
			return "", err
		}
		rt.Fields = append(rt.Fields, f)
	}
	return rt.Name, nil
}

func (p *structParser) field(record string, sf reflect.StructField, name string, tag *Tag) (*Field, error) {
	f := &Field{
		Name:     name,
		From:     tag.From,
		Column:   tag.Column,
		Nullable: tag.Nullable || sf.Type.Kind() == reflect.Ptr,
	}
	typ := sf.Type

	switch {
	case tag.PrimaryKey:
		kind, ok := value.KindOf(typ)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s: unsupported identity type %s", ErrSchema, record, sf.Name, typ)
		}
		f.Kind = KindIdentity
		f.Scalar = kind
		f.Generated = tag.AutoInc

	case typ.Kind() == reflect.Slice && isRecordStruct(typ.Elem()):
		target, err := p.parse(deref(typ.Elem()))
		if err != nil {
			return nil, err
		}
		c := &Collection{
			Kind:         OneToMany,
			Target:       target,
			BackRef:      tag.BackRef,
			SingleColumn: tag.Single,
		}
		if tag.ManyToMany != "" {
			c.Kind = ManyToMany
			c.Other = tag.ManyToMany
			c.Link = tag.Link
		}
		f.Kind = KindCollection
		f.Column = ""
		f.Collection = c

	case isRecordStruct(typ):
		target, err := p.parse(deref(typ))
		if err != nil {
			return nil, err
		}
		f.Kind = KindRelation
		f.Target = target
		if tag.FK != "" {
			f.Column = tag.FK
		}

	default:
		kind, ok := scalarKind(typ)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s: unsupported field type %s", ErrSchema, record, sf.Name, typ)
		}
		f.Kind = KindScalar
		f.Scalar = kind
	}
	return f, nil
}

func scalarKind(typ reflect.Type) (value.Kind, bool) {
	if typ.Implements(valuerType) || reflect.PointerTo(deref(typ)).Implements(valuerType) {
		return value.Any, true
	}
	if typ.Kind() == reflect.Slice && typ.Elem().Kind() == reflect.Uint8 {
		return value.String, true
	}
	return value.KindOf(typ)
}

// isRecordStruct reports whether typ (or its pointee) is a struct that maps to
// its own record rather than to a column value.
func isRecordStruct(typ reflect.Type) bool {
	typ = deref(typ)
	if typ.Kind() != reflect.Struct || typ == timeType || typ == tableType {
		return false
	}
	return !typ.Implements(valuerType) && !reflect.PointerTo(typ).Implements(valuerType)
}

func deref(typ reflect.Type) reflect.Type {
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	return typ
}

// jsonName returns the declared name of a struct field: its json tag name, or
// the Go field name. ok is false for fields excluded with json:"-".
func jsonName(sf reflect.StructField) (string, bool) {
	tag := sf.Tag.Get("json")
	if tag == "-" {
		return "", false
	}
	if name, _, _ := strings.Cut(tag, ","); name != "" {
		return name, true
	}
	return sf.Name, true
}
