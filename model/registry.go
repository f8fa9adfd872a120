package model

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/shrek82/jpersist/value"
)

// Registry holds the record types of one schema. Definitions are added once;
// resolved descriptors and field lookups are memoized for the registry's lifetime.
// A Registry is safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	defs    map[string]*RecordType
	goTypes map[reflect.Type]string

	resolved sync.Map // record name -> *RecordType
	located  sync.Map // locateKey -> *Field
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		defs:    make(map[string]*RecordType),
		goTypes: make(map[reflect.Type]string),
	}
}

// Add registers record definitions. Column and table names left empty get
// their snake_case defaults. Adding a name twice is an error.
func (r *Registry) Add(defs ...*RecordType) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prepared := make([]*RecordType, 0, len(defs))
	seen := make(map[string]bool, len(defs))
	for _, def := range defs {
		rt, err := prepare(def)
		if err != nil {
			return err
		}
		if _, ok := r.defs[rt.Name]; ok || seen[rt.Name] {
			return fmt.Errorf("%w: record %s registered twice", ErrSchema, rt.Name)
		}
		seen[rt.Name] = true
		prepared = append(prepared, rt)
	}

	for _, rt := range prepared {
		r.defs[rt.Name] = rt
		if rt.goType != nil {
			r.goTypes[rt.goType] = rt.Name
		}
	}
	return nil
}

func prepare(def *RecordType) (*RecordType, error) {
	if def == nil || def.Name == "" {
		return nil, fmt.Errorf("%w: record without a name", ErrSchema)
	}
	rt := def.clone()
	if rt.Table && rt.TableName == "" {
		rt.TableName = camelToSnake(rt.Name)
	}

	names := make(map[string]bool, len(rt.Fields))
	for i, f := range rt.Fields {
		if f == nil || f.Name == "" {
			return nil, fmt.Errorf("%w: record %s has a field without a name", ErrSchema, rt.Name)
		}
		if names[f.Name] {
			return nil, fmt.Errorf("%w: record %s declares field %s twice", ErrSchema, rt.Name, f.Name)
		}
		names[f.Name] = true

		f = f.clone()
		rt.Fields[i] = f
		if err := prepareField(rt.Name, f); err != nil {
			return nil, err
		}
	}
	return rt, nil
}

func prepareField(record string, f *Field) error {
	switch f.Kind {
	case KindIdentity:
		switch f.Scalar {
		case value.Int32, value.Int64:
		case value.String:
			if f.Generated {
				return fmt.Errorf("%w: %s.%s: generated identities must be integers", ErrSchema, record, f.Name)
			}
		default:
			return fmt.Errorf("%w: %s.%s: identity of kind %s", ErrSchema, record, f.Name, f.Scalar)
		}
		if f.Column == "" {
			f.Column = camelToSnake(f.Name)
		}
	case KindScalar:
		if f.Scalar == value.Invalid {
			return fmt.Errorf("%w: %s.%s has no value kind", ErrSchema, record, f.Name)
		}
		if f.Column == "" {
			f.Column = camelToSnake(f.Name)
		}
	case KindRelation:
		if f.Target == "" {
			return fmt.Errorf("%w: relation %s.%s has no target", ErrSchema, record, f.Name)
		}
		if f.Column == "" {
			f.Column = camelToSnake(f.Name) + "_id"
		}
	case KindCollection:
		c := f.Collection
		if c == nil || c.Target == "" {
			return fmt.Errorf("%w: collection %s.%s has no target", ErrSchema, record, f.Name)
		}
		if c.Kind == ManyToMany && c.Other == "" {
			return fmt.Errorf("%w: many-to-many %s.%s has no declared target type", ErrSchema, record, f.Name)
		}
		if c.Kind == ManyToMany && c.SingleColumn != "" {
			return fmt.Errorf("%w: many-to-many %s.%s cannot use a single-target column", ErrSchema, record, f.Name)
		}
		f.Column = ""
	default:
		return fmt.Errorf("%w: %s.%s has unknown kind %d", ErrSchema, record, f.Name, f.Kind)
	}
	return nil
}

// Lookup resolves the record type for v, which may be a record name, a
// *RecordType, or a value (or pointer) of a registered Go struct type.
func (r *Registry) Lookup(v any) (*RecordType, error) {
	switch t := v.(type) {
	case string:
		return r.Resolve(t)
	case *RecordType:
		return r.Resolve(t.Name)
	case nil:
		return nil, fmt.Errorf("%w: nil record", ErrSchema)
	}

	typ := reflect.TypeOf(v)
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	r.mu.Lock()
	name, ok := r.goTypes[typ]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: type %s is not registered", ErrSchema, typ)
	}
	return r.Resolve(name)
}

// Resolve returns the linked descriptor of a mapping-root record. It fails
// with ErrSchema when the record is unknown, lacks the mapping-root marker or
// an identity field, and with ErrRelationResolution when a collection has no
// back-reference on its child.
func (r *Registry) Resolve(name string) (*RecordType, error) {
	if v, ok := r.resolved.Load(name); ok {
		return v.(*RecordType), nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.resolved.Load(name); ok {
		return v.(*RecordType), nil
	}

	rt, err := r.resolveLocked(name)
	if err != nil {
		return nil, err
	}
	r.resolved.Store(name, rt)
	return rt, nil
}

func (r *Registry) resolveLocked(name string) (*RecordType, error) {
	def, ok := r.defs[name]
	if !ok {
		return nil, fmt.Errorf("%w: record %s is not registered", ErrSchema, name)
	}
	if !def.Table {
		return nil, fmt.Errorf("%w: record %s has no table marker", ErrSchema, name)
	}

	chain, err := r.chainLocked(def, map[string]bool{})
	if err != nil {
		return nil, err
	}

	rt := def.clone()
	rt.levels = make([][]*Field, len(chain))
	for i, level := range chain {
		fields := make([]*Field, len(level.Fields))
		for j, f := range level.Fields {
			fields[j] = f.clone()
		}
		rt.levels[i] = fields
	}
	rt.Fields = rt.levels[0]

	for _, f := range rt.AllFields() {
		if f.Kind != KindIdentity {
			continue
		}
		if rt.identity != nil {
			return nil, fmt.Errorf("%w: record %s has identity fields %s and %s", ErrSchema, name, rt.identity.Name, f.Name)
		}
		rt.identity = f
	}
	if rt.identity == nil {
		return nil, fmt.Errorf("%w: record %s has no identity field", ErrSchema, name)
	}

	ancestors := make(map[string]bool, len(chain))
	for _, level := range chain {
		ancestors[level.Name] = true
	}

	for _, f := range rt.AllFields() {
		switch f.Kind {
		case KindRelation:
			if _, ok := r.defs[f.Target]; !ok {
				return nil, fmt.Errorf("%w: relation %s.%s targets unknown record %s", ErrSchema, name, f.Name, f.Target)
			}
		case KindCollection:
			if err := r.linkCollectionLocked(rt, f, ancestors); err != nil {
				return nil, err
			}
		}
	}
	return rt, nil
}

// chainLocked lists def followed by its bases, depth first.
func (r *Registry) chainLocked(def *RecordType, visiting map[string]bool) ([]*RecordType, error) {
	if visiting[def.Name] {
		return nil, fmt.Errorf("%w: record %s inherits from itself", ErrSchema, def.Name)
	}
	visiting[def.Name] = true
	defer delete(visiting, def.Name)

	chain := []*RecordType{def}
	for _, baseName := range def.Bases {
		base, ok := r.defs[baseName]
		if !ok {
			return nil, fmt.Errorf("%w: record %s embeds unknown record %s", ErrSchema, def.Name, baseName)
		}
		sub, err := r.chainLocked(base, visiting)
		if err != nil {
			return nil, err
		}
		chain = append(chain, sub...)
	}
	return chain, nil
}
