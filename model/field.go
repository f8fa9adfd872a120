package model

import (
	"github.com/shrek82/jpersist/value"
)

// FieldKind classifies how a field is persisted.
type FieldKind int

const (
	KindScalar     FieldKind = iota // plain column
	KindIdentity                    // primary key
	KindRelation                    // to-one: target identity stored in Column
	KindCollection                  // one-to-many or many-to-many set of rows
)

func (k FieldKind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindIdentity:
		return "identity"
	case KindRelation:
		return "relation"
	case KindCollection:
		return "collection"
	}
	return "unknown"
}

// CollectionKind distinguishes one-to-many from many-to-many collections.
type CollectionKind int

const (
	OneToMany CollectionKind = iota
	ManyToMany
)

func (k CollectionKind) String() string {
	if k == ManyToMany {
		return "many_to_many"
	}
	return "one_to_many"
}

// Field binds a JSON key to a column or a related set of rows.
type Field struct {
	Name     string // declared name, matched against JSON keys
	From     string // explicit JSON key override
	Column   string
	Kind     FieldKind
	Scalar   value.Kind // identity and scalar fields
	Nullable bool

	Generated bool // identity: the store assigns the key

	Target     string      // relation: target record name
	Collection *Collection // collection fields only
}

// Collection describes a one-to-many or many-to-many binding.
type Collection struct {
	Kind CollectionKind
	// Target is the child record for one-to-many and the junction record for many-to-many.
	Target string
	// BackRef names the field on Target pointing at the parent. Empty means
	// the first relation field whose target the parent is assignable to.
	BackRef string
	// Other is the declared many-to-many target record.
	Other string
	// Link names the junction field pointing at Other.
	Link string
	// SingleColumn stores bare scalar elements directly into this column of Target.
	SingleColumn string

	backRef *Field
	link    *Field
	single  *Field
}

// BackRefField returns the resolved field on the child (or junction) that references the parent.
func (c *Collection) BackRefField() *Field {
	return c.backRef
}

// SingleField returns the resolved child field named by SingleColumn.
func (c *Collection) SingleField() *Field {
	return c.single
}

// LinkField returns the resolved junction field that references Other.
func (c *Collection) LinkField() *Field {
	return c.link
}

// IsIdentity reports whether f is the primary key of its record.
func (f *Field) IsIdentity() bool {
	return f.Kind == KindIdentity
}

func (f *Field) clone() *Field {
	c := *f
	if f.Collection != nil {
		col := *f.Collection
		c.Collection = &col
	}
	return &c
}
