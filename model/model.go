package model

import (
	"reflect"
	"unicode"
)

// Table marks a struct as a mapping root. Its jpersist tag may name the table:
//
//	type User struct {
//		model.Table `jpersist:"table:users"`
//		ID int64    `jpersist:"pk"`
//	}
type Table struct{}

var tableType = reflect.TypeOf(Table{})

// RecordType describes the persistent shape of a record: its table and the
// bindings of its fields. Definitions are plain data; Registry.Resolve returns
// a linked copy that must be treated as read-only.
type RecordType struct {
	Name      string
	TableName string
	Table     bool     // mapping-root marker
	Fields    []*Field // fields declared on the record itself
	Bases     []string // embedded record types, searched after Fields, depth first

	goType reflect.Type

	// set on resolved copies only
	levels   [][]*Field
	identity *Field
}

// Identity returns the identity field, direct or inherited. Nil on unresolved definitions.
func (rt *RecordType) Identity() *Field {
	return rt.identity
}

// AllFields returns the fields of the whole inheritance chain, own fields first.
// On an unresolved definition only the own fields are returned.
func (rt *RecordType) AllFields() []*Field {
	if rt.levels == nil {
		return rt.Fields
	}
	var out []*Field
	for _, level := range rt.levels {
		out = append(out, level...)
	}
	return out
}

// Columns returns the fields that occupy a column in the record's table.
func (rt *RecordType) Columns() []*Field {
	var out []*Field
	for _, f := range rt.AllFields() {
		if f.Kind != KindCollection {
			out = append(out, f)
		}
	}
	return out
}

// GoType returns the Go struct type the record was registered from, if any.
func (rt *RecordType) GoType() reflect.Type {
	return rt.goType
}

func (rt *RecordType) clone() *RecordType {
	c := *rt
	c.Fields = append([]*Field(nil), rt.Fields...)
	c.Bases = append([]string(nil), rt.Bases...)
	return &c
}

func camelToSnake(s string) string {
	if s == "ID" {
		return "id"
	}
	runes := []rune(s)
	var res []rune
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				res = append(res, '_')
			}
			res = append(res, unicode.ToLower(r))
		} else {
			res = append(res, r)
		}
	}
	return string(res)
}
