package value

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// Kind is the statically declared type of a column value.
type Kind int

const (
	Invalid Kind = iota
	Int32
	Int64
	Bool
	String
	Float32
	Float64
	// Any stores the JSON scalar as it comes, without narrowing.
	Any
)

var kindNames = map[Kind]string{
	Invalid: "invalid",
	Int32:   "int32",
	Int64:   "int64",
	Bool:    "bool",
	String:  "string",
	Float32: "float32",
	Float64: "float64",
	Any:     "any",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind maps a schema type name onto a Kind.
// Aliases used by the YAML schema ("int", "integer", "text", "double", ...) are accepted.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "int32", "int", "integer":
		return Int32, nil
	case "int64", "long", "bigint":
		return Int64, nil
	case "bool", "boolean":
		return Bool, nil
	case "string", "text":
		return String, nil
	case "float32", "float", "real":
		return Float32, nil
	case "float64", "double":
		return Float64, nil
	case "any", "":
		return Any, nil
	}
	return Invalid, fmt.Errorf("unknown value kind %q", name)
}

var timeType = reflect.TypeOf(time.Time{})

// KindOf returns the Kind for a Go field type. Pointers are followed, so *string
// is String. Go int and uint types map to Int64 except the narrow ones.
func KindOf(typ reflect.Type) (Kind, bool) {
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ == timeType {
		return String, true
	}

	switch typ.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Uint8, reflect.Uint16:
		return Int32, true
	case reflect.Int, reflect.Int64, reflect.Uint, reflect.Uint32, reflect.Uint64:
		return Int64, true
	case reflect.Bool:
		return Bool, true
	case reflect.String:
		return String, true
	case reflect.Float32:
		return Float32, true
	case reflect.Float64:
		return Float64, true
	case reflect.Interface:
		return Any, true
	}
	return Invalid, false
}
