// Package value converts untyped JSON scalars into statically typed column values
// and copies runtime-typed values into rows.
//
// JSON wire type to column value, per declared kind:
//
//	Int32/Int64     integral numbers, numeric strings (range checked)
//	Bool            true/false, "true"/"false"
//	String          strings; numbers and booleans in their JSON text form
//	Float32/Float64 numbers, numeric strings
//	Any             the scalar unchanged (integral numbers become int64)
//
// null, objects and arrays never coerce to a scalar kind.
package value

import (
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Field returns the member of a JSON object with exactly the given key.
// Keys are compared verbatim, so dots and wildcards in keys need no escaping.
func Field(obj gjson.Result, key string) (gjson.Result, bool) {
	var (
		found gjson.Result
		ok    bool
	)
	obj.ForEach(func(k, v gjson.Result) bool {
		if k.Str == key {
			found, ok = v, true
			return false
		}
		return true
	})
	return found, ok
}

// Get reads key from a JSON object and coerces it to kind.
func Get(obj gjson.Result, key string, kind Kind) (any, error) {
	r, ok := Field(obj, key)
	if !ok {
		return nil, &TypeMismatchError{Key: key, Want: kind, Got: "missing"}
	}
	return Coerce(key, r, kind)
}

// Coerce narrows the JSON value r, found under key, to kind.
func Coerce(key string, r gjson.Result, kind Kind) (any, error) {
	mismatch := func() error {
		return &TypeMismatchError{Key: key, Want: kind, Got: TypeName(r), Raw: r.Raw}
	}

	switch kind {
	case Int32:
		n, ok := toInt(r)
		if !ok || n < math.MinInt32 || n > math.MaxInt32 {
			return nil, mismatch()
		}
		return int32(n), nil
	case Int64:
		n, ok := toInt(r)
		if !ok {
			return nil, mismatch()
		}
		return n, nil
	case Bool:
		switch r.Type {
		case gjson.True:
			return true, nil
		case gjson.False:
			return false, nil
		case gjson.String:
			if b, err := strconv.ParseBool(strings.TrimSpace(r.Str)); err == nil {
				return b, nil
			}
		}
		return nil, mismatch()
	case String:
		switch r.Type {
		case gjson.String:
			return r.Str, nil
		case gjson.Number, gjson.True, gjson.False:
			return r.Raw, nil
		}
		return nil, mismatch()
	case Float32:
		f, ok := toFloat(r)
		if !ok || math.Abs(f) > math.MaxFloat32 {
			return nil, mismatch()
		}
		return float32(f), nil
	case Float64:
		f, ok := toFloat(r)
		if !ok {
			return nil, mismatch()
		}
		return f, nil
	case Any:
		if r.Type == gjson.Null || r.Type == gjson.JSON {
			return nil, mismatch()
		}
		return Native(r), nil
	}
	return nil, mismatch()
}

// Native returns the Go value of a JSON value. Integral numbers become int64,
// other numbers float64; objects and arrays come back as map[string]any and []any.
func Native(r gjson.Result) any {
	switch r.Type {
	case gjson.Null:
		return nil
	case gjson.True:
		return true
	case gjson.False:
		return false
	case gjson.String:
		return r.Str
	case gjson.Number:
		if n, err := strconv.ParseInt(r.Raw, 10, 64); err == nil {
			return n
		}
		return r.Num
	}
	return r.Value()
}

// TypeName names the JSON type of r for diagnostics.
func TypeName(r gjson.Result) string {
	switch {
	case !r.Exists():
		return "missing"
	case r.IsObject():
		return "object"
	case r.IsArray():
		return "array"
	}
	switch r.Type {
	case gjson.Null:
		return "null"
	case gjson.True, gjson.False:
		return "bool"
	case gjson.Number:
		return "number"
	case gjson.String:
		return "string"
	}
	return "json"
}

func toInt(r gjson.Result) (int64, bool) {
	var text string
	switch r.Type {
	case gjson.Number:
		text = r.Raw
	case gjson.String:
		text = strings.TrimSpace(r.Str)
	default:
		return 0, false
	}

	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

func toFloat(r gjson.Result) (float64, bool) {
	switch r.Type {
	case gjson.Number:
		return r.Num, true
	case gjson.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(r.Str), 64)
		return f, err == nil
	}
	return 0, false
}
