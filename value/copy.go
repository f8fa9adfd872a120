package value

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Copy stores v under column in row. It reports false, leaving row untouched,
// when v has no column representation.
func Copy(v any, column string, row map[string]any) bool {
	switch val := v.(type) {
	case nil:
		row[column] = nil
	case int, int8, int16, int32, int64,
		uint8, uint16, uint32,
		bool, float32, float64, string, []byte:
		row[column] = val
	case uint:
		row[column] = uint64(val)
	case uint64:
		if val > 1<<63-1 {
			return false
		}
		row[column] = int64(val)
	case json.Number:
		row[column] = val.String()
	case time.Time:
		row[column] = val
	case driver.Valuer:
		row[column] = val
	default:
		return false
	}
	return true
}

// MustCopy is Copy for paths where losing the value is not acceptable.
func MustCopy(v any, column string, row map[string]any) error {
	if !Copy(v, column, row) {
		return fmt.Errorf("%w: cannot store %T in column %q", ErrUnsupportedValueType, v, column)
	}
	return nil
}

// Normalize converts a value returned by the store (a generated key, usually
// int64 or []byte) into the Go type of kind.
func Normalize(v any, kind Kind) (any, error) {
	switch kind {
	case Int32, Int64:
		var n int64
		switch val := v.(type) {
		case int64:
			n = val
		case int32:
			n = int64(val)
		case int:
			n = int64(val)
		case uint64:
			if val > math.MaxInt64 {
				return nil, fmt.Errorf("%w: generated key %d overflows int64", ErrUnsupportedValueType, val)
			}
			n = int64(val)
		case float64:
			if val != math.Trunc(val) || val < math.MinInt64 || val >= math.MaxInt64 {
				return nil, fmt.Errorf("%w: generated key %v is not an int64", ErrUnsupportedValueType, val)
			}
			n = int64(val)
		case []byte:
			p, err := strconv.ParseInt(string(val), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: generated key %q is not an integer", ErrUnsupportedValueType, val)
			}
			n = p
		case string:
			p, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: generated key %q is not an integer", ErrUnsupportedValueType, val)
			}
			n = p
		default:
			return nil, fmt.Errorf("%w: generated key of type %T", ErrUnsupportedValueType, v)
		}
		if kind == Int32 {
			if n < math.MinInt32 || n > math.MaxInt32 {
				return nil, fmt.Errorf("%w: generated key %d overflows int32", ErrUnsupportedValueType, n)
			}
			return int32(n), nil
		}
		return n, nil
	case String:
		switch val := v.(type) {
		case string:
			return val, nil
		case []byte:
			return string(val), nil
		default:
			return fmt.Sprint(val), nil
		}
	case Any:
		if b, ok := v.([]byte); ok {
			return string(b), nil
		}
		return v, nil
	}
	return nil, fmt.Errorf("%w: %s cannot hold a generated key", ErrUnsupportedValueType, kind)
}
