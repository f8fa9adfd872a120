package value

import (
	"errors"
	"fmt"
)

var (
	// ErrTypeMismatch is returned when a JSON value cannot be narrowed to the declared kind.
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrUnsupportedValueType is returned when a runtime value has no column representation.
	ErrUnsupportedValueType = errors.New("unsupported value type")
)

// TypeMismatchError carries the offending input so callers can report it.
type TypeMismatchError struct {
	Key  string
	Want Kind
	Got  string // JSON type of the value found
	Raw  string // raw JSON text of the value
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch: key %q holds %s %s, want %s", e.Key, e.Got, e.Raw, e.Want)
}

func (e *TypeMismatchError) Is(target error) bool {
	return target == ErrTypeMismatch
}
