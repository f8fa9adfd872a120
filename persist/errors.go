package persist

import "errors"

var (
	// ErrInvalidJSON is returned when the input is not a JSON document of the expected shape.
	ErrInvalidJSON = errors.New("invalid json")
	// ErrJSONPath is returned when a path does not lead to an object or array.
	ErrJSONPath = errors.New("json path error")
)
