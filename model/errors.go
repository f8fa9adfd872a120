package model

import "errors"

var (
	// ErrSchema is returned when a record type lacks required mapping metadata.
	ErrSchema = errors.New("schema error")
	// ErrRelationResolution is returned when a relation cannot be tied back to its parent.
	ErrRelationResolution = errors.New("relation resolution error")
)
