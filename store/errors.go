package store

import (
	"errors"
	"fmt"

	"github.com/shrek82/jpersist/dialect"
)

var (
	// ErrStore matches every error reported by the underlying database.
	ErrStore = errors.New("store error")
	// ErrDuplicateKey is returned when a database unique constraint is violated.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrForeignKey is returned when a database foreign key constraint is violated.
	ErrForeignKey = errors.New("foreign key constraint")
	// ErrTxDone is returned when a finished transaction is used again.
	ErrTxDone = errors.New("transaction already committed or rolled back")
	// ErrUnknownDialect is returned by Open for a driver without a registered dialect.
	ErrUnknownDialect = errors.New("unknown dialect")
)

// Error is a failed store operation. It matches ErrStore, and ErrDuplicateKey
// or ErrForeignKey when the driver reported a constraint violation.
type Error struct {
	Op         string // begin, insert, select, update, delete, commit, rollback, migrate
	Table      string
	Constraint dialect.Constraint
	Err        error
}

func (e *Error) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store: %s %s: %v", e.Op, e.Table, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrStore:
		return true
	case ErrDuplicateKey:
		return e.Constraint == dialect.ConstraintUnique
	case ErrForeignKey:
		return e.Constraint == dialect.ConstraintForeignKey
	}
	return false
}

func wrapErr(d dialect.Dialect, op, table string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	e := &Error{Op: op, Table: table, Err: err}
	if d != nil {
		e.Constraint = d.Classify(err)
	}
	return e
}
