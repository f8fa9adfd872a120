// Package store is the relational row store used by the persistence engine:
// transactions with single-table insert, identity lookup, update and delete,
// built on database/sql with per-driver SQL dialects.
package store

import "context"

// Store opens transactions.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
}

// Tx is one open transaction. After Commit or Rollback the Tx must not be used.
type Tx interface {
	Commit() error
	Rollback() error

	// Insert adds a row. When returning names a store-generated identity
	// column the new key is returned; otherwise the result is nil.
	// An empty row inserts a row of defaults.
	Insert(ctx context.Context, table string, row map[string]any, returning string) (any, error)
	// QueryIdentity reports whether a row with column = value exists.
	QueryIdentity(ctx context.Context, table, column string, value any) (bool, error)
	// Update sets the row's columns on every row matching all predicates.
	Update(ctx context.Context, table string, row map[string]any, where ...Predicate) (int64, error)
	// Delete removes every row matching all predicates.
	Delete(ctx context.Context, table string, where ...Predicate) (int64, error)
}

type operator int

const (
	opEq operator = iota
	opIn
	opNotIn
)

// Predicate is one column condition of an UPDATE or DELETE.
type Predicate struct {
	Column string
	op     operator
	Values []any
}

// Eq matches rows where column = v.
func Eq(column string, v any) Predicate {
	return Predicate{Column: column, op: opEq, Values: []any{v}}
}

// In matches rows where column is one of values. An empty set matches nothing.
func In(column string, values ...any) Predicate {
	return Predicate{Column: column, op: opIn, Values: values}
}

// NotIn matches rows where column is none of values. An empty set matches every row.
func NotIn(column string, values ...any) Predicate {
	return Predicate{Column: column, op: opNotIn, Values: values}
}
