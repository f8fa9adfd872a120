package store

import (
	"context"
	"time"
)

// Statement is one SQL statement on its way to the driver.
type Statement struct {
	Op    string // insert, select, update, delete, migrate
	Table string
	SQL   string
	Args  []any

	// Fields are attached to the statement's log line.
	Fields map[string]any

	query        bool // returns a single value scanned into Result.Value
	lastInsertID bool
}

// Result is the outcome of a Statement.
type Result struct {
	RowsAffected int64
	LastInsertID int64
	Value        any // scanned value of a single-value query
	Duration     time.Duration
}

// ExecFunc is the function type for the next step in the middleware chain.
type ExecFunc func(ctx context.Context, stmt *Statement) (*Result, error)

// Middleware intercepts every statement a DB executes.
type Middleware interface {
	Name() string
	Process(ctx context.Context, stmt *Statement, next ExecFunc) (*Result, error)
}

// MiddlewareFunc adapts a function to Middleware.
type MiddlewareFunc func(ctx context.Context, stmt *Statement, next ExecFunc) (*Result, error)

func (f MiddlewareFunc) Name() string { return "func" }

func (f MiddlewareFunc) Process(ctx context.Context, stmt *Statement, next ExecFunc) (*Result, error) {
	return f(ctx, stmt, next)
}

// chain wraps final with mws so that mws[0] runs first.
func chain(mws []Middleware, final ExecFunc) ExecFunc {
	next := final
	for i := len(mws) - 1; i >= 0; i-- {
		mw, inner := mws[i], next
		next = func(ctx context.Context, stmt *Statement) (*Result, error) {
			return mw.Process(ctx, stmt, inner)
		}
	}
	return next
}
