package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// sqlTxn is a Tx over *sql.Tx.
type sqlTxn struct {
	db   *DB
	tx   *sql.Tx
	done bool
}

// Commit commits the transaction.
func (t *sqlTxn) Commit() error {
	if t.done {
		return wrapErr(nil, "commit", "", ErrTxDone)
	}
	t.done = true
	start := time.Now()
	err := t.tx.Commit()
	t.db.logSQL(nil, "COMMIT", time.Since(start))
	return wrapErr(t.db.dialect, "commit", "", err)
}

// Rollback rolls back the transaction.
func (t *sqlTxn) Rollback() error {
	if t.done {
		return wrapErr(nil, "rollback", "", ErrTxDone)
	}
	t.done = true
	start := time.Now()
	err := t.tx.Rollback()
	t.db.logSQL(nil, "ROLLBACK", time.Since(start))
	if errors.Is(err, sql.ErrTxDone) {
		err = ErrTxDone
	}
	return wrapErr(t.db.dialect, "rollback", "", err)
}

func (t *sqlTxn) check(op, table string) error {
	if t.done {
		return wrapErr(nil, op, table, ErrTxDone)
	}
	return nil
}

func (t *sqlTxn) Insert(ctx context.Context, table string, row map[string]any, returning string) (any, error) {
	if err := t.check("insert", table); err != nil {
		return nil, err
	}
	b := newBuilder(t.db.dialect, table)
	defer putBuilder(b)

	query, args, scan := b.buildInsert(row, returning)
	stmt := &Statement{
		Op:           "insert",
		Table:        table,
		SQL:          query,
		Args:         args,
		query:        scan,
		lastInsertID: returning != "" && !scan,
	}
	res, err := t.db.run(ctx, t.tx, stmt)
	if err != nil {
		return nil, err
	}
	switch {
	case returning == "":
		return nil, nil
	case scan:
		return res.Value, nil
	default:
		return res.LastInsertID, nil
	}
}

func (t *sqlTxn) QueryIdentity(ctx context.Context, table, column string, value any) (bool, error) {
	if err := t.check("select", table); err != nil {
		return false, err
	}
	b := newBuilder(t.db.dialect, table)
	defer putBuilder(b)

	query, args := b.predicates([]Predicate{Eq(column, value)}).buildCount()
	res, err := t.db.run(ctx, t.tx, &Statement{Op: "select", Table: table, SQL: query, Args: args, query: true})
	if err != nil {
		return false, err
	}
	n, err := countOf(res.Value)
	if err != nil {
		return false, wrapErr(t.db.dialect, "select", table, err)
	}
	return n > 0, nil
}

func (t *sqlTxn) Update(ctx context.Context, table string, row map[string]any, where ...Predicate) (int64, error) {
	if err := t.check("update", table); err != nil {
		return 0, err
	}
	if len(row) == 0 {
		return 0, nil
	}
	b := newBuilder(t.db.dialect, table)
	defer putBuilder(b)

	query, args := b.predicates(where).buildUpdate(row)
	res, err := t.db.run(ctx, t.tx, &Statement{Op: "update", Table: table, SQL: query, Args: args})
	if err != nil {
		return 0, err
	}
	return res.RowsAffected, nil
}

func (t *sqlTxn) Delete(ctx context.Context, table string, where ...Predicate) (int64, error) {
	if err := t.check("delete", table); err != nil {
		return 0, err
	}
	b := newBuilder(t.db.dialect, table)
	defer putBuilder(b)

	query, args := b.predicates(where).buildDelete()
	res, err := t.db.run(ctx, t.tx, &Statement{Op: "delete", Table: table, SQL: query, Args: args})
	if err != nil {
		return 0, err
	}
	return res.RowsAffected, nil
}
