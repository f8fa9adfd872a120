package dialect

import (
	"errors"

	moderncsqlite "modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

// sqlite is the pure-Go modernc.org/sqlite driver. SQL is shared with sqlite3;
// only the error type differs.
type sqlite struct {
	sqlite3
}

func (d *sqlite) Name() string { return "sqlite" }

func (d *sqlite) Classify(err error) Constraint {
	var sqliteErr *moderncsqlite.Error
	if !errors.As(err, &sqliteErr) {
		return ConstraintNone
	}
	switch sqliteErr.Code() {
	case sqlitelib.SQLITE_CONSTRAINT_UNIQUE, sqlitelib.SQLITE_CONSTRAINT_PRIMARYKEY:
		return ConstraintUnique
	case sqlitelib.SQLITE_CONSTRAINT_FOREIGNKEY:
		return ConstraintForeignKey
	}
	return ConstraintNone
}
