package dialect

import (
	"errors"
	"fmt"

	sqlite3driver "github.com/mattn/go-sqlite3"

	"github.com/shrek82/jpersist/value"
)

// SQLite dialect implementation for github.com/mattn/go-sqlite3
type sqlite3 struct{}

func (d *sqlite3) Name() string { return "sqlite3" }

func (d *sqlite3) DataTypeOf(kind value.Kind) string {
	switch kind {
	case value.Bool:
		return "boolean"
	case value.Int32, value.Int64:
		return "integer"
	case value.Float32, value.Float64:
		return "real"
	case value.String:
		return "text"
	case value.Any:
		// no affinity: values keep the storage class they were bound with
		return "blob"
	}
	panic(fmt.Sprintf("invalid sql type for kind %s", kind))
}

func (d *sqlite3) Quote(name string) string {
	return fmt.Sprintf("`%s`", name)
}

func (d *sqlite3) Placeholder(index int) string {
	return "?"
}

func (d *sqlite3) InsertSQL(table string, columns []string, returning string) (string, bool) {
	if len(columns) == 0 {
		return fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", d.Quote(table)), false
	}
	cols, placeholders := insertParts(d, columns)
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", d.Quote(table), cols, placeholders), false
}

func (d *sqlite3) CreateTableSQL(table string, columns []Column) string {
	return createTable(d, table, columns, func(col Column) string {
		def := fmt.Sprintf("%s %s PRIMARY KEY", d.Quote(col.Name), d.DataTypeOf(col.Kind))
		if col.AutoIncrement {
			def += " AUTOINCREMENT"
		}
		return def
	})
}

func (d *sqlite3) HasTableSQL(table string) (string, []any) {
	return "SELECT count(*) FROM sqlite_master WHERE type='table' AND name = ?", []any{table}
}

func (d *sqlite3) DropTableSQL(table string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", d.Quote(table))
}

func (d *sqlite3) Classify(err error) Constraint {
	var sqliteErr sqlite3driver.Error
	if !errors.As(err, &sqliteErr) {
		return ConstraintNone
	}
	switch sqliteErr.ExtendedCode {
	case sqlite3driver.ErrConstraintUnique, sqlite3driver.ErrConstraintPrimaryKey:
		return ConstraintUnique
	case sqlite3driver.ErrConstraintForeignKey:
		return ConstraintForeignKey
	}
	return ConstraintNone
}
